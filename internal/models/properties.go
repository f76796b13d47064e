package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Property is one named entry of a Schema's properties object.
type Property struct {
	Name   string `validate:"required"`
	Schema Schema
}

// Properties keeps schema properties in declaration order so a tool list
// written back out matches the bytes it was read from.
type Properties []Property

// Get returns the schema declared under name.
func (ps Properties) Get(name string) (Schema, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return Schema{}, false
}

// Set replaces the schema under name, appending it when it is new.
func (ps Properties) Set(name string, s Schema) Properties {
	for i := range ps {
		if ps[i].Name == name {
			ps[i].Schema = s
			return ps
		}
	}
	return append(ps, Property{Name: name, Schema: s})
}

func (ps Properties) MarshalJSON() ([]byte, error) {
	if ps == nil {
		return []byte("null"), nil
	}
	var b bytes.Buffer
	b.WriteByte('{')
	for i, p := range ps {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := encodeJSON(p.Name)
		if err != nil {
			return nil, err
		}
		val, err := encodeJSON(p.Schema)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (ps *Properties) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("properties: invalid json")
	}
	res := gjson.ParseBytes(data)
	if res.Type == gjson.Null {
		*ps = nil
		return nil
	}
	if !res.IsObject() {
		return fmt.Errorf("properties: expected object, got %s", res.Type)
	}

	out := Properties{}
	var decodeErr error
	res.ForEach(func(key, value gjson.Result) bool {
		var s Schema
		if err := json.Unmarshal([]byte(value.Raw), &s); err != nil {
			decodeErr = fmt.Errorf("properties: %s: %w", key.String(), err)
			return false
		}
		out = out.Set(key.String(), s)
		return true
	})
	if decodeErr != nil {
		return decodeErr
	}
	*ps = out
	return nil
}

// encodeJSON marshals v the way JSON.stringify would: no HTML escaping, line
// and paragraph separators written as-is, and no trailing newline.
func encodeJSON(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return unescapeSeparators(bytes.TrimSuffix(b.Bytes(), []byte("\n"))), nil
}

// unescapeSeparators turns the \u2028 and \u2029 escapes encoding/json always
// emits back into the literal characters. Escape sequences are consumed
// pairwise so an escaped backslash followed by "u2028" is left alone.
func unescapeSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if b[i+1] == 'u' && i+5 < len(b) && string(b[i+2:i+5]) == "202" && (b[i+5] == '8' || b[i+5] == '9') {
			if b[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}
