package models

import (
	"bytes"
	"encoding/json"
	"reflect"
)

var (
	toolKeys        = []string{"functionDeclarations"}
	declarationKeys = []string{"name", "description", "parameters"}
	schemaKeys      = []string{"type", "description", "properties", "items", "required", "enum"}
)

func (t Tool) MarshalJSON() ([]byte, error) {
	return t.layout.encode([]member{
		{key: "functionDeclarations", value: t.FunctionDeclarations, set: len(t.FunctionDeclarations) > 0},
	})
}

func (t *Tool) UnmarshalJSON(data []byte) error {
	type plain Tool
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	layout, err := readLayout(data, toolKeys...)
	if err != nil {
		return err
	}
	*t = Tool(p)
	t.layout = layout
	return nil
}

func (d FunctionDeclaration) MarshalJSON() ([]byte, error) {
	return d.layout.encode([]member{
		{key: "name", value: d.Name, set: true},
		{key: "description", value: d.Description, set: d.Description != ""},
		{key: "parameters", value: d.Parameters, set: d.Parameters != nil},
	})
}

func (d *FunctionDeclaration) UnmarshalJSON(data []byte) error {
	type plain FunctionDeclaration
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	layout, err := readLayout(data, declarationKeys...)
	if err != nil {
		return err
	}
	*d = FunctionDeclaration(p)
	d.layout = layout
	return nil
}

func (s Schema) MarshalJSON() ([]byte, error) {
	return s.layout.encode([]member{
		{key: "type", value: s.Type, set: s.Type != ""},
		{key: "description", value: s.Description, set: s.Description != ""},
		{key: "properties", value: s.Properties, set: s.Properties != nil},
		{key: "items", value: s.Items, set: s.Items != nil},
		{key: "required", value: s.Required, set: s.Required != nil},
		{key: "enum", value: s.Enum, set: s.Enum != nil},
	})
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	type plain Schema
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	layout, err := readLayout(data, schemaKeys...)
	if err != nil {
		return err
	}
	*s = Schema(p)
	s.layout = layout
	return nil
}

func (c FunctionCall) MarshalJSON() ([]byte, error) {
	args, err := cachedObject(c.raw, c.Args)
	if err != nil {
		return nil, err
	}
	return encodeJSON(struct {
		Name string          `json:"name"`
		Args json.RawMessage `json:"args,omitzero"`
	}{c.Name, args})
}

func (c *FunctionCall) UnmarshalJSON(data []byte) error {
	var w struct {
		Name string          `json:"name"`
		Args json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	args, raw, err := decodeObject(w.Args)
	if err != nil {
		return err
	}
	*c = FunctionCall{Name: w.Name, Args: args, raw: raw}
	return nil
}

func (r FunctionResponse) MarshalJSON() ([]byte, error) {
	resp, err := cachedObject(r.raw, r.Response)
	if err != nil {
		return nil, err
	}
	return encodeJSON(struct {
		Name     string          `json:"name"`
		Response json.RawMessage `json:"response,omitzero"`
	}{r.Name, resp})
}

func (r *FunctionResponse) UnmarshalJSON(data []byte) error {
	var w struct {
		Name     string          `json:"name"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	resp, raw, err := decodeObject(w.Response)
	if err != nil {
		return err
	}
	*r = FunctionResponse{Name: w.Name, Response: resp, raw: raw}
	return nil
}

// decodeObject decodes a JSON object and returns it with its compact text.
// An absent or null value decodes to nil.
func decodeObject(data json.RawMessage) (map[string]any, json.RawMessage, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, err
	}
	var b bytes.Buffer
	if err := json.Compact(&b, data); err != nil {
		return nil, nil, err
	}
	return m, b.Bytes(), nil
}

// cachedObject returns raw while m still equals what raw decodes to, so an
// untouched object keeps its member order. Otherwise m is encoded afresh.
func cachedObject(raw json.RawMessage, m map[string]any) (json.RawMessage, error) {
	if m == nil {
		return nil, nil
	}
	if raw != nil {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err == nil && reflect.DeepEqual(decoded, m) {
			return raw, nil
		}
	}
	return encodeJSON(m)
}
