package models

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// rawMember is an object member with no typed field, kept as compact JSON.
type rawMember struct {
	Key   string
	Value json.RawMessage
}

// objectLayout remembers the member order of a decoded object and the members
// the typed model does not know, so the object encodes back the way it came in.
type objectLayout struct {
	order []string
	extra []rawMember
}

// member is one typed field offered to objectLayout.encode. A field that is
// not set is still written when the decoded object carried its key.
type member struct {
	key   string
	value any
	set   bool
}

func readLayout(data []byte, known ...string) (objectLayout, error) {
	var l objectLayout
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return l, nil
	}
	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if !l.has(k) {
			l.order = append(l.order, k)
		}
		if contains(known, k) {
			return true
		}
		var b bytes.Buffer
		if err = json.Compact(&b, []byte(value.Raw)); err != nil {
			return false
		}
		l.setExtra(k, b.Bytes())
		return true
	})
	if err != nil {
		return objectLayout{}, err
	}
	return l, nil
}

func (l objectLayout) has(key string) bool {
	return contains(l.order, key)
}

func (l *objectLayout) setExtra(key string, raw json.RawMessage) {
	for i := range l.extra {
		if l.extra[i].Key == key {
			l.extra[i].Value = raw
			return
		}
	}
	l.extra = append(l.extra, rawMember{Key: key, Value: raw})
}

func (l objectLayout) extraValue(key string) (json.RawMessage, bool) {
	for _, m := range l.extra {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

func (l objectLayout) clone() objectLayout {
	out := objectLayout{order: cloneStrings(l.order)}
	if l.extra != nil {
		out.extra = make([]rawMember, len(l.extra))
		for i, m := range l.extra {
			out.extra[i] = rawMember{Key: m.Key, Value: append(json.RawMessage(nil), m.Value...)}
		}
	}
	return out
}

// encode writes the decoded members in their original order, then any typed
// field that is set but was not in the decoded object.
func (l objectLayout) encode(members []member) ([]byte, error) {
	var b bytes.Buffer
	n := 0
	write := func(key string, value any) error {
		k, err := encodeJSON(key)
		if err != nil {
			return err
		}
		var v []byte
		if raw, ok := value.(json.RawMessage); ok {
			v = raw
		} else if v, err = encodeJSON(value); err != nil {
			return err
		}
		if n > 0 {
			b.WriteByte(',')
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
		n++
		return nil
	}

	b.WriteByte('{')
	for _, key := range l.order {
		if m, ok := findMember(members, key); ok {
			if err := write(key, m.value); err != nil {
				return nil, err
			}
			continue
		}
		if raw, ok := l.extraValue(key); ok {
			if err := write(key, raw); err != nil {
				return nil, err
			}
		}
	}
	for _, m := range members {
		if !m.set || l.has(m.key) {
			continue
		}
		if err := write(m.key, m.value); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func findMember(members []member, key string) (member, bool) {
	for _, m := range members {
		if m.key == key {
			return m, true
		}
	}
	return member{}, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
