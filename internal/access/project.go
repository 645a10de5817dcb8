package access

import (
	"bytes"
	"encoding/json"
)

// Entry is one projected attribute.
type Entry struct {
	Key   string
	Value any
}

// Projection is an ordered subset of a record. It serialises as a JSON
// object with keys in allow-list order.
type Projection []Entry

// Project copies the attributes named in fields from record, in field order.
// Attributes absent from record, or nil, are omitted.
func Project(record map[string]any, fields []string) Projection {
	out := make(Projection, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		value, ok := record[field]
		if !ok || value == nil {
			continue
		}
		out = append(out, Entry{Key: field, Value: value})
	}
	return out
}

// Keys returns the projected keys in order.
func (p Projection) Keys() []string {
	keys := make([]string, len(p))
	for i, e := range p {
		keys[i] = e.Key
	}
	return keys
}

// Get returns the value stored under key.
func (p Projection) Get(key string) (any, bool) {
	for _, e := range p {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// MarshalJSON implements json.Marshaler.
func (p Projection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
