// Package doc implements the document model: an ordered, JSON-compatible
// value tree plus dot-path accessors over it.
package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is an ordered mapping from string keys to Values. Key order is
// preserved across Set/Delete and round-trips through MarshalJSON /
// UnmarshalJSON, since a plain Go map would lose it.
type Document struct {
	keys   []string
	values map[string]any
}

// New returns an empty Document.
func New() *Document {
	return &Document{values: make(map[string]any)}
}

// Get returns the value stored at key and whether it was present.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Set assigns value to key, appending key to the key order on first write.
func (d *Document) Set(key string, value any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Delete removes key, returning the removed value and whether it was present.
func (d *Document) Delete(key string) (any, bool) {
	v, ok := d.values[key]
	if !ok {
		return nil, false
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return v, true
}

// Keys returns the keys in insertion order. The caller must not mutate it.
func (d *Document) Keys() []string {
	return d.keys
}

// Len returns the number of top-level keys.
func (d *Document) Len() int {
	return len(d.keys)
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	out := New()
	for _, k := range d.keys {
		out.Set(k, cloneValue(d.values[k]))
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Document:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON encodes the document preserving key order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalValue(d.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeValue renders a bare Value (not necessarily a whole Document) as
// canonical JSON text, e.g. for storing a nested value in a shadow column.
func EncodeValue(v any) ([]byte, error) {
	return marshalValue(v)
}

// ToSQLParam converts a Value into a database/sql-bindable parameter:
// bool becomes int64 0/1 (not every SQL driver accepts bool directly),
// nested *Document/[]any are flattened to their canonical JSON text, and
// every other tag passes through unchanged.
func ToSQLParam(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case *Document, []any:
		b, err := marshalValue(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return t, nil
	}
}

func marshalValue(v any) ([]byte, error) {
	switch t := v.(type) {
	case *Document:
		return t.MarshalJSON()
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			eb, err := marshalValue(e)
			if err != nil {
				return nil, err
			}
			buf.Write(eb)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return json.Marshal(v)
	}
}

// UnmarshalJSON decodes data into d, preserving key order and disambiguating
// JSON integers from floating-point numbers.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("doc: expected JSON object, got %v", tok)
	}

	parsed, err := decodeObject(dec)
	if err != nil {
		return err
	}
	d.keys = parsed.keys
	d.values = parsed.values
	return nil
}

// decodeObject reads key/value pairs after the opening '{' has been
// consumed by the caller, then consumes the matching closing '}' itself.
func decodeObject(dec *json.Decoder) (*Document, error) {
	out := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("doc: expected object key, got %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out.Set(key, val)
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	out := []any{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	// consume closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("doc: unexpected delimiter %v", t)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("doc: invalid number %q: %w", t.String(), err)
		}
		return f, nil
	default:
		// string, bool, nil all decode to their native Go types already.
		return t, nil
	}
}
