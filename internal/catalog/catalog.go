// Package catalog implements the plume_master system table's row
// encoding (§3 "Catalog (plume_master)", §6 "Catalog row encoding").
package catalog

import "encoding/json"

// SQLType is the shadow-column type an indexed field is materialized as.
type SQLType string

const (
	Text    SQLType = "TEXT"
	Integer SQLType = "INTEGER"
	Real    SQLType = "REAL"
)

// Direction is an index key's sort direction. It defaults to Ascending.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// IndexKey is one (field_path, sql_type, direction) triple inside an
// IndexDefinition. It marshals as a 3-element JSON array, matching the
// catalog's on-disk encoding.
type IndexKey struct {
	Field     string
	Type      SQLType
	Direction Direction
}

func (k IndexKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{k.Field, string(k.Type), string(k.Direction)})
}

func (k *IndexKey) UnmarshalJSON(data []byte) error {
	var arr [3]string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	k.Field = arr[0]
	k.Type = SQLType(arr[1])
	k.Direction = Direction(arr[2])
	return nil
}

// KeysEqual reports structural (value) equality between two ordered key lists.
func KeysEqual(a, b []IndexKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IndexDefinition is a named ordered list of keys.
type IndexDefinition struct {
	Keys []IndexKey `json:"keys"`
	Name string     `json:"name"`
}

// Entry is the decoded form of a plume_master.indexes cell: the three
// synchronized fields described in §3.
type Entry struct {
	Indexes               []IndexDefinition `json:"indexes"`
	IndexedFields         []string          `json:"indexed_fields"`
	FormatedIndexedFields []string          `json:"formated_indexed_fields"`
}

// NewEntry returns the initial empty index structure written at
// collection registration (§4.5).
func NewEntry() *Entry {
	return &Entry{
		Indexes:               []IndexDefinition{},
		IndexedFields:         []string{},
		FormatedIndexedFields: []string{},
	}
}

// Encode renders the entry as the canonical text stored in plume_master.
func (e *Entry) Encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a plume_master.indexes cell back into an Entry.
func Decode(s string) (*Entry, error) {
	e := NewEntry()
	if err := json.Unmarshal([]byte(s), e); err != nil {
		return nil, err
	}
	if e.Indexes == nil {
		e.Indexes = []IndexDefinition{}
	}
	if e.IndexedFields == nil {
		e.IndexedFields = []string{}
	}
	if e.FormatedIndexedFields == nil {
		e.FormatedIndexedFields = []string{}
	}
	return e, nil
}

// FindByKeys returns the first index definition whose ordered key list is
// value-equal to keys, implementing the "first match wins" structural
// equality rule from SPEC_FULL.md Open Questions #2.
func (e *Entry) FindByKeys(keys []IndexKey) (*IndexDefinition, bool) {
	for i := range e.Indexes {
		if KeysEqual(e.Indexes[i].Keys, keys) {
			return &e.Indexes[i], true
		}
	}
	return nil, false
}

// HasField reports whether field is already covered by some index.
func (e *Entry) HasField(field string) bool {
	for _, f := range e.IndexedFields {
		if f == field {
			return true
		}
	}
	return false
}

// Append records a newly created index definition, extending
// IndexedFields/FormatedIndexedFields with any field paths not already
// present, preserving first-seen order (§4.4 step 6).
func (e *Entry) Append(def IndexDefinition) {
	e.Indexes = append(e.Indexes, def)
	for _, k := range def.Keys {
		if !e.HasField(k.Field) {
			e.IndexedFields = append(e.IndexedFields, k.Field)
			e.FormatedIndexedFields = append(e.FormatedIndexedFields, `"`+k.Field+`"`)
		}
	}
}

// IndexSetFields returns IndexedFields as a lookup set, for use with
// query.Predicate.PushDown.
func (e *Entry) IndexSetFields() map[string]bool {
	set := make(map[string]bool, len(e.IndexedFields))
	for _, f := range e.IndexedFields {
		set[f] = true
	}
	return set
}
