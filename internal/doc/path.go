package doc

import "strings"

// Path is a non-empty sequence of segments split from a dot-separated
// field name. A segment is never empty.
type Path []string

// ParsePath splits field on '.' into a Path. It does not validate segment
// emptiness; callers that need strict validation use Valid.
func ParsePath(field string) Path {
	return Path(strings.Split(field, "."))
}

// Valid reports whether every segment of the path is non-empty.
func (p Path) Valid() bool {
	if len(p) == 0 {
		return false
	}
	for _, seg := range p {
		if seg == "" {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Get descends d following path, returning the value at the final segment
// or nil if any segment is absent or any intermediate value is not a
// *Document. Absence is never an error; it is value null.
func Get(d *Document, field string) any {
	return getPath(d, ParsePath(field))
}

func getPath(d *Document, path Path) any {
	cur := d
	for i, seg := range path {
		v, ok := cur.Get(seg)
		if !ok {
			return nil
		}
		if i == len(path)-1 {
			return v
		}
		next, ok := v.(*Document)
		if !ok {
			return nil
		}
		cur = next
	}
	return nil
}

// Set walks path creating empty intermediate Documents for missing
// segments, then assigns value at the final segment. If an intermediate
// segment exists and is not a *Document, Set is a no-op (see
// SPEC_FULL.md Open Questions #3).
func Set(d *Document, field string, value any) {
	path := ParsePath(field)
	if len(path) == 0 {
		return
	}
	cur := d
	for _, seg := range path[:len(path)-1] {
		v, ok := cur.Get(seg)
		if !ok {
			next := New()
			cur.Set(seg, next)
			cur = next
			continue
		}
		next, ok := v.(*Document)
		if !ok {
			return
		}
		cur = next
	}
	cur.Set(path[len(path)-1], value)
}

// Pop walks the path's intermediate segments; if that prefix exists and is
// a *Document, it removes and returns the value at the final segment,
// otherwise it returns nil. Pop never errors on an absent path.
func Pop(d *Document, field string) any {
	path := ParsePath(field)
	if len(path) == 0 {
		return nil
	}
	cur := d
	for _, seg := range path[:len(path)-1] {
		v, ok := cur.Get(seg)
		if !ok {
			return nil
		}
		next, ok := v.(*Document)
		if !ok {
			return nil
		}
		cur = next
	}
	v, _ := cur.Delete(path[len(path)-1])
	return v
}
