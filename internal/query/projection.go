package query

import (
	"sort"

	"github.com/untoldecay/plumedoc/internal/doc"
)

// Projection is a parsed inclusion/exclusion field-path projection (§4.3
// "Projection skim"). Exactly one of Include/Exclude is populated, or
// both are empty (no projection).
type Projection struct {
	Include []string
	Exclude []string
}

// ParseProjection parses a field-path -> 1|0 mapping. Mixing inclusion
// and exclusion entries is a BadProjectionError.
func ParseProjection(p map[string]any) (*Projection, error) {
	var include, exclude []string
	for field, v := range p {
		n, ok := asProjectionFlag(v)
		if !ok {
			return nil, badProjection("field %q must map to 1 or 0", field)
		}
		if n == 1 {
			include = append(include, field)
		} else {
			exclude = append(exclude, field)
		}
	}
	if len(include) > 0 && len(exclude) > 0 {
		return nil, badProjection("projection mixes inclusion and exclusion entries")
	}
	sort.Strings(include)
	sort.Strings(exclude)
	return &Projection{Include: include, Exclude: exclude}, nil
}

func asProjectionFlag(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		if n == 0 || n == 1 {
			return n, true
		}
	case int64:
		if n == 0 || n == 1 {
			return int(n), true
		}
	case float64:
		if n == 0 || n == 1 {
			return int(n), true
		}
	}
	return 0, false
}

// IsEmpty reports whether the projection has no include/exclude entries,
// in which case Skim returns its input unmodified.
func (p *Projection) IsEmpty() bool {
	return p == nil || (len(p.Include) == 0 && len(p.Exclude) == 0)
}

// Skim applies the projection to d. An include-only projection builds a
// fresh Document containing exactly the included paths (via doc.Set,
// preserving nested structure); an exclude-only projection pops the
// excluded paths from d in place and returns it.
func (p *Projection) Skim(d *doc.Document) *doc.Document {
	if p.IsEmpty() {
		return d
	}
	if len(p.Include) > 0 {
		out := doc.New()
		for _, field := range p.Include {
			doc.Set(out, field, doc.Get(d, field))
		}
		return out
	}
	for _, field := range p.Exclude {
		doc.Pop(d, field)
	}
	return d
}
