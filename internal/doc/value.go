package doc

// Equal reports whether two document values are equal under JSON-like
// semantics: numbers compare by value across int64/float64, and
// *Document/[]any compare structurally. Key order is irrelevant to
// Document equality.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	an, aIsNum := asFloat(a)
	bn, bIsNum := asFloat(b)
	if aIsNum && bIsNum {
		return an == bn
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Document:
		bv, ok := b.(*Document)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.Keys() {
			bval, ok := bv.Get(k)
			if !ok {
				return false
			}
			aval, _ := av.Get(k)
			if !Equal(aval, bval) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// typeRank gives the total order across incompatible value tags, used so
// that Compare never fails mid-match: null < bool < number < string <
// array < document.
func typeRank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(bool); ok {
		return 1
	}
	if _, ok := asFloat(v); ok {
		return 2
	}
	switch v.(type) {
	case string:
		return 3
	case []any:
		return 4
	case *Document:
		return 5
	default:
		return 6
	}
}

// Compare returns -1, 0, or 1 for a relative to b, defined across all value
// tags (see typeRank for the cross-type order). This never fails: an
// incomparable pair degrades to the documented type-rank ordering rather
// than an error. Documents are ordered by key count only: two Documents
// with the same key count that are not Equal compare as 1 in either
// order, so the order among Documents is not total.
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av && bv {
			return -1
		}
		return 1
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case []any:
		bv := b.([]any)
		n := len(av)
		if len(bv) < n {
			n = len(bv)
		}
		for i := 0; i < n; i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(av) < len(bv):
			return -1
		case len(av) > len(bv):
			return 1
		default:
			return 0
		}
	case *Document:
		bv := b.(*Document)
		switch {
		case av.Len() < bv.Len():
			return -1
		case av.Len() > bv.Len():
			return 1
		default:
			if Equal(av, bv) {
				return 0
			}
			return 1
		}
	default:
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
