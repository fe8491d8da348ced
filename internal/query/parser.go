package query

import "sort"

var comparisonOps = map[string]Op{
	"$eq":  OpEq,
	"$ne":  OpNe,
	"$gt":  OpGt,
	"$gte": OpGte,
	"$lt":  OpLt,
	"$lte": OpLte,
}

// Parse converts a caller-supplied predicate mapping into a Predicate AST,
// normalizing the top-level mapping into an implicit conjunction (§4.2).
func Parse(q map[string]any) (Predicate, error) {
	children := make([]Predicate, 0, len(q))
	keys := sortedKeys(q)
	for _, key := range keys {
		value := q[key]
		child, err := parseTopLevelEntry(key, value)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &And{Children: children}, nil
}

func parseTopLevelEntry(key string, value any) (Predicate, error) {
	if len(key) > 0 && key[0] == '$' {
		switch key {
		case "$and":
			return parseLogical(key, value, func(c []Predicate) Predicate { return &And{Children: c} })
		case "$or":
			return parseLogical(key, value, func(c []Predicate) Predicate { return &Or{Children: c} })
		default:
			return nil, badQuery("unknown top-level operator %q", key)
		}
	}
	return parseFieldEntry(key, value)
}

func parseLogical(key string, value any, build func([]Predicate) Predicate) (Predicate, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, badQuery("%q must be a list of predicate mappings", key)
	}
	children := make([]Predicate, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, badQuery("%q entry %d must be a mapping", key, i)
		}
		child, err := Parse(m)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return build(children), nil
}

func parseFieldEntry(field string, value any) (Predicate, error) {
	opMap, ok := value.(map[string]any)
	if !ok {
		return &Comparison{Field: field, Op: OpEq, Value: value}, nil
	}
	if len(opMap) == 0 {
		return nil, badQuery("field %q has an empty operator mapping", field)
	}

	keys := sortedKeys(opMap)
	for _, k := range keys {
		if len(k) == 0 || k[0] != '$' {
			return nil, badQuery("field %q operator mapping has non-operator key %q", field, k)
		}
		if _, known := comparisonOps[k]; !known {
			return nil, badQuery("field %q uses unknown operator %q", field, k)
		}
	}

	if len(keys) == 1 {
		op := comparisonOps[keys[0]]
		return &Comparison{Field: field, Op: op, Value: opMap[keys[0]]}, nil
	}

	children := make([]Predicate, 0, len(keys))
	for _, k := range keys {
		children = append(children, &Comparison{Field: field, Op: comparisonOps[k], Value: opMap[k]})
	}
	return NewImplicitAnd(children), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
