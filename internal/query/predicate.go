// Package query implements the predicate AST (§4.2 of SPEC_FULL.md), the
// parser that turns a caller-supplied predicate mapping into that AST, and
// the inclusion/exclusion Projection.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/untoldecay/plumedoc/internal/doc"
)

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "$eq"
	OpNe  Op = "$ne"
	OpGt  Op = "$gt"
	OpGte Op = "$gte"
	OpLt  Op = "$lt"
	OpLte Op = "$lte"
)

var sqlOperator = map[Op]string{
	OpEq:  "=",
	OpNe:  "!=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// IndexSet is the set of field paths currently promoted to shadow columns,
// as passed into Predicate.PushDown.
type IndexSet map[string]bool

// Predicate is the predicate AST. Unlike the source's destructive
// push-down (DESIGN NOTES "Side-effecting push-down"), PushDown here
// returns an explicit residual predicate rather than mutating shared
// state, which fits a statically typed reimplementation better.
type Predicate interface {
	// Match evaluates the predicate against d, in memory.
	Match(d *doc.Document) bool
	// PushDown attempts to compile this node into a SQL WHERE fragment
	// given the indexed field set. ok is true iff at least one SQL
	// fragment was produced. residual is the predicate still needing an
	// in-memory match; it is nil iff the entire node was pushed down.
	PushDown(indexed IndexSet) (sql string, ok bool, residual Predicate)
}

// Comparison is a single field/operator/value leaf: Equal, NotEqual,
// GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual.
type Comparison struct {
	Field string
	Op    Op
	Value any
}

func (c *Comparison) Match(d *doc.Document) bool {
	v := doc.Get(d, c.Field)
	switch c.Op {
	case OpEq:
		return doc.Equal(v, c.Value)
	case OpNe:
		return !doc.Equal(v, c.Value)
	case OpGt:
		return doc.Compare(v, c.Value) > 0
	case OpGte:
		return doc.Compare(v, c.Value) >= 0
	case OpLt:
		return doc.Compare(v, c.Value) < 0
	case OpLte:
		return doc.Compare(v, c.Value) <= 0
	default:
		return false
	}
}

func (c *Comparison) PushDown(indexed IndexSet) (string, bool, Predicate) {
	if !indexed[c.Field] {
		return "", false, c
	}
	frag := fmt.Sprintf(`"%s" %s %s`, c.Field, sqlOperator[c.Op], formatLiteral(c.Value))
	return frag, true, nil
}

// And matches when every child matches. ImplicitAnd (the {field: {$op1:
// v1, $op2: v2}} shorthand) is represented by the same type — its
// behavior, per SPEC_FULL.md §4.2, is identical to And, so no separate
// runtime type is needed; NewImplicitAnd below is just a documented
// constructor alias.
type And struct {
	Children []Predicate
}

func NewImplicitAnd(children []Predicate) *And {
	return &And{Children: children}
}

func (a *And) Match(d *doc.Document) bool {
	for _, c := range a.Children {
		if !c.Match(d) {
			return false
		}
	}
	return true
}

// PushDown implements the residual rule: children that produced SQL are
// dropped from the residual And, so a subsequent Match only re-evaluates
// what wasn't pushed. If nothing pushed, the original node is returned
// unchanged as the residual.
func (a *And) PushDown(indexed IndexSet) (string, bool, Predicate) {
	var fragments []string
	var residualChildren []Predicate
	for _, c := range a.Children {
		frag, ok, res := c.PushDown(indexed)
		if ok {
			fragments = append(fragments, frag)
		} else {
			residualChildren = append(residualChildren, res)
		}
	}
	if len(fragments) == 0 {
		return "", false, a
	}
	sql := strings.Join(fragments, " AND ")
	if len(residualChildren) == 0 {
		return sql, true, nil
	}
	return sql, true, &And{Children: residualChildren}
}

// Or matches when any child matches. It only pushes down when every
// child fully pushes down (no residual); otherwise the whole Or stays
// residual, since a partial per-branch SQL/in-memory split cannot be
// expressed as a single OR'd WHERE fragment.
type Or struct {
	Children []Predicate
}

func (o *Or) Match(d *doc.Document) bool {
	for _, c := range o.Children {
		if c.Match(d) {
			return true
		}
	}
	return false
}

func (o *Or) PushDown(indexed IndexSet) (string, bool, Predicate) {
	fragments := make([]string, 0, len(o.Children))
	for _, c := range o.Children {
		frag, ok, residual := c.PushDown(indexed)
		if !ok || residual != nil {
			return "", false, o
		}
		fragments = append(fragments, frag)
	}
	return "(" + strings.Join(fragments, " OR ") + ")", true, nil
}

// formatLiteral renders a document value as an inline SQL literal:
// strings double-quoted, everything else in canonical textual form. This
// mirrors the source's choice to interpolate literals directly (DESIGN
// NOTES "SQL string building") rather than bind parameters on the read
// path, since index-only projections also need to interpolate dynamic
// column names into the same statement.
func formatLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
