// Package planner implements SelectQuery (§4.3): binding a predicate and
// projection to a collection's indexed-field set, compiling as much of
// the predicate to SQL as PushDown allows, and choosing between an
// index-only plan (reconstructing documents purely from shadow columns)
// and a full scan over the _data blob with an in-memory residual match.
package planner

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/untoldecay/plumedoc/internal/doc"
	"github.com/untoldecay/plumedoc/internal/query"
)

// Querier is the read surface SelectQuery needs; *sql.DB and *sql.Conn
// both satisfy it, as does txscope.Scope.DB().
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query describes one find/find_one call bound to a collection.
type Query struct {
	Predicate  query.Predicate
	Projection *query.Projection
	// Limit caps the number of returned documents; 0 means unlimited.
	Limit int
}

// Select runs qry against table, whose indexed field set is indexed, and
// returns the matching documents in storage order.
func Select(ctx context.Context, q Querier, table string, indexed query.IndexSet, qry Query) ([]*doc.Document, error) {
	sqlWhere, ok, residual := predicatePushDown(qry.Predicate, indexed)

	if indexOnlyEligible(residual, qry.Projection, indexed) {
		return selectIndexOnly(ctx, q, table, sqlWhere, ok, qry)
	}
	return selectFullScan(ctx, q, table, sqlWhere, ok, residual, qry)
}

func predicatePushDown(p query.Predicate, indexed query.IndexSet) (string, bool, query.Predicate) {
	if p == nil {
		return "", false, nil
	}
	return p.PushDown(indexed)
}

// isTrivial reports whether residual requires no further in-memory
// filtering: either there is none, or it is the empty top-level And that
// parses an empty predicate map and matches every document vacuously.
func isTrivial(residual query.Predicate) bool {
	if residual == nil {
		return true
	}
	if a, ok := residual.(*query.And); ok && len(a.Children) == 0 {
		return true
	}
	return false
}

// indexOnlyEligible reports whether the query can be answered entirely
// from shadow columns: every condition that needed evaluation already
// pushed down, and the projection is an inclusion list over indexed
// fields only (§4.3 "Index-only query plans").
func indexOnlyEligible(residual query.Predicate, proj *query.Projection, indexed query.IndexSet) bool {
	if !isTrivial(residual) {
		return false
	}
	if proj == nil || len(proj.Include) == 0 || len(proj.Exclude) > 0 {
		return false
	}
	for _, field := range proj.Include {
		if !indexed[field] {
			return false
		}
	}
	return true
}

func selectIndexOnly(ctx context.Context, q Querier, table, sqlWhere string, hasWhere bool, qry Query) ([]*doc.Document, error) {
	cols := make([]string, len(qry.Projection.Include))
	for i, field := range qry.Projection.Include {
		cols[i] = fmt.Sprintf("%q", field)
	}

	stmt := fmt.Sprintf(`SELECT %s FROM %q`, strings.Join(cols, ", "), table)
	if hasWhere {
		stmt += " WHERE " + sqlWhere
	}
	if qry.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", qry.Limit)
	}

	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("planner: index-only select on %q: %w", table, err)
	}
	defer rows.Close()

	scanned := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range scanned {
		ptrs[i] = &scanned[i]
	}

	var out []*doc.Document
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("planner: scan index-only row on %q: %w", table, err)
		}
		d := doc.New()
		for i, field := range qry.Projection.Include {
			doc.Set(d, field, fromSQLValue(scanned[i]))
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("planner: iterate index-only rows on %q: %w", table, err)
	}
	return out, nil
}

func selectFullScan(ctx context.Context, q Querier, table, sqlWhere string, hasWhere bool, residual query.Predicate, qry Query) ([]*doc.Document, error) {
	stmt := fmt.Sprintf(`SELECT _data FROM %q`, table)
	if hasWhere {
		stmt += " WHERE " + sqlWhere
	}
	// A SQL LIMIT is only safe when nothing further is filtered in memory;
	// otherwise rows that satisfy the pushed fragment but fail the
	// residual would starve the result before enough real matches are found.
	needsResidual := !isTrivial(residual)
	if !needsResidual && qry.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", qry.Limit)
	}

	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("planner: scan %q: %w", table, err)
	}
	defer rows.Close()

	var out []*doc.Document
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("planner: scan row from %q: %w", table, err)
		}
		d := doc.New()
		if err := d.UnmarshalJSON([]byte(blob)); err != nil {
			return nil, fmt.Errorf("planner: decode _data from %q: %w", table, err)
		}
		if needsResidual && !residual.Match(d) {
			continue
		}
		out = append(out, qry.Projection.Skim(d))
		if qry.Limit > 0 && len(out) == qry.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("planner: iterate rows from %q: %w", table, err)
	}
	return out, nil
}

// fromSQLValue normalizes a scanned driver value into the shape
// doc.Document values use: drivers that return TEXT as []byte get
// converted to string.
func fromSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
