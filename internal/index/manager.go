// Package index implements the Index Manager (§4.4): turning a
// create_index call into shadow columns, a back-filled SQL index, and an
// updated catalog entry, all against whatever Querier the caller's
// transaction scope currently has open.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/untoldecay/plumedoc/internal/catalog"
	"github.com/untoldecay/plumedoc/internal/doc"
)

// Querier is the subset of txscope.Querier the index manager needs. It is
// declared locally so this package doesn't import internal/txscope just
// for a type name.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// NormalizeKeys defaults every key's Direction to Ascending, matching the
// catalog's on-disk convention of an explicit direction string.
func NormalizeKeys(keys []catalog.IndexKey) []catalog.IndexKey {
	out := make([]catalog.IndexKey, len(keys))
	for i, k := range keys {
		if k.Direction == "" {
			k.Direction = catalog.Ascending
		}
		out[i] = k
	}
	return out
}

// GenerateName builds the default index name for a collection and key
// list: "{collection}_index_{field1}_{field2}_..." (§4.4, SPEC_FULL.md
// supplemented feature carried over from the source implementation).
func GenerateName(collection string, keys []catalog.IndexKey) string {
	var b strings.Builder
	b.WriteString(collection)
	b.WriteString("_index")
	for _, k := range keys {
		b.WriteByte('_')
		b.WriteString(k.Field)
	}
	return b.String()
}

// Create ensures table has shadow columns and a SQL index for keys,
// back-filling existing rows, and returns the IndexDefinition recorded in
// entry. If an index over the exact same ordered key list already exists
// (§4.4 step 2, SPEC_FULL.md Open Questions #2), Create is a no-op and
// returns the existing definition with changed=false.
//
// The caller is responsible for running Create inside a single
// txscope.Scope.Run and for persisting entry back to plume_master
// afterward — Create only mutates entry in memory and the SQL schema.
func Create(ctx context.Context, q Querier, table string, entry *catalog.Entry, keys []catalog.IndexKey, name string) (def catalog.IndexDefinition, changed bool, err error) {
	if len(keys) == 0 {
		return catalog.IndexDefinition{}, false, fmt.Errorf("index: create_index requires at least one key")
	}
	keys = NormalizeKeys(keys)

	if existing, found := entry.FindByKeys(keys); found {
		return *existing, false, nil
	}

	if name == "" {
		name = GenerateName(table, keys)
	}

	var newFields []catalog.IndexKey
	for _, k := range keys {
		if !entry.HasField(k.Field) {
			newFields = append(newFields, k)
		}
	}

	if err := addShadowColumns(ctx, q, table, newFields); err != nil {
		return catalog.IndexDefinition{}, false, err
	}
	if err := backfill(ctx, q, table, newFields); err != nil {
		return catalog.IndexDefinition{}, false, err
	}
	if err := createSQLIndex(ctx, q, table, name, keys); err != nil {
		return catalog.IndexDefinition{}, false, err
	}

	def = catalog.IndexDefinition{Keys: keys, Name: name}
	entry.Append(def)
	return def, true, nil
}

func addShadowColumns(ctx context.Context, q Querier, table string, fields []catalog.IndexKey) error {
	for _, f := range fields {
		stmt := fmt.Sprintf(`ALTER TABLE %q ADD COLUMN %q %s`, table, f.Field, f.Type)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index: add shadow column %q on %q: %w", f.Field, table, err)
		}
	}
	return nil
}

// backfill streams every existing row's _data blob and writes the
// get-at-path value of each new field into its shadow column (null if the
// path is absent), §4.4 step 4.
func backfill(ctx context.Context, q Querier, table string, fields []catalog.IndexKey) error {
	if len(fields) == 0 {
		return nil
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT id, _data FROM %q`, table))
	if err != nil {
		return fmt.Errorf("index: scan %q for backfill: %w", table, err)
	}
	defer rows.Close()

	type patch struct {
		id     int64
		values []any
	}
	var patches []patch
	for rows.Next() {
		var id int64
		var blob string
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("index: read row during backfill of %q: %w", table, err)
		}
		d := doc.New()
		if err := d.UnmarshalJSON([]byte(blob)); err != nil {
			return fmt.Errorf("index: decode _data during backfill of %q: %w", table, err)
		}

		values := make([]any, len(fields))
		for i, f := range fields {
			raw := doc.Get(d, f.Field)
			param, err := doc.ToSQLParam(raw)
			if err != nil {
				return fmt.Errorf("index: encode %q for backfill: %w", f.Field, err)
			}
			values[i] = param
		}
		patches = append(patches, patch{id: id, values: values})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("index: iterate %q during backfill: %w", table, err)
	}

	var setClauses []string
	for _, f := range fields {
		setClauses = append(setClauses, fmt.Sprintf("%q = ?", f.Field))
	}
	updateStmt := fmt.Sprintf(`UPDATE %q SET %s WHERE id = ?`, table, strings.Join(setClauses, ", "))

	for _, p := range patches {
		args := append(append([]any{}, p.values...), p.id)
		if _, err := q.ExecContext(ctx, updateStmt, args...); err != nil {
			return fmt.Errorf("index: backfill row %d of %q: %w", p.id, table, err)
		}
	}
	return nil
}

func createSQLIndex(ctx context.Context, q Querier, table, name string, keys []catalog.IndexKey) error {
	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = fmt.Sprintf("%q %s", k.Field, k.Direction)
	}
	stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(%s)`, name, table, strings.Join(cols, ", "))
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("index: create index %q on %q: %w", name, table, err)
	}
	return nil
}
