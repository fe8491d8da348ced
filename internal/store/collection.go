package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/untoldecay/plumedoc/internal/catalog"
	"github.com/untoldecay/plumedoc/internal/doc"
	"github.com/untoldecay/plumedoc/internal/index"
	"github.com/untoldecay/plumedoc/internal/planner"
	"github.com/untoldecay/plumedoc/internal/query"
	"github.com/untoldecay/plumedoc/internal/txscope"
)

// Collection is one document collection, possibly not yet registered
// with the backing store: a SQL table storing a _data blob per row plus
// whatever shadow columns create_index has materialized, and the
// plume_master catalog row describing them. A Collection obtained from
// Database.Collection for a name with no prior data is an unregistered
// handle (§3 Lifecycles) until its first write or index creation.
type Collection struct {
	name  string
	table string
	db    *Database

	mu         sync.RWMutex
	entry      *catalog.Entry
	registered bool
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) indexedFields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexedFieldsLocked()
}

func (c *Collection) indexSet() query.IndexSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexSetLocked()
}

// indexedFieldsLocked and indexSetLocked assume the caller already holds
// c.mu; they exist so write paths that must hold the lock across
// registration don't re-lock it via the public accessors above.
func (c *Collection) indexedFieldsLocked() []string {
	out := make([]string, len(c.entry.IndexedFields))
	copy(out, c.entry.IndexedFields)
	return out
}

func (c *Collection) indexSetLocked() query.IndexSet {
	return query.IndexSet(c.entry.IndexSetFields())
}

// register creates the collection's table and plume_master row the first
// time a write or index creation references it (§3 Lifecycles, §4.5
// "Registration"), then marks it registered so later calls are no-ops.
// The caller must already hold c.mu and be running inside the database's
// transaction scope.
func (c *Collection) register(ctx context.Context, q txscope.Querier) error {
	if c.registered {
		return nil
	}
	_, err := q.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE %q(id INTEGER PRIMARY KEY AUTOINCREMENT, _data BLOB NOT NULL)`, c.table))
	if err != nil {
		return fmt.Errorf("store: create collection table %q: %w", c.table, err)
	}
	encoded, err := c.entry.Encode()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %q(name, indexes) VALUES (?, ?)`, masterTable), c.name, encoded)
	if err != nil {
		return fmt.Errorf("store: register collection %q: %w", c.name, err)
	}
	c.registered = true
	return nil
}

// InsertOne inserts d and returns its assigned row id, registering the
// collection first if this is its first write (§4.5).
func (c *Collection) InsertOne(ctx context.Context, d *doc.Document) (int64, error) {
	var id int64
	err := c.db.scope.Run(ctx, func(ctx context.Context, q txscope.Querier) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.register(ctx, q); err != nil {
			return err
		}
		inserted, err := c.insertLocked(ctx, q, d)
		if err != nil {
			return err
		}
		id = inserted
		return nil
	})
	return id, err
}

// InsertMany inserts every document in docs inside a single transaction,
// returning their assigned ids in order. Registers the collection first
// if this is its first write.
func (c *Collection) InsertMany(ctx context.Context, docs []*doc.Document) ([]int64, error) {
	ids := make([]int64, 0, len(docs))
	err := c.db.scope.Run(ctx, func(ctx context.Context, q txscope.Querier) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.register(ctx, q); err != nil {
			return err
		}
		for _, d := range docs {
			id, err := c.insertLocked(ctx, q, d)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

// insertLocked assumes c.mu is held and the collection is already
// registered.
func (c *Collection) insertLocked(ctx context.Context, q txscope.Querier, d *doc.Document) (int64, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("store: encode document for %q: %w", c.table, err)
	}

	fields := c.indexedFieldsLocked()
	cols := make([]string, 0, len(fields)+1)
	placeholders := make([]string, 0, len(fields)+1)
	vals := make([]any, 0, len(fields)+1)

	cols = append(cols, "_data")
	placeholders = append(placeholders, "?")
	vals = append(vals, string(data))

	for _, f := range fields {
		param, err := doc.ToSQLParam(doc.Get(d, f))
		if err != nil {
			return 0, fmt.Errorf("store: encode shadow column %q: %w", f, err)
		}
		cols = append(cols, fmt.Sprintf("%q", f))
		placeholders = append(placeholders, "?")
		vals = append(vals, param)
	}

	stmt := fmt.Sprintf(`INSERT INTO %q(%s) VALUES (%s)`, c.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	res, err := q.ExecContext(ctx, stmt, vals...)
	if err != nil {
		return 0, fmt.Errorf("store: insert into %q: %w", c.table, err)
	}
	return res.LastInsertId()
}

// Find runs a query and returns every matching document, applying
// projection and limit (0 meaning unlimited). Reads never open a
// transaction scope (§5).
func (c *Collection) Find(ctx context.Context, predicate map[string]any, projection map[string]any, limit int) ([]*doc.Document, error) {
	pred, err := query.Parse(predicate)
	if err != nil {
		return nil, err
	}
	proj, err := parseProjection(projection)
	if err != nil {
		return nil, err
	}
	return planner.Select(ctx, c.db.scope.DB(), c.table, c.indexSet(), planner.Query{
		Predicate:  pred,
		Projection: proj,
		Limit:      limit,
	})
}

// FindOne returns the first matching document, if any.
func (c *Collection) FindOne(ctx context.Context, predicate map[string]any, projection map[string]any) (*doc.Document, bool, error) {
	docs, err := c.Find(ctx, predicate, projection, 1)
	if err != nil {
		return nil, false, err
	}
	if len(docs) == 0 {
		return nil, false, nil
	}
	return docs[0], true, nil
}

func parseProjection(projection map[string]any) (*query.Projection, error) {
	if len(projection) == 0 {
		return nil, nil
	}
	return query.ParseProjection(projection)
}

// CreateIndex materializes shadow columns and a SQL index for keys,
// persisting the updated catalog entry. If an index over the exact same
// ordered key list already exists, this is a no-op (§4.4).
func (c *Collection) CreateIndex(ctx context.Context, keys []catalog.IndexKey, name string) (catalog.IndexDefinition, bool, error) {
	var def catalog.IndexDefinition
	var changed bool

	err := c.db.scope.Run(ctx, func(ctx context.Context, q txscope.Querier) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.register(ctx, q); err != nil {
			return err
		}

		d, ch, err := index.Create(ctx, q, c.table, c.entry, keys, name)
		if err != nil {
			return err
		}
		def, changed = d, ch
		if !changed {
			return nil
		}

		encoded, err := c.entry.Encode()
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, fmt.Sprintf(`UPDATE %q SET indexes = ? WHERE name = ?`, masterTable), encoded, c.name)
		if err != nil {
			return fmt.Errorf("store: persist catalog entry for %q: %w", c.name, err)
		}
		return nil
	})
	return def, changed, err
}

// ReplaceOne replaces the first document matching predicate with
// replacement, returning its row id. If no document matches and upsert
// is true, replacement is inserted instead and upserted reports true
// (§4.5).
func (c *Collection) ReplaceOne(ctx context.Context, predicate map[string]any, replacement *doc.Document, upsert bool) (id int64, upserted bool, err error) {
	pred, perr := query.Parse(predicate)
	if perr != nil {
		return 0, false, perr
	}

	err = c.db.scope.Run(ctx, func(ctx context.Context, q txscope.Querier) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.register(ctx, q); err != nil {
			return err
		}

		foundID, found, ferr := c.findFirstMatchLocked(ctx, q, pred)
		if ferr != nil {
			return ferr
		}

		if !found {
			if !upsert {
				return nil
			}
			newID, ierr := c.insertLocked(ctx, q, replacement)
			if ierr != nil {
				return ierr
			}
			id, upserted = newID, true
			return nil
		}

		if uerr := c.updateLocked(ctx, q, foundID, replacement); uerr != nil {
			return uerr
		}
		id = foundID
		return nil
	})
	return id, upserted, err
}

// findFirstMatchLocked assumes c.mu is already held by the caller.
func (c *Collection) findFirstMatchLocked(ctx context.Context, q txscope.Querier, pred query.Predicate) (int64, bool, error) {
	sqlWhere, ok, residual := pred.PushDown(c.indexSetLocked())

	stmt := fmt.Sprintf(`SELECT id, _data FROM %q`, c.table)
	if ok {
		stmt += " WHERE " + sqlWhere
	}

	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return 0, false, fmt.Errorf("store: scan %q: %w", c.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rid int64
		var blob string
		if err := rows.Scan(&rid, &blob); err != nil {
			return 0, false, fmt.Errorf("store: read row from %q: %w", c.table, err)
		}
		if residual != nil {
			d := doc.New()
			if err := d.UnmarshalJSON([]byte(blob)); err != nil {
				return 0, false, fmt.Errorf("store: decode _data from %q: %w", c.table, err)
			}
			if !residual.Match(d) {
				continue
			}
		}
		return rid, true, rows.Err()
	}
	return 0, false, rows.Err()
}

// updateLocked assumes c.mu is already held by the caller.
func (c *Collection) updateLocked(ctx context.Context, q txscope.Querier, id int64, replacement *doc.Document) error {
	data, err := replacement.MarshalJSON()
	if err != nil {
		return fmt.Errorf("store: encode document for %q: %w", c.table, err)
	}

	fields := c.indexedFieldsLocked()
	setClauses := make([]string, 0, len(fields)+1)
	vals := make([]any, 0, len(fields)+2)

	setClauses = append(setClauses, `"_data" = ?`)
	vals = append(vals, string(data))

	for _, f := range fields {
		param, err := doc.ToSQLParam(doc.Get(replacement, f))
		if err != nil {
			return fmt.Errorf("store: encode shadow column %q: %w", f, err)
		}
		setClauses = append(setClauses, fmt.Sprintf("%q = ?", f))
		vals = append(vals, param)
	}
	vals = append(vals, id)

	stmt := fmt.Sprintf(`UPDATE %q SET %s WHERE id = ?`, c.table, strings.Join(setClauses, ", "))
	if _, err := q.ExecContext(ctx, stmt, vals...); err != nil {
		return fmt.Errorf("store: update row %d of %q: %w", id, c.table, err)
	}
	return nil
}
