// Package store implements the Database and Collection handles (§4.5,
// §4.6): opening the backing SQLite file, maintaining the plume_master
// catalog, and dispatching insert/find/replace/create_index operations
// against it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/untoldecay/plumedoc/internal/catalog"
	"github.com/untoldecay/plumedoc/internal/txscope"
)

const masterTable = "plume_master"

// Database is a handle on one backing SQLite file and its collections.
type Database struct {
	db    *sql.DB
	scope *txscope.Scope

	mu          sync.Mutex
	collections map[string]*Collection
}

// Open opens (creating if absent) the single-file database at path,
// ensuring the plume_master catalog table exists, then loads every
// already-registered collection's catalog entry. §5 assumes a single
// connection per database instance, so Open pins the pool to one.
func Open(path string) (*Database, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}

	d := &Database{
		db:          db,
		scope:       txscope.New(db),
		collections: make(map[string]*Collection),
	}

	if err := d.ensureMasterTable(); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.loadCollections(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) ensureMasterTable() error {
	ctx := context.Background()
	return d.scope.Run(ctx, func(ctx context.Context, q txscope.Querier) error {
		_, err := q.ExecContext(ctx, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q(name TEXT PRIMARY KEY, indexes TEXT NOT NULL)`, masterTable))
		if err != nil {
			return fmt.Errorf("store: create %s: %w", masterTable, err)
		}
		return nil
	})
}

func (d *Database) loadCollections() error {
	ctx := context.Background()
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`SELECT name, indexes FROM %q`, masterTable))
	if err != nil {
		return fmt.Errorf("store: load catalog: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, encoded string
		if err := rows.Scan(&name, &encoded); err != nil {
			return fmt.Errorf("store: scan catalog row: %w", err)
		}
		entry, err := catalog.Decode(encoded)
		if err != nil {
			return fmt.Errorf("store: decode catalog entry for %q: %w", name, err)
		}
		d.collections[name] = &Collection{
			name:       name,
			table:      name,
			db:         d,
			entry:      entry,
			registered: true,
		}
	}
	return rows.Err()
}

// Collection returns a handle on name, creating an in-memory handle on
// first reference if none exists yet. This never touches the backing
// store: per spec.md §3 Lifecycles, "a Collection object is created
// lazily on first reference; its backing table and catalog row are
// materialized on the first write or index creation" (§9 DESIGN NOTES
// "Lazy collection handles"). Registration happens in Collection.register,
// invoked from every write entry point.
func (d *Database) Collection(name string) (*Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.collections[name]; ok {
		return c, nil
	}

	c := &Collection{name: name, table: name, db: d, entry: catalog.NewEntry()}
	d.collections[name] = c
	return c, nil
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}
