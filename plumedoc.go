// Package plumedoc is a minimal public API for a schemaless document
// store layered over a single-file SQL engine.
//
// Collections store JSON-like documents keyed by an auto-incrementing
// row id; predicate and projection maps use the same shape as a
// MongoDB-style query. create_index materializes a dot-path field into a
// typed shadow column so later queries over it compile to SQL instead of
// a full scan.
package plumedoc

import (
	"context"

	"github.com/untoldecay/plumedoc/internal/catalog"
	"github.com/untoldecay/plumedoc/internal/doc"
	"github.com/untoldecay/plumedoc/internal/query"
	"github.com/untoldecay/plumedoc/internal/store"
)

// M is a convenience alias for predicate, projection, and document literals.
type M = map[string]any

// Document is an ordered, JSON-compatible value tree.
type Document = doc.Document

// NewDocument returns an empty Document.
func NewDocument() *Document {
	return doc.New()
}

// DocumentFromMap builds a Document from an M, assigning keys in the
// order iterated. Callers that need a stable field order should build the
// Document with repeated Set calls instead.
func DocumentFromMap(m M) *Document {
	d := doc.New()
	for k, v := range m {
		d.Set(k, v)
	}
	return d
}

// SQLType is the shadow-column type a create_index key materializes as.
type SQLType = catalog.SQLType

const (
	Text    = catalog.Text
	Integer = catalog.Integer
	Real    = catalog.Real
)

// IndexKey is one (field path, SQL type, direction) triple passed to
// CreateIndex; an empty direction defaults to ascending.
type IndexKey = catalog.IndexKey

// IndexDefinition is a named, ordered list of index keys, as recorded in
// the catalog after CreateIndex succeeds.
type IndexDefinition = catalog.IndexDefinition

// BadQuery is returned when a predicate map uses an unknown or
// structurally invalid operator.
type BadQuery = query.BadQueryError

// BadProjection is returned when a projection map mixes inclusion and
// exclusion entries, or maps a field to something other than 0 or 1.
type BadProjection = query.BadProjectionError

// Database is a handle on one backing SQLite file and its collections.
type Database struct {
	inner *store.Database
}

// Open opens (creating if absent) the single-file database at path.
func Open(path string) (*Database, error) {
	inner, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return &Database{inner: inner}, nil
}

// Close releases the database's underlying connection.
func (d *Database) Close() error {
	return d.inner.Close()
}

// Collection returns a handle on the named collection. It does not touch
// the backing store; the collection is registered on its first write or
// index creation.
func (d *Database) Collection(name string) (*Collection, error) {
	inner, err := d.inner.Collection(name)
	if err != nil {
		return nil, err
	}
	return &Collection{inner: inner}, nil
}

// Collection is one document collection, registered or not yet registered.
type Collection struct {
	inner *store.Collection
}

// Name returns the collection's name.
func (c *Collection) Name() string {
	return c.inner.Name()
}

// InsertOne inserts d and returns its assigned row id.
func (c *Collection) InsertOne(ctx context.Context, d *Document) (int64, error) {
	return c.inner.InsertOne(ctx, d)
}

// InsertMany inserts every document in docs in a single transaction,
// returning their assigned ids in order.
func (c *Collection) InsertMany(ctx context.Context, docs []*Document) ([]int64, error) {
	return c.inner.InsertMany(ctx, docs)
}

// Find returns every document matching predicate, after applying
// projection (nil for none) and limit (0 for unlimited).
func (c *Collection) Find(ctx context.Context, predicate, projection M, limit int) ([]*Document, error) {
	return c.inner.Find(ctx, predicate, projection, limit)
}

// FindOne returns the first document matching predicate, if any.
func (c *Collection) FindOne(ctx context.Context, predicate, projection M) (*Document, bool, error) {
	return c.inner.FindOne(ctx, predicate, projection)
}

// ReplaceOne replaces the first document matching predicate with
// replacement, returning its row id. If no document matches and upsert
// is true, replacement is inserted instead and upserted reports true.
func (c *Collection) ReplaceOne(ctx context.Context, predicate M, replacement *Document, upsert bool) (id int64, upserted bool, err error) {
	return c.inner.ReplaceOne(ctx, predicate, replacement, upsert)
}

// CreateIndex materializes shadow columns and a SQL index for keys. An
// empty name has one generated from the key field paths. If an index
// over the exact same ordered key list already exists, this is a no-op.
func (c *Collection) CreateIndex(ctx context.Context, keys []IndexKey, name string) (IndexDefinition, bool, error) {
	return c.inner.CreateIndex(ctx, keys, name)
}
