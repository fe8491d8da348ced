package planner

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/plumedoc/internal/query"
)

func openActorsTable(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planner.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE actors(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		_data BLOB NOT NULL,
		"age" INTEGER,
		"name" TEXT
	)`)
	require.NoError(t, err)

	insert := func(data, name string, age int64) {
		_, err := db.Exec(`INSERT INTO actors(_data, "age", "name") VALUES (?, ?, ?)`, data, age, name)
		require.NoError(t, err)
	}
	insert(`{"name":"Ford","age":200}`, "Ford", 200)
	insert(`{"name":"Zaphod","age":25}`, "Zaphod", 25)
	insert(`{"name":"Trillian","age":30}`, "Trillian", 30)
	return db
}

func mustParse(t *testing.T, q map[string]any) query.Predicate {
	t.Helper()
	p, err := query.Parse(q)
	require.NoError(t, err)
	return p
}

func TestSelectFullScanWithComparison(t *testing.T) {
	db := openActorsTable(t)
	pred := mustParse(t, map[string]any{"age": map[string]any{"$gt": int64(25)}})

	docs, err := Select(context.Background(), db, "actors", query.IndexSet{}, Query{Predicate: pred})
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestSelectPushesDownIndexedComparison(t *testing.T) {
	db := openActorsTable(t)
	pred := mustParse(t, map[string]any{"age": map[string]any{"$gt": int64(25)}})
	indexed := query.IndexSet{"age": true}

	docs, err := Select(context.Background(), db, "actors", indexed, Query{Predicate: pred})
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestSelectIndexOnlyPlanReconstructsFromShadowColumns(t *testing.T) {
	db := openActorsTable(t)
	pred := mustParse(t, map[string]any{"age": map[string]any{"$gt": int64(25)}})
	proj, err := query.ParseProjection(map[string]any{"name": 1})
	require.NoError(t, err)
	indexed := query.IndexSet{"age": true, "name": true}

	docs, err := Select(context.Background(), db, "actors", indexed, Query{Predicate: pred, Projection: proj})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, 1, d.Len())
		name, ok := d.Get("name")
		assert.True(t, ok)
		assert.Contains(t, []string{"Ford", "Trillian"}, name)
	}
}

func TestSelectFallsBackToFullScanWhenProjectionFieldNotIndexed(t *testing.T) {
	db := openActorsTable(t)
	pred := mustParse(t, map[string]any{"age": map[string]any{"$gt": int64(25)}})
	proj, err := query.ParseProjection(map[string]any{"name": 1})
	require.NoError(t, err)
	indexed := query.IndexSet{"age": true}

	docs, err := Select(context.Background(), db, "actors", indexed, Query{Predicate: pred, Projection: proj})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, 1, d.Len())
	}
}

func TestSelectMixedOrFallsBackToResidualMatch(t *testing.T) {
	db := openActorsTable(t)
	pred := mustParse(t, map[string]any{"$or": []any{
		map[string]any{"age": int64(200)},
		map[string]any{"name": "Trillian"},
	}})
	indexed := query.IndexSet{"age": true}

	docs, err := Select(context.Background(), db, "actors", indexed, Query{Predicate: pred})
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestSelectRespectsLimit(t *testing.T) {
	db := openActorsTable(t)
	pred := mustParse(t, map[string]any{})

	docs, err := Select(context.Background(), db, "actors", query.IndexSet{}, Query{Predicate: pred, Limit: 1})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestSelectLimitWithResidualStillScansEnough(t *testing.T) {
	db := openActorsTable(t)
	pred := mustParse(t, map[string]any{"$or": []any{
		map[string]any{"age": int64(200)},
		map[string]any{"name": "Trillian"},
	}})

	docs, err := Select(context.Background(), db, "actors", query.IndexSet{}, Query{Predicate: pred, Limit: 1})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}
