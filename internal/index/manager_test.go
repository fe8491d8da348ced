package index

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/plumedoc/internal/catalog"
)

func openTestTable(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE actors(id INTEGER PRIMARY KEY AUTOINCREMENT, _data BLOB NOT NULL)`)
	require.NoError(t, err)
	return db
}

func insertActor(t *testing.T, db *sql.DB, jsonData string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO actors(_data) VALUES (?)`, jsonData)
	require.NoError(t, err)
}

func TestCreateAddsShadowColumnAndBackfills(t *testing.T) {
	db := openTestTable(t)
	insertActor(t, db, `{"name":"Ford Prefect","age":200}`)
	insertActor(t, db, `{"name":"Zaphod"}`)

	entry := catalog.NewEntry()
	keys := []catalog.IndexKey{{Field: "name", Type: catalog.Text, Direction: catalog.Ascending}}

	def, changed, err := Create(context.Background(), db, "actors", entry, keys, "")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "actors_index_name", def.Name)
	assert.True(t, entry.HasField("name"))

	var name1, name2 string
	require.NoError(t, db.QueryRow(`SELECT "name" FROM actors WHERE id = 1`).Scan(&name1))
	require.NoError(t, db.QueryRow(`SELECT "name" FROM actors WHERE id = 2`).Scan(&name2))
	assert.Equal(t, "Ford Prefect", name1)
	assert.Equal(t, "Zaphod", name2)
}

func TestCreateBackfillsNullForAbsentField(t *testing.T) {
	db := openTestTable(t)
	insertActor(t, db, `{"name":"Zaphod"}`)

	entry := catalog.NewEntry()
	keys := []catalog.IndexKey{{Field: "age", Type: catalog.Integer, Direction: catalog.Ascending}}

	_, _, err := Create(context.Background(), db, "actors", entry, keys, "")
	require.NoError(t, err)

	var age sql.NullInt64
	require.NoError(t, db.QueryRow(`SELECT "age" FROM actors WHERE id = 1`).Scan(&age))
	assert.False(t, age.Valid)
}

func TestCreateIsNoOpForSameKeySet(t *testing.T) {
	db := openTestTable(t)
	entry := catalog.NewEntry()
	keys := []catalog.IndexKey{{Field: "name", Type: catalog.Text, Direction: catalog.Ascending}}

	_, changed1, err := Create(context.Background(), db, "actors", entry, keys, "")
	require.NoError(t, err)
	assert.True(t, changed1)

	_, changed2, err := Create(context.Background(), db, "actors", entry, keys, "")
	require.NoError(t, err)
	assert.False(t, changed2)
	assert.Len(t, entry.Indexes, 1)
}

func TestCreateReordersAreDistinctIndexes(t *testing.T) {
	db := openTestTable(t)
	entry := catalog.NewEntry()

	_, _, err := Create(context.Background(), db, "actors", entry, []catalog.IndexKey{
		{Field: "name", Type: catalog.Text, Direction: catalog.Ascending},
		{Field: "age", Type: catalog.Integer, Direction: catalog.Ascending},
	}, "")
	require.NoError(t, err)

	_, changed, err := Create(context.Background(), db, "actors", entry, []catalog.IndexKey{
		{Field: "age", Type: catalog.Integer, Direction: catalog.Ascending},
		{Field: "name", Type: catalog.Text, Direction: catalog.Ascending},
	}, "")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, entry.Indexes, 2)
	assert.Equal(t, []string{"name", "age"}, entry.IndexedFields)
}

func TestGenerateNameJoinsFieldPaths(t *testing.T) {
	name := GenerateName("actors", []catalog.IndexKey{
		{Field: "name", Type: catalog.Text},
		{Field: "profile.age", Type: catalog.Integer},
	})
	assert.Equal(t, "actors_index_name_profile.age", name)
}
