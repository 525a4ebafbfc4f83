package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    2,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrator_Run(t *testing.T) {
	db := newDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	fsys := fstest.MapFS{
		"0002_add_column.sql": {Data: []byte("ALTER TABLE things ADD COLUMN note TEXT;")},
		"0001_init.sql":       {Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY);")},
	}
	require.NoError(t, migrator.Run(fsys))

	// Version order, not lexical file-walk order, decided execution: the
	// ALTER only works because init ran first
	_, err := db.Exec("INSERT INTO things (note) VALUES ('hello')")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrator_RunIsIdempotent(t *testing.T) {
	db := newDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	fsys := fstest.MapFS{
		"0001_init.sql": {Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY);")},
	}
	require.NoError(t, migrator.Run(fsys))
	// Re-running must skip the applied migration instead of failing on the
	// existing table
	require.NoError(t, migrator.Run(fsys))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	db := newDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	fsys := fstest.MapFS{
		"0001_broken.sql": {Data: []byte("CREATE TABLE nope (id INTEGER PRIMARY KEY; -- malformed")},
	}
	require.Error(t, migrator.Run(fsys))

	// The bookkeeping row must not exist for the failed migration
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestMigrator_InvalidFilename(t *testing.T) {
	db := newDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	fsys := fstest.MapFS{
		"init.sql": {Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY);")},
	}
	assert.Error(t, migrator.Run(fsys))
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := newDB(t)
	_, err := db.Exec("CREATE TABLE things (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	wantErr := assert.AnError
	err = db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO things (id) VALUES (1)"); err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM things").Scan(&count))
	assert.Equal(t, 0, count, "the insert must have been rolled back")
}
