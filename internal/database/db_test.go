package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: ProfileStandard,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE items (id TEXT PRIMARY KEY, qty INTEGER NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countItems(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n))
	return n
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db := testDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO items (id, qty) VALUES ('a', 1)`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, db))
}

func TestWithTransaction_RollsBackEveryWriteOnError(t *testing.T) {
	db := testDB(t)

	failure := errors.New("dependent write failed")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO items (id, qty) VALUES ('a', 1)`); err != nil {
			return err
		}
		return failure
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
	// The first insert must not survive the failed second step
	assert.Equal(t, 0, countItems(t, db))
}

func TestWALCheckpoint(t *testing.T) {
	db := testDB(t)

	_, err := db.Exec(`INSERT INTO items (id, qty) VALUES ('a', 1)`)
	require.NoError(t, err)

	require.NoError(t, db.WALCheckpoint("TRUNCATE"))
	assert.Equal(t, 1, countItems(t, db))
}

func TestHealthCheck(t *testing.T) {
	db := testDB(t)
	assert.NoError(t, db.HealthCheck(context.Background()))
}
