package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/koustreak/frameload/internal/database"
	"github.com/koustreak/frameload/internal/database/sqlconn"
	"github.com/koustreak/frameload/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ database.DB = (*sqlconn.DB)(nil)

func openTestDB(t *testing.T) database.DB {
	t.Helper()
	cfg := database.DefaultConfig(database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	db, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain path", "data.db", "data.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"existing query", "file:data.db?mode=rwc", "file:data.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"caller pragmas kept", "data.db?_pragma=foreign_keys(0)&_pragma=busy_timeout(10)", "data.db?_pragma=foreign_keys(0)&_pragma=busy_timeout(10)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.in))
		})
	}
}

func TestClassifyCode(t *testing.T) {
	assert.Equal(t, errs.ErrKindConstraintViolation, classifyCode(sqlite3.SQLITE_CONSTRAINT))
	assert.Equal(t, errs.ErrKindConstraintViolation, classifyCode(sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY))
	assert.Equal(t, errs.ErrKindTimeout, classifyCode(sqlite3.SQLITE_BUSY))
	assert.Equal(t, errs.ErrKindPermissionDenied, classifyCode(sqlite3.SQLITE_READONLY))
	assert.Equal(t, errs.ErrKindQueryFailed, classifyCode(sqlite3.SQLITE_ERROR))
}

func TestNewRejectsEmptyDSN(t *testing.T) {
	_, err := New(context.Background(), &database.Config{Driver: database.DriverSQLite})
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestForeignKeysEnforced(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, `CREATE TABLE parent (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id))`)
	require.NoError(t, err)

	_, err = db.Exec(ctx, `INSERT INTO child (parent_id) VALUES (42)`)
	require.Error(t, err)
	assert.True(t, errs.IsConstraintViolation(err))
}

func TestExecReportsLastInsertID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, `CREATE TABLE item (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	res, err := db.Exec(ctx, `INSERT INTO item (name) VALUES (?)`, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, int64(1), res.LastInsertID)
}

func TestReturningAndRowNotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, `CREATE TABLE item (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	var id int64
	require.NoError(t, db.QueryRow(ctx, `INSERT INTO item (name) VALUES (?) RETURNING id`, "a").Scan(&id))
	assert.Equal(t, int64(1), id)

	var name string
	err = db.QueryRow(ctx, `SELECT name FROM item WHERE id = ?`, 99).Scan(&name)
	assert.True(t, errs.IsNotFound(err))
}

func TestWithTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(ctx, `CREATE TABLE item (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	err = database.WithTx(ctx, db, func(ctx context.Context, tx database.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO item (name) VALUES (?)`, "a"); err != nil {
			return err
		}
		return errs.New(errs.ErrKindInvalidInput, "abort")
	})
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow(ctx, `SELECT count(*) FROM item`).Scan(&n))
	assert.Equal(t, 0, n)
}
