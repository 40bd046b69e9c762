// Package sqlconn adapts a database/sql pool to database.DB. The MySQL and
// SQLite drivers share it and differ only in dialect and error mapping.
package sqlconn

import (
	"context"
	"database/sql"

	"github.com/koustreak/frameload/internal/database"
	"github.com/koustreak/frameload/internal/errs"
)

// ErrorMapper translates a native driver error into *errs.Error.
// It is never called with a nil error.
type ErrorMapper func(err error, msg string) *errs.Error

// DB is a database.DB over *sql.DB.
// It is safe for concurrent use by multiple goroutines.
type DB struct {
	db      *sql.DB
	dialect database.Dialect
	mapErr  ErrorMapper
}

// New wraps an already opened pool.
func New(db *sql.DB, dialect database.Dialect, mapErr ErrorMapper) *DB {
	return &DB{db: db, dialect: dialect, mapErr: mapErr}
}

// Configure applies pool tuning from cfg. Zero values leave the
// database/sql defaults in place.
func Configure(db *sql.DB, cfg *database.Config) {
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(int(cfg.MinConns))
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	if cfg.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}
}

func (d *DB) Dialect() database.Dialect { return d.dialect }

func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return d.mapErr(err, "ping failed")
	}
	return nil
}

func (d *DB) Close() {
	_ = d.db.Close()
}

func (d *DB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, d.mapErr(err, "query failed")
	}
	return &sqlRows{rows: rows, mapErr: d.mapErr}, nil
}

func (d *DB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &sqlRow{row: d.db.QueryRowContext(ctx, query, args...), mapErr: d.mapErr}
}

func (d *DB) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return database.Result{}, d.mapErr(err, "exec failed")
	}
	return result(res), nil
}

func (d *DB) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, d.mapErr(err, "begin failed")
	}
	return &sqlTx{tx: tx, dialect: d.dialect, mapErr: d.mapErr}, nil
}

// result reads what the driver reports. Drivers that cannot produce one of
// the numbers return an error for it, which is treated as zero.
func result(res sql.Result) database.Result {
	var out database.Result
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out
}

// --- *sql.Tx wrapper ---

type sqlTx struct {
	tx      *sql.Tx
	dialect database.Dialect
	mapErr  ErrorMapper
}

func (t *sqlTx) Dialect() database.Dialect { return t.dialect }

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, t.mapErr(err, "query failed")
	}
	return &sqlRows{rows: rows, mapErr: t.mapErr}, nil
}

func (t *sqlTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &sqlRow{row: t.tx.QueryRowContext(ctx, query, args...), mapErr: t.mapErr}
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return database.Result{}, t.mapErr(err, "exec failed")
	}
	return result(res), nil
}

func (t *sqlTx) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return t.mapErr(err, "commit failed")
	}
	return nil
}

func (t *sqlTx) Rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return t.mapErr(err, "rollback failed")
	}
	return nil
}

// --- *sql.Rows / *sql.Row wrappers ---

type sqlRows struct {
	rows   *sql.Rows
	mapErr ErrorMapper
}

func (r *sqlRows) Next() bool { return r.rows.Next() }
func (r *sqlRows) Close()     { _ = r.rows.Close() }

func (r *sqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return r.mapErr(err, "scan failed")
	}
	return nil
}

func (r *sqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return r.mapErr(err, "row iteration failed")
	}
	return nil
}

type sqlRow struct {
	row    *sql.Row
	mapErr ErrorMapper
}

func (r *sqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return r.mapErr(err, "scan failed")
	}
	return nil
}
