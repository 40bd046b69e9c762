package database

import "context"

// Querier runs read statements. Schema introspection only needs this much,
// so it works equally against a pool and an open transaction.
type Querier interface {
	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	// Errors are deferred to Row.Scan.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Dialect reports which SQL flavour statements must be written in.
	Dialect() Dialect
}

// Executor runs reads and writes.
type Executor interface {
	Querier

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) (Result, error)
}

// DB is a pooled connection to one database. All layers above this package
// talk only to this interface; they never import a driver package directly.
type DB interface {
	Executor

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the connection pool.
	Close()

	// Begin starts a transaction.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is an open transaction. It is not safe for concurrent use.
type Tx interface {
	Executor

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Result describes the outcome of Exec.
type Result struct {
	RowsAffected int64

	// LastInsertID is the auto-increment value generated by an INSERT on
	// backends that report one (MySQL, SQLite). Zero otherwise.
	LastInsertID int64
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}
