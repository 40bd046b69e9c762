// Package schema discovers table constraints from a live database.
//
// Three backends produce the same []Constraint shape:
//
//   - PgIntrospector reads the PostgreSQL system catalog in one query,
//     expanding the constraint column arrays position by position.
//   - SQLiteIntrospector enumerates base tables from sqlite_master and asks
//     the table-scoped pragma functions about each one.
//   - MySQLIntrospector reads information_schema, which is already one row
//     per column pair with an explicit ordinal position.
//
// Connection or query failures are reported as errs.ErrKindIntrospection.
// Metadata that refers to a table or column that cannot be resolved is
// reported as errs.ErrKindSchemaInconsistency.
package schema

import (
	"context"
	"slices"

	"github.com/koustreak/frameload/internal/database"
	"github.com/koustreak/frameload/internal/errs"
)

// Introspector lists the constraints of one schema (namespace).
type Introspector interface {
	// ListAllConstraints returns every supported constraint kind.
	ListAllConstraints(ctx context.Context) ([]Constraint, error)

	// ListForeignKeyConstraints returns only KindForeignKey entries.
	ListForeignKeyConstraints(ctx context.Context) ([]Constraint, error)
}

// New returns the introspector matching q's dialect. An empty namespace
// selects the backend default ("public", "main", or the current database).
func New(q database.Querier, namespace string) Introspector {
	switch q.Dialect() {
	case database.DialectSQLite:
		return NewSQLiteIntrospector(q, namespace)
	case database.DialectMySQL:
		return NewMySQLIntrospector(q, namespace)
	default:
		return NewPgIntrospector(q, namespace)
	}
}

// Catalog indexes a constraint list by table.
type Catalog struct {
	primary map[string][]string
	foreign map[string][]Constraint
}

// NewCatalog builds a Catalog from cs.
func NewCatalog(cs []Constraint) *Catalog {
	c := &Catalog{
		primary: make(map[string][]string),
		foreign: make(map[string][]Constraint),
	}
	for _, con := range cs {
		switch con.Kind {
		case KindPrimaryKey:
			if !slices.Contains(c.primary[con.SourceTable], con.SourceColumn) {
				c.primary[con.SourceTable] = append(c.primary[con.SourceTable], con.SourceColumn)
			}
		case KindForeignKey:
			c.foreign[con.SourceTable] = append(c.foreign[con.SourceTable], con)
		}
	}
	return c
}

// PrimaryKey returns the primary key columns of table in key order, or nil.
func (c *Catalog) PrimaryKey(table string) []string {
	return c.primary[table]
}

// ForeignKeys returns the foreign key column pairs declared on table.
func (c *Catalog) ForeignKeys(table string) []Constraint {
	return c.foreign[table]
}

func introspectionError(msg string, err error) error {
	return errs.Wrap(errs.ErrKindIntrospection, msg, err)
}

func inconsistent(format string, args ...any) error {
	return errs.Newf(errs.ErrKindSchemaInconsistency, format, args...)
}
