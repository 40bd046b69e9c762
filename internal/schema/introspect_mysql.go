package schema

import (
	"context"

	"github.com/koustreak/frameload/internal/database"
)

// MySQLIntrospector implements Introspector for MySQL using
// information_schema. key_column_usage already carries one row per column
// pair with its ordinal position, so no array expansion is needed.
type MySQLIntrospector struct {
	q        database.Querier
	database string
}

// NewMySQLIntrospector creates a new MySQL schema introspector. In MySQL a
// schema is a database; an empty name means the connection's current one.
func NewMySQLIntrospector(q database.Querier, schema string) *MySQLIntrospector {
	return &MySQLIntrospector{q: q, database: schema}
}

const mysqlConstraintsQuery = `
	SELECT
		tc.constraint_name,
		tc.constraint_type,
		kcu.table_name,
		kcu.column_name,
		kcu.referenced_table_name,
		kcu.referenced_column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_schema = tc.constraint_schema
		AND kcu.constraint_name = tc.constraint_name
		AND kcu.table_name = tc.table_name
	WHERE tc.table_schema = COALESCE(NULLIF(?, ''), DATABASE())
	  AND (? = '' OR tc.constraint_type = ?)
	ORDER BY kcu.table_name, tc.constraint_name, kcu.ordinal_position`

// ListAllConstraints returns primary key, unique and foreign key
// constraints. CHECK constraints have no key_column_usage rows.
func (m *MySQLIntrospector) ListAllConstraints(ctx context.Context) ([]Constraint, error) {
	return m.list(ctx, "")
}

// ListForeignKeyConstraints returns the foreign key constraints of the database.
func (m *MySQLIntrospector) ListForeignKeyConstraints(ctx context.Context) ([]Constraint, error) {
	return m.list(ctx, "FOREIGN KEY")
}

func (m *MySQLIntrospector) list(ctx context.Context, constraintType string) ([]Constraint, error) {
	rows, err := m.q.Query(ctx, mysqlConstraintsQuery, m.database, constraintType, constraintType)
	if err != nil {
		return nil, introspectionError("list constraints", err)
	}
	defer rows.Close()

	out := make([]Constraint, 0)
	for rows.Next() {
		var (
			name, typ, table, column string
			refTable, refColumn      *string
		)
		if err := rows.Scan(&name, &typ, &table, &column, &refTable, &refColumn); err != nil {
			return nil, introspectionError("scan constraint", err)
		}

		kind, ok := mysqlKind(typ)
		if !ok {
			continue
		}
		c := Constraint{Name: name, Kind: kind, SourceTable: table, SourceColumn: column}
		if kind == KindForeignKey {
			if refTable == nil || refColumn == nil || *refTable == "" || *refColumn == "" {
				return nil, inconsistent("constraint %s on %s.%s: referenced table or column missing",
					name, table, column)
			}
			c.ReferencedTable = *refTable
			c.ReferencedColumn = *refColumn
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, introspectionError("iterate constraints", err)
	}
	return out, nil
}

func mysqlKind(typ string) (Kind, bool) {
	switch typ {
	case "FOREIGN KEY":
		return KindForeignKey, true
	case "PRIMARY KEY":
		return KindPrimaryKey, true
	case "UNIQUE":
		return KindUnique, true
	case "CHECK":
		return KindCheck, true
	default:
		return "", false
	}
}
