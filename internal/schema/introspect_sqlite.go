package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/frameload/internal/database"
)

const defaultSQLiteNamespace = "main"

// SQLiteIntrospector implements Introspector for SQLite. SQLite has no
// global constraint catalog, so each base table is inspected with the
// pragma table-valued functions. Constraint names are not stored by
// SQLite and are synthesized: "<table>_pkey", "<table>_<cols>_fkey", and
// the backing index name for unique constraints.
type SQLiteIntrospector struct {
	q         database.Querier
	namespace string
}

// NewSQLiteIntrospector creates a new SQLite schema introspector for an
// attached database name ("main" when empty).
func NewSQLiteIntrospector(q database.Querier, namespace string) *SQLiteIntrospector {
	if namespace == "" {
		namespace = defaultSQLiteNamespace
	}
	return &SQLiteIntrospector{q: q, namespace: namespace}
}

// ListAllConstraints returns primary key, unique and foreign key
// constraints. CHECK constraints are not exposed by any pragma.
func (s *SQLiteIntrospector) ListAllConstraints(ctx context.Context) ([]Constraint, error) {
	return s.list(ctx, true)
}

// ListForeignKeyConstraints returns the foreign key constraints of every base table.
func (s *SQLiteIntrospector) ListForeignKeyConstraints(ctx context.Context) ([]Constraint, error) {
	return s.list(ctx, false)
}

func (s *SQLiteIntrospector) list(ctx context.Context, all bool) ([]Constraint, error) {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	// SQLite resolves table names case-insensitively.
	byName := make(map[string]string, len(tables))
	for _, t := range tables {
		byName[strings.ToLower(t)] = t
	}

	out := make([]Constraint, 0)
	pks := make(map[string][]string, len(tables))
	for _, t := range tables {
		pk, err := s.primaryKey(ctx, t)
		if err != nil {
			return nil, err
		}
		pks[t] = pk
	}

	for _, t := range tables {
		if all {
			for _, col := range pks[t] {
				out = append(out, Constraint{
					Name:         t + "_pkey",
					Kind:         KindPrimaryKey,
					SourceTable:  t,
					SourceColumn: col,
				})
			}
			uniques, err := s.uniques(ctx, t)
			if err != nil {
				return nil, err
			}
			out = append(out, uniques...)
		}

		fks, err := s.foreignKeys(ctx, t, byName, pks)
		if err != nil {
			return nil, err
		}
		out = append(out, fks...)
	}
	return out, nil
}

// ListTables returns the base tables of the namespace, excluding views,
// indexes, triggers and SQLite's internal tables.
func (s *SQLiteIntrospector) ListTables(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`
		SELECT name
		FROM %s.sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite\_%%' ESCAPE '\'
		ORDER BY name`, database.DialectSQLite.QuoteIdent(s.namespace))

	rows, err := s.q.Query(ctx, q)
	if err != nil {
		return nil, introspectionError("list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, introspectionError("scan table name", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, introspectionError("iterate tables", err)
	}
	return tables, nil
}

// primaryKey returns the primary key columns of table in key order.
func (s *SQLiteIntrospector) primaryKey(ctx context.Context, table string) ([]string, error) {
	const q = `
		SELECT name
		FROM pragma_table_info(?, ?)
		WHERE pk > 0
		ORDER BY pk`

	return s.queryColumn(ctx, "table info "+table, q, table, s.namespace)
}

// uniques returns UNIQUE constraints of table, one entry per column,
// named after the index SQLite created for them.
func (s *SQLiteIntrospector) uniques(ctx context.Context, table string) ([]Constraint, error) {
	const q = `
		SELECT name
		FROM pragma_index_list(?, ?)
		WHERE origin = 'u'
		ORDER BY name`

	indexes, err := s.queryColumn(ctx, "index list "+table, q, table, s.namespace)
	if err != nil {
		return nil, err
	}

	const cols = `
		SELECT name
		FROM pragma_index_info(?, ?)
		ORDER BY seqno`

	var out []Constraint
	for _, idx := range indexes {
		names, err := s.queryColumn(ctx, "index info "+idx, cols, idx, s.namespace)
		if err != nil {
			return nil, err
		}
		for _, col := range names {
			out = append(out, Constraint{
				Name:         idx,
				Kind:         KindUnique,
				SourceTable:  table,
				SourceColumn: col,
			})
		}
	}
	return out, nil
}

type sqliteFKRow struct {
	id    int64
	table string
	from  string
	to    *string
}

// foreignKeys returns the foreign key column pairs of table. A foreign key
// declared without referenced columns targets the referenced table's
// primary key, matched by position.
func (s *SQLiteIntrospector) foreignKeys(
	ctx context.Context,
	table string,
	byName map[string]string,
	pks map[string][]string,
) ([]Constraint, error) {
	const q = `
		SELECT id, seq, "table", "from", "to"
		FROM pragma_foreign_key_list(?, ?)
		ORDER BY id, seq`

	rows, err := s.q.Query(ctx, q, table, s.namespace)
	if err != nil {
		return nil, introspectionError("foreign key list "+table, err)
	}

	var ids []int64
	groups := make(map[int64][]sqliteFKRow)
	for rows.Next() {
		var (
			r   sqliteFKRow
			seq int64
		)
		if err := rows.Scan(&r.id, &seq, &r.table, &r.from, &r.to); err != nil {
			rows.Close()
			return nil, introspectionError("scan foreign key", err)
		}
		if _, ok := groups[r.id]; !ok {
			ids = append(ids, r.id)
		}
		groups[r.id] = append(groups[r.id], r)
	}
	iterErr := rows.Err()
	rows.Close()
	if iterErr != nil {
		return nil, introspectionError("iterate foreign keys", iterErr)
	}

	out := make([]Constraint, 0, len(ids))
	for _, id := range ids {
		group := groups[id]

		refTable, ok := byName[strings.ToLower(group[0].table)]
		if !ok {
			return nil, inconsistent("foreign key on %s(%s) references unknown table %q",
				table, group[0].from, group[0].table)
		}

		cols := make([]string, len(group))
		for i, r := range group {
			cols[i] = r.from
		}
		name := fmt.Sprintf("%s_%s_fkey", table, strings.Join(cols, "_"))

		for i, r := range group {
			refCol := ""
			switch {
			case r.to != nil && *r.to != "":
				refCol = *r.to
			case i < len(pks[refTable]):
				refCol = pks[refTable][i]
			default:
				return nil, inconsistent("foreign key %s: cannot resolve referenced column %d of %s",
					name, i+1, refTable)
			}

			out = append(out, Constraint{
				Name:             name,
				Kind:             KindForeignKey,
				SourceTable:      table,
				SourceColumn:     r.from,
				ReferencedTable:  refTable,
				ReferencedColumn: refCol,
			})
		}
	}
	return out, nil
}

// queryColumn runs a single-column query and collects the results.
func (s *SQLiteIntrospector) queryColumn(ctx context.Context, what, q string, args ...any) ([]string, error) {
	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, introspectionError(what, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, introspectionError(what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, introspectionError(what, err)
	}
	return out, nil
}
