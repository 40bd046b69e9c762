package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/frameload/internal/errs"
)

// Dialect controls placeholder style, identifier quoting and whether
// INSERT ... RETURNING is available.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders and "double quoted" identifiers.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and `backtick` identifiers.
	DialectMySQL

	// DialectSQLite uses ? placeholders and "double quoted" identifiers.
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite"
	default:
		return "postgres"
	}
}

// Placeholder returns the parameter marker for the idx-th (1-based) argument.
func (d Dialect) Placeholder(idx int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", idx)
	}
	return "?"
}

// QuoteIdent quotes a SQL identifier, escaping embedded quote characters.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SupportsReturning reports whether INSERT ... RETURNING can hand back
// generated values in the same round trip.
func (d Dialect) SupportsReturning() bool {
	return d != DialectMySQL
}

func (d Dialect) quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// InsertBuilder constructs a parameterized single-row INSERT.
// Values are never interpolated into the SQL string; they are always passed as args.
//
// Usage (Postgres):
//
//	sql, args, err := Insert("region", DialectPostgres).
//	    Columns("name", "parent").
//	    Values("north", nil).
//	    Returning("id").
//	    Build()
type InsertBuilder struct {
	table     string
	dialect   Dialect
	columns   []string
	values    []any
	returning []string
}

// Insert starts a new InsertBuilder for the given table and dialect.
func Insert(table string, d Dialect) *InsertBuilder {
	return &InsertBuilder{table: table, dialect: d}
}

// Columns sets the inserted column list.
func (b *InsertBuilder) Columns(cols ...string) *InsertBuilder {
	b.columns = cols
	return b
}

// Values sets the values, positionally matching Columns.
func (b *InsertBuilder) Values(vals ...any) *InsertBuilder {
	b.values = vals
	return b
}

// Returning asks for the given columns of the inserted row back.
// Ignored by dialects without RETURNING support.
func (b *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	b.returning = cols
	return b
}

// Build produces the final SQL string and argument slice.
func (b *InsertBuilder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "insert: empty table name")
	}
	if len(b.columns) != len(b.values) {
		return "", nil, errs.Newf(errs.ErrKindInvalidInput,
			"insert into %s: %d columns but %d values", b.table, len(b.columns), len(b.values))
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.dialect.QuoteIdent(b.table))

	switch {
	case len(b.columns) > 0:
		marks := make([]string, len(b.values))
		for i := range b.values {
			marks[i] = b.dialect.Placeholder(i + 1)
		}
		sb.WriteString(" (")
		sb.WriteString(b.dialect.quoteAll(b.columns))
		sb.WriteString(") VALUES (")
		sb.WriteString(strings.Join(marks, ", "))
		sb.WriteString(")")
	case b.dialect == DialectMySQL:
		sb.WriteString(" () VALUES ()")
	default:
		sb.WriteString(" DEFAULT VALUES")
	}

	if len(b.returning) > 0 && b.dialect.SupportsReturning() {
		sb.WriteString(" RETURNING ")
		sb.WriteString(b.dialect.quoteAll(b.returning))
	}

	return sb.String(), b.values, nil
}

// UpdateBuilder constructs a parameterized UPDATE with equality predicates.
//
//	sql, args, err := Update("region", DialectSQLite).
//	    Set("parent", 1).
//	    Where("id", 2).
//	    Build()
type UpdateBuilder struct {
	table   string
	dialect Dialect
	set     []assignment
	where   []assignment
}

type assignment struct {
	column string
	value  any
}

// Update starts a new UpdateBuilder for the given table and dialect.
func Update(table string, d Dialect) *UpdateBuilder {
	return &UpdateBuilder{table: table, dialect: d}
}

// Set adds a column assignment.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.set = append(b.set, assignment{column, value})
	return b
}

// Where adds an equality predicate. Multiple calls are combined with AND.
func (b *UpdateBuilder) Where(column string, value any) *UpdateBuilder {
	b.where = append(b.where, assignment{column, value})
	return b
}

// Build produces the final SQL string and argument slice. An UPDATE without
// a WHERE clause is refused: the loader only ever targets single rows.
func (b *UpdateBuilder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "update: empty table name")
	}
	if len(b.set) == 0 {
		return "", nil, errs.Newf(errs.ErrKindInvalidInput, "update %s: no assignments", b.table)
	}
	if len(b.where) == 0 {
		return "", nil, errs.Newf(errs.ErrKindInvalidInput, "update %s: missing WHERE clause", b.table)
	}

	args := make([]any, 0, len(b.set)+len(b.where))
	argIdx := 1

	sets := make([]string, len(b.set))
	for i, a := range b.set {
		sets[i] = fmt.Sprintf("%s = %s", b.dialect.QuoteIdent(a.column), b.dialect.Placeholder(argIdx))
		args = append(args, a.value)
		argIdx++
	}

	preds := make([]string, len(b.where))
	for i, a := range b.where {
		preds[i] = fmt.Sprintf("%s = %s", b.dialect.QuoteIdent(a.column), b.dialect.Placeholder(argIdx))
		args = append(args, a.value)
		argIdx++
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		b.dialect.QuoteIdent(b.table),
		strings.Join(sets, ", "),
		strings.Join(preds, " AND "),
	)
	return sql, args, nil
}

// SelectWhere builds "SELECT cols FROM table WHERE k1 = ? AND ..." for
// reading back generated columns of a row located by its primary key.
func SelectWhere(table string, d Dialect, cols []string, keys []string, keyVals []any) (string, []any, error) {
	if len(cols) == 0 || len(keys) == 0 || len(keys) != len(keyVals) {
		return "", nil, errs.Newf(errs.ErrKindInvalidInput, "select from %s: bad column or key list", table)
	}
	preds := make([]string, len(keys))
	for i, k := range keys {
		preds[i] = fmt.Sprintf("%s = %s", d.QuoteIdent(k), d.Placeholder(i+1))
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		d.quoteAll(cols), d.QuoteIdent(table), strings.Join(preds, " AND "))
	return sql, keyVals, nil
}
