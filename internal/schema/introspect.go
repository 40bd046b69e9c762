package schema

import (
	"context"

	"github.com/koustreak/frameload/internal/database"
)

const defaultPgNamespace = "public"

// PgIntrospector implements Introspector for PostgreSQL using pg_catalog.
type PgIntrospector struct {
	q         database.Querier
	namespace string
}

// NewPgIntrospector creates a new Postgres schema introspector
func NewPgIntrospector(q database.Querier, namespace string) *PgIntrospector {
	if namespace == "" {
		namespace = defaultPgNamespace
	}
	return &PgIntrospector{q: q, namespace: namespace}
}

// pgConstraintsQuery pairs conkey[i] with confkey[i] through a multi-argument
// unnest, so a composite foreign key yields one row per column pair and
// never a cross product. confkey is NULL for non-foreign keys, which leaves
// ref_pos NULL on every row. The LEFT JOINs keep rows whose table or
// column lookup fails so they can be reported instead of dropped.
// Expression members of exclusion constraints have attnum 0 and are
// filtered out.
const pgConstraintsQuery = `
	SELECT
		c.conname,
		c.contype::text,
		src.relname,
		sa.attname,
		ref.relname,
		ra.attname
	FROM pg_catalog.pg_constraint c
	JOIN pg_catalog.pg_namespace n
		ON n.oid = c.connamespace
	CROSS JOIN LATERAL unnest(c.conkey, c.confkey)
		WITH ORDINALITY AS k(local_pos, ref_pos, ord)
	LEFT JOIN pg_catalog.pg_class src
		ON src.oid = c.conrelid
	LEFT JOIN pg_catalog.pg_attribute sa
		ON sa.attrelid = c.conrelid AND sa.attnum = k.local_pos
	LEFT JOIN pg_catalog.pg_class ref
		ON ref.oid = c.confrelid
	LEFT JOIN pg_catalog.pg_attribute ra
		ON ra.attrelid = c.confrelid AND ra.attnum = k.ref_pos
	WHERE n.nspname = $1
	  AND c.conrelid <> 0
	  AND (c.contype = 'f' OR k.local_pos <> 0)
	  AND ($2::text = '' OR c.contype::text = $2::text)
	ORDER BY src.relname, c.conname, k.ord`

// ListAllConstraints returns primary key, unique, check, exclusion and
// foreign key constraints of the namespace.
func (p *PgIntrospector) ListAllConstraints(ctx context.Context) ([]Constraint, error) {
	return p.list(ctx, "")
}

// ListForeignKeyConstraints returns the foreign key constraints of the namespace.
func (p *PgIntrospector) ListForeignKeyConstraints(ctx context.Context) ([]Constraint, error) {
	return p.list(ctx, "f")
}

func (p *PgIntrospector) list(ctx context.Context, contype string) ([]Constraint, error) {
	rows, err := p.q.Query(ctx, pgConstraintsQuery, p.namespace, contype)
	if err != nil {
		return nil, introspectionError("list constraints", err)
	}
	defer rows.Close()

	out := make([]Constraint, 0)
	for rows.Next() {
		var (
			name, code          string
			srcTable, srcColumn *string
			refTable, refColumn *string
		)
		if err := rows.Scan(&name, &code, &srcTable, &srcColumn, &refTable, &refColumn); err != nil {
			return nil, introspectionError("scan constraint", err)
		}

		kind, ok := pgKind(code)
		if !ok {
			continue
		}
		if srcTable != nil && srcColumn == nil && kind == KindExclusion {
			// expression member, no column to report
			continue
		}
		if srcTable == nil || srcColumn == nil {
			return nil, inconsistent("constraint %s: constrained table or column not found in catalog", name)
		}

		c := Constraint{
			Name:         name,
			Kind:         kind,
			SourceTable:  *srcTable,
			SourceColumn: *srcColumn,
		}
		if kind == KindForeignKey {
			if refTable == nil || refColumn == nil {
				return nil, inconsistent("constraint %s on %s.%s: referenced table or column not found in catalog",
					name, c.SourceTable, c.SourceColumn)
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

// pgKind maps pg_constraint.contype. Constraint triggers ('t') are skipped.
func pgKind(code string) (Kind, bool) {
	switch code {
	case "f":
		return KindForeignKey, true
	case "p":
		return KindPrimaryKey, true
	case "u":
		return KindUnique, true
	case "c":
		return KindCheck, true
	case "x":
		return KindExclusion, true
	default:
		return "", false
	}
}
