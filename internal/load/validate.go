package load

import (
	"fmt"
	"strings"

	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/plan"
	"github.com/koustreak/frameload/internal/resolve"
)

// validate checks every temporary identifier before anything is written:
// a row's own id is unique within its table, each reference must name a
// row of the referenced table, and temporary ids may only appear in key
// or foreign key columns. A column shared by foreign keys into different
// loaded targets takes real values only.
func validate(p *plan.Plan, rows map[string][]Row) error {
	own := make(map[string]map[resolve.TempID]bool, len(rows))
	for _, tp := range p.Tables {
		ids := make(map[resolve.TempID]bool)
		for _, r := range rows[tp.Table] {
			// one row may repeat its id across several key columns
			carried := make(map[resolve.TempID]bool)
			for col, val := range r {
				id, ok := resolve.AsTempID(val)
				if !ok || id == "" {
					continue
				}
				if _, isFK := tp.References[col]; !isFK && isKeyColumn(tp, col) {
					carried[id] = true
				}
			}
			for id := range carried {
				if ids[id] {
					return &resolve.DuplicateTempIDError{Table: tp.Table, ID: id}
				}
				ids[id] = true
			}
		}
		own[tp.Table] = ids
	}

	for _, tp := range p.Tables {
		for i, r := range rows[tp.Table] {
			for _, col := range sortedColumns(r) {
				id, ok := resolve.AsTempID(r[col])
				if !ok {
					continue
				}
				if id == "" {
					return errs.Newf(errs.ErrKindInvalidInput, "%s row %d: empty temporary id in column %s", tp.Table, i, col)
				}

				if refs, overlap := tp.Overlaps[col]; overlap {
					return errs.Newf(errs.ErrKindInvalidInput,
						"%s row %d: temporary id %q in column %s, which references %s",
						tp.Table, i, id, col, describeTargets(refs))
				}

				ref, isFK := tp.References[col]
				switch {
				case isFK:
					if !own[ref.Table][id] {
						return &resolve.UnresolvedReferenceError{
							Table:    tp.Table,
							Column:   col,
							RefTable: ref.Table,
							ID:       id,
							Reason:   fmt.Sprintf("row %d references a temporary id no %s row carries", i, ref.Table),
						}
					}
				case isKeyColumn(tp, col):
				default:
					return unresolvable(tp, col, id)
				}
			}
		}
	}
	return nil
}

func describeTargets(refs []plan.Reference) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.Table + "." + r.Column
	}
	return strings.Join(parts, " and ")
}
