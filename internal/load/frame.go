package load

import (
	"slices"

	"github.com/koustreak/frameload/internal/errs"
)

// Row is one row to insert, keyed by column name. A value of type
// resolve.TempID is a temporary identifier: in a key column it names the
// row itself, in a foreign key column it refers to another row.
type Row map[string]any

// Frame is an ordered batch of rows for one table.
type Frame struct {
	Table string `json:"table" yaml:"table"`
	Rows  []Row  `json:"rows" yaml:"rows"`
}

// Tables returns the distinct table names of frames in first-seen order.
func Tables(frames []Frame) []string {
	var out []string
	for _, f := range frames {
		if !slices.Contains(out, f.Table) {
			out = append(out, f.Table)
		}
	}
	return out
}

// merge groups rows by table, concatenating frames of the same table in
// input order.
func merge(frames []Frame) (map[string][]Row, error) {
	out := make(map[string][]Row, len(frames))
	for i, f := range frames {
		if f.Table == "" {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "frame %d: missing table name", i)
		}
		out[f.Table] = append(out[f.Table], f.Rows...)
	}
	return out, nil
}

// sortedColumns returns the row's column names in a stable order so the
// generated SQL is deterministic.
func sortedColumns(r Row) []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return cols
}
