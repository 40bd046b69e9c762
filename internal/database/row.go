package database

import "github.com/koustreak/frameload/internal/errs"

// ScanRow reads a single row into a map keyed by the given column names.
func ScanRow(row Row, columns []string) (map[string]any, error) {
	dest, ptrs := scanTargets(len(columns))
	if err := row.Scan(ptrs...); err != nil {
		if errs.IsNotFound(err) {
			return nil, err
		}
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan single row", err)
	}
	return zip(columns, dest), nil
}

// scanTargets allocates *any scan destinations so the driver can write any type.
func scanTargets(n int) ([]any, []any) {
	dest := make([]any, n)
	ptrs := make([]any, n)
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	return dest, ptrs
}

func zip(columns []string, vals []any) map[string]any {
	m := make(map[string]any, len(columns))
	for i, col := range columns {
		m[col] = vals[i]
	}
	return m
}
