package schema

import (
	"context"
	"fmt"
	"reflect"

	"github.com/koustreak/frameload/internal/database"
)

// fakeQuerier returns canned rows for any query and records the arguments.
type fakeQuerier struct {
	dialect database.Dialect
	rows    [][]any
	err     error
	args    [][]any
}

func (f *fakeQuerier) Dialect() database.Dialect { return f.dialect }

func (f *fakeQuerier) Query(_ context.Context, _ string, args ...any) (database.Rows, error) {
	f.args = append(f.args, args)
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{data: f.rows, idx: -1}, nil
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) database.Row {
	panic("not used")
}

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

// Scan assigns row values to pointer destinations. A nil value leaves a
// pointer-to-pointer destination nil; a non-nil value assigned to a
// pointer-to-pointer destination is boxed.
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if row[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(row[i])
		if target.Kind() == reflect.Pointer {
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(v.Convert(target.Type().Elem()))
			target.Set(p)
			continue
		}
		target.Set(v.Convert(target.Type()))
	}
	return nil
}
