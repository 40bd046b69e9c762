// Package load inserts frames of related rows in dependency order and
// rewrites temporary identifiers into the keys the database generated.
//
// For each table in plan order every row is inserted with its foreign
// key temporary ids replaced by real values, its own temporary id
// stripped, and its key columns read back and registered with the
// resolver. Self-references are written as NULL and set by one update
// per row once the whole table is in.
package load

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/frameload/internal/database"
	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/logger"
	"github.com/koustreak/frameload/internal/plan"
	"github.com/koustreak/frameload/internal/resolve"
	"golang.org/x/sync/errgroup"
)

// Options tunes a load.
type Options struct {
	// Concurrency is the number of tables of one plan level loaded at the
	// same time. Values above 1 need an executor that is safe for
	// concurrent use, i.e. a pool rather than a transaction.
	Concurrency int
}

// DefaultOptions loads one table at a time.
func DefaultOptions() Options {
	return Options{Concurrency: 1}
}

// TableReport summarizes the load of one table.
type TableReport struct {
	Table    string        `json:"table" yaml:"table"`
	Level    int           `json:"level" yaml:"level"`
	Inserted int           `json:"inserted" yaml:"inserted"`
	Updated  int           `json:"updated" yaml:"updated"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

// LoadReport summarizes one load operation.
type LoadReport struct {
	ID       uuid.UUID     `json:"id" yaml:"id"`
	Order    []string      `json:"order" yaml:"order"`
	Tables   []TableReport `json:"tables" yaml:"tables"`
	Resolved int           `json:"resolved" yaml:"resolved"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

// Load inserts frames into exec following p. The resolver backing the
// load is created here and discarded on return.
func Load(ctx context.Context, exec database.Executor, p *plan.Plan, frames []Frame, opts Options) (*LoadReport, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if _, isTx := exec.(database.Tx); isTx && opts.Concurrency > 1 {
		return nil, errs.New(errs.ErrKindInvalidInput, "concurrent loading requires a connection pool, not a transaction")
	}

	rows, err := merge(frames)
	if err != nil {
		return nil, err
	}
	for table := range rows {
		if _, ok := p.Table(table); !ok {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "table %s is not part of the load plan", table)
		}
	}
	if err := validate(p, rows); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &LoadReport{ID: uuid.New(), Order: p.Order()}

	log := logger.FromContext(ctx).With().Str("load_id", report.ID.String()).Logger()
	ctx = log.WithContext(ctx)
	log.InfoWith("load started", map[string]any{
		"tables": len(p.Tables),
		"order":  report.Order,
	})

	l := &loader{
		exec:     exec,
		dialect:  exec.Dialect(),
		resolver: resolve.New(),
	}

	for _, level := range p.Levels() {
		reports, err := l.loadLevel(ctx, level, rows, opts.Concurrency)
		if err != nil {
			log.ErrorWith("load failed", err, map[string]any{"resolved": l.resolver.Len()})
			return nil, err
		}
		report.Tables = append(report.Tables, reports...)
	}

	report.Resolved = l.resolver.Len()
	report.Duration = time.Since(start)
	log.InfoWith("load finished", map[string]any{
		"resolved":    report.Resolved,
		"duration_ms": report.Duration.Milliseconds(),
	})
	return report, nil
}

type loader struct {
	exec     database.Executor
	dialect  database.Dialect
	resolver *resolve.Resolver
}

// loadLevel loads the tables of one level. Tables on a level never
// reference each other, so they may run concurrently.
func (l *loader) loadLevel(ctx context.Context, level []*plan.TablePlan, rows map[string][]Row, limit int) ([]TableReport, error) {
	reports := make([]TableReport, len(level))

	if limit <= 1 || len(level) == 1 {
		for i, tp := range level {
			r, err := l.loadTable(ctx, tp, rows[tp.Table])
			if err != nil {
				return nil, err
			}
			reports[i] = r
		}
		return reports, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, tp := range level {
		g.Go(func() error {
			r, err := l.loadTable(gctx, tp, rows[tp.Table])
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// deferredRow is a row whose self-references are set after the table is in.
type deferredRow struct {
	index   int
	id      resolve.TempID
	locator map[string]any
	refs    map[string]resolve.TempID
}

func (l *loader) loadTable(ctx context.Context, tp *plan.TablePlan, rows []Row) (TableReport, error) {
	start := time.Now()
	report := TableReport{Table: tp.Table, Level: tp.Level}

	log := logger.FromContext(ctx).With().Str("table", tp.Table).Int("level", tp.Level).Logger()
	log.Debugf("loading %d rows", len(rows))

	var deferred []deferredRow
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ins, err := l.prepare(tp, row)
		if err != nil {
			return report, err
		}

		keys, err := l.insert(ctx, tp, ins)
		if err != nil {
			return report, &InsertError{Table: tp.Table, Row: i, ID: ins.id, Op: "insert", Cause: err}
		}
		report.Inserted++

		if ins.id != "" {
			if err := l.resolver.RegisterResolved(tp.Table, ins.id, keys); err != nil {
				return report, err
			}
		}

		if len(ins.selfRefs) > 0 {
			loc, err := locator(tp, keys)
			if err != nil {
				return report, &InsertError{Table: tp.Table, Row: i, ID: ins.id, Op: "insert", Cause: err}
			}
			deferred = append(deferred, deferredRow{index: i, id: ins.id, locator: loc, refs: ins.selfRefs})
		}
	}

	if len(deferred) > 0 {
		log.Debugf("setting self references on %d rows", len(deferred))
	}
	for _, d := range deferred {
		if err := l.updateSelfRefs(ctx, tp, d); err != nil {
			return report, err
		}
		report.Updated++
	}

	report.Duration = time.Since(start)
	log.InfoWith("table loaded", map[string]any{
		"inserted":    report.Inserted,
		"updated":     report.Updated,
		"duration_ms": report.Duration.Milliseconds(),
	})
	return report, nil
}

// prepared is a row ready for INSERT.
type prepared struct {
	columns  []string
	values   []any
	known    map[string]any // key column values supplied by the row itself
	id       resolve.TempID
	selfRefs map[string]resolve.TempID
}

// prepare substitutes foreign key temporary ids, strips the row's own
// temporary id, and sets self-references aside.
func (l *loader) prepare(tp *plan.TablePlan, row Row) (*prepared, error) {
	p := &prepared{known: make(map[string]any)}

	for _, col := range sortedColumns(row) {
		val := row[col]

		id, isTmp := resolve.AsTempID(val)
		if !isTmp {
			p.columns = append(p.columns, col)
			p.values = append(p.values, val)
			if isKeyColumn(tp, col) {
				p.known[col] = val
			}
			continue
		}

		if ref, isFK := tp.References[col]; isFK {
			if ref.Table == tp.Table {
				if p.selfRefs == nil {
					p.selfRefs = make(map[string]resolve.TempID)
				}
				p.selfRefs[col] = id
				p.columns = append(p.columns, col)
				p.values = append(p.values, nil)
				continue
			}

			value, ok := l.resolver.Substitute(ref.Table, ref.Column, id)
			if !ok {
				return nil, &resolve.UnresolvedReferenceError{
					Table:    tp.Table,
					Column:   col,
					RefTable: ref.Table,
					ID:       id,
					Reason:   "no row with this temporary id was loaded into the referenced table",
				}
			}
			p.columns = append(p.columns, col)
			p.values = append(p.values, value)
			continue
		}

		// a temporary id in one of the table's own key columns names the row
		if isKeyColumn(tp, col) {
			if p.id != "" && p.id != id {
				return nil, errs.Newf(errs.ErrKindInvalidInput,
					"table %s: row carries two temporary ids %q and %q", tp.Table, p.id, id)
			}
			p.id = id
			continue
		}

		return nil, unresolvable(tp, col, id)
	}
	return p, nil
}

// insert writes one row and returns the values of the table's key columns.
func (l *loader) insert(ctx context.Context, tp *plan.TablePlan, p *prepared) (map[string]any, error) {
	b := database.Insert(tp.Table, l.dialect).Columns(p.columns...).Values(p.values...)

	if len(tp.KeyColumns) == 0 {
		q, args, err := b.Build()
		if err != nil {
			return nil, err
		}
		_, err = l.exec.Exec(ctx, q, args...)
		return map[string]any{}, err
	}

	if l.dialect.SupportsReturning() {
		q, args, err := b.Returning(tp.KeyColumns...).Build()
		if err != nil {
			return nil, err
		}
		return database.ScanRow(l.exec.QueryRow(ctx, q, args...), tp.KeyColumns)
	}

	q, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	res, err := l.exec.Exec(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return l.readBack(ctx, tp, p, res)
}

// readBack recovers generated key values on dialects without RETURNING.
// A single-column primary key not supplied by the row is the auto-increment
// value; remaining key columns are selected by primary key.
func (l *loader) readBack(ctx context.Context, tp *plan.TablePlan, p *prepared, res database.Result) (map[string]any, error) {
	keys := make(map[string]any, len(tp.KeyColumns))
	for c, v := range p.known {
		keys[c] = v
	}
	if len(tp.PrimaryKey) == 1 {
		if _, ok := keys[tp.PrimaryKey[0]]; !ok {
			keys[tp.PrimaryKey[0]] = res.LastInsertID
		}
	}

	var missing []string
	for _, c := range tp.KeyColumns {
		if _, ok := keys[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return keys, nil
	}

	loc := tp.PrimaryKey
	locVals := make([]any, len(loc))
	for i, c := range loc {
		v, ok := keys[c]
		if !ok {
			return nil, errs.Newf(errs.ErrKindInvalidInput,
				"table %s: cannot read back generated column %s without a known primary key", tp.Table, c)
		}
		locVals[i] = v
	}
	if len(loc) == 0 {
		return nil, errs.Newf(errs.ErrKindInvalidInput,
			"table %s: cannot read back generated key columns without a primary key", tp.Table)
	}

	q, args, err := database.SelectWhere(tp.Table, l.dialect, missing, loc, locVals)
	if err != nil {
		return nil, err
	}
	got, err := database.ScanRow(l.exec.QueryRow(ctx, q, args...), missing)
	if err != nil {
		return nil, err
	}
	for c, v := range got {
		keys[c] = v
	}
	return keys, nil
}

// updateSelfRefs sets the deferred self-referencing columns of one row.
func (l *loader) updateSelfRefs(ctx context.Context, tp *plan.TablePlan, d deferredRow) error {
	b := database.Update(tp.Table, l.dialect)

	for _, col := range sortedRefColumns(d.refs) {
		id := d.refs[col]
		ref := tp.References[col]
		value, ok := l.resolver.Substitute(ref.Table, ref.Column, id)
		if !ok {
			return &resolve.UnresolvedReferenceError{
				Table:    tp.Table,
				Column:   col,
				RefTable: ref.Table,
				ID:       id,
				Reason:   "no row of the table carries this temporary id",
			}
		}
		b.Set(col, value)
	}
	for _, col := range tp.Locator() {
		b.Where(col, d.locator[col])
	}

	q, args, err := b.Build()
	if err != nil {
		return err
	}
	if _, err := l.exec.Exec(ctx, q, args...); err != nil {
		return &InsertError{Table: tp.Table, Row: d.index, ID: d.id, Op: "update", Cause: err}
	}
	return nil
}

// locator picks the values that identify an inserted row for the
// self-reference update.
func locator(tp *plan.TablePlan, keys map[string]any) (map[string]any, error) {
	cols := tp.Locator()
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindInvalidInput,
			"table %s has self references but no key to locate rows by", tp.Table)
	}
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		v, ok := keys[c]
		if !ok || v == nil {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "table %s: key column %s was not returned", tp.Table, c)
		}
		out[c] = v
	}
	return out, nil
}

func isKeyColumn(tp *plan.TablePlan, col string) bool {
	for _, k := range tp.KeyColumns {
		if k == col {
			return true
		}
	}
	for _, k := range tp.PrimaryKey {
		if k == col {
			return true
		}
	}
	return false
}

func unresolvable(tp *plan.TablePlan, col string, id resolve.TempID) error {
	for _, c := range tp.ExternalColumns {
		if c == col {
			return &resolve.UnresolvedReferenceError{
				Table:  tp.Table,
				Column: col,
				ID:     id,
				Reason: "column references a table outside the load set",
			}
		}
	}
	return &resolve.UnresolvedReferenceError{
		Table:  tp.Table,
		Column: col,
		ID:     id,
		Reason: "column is neither a key nor a foreign key",
	}
}

func sortedRefColumns(refs map[string]resolve.TempID) []string {
	r := make(Row, len(refs))
	for c := range refs {
		r[c] = nil
	}
	return sortedColumns(r)
}
