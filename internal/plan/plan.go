// Package plan orders tables for loading so that every table is loaded
// after the distinct tables its foreign keys reference.
package plan

import (
	"slices"

	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/schema"
)

// Reference is the target of a foreign key column.
type Reference struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// TablePlan describes how one table is loaded.
type TablePlan struct {
	Table string `json:"table" yaml:"table"`

	// Level is the table's depth in the dependency graph. Tables on the
	// same level do not depend on each other.
	Level int `json:"level" yaml:"level"`

	PrimaryKey []string `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`

	// KeyColumns are read back after each insert: the primary key plus
	// every column some foreign key in the load set points at.
	KeyColumns []string `json:"key_columns,omitempty" yaml:"key_columns,omitempty"`

	// References maps each foreign key column whose target table is being
	// loaded (including this table) to that target.
	References map[string]Reference `json:"references,omitempty" yaml:"references,omitempty"`

	// Overlaps lists columns that belong to foreign keys into more than one
	// loaded target, with every target. References keeps the first one.
	Overlaps map[string][]Reference `json:"overlaps,omitempty" yaml:"overlaps,omitempty"`

	// SelfColumns reference this table and are filled by a second pass.
	SelfColumns []string `json:"self_columns,omitempty" yaml:"self_columns,omitempty"`

	// ExternalColumns reference tables outside the load set; their values
	// are written as given.
	ExternalColumns []string `json:"external_columns,omitempty" yaml:"external_columns,omitempty"`
}

// IsSelfColumn reports whether column references the table itself.
func (t *TablePlan) IsSelfColumn(column string) bool {
	return slices.Contains(t.SelfColumns, column)
}

// Locator returns the columns that identify an inserted row: the primary
// key when the table has one, otherwise the key columns.
func (t *TablePlan) Locator() []string {
	if len(t.PrimaryKey) > 0 {
		return t.PrimaryKey
	}
	return t.KeyColumns
}

// Plan is a topological load order.
type Plan struct {
	Tables []*TablePlan `json:"tables" yaml:"tables"`
	index  map[string]*TablePlan
}

// Order returns the table names in load order.
func (p *Plan) Order() []string {
	out := make([]string, len(p.Tables))
	for i, t := range p.Tables {
		out[i] = t.Table
	}
	return out
}

// Table returns the plan entry for name.
func (p *Plan) Table(name string) (*TablePlan, bool) {
	t, ok := p.index[name]
	return t, ok
}

// Levels groups the tables by Level, in load order.
func (p *Plan) Levels() [][]*TablePlan {
	var out [][]*TablePlan
	for _, t := range p.Tables {
		for len(out) <= t.Level {
			out = append(out, nil)
		}
		out[t.Level] = append(out[t.Level], t)
	}
	return out
}

// BuildLoadOrder computes the load order of tables from constraints.
//
// Only foreign keys between two distinct tables of the load set become
// graph edges. Self-references are recorded in SelfColumns and never block
// ordering. Foreign keys to tables outside the set are recorded in
// ExternalColumns. Tables that become eligible together keep their input
// order. A cycle among distinct tables fails with *CyclicDependencyError.
func BuildLoadOrder(constraints []schema.Constraint, tables []string) (*Plan, error) {
	p := &Plan{index: make(map[string]*TablePlan, len(tables))}

	var names []string
	for _, t := range tables {
		if t == "" {
			return nil, errs.New(errs.ErrKindInvalidInput, "empty table name in load set")
		}
		if _, dup := p.index[t]; dup {
			continue
		}
		p.index[t] = &TablePlan{Table: t, References: make(map[string]Reference)}
		names = append(names, t)
	}

	cat := schema.NewCatalog(constraints)
	deps := make(map[string][]string, len(names))
	for _, t := range names {
		tp := p.index[t]
		tp.PrimaryKey = slices.Clone(cat.PrimaryKey(t))

		for _, c := range cat.ForeignKeys(t) {
			target, loaded := p.index[c.ReferencedTable]
			if !loaded {
				tp.ExternalColumns = appendUnique(tp.ExternalColumns, c.SourceColumn)
				continue
			}
			tp.addReference(c.SourceColumn, Reference{Table: c.ReferencedTable, Column: c.ReferencedColumn})
			target.KeyColumns = appendUnique(target.KeyColumns, c.ReferencedColumn)
			if c.IsSelfReference() {
				tp.SelfColumns = appendUnique(tp.SelfColumns, c.SourceColumn)
				continue
			}
			deps[t] = appendUnique(deps[t], c.ReferencedTable)
		}
	}

	for _, tp := range p.index {
		keys := slices.Clone(tp.PrimaryKey)
		for _, k := range tp.KeyColumns {
			keys = appendUnique(keys, k)
		}
		tp.KeyColumns = keys
	}

	loaded := make(map[string]bool, len(names))
	remaining := names
	for level := 0; len(remaining) > 0; level++ {
		var eligible, blocked []string
		for _, t := range remaining {
			if allLoaded(deps[t], loaded) {
				eligible = append(eligible, t)
			} else {
				blocked = append(blocked, t)
			}
		}
		if len(eligible) == 0 {
			return nil, &CyclicDependencyError{
				Tables: blocked,
				Cycle:  findCycle(blocked, deps),
			}
		}
		for _, t := range eligible {
			tp := p.index[t]
			tp.Level = level
			p.Tables = append(p.Tables, tp)
		}
		// mark after the level is complete so siblings never depend on each other
		for _, t := range eligible {
			loaded[t] = true
		}
		remaining = blocked
	}

	return p, nil
}

func (t *TablePlan) addReference(column string, ref Reference) {
	prev, ok := t.References[column]
	switch {
	case !ok:
		t.References[column] = ref
		return
	case prev == ref:
		return
	}
	if t.Overlaps == nil {
		t.Overlaps = make(map[string][]Reference)
	}
	if len(t.Overlaps[column]) == 0 {
		t.Overlaps[column] = []Reference{prev}
	}
	if !slices.Contains(t.Overlaps[column], ref) {
		t.Overlaps[column] = append(t.Overlaps[column], ref)
	}
}

func allLoaded(deps []string, loaded map[string]bool) bool {
	for _, d := range deps {
		if !loaded[d] {
			return false
		}
	}
	return true
}

// findCycle walks first dependencies among blocked tables until a table
// repeats. Every blocked table has a dependency that is also blocked, so
// the walk always closes a cycle.
func findCycle(blocked []string, deps map[string][]string) []string {
	inBlocked := make(map[string]bool, len(blocked))
	for _, t := range blocked {
		inBlocked[t] = true
	}

	pos := make(map[string]int)
	var path []string
	cur := blocked[0]
	for {
		if i, seen := pos[cur]; seen {
			return append(path[i:], cur)
		}
		pos[cur] = len(path)
		path = append(path, cur)

		next := ""
		for _, d := range deps[cur] {
			if inBlocked[d] {
				next = d
				break
			}
		}
		if next == "" {
			return nil
		}
		cur = next
	}
}

func appendUnique(s []string, v string) []string {
	if slices.Contains(s, v) {
		return s
	}
	return append(s, v)
}
