package plan

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fk(src, col, ref, refCol string) schema.Constraint {
	return schema.Constraint{
		Name:             src + "_" + col + "_fkey",
		Kind:             schema.KindForeignKey,
		SourceTable:      src,
		SourceColumn:     col,
		ReferencedTable:  ref,
		ReferencedColumn: refCol,
	}
}

func pk(table, col string) schema.Constraint {
	return schema.Constraint{Name: table + "_pkey", Kind: schema.KindPrimaryKey, SourceTable: table, SourceColumn: col}
}

// roundTrip is region(parent -> region), street, address(street -> street, region -> region).
var roundTrip = []schema.Constraint{
	pk("region", "id"),
	pk("street", "id"),
	pk("address", "id"),
	fk("region", "parent", "region", "id"),
	fk("address", "street", "street", "id"),
	fk("address", "region", "region", "id"),
}

func TestBuildLoadOrderRoundTrip(t *testing.T) {
	p, err := BuildLoadOrder(roundTrip, []string{"address", "region", "street"})
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "street", "address"}, p.Order())

	levels := p.Levels()
	require.Len(t, levels, 2)
	assert.Len(t, levels[0], 2)
	assert.Equal(t, "address", levels[1][0].Table)

	region, ok := p.Table("region")
	require.True(t, ok)
	assert.Equal(t, []string{"parent"}, region.SelfColumns)
	assert.True(t, region.IsSelfColumn("parent"))
	assert.Equal(t, []string{"id"}, region.PrimaryKey)
	assert.Equal(t, []string{"id"}, region.KeyColumns)
	assert.Equal(t, Reference{Table: "region", Column: "id"}, region.References["parent"])

	address, _ := p.Table("address")
	assert.Empty(t, address.SelfColumns)
	assert.Equal(t, Reference{Table: "street", Column: "id"}, address.References["street"])
	assert.Equal(t, 1, address.Level)
}

func TestBuildLoadOrderSiblingTieBreak(t *testing.T) {
	p, err := BuildLoadOrder(roundTrip, []string{"street", "address", "region"})
	require.NoError(t, err)
	assert.Equal(t, []string{"street", "region", "address"}, p.Order())
}

func TestBuildLoadOrderSelfReferenceOnly(t *testing.T) {
	p, err := BuildLoadOrder([]schema.Constraint{fk("employee", "manager", "employee", "id")}, []string{"employee"})
	require.NoError(t, err)
	assert.Equal(t, []string{"employee"}, p.Order())

	emp, _ := p.Table("employee")
	assert.Equal(t, []string{"manager"}, emp.SelfColumns)
	// no primary key constraint given: the referenced column identifies rows
	assert.Equal(t, []string{"id"}, emp.Locator())
}

func TestBuildLoadOrderExternalReferences(t *testing.T) {
	cs := []schema.Constraint{
		fk("address", "country", "country", "code"),
		fk("address", "street", "street", "id"),
	}
	p, err := BuildLoadOrder(cs, []string{"address", "street"})
	require.NoError(t, err)

	assert.Equal(t, []string{"street", "address"}, p.Order())
	address, _ := p.Table("address")
	assert.Equal(t, []string{"country"}, address.ExternalColumns)
	assert.NotContains(t, address.References, "country")

	// constraints of tables outside the set are ignored entirely
	_, ok := p.Table("country")
	assert.False(t, ok)
}

func TestBuildLoadOrderCompositeKey(t *testing.T) {
	cs := []schema.Constraint{
		pk("orders", "tenant"),
		pk("orders", "no"),
		fk("shipment", "order_tenant", "orders", "tenant"),
		fk("shipment", "order_no", "orders", "no"),
	}
	p, err := BuildLoadOrder(cs, []string{"shipment", "orders"})
	require.NoError(t, err)

	assert.Equal(t, []string{"orders", "shipment"}, p.Order())
	orders, _ := p.Table("orders")
	assert.Equal(t, []string{"tenant", "no"}, orders.KeyColumns)
}

func TestBuildLoadOrderOverlappingForeignKeys(t *testing.T) {
	cs := []schema.Constraint{
		pk("tenant", "id"),
		pk("project", "tenant_id"),
		pk("project", "code"),
		fk("task", "tenant_id", "tenant", "id"),
		fk("task", "tenant_id", "project", "tenant_id"),
		fk("task", "project_code", "project", "code"),
	}
	p, err := BuildLoadOrder(cs, []string{"task", "project", "tenant"})
	require.NoError(t, err)

	task, _ := p.Table("task")
	assert.Equal(t, Reference{Table: "tenant", Column: "id"}, task.References["tenant_id"])
	assert.Equal(t, map[string][]Reference{
		"tenant_id": {{Table: "tenant", Column: "id"}, {Table: "project", Column: "tenant_id"}},
	}, task.Overlaps)
	assert.Equal(t, 1, task.Level)

	// a target outside the load set is not an overlap
	p, err = BuildLoadOrder(cs, []string{"task", "tenant"})
	require.NoError(t, err)
	task, _ = p.Table("task")
	assert.Empty(t, task.Overlaps)
	assert.ElementsMatch(t, []string{"tenant_id", "project_code"}, task.ExternalColumns)
}

func TestBuildLoadOrderUniqueKeyColumns(t *testing.T) {
	cs := []schema.Constraint{
		pk("street", "id"),
		fk("address", "street_code", "street", "code"),
	}
	p, err := BuildLoadOrder(cs, []string{"street", "address"})
	require.NoError(t, err)

	street, _ := p.Table("street")
	assert.Equal(t, []string{"id", "code"}, street.KeyColumns)
	assert.Equal(t, []string{"id"}, street.Locator())
}

func TestBuildLoadOrderCycle(t *testing.T) {
	cs := []schema.Constraint{
		fk("a", "b_id", "b", "id"),
		fk("b", "c_id", "c", "id"),
		fk("c", "a_id", "a", "id"),
		fk("d", "a_id", "a", "id"),
		fk("e", "e_id", "e", "id"),
	}

	p, err := BuildLoadOrder(cs, []string{"e", "d", "a", "b", "c"})
	require.Error(t, err)
	assert.Nil(t, p)
	assert.True(t, errs.IsCyclicDependency(err))

	var cyc *CyclicDependencyError
	require.True(t, errors.As(err, &cyc))
	assert.Equal(t, []string{"d", "a", "b", "c"}, cyc.Tables)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cyc.Cycle)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestBuildLoadOrderTwoTableCycle(t *testing.T) {
	cs := []schema.Constraint{
		fk("a", "b_id", "b", "id"),
		fk("b", "a_id", "a", "id"),
	}
	_, err := BuildLoadOrder(cs, []string{"a", "b"})

	var cyc *CyclicDependencyError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"a", "b", "a"}, cyc.Cycle)
}

func TestBuildLoadOrderInput(t *testing.T) {
	_, err := BuildLoadOrder(nil, []string{"a", ""})
	assert.True(t, errs.IsInvalidInput(err))

	p, err := BuildLoadOrder(nil, []string{"a", "b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.Order())

	p, err = BuildLoadOrder(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, p.Order())
	assert.Empty(t, p.Levels())
}

// TestBuildLoadOrderRandomDAGs checks that for acyclic graphs every
// referenced table precedes the tables referencing it.
func TestBuildLoadOrderRandomDAGs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for iter := 0; iter < 200; iter++ {
		n := 2 + rng.Intn(10)
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("t%d", i)
		}

		// edges only from higher to lower index keep the graph acyclic
		var cs []schema.Constraint
		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					cs = append(cs, fk(names[i], fmt.Sprintf("c%d", j), names[j], "id"))
				}
			}
			if rng.Intn(4) == 0 {
				cs = append(cs, fk(names[i], "self", names[i], "id"))
			}
		}

		input := append([]string(nil), names...)
		rng.Shuffle(len(input), func(a, b int) { input[a], input[b] = input[b], input[a] })

		p, err := BuildLoadOrder(cs, input)
		require.NoError(t, err)
		require.ElementsMatch(t, names, p.Order())

		pos := map[string]int{}
		for i, name := range p.Order() {
			pos[name] = i
		}
		for _, c := range cs {
			if c.SourceTable == c.ReferencedTable {
				continue
			}
			assert.Less(t, pos[c.ReferencedTable], pos[c.SourceTable],
				"%s must load before %s", c.ReferencedTable, c.SourceTable)
		}
	}
}
