package sqlintel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(qualified, schema, name string, columns map[string]*ColumnProfile, order []string) *TableProfile {
	return &TableProfile{
		Schema:        schema,
		Name:          name,
		QualifiedName: qualified,
		Columns:       columns,
		ColumnOrder:   order,
	}
}

func TestGraphBuilder_DropsEdgesToMissingTables(t *testing.T) {
	tables := map[string]*TableProfile{
		"sales.orders": newTable("sales.orders", "sales", "orders", nil, nil),
	}
	fks := []ForeignKeyEdge{
		{SourceTable: "sales.orders", TargetTable: "sales.customers", SourceColumn: "customer_id", TargetColumn: "customer_id"},
	}
	g := NewGraphBuilder().Build(tables, fks)
	assert.Empty(t, g.adjacency["sales.orders"])
}

func TestDegreeCentrality_SingleNode(t *testing.T) {
	tables := map[string]*TableProfile{
		"a": newTable("a", "public", "a", nil, nil),
	}
	g := NewGraphBuilder().Build(tables, nil)
	c := g.DegreeCentrality()
	assert.Equal(t, 0.0, c["a"])
}

func TestDetectCommunities_NoEdgesSingleCommunity(t *testing.T) {
	tables := map[string]*TableProfile{
		"a": newTable("a", "public", "a", nil, nil),
		"b": newTable("b", "public", "b", nil, nil),
	}
	g := NewGraphBuilder().Build(tables, nil)
	labels := g.DetectCommunities()
	assert.Equal(t, labels["a"], labels["b"])
}

func TestDetectCommunities_CycleTerminates(t *testing.T) {
	tables := map[string]*TableProfile{
		"a": newTable("a", "public", "a", nil, nil),
		"b": newTable("b", "public", "b", nil, nil),
		"c": newTable("c", "public", "c", nil, nil),
	}
	fks := []ForeignKeyEdge{
		{SourceTable: "a", TargetTable: "b", SourceColumn: "x", TargetColumn: "id"},
		{SourceTable: "b", TargetTable: "c", SourceColumn: "x", TargetColumn: "id"},
		{SourceTable: "c", TargetTable: "a", SourceColumn: "x", TargetColumn: "id"},
	}
	g := NewGraphBuilder().Build(tables, fks)
	labels := g.DetectCommunities()
	require.Len(t, labels, 3)
	assert.Equal(t, labels["a"], labels["b"])
	assert.Equal(t, labels["b"], labels["c"])
}

func metricCol(name string) *ColumnProfile {
	return &ColumnProfile{Name: name, Kind: ColumnKindMetric}
}

func dateCol(name string) *ColumnProfile {
	return &ColumnProfile{Name: name, Kind: ColumnKindDate}
}

func pkCol(name string, isFK bool) *ColumnProfile {
	return &ColumnProfile{Name: name, Kind: ColumnKindPrimaryKey, IsPrimaryKey: true, IsForeignKey: isFK}
}

func TestClassifyArchetype_Fact(t *testing.T) {
	cols := map[string]*ColumnProfile{
		"order_id":    pkCol("order_id", false),
		"customer_id": {Name: "customer_id", Kind: ColumnKindForeignKey, IsForeignKey: true},
		"product_id":  {Name: "product_id", Kind: ColumnKindForeignKey, IsForeignKey: true},
		"order_date":  dateCol("order_date"),
		"amount":      metricCol("amount"),
		"tax":         metricCol("tax"),
	}
	order := []string{"order_id", "customer_id", "product_id", "order_date", "amount", "tax"}
	table := newTable("sales.orders", "sales", "orders", cols, order)

	tables := map[string]*TableProfile{
		"sales.orders":    table,
		"sales.customers": newTable("sales.customers", "sales", "customers", nil, nil),
		"sales.products":  newTable("sales.products", "sales", "products", nil, nil),
	}
	fks := []ForeignKeyEdge{
		{SourceTable: "sales.orders", TargetTable: "sales.customers", SourceColumn: "customer_id", TargetColumn: "customer_id"},
		{SourceTable: "sales.orders", TargetTable: "sales.products", SourceColumn: "product_id", TargetColumn: "product_id"},
	}
	g := NewGraphBuilder().Build(tables, fks)
	AnnotateDerived(tables, g)

	assert.Equal(t, ArchetypeFact, tables["sales.orders"].Archetype)
}

func TestClassifyArchetype_SingleColumnPKFKIsNotBridge(t *testing.T) {
	cols := map[string]*ColumnProfile{
		"id": pkCol("id", true),
	}
	table := newTable("public.singleton", "public", "singleton", cols, []string{"id"})
	tables := map[string]*TableProfile{"public.singleton": table}
	g := NewGraphBuilder().Build(tables, nil)
	AnnotateDerived(tables, g)

	assert.NotEqual(t, ArchetypeBridge, table.Archetype)
	assert.True(t, table.Columns["id"].IsPrimaryKey)
}

func TestClassifyArchetype_Bridge(t *testing.T) {
	cols := map[string]*ColumnProfile{
		"order_id":   pkCol("order_id", true),
		"product_id": pkCol("product_id", true),
	}
	table := newTable("sales.order_items", "sales", "order_items", cols, []string{"order_id", "product_id"})
	tables := map[string]*TableProfile{
		"sales.order_items": table,
		"sales.orders":      newTable("sales.orders", "sales", "orders", nil, nil),
		"sales.products":    newTable("sales.products", "sales", "products", nil, nil),
	}
	fks := []ForeignKeyEdge{
		{SourceTable: "sales.order_items", TargetTable: "sales.orders", SourceColumn: "order_id", TargetColumn: "order_id"},
		{SourceTable: "sales.order_items", TargetTable: "sales.products", SourceColumn: "product_id", TargetColumn: "product_id"},
	}
	g := NewGraphBuilder().Build(tables, fks)
	AnnotateDerived(tables, g)
	assert.Equal(t, ArchetypeBridge, table.Archetype)
}

func TestClassifyArchetype_Deterministic(t *testing.T) {
	cols := map[string]*ColumnProfile{
		"id":   pkCol("id", false),
		"name": {Name: "name", Kind: ColumnKindText},
	}
	table := newTable("public.lookup", "public", "lookup", cols, []string{"id", "name"})
	tables := map[string]*TableProfile{"public.lookup": table}
	g := NewGraphBuilder().Build(tables, nil)

	first := ClassifyArchetype(table, g)
	second := ClassifyArchetype(table, g)
	assert.Equal(t, first, second)
}

func TestBuildSubjectAreas_EveryTableAssignedAndEdgesValid(t *testing.T) {
	tables := map[string]*TableProfile{
		"a": newTable("a", "public", "a", nil, nil),
		"b": newTable("b", "public", "b", nil, nil),
		"c": newTable("c", "public", "c", nil, nil),
	}
	fks := []ForeignKeyEdge{
		{SourceTable: "a", TargetTable: "b", SourceColumn: "x", TargetColumn: "id"},
	}
	assignment, areas := NewGraphBuilder().BuildSubjectAreas(tables, fks, 3, false)
	for name := range tables {
		area, ok := areas[assignment[name]]
		require.True(t, ok)
		assert.Contains(t, area.Tables, name)
	}
}
