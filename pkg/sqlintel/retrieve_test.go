package sqlintel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemasense/engine/pkg/config"
)

func buildTestCard() *SchemaCard {
	orders := newTable("sales.orders", "sales", "orders", map[string]*ColumnProfile{
		"order_id":   pkCol("order_id", false),
		"order_date": dateCol("order_date"),
		"amount":     metricCol("amount"),
	}, []string{"order_id", "order_date", "amount"})
	customers := newTable("sales.customers", "sales", "customers", map[string]*ColumnProfile{
		"customer_id": pkCol("customer_id", false),
		"name":        {Name: "name", Kind: ColumnKindText},
	}, []string{"customer_id", "name"})
	archive := newTable("sales.orders_archive", "sales", "orders_archive", map[string]*ColumnProfile{
		"order_id": pkCol("order_id", false),
	}, []string{"order_id"})
	archive.IsArchive = true

	card := &SchemaCard{
		Dialect:    "postgres",
		TableOrder: []string{"sales.orders", "sales.customers", "sales.orders_archive"},
		Tables: map[string]*TableProfile{
			"sales.orders":         orders,
			"sales.customers":      customers,
			"sales.orders_archive": archive,
		},
	}
	return card
}

func TestRetrieveLexical_NoOverlapReturnsEmpty(t *testing.T) {
	card := buildTestCard()
	weights := BuildLexicalWeights(card)
	engine := NewRetrievalEngine(card, nil, nil, nil, nil, weights, config.RetrievalConfig{}, false)
	results := engine.RetrieveLexical(context.Background(), "zzzzznonexistenttoken", 5)
	assert.Empty(t, results)
}

func TestRetrieveLexical_MatchesTableName(t *testing.T) {
	card := buildTestCard()
	weights := BuildLexicalWeights(card)
	engine := NewRetrievalEngine(card, nil, nil, nil, nil, weights, config.RetrievalConfig{}, false)
	results := engine.RetrieveLexical(context.Background(), "orders", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "sales.orders", results[0].Table)
}

func TestRetrieveLexical_ArchiveSuppressedWhenStrict(t *testing.T) {
	card := buildTestCard()
	weights := BuildLexicalWeights(card)
	engine := NewRetrievalEngine(card, nil, nil, nil, nil, weights, config.RetrievalConfig{}, true)
	results := engine.RetrieveLexical(context.Background(), "orders", 1)
	for _, r := range results {
		assert.NotEqual(t, "sales.orders_archive", r.Table)
	}
}

func TestRetrieveCombined_FallsBackToLexicalWithoutEmbedder(t *testing.T) {
	card := buildTestCard()
	weights := BuildLexicalWeights(card)
	engine := NewRetrievalEngine(card, nil, nil, nil, nil, weights, config.RetrievalConfig{}, false)
	combined := engine.RetrieveCombined(context.Background(), "orders", 5, 0.7)
	require.NotEmpty(t, combined)
	assert.Equal(t, "sales.orders", combined[0].Table)
}

func TestSortedScores_DescendingAndDeterministicTieBreak(t *testing.T) {
	scores := map[string]float64{
		"b.t1": 1.0,
		"a.t2": 1.0,
		"c.t3": 2.0,
	}
	items := sortedScores(scores)
	require.Len(t, items, 3)
	assert.Equal(t, "c.t3", items[0].Table)
	assert.Equal(t, "a.t2", items[1].Table)
	assert.Equal(t, "b.t1", items[2].Table)
	for i := 1; i < len(items); i++ {
		assert.LessOrEqual(t, items[i].Score, items[i-1].Score)
	}
}
