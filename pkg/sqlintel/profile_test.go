package sqlintel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyColumn_DateWinsOverPrimaryKey(t *testing.T) {
	col := &ColumnProfile{Name: "effective_date", DataType: "date", IsPrimaryKey: true}
	assert.Equal(t, ColumnKindDate, ClassifyColumn(col, 20))
}

func TestClassifyColumn_DateNameTokenNonNumericType(t *testing.T) {
	col := &ColumnProfile{Name: "created_at", DataType: "varchar"}
	assert.Equal(t, ColumnKindDate, ClassifyColumn(col, 20))
}

func TestClassifyColumn_DateNameTokenIgnoredForNumericType(t *testing.T) {
	col := &ColumnProfile{Name: "created_at", DataType: "bigint"}
	assert.NotEqual(t, ColumnKindDate, ClassifyColumn(col, 20))
}

func TestClassifyColumn_PrimaryKeyWinsOverIDSuffix(t *testing.T) {
	col := &ColumnProfile{Name: "order_id", DataType: "integer", IsPrimaryKey: true}
	assert.Equal(t, ColumnKindPrimaryKey, ClassifyColumn(col, 20))
}

func TestClassifyColumn_IDSuffixNameWithoutFKConstraint(t *testing.T) {
	col := &ColumnProfile{Name: "legacy_customer_id", DataType: "integer"}
	assert.Equal(t, ColumnKindKey, ClassifyColumn(col, 20))
}

func TestClassifyColumn_NumericHighCardinalityIsMetric(t *testing.T) {
	col := &ColumnProfile{Name: "amount", DataType: "numeric", DistinctCount: 500}
	assert.Equal(t, ColumnKindMetric, ClassifyColumn(col, 20))
}

func TestClassifyColumn_NumericLowCardinalityIsDimension(t *testing.T) {
	col := &ColumnProfile{Name: "rating", DataType: "integer", DistinctCount: 5}
	assert.Equal(t, ColumnKindDimension, ClassifyColumn(col, 20))
}

func TestClassifyColumn_NumericUnknownCardinalityDefaultsMetric(t *testing.T) {
	col := &ColumnProfile{Name: "amount", DataType: "numeric"}
	assert.Equal(t, ColumnKindMetric, ClassifyColumn(col, 20))
}

func TestClassifyColumn_TextLowCardinalityIsEnum(t *testing.T) {
	col := &ColumnProfile{Name: "status", DataType: "varchar", DistinctCount: 3}
	assert.Equal(t, ColumnKindEnum, ClassifyColumn(col, 20))
}

func TestClassifyColumn_TextHighCardinalityIsText(t *testing.T) {
	col := &ColumnProfile{Name: "description", DataType: "text", DistinctCount: 1000}
	assert.Equal(t, ColumnKindText, ClassifyColumn(col, 20))
}

func TestClassifyColumn_UnknownTypeDefaultsDimension(t *testing.T) {
	col := &ColumnProfile{Name: "payload", DataType: "jsonb"}
	assert.Equal(t, ColumnKindDimension, ClassifyColumn(col, 20))
}

func TestDetectSamplePatterns(t *testing.T) {
	tags := detectSamplePatterns([]string{"alice@example.com", "https://example.com/x", "555-123-4567", "42%"})
	assert.ElementsMatch(t, []string{patternEmailLike, patternPhoneLike, patternURLLike, patternPercentLike}, tags)
}

func TestDetectSamplePatterns_NoMatch(t *testing.T) {
	tags := detectSamplePatterns([]string{"Alice", "Bob"})
	assert.Empty(t, tags)
}

func TestComputeValueRange(t *testing.T) {
	vr := computeValueRange([]string{"3", "1", "2"})
	if assert.NotNil(t, vr) {
		assert.Equal(t, 1.0, vr.Min)
		assert.Equal(t, 3.0, vr.Max)
	}
}

func TestComputeValueRange_NoNumericValues(t *testing.T) {
	assert.Nil(t, computeValueRange([]string{"abc", "def"}))
}

func TestColumnProfile_RefreshDerivedStats(t *testing.T) {
	col := &ColumnProfile{RowCount: 100, NonNullCount: 80, DistinctCount: 20}
	col.RefreshDerivedStats()
	assert.Equal(t, 0.2, col.NullRate)
	assert.Equal(t, 0.25, col.ApproxDistinctRatio)
}
