package sqlintel

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/schemasense/engine/pkg/adapters/datasource"
)

// archiveNamePatterns flags tables that hold historical/audit data rather
// than current business-facing records, so the Plan Builder and database
// overview can de-prioritize them without excluding them outright.
var archiveNamePatterns = []string{
	"_audit", "_archive", "_history", "_log", "_logs", "_bak", "_backup",
	"audit_", "archive_", "history_",
}

func looksArchive(tableName string) bool {
	lower := strings.ToLower(tableName)
	for _, pat := range archiveNamePatterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}

// dateTypeHints is matched as a substring against a column's reported data
// type to classify it as a date/timestamp column across dialects.
var dateTypeHints = []string{"date", "time"}

// numericTypeHints classifies a column as metric-eligible.
var numericTypeHints = []string{
	"int", "serial", "numeric", "decimal", "float", "double", "real", "money",
}

var booleanTypeHints = []string{"bool", "bit"}

var textTypeHints = []string{"char", "text", "string", "clob"}

var spatialTypeHints = []string{"geography", "geometry", "spatial"}

// metricCardinalityThreshold is the distinct-count cutoff separating a
// numeric METRIC (aggregation-worthy) from a numeric CATEGORY/dimension
// (a small fixed set of codes, e.g. a 1-5 rating or a status int).
const metricCardinalityThreshold = 10

func typeContainsAny(dataType string, hints []string) bool {
	lower := strings.ToLower(dataType)
	for _, h := range hints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// dateNameTokens are name fragments that imply a temporal role even when the
// declared SQL type doesn't (e.g. a "created" column stored as a generic
// timestamp-less type in a loosely typed dialect). Only consulted for
// non-numeric columns, since a numeric column named "created" is far more
// likely an epoch-as-bigint or an unrelated counter than a real date.
var dateNameTokens = setOf(
	"date", "time", "timestamp", "datetime", "created", "updated", "modified",
	"deleted", "expires", "expiry", "dob", "birthday", "birthdate",
)

func hasDateNameToken(name string) bool {
	for _, tok := range tokensFromText(name) {
		if dateNameTokens[tok] {
			return true
		}
	}
	return false
}

// idSuffixTokens are the final name token values that imply an identifier
// role by naming convention alone, independent of any FK constraint actually
// being declared (common in schemas that reference rows across services
// without a enforced foreign key).
var idSuffixTokens = setOf("id", "uuid", "guid", "key")

func hasIDSuffixName(name string) bool {
	toks := tokensFromText(name)
	if len(toks) == 0 {
		return false
	}
	return idSuffixTokens[toks[len(toks)-1]]
}

// ClassifyColumn derives a ColumnKind from discovered type/constraint
// metadata and observed stats, following the mandatory role-inference
// priority order: spatial and boolean column types are recognized first,
// then temporal signals (a date column is never
// mistaken for a metric just because it's also a key), then structural/
// naming key signals, then cardinality decides whether a numeric column is a
// metric worth aggregating or a low-cardinality dimension/category, then
// text shape, with dimension as the final fallback.
func ClassifyColumn(col *ColumnProfile, valueConstraintThreshold int) ColumnKind {
	isNumericType := typeContainsAny(col.DataType, numericTypeHints)
	isDateType := typeContainsAny(col.DataType, dateTypeHints)

	switch {
	case typeContainsAny(col.DataType, spatialTypeHints):
		return ColumnKindSpatial
	case typeContainsAny(col.DataType, booleanTypeHints):
		return ColumnKindBoolean
	case isDateType || (!isNumericType && hasDateNameToken(col.Name)):
		return ColumnKindDate
	case col.IsPrimaryKey:
		return ColumnKindPrimaryKey
	case col.IsForeignKey:
		return ColumnKindForeignKey
	case hasIDSuffixName(col.Name):
		return ColumnKindKey
	case isNumericType:
		// Distinct count is 0 until AnalyzeColumnStats runs (the first
		// classification pass happens before stats exist); treat unknown
		// cardinality as metric-eligible and let the post-stats
		// reclassification in Reflector.reflectTable settle it.
		if col.DistinctCount > 0 && col.DistinctCount <= metricCardinalityThreshold {
			return ColumnKindDimension
		}
		return ColumnKindMetric
	case typeContainsAny(col.DataType, textTypeHints):
		if col.DistinctCount > 0 && int(col.DistinctCount) <= valueConstraintThreshold {
			return ColumnKindEnum
		}
		return ColumnKindText
	default:
		return ColumnKindDimension
	}
}

// Sampler fetches distinct-value samples for candidate enum columns. It is
// a thin wrapper over datasource.SchemaDiscoverer.SampleDistinctValues kept
// separate from Reflector so the Profiler can be unit tested against a
// fixed sample set without a live discoverer.
type Sampler struct {
	discoverer datasource.SchemaDiscoverer
	limit      int
}

// NewSampler returns a Sampler that pulls up to limit distinct values per column.
func NewSampler(discoverer datasource.SchemaDiscoverer, limit int) *Sampler {
	if limit <= 0 {
		limit = 20
	}
	return &Sampler{discoverer: discoverer, limit: limit}
}

// SampleValues fetches up to the sampler's limit distinct non-null values for
// a column, used both for enum value capture and for pattern/value-range
// detection on non-enum columns.
func (s *Sampler) SampleValues(ctx context.Context, schemaName, tableName, columnName string) ([]string, error) {
	values, err := s.discoverer.SampleDistinctValues(ctx, schemaName, tableName, columnName, s.limit)
	if err != nil {
		return nil, err
	}
	return values, nil
}

// SampleEnumValues fetches and sorts (by frequency, as returned by the
// adapter) distinct values for an enum-classified column.
func (s *Sampler) SampleEnumValues(ctx context.Context, schemaName, tableName, columnName string) ([]string, error) {
	return s.SampleValues(ctx, schemaName, tableName, columnName)
}

// patternTag identifiers, in the fixed order spec.md lists them so sample
// tags are deterministic regardless of sample ordering.
const (
	patternEmailLike   = "email-like"
	patternPhoneLike   = "phone-like"
	patternURLLike     = "url-like"
	patternPercentLike = "percent-like"
)

var (
	emailPattern      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	urlPattern        = regexp.MustCompile(`(?i)^https?://`)
	percentPattern    = regexp.MustCompile(`%\s*$`)
	phoneAllowedChars = "0123456789()+-. "
)

func isPhoneLike(v string) bool {
	if len(v) < 10 {
		return false
	}
	hasDigit := false
	for _, r := range v {
		if r >= '0' && r <= '9' {
			hasDigit = true
			continue
		}
		if !strings.ContainsRune(phoneAllowedChars, r) {
			return false
		}
	}
	return hasDigit
}

// detectSamplePatterns tags a set of sampled string values against spec.md's
// fixed pattern vocabulary. Each value contributes at most one tag (checked
// in a fixed priority order so an email isn't double-tagged as phone-like),
// and the result is deterministic regardless of sample ordering.
func detectSamplePatterns(values []string) []string {
	seen := make(map[string]bool, 4)
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		switch {
		case emailPattern.MatchString(v):
			seen[patternEmailLike] = true
		case urlPattern.MatchString(v):
			seen[patternURLLike] = true
		case percentPattern.MatchString(v):
			seen[patternPercentLike] = true
		case isPhoneLike(v):
			seen[patternPhoneLike] = true
		}
	}
	order := []string{patternEmailLike, patternPhoneLike, patternURLLike, patternPercentLike}
	var tags []string
	for _, tag := range order {
		if seen[tag] {
			tags = append(tags, tag)
		}
	}
	return tags
}

// computeValueRange parses sampled values as floats and returns the observed
// [min, max] bound, or nil if none of the samples parsed as numeric.
func computeValueRange(values []string) *ValueRange {
	var vr *ValueRange
	for _, raw := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			continue
		}
		if vr == nil {
			vr = &ValueRange{Min: f, Max: f}
			continue
		}
		if f < vr.Min {
			vr.Min = f
		}
		if f > vr.Max {
			vr.Max = f
		}
	}
	return vr
}

// rankColumnsByRelevance orders columns for embedding/sampling budget
// allocation: primary/foreign keys and dates first (structurally important,
// cheap to profile), then metrics, then everything else by name for
// determinism.
func rankColumnsByRelevance(cols []*ColumnProfile) []*ColumnProfile {
	ranked := append([]*ColumnProfile(nil), cols...)
	weight := func(c *ColumnProfile) int {
		switch c.Kind {
		case ColumnKindPrimaryKey:
			return 0
		case ColumnKindForeignKey:
			return 1
		case ColumnKindKey:
			return 2
		case ColumnKindDate:
			return 3
		case ColumnKindMetric:
			return 4
		case ColumnKindEnum:
			return 5
		default:
			return 6
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		wi, wj := weight(ranked[i]), weight(ranked[j])
		if wi != wj {
			return wi < wj
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}
