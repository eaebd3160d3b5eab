// Package sqlintel implements the schema reflection, profiling, subject-area
// graph, semantic retrieval, and query-planning pipeline that backs the MCP
// tool surface: a database is reflected once at startup into a SchemaCard,
// enriched in the background with embeddings and entity recognition, and
// every subsequent tool call reads from the current card without touching
// the target database again (except execute_query).
package sqlintel

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"
)

// ColumnKind classifies a column's role for planning and summarization.
type ColumnKind string

const (
	ColumnKindPrimaryKey ColumnKind = "primary_key"
	ColumnKindForeignKey ColumnKind = "foreign_key"
	// ColumnKindKey is the KEY role for columns that carry an identifier by
	// naming convention (e.g. a "legacy_id" column with no FK constraint)
	// without being structurally a primary or foreign key themselves.
	ColumnKindKey       ColumnKind = "key"
	ColumnKindMetric    ColumnKind = "metric"
	// ColumnKindDimension is the CATEGORY role from spec.md's role_filter
	// vocabulary ({metric,date,key,category,text}); its Go identifier
	// predates that vocabulary but its wire value matches it exactly.
	ColumnKindDimension ColumnKind = "category"
	ColumnKindDate      ColumnKind = "date"
	ColumnKindEnum      ColumnKind = "enum"
	ColumnKindText      ColumnKind = "text"
	ColumnKindBoolean   ColumnKind = "boolean"
	ColumnKindSpatial   ColumnKind = "spatial"
)

// ValueRange is the observed [Min, Max] bound for a low-cardinality numeric
// metric column, surfaced so a caller can sanity-check filter values without
// a round trip to the database.
type ValueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ColumnProfile is the per-column record in a SchemaCard: discovered
// structure plus stats-derived classification.
type ColumnProfile struct {
	Name                string      `json:"name"`
	DataType            string      `json:"data_type"`
	Nullable            bool        `json:"nullable"`
	IsPrimaryKey        bool        `json:"is_primary_key"`
	IsForeignKey        bool        `json:"is_foreign_key"`
	Kind                ColumnKind  `json:"kind"`
	RowCount            int64       `json:"row_count"`
	NonNullCount        int64       `json:"non_null_count"`
	DistinctCount       int64       `json:"distinct_count"`
	NullRate            float64     `json:"null_rate"`
	ApproxDistinctRatio float64     `json:"approx_distinct_ratio"`
	MinLength           *int64      `json:"min_length,omitempty"`
	MaxLength           *int64      `json:"max_length,omitempty"`
	ValueRange          *ValueRange `json:"value_range,omitempty"`
	EnumValues          []string    `json:"enum_values,omitempty"`
	SamplePatterns      []string    `json:"sample_patterns,omitempty"`
	ReferencesTable     string      `json:"references_table,omitempty"`
	ReferencesCol       string      `json:"references_column,omitempty"`
	Entities            []string    `json:"entities,omitempty"`
}

// NullFraction returns the fraction of rows with a NULL value, 0 if unknown.
func (c *ColumnProfile) NullFraction() float64 {
	if c.RowCount == 0 {
		return 0
	}
	return float64(c.RowCount-c.NonNullCount) / float64(c.RowCount)
}

// RefreshDerivedStats recomputes NullRate and ApproxDistinctRatio from the
// raw counts. Called once stats land on the profile (and again if they're
// refreshed), so downstream consumers never read stale derived fields.
func (c *ColumnProfile) RefreshDerivedStats() {
	c.NullRate = c.NullFraction()
	if c.NonNullCount > 0 {
		c.ApproxDistinctRatio = float64(c.DistinctCount) / float64(c.NonNullCount)
	} else {
		c.ApproxDistinctRatio = 0
	}
}

// TableProfile is the per-table record in a SchemaCard.
type TableProfile struct {
	Schema        string                    `json:"schema"`
	Name          string                    `json:"name"`
	QualifiedName string                    `json:"qualified_name"`
	RowCount      int64                     `json:"row_count"`
	Columns       map[string]*ColumnProfile `json:"columns"`
	ColumnOrder   []string                  `json:"column_order"`
	IsArchive     bool                      `json:"is_archive"`
	SubjectArea   string                    `json:"subject_area,omitempty"`
	Entities      []string                  `json:"entities,omitempty"`

	// Derived fields, filled once per reflection by AnnotateDerived after
	// the relationship graph and subject areas are built. Cached here so
	// retrieval and the graph expander don't recompute graph metrics per
	// candidate table on every tool call.
	Archetype   TableArchetype `json:"archetype,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	NMetrics    int            `json:"n_metrics"`
	NDates      int            `json:"n_dates"`
	Centrality  float64        `json:"centrality"`
	IsAuditLike bool           `json:"is_audit_like"`
}

// OrderedColumns returns columns in discovery (ordinal) order.
func (t *TableProfile) OrderedColumns() []*ColumnProfile {
	out := make([]*ColumnProfile, 0, len(t.ColumnOrder))
	for _, name := range t.ColumnOrder {
		if c, ok := t.Columns[name]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ForeignKeyEdge is a directed foreign key relationship between two tables.
type ForeignKeyEdge struct {
	SourceTable  string `json:"source_table"`
	SourceColumn string `json:"source_column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`
}

// SubjectArea groups related tables discovered via FK-graph community
// detection, analogous to a star-schema or bounded-context boundary.
type SubjectArea struct {
	ID          string   `json:"id"`
	Tables      []string `json:"tables"`
	IsArchive   bool     `json:"is_archive"`
	Description string   `json:"description,omitempty"`
}

// SchemaCard is the complete reflected-and-profiled view of a database at a
// point in time, keyed by ReflectionHash so downstream caches (semantic
// index, token lexicon, persisted card) can detect staleness.
type SchemaCard struct {
	ReflectionHash string                   `json:"reflection_hash"`
	Dialect        string                   `json:"dialect"`
	GeneratedAt    time.Time                `json:"generated_at"`
	Tables         map[string]*TableProfile `json:"tables"`
	TableOrder     []string                 `json:"table_order"`
	ForeignKeys    []ForeignKeyEdge         `json:"foreign_keys"`
	SubjectAreas   map[string]*SubjectArea  `json:"subject_areas"`
}

// OrderedTables returns tables in discovery order.
func (s *SchemaCard) OrderedTables() []*TableProfile {
	out := make([]*TableProfile, 0, len(s.TableOrder))
	for _, name := range s.TableOrder {
		if t, ok := s.Tables[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Table looks up a table by its "schema.table" qualified name.
func (s *SchemaCard) Table(qualifiedName string) (*TableProfile, bool) {
	t, ok := s.Tables[qualifiedName]
	return t, ok
}

// ComputeReflectionHash derives a stable fingerprint from dialect plus the
// sorted set of qualified table names and their column names, so that an
// unchanged schema reflects to the same hash across process restarts and
// cache keys remain valid.
func ComputeReflectionHash(dialect string, tables map[string]*TableProfile) string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(dialect))
	for _, name := range names {
		h.Write([]byte("\x00" + name))
		t := tables[name]
		cols := append([]string(nil), t.ColumnOrder...)
		sort.Strings(cols)
		for _, c := range cols {
			h.Write([]byte("\x01" + c))
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// SemanticIndexEntry is one embedded item (a table, column, or lexicon
// token) in a SemanticIndex.
type SemanticIndexEntry struct {
	Label  string    `json:"label"`
	Vector []float32 `json:"vector"`
}

// SemanticIndex is a brute-force cosine-similarity nearest-neighbor index
// over embedded schema items. Vectors are L2-normalized at Build time so
// cosine similarity reduces to a dot product.
type SemanticIndex struct {
	entries []SemanticIndexEntry
	dim     int
}

// TokenLexicon maps morphological tokens (split on non-alnum, lowercased) to
// the schema items whose labels contain them, supporting query-term
// expansion when a user's wording doesn't literally match a column name.
type TokenLexicon struct {
	TokenToItems map[string][]string `json:"token_to_items"`
	TokenDF      map[string]int      `json:"token_df"`
	Index        *SemanticIndex      `json:"-"`
}

// QueryPlan is the structured output of plan_query_for_intent.
type QueryPlan struct {
	Intent            string            `json:"intent"`
	MainTable         string            `json:"main_table"`
	CandidateTables   []string          `json:"candidate_tables"`
	TableSummaries    []TableSummary    `json:"table_summaries"`
	SelectedColumns   []SelectedColumn  `json:"selected_columns"`
	GroupByCandidates []FieldCandidate  `json:"group_by_candidates"`
	FilterCandidates  []FilterCandidate `json:"filter_candidates"`
	JoinExamples      []string          `json:"join_examples"`
	SuggestedApproach string            `json:"suggested_approach"`
}

// TableSummary is the Plan Builder's per-table description: a business
// purpose line plus capped column detail, enough context for an LLM caller
// to write SQL without re-querying get_table_info.
type TableSummary struct {
	Table           string         `json:"table"`
	BusinessPurpose string         `json:"business_purpose"`
	Columns         []ColumnDetail `json:"columns"`
	PrimaryKeys     []string       `json:"primary_keys"`
	CommonFilters   []string       `json:"common_filters"`
}

// ColumnDetail is one column's entry within a TableSummary.
type ColumnDetail struct {
	Name         string   `json:"name"`
	SQLType      string   `json:"sql_type"`
	Nullable     bool     `json:"nullable"`
	IsPrimaryKey bool     `json:"is_primary_key"`
	IsForeignKey bool     `json:"is_foreign_key"`
	BusinessRole string   `json:"business_role"`
	SampleValues []string `json:"sample_values,omitempty"`
	Constraints  []string `json:"constraints,omitempty"`
}

// SelectedColumn is a column the Plan Builder recommends including in a
// SELECT list, with a human-readable reason.
type SelectedColumn struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// FieldCandidate is a column suggested for GROUP BY.
type FieldCandidate struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// FilterCandidate is a column suggested for WHERE, with example operators.
type FilterCandidate struct {
	Table     string   `json:"table"`
	Column    string   `json:"column"`
	Operators []string `json:"operators"`
	Reason    string   `json:"reason"`
}

// InitPhase enumerates the lifecycle of the background schema index build.
type InitPhase string

const (
	InitPhaseIdle     InitPhase = "idle"
	InitPhaseStarting InitPhase = "starting"
	InitPhaseRunning  InitPhase = "running"
	InitPhaseReady    InitPhase = "ready"
	InitPhaseFailed   InitPhase = "failed"
	InitPhaseStopped  InitPhase = "stopped"
)

// NotReadyPhases are the phases in which tool calls must reject with
// ErrNotReady rather than reading a nil/partial SchemaCard.
var NotReadyPhases = map[InitPhase]bool{
	InitPhaseIdle:     true,
	InitPhaseStarting: true,
	InitPhaseRunning:  true,
}

// InitState is the point-in-time status surfaced by get_init_status.
type InitState struct {
	Phase        InitPhase  `json:"phase"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Attempts     int        `json:"attempts"`

	// Enrichment substate, supplemented beyond spec.md's five named fields
	// per SPEC_FULL.md §C.1 (original's schema_service_manager tracks these
	// independently of the main init phase).
	EnrichmentInProgress  bool       `json:"enrichment_in_progress"`
	EnrichmentStartedAt   *time.Time `json:"enrichment_started_at,omitempty"`
	EnrichmentCompletedAt *time.Time `json:"enrichment_completed_at,omitempty"`
	EnrichmentError       string     `json:"enrichment_error,omitempty"`
}

