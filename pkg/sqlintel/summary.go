package sqlintel

import (
	"fmt"
	"sort"
	"strings"
)

// DatabaseSummary is the output of get_database_overview: a compact,
// whole-database orientation for a caller that hasn't yet picked tables.
type DatabaseSummary struct {
	Dialect             string                        `json:"dialect"`
	TotalTables         int                           `json:"total_tables"`
	Schemas             []string                      `json:"schemas"`
	SubjectAreas        map[string]string             `json:"subject_areas"`
	SubjectAreaDetails  map[string]SubjectAreaSummary  `json:"subject_area_details,omitempty"`
	MostImportantTables []string                      `json:"most_important_tables"`
	CommonPatterns      []string                      `json:"common_patterns"`
}

// SubjectAreaSummary describes one subject area for get_subject_areas and
// the detailed branch of get_database_overview.
type SubjectAreaSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Tables  []string `json:"tables"`
	Summary string   `json:"summary"`
}

// importantTableLimit is the fallback slot count for most_important_tables
// when archive/audit suppression would otherwise leave the list short.
const importantTableLimit = 8

// GetDatabaseOverview assembles the whole-database orientation: dialect,
// table count, schema list, subject areas (compact or detailed), a
// centrality-ranked important-table list with archive/audit suppressed
// until slots run short, and a handful of structural pattern labels.
func (e *Explorer) GetDatabaseOverview(includeSubjectAreas bool, areaLimit int) *DatabaseSummary {
	if areaLimit < 1 {
		areaLimit = 8
	}
	card := e.Card

	schemaSet := make(map[string]bool)
	for _, tp := range card.Tables {
		if tp.Schema != "" {
			schemaSet[tp.Schema] = true
		}
	}
	schemas := make([]string, 0, len(schemaSet))
	for s := range schemaSet {
		schemas = append(schemas, s)
	}
	sort.Strings(schemas)

	areas := e.rankedSubjectAreas(areaLimit)
	compact := make(map[string]string, len(areas))
	var detailed map[string]SubjectAreaSummary
	if includeSubjectAreas {
		detailed = make(map[string]SubjectAreaSummary, len(areas))
	}
	for _, a := range areas {
		compact[a.ID] = a.Summary
		if includeSubjectAreas {
			detailed[a.ID] = a
		}
	}

	return &DatabaseSummary{
		Dialect:             card.Dialect,
		TotalTables:         len(card.Tables),
		Schemas:             schemas,
		SubjectAreas:        compact,
		SubjectAreaDetails:  detailed,
		MostImportantTables: e.mostImportantTables(importantTableLimit),
		CommonPatterns:      e.commonPatterns(),
	}
}

// GetSubjectAreas returns subject areas sorted by member-table count
// descending, capped at limit.
func (e *Explorer) GetSubjectAreas(limit int) []SubjectAreaSummary {
	if limit < 1 {
		limit = 12
	}
	return e.rankedSubjectAreas(limit)
}

func (e *Explorer) rankedSubjectAreas(limit int) []SubjectAreaSummary {
	out := make([]SubjectAreaSummary, 0, len(e.Card.SubjectAreas))
	for id, area := range e.Card.SubjectAreas {
		tables := append([]string(nil), area.Tables...)
		sort.Strings(tables)
		name := area.Description
		if name == "" {
			name = "Subject area " + id
		}
		out = append(out, SubjectAreaSummary{
			ID:      id,
			Name:    name,
			Tables:  tables,
			Summary: name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Tables) != len(out[j].Tables) {
			return len(out[i].Tables) > len(out[j].Tables)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// mostImportantTables ranks tables by centrality descending, suppressing
// archive and audit-like tables first; if suppression leaves fewer than
// limit tables, archive/audit tables are appended (still centrality
// ranked) to fill the remaining slots rather than leaving the list short.
func (e *Explorer) mostImportantTables(limit int) []string {
	tables := e.Card.OrderedTables()
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].Centrality > tables[j].Centrality
	})

	var primary, fallback []string
	for _, t := range tables {
		if t.IsArchive || t.IsAuditLike {
			fallback = append(fallback, t.QualifiedName)
		} else {
			primary = append(primary, t.QualifiedName)
		}
	}
	out := primary
	if len(out) > limit {
		return out[:limit]
	}
	for _, t := range fallback {
		if len(out) >= limit {
			break
		}
		out = append(out, t)
	}
	return out
}

// commonPatterns applies a few structural heuristics over the schema as a
// whole: co-presence of FACT and DIMENSION tables suggests a star schema;
// an edge count exceeding the table count suggests a normalized/OLTP
// design; the presence of date and metric columns across many tables
// suggests time-series or analytics usage.
func (e *Explorer) commonPatterns() []string {
	var hasFact, hasDimension bool
	var tablesWithDates, tablesWithMetrics int
	for _, t := range e.Card.Tables {
		switch t.Archetype {
		case ArchetypeFact:
			hasFact = true
		case ArchetypeDimension:
			hasDimension = true
		}
		if t.NDates > 0 {
			tablesWithDates++
		}
		if t.NMetrics > 0 {
			tablesWithMetrics++
		}
	}

	var patterns []string
	if hasFact && hasDimension {
		patterns = append(patterns, "Star schema")
	}
	if len(e.Card.ForeignKeys) > len(e.Card.Tables) {
		patterns = append(patterns, "Normalized")
	}
	if tablesWithDates > 0 && float64(tablesWithDates) >= 0.3*float64(len(e.Card.Tables)) {
		patterns = append(patterns, "Time-series")
	}
	if tablesWithMetrics > 0 && hasFact {
		patterns = append(patterns, "Analytics")
	}
	return patterns
}

// TableInfo is the output of get_table_info: everything a caller needs to
// write SQL against one table without a second round trip.
type TableInfo struct {
	Table               string             `json:"table"`
	BusinessDescription string             `json:"business_description"`
	Columns             []ColumnDetail     `json:"columns"`
	Relationships       []RelationshipInfo `json:"relationships"`
	TypicalQueries      []string           `json:"typical_queries"`
	IndexingNotes       []string           `json:"indexing_notes"`
	PrimaryKeys         []string           `json:"primary_keys"`
	ForeignKeys         []string           `json:"foreign_keys"`
	ApproxRowcount      int64              `json:"approx_rowcount"`
}

// RelationshipInfo is one dialect-compiled join relationship from
// get_table_info, with an inferred cardinality label.
type RelationshipInfo struct {
	Table       string `json:"table"`
	SQL         string `json:"sql"`
	Cardinality string `json:"cardinality"`
}

// GetTableInfo assembles TableInfo for one qualified table key. Per the
// archive-exclusion open question, this never consults
// strict_archive_exclude: archive tables are reported, not filtered, here.
func (e *Explorer) GetTableInfo(qualified string, includeSamples bool, roleFilter map[ColumnKind]bool, maxSampleValues, relationshipLimit int) (*TableInfo, error) {
	tp, err := e.Table(qualified)
	if err != nil {
		return nil, err
	}
	if maxSampleValues < 0 {
		maxSampleValues = 5
	}
	if relationshipLimit <= 0 {
		relationshipLimit = 10
	}

	cols := tp.OrderedColumns()
	details := make([]ColumnDetail, 0, len(cols))
	var pkCols, fkDescs []string
	for _, col := range cols {
		if col.IsPrimaryKey {
			pkCols = append(pkCols, col.Name)
		}
		if col.IsForeignKey {
			fkDescs = append(fkDescs, fmt.Sprintf("%s.%s->%s.%s", qualified, col.Name, col.ReferencesTable, col.ReferencesCol))
		}
		if len(roleFilter) > 0 && !roleFilter[col.Kind] {
			continue
		}
		detail := ColumnDetail{
			Name:         col.Name,
			SQLType:      col.DataType,
			Nullable:     col.Nullable,
			IsPrimaryKey: col.IsPrimaryKey,
			IsForeignKey: col.IsForeignKey,
			BusinessRole: string(col.Kind),
		}
		if includeSamples && maxSampleValues > 0 && len(col.EnumValues) > 0 {
			n := maxSampleValues
			if n > len(col.EnumValues) {
				n = len(col.EnumValues)
			}
			detail.SampleValues = col.EnumValues[:n]
		}
		if len(col.EnumValues) > 0 {
			detail.Constraints = append(detail.Constraints,
				fmt.Sprintf("enum-like, %d observed distinct values", len(col.EnumValues)))
		}
		if col.Kind == ColumnKindDate {
			detail.Constraints = append(detail.Constraints, "typical filter: >=, <=, BETWEEN")
		}
		details = append(details, detail)
	}

	relationships := e.tableRelationships(tp, relationshipLimit)

	return &TableInfo{
		Table:               qualified,
		BusinessDescription: tp.Summary,
		Columns:             details,
		Relationships:       relationships,
		TypicalQueries:      e.typicalQueries(tp),
		IndexingNotes:       indexingNotes(tp),
		PrimaryKeys:         pkCols,
		ForeignKeys:         fkDescs,
		ApproxRowcount:      tp.RowCount,
	}, nil
}

// tableRelationships compiles dialect-aware JOIN clauses for every FK edge
// touching tp, in either direction, with an inferred cardinality.
func (e *Explorer) tableRelationships(tp *TableProfile, limit int) []RelationshipInfo {
	var out []RelationshipInfo
	for _, fk := range e.Card.ForeignKeys {
		var other string
		var clause string
		switch {
		case fk.SourceTable == tp.QualifiedName:
			other = fk.TargetTable
			clause = compileJoinClause(e.Card.Dialect, fk)
		case fk.TargetTable == tp.QualifiedName:
			other = fk.SourceTable
			reversed := fk
			reversed.SourceTable, reversed.TargetTable = fk.TargetTable, fk.SourceTable
			reversed.SourceColumn, reversed.TargetColumn = fk.TargetColumn, fk.SourceColumn
			clause = compileJoinClause(e.Card.Dialect, reversed)
		default:
			continue
		}
		if _, ok := e.Card.Tables[other]; !ok {
			continue
		}
		out = append(out, RelationshipInfo{
			Table:       other,
			SQL:         clause,
			Cardinality: inferCardinality(tp, fk),
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

func inferCardinality(tp *TableProfile, fk ForeignKeyEdge) string {
	if fk.SourceTable == tp.QualifiedName {
		return "many-to-one"
	}
	return "one-to-many"
}

// typicalQueries formats three example statements with plain string
// formatting (identifiers are not quoted per dialect): a SUM over the first
// metric column, a filter on the first date column, and a primary-key lookup.
func (e *Explorer) typicalQueries(tp *TableProfile) []string {
	var out []string
	cols := tp.OrderedColumns()

	for _, col := range cols {
		if col.Kind == ColumnKindMetric {
			out = append(out, fmt.Sprintf("SELECT SUM(%s) FROM %s", col.Name, tp.QualifiedName))
			break
		}
	}
	for _, col := range cols {
		if col.Kind == ColumnKindDate {
			out = append(out, fmt.Sprintf("SELECT * FROM %s WHERE %s >= '2024-01-01'", tp.QualifiedName, col.Name))
			break
		}
	}
	for _, col := range cols {
		if col.IsPrimaryKey {
			out = append(out, fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", tp.QualifiedName, col.Name))
			break
		}
	}
	return out
}

// indexingNotes surfaces PK/FK index hints: every FK column is a strong
// index candidate if the target database lacks an implicit one.
func indexingNotes(tp *TableProfile) []string {
	var notes []string
	for _, col := range tp.OrderedColumns() {
		if col.IsPrimaryKey {
			notes = append(notes, fmt.Sprintf("%s is the primary key, indexed by default", col.Name))
		}
		if col.IsForeignKey {
			notes = append(notes, fmt.Sprintf("%s references %s; index it if not already indexed", col.Name, col.ReferencesTable))
		}
	}
	return notes
}

// sanitizeSQLType strips a COLLATE clause and normalizes casing/quoting on
// a raw driver-reported type string. No code path calls it; sql_type values
// are reported as the driver returns them.
func sanitizeSQLType(raw string) string {
	t := strings.TrimSpace(raw)
	if idx := strings.Index(strings.ToUpper(t), "COLLATE"); idx >= 0 {
		t = strings.TrimSpace(t[:idx])
	}
	t = strings.Trim(t, "`\"[]")
	return strings.ToLower(t)
}
