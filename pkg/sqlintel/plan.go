package sqlintel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/schemasense/engine/pkg/config"
)

// adminColumnTokens mark audit/admin columns (last_edited_by, created_by,
// …) that make a poor join bridge even when structurally connected.
var adminColumnTokens = setOf(
	"last", "edited", "edit", "lastedited", "lasteditedby", "created",
	"create", "createdby", "modified", "modify", "modifiedby", "update",
	"updated", "updatedby", "change", "changed",
)

// identityTableTokens mark generic identity/account tables that, when used
// as a bridge, usually indicate an admin-audit relationship rather than a
// real business join.
var identityTableTokens = setOf(
	"user", "users", "person", "people", "employee", "employees", "staff",
	"account", "accounts", "login", "logon", "owner", "ownerid",
)

// PlanBuilder produces a QueryPlan for a selected candidate table set and
// query text.
type PlanBuilder struct {
	card *SchemaCard
	g    *relGraph
	cfg  config.PlanningConfig
}

// NewPlanBuilder builds a PlanBuilder over a reflected card and its
// relationship graph.
func NewPlanBuilder(card *SchemaCard, g *relGraph, cfg config.PlanningConfig) *PlanBuilder {
	if cfg.MaxColumnsPerTable <= 0 {
		cfg.MaxColumnsPerTable = 12
	}
	if cfg.JoinLimit <= 0 {
		cfg.JoinLimit = 10
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 8
	}
	return &PlanBuilder{card: card, g: g, cfg: cfg}
}

// Build produces a QueryPlan for the given selected tables and query text.
// selectedTables is not mutated; the returned plan's CandidateTables may
// include bridge tables added during augmentation.
func (b *PlanBuilder) Build(query string, selectedTables []string) *QueryPlan {
	var valid []string
	for _, t := range selectedTables {
		if _, ok := b.card.Tables[t]; ok {
			valid = append(valid, t)
		}
	}

	mainTable, dims := b.selectMainTable(query, valid)
	augmented := valid
	if mainTable != "" {
		augmented = b.augmentWithBridges(valid, mainTable)
	}

	plan := &QueryPlan{
		Intent:          query,
		MainTable:       mainTable,
		CandidateTables: augmented,
	}
	plan.TableSummaries = b.tableSummaries(augmented)
	plan.GroupByCandidates = b.groupByCandidates(mainTable, dims)
	plan.FilterCandidates = b.filterCandidates(augmented)
	plan.SelectedColumns = b.selectedColumns(mainTable, dims)
	plan.JoinExamples = b.joinExamples(augmented, mainTable, query)
	plan.SuggestedApproach = b.suggestedApproach(query, mainTable, dims)
	return plan
}

// selectMainTable ranks candidate tables by n_metrics·2 + (n_dates>0?1:0) +
// (archetype=FACT?1.5:0) + 0.3·centrality + lexical overlap with query
// tokens, returning the top-ranked table and its directly-connected
// dimension candidates (also ranked).
func (b *PlanBuilder) selectMainTable(query string, tables []string) (string, []string) {
	if len(tables) == 0 {
		return "", nil
	}
	qtokens := make(map[string]bool)
	for _, t := range tokensFromText(query) {
		qtokens[t] = true
	}

	score := func(qualified string) float64 {
		tp, ok := b.card.Tables[qualified]
		if !ok {
			return 0
		}
		s := float64(tp.NMetrics) * 2
		if tp.NDates > 0 {
			s++
		}
		if tp.Archetype == ArchetypeFact {
			s += 1.5
		}
		s += 0.3 * tp.Centrality
		overlap := 0
		for _, tok := range tokensFromText(tp.Name) {
			if qtokens[tok] {
				overlap++
			}
		}
		if overlap > 0 {
			extra := overlap - 1
			if extra > 2 {
				extra = 2
			}
			s += 0.4 + 0.1*float64(extra)
		}
		return s
	}

	ranked := append([]string(nil), tables...)
	sort.SliceStable(ranked, func(i, j int) bool { return score(ranked[i]) > score(ranked[j]) })
	mainTable := ranked[0]

	tableSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		tableSet[t] = true
	}
	dimSet := make(map[string]bool)
	var dimCandidates []string
	for _, fk := range b.card.ForeignKeys {
		var other string
		switch {
		case fk.SourceTable == mainTable && tableSet[fk.TargetTable]:
			other = fk.TargetTable
		case fk.TargetTable == mainTable && tableSet[fk.SourceTable]:
			other = fk.SourceTable
		default:
			continue
		}
		if !dimSet[other] {
			dimSet[other] = true
			dimCandidates = append(dimCandidates, other)
		}
	}

	dimScore := func(qualified string) float64 {
		tp, ok := b.card.Tables[qualified]
		if !ok {
			return 0
		}
		s := 0.0
		if tp.Archetype == ArchetypeDimension {
			s += 1.0
		}
		catCount := 0
		for _, c := range tp.Columns {
			if c.Kind == ColumnKindEnum || c.Kind == ColumnKindDimension {
				catCount++
			}
		}
		if catCount > 8 {
			catCount = 8
		}
		s += 0.15 * float64(catCount)
		if tp.NDates > 0 {
			s += 0.3
		}
		return s
	}
	sort.SliceStable(dimCandidates, func(i, j int) bool { return dimScore(dimCandidates[i]) > dimScore(dimCandidates[j]) })
	if len(dimCandidates) > 3 {
		dimCandidates = dimCandidates[:3]
	}
	return mainTable, dimCandidates
}

// augmentWithBridges inserts a one-hop bridge table X between main_table and
// any selected table T not directly connected to it, when main_table—X and
// X—T are both edges. Order is preserved; two-or-more-hop gaps are left
// unbridged.
func (b *PlanBuilder) augmentWithBridges(selected []string, mainTable string) []string {
	if _, ok := b.card.Tables[mainTable]; !ok {
		return selected
	}

	var out []string
	seen := make(map[string]bool, len(selected))
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	mainNeighbors := b.g.adjacency[mainTable]

	for _, t := range selected {
		add(t)
		if t == mainTable {
			continue
		}
		if mainNeighbors[t] {
			continue
		}
		var bestX string
		bestScore := -1.0
		found := false
		for x := range mainNeighbors {
			if _, ok := b.card.Tables[x]; !ok {
				continue
			}
			if !b.g.adjacency[x][t] {
				continue
			}
			s := b.scoreBridge(mainTable, x, t)
			if !found || s > bestScore {
				bestScore = s
				bestX = x
				found = true
			} else if s == bestScore && x < bestX {
				bestX = x
			}
		}
		if found {
			add(bestX)
		}
	}
	return out
}

func (b *PlanBuilder) scoreBridge(mainTable, x, dest string) float64 {
	score := 0.0
	tpX, okX := b.card.Tables[x]
	tpMain, okMain := b.card.Tables[mainTable]
	tpDest, okDest := b.card.Tables[dest]

	if okX && tpX.IsAuditLike {
		score -= 0.6
	}
	if okX && okMain && tpX.SubjectArea == tpMain.SubjectArea {
		score += 0.2
	}
	if okX && okDest && tpX.SubjectArea == tpDest.SubjectArea {
		score += 0.2
	}

	score += b.edgePenalty(mainTable, x)
	score += b.edgePenalty(x, dest)

	nameToks := make(map[string]bool)
	for _, tok := range tokensFromText(x) {
		nameToks[tok] = true
	}
	if intersects(nameToks, identityTableTokens) {
		score -= 0.2
	}
	return score
}

// edgePenalty inspects the FK column names joining u and v for admin/audit
// patterns and identity-table bridge smells, and rewards clean id-to-id
// joins.
func (b *PlanBuilder) edgePenalty(u, v string) float64 {
	pen := 0.0
	for _, fk := range b.card.ForeignKeys {
		var lcol, rcol string
		switch {
		case fk.SourceTable == u && fk.TargetTable == v:
			lcol, rcol = fk.SourceColumn, fk.TargetColumn
		case fk.SourceTable == v && fk.TargetTable == u:
			lcol, rcol = fk.SourceColumn, fk.TargetColumn
		default:
			continue
		}
		ltoks := make(map[string]bool)
		for _, t := range tokensFromText(lcol) {
			ltoks[t] = true
		}
		rtoks := make(map[string]bool)
		for _, t := range tokensFromText(rcol) {
			rtoks[t] = true
		}
		if intersects(ltoks, adminColumnTokens) || intersects(rtoks, adminColumnTokens) {
			pen -= 0.5
		}
		if (intersects(ltoks, adminColumnTokens) && intersects(rtoks, identityTableTokens)) ||
			(intersects(rtoks, adminColumnTokens) && intersects(ltoks, identityTableTokens)) {
			pen -= 0.4
		}
		hasLeftID := ltoks["id"] && !intersects(ltoks, adminColumnTokens)
		hasRightID := rtoks["id"] && !intersects(rtoks, adminColumnTokens)
		if hasLeftID || hasRightID {
			pen += 0.1
		}
	}
	return pen
}

func intersects(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

// joinExamples builds dialect-compiled ON-clause join examples for every
// foreign key whose endpoints are both in selected, ranked by proximity to
// main_table, fact→dimension preference, and query token overlap.
func (b *PlanBuilder) joinExamples(selected []string, mainTable, query string) []string {
	selectedSet := make(map[string]bool, len(selected))
	for _, t := range selected {
		selectedSet[t] = true
	}
	qtokens := make(map[string]bool)
	for _, t := range tokensFromText(query) {
		qtokens[t] = true
	}

	type scored struct {
		score float64
		sql   string
	}
	var items []scored
	for _, fk := range b.card.ForeignKeys {
		if !selectedSet[fk.SourceTable] || !selectedSet[fk.TargetTable] {
			continue
		}
		score := 0.0
		if mainTable != "" && (fk.SourceTable == mainTable || fk.TargetTable == mainTable) {
			score += 1.0
		}
		src, okSrc := b.card.Tables[fk.SourceTable]
		dst, okDst := b.card.Tables[fk.TargetTable]
		if okSrc && okDst && src.Archetype == ArchetypeFact && dst.Archetype == ArchetypeDimension {
			score += 0.2
		}
		srcToks := make(map[string]bool)
		for _, t := range tokensFromText(fk.SourceTable) {
			srcToks[t] = true
		}
		dstToks := make(map[string]bool)
		for _, t := range tokensFromText(fk.TargetTable) {
			dstToks[t] = true
		}
		if intersects(qtokens, srcToks) || intersects(qtokens, dstToks) {
			score += 0.2
		}
		if okSrc && okDst && src.Archetype == ArchetypeDimension && dst.Archetype == ArchetypeDimension {
			score -= 0.2
		}
		if fk.SourceTable == fk.TargetTable && fk.SourceTable != mainTable {
			score -= 0.3
		}
		items = append(items, scored{score, compileJoinClause(b.card.Dialect, fk)})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })
	if len(items) > b.cfg.JoinLimit {
		items = items[:b.cfg.JoinLimit]
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.sql
	}
	return out
}

// compileJoinClause renders a dialect-appropriate "ON" clause for a foreign
// key, quoting identifiers the way each dialect adapter does: double quotes
// for postgres, backticks for mysql, brackets for mssql.
func compileJoinClause(dialect string, fk ForeignKeyEdge) string {
	q := func(name string) string {
		switch dialect {
		case "mysql":
			return "`" + strings.ReplaceAll(name, "`", "``") + "`"
		case "mssql":
			return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
		default:
			return pgx.Identifier{name}.Sanitize()
		}
	}
	_, srcTable := splitQualified(fk.SourceTable)
	dstSchema, dstTable := splitQualified(fk.TargetTable)
	target := q(dstTable)
	if dstSchema != "" {
		target = q(dstSchema) + "." + target
	}
	return fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
		target, q(srcTable), q(fk.SourceColumn), q(dstTable), q(fk.TargetColumn))
}

func splitQualified(qualified string) (schema, table string) {
	if idx := strings.LastIndex(qualified, "."); idx >= 0 {
		return qualified[:idx], qualified[idx+1:]
	}
	return "", qualified
}

const maxDistinctValuesForFilters = 10

// tableSummaries builds the per-table business-purpose and column-detail
// listing, capping columns at max_columns_per_table.
func (b *PlanBuilder) tableSummaries(selected []string) []TableSummary {
	out := make([]TableSummary, 0, len(selected))
	for _, qualified := range selected {
		tp, ok := b.card.Tables[qualified]
		if !ok {
			continue
		}
		var pkCols []string
		var columns []ColumnDetail
		cols := tp.OrderedColumns()
		if len(cols) > b.cfg.MaxColumnsPerTable {
			cols = cols[:b.cfg.MaxColumnsPerTable]
		}
		for _, col := range cols {
			if col.IsPrimaryKey {
				pkCols = append(pkCols, col.Name)
			}
			role := string(col.Kind)
			switch {
			case col.IsPrimaryKey:
				role = "primary key"
			case col.IsForeignKey:
				role = "foreign key"
			}
			var constraints []string
			if len(col.EnumValues) > 0 {
				n := len(col.EnumValues)
				if n > 3 {
					n = 3
				}
				constraints = append(constraints, "Enum: "+strings.Join(col.EnumValues[:n], ", "))
			}
			if col.MinLength != nil && col.MaxLength != nil {
				constraints = append(constraints, fmt.Sprintf("Length range: %d-%d", *col.MinLength, *col.MaxLength))
			}
			columns = append(columns, ColumnDetail{
				Name:         col.Name,
				SQLType:      col.DataType,
				Nullable:     col.Nullable,
				IsPrimaryKey: col.IsPrimaryKey,
				IsForeignKey: col.IsForeignKey,
				BusinessRole: role,
				Constraints:  constraints,
			})
		}

		var commonFilters []string
		for _, col := range tp.OrderedColumns() {
			if len(col.EnumValues) > 0 && len(col.EnumValues) <= maxDistinctValuesForFilters {
				n := len(col.EnumValues)
				if n > 3 {
					n = 3
				}
				quoted := make([]string, n)
				for i, v := range col.EnumValues[:n] {
					quoted[i] = "'" + v + "'"
				}
				commonFilters = append(commonFilters, fmt.Sprintf("%s IN (%s)", col.Name, strings.Join(quoted, ", ")))
			} else if col.Kind == ColumnKindDate {
				commonFilters = append(commonFilters, col.Name+" >= 'YYYY-MM-DD'")
			}
		}

		purpose := tp.Summary
		if purpose == "" {
			archetype := tp.Archetype
			if archetype == "" {
				archetype = "operational"
			}
			purpose = string(archetype) + " table"
		}

		out = append(out, TableSummary{
			Table:           qualified,
			BusinessPurpose: purpose,
			Columns:         columns,
			PrimaryKeys:     pkCols,
			CommonFilters:   commonFilters,
		})
	}
	return out
}

func (b *PlanBuilder) groupByCandidates(mainTable string, dims []string) []FieldCandidate {
	var out []FieldCandidate
	for _, dim := range dims {
		tp, ok := b.card.Tables[dim]
		if !ok {
			continue
		}
		for _, col := range tp.OrderedColumns() {
			if col.Kind == ColumnKindEnum || col.Kind == ColumnKindDimension {
				out = append(out, FieldCandidate{Table: dim, Column: col.Name, Reason: "categorical dimension"})
				if len(out) >= b.cfg.MaxItems {
					return out
				}
			}
		}
	}
	if mainTable != "" {
		if tp, ok := b.card.Tables[mainTable]; ok {
			for _, col := range tp.OrderedColumns() {
				if col.Kind == ColumnKindDate {
					out = append(out, FieldCandidate{Table: mainTable, Column: col.Name, Reason: "date grouping"})
					if len(out) >= b.cfg.MaxItems {
						return out
					}
				}
			}
		}
	}
	return out
}

func (b *PlanBuilder) filterCandidates(selected []string) []FilterCandidate {
	var out []FilterCandidate
	add := func(kind string) bool {
		for _, t := range selected {
			tp, ok := b.card.Tables[t]
			if !ok {
				continue
			}
			for _, col := range tp.OrderedColumns() {
				if len(out) >= b.cfg.MaxItems {
					return true
				}
				switch {
				case kind == "date" && col.Kind == ColumnKindDate:
					out = append(out, FilterCandidate{Table: t, Column: col.Name, Operators: []string{">=", "<=", "BETWEEN"}, Reason: "date range filter"})
				case kind == "metric" && col.Kind == ColumnKindMetric:
					out = append(out, FilterCandidate{Table: t, Column: col.Name, Operators: []string{">=", "<=", ">", "<"}, Reason: "metric threshold filter"})
				case kind == "enum" && col.Kind == ColumnKindEnum:
					out = append(out, FilterCandidate{Table: t, Column: col.Name, Operators: []string{"=", "IN"}, Reason: "enum membership filter"})
				}
			}
		}
		return len(out) >= b.cfg.MaxItems
	}
	if add("date") {
		return out
	}
	if add("metric") {
		return out
	}
	add("enum")
	return out
}

func (b *PlanBuilder) selectedColumns(mainTable string, dims []string) []SelectedColumn {
	var out []SelectedColumn
	if mainTable != "" {
		if tp, ok := b.card.Tables[mainTable]; ok {
			for _, col := range tp.OrderedColumns() {
				if col.Kind == ColumnKindMetric {
					out = append(out, SelectedColumn{Table: mainTable, Column: col.Name, Reason: "metric"})
					break
				}
			}
			for _, col := range tp.OrderedColumns() {
				if col.Kind == ColumnKindDate || col.IsPrimaryKey {
					out = append(out, SelectedColumn{Table: mainTable, Column: col.Name, Reason: "date/id"})
					break
				}
			}
		}
	}
	limit := 2
	if limit > len(dims) {
		limit = len(dims)
	}
	for _, dim := range dims[:limit] {
		tp, ok := b.card.Tables[dim]
		if !ok {
			continue
		}
		for _, col := range tp.OrderedColumns() {
			if col.Kind == ColumnKindEnum || col.Kind == ColumnKindDimension {
				out = append(out, SelectedColumn{Table: dim, Column: col.Name, Reason: "group label"})
				break
			}
		}
	}
	if len(out) > b.cfg.MaxItems {
		out = out[:b.cfg.MaxItems]
	}
	return out
}

func (b *PlanBuilder) suggestedApproach(query, mainTable string, dims []string) string {
	if mainTable == "" {
		return fmt.Sprintf("Query: %s\n1. Identify a fact-like table\n2. Join to key dimensions (entities/dates)\n3. Aggregate and rank", query)
	}
	dimsStr := "key dimensions"
	if len(dims) > 0 {
		dimsStr = strings.Join(dims, ", ")
	}
	return fmt.Sprintf(
		"Query: %s\n1. Main table: %s\n2. Join: %s → %s\n3. Aggregate metric(s), GROUP BY dimension(s)\n4. ORDER BY metric DESC and limit/top",
		query, mainTable, mainTable, dimsStr)
}
