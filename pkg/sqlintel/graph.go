package sqlintel

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"
)

// TableArchetype is a dimensional-modeling role inferred from a table's
// structure and its position in the foreign-key graph.
type TableArchetype string

const (
	ArchetypeFact        TableArchetype = "fact"
	ArchetypeDimension   TableArchetype = "dimension"
	ArchetypeBridge      TableArchetype = "bridge"
	ArchetypeReference   TableArchetype = "reference"
	ArchetypeOperational TableArchetype = "operational"
)

// Classification thresholds for archetype detection, named rather than
// inlined so the heuristics in ClassifyArchetype read the same as their
// definitions.
const (
	minPKColsForBridge         = 2
	maxNonKeyColsForBridge     = 1
	minConnectionsForBridge    = 2
	minMetricsForFact          = 2
	minDatesForFact            = 1
	minConnectionsForFact      = 2
	minInDegreeForDimension    = 2
	maxMetricsForDimension     = 1
	maxColsForReference        = 4
	minConnectionsForReference = 1
)

// relGraph is an undirected adjacency representation of the foreign-key
// graph over qualified table names, built once per reflection pass and
// reused for centrality, community detection, and archetype classification.
type relGraph struct {
	adjacency map[string]map[string]bool
	outDegree map[string]int
	inDegree  map[string]int
}

// GraphBuilder constructs the table relationship graph from a SchemaCard's
// discovered foreign keys.
type GraphBuilder struct{}

// NewGraphBuilder returns a ready-to-use GraphBuilder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{}
}

// Build creates a relationship graph with one node per table and one edge
// per foreign key whose target table is also present in tables.
func (GraphBuilder) Build(tables map[string]*TableProfile, fks []ForeignKeyEdge) *relGraph {
	g := &relGraph{
		adjacency: make(map[string]map[string]bool, len(tables)),
		outDegree: make(map[string]int, len(tables)),
		inDegree:  make(map[string]int, len(tables)),
	}
	for name := range tables {
		g.adjacency[name] = make(map[string]bool)
	}
	for _, fk := range fks {
		if _, ok := tables[fk.TargetTable]; !ok {
			continue
		}
		if _, ok := tables[fk.SourceTable]; !ok {
			continue
		}
		if !g.adjacency[fk.SourceTable][fk.TargetTable] {
			g.adjacency[fk.SourceTable][fk.TargetTable] = true
			g.adjacency[fk.TargetTable][fk.SourceTable] = true
		}
		g.outDegree[fk.SourceTable]++
		g.inDegree[fk.TargetTable]++
	}
	return g
}

// DegreeCentrality returns each node's degree normalized by n-1 neighbors,
// matching the conventional degree-centrality definition.
func (g *relGraph) DegreeCentrality() map[string]float64 {
	n := len(g.adjacency)
	centrality := make(map[string]float64, n)
	if n <= 1 {
		for node := range g.adjacency {
			centrality[node] = 0
		}
		return centrality
	}
	for node, neighbors := range g.adjacency {
		centrality[node] = float64(len(neighbors)) / float64(n-1)
	}
	return centrality
}

// DetectCommunities groups tables into subject-area candidates via label
// propagation: each node repeatedly adopts the most common label among its
// neighbors, breaking ties by the lowest label, until labels stop changing
// or an iteration cap is hit. Label propagation is near-linear and, unlike
// modularity maximization, needs no global objective function to evaluate,
// which keeps it cheap enough to rerun on every reflection without pulling
// in a graph library.
func (g *relGraph) DetectCommunities() map[string]int {
	nodes := make([]string, 0, len(g.adjacency))
	for node := range g.adjacency {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	labels := make(map[string]int, len(nodes))
	for i, node := range nodes {
		labels[node] = i
	}

	totalEdges := 0
	for _, neighbors := range g.adjacency {
		totalEdges += len(neighbors)
	}
	if totalEdges == 0 {
		// No foreign keys anywhere in the graph: label propagation has
		// nothing to propagate over, so every node would otherwise keep its
		// own unique seed label. A single shared community is the only
		// partition consistent with "isolated nodes still belong together
		// absent any signal to split them."
		for _, node := range nodes {
			labels[node] = 0
		}
		return labels
	}

	const maxIterations = 100
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for _, node := range nodes {
			neighbors := g.adjacency[node]
			if len(neighbors) == 0 {
				continue
			}
			counts := make(map[int]int)
			for neighbor := range neighbors {
				counts[labels[neighbor]]++
			}
			best, bestCount := labels[node], -1
			// Deterministic: iterate neighbor labels in sorted order so a
			// tie always resolves to the lowest label id regardless of map
			// iteration order.
			candidateLabels := make([]int, 0, len(counts))
			for l := range counts {
				candidateLabels = append(candidateLabels, l)
			}
			sort.Ints(candidateLabels)
			for _, l := range candidateLabels {
				if counts[l] > bestCount {
					bestCount = counts[l]
					best = l
				}
			}
			if best != labels[node] {
				labels[node] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return labels
}

// mergeSmallCommunities folds communities smaller than minSize into the
// neighboring community with which they share the most foreign-key edges,
// and (when mergeArchive is true) folds communities made up entirely of
// archive-pattern tables into whichever non-archive neighbor they connect
// to most. Ties break toward the lower community id for determinism. This
// produces the actual subject-area partition; node_to_community from label
// propagation is only a starting point.
func mergeSmallCommunities(g *relGraph, labels map[string]int, tables map[string]*TableProfile, minSize int, mergeArchive bool) map[string]int {
	merged := make(map[string]int, len(labels))
	for k, v := range labels {
		merged[k] = v
	}

	communityMembers := func(m map[string]int) map[int][]string {
		out := make(map[int][]string)
		for node, label := range m {
			out[label] = append(out[label], node)
		}
		return out
	}

	communityIsAllArchive := func(members []string) bool {
		for _, node := range members {
			if tp, ok := tables[node]; ok && !tp.IsArchive {
				return false
			}
		}
		return len(members) > 0
	}

	// bestNeighborCommunity finds the community (other than excludeLabel)
	// with which `members` shares the most FK edges, optionally restricted
	// to non-archive target communities.
	bestNeighborCommunity := func(members []string, excludeLabel int, nonArchiveOnly bool, members2Community map[int][]string) (int, bool) {
		edgeCount := make(map[int]int)
		memberSet := make(map[string]bool, len(members))
		for _, m := range members {
			memberSet[m] = true
		}
		for _, node := range members {
			for neighbor := range g.adjacency[node] {
				if memberSet[neighbor] {
					continue
				}
				neighborLabel := merged[neighbor]
				if neighborLabel == excludeLabel {
					continue
				}
				if nonArchiveOnly && communityIsAllArchive(members2Community[neighborLabel]) {
					continue
				}
				edgeCount[neighborLabel]++
			}
		}
		if len(edgeCount) == 0 {
			return 0, false
		}
		candidates := make([]int, 0, len(edgeCount))
		for l := range edgeCount {
			candidates = append(candidates, l)
		}
		sort.Slice(candidates, func(i, j int) bool {
			if edgeCount[candidates[i]] != edgeCount[candidates[j]] {
				return edgeCount[candidates[i]] > edgeCount[candidates[j]]
			}
			return candidates[i] < candidates[j]
		})
		return candidates[0], true
	}

	// Pass 1: fold undersized communities into their best-connected
	// neighbor. Repeated until no community shrinks further than minSize,
	// since folding one small community can change another's effective
	// neighbor set.
	for pass := 0; pass < 10; pass++ {
		byCommunity := communityMembers(merged)
		changedAny := false
		labelsAsc := make([]int, 0, len(byCommunity))
		for l := range byCommunity {
			labelsAsc = append(labelsAsc, l)
		}
		sort.Ints(labelsAsc)
		for _, label := range labelsAsc {
			members := byCommunity[label]
			if len(members) >= minSize {
				continue
			}
			target, ok := bestNeighborCommunity(members, label, false, byCommunity)
			if !ok {
				continue
			}
			for _, node := range members {
				merged[node] = target
			}
			changedAny = true
		}
		if !changedAny {
			break
		}
	}

	if mergeArchive {
		byCommunity := communityMembers(merged)
		labelsAsc := make([]int, 0, len(byCommunity))
		for l := range byCommunity {
			labelsAsc = append(labelsAsc, l)
		}
		sort.Ints(labelsAsc)
		for _, label := range labelsAsc {
			members := byCommunity[label]
			if !communityIsAllArchive(members) {
				continue
			}
			target, ok := bestNeighborCommunity(members, label, true, byCommunity)
			if !ok {
				continue
			}
			for _, node := range members {
				merged[node] = target
			}
		}
	}

	return merged
}

// BuildSubjectAreas runs community detection and merging over a SchemaCard's
// tables and returns the final subject-area assignment plus the SubjectArea
// summaries keyed by area id.
func (b GraphBuilder) BuildSubjectAreas(tables map[string]*TableProfile, fks []ForeignKeyEdge, minAreaSize int, mergeArchive bool) (map[string]string, map[string]*SubjectArea) {
	g := b.Build(tables, fks)
	labels := g.DetectCommunities()
	merged := mergeSmallCommunities(g, labels, tables, minAreaSize, mergeArchive)

	assignment := make(map[string]string, len(merged))
	byArea := make(map[string][]string)
	for node, label := range merged {
		id := communityID(label)
		assignment[node] = id
		byArea[id] = append(byArea[id], node)
	}

	areas := make(map[string]*SubjectArea, len(byArea))
	for id, members := range byArea {
		sort.Strings(members)
		allArchive := true
		for _, m := range members {
			if tp, ok := tables[m]; ok && !tp.IsArchive {
				allArchive = false
				break
			}
		}
		areas[id] = &SubjectArea{
			ID:        id,
			Tables:    members,
			IsArchive: allArchive,
		}
	}
	return assignment, areas
}

func communityID(label int) string {
	return "area_" + strconv.Itoa(label)
}

// ClassifyArchetype infers a table's dimensional-modeling role from its
// column roles and graph connectivity.
func ClassifyArchetype(table *TableProfile, g *relGraph) TableArchetype {
	var numMetrics, numDates int
	var pkCols []string
	allPKAreFK := true
	nonKeyCols := 0
	for _, col := range table.OrderedColumns() {
		switch col.Kind {
		case ColumnKindMetric:
			numMetrics++
		case ColumnKindDate:
			numDates++
		}
		if col.IsPrimaryKey {
			pkCols = append(pkCols, col.Name)
			if !col.IsForeignKey {
				allPKAreFK = false
			}
		}
		if !col.IsPrimaryKey && !col.IsForeignKey {
			nonKeyCols++
		}
	}

	outDeg, inDeg := 0, 0
	if g != nil {
		outDeg = g.outDegree[table.QualifiedName]
		inDeg = g.inDegree[table.QualifiedName]
	}
	totalDegree := outDeg + inDeg

	switch {
	case len(pkCols) >= minPKColsForBridge && allPKAreFK &&
		nonKeyCols <= maxNonKeyColsForBridge && totalDegree >= minConnectionsForBridge:
		return ArchetypeBridge
	case numMetrics >= minMetricsForFact && numDates >= minDatesForFact && totalDegree >= minConnectionsForFact:
		return ArchetypeFact
	case inDeg >= minInDegreeForDimension && numMetrics <= maxMetricsForDimension && len(pkCols) == 1:
		return ArchetypeDimension
	case len(table.Columns) <= maxColsForReference && numMetrics == 0 && totalDegree >= minConnectionsForReference:
		return ArchetypeReference
	default:
		return ArchetypeOperational
	}
}

// genericDimensionTokens flags table-name tokens common to generic
// system/audit/lookup tables, used alongside centrality in audit-like
// detection so a well-connected but measure-free table (e.g. "user_status")
// doesn't get mistaken for a dimension worth prioritizing in retrieval.
var genericDimensionTokens = setOf(
	"people", "person", "user", "users", "transaction", "transactions",
	"transactiontype", "transactiontypes", "type", "types", "status",
	"statuses", "method", "methods", "parameter", "parameters", "system",
	"systems", "sys", "log", "logs", "history", "archive", "archived",
	"temp", "tmp", "code", "codes", "lookup", "lookups", "ref", "reference",
	"references",
)

const auditLikeCentralityPercentile = 0.8

// AnnotateDerived fills Archetype, Summary, NMetrics, NDates, Centrality, and
// IsAuditLike on every table after the relationship graph and subject areas
// have been built. Audit-like detection combines two signals: a table name
// built from generic system/lookup tokens, or high graph centrality paired
// with no metric or date columns (a well-connected table that carries no
// measures is usually plumbing, not a subject of interest).
func AnnotateDerived(tables map[string]*TableProfile, g *relGraph) {
	centralities := g.DegreeCentrality()
	values := make([]float64, 0, len(tables))
	for name, tp := range tables {
		tp.Centrality = centralities[name]
		values = append(values, tp.Centrality)

		tp.NMetrics = 0
		tp.NDates = 0
		for _, col := range tp.Columns {
			switch col.Kind {
			case ColumnKindMetric:
				tp.NMetrics++
			case ColumnKindDate:
				tp.NDates++
			}
		}
		tp.Archetype = ClassifyArchetype(tp, g)
		tp.Summary = SummarizeTable(tp, tp.Archetype)
	}

	threshold := percentile(values, auditLikeCentralityPercentile)
	for _, tp := range tables {
		hasGenericToken := false
		for _, tok := range tokensFromText(tp.Name) {
			if genericDimensionTokens[tok] {
				hasGenericToken = true
				break
			}
		}
		highCentralityNoMeasures := tp.Centrality >= threshold && tp.NMetrics == 0 && tp.NDates == 0
		tp.IsAuditLike = hasGenericToken || highCentralityNoMeasures
	}
}

// percentile returns the value at the given fraction (0-1) of a sorted copy
// of values using linear interpolation between closest ranks, matching
// numpy's default percentile behavior closely enough for a threshold cutoff.
func percentile(values []float64, fraction float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := fraction * float64(len(sorted)-1)
	lower := int(pos)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// SummarizeTable produces a short human-readable description of a table
// combining its archetype with a few of its primary-key, date, metric, and
// dimension column names. Foreign key relationships are not included.
func SummarizeTable(table *TableProfile, archetype TableArchetype) string {
	var keyCols, dateCols, metricCols, dimCols []string
	for _, col := range table.OrderedColumns() {
		switch col.Kind {
		case ColumnKindPrimaryKey:
			if len(keyCols) < 3 {
				keyCols = append(keyCols, col.Name)
			}
		case ColumnKindDate:
			if len(dateCols) < 2 {
				dateCols = append(dateCols, col.Name)
			}
		case ColumnKindMetric:
			if len(metricCols) < 5 {
				metricCols = append(metricCols, col.Name)
			}
		case ColumnKindEnum, ColumnKindText, ColumnKindDimension:
			if len(dimCols) < 6 {
				dimCols = append(dimCols, col.Name)
			}
		}
	}

	noun := inflection.Singular(strings.ToLower(table.Name))
	summary := table.QualifiedName + " is a " + string(archetype) + " table, one row per " + noun
	if len(keyCols) > 0 {
		summary += "; keys: " + strings.Join(keyCols, ", ")
	}
	if len(dateCols) > 0 {
		summary += "; dates: " + strings.Join(dateCols, ", ")
	}
	if len(metricCols) > 0 {
		summary += "; measures: " + strings.Join(metricCols, ", ")
	}
	if len(dimCols) > 0 {
		summary += "; top dims: " + strings.Join(dimCols, ", ")
	}
	return summary
}
