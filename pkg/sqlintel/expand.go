package sqlintel

import "sort"

// ExpansionStrategy selects how the Graph Expander grows a seed table set.
type ExpansionStrategy string

const (
	// ExpandFKFollowing scores direct FK-neighbors by table utility and adds
	// the highest-scoring ones until the cap is reached.
	ExpandFKFollowing ExpansionStrategy = "fk_following"
	// ExpandSimple adds every direct FK-neighbor with no ranking.
	ExpandSimple ExpansionStrategy = "simple"
)

// GraphExpander grows a seed set of tables into a richer candidate set for
// query planning by following foreign-key relationships. Seed order is
// always preserved, and a table absent from the card's Tables is never
// included regardless of strategy.
type GraphExpander struct {
	card *SchemaCard
	g    *relGraph
}

// NewGraphExpander builds a GraphExpander over a reflected card. g may be
// nil, in which case utility scoring falls back to archetype/metrics/dates
// only (no centrality or in/out-degree signal).
func NewGraphExpander(card *SchemaCard, g *relGraph) *GraphExpander {
	return &GraphExpander{card: card, g: g}
}

// nodeUtility scores how valuable a candidate table is for inclusion,
// combining its dimensional-modeling archetype with measure richness, graph
// centrality, and penalties for audit-like or archive tables.
func (x *GraphExpander) nodeUtility(qualified string) float64 {
	tp, ok := x.card.Tables[qualified]
	if !ok {
		return 0
	}
	score := 0.0
	switch tp.Archetype {
	case ArchetypeFact:
		score += 2.0
	case ArchetypeDimension:
		score += 1.0
	default:
		score += 0.5
	}

	metrics := tp.NMetrics
	if metrics > 2 {
		metrics = 2
	}
	score += 0.3 * float64(metrics)
	if tp.NDates > 0 {
		score += 0.2
	}
	score += 0.2 * tp.Centrality
	if tp.IsAuditLike {
		score -= 0.5
	}
	if tp.IsArchive {
		score -= 0.6
	}
	return score
}

// ExpandSimple returns the union of seed tables and their direct FK
// neighbors (either direction), capped at k, with no utility ranking.
func (x *GraphExpander) ExpandSimple(seedTables []string, k int) []string {
	if len(seedTables) == 0 {
		return nil
	}
	seedSet := make(map[string]bool, len(seedTables))
	var order []string
	for _, s := range seedTables {
		if _, ok := x.card.Tables[s]; !ok {
			continue
		}
		if !seedSet[s] {
			seedSet[s] = true
			order = append(order, s)
		}
	}

	neighborSet := make(map[string]bool)
	for _, fk := range x.card.ForeignKeys {
		if seedSet[fk.SourceTable] {
			if _, ok := x.card.Tables[fk.TargetTable]; ok && !seedSet[fk.TargetTable] {
				neighborSet[fk.TargetTable] = true
			}
		}
		if seedSet[fk.TargetTable] {
			if _, ok := x.card.Tables[fk.SourceTable]; ok && !seedSet[fk.SourceTable] {
				neighborSet[fk.SourceTable] = true
			}
		}
	}
	neighbors := make([]string, 0, len(neighborSet))
	for n := range neighborSet {
		neighbors = append(neighbors, n)
	}
	sort.Strings(neighbors)

	result := append(order, neighbors...)
	if k > 0 && len(result) > k {
		result = result[:k]
	}
	return result
}

// ExpandFKFollowing includes every seed table first, in order, then adds
// direct FK-neighbors of the currently selected set in descending utility
// order until reaching k. Neighbors whose subject area matches the first
// seed's get a small consistency bonus, so expansion tends to stay within
// one business domain rather than wandering across unrelated areas.
func (x *GraphExpander) ExpandFKFollowing(seedTables []string, k int) []string {
	var validSeeds []string
	for _, s := range seedTables {
		if _, ok := x.card.Tables[s]; ok {
			validSeeds = append(validSeeds, s)
		}
	}
	if len(validSeeds) == 0 || k <= 0 {
		return nil
	}

	selected := make([]string, 0, k)
	selectedSet := make(map[string]bool, k)
	for _, seed := range validSeeds {
		if len(selected) >= k {
			break
		}
		selected = append(selected, seed)
		selectedSet[seed] = true
	}

	var mainArea string
	if mainTP, ok := x.card.Tables[validSeeds[0]]; ok {
		mainArea = mainTP.SubjectArea
	}

	type scored struct {
		utility float64
		table   string
	}
	var candidates []scored
	for _, fk := range x.card.ForeignKeys {
		source, target := fk.SourceTable, fk.TargetTable
		switch {
		case selectedSet[source] && !selectedSet[target]:
			if _, ok := x.card.Tables[target]; !ok {
				continue
			}
			candidates = append(candidates, scored{x.neighborUtility(target, mainArea), target})
		case selectedSet[target] && !selectedSet[source]:
			if _, ok := x.card.Tables[source]; !ok {
				continue
			}
			candidates = append(candidates, scored{x.neighborUtility(source, mainArea), source})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].utility != candidates[j].utility {
			return candidates[i].utility > candidates[j].utility
		}
		return candidates[i].table < candidates[j].table
	})

	for _, c := range candidates {
		if len(selected) >= k {
			break
		}
		if selectedSet[c.table] {
			continue
		}
		selected = append(selected, c.table)
		selectedSet[c.table] = true
	}

	if len(selected) > k {
		selected = selected[:k]
	}
	return selected
}

func (x *GraphExpander) neighborUtility(qualified, mainArea string) float64 {
	utility := x.nodeUtility(qualified)
	if mainArea != "" {
		if tp, ok := x.card.Tables[qualified]; ok && tp.SubjectArea == mainArea {
			utility += 0.2
		}
	}
	return utility
}

// Expand dispatches to the configured strategy.
func (x *GraphExpander) Expand(strategy ExpansionStrategy, seedTables []string, k int) []string {
	if strategy == ExpandSimple {
		return x.ExpandSimple(seedTables, k)
	}
	return x.ExpandFKFollowing(seedTables, k)
}
