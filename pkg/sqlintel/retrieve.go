package sqlintel

import (
	"context"
	"math"
	"sort"

	"github.com/schemasense/engine/pkg/config"
)

// RetrievalApproach selects one of the four table-retrieval strategies.
type RetrievalApproach string

const (
	ApproachLexical         RetrievalApproach = "lexical"
	ApproachEmbeddingTable  RetrievalApproach = "emb_table"
	ApproachEmbeddingColumn RetrievalApproach = "emb_column"
	ApproachCombined        RetrievalApproach = "combo"
)

var aggregationIntentTokens = setOf(
	"top", "rank", "ranked", "sum", "total", "count", "avg", "average",
	"median", "percent", "percentage",
)

// TableScore is one ranked retrieval result.
type TableScore struct {
	Table string
	Score float64
}

// RetrievalEngine produces ranked table candidates for a free-form query
// over a single SchemaCard. It degrades gracefully when no Embedder/indices
// are available: lexical retrieval alone still works, and COMBINED falls
// back to pure lexical scores.
type RetrievalEngine struct {
	card           *SchemaCard
	embedder       *Embedder
	tableIndex     *SemanticIndex
	columnIndex    *SemanticIndex
	lexicon        *TokenLexicon
	lexicalWeights map[string]map[string]float64
	excludeArchive bool
	cfg            config.RetrievalConfig
}

// NewRetrievalEngine builds a RetrievalEngine. embedder/tableIndex/
// columnIndex/lexicon may all be nil if enrichment hasn't completed or the
// embedding backend is disabled; lexicalWeights must be pre-built via
// BuildLexicalWeights.
func NewRetrievalEngine(
	card *SchemaCard,
	embedder *Embedder,
	tableIndex, columnIndex *SemanticIndex,
	lexicon *TokenLexicon,
	lexicalWeights map[string]map[string]float64,
	cfg config.RetrievalConfig,
	excludeArchives bool,
) *RetrievalEngine {
	return &RetrievalEngine{
		card:           card,
		embedder:       embedder,
		tableIndex:     tableIndex,
		columnIndex:    columnIndex,
		lexicon:        lexicon,
		lexicalWeights: lexicalWeights,
		excludeArchive: excludeArchives,
		cfg:            cfg,
	}
}

// BuildLexicalWeights precomputes each table's token weight vector: 2.0 per
// table-name token, 0.5 per schema token, 1.0 per column-name token, 0.5 per
// column-role token; archive tables get all weights scaled by 0.2.
func BuildLexicalWeights(card *SchemaCard) map[string]map[string]float64 {
	weights := make(map[string]map[string]float64, len(card.Tables))
	for qualified, table := range card.Tables {
		w := make(map[string]float64)
		add := func(tok string, weight float64) {
			if tok == "" {
				return
			}
			w[tok] += weight
		}
		for _, tok := range tokensFromText(table.Name) {
			add(tok, 2.0)
		}
		for _, tok := range tokensFromText(table.Schema) {
			add(tok, 0.5)
		}
		for _, col := range table.OrderedColumns() {
			for _, tok := range tokensFromText(col.Name) {
				add(tok, 1.0)
			}
			add(string(col.Kind), 0.5)
		}
		if table.IsArchive {
			for k := range w {
				w[k] *= 0.2
			}
		}
		weights[qualified] = w
	}
	return weights
}

func (e *RetrievalEngine) filterArchivePriority(items []TableScore, k int) []TableScore {
	var nonArchive, archive []TableScore
	for _, it := range items {
		tp, ok := e.card.Tables[it.Table]
		if ok && tp.IsArchive {
			archive = append(archive, it)
		} else {
			nonArchive = append(nonArchive, it)
		}
	}
	if e.excludeArchive && len(nonArchive) > 0 {
		if len(nonArchive) > k {
			return nonArchive[:k]
		}
		return nonArchive
	}
	result := nonArchive
	if len(result) > k {
		result = result[:k]
	}
	if len(result) < k {
		need := k - len(result)
		if need > len(archive) {
			need = len(archive)
		}
		result = append(result, archive[:need]...)
	}
	return result
}

// expandTokens expands base query tokens with singular/plural morphology
// variants and, when embeddings are wired up, semantically related lexicon
// tokens for the raw query.
func (e *RetrievalEngine) expandTokens(ctx context.Context, tokens []string, rawQuery string) map[string]float64 {
	weights := make(map[string]float64)
	morphMin := e.cfg.MorphMinLen
	if morphMin <= 0 {
		morphMin = 3
	}
	for _, t := range tokens {
		if t == "" {
			continue
		}
		weights[t] += 1.0
		if len(t) >= morphMin && len(t) > 1 && t[len(t)-1] == 's' {
			singular := t[:len(t)-1]
			if singular != "" && singular != t {
				weights[singular] += 0.3
			}
		} else if len(t) >= morphMin {
			weights[t+"s"] += 0.3
		}
	}

	if e.embedder != nil && e.lexicon != nil && (e.tableIndex.Len() > 0 || e.columnIndex.Len() > 0) {
		vecs, err := e.embedder.EncodeBatch(ctx, []string{rawQuery})
		if err == nil && len(vecs) > 0 {
			exclude := make([]string, 0, len(weights))
			for k := range weights {
				exclude = append(exclude, k)
			}
			topN := e.cfg.LexiconTopN
			if topN <= 0 {
				topN = 16
			}
			minDF := e.cfg.LexiconMinDF
			if minDF <= 0 {
				minDF = 2
			}
			for _, hit := range e.lexicon.ExpandTokensByQuery(vecs[0], topN, minDF, exclude) {
				sim := hit.Similarity
				if sim < 0 {
					sim = 0
				}
				if sim > 1 {
					sim = 1
				}
				weights[hit.Label] += 0.7 * sim
			}
		}
	}
	return weights
}

// hintBoosts gives small bounded boosts to tables where a query token has
// high lexical weight, learned from the schema's own lexical cache rather
// than a static table hint list.
func (e *RetrievalEngine) hintBoosts(tokens map[string]bool) map[string]float64 {
	boosts := make(map[string]float64)
	const topKPerToken = 20
	for tok := range tokens {
		type tw struct {
			table  string
			weight float64
		}
		var perTable []tw
		for table, weights := range e.lexicalWeights {
			if w := weights[tok]; w > 0 {
				perTable = append(perTable, tw{table, w})
			}
		}
		sort.Slice(perTable, func(i, j int) bool { return perTable[i].weight > perTable[j].weight })
		if len(perTable) > topKPerToken {
			perTable = perTable[:topKPerToken]
		}
		for _, item := range perTable {
			boost := 0.05 + 0.02*item.weight
			if boost > 0.25 {
				boost = 0.25
			}
			boosts[item.table] += boost
		}
	}
	return boosts
}

// RetrieveLexical scores tables by weighted cosine similarity between
// expanded query tokens and each table's precomputed lexical weight vector.
// Tables with no token overlap are left out of the result.
func (e *RetrievalEngine) RetrieveLexical(ctx context.Context, query string, k int) []TableScore {
	queryTokens := tokensFromText(query)
	if len(queryTokens) == 0 {
		return nil
	}
	qWeights := e.expandTokens(ctx, queryTokens, query)

	scores := make(map[string]float64, len(e.lexicalWeights))
	for table, tWeights := range e.lexicalWeights {
		var score, sumSq float64
		for tok, w := range tWeights {
			score += w * qWeights[tok]
			sumSq += w * w
		}
		if score <= 0 {
			continue
		}
		norm := math.Sqrt(sumSq) + 1e-8
		scores[table] = score / norm
	}

	tokenSet := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		tokenSet[t] = true
	}
	for table, boost := range e.hintBoosts(tokenSet) {
		if _, ok := scores[table]; ok {
			scores[table] += boost
		}
	}

	items := sortedScores(scores)
	limit := k * 3
	if limit < 50 {
		limit = 50
	}
	if limit < len(items) {
		items = items[:limit]
	}
	return e.filterArchivePriority(items, k)
}

func sortedScores(scores map[string]float64) []TableScore {
	items := make([]TableScore, 0, len(scores))
	for table, score := range scores {
		items = append(items, TableScore{Table: table, Score: score})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Table < items[j].Table
	})
	return items
}

// RetrieveTableEmbeddings encodes the query and searches the table-level
// semantic index directly.
func (e *RetrievalEngine) RetrieveTableEmbeddings(ctx context.Context, query string, k int) []TableScore {
	if e.embedder == nil || e.tableIndex.Len() == 0 {
		return nil
	}
	vecs, err := e.embedder.EncodeBatch(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		return nil
	}
	limit := k * 3
	if limit < 50 {
		limit = 50
	}
	hits := e.tableIndex.Search(vecs[0], limit)
	items := make([]TableScore, len(hits))
	for i, h := range hits {
		items[i] = TableScore{Table: h.Label, Score: h.Similarity}
	}
	return e.filterArchivePriority(items, k)
}

// RetrieveColumnEmbeddings searches the column-level index and aggregates
// positive similarity scores by owning table.
func (e *RetrievalEngine) RetrieveColumnEmbeddings(ctx context.Context, query string, kTables, kColumns int) []TableScore {
	if e.embedder == nil || e.columnIndex.Len() == 0 {
		return nil
	}
	vecs, err := e.embedder.EncodeBatch(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		return nil
	}
	if kColumns <= 0 {
		kColumns = 50
	}
	hits := e.columnIndex.Search(vecs[0], kColumns)

	tableScores := make(map[string]float64)
	for _, h := range hits {
		table := h.Label
		if idx := indexOfSep(h.Label); idx >= 0 {
			table = h.Label[:idx]
		}
		if h.Similarity > 0 {
			tableScores[table] += h.Similarity
		}
	}

	items := sortedScores(tableScores)
	limit := kTables * 3
	if limit < 50 {
		limit = 50
	}
	if limit < len(items) {
		items = items[:limit]
	}
	return e.filterArchivePriority(items, kTables)
}

func indexOfSep(label string) int {
	for i := 0; i+1 < len(label); i++ {
		if label[i] == ':' && label[i+1] == ':' {
			return i
		}
	}
	return -1
}

// RetrieveCombined min-max normalizes LEXICAL and EMBEDDING-TABLE scores and
// blends them with weight alpha on the embedding side, then applies
// aggregation-intent and lexical-overlap biases.
func (e *RetrievalEngine) RetrieveCombined(ctx context.Context, query string, k int, alpha float64) []TableScore {
	limit := k
	if limit < 50 {
		limit = 50
	}
	embeddingResults := e.RetrieveTableEmbeddings(ctx, query, limit)
	lexicalResults := e.RetrieveLexical(ctx, query, limit)

	normalize := func(items []TableScore) map[string]float64 {
		if len(items) == 0 {
			return nil
		}
		min, max := items[0].Score, items[0].Score
		for _, it := range items {
			if it.Score < min {
				min = it.Score
			}
			if it.Score > max {
				max = it.Score
			}
		}
		rng := (max - min) + 1e-8
		out := make(map[string]float64, len(items))
		for _, it := range items {
			out[it.Table] = (it.Score - min) / rng
		}
		return out
	}

	normEmbedding := normalize(embeddingResults)
	normLexical := normalize(lexicalResults)

	combined := make(map[string]float64)
	for table := range normEmbedding {
		combined[table] += alpha * normEmbedding[table]
	}
	for table := range normLexical {
		combined[table] += (1 - alpha) * normLexical[table]
	}

	rawTokens := tokensFromText(query)
	expanded := e.expandTokens(ctx, rawTokens, query)
	hasAggIntent := false
	for tok := range expanded {
		if aggregationIntentTokens[tok] {
			hasAggIntent = true
			break
		}
	}

	if hasAggIntent {
		for table := range combined {
			tp, ok := e.card.Tables[table]
			if !ok {
				continue
			}
			bonus := 0.0
			if countColumnKind(tp, ColumnKindMetric) > 0 {
				bonus += 0.08
			}
			if countColumnKind(tp, ColumnKindDate) > 0 {
				bonus += 0.04
			}
			if ClassifyArchetype(tp, nil) == ArchetypeFact {
				bonus += 0.06
			}
			combined[table] += bonus
		}
	}

	if len(expanded) > 0 {
		for table := range combined {
			tWeights := e.lexicalWeights[table]
			var overlap, sumSq float64
			for tok := range expanded {
				overlap += tWeights[tok]
			}
			for _, w := range tWeights {
				sumSq += w * w
			}
			norm := math.Sqrt(sumSq) + 1e-8
			combined[table] += 0.12 * (overlap / norm)
		}
	}

	items := sortedScores(combined)
	if limit < len(items) {
		items = items[:limit]
	}
	return e.filterArchivePriority(items, k)
}

func countColumnKind(t *TableProfile, kind ColumnKind) int {
	n := 0
	for _, c := range t.Columns {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Retrieve dispatches to the requested strategy, defaulting alpha to 0.7 for
// COMBINED when unset (alpha <= 0).
func (e *RetrievalEngine) Retrieve(ctx context.Context, query string, approach RetrievalApproach, k int, alpha float64) []TableScore {
	switch approach {
	case ApproachLexical:
		return e.RetrieveLexical(ctx, query, k)
	case ApproachEmbeddingTable:
		return e.RetrieveTableEmbeddings(ctx, query, k)
	case ApproachEmbeddingColumn:
		return e.RetrieveColumnEmbeddings(ctx, query, k, 50)
	default:
		if alpha <= 0 {
			alpha = 0.7
		}
		return e.RetrieveCombined(ctx, query, k, alpha)
	}
}
