package sqlintel

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/schemasense/engine/pkg/apperrors"
	"github.com/schemasense/engine/pkg/config"
	"github.com/schemasense/engine/pkg/llm"
)

// Embedder produces embedding vectors for schema labels (table/column
// identifiers). It wraps an llm.LLMClient behind the same circuit-breaker
// pattern used for chat completions, so a flaky embedding backend degrades
// enrichment to lexical-only retrieval instead of blocking startup.
type Embedder struct {
	client  llm.LLMClient
	breaker *llm.CircuitBreaker
	model   string
	logger  *zap.Logger
}

// NewEmbedder builds an Embedder for the "openai" backend. Anthropic has no
// public embeddings endpoint, so EmbeddingConfig.Backend == "anthropic" is
// rejected at startup rather than silently falling back; "none" skips
// embedding construction entirely and callers should not call NewEmbedder.
func NewEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (*Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "openai":
		client, err := llm.NewClient(&llm.Config{
			Endpoint: "https://api.openai.com/v1",
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrEmbeddingInit, err)
		}
		return &Embedder{
			client:  client,
			breaker: llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig()),
			model:   cfg.Model,
			logger:  logger.Named("embedder"),
		}, nil
	case "none":
		return nil, fmt.Errorf("%w: embedding backend is \"none\"", apperrors.ErrEmbeddingInit)
	default:
		return nil, fmt.Errorf("%w: unsupported embedding backend %q", apperrors.ErrEmbeddingInit, cfg.Backend)
	}
}

// EncodeBatch embeds a batch of labels, respecting the circuit breaker.
// A tripped circuit returns an error rather than partial/zero vectors so
// callers (background enrichment) can distinguish "degrade to lexical" from
// "some vectors are silently wrong".
func (e *Embedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if allow, err := e.breaker.Allow(); !allow {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrEmbeddingInit, err)
	}
	vectors, err := e.client.CreateEmbeddings(ctx, texts, e.model)
	if err != nil {
		e.breaker.RecordFailure()
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	e.breaker.RecordSuccess()
	for i, v := range vectors {
		vectors[i] = normalizeVector(v)
	}
	return vectors, nil
}

func normalizeVector(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1e-8 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// NewSemanticIndex returns an empty index ready for Build.
func NewSemanticIndex() *SemanticIndex {
	return &SemanticIndex{}
}

// Build populates the index from parallel label/vector slices. Vectors must
// already be L2-normalized (EncodeBatch does this); Build does not
// renormalize so callers that hand-construct vectors (tests) must do so
// themselves.
func (idx *SemanticIndex) Build(labels []string, vectors [][]float32) {
	idx.entries = make([]SemanticIndexEntry, 0, len(labels))
	idx.dim = 0
	for i, label := range labels {
		if i >= len(vectors) {
			break
		}
		idx.entries = append(idx.entries, SemanticIndexEntry{Label: label, Vector: vectors[i]})
		if len(vectors[i]) > idx.dim {
			idx.dim = len(vectors[i])
		}
	}
}

// Len returns the number of indexed entries.
func (idx *SemanticIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// LabelsAndVectors returns the index's entries as parallel slices, in build
// order. Used by CardStore to persist the table/column/token embeddings
// alongside their SchemaCard generation.
func (idx *SemanticIndex) LabelsAndVectors() ([]string, [][]float32) {
	if idx == nil {
		return nil, nil
	}
	labels := make([]string, len(idx.entries))
	vectors := make([][]float32, len(idx.entries))
	for i, e := range idx.entries {
		labels[i] = e.Label
		vectors[i] = e.Vector
	}
	return labels, vectors
}

// SemanticHit is one ranked result from SemanticIndex.Search.
type SemanticHit struct {
	Label      string
	Similarity float64
}

// Search returns the top-k entries by cosine similarity to queryVector.
// Because entries are L2-normalized at Build time, cosine similarity reduces
// to a dot product, making this a single pass over the index with no
// trigonometry or approximate-nearest-neighbor structure needed. At the
// table/column counts a reflected schema produces (typically hundreds, not
// millions, of items) a brute-force scan is fast enough that an ANN index
// would add complexity without a measurable latency win.
func (idx *SemanticIndex) Search(queryVector []float32, k int) []SemanticHit {
	if idx == nil || len(idx.entries) == 0 || k <= 0 {
		return nil
	}
	query := normalizeVector(queryVector)
	hits := make([]SemanticHit, 0, len(idx.entries))
	for _, e := range idx.entries {
		hits = append(hits, SemanticHit{Label: e.Label, Similarity: dot(query, e.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// tokensFromText splits normalized text on non-alphanumeric runs, dropping
// empty tokens. Used to build the token lexicon and to expand query terms
// the same way schema labels were tokenized.
func tokensFromText(text string) []string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = nonIdentChars.ReplaceAllString(normalized, "_")
	parts := nonAlnum.Split(strings.ReplaceAll(normalized, "_", " "), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BuildTokenLexicon derives a TokenLexicon from item labels and their
// (already embedded) vectors by averaging the vectors of every item whose
// label contains a given token, then indexing the resulting per-token
// vectors for semantic query expansion.
func BuildTokenLexicon(itemLabels []string, itemVectors [][]float32) *TokenLexicon {
	lex := &TokenLexicon{
		TokenToItems: make(map[string][]string),
		TokenDF:      make(map[string]int),
		Index:        NewSemanticIndex(),
	}

	labelTokens := make([][]string, len(itemLabels))
	for i, label := range itemLabels {
		labelTokens[i] = tokensForLabel(label)
	}

	for i, tokens := range labelTokens {
		if i >= len(itemLabels) {
			break
		}
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			lex.TokenToItems[tok] = append(lex.TokenToItems[tok], itemLabels[i])
			lex.TokenDF[tok]++
		}
	}

	tokensSorted := make([]string, 0, len(lex.TokenToItems))
	for tok := range lex.TokenToItems {
		tokensSorted = append(tokensSorted, tok)
	}
	sort.Slice(tokensSorted, func(i, j int) bool {
		if lex.TokenDF[tokensSorted[i]] != lex.TokenDF[tokensSorted[j]] {
			return lex.TokenDF[tokensSorted[i]] > lex.TokenDF[tokensSorted[j]]
		}
		return tokensSorted[i] < tokensSorted[j]
	})

	labelIndex := make(map[string]int, len(itemLabels))
	for i, label := range itemLabels {
		labelIndex[label] = i
	}

	tokenLabels := make([]string, 0, len(tokensSorted))
	tokenVectors := make([][]float32, 0, len(tokensSorted))
	for _, tok := range tokensSorted {
		members := lex.TokenToItems[tok]
		if len(members) == 0 {
			continue
		}
		var sum []float32
		count := 0
		for _, label := range members {
			idx, ok := labelIndex[label]
			if !ok || idx >= len(itemVectors) {
				continue
			}
			v := itemVectors[idx]
			if sum == nil {
				sum = make([]float32, len(v))
			}
			for i, x := range v {
				sum[i] += x
			}
			count++
		}
		if count == 0 {
			continue
		}
		for i := range sum {
			sum[i] /= float32(count)
		}
		tokenLabels = append(tokenLabels, "tok::"+tok)
		tokenVectors = append(tokenVectors, normalizeVector(sum))
	}
	lex.Index.Build(tokenLabels, tokenVectors)
	return lex
}

// tokensForLabel tokenizes an item label, which is either "schema.table" or
// "schema.table::column".
func tokensForLabel(label string) []string {
	tablePart := label
	columnPart := ""
	if idx := strings.Index(label, "::"); idx >= 0 {
		tablePart, columnPart = label[:idx], label[idx+2:]
	}
	schema, table := tablePart, ""
	if idx := strings.Index(tablePart, "."); idx >= 0 {
		schema, table = tablePart[:idx], tablePart[idx+1:]
	}
	tokens := append(tokensFromText(table), tokensFromText(schema)...)
	if columnPart != "" {
		tokens = append(tokensFromText(table), tokensFromText(columnPart)...)
	}
	filtered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" && !isAllDigits(t) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func isAllDigits(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// ExpandTokensByQuery finds lexicon tokens semantically similar to a query
// vector with document frequency at or above minDF, excluding any token in
// exclude, in descending similarity order capped at topN.
func (l *TokenLexicon) ExpandTokensByQuery(queryVector []float32, topN, minDF int, exclude []string) []SemanticHit {
	if l == nil || l.Index.Len() == 0 {
		return nil
	}
	excludeSet := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excludeSet[e] = true
	}
	candidateCount := topN * 5
	if candidateCount > l.Index.Len() {
		candidateCount = l.Index.Len()
	}
	hits := l.Index.Search(queryVector, candidateCount)

	out := make([]SemanticHit, 0, topN)
	for _, h := range hits {
		token := strings.TrimPrefix(h.Label, "tok::")
		if excludeSet[token] {
			continue
		}
		if l.TokenDF[token] < minDF {
			continue
		}
		out = append(out, SemanticHit{Label: token, Similarity: h.Similarity})
		if len(out) >= topN {
			break
		}
	}
	return out
}
