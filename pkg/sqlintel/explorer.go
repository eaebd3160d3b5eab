package sqlintel

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/schemasense/engine/pkg/apperrors"
	"github.com/schemasense/engine/pkg/config"
)

// Explorer is the read-side facade over one reflected SchemaCard: it owns
// the relationship graph, subject areas, and (once warmup completes) the
// semantic index, token lexicon, and lexical weight cache that the
// RetrievalEngine and PlanBuilder read from. A new Explorer is built for
// every reflection pass rather than mutated in place, so an InitManager
// swap is a single atomic pointer store with no partially-updated state
// visible to concurrent tool calls.
type Explorer struct {
	Card *SchemaCard

	cfg    *config.Config
	logger *zap.Logger

	graph *relGraph

	embedder    *Embedder
	tableIndex  *SemanticIndex
	columnIndex *SemanticIndex
	lexicon     *TokenLexicon

	retrieval *RetrievalEngine
	planner   *PlanBuilder
	expander  *GraphExpander

	group singleflight.Group

	store *CardStore
}

// SetCardStore attaches the metadata persistence layer used to durably cache
// this Explorer's SchemaCard and embedding vectors. A nil store (the
// default, when SCHEMASENSE_METADATA_DATABASE_URL is unset) makes Persist a
// no-op.
func (e *Explorer) SetCardStore(store *CardStore) {
	e.store = store
}

// Persist best-effort saves the current card and, if warmup has run, its
// embedding vectors to the metadata database. Failures are logged, never
// propagated: persistence is never on the critical path to READY, and the
// startup sequence does not read a persisted card back.
func (e *Explorer) Persist(ctx context.Context) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveCard(ctx, e.Card); err != nil {
		e.logger.Warn("failed to persist schema card", zap.Error(err))
		return
	}
	if e.tableIndex != nil {
		labels, vectors := e.tableIndex.LabelsAndVectors()
		if err := e.store.SaveVectors(ctx, e.Card.ReflectionHash, "table", labels, vectors); err != nil {
			e.logger.Warn("failed to persist table vectors", zap.Error(err))
		}
	}
	if e.columnIndex != nil {
		labels, vectors := e.columnIndex.LabelsAndVectors()
		if err := e.store.SaveVectors(ctx, e.Card.ReflectionHash, "column", labels, vectors); err != nil {
			e.logger.Warn("failed to persist column vectors", zap.Error(err))
		}
	}
	if e.lexicon != nil {
		labels, vectors := e.lexicon.Index.LabelsAndVectors()
		if err := e.store.SaveVectors(ctx, e.Card.ReflectionHash, "token", labels, vectors); err != nil {
			e.logger.Warn("failed to persist token vectors", zap.Error(err))
		}
	}
}

// NewExplorer wraps a freshly reflected SchemaCard. Callers must call
// BuildGraph before using subject areas, archetypes, or the expander/
// planner, and Warmup before semantic retrieval is available.
func NewExplorer(card *SchemaCard, cfg *config.Config, logger *zap.Logger) *Explorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explorer{Card: card, cfg: cfg, logger: logger.Named("explorer")}
}

// BuildGraph constructs the relationship graph, subject areas, and derived
// per-table metrics (archetype, centrality, audit-like flag), then the
// graph-dependent components (expander, planner) that read them. It does
// not touch the database or the embedding backend, so it is safe to call
// synchronously during startup.
func (e *Explorer) BuildGraph() {
	builder := NewGraphBuilder()
	assignment, areas := builder.BuildSubjectAreas(
		e.Card.Tables, e.Card.ForeignKeys,
		e.cfg.GraphBuild.MinAreaSize, e.cfg.GraphBuild.MergeArchiveAreas,
	)
	for table, area := range assignment {
		if tp, ok := e.Card.Tables[table]; ok {
			tp.SubjectArea = area
		}
	}
	e.Card.SubjectAreas = areas

	e.graph = builder.Build(e.Card.Tables, e.Card.ForeignKeys)
	AnnotateDerived(e.Card.Tables, e.graph)

	recognizer := NewEntityRecognizer()
	for _, tp := range e.Card.Tables {
		recognizer.AnnotateTable(tp)
	}

	e.expander = NewGraphExpander(e.Card, e.graph)
	e.planner = NewPlanBuilder(e.Card, e.graph, e.cfg.Planning)
	e.retrieval = NewRetrievalEngine(
		e.Card, nil, nil, nil, nil,
		BuildLexicalWeights(e.Card), e.cfg.Retrieval, e.cfg.GraphBuild.StrictArchiveExclude,
	)
}

// Warmup builds embeddings, the table/column semantic indices, and the
// token lexicon. A failed or disabled embedding backend degrades retrieval
// to lexical-only rather than blocking READY; tool calls never see
// partially-built indices because RetrievalEngine is only swapped in once
// everything below succeeds.
func (e *Explorer) Warmup(ctx context.Context) {
	if e.cfg.Embedding.Backend == "none" {
		e.logger.Info("embedding backend disabled, retrieval is lexical-only")
		return
	}
	embedder, err := NewEmbedder(e.cfg.Embedding, e.logger)
	if err != nil {
		e.logger.Warn("embedding backend unavailable, falling back to lexical-only retrieval", zap.Error(err))
		return
	}

	tableLabels, tableTexts := e.tableDescriptions()
	tableVectors, err := embedder.EncodeBatch(ctx, tableTexts)
	if err != nil {
		e.logger.Warn("table embedding batch failed, falling back to lexical-only retrieval", zap.Error(err))
		return
	}
	tableIndex := NewSemanticIndex()
	tableIndex.Build(tableLabels, tableVectors)

	colLabels, colTexts := e.columnDescriptions()
	var columnIndex *SemanticIndex
	if len(colTexts) > 0 {
		colVectors, err := embedder.EncodeBatch(ctx, colTexts)
		if err != nil {
			e.logger.Warn("column embedding batch failed, continuing with table-level embeddings only", zap.Error(err))
		} else {
			columnIndex = NewSemanticIndex()
			columnIndex.Build(colLabels, colVectors)
		}
	}

	lexicon := BuildTokenLexicon(tableLabels, tableVectors)

	e.embedder = embedder
	e.tableIndex = tableIndex
	e.columnIndex = columnIndex
	e.lexicon = lexicon
	e.retrieval = NewRetrievalEngine(
		e.Card, embedder, tableIndex, columnIndex, lexicon,
		BuildLexicalWeights(e.Card), e.cfg.Retrieval, e.cfg.GraphBuild.StrictArchiveExclude,
	)
	e.logger.Info("warmup complete", zap.Int("tables_indexed", tableIndex.Len()))
}

// tableDescriptions builds the embedding input text for every table:
// "<qualified_name>: <summary>. Columns: col1(role)[->ref], col2(role), …"
// capped at 12 columns, matching the format the Plan Builder's table
// summaries are meant to stay consistent with.
func (e *Explorer) tableDescriptions() (labels, texts []string) {
	for _, tp := range e.Card.OrderedTables() {
		labels = append(labels, tp.QualifiedName)
		texts = append(texts, describeTable(tp))
	}
	return labels, texts
}

func describeTable(tp *TableProfile) string {
	summary := tp.Summary
	if summary == "" {
		summary = string(tp.Archetype) + " table"
	}
	text := tp.QualifiedName + ": " + summary + ". Columns: "
	cols := tp.OrderedColumns()
	const maxCols = 12
	if len(cols) > maxCols {
		cols = cols[:maxCols]
	}
	for i, col := range cols {
		if i > 0 {
			text += ", "
		}
		text += col.Name + "(" + string(col.Kind) + ")"
		if col.IsForeignKey && col.ReferencesTable != "" {
			text += "->" + col.ReferencesTable
		}
	}
	return text
}

// columnDescriptions builds per-column embedding input, capped at
// max_cols_for_embeddings columns per table: "<qualified_column>:
// role=<role>; type=<sql_type>; tags=<tags>; table=<table_summary>".
func (e *Explorer) columnDescriptions() (labels, texts []string) {
	maxCols := e.cfg.Reflection.MaxColsForEmbeddings
	if maxCols <= 0 {
		maxCols = 20
	}
	for _, tp := range e.Card.OrderedTables() {
		cols := tp.OrderedColumns()
		if len(cols) > maxCols {
			cols = cols[:maxCols]
		}
		for _, col := range cols {
			label := tp.QualifiedName + "::" + col.Name
			tags := "none"
			if len(col.Entities) > 0 {
				tags = col.Entities[0]
				for _, t := range col.Entities[1:] {
					tags += "," + t
				}
			}
			text := fmt.Sprintf("%s: role=%s; type=%s; tags=%s; table=%s",
				label, col.Kind, col.DataType, tags, tp.Summary)
			labels = append(labels, label)
			texts = append(texts, text)
		}
	}
	return labels, texts
}

// Retrieve finds candidate tables for a natural-language query, keyed by
// (reflection_hash, query, approach, k, alpha) through a singleflight group so
// concurrent calls for the same query don't redundantly re-encode it.
func (e *Explorer) Retrieve(ctx context.Context, query string, approach RetrievalApproach, k int, alpha float64) ([]TableScore, error) {
	key := fmt.Sprintf("%s|%s|%s|%d|%.3f", e.Card.ReflectionHash, query, approach, k, alpha)
	v, err, _ := e.group.Do(key, func() (any, error) {
		return e.retrieval.Retrieve(ctx, query, approach, k, alpha), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]TableScore), nil
}

// Plan builds a QueryPlan for a query, first retrieving candidate tables
// via COMBINED retrieval, then expanding them with the FK-following graph
// expander, then building the plan itself.
func (e *Explorer) Plan(ctx context.Context, query string, topK int) (*QueryPlan, error) {
	if topK <= 0 {
		topK = e.cfg.Planning.TopKTables
	}
	hits, err := e.Retrieve(ctx, query, ApproachCombined, topK, 0.7)
	if err != nil {
		return nil, err
	}
	seeds := make([]string, len(hits))
	for i, h := range hits {
		seeds[i] = h.Table
	}
	expanded := e.expander.Expand(ExpandFKFollowing, seeds, topK)
	return e.planner.Build(query, expanded), nil
}

// Table looks up a table's profile, returning apperrors.ErrNotFound if it
// does not exist in the current card.
func (e *Explorer) Table(qualifiedName string) (*TableProfile, error) {
	tp, ok := e.Card.Table(qualifiedName)
	if !ok {
		return nil, fmt.Errorf("%w: table %q", apperrors.ErrNotFound, qualifiedName)
	}
	return tp, nil
}
