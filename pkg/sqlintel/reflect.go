package sqlintel

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/schemasense/engine/pkg/adapters/datasource"
	"github.com/schemasense/engine/pkg/apperrors"
	"github.com/schemasense/engine/pkg/config"
)

// Reflector discovers structural schema metadata from a target database and
// profiles it into a SchemaCard. It owns the datasource.SchemaDiscoverer for
// the lifetime of one reflection pass; callers decide whether to keep it
// open for a later re-reflect or close it immediately.
type Reflector struct {
	discoverer datasource.SchemaDiscoverer
	sampler    *Sampler
	cfg        config.ReflectionConfig
	logger     *zap.Logger
}

// NewReflector builds a Reflector bound to an already-connected discoverer.
func NewReflector(discoverer datasource.SchemaDiscoverer, cfg config.ReflectionConfig, logger *zap.Logger) *Reflector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reflector{
		discoverer: discoverer,
		sampler:    NewSampler(discoverer, 20),
		cfg:        cfg,
		logger:     logger,
	}
}

// Reflect performs one full reflection pass: discover tables, columns,
// foreign keys, then profile column stats within the configured timeout.
// Columns beyond MaxSampledColumns per table receive structural
// classification only (no row-count/distinct-value stats), keeping startup
// bounded on very wide tables.
func (r *Reflector) Reflect(ctx context.Context) (*SchemaCard, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.ReflectTimeoutSec)*time.Second)
	defer cancel()

	tables, err := r.discoverer.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaReflection, err)
	}
	if r.cfg.FastStartup && r.cfg.MaxTablesAtStartup > 0 && len(tables) > r.cfg.MaxTablesAtStartup {
		r.logger.Info("fast_startup truncating table set",
			zap.Int("discovered", len(tables)), zap.Int("limit", r.cfg.MaxTablesAtStartup))
		tables = tables[:r.cfg.MaxTablesAtStartup]
	}

	fks, err := r.discoverer.DiscoverForeignKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaReflection, err)
	}

	card := &SchemaCard{
		Dialect:     r.discoverer.Dialect(),
		GeneratedAt: time.Now(),
		Tables:      make(map[string]*TableProfile, len(tables)),
		TableOrder:  make([]string, 0, len(tables)),
	}

	fksBySourceTable := make(map[string][]ForeignKeyEdge)
	for _, fk := range fks {
		edge := ForeignKeyEdge{
			SourceTable:  qualify(fk.SourceSchema, fk.SourceTable),
			SourceColumn: fk.SourceColumn,
			TargetTable:  qualify(fk.TargetSchema, fk.TargetTable),
			TargetColumn: fk.TargetColumn,
		}
		card.ForeignKeys = append(card.ForeignKeys, edge)
		fksBySourceTable[edge.SourceTable] = append(fksBySourceTable[edge.SourceTable], edge)
	}

	for _, tm := range tables {
		qualified := qualify(tm.SchemaName, tm.TableName)
		profile, err := r.reflectTable(ctx, tm, fksBySourceTable[qualified])
		if err != nil {
			r.logger.Warn("failed to reflect table, skipping",
				zap.String("table", qualified), zap.Error(err))
			continue
		}
		card.Tables[qualified] = profile
		card.TableOrder = append(card.TableOrder, qualified)
	}

	card.ReflectionHash = ComputeReflectionHash(card.Dialect, card.Tables)
	return card, nil
}

func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

func (r *Reflector) reflectTable(ctx context.Context, tm datasource.TableMetadata, fks []ForeignKeyEdge) (*TableProfile, error) {
	qualified := qualify(tm.SchemaName, tm.TableName)
	cols, err := r.discoverer.DiscoverColumns(ctx, tm.SchemaName, tm.TableName)
	if err != nil {
		return nil, fmt.Errorf("discover columns: %w", err)
	}

	fkBySourceColumn := make(map[string]ForeignKeyEdge, len(fks))
	for _, fk := range fks {
		fkBySourceColumn[fk.SourceColumn] = fk
	}

	profile := &TableProfile{
		Schema:        tm.SchemaName,
		Name:          tm.TableName,
		QualifiedName: qualified,
		RowCount:      tm.RowCount,
		Columns:       make(map[string]*ColumnProfile, len(cols)),
		ColumnOrder:   make([]string, 0, len(cols)),
		IsArchive:     looksArchive(tm.TableName),
	}

	colProfiles := make([]*ColumnProfile, 0, len(cols))
	for _, c := range cols {
		cp := &ColumnProfile{
			Name:         c.ColumnName,
			DataType:     c.DataType,
			Nullable:     c.IsNullable,
			IsPrimaryKey: c.IsPrimaryKey,
			RowCount:     tm.RowCount,
		}
		if fk, ok := fkBySourceColumn[c.ColumnName]; ok {
			cp.IsForeignKey = true
			cp.ReferencesTable = fk.TargetTable
			cp.ReferencesCol = fk.TargetColumn
		}
		cp.Kind = ClassifyColumn(cp, r.cfg.ValueConstraintThreshold)
		colProfiles = append(colProfiles, cp)
		profile.Columns[c.ColumnName] = cp
		profile.ColumnOrder = append(profile.ColumnOrder, c.ColumnName)
	}

	// Budget stats collection to the highest-relevance columns per table so
	// very wide tables don't blow the reflect timeout.
	ranked := rankColumnsByRelevance(colProfiles)
	budget := r.cfg.MaxSampledColumns
	if budget <= 0 || budget > len(ranked) {
		budget = len(ranked)
	}
	statNames := make([]string, 0, budget)
	for _, cp := range ranked[:budget] {
		statNames = append(statNames, cp.Name)
	}

	if len(statNames) > 0 {
		stats, err := r.discoverer.AnalyzeColumnStats(ctx, tm.SchemaName, tm.TableName, statNames)
		if err != nil {
			r.logger.Warn("column stats failed, continuing with structural profile only",
				zap.String("table", qualified), zap.Error(err))
		} else {
			for _, stat := range stats {
				cp, ok := profile.Columns[stat.ColumnName]
				if !ok {
					continue
				}
				cp.NonNullCount = stat.NonNullCount
				cp.DistinctCount = stat.DistinctCount
				cp.MinLength = stat.MinLength
				cp.MaxLength = stat.MaxLength
				cp.RefreshDerivedStats()
				// Stats may change the enum/text split now that distinct
				// counts are known.
				cp.Kind = ClassifyColumn(cp, r.cfg.ValueConstraintThreshold)
			}
		}
	}

	for _, cp := range profile.Columns {
		switch cp.Kind {
		case ColumnKindEnum:
			values, err := r.sampler.SampleEnumValues(ctx, tm.SchemaName, tm.TableName, cp.Name)
			if err != nil {
				r.logger.Debug("enum sampling failed", zap.String("column", cp.Name), zap.Error(err))
				continue
			}
			cp.EnumValues = values
			cp.SamplePatterns = detectSamplePatterns(values)
		case ColumnKindText:
			if cp.DistinctCount <= 0 {
				continue
			}
			values, err := r.sampler.SampleValues(ctx, tm.SchemaName, tm.TableName, cp.Name)
			if err != nil {
				r.logger.Debug("text sampling failed", zap.String("column", cp.Name), zap.Error(err))
				continue
			}
			cp.SamplePatterns = detectSamplePatterns(values)
		case ColumnKindMetric, ColumnKindDimension:
			if cp.DistinctCount <= 0 || int(cp.DistinctCount) > r.cfg.ValueConstraintThreshold {
				continue
			}
			values, err := r.sampler.SampleValues(ctx, tm.SchemaName, tm.TableName, cp.Name)
			if err != nil {
				r.logger.Debug("numeric sampling failed", zap.String("column", cp.Name), zap.Error(err))
				continue
			}
			cp.ValueRange = computeValueRange(values)
		}
	}

	return profile, nil
}
