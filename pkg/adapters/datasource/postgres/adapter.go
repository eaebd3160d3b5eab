// Package postgres implements the datasource.SchemaDiscoverer and
// datasource.QueryExecutor contracts for PostgreSQL 12+.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schemasense/engine/pkg/adapters/datasource"
)

// Adapter holds a pooled connection to a single PostgreSQL database and
// implements both schema discovery and read-only query execution against it.
type Adapter struct {
	pool *pgxpool.Pool
}

// NewAdapter opens a pool against databaseURL and verifies connectivity.
func NewAdapter(ctx context.Context, databaseURL string) (*Adapter, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Adapter{pool: pool}, nil
}

func (a *Adapter) Dialect() string { return "postgres" }

func (a *Adapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

func qualifiedTableName(schemaName, tableName string) string {
	return pgx.Identifier{schemaName, tableName}.Sanitize()
}

// DiscoverTables returns all user tables, using pg_class's reltuples estimate
// for row counts rather than a COUNT(*) scan.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	query := `
		SELECT
			t.table_schema,
			t.table_name,
			COALESCE(c.reltuples, 0)::bigint AS row_count
		FROM information_schema.tables t
		LEFT JOIN pg_catalog.pg_class c
			ON c.relname = t.table_name
			AND c.relnamespace = (
				SELECT oid FROM pg_catalog.pg_namespace WHERE nspname = t.table_schema
			)
		WHERE t.table_type = 'BASE TABLE'
			AND t.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY t.table_schema, t.table_name
	`

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var tbl datasource.TableMetadata
		if err := rows.Scan(&tbl.SchemaName, &tbl.TableName, &tbl.RowCount); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, tbl)
	}
	return tables, rows.Err()
}

// DiscoverColumns returns columns for a table, with single-column primary key
// and uniqueness detection sourced from pg_index rather than the constraint
// views, which misses unique indexes created outside a named constraint.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			c.ordinal_position,
			c.column_default,
			(pk.attname IS NOT NULL) AS is_primary_key,
			(uq.attname IS NOT NULL) AS is_unique
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname
			FROM pg_index i
			JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
			WHERE i.indrelid = $3::regclass AND i.indisprimary AND cardinality(i.indkey) = 1
		) pk ON pk.attname = c.column_name
		LEFT JOIN (
			SELECT a.attname
			FROM pg_index i
			JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
			WHERE i.indrelid = $3::regclass AND i.indisunique AND cardinality(i.indkey) = 1
		) uq ON uq.attname = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	qualified := qualifiedTableName(schemaName, tableName)
	rows, err := a.pool.Query(ctx, query, schemaName, tableName, qualified)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s: %w", qualified, err)
	}
	defer rows.Close()

	var cols []datasource.ColumnMetadata
	for rows.Next() {
		var col datasource.ColumnMetadata
		if err := rows.Scan(&col.ColumnName, &col.DataType, &col.IsNullable,
			&col.OrdinalPosition, &col.DefaultValue, &col.IsPrimaryKey, &col.IsUnique); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// DiscoverForeignKeys returns all foreign key relationships via a three-way
// join across the information_schema constraint views.
func (a *Adapter) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	query := `
		SELECT
			tc.constraint_name,
			tc.table_schema,
			tc.table_name,
			kcu.column_name,
			ccu.table_schema,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.table_schema, tc.table_name, tc.constraint_name
	`

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		if err := rows.Scan(&fk.ConstraintName, &fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// AnalyzeColumnStats gathers per-column row/non-null/distinct counts and, for
// text-typed columns, min/max length. Falls back to a simplified query
// without length calculation if the primary query fails for any reason
// (e.g. a column type pg_typeof can't bucket cleanly).
func (a *Adapter) AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]datasource.ColumnStats, error) {
	if len(columnNames) == 0 {
		return nil, nil
	}

	qualified := qualifiedTableName(schemaName, tableName)
	stats := make([]datasource.ColumnStats, 0, len(columnNames))

	for _, col := range columnNames {
		quotedCol := pgx.Identifier{col}.Sanitize()
		stat, err := a.analyzeOneColumn(ctx, qualified, quotedCol, col)
		if err != nil {
			stat = datasource.ColumnStats{ColumnName: col}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// textLikeTypes lists pg_typeof() results for which string length stats apply.
var textLikeTypes = map[string]bool{
	"text": true, "character varying": true, "character": true,
}

func (a *Adapter) analyzeOneColumn(ctx context.Context, qualifiedTable, quotedCol, colName string) (datasource.ColumnStats, error) {
	stat := datasource.ColumnStats{ColumnName: colName}

	var pgType string
	typeQuery := fmt.Sprintf(`SELECT pg_typeof(%s)::text FROM %s LIMIT 1`, quotedCol, qualifiedTable)
	_ = a.pool.QueryRow(ctx, typeQuery).Scan(&pgType) // empty table: pgType stays "", treated as non-text

	if textLikeTypes[pgType] {
		lenQuery := fmt.Sprintf(`
			SELECT count(*), count(%[1]s), count(DISTINCT %[1]s), min(length(%[1]s)), max(length(%[1]s))
			FROM %[2]s
		`, quotedCol, qualifiedTable)
		if err := a.pool.QueryRow(ctx, lenQuery).Scan(&stat.RowCount, &stat.NonNullCount, &stat.DistinctCount, &stat.MinLength, &stat.MaxLength); err == nil {
			return stat, nil
		}
		// Fall through to the simplified query below on failure.
	}

	simple := fmt.Sprintf(`SELECT count(*), count(%[1]s), count(DISTINCT %[1]s) FROM %[2]s`, quotedCol, qualifiedTable)
	if err := a.pool.QueryRow(ctx, simple).Scan(&stat.RowCount, &stat.NonNullCount, &stat.DistinctCount); err != nil {
		return stat, fmt.Errorf("analyze column %s: %w", colName, err)
	}
	return stat, nil
}

// SampleDistinctValues returns the most frequent distinct non-null values for
// a column, used to seed enum/category detection.
func (a *Adapter) SampleDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error) {
	qualified := qualifiedTableName(schemaName, tableName)
	quotedCol := pgx.Identifier{columnName}.Sanitize()

	query := fmt.Sprintf(`
		SELECT %[1]s::text AS v
		FROM %[2]s
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY count(*) DESC
		LIMIT $1
	`, quotedCol, qualified)

	rows, err := a.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sample distinct values for %s.%s: %w", qualified, columnName, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Execute runs a read-only query, fetching at most maxRows+1 rows so callers
// can detect truncation without a separate count.
func (a *Adapter) Execute(ctx context.Context, sqlText string, maxRows int) (*datasource.QueryExecutionResult, error) {
	rows, err := a.pool.Query(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{Name: string(fd.Name), Type: pgTypeNameFromOID(fd.DataTypeOID)}
	}

	result := &datasource.QueryExecutionResult{Columns: columns, Rows: make([]map[string]any, 0)}
	fetchLimit := maxRows + 1
	for rows.Next() && len(result.Rows) < fetchLimit {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = values[i]
		}
		result.Rows = append(result.Rows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// pgTypeNameFromOID maps the handful of PostgreSQL type OIDs the execution
// runner and cell truncation logic need to recognize.
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 20, 21, 23:
		return "INTEGER"
	case 700, 701, 1700:
		return "NUMERIC"
	case 1082:
		return "DATE"
	case 1114, 1184:
		return "TIMESTAMP"
	case 25, 1042, 1043:
		return "TEXT"
	case 2950:
		return "UUID"
	case 114, 3802:
		return "JSON"
	default:
		return "UNKNOWN"
	}
}

func init() {
	datasource.Register(
		datasource.DatasourceAdapterInfo{Dialect: "postgres", DisplayName: "PostgreSQL"},
		func(ctx context.Context, databaseURL string) (datasource.SchemaDiscoverer, error) {
			return NewAdapter(ctx, databaseURL)
		},
		func(ctx context.Context, databaseURL string) (datasource.QueryExecutor, error) {
			return NewAdapter(ctx, databaseURL)
		},
	)
}

var (
	_ datasource.SchemaDiscoverer = (*Adapter)(nil)
	_ datasource.QueryExecutor    = (*Adapter)(nil)
)
