// Package mssql implements the datasource.SchemaDiscoverer and
// datasource.QueryExecutor contracts for SQL Server 2019+ and Azure SQL
// Database, authenticating with a single connection-string DSN.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/schemasense/engine/pkg/adapters/datasource"
)

// Adapter holds a pooled connection to a single SQL Server database and
// implements both schema discovery and read-only query execution against it.
type Adapter struct {
	db *sql.DB
}

// NewAdapter opens a pool against databaseURL (a "sqlserver://" DSN) and
// verifies connectivity.
func NewAdapter(ctx context.Context, databaseURL string) (*Adapter, error) {
	db, err := sql.Open("sqlserver", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlserver: %w", err)
	}
	return &Adapter{db: db}, nil
}

func (a *Adapter) Dialect() string { return "mssql" }

func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

// DiscoverTables returns all user tables, summing sys.partitions row counts
// across the heap/clustered index rather than scanning each table.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	query := `
		SET NOCOUNT ON;
		SELECT
			SCHEMA_NAME(t.schema_id) AS table_schema,
			t.name AS table_name,
			SUM(p.rows) AS row_count
		FROM sys.tables t
		INNER JOIN sys.partitions p ON t.object_id = p.object_id
		WHERE p.index_id IN (0, 1)
			AND t.is_ms_shipped = 0
		GROUP BY t.schema_id, t.name
		ORDER BY table_schema, table_name
	`
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.SchemaName, &t.TableName, &t.RowCount); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// DiscoverColumns returns columns for a table, deriving primary-key
// membership (every column of the key, composite keys included) from
// sys.index_columns rather than
// information_schema, which SQL Server does not reliably populate for
// GORM/EF-style generated schemas.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	query := `
		SET NOCOUNT ON;
		SELECT
			c.name AS column_name,
			tp.name AS data_type,
			CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END AS is_nullable,
			c.column_id AS ordinal_position,
			CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key
		FROM sys.columns c
		INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
		LEFT JOIN (
			SELECT ic.object_id, ic.column_id
			FROM sys.index_columns ic
			INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
			WHERE i.is_primary_key = 1
		) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
		WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
		ORDER BY c.column_id
	`
	rows, err := a.db.QueryContext(ctx, query, sql.Named("schema", schemaName), sql.Named("table", tableName))
	if err != nil {
		return nil, fmt.Errorf("query columns for %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	var cols []datasource.ColumnMetadata
	for rows.Next() {
		var col datasource.ColumnMetadata
		var isNullable, isPrimary int
		if err := rows.Scan(&col.ColumnName, &col.DataType, &isNullable, &col.OrdinalPosition, &isPrimary); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.IsNullable = isNullable == 1
		col.IsPrimaryKey = isPrimary == 1
		col.DataType = mapSQLServerType(col.DataType)
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// DiscoverForeignKeys returns all foreign key relationships via sys.foreign_keys.
func (a *Adapter) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	query := `
		SET NOCOUNT ON;
		SELECT
			fk.name AS constraint_name,
			SCHEMA_NAME(fk.schema_id) AS source_schema,
			OBJECT_NAME(fk.parent_object_id) AS source_table,
			COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS source_column,
			SCHEMA_NAME(rt.schema_id) AS target_schema,
			OBJECT_NAME(fk.referenced_object_id) AS target_table,
			COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS target_column
		FROM sys.foreign_keys fk
		INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
		INNER JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
		WHERE fk.is_ms_shipped = 0
		ORDER BY source_schema, source_table, fk.name, fkc.constraint_column_id
	`
	rows, err := a.db.QueryContext(ctx, query)
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

func (a *Adapter) getColumnType(ctx context.Context, schemaName, tableName, columnName string) (string, error) {
	query := `
		SET NOCOUNT ON;
		SELECT tp.name
		FROM sys.columns c
		INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
		WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
			AND c.name = @column
	`
	var typeName string
	err := a.db.QueryRowContext(ctx, query,
		sql.Named("schema", schemaName), sql.Named("table", tableName), sql.Named("column", columnName),
	).Scan(&typeName)
	return typeName, err
}

// AnalyzeColumnStats gathers row/non-null/distinct counts and, for string
// columns, min/max length. Column type is resolved via sys.columns first
// since SQL_VARIANT_PROPERTY only applies to sql_variant columns.
func (a *Adapter) AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]datasource.ColumnStats, error) {
	if len(columnNames) == 0 {
		return nil, nil
	}
	fullyQualified := buildFullyQualifiedName(schemaName, tableName)

	stats := make([]datasource.ColumnStats, 0, len(columnNames))
	for _, colName := range columnNames {
		stat := datasource.ColumnStats{ColumnName: colName}
		quotedCol := quoteName(colName)

		colType, typeErr := a.getColumnType(ctx, schemaName, tableName, colName)
		if typeErr == nil && isSpatialType(colType) {
			// geography/geometry columns reject both GROUP BY and DISTINCT in
			// SQL Server; profile them as opaque (no row/null/distinct counts)
			// rather than let every such column error out against the server.
			stats = append(stats, stat)
			continue
		}
		if typeErr == nil && isStringType(colType) {
			lenQuery := fmt.Sprintf(`
				SET NOCOUNT ON;
				SELECT count(*), count(%[1]s), count(DISTINCT %[1]s), min(len(%[1]s)), max(len(%[1]s))
				FROM %[2]s
			`, quotedCol, fullyQualified)
			if err := a.db.QueryRowContext(ctx, lenQuery).Scan(&stat.RowCount, &stat.NonNullCount, &stat.DistinctCount, &stat.MinLength, &stat.MaxLength); err == nil {
				stats = append(stats, stat)
				continue
			}
		}

		simple := fmt.Sprintf(`SET NOCOUNT ON; SELECT count(*), count(%[1]s), count(DISTINCT %[1]s) FROM %[2]s`, quotedCol, fullyQualified)
		if err := a.db.QueryRowContext(ctx, simple).Scan(&stat.RowCount, &stat.NonNullCount, &stat.DistinctCount); err != nil {
			stat = datasource.ColumnStats{ColumnName: colName}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// SampleDistinctValues returns the most frequent distinct non-null values for
// a column, used to seed enum/category detection.
func (a *Adapter) SampleDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error) {
	fullyQualified := buildFullyQualifiedName(schemaName, tableName)
	quotedCol := quoteName(columnName)

	query := fmt.Sprintf(`
		SET NOCOUNT ON;
		SELECT TOP (@limit) CAST(%[1]s AS NVARCHAR(4000))
		FROM %[2]s
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY count(*) DESC
	`, quotedCol, fullyQualified)

	rows, err := a.db.QueryContext(ctx, query, sql.Named("limit", limit))
	if err != nil {
		return nil, fmt.Errorf("sample distinct values for %s: %w", fullyQualified, err)
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
	rows, err := a.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	columns := make([]datasource.ColumnInfo, len(colNames))
	for i, name := range colNames {
		columns[i] = datasource.ColumnInfo{Name: name, Type: colTypes[i].DatabaseTypeName()}
	}

	result := &datasource.QueryExecutionResult{Columns: columns, Rows: make([]map[string]any, 0)}
	fetchLimit := maxRows + 1
	for rows.Next() && len(result.Rows) < fetchLimit {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = formatCellValue(col.Type, values[i])
		}
		result.Rows = append(result.Rows, rowMap)
	}
	return result, rows.Err()
}

// formatCellValue renders a scanned driver value for JSON output. geography/
// geometry columns arrive as an opaque CLR binary payload that is neither
// human-readable nor meaningfully truncatable, so it is replaced with a
// short textual placeholder rather than passed through as raw bytes.
func formatCellValue(dbType string, v any) any {
	if v == nil || !isSpatialType(dbType) {
		return v
	}
	if b, ok := v.([]byte); ok {
		return fmt.Sprintf("<%s, %d bytes>", strings.ToLower(dbType), len(b))
	}
	return v
}

func init() {
	datasource.Register(
		datasource.DatasourceAdapterInfo{Dialect: "mssql", DisplayName: "Microsoft SQL Server"},
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
