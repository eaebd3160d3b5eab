// Package mysql implements the datasource.SchemaDiscoverer and
// datasource.QueryExecutor contracts for MySQL 8+ and MariaDB.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/schemasense/engine/pkg/adapters/datasource"
)

// Adapter holds a pooled connection to a single MySQL database and
// implements both schema discovery and read-only query execution against it.
type Adapter struct {
	db *sql.DB
}

// NewAdapter opens a pool against databaseURL (a go-sql-driver DSN, e.g.
// "user:pass@tcp(host:3306)/dbname?parseTime=true") and verifies connectivity.
func NewAdapter(ctx context.Context, databaseURL string) (*Adapter, error) {
	db, err := sql.Open("mysql", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &Adapter{db: db}, nil
}

func (a *Adapter) Dialect() string { return "mysql" }

func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

func quoteIdent(name string) string {
	return "`" + name + "`"
}

// DiscoverTables returns all base tables in every schema visible to the
// connection, excluding the information_schema/mysql/performance_schema/sys
// system databases.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	query := `
		SELECT table_schema, table_name, COALESCE(table_rows, 0)
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
			AND table_schema NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
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

// DiscoverColumns returns columns for a table. MySQL's information_schema
// exposes primary-key and unique-index membership directly via column_key.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	query := `
		SELECT
			column_name,
			data_type,
			is_nullable = 'YES',
			ordinal_position,
			column_default,
			column_key = 'PRI',
			column_key IN ('PRI', 'UNI')
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`
	rows, err := a.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s.%s: %w", schemaName, tableName, err)
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

// DiscoverForeignKeys returns all foreign key relationships in the connected
// schema(s), sourced from key_column_usage where a referenced table is set.
func (a *Adapter) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	query := `
		SELECT
			constraint_name,
			table_schema,
			table_name,
			column_name,
			referenced_table_schema,
			referenced_table_name,
			referenced_column_name
		FROM information_schema.key_column_usage
		WHERE referenced_table_name IS NOT NULL
		ORDER BY table_schema, table_name, constraint_name
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

var textLikeTypes = map[string]bool{
	"char": true, "varchar": true, "text": true, "tinytext": true,
	"mediumtext": true, "longtext": true,
}

// AnalyzeColumnStats gathers row/non-null/distinct counts and, for text
// columns, min/max character length, per named column.
func (a *Adapter) AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]datasource.ColumnStats, error) {
	if len(columnNames) == 0 {
		return nil, nil
	}
	qualified := fmt.Sprintf("%s.%s", quoteIdent(schemaName), quoteIdent(tableName))

	stats := make([]datasource.ColumnStats, 0, len(columnNames))
	for _, col := range columnNames {
		stat, err := a.analyzeOneColumn(ctx, schemaName, tableName, qualified, col)
		if err != nil {
			stat = datasource.ColumnStats{ColumnName: col}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func (a *Adapter) analyzeOneColumn(ctx context.Context, schemaName, tableName, qualified, colName string) (datasource.ColumnStats, error) {
	stat := datasource.ColumnStats{ColumnName: colName}
	quoted := quoteIdent(colName)

	var dataType string
	typeQuery := `SELECT data_type FROM information_schema.columns WHERE table_schema = ? AND table_name = ? AND column_name = ?`
	if err := a.db.QueryRowContext(ctx, typeQuery, schemaName, tableName, colName).Scan(&dataType); err != nil {
		return stat, fmt.Errorf("lookup column type for %s: %w", colName, err)
	}

	if textLikeTypes[dataType] {
		lenQuery := fmt.Sprintf(`
			SELECT count(*), count(%[1]s), count(DISTINCT %[1]s), min(char_length(%[1]s)), max(char_length(%[1]s))
			FROM %[2]s
		`, quoted, qualified)
		if err := a.db.QueryRowContext(ctx, lenQuery).Scan(&stat.RowCount, &stat.NonNullCount, &stat.DistinctCount, &stat.MinLength, &stat.MaxLength); err == nil {
			return stat, nil
		}
	}

	simple := fmt.Sprintf(`SELECT count(*), count(%[1]s), count(DISTINCT %[1]s) FROM %[2]s`, quoted, qualified)
	if err := a.db.QueryRowContext(ctx, simple).Scan(&stat.RowCount, &stat.NonNullCount, &stat.DistinctCount); err != nil {
		return stat, fmt.Errorf("analyze column %s: %w", colName, err)
	}
	return stat, nil
}

// SampleDistinctValues returns the most frequent distinct non-null values for
// a column, used to seed enum/category detection.
func (a *Adapter) SampleDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error) {
	qualified := fmt.Sprintf("%s.%s", quoteIdent(schemaName), quoteIdent(tableName))
	quoted := quoteIdent(columnName)

	query := fmt.Sprintf(`
		SELECT CAST(%[1]s AS CHAR)
		FROM %[2]s
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY count(*) DESC
		LIMIT ?
	`, quoted, qualified)

	rows, err := a.db.QueryContext(ctx, query, limit)
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
			rowMap[col.Name] = values[i]
		}
		result.Rows = append(result.Rows, rowMap)
	}
	return result, rows.Err()
}

func init() {
	datasource.Register(
		datasource.DatasourceAdapterInfo{Dialect: "mysql", DisplayName: "MySQL / MariaDB"},
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
