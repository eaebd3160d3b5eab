package datasource

import "context"

// SchemaDiscoverer extracts structural metadata from a database for reflection.
// One discoverer is constructed per dialect and bound to a single database_url.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables, excluding system/catalog schemas.
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table, ordered by position.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all foreign key relationships in the database.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// AnalyzeColumnStats gathers row/non-null/distinct counts and, where
	// applicable, string length bounds for the named columns of a table.
	AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]ColumnStats, error)

	// SampleDistinctValues returns up to limit distinct non-null values observed
	// for a column, ordered by frequency descending. Used for enum detection.
	SampleDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error)

	// Dialect returns the short dialect identifier ("postgres", "mysql", "mssql").
	Dialect() string

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

// QueryExecutor runs ad-hoc read queries against a database.
// Implementations never mutate state; callers are responsible for verifying
// a statement is a SELECT before calling Execute.
type QueryExecutor interface {
	// Execute runs sqlText and returns at most maxRows+1 rows so the caller
	// can detect truncation without a separate COUNT query.
	Execute(ctx context.Context, sqlText string, maxRows int) (*QueryExecutionResult, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Dialect returns the short dialect identifier ("postgres", "mysql", "mssql").
	Dialect() string

	// Close releases the underlying connection pool.
	Close() error
}

// ColumnInfo describes one result column's name and reported database type.
type ColumnInfo struct {
	Name string
	Type string
}

// QueryExecutionResult holds the outcome of a read-only query execution.
type QueryExecutionResult struct {
	Columns []ColumnInfo
	Rows    []map[string]any
}

// DiscovererFactory constructs a SchemaDiscoverer for a dialect from a DSN.
type DiscovererFactory func(ctx context.Context, databaseURL string) (SchemaDiscoverer, error)

// ExecutorFactory constructs a QueryExecutor for a dialect from a DSN.
type ExecutorFactory func(ctx context.Context, databaseURL string) (QueryExecutor, error)
