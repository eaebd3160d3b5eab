package mssql

import (
	"fmt"
	"strings"
)

// quoteName returns a SQL Server bracket-quoted identifier, escaping any
// literal "]" by doubling it.
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "]", "]]")
	return fmt.Sprintf("[%s]", escaped)
}

// buildFullyQualifiedName builds a bracket-quoted "[schema].[table]" name.
func buildFullyQualifiedName(schema, table string) string {
	return fmt.Sprintf("%s.%s", quoteName(schema), quoteName(table))
}

// mapSQLServerType maps SQL Server type names to the cross-dialect vocabulary
// the Reflector uses when classifying column kinds.
func mapSQLServerType(sqlServerType string) string {
	switch strings.ToUpper(sqlServerType) {
	case "TINYINT":
		return "TINYINT"
	case "SMALLINT":
		return "SMALLINT"
	case "INT":
		return "INTEGER"
	case "BIGINT":
		return "BIGINT"
	case "DECIMAL", "NUMERIC":
		return "NUMERIC"
	case "MONEY", "SMALLMONEY":
		return "MONEY"
	case "FLOAT":
		return "DOUBLE PRECISION"
	case "REAL":
		return "REAL"
	case "CHAR", "NCHAR":
		return "CHAR"
	case "VARCHAR", "NVARCHAR":
		return "VARCHAR"
	case "TEXT", "NTEXT":
		return "TEXT"
	case "BINARY", "VARBINARY":
		return "BYTEA"
	case "IMAGE":
		return "BLOB"
	case "DATE":
		return "DATE"
	case "TIME":
		return "TIME"
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "TIMESTAMP"
	case "DATETIMEOFFSET":
		return "TIMESTAMP WITH TIME ZONE"
	case "BIT":
		return "BOOLEAN"
	case "UNIQUEIDENTIFIER":
		return "UUID"
	case "JSON":
		return "JSON"
	case "XML":
		return "XML"
	case "GEOGRAPHY", "GEOMETRY":
		return "SPATIAL"
	default:
		return strings.ToUpper(sqlServerType)
	}
}

// isStringType reports whether a SQL Server type name takes a string length.
func isStringType(sqlType string) bool {
	switch strings.ToUpper(sqlType) {
	case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT":
		return true
	default:
		return false
	}
}

// isSpatialType reports whether a SQL Server type is a geography/geometry
// column, which the Sampler treats as opaque (no distinct-value sampling,
// no length stats) rather than attempting CAST(... AS NVARCHAR).
func isSpatialType(sqlType string) bool {
	switch strings.ToUpper(sqlType) {
	case "GEOGRAPHY", "GEOMETRY":
		return true
	default:
		return false
	}
}
