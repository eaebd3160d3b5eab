// Package sqlglot provides typed, side-effect-free operations over raw SQL
// text: validation, cross-dialect transpilation of a handful of common
// syntactic differences, structural metadata extraction, and heuristic
// assistance for execution-time errors. It is deliberately not a full SQL
// parser — there is no dialect-aware AST library directly exercised
// anywhere in this project's dependency stack, so the facade works off a
// lightweight tokenizer plus the same quote-aware scanning style already
// used by pkg/sql's statement validator, and degrades to "best effort"
// rather than failing closed on SQL it cannot fully model.
package sqlglot

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Dialect identifies a target SQL dialect for rendering and transpilation.
type Dialect string

const (
	DialectGeneric  Dialect = "sql"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectTSQL     Dialect = "tsql"
	DialectOracle   Dialect = "oracle"
	DialectSnowflake Dialect = "snowflake"
	DialectBigQuery Dialect = "bigquery"
)

// sqlAlchemyToDialect mirrors the mapping the planner's host application
// used to normalize a driver's dialect name to a sqlglot-style literal.
var sqlAlchemyToDialect = map[string]Dialect{
	"postgresql": DialectPostgres,
	"postgres":   DialectPostgres,
	"mysql":      DialectMySQL,
	"sqlite":     DialectSQLite,
	"mssql":      DialectTSQL,
	"sqlserver":  DialectTSQL,
	"oracle":     DialectOracle,
	"snowflake":  DialectSnowflake,
	"bigquery":   DialectBigQuery,
}

// MapEngineDialect maps this service's own engine dialect identifiers
// ("postgres", "mysql", "mssql") to a facade Dialect, falling back to the
// generic dialect for anything unrecognized.
func MapEngineDialect(engineDialect string) Dialect {
	if d, ok := sqlAlchemyToDialect[strings.ToLower(engineDialect)]; ok {
		return d
	}
	return DialectGeneric
}

// limitStyleDialects are dialects that render row-capping with a trailing
// LIMIT clause rather than a leading TOP(n).
var limitStyleDialects = map[Dialect]bool{
	DialectPostgres:  true,
	DialectMySQL:     true,
	DialectSQLite:    true,
	DialectBigQuery:  true,
	DialectSnowflake: true,
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	IsValid       bool
	ErrorMessage  string
	NormalizedSQL string
	TargetDialect Dialect
}

// TranspileResult is the outcome of Transpile.
type TranspileResult struct {
	SQL           string
	Warnings      []string
	TargetDialect Dialect
}

// OptimizeResult is the outcome of Optimize.
type OptimizeResult struct {
	SQL           string
	AppliedRules  []string
	Notes         []string
	TargetDialect Dialect
}

// MetadataResult is the outcome of Metadata.
type MetadataResult struct {
	QueryType        string
	Tables           []string
	Columns          []string
	Functions        []string
	HasJoins         bool
	HasSubqueries    bool
	HasAggregations  bool
	TargetDialect    Dialect
}

// ErrorAssistResult is the outcome of AssistError.
type ErrorAssistResult struct {
	NormalizedSQL  string
	LikelyCauses   []string
	SuggestedFixes []string
	TargetDialect  Dialect
}

// parseCacheKey is the (sql, dialect) pair parse results are cached by.
type parseCacheKey struct {
	sql     string
	dialect Dialect
}

// Service is a typed wrapper over SQL inspection operations. A single
// Service is safe for concurrent use; its parse cache is guarded by a mutex
// sized for the modest hit rate of interactive tool calls.
type Service struct {
	defaultDialect Dialect

	mu    sync.Mutex
	cache map[parseCacheKey]*statement
	order []parseCacheKey
}

const maxCacheEntries = 256

// NewService builds a Service that falls back to defaultDialect when a
// caller does not specify one.
func NewService(defaultDialect Dialect) *Service {
	if defaultDialect == "" {
		defaultDialect = DialectGeneric
	}
	return &Service{defaultDialect: defaultDialect, cache: make(map[parseCacheKey]*statement)}
}

func (s *Service) parse(sqlText string, dialect Dialect) *statement {
	key := parseCacheKey{sql: sqlText, dialect: dialect}
	s.mu.Lock()
	if st, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return st
	}
	s.mu.Unlock()

	st := tokenizeStatement(sqlText, dialect)

	s.mu.Lock()
	if len(s.order) >= maxCacheEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest)
	}
	s.cache[key] = st
	s.order = append(s.order, key)
	s.mu.Unlock()
	return st
}

// Validate parses sqlText and reports whether it is structurally well-formed
// (balanced parens and quotes, a single recognizable leading statement
// keyword), returning a pretty-printed rendering on success.
func (s *Service) Validate(sqlText string, dialect Dialect) ValidationResult {
	if dialect == "" {
		dialect = s.defaultDialect
	}
	st := s.parse(sqlText, dialect)
	if st.parseErr != "" {
		return ValidationResult{IsValid: false, ErrorMessage: st.parseErr, TargetDialect: dialect}
	}
	return ValidationResult{
		IsValid:       true,
		NormalizedSQL: prettyPrint(st),
		TargetDialect: dialect,
	}
}

// Transpile rewrites the handful of syntactic differences this facade
// understands between sourceDialect and targetDialect: TOP(n) versus
// trailing LIMIT n, and bracket/backtick/quote identifier styles.
func (s *Service) Transpile(sqlText string, sourceDialect, targetDialect Dialect, pretty bool) TranspileResult {
	var warnings []string
	st := s.parse(sqlText, sourceDialect)
	if st.parseErr != "" {
		warnings = append(warnings, fmt.Sprintf("transpile proceeding despite parse issue: %s", st.parseErr))
	}

	out := rewriteTopLimit(st.normalized, sourceDialect, targetDialect)
	out = rewriteIdentifierQuoting(out, sourceDialect, targetDialect)

	if strings.TrimSpace(out) == "" {
		warnings = append(warnings, "transpilation returned empty result; falling back to original SQL")
		return TranspileResult{SQL: sqlText, Warnings: warnings, TargetDialect: targetDialect}
	}
	if pretty {
		out = prettyPrintText(out)
	}
	return TranspileResult{SQL: out, Warnings: warnings, TargetDialect: targetDialect}
}

// AutoTranspile detects sqlText's likely source dialect from its own
// syntax (TOP(n), bracketed identifiers, backtick identifiers) and then
// transpiles to targetDialect.
func (s *Service) AutoTranspile(sqlText string, targetDialect Dialect, pretty bool) TranspileResult {
	detected := detectDialect(sqlText)
	return s.Transpile(sqlText, detected, targetDialect, pretty)
}

// Optimize applies whitespace/keyword normalization and, when schemaMap is
// provided (table -> column -> type), annotates ambiguous unqualified
// column references with their owning table where exactly one candidate
// table has a column of that name.
func (s *Service) Optimize(sqlText string, dialect Dialect, schemaMap map[string]map[string]string) OptimizeResult {
	if dialect == "" {
		dialect = s.defaultDialect
	}
	st := s.parse(sqlText, dialect)
	if st.parseErr != "" {
		return OptimizeResult{SQL: sqlText, Notes: []string{"parse failed: " + st.parseErr}, TargetDialect: dialect}
	}

	var applied []string
	out := prettyPrint(st)
	if len(schemaMap) > 0 {
		qualified, n := qualifyAmbiguousColumns(out, schemaMap)
		if n > 0 {
			out = qualified
			applied = append(applied, "schema-aware-column-qualification")
		}
	}
	return OptimizeResult{SQL: out, AppliedRules: applied, TargetDialect: dialect}
}

// Metadata extracts structural facts from sqlText: the leading statement
// keyword, referenced tables and columns, function names, and boolean
// flags for joins/subqueries/aggregations. Aggregation is flagged by a
// known aggregate function name or a GROUP BY clause, matching the source
// tool's detection rule.
func (s *Service) Metadata(sqlText string, dialect Dialect) MetadataResult {
	if dialect == "" {
		dialect = s.defaultDialect
	}
	st := s.parse(sqlText, dialect)
	if st.parseErr != "" {
		return MetadataResult{QueryType: "Unknown", TargetDialect: dialect}
	}

	functions := st.functions
	hasAggFunc := false
	for _, fn := range functions {
		if aggregateFunctionNames[strings.ToUpper(fn)] {
			hasAggFunc = true
			break
		}
	}

	return MetadataResult{
		QueryType:       st.queryType,
		Tables:          st.tables,
		Columns:         st.columns,
		Functions:       functions,
		HasJoins:        st.hasJoins,
		HasSubqueries:   st.hasSubqueries,
		HasAggregations: hasAggFunc || st.hasGroupBy,
		TargetDialect:   dialect,
	}
}

var aggregateFunctionNames = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true, "GROUP_CONCAT": true,
}

// AssistError inspects a failed sqlText plus the engine's raw error string
// and returns concrete, labeled hypotheses plus small rewrite suggestions.
// It never re-executes the query.
func (s *Service) AssistError(sqlText, engineErrorMessage string, dialect Dialect) ErrorAssistResult {
	if dialect == "" {
		dialect = s.defaultDialect
	}
	result := ErrorAssistResult{TargetDialect: dialect}

	val := s.Validate(sqlText, dialect)
	if val.IsValid {
		result.NormalizedSQL = val.NormalizedSQL
	}

	emsg := strings.ToLower(engineErrorMessage)
	lowerSQL := strings.ToLower(sqlText)

	var causes, fixes []string
	addIf := func(cond bool, msgs ...string) {
		if cond {
			causes = append(causes, msgs...)
		}
	}
	addIf(strings.Contains(emsg, "syntax error") || strings.Contains(emsg, "mismatched input"),
		"SQL syntax near reported token is invalid for this dialect")
	addIf(strings.Contains(emsg, "no such table") || strings.Contains(emsg, "relation does not exist"),
		"Referenced table name may be wrong or not in search_path")
	addIf(strings.Contains(emsg, "no such column") || strings.Contains(emsg, "column does not exist"),
		"A selected or filtered column is misspelled or not present")
	addIf(strings.Contains(emsg, "function") && strings.Contains(emsg, "does not exist"),
		"Function is unsupported or has different name/arg types in this dialect")
	addIf(strings.Contains(emsg, "datatype mismatch") || strings.Contains(emsg, "invalid input syntax"),
		"Type mismatch in predicate or insert values")

	if strings.Contains(lowerSQL, "top ") && limitStyleDialects[dialect] {
		fixes = append(fixes, "Replace T-SQL TOP with LIMIT")
	}
	if strings.Contains(lowerSQL, "limit") && dialect == DialectTSQL {
		fixes = append(fixes, "Replace LIMIT with TOP n in SELECT clause")
	}
	if strings.Contains(lowerSQL, "ifnull(") || strings.Contains(lowerSQL, "isnull(") {
		fixes = append(fixes, "Use COALESCE for portable null handling where supported")
	}

	sort.Strings(causes)
	sort.Strings(fixes)
	result.LikelyCauses = dedupeSorted(causes)
	result.SuggestedFixes = dedupeSorted(fixes)
	return result
}

func dedupeSorted(sorted []string) []string {
	if len(sorted) == 0 {
		return nil
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

var topPattern = regexp.MustCompile(`(?i)\bSELECT\s+TOP\s*\(?\s*(\d+)\s*\)?\s+`)
var limitPattern = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\s*;?\s*$`)

// rewriteTopLimit converts between T-SQL's leading "SELECT TOP(n)" and the
// trailing "LIMIT n" form every other supported dialect uses.
func rewriteTopLimit(sqlText string, source, target Dialect) string {
	if source == DialectTSQL && limitStyleDialects[target] {
		if m := topPattern.FindStringSubmatch(sqlText); m != nil {
			rest := topPattern.ReplaceAllString(sqlText, "SELECT ")
			return strings.TrimRight(rest, " \t\n;") + fmt.Sprintf(" LIMIT %s", m[1])
		}
	}
	if target == DialectTSQL && source != DialectTSQL {
		if m := limitPattern.FindStringSubmatch(sqlText); m != nil {
			trimmed := limitPattern.ReplaceAllString(sqlText, "")
			trimmed = strings.TrimRight(trimmed, " \t\n;")
			return regexp.MustCompile(`(?i)^\s*SELECT\s+`).ReplaceAllString(trimmed, fmt.Sprintf("SELECT TOP(%s) ", m[1]))
		}
	}
	return sqlText
}

// rewriteIdentifierQuoting converts bracket-quoted ([name]), backtick-quoted
// (`name`), and double-quoted ("name") identifiers to the target dialect's
// native quoting style.
func rewriteIdentifierQuoting(sqlText string, source, target Dialect) string {
	open, close := identifierQuoteChars(target)
	if open == 0 {
		return sqlText
	}
	var out strings.Builder
	i := 0
	for i < len(sqlText) {
		c := sqlText[i]
		if c == '[' || c == '`' || c == '"' {
			closeChar := matchingQuoteChar(c)
			end := strings.IndexByte(sqlText[i+1:], closeChar)
			if end >= 0 {
				name := sqlText[i+1 : i+1+end]
				out.WriteByte(open)
				out.WriteString(name)
				out.WriteByte(close)
				i = i + 1 + end + 1
				continue
			}
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

func matchingQuoteChar(open byte) byte {
	switch open {
	case '[':
		return ']'
	default:
		return open
	}
}

func identifierQuoteChars(dialect Dialect) (byte, byte) {
	switch dialect {
	case DialectMySQL:
		return '`', '`'
	case DialectTSQL:
		return '[', ']'
	case DialectPostgres, DialectSQLite, DialectSnowflake, DialectBigQuery, DialectOracle, DialectGeneric:
		return '"', '"'
	default:
		return '"', '"'
	}
}

// detectDialect guesses a source dialect purely from syntax cues present in
// sqlText, for AutoTranspile.
func detectDialect(sqlText string) Dialect {
	if topPattern.MatchString(sqlText) || strings.Contains(sqlText, "[") {
		return DialectTSQL
	}
	if strings.Contains(sqlText, "`") {
		return DialectMySQL
	}
	return DialectPostgres
}
