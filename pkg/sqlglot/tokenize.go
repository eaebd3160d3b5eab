package sqlglot

import (
	"regexp"
	"sort"
	"strings"
)

// statement is the lightweight structural summary this facade extracts
// from a single SQL string: enough to drive validate/metadata/optimize
// without a dialect-aware AST.
type statement struct {
	normalized    string
	parseErr      string
	queryType     string
	tables        []string
	columns       []string
	functions     []string
	hasJoins      bool
	hasSubqueries bool
	hasGroupBy    bool
}

var leadingKeyword = regexp.MustCompile(`(?i)^\s*(SELECT|INSERT|UPDATE|DELETE|MERGE|WITH|CREATE|ALTER|DROP|TRUNCATE|GRANT|REVOKE)\b`)

var queryTypeNames = map[string]string{
	"SELECT":   "Select",
	"INSERT":   "Insert",
	"UPDATE":   "Update",
	"DELETE":   "Delete",
	"MERGE":    "Merge",
	"WITH":     "Select",
	"CREATE":   "Create",
	"ALTER":    "Alter",
	"DROP":     "Drop",
	"TRUNCATE": "Truncate",
	"GRANT":    "Grant",
	"REVOKE":   "Revoke",
}

var fromClausePattern = regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][\w.]*)\s*(?:AS\s+\w+|\w+)?`)
var joinTablePattern = regexp.MustCompile(`(?i)\bJOIN\s+([a-zA-Z_][\w.]*)`)
var joinPattern = regexp.MustCompile(`(?i)\bJOIN\b`)
var groupByPattern = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
var funcCallPattern = regexp.MustCompile(`(?i)\b([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true, "not": true,
	"join": true, "inner": true, "left": true, "right": true, "outer": true, "full": true,
	"on": true, "group": true, "by": true, "order": true, "having": true, "as": true,
	"in": true, "is": true, "null": true, "distinct": true, "union": true, "all": true,
	"with": true, "case": true, "when": true, "then": true, "else": true, "end": true,
	"limit": true, "offset": true, "top": true, "exists": true,
}

// tokenizeStatement scans sqlText for balance (parens, single/double
// quotes, via the same quote-aware state machine used elsewhere for
// multi-statement detection) and, when balanced, extracts the coarse
// structural facts Metadata/Validate need.
func tokenizeStatement(sqlText string, dialect Dialect) *statement {
	trimmed := strings.TrimSpace(sqlText)
	st := &statement{normalized: trimmed}

	if trimmed == "" {
		st.parseErr = "empty SQL string"
		return st
	}
	if err := checkBalance(trimmed); err != "" {
		st.parseErr = err
		return st
	}

	m := leadingKeyword.FindStringSubmatch(trimmed)
	if m == nil {
		st.parseErr = "unrecognized leading statement keyword"
		return st
	}
	kw := strings.ToUpper(m[1])
	st.queryType = queryTypeNames[kw]

	masked := maskStringLiterals(trimmed)

	st.hasJoins = joinPattern.MatchString(masked)
	st.hasGroupBy = groupByPattern.MatchString(masked)
	st.hasSubqueries = countParenSelects(masked) > 0

	st.tables = extractTables(masked)
	st.columns = extractColumns(masked)
	st.functions = extractFunctions(masked)

	return st
}

// checkBalance reports a parse-style error string for unbalanced
// parentheses or unterminated quotes, empty on success.
func checkBalance(sqlText string) string {
	depth := 0
	inSingle, inDouble := false, false
	var prev rune
	for _, c := range sqlText {
		switch {
		case inSingle:
			if c == '\'' && prev != '\\' {
				inSingle = false
			}
		case inDouble:
			if c == '"' && prev != '\\' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return "unbalanced parentheses: unexpected closing ')'"
			}
		}
		prev = c
	}
	if inSingle || inDouble {
		return "unterminated string literal"
	}
	if depth != 0 {
		return "unbalanced parentheses: missing closing ')'"
	}
	return ""
}

// maskStringLiterals replaces the contents of single/double-quoted
// literals with spaces so downstream regexes don't match keywords that
// happen to appear inside a string value.
func maskStringLiterals(sqlText string) string {
	var out strings.Builder
	inSingle, inDouble := false, false
	var prev rune
	for _, c := range sqlText {
		switch {
		case inSingle:
			if c == '\'' && prev != '\\' {
				inSingle = false
			}
			out.WriteByte(' ')
		case inDouble:
			if c == '"' && prev != '\\' {
				inDouble = false
			}
			out.WriteByte(' ')
		case c == '\'':
			inSingle = true
			out.WriteByte(' ')
		case c == '"':
			inDouble = true
			out.WriteByte(' ')
		default:
			out.WriteRune(c)
		}
		prev = c
	}
	return out.String()
}

func countParenSelects(masked string) int {
	re := regexp.MustCompile(`(?i)\(\s*SELECT\b`)
	return len(re.FindAllString(masked, -1))
}

func extractTables(masked string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		name = strings.Trim(name, `"'`+"`")
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, m := range fromClausePattern.FindAllStringSubmatch(masked, -1) {
		add(m[1])
	}
	for _, m := range joinTablePattern.FindAllStringSubmatch(masked, -1) {
		add(m[1])
	}
	sort.Strings(out)
	return out
}

var columnRefPattern = regexp.MustCompile(`(?i)\b([a-zA-Z_][a-zA-Z0-9_]*)\.([a-zA-Z_][a-zA-Z0-9_]*)\b`)
var selectListPattern = regexp.MustCompile(`(?is)\bSELECT\s+(?:DISTINCT\s+)?(.+?)\bFROM\b`)

func extractColumns(masked string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range columnRefPattern.FindAllStringSubmatch(masked, -1) {
		col := m[2]
		if seen[col] || sqlKeywords[strings.ToLower(col)] {
			continue
		}
		seen[col] = true
		out = append(out, col)
	}
	if list := selectListPattern.FindStringSubmatch(masked); list != nil {
		for _, part := range strings.Split(list[1], ",") {
			part = strings.TrimSpace(part)
			if part == "" || part == "*" || strings.Contains(part, "(") {
				continue
			}
			fields := strings.Fields(part)
			name := fields[len(fields)-1]
			if i := strings.LastIndex(name, "."); i >= 0 {
				name = name[i+1:]
			}
			name = strings.Trim(name, `"'`+"`,")
			if name == "" || sqlKeywords[strings.ToLower(name)] || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func extractFunctions(masked string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range funcCallPattern.FindAllStringSubmatch(masked, -1) {
		name := m[1]
		if sqlKeywords[strings.ToLower(name)] || seen[strings.ToUpper(name)] {
			continue
		}
		seen[strings.ToUpper(name)] = true
		out = append(out, strings.ToUpper(name))
	}
	sort.Strings(out)
	return out
}

// prettyPrint renders a statement's normalized SQL with keyword line breaks,
// falling back to the original text with collapsed whitespace.
func prettyPrint(st *statement) string {
	return prettyPrintText(st.normalized)
}

var majorClausePattern = regexp.MustCompile(`(?i)\s+(FROM|WHERE|GROUP BY|ORDER BY|HAVING|LIMIT|JOIN|LEFT JOIN|RIGHT JOIN|INNER JOIN|UNION)\s+`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// prettyPrintText collapses redundant whitespace and puts each major clause
// on its own line, a lighter-weight rendering than a real formatter but
// enough for human-readable normalized_sql output.
func prettyPrintText(sqlText string) string {
	collapsed := whitespaceRun.ReplaceAllString(strings.TrimSpace(sqlText), " ")
	return majorClausePattern.ReplaceAllStringFunc(collapsed, func(m string) string {
		trimmed := strings.TrimSpace(m)
		return "\n" + trimmed + " "
	})
}

// qualifyAmbiguousColumns prefixes unqualified column references with their
// owning table when schemaMap identifies exactly one candidate table for
// that column name across the referenced tables.
func qualifyAmbiguousColumns(sqlText string, schemaMap map[string]map[string]string) (string, int) {
	colToTables := map[string][]string{}
	for table, cols := range schemaMap {
		for col := range cols {
			colToTables[col] = append(colToTables[col], table)
		}
	}

	n := 0
	masked := maskStringLiterals(sqlText)
	selectList := selectListPattern.FindStringSubmatchIndex(masked)
	if selectList == nil {
		return sqlText, 0
	}

	result := sqlText
	for col, tables := range colToTables {
		if len(tables) != 1 {
			continue
		}
		pattern := regexp.MustCompile(`(?i)(\bSELECT\b.*?\bFROM\b)`)
		loc := pattern.FindStringIndex(masked)
		if loc == nil {
			continue
		}
		unqualified := regexp.MustCompile(`(?i)(^|[\s,(])(` + regexp.QuoteMeta(col) + `)\b`)
		prefix := result[:loc[1]]
		if unqualified.MatchString(prefix) {
			replaced := unqualified.ReplaceAllString(prefix, "${1}"+tables[0]+"."+col)
			result = replaced + result[loc[1]:]
			masked = replaced + masked[loc[1]:]
			n++
		}
	}
	return result, n
}
