// Package execrunner implements the bounded, read-only query execution path
// exposed by the execute_query tool: a SELECT-only guard, dialect
// normalization via pkg/sqlglot, row/cell truncation, and structured error
// results so a failed statement never raises past the tool boundary.
package execrunner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/schemasense/engine/pkg/adapters/datasource"
	sqlpkg "github.com/schemasense/engine/pkg/sql"
	"github.com/schemasense/engine/pkg/sqlglot"
)

// bannedLeadingKeywords are statement-mutating keywords the guard rejects
// when they appear as the leading keyword of any statement in the input.
var bannedLeadingKeywords = []string{
	"insert ", "update ", "delete ", "merge ", "alter ",
	"create ", "drop ", "truncate ", "grant ", "revoke ",
}

// ExecutionMetadata describes how a query ran, independent of its rows.
type ExecutionMetadata struct {
	Dialect      string `json:"dialect"`
	ElapsedMS    int64  `json:"elapsed_ms"`
	RowLimit     int    `json:"row_limit"`
	RowsReturned int    `json:"rows_returned"`
	Truncated    bool   `json:"truncated"`
}

// Result is the typed output of Run, matching ExecuteQueryResult's wire
// contract: status is "ok" or "error"; ExecutionError and AssistNotes are
// only populated on the error path.
type Result struct {
	SQL              string            `json:"sql"`
	Status           string            `json:"status"`
	Execution        ExecutionMetadata `json:"execution"`
	Results          []map[string]any  `json:"results"`
	ValidationNotes  []string          `json:"validation_notes,omitempty"`
	RecommendedSteps []string          `json:"recommended_next_steps,omitempty"`
	AssistNotes      []string          `json:"assist_notes,omitempty"`
	ExecutionError   string            `json:"execution_error,omitempty"`
}

// Runner executes validated, bounded read queries against one database.
type Runner struct {
	executor     datasource.QueryExecutor
	dialect      string
	glot         *sqlglot.Service
	rowLimit     int
	maxCellChars int
	logger       *zap.Logger
}

// New builds a Runner bound to executor for the given engine dialect.
func New(executor datasource.QueryExecutor, dialect string, rowLimit, maxCellChars int, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rowLimit < 1 {
		rowLimit = 200
	}
	if maxCellChars < 10 {
		maxCellChars = 200
	}
	return &Runner{
		executor:     executor,
		dialect:      dialect,
		glot:         sqlglot.NewService(sqlglot.MapEngineDialect(dialect)),
		rowLimit:     rowLimit,
		maxCellChars: maxCellChars,
		logger:       logger.Named("execrunner"),
	}
}

// Run executes sqlText end to end: guard, normalize, transpile-then-validate,
// execute with truncation detection, and cell truncation. It never returns a
// non-nil error; every failure is reflected in the returned Result's status.
func (r *Runner) Run(ctx context.Context, sqlText string) *Result {
	result := &Result{SQL: sqlText, Status: "ok"}
	targetDialect := sqlglot.MapEngineDialect(r.dialect)
	result.Execution = ExecutionMetadata{Dialect: r.dialect, RowLimit: r.rowLimit}

	if violation := findBannedKeyword(sqlText); violation != "" {
		result.Status = "error"
		result.ValidationNotes = []string{
			"Only SELECT queries are permitted",
			fmt.Sprintf("Rejected on leading keyword %q", strings.TrimSpace(violation)),
		}
		return result
	}

	normalized := sqlpkg.ValidateAndNormalize(sqlText)
	if normalized.Error != nil {
		result.Status = "error"
		result.ValidationNotes = []string{normalized.Error.Error()}
		return result
	}
	sqlToRun := normalized.NormalizedSQL

	// libinjection is tuned for parameter-value scanning, not whole
	// statements, so a hit here is noted rather than rejected outright — a
	// SELECT with a legitimately quote-heavy WHERE clause can still trip its
	// fingerprint matcher. The banned-keyword guard and the
	// ValidateAndNormalize check above are the hard stops; this is a
	// second, advisory signal layered on top of them.
	if isSQLi, fingerprint := libinjection.IsSQLi(sqlToRun); isSQLi {
		result.ValidationNotes = append(result.ValidationNotes,
			fmt.Sprintf("heuristic injection scan flagged this statement (fingerprint %q); review before trusting results", string(fingerprint)))
	}

	transpiled := r.glot.AutoTranspile(sqlToRun, targetDialect, false)
	sqlToRun = transpiled.SQL
	result.ValidationNotes = append(result.ValidationNotes, transpiled.Warnings...)

	validation := r.glot.Validate(sqlToRun, targetDialect)
	if !validation.IsValid {
		result.ValidationNotes = append(result.ValidationNotes,
			fmt.Sprintf("dialect validator: %s (execution attempted anyway)", validation.ErrorMessage))
	}

	start := time.Now()
	execResult, err := r.executor.Execute(ctx, sqlToRun, r.rowLimit)
	elapsed := time.Since(start)
	result.Execution.ElapsedMS = elapsed.Milliseconds()

	if err != nil {
		result.Status = "error"
		result.ExecutionError = err.Error()
		assist := r.glot.AssistError(sqlToRun, err.Error(), targetDialect)
		result.AssistNotes = formatAssistNotes(assist)
		return result
	}

	rows := execResult.Rows
	truncated := len(rows) > r.rowLimit
	if truncated {
		rows = rows[:r.rowLimit]
	}
	result.Execution.RowsReturned = len(rows)
	result.Execution.Truncated = truncated
	result.Results = truncateCells(rows, r.maxCellChars)

	if truncated {
		result.RecommendedSteps = append(result.RecommendedSteps,
			"Results truncated; add WHERE filters or ORDER BY + LIMIT to narrow the result set")
	}
	return result
}

// findBannedKeyword returns the matched banned keyword (with its trailing
// space) if sqlText's normalized-lowercase form contains one as a leading
// keyword of any statement, empty otherwise.
func findBannedKeyword(sqlText string) string {
	lower := strings.ToLower(sqlText)
	statements := strings.Split(lower, ";")
	for _, stmt := range statements {
		trimmed := strings.TrimLeft(stmt, " \t\n\r")
		for _, kw := range bannedLeadingKeywords {
			if strings.HasPrefix(trimmed, kw) {
				return kw
			}
		}
	}
	return ""
}

func formatAssistNotes(assist sqlglot.ErrorAssistResult) []string {
	var notes []string
	for _, cause := range assist.LikelyCauses {
		notes = append(notes, "Cause: "+cause)
	}
	for _, fix := range assist.SuggestedFixes {
		notes = append(notes, "Fix: "+fix)
	}
	return notes
}

// truncateCells applies per-cell character truncation to non-numeric,
// non-boolean, non-null string cells that exceed maxCellChars.
func truncateCells(rows []map[string]any, maxCellChars int) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		copied := make(map[string]any, len(row))
		for k, v := range row {
			copied[k] = truncateCell(v, maxCellChars)
		}
		out[i] = copied
	}
	return out
}

func truncateCell(v any, maxCellChars int) any {
	if v == nil {
		return v
	}
	switch v.(type) {
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	}
	s, ok := v.(string)
	if !ok {
		s = toDisplayString(v)
	}
	runes := []rune(s)
	if len(runes) <= maxCellChars {
		return s
	}
	return string(runes[:maxCellChars-1]) + "…"
}

func toDisplayString(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}
