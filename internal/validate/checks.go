// Package validate provides pass/fail checks over query execution results.
//
// Every check is a pure function from an ExecutionResult (plus check
// parameters) to a Result. Checks never return Go errors and never panic on
// malformed input; a referenced column that does not exist is a failing
// outcome, not an error.
package validate

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/querylab/dune-smoke/internal/dune"
)

// Check names as they appear in outcomes and reports.
const (
	CheckExecutionSuccess = "execution_success"
	CheckNonEmpty         = "non_empty"
	CheckMinRows          = "min_rows"
	CheckColumns          = "columns"
	CheckValueRange       = "value_range"
	CheckNoNulls          = "no_nulls"
)

// Result is the outcome of a single validation check.
type Result struct {
	CheckName string         `json:"check_name"`
	Passed    bool           `json:"passed"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// Violation describes one out-of-range or non-numeric value found by the
// value-range check.
type Violation struct {
	Row   int    `json:"row"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

// maxReportedViolations bounds the per-check diagnostic payload.
const maxReportedViolations = 10

// ExecutionSuccess checks that the remote execution completed successfully.
func ExecutionSuccess(r *dune.ExecutionResult) Result {
	if r.Success {
		return Result{
			CheckName: CheckExecutionSuccess,
			Passed:    true,
			Message:   "query executed successfully",
			Details: map[string]any{
				"state":        r.State,
				"execution_id": r.ExecutionID,
			},
		}
	}
	return Result{
		CheckName: CheckExecutionSuccess,
		Passed:    false,
		Message:   fmt.Sprintf("query execution failed: %s", r.Error),
		Details: map[string]any{
			"state": r.State,
			"error": r.Error,
		},
	}
}

// NonEmpty checks that the query returned at least one row.
func NonEmpty(r *dune.ExecutionResult) Result {
	if r.RowCount > 0 {
		return Result{
			CheckName: CheckNonEmpty,
			Passed:    true,
			Message:   fmt.Sprintf("query returned %d rows", r.RowCount),
			Details:   map[string]any{"row_count": r.RowCount},
		}
	}
	return Result{
		CheckName: CheckNonEmpty,
		Passed:    false,
		Message:   "query returned no rows",
		Details:   map[string]any{"row_count": 0},
	}
}

// MinRows checks that the result has at least min rows.
func MinRows(r *dune.ExecutionResult, min int) Result {
	details := map[string]any{
		"row_count": r.RowCount,
		"min_rows":  min,
	}
	if r.RowCount >= min {
		return Result{
			CheckName: CheckMinRows,
			Passed:    true,
			Message:   fmt.Sprintf("row count %d >= minimum %d", r.RowCount, min),
			Details:   details,
		}
	}
	return Result{
		CheckName: CheckMinRows,
		Passed:    false,
		Message:   fmt.Sprintf("row count %d < minimum %d", r.RowCount, min),
		Details:   details,
	}
}

// Columns checks that the result contains the expected columns. With strict
// set, the result must contain exactly the expected columns and nothing else.
func Columns(r *dune.ExecutionResult, expected []string, strict bool) Result {
	actual := make(map[string]bool, len(r.Columns))
	for _, c := range r.Columns {
		actual[c] = true
	}
	expectedSet := make(map[string]bool, len(expected))
	for _, c := range expected {
		expectedSet[c] = true
	}

	var missing []string
	for _, c := range expected {
		if !actual[c] {
			missing = append(missing, c)
		}
	}
	var extra []string
	if strict {
		for _, c := range r.Columns {
			if !expectedSet[c] {
				extra = append(extra, c)
			}
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	if len(missing) == 0 && len(extra) == 0 {
		return Result{
			CheckName: CheckColumns,
			Passed:    true,
			Message:   fmt.Sprintf("all %d expected columns present", len(expected)),
			Details: map[string]any{
				"expected": expected,
				"actual":   r.Columns,
			},
		}
	}

	var issues []string
	if len(missing) > 0 {
		issues = append(issues, fmt.Sprintf("missing: %v", missing))
	}
	if len(extra) > 0 {
		issues = append(issues, fmt.Sprintf("extra: %v", extra))
	}
	msg := "column mismatch: " + issues[0]
	for _, issue := range issues[1:] {
		msg += "; " + issue
	}

	// extra stays nil when not strict, signalling the check was not exhaustive.
	var extraDetail any
	if strict {
		if extra == nil {
			extra = []string{}
		}
		extraDetail = extra
	}
	if missing == nil {
		missing = []string{}
	}

	return Result{
		CheckName: CheckColumns,
		Passed:    false,
		Message:   msg,
		Details: map[string]any{
			"expected": expected,
			"actual":   r.Columns,
			"missing":  missing,
			"extra":    extraDetail,
		},
	}
}

// ValueInRange checks that every non-null value in the column is numeric and
// within [min, max]. A nil bound is unbounded on that side. A column with no
// non-null values passes: absence of data is not a range violation. A column
// absent from the result fails outright.
func ValueInRange(r *dune.ExecutionResult, column string, min, max *float64) Result {
	if !containsColumn(r.Columns, column) {
		return Result{
			CheckName: CheckValueRange,
			Passed:    false,
			Message:   fmt.Sprintf("column '%s' not found in results", column),
			Details: map[string]any{
				"column":            column,
				"available_columns": r.Columns,
			},
		}
	}

	var values []any
	for _, row := range r.Rows {
		if v, ok := row[column]; ok && v != nil {
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		return Result{
			CheckName: CheckValueRange,
			Passed:    true,
			Message:   fmt.Sprintf("column '%s' has no non-null values to check", column),
			Details: map[string]any{
				"column":      column,
				"value_count": 0,
			},
		}
	}

	var violations []Violation
	actualMin, actualMax := 0.0, 0.0
	first := true
	for i, v := range values {
		num, ok := toFloat(v)
		if !ok {
			violations = append(violations, Violation{Row: i, Value: v, Issue: "not numeric"})
			continue
		}
		if first || num < actualMin {
			actualMin = num
		}
		if first || num > actualMax {
			actualMax = num
		}
		first = false
		if min != nil && num < *min {
			violations = append(violations, Violation{Row: i, Value: v, Issue: fmt.Sprintf("< %v", *min)})
		}
		if max != nil && num > *max {
			violations = append(violations, Violation{Row: i, Value: v, Issue: fmt.Sprintf("> %v", *max)})
		}
	}

	if len(violations) == 0 {
		return Result{
			CheckName: CheckValueRange,
			Passed:    true,
			Message:   fmt.Sprintf("all %d values in '%s' within range", len(values), column),
			Details: map[string]any{
				"column":       column,
				"value_count":  len(values),
				"actual_min":   actualMin,
				"actual_max":   actualMax,
				"expected_min": boundDetail(min),
				"expected_max": boundDetail(max),
			},
		}
	}

	sample := violations
	if len(sample) > maxReportedViolations {
		sample = sample[:maxReportedViolations]
	}
	return Result{
		CheckName: CheckValueRange,
		Passed:    false,
		Message:   fmt.Sprintf("%d values in '%s' out of range", len(violations), column),
		Details: map[string]any{
			"column":           column,
			"violations":       sample,
			"total_violations": len(violations),
			"expected_min":     boundDetail(min),
			"expected_max":     boundDetail(max),
		},
	}
}

// NoNulls checks that the requested columns are present and free of nulls.
// A requested column absent from the result is reported as missing, which is
// distinct from a null count of zero.
func NoNulls(r *dune.ExecutionResult, columns []string) Result {
	var missingCols []string
	nullCounts := make(map[string]int)

	for _, col := range columns {
		if !containsColumn(r.Columns, col) {
			missingCols = append(missingCols, col)
			continue
		}
		count := 0
		for _, row := range r.Rows {
			if v, ok := row[col]; !ok || v == nil {
				count++
			}
		}
		if count > 0 {
			nullCounts[col] = count
		}
	}

	if len(missingCols) == 0 && len(nullCounts) == 0 {
		return Result{
			CheckName: CheckNoNulls,
			Passed:    true,
			Message:   fmt.Sprintf("no null values in %d checked columns", len(columns)),
			Details:   map[string]any{"columns": columns},
		}
	}

	var issues []string
	if len(missingCols) > 0 {
		issues = append(issues, fmt.Sprintf("missing columns: %v", missingCols))
	}
	if len(nullCounts) > 0 {
		issues = append(issues, fmt.Sprintf("null values: %v", nullCounts))
	}
	msg := "null check failed: " + issues[0]
	for _, issue := range issues[1:] {
		msg += "; " + issue
	}
	if missingCols == nil {
		missingCols = []string{}
	}

	return Result{
		CheckName: CheckNoNulls,
		Passed:    false,
		Message:   msg,
		Details: map[string]any{
			"missing_columns": missingCols,
			"null_counts":     nullCounts,
		},
	}
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// toFloat coerces a result value to float64. Strings are parsed; anything
// else non-numeric reports false.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func boundDetail(b *float64) any {
	if b == nil {
		return nil
	}
	return *b
}
