package validate

import "github.com/querylab/dune-smoke/internal/dune"

// RangeRule binds a column to an inclusive numeric range. Nil bounds are
// unbounded on that side.
type RangeRule struct {
	Column string   `json:"column" yaml:"column"`
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Options configures the standard validation battery. The zero value runs
// execution-success and min-rows(1) only.
type Options struct {
	ExpectedColumns []string    `json:"expected_columns,omitempty" yaml:"expected_columns,omitempty"`
	StrictColumns   bool        `json:"strict_columns,omitempty" yaml:"strict_columns,omitempty"`
	MinRows         int         `json:"min_rows,omitempty" yaml:"min_rows,omitempty"`
	ValueRanges     []RangeRule `json:"value_ranges,omitempty" yaml:"value_ranges,omitempty"`
	NonNullColumns  []string    `json:"non_null_columns,omitempty" yaml:"non_null_columns,omitempty"`
}

// RunAll runs the configured battery against one execution result and returns
// every outcome in a fixed order: execution-success, min-rows, then the
// conditional checks. Checks do not short-circuit; a failed execution still
// produces outcomes for every configured check so one invocation carries the
// complete diagnostic picture.
func RunAll(r *dune.ExecutionResult, opts Options) []Result {
	minRows := opts.MinRows
	if minRows <= 0 {
		minRows = 1
	}

	results := []Result{
		ExecutionSuccess(r),
		MinRows(r, minRows),
	}

	if len(opts.ExpectedColumns) > 0 {
		results = append(results, Columns(r, opts.ExpectedColumns, opts.StrictColumns))
	}
	for _, rule := range opts.ValueRanges {
		results = append(results, ValueInRange(r, rule.Column, rule.Min, rule.Max))
	}
	if len(opts.NonNullColumns) > 0 {
		results = append(results, NoNulls(r, opts.NonNullColumns))
	}

	return results
}
