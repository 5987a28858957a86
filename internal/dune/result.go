package dune

import "sort"

// Execution states reported by the Dune API.
const (
	StatePending   = "QUERY_STATE_PENDING"
	StateExecuting = "QUERY_STATE_EXECUTING"
	StateCompleted = "QUERY_STATE_COMPLETED"
	StateFailed    = "QUERY_STATE_FAILED"
	StateCancelled = "QUERY_STATE_CANCELLED"
	StateExpired   = "QUERY_STATE_EXPIRED"
)

// Row is a single result row keyed by column name. Values are whatever the
// API returned: string, number, bool or nil.
type Row map[string]any

// ExecutionResult is the outcome of one remote query execution. Exactly one
// of Success or a populated Error holds; remote failures are captured here,
// never returned as Go errors.
type ExecutionResult struct {
	Success         bool     `json:"success"`
	ExecutionID     string   `json:"execution_id,omitempty"`
	State           string   `json:"state"`
	Rows            []Row    `json:"rows"`
	Columns         []string `json:"columns"`
	RowCount        int      `json:"row_count"`
	Error           string   `json:"error,omitempty"`
	ExecutionTimeMS int64    `json:"execution_time_ms,omitempty"`
}

// IsEmpty reports whether the result has no rows.
func (r *ExecutionResult) IsEmpty() bool { return r.RowCount == 0 }

// Failed builds a failure result with the given state and error message.
func Failed(state, errMsg string) *ExecutionResult {
	return &ExecutionResult{
		Success: false,
		State:   state,
		Rows:    []Row{},
		Columns: []string{},
		Error:   errMsg,
	}
}

// ColumnsFromRows derives column names from the first row. Empty when there
// are no rows. Keys are sorted for a deterministic order since Go maps do
// not preserve insertion order.
func ColumnsFromRows(rows []Row) []string {
	if len(rows) == 0 {
		return []string{}
	}
	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func isTerminal(state string) bool {
	switch state {
	case StateCompleted, StateFailed, StateCancelled, StateExpired:
		return true
	}
	return false
}
