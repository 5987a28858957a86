// Package report renders smoke-test outcomes: console summaries, Markdown
// and CSV reports, a parquet summary dataset and gzip row artifacts, with an
// optional blob-storage destination for batch artifacts.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/querylab/dune-smoke/internal/smoke"
)

// Summary aggregates pass/fail counts across a batch.
type Summary struct {
	Passed int
	Failed int
	Total  int
}

// Summarize counts passed and failed outcomes.
func Summarize(results []*smoke.Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// AllPassed reports whether every outcome in the batch passed.
func AllPassed(results []*smoke.Result) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}

// PrintResults writes a formatted result block for human triage.
func PrintResults(w io.Writer, results []*smoke.Result) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "SMOKE TEST RESULTS")
	fmt.Fprintln(w, rule)

	for _, r := range results {
		status := "FAIL"
		icon := "[X]"
		if r.Success {
			status = "PASS"
			icon = "[+]"
		}
		fmt.Fprintf(w, "\n%s %s: %s\n", icon, r.Name, status)
		fmt.Fprintf(w, "    %s\n", r.Summary())

		if r.Execution != nil && r.Execution.RowCount > 0 {
			fmt.Fprintf(w, "    Rows returned: %d\n", r.Execution.RowCount)
		}

		if !r.Success {
			for _, v := range r.Validations {
				if !v.Passed {
					fmt.Fprintf(w, "    - %s: %s\n", v.CheckName, v.Message)
				}
			}
		}
	}

	s := Summarize(results)
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("-", 60))
	fmt.Fprintf(w, "TOTAL: %d passed, %d failed, %d total\n", s.Passed, s.Failed, s.Total)
	fmt.Fprintln(w, rule)
}
