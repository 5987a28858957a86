package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/querylab/dune-smoke/internal/smoke"
)

// RunMeta carries batch-level context into written reports.
type RunMeta struct {
	RunID        string
	Architecture string // empty = all
	StartedAt    time.Time
}

// WriteMarkdown writes a Markdown batch report.
func WriteMarkdown(w io.Writer, results []*smoke.Result, meta RunMeta) error {
	s := Summarize(results)

	fmt.Fprintf(w, "# Smoke Test Report\n\n")
	fmt.Fprintf(w, "- Run: `%s`\n", meta.RunID)
	if meta.Architecture != "" {
		fmt.Fprintf(w, "- Architecture: %s\n", meta.Architecture)
	}
	if !meta.StartedAt.IsZero() {
		fmt.Fprintf(w, "- Started: %s\n", meta.StartedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "- Result: **%d passed, %d failed, %d total**\n\n", s.Passed, s.Failed, s.Total)

	fmt.Fprintln(w, "| Query | Status | Summary | Rows | Duration |")
	fmt.Fprintln(w, "|-------|--------|---------|------|----------|")
	for _, r := range results {
		status := "FAIL"
		if r.Success {
			status = "PASS"
		}
		rows := "-"
		if r.Execution != nil {
			rows = strconv.Itoa(r.Execution.RowCount)
		}
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			r.Name, status, r.Summary(), rows, r.Duration.Round(time.Millisecond))
	}

	failures := false
	for _, r := range results {
		if r.Success {
			continue
		}
		if !failures {
			fmt.Fprintf(w, "\n## Failures\n")
			failures = true
		}
		fmt.Fprintf(w, "\n### %s\n\n", r.Name)
		if r.Error != "" {
			fmt.Fprintf(w, "- error: %s\n", r.Error)
		}
		for _, v := range r.Validations {
			if !v.Passed {
				fmt.Fprintf(w, "- %s: %s\n", v.CheckName, v.Message)
			}
		}
	}

	return nil
}

// WriteCSV writes one row per outcome, suitable for spreadsheet triage.
func WriteCSV(w io.Writer, results []*smoke.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "architecture", "status", "row_count", "duration_ms", "summary"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range results {
		status := "fail"
		if r.Success {
			status = "pass"
		}
		rows := ""
		if r.Execution != nil {
			rows = strconv.Itoa(r.Execution.RowCount)
		}
		rec := []string{
			r.Name,
			r.Architecture,
			status,
			rows,
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			r.Summary(),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
