package report

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/querylab/dune-smoke/internal/smoke"
)

// SummaryRow is the fixed schema of the parquet summary dataset. One row per
// smoke-test outcome; downstream tooling diffs these across runs.
type SummaryRow struct {
	RunID        string `parquet:"run_id"`
	Name         string `parquet:"name"`
	Architecture string `parquet:"architecture"`
	Success      bool   `parquet:"success"`
	RowCount     int64  `parquet:"row_count"`
	DurationMS   int64  `parquet:"duration_ms"`
	Error        string `parquet:"error"`
}

// WriteParquetSummary writes the batch summary as a parquet dataset.
func WriteParquetSummary(w io.Writer, results []*smoke.Result, meta RunMeta) error {
	rows := make([]SummaryRow, 0, len(results))
	for _, r := range results {
		row := SummaryRow{
			RunID:        meta.RunID,
			Name:         r.Name,
			Architecture: r.Architecture,
			Success:      r.Success,
			DurationMS:   r.Duration.Milliseconds(),
			Error:        r.Error,
		}
		if r.Execution != nil {
			row.RowCount = int64(r.Execution.RowCount)
		}
		rows = append(rows, row)
	}

	pw := parquet.NewGenericWriter[SummaryRow](w)
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
