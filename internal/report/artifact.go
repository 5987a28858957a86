package report

import (
	"bytes"
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // local driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver

	"github.com/querylab/dune-smoke/internal/dune"
	"github.com/querylab/dune-smoke/internal/logging"
	"github.com/querylab/dune-smoke/internal/smoke"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ArtifactStore publishes run artifacts to blob storage. The destination is
// a gocloud URL: file:///path, gs://bucket or s3://bucket.
type ArtifactStore struct {
	bucket *blob.Bucket
	url    string
}

// OpenArtifactStore opens the blob bucket behind the given URL.
func OpenArtifactStore(ctx context.Context, urlstr string) (*ArtifactStore, error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("open artifact bucket %s: %w", urlstr, err)
	}
	return &ArtifactStore{bucket: bucket, url: urlstr}, nil
}

// Publish writes one artifact under the given key.
func (s *ArtifactStore) Publish(ctx context.Context, key string, data []byte) error {
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// Close releases the bucket.
func (s *ArtifactStore) Close() error {
	return s.bucket.Close()
}

// EncodeRowsGzip encodes a result's raw rows as gzipped JSON for archival
// next to the reports.
func EncodeRowsGzip(res *dune.ExecutionResult) ([]byte, error) {
	payload, err := json.Marshal(res.Rows)
	if err != nil {
		return nil, fmt.Errorf("marshal rows: %w", err)
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return nil, fmt.Errorf("gzip rows: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// PublishRun writes the full artifact set for one batch run: Markdown and
// CSV reports, the parquet summary, and gzipped raw rows per executed test.
// Artifact keys are grouped under runs/<run-id>/.
func PublishRun(ctx context.Context, store *ArtifactStore, results []*smoke.Result, meta RunMeta) error {
	log := logging.Component("report").With("run_id", meta.RunID)
	prefix := "runs/" + meta.RunID + "/"

	var md bytes.Buffer
	if err := WriteMarkdown(&md, results, meta); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	if err := store.Publish(ctx, prefix+"report.md", md.Bytes()); err != nil {
		return err
	}

	var csvBuf bytes.Buffer
	if err := WriteCSV(&csvBuf, results); err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	if err := store.Publish(ctx, prefix+"report.csv", csvBuf.Bytes()); err != nil {
		return err
	}

	var pq bytes.Buffer
	if err := WriteParquetSummary(&pq, results, meta); err != nil {
		return fmt.Errorf("render parquet summary: %w", err)
	}
	if err := store.Publish(ctx, prefix+"summary.parquet", pq.Bytes()); err != nil {
		return err
	}

	for _, r := range results {
		if r.Execution == nil || r.Execution.RowCount == 0 {
			continue
		}
		data, err := EncodeRowsGzip(r.Execution)
		if err != nil {
			log.Warn("skipping rows artifact", "query", r.Name, "error", err)
			continue
		}
		key := prefix + "rows/" + r.Name + ".json.gz"
		if err := store.Publish(ctx, key, data); err != nil {
			return err
		}
	}

	log.Info("published run artifacts", "destination", store.url, "results", len(results))
	return nil
}
