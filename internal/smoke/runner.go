// Package smoke orchestrates smoke-test runs: load a query's smoke-test SQL,
// resolve cross-query placeholders, execute remotely, validate the result.
//
// The orchestrator always returns a complete Result; nothing escapes it. A
// missing registry entry, a missing smoke-test file or a remote failure all
// land in the Result rather than aborting the caller, so a single bad entry
// never takes down a batch run.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/querylab/dune-smoke/internal/dune"
	"github.com/querylab/dune-smoke/internal/logging"
	"github.com/querylab/dune-smoke/internal/registry"
	"github.com/querylab/dune-smoke/internal/validate"
)

// Executor runs SQL remotely. Remote failures arrive as failed
// ExecutionResults, never as Go errors.
type Executor interface {
	ExecuteSQL(ctx context.Context, sql string, params map[string]string, timeout time.Duration) *dune.ExecutionResult
}

// SQLLoader loads smoke-test SQL by registry-relative path.
type SQLLoader interface {
	Load(path string) (string, error)
}

// FileLoader loads SQL files relative to a root directory.
type FileLoader struct {
	Root string
}

// Load reads the SQL file at the given path under the loader's root.
func (l FileLoader) Load(path string) (string, error) {
	full := filepath.Join(l.Root, path)
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("smoke test not found: %s", full)
		}
		return "", fmt.Errorf("read smoke test %s: %w", full, err)
	}
	return string(data), nil
}

// Result is the outcome of one orchestrated smoke test.
type Result struct {
	Name         string                `json:"name"`
	Architecture string                `json:"architecture,omitempty"`
	Success      bool                  `json:"success"`
	Execution    *dune.ExecutionResult `json:"execution_result,omitempty"`
	Validations  []validate.Result     `json:"validations"`
	Error        string                `json:"error,omitempty"`
	Duration     time.Duration         `json:"-"`
}

// Summary returns a one-line human summary of the result.
func (r *Result) Summary() string {
	if r.Error != "" {
		return "ERROR: " + r.Error
	}

	passed := 0
	for _, v := range r.Validations {
		if v.Passed {
			passed++
		}
	}
	total := len(r.Validations)

	if r.Success {
		return fmt.Sprintf("PASSED (%d/%d validations)", passed, total)
	}
	var failed []string
	for _, v := range r.Validations {
		if !v.Passed {
			failed = append(failed, v.CheckName)
		}
	}
	return fmt.Sprintf("FAILED (%d/%d validations, failed: %v)", passed, total, failed)
}

// TestInfo describes one available smoke test.
type TestInfo struct {
	Name         string
	SmokeTest    string
	Architecture string
	Type         string
}

// Runner orchestrates smoke tests against an immutable registry snapshot.
type Runner struct {
	reg    *registry.Registry
	exec   Executor
	loader SQLLoader
	log    *slog.Logger
}

// NewRunner creates a runner over the given registry snapshot and
// collaborators.
func NewRunner(reg *registry.Registry, exec Executor, loader SQLLoader) *Runner {
	return &Runner{
		reg:    reg,
		exec:   exec,
		loader: loader,
		log:    logging.Component("smoke"),
	}
}

// RunTest runs the smoke test for one named query. It always returns a
// Result: configuration problems, missing files, remote failures and even
// panics during orchestration are reported through the Result's fields.
func (r *Runner) RunTest(ctx context.Context, name string, timeout time.Duration) (out *Result) {
	out = &Result{
		Name:        name,
		Validations: []validate.Result{},
	}
	defer func() {
		if rec := recover(); rec != nil {
			out.Success = false
			out.Error = fmt.Sprintf("unexpected error: %v", rec)
		}
	}()

	entry := r.reg.Get(name)
	if entry == nil {
		out.Error = fmt.Sprintf("query '%s' not found in registry", name)
		return out
	}

	out.Architecture = entry.Architecture

	if entry.SmokeTest == "" {
		out.Error = fmt.Sprintf("no smoke test defined for query '%s'", name)
		return out
	}

	sql, err := r.loader.Load(entry.SmokeTest)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	sql = ResolveQueryIDs(sql, entry, r.reg)

	r.log.Info("executing smoke test", "query", name, "timeout", timeout)
	start := time.Now()
	result := r.exec.ExecuteSQL(ctx, sql, nil, timeout)
	out.Duration = time.Since(start)
	out.Execution = result

	out.Validations = []validate.Result{
		validate.ExecutionSuccess(result),
		validate.NonEmpty(result),
	}

	out.Success = true
	for _, v := range out.Validations {
		if !v.Passed {
			out.Success = false
		}
	}
	return out
}

// RunAll runs smoke tests for every registry entry that declares one, in
// registry order, optionally filtered by architecture. Entries run strictly
// one at a time; no dependency-aware scheduling takes place, since smoke
// tests validate already-assigned Dune IDs rather than trigger execution
// order.
func (r *Runner) RunAll(ctx context.Context, architecture string, timeout time.Duration) []*Result {
	var results []*Result
	for _, q := range r.reg.Queries {
		if architecture != "" && q.Architecture != architecture {
			continue
		}
		if q.SmokeTest == "" {
			continue
		}
		results = append(results, r.RunTest(ctx, q.Name, timeout))
	}
	return results
}

// ListAvailable returns every query that has a smoke test defined, in
// registry order.
func (r *Runner) ListAvailable() []TestInfo {
	var tests []TestInfo
	for _, q := range r.reg.Queries {
		if q.SmokeTest == "" {
			continue
		}
		tests = append(tests, TestInfo{
			Name:         q.Name,
			SmokeTest:    q.SmokeTest,
			Architecture: q.Architecture,
			Type:         q.Type,
		})
	}
	return tests
}
