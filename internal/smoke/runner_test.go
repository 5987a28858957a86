package smoke

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/querylab/dune-smoke/internal/dune"
	"github.com/querylab/dune-smoke/internal/registry"
)

// fakeExecutor returns a canned result and counts invocations.
type fakeExecutor struct {
	result *dune.ExecutionResult
	calls  int
}

func (f *fakeExecutor) ExecuteSQL(_ context.Context, _ string, _ map[string]string, _ time.Duration) *dune.ExecutionResult {
	f.calls++
	return f.result
}

// panicExecutor simulates an unexpected failure inside orchestration.
type panicExecutor struct{}

func (panicExecutor) ExecuteSQL(_ context.Context, _ string, _ map[string]string, _ time.Duration) *dune.ExecutionResult {
	panic("collaborator blew up")
}

// mapLoader serves SQL from memory.
type mapLoader map[string]string

func (m mapLoader) Load(path string) (string, error) {
	sql, ok := m[path]
	if !ok {
		return "", fmt.Errorf("smoke test not found: %s", path)
	}
	return sql, nil
}

func successExecution(rows int) *dune.ExecutionResult {
	r := make([]dune.Row, rows)
	for i := range r {
		r[i] = dune.Row{"day": float64(i)}
	}
	return &dune.ExecutionResult{
		Success:     true,
		ExecutionID: "exec-1",
		State:       dune.StateCompleted,
		Rows:        r,
		Columns:     dune.ColumnsFromRows(r),
		RowCount:    rows,
	}
}

func testRegistry() *registry.Registry {
	return &registry.Registry{
		Queries: []registry.Entry{
			{
				Name:         "tx_features_daily",
				Type:         registry.TypeBase,
				Architecture: registry.ArchV2,
				SmokeTest:    "tests/tx_features_daily.sql",
				DuneQueryID:  12345,
			},
			{
				Name:         "wallet_balances",
				Type:         registry.TypeStandalone,
				Architecture: registry.ArchLegacy,
			},
			{
				Name:         "tx_anomaly_scores",
				Type:         registry.TypeNested,
				Architecture: registry.ArchV2,
				Dependencies: []string{"tx_features_daily"},
				SmokeTest:    "tests/tx_anomaly_scores.sql",
			},
		},
	}
}

func testLoader() mapLoader {
	return mapLoader{
		"tests/tx_features_daily.sql": "SELECT * FROM bitcoin.transactions LIMIT 10",
		"tests/tx_anomaly_scores.sql": "SELECT * FROM query_<BASE_QUERY_ID> LIMIT 10",
	}
}

func TestRunTest_Pass(t *testing.T) {
	exec := &fakeExecutor{result: successExecution(5)}
	runner := NewRunner(testRegistry(), exec, testLoader())

	res := runner.RunTest(context.Background(), "tx_features_daily", time.Minute)

	if !res.Success {
		t.Fatalf("expected success, got: %s", res.Summary())
	}
	if len(res.Validations) != 2 {
		t.Errorf("default battery is execution_success + non_empty, got %d outcomes", len(res.Validations))
	}
	if res.Execution == nil || res.Execution.RowCount != 5 {
		t.Error("execution result should be attached")
	}
	if exec.calls != 1 {
		t.Errorf("expected exactly 1 execution, got %d", exec.calls)
	}
}

func TestRunTest_NotFound(t *testing.T) {
	exec := &fakeExecutor{result: successExecution(1)}
	runner := NewRunner(testRegistry(), exec, testLoader())

	res := runner.RunTest(context.Background(), "nonexistent", time.Minute)

	if res.Success {
		t.Error("missing entry must not succeed")
	}
	if !strings.Contains(res.Error, "not found") {
		t.Errorf("expected a not-found error, got: %s", res.Error)
	}
	if len(res.Validations) != 0 || res.Execution != nil {
		t.Error("no execution or validations should be attempted")
	}
	if exec.calls != 0 {
		t.Errorf("remote execution must not be attempted, got %d calls", exec.calls)
	}
}

func TestRunTest_NoSmokeTestDefined(t *testing.T) {
	exec := &fakeExecutor{result: successExecution(1)}
	runner := NewRunner(testRegistry(), exec, testLoader())

	res := runner.RunTest(context.Background(), "wallet_balances", time.Minute)

	if res.Success {
		t.Error("entry without smoke test must not succeed")
	}
	if !strings.Contains(res.Error, "no smoke test defined") {
		t.Errorf("expected a no-smoke-test error, got: %s", res.Error)
	}
	if len(res.Validations) != 0 {
		t.Errorf("validations must be empty, got %d", len(res.Validations))
	}
	if exec.calls != 0 {
		t.Errorf("remote execution must not be attempted, got %d calls", exec.calls)
	}
}

func TestRunTest_MissingFile(t *testing.T) {
	exec := &fakeExecutor{result: successExecution(1)}
	runner := NewRunner(testRegistry(), exec, mapLoader{})

	res := runner.RunTest(context.Background(), "tx_features_daily", time.Minute)

	if res.Success {
		t.Error("missing SQL file must not succeed")
	}
	if !strings.Contains(res.Error, "not found") {
		t.Errorf("expected a file-not-found error, got: %s", res.Error)
	}
	if exec.calls != 0 {
		t.Errorf("remote execution must not be attempted, got %d calls", exec.calls)
	}
}

func TestRunTest_ExecutionFailureStillValidated(t *testing.T) {
	exec := &fakeExecutor{result: dune.Failed(dune.StateFailed, "remote exploded")}
	runner := NewRunner(testRegistry(), exec, testLoader())

	res := runner.RunTest(context.Background(), "tx_features_daily", time.Minute)

	if res.Success {
		t.Error("failed execution must not succeed")
	}
	if res.Error != "" {
		t.Errorf("a captured remote failure is not a pipeline error, got: %s", res.Error)
	}
	if len(res.Validations) != 2 {
		t.Fatalf("validations still run against the failed result, got %d", len(res.Validations))
	}
	if res.Validations[0].Passed {
		t.Error("execution_success must fail")
	}
}

func TestRunTest_RecoversUnexpectedFailure(t *testing.T) {
	runner := NewRunner(testRegistry(), panicExecutor{}, testLoader())

	res := runner.RunTest(context.Background(), "tx_features_daily", time.Minute)

	if res.Success {
		t.Error("panicking collaborator must not succeed")
	}
	if !strings.Contains(res.Error, "unexpected error") {
		t.Errorf("panic should surface as a generic unexpected error, got: %s", res.Error)
	}
}

func TestRunAll_SkipsEntriesWithoutSmokeTests(t *testing.T) {
	exec := &fakeExecutor{result: successExecution(3)}
	runner := NewRunner(testRegistry(), exec, testLoader())

	results := runner.RunAll(context.Background(), "", time.Minute)

	if len(results) != 2 {
		t.Fatalf("3 entries but only 2 declare smoke tests, got %d results", len(results))
	}
	// Registry declaration order is preserved.
	if results[0].Name != "tx_features_daily" || results[1].Name != "tx_anomaly_scores" {
		t.Errorf("results out of registry order: %s, %s", results[0].Name, results[1].Name)
	}
}

func TestRunAll_ArchitectureFilter(t *testing.T) {
	exec := &fakeExecutor{result: successExecution(3)}
	runner := NewRunner(testRegistry(), exec, testLoader())

	results := runner.RunAll(context.Background(), registry.ArchLegacy, time.Minute)
	if len(results) != 0 {
		t.Errorf("no legacy entry has a smoke test, got %d results", len(results))
	}

	results = runner.RunAll(context.Background(), registry.ArchV2, time.Minute)
	if len(results) != 2 {
		t.Errorf("expected 2 v2 results, got %d", len(results))
	}
}

func TestListAvailable(t *testing.T) {
	runner := NewRunner(testRegistry(), nil, testLoader())

	tests := runner.ListAvailable()
	if len(tests) != 2 {
		t.Fatalf("expected 2 available tests, got %d", len(tests))
	}
	if tests[0].Name != "tx_features_daily" || tests[0].Architecture != registry.ArchV2 {
		t.Errorf("unexpected first test: %+v", tests[0])
	}
}

func TestFileLoader(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "tests")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "q.sql"), []byte("SELECT 1"), 0644); err != nil {
		t.Fatal(err)
	}

	loader := FileLoader{Root: root}

	sql, err := loader.Load("tests/q.sql")
	if err != nil {
		t.Fatalf("load existing file: %v", err)
	}
	if sql != "SELECT 1" {
		t.Errorf("unexpected SQL: %s", sql)
	}

	_, err = loader.Load("tests/missing.sql")
	if err == nil || !strings.Contains(err.Error(), "smoke test not found") {
		t.Errorf("expected a not-found error, got: %v", err)
	}
}
