package validate

import (
	"reflect"
	"testing"

	"github.com/querylab/dune-smoke/internal/dune"
)

func TestRunAll_DefaultBattery(t *testing.T) {
	result := successResult([]dune.Row{
		{"a": 1.0}, {"a": 2.0}, {"a": 3.0}, {"a": 4.0}, {"a": 5.0},
	})

	outcomes := RunAll(result, Options{})
	if len(outcomes) != 2 {
		t.Fatalf("default battery should run exactly 2 checks, got %d", len(outcomes))
	}
	if outcomes[0].CheckName != CheckExecutionSuccess || outcomes[1].CheckName != CheckMinRows {
		t.Errorf("unexpected check order: %s, %s", outcomes[0].CheckName, outcomes[1].CheckName)
	}
	for _, o := range outcomes {
		if !o.Passed {
			t.Errorf("check %s should pass on a 5-row success: %s", o.CheckName, o.Message)
		}
	}
}

func TestRunAll_FixedOrder(t *testing.T) {
	result := successResult([]dune.Row{{"a": 1.0, "b": 2.0}})

	outcomes := RunAll(result, Options{
		ExpectedColumns: []string{"a", "b"},
		MinRows:         1,
		ValueRanges: []RangeRule{
			{Column: "a", Min: floatPtr(0)},
			{Column: "b", Max: floatPtr(100)},
		},
		NonNullColumns: []string{"a"},
	})

	want := []string{
		CheckExecutionSuccess,
		CheckMinRows,
		CheckColumns,
		CheckValueRange,
		CheckValueRange,
		CheckNoNulls,
	}
	if len(outcomes) != len(want) {
		t.Fatalf("expected %d outcomes, got %d", len(want), len(outcomes))
	}
	for i, o := range outcomes {
		if o.CheckName != want[i] {
			t.Errorf("outcome %d: expected %s, got %s", i, want[i], o.CheckName)
		}
	}
}

func TestRunAll_NoShortCircuit(t *testing.T) {
	failed := dune.Failed(dune.StateFailed, "boom")

	outcomes := RunAll(failed, Options{
		ExpectedColumns: []string{"a"},
		NonNullColumns:  []string{"a"},
	})

	// Execution failed, but every configured check still reports.
	if len(outcomes) != 4 {
		t.Fatalf("expected all 4 configured checks to run, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Passed {
			t.Errorf("check %s should fail against a failed execution", o.CheckName)
		}
	}
}

func TestRunAll_Idempotent(t *testing.T) {
	result := successResult([]dune.Row{{"x": 5.0}, {"x": nil}})
	opts := Options{
		ExpectedColumns: []string{"x"},
		ValueRanges:     []RangeRule{{Column: "x", Min: floatPtr(0), Max: floatPtr(10)}},
		NonNullColumns:  []string{"x"},
	}

	first := RunAll(result, opts)
	second := RunAll(result, opts)
	if !reflect.DeepEqual(first, second) {
		t.Error("running the same battery twice must yield identical outcomes")
	}
}
