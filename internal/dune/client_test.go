package dune

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// handleMethod registers a method-restricted handler. It replicates the Go
// 1.22+ "METHOD /path" ServeMux patterns so the tests run on go1.21, where
// such patterns are treated as literal paths.
func handleMethod(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Error("a client without an API key must be rejected")
	}
}

func TestExecuteQuery_Success(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	handleMethod(mux, "POST", "/query/42/execute", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Dune-API-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"execution_id":"exec-1","state":"QUERY_STATE_PENDING"}`)
	})
	handleMethod(mux, "GET", "/execution/exec-1/status", func(w http.ResponseWriter, _ *http.Request) {
		// Stay pending for the first poll, then complete.
		if polls.Add(1) < 2 {
			fmt.Fprint(w, `{"state":"QUERY_STATE_EXECUTING"}`)
			return
		}
		fmt.Fprint(w, `{"state":"QUERY_STATE_COMPLETED"}`)
	})
	handleMethod(mux, "GET", "/execution/exec-1/results", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"execution_id": "exec-1",
			"state": "QUERY_STATE_COMPLETED",
			"execution_started_at": "2026-08-24T10:00:00Z",
			"execution_ended_at": "2026-08-24T10:00:02Z",
			"result": {
				"rows": [{"day": "2026-08-23", "tx_count": 421337}],
				"metadata": {"column_names": ["day", "tx_count"]}
			}
		}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := testClient(t, srv.URL).ExecuteQuery(context.Background(), 42, nil, time.Minute)

	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.ExecutionID != "exec-1" || res.State != StateCompleted {
		t.Errorf("unexpected execution metadata: %+v", res)
	}
	if res.RowCount != 1 || len(res.Rows) != 1 {
		t.Errorf("expected 1 row, got %d", res.RowCount)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "day" {
		t.Errorf("columns should come from result metadata, got: %v", res.Columns)
	}
	if res.ExecutionTimeMS != 2000 {
		t.Errorf("expected 2000ms execution time, got %d", res.ExecutionTimeMS)
	}
}

func TestExecuteQuery_FailedStateIsCapturedNotRaised(t *testing.T) {
	mux := http.NewServeMux()
	handleMethod(mux, "POST", "/query/42/execute", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"execution_id":"exec-2","state":"QUERY_STATE_PENDING"}`)
	})
	handleMethod(mux, "GET", "/execution/exec-2/status", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"state":"QUERY_STATE_FAILED"}`)
	})
	handleMethod(mux, "GET", "/execution/exec-2/results", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"execution_id": "exec-2",
			"state": "QUERY_STATE_FAILED",
			"error": {"message": "column \"dya\" does not exist"}
		}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := testClient(t, srv.URL).ExecuteQuery(context.Background(), 42, nil, time.Minute)

	if res.Success {
		t.Error("failed execution must not report success")
	}
	if res.State != StateFailed {
		t.Errorf("expected failed state, got: %s", res.State)
	}
	if !strings.Contains(res.Error, "does not exist") {
		t.Errorf("backend error message should be carried, got: %s", res.Error)
	}
	if res.RowCount != 0 {
		t.Errorf("failed result must carry no rows, got %d", res.RowCount)
	}
}

func TestExecuteSQL_CreatesEphemeralQuery(t *testing.T) {
	var sawSQL atomic.Bool

	mux := http.NewServeMux()
	handleMethod(mux, "POST", "/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			QuerySQL string `json:"query_sql"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && strings.Contains(body.QuerySQL, "SELECT 1") {
			sawSQL.Store(true)
		}
		fmt.Fprint(w, `{"query_id": 99}`)
	})
	handleMethod(mux, "POST", "/query/99/execute", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"execution_id":"exec-3","state":"QUERY_STATE_PENDING"}`)
	})
	handleMethod(mux, "GET", "/execution/exec-3/status", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"state":"QUERY_STATE_COMPLETED"}`)
	})
	handleMethod(mux, "GET", "/execution/exec-3/results", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"execution_id": "exec-3",
			"state": "QUERY_STATE_COMPLETED",
			"result": {"rows": [{"one": 1}], "metadata": {"column_names": ["one"]}}
		}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := testClient(t, srv.URL).ExecuteSQL(context.Background(), "SELECT 1", nil, time.Minute)

	if !res.Success {
		t.Fatalf("expected success, got: %s", res.Error)
	}
	if !sawSQL.Load() {
		t.Error("the SQL under test should be posted to the create-query endpoint")
	}
}

func TestExecuteQuery_HTTPErrorIsCaptured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := testClient(t, srv.URL).ExecuteQuery(context.Background(), 42, nil, time.Minute)

	if res.Success {
		t.Error("HTTP failure must not report success")
	}
	if !strings.Contains(res.Error, "http 500") {
		t.Errorf("expected the HTTP status in the error, got: %s", res.Error)
	}
}

func TestExecuteQuery_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	handleMethod(mux, "POST", "/query/42/execute", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"execution_id":"exec-4","state":"QUERY_STATE_PENDING"}`)
	})
	handleMethod(mux, "GET", "/execution/exec-4/status", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"state":"QUERY_STATE_EXECUTING"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := testClient(t, srv.URL).ExecuteQuery(context.Background(), 42, nil, 10*time.Millisecond)

	if res.Success {
		t.Error("a timed-out execution must not report success")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("expected a timeout error, got: %s", res.Error)
	}
}

func TestGetLatestResult(t *testing.T) {
	mux := http.NewServeMux()
	handleMethod(mux, "GET", "/query/42/results", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("max_age_hours") != "8" {
			t.Errorf("expected max_age_hours=8, got %s", r.URL.Query().Get("max_age_hours"))
		}
		fmt.Fprint(w, `{
			"execution_id": "exec-5",
			"state": "QUERY_STATE_COMPLETED",
			"result": {"rows": [{"a": 1}], "metadata": {"column_names": ["a"]}}
		}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := testClient(t, srv.URL).GetLatestResult(context.Background(), 42, 8*time.Hour)

	if !res.Success || res.RowCount != 1 {
		t.Errorf("expected a cached 1-row result, got: %+v", res)
	}
}

func TestColumnsFromRows(t *testing.T) {
	if cols := ColumnsFromRows(nil); len(cols) != 0 {
		t.Errorf("no rows means no columns, got: %v", cols)
	}

	rows := []Row{{"b": 1.0, "a": 2.0}}
	cols := ColumnsFromRows(rows)
	if len(cols) != 2 || cols[0] != "a" || cols[1] != "b" {
		t.Errorf("columns should be sorted for determinism, got: %v", cols)
	}
}
