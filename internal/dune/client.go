// Package dune provides a thin HTTP client for the Dune Analytics API.
//
// The client wraps the execute/status/results endpoints and collapses every
// remote failure into a failed ExecutionResult. Callers never see a Go error
// for an ordinary remote failure; that contract is what lets the smoke
// pipeline treat execution failures as data.
package dune

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/querylab/dune-smoke/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultBaseURL is the public Dune API endpoint.
const DefaultBaseURL = "https://api.dune.com/api/v1"

const (
	defaultPollInterval = 2 * time.Second
	defaultHTTPTimeout  = 30 * time.Second
)

// Config configures the API client.
type Config struct {
	APIKey       string
	BaseURL      string        // defaults to DefaultBaseURL
	PollInterval time.Duration // defaults to 2s
	HTTPClient   *http.Client  // defaults to a 30s-timeout client
}

// Client talks to the Dune API.
type Client struct {
	apiKey  string
	baseURL string
	poll    time.Duration
	http    *http.Client
	log     *slog.Logger
}

// New creates a Dune API client. The API key is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("dune: API key is not set (export DUNE_API_KEY)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		poll:    poll,
		http:    httpClient,
		log:     logging.Component("dune"),
	}, nil
}

// ExecuteSQL executes raw SQL by creating an ephemeral private query and
// running it. This is the primary path for smoke testing local query changes
// before they are saved on Dune.
func (c *Client) ExecuteSQL(ctx context.Context, sql string, params map[string]string, timeout time.Duration) *ExecutionResult {
	queryID, err := c.createQuery(ctx, sql)
	if err != nil {
		return Failed(StateFailed, fmt.Sprintf("create query: %v", err))
	}
	return c.run(ctx, queryID, params, timeout)
}

// ExecuteQuery executes a query already saved on Dune by its numeric ID.
func (c *Client) ExecuteQuery(ctx context.Context, queryID int64, params map[string]string, timeout time.Duration) *ExecutionResult {
	return c.run(ctx, queryID, params, timeout)
}

// GetLatestResult fetches the most recent cached result for a saved query,
// avoiding re-execution costs when a fresh enough result exists.
func (c *Client) GetLatestResult(ctx context.Context, queryID int64, maxAge time.Duration) *ExecutionResult {
	url := fmt.Sprintf("%s/query/%d/results?max_age_hours=%d", c.baseURL, queryID, int(maxAge.Hours()))
	var resp resultsResponse
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return Failed(StateFailed, err.Error())
	}
	return resp.toResult()
}

// run executes a saved query, polls until the execution reaches a terminal
// state or the timeout elapses, and fetches the results.
func (c *Client) run(ctx context.Context, queryID int64, params map[string]string, timeout time.Duration) *ExecutionResult {
	execID, err := c.execute(ctx, queryID, params)
	if err != nil {
		return Failed(StateFailed, fmt.Sprintf("execute query %d: %v", queryID, err))
	}

	log := c.log.With("query_id", queryID, "execution_id", execID)
	log.Debug("execution started")

	state, err := c.waitTerminal(ctx, execID, timeout)
	if err != nil {
		res := Failed(state, err.Error())
		res.ExecutionID = execID
		return res
	}

	var resp resultsResponse
	url := fmt.Sprintf("%s/execution/%s/results", c.baseURL, execID)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		res := Failed(state, fmt.Sprintf("fetch results: %v", err))
		res.ExecutionID = execID
		return res
	}

	result := resp.toResult()
	log.Debug("execution finished", "state", result.State, "rows", result.RowCount)
	return result
}

// createQuery creates an ephemeral private query holding the SQL under test.
func (c *Client) createQuery(ctx context.Context, sql string) (int64, error) {
	body := map[string]any{
		"name":       "dune-smoke ephemeral",
		"query_sql":  sql,
		"is_private": true,
	}
	var resp struct {
		QueryID int64 `json:"query_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/query", body, &resp); err != nil {
		return 0, err
	}
	if resp.QueryID == 0 {
		return 0, fmt.Errorf("API returned no query_id")
	}
	return resp.QueryID, nil
}

func (c *Client) execute(ctx context.Context, queryID int64, params map[string]string) (string, error) {
	body := map[string]any{}
	if len(params) > 0 {
		body["query_parameters"] = params
	}
	var resp struct {
		ExecutionID string `json:"execution_id"`
		State       string `json:"state"`
	}
	url := fmt.Sprintf("%s/query/%d/execute", c.baseURL, queryID)
	if err := c.doJSON(ctx, http.MethodPost, url, body, &resp); err != nil {
		return "", err
	}
	if resp.ExecutionID == "" {
		return "", fmt.Errorf("API returned no execution_id")
	}
	return resp.ExecutionID, nil
}

// waitTerminal polls the status endpoint until the execution reaches a
// terminal state. Returns the last observed state alongside any error so the
// caller can report it.
func (c *Client) waitTerminal(ctx context.Context, execID string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	state := StatePending

	for {
		var resp struct {
			State string `json:"state"`
		}
		url := fmt.Sprintf("%s/execution/%s/status", c.baseURL, execID)
		if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
			return state, fmt.Errorf("poll status: %w", err)
		}
		state = resp.State
		if isTerminal(state) {
			return state, nil
		}
		if time.Now().After(deadline) {
			return state, fmt.Errorf("execution %s timed out after %s", execID, timeout)
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-time.After(c.poll):
		}
	}
}

// doJSON performs one API request with the key header, decoding the JSON
// response into out. Non-2xx responses are returned as errors with the
// response body included.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Dune-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// resultsResponse is the wire shape of the results endpoint.
type resultsResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
	Error       struct {
		Message string `json:"message"`
	} `json:"error"`
	ExecutionStartedAt string `json:"execution_started_at"`
	ExecutionEndedAt   string `json:"execution_ended_at"`
	Result             struct {
		Rows     []Row `json:"rows"`
		Metadata struct {
			ColumnNames []string `json:"column_names"`
		} `json:"metadata"`
	} `json:"result"`
}

func (r *resultsResponse) toResult() *ExecutionResult {
	if r.State != StateCompleted {
		msg := r.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("execution finished in state %s", r.State)
		}
		res := Failed(r.State, msg)
		res.ExecutionID = r.ExecutionID
		return res
	}

	rows := r.Result.Rows
	if rows == nil {
		rows = []Row{}
	}
	columns := r.Result.Metadata.ColumnNames
	if len(columns) == 0 {
		columns = ColumnsFromRows(rows)
	}

	return &ExecutionResult{
		Success:         true,
		ExecutionID:     r.ExecutionID,
		State:           r.State,
		Rows:            rows,
		Columns:         columns,
		RowCount:        len(rows),
		ExecutionTimeMS: r.executionTimeMS(),
	}
}

func (r *resultsResponse) executionTimeMS() int64 {
	started, err := time.Parse(time.RFC3339, r.ExecutionStartedAt)
	if err != nil {
		return 0
	}
	ended, err := time.Parse(time.RFC3339, r.ExecutionEndedAt)
	if err != nil {
		return 0
	}
	return ended.Sub(started).Milliseconds()
}
