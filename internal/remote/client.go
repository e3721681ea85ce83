package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"threadfu/internal/types"
)

// =============================================================================
// CLIENT
// =============================================================================

// Config holds the connection parameters for the agent service.
// Everything is passed explicitly at construction; the client performs
// no ambient lookups.
type Config struct {
	BaseURL    string        // e.g. https://agent.example.com
	AgentID    string        // assistant identifier runs are executed against
	AuthHeader string        // header name, e.g. "X-Api-Key" (empty = no auth)
	AuthToken  string        // opaque credential sent in AuthHeader
	Timeout    time.Duration // per-request timeout for non-blocking calls
}

// Client talks to the agent service's thread/run API.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// NewClient creates a service client. Blocking calls (wait, join) use
// the request context for their lifetime rather than the configured
// timeout, since run durations are unbounded.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// RunInput is the payload submitted when starting a run.
type RunInput struct {
	Messages       []types.Message
	RecursionLimit int
}

// MarshalJSON encodes the run request body as the service expects:
// {"input": {"messages": [...]}, "config": {"recursion_limit": N}}.
func (in RunInput) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"input": map[string]any{"messages": in.Messages},
	}
	if in.RecursionLimit > 0 {
		body["config"] = map[string]any{"recursion_limit": in.RecursionLimit}
	}
	return json.Marshal(body)
}

// RunInfo identifies a created run.
type RunInfo struct {
	RunID    string `json:"run_id"`
	ThreadID string `json:"thread_id"`
}

// ThreadRecord is one result of a thread search.
type ThreadRecord struct {
	ThreadID  string             `json:"thread_id"`
	Values    *types.ThreadState `json:"values,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// SearchOptions controls thread listing.
type SearchOptions struct {
	Limit     int    `json:"limit"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

// CreateRun starts a run against an existing thread. A missing thread
// id is refused client-side with ErrNoThread; the service's plain
// create call does not accept a null identifier.
func (c *Client) CreateRun(ctx context.Context, threadID string, input RunInput) (RunInfo, error) {
	if threadID == "" {
		return RunInfo{}, ErrNoThread
	}

	payload, err := runBody(c.cfg.AgentID, input)
	if err != nil {
		return RunInfo{}, &TransportError{Op: "create", Err: err}
	}

	var info RunInfo
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", payload, &info, "create"); err != nil {
		return RunInfo{}, err
	}
	if info.ThreadID == "" {
		info.ThreadID = threadID
	}
	return info, nil
}

// WaitRun creates a thread implicitly and blocks until the run
// completes, returning only the resulting state values. The new thread
// id is not echoed back; callers recover it by listing the most
// recently created thread.
func (c *Client) WaitRun(ctx context.Context, input RunInput) (types.ThreadState, error) {
	payload, err := runBody(c.cfg.AgentID, input)
	if err != nil {
		return types.ThreadState{}, &TransportError{Op: "wait", Err: err}
	}

	var state types.ThreadState
	if err := c.doBlocking(ctx, http.MethodPost, "/runs/wait", payload, &state, "wait"); err != nil {
		return types.ThreadState{}, err
	}
	return state, nil
}

// JoinRun blocks until a previously created run completes.
func (c *Client) JoinRun(ctx context.Context, threadID, runID string) error {
	path := "/threads/" + threadID + "/runs/" + runID + "/join"
	return c.doBlocking(ctx, http.MethodGet, path, nil, nil, "join")
}

// GetThreadState fetches the full authoritative state of a thread.
func (c *Client) GetThreadState(ctx context.Context, threadID string) (types.ThreadState, error) {
	var resp struct {
		Values types.ThreadState `json:"values"`
	}
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/state", nil, &resp, "state"); err != nil {
		return types.ThreadState{}, err
	}
	return resp.Values, nil
}

// SearchThreads lists threads ordered per the options.
func (c *Client) SearchThreads(ctx context.Context, opts SearchOptions) ([]ThreadRecord, error) {
	payload, err := json.Marshal(opts)
	if err != nil {
		return nil, &TransportError{Op: "search", Err: err}
	}

	var records []ThreadRecord
	if err := c.do(ctx, http.MethodPost, "/threads/search", payload, &records, "search"); err != nil {
		return nil, err
	}
	return records, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// runBody builds the run request payload, injecting the agent id.
func runBody(agentID string, input RunInput) ([]byte, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	body["assistant_id"] = agentID
	return json.Marshal(body)
}

// do issues a request with the client's configured timeout.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any, op string) error {
	return c.roundTrip(ctx, c.http, method, path, body, out, op)
}

// doBlocking issues a request whose duration is bounded only by ctx.
// Used for wait and join, where the server holds the response until the
// run finishes.
func (c *Client) doBlocking(ctx context.Context, method, path string, body []byte, out any, op string) error {
	blocking := &http.Client{Transport: c.http.Transport}
	return c.roundTrip(ctx, blocking, method, path, body, out, op)
}

func (c *Client) roundTrip(ctx context.Context, client *http.Client, method, path string, body []byte, out any, op string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.AuthHeader != "" && c.cfg.AuthToken != "" {
		req.Header.Set(c.cfg.AuthHeader, c.cfg.AuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &TransportError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(detail))),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
