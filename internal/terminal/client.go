package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redcellhq/redcell/internal/observability"
)

const protocolVersion = "2024-11-05"

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client talks to a remote terminal tool server over MCP streamable
// HTTP. It implements SessionAPI, so agents bind the same session tools
// whether the pool is in-process or remote, and it satisfies the shell
// executor contract through RunCommand.
//
// Transport failures are wrapped in ErrServerUnreachable so callers can
// distinguish "server down" from tool-level errors. Calls do not
// serialize against each other; only the handshake state is guarded.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *observability.Logger

	nextID atomic.Int64

	mu          sync.Mutex
	initialized bool
	sessionID   string // Mcp-Session-Id issued by the server
	execSession string // lazily created session backing RunCommand
}

// NewClient creates a client for the tool server at url (the full MCP
// endpoint, e.g. "http://localhost:3000/mcp"). timeout bounds a single
// round trip; zero means the caller's context is the only bound.
func NewClient(url string, timeout time.Duration, logger *observability.Logger) *Client {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Initialize performs the MCP handshake. Calling it is optional; every
// operation handshakes lazily on first use.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeLocked(ctx)
}

func (c *Client) initializeLocked(ctx context.Context) error {
	if c.initialized {
		return nil
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{},
			"clientInfo": map[string]any{
				"name":    "redcell",
				"version": "1.0.0",
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal initialize request: %w", err)
	}

	hdr, payload, _, err := c.roundTrip(ctx, body, "")
	if err != nil {
		return err
	}
	resp, err := decodeRPCResponse(payload)
	if err != nil {
		return fmt.Errorf("parse initialize response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize: %s", resp.Error.Message)
	}
	if sid := hdr.Get("Mcp-Session-Id"); sid != "" {
		c.sessionID = sid
	}

	// Notification; servers that track lifecycle expect it, the rest
	// ignore it.
	note, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
	if err == nil {
		if _, _, _, nerr := c.roundTrip(ctx, note, c.sessionID); nerr != nil {
			c.logger.Debug(ctx, "initialized notification rejected", "error", nerr)
		}
	}

	c.initialized = true
	c.logger.Debug(ctx, "connected to terminal tool server", "url", c.url)
	return nil
}

// callTool invokes one MCP tool and returns the joined text content.
// Tool results flagged isError come back as Go errors carrying the
// server's message.
func (c *Client) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if err := c.Initialize(ctx); err != nil {
		return "", err
	}

	if args == nil {
		args = map[string]any{}
	}
	raw, err := c.post(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("parse %s result: %w", name, err)
	}

	var b strings.Builder
	for _, item := range result.Content {
		if item.Type != "text" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(item.Text)
	}
	text := strings.TrimSpace(b.String())

	if result.IsError {
		if text == "" {
			text = "tool execution failed"
		}
		return "", fmt.Errorf("%s: %s", name, text)
	}
	return text, nil
}

// post sends one JSON-RPC request and returns the raw result.
func (c *Client) post(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()

	_, payload, lostSession, err := c.roundTrip(ctx, body, sid)
	if lostSession {
		// Server restarted and dropped our MCP session; the next call
		// re-handshakes.
		c.mu.Lock()
		c.initialized = false
		c.sessionID = ""
		c.mu.Unlock()
	}
	if err != nil {
		return nil, err
	}

	resp, err := decodeRPCResponse(payload)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", method, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s: %s", method, resp.Error.Message)
	}
	return resp.Result, nil
}

// roundTrip performs one HTTP exchange. It touches no client state;
// lostSession reports a 404, meaning the server no longer knows our MCP
// session.
func (c *Client) roundTrip(ctx context.Context, body []byte, mcpSession string) (hdr http.Header, payload []byte, lostSession bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if mcpSession != "" {
		req.Header.Set("Mcp-Session-Id", mcpSession)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	defer resp.Body.Close()

	payload, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: read response: %v", ErrServerUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		lost := resp.StatusCode == http.StatusNotFound
		return nil, nil, lost, fmt.Errorf("%w: HTTP %d", ErrServerUnreachable, resp.StatusCode)
	}
	return resp.Header, payload, false, nil
}

// decodeRPCResponse handles both plain JSON bodies and SSE framing,
// where the response arrives as `data:` lines terminated by a blank
// line.
func decodeRPCResponse(payload []byte) (*rpcResponse, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		// Notifications get 202 Accepted with an empty body.
		return &rpcResponse{}, nil
	}

	var direct rpcResponse
	if err := json.Unmarshal(trimmed, &direct); err == nil {
		return &direct, nil
	}

	var data strings.Builder
	flush := func() (*rpcResponse, bool) {
		if data.Len() == 0 {
			return nil, false
		}
		var resp rpcResponse
		if err := json.Unmarshal([]byte(data.String()), &resp); err == nil && (resp.Result != nil || resp.Error != nil) {
			return &resp, true
		}
		data.Reset()
		return nil, false
	}

	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimRight(line, "\r")
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			data.WriteString(strings.TrimPrefix(after, " "))
			continue
		}
		if line == "" {
			if resp, ok := flush(); ok {
				return resp, nil
			}
		}
	}
	if resp, ok := flush(); ok {
		return resp, nil
	}
	return nil, fmt.Errorf("response is neither JSON nor SSE")
}

// CreateSession starts a session on the remote pool.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	return c.callTool(ctx, "create_session", nil)
}

// Exec runs a command in a remote session.
func (c *Client) Exec(ctx context.Context, sessionID, command string) (string, error) {
	return c.callTool(ctx, "command_exec", map[string]any{
		"session_id": sessionID,
		"command":    command,
	})
}

// Sessions lists the remote pool's sessions.
func (c *Client) Sessions(ctx context.Context) ([]SessionInfo, error) {
	text, err := c.callTool(ctx, "session_list", nil)
	if err != nil {
		return nil, err
	}
	if text == "" || text == "no active sessions" {
		return nil, nil
	}

	var infos []SessionInfo
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, detail, _ := strings.Cut(line, ":")
		infos = append(infos, SessionInfo{
			ID:     strings.TrimSpace(id),
			Detail: strings.TrimSpace(detail),
		})
	}
	return infos, nil
}

// KillSession terminates a remote session.
func (c *Client) KillSession(ctx context.Context, sessionID string) error {
	_, err := c.callTool(ctx, "kill_session", map[string]any{"session_id": sessionID})
	return err
}

// KillServer tears down the remote tmux server.
func (c *Client) KillServer(ctx context.Context) error {
	_, err := c.callTool(ctx, "kill_server", nil)
	return err
}

// RunCommand executes a command in a session this client creates on
// first use and reuses afterwards. If the server lost that session, it
// is recreated once.
func (c *Client) RunCommand(ctx context.Context, command string) (string, error) {
	sid, err := c.ensureExecSession(ctx)
	if err != nil {
		return "", err
	}

	out, err := c.Exec(ctx, sid, command)
	if err != nil && strings.Contains(err.Error(), ErrUnknownSession.Error()) {
		c.mu.Lock()
		c.execSession = ""
		c.mu.Unlock()

		if sid, err = c.ensureExecSession(ctx); err != nil {
			return "", err
		}
		return c.Exec(ctx, sid, command)
	}
	return out, err
}

func (c *Client) ensureExecSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	sid := c.execSession
	c.mu.Unlock()
	if sid != "" {
		return sid, nil
	}

	sid, err := c.CreateSession(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.execSession = sid
	c.mu.Unlock()
	return sid, nil
}
