package mcptools

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

	"github.com/redcellhq/redcell/internal/config"
)

const httpDialTimeout = 30 * time.Second

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

// httpConn speaks MCP streamable HTTP against a remote server. The
// handshake runs lazily on first use; the Mcp-Session-Id header issued
// by the server is echoed on every following request.
type httpConn struct {
	name       string
	url        string
	httpClient *http.Client

	nextID atomic.Int64

	mu          sync.Mutex
	initialized bool
	sessionID   string
}

func dialHTTP(srv config.NamedMCPServer) *httpConn {
	return &httpConn{
		name:       srv.Name,
		url:        srv.URL,
		httpClient: &http.Client{Timeout: httpDialTimeout},
	}
}

func (h *httpConn) listTools(ctx context.Context) ([]toolInfo, error) {
	raw, err := h.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse tools/list result: %w", err)
	}

	infos := make([]toolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		infos = append(infos, toolInfo{
			Name:        t.Name,
			Description: t.Description,
			Schema:      t.InputSchema,
		})
	}
	return infos, nil
}

func (h *httpConn) callTool(ctx context.Context, name string, args json.RawMessage) (string, bool, error) {
	var decoded map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return "", false, fmt.Errorf("decode arguments: %w", err)
		}
	}
	if decoded == nil {
		decoded = map[string]any{}
	}

	raw, err := h.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": decoded,
	})
	if err != nil {
		return "", false, err
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", false, fmt.Errorf("parse %s result: %w", name, err)
	}

	var texts []string
	for _, item := range result.Content {
		if item.Type == "text" {
			texts = append(texts, item.Text)
		}
	}
	return strings.Join(texts, "\n"), result.IsError, nil
}

func (h *httpConn) close() error {
	h.mu.Lock()
	h.initialized = false
	h.sessionID = ""
	h.mu.Unlock()
	return nil
}

func (h *httpConn) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := h.initialize(ctx); err != nil {
		return nil, err
	}

	h.mu.Lock()
	sid := h.sessionID
	h.mu.Unlock()

	_, resp, err := h.roundTrip(ctx, rpcRequest{
		JSONRPC: "2.0",
		ID:      h.nextID.Add(1),
		Method:  method,
		Params:  params,
	}, sid)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s: %s", method, resp.Error.Message)
	}
	return resp.Result, nil
}

func (h *httpConn) initialize(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return nil
	}

	hdr, resp, err := h.roundTrip(ctx, rpcRequest{
		JSONRPC: "2.0",
		ID:      h.nextID.Add(1),
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{},
			"clientInfo": map[string]any{
				"name":    "redcell",
				"version": "1.0.0",
			},
		},
	}, "")
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize %s: %s", h.name, resp.Error.Message)
	}
	if sid := hdr.Get("Mcp-Session-Id"); sid != "" {
		h.sessionID = sid
	}

	// Best effort; servers that track lifecycle expect the notification,
	// the rest ignore it.
	_, _, _ = h.roundTrip(ctx, rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"}, h.sessionID)

	h.initialized = true
	return nil
}

// roundTrip performs one HTTP exchange and decodes the body, which may
// arrive as plain JSON or SSE `data:` framing. It touches no conn
// state; callers own the session id.
func (h *httpConn) roundTrip(ctx context.Context, rpc rpcRequest, sid string) (http.Header, *rpcResponse, error) {
	body, err := json.Marshal(rpc)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s request: %w", rpc.Method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sid != "" {
		req.Header.Set("Mcp-Session-Id", sid)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("mcp server %s unreachable: %w", h.name, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response from %s: %w", h.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("mcp server %s: HTTP %d", h.name, resp.StatusCode)
	}

	decoded, err := decodeRPCBody(payload)
	if err != nil {
		return nil, nil, err
	}
	return resp.Header, decoded, nil
}

// decodeRPCBody handles both plain JSON bodies and SSE framing, where
// the response arrives as `data:` lines terminated by a blank line.
func decodeRPCBody(payload []byte) (*rpcResponse, error) {
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
