package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/redcellhq/redcell/internal/config"
)

const protocolVersion = "2024-11-05"

// stdioConn runs an MCP server as a subprocess and speaks the protocol
// over its stdin/stdout.
type stdioConn struct {
	client *client.Client
}

func dialStdio(ctx context.Context, srv config.NamedMCPServer) (conn, error) {
	env := make([]string, 0, len(srv.Env))
	for k, v := range srv.Env {
		env = append(env, k+"="+v)
	}

	c, err := client.NewStdioMCPClient(srv.Command, env, srv.Args...)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", srv.Command, err)
	}

	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("start %s: %w", srv.Command, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = protocolVersion
	initReq.Params.ClientInfo = mcp.Implementation{Name: "redcell", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize %s: %w", srv.Command, err)
	}

	return &stdioConn{client: c}, nil
}

func (s *stdioConn) listTools(ctx context.Context) ([]toolInfo, error) {
	resp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}

	infos := make([]toolInfo, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = nil
		}
		infos = append(infos, toolInfo{
			Name:        t.Name,
			Description: t.Description,
			Schema:      schema,
		})
	}
	return infos, nil
}

func (s *stdioConn) callTool(ctx context.Context, name string, args json.RawMessage) (string, bool, error) {
	var decoded map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return "", false, fmt.Errorf("decode arguments: %w", err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = decoded

	resp, err := s.client.CallTool(ctx, req)
	if err != nil {
		return "", false, err
	}

	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n"), resp.IsError, nil
}

func (s *stdioConn) close() error {
	return s.client.Close()
}
