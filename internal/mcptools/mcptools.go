// Package mcptools binds tools exposed by external MCP servers into
// agent tool lists. Servers come from mcp_config.json: stdio servers
// are spawned as subprocesses, streamable-http servers are dialed over
// JSON-RPC. Bindings resolve once at swarm construction; Watch reports
// file changes so the operator knows a restart is needed to rebind.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redcellhq/redcell/internal/agent"
	"github.com/redcellhq/redcell/internal/config"
	"github.com/redcellhq/redcell/internal/observability"
)

// toolInfo describes one tool advertised by an MCP server.
type toolInfo struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// conn is one live MCP server connection. Implementations exist for
// stdio subprocesses and streamable-http endpoints.
type conn interface {
	listTools(ctx context.Context) ([]toolInfo, error)
	// callTool returns the joined text content and whether the server
	// flagged the result as an error.
	callTool(ctx context.Context, name string, args json.RawMessage) (string, bool, error)
	close() error
}

// Binder resolves MCP server bindings into agent tools. Connections
// are established on first use and shared across agents, so a server
// bound to every agent is spawned once.
type Binder struct {
	cfg    *config.MCPConfig
	logger *observability.Logger
	dial   func(ctx context.Context, srv config.NamedMCPServer) (conn, error)

	mu    sync.Mutex
	conns map[string]conn
}

// NewBinder creates a binder over a parsed MCP config. A nil config
// binds nothing.
func NewBinder(cfg *config.MCPConfig, logger *observability.Logger) *Binder {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Binder{
		cfg:    cfg,
		logger: logger,
		dial:   dialServer,
		conns:  make(map[string]conn),
	}
}

func dialServer(ctx context.Context, srv config.NamedMCPServer) (conn, error) {
	switch srv.Transport {
	case config.TransportStdio:
		return dialStdio(ctx, srv)
	case config.TransportStreamableHTTP:
		return dialHTTP(srv), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", srv.Transport)
	}
}

// ToolsFor connects to every server visible to the agent and returns
// one tool per remote tool, keeping server names in sorted order. A
// server that cannot be reached or listed is skipped with a warning so
// the swarm still starts with whatever bound. Tool names collide
// first-server-wins.
func (b *Binder) ToolsFor(ctx context.Context, agentName string) []agent.Tool {
	servers := b.cfg.ServersFor(agentName)
	if len(servers) == 0 {
		return nil
	}

	seen := make(map[string]string)
	var tools []agent.Tool
	for _, srv := range servers {
		c, err := b.connect(ctx, srv)
		if err != nil {
			b.logger.Warn(ctx, "mcp server unavailable, skipping",
				"server", srv.Name, "agent", agentName, "error", err)
			continue
		}

		infos, err := c.listTools(ctx)
		if err != nil {
			b.logger.Warn(ctx, "mcp tool listing failed, skipping server",
				"server", srv.Name, "agent", agentName, "error", err)
			continue
		}

		for _, info := range infos {
			if owner, dup := seen[info.Name]; dup {
				b.logger.Warn(ctx, "duplicate mcp tool name, keeping first",
					"tool", info.Name, "kept", owner, "dropped", srv.Name)
				continue
			}
			seen[info.Name] = srv.Name
			tools = append(tools, &remoteTool{server: srv.Name, info: info, conn: c})
		}

		b.logger.Info(ctx, "mcp server bound",
			"server", srv.Name, "agent", agentName, "tools", len(infos))
	}
	return tools
}

func (b *Binder) connect(ctx context.Context, srv config.NamedMCPServer) (conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.conns[srv.Name]; ok {
		return c, nil
	}
	c, err := b.dial(ctx, srv)
	if err != nil {
		return nil, err
	}
	b.conns[srv.Name] = c
	return c, nil
}

// Close shuts down every server connection. Stdio subprocesses are
// killed; HTTP connections are dropped.
func (b *Binder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for name, c := range b.conns {
		if err := c.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close mcp server %s: %w", name, err)
		}
		delete(b.conns, name)
	}
	return firstErr
}

var defaultSchema = json.RawMessage(`{"type": "object", "properties": {}}`)

// remoteTool adapts one MCP server tool to the agent tool contract.
// Failures surface as error results so the react loop recovers instead
// of aborting the turn.
type remoteTool struct {
	server string
	info   toolInfo
	conn   conn
}

func (t *remoteTool) Name() string        { return t.info.Name }
func (t *remoteTool) Description() string { return t.info.Description }

func (t *remoteTool) Schema() json.RawMessage {
	if len(t.info.Schema) == 0 {
		return defaultSchema
	}
	return t.info.Schema
}

func (t *remoteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	text, isErr, err := t.conn.callTool(ctx, t.info.Name, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &agent.ToolResult{
			Content: fmt.Sprintf("mcp tool %s failed: %v", t.info.Name, err),
			IsError: true,
		}, nil
	}
	return &agent.ToolResult{Content: text, IsError: isErr}, nil
}
