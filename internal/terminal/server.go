package terminal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redcellhq/redcell/internal/observability"
)

// Server exposes a Pool's session operations as MCP tools over
// streamable HTTP. Agents in mcp mode connect to it with Client; any
// other MCP-speaking consumer can use it directly.
type Server struct {
	pool   *Pool
	logger *observability.Logger
	mcp    *server.MCPServer

	httpServer *http.Server
}

// NewServer builds the MCP tool server around a pool.
func NewServer(pool *Pool, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	s := &Server{
		pool:   pool,
		logger: logger,
	}

	m := server.NewMCPServer("redcell-terminal", "1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	m.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Start a new persistent terminal session and return its session ID."),
	), s.handleCreateSession)

	m.AddTool(mcp.NewTool("command_exec",
		mcp.WithDescription("Execute a shell command inside an existing terminal session and return the captured output."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the target session")),
		mcp.WithString("command", mcp.Required(), mcp.Description("Shell command to execute")),
	), s.handleCommandExec)

	m.AddTool(mcp.NewTool("session_list",
		mcp.WithDescription("List the active terminal sessions."),
	), s.handleSessionList)

	m.AddTool(mcp.NewTool("kill_session",
		mcp.WithDescription("Terminate a terminal session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session to terminate")),
	), s.handleKillSession)

	m.AddTool(mcp.NewTool("kill_server",
		mcp.WithDescription("Terminate the terminal server and every session in it."),
	), s.handleKillServer)

	s.mcp = m
	return s
}

// Handler returns the HTTP handler: the MCP endpoint on /mcp, a health
// probe on /healthz and Prometheus metrics on /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/mcp", server.NewStreamableHTTPServer(s.mcp))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "terminal tool server listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "tool server shutdown error", "error", err)
	}
	return <-errCh
}

// ServeStdio runs the MCP server over stdin/stdout, for use from MCP
// client configs that spawn their servers as subprocesses.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleCreateSession(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.pool.CreateSession(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) handleCommandExec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.pool.Exec(ctx, sessionID, command)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleSessionList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := s.pool.Sessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(infos) == 0 {
		return mcp.NewToolResultText("no active sessions"), nil
	}
	text := ""
	for _, info := range infos {
		if text != "" {
			text += "\n"
		}
		if info.Detail != "" {
			text += fmt.Sprintf("%s: %s", info.ID, info.Detail)
		} else {
			text += info.ID
		}
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleKillSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.pool.KillSession(ctx, sessionID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("killed session %s", sessionID)), nil
}

func (s *Server) handleKillServer(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.pool.KillServer(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("terminal server killed"), nil
}
