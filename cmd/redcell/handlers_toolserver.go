package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redcellhq/redcell/internal/config"
	"github.com/redcellhq/redcell/internal/observability"
	"github.com/redcellhq/redcell/internal/terminal"
)

// =============================================================================
// Toolserver Command Handler
// =============================================================================

// runToolserver runs the terminal tool server standalone, backing the
// same tmux session pool the chat uses in local mode. Chat instances
// with terminal.mode=mcp connect to it over HTTP; --stdio serves a
// single MCP client over stdin/stdout instead.
func runToolserver(cmd *cobra.Command, configPath, addr string, stdio bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger.Slog())
	metrics := observability.NewMetrics()

	var (
		runner    terminal.Runner
		closeFunc func() error
	)
	if cfg.Terminal.Container != "" {
		docker, err := terminal.NewDockerRunner(cfg.Terminal.Container)
		if err != nil {
			return fmt.Errorf("failed to reach container %q: %w", cfg.Terminal.Container, err)
		}
		runner = docker
		closeFunc = docker.Close
	} else {
		runner = terminal.NewLocalRunner()
	}
	if closeFunc != nil {
		defer func() {
			if err := closeFunc(); err != nil {
				logger.Warn(cmd.Context(), "runner close failed", "error", err)
			}
		}()
	}

	pool := terminal.NewPool(runner, logger, metrics, cfg.Terminal.ExecTimeout)
	server := terminal.NewServer(pool, logger)

	if stdio {
		return server.ServeStdio()
	}

	if addr == "" {
		addr = cfg.Terminal.Addr
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return server.Serve(ctx, addr)
}
