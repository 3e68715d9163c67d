package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "redcell.yaml"

// buildChatCmd creates the "chat" command, the primary interactive mode.
func buildChatCmd() *cobra.Command {
	var (
		configPath    string
		model         string
		broadcastAddr string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive engagement session",
		Long: `Start an interactive chat with the agent team.

The planner receives your input first and either answers directly or
hands control to a specialist. Inside the session:

  /new     start a fresh conversation (new thread, clean history)
  /agents  show the agent team
  /help    show commands
  /exit    leave the session

When stdin is not a terminal the input is read once and executed as a
single turn, so the command composes with pipes.`,
		Example: `  # Interactive session with the configured default model
  redcell chat

  # Pick a model for this session
  redcell chat --model anthropic:claude-opus-4-1

  # Mirror live events to a websocket for an external UI
  redcell chat --broadcast :8088

  # One-shot piped turn
  echo "scan 10.0.0.5 for exposed services" | redcell chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, configPath, model, broadcastAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().StringVarP(&model, "model", "m", "", `Model selection, e.g. "anthropic:claude-sonnet-4-5" or a bare model id`)
	cmd.Flags().StringVar(&broadcastAddr, "broadcast", "", "Serve live session events over websocket on this address")

	return cmd
}

// buildModelsCmd creates the "models" command listing the catalogue.
func buildModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models and their availability",
		Long: `List the built-in model catalogue.

A model is available when its provider's API key is present in the
environment (or a .env file). Local ollama models need no key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd)
		},
	}
}

// buildSessionsCmd creates the "sessions" command group.
func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
	}
	cmd.AddCommand(buildSessionsListCmd())
	return cmd
}

func buildSessionsListCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd, configPath, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max number of sessions to list")

	return cmd
}

// buildReplayCmd creates the "replay" command that re-renders a recorded
// session through the same event pipeline live chat uses.
func buildReplayCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "replay <session-id>",
		Short: "Replay a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")

	return cmd
}

// buildToolserverCmd creates the "toolserver" command that runs the
// terminal MCP server standalone, so agents on other hosts can share one
// session pool.
func buildToolserverCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		stdio      bool
	)

	cmd := &cobra.Command{
		Use:   "toolserver",
		Short: "Run the terminal tool server",
		Long: `Run the tmux session pool as an MCP tool server.

By default the server speaks streamable HTTP on the configured address
(/mcp, with /healthz and /metrics alongside). With --stdio it serves a
single MCP client over stdin/stdout instead, which is how MCP hosts
spawn local tool servers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolserver(cmd, configPath, addr, stdio)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().StringVar(&addr, "addr", "", `Listen address (defaults to terminal.addr, ":3000")`)
	cmd.Flags().BoolVar(&stdio, "stdio", false, "Serve one MCP client over stdin/stdout")

	return cmd
}

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema for the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema(cmd)
		},
	})
	return cmd
}
