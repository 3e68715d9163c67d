// Package main provides the CLI entry point for redcell, an interactive
// multi-agent assistant for authorized red-team engagements.
//
// A planner agent breaks an objective into phases and hands work to
// specialist agents (reconnaissance, initial access, summary). Agents run
// security tooling inside a tmux session pool, persist findings to
// long-term memory, and record every session as a replayable event log.
//
// # Basic Usage
//
// Start an interactive chat:
//
//	redcell chat
//
// Run the terminal tool server standalone:
//
//	redcell toolserver --addr :3000
//
// Inspect recorded sessions:
//
//	redcell sessions list --limit 10
//	redcell replay <session-id>
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key (default provider)
//   - OPENAI_API_KEY: OpenAI API key
//   - GOOGLE_API_KEY: Google AI API key
//   - DEBUG_MODE: force debug logging
//   - DOCKER_CONTAINER: container hosting the tmux pool
//   - CHAT_HEIGHT: viewport hint for chat rendering
//
// A .env file in the working directory is loaded before anything else.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Provider keys commonly live in a .env next to the engagement
	// workspace; load it before config resolution sees the environment.
	_ = godotenv.Load()

	// Bootstrap logger until a command installs the configured one.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "redcell",
		Short: "redcell - multi-agent assistant for authorized red-team engagements",
		Long: `redcell orchestrates a team of LLM agents for authorized security
engagements: a planner routes work to reconnaissance and initial-access
specialists that drive real tooling inside a tmux session pool, and a
summary agent consolidates the findings.

Every session is recorded as a replayable event log. Use it only against
systems you are authorized to test.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildChatCmd(),
		buildModelsCmd(),
		buildSessionsCmd(),
		buildReplayCmd(),
		buildToolserverCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}
