package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/redcellhq/redcell/internal/config"
	"github.com/redcellhq/redcell/internal/message"
	"github.com/redcellhq/redcell/internal/sessionlog"
	"github.com/redcellhq/redcell/pkg/models"
)

// =============================================================================
// Sessions Command Handlers
// =============================================================================

func runSessionsList(cmd *cobra.Command, configPath string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	summaries, err := sessionlog.List(cfg.Sessions.LogDir, limit)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tEVENTS\tMODEL\tPREVIEW")
	for _, s := range summaries {
		model := s.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.SessionID, s.StartTime.Local().Format(time.RFC3339), s.EventCount, model, s.Preview)
	}
	return w.Flush()
}

func runReplay(cmd *cobra.Command, configPath, sessionID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := sessionlog.Load(cfg.Sessions.LogDir, sessionID)
	if err != nil {
		if errors.Is(err, sessionlog.ErrSessionNotFound) {
			return fmt.Errorf("session %s not found under %s (see `redcell sessions list`)", sessionID, cfg.Sessions.LogDir)
		}
		return fmt.Errorf("load session: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session: %s\n", log.SessionID)
	if log.Model != "" {
		fmt.Fprintf(out, "model:   %s\n", log.Model)
	}
	fmt.Fprintf(out, "started: %s\n", log.StartTime.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "events:  %d\n", len(log.Events))

	render := newRenderer(out, true, 0)
	for _, ev := range sessionlog.Replay(log) {
		render.event(ev)
	}
	fmt.Fprintln(out)
	return nil
}

// =============================================================================
// Event Rendering
// =============================================================================

// renderer prints executor events as plain terminal text. Chat and
// replay share it; replay turns on user lines and unlimited tool
// output, the live chat caps tool output at the configured height.
type renderer struct {
	out      io.Writer
	showUser bool
	maxLines int
}

func newRenderer(out io.Writer, showUser bool, maxLines int) *renderer {
	return &renderer{out: out, showUser: showUser, maxLines: maxLines}
}

func (r *renderer) event(ev models.Event) {
	switch ev.Kind {
	case models.EventMessage:
		r.message(ev.Message)
	case models.EventWorkflowComplete:
		fmt.Fprintf(r.out, "\ncompleted in %d steps\n", ev.StepCount)
	case models.EventError:
		fmt.Fprintf(r.out, "\nerror: %s\n", ev.Error)
	}
}

func (r *renderer) message(m *models.ChatMessage) {
	if m == nil {
		return
	}
	switch m.Kind {
	case models.MessageKindUser:
		if r.showUser {
			fmt.Fprintf(r.out, "\n> %s\n", strings.TrimSpace(m.Content))
		}
	case models.MessageKindAI:
		fmt.Fprintf(r.out, "\n[%s]\n", m.AgentName)
		if content := strings.TrimSpace(m.Content); content != "" {
			fmt.Fprintln(r.out, content)
		}
		if m.Raw != nil {
			for _, tc := range m.Raw.ToolCalls {
				fmt.Fprintf(r.out, "  -> %s%s\n", message.ToolLabel(tc.Name), compactArgs(tc.Input))
			}
		}
	case models.MessageKindTool:
		fmt.Fprintf(r.out, "\n[%s]\n", m.ToolName)
		if m.Raw != nil && m.Raw.Command != "" {
			fmt.Fprintf(r.out, "  $ %s\n", m.Raw.Command)
			// Replayed tool_command records carry the command as their
			// content; printing it again as output would double it up.
			if m.Raw.Command == m.Content {
				return
			}
		}
		r.block(m.Content)
	}
}

// block prints tool output indented two spaces, truncated to maxLines
// when a cap is set.
func (r *renderer) block(content string) {
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return
	}
	lines := strings.Split(content, "\n")
	hidden := 0
	if r.maxLines > 0 && len(lines) > r.maxLines {
		hidden = len(lines) - r.maxLines
		lines = lines[:r.maxLines]
	}
	for _, line := range lines {
		fmt.Fprintf(r.out, "  %s\n", line)
	}
	if hidden > 0 {
		fmt.Fprintf(r.out, "  ... (%d more lines)\n", hidden)
	}
}

// compactArgsLen bounds the inline tool argument preview.
const compactArgsLen = 100

// compactArgs renders tool call arguments as a short "(k=v, k=v)"
// suffix. Unparseable or empty arguments render as nothing.
func compactArgs(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil || len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	s := strings.Join(parts, ", ")
	if len(s) > compactArgsLen {
		s = s[:compactArgsLen] + "..."
	}
	return " (" + s + ")"
}
