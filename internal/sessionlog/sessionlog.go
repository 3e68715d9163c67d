// Package sessionlog records chat sessions as JSON files under a
// date-split directory tree (logs/2026/03/10/session_<id>.json) and
// replays them through the same event shape the live workflow emits.
package sessionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redcellhq/redcell/internal/observability"
	"github.com/redcellhq/redcell/pkg/models"
)

// Writer buffers one session's events in memory and rewrites the whole
// log file on Flush. Safe for concurrent use.
type Writer struct {
	dir     string
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu  sync.Mutex
	log models.SessionLog
}

// NewWriter starts a new session log. Nothing touches disk until the
// first Flush.
func NewWriter(dir, model string, logger *observability.Logger, metrics *observability.Metrics) *Writer {
	now := time.Now
	return &Writer{
		dir:     dir,
		logger:  logger,
		metrics: metrics,
		now:     now,
		log: models.SessionLog{
			SessionID: uuid.NewString(),
			StartTime: now().UTC(),
			Model:     model,
		},
	}
}

// SessionID returns the session's identifier.
func (w *Writer) SessionID() string {
	return w.log.SessionID
}

// Events returns a copy of the buffered events.
func (w *Writer) Events() []models.LoggedEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.LoggedEvent, len(w.log.Events))
	copy(out, w.log.Events)
	return out
}

// RecordUserInput appends a user_input event.
func (w *Writer) RecordUserInput(content string) {
	w.append(models.LoggedEvent{
		EventType: models.LoggedUserInput,
		Content:   content,
	})
}

// RecordAgentResponse appends an agent_response event. toolCalls lists
// the tool names the response invoked, in call order.
func (w *Writer) RecordAgentResponse(agent, content string, toolCalls []string) {
	w.append(models.LoggedEvent{
		EventType: models.LoggedAgentResponse,
		Content:   content,
		AgentName: agent,
		ToolCalls: toolCalls,
	})
}

// RecordToolCommand appends a tool_command event carrying the rendered
// shell command.
func (w *Writer) RecordToolCommand(tool, command string) {
	w.append(models.LoggedEvent{
		EventType: models.LoggedToolCommand,
		Content:   command,
		ToolName:  tool,
	})
}

// RecordToolOutput appends a tool_output event carrying the captured
// output.
func (w *Writer) RecordToolOutput(tool, output string) {
	w.append(models.LoggedEvent{
		EventType: models.LoggedToolOutput,
		Content:   output,
		ToolName:  tool,
	})
}

func (w *Writer) append(ev models.LoggedEvent) {
	ev.Timestamp = w.now().UTC()
	w.mu.Lock()
	w.log.Events = append(w.log.Events, ev)
	w.mu.Unlock()
}

// Flush rewrites the session file with everything recorded so far.
// Failures are reported and returned, but callers are free to ignore
// them; a lost log never fails the workflow.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	data, err := json.MarshalIndent(&w.log, "", "  ")
	path := sessionPath(w.dir, w.log.StartTime, w.log.SessionID)
	w.mu.Unlock()

	if err == nil {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			err = mkErr
		} else {
			err = os.WriteFile(path, data, 0o644)
		}
	}

	if err != nil {
		if w.metrics != nil {
			w.metrics.RecordSessionLogFlush("error")
		}
		if w.logger != nil {
			w.logger.Error(ctx, "session log flush failed",
				"session_id", w.log.SessionID,
				"path", path,
				"error", err)
		}
		return fmt.Errorf("flush session log: %w", err)
	}

	if w.metrics != nil {
		w.metrics.RecordSessionLogFlush("ok")
	}
	return nil
}

// Path returns where the session file is (or will be) written.
func (w *Writer) Path() string {
	return sessionPath(w.dir, w.log.StartTime, w.log.SessionID)
}

func sessionPath(dir string, start time.Time, sessionID string) string {
	start = start.UTC()
	return filepath.Join(dir,
		start.Format("2006"),
		start.Format("01"),
		start.Format("02"),
		"session_"+sessionID+".json")
}
