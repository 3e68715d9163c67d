package sessionlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redcellhq/redcell/pkg/models"
)

func testWriter(t *testing.T, dir string, start time.Time) *Writer {
	t.Helper()
	w := NewWriter(dir, "claude-sonnet-4", nil, nil)
	w.log.StartTime = start
	w.now = func() time.Time { return start }
	return w
}

func TestWriterFlushRoundTrip(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	w := testWriter(t, dir, start)

	w.RecordUserInput("scan localhost")
	w.RecordAgentResponse("planner", "scanning now", []string{"nmap"})
	w.RecordToolCommand("nmap", "nmap  127.0.0.1")
	w.RecordToolOutput("nmap", "80/tcp open")

	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	wantPath := filepath.Join(dir, "2026", "03", "10", "session_"+w.SessionID()+".json")
	if w.Path() != wantPath {
		t.Errorf("Path() = %q, want %q", w.Path(), wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("session file missing: %v", err)
	}

	log, err := Load(dir, w.SessionID())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if log.SessionID != w.SessionID() || log.Model != "claude-sonnet-4" {
		t.Errorf("loaded header = %+v", log)
	}
	if len(log.Events) != 4 {
		t.Fatalf("loaded %d events, want 4", len(log.Events))
	}

	wantTypes := []models.LoggedEventType{
		models.LoggedUserInput,
		models.LoggedAgentResponse,
		models.LoggedToolCommand,
		models.LoggedToolOutput,
	}
	for i, want := range wantTypes {
		if log.Events[i].EventType != want {
			t.Errorf("event %d type = %q, want %q", i, log.Events[i].EventType, want)
		}
	}
	if log.Events[1].AgentName != "planner" || len(log.Events[1].ToolCalls) != 1 {
		t.Errorf("agent_response = %+v", log.Events[1])
	}
	if log.Events[2].Content != "nmap  127.0.0.1" || log.Events[2].ToolName != "nmap" {
		t.Errorf("tool_command = %+v", log.Events[2])
	}
}

func TestWriterFlushRewritesWholeFile(t *testing.T) {
	dir := t.TempDir()
	w := testWriter(t, dir, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC))
	ctx := context.Background()

	w.RecordUserInput("first turn")
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	w.RecordAgentResponse("planner", "done", nil)
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	log, err := Load(dir, w.SessionID())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(log.Events) != 2 {
		t.Errorf("got %d events after second flush, want 2", len(log.Events))
	}
}

func TestWriterFlushFailureIsReturned(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := testWriter(t, blocker, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC))
	w.RecordUserInput("hello")
	if err := w.Flush(context.Background()); err == nil {
		t.Error("Flush() into a file path should fail")
	}
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	times := []time.Time{
		time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}
	var ids []string
	for i, start := range times {
		w := testWriter(t, dir, start)
		w.RecordUserInput(strings.Repeat("x", 90+i*20))
		if err := w.Flush(ctx); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		ids = append(ids, w.SessionID())
	}

	summaries, err := List(dir, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("List() returned %d sessions, want 3", len(summaries))
	}
	if summaries[0].SessionID != ids[2] || summaries[2].SessionID != ids[0] {
		t.Errorf("order = %v, want newest first", []string{summaries[0].SessionID, summaries[1].SessionID, summaries[2].SessionID})
	}

	// First session's input fits the preview, the last one is truncated.
	if summaries[2].Preview != strings.Repeat("x", 90) {
		t.Errorf("short preview = %q", summaries[2].Preview)
	}
	if want := strings.Repeat("x", 100) + "..."; summaries[0].Preview != want {
		t.Errorf("long preview = %q, want %q", summaries[0].Preview, want)
	}
	if summaries[0].EventCount != 1 {
		t.Errorf("EventCount = %d", summaries[0].EventCount)
	}

	limited, err := List(dir, 2)
	if err != nil {
		t.Fatalf("List(limit) error = %v", err)
	}
	if len(limited) != 2 || limited[0].SessionID != ids[2] {
		t.Errorf("limited list = %+v", limited)
	}
}

func TestListMissingDir(t *testing.T) {
	summaries, err := List(filepath.Join(t.TempDir(), "nope"), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("List() = %v, want empty", summaries)
	}
}

func TestListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	day := filepath.Join(dir, "2026", "03", "10")
	if err := os.MkdirAll(day, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(day, "session_bad.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := testWriter(t, dir, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	w.RecordUserInput("hello")
	if err := w.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	summaries, err := List(dir, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 1 || summaries[0].SessionID != w.SessionID() {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestLoadMissingSession(t *testing.T) {
	_, err := Load(t.TempDir(), "does-not-exist")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load() error = %v, want ErrSessionNotFound", err)
	}
}
