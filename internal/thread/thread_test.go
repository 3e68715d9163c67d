package thread

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/redcellhq/redcell/pkg/models"
)

func sampleState(threadID string) *State {
	return &State{
		ThreadID:     threadID,
		CurrentAgent: "reconnaissance",
		Messages: []*models.Message{
			{ID: "m1", Role: models.RoleUser, Content: "scan localhost"},
			{ID: "m2", Role: models.RoleAssistant, AgentName: "planner", Content: "on it"},
		},
		StepCount: 3,
		UpdatedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestStateClone(t *testing.T) {
	state := sampleState("thread_u_c")
	clone := state.Clone()

	clone.Messages = append(clone.Messages, &models.Message{ID: "m3"})
	clone.CurrentAgent = "summary"

	if len(state.Messages) != 2 {
		t.Errorf("original grew to %d messages", len(state.Messages))
	}
	if state.CurrentAgent != "reconnaissance" {
		t.Errorf("original CurrentAgent = %q", state.CurrentAgent)
	}

	var nilState *State
	if nilState.Clone() != nil {
		t.Error("nil Clone() should be nil")
	}
}

func TestMemoryCheckpointer(t *testing.T) {
	cp := NewMemoryCheckpointer()
	ctx := context.Background()

	// Missing thread loads as nil, nil.
	state, err := cp.Load(ctx, "thread_none")
	if err != nil || state != nil {
		t.Fatalf("Load(missing) = %v, %v", state, err)
	}

	saved := sampleState("thread_a")
	if err := cp.Save(ctx, "thread_a", saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Appends after Save must not leak into the checkpoint.
	saved.Messages = append(saved.Messages, &models.Message{ID: "m3"})

	loaded, err := cp.Load(ctx, "thread_a")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Errorf("checkpoint has %d messages, want 2", len(loaded.Messages))
	}
	if loaded.CurrentAgent != "reconnaissance" || loaded.StepCount != 3 {
		t.Errorf("loaded = %+v", loaded)
	}

	// Appends to a loaded copy must not change the checkpoint either.
	loaded.Messages = append(loaded.Messages, &models.Message{ID: "m4"})
	again, _ := cp.Load(ctx, "thread_a")
	if len(again.Messages) != 2 {
		t.Errorf("checkpoint mutated through loaded copy: %d messages", len(again.Messages))
	}

	if err := cp.Delete(ctx, "thread_a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if state, _ := cp.Load(ctx, "thread_a"); state != nil {
		t.Error("checkpoint survived delete")
	}
	if err := cp.Delete(ctx, "thread_a"); err != nil {
		t.Errorf("Delete() of missing thread error = %v, want nil", err)
	}
}

func TestSQLiteCheckpointer(t *testing.T) {
	cp, err := NewSQLiteCheckpointer(filepath.Join(t.TempDir(), "threads.db"))
	if err != nil {
		t.Fatalf("NewSQLiteCheckpointer() error = %v", err)
	}
	defer cp.Close()
	ctx := context.Background()

	if state, err := cp.Load(ctx, "thread_none"); err != nil || state != nil {
		t.Fatalf("Load(missing) = %v, %v", state, err)
	}

	if err := cp.Save(ctx, "thread_a", sampleState("thread_a")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := cp.Load(ctx, "thread_a")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ThreadID != "thread_a" || loaded.CurrentAgent != "reconnaissance" {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Messages) != 2 || loaded.Messages[1].AgentName != "planner" {
		t.Errorf("messages = %+v", loaded.Messages)
	}
	if loaded.StepCount != 3 {
		t.Errorf("StepCount = %d", loaded.StepCount)
	}

	// Overwrite with new state.
	next := loaded.Clone()
	next.CurrentAgent = "summary"
	if err := cp.Save(ctx, "thread_a", next); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	loaded, _ = cp.Load(ctx, "thread_a")
	if loaded.CurrentAgent != "summary" {
		t.Errorf("overwritten CurrentAgent = %q", loaded.CurrentAgent)
	}

	if err := cp.Delete(ctx, "thread_a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if state, _ := cp.Load(ctx, "thread_a"); state != nil {
		t.Error("checkpoint survived delete")
	}
	if err := cp.Delete(ctx, "thread_a"); err != nil {
		t.Errorf("Delete() of missing thread error = %v", err)
	}
}

func TestUserIDDerivation(t *testing.T) {
	day := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	a := userIDFor("host:alice", day)
	b := userIDFor("host:alice", day)
	if a != b {
		t.Errorf("same inputs gave %q and %q", a, b)
	}

	if matched, _ := regexp.MatchString(`^user_[0-9a-f]{16}$`, a); !matched {
		t.Errorf("user id %q does not match user_<hex16>", a)
	}

	if other := userIDFor("host:bob", day); other == a {
		t.Error("different fingerprints gave the same user id")
	}
	if nextDay := userIDFor("host:alice", day.Add(24*time.Hour)); nextDay == a {
		t.Error("different days gave the same user id")
	}

	// Same calendar day, different hour: stable.
	if later := userIDFor("host:alice", day.Add(2*time.Hour)); later != a {
		t.Error("same day gave different user ids")
	}
}

func TestThreadIDFormat(t *testing.T) {
	got := ThreadID("user_ab12", "default")
	if got != "thread_user_ab12_default" {
		t.Errorf("ThreadID() = %q", got)
	}
}

func TestNewConversationIDUnique(t *testing.T) {
	a, b := NewConversationID(), NewConversationID()
	if a == b || a == "" {
		t.Errorf("conversation ids not unique: %q %q", a, b)
	}
	if a == DefaultConversation {
		t.Error("fresh conversation id collided with the default")
	}
}

func TestUserID(t *testing.T) {
	id := UserID()
	if matched, _ := regexp.MatchString(`^user_[0-9a-f]{16}$`, id); !matched {
		t.Errorf("UserID() = %q", id)
	}
	if id != UserID() {
		t.Error("UserID() not stable within a run")
	}
}
