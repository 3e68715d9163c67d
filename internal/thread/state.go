// Package thread tracks conversation state across turns: which agent
// holds the conversation, the shared message history, and how it is
// checkpointed between process runs. It also derives the identity keys
// that scope state and memory to one operator.
package thread

import (
	"time"

	"github.com/redcellhq/redcell/pkg/models"
)

// State is one conversation's checkpointable state. Messages are
// append-only; a message is never mutated once recorded.
type State struct {
	ThreadID     string            `json:"thread_id"`
	CurrentAgent string            `json:"current_agent"`
	Messages     []*models.Message `json:"messages"`
	StepCount    int               `json:"step_count"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewState returns empty state for a thread. The current agent is left
// empty; the swarm resolves that to its default agent.
func NewState(threadID string) *State {
	return &State{ThreadID: threadID}
}

// Clone returns a copy whose message slice is independent of the
// original, so appends on one side never leak into the other.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Messages = make([]*models.Message, len(s.Messages))
	copy(clone.Messages, s.Messages)
	return &clone
}
