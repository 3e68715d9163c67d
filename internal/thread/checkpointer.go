package thread

import (
	"context"
	"sync"
)

// Checkpointer persists thread state between turns. Implementations
// must be safe for concurrent use.
type Checkpointer interface {
	// Load returns the state for a thread, or (nil, nil) when none is
	// checkpointed.
	Load(ctx context.Context, threadID string) (*State, error)

	// Save checkpoints the state for a thread, replacing any previous
	// checkpoint.
	Save(ctx context.Context, threadID string, state *State) error

	// Delete removes a thread's checkpoint. Deleting a missing thread
	// is not an error.
	Delete(ctx context.Context, threadID string) error
}

// MemoryCheckpointer keeps checkpoints in process memory. State is
// cloned on the way in and out, so callers can keep appending to their
// copy without corrupting the checkpoint.
type MemoryCheckpointer struct {
	mu      sync.RWMutex
	threads map[string]*State
}

// NewMemoryCheckpointer creates an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{threads: make(map[string]*State)}
}

func (c *MemoryCheckpointer) Load(_ context.Context, threadID string) (*State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.threads[threadID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

func (c *MemoryCheckpointer) Save(_ context.Context, threadID string, state *State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.threads[threadID] = state.Clone()
	return nil
}

func (c *MemoryCheckpointer) Delete(_ context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.threads, threadID)
	return nil
}
