package agent

import (
	"context"

	"github.com/redcellhq/redcell/pkg/models"
)

// LLMProvider is the interface all LLM providers implement.
type LLMProvider interface {
	// Complete processes a completion request and streams responses.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider identifier (e.g. "anthropic").
	Name() string

	// Models returns available models for this provider.
	Models() []Model

	// SupportsTools indicates if the provider supports tool calling.
	SupportsTools() bool
}

// CompletionRequest is a request for LLM completion.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []CompletionMessage
	Tools       []Tool
	MaxTokens   int
	Temperature float32
}

// CompletionMessage is a message in the conversation.
type CompletionMessage struct {
	Role        string // "user", "assistant", "tool"
	Content     string
	ToolCalls   []models.ToolCall   // For assistant messages with tool use
	ToolResults []models.ToolResult // For tool result messages
}

// CompletionChunk is a streamed piece of an LLM response.
type CompletionChunk struct {
	// Text content (may be partial)
	Text string

	// ToolCall if the LLM wants to invoke a tool (arrives complete)
	ToolCall *models.ToolCall

	// Done indicates the completion is finished
	Done bool

	// Error if something went wrong
	Error error

	// InputTokens used by the request (populated on the final chunk)
	InputTokens int

	// OutputTokens generated in the response (populated on the final chunk)
	OutputTokens int
}

// Model describes an available LLM model.
type Model struct {
	ID          string // Model identifier (e.g. "claude-sonnet-4-5")
	Name        string // Human-readable name
	ContextSize int    // Max context window in tokens
}
