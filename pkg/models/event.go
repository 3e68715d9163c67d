package models

// EventKind identifies the kind of executor event.
type EventKind string

const (
	EventMessage          EventKind = "message"
	EventWorkflowComplete EventKind = "workflow_complete"
	EventError            EventKind = "error"
)

// MessageKind classifies a chat-visible message for consumers.
type MessageKind string

const (
	MessageKindAI   MessageKind = "ai"
	MessageKindTool MessageKind = "tool"
	MessageKindUser MessageKind = "user"
)

// Event is the unified stream element emitted by the workflow executor
// and by session replay. Exactly one payload field is set for a given
// Kind: Message for EventMessage, StepCount for EventWorkflowComplete,
// Error for EventError.
type Event struct {
	Kind      EventKind    `json:"kind"`
	Message   *ChatMessage `json:"message,omitempty"`
	StepCount int          `json:"step_count,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// ChatMessage is the normalized, UI-facing view of a thread message.
// IDs are deterministic for a given event sequence so that replays
// reproduce them.
type ChatMessage struct {
	ID        string      `json:"id"`
	Kind      MessageKind `json:"message_type"`
	AgentName string      `json:"agent_name,omitempty"`
	Content   string      `json:"content"`
	ToolName  string      `json:"tool_name,omitempty"`
	Raw       *Message    `json:"raw_message,omitempty"`
}

// MessageEvent wraps a ChatMessage in a stream Event.
func MessageEvent(m *ChatMessage) Event {
	return Event{Kind: EventMessage, Message: m}
}

// CompleteEvent signals the end of a successful turn.
func CompleteEvent(steps int) Event {
	return Event{Kind: EventWorkflowComplete, StepCount: steps}
}

// ErrorEvent reports a fatal turn error.
func ErrorEvent(msg string) Event {
	return Event{Kind: EventError, Error: msg}
}
