package models

import "time"

// LoggedEventType identifies a session log record.
type LoggedEventType string

const (
	LoggedUserInput     LoggedEventType = "user_input"
	LoggedAgentResponse LoggedEventType = "agent_response"
	LoggedToolCommand   LoggedEventType = "tool_command"
	LoggedToolOutput    LoggedEventType = "tool_output"
)

// LoggedEvent is one record in a session's event log. AgentName is set
// on agent_response records, ToolName on tool_command/tool_output, and
// ToolCalls lists the tool names an agent_response invoked.
type LoggedEvent struct {
	EventType LoggedEventType `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Content   string          `json:"content"`
	AgentName string          `json:"agent_name,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolCalls []string        `json:"tool_calls,omitempty"`
}

// SessionLog is the on-disk shape of one recorded session.
type SessionLog struct {
	SessionID string        `json:"session_id"`
	StartTime time.Time     `json:"start_time"`
	Model     string        `json:"model"`
	Events    []LoggedEvent `json:"events"`
}

// SessionSummary is the listing view of a recorded session.
type SessionSummary struct {
	SessionID  string    `json:"session_id"`
	StartTime  time.Time `json:"start_time"`
	EventCount int       `json:"event_count"`
	Preview    string    `json:"preview"`
	Model      string    `json:"model,omitempty"`
}
