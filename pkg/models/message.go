// Package models provides the shared domain types for the redcell
// orchestrator: thread messages, tool calls, stream events, and session
// log records.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a thread's shared history. Assistant messages
// may carry tool calls; tool messages answer exactly one of them.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	AgentName string     `json:"agent_name,omitempty"`
	Namespace string     `json:"namespace,omitempty"` // "<agent_name>:<activation_id>"
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Tool-role fields. ToolCallID links back to the assistant's call,
	// Command carries the rendered shell command when the tool ran one.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	Command    string `json:"command,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ToolCall represents an LLM's request to execute a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution as recorded on
// the provider wire.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolCallNames returns the tool names invoked by an assistant message,
// in call order.
func (m *Message) ToolCallNames() []string {
	if len(m.ToolCalls) == 0 {
		return nil
	}
	names := make([]string, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		names = append(names, tc.Name)
	}
	return names
}
