// Package agent provides the LLM-facing core of the orchestrator: the
// Tool and LLMProvider contracts, the validating tool registry, and the
// react loop that drives a single agent activation.
package agent

import (
	"context"
	"encoding/json"
)

// Tool defines the interface for executable agent tools.
//
// Implementing a Tool:
//
//	type pinger struct{}
//
//	func (p *pinger) Name() string        { return "ping" }
//	func (p *pinger) Description() string { return "Ping a host" }
//
//	func (p *pinger) Schema() json.RawMessage {
//	    return json.RawMessage(`{
//	        "type": "object",
//	        "properties": {
//	            "target": {"type": "string", "description": "Host to ping"}
//	        },
//	        "required": ["target"]
//	    }`)
//	}
//
//	func (p *pinger) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
//	    ...
//	}
type Tool interface {
	// Name returns the tool name for LLM function calling.
	// Must be a valid function name (alphanumeric, underscores).
	Name() string

	// Description returns a natural language description of what the
	// tool does. This helps the LLM decide when to use the tool.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given JSON parameters. Failures
	// the LLM should see are reported via ToolResult.IsError, not a
	// Go error.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult contains the output from a tool execution.
//
// Results are sent back to the LLM, which uses them to formulate its
// next step. Errors are communicated via IsError so the conversation
// can recover instead of aborting.
type ToolResult struct {
	// Content is the tool's output (text, JSON, etc.)
	Content string `json:"content"`

	// IsError indicates this result represents an error condition
	IsError bool `json:"is_error,omitempty"`

	// Command is the rendered shell command, for tools that ran one.
	// The session log records it as a tool_command entry.
	Command string `json:"command,omitempty"`

	// Handoff is set when the tool requests an agent transfer instead
	// of producing output. The react loop yields to the swarm.
	Handoff *HandoffDirective `json:"handoff,omitempty"`
}

// HandoffDirective asks the swarm to move control to another agent.
type HandoffDirective struct {
	TargetAgent string `json:"target_agent"`
}
