package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redcellhq/redcell/internal/agent"
)

// SessionTools returns the five session-management tools bound to the
// given API. In local mode the API is a Pool; in mcp mode it is a
// Client talking to a remote tool server.
func SessionTools(api SessionAPI) []agent.Tool {
	return []agent.Tool{
		&createSessionTool{api: api},
		&commandExecTool{api: api},
		&sessionListTool{api: api},
		&killSessionTool{api: api},
		&killServerTool{api: api},
	}
}

var noParamsSchema = json.RawMessage(`{"type": "object", "properties": {}}`)

type createSessionTool struct {
	api SessionAPI
}

func (t *createSessionTool) Name() string { return "create_session" }

func (t *createSessionTool) Description() string {
	return "Start a new persistent terminal session and return its session ID. Commands run in a session keep their working directory and environment between calls."
}

func (t *createSessionTool) Schema() json.RawMessage { return noParamsSchema }

func (t *createSessionTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	id, err := t.api.CreateSession(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: id}, nil
}

type commandExecTool struct {
	api SessionAPI
}

func (t *commandExecTool) Name() string { return "command_exec" }

func (t *commandExecTool) Description() string {
	return "Execute a shell command inside an existing terminal session and return the captured output once it finishes. Create a session with create_session first."
}

func (t *commandExecTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"session_id": {"type": "string", "description": "ID of the target session"},
			"command": {"type": "string", "description": "Shell command to execute"}
		},
		"required": ["session_id", "command"]
	}`)
}

func (t *commandExecTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		SessionID string `json:"session_id"`
		Command   string `json:"command"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if p.SessionID == "" || p.Command == "" {
		return &agent.ToolResult{Content: "both session_id and command are required", IsError: true}, nil
	}

	out, err := t.api.Exec(ctx, p.SessionID, p.Command)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &agent.ToolResult{Content: err.Error(), IsError: true, Command: p.Command}, nil
	}
	return &agent.ToolResult{Content: out, Command: p.Command}, nil
}

type sessionListTool struct {
	api SessionAPI
}

func (t *sessionListTool) Name() string { return "session_list" }

func (t *sessionListTool) Description() string {
	return "List the active terminal sessions."
}

func (t *sessionListTool) Schema() json.RawMessage { return noParamsSchema }

func (t *sessionListTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	infos, err := t.api.Sessions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	if len(infos) == 0 {
		return &agent.ToolResult{Content: "no active sessions"}, nil
	}

	var b strings.Builder
	for _, info := range infos {
		b.WriteString(info.ID)
		if info.Detail != "" {
			b.WriteString(": ")
			b.WriteString(info.Detail)
		}
		b.WriteString("\n")
	}
	return &agent.ToolResult{Content: strings.TrimSpace(b.String())}, nil
}

type killSessionTool struct {
	api SessionAPI
}

func (t *killSessionTool) Name() string { return "kill_session" }

func (t *killSessionTool) Description() string {
	return "Terminate a terminal session. Succeeds even if the session is already gone."
}

func (t *killSessionTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"session_id": {"type": "string", "description": "ID of the session to terminate"}
		},
		"required": ["session_id"]
	}`)
}

func (t *killSessionTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if p.SessionID == "" {
		return &agent.ToolResult{Content: "session_id is required", IsError: true}, nil
	}

	if err := t.api.KillSession(ctx, p.SessionID); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: fmt.Sprintf("killed session %s", p.SessionID)}, nil
}

type killServerTool struct {
	api SessionAPI
}

func (t *killServerTool) Name() string { return "kill_server" }

func (t *killServerTool) Description() string {
	return "Terminate the terminal server and every session in it."
}

func (t *killServerTool) Schema() json.RawMessage { return noParamsSchema }

func (t *killServerTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if err := t.api.KillServer(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: "terminal server killed"}, nil
}
