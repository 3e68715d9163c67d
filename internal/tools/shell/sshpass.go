package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/redcellhq/redcell/internal/agent"
	"github.com/redcellhq/redcell/internal/observability"
)

var userPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// sshpassTool wraps sshpass for non-interactive password SSH logins. It
// differs from the generic wrapper in shape: the command embeds user and
// password, and host key checking is disabled unless the caller already
// configured it.
type sshpassTool struct {
	runner CommandRunner
	logger *observability.Logger
}

// NewSSHPassTool creates the sshpass tool.
func NewSSHPassTool(runner CommandRunner, logger *observability.Logger) agent.Tool {
	return &sshpassTool{runner: runner, logger: logger}
}

func (t *sshpassTool) Name() string { return "sshpass" }

func (t *sshpassTool) Description() string {
	return "Open an SSH connection using password authentication without an interactive prompt. " +
		"Use after credentials have been recovered to verify access."
}

func (t *sshpassTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"target": map[string]any{
				"type":        "string",
				"description": "Host or IP address to connect to",
			},
			"user": map[string]any{
				"type":        "string",
				"description": "Username to authenticate as",
			},
			"password": map[string]any{
				"type":        "string",
				"description": "Password to authenticate with",
			},
			"options": map[string]any{
				"description": `Additional ssh flags, e.g. "-p 2222"`,
				"oneOf": []map[string]any{
					{"type": "string"},
					{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
		"required": []string{"target", "user", "password"},
	}

	data, _ := json.Marshal(schema)
	return data
}

type sshpassInput struct {
	Target   string  `json:"target"`
	User     string  `json:"user"`
	Password string  `json:"password"`
	Options  options `json:"options"`
}

func (t *sshpassTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input sshpassInput
	if err := json.Unmarshal(params, &input); err != nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("invalid arguments for sshpass: %v", err),
			IsError: true,
		}, nil
	}

	if !ValidTarget(input.Target) {
		return &agent.ToolResult{
			Content: fmt.Sprintf("invalid target %q: targets may only contain letters, digits, and ._:/-", input.Target),
			IsError: true,
		}, nil
	}
	if !userPattern.MatchString(input.User) {
		return &agent.ToolResult{
			Content: fmt.Sprintf("invalid user %q", input.User),
			IsError: true,
		}, nil
	}

	opts := input.Options.value
	if !strings.Contains(opts, "StrictHostKeyChecking") {
		if opts != "" {
			opts += " "
		}
		opts += `-o "StrictHostKeyChecking=no"`
	}

	command := fmt.Sprintf(`sshpass -p %q ssh %s %s@%s`, input.Password, opts, input.User, input.Target)
	return runCommand(ctx, t.runner, t.logger, command)
}
