package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redcellhq/redcell/internal/agent"
)

// Transfer tool name prefixes. Tools carrying either prefix move the
// conversation to another agent.
const (
	TransferPrefix = "transfer_to_"
	HandoffPrefix  = "handoff_to_"
)

// TransferToolName returns the canonical transfer tool name for a target
// agent, e.g. "transfer_to_reconnaissance".
func TransferToolName(target string) string {
	return TransferPrefix + target
}

// TransferTarget extracts the target agent from a transfer tool name.
// Returns false when the name is not a transfer tool.
func TransferTarget(name string) (string, bool) {
	for _, prefix := range []string{TransferPrefix, HandoffPrefix} {
		if rest, ok := strings.CutPrefix(name, prefix); ok && rest != "" {
			return rest, true
		}
	}
	return "", false
}

// transferTool hands the conversation to one fixed peer agent. Each agent
// gets one transfer tool per peer, so the model picks a target by picking
// a tool rather than by spelling an agent name in arguments.
type transferTool struct {
	target string
	role   string
}

// NewTransferTool creates the transfer tool for a target agent. The role
// is a one-line summary shown to the calling model.
func NewTransferTool(target, role string) agent.Tool {
	return &transferTool{target: target, role: role}
}

func (t *transferTool) Name() string {
	return TransferToolName(t.target)
}

func (t *transferTool) Description() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transfer the conversation to the %s agent", t.target)
	if role := strings.TrimSpace(t.role); role != "" {
		fmt.Fprintf(&b, " (%s)", role)
	}
	b.WriteString(".\n\nThe full conversation history moves with the transfer; ")
	b.WriteString("do not summarize it first. Call this when the next action ")
	fmt.Fprintf(&b, "belongs to %s rather than you.", t.target)
	return b.String()
}

func (t *transferTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{
				"type":        "string",
				"description": "Why the conversation should move to this agent",
			},
		},
	}

	data, _ := json.Marshal(schema)
	return data
}

type transferInput struct {
	Reason string `json:"reason,omitempty"`
}

func (t *transferTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input transferInput
	if len(params) > 0 {
		// A malformed reason is not worth refusing the transfer over.
		_ = json.Unmarshal(params, &input)
	}

	content := fmt.Sprintf("Transferred to %s", t.target)
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		content = fmt.Sprintf("Transferred to %s: %s", t.target, reason)
	}

	return &agent.ToolResult{
		Content: content,
		Handoff: &agent.HandoffDirective{TargetAgent: t.target},
	}, nil
}
