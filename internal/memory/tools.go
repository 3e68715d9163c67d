package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redcellhq/redcell/internal/agent"
)

// ManageTool lets agents create, update, and delete memory records in
// one fixed namespace.
type ManageTool struct {
	store     Store
	namespace string
}

// NewManageTool creates the manage_memory tool bound to a namespace.
func NewManageTool(store Store, namespace string) *ManageTool {
	return &ManageTool{store: store, namespace: namespace}
}

func (t *ManageTool) Name() string { return "manage_memory" }

func (t *ManageTool) Description() string {
	return "Store durable facts for later conversations: discovered services, recovered " +
		"credentials, target quirks. Use short snake_case keys (e.g. target_os) and put " +
		"the fact in value. Facts persist across conversations."
}

func (t *ManageTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"create", "update", "delete"},
				"description": "create and update both write the key; delete removes it",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "Short identifier for the fact, e.g. target_os",
			},
			"value": map[string]any{
				"type":        "string",
				"description": "The fact to store; required for create and update",
			},
		},
		"required": []string{"action", "key"},
	}

	data, _ := json.Marshal(schema)
	return data
}

type manageInput struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

func (t *ManageTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input manageInput
	if err := json.Unmarshal(params, &input); err != nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("invalid arguments for manage_memory: %v", err),
			IsError: true,
		}, nil
	}

	key := strings.TrimSpace(input.Key)
	if key == "" {
		return &agent.ToolResult{Content: "key must not be empty", IsError: true}, nil
	}

	switch input.Action {
	case "create", "update":
		if strings.TrimSpace(input.Value) == "" {
			return &agent.ToolResult{
				Content: fmt.Sprintf("value is required to %s a memory", input.Action),
				IsError: true,
			}, nil
		}
		if err := t.store.Put(ctx, t.namespace, key, input.Value); err != nil {
			return storeFailure("store", key, err), nil
		}
		verb := "Stored"
		if input.Action == "update" {
			verb = "Updated"
		}
		return &agent.ToolResult{Content: fmt.Sprintf("%s memory %q", verb, key)}, nil

	case "delete":
		err := t.store.Delete(ctx, t.namespace, key)
		if errors.Is(err, ErrNotFound) {
			return &agent.ToolResult{
				Content: fmt.Sprintf("no memory stored under %q", key),
				IsError: true,
			}, nil
		}
		if err != nil {
			return storeFailure("delete", key, err), nil
		}
		return &agent.ToolResult{Content: fmt.Sprintf("Deleted memory %q", key)}, nil

	default:
		return &agent.ToolResult{
			Content: fmt.Sprintf("unknown action %q: use create, update, or delete", input.Action),
			IsError: true,
		}, nil
	}
}

// SearchTool lets agents query the memory namespace.
type SearchTool struct {
	store     Store
	namespace string
}

// NewSearchTool creates the search_memory tool bound to a namespace.
func NewSearchTool(store Store, namespace string) *SearchTool {
	return &SearchTool{store: store, namespace: namespace}
}

func (t *SearchTool) Name() string { return "search_memory" }

func (t *SearchTool) Description() string {
	return "Search stored facts from this and earlier conversations. Query by topic " +
		"(e.g. \"credentials\", \"open ports\") before re-discovering something."
}

func (t *SearchTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to look for",
			},
			"limit": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"maximum":     50,
				"description": "Maximum results, default 5",
			},
		},
		"required": []string{"query"},
	}

	data, _ := json.Marshal(schema)
	return data
}

type searchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (t *SearchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input searchInput
	if err := json.Unmarshal(params, &input); err != nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("invalid arguments for search_memory: %v", err),
			IsError: true,
		}, nil
	}

	records, err := t.store.Search(ctx, t.namespace, input.Query, input.Limit)
	if err != nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("memory search failed: %v", err),
			IsError: true,
		}, nil
	}

	if len(records) == 0 {
		return &agent.ToolResult{Content: fmt.Sprintf("No memories found for %q", input.Query)}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memor", len(records))
	if len(records) == 1 {
		b.WriteString("y:\n")
	} else {
		b.WriteString("ies:\n")
	}
	for i, record := range records {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, record.Key, record.Value)
	}
	return &agent.ToolResult{Content: strings.TrimRight(b.String(), "\n")}, nil
}

func storeFailure(op, key string, err error) *agent.ToolResult {
	return &agent.ToolResult{
		Content: fmt.Sprintf("failed to %s memory %q: %v", op, key, err),
		IsError: true,
	}
}
