package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewToolRegistry()
	tool := &fakeTool{name: "probe"}

	registry.Register(tool)

	got, ok := registry.Get("probe")
	if !ok {
		t.Fatal("Get() did not find registered tool")
	}
	if got.Name() != "probe" {
		t.Errorf("Name() = %q, want probe", got.Name())
	}

	registry.Unregister("probe")
	if _, ok := registry.Get("probe"); ok {
		t.Error("Get() found tool after Unregister")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&fakeTool{name: "nmap"})
	registry.Register(&fakeTool{name: "amass"})
	registry.Register(&fakeTool{name: "gobuster"})

	names := registry.Names()
	want := []string{"amass", "gobuster", "nmap"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegistryAsLLMToolsSorted(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&fakeTool{name: "zeta"})
	registry.Register(&fakeTool{name: "alpha"})

	tools := registry.AsLLMTools()
	if len(tools) != 2 {
		t.Fatalf("len = %d, want 2", len(tools))
	}
	if tools[0].Name() != "alpha" || tools[1].Name() != "zeta" {
		t.Errorf("order = [%s, %s], want [alpha, zeta]", tools[0].Name(), tools[1].Name())
	}
}

func TestRegistryExecuteNotFound(t *testing.T) {
	registry := NewToolRegistry()

	result, err := registry.Execute(context.Background(), "ghost", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for unknown tool")
	}
	if result.Content != "tool not found: ghost" {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestRegistryExecuteNameTooLong(t *testing.T) {
	registry := NewToolRegistry()
	name := strings.Repeat("x", MaxToolNameLength+1)

	result, err := registry.Execute(context.Background(), name, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "maximum length") {
		t.Errorf("result = %+v", result)
	}
}

func TestRegistryExecuteParamsTooLarge(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&fakeTool{name: "big"})

	params := json.RawMessage(strings.Repeat("a", MaxToolParamsSize+1))
	result, err := registry.Execute(context.Background(), "big", params)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "maximum size") {
		t.Errorf("result = %+v", result)
	}
}

func TestRegistryValidatesSchema(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"target": {"type": "string"}
		},
		"required": ["target"],
		"additionalProperties": false
	}`)

	tool := &fakeTool{name: "scan", schema: schema}
	registry := NewToolRegistry()
	registry.Register(tool)

	tests := []struct {
		name      string
		params    string
		wantError bool
	}{
		{"valid", `{"target": "10.0.0.1"}`, false},
		{"missing required", `{}`, true},
		{"wrong type", `{"target": 8080}`, true},
		{"extra property", `{"target": "10.0.0.1", "force": true}`, true},
		{"malformed json", `{"target": `, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := registry.Execute(context.Background(), "scan", json.RawMessage(tt.params))
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if result.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v (content: %s)", result.IsError, tt.wantError, result.Content)
			}
			if tt.wantError && !strings.Contains(result.Content, "invalid arguments for scan") {
				t.Errorf("Content = %q, want validation message", result.Content)
			}
		})
	}
}

func TestRegistryEmptyParamsTreatedAsObject(t *testing.T) {
	schema := json.RawMessage(`{"type": "object", "properties": {}}`)
	tool := &fakeTool{name: "list", schema: schema}
	registry := NewToolRegistry()
	registry.Register(tool)

	result, err := registry.Execute(context.Background(), "list", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError {
		t.Errorf("empty params should validate against schema with no required fields: %s", result.Content)
	}
}

func TestRegistryNoSchemaSkipsValidation(t *testing.T) {
	tool := &fakeTool{name: "freeform"}
	registry := NewToolRegistry()
	registry.Register(tool)

	result, err := registry.Execute(context.Background(), "freeform", json.RawMessage(`"anything goes"`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError {
		t.Errorf("tools without a schema accept any arguments: %s", result.Content)
	}
}
