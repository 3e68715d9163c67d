package providers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/redcellhq/redcell/internal/agent"
	"github.com/redcellhq/redcell/pkg/models"
)

func TestNewGoogleProviderRequiresKey(t *testing.T) {
	if _, err := NewGoogleProvider(GoogleConfig{}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func newTestGoogleProvider(t *testing.T) *GoogleProvider {
	t.Helper()
	provider, err := NewGoogleProvider(GoogleConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return provider
}

func TestGoogleProviderMethods(t *testing.T) {
	provider := newTestGoogleProvider(t)

	if provider.Name() != "google" {
		t.Errorf("Name() = %q, want %q", provider.Name(), "google")
	}
	if !provider.SupportsTools() {
		t.Error("expected SupportsTools to return true")
	}
	if provider.defaultModel != "gemini-2.5-flash" {
		t.Errorf("defaultModel = %q, want gemini-2.5-flash", provider.defaultModel)
	}

	ids := make(map[string]bool)
	for _, m := range provider.Models() {
		ids[m.ID] = true
	}
	for _, want := range []string{"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash"} {
		if !ids[want] {
			t.Errorf("expected model %s not found", want)
		}
	}
}

func TestGoogleConvertMessages(t *testing.T) {
	provider := newTestGoogleProvider(t)

	contents, err := provider.convertMessages([]agent.CompletionMessage{
		{Role: "system", Content: "skipped"},
		{Role: "user", Content: "scan the host"},
		{
			Role:    "assistant",
			Content: "On it.",
			ToolCalls: []models.ToolCall{
				{ID: "call_run_command_1", Name: "run_command", Input: json.RawMessage(`{"command":"dig example.com"}`)},
			},
		},
		{
			Role: "tool",
			ToolResults: []models.ToolResult{
				{ToolCallID: "call_run_command_1", Content: `{"output":"ANSWER: 1"}`},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(contents) != 3 {
		t.Fatalf("got %d contents, want 3 (system skipped)", len(contents))
	}
	if contents[0].Role != genai.RoleUser {
		t.Errorf("content 0 role = %q, want user", contents[0].Role)
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("content 1 role = %q, want model", contents[1].Role)
	}
	if len(contents[1].Parts) != 2 {
		t.Fatalf("assistant parts = %d, want text + function call", len(contents[1].Parts))
	}
	fc := contents[1].Parts[1].FunctionCall
	if fc == nil || fc.Name != "run_command" {
		t.Fatalf("function call part = %+v", contents[1].Parts[1])
	}

	fr := contents[2].Parts[0].FunctionResponse
	if fr == nil {
		t.Fatal("missing function response part")
	}
	// The response name resolves through the earlier assistant tool call.
	if fr.Name != "run_command" {
		t.Errorf("function response name = %q, want run_command", fr.Name)
	}
	if fr.Response["output"] != "ANSWER: 1" {
		t.Errorf("function response payload = %v", fr.Response)
	}
}

func TestGoogleConvertMessagesWrapsPlainToolOutput(t *testing.T) {
	provider := newTestGoogleProvider(t)

	contents, err := provider.convertMessages([]agent.CompletionMessage{
		{
			Role: "tool",
			ToolResults: []models.ToolResult{
				{ToolCallID: "call_whois_7", Content: "not json output", IsError: true},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fr := contents[0].Parts[0].FunctionResponse
	if fr == nil {
		t.Fatal("missing function response part")
	}
	if fr.Response["result"] != "not json output" {
		t.Errorf("result = %v", fr.Response["result"])
	}
	if fr.Response["error"] != true {
		t.Errorf("error flag = %v", fr.Response["error"])
	}
	// No assistant message carries the ID, so the name comes from the
	// call_<name>_<timestamp> format.
	if fr.Name != "whois" {
		t.Errorf("fallback name = %q, want whois", fr.Name)
	}
}

func TestGoogleToolCallIDs(t *testing.T) {
	id := generateToolCallID("run_command")
	if !strings.HasPrefix(id, "call_run_command_") {
		t.Errorf("generated ID = %q", id)
	}

	messages := []agent.CompletionMessage{
		{
			Role: "assistant",
			ToolCalls: []models.ToolCall{
				{ID: "call_abc", Name: "search_memory"},
			},
		},
	}
	if got := getToolNameFromID("call_abc", messages); got != "search_memory" {
		t.Errorf("getToolNameFromID = %q, want search_memory", got)
	}
	if got := getToolNameFromID("call_nmap_123", nil); got != "nmap" {
		t.Errorf("fallback name = %q, want nmap", got)
	}
	if got := getToolNameFromID("garbled", nil); got != "" {
		t.Errorf("unparseable ID returned %q, want empty", got)
	}
}

func TestGoogleIsRetryableError(t *testing.T) {
	provider := newTestGoogleProvider(t)

	tests := []struct {
		name  string
		err   error
		retry bool
	}{
		{"nil", nil, false},
		{"resource exhausted", errors.New("googleapi: Error 429: resource exhausted"), true},
		{"quota", errors.New("quota exceeded for quota metric"), true},
		{"timeout", errors.New("context deadline exceeded"), true},
		{"auth", errors.New("API key not valid. Error 400"), false},
		{"provider error", NewProviderError("google", "m", errors.New("x")).WithStatus(503), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := provider.isRetryableError(tt.err); got != tt.retry {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.retry)
			}
		})
	}
}

func TestGoogleWrapErrorClassifiesFromText(t *testing.T) {
	provider := newTestGoogleProvider(t)

	tests := []struct {
		errText string
		status  int
	}{
		{"googleapi: Error 401: unauthenticated", 401},
		{"permission denied on resource", 403},
		{"model not found", 404},
		{"resource exhausted", 429},
		{"backend returned 503", 503},
	}

	for _, tt := range tests {
		t.Run(tt.errText, func(t *testing.T) {
			wrapped := provider.wrapError(errors.New(tt.errText), "gemini-2.5-flash")
			providerErr, ok := GetProviderError(wrapped)
			if !ok {
				t.Fatalf("expected ProviderError, got %T", wrapped)
			}
			if providerErr.Status != tt.status {
				t.Errorf("status = %d, want %d", providerErr.Status, tt.status)
			}
		})
	}
}
