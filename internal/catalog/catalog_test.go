package catalog

import (
	"testing"
)

func mustLoad(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoadEmbeddedCatalogue(t *testing.T) {
	c := mustLoad(t)

	models := c.Models()
	if len(models) == 0 {
		t.Fatal("catalogue is empty")
	}

	def, ok := c.Find("anthropic:claude-sonnet-4-5")
	if !ok {
		t.Fatal("default anthropic model missing from catalogue")
	}
	if def.ContextLength != 200000 {
		t.Fatalf("context length = %d, want 200000", def.ContextLength)
	}
	if !def.SupportsTools {
		t.Fatal("default model must support tools")
	}
}

func TestByProvider(t *testing.T) {
	c := mustLoad(t)

	anthropic := c.ByProvider("Anthropic")
	if len(anthropic) < 2 {
		t.Fatalf("anthropic models = %d, want at least 2", len(anthropic))
	}
	for _, m := range anthropic {
		if m.Provider != "anthropic" {
			t.Fatalf("ByProvider leaked %q entry", m.Provider)
		}
	}

	if got := c.ByProvider("does-not-exist"); got != nil {
		t.Fatalf("unknown provider returned %d entries", len(got))
	}
}

func TestFindSelectionForms(t *testing.T) {
	c := mustLoad(t)

	if m, ok := c.Find("openai:gpt-4o"); !ok || m.ID != "gpt-4o" {
		t.Fatalf("provider:id lookup failed: %+v %v", m, ok)
	}
	if m, ok := c.Find("gpt-4o-mini"); !ok || m.Provider != "openai" {
		t.Fatalf("bare id lookup failed: %+v %v", m, ok)
	}
	if m, ok := c.Find("Gemini 2.5 Pro"); !ok || m.ID != "gemini-2.5-pro" {
		t.Fatalf("display name lookup failed: %+v %v", m, ok)
	}
	if _, ok := c.Find("anthropic:no-such-model"); ok {
		t.Fatal("bogus provider:id resolved")
	}
	if _, ok := c.Find("no-such-model"); ok {
		t.Fatal("bogus id resolved")
	}
}

func TestAvailabilityFollowsEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_API_KEY", "")

	c := mustLoad(t)
	entries := c.Availability()

	byProvider := make(map[string]bool)
	for _, e := range entries {
		byProvider[e.Provider] = e.Available
	}
	if byProvider["anthropic"] {
		t.Fatal("anthropic available without key")
	}
	if !byProvider["openai"] {
		t.Fatal("openai unavailable despite key")
	}
	if !byProvider["ollama"] {
		t.Fatal("ollama should be keyless")
	}

	// Available entries sort before unavailable ones.
	seenUnavailable := false
	for _, e := range entries {
		if !e.Available {
			seenUnavailable = true
		} else if seenUnavailable {
			t.Fatalf("available entry %s:%s sorted after unavailable ones", e.Provider, e.ID)
		}
	}
}

func TestEnvKey(t *testing.T) {
	if got := EnvKey("anthropic"); got != "ANTHROPIC_API_KEY" {
		t.Fatalf("EnvKey(anthropic) = %q", got)
	}
	if got := EnvKey("ollama"); got != "" {
		t.Fatalf("EnvKey(ollama) = %q, want empty", got)
	}
	if !Keyless("ollama") || Keyless("openai") {
		t.Fatal("keyless classification wrong")
	}
}
