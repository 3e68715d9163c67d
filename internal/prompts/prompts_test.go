package prompts

import (
	"strings"
	"testing"
)

func TestRoleEmbedded(t *testing.T) {
	for _, agent := range []string{"planner", "reconnaissance", "initial_access", "summary"} {
		t.Run(agent, func(t *testing.T) {
			role, err := Role(agent)
			if err != nil {
				t.Fatalf("Role(%q) failed: %v", agent, err)
			}
			if role == "" {
				t.Fatalf("Role(%q) returned empty prompt", agent)
			}
			if strings.HasSuffix(role, "\n") {
				t.Error("role prompt should be trimmed")
			}
		})
	}
}

func TestRoleUnknownAgent(t *testing.T) {
	if _, err := Role("supervisor"); err == nil {
		t.Fatal("expected error for unknown agent role")
	}
}

func TestToolManual(t *testing.T) {
	manual := ToolManual([]ToolDoc{
		{Name: "nmap", Description: "Scan a target with nmap.\nSecond line ignored."},
		{Name: "command_exec", Description: ""},
	})
	if !strings.Contains(manual, "`nmap`: Scan a target with nmap.") {
		t.Errorf("manual missing nmap line:\n%s", manual)
	}
	if strings.Contains(manual, "Second line") {
		t.Error("manual should keep only the first description line")
	}
	if !strings.Contains(manual, "`command_exec`: (no description)") {
		t.Errorf("manual missing placeholder for empty description:\n%s", manual)
	}
}

func TestToolManualEmpty(t *testing.T) {
	if got := ToolManual(nil); got != "" {
		t.Errorf("expected empty manual for no tools, got %q", got)
	}
}

func TestHandoffCatalogue(t *testing.T) {
	catalogue := HandoffCatalogue([]Peer{
		{Agent: "reconnaissance", ToolName: "transfer_to_reconnaissance", Role: "target enumeration"},
		{Agent: "summary", ToolName: "transfer_to_summary"},
	})
	if !strings.Contains(catalogue, "`transfer_to_reconnaissance` -> reconnaissance (target enumeration)") {
		t.Errorf("catalogue missing reconnaissance entry:\n%s", catalogue)
	}
	if !strings.Contains(catalogue, "`transfer_to_summary` -> summary") {
		t.Errorf("catalogue missing summary entry:\n%s", catalogue)
	}
}

func TestCompose(t *testing.T) {
	prompt := Compose(Layers{
		Role:         "role text",
		ToolManual:   "",
		Architecture: "arch text",
		Handoffs:     "handoff text",
	})
	want := "role text\n\narch text\n\nhandoff text"
	if prompt != want {
		t.Errorf("Compose mismatch:\ngot  %q\nwant %q", prompt, want)
	}
}

func TestComposeFourLayers(t *testing.T) {
	role, err := Role("reconnaissance")
	if err != nil {
		t.Fatal(err)
	}
	prompt := Compose(Layers{
		Role:         role,
		ToolManual:   ToolManual([]ToolDoc{{Name: "nmap", Description: "Scan a target."}}),
		Architecture: Architecture(),
		Handoffs:     HandoffCatalogue([]Peer{{Agent: "planner", ToolName: "transfer_to_planner"}}),
	})

	// Layer order: role before manual before architecture before handoffs.
	idxRole := strings.Index(prompt, "# Reconnaissance")
	idxManual := strings.Index(prompt, "## Available tools")
	idxArch := strings.Index(prompt, "## How this swarm works")
	idxHandoff := strings.Index(prompt, "## Handing off")
	if idxRole < 0 || idxManual < 0 || idxArch < 0 || idxHandoff < 0 {
		t.Fatalf("missing layer in composed prompt:\n%s", prompt)
	}
	if !(idxRole < idxManual && idxManual < idxArch && idxArch < idxHandoff) {
		t.Errorf("layers out of order: role=%d manual=%d arch=%d handoff=%d",
			idxRole, idxManual, idxArch, idxHandoff)
	}
}
