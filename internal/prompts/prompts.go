// Package prompts holds the embedded system prompt layers and composes
// them into per-agent system prompts.
//
// A composed prompt has exactly four layers, in order:
//
//  1. base role prompt (embedded markdown, one per agent)
//  2. tool manual for the tools visible to the agent
//  3. swarm architecture description (shared)
//  4. handoff catalogue (the agent's peers and their transfer tools)
//
// Layers that are empty for an agent (no tools, no peers) are skipped.
package prompts

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed roles/*.md swarm.md
var promptFS embed.FS

// ToolDoc describes one tool for the manual layer.
type ToolDoc struct {
	Name        string
	Description string
}

// Peer describes one handoff target for the catalogue layer.
type Peer struct {
	Agent    string // peer agent name, e.g. "reconnaissance"
	ToolName string // transfer tool name, e.g. "transfer_to_reconnaissance"
	Role     string // one-line role summary
}

// Layers carries the four prompt layers prior to composition.
type Layers struct {
	Role         string
	ToolManual   string
	Architecture string
	Handoffs     string
}

// Role returns the embedded base role prompt for an agent.
func Role(agent string) (string, error) {
	data, err := promptFS.ReadFile("roles/" + agent + ".md")
	if err != nil {
		return "", fmt.Errorf("no role prompt for agent %q: %w", agent, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Architecture returns the shared swarm architecture description.
func Architecture() string {
	data, err := promptFS.ReadFile("swarm.md")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ToolManual renders the tool manual layer from the agent's tool docs.
// Returns "" when the agent has no tools.
func ToolManual(docs []ToolDoc) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Available tools\n\n")
	b.WriteString("Invoke tools through function calls only. One command per call.\n")
	for _, doc := range docs {
		desc := strings.TrimSpace(doc.Description)
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Fprintf(&b, "\n- `%s`: %s", doc.Name, firstLine(desc))
	}
	return b.String()
}

// HandoffCatalogue renders the handoff layer from the agent's peers.
// Returns "" when the agent has no peers.
func HandoffCatalogue(peers []Peer) string {
	if len(peers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Handing off\n\n")
	b.WriteString("When the task belongs to another agent, call its transfer tool.\n")
	b.WriteString("Transfer moves the whole conversation; do not repeat work after a transfer.\n")
	for _, peer := range peers {
		fmt.Fprintf(&b, "\n- `%s` -> %s", peer.ToolName, peer.Agent)
		if role := strings.TrimSpace(peer.Role); role != "" {
			fmt.Fprintf(&b, " (%s)", role)
		}
	}
	return b.String()
}

// Compose joins the non-empty layers with blank lines.
func Compose(l Layers) string {
	parts := make([]string, 0, 4)
	for _, layer := range []string{l.Role, l.ToolManual, l.Architecture, l.Handoffs} {
		layer = strings.TrimSpace(layer)
		if layer == "" {
			continue
		}
		parts = append(parts, layer)
	}
	return strings.Join(parts, "\n\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
