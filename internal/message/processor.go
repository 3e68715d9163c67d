// Package message normalizes raw thread messages into the chat-facing
// view the workflow stream and session replay both emit: agent names
// resolved from activation namespaces, readable tool labels, and message
// IDs that are stable when the same event sequence is processed again.
package message

import (
	"fmt"
	"hash/fnv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/redcellhq/redcell/internal/swarm"
	"github.com/redcellhq/redcell/pkg/models"
)

// contentHashLen bounds how much content feeds the ID hash. Uniqueness
// comes from the ordinal; the hash only keeps IDs recognizable.
const contentHashLen = 100

// AgentFromNamespace extracts the agent name from an activation
// namespace of the form "<agent_name>:<activation_id>".
func AgentFromNamespace(namespace string) string {
	if namespace == "" {
		return "unknown"
	}
	if name, _, ok := strings.Cut(namespace, ":"); ok {
		return name
	}
	return namespace
}

// ToolLabel renders a tool name for display: transfer tools show their
// target agent, snake_case becomes Title Case. For example
// "transfer_to_initial_access" becomes "Initial Access" and
// "manage_memory" becomes "Manage Memory".
func ToolLabel(name string) string {
	if target, ok := swarm.TransferTarget(name); ok {
		name = target
	}
	words := strings.ReplaceAll(name, "_", " ")
	return cases.Title(language.Und).String(words)
}

// Processor converts raw messages into ChatMessages with deterministic
// IDs and tracks what has been emitted so duplicates can be suppressed.
// IDs are content-addressed plus an ordinal assigned on first sight, so
// processing an identical sequence reproduces identical IDs. Use a fresh
// Processor per turn or per replay; it is not safe for concurrent use.
type Processor struct {
	ordinals map[string]int
	next     int

	seenIDs  map[string]struct{}
	seenKeys map[string]struct{}
}

// NewProcessor returns an empty processor.
func NewProcessor() *Processor {
	return &Processor{
		ordinals: make(map[string]int),
		seenIDs:  make(map[string]struct{}),
		seenKeys: make(map[string]struct{}),
	}
}

// Process normalizes one raw message. It assigns the ID but does not
// mark the message as seen; callers decide that after the dedup check.
func (p *Processor) Process(msg *models.Message) *models.ChatMessage {
	switch msg.Role {
	case models.RoleUser:
		return &models.ChatMessage{
			ID:      p.id(models.MessageKindUser, "", msg.Content),
			Kind:    models.MessageKindUser,
			Content: msg.Content,
			Raw:     msg,
		}
	case models.RoleTool:
		return &models.ChatMessage{
			ID:       p.id(models.MessageKindTool, msg.ToolName, msg.Content),
			Kind:     models.MessageKindTool,
			Content:  msg.Content,
			ToolName: ToolLabel(msg.ToolName),
			Raw:      msg,
		}
	default:
		agent := msg.AgentName
		if agent == "" {
			agent = AgentFromNamespace(msg.Namespace)
		}
		return &models.ChatMessage{
			ID:        p.id(models.MessageKindAI, agent, msg.Content),
			Kind:      models.MessageKindAI,
			AgentName: agent,
			Content:   msg.Content,
			Raw:       msg,
		}
	}
}

// IsDuplicate reports whether an equivalent message was already marked
// seen: same ID, or same (agent, kind, content).
func (p *Processor) IsDuplicate(m *models.ChatMessage) bool {
	if _, ok := p.seenIDs[m.ID]; ok {
		return true
	}
	_, ok := p.seenKeys[dupKey(m)]
	return ok
}

// MarkSeen records an emitted message for future duplicate checks.
func (p *Processor) MarkSeen(m *models.ChatMessage) {
	p.seenIDs[m.ID] = struct{}{}
	p.seenKeys[dupKey(m)] = struct{}{}
}

// id builds "<kind>_<name>_<hash>_<ordinal>" (the name segment is
// omitted for user messages). The ordinal is assigned the first time a
// (kind, name, content) identity appears and reused afterwards, so an
// exact repeat produces the exact same ID.
func (p *Processor) id(kind models.MessageKind, name, content string) string {
	identity := string(kind) + "\x00" + name + "\x00" + content
	ordinal, ok := p.ordinals[identity]
	if !ok {
		ordinal = p.next
		p.next++
		p.ordinals[identity] = ordinal
	}

	if name != "" {
		return fmt.Sprintf("%s_%s_%s_%d", kind, name, contentHash(kind, name, content), ordinal)
	}
	return fmt.Sprintf("%s_%s_%d", kind, contentHash(kind, name, content), ordinal)
}

func contentHash(kind models.MessageKind, name, content string) string {
	if len(content) > contentHashLen {
		content = content[:contentHashLen]
	}
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%s", kind, name, content)
	return fmt.Sprintf("%08x", h.Sum32())
}

func dupKey(m *models.ChatMessage) string {
	return m.AgentName + "\x00" + string(m.Kind) + "\x00" + m.Content
}
