package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/redcellhq/redcell/internal/agent"
	"github.com/redcellhq/redcell/pkg/models"
)

// swarmTestProvider replays scripted responses and records every request
// so tests can assert which agent's prompt was in play.
type swarmTestProvider struct {
	mu        sync.Mutex
	responses [][]agent.CompletionChunk
	calls     int
	requests  []*agent.CompletionRequest
}

func (p *swarmTestProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.calls >= len(p.responses) {
		return nil, errors.New("unexpected llm call")
	}
	chunks := p.responses[p.calls]
	p.calls++

	ch := make(chan *agent.CompletionChunk, len(chunks)+1)
	for i := range chunks {
		ch <- &chunks[i]
	}
	close(ch)
	return ch, nil
}

func (p *swarmTestProvider) Name() string          { return "swarm-test" }
func (p *swarmTestProvider) Models() []agent.Model { return nil }
func (p *swarmTestProvider) SupportsTools() bool   { return true }

func (p *swarmTestProvider) systemPrompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.requests))
	for i, req := range p.requests {
		out[i] = req.System
	}
	return out
}

// recordedTool counts executions and returns fixed content.
type recordedTool struct {
	name    string
	content string
	calls   int
}

func (t *recordedTool) Name() string            { return t.name }
func (t *recordedTool) Description() string     { return "test tool " + t.name }
func (t *recordedTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (t *recordedTool) Execute(context.Context, json.RawMessage) (*agent.ToolResult, error) {
	t.calls++
	return &agent.ToolResult{Content: t.content}, nil
}

func testTeam(tools map[string][]agent.Tool) []Definition {
	names := []string{AgentPlanner, AgentReconnaissance, AgentInitialAccess, AgentSummary}
	roles := map[string]string{
		AgentPlanner:        "plans the engagement",
		AgentReconnaissance: "maps the target surface",
		AgentInitialAccess:  "attempts entry vectors",
		AgentSummary:        "summarizes findings",
	}

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, Definition{
			Name:   name,
			Role:   roles[name],
			Prompt: "You are the " + name + " agent.",
			Tools:  tools[name],
		})
	}
	return defs
}

func text(parts ...string) []agent.CompletionChunk {
	chunks := make([]agent.CompletionChunk, 0, len(parts)+1)
	for _, part := range parts {
		chunks = append(chunks, agent.CompletionChunk{Text: part})
	}
	return append(chunks, agent.CompletionChunk{Done: true})
}

func toolCall(id, name, input string) []agent.CompletionChunk {
	return []agent.CompletionChunk{
		{ToolCall: &models.ToolCall{ID: id, Name: name, Input: json.RawMessage(input)}},
		{Done: true},
	}
}

func TestNewValidation(t *testing.T) {
	provider := &swarmTestProvider{}

	if _, err := New(Config{Agents: testTeam(nil)}); !errors.Is(err, agent.ErrNoProvider) {
		t.Errorf("missing provider: err = %v", err)
	}
	if _, err := New(Config{Provider: provider}); err == nil {
		t.Error("empty team should be rejected")
	}

	dup := []Definition{
		{Name: "planner", Prompt: "p"},
		{Name: "planner", Prompt: "p"},
	}
	if _, err := New(Config{Provider: provider, Agents: dup}); err == nil {
		t.Error("duplicate agent names should be rejected")
	}

	if _, err := New(Config{
		Provider:     provider,
		Agents:       []Definition{{Name: "recon", Prompt: "r"}},
		DefaultAgent: "ghost",
	}); !errors.Is(err, ErrUnknownAgent) {
		t.Error("unknown default agent should be rejected")
	}
}

func TestTransferTarget(t *testing.T) {
	tests := []struct {
		name   string
		target string
		ok     bool
	}{
		{"transfer_to_reconnaissance", "reconnaissance", true},
		{"handoff_to_summary", "summary", true},
		{"transfer_to_", "", false},
		{"nmap", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		target, ok := TransferTarget(tt.name)
		if target != tt.target || ok != tt.ok {
			t.Errorf("TransferTarget(%q) = (%q, %v), want (%q, %v)",
				tt.name, target, ok, tt.target, tt.ok)
		}
	}
}

func TestTransferToolExecute(t *testing.T) {
	tool := NewTransferTool("reconnaissance", "maps the target surface")
	if tool.Name() != "transfer_to_reconnaissance" {
		t.Errorf("Name() = %q", tool.Name())
	}

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"reason":"need a port scan"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Handoff == nil || res.Handoff.TargetAgent != "reconnaissance" {
		t.Fatalf("Handoff = %+v, want reconnaissance", res.Handoff)
	}
	if !strings.Contains(res.Content, "need a port scan") {
		t.Errorf("Content = %q, want reason included", res.Content)
	}

	bare, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute(nil) error = %v", err)
	}
	if bare.Content != "Transferred to reconnaissance" {
		t.Errorf("bare Content = %q", bare.Content)
	}
}

func TestSwarmSingleAgentTurn(t *testing.T) {
	provider := &swarmTestProvider{
		responses: [][]agent.CompletionChunk{
			text("Plan: enumerate services first."),
		},
	}

	s, err := New(Config{Provider: provider, Agents: testTeam(nil), Model: "test-model"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	history := []*models.Message{{Role: models.RoleUser, Content: "where do we start?"}}
	result, err := s.Run(context.Background(), "", history, RunHooks{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.FinalAgent != AgentPlanner {
		t.Errorf("FinalAgent = %q, want planner", result.FinalAgent)
	}
	if result.FinalText != "Plan: enumerate services first." {
		t.Errorf("FinalText = %q", result.FinalText)
	}
	if result.LLMCalls != 1 {
		t.Errorf("LLMCalls = %d, want 1", result.LLMCalls)
	}
	if len(history) != 1 {
		t.Errorf("history mutated: len = %d", len(history))
	}

	msg := result.Messages[0]
	if msg.AgentName != AgentPlanner {
		t.Errorf("AgentName = %q", msg.AgentName)
	}
	if !strings.HasPrefix(msg.Namespace, "planner:") {
		t.Errorf("Namespace = %q, want planner:<id>", msg.Namespace)
	}
}

func TestSwarmHandoffChain(t *testing.T) {
	scan := &recordedTool{name: "port_scan", content: "22/tcp open"}
	provider := &swarmTestProvider{
		responses: [][]agent.CompletionChunk{
			toolCall("c1", "transfer_to_reconnaissance", `{"reason":"recon first"}`),
			toolCall("c2", "port_scan", `{}`),
			toolCall("c3", "transfer_to_initial_access", `{}`),
			text("Trying default credentials on ssh."),
		},
	}

	s, err := New(Config{
		Provider: provider,
		Agents:   testTeam(map[string][]agent.Tool{AgentReconnaissance: {scan}}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var hops []string
	var streamed []*models.Message
	hooks := RunHooks{
		OnHandoff: func(from, to string) { hops = append(hops, from+"->"+to) },
		OnMessage: func(msg *models.Message) { streamed = append(streamed, msg) },
	}

	result, err := s.Run(context.Background(), AgentPlanner, nil, hooks)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.FinalAgent != AgentInitialAccess {
		t.Errorf("FinalAgent = %q, want initial_access", result.FinalAgent)
	}
	wantHops := []string{"planner->reconnaissance", "reconnaissance->initial_access"}
	if len(hops) != len(wantHops) || hops[0] != wantHops[0] || hops[1] != wantHops[1] {
		t.Errorf("hops = %v, want %v", hops, wantHops)
	}
	if scan.calls != 1 {
		t.Errorf("port_scan executed %d times, want 1", scan.calls)
	}
	if result.LLMCalls != 4 {
		t.Errorf("LLMCalls = %d, want 4", result.LLMCalls)
	}

	// planner: assistant + handoff result; recon: assistant + tool result,
	// assistant + handoff result; initial_access: final assistant.
	if len(result.Messages) != 7 {
		t.Fatalf("len(Messages) = %d, want 7", len(result.Messages))
	}
	if len(streamed) != len(result.Messages) {
		t.Errorf("streamed %d messages, result has %d", len(streamed), len(result.Messages))
	}

	handoffResult := result.Messages[1]
	if handoffResult.Role != models.RoleTool || handoffResult.ToolName != "transfer_to_reconnaissance" {
		t.Errorf("first handoff result = %+v", handoffResult)
	}
	if handoffResult.Content != "Transferred to reconnaissance: recon first" {
		t.Errorf("handoff content = %q", handoffResult.Content)
	}

	agents := []string{"planner", "planner", "reconnaissance", "reconnaissance",
		"reconnaissance", "reconnaissance", "initial_access"}
	for i, msg := range result.Messages {
		if msg.AgentName != agents[i] {
			t.Errorf("Messages[%d].AgentName = %q, want %q", i, msg.AgentName, agents[i])
		}
	}
}

func TestSwarmEntryAgentFallback(t *testing.T) {
	provider := &swarmTestProvider{
		responses: [][]agent.CompletionChunk{text("ok")},
	}

	s, err := New(Config{Provider: provider, Agents: testTeam(nil)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := s.Run(context.Background(), "no_such_agent", nil, RunHooks{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	prompts := provider.systemPrompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "You are the planner agent.") {
		t.Errorf("fallback did not use planner prompt: %q", prompts)
	}
}

func TestSwarmResolvesSloppyHandoffTarget(t *testing.T) {
	// A tool that hands off with odd casing; resolution should land on
	// the reconnaissance agent anyway.
	sloppy := NewTransferTool("Reconnaissance", "")

	provider := &swarmTestProvider{
		responses: [][]agent.CompletionChunk{
			toolCall("c1", "transfer_to_Reconnaissance", `{}`),
			text("on it"),
		},
	}

	defs := testTeam(nil)
	defs[0].Tools = []agent.Tool{sloppy}

	s, err := New(Config{Provider: provider, Agents: defs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := s.Run(context.Background(), AgentPlanner, nil, RunHooks{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.FinalAgent != AgentReconnaissance {
		t.Errorf("FinalAgent = %q, want reconnaissance", result.FinalAgent)
	}
}

func TestSwarmUnknownHandoffTarget(t *testing.T) {
	ghost := NewTransferTool("ghost", "")
	provider := &swarmTestProvider{
		responses: [][]agent.CompletionChunk{
			toolCall("c1", "transfer_to_ghost", `{}`),
		},
	}

	defs := testTeam(nil)
	defs[0].Tools = []agent.Tool{ghost}

	s, err := New(Config{Provider: provider, Agents: defs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := s.Run(context.Background(), AgentPlanner, nil, RunHooks{}); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("Run() error = %v, want ErrUnknownAgent", err)
	}
}

func TestSwarmSystemPromptLayers(t *testing.T) {
	scan := &recordedTool{name: "port_scan", content: ""}
	s, err := New(Config{
		Provider: &swarmTestProvider{},
		Agents:   testTeam(map[string][]agent.Tool{AgentReconnaissance: {scan}}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	prompt, ok := s.SystemPrompt(AgentReconnaissance)
	if !ok {
		t.Fatal("SystemPrompt(reconnaissance) missing")
	}

	for _, want := range []string{
		"You are the reconnaissance agent.",
		"`port_scan`",
		"`transfer_to_planner`",
		"`transfer_to_initial_access`",
		"`transfer_to_summary`",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "transfer_to_reconnaissance") {
		t.Error("agent should not see a transfer tool for itself")
	}
}

func TestSwarmAgentsOrder(t *testing.T) {
	s, err := New(Config{Provider: &swarmTestProvider{}, Agents: testTeam(nil)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := []string{AgentPlanner, AgentReconnaissance, AgentInitialAccess, AgentSummary}
	got := s.Agents()
	if len(got) != len(want) {
		t.Fatalf("Agents() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Agents()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if s.DefaultAgent() != AgentPlanner {
		t.Errorf("DefaultAgent() = %q", s.DefaultAgent())
	}
}
