// Package swarm routes one conversation across a team of specialist
// agents. Each agent is a react loop over its own tool registry; control
// moves between agents when one calls a transfer tool, and the receiving
// agent continues with the full shared history.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/redcellhq/redcell/internal/agent"
	"github.com/redcellhq/redcell/internal/observability"
	"github.com/redcellhq/redcell/internal/prompts"
	"github.com/redcellhq/redcell/pkg/models"
)

// Standard team agent names.
const (
	AgentPlanner        = "planner"
	AgentReconnaissance = "reconnaissance"
	AgentInitialAccess  = "initial_access"
	AgentSummary        = "summary"
)

// ErrUnknownAgent indicates a handoff named an agent that is not in the
// team.
var ErrUnknownAgent = errors.New("unknown agent")

// Definition declares one agent of the team before wiring.
type Definition struct {
	// Name is the unique agent name, e.g. "reconnaissance".
	Name string

	// Role is a one-line summary shown to peers in their handoff
	// catalogues.
	Role string

	// Prompt is the agent's base role prompt. When empty, the embedded
	// role prompt for Name is used.
	Prompt string

	// Tools are the agent's domain tools. Transfer tools for every peer
	// are added automatically.
	Tools []agent.Tool
}

// Config assembles a swarm.
type Config struct {
	Provider agent.LLMProvider
	Agents   []Definition

	// DefaultAgent receives the conversation when the thread names no
	// current agent. Defaults to "planner".
	DefaultAgent string

	Model       string
	MaxTokens   int
	Temperature float32

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// teamAgent is one wired agent: its composed system prompt and the loop
// that drives it.
type teamAgent struct {
	name   string
	system string
	loop   *agent.Loop
}

// Swarm is the wired agent team. It is immutable after New and safe for
// concurrent turns on distinct histories.
type Swarm struct {
	agents       map[string]*teamAgent
	order        []string
	defaultAgent string

	model       string
	maxTokens   int
	temperature float32

	logger  *observability.Logger
	metrics *observability.Metrics
}

// New wires the team: for every agent it builds a tool registry holding
// the agent's own tools plus one transfer tool per peer, composes the
// system prompt layers, and binds a react loop to the shared provider.
func New(cfg Config) (*Swarm, error) {
	if cfg.Provider == nil {
		return nil, agent.ErrNoProvider
	}
	if len(cfg.Agents) == 0 {
		return nil, errors.New("swarm needs at least one agent")
	}

	defaultAgent := cfg.DefaultAgent
	if defaultAgent == "" {
		defaultAgent = AgentPlanner
	}

	s := &Swarm{
		agents:       make(map[string]*teamAgent, len(cfg.Agents)),
		order:        make([]string, 0, len(cfg.Agents)),
		defaultAgent: defaultAgent,
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}

	for _, def := range cfg.Agents {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, errors.New("agent with empty name")
		}
		if _, dup := s.agents[name]; dup {
			return nil, fmt.Errorf("duplicate agent %q", name)
		}

		wired, err := s.wireAgent(cfg, def, name)
		if err != nil {
			return nil, err
		}
		s.agents[name] = wired
		s.order = append(s.order, name)
	}

	if _, ok := s.agents[s.defaultAgent]; !ok {
		return nil, fmt.Errorf("%w: default agent %q", ErrUnknownAgent, s.defaultAgent)
	}

	return s, nil
}

func (s *Swarm) wireAgent(cfg Config, def Definition, name string) (*teamAgent, error) {
	registry := agent.NewToolRegistry()

	docs := make([]prompts.ToolDoc, 0, len(def.Tools))
	for _, tool := range def.Tools {
		registry.Register(tool)
		docs = append(docs, prompts.ToolDoc{Name: tool.Name(), Description: tool.Description()})
	}

	peers := make([]prompts.Peer, 0, len(cfg.Agents)-1)
	for _, peer := range cfg.Agents {
		if peer.Name == name {
			continue
		}
		tool := NewTransferTool(peer.Name, peer.Role)
		registry.Register(tool)
		peers = append(peers, prompts.Peer{
			Agent:    peer.Name,
			ToolName: tool.Name(),
			Role:     peer.Role,
		})
	}

	rolePrompt := def.Prompt
	if rolePrompt == "" {
		embedded, err := prompts.Role(name)
		if err != nil {
			return nil, err
		}
		rolePrompt = embedded
	}

	system := prompts.Compose(prompts.Layers{
		Role:         rolePrompt,
		ToolManual:   prompts.ToolManual(docs),
		Architecture: prompts.Architecture(),
		Handoffs:     prompts.HandoffCatalogue(peers),
	})

	return &teamAgent{
		name:   name,
		system: system,
		loop:   agent.NewLoop(cfg.Provider, registry, cfg.Logger, cfg.Metrics),
	}, nil
}

// Agents returns the team's agent names in registration order.
func (s *Swarm) Agents() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// DefaultAgent returns the entry agent name.
func (s *Swarm) DefaultAgent() string {
	return s.defaultAgent
}

// SystemPrompt returns the composed system prompt for an agent. Used by
// diagnostics and tests.
func (s *Swarm) SystemPrompt(name string) (string, bool) {
	ag, ok := s.agents[name]
	if !ok {
		return "", false
	}
	return ag.system, true
}

// RunHooks observe a turn while it runs. All callbacks are optional.
type RunHooks struct {
	// OnStep is forwarded to every activation's react loop; it runs
	// before each LLM request.
	OnStep func(ctx context.Context) error

	// OnMessage receives every produced message in order.
	OnMessage func(msg *models.Message)

	// OnHandoff fires after a transfer is resolved, before the target
	// agent activates.
	OnHandoff func(from, to string)
}

// TurnResult summarizes one finished turn across all activations.
type TurnResult struct {
	// Messages produced this turn, across all agents, in order.
	Messages []*models.Message

	// FinalAgent holds the conversation when the turn ended; the next
	// turn starts there.
	FinalAgent string

	// FinalText is the closing assistant text.
	FinalText string

	// LLMCalls is the total number of LLM requests across activations.
	LLMCalls int
}

// Run drives one turn: it activates the starting agent against the shared
// history and follows transfers until an agent answers with plain text.
// History is not mutated; produced messages are returned on the result.
func (s *Swarm) Run(ctx context.Context, startAgent string, history []*models.Message, hooks RunHooks) (*TurnResult, error) {
	name := s.entryAgent(ctx, startAgent)

	work := make([]*models.Message, len(history))
	copy(work, history)

	result := &TurnResult{FinalAgent: name}
	for {
		ag := s.agents[name]
		act := agent.Activation{
			Agent:       name,
			Namespace:   activationNamespace(name),
			System:      ag.system,
			Model:       s.model,
			MaxTokens:   s.maxTokens,
			Temperature: s.temperature,
		}

		actCtx := observability.WithAgent(ctx, name)
		res, err := ag.loop.Run(actCtx, act, work, agent.Hooks{
			OnStep:    hooks.OnStep,
			OnMessage: hooks.OnMessage,
		})
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", name, err)
		}

		work = append(work, res.Messages...)
		result.Messages = append(result.Messages, res.Messages...)
		result.LLMCalls += res.Steps

		if res.Handoff == "" {
			result.FinalAgent = name
			result.FinalText = res.FinalText
			return result, nil
		}

		target, ok := s.findTarget(res.Handoff)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, res.Handoff)
		}
		if s.logger != nil {
			s.logger.Info(ctx, "handoff", "from", name, "to", target)
		}
		if hooks.OnHandoff != nil {
			hooks.OnHandoff(name, target)
		}
		name = target
		result.FinalAgent = target
	}
}

// entryAgent resolves where a turn starts. Unknown names (e.g. from a
// checkpoint written before an agent was renamed) fall back to the
// default agent rather than failing the turn.
func (s *Swarm) entryAgent(ctx context.Context, name string) string {
	if name == "" {
		return s.defaultAgent
	}
	if resolved, ok := s.findTarget(name); ok {
		return resolved
	}
	if s.logger != nil {
		s.logger.Warn(ctx, "thread names unknown agent, using default",
			"agent", name,
			"default", s.defaultAgent)
	}
	return s.defaultAgent
}

// findTarget resolves an agent reference: exact match first, then
// case-insensitive, then partial name match.
func (s *Swarm) findTarget(identifier string) (string, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", false
	}

	if _, ok := s.agents[identifier]; ok {
		return identifier, true
	}

	lower := strings.ToLower(identifier)
	for _, name := range s.order {
		if strings.ToLower(name) == lower {
			return name, true
		}
	}

	for _, name := range s.order {
		if strings.Contains(strings.ToLower(name), lower) {
			return name, true
		}
	}

	return "", false
}

func activationNamespace(agentName string) string {
	return agentName + ":" + uuid.NewString()[:8]
}
