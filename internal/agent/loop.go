package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redcellhq/redcell/internal/observability"
	"github.com/redcellhq/redcell/pkg/models"
)

// Limits applied to a single activation.
const (
	// MaxResponseTextSize is the maximum size of accumulated response text (1MB).
	MaxResponseTextSize = 1 << 20

	// MaxToolCallsPerStep is the maximum number of tool calls allowed in a single LLM step.
	MaxToolCallsPerStep = 100
)

// Common loop errors.
var (
	// ErrNoProvider indicates no LLM provider was configured.
	ErrNoProvider = errors.New("no LLM provider configured")
)

// Activation describes one agent taking the conversation: which agent it
// is, the system prompt composed for it, and the model parameters to use.
type Activation struct {
	// Agent is the agent name (e.g. "planner", "reconnaissance").
	Agent string

	// Namespace scopes the messages this activation produces,
	// formatted as "<agent_name>:<activation_id>".
	Namespace string

	// System is the fully composed system prompt for this agent.
	System string

	Model       string
	MaxTokens   int
	Temperature float32
}

// Hooks let the caller observe and bound an activation while it runs.
type Hooks struct {
	// OnStep is called before every LLM request. Returning an error
	// aborts the activation with that error; the workflow layer uses
	// this to enforce the turn-wide step limit.
	OnStep func(ctx context.Context) error

	// OnMessage is called for each message the activation produces,
	// in order, as soon as it is complete.
	OnMessage func(msg *models.Message)
}

// RunResult summarizes a finished activation.
type RunResult struct {
	// Messages produced by this activation: assistant messages and the
	// tool messages answering their calls, in order.
	Messages []*models.Message

	// Handoff names the agent control should pass to, or is empty when
	// the activation ended with a final response.
	Handoff string

	// Steps is the number of LLM requests made.
	Steps int

	// FinalText is the last assistant text when the activation ended
	// without a handoff.
	FinalText string
}

// Loop drives a single agent activation: it calls the LLM with the
// conversation so far, executes any requested tools in order, feeds the
// results back, and repeats until the model answers with plain text or
// one of its tools hands the conversation to another agent.
type Loop struct {
	provider LLMProvider
	registry *ToolRegistry
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewLoop creates a loop bound to a provider and tool registry.
// Logger and metrics may be nil.
func NewLoop(provider LLMProvider, registry *ToolRegistry, logger *observability.Logger, metrics *observability.Metrics) *Loop {
	if registry == nil {
		registry = NewToolRegistry()
	}
	return &Loop{
		provider: provider,
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes the activation against the given history. History is not
// mutated; produced messages are returned on the result and surfaced
// through hooks.OnMessage as they complete.
func (l *Loop) Run(ctx context.Context, act Activation, history []*models.Message, hooks Hooks) (*RunResult, error) {
	if l.provider == nil {
		return nil, ErrNoProvider
	}

	messages := buildCompletionMessages(history)
	result := &RunResult{}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if hooks.OnStep != nil {
			if err := hooks.OnStep(ctx); err != nil {
				return nil, err
			}
		}
		result.Steps++

		text, toolCalls, err := l.step(ctx, act, messages)
		if err != nil {
			return nil, err
		}

		assistant := &models.Message{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			AgentName: act.Agent,
			Namespace: act.Namespace,
			Content:   text,
			ToolCalls: toolCalls,
			CreatedAt: time.Now().UTC(),
		}
		result.Messages = append(result.Messages, assistant)
		if hooks.OnMessage != nil {
			hooks.OnMessage(assistant)
		}
		messages = append(messages, CompletionMessage{
			Role:      string(models.RoleAssistant),
			Content:   text,
			ToolCalls: toolCalls,
		})

		if len(toolCalls) == 0 {
			result.FinalText = text
			return result, nil
		}

		// Execute every requested call in order. All calls receive a
		// result even when one of them requests a handoff; the first
		// handoff decides where control goes next.
		handoff := ""
		for _, tc := range toolCalls {
			res, execErr := l.executeCall(ctx, act, tc)
			if execErr != nil {
				return nil, execErr
			}

			toolMsg := &models.Message{
				ID:         uuid.NewString(),
				Role:       models.RoleTool,
				AgentName:  act.Agent,
				Namespace:  act.Namespace,
				Content:    res.Content,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				Command:    res.Command,
				IsError:    res.IsError,
				CreatedAt:  time.Now().UTC(),
			}
			result.Messages = append(result.Messages, toolMsg)
			if hooks.OnMessage != nil {
				hooks.OnMessage(toolMsg)
			}
			messages = append(messages, CompletionMessage{
				Role: string(models.RoleTool),
				ToolResults: []models.ToolResult{{
					ToolCallID: tc.ID,
					Content:    res.Content,
					IsError:    res.IsError,
				}},
			})

			if res.Handoff != nil && res.Handoff.TargetAgent != "" {
				if handoff == "" {
					handoff = res.Handoff.TargetAgent
				} else if l.logger != nil {
					l.logger.Debug(ctx, "ignoring extra handoff in same step",
						"agent", act.Agent,
						"target", res.Handoff.TargetAgent,
						"winner", handoff)
				}
			}
		}

		if handoff != "" {
			result.Handoff = handoff
			if l.metrics != nil {
				l.metrics.RecordHandoff(act.Agent, handoff)
			}
			return result, nil
		}
	}
}

// step performs one LLM request and collects the streamed response.
func (l *Loop) step(ctx context.Context, act Activation, messages []CompletionMessage) (string, []models.ToolCall, error) {
	req := &CompletionRequest{
		Model:       act.Model,
		System:      act.System,
		Messages:    messages,
		Tools:       l.registry.AsLLMTools(),
		MaxTokens:   act.MaxTokens,
		Temperature: act.Temperature,
	}

	start := time.Now()
	completion, err := l.provider.Complete(ctx, req)
	if err != nil {
		l.recordLLMRequest(act.Model, "error", start, 0, 0)
		return "", nil, fmt.Errorf("llm request failed: %w", err)
	}

	var textBuilder strings.Builder
	var toolCalls []models.ToolCall
	var inputTokens, outputTokens int

	for chunk := range completion {
		if chunk.Error != nil {
			l.recordLLMRequest(act.Model, "error", start, 0, 0)
			return "", nil, fmt.Errorf("llm stream failed: %w", chunk.Error)
		}

		if chunk.Text != "" {
			if textBuilder.Len()+len(chunk.Text) > MaxResponseTextSize {
				return "", nil, fmt.Errorf("response text exceeds maximum size of %d bytes", MaxResponseTextSize)
			}
			textBuilder.WriteString(chunk.Text)
		}

		if chunk.ToolCall != nil {
			if len(toolCalls) >= MaxToolCallsPerStep {
				return "", nil, fmt.Errorf("tool calls exceed maximum of %d per step", MaxToolCallsPerStep)
			}
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}

		if chunk.InputTokens > 0 {
			inputTokens = chunk.InputTokens
		}
		if chunk.OutputTokens > 0 {
			outputTokens = chunk.OutputTokens
		}

		if chunk.Done {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	l.recordLLMRequest(act.Model, "ok", start, inputTokens, outputTokens)
	if l.logger != nil {
		l.logger.Debug(ctx, "llm step complete",
			"agent", act.Agent,
			"model", act.Model,
			"tool_calls", len(toolCalls),
			"input_tokens", inputTokens,
			"output_tokens", outputTokens)
	}

	return textBuilder.String(), toolCalls, nil
}

// executeCall runs one tool call through the registry. Tool failures
// come back as error results for the LLM to react to; only context
// cancellation aborts the activation.
func (l *Loop) executeCall(ctx context.Context, act Activation, tc models.ToolCall) (*ToolResult, error) {
	start := time.Now()
	res, err := l.registry.Execute(ctx, tc.Name, tc.Input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res = &ToolResult{Content: fmt.Sprintf("tool %s failed: %v", tc.Name, err), IsError: true}
	}
	if res == nil {
		res = &ToolResult{Content: "tool returned no result", IsError: true}
	}

	if l.metrics != nil {
		status := "ok"
		if res.IsError {
			status = "error"
		}
		l.metrics.RecordToolExecution(tc.Name, status, time.Since(start).Seconds())
	}
	if l.logger != nil {
		l.logger.Debug(ctx, "tool executed",
			"agent", act.Agent,
			"tool", tc.Name,
			"is_error", res.IsError,
			"duration_ms", time.Since(start).Milliseconds())
	}

	return res, nil
}

func (l *Loop) recordLLMRequest(model, status string, start time.Time, inputTokens, outputTokens int) {
	if l.metrics == nil {
		return
	}
	l.metrics.RecordLLMRequest(l.provider.Name(), model, status, time.Since(start).Seconds(), inputTokens, outputTokens)
}

// buildCompletionMessages converts thread history into provider wire
// messages. Tool messages become single-result tool turns; providers
// regroup them as their APIs require.
func buildCompletionMessages(history []*models.Message) []CompletionMessage {
	messages := make([]CompletionMessage, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case models.RoleTool:
			messages = append(messages, CompletionMessage{
				Role: string(models.RoleTool),
				ToolResults: []models.ToolResult{{
					ToolCallID: m.ToolCallID,
					Content:    m.Content,
					IsError:    m.IsError,
				}},
			})
		default:
			messages = append(messages, CompletionMessage{
				Role:      string(m.Role),
				Content:   m.Content,
				ToolCalls: m.ToolCalls,
			})
		}
	}
	return messages
}
