// Package workflow drives one chat turn end to end: it loads thread
// state, appends the user input, runs the agent swarm, streams the
// produced messages as events, mirrors them into the session log, and
// persists the thread when the turn completes.
package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/redcellhq/redcell/internal/message"
	"github.com/redcellhq/redcell/internal/observability"
	"github.com/redcellhq/redcell/internal/sessionlog"
	"github.com/redcellhq/redcell/internal/swarm"
	"github.com/redcellhq/redcell/internal/thread"
	"github.com/redcellhq/redcell/pkg/models"
)

// DefaultStepLimit caps workflow steps per turn: every LLM request and
// every tool execution counts as one step.
const DefaultStepLimit = 40

// ErrStepLimit aborts a turn that exceeded the step cap.
var ErrStepLimit = errors.New("step limit exceeded")

// eventBuffer sizes the stream channel so a turn never stalls on a
// slow consumer until it is well past the step cap.
const eventBuffer = 128

// TurnConfig identifies whose turn this is.
type TurnConfig struct {
	UserID         string
	ConversationID string

	// FreshThread discards any checkpointed state before the turn runs.
	FreshThread bool
}

// Config assembles an executor.
type Config struct {
	Swarm        *swarm.Swarm
	Checkpointer thread.Checkpointer

	// SessionLog receives a mirror of every emitted event. Nil disables
	// session recording.
	SessionLog *sessionlog.Writer

	// StepLimit caps steps per turn. Zero means DefaultStepLimit.
	StepLimit int

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Executor runs turns against one swarm. Safe for sequential turns;
// concurrent turns on distinct threads are fine, concurrent turns on
// the same thread are not coordinated.
type Executor struct {
	swarm        *swarm.Swarm
	checkpointer thread.Checkpointer
	sessionLog   *sessionlog.Writer
	stepLimit    int
	logger       *observability.Logger
	metrics      *observability.Metrics
	tracer       *observability.Tracer
}

// NewExecutor validates the wiring. A nil checkpointer falls back to
// process-local thread state.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Swarm == nil {
		return nil, errors.New("workflow needs a swarm")
	}
	cp := cfg.Checkpointer
	if cp == nil {
		cp = thread.NewMemoryCheckpointer()
	}
	limit := cfg.StepLimit
	if limit <= 0 {
		limit = DefaultStepLimit
	}
	return &Executor{
		swarm:        cfg.Swarm,
		checkpointer: cp,
		sessionLog:   cfg.SessionLog,
		stepLimit:    limit,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
	}, nil
}

// Execute runs one turn and streams events until the channel closes.
// The stream ends with workflow_complete on success, with an error
// event on failure, and with nothing at all when ctx is cancelled.
func (e *Executor) Execute(ctx context.Context, userInput string, turn TurnConfig) (<-chan models.Event, error) {
	if strings.TrimSpace(userInput) == "" {
		return nil, errors.New("empty user input")
	}
	if turn.UserID == "" {
		turn.UserID = thread.UserID()
	}
	if turn.ConversationID == "" {
		turn.ConversationID = thread.DefaultConversation
	}

	ch := make(chan models.Event, eventBuffer)
	go e.run(ctx, userInput, turn, ch)
	return ch, nil
}

func (e *Executor) run(ctx context.Context, userInput string, turn TurnConfig, ch chan<- models.Event) {
	defer close(ch)

	threadID := thread.ThreadID(turn.UserID, turn.ConversationID)
	ctx = observability.WithUserID(ctx, turn.UserID)
	ctx = observability.WithThreadID(ctx, threadID)
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.TraceTurn(ctx, threadID)
		defer span.End()
	}

	state := e.loadState(ctx, threadID, turn.FreshThread)

	proc := message.NewProcessor()
	emit := func(raw *models.Message) {
		cm := proc.Process(raw)
		if proc.IsDuplicate(cm) {
			return
		}
		proc.MarkSeen(cm)
		select {
		case ch <- models.MessageEvent(cm):
		case <-ctx.Done():
			return
		}
		e.mirror(cm)
	}

	userMsg := &models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   userInput,
		CreatedAt: time.Now().UTC(),
	}
	history := make([]*models.Message, 0, len(state.Messages)+1)
	history = append(history, state.Messages...)
	history = append(history, userMsg)
	emit(userMsg)

	steps := 0
	hooks := swarm.RunHooks{
		OnStep: func(ctx context.Context) error {
			steps++
			if steps > e.stepLimit {
				return ErrStepLimit
			}
			return nil
		},
		OnMessage: func(msg *models.Message) {
			if msg.Role == models.RoleTool {
				steps++
			}
			emit(msg)
		},
	}

	res, err := e.swarm.Run(ctx, state.CurrentAgent, history, hooks)
	if err != nil {
		e.finishFailed(ctx, ch, err, steps)
		return
	}

	state.Messages = append(state.Messages, userMsg)
	state.Messages = append(state.Messages, res.Messages...)
	state.CurrentAgent = res.FinalAgent
	state.StepCount += steps
	state.UpdatedAt = time.Now().UTC()
	if err := e.checkpointer.Save(ctx, threadID, state); err != nil {
		// Storage trouble never fails a finished turn.
		if e.logger != nil {
			e.logger.Error(ctx, "thread checkpoint failed", "thread_id", threadID, "error", err)
		}
		if e.metrics != nil {
			e.metrics.RecordError("checkpointer", "save")
		}
	}
	e.flushLog(ctx)

	select {
	case ch <- models.CompleteEvent(steps):
	case <-ctx.Done():
		return
	}
	if e.metrics != nil {
		e.metrics.RecordTurn("ok", steps)
	}
	if e.logger != nil {
		e.logger.Info(ctx, "turn complete",
			"thread_id", threadID,
			"agent", res.FinalAgent,
			"steps", steps)
	}
}

// finishFailed ends a turn that did not complete. Cancellation is
// silent: no state is persisted and no error event is emitted, the
// stream just closes. Everything else surfaces one error event.
func (e *Executor) finishFailed(ctx context.Context, ch chan<- models.Event, err error, steps int) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		if e.metrics != nil {
			e.metrics.RecordTurn("cancelled", steps)
		}
		if e.logger != nil {
			e.logger.Info(ctx, "turn cancelled", "steps", steps)
		}
		return
	}

	reason := "workflow"
	msg := err.Error()
	if errors.Is(err, ErrStepLimit) {
		reason = "step_limit"
		msg = ErrStepLimit.Error()
	}

	e.flushLog(ctx)
	select {
	case ch <- models.ErrorEvent(msg):
	default:
	}
	if e.metrics != nil {
		e.metrics.RecordError("workflow", reason)
		e.metrics.RecordTurn("error", steps)
	}
	if e.logger != nil {
		e.logger.Error(ctx, "turn failed", "error", err, "steps", steps)
	}
}

// loadState restores the thread checkpoint, or starts clean when there
// is none, when FreshThread asked for a reset, or when storage fails.
func (e *Executor) loadState(ctx context.Context, threadID string, fresh bool) *thread.State {
	if fresh {
		if err := e.checkpointer.Delete(ctx, threadID); err != nil && e.logger != nil {
			e.logger.Error(ctx, "thread reset failed", "thread_id", threadID, "error", err)
		}
		return thread.NewState(threadID)
	}

	state, err := e.checkpointer.Load(ctx, threadID)
	if err != nil {
		if e.logger != nil {
			e.logger.Error(ctx, "thread load failed, starting clean", "thread_id", threadID, "error", err)
		}
		if e.metrics != nil {
			e.metrics.RecordError("checkpointer", "load")
		}
		return thread.NewState(threadID)
	}
	if state == nil {
		return thread.NewState(threadID)
	}
	return state
}

// mirror appends an emitted event to the session log. Shell-style tool
// messages carrying a rendered command produce a tool_command entry
// before their tool_output.
func (e *Executor) mirror(cm *models.ChatMessage) {
	if e.sessionLog == nil {
		return
	}
	raw := cm.Raw
	switch cm.Kind {
	case models.MessageKindUser:
		e.sessionLog.RecordUserInput(cm.Content)
	case models.MessageKindAI:
		e.sessionLog.RecordAgentResponse(cm.AgentName, cm.Content, raw.ToolCallNames())
	case models.MessageKindTool:
		if raw.Command != "" {
			e.sessionLog.RecordToolCommand(raw.ToolName, raw.Command)
		}
		e.sessionLog.RecordToolOutput(raw.ToolName, cm.Content)
	}
}

func (e *Executor) flushLog(ctx context.Context) {
	if e.sessionLog == nil {
		return
	}
	// The writer reports its own failures; a lost log never fails the turn.
	_ = e.sessionLog.Flush(ctx)
}
