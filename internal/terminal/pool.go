package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redcellhq/redcell/internal/observability"
)

// Terminal error sentinels. Tool wrappers turn these into error-flavored
// tool results so the workflow keeps going.
var (
	// ErrUnknownSession is returned for operations against a session ID
	// the pool never created (or already killed).
	ErrUnknownSession = errors.New("unknown terminal session")

	// ErrSessionCreate is returned when tmux refuses to create a session.
	ErrSessionCreate = errors.New("failed to create terminal session")

	// ErrServerUnreachable is returned by Client when the remote tool
	// server cannot be reached. Shell tools retry once on it.
	ErrServerUnreachable = errors.New("terminal tool server unreachable")
)

// SessionInfo describes one live tmux session.
type SessionInfo struct {
	// ID is the session name (8 hex chars for pool-created sessions).
	ID string `json:"id"`

	// Detail is the remainder of the tmux list-sessions line: window
	// count and creation time.
	Detail string `json:"detail,omitempty"`
}

// SessionAPI is the terminal surface agents bind tools to. Pool
// implements it in-process; Client implements it against a remote tool
// server.
type SessionAPI interface {
	CreateSession(ctx context.Context) (string, error)
	Exec(ctx context.Context, sessionID, command string) (string, error)
	Sessions(ctx context.Context) ([]SessionInfo, error)
	KillSession(ctx context.Context, sessionID string) error
	KillServer(ctx context.Context) error
}

// Pool manages named tmux sessions through a Runner.
//
// Command execution synchronizes on tmux wait-for channels: the command
// is wrapped in a subshell that signals `done-<session>` when it exits,
// and the pool blocks on that channel before capturing the pane. No
// sleep polling is involved.
//
// Executions against distinct sessions run in parallel; executions
// against the same session serialize on a per-session mutex.
type Pool struct {
	runner      Runner
	logger      *observability.Logger
	metrics     *observability.Metrics
	execTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*poolSession
}

type poolSession struct {
	mu sync.Mutex
}

// NewPool creates a session pool on top of a runner. execTimeout bounds
// a single command execution; zero means no bound beyond the caller's
// context.
func NewPool(runner Runner, logger *observability.Logger, metrics *observability.Metrics, execTimeout time.Duration) *Pool {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Pool{
		runner:      runner,
		logger:      logger,
		metrics:     metrics,
		execTimeout: execTimeout,
		sessions:    make(map[string]*poolSession),
	}
}

// CreateSession starts a detached tmux session and returns its ID.
func (p *Pool) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()[:8]

	if _, err := p.runner.Run(ctx, "tmux", "new-session", "-d", "-s", id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}

	p.mu.Lock()
	p.sessions[id] = &poolSession{}
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.TerminalSessions.Inc()
	}
	p.logger.Info(ctx, "terminal session created", "session_id", id)
	return id, nil
}

// Exec runs a command inside an existing session and returns the pane
// contents once the command has finished.
//
// The command is wrapped as `(<command>); tmux wait-for -S done-<id>`
// so completion is signalled through tmux rather than guessed at.
func (p *Pool) Exec(ctx context.Context, sessionID, command string) (string, error) {
	p.mu.RLock()
	sess := p.sessions[sessionID]
	p.mu.RUnlock()
	if sess == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownSession, sessionID)
	}

	// Serialize executions against the same session; the pane is shared
	// state and interleaved send-keys would corrupt both captures.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if p.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.execTimeout)
		defer cancel()
	}

	channel := "done-" + sessionID
	composed := fmt.Sprintf("(%s); tmux wait-for -S %s", command, channel)

	if _, err := p.runner.Run(ctx, "tmux", "send-keys", "-t", sessionID, composed, "Enter"); err != nil {
		return "", fmt.Errorf("send command to session %s: %w", sessionID, err)
	}

	// Blocks until the subshell signals the channel.
	if _, err := p.runner.Run(ctx, "tmux", "wait-for", channel); err != nil {
		return "", fmt.Errorf("wait for command in session %s: %w", sessionID, err)
	}

	out, err := p.runner.Run(ctx, "tmux", "capture-pane", "-p", "-t", sessionID)
	if err != nil {
		return "", fmt.Errorf("capture session %s: %w", sessionID, err)
	}
	return strings.TrimSpace(out), nil
}

// Sessions lists live tmux sessions. A tmux server with no sessions (or
// no server at all) yields an empty list, not an error.
func (p *Pool) Sessions(ctx context.Context) ([]SessionInfo, error) {
	out, err := p.runner.Run(ctx, "tmux", "list-sessions")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// tmux exits non-zero when no server is running; that is the
		// empty pool, not a failure.
		msg := err.Error()
		if strings.Contains(msg, "no server running") || strings.Contains(msg, "error connecting to") {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var infos []SessionInfo
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, detail, _ := strings.Cut(line, ":")
		infos = append(infos, SessionInfo{
			ID:     strings.TrimSpace(id),
			Detail: strings.TrimSpace(detail),
		})
	}
	return infos, nil
}

// KillSession terminates a session. Killing a session that no longer
// exists succeeds; kill is idempotent.
func (p *Pool) KillSession(ctx context.Context, sessionID string) error {
	if _, err := p.runner.Run(ctx, "tmux", "kill-session", "-t", sessionID); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Debug(ctx, "kill-session ignored", "session_id", sessionID, "error", err)
	}

	p.mu.Lock()
	_, tracked := p.sessions[sessionID]
	delete(p.sessions, sessionID)
	p.mu.Unlock()

	if tracked && p.metrics != nil {
		p.metrics.TerminalSessions.Dec()
	}
	p.logger.Info(ctx, "terminal session killed", "session_id", sessionID)
	return nil
}

// KillServer tears down the tmux server and every session with it.
func (p *Pool) KillServer(ctx context.Context) error {
	if _, err := p.runner.Run(ctx, "tmux", "kill-server"); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Debug(ctx, "kill-server ignored", "error", err)
	}

	p.mu.Lock()
	n := len(p.sessions)
	p.sessions = make(map[string]*poolSession)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.TerminalSessions.Sub(float64(n))
	}
	p.logger.Info(ctx, "tmux server killed", "sessions_dropped", n)
	return nil
}

// SessionExists reports whether the pool is tracking the session.
func (p *Pool) SessionExists(sessionID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.sessions[sessionID]
	return ok
}

// RunCommand executes a one-shot command through `sh -c`, outside any
// tmux session. Security tool wrappers use this path; persistent state
// belongs in sessions.
func (p *Pool) RunCommand(ctx context.Context, command string) (string, error) {
	if p.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.execTimeout)
		defer cancel()
	}
	out, err := p.runner.Run(ctx, "sh", "-c", command)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
