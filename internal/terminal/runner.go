// Package terminal provides the tmux session pool that agents run
// security tooling in. A Runner reaches the tmux server either on the
// local host or inside a Docker container; the Pool layers named
// sessions, wait-for synchronization, and per-session serialization on
// top. The pool is exposed to out-of-process consumers as MCP tools
// over streamable HTTP (see Server) and consumed remotely via Client.
package terminal

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command argv where the tmux server lives.
//
// Implementations must be safe for concurrent use; the pool issues
// runs from multiple sessions in parallel.
type Runner interface {
	// Run executes argv and returns its stdout. A non-zero exit is an
	// error carrying the command's stderr.
	Run(ctx context.Context, argv ...string) (string, error)
}

// LocalRunner runs commands directly on the host with os/exec. It is
// the containerless development path; production engagements point the
// pool at a hardened container via DockerRunner.
type LocalRunner struct{}

// NewLocalRunner returns a Runner backed by the local host.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run implements Runner.
func (r *LocalRunner) Run(ctx context.Context, argv ...string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s: %s", argv[0], msg)
	}
	return stdout.String(), nil
}
