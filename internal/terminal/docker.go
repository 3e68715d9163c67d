package terminal

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerRunner executes commands inside a running container through the
// Docker Engine API. The container is expected to carry tmux and the
// security tooling (the stock image is a Kali derivative named
// "attacker").
type DockerRunner struct {
	cli       *client.Client
	container string
}

// NewDockerRunner connects to the Docker daemon from the environment
// (DOCKER_HOST et al) and targets the named container.
func NewDockerRunner(containerName string) (*DockerRunner, error) {
	if strings.TrimSpace(containerName) == "" {
		return nil, fmt.Errorf("container name is required")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &DockerRunner{cli: cli, container: containerName}, nil
}

// Run implements Runner via docker exec: create an exec instance,
// attach, demux the stream, then inspect for the exit code.
func (r *DockerRunner) Run(ctx context.Context, argv ...string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}

	created, err := r.cli.ContainerExecCreate(ctx, r.container, container.ExecOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("exec create in %s: %w", r.container, err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", fmt.Errorf("exec attach: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		// Docker multiplexes stdout/stderr over one stream.
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		done <- copyErr
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("exec read: %w", err)
		}
	}

	inspect, err := r.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return "", fmt.Errorf("exec inspect: %w", err)
	}
	if inspect.ExitCode != 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("%s exited %d: %s", argv[0], inspect.ExitCode, msg)
	}
	return stdout.String(), nil
}

// Close releases the Docker client connection.
func (r *DockerRunner) Close() error {
	return r.cli.Close()
}
