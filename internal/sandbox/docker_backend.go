package sandbox

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"warden/internal/observability"
)

// DockerBackend implements Backend against a real Docker daemon via
// testcontainers-go — the container-lifecycle library the pack's tarsy
// service depends on for disposable Postgres test containers. The shape
// here is the same "start a container, exec into it, tear it down" flow,
// generalized from a single-purpose database image to an arbitrary sandbox
// image running an agent task.
type DockerBackend struct {
	Image string

	mu      sync.Mutex
	handles map[string]*dockerHandle
}

type dockerHandle struct {
	container testcontainers.Container
	events    chan Event
}

// NewDockerBackend returns a Backend that launches containers from image.
func NewDockerBackend(image string) *DockerBackend {
	return &DockerBackend{Image: image, handles: make(map[string]*dockerHandle)}
}

// Start launches a container from b.Image, bind-mounts workDir at /work
// (rw) and inputDir at /input (ro) when present, and provisions
// /work/.venv via a bootstrap exec.
func (b *DockerBackend) Start(ctx context.Context, inputDir, workDir string, networkEnabled bool) (*Sandbox, error) {
	log := observability.LoggerWithTrace(ctx)

	containerMounts := testcontainers.ContainerMounts{
		testcontainers.BindMount(workDir, "/work"),
	}
	if inputDir != "" {
		containerMounts = append(containerMounts, testcontainers.BindMount(inputDir, "/input"))
	}

	req := testcontainers.ContainerRequest{
		Image:      b.Image,
		Cmd:        []string{"sleep", "infinity"},
		Mounts:     containerMounts,
		WaitingFor: wait.ForExec([]string{"true"}).WithStartupTimeout(30 * time.Second),
	}
	if !networkEnabled {
		req.NetworkMode = "none"
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start sandbox container: %w", err)
	}

	id := uuid.NewString()
	handle := &dockerHandle{container: container, events: make(chan Event, 64)}
	b.mu.Lock()
	b.handles[id] = handle
	b.mu.Unlock()

	handle.events <- Event{Type: "start", TS: nowRFC3339(), Data: map[string]any{"sandbox_id": id}}

	sb := &Sandbox{ID: id, WorkDir: workDir, InputDir: inputDir, NetworkEnabled: networkEnabled, Cwd: "/work"}

	if _, _, err := b.rawExec(ctx, handle, "python3 -m venv /work/.venv || true", 60); err != nil {
		log.Warn().Err(err).Msg("venv bootstrap failed")
	}

	return sb, nil
}

// Exec wraps the session prologue and shells out through container.Exec,
// honoring a hard per-call timeout.
func (b *DockerBackend) Exec(ctx context.Context, sb *Sandbox, argv []string, timeoutSeconds int) (ExecResult, error) {
	handle, err := b.handleFor(sb)
	if err != nil {
		return ExecResult{}, err
	}

	cmd := joinArgv(argv)
	if denied, pattern := IsDenied(cmd); denied {
		return ExecResult{ExitCode: 126, Output: []byte("blocked by deny-pattern: " + pattern)}, nil
	}
	wrapped := sb.BuildWrapper(cmd)

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	exitCode, output, err := b.rawExec(execCtx, handle, wrapped, timeoutSeconds)
	handle.events <- Event{Type: "exec", TS: nowRFC3339(), Data: map[string]any{
		"sandbox_id": sb.ID, "exit_code": exitCode, "timeout_s": timeoutSeconds,
	}}
	if err != nil && execCtx.Err() != nil {
		return ExecResult{ExitCode: 124, Output: output}, nil
	}
	return ExecResult{ExitCode: exitCode, Output: output}, err
}

func (b *DockerBackend) rawExec(ctx context.Context, handle *dockerHandle, cmd string, timeoutSeconds int) (int, []byte, error) {
	code, reader, err := handle.container.Exec(ctx, []string{"sh", "-c", cmd})
	if err != nil {
		return -1, nil, fmt.Errorf("exec in sandbox: %w", err)
	}
	out, readErr := io.ReadAll(reader)
	if readErr != nil && err == nil {
		err = readErr
	}
	return code, out, nil
}

// LogsStream exposes the container's merged stdout/stderr log reader.
func (b *DockerBackend) LogsStream(ctx context.Context, sb *Sandbox) (io.ReadCloser, error) {
	handle, err := b.handleFor(sb)
	if err != nil {
		return nil, err
	}
	return handle.container.Logs(ctx)
}

// EventsStream returns the synthetic start/exec/stop event channel for sb.
func (b *DockerBackend) EventsStream(ctx context.Context, sb *Sandbox) (<-chan Event, error) {
	handle, err := b.handleFor(sb)
	if err != nil {
		return nil, err
	}
	return handle.events, nil
}

// Stop terminates and removes the container backing sb.
func (b *DockerBackend) Stop(ctx context.Context, sb *Sandbox) error {
	handle, err := b.handleFor(sb)
	if err != nil {
		return nil // already stopped or never started; nil-safe per design notes
	}
	handle.events <- Event{Type: "stop", TS: nowRFC3339(), Data: map[string]any{"sandbox_id": sb.ID}}

	b.mu.Lock()
	delete(b.handles, sb.ID)
	b.mu.Unlock()

	close(handle.events)
	return handle.container.Terminate(ctx)
}

func (b *DockerBackend) handleFor(sb *Sandbox) (*dockerHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.handles[sb.ID]
	if !ok {
		return nil, fmt.Errorf("no running container for sandbox %q", sb.ID)
	}
	return h, nil
}

func joinArgv(argv []string) string {
	if len(argv) == 1 {
		return argv[0]
	}
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
