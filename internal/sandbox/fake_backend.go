package sandbox

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FakeBackend is an in-memory Backend double, grounded on the teacher's
// testhelpers fake-provider pattern, so internal/loop and internal/verifier
// tests never touch Docker.
type FakeBackend struct {
	mu sync.Mutex

	// Responses maps a command string to a canned result. Commands not
	// found here fall back to DefaultResult.
	Responses     map[string]ExecResult
	DefaultResult ExecResult

	// Calls records every wrapped command string Exec received, in order.
	Calls []string

	started bool
	stopped bool
	events  chan Event
}

// NewFakeBackend returns a FakeBackend with a zero-exit-code default result.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Responses:     map[string]ExecResult{},
		DefaultResult: ExecResult{ExitCode: 0, Output: []byte("")},
		events:        make(chan Event, 64),
	}
}

func (f *FakeBackend) Start(ctx context.Context, inputDir, workDir string, networkEnabled bool) (*Sandbox, error) {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	sb := &Sandbox{ID: uuid.NewString(), WorkDir: workDir, InputDir: inputDir, NetworkEnabled: networkEnabled, Cwd: "/work"}
	f.events <- Event{Type: "start"}
	return sb, nil
}

func (f *FakeBackend) Exec(ctx context.Context, sb *Sandbox, argv []string, timeoutSeconds int) (ExecResult, error) {
	cmd := strings.Join(argv, " ")
	if denied, pattern := IsDenied(cmd); denied {
		return ExecResult{ExitCode: 126, Output: []byte("blocked by deny-pattern: " + pattern)}, nil
	}
	wrapped := sb.BuildWrapper(cmd)

	f.mu.Lock()
	f.Calls = append(f.Calls, wrapped)
	result, ok := f.Responses[cmd]
	if !ok {
		result = f.DefaultResult
	}
	f.mu.Unlock()

	f.events <- Event{Type: "exec", Data: map[string]any{"exit_code": result.ExitCode}}
	return result, nil
}

func (f *FakeBackend) LogsStream(ctx context.Context, sb *Sandbox) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *FakeBackend) EventsStream(ctx context.Context, sb *Sandbox) (<-chan Event, error) {
	return f.events, nil
}

func (f *FakeBackend) Stop(ctx context.Context, sb *Sandbox) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return nil
	}
	f.stopped = true
	close(f.events)
	return nil
}
