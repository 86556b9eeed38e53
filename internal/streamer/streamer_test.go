package streamer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"warden/internal/sandbox"
	"warden/internal/trace"
)

func TestLogStreamerCreatesContainerLog(t *testing.T) {
	dir := t.TempDir()
	backend := sandbox.NewFakeBackend()
	sb, err := backend.Start(context.Background(), "", dir, false)
	require.NoError(t, err)

	s := &LogStreamer{Backend: backend, Sandbox: sb, WorkDir: dir}
	s.Run(context.Background())

	_, err = os.Stat(filepath.Join(dir, "container.log"))
	require.NoError(t, err)
}

func TestEventStreamerWritesEventsAndTraces(t *testing.T) {
	dir := t.TempDir()
	backend := sandbox.NewFakeBackend()
	sb, err := backend.Start(context.Background(), "", dir, false)
	require.NoError(t, err)

	tr, err := trace.Open(dir)
	require.NoError(t, err)
	defer tr.Close()

	s := &EventStreamer{Backend: backend, Sandbox: sb, WorkDir: dir, Trace: tr}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	_, err = backend.Exec(ctx, sb, []string{"echo", "hi"}, 5)
	require.NoError(t, err)

	require.NoError(t, backend.Stop(ctx, sb))
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event streamer did not exit")
	}

	b, err := os.ReadFile(filepath.Join(dir, "container_events.log"))
	require.NoError(t, err)
	require.NotEmpty(t, b)
}
