// Package streamer runs the two daemon goroutines spec section 5 names:
// a container log tailer and a container event tailer. Both are
// fire-and-forget best-effort, never aborting the control loop that started
// them: a failure to open the output file or the backend stream is logged
// through internal/observability and the goroutine returns, and later write
// errors are logged and skipped. No error record is written into the
// streamer's own file.
package streamer

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"warden/internal/observability"
	"warden/internal/sandbox"
	"warden/internal/trace"
)

// LogStreamer tails a sandbox's merged stdout/stderr into container.log.
type LogStreamer struct {
	Backend sandbox.Backend
	Sandbox *sandbox.Sandbox
	WorkDir string
	Trace   *trace.Recorder
}

// Run blocks copying the backend's log stream into container.log until ctx
// is canceled or the stream ends. It is meant to be started with `go`.
func (s *LogStreamer) Run(ctx context.Context) {
	log := observability.LoggerWithTrace(ctx)

	f, err := os.OpenFile(filepath.Join(s.WorkDir, "container.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Error().Err(err).Msg("log streamer: open container.log failed")
		return
	}
	defer f.Close()

	rc, err := s.Backend.LogsStream(ctx, s.Sandbox)
	if err != nil {
		log.Error().Err(err).Msg("log streamer: LogsStream failed")
		return
	}
	defer rc.Close()

	if _, err := io.Copy(f, rc); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("log streamer: copy ended with error")
	}
}

// EventStreamer tails a sandbox's container-event subscription into
// container_events.log, mirroring each event into the shared trace file.
type EventStreamer struct {
	Backend sandbox.Backend
	Sandbox *sandbox.Sandbox
	WorkDir string
	Trace   *trace.Recorder
}

// Run blocks consuming events until ctx is canceled or the channel closes.
func (s *EventStreamer) Run(ctx context.Context) {
	log := observability.LoggerWithTrace(ctx)

	f, err := os.OpenFile(filepath.Join(s.WorkDir, "container_events.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Error().Err(err).Msg("event streamer: open container_events.log failed")
		return
	}
	defer f.Close()

	events, err := s.Backend.EventsStream(ctx, s.Sandbox)
	if err != nil {
		log.Error().Err(err).Msg("event streamer: EventsStream failed")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.TS == "" {
				ev.TS = time.Now().UTC().Format(time.RFC3339Nano)
			}
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := f.Write(append(b, '\n')); err != nil {
				log.Warn().Err(err).Msg("event streamer: write failed")
			}
			s.Trace.Emit(trace.KindContainerEvent, -1, map[string]any{
				"event_type": ev.Type,
				"data":       ev.Data,
			})
		}
	}
}
