package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"warden/internal/observability"
)

// tailRegistry watches baseDir with a single fsnotify.Watcher (grounded on
// the teacher's skills.Manager watch-loop: one watcher and an events/errors
// select loop) and, on every write event, fans the newly appended lines of
// an artifact file out to every subscriber currently tailing it, without
// debouncing.
type tailRegistry struct {
	baseDir string

	mu        sync.Mutex
	offsets   map[string]int64
	listeners map[string][]chan string

	watchOnce sync.Once
	watcher   *fsnotify.Watcher
}

func newTailRegistry(baseDir string) *tailRegistry {
	return &tailRegistry{
		baseDir:   baseDir,
		offsets:   map[string]int64{},
		listeners: map[string][]chan string{},
	}
}

// subscribe returns a channel of newly appended lines for rel (a path
// relative to baseDir), starting the shared watcher on first use.
func (t *tailRegistry) subscribe(ctx context.Context, rel string) (<-chan string, error) {
	t.ensureWatcher()

	ch := make(chan string, 64)
	t.mu.Lock()
	if _, ok := t.offsets[rel]; !ok {
		t.offsets[rel] = t.currentSize(rel)
	}
	t.listeners[rel] = append(t.listeners[rel], ch)
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		defer t.mu.Unlock()
		subs := t.listeners[rel]
		for i, s := range subs {
			if s == ch {
				t.listeners[rel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (t *tailRegistry) currentSize(rel string) int64 {
	info, err := os.Stat(filepath.Join(t.baseDir, rel))
	if err != nil {
		return 0
	}
	return info.Size()
}

func (t *tailRegistry) ensureWatcher() {
	t.watchOnce.Do(func() {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			observability.LoggerWithTrace(context.Background()).Error().Err(err).Msg("dashboard: fsnotify init failed")
			return
		}
		if err := w.Add(t.baseDir); err != nil {
			observability.LoggerWithTrace(context.Background()).Error().Err(err).Str("dir", t.baseDir).Msg("dashboard: watch add failed")
			return
		}
		t.watcher = w
		go t.watchLoop()
	})
}

func (t *tailRegistry) watchLoop() {
	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t.dispatch(filepath.Base(event.Name))
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			observability.LoggerWithTrace(context.Background()).Warn().Err(err).Msg("dashboard: watch error")
		}
	}
}

// dispatch reads whatever bytes were appended to name since the last known
// offset and fans each new line out to every subscriber.
func (t *tailRegistry) dispatch(name string) {
	t.mu.Lock()
	subs := append([]chan string(nil), t.listeners[name]...)
	offset := t.offsets[name]
	t.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	f, err := os.Open(filepath.Join(t.baseDir, name))
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var read int64
	for scanner.Scan() {
		line := scanner.Bytes()
		read += int64(len(line)) + 1
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		text := string(line)
		for _, ch := range subs {
			select {
			case ch <- text:
			default:
			}
		}
	}

	t.mu.Lock()
	t.offsets[name] = offset + read
	t.mu.Unlock()
}
