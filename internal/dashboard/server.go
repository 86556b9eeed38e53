// Package dashboard implements the thin tail-and-serve layer over a task's
// artifact files (spec section 4.7): snapshot reads over plain GET, live
// tails over Server-Sent Events, and a write-back endpoint for
// dashboard-driven control actions recorded to session.log.
package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"warden/internal/jsonl"
	"warden/internal/observability"
)

// artifacts is the fixed set of files spec section 6's artifact table
// names, keyed by the short name used in the dashboard's URL paths.
var artifacts = map[string]string{
	"notes":           "notes.md",
	"trace":           "trace.jsonl",
	"evidence":        "evidence.jsonl",
	"moves":           "move_ledger.jsonl",
	"queries":         "query_ledger.jsonl",
	"container_log":   "container.log",
	"container_events": "container_events.log",
	"session":         "session.log",
}

// Server exposes one task's work directory as a read-mostly HTTP API,
// grounded on the teacher's httpapi.Server: a bare *http.ServeMux wired up
// by registerRoutes, method-pattern routes, and the same
// respondJSON/respondError helper shape.
type Server struct {
	baseDir string
	mux     *http.ServeMux
	tails   *tailRegistry
}

// NewServer creates a dashboard Server rooted at baseDir, the work
// directory of the task being observed.
func NewServer(baseDir string) *Server {
	s := &Server{baseDir: baseDir, mux: http.NewServeMux(), tails: newTailRegistry(baseDir)}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/artifacts", s.handleListArtifacts)
	s.mux.HandleFunc("GET /api/v1/artifacts/{name}", s.handleSnapshot)
	s.mux.HandleFunc("GET /api/v1/artifacts/{name}/stream", s.handleStream)
	s.mux.HandleFunc("POST /api/v1/actions", s.handleRecordAction)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	respondJSON(w, http.StatusOK, map[string]any{"artifacts": names})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rel, ok := artifacts[r.PathValue("name")]
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Errorf("unknown artifact %q", r.PathValue("name")))
		return
	}
	path := filepath.Join(s.baseDir, rel)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			w.WriteHeader(http.StatusOK)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(b)
}

// handleStream tails an artifact file over Server-Sent Events, pushing each
// new line as it is appended (spec section 4.7).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rel, ok := artifacts[r.PathValue("name")]
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Errorf("unknown artifact %q", r.PathValue("name")))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	lines, err := s.tails.subscribe(ctx, rel)
	if err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Str("artifact", rel).Msg("dashboard: tail subscribe failed")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}
}

// handleRecordAction appends one dashboard-initiated control action to
// session.log (spec section 6's artifact table entry for that file).
func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	writer, err := jsonl.Open(filepath.Join(s.baseDir, "session.log"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	defer writer.Close()
	if err := writer.Append(payload); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusAccepted, payload)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}
