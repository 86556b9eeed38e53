package dashboard

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleListArtifacts(t *testing.T) {
	srv := NewServer(t.TempDir())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/artifacts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Artifacts []string `json:"artifacts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Artifacts, "notes")
	assert.Contains(t, body.Artifacts, "trace")
	assert.Contains(t, body.Artifacts, "session")
}

func TestHandleSnapshotReturnsFileContents(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("hello"), 0o644))

	srv := NewServer(dir)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/artifacts/notes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 5)
	_, err = resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestHandleSnapshotMissingFileReturnsEmptyOK(t *testing.T) {
	srv := NewServer(t.TempDir())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/artifacts/evidence")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleSnapshotUnknownNameReturnsNotFound(t *testing.T) {
	srv := NewServer(t.TempDir())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/artifacts/bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleRecordActionAppendsToSessionLog(t *testing.T) {
	dir := t.TempDir()
	srv := NewServer(dir)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body := strings.NewReader(`{"action":"pause"}`)
	resp, err := http.Post(ts.URL+"/api/v1/actions", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	b, err := os.ReadFile(filepath.Join(dir, "session.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"action":"pause"`)
	assert.Contains(t, string(b), `"ts":`)
}

func TestHandleStreamPushesAppendedLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte(""), 0o644))

	srv := NewServer(dir)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/artifacts/notes/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the stream's subscribe call time to register before writing.
	time.Sleep(100 * time.Millisecond)

	f, err := os.OpenFile(filepath.Join(dir, "notes.md"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("line one\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	scanner := bufio.NewScanner(resp.Body)
	found := make(chan struct{})
	go func() {
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), "data: line one") {
				close(found)
				return
			}
		}
	}()

	select {
	case <-found:
	case <-time.After(5 * time.Second):
		t.Fatal("did not observe appended line over SSE stream")
	}
}
