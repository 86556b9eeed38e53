package loop

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// NotesWriter owns notes.md: append-only after its initial reset (spec
// section 3's invariant). The policy engine rejects overwrite-classified
// commands before they ever reach here; this type only ever appends.
type NotesWriter struct {
	mu   sync.Mutex
	path string
}

// NewNotesWriter resets (creates or truncates) notes.md under workDir with
// a header, the one permitted non-append write for the file's whole
// lifetime.
func NewNotesWriter(workDir string) (*NotesWriter, error) {
	path := filepath.Join(workDir, "notes.md")
	if err := os.WriteFile(path, []byte("# Task Notes\n\n"), 0o644); err != nil {
		return nil, fmt.Errorf("reset notes.md: %w", err)
	}
	return &NotesWriter{path: path}, nil
}

// AppendStep appends one TOOL/ARGS/OBS/EVIDENCE_ID record (spec section 4.1
// step 7).
func (n *NotesWriter) AppendStep(step int, tool, args, obs, evidenceID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	block := fmt.Sprintf("\n## Step %d\nTOOL: %s\nARGS: %s\nOBS: %s\nEVIDENCE_ID: %s\n", step, tool, args, obs, evidenceID)
	f, err := os.OpenFile(n.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(block)
	return err
}

// ReadTail returns the last maxChars characters of notes.md.
func (n *NotesWriter) ReadTail(maxChars int) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	b, err := os.ReadFile(n.path)
	if err != nil {
		return ""
	}
	s := string(b)
	if len(s) <= maxChars {
		return s
	}
	return s[len(s)-maxChars:]
}

// Size reports the current byte length of notes.md, used to assert the
// monotonic-non-decreasing invariant in tests.
func (n *NotesWriter) Size() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	fi, err := os.Stat(n.path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
