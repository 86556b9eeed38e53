package verifier

import (
	"os"
	"path/filepath"
	"strings"

	"warden/internal/jsonl"
)

const (
	traceSummaryMaxChars    = 6000
	notesTailMaxChars       = 2000
	evidenceTailMaxChars    = 3000
	evidenceTailMaxEntries  = 40
	traceSummaryMaxEntries  = 200
)

// Summary is the compact context the decompose and judge steps read,
// assembled per spec section 4.4 step 1.
type Summary struct {
	Trace    string
	Notes    string
	Evidence string
}

// Summarize reads the last 200 trace events, the notes.md tail, and the
// evidence.jsonl tail from workDir, clipping each to its budget.
func Summarize(workDir string) (Summary, error) {
	traceLines, err := jsonl.TailLines(filepath.Join(workDir, "trace.jsonl"), traceSummaryMaxEntries)
	if err != nil {
		return Summary{}, err
	}
	evLines, err := jsonl.TailLines(filepath.Join(workDir, "evidence.jsonl"), evidenceTailMaxEntries)
	if err != nil {
		return Summary{}, err
	}

	notes, _ := os.ReadFile(filepath.Join(workDir, "notes.md"))

	return Summary{
		Trace:    clipTail(strings.Join(traceLines, "\n"), traceSummaryMaxChars),
		Notes:    clipTail(string(notes), notesTailMaxChars),
		Evidence: clipTail(strings.Join(evLines, "\n"), evidenceTailMaxChars),
	}, nil
}

// clipTail keeps at most max trailing characters of s.
func clipTail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
