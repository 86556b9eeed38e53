package ledger

import (
	"fmt"
	"path/filepath"
	"sync"

	"warden/internal/jsonl"
)

// Ledgers bundles the three append-only JSONL files a task produces, plus
// the monotonic id counters and the evidence-id set used to validate
// EVIDENCE_USED: citations (spec section 3).
type Ledgers struct {
	evidence *jsonl.Writer
	move     *jsonl.Writer
	query    *jsonl.Writer

	mu          sync.Mutex
	evidenceSeq int
	moveSeq     int
	querySeq    int
	evidenceIDs map[string]struct{}
}

// NewLedgers opens (creating if needed) evidence.jsonl, move_ledger.jsonl,
// and query_ledger.jsonl under workDir.
func NewLedgers(workDir string) (*Ledgers, error) {
	ev, err := jsonl.Open(filepath.Join(workDir, "evidence.jsonl"))
	if err != nil {
		return nil, err
	}
	mv, err := jsonl.Open(filepath.Join(workDir, "move_ledger.jsonl"))
	if err != nil {
		return nil, err
	}
	qr, err := jsonl.Open(filepath.Join(workDir, "query_ledger.jsonl"))
	if err != nil {
		return nil, err
	}
	return &Ledgers{
		evidence:    ev,
		move:        mv,
		query:       qr,
		evidenceIDs: make(map[string]struct{}),
	}, nil
}

// NextEvidenceID allocates the next dense, zero-padded evidence id. Per
// spec section 9's open question, this is called for policy-blocked calls
// too, so every tool call — run or not — gets an id.
func (l *Ledgers) NextEvidenceID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evidenceSeq++
	id := fmt.Sprintf("ev_%04d", l.evidenceSeq)
	l.evidenceIDs[id] = struct{}{}
	return id
}

func (l *Ledgers) nextMoveID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.moveSeq++
	return fmt.Sprintf("mv_%04d", l.moveSeq)
}

func (l *Ledgers) nextQueryID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.querySeq++
	return fmt.Sprintf("q_%04d", l.querySeq)
}

// RecordEvidence appends an evidence record. ev.ID must already be set via
// NextEvidenceID.
func (l *Ledgers) RecordEvidence(ev Evidence) error {
	return l.evidence.Append(ev)
}

// RecordMove allocates a move id, stamps it onto mv, and appends it.
func (l *Ledgers) RecordMove(mv Move) (Move, error) {
	mv.ID = l.nextMoveID()
	return mv, l.move.Append(mv)
}

// RecordQuery projects a move into a query record and appends it.
func (l *Ledgers) RecordQuery(q Query) (Query, error) {
	q.ID = l.nextQueryID()
	return q, l.query.Append(q)
}

// HasEvidenceID reports whether id was allocated by this task's ledger.
func (l *Ledgers) HasEvidenceID(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.evidenceIDs[id]
	return ok
}

// Close flushes and closes all three underlying files.
func (l *Ledgers) Close() error {
	var firstErr error
	for _, w := range []*jsonl.Writer{l.evidence, l.move, l.query} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
