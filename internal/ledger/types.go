// Package ledger implements the append-only evidence, move, and query
// ledgers described in spec section 3, plus the domain/query/source
// classifiers the policy engine and control loop consult per call.
package ledger

// Observation is the clipped outcome of a single tool invocation.
type Observation struct {
	ExitCode  int    `json:"exit_code"`
	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
	Output    string `json:"output"`
}

// Evidence is the append-only record produced for every tool call,
// including policy-blocked ones (spec section 9, open question on
// evidence-id reuse: blocked calls still allocate an id).
type Evidence struct {
	ID          string       `json:"id"`
	TS          string       `json:"ts"`
	Step        int          `json:"step"`
	Tool        string       `json:"tool"`
	Args        any          `json:"args"`
	Obs         Observation  `json:"obs"`
	URLs        []string     `json:"urls,omitempty"`
	FailureType string       `json:"failure_type,omitempty"`
	Blocked     bool         `json:"blocked,omitempty"`
}

// SourceClass is the coarse authority taxonomy of a cited URL.
type SourceClass string

const (
	SourceOfficial           SourceClass = "official"
	SourceRegulatory         SourceClass = "regulatory"
	SourceRegistry           SourceClass = "registry"
	SourcePrimaryLiterature  SourceClass = "primary_literature"
	SourceCommentary         SourceClass = "commentary"
	SourceUnknown            SourceClass = "unknown"
)

// MoveType classifies a tool call relative to the preceding one.
type MoveType string

const (
	MoveInitial     MoveType = "initial"
	MoveRetry       MoveType = "retry"
	MoveReformulate MoveType = "reformulate"
	MoveSameDomain  MoveType = "same_domain"
	MoveSourceShift MoveType = "source_shift"
	MoveDomainShift MoveType = "domain_shift"
	MoveNonSearch   MoveType = "non_search"
)

// Outcome is the disposition of a move: whether it ran, failed, or was
// blocked by the policy engine before ever reaching the sandbox.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeBlocked Outcome = "blocked"
)

// Move is the classified-tool-invocation record from spec section 3.
type Move struct {
	ID          string      `json:"id"`
	TS          string      `json:"ts"`
	Step        int         `json:"step"`
	Tool        string      `json:"tool"`
	Cmd         string      `json:"cmd"`
	URL         string      `json:"url,omitempty"`
	Domain      string      `json:"domain,omitempty"`
	Query       string      `json:"query,omitempty"`
	QueryFamily string      `json:"query_family,omitempty"`
	SourceClass SourceClass `json:"source_class,omitempty"`
	MoveType    MoveType    `json:"move_type"`
	MoveSig     string      `json:"move_sig"`
	FailureType string      `json:"failure_type,omitempty"`
	Outcome     Outcome     `json:"outcome"`
}

// Query is the query-dimension projection of a Move.
type Query struct {
	ID          string      `json:"id"`
	TS          string      `json:"ts"`
	Step        int         `json:"step"`
	Domain      string      `json:"domain,omitempty"`
	Query       string      `json:"query,omitempty"`
	QueryFamily string      `json:"query_family,omitempty"`
	SourceClass SourceClass `json:"source_class,omitempty"`
	Outcome     Outcome     `json:"outcome"`
}
