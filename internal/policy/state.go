// Package policy implements the stateful per-turn gate described in spec
// section 4.3: stagnation, failure escalation, query-mutation budget,
// move-repeat, source-class stall, and negative-claim domain-shift/budget
// rules, plus the notes-append invariant.
package policy

import "warden/internal/ledger"

// State is the process-wide counters, streaks, flags, and sets the policy
// engine reads and mutates every turn. Per spec section 9 ("globals ->
// injected services"), this used to be closures over module state; here it
// is a single struct the control loop owns and passes by reference.
type State struct {
	Step         int
	ToolCallsMade int

	// Pre-turn nudge flags (spec section 4.1 step 1).
	ForceToolNext      bool
	ForceQueryMutation bool
	ForceMoveChange    bool
	ForceSourceShift   bool
	ForceDomainShift   bool

	// Notes cadence (spec section 4.1 step 2).
	NotesRequired        bool
	StepsSinceNotesWrite int

	// Stagnation (spec section 4.3).
	StagnationStreak int

	// Failure escalation.
	LastFailureType   string
	LastFailureStreak int

	// Query mutation budget: FIFO window of recent query families.
	QueryFamilyWindow []string

	// Move-repeat.
	LastMoveSig   string
	MoveSigStreak int

	// Source-class stall.
	LastSourceClass   ledger.SourceClass
	SourceFailStreak int

	// Negative-claim domain shift.
	IsNegativeClaim    bool
	TaskTokens         []string
	LastDomain         string
	DomainStreak       int
	BlockedDomain      string
	OfficialDomains    map[string]struct{}
	IndependentDomains map[string]struct{}

	// Previous move's dimensions, for move-type classification.
	Prev *ledger.PrevMove

	// parse_error_hits: accumulated hard-format-error count (spec section
	// 4.1 step 6).
	ParseErrorHits int

	// Finalization tool-loop counter (spec section 4.1 step 7).
	FinalizationWrites int

	// Length-nudge counter (spec section 4.1 step 6).
	LengthNudges int

	// VerifierRounds is the count of verifier invocations so far this task.
	VerifierRounds int
}

// NewState returns a zeroed State with its maps/sets initialized.
func NewState() *State {
	return &State{
		OfficialDomains:    map[string]struct{}{},
		IndependentDomains: map[string]struct{}{},
	}
}

// ClearForceFlags clears all five pre-turn nudge flags at once; the loop
// calls it after every accepted (not policy-blocked) tool call.
func (s *State) ClearForceFlags() {
	s.ForceToolNext = false
	s.ForceQueryMutation = false
	s.ForceMoveChange = false
	s.ForceSourceShift = false
	s.ForceDomainShift = false
}
