// Package epistemic implements the loop's self-assessment state machine
// (spec section 3): a status plus three deduplicated, ordered string lists
// tracking open constraints, acquisition blockers, and unresolved reasons.
package epistemic

// Status is the finite epistemic state.
type Status string

const (
	InProgress Status = "IN_PROGRESS"
	Unresolved Status = "UNRESOLVED"
	Blocked    Status = "BLOCKED"
	Verified   Status = "VERIFIED"
)

// State is the mutable epistemic record the loop owns for the lifetime of a
// task. It is not safe for concurrent use; only the single-threaded control
// loop mutates it (spec section 5).
type State struct {
	Status      Status
	Constraints []string
	Blocked     []string
	Unresolved  []string
}

// New returns a fresh IN_PROGRESS state with empty lists.
func New() *State {
	return &State{Status: InProgress}
}

// AddConstraint appends c to Constraints if not already present.
func (s *State) AddConstraint(c string) {
	s.Constraints = appendUnique(s.Constraints, c)
}

// AddBlocked appends b to Blocked if not already present and raises status
// to at least BLOCKED.
func (s *State) AddBlocked(b string) {
	s.Blocked = appendUnique(s.Blocked, b)
	s.raiseAtLeast(Blocked)
}

// AddUnresolved appends u to Unresolved if not already present and raises
// status to at least UNRESOLVED.
func (s *State) AddUnresolved(u string) {
	s.Unresolved = appendUnique(s.Unresolved, u)
	s.raiseAtLeast(Unresolved)
}

// SetStatus maps a self-reported STATUS_UPDATE token onto the state once the
// citation contract has already passed (spec section 4.1 step 6: "otherwise
// map the status token to the state"). Unrecognized tokens are ignored;
// recognized ones raise the status via the same rank check AddBlocked/
// AddUnresolved use, so a self-report can never downgrade a terminal
// VERIFIED or silently revert BLOCKED/UNRESOLVED to IN_PROGRESS.
func (s *State) SetStatus(token string) {
	switch Status(token) {
	case InProgress, Blocked, Unresolved, Verified:
		s.raiseAtLeast(Status(token))
	}
}

// ToolFailed records a tool failure's reason and ensures status is at least
// BLOCKED (spec section 3: "any tool failure ⇒ status≥BLOCKED").
func (s *State) ToolFailed(reason string) {
	s.AddBlocked(reason)
}

// Verify transitions the state to VERIFIED and clears all three lists, the
// effect of a verifier score ≥ 3 (spec section 3 and the testable property
// in section 8).
func (s *State) Verify() {
	s.Status = Verified
	s.Constraints = nil
	s.Blocked = nil
	s.Unresolved = nil
}

// ClearConstraint removes c from Constraints; if all three lists become
// empty afterward, status falls back to IN_PROGRESS (spec section 8:
// "BLOCKED/UNRESOLVED can fall back to IN_PROGRESS only by adding new
// evidence that clears the triggering constraint").
func (s *State) ClearConstraint(c string) {
	s.Constraints = remove(s.Constraints, c)
	s.maybeRecover()
}

// ClearBlocked removes b from Blocked and re-evaluates recovery.
func (s *State) ClearBlocked(b string) {
	s.Blocked = remove(s.Blocked, b)
	s.maybeRecover()
}

// ClearUnresolved removes u from Unresolved and re-evaluates recovery.
func (s *State) ClearUnresolved(u string) {
	s.Unresolved = remove(s.Unresolved, u)
	s.maybeRecover()
}

func (s *State) maybeRecover() {
	if s.Status != Verified && len(s.Constraints) == 0 && len(s.Blocked) == 0 && len(s.Unresolved) == 0 {
		s.Status = InProgress
	}
}

// statusRank orders statuses so raiseAtLeast never downgrades VERIFIED.
var statusRank = map[Status]int{
	InProgress: 0,
	Blocked:    1,
	Unresolved: 1,
	Verified:   2,
}

func (s *State) raiseAtLeast(target Status) {
	if s.Status == Verified {
		return
	}
	if statusRank[target] >= statusRank[s.Status] {
		s.Status = target
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func remove(list []string, v string) []string {
	out := list[:0:0]
	for _, existing := range list {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
