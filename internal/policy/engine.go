package policy

import "warden/internal/ledger"

// Engine holds the tunables the control loop loads once at startup (spec
// section 6's env-only configuration) and applies against a *State every
// turn. It carries no mutable fields of its own; all counters live in State
// so one Engine can safely serve concurrent tasks in tests.
type Engine struct {
	StagnationLimit             int
	FailureEscalationLimit      int
	QueryMutationBudget         int
	MoveRepeatLimit             int
	DomainShiftLimit            int
	NegativeClaimMinOfficial    int
	NegativeClaimMinIndependent int
	NegativeClaimThresholdPct   float64
	MaxSteps                    int
}

// NotesDecision is the result of checking a shell command against the
// notes.md write invariant.
type NotesDecision struct {
	Blocked bool
	Reason  string
	Mode    ledger.NotesMode
}

// CheckNotes applies the notes invariant: overwrite is always blocked, and
// when notes_required is set (raised by notes-cadence nudging in
// internal/loop), anything other than append is blocked too.
func (e *Engine) CheckNotes(st *State, cmd string) NotesDecision {
	mode := ledger.ClassifyNotesMode(cmd)
	switch mode {
	case ledger.NotesModeOverwrite:
		return NotesDecision{Blocked: true, Reason: "notes_overwrite_blocked", Mode: mode}
	case ledger.NotesModeAppend:
		return NotesDecision{Mode: mode}
	default:
		if st.NotesRequired {
			return NotesDecision{Blocked: true, Reason: "notes_append_required", Mode: mode}
		}
		return NotesDecision{Mode: mode}
	}
}

// RecordStagnation increments stagnation_streak when the epistemic status is
// UNRESOLVED and a no-tool turn produced no new evidence. At StagnationLimit
// it raises force_tool_next and reports a constraint to record.
func (e *Engine) RecordStagnation(st *State, unresolved, newEvidence bool) (raise bool, constraint string) {
	if !unresolved || newEvidence {
		st.StagnationStreak = 0
		return false, ""
	}
	st.StagnationStreak++
	limit := e.StagnationLimit
	if limit <= 0 {
		limit = 3
	}
	if st.StagnationStreak >= limit {
		st.ForceToolNext = true
		return true, "stagnation_limit_reached"
	}
	return false, ""
}

// RecordFailure feeds the failure-escalation streak and reports whether the
// prompt should include an escalation hint this turn.
func (e *Engine) RecordFailure(st *State, failureType string) (escalate bool) {
	if failureType == "" {
		st.LastFailureType = ""
		st.LastFailureStreak = 0
		return false
	}
	if failureType == st.LastFailureType {
		st.LastFailureStreak++
	} else {
		st.LastFailureType = failureType
		st.LastFailureStreak = 1
	}
	limit := e.FailureEscalationLimit
	if limit <= 0 {
		limit = 3
	}
	return st.LastFailureStreak >= limit
}

// CheckQueryMutation blocks a shell command whose query_family already
// appears in the FIFO window while the window has not yet filled to budget,
// requiring a fresh formulation before the same family can repeat.
func (e *Engine) CheckQueryMutation(st *State, queryFamily string) (blocked bool, reason string) {
	if queryFamily == "" {
		return false, ""
	}
	budget := e.QueryMutationBudget
	if budget <= 0 {
		budget = 2
	}
	if len(st.QueryFamilyWindow) < budget {
		for _, f := range st.QueryFamilyWindow {
			if f == queryFamily {
				return true, "query_mutation_required"
			}
		}
	}
	return false, ""
}

// RecordQueryFamily pushes queryFamily onto the FIFO window, evicting the
// oldest entry once the window reaches budget.
func (e *Engine) RecordQueryFamily(st *State, queryFamily string) {
	if queryFamily == "" {
		return
	}
	budget := e.QueryMutationBudget
	if budget <= 0 {
		budget = 2
	}
	st.QueryFamilyWindow = append(st.QueryFamilyWindow, queryFamily)
	if len(st.QueryFamilyWindow) > budget {
		st.QueryFamilyWindow = st.QueryFamilyWindow[len(st.QueryFamilyWindow)-budget:]
	}
}

// RecordMoveSig tracks move_sig repeats and raises force_move_change once
// the same signature repeats MoveRepeatLimit times while UNRESOLVED.
func (e *Engine) RecordMoveSig(st *State, moveSig string, unresolved bool) (raise bool) {
	if moveSig == st.LastMoveSig {
		st.MoveSigStreak++
	} else {
		st.LastMoveSig = moveSig
		st.MoveSigStreak = 1
	}
	limit := e.MoveRepeatLimit
	if limit <= 0 {
		limit = 3
	}
	if unresolved && st.MoveSigStreak >= limit {
		st.ForceMoveChange = true
		return true
	}
	return false
}

// RecordSourceClassOutcome tracks consecutive failures of the same
// source_class and raises force_source_shift at FailureEscalationLimit.
func (e *Engine) RecordSourceClassOutcome(st *State, sourceClass ledger.SourceClass, failed bool) (raise bool) {
	if !failed || sourceClass == "" {
		if sourceClass != st.LastSourceClass {
			st.LastSourceClass = sourceClass
			st.SourceFailStreak = 0
		}
		return false
	}
	if sourceClass == st.LastSourceClass {
		st.SourceFailStreak++
	} else {
		st.LastSourceClass = sourceClass
		st.SourceFailStreak = 1
	}
	limit := e.FailureEscalationLimit
	if limit <= 0 {
		limit = 3
	}
	if st.SourceFailStreak >= limit {
		st.ForceSourceShift = true
		return true
	}
	return false
}

// RecordDomainHit tracks a negative-claim task's consecutive same-domain
// hits and the collected official/independent domain sets, raising
// force_domain_shift and latching BlockedDomain once the shift condition is
// met.
func (e *Engine) RecordDomainHit(st *State, domain string, isOfficial, isIndependent bool) (raise bool, reason string) {
	if !st.IsNegativeClaim || domain == "" {
		return false, ""
	}
	if isOfficial {
		st.OfficialDomains[domain] = struct{}{}
	}
	if isIndependent {
		st.IndependentDomains[domain] = struct{}{}
	}

	if domain == st.LastDomain {
		st.DomainStreak++
	} else {
		st.LastDomain = domain
		st.DomainStreak = 1
	}

	limit := e.DomainShiftLimit
	if limit <= 0 {
		limit = 2
	}
	minOfficial := e.NegativeClaimMinOfficial
	if minOfficial <= 0 {
		minOfficial = 2
	}
	minIndependent := e.NegativeClaimMinIndependent
	if minIndependent <= 0 {
		minIndependent = 1
	}

	if st.DomainStreak >= limit &&
		len(st.OfficialDomains) < minOfficial &&
		len(st.IndependentDomains) < minIndependent {
		st.ForceDomainShift = true
		st.BlockedDomain = domain
		return true, "domain_shift_required"
	}
	return false, ""
}

// CheckDomainBlock reports whether domain is currently blocked by a pending
// negative-claim domain-shift requirement.
func (e *Engine) CheckDomainBlock(st *State, domain string) (blocked bool, reason string) {
	if st.BlockedDomain != "" && domain == st.BlockedDomain {
		return true, "domain_shift_required"
	}
	return false, ""
}

// ClearDomainBlock releases a pending domain block once a different domain
// has been tried.
func (e *Engine) ClearDomainBlock(st *State, domain string) {
	if st.BlockedDomain != "" && domain != st.BlockedDomain {
		st.BlockedDomain = ""
		st.ForceDomainShift = false
	}
}

// AllowNegativeClaimConclusion reports whether, past
// NegativeClaimThresholdPct of the step budget, the collected source minima
// have been met and an UNRESOLVED conclusion may be accepted instead of
// forcing further exploration.
func (e *Engine) AllowNegativeClaimConclusion(st *State) bool {
	if !st.IsNegativeClaim {
		return true
	}
	pct := e.NegativeClaimThresholdPct
	if pct <= 0 {
		pct = 0.6
	}
	maxSteps := e.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 1
	}
	elapsed := float64(st.Step) / float64(maxSteps)
	if elapsed < pct {
		return false
	}
	minOfficial := e.NegativeClaimMinOfficial
	if minOfficial <= 0 {
		minOfficial = 2
	}
	minIndependent := e.NegativeClaimMinIndependent
	if minIndependent <= 0 {
		minIndependent = 1
	}
	return len(st.OfficialDomains) >= minOfficial && len(st.IndependentDomains) >= minIndependent
}

// IsSearchDomain reports whether domain is a known search-engine host,
// excluded from independent-source counting — delegates to ledger so both
// packages share one list.
func (e *Engine) IsSearchDomain(domain string) bool {
	return ledger.IsSearchDomain(domain)
}

// IsOfficialDomain reports whether domain is official per spec section 4.3's
// classification rule.
func (e *Engine) IsOfficialDomain(domain string, taskTokens []string) bool {
	return ledger.IsOfficialDomain(domain, taskTokens)
}
