package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/ledger"
)

func newTestEngine() *Engine {
	return &Engine{
		StagnationLimit:             3,
		FailureEscalationLimit:      3,
		QueryMutationBudget:         2,
		MoveRepeatLimit:             3,
		DomainShiftLimit:            2,
		NegativeClaimMinOfficial:    2,
		NegativeClaimMinIndependent: 1,
		NegativeClaimThresholdPct:   0.6,
		MaxSteps:                    10,
	}
}

func TestCheckNotesOverwriteAlwaysBlocked(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	d := e.CheckNotes(st, "echo hi > notes.md")
	assert.True(t, d.Blocked)
	assert.Equal(t, "notes_overwrite_blocked", d.Reason)
}

func TestCheckNotesAppendAllowed(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	st.NotesRequired = true
	d := e.CheckNotes(st, "echo hi >> notes.md")
	assert.False(t, d.Blocked)
}

func TestCheckNotesRequiredBlocksNonAppend(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	st.NotesRequired = true
	d := e.CheckNotes(st, "ls")
	assert.True(t, d.Blocked)
	assert.Equal(t, "notes_append_required", d.Reason)
}

func TestRecordStagnationRaisesAtLimit(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	for i := 0; i < 2; i++ {
		raise, _ := e.RecordStagnation(st, true, false)
		assert.False(t, raise)
	}
	raise, reason := e.RecordStagnation(st, true, false)
	require.True(t, raise)
	assert.Equal(t, "stagnation_limit_reached", reason)
	assert.True(t, st.ForceToolNext)
}

func TestRecordStagnationResetsOnNewEvidence(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	e.RecordStagnation(st, true, false)
	e.RecordStagnation(st, true, true)
	assert.Equal(t, 0, st.StagnationStreak)
}

func TestRecordFailureEscalatesAtLimit(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	assert.False(t, e.RecordFailure(st, "rate_limited"))
	assert.False(t, e.RecordFailure(st, "rate_limited"))
	assert.True(t, e.RecordFailure(st, "rate_limited"))
}

func TestRecordFailureResetsOnDifferentType(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	e.RecordFailure(st, "rate_limited")
	e.RecordFailure(st, "auth_required")
	assert.Equal(t, 1, st.LastFailureStreak)
}

func TestQueryMutationBudgetBlocksRepeatWithinWindow(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	e.RecordQueryFamily(st, "alpha")
	blocked, reason := e.CheckQueryMutation(st, "alpha")
	assert.True(t, blocked)
	assert.Equal(t, "query_mutation_required", reason)
}

func TestQueryMutationBudgetAllowsOnceWindowFull(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	e.RecordQueryFamily(st, "alpha")
	e.RecordQueryFamily(st, "beta")
	blocked, _ := e.CheckQueryMutation(st, "alpha")
	assert.False(t, blocked)
}

func TestRecordMoveSigRaisesForceMoveChange(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	e.RecordMoveSig(st, "retry:a:b", true)
	e.RecordMoveSig(st, "retry:a:b", true)
	raise := e.RecordMoveSig(st, "retry:a:b", true)
	assert.True(t, raise)
	assert.True(t, st.ForceMoveChange)
}

func TestRecordSourceClassOutcomeRaisesForceSourceShift(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	e.RecordSourceClassOutcome(st, ledger.SourceCommentary, true)
	e.RecordSourceClassOutcome(st, ledger.SourceCommentary, true)
	raise := e.RecordSourceClassOutcome(st, ledger.SourceCommentary, true)
	assert.True(t, raise)
	assert.True(t, st.ForceSourceShift)
}

func TestRecordDomainHitRaisesForceDomainShiftWhenMinimaUnmet(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	st.IsNegativeClaim = true
	e.RecordDomainHit(st, "example.com", false, false)
	raise, reason := e.RecordDomainHit(st, "example.com", false, false)
	assert.True(t, raise)
	assert.Equal(t, "domain_shift_required", reason)
	assert.Equal(t, "example.com", st.BlockedDomain)

	blocked, _ := e.CheckDomainBlock(st, "example.com")
	assert.True(t, blocked)

	e.ClearDomainBlock(st, "other.com")
	assert.Empty(t, st.BlockedDomain)
}

func TestRecordDomainHitDoesNotRaiseWhenMinimaMet(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	st.IsNegativeClaim = true
	e.RecordDomainHit(st, "a.gov", true, true)
	e.RecordDomainHit(st, "b.gov", true, true)
	st.OfficialDomains["c.gov"] = struct{}{}
	st.IndependentDomains["x.org"] = struct{}{}
	raise, _ := e.RecordDomainHit(st, "b.gov", true, true)
	assert.False(t, raise)
}

func TestAllowNegativeClaimConclusionRequiresThresholdAndMinima(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	st.IsNegativeClaim = true
	st.Step = 5
	assert.False(t, e.AllowNegativeClaimConclusion(st))

	st.Step = 7
	assert.False(t, e.AllowNegativeClaimConclusion(st))

	st.OfficialDomains["a.gov"] = struct{}{}
	st.OfficialDomains["b.gov"] = struct{}{}
	st.IndependentDomains["x.org"] = struct{}{}
	assert.True(t, e.AllowNegativeClaimConclusion(st))
}

func TestAllowNegativeClaimConclusionTrueWhenNotNegativeClaim(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	assert.True(t, e.AllowNegativeClaimConclusion(st))
}
