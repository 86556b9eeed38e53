package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplySCOUTCapInsufficientCitations(t *testing.T) {
	g := &Gradient{Score: 4}
	checks := []CheckResult{
		{Check: Check{Kind: "support"}, Answer: "yes", Evidence: []CheckEvidence{{Type: "url", Ref: "x"}}, Domains: []string{"a.gov"}},
	}
	ApplySCOUTCap(g, checks, false)
	assert.Contains(t, g.CapReasons, "insufficient_independent_citations")
	assert.LessOrEqual(t, g.Score, 2)
	assert.NotEmpty(t, g.NextActions)
}

func TestApplySCOUTCapUnknownChecks(t *testing.T) {
	g := &Gradient{Score: 4}
	checks := []CheckResult{
		{Check: Check{Kind: "support"}, Answer: "unknown"},
		{Check: Check{Kind: "support"}, Answer: "yes", Evidence: []CheckEvidence{{Type: "url"}}, Domains: []string{"a.com", "b.org"}},
	}
	ApplySCOUTCap(g, checks, false)
	assert.Contains(t, g.CapReasons, "unknown_checks_present")
}

func TestApplySCOUTCapMissingCoverageProof(t *testing.T) {
	g := &Gradient{Score: 4}
	checks := []CheckResult{
		{Check: Check{Kind: "support"}, Answer: "yes", Evidence: []CheckEvidence{{Type: "url"}}, Domains: []string{"a.com", "b.org"}},
	}
	ApplySCOUTCap(g, checks, true)
	assert.Contains(t, g.CapReasons, "missing_coverage_proof")
}

func TestApplySCOUTCapNoReasonsLeavesScoreUntouched(t *testing.T) {
	g := &Gradient{Score: 4}
	checks := []CheckResult{
		{Check: Check{Kind: "coverage"}, Answer: "yes", Evidence: []CheckEvidence{{Type: "url"}}, Domains: []string{"a.com", "b.org"}},
		{Check: Check{Kind: "support"}, Answer: "yes", Evidence: []CheckEvidence{{Type: "url"}}, Domains: []string{"a.com", "b.org"}},
	}
	ApplySCOUTCap(g, checks, true)
	assert.Empty(t, g.CapReasons)
	assert.Equal(t, 4, g.Score)
}
