package verifier

// ApplySCOUTCap computes the SCOUT (Scope -> Candidates -> Outcomes) cap
// reasons and, if any apply, reduces the judge's score to at most 2 and
// appends canned instructions (spec section 4.4 step 5).
func ApplySCOUTCap(g *Gradient, checks []CheckResult, needsCoverage bool) {
	var reasons []string

	if anyUnknown(checks) {
		reasons = append(reasons, "unknown_checks_present")
	}

	domains := distinctDomains(checks)
	if len(domains) < 2 {
		reasons = append(reasons, "insufficient_independent_citations")
	}

	if needsCoverage && !coverageOK(checks) {
		reasons = append(reasons, "missing_coverage_proof")
	}

	if len(reasons) == 0 {
		return
	}

	g.CapReasons = reasons
	if g.Score > 2 {
		g.Score = 2
	}

	instructions := map[string]string{
		"unknown_checks_present":              "Resolve every check left unknown before finalizing.",
		"insufficient_independent_citations":  "Add at least two independent-domain citations supporting the answer.",
		"missing_coverage_proof":              "Demonstrate coverage across all plausible sources before concluding.",
	}
	for _, r := range reasons {
		if len(g.NextActions) >= 3 {
			break
		}
		if instr, ok := instructions[r]; ok {
			g.NextActions = append(g.NextActions, NextAction{Goal: instr})
		}
	}
}

func anyUnknown(checks []CheckResult) bool {
	for _, c := range checks {
		if c.Answer == "" || c.Answer == "unknown" || len(c.Evidence) == 0 || c.Failed {
			return true
		}
	}
	return false
}

func distinctDomains(checks []CheckResult) map[string]struct{} {
	out := map[string]struct{}{}
	for _, c := range checks {
		for _, d := range c.Domains {
			out[d] = struct{}{}
		}
	}
	return out
}

func coverageOK(checks []CheckResult) bool {
	for _, c := range checks {
		if c.Check.Kind == "coverage" {
			return c.Answer == "yes" && !c.Failed
		}
	}
	return false
}
