package loop

import (
	"regexp"
	"strings"
)

var (
	statusUpdatePattern   = regexp.MustCompile(`(?i)STATUS_UPDATE:\s*([A-Z_]+)`)
	evidenceUsedPattern   = regexp.MustCompile(`(?i)EVIDENCE_USED:\s*\[?([^\]\n]*)\]?`)
	finalizationPhrases   = regexp.MustCompile(`(?i)\b(final answer|in conclusion|to conclude|final deliverable)\b`)
	evidenceIDPattern     = regexp.MustCompile(`ev_\d{4}`)
)

// claimsFinalization reports whether text signals the model believes it is
// done: either marker or a finalization phrase (spec section 4.1 step 6).
func claimsFinalization(text string) bool {
	return strings.Contains(strings.ToUpper(text), "STATUS_UPDATE:") ||
		strings.Contains(strings.ToUpper(text), "EVIDENCE_USED:") ||
		finalizationPhrases.MatchString(text)
}

// statusToken extracts the STATUS_UPDATE: token, or "" if absent.
func statusToken(text string) string {
	m := statusUpdatePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(m[1]))
}

// claimedEvidenceIDs extracts every ev_NNNN id named on an EVIDENCE_USED:
// line.
func claimedEvidenceIDs(text string) []string {
	m := evidenceUsedPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return evidenceIDPattern.FindAllString(m[1], -1)
}
