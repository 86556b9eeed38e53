// Package prompts holds the system prompt templates selectable via
// PROMPT_PROFILE (spec section 6). System prompt text itself is named as an
// external collaborator in spec section 1 ("System prompt text and CLI
// argument plumbing" are out of scope for the core's logic), so these are
// plain string templates with no parsing behavior.
package prompts

import "fmt"

const defaultProfile = "default"

var profiles = map[string]string{
	"default": "You are a careful, evidence-driven agent working inside an isolated shell sandbox. " +
		"You may act only through a single shell tool. Every claim you make must trace back to a " +
		"tool observation you can cite by its evidence id. When you believe the task is complete, " +
		"include a STATUS_UPDATE: line naming your epistemic status and an EVIDENCE_USED: line " +
		"listing every evidence id your answer depends on.",
	"concise": "You are a terse, evidence-driven agent in a shell sandbox. One tool per turn. " +
		"Cite evidence ids. Finalize with STATUS_UPDATE: and EVIDENCE_USED: lines.",
}

// Get returns the template for profile, falling back to "default" for an
// unknown profile name.
func Get(profile string) string {
	if t, ok := profiles[profile]; ok {
		return t
	}
	return profiles[defaultProfile]
}

// WithEscalation appends a failure-escalation hint (spec section 4.3).
func WithEscalation(base, failureType string) string {
	return base + fmt.Sprintf("\n\nNOTE: the last %d attempts failed with %q; try a different approach.", 3, failureType)
}
