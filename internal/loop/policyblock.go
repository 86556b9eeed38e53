package loop

// blockedMessage renders the human-readable observation error text for a
// policy-block reason, matching the literal scenario text in spec
// section 8.
func blockedMessage(reason string) string {
	switch reason {
	case "notes_overwrite_blocked":
		return "Action Blocked: Overwriting notes.md is not allowed. Use append (>> or tee -a)."
	case "notes_append_required":
		return "Action Blocked: notes.md update required before any other action. Append your progress with >> or tee -a."
	case "query_mutation_required":
		return "Action Blocked: this query has already been tried recently. Reformulate before repeating it."
	case "domain_shift_required":
		return "Action Blocked: this domain has been checked enough times without new evidence. Try a different domain."
	default:
		return "Action Blocked: " + reason
	}
}
