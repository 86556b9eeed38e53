package loop

// clip keeps at most the last max characters of s, matching the ledgers'
// and verifier's tail-clipping convention for large tool output.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
