package loop

import "regexp"

// finalWritePattern matches a command writing to a final_* file, the shape
// of a final deliverable (spec section 4.1 step 7 and scenario 5).
var finalWritePattern = regexp.MustCompile(`(?i)(>>?|\btee\b|\bcp\b|\bmv\b)[^|&;]*\bfinal_[\w./-]*`)

// looksLikeFinalWrite reports whether cmd writes (via >, >>, tee, cp or mv)
// to a file whose name starts with final_; the directory is not checked.
func looksLikeFinalWrite(cmd string) bool {
	return finalWritePattern.MatchString(cmd)
}
