package sandbox

import "regexp"

// denyPatterns are the full-command-string shapes every SandboxBackend must
// refuse to run (spec section 6), adapted from the teacher's per-argument
// IsBinaryBlocked/SanitizeArg checks into whole-command regexes since the
// deny-set here targets destructive commands, not individual path arguments.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+(-\w*r\w*f\w*|-\w*f\w*r\w*)\s+/(?:\s|$)`),
	regexp.MustCompile(`(?i)\brm\s+(-\w*r\w*f\w*|-\w*f\w*r\w*)\s+\*`),
	regexp.MustCompile(`(?i)\bdd\s+if=`),
	regexp.MustCompile(`(?i)\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`(?i)\bmount\b`),
	regexp.MustCompile(`(?i)\bumount\b`),
	regexp.MustCompile(`(?i)\bsudo\b`),
	regexp.MustCompile(`(?i)\bchown\b`),
	regexp.MustCompile(`(?i)\bchmod\s+777\b`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\};:`), // fork bomb
}

// IsDenied reports whether cmd matches one of the destructive shapes every
// SandboxBackend must refuse, independent of the container it targets.
func IsDenied(cmd string) (bool, string) {
	for _, p := range denyPatterns {
		if p.MatchString(cmd) {
			return true, p.String()
		}
	}
	return false, ""
}
