package verifier

import (
	"encoding/json"
	"fmt"
	"strings"
)

const feedbackDumpMaxChars = 8000

// FormatFeedback renders a gradient (or, if the judge failed to produce
// one, the raw check results) into the text pushed back into history as a
// user message (spec section 4.4's feedback formatting rule).
func FormatFeedback(g *Gradient, checks []CheckResult) string {
	if g != nil {
		b, _ := json.Marshal(g)
		footer := "Address the missing/wrong items and next actions above before finalizing again."
		return "VERIFIER_GRADIENT_JSON: " + string(b) + "\n" + footer
	}

	var sb strings.Builder
	sb.WriteString("VERIFIER: unable to produce a structured gradient this round.\n")
	dump, _ := json.Marshal(checks)
	d := string(dump)
	if len(d) > feedbackDumpMaxChars {
		d = d[:feedbackDumpMaxChars]
	}
	sb.WriteString(fmt.Sprintf("Check results:\n%s\n", d))
	return sb.String()
}
