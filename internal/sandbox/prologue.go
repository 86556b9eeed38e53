package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	leadingCdPattern     = regexp.MustCompile(`^\s*cd\s+(\S+)\s*(?:;|&&)\s*`)
	leadingExportPattern = regexp.MustCompile(`^\s*export\s+([A-Za-z_][A-Za-z0-9_]*)=(\S+)\s*(?:;|&&)\s*`)
)

// ParsePersistentSegments strips any leading "cd <dir>;" and
// "export KEY=VAL;" segments off cmd, returning them separately from the
// remainder. The session wrapper folds these into the sandbox's persistent
// Cwd/EnvVars so later calls inherit them (spec section 6).
func ParsePersistentSegments(cmd string) (remainder string, cwd string, env map[string]string) {
	env = map[string]string{}
	rest := cmd
	for {
		if m := leadingCdPattern.FindStringSubmatch(rest); m != nil {
			cwd = m[1]
			rest = rest[len(m[0]):]
			continue
		}
		if m := leadingExportPattern.FindStringSubmatch(rest); m != nil {
			env[m[1]] = m[2]
			rest = rest[len(m[0]):]
			continue
		}
		break
	}
	return rest, cwd, env
}

// BuildWrapper assembles the full command string to execute inside the
// container: the session prologue (cd into the sandbox's persistent
// directory, re-export its accumulated env vars, prepend the task venv to
// PATH) followed by the call's own command.
func (sb *Sandbox) BuildWrapper(cmd string) string {
	rest, cwd, env := ParsePersistentSegments(cmd)
	if cwd != "" {
		sb.Cwd = cwd
	}
	if sb.EnvVars == nil {
		sb.EnvVars = map[string]string{}
	}
	for k, v := range env {
		sb.EnvVars[k] = v
	}

	var b strings.Builder
	workingDir := sb.Cwd
	if workingDir == "" {
		workingDir = "/work"
	}
	fmt.Fprintf(&b, "cd %s; ", shellQuote(workingDir))
	for k, v := range sb.EnvVars {
		fmt.Fprintf(&b, "export %s=%s; ", k, v)
	}
	b.WriteString("export PATH=/work/.venv/bin:$PATH; ")
	b.WriteString(rest)
	return b.String()
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
