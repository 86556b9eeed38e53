package ledger

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
)

// ExtractFirstURL returns the first http(s) URL found in a command string,
// or "" if none is present. Tool dispatch and the policy engine both derive
// domain/query dimensions from this URL.
func ExtractFirstURL(cmd string) string {
	m := urlPattern.FindString(cmd)
	return m
}

var urlPattern = regexp.MustCompile(`https?://[^\s'"<>]+`)

// NormalizeDomain lowercases a URL's netloc and strips a leading "www.".
func NormalizeDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "in": {}, "on": {}, "to": {}, "for": {},
	"and": {}, "or": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"has": {}, "have": {}, "had": {}, "with": {}, "at": {}, "by": {}, "from": {},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// QueryFamily canonicalizes a URL's query string into a sorted,
// stop-word-stripped token form, so semantically identical searches collide.
func QueryFamily(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	raw := u.RawQuery
	if raw == "" {
		// fall back to the decoded path for non-query search endpoints
		raw = path.Base(u.Path)
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	decoded = strings.ToLower(decoded)
	fields := nonAlnum.Split(decoded, -1)
	var tokens []string
	for _, f := range fields {
		if f == "" {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, "-")
}

var searchDomainSuffixes = []string{
	"google.com", "bing.com", "duckduckgo.com", "search.yahoo.com",
	"search.brave.com", "yandex.com", "baidu.com",
}

// IsSearchDomain reports whether domain is a known search-engine host,
// excluded from independent-source counting.
func IsSearchDomain(domain string) bool {
	for _, s := range searchDomainSuffixes {
		if domain == s || strings.HasSuffix(domain, "."+s) {
			return true
		}
	}
	return false
}

var officialTLDSuffixes = []string{".gov", ".eu", ".int"}

// IsOfficialDomain reports whether domain ends in a known official TLD or
// contains any of the task's own tokens (spec section 4.3's domain
// classification rule).
func IsOfficialDomain(domain string, taskTokens []string) bool {
	for _, suf := range officialTLDSuffixes {
		if strings.HasSuffix(domain, suf) {
			return true
		}
	}
	for _, tok := range taskTokens {
		if tok == "" {
			continue
		}
		if strings.Contains(domain, tok) {
			return true
		}
	}
	return false
}

var (
	regulatoryHints = []string{"fda.gov", "ema.europa.eu", "who.int", "sec.gov", "ftc.gov", "epa.gov"}
	registryHints   = []string{"registry", "clinicaltrials.gov", "whois", "sec.gov/cgi-bin"}
	commentaryHints = []string{"blog", "medium.com", "reddit.com", "twitter.com", "x.com", "forum", "news"}
)

// ClassifySource assigns the coarse authority taxonomy to a URL+domain pair.
func ClassifySource(domain, rawURL string) SourceClass {
	if domain == "" {
		return SourceUnknown
	}
	lowURL := strings.ToLower(rawURL)
	if strings.HasSuffix(lowURL, ".pdf") {
		return SourcePrimaryLiterature
	}
	for _, h := range regulatoryHints {
		if strings.Contains(domain, h) {
			return SourceRegulatory
		}
	}
	for _, h := range registryHints {
		if strings.Contains(domain, h) || strings.Contains(lowURL, h) {
			return SourceRegistry
		}
	}
	for _, suf := range officialTLDSuffixes {
		if strings.HasSuffix(domain, suf) {
			return SourceOfficial
		}
	}
	if strings.HasSuffix(domain, ".gov") {
		return SourceOfficial
	}
	for _, h := range commentaryHints {
		if strings.Contains(domain, h) {
			return SourceCommentary
		}
	}
	return SourceUnknown
}

// PrevMove carries just the dimensions needed to classify the next move.
type PrevMove struct {
	Domain      string
	QueryFamily string
	SourceClass SourceClass
}

// ClassifyMoveType compares a new move's dimensions against the previous one.
func ClassifyMoveType(domain, queryFamily string, sourceClass SourceClass, prev *PrevMove, isSearch bool) MoveType {
	if !isSearch {
		return MoveNonSearch
	}
	if prev == nil {
		return MoveInitial
	}
	switch {
	case domain == prev.Domain && queryFamily == prev.QueryFamily:
		return MoveRetry
	case domain == prev.Domain && queryFamily != prev.QueryFamily:
		return MoveReformulate
	case domain != prev.Domain && sourceClass == prev.SourceClass:
		return MoveDomainShift
	case domain != prev.Domain && sourceClass != prev.SourceClass:
		return MoveSourceShift
	default:
		return MoveDomainShift
	}
}

// MoveSig is the compact move signature used for repeat/stall detection.
func MoveSig(moveType MoveType, domain, queryFamily string) string {
	return string(moveType) + ":" + domain + ":" + queryFamily
}

var (
	accessBlockedPattern = regexp.MustCompile(`(?i)\b(403|forbidden|captcha|cloudflare|access denied)\b`)
	authRequiredPattern  = regexp.MustCompile(`(?i)\b(401|unauthorized|authentication required)\b`)
	rateLimitedPattern   = regexp.MustCompile(`(?i)\b(429|too many requests|rate limit)\b`)
)

// ClassifyFailure derives a failure_type from an observation's exit code,
// error string, and output, per spec section 4.3.
func ClassifyFailure(tool string, exitCode int, errStr, output string) string {
	combined := errStr + " " + output
	switch {
	case accessBlockedPattern.MatchString(combined):
		return "access_blocked"
	case authRequiredPattern.MatchString(combined):
		return "auth_required"
	case rateLimitedPattern.MatchString(combined):
		return "rate_limited"
	case (tool == "shell" || tool == "curl" || tool == "wget") && exitCode == 0 && strings.TrimSpace(output) == "":
		return "empty_response"
	case exitCode != 0 || errStr != "":
		return "tool_error"
	default:
		return ""
	}
}

var (
	isNegativeClaimAnswer  = regexp.MustCompile(`(?i)^\s*(none|no one|nobody|no members)\b`)
	negationWordingPattern = regexp.MustCompile(`(?i)\b(not|none|no one|nobody|no members)\b|n't\b`)
	coverageTriggerPattern = regexp.MustCompile(`(?i)\b(who|which|any|ever|never|none|earliest|latest|only|all)\b`)
)

// IsNegativeClaimTask reports whether a task's wording matches the
// negation/existence heuristic that triggers stricter source-diversity
// minima.
func IsNegativeClaimTask(task string) bool {
	return negationWordingPattern.MatchString(task) || coverageTriggeringWording(task)
}

func coverageTriggeringWording(s string) bool {
	return coverageTriggerPattern.MatchString(s)
}

// IsNegativeClaimAnswer reports whether a model's final answer opens with
// negation/existence wording (used by the verifier's decompose step to force
// a coverage check).
func IsNegativeClaimAnswer(answer string) bool {
	return isNegativeClaimAnswer.MatchString(answer)
}

// TaskTokens extracts a lowercase alnum token set from a task string, used to
// seed official-domain heuristics.
func TaskTokens(task string) []string {
	fields := nonAlnum.Split(strings.ToLower(task), -1)
	seen := map[string]struct{}{}
	var out []string
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, ok := stopWords[f]; ok {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// NotesMode is the write-mode a shell command has on notes.md.
type NotesMode string

const (
	NotesModeAppend    NotesMode = "append"
	NotesModeOverwrite NotesMode = "overwrite"
	NotesModeNone      NotesMode = "none"
)

var (
	notesAppendPattern = regexp.MustCompile(`(?i)(>>\s*\S*notes\.md|tee\s+-a\s+\S*notes\.md|notes_append)`)
	notesOverwritePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[^>]>\s*\S*notes\.md`),
		regexp.MustCompile(`(?i)^\s*>\s*\S*notes\.md`),
		regexp.MustCompile(`(?i)cat\s*>\s*\S*notes\.md`),
		regexp.MustCompile(`(?i)\btee\s+\S*notes\.md`),
		regexp.MustCompile(`(?i)\btruncate\b.*notes\.md`),
		regexp.MustCompile(`(?i)\brm\b.*notes\.md`),
		regexp.MustCompile(`(?i)\bmv\b.*notes\.md`),
		regexp.MustCompile(`(?i)\bcp\b.*notes\.md`),
		regexp.MustCompile(`(?i)write_text\(.*notes\.md`),
	}
)

// ClassifyNotesMode determines the write mode a shell command has on
// notes.md, per spec section 4.3's regex rules. Append patterns are checked
// first so "tee -a notes.md" is never mistaken for a bare "tee" overwrite.
func ClassifyNotesMode(cmd string) NotesMode {
	if !strings.Contains(cmd, "notes.md") {
		return NotesModeNone
	}
	if notesAppendPattern.MatchString(cmd) {
		return NotesModeAppend
	}
	for _, p := range notesOverwritePatterns {
		if p.MatchString(cmd) {
			return NotesModeOverwrite
		}
	}
	return NotesModeNone
}
