package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.Example.com/path?q=1", "example.com"},
		{"http://sub.example.org", "sub.example.org"},
		{"not a url", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeDomain(c.url), c.url)
	}
}

func TestQueryFamily(t *testing.T) {
	a := QueryFamily("https://duckduckgo.com/?q=foo+bar")
	b := QueryFamily("https://duckduckgo.com/?q=bar+the+foo")
	assert.Equal(t, a, b, "stop-word-stripped sorted tokens should collide")

	c := QueryFamily("https://duckduckgo.com/?q=baz")
	assert.NotEqual(t, a, c)
}

func TestClassifySourcePDF(t *testing.T) {
	got := ClassifySource("example.com", "https://example.com/report.PDF")
	assert.Equal(t, SourcePrimaryLiterature, got)
}

func TestClassifySourceOfficial(t *testing.T) {
	got := ClassifySource("fda.gov", "https://fda.gov/x")
	assert.Equal(t, SourceRegulatory, got, "known regulatory hint wins over bare .gov")

	got2 := ClassifySource("example.gov", "https://example.gov/x")
	assert.Equal(t, SourceOfficial, got2)
}

func TestClassifyMoveType(t *testing.T) {
	require.Equal(t, MoveInitial, ClassifyMoveType("a.com", "qf", SourceOfficial, nil, true))
	require.Equal(t, MoveNonSearch, ClassifyMoveType("a.com", "qf", SourceOfficial, nil, false))

	prev := &PrevMove{Domain: "a.com", QueryFamily: "qf", SourceClass: SourceOfficial}
	assert.Equal(t, MoveRetry, ClassifyMoveType("a.com", "qf", SourceOfficial, prev, true))
	assert.Equal(t, MoveReformulate, ClassifyMoveType("a.com", "qf2", SourceOfficial, prev, true))
	assert.Equal(t, MoveDomainShift, ClassifyMoveType("b.com", "qf2", SourceOfficial, prev, true))
	assert.Equal(t, MoveSourceShift, ClassifyMoveType("b.com", "qf2", SourceCommentary, prev, true))
}

func TestClassifyFailure(t *testing.T) {
	assert.Equal(t, "access_blocked", ClassifyFailure("shell", 0, "", "403 Forbidden"))
	assert.Equal(t, "auth_required", ClassifyFailure("shell", 0, "", "401 Unauthorized"))
	assert.Equal(t, "rate_limited", ClassifyFailure("shell", 0, "", "429 too many requests"))
	assert.Equal(t, "empty_response", ClassifyFailure("curl", 0, "", ""))
	assert.Equal(t, "tool_error", ClassifyFailure("shell", 1, "", "boom"))
	assert.Equal(t, "", ClassifyFailure("shell", 0, "", "all good"))
}

func TestClassifyNotesMode(t *testing.T) {
	cases := []struct {
		cmd  string
		want NotesMode
	}{
		{`echo hi >> /work/notes.md`, NotesModeAppend},
		{`tee -a /work/notes.md`, NotesModeAppend},
		{`cat > /work/notes.md << EOF`, NotesModeOverwrite},
		{`rm /work/notes.md`, NotesModeOverwrite},
		{`cat /work/notes.md`, NotesModeNone},
		{`echo hi >> /work/other.md`, NotesModeNone},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyNotesMode(c.cmd), c.cmd)
	}
}

func TestIsNegativeClaimTask(t *testing.T) {
	assert.True(t, IsNegativeClaimTask("Confirm no one has launched this product"))
	assert.True(t, IsNegativeClaimTask("Which companies have launched a competing product?"))
}

func TestIsNegativeClaimAnswer(t *testing.T) {
	assert.True(t, IsNegativeClaimAnswer("No one has launched this."))
	assert.False(t, IsNegativeClaimAnswer("The answer is 42."))
}
