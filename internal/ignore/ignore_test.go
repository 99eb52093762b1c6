package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   rule
		wantOK bool
	}{
		{"empty line", "", rule{}, false},
		{"whitespace only", "   ", rule{}, false},
		{"comment", "# drafts", rule{}, false},
		{"glob", "*.tmp", rule{pattern: "*.tmp"}, true},
		{"anchored", "/draft.md", rule{pattern: "draft.md"}, true},
		{"double star prefix", "**/scratch-*", rule{pattern: "scratch-*"}, true},
		{"negation", "!keep.tmp", rule{pattern: "keep.tmp", negate: true}, true},
		{"bare slash", "/", rule{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseLine(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher_LastRuleWins(t *testing.T) {
	m, err := Parse(strings.NewReader("# scratch files\n*.md\n!README.md\nscratch-*\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())

	assert.True(t, m.Match("/drop/notes.md"))
	assert.False(t, m.Match("/drop/README.md"))
	assert.True(t, m.Match("scratch-1.txt"))
	assert.False(t, m.Match("/drop/report.pdf"))
}

func TestParse_InvalidPattern(t *testing.T) {
	_, err := Parse(strings.NewReader("ok.txt\n[unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Zero(t, m.Len())
	assert.False(t, m.Match("anything.txt"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("*.docx\n"), 0o600))
	m, err = Load(dir)
	require.NoError(t, err)
	assert.True(t, m.Match(filepath.Join(dir, "letter.docx")))
}

func TestNilMatcher(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("x.txt"))
	assert.Zero(t, m.Len())
}
