package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitleaksRedactor_NoSecrets(t *testing.T) {
	r, err := NewGitleaksRedactor(nil, nil)
	require.NoError(t, err)

	text := "The quarterly report covers revenue and staffing.\nNothing sensitive here."
	res, err := r.Redact(text)
	require.NoError(t, err)
	assert.Equal(t, text, res.Text)
	assert.False(t, res.HasFindings())
	assert.Empty(t, res.RuleCounts())
}

func TestGitleaksRedactor_RedactsDetectedSecret(t *testing.T) {
	r, err := NewGitleaksRedactor(nil, nil)
	require.NoError(t, err)

	secret := "sk-proj-abc123def456ghi789jkl012mno345pqr678stu901xyz"
	res, err := r.Redact("const apiKey = \"" + secret + "\"\n")
	require.NoError(t, err)

	// Rule coverage is owned by gitleaks; only check the redaction contract.
	if !res.HasFindings() {
		t.Skip("gitleaks rule set did not flag the sample key")
	}
	assert.NotContains(t, res.Text, secret)
	assert.Contains(t, res.Text, "[REDACTED:")
	for _, f := range res.Findings {
		assert.NotEmpty(t, f.RuleID)
		assert.Positive(t, res.RuleCounts()[f.RuleID])
	}
}

func TestNewGitleaksRedactor_InvalidAllowPattern(t *testing.T) {
	_, err := NewGitleaksRedactor([]string{"("}, nil)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	res, err := Nop{}.Redact("password=hunter2")
	require.NoError(t, err)
	assert.Equal(t, "password=hunter2", res.Text)
	assert.False(t, res.HasFindings())
}

func TestMarker(t *testing.T) {
	assert.True(t, strings.HasPrefix(marker("github-pat"), "[REDACTED:github-pat"))
}
