package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/secrets"
)

func TestLoggerConfig(t *testing.T) {
	lc, err := loggerConfig(config.LoggingConfig{Level: "debug", Format: "console"}, true, true)
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lc.Level)
	assert.Equal(t, "console", lc.Format)
	assert.True(t, lc.Output.OTEL)
	assert.True(t, lc.Output.Stderr)
	assert.Equal(t, version, lc.Fields["version"])

	_, err = loggerConfig(config.LoggingConfig{Level: "loud"}, false, false)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "Version:    "+version)
}

func TestNewApp(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "ragd.yaml")
	content := `
generation:
  provider: none
embeddings:
  api_key: test-key
vectorstore:
  chromem_path: ` + filepath.Join(dir, "index") + `
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	a, err := newApp(context.Background(), path, true)
	require.NoError(t, err)
	defer a.close(context.Background())

	assert.False(t, a.rag.LLMAvailable())
	assert.True(t, a.rag.EmbeddingAvailable())
	assert.IsType(t, secrets.Nop{}, a.redactor)
	require.NoError(t, a.index.Health(context.Background()))
}

func TestNewApp_BadConfigPath(t *testing.T) {
	_, err := newApp(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), true)
	assert.Error(t, err)
}
