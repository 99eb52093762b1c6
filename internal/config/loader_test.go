package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
	assert.Equal(t, "./data/models", cfg.Embeddings.CacheDir)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  shutdown_timeout: 30s
retrieval:
  top_k: 5
  similarity_threshold: 0
vectorstore:
  provider: qdrant
  qdrant_host: qdrant.internal
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.0, cfg.Retrieval.SimilarityThreshold, "explicit zero must be kept")
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.QdrantHost)
	// untouched values keep their defaults
	assert.Equal(t, 512, cfg.Ingest.ChunkSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n", 0o600)
	t.Setenv("RAGD_SERVER_PORT", "7070")
	t.Setenv("RAGD_VECTORSTORE_CHROMEM_PATH", "/var/lib/ragd")
	t.Setenv("RAGD_RETRIEVAL_TOP_K", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/var/lib/ragd", cfg.VectorStore.ChromemPath)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("RAGD_GENERATION_API_KEY", "sk-gen")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-gen", cfg.Generation.APIKey.Value())
	assert.Equal(t, "sk-env", cfg.Embeddings.APIKey.Value())
}

func TestLoad_FastEmbedModelDefaults(t *testing.T) {
	t.Setenv("RAGD_EMBEDDINGS_PROVIDER", "fastembed")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Embeddings.Model)
	assert.Equal(t, 384, cfg.Embeddings.Dimension)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, "retrieval:\n  top_k: 50\n", 0o600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_k")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsWritableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}
	path := writeConfig(t, "server:\n  port: 9090\n", 0o666)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writable")
}

func TestLoad_RejectsOversizedFile(t *testing.T) {
	big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, big, 0o600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.port", envKey("RAGD_SERVER_PORT"))
	assert.Equal(t, "vectorstore.qdrant_api_key", envKey("RAGD_VECTORSTORE_QDRANT_API_KEY"))
	assert.Equal(t, "debug", envKey("RAGD_DEBUG"))
}
