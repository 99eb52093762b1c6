package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "RAGD_"
)

// Load reads configuration from the YAML file at path (optional, may be
// empty) and then applies RAGD_ environment overrides on top of Default.
//
// Environment variables split on the first underscore after the prefix:
//
//	RAGD_SERVER_PORT             -> server.port
//	RAGD_VECTORSTORE_QDRANT_HOST -> vectorstore.qdrant_host
//	RAGD_RETRIEVAL_TOP_K         -> retrieval.top_k
//
// OPENAI_API_KEY is used for both generation and embeddings when no
// explicit key is configured.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envKey maps RAGD_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	// Open once and validate through the descriptor to avoid a TOCTOU race.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxConfigFileSize)
	}
	return content, nil
}

func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", info.Name())
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o022 != 0 {
			return fmt.Errorf("config file is group or world writable (mode %#o)", perm)
		}
	}
	return nil
}

// applyDefaults fills values derived from other settings or the process
// environment.
func applyDefaults(cfg *Config) {
	if key := Secret(os.Getenv("OPENAI_API_KEY")); key.IsSet() {
		if !cfg.Generation.APIKey.IsSet() {
			cfg.Generation.APIKey = key
		}
		if !cfg.Embeddings.APIKey.IsSet() {
			cfg.Embeddings.APIKey = key
		}
	}
	if cfg.Embeddings.Provider == "fastembed" && cfg.Embeddings.Model == "text-embedding-3-large" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
		cfg.Embeddings.Dimension = 384
	}
	if cfg.Embeddings.CacheDir == "" {
		cfg.Embeddings.CacheDir = "./data/models"
	}
}
