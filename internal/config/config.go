// Package config provides configuration loading for ragd.
//
// Values come from three layers, highest precedence first: environment
// variables (RAGD_SECTION_FIELD), an optional YAML file, and the defaults
// returned by Default.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Config holds the complete ragd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Generation  GenerationConfig  `koanf:"generation"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	History     HistoryConfig     `koanf:"history"`
	Events      EventsConfig      `koanf:"events"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RequestTimeout  Duration `koanf:"request_timeout"`
}

// IngestConfig controls document staging, segmentation and the worker pool.
type IngestConfig struct {
	UploadDir      string `koanf:"upload_dir"`
	MaxFileSizeMB  int    `koanf:"max_file_size_mb"`
	ChunkSize      int    `koanf:"chunk_size"`
	ChunkOverlap   int    `koanf:"chunk_overlap"`
	MinChunkLength int    `koanf:"min_chunk_length"`
	Workers        int    `koanf:"workers"`
	QueueSize      int    `koanf:"queue_size"`
	AddBatchSize   int    `koanf:"add_batch_size"`
	WatchDir       string `koanf:"watch_dir"`
	RedactSecrets  bool   `koanf:"redact_secrets"`
}

// MaxFileSizeBytes returns the upload limit in bytes.
func (c IngestConfig) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// RetrievalConfig controls candidate search and prompt assembly.
type RetrievalConfig struct {
	TopK                int     `koanf:"top_k"`
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
	CandidatePool       int     `koanf:"candidate_pool"`
	CandidateFloor      float64 `koanf:"candidate_floor"`
	HistoryTurns        int     `koanf:"history_turns"`
}

// GenerationConfig configures the chat model used to answer queries.
type GenerationConfig struct {
	Provider           string   `koanf:"provider"`
	Model              string   `koanf:"model"`
	BaseURL            string   `koanf:"base_url"`
	APIKey             Secret   `koanf:"api_key"`
	MaxTokens          int      `koanf:"max_tokens"`
	Temperature        float64  `koanf:"temperature"`
	SummaryMaxTokens   int      `koanf:"summary_max_tokens"`
	SummaryTemperature float64  `koanf:"summary_temperature"`
	Timeout            Duration `koanf:"timeout"`
	RateLimit          float64  `koanf:"rate_limit"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider  string  `koanf:"provider"`
	Model     string  `koanf:"model"`
	Dimension int     `koanf:"dimension"`
	BaseURL   string  `koanf:"base_url"`
	APIKey    Secret  `koanf:"api_key"`
	BatchSize int     `koanf:"batch_size"`
	RateLimit float64 `koanf:"rate_limit"`
	CacheDir  string  `koanf:"cache_dir"`
}

// VectorStoreConfig selects and configures the vector index backend.
type VectorStoreConfig struct {
	Provider        string `koanf:"provider"`
	Collection      string `koanf:"collection"`
	ChromemPath     string `koanf:"chromem_path"`
	ChromemCompress bool   `koanf:"chromem_compress"`
	QdrantHost      string `koanf:"qdrant_host"`
	QdrantPort      int    `koanf:"qdrant_port"`
	QdrantTLS       bool   `koanf:"qdrant_tls"`
	QdrantAPIKey    Secret `koanf:"qdrant_api_key"`
}

// HistoryConfig bounds the conversation history.
type HistoryConfig struct {
	Capacity int `koanf:"capacity"`
}

// EventsConfig enables ingestion lifecycle events over NATS.
// An empty NATSURL disables publishing.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig holds the logger settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Endpoint        string   `koanf:"endpoint"`
	Protocol        string   `koanf:"protocol"`
	Insecure        bool     `koanf:"insecure"`
	SampleRate      float64  `koanf:"sample_rate"`
	MetricsInterval Duration `koanf:"metrics_interval"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: Duration(10 * time.Second),
			RequestTimeout:  Duration(120 * time.Second),
		},
		Ingest: IngestConfig{
			UploadDir:      "./data/uploads",
			MaxFileSizeMB:  50,
			ChunkSize:      512,
			ChunkOverlap:   100,
			MinChunkLength: 30,
			Workers:        2,
			QueueSize:      64,
			AddBatchSize:   100,
		},
		Retrieval: RetrievalConfig{
			TopK:                3,
			SimilarityThreshold: 0.5,
			CandidatePool:       20,
			CandidateFloor:      0.2,
			HistoryTurns:        5,
		},
		Generation: GenerationConfig{
			Provider:           "openai",
			Model:              "gpt-4o",
			MaxTokens:          3000,
			Temperature:        0.0,
			SummaryMaxTokens:   500,
			SummaryTemperature: 0.1,
			Timeout:            Duration(60 * time.Second),
			RateLimit:          5,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-large",
			Dimension: 3072,
			BatchSize: 10,
			RateLimit: 10,
		},
		VectorStore: VectorStoreConfig{
			Provider:    "chromem",
			Collection:  "rag_documents",
			ChromemPath: "./data/chroma_db",
			QdrantHost:  "localhost",
			QdrantPort:  6334,
		},
		History: HistoryConfig{
			Capacity: 1000,
		},
		Events: EventsConfig{
			SubjectPrefix: "ragd.documents",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
			SampleRate:      1.0,
			MetricsInterval: Duration(15 * time.Second),
		},
	}
}

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		add("server.shutdown_timeout must be positive")
	}

	if c.Ingest.MaxFileSizeMB <= 0 {
		add("ingest.max_file_size_mb must be positive, got %d", c.Ingest.MaxFileSizeMB)
	}
	if c.Ingest.ChunkSize <= 0 {
		add("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		add("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.MinChunkLength < 0 {
		add("ingest.min_chunk_length cannot be negative")
	}
	if c.Ingest.Workers < 1 {
		add("ingest.workers must be at least 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.QueueSize < 1 {
		add("ingest.queue_size must be at least 1, got %d", c.Ingest.QueueSize)
	}
	if c.Ingest.AddBatchSize < 1 {
		add("ingest.add_batch_size must be at least 1, got %d", c.Ingest.AddBatchSize)
	}

	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 20 {
		add("retrieval.top_k must be between 1 and 20, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		add("retrieval.similarity_threshold must be between 0 and 1, got %v", c.Retrieval.SimilarityThreshold)
	}
	if c.Retrieval.CandidatePool < 1 {
		add("retrieval.candidate_pool must be at least 1, got %d", c.Retrieval.CandidatePool)
	}
	if c.Retrieval.CandidateFloor < 0 || c.Retrieval.CandidateFloor > 1 {
		add("retrieval.candidate_floor must be between 0 and 1, got %v", c.Retrieval.CandidateFloor)
	}
	if c.Retrieval.HistoryTurns < 0 {
		add("retrieval.history_turns cannot be negative")
	}

	switch c.Generation.Provider {
	case "openai", "none":
	default:
		add("generation.provider must be openai or none, got %q", c.Generation.Provider)
	}
	if c.Generation.MaxTokens <= 0 || c.Generation.SummaryMaxTokens <= 0 {
		add("generation max tokens must be positive")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		add("generation.temperature must be between 0 and 2, got %v", c.Generation.Temperature)
	}
	if c.Generation.RateLimit <= 0 {
		add("generation.rate_limit must be positive")
	}

	switch c.Embeddings.Provider {
	case "openai", "fastembed":
	default:
		add("embeddings.provider must be openai or fastembed, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimension <= 0 {
		add("embeddings.dimension must be positive, got %d", c.Embeddings.Dimension)
	}
	if c.Embeddings.BatchSize < 1 {
		add("embeddings.batch_size must be at least 1, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.RateLimit <= 0 {
		add("embeddings.rate_limit must be positive")
	}

	switch c.VectorStore.Provider {
	case "chromem":
		if c.VectorStore.ChromemPath == "" {
			add("vectorstore.chromem_path is required for the chromem provider")
		}
	case "qdrant":
		if c.VectorStore.QdrantHost == "" {
			add("vectorstore.qdrant_host is required for the qdrant provider")
		}
		if c.VectorStore.QdrantPort < 1 || c.VectorStore.QdrantPort > 65535 {
			add("vectorstore.qdrant_port must be between 1 and 65535, got %d", c.VectorStore.QdrantPort)
		}
	default:
		add("vectorstore.provider must be chromem or qdrant, got %q", c.VectorStore.Provider)
	}
	if !collectionNamePattern.MatchString(c.VectorStore.Collection) {
		add("vectorstore.collection must match %s, got %q", collectionNamePattern, c.VectorStore.Collection)
	}

	if c.History.Capacity < 1 {
		add("history.capacity must be at least 1, got %d", c.History.Capacity)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		add("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			add("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			add("telemetry.sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate)
		}
	}

	return errors.Join(errs...)
}
