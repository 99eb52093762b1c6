package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OpenAIConfig configures the OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	// Model is the embedding model, e.g. text-embedding-3-large.
	Model string

	// BaseURL overrides the API endpoint (OpenAI-compatible servers).
	BaseURL string

	// APIKey authenticates against the API.
	APIKey string

	// Dimension is the expected vector length.
	Dimension int

	// BatchSize is the number of texts per request. Defaults to 10.
	BatchSize int

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64
}

// Validate checks the configuration.
func (c OpenAIConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	if c.APIKey == "" && c.BaseURL == "" {
		return fmt.Errorf("%w: api key not configured", ErrEmbeddingUnavailable)
	}
	return nil
}

// OpenAIProvider embeds text through langchaingo's OpenAI client.
type OpenAIProvider struct {
	client  embeddings.EmbedderClient
	config  OpenAIConfig
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *Metrics
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates the provider. A missing API key yields
// ErrEmbeddingUnavailable.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token; self-hosted endpoints ignore it.
		apiKey = "placeholder"
	}
	opts := []openai.Option{
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating OpenAI client: %v", ErrEmbeddingUnavailable, err)
	}
	return newOpenAIProvider(llm, cfg, logger), nil
}

// newOpenAIProvider wires an already constructed client.
func newOpenAIProvider(client embeddings.EmbedderClient, cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &OpenAIProvider{
		client:  client,
		config:  cfg,
		limiter: limiter,
		logger:  logger,
		metrics: NewMetrics(logger),
	}
}

// EmbedDocuments implements Provider. Texts are sent in batches of
// BatchSize, each batch waiting on the rate limiter.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.config.Model, "embed_documents", time.Since(start), len(texts), err)
	}()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors = make([][]float32, 0, len(texts))
	for from := 0; from < len(texts); from += p.config.BatchSize {
		to := min(from+p.config.BatchSize, len(texts))
		batch, err := p.embed(ctx, texts[from:to])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery implements Provider.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.config.Model, "embed_query", time.Since(start), 0, err)
	}()

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	vectors, err := p.client.CreateEmbedding(ctx, texts)
	if err != nil {
		p.logger.Warn("embedding request failed",
			zap.String("model", p.config.Model),
			zap.Int("batch_size", len(texts)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if err := checkDimensions(vectors, len(texts), p.config.Dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Dimension implements Provider.
func (p *OpenAIProvider) Dimension() int { return p.config.Dimension }

// Model implements Provider.
func (p *OpenAIProvider) Model() string { return p.config.Model }

// Close implements Provider.
func (p *OpenAIProvider) Close() error { return nil }
