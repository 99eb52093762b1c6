package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("ragd.generation")

// OpenAIConfig configures the OpenAI chat generator.
type OpenAIConfig struct {
	Model   string
	BaseURL string
	APIKey  string

	// Timeout bounds a single completion. Zero means no extra bound.
	Timeout time.Duration

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64
}

// OpenAIGenerator answers through an OpenAI-compatible chat endpoint.
type OpenAIGenerator struct {
	llm     llms.Model
	config  OpenAIConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates the generator.
func NewOpenAIGenerator(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrNotConfigured)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating OpenAI client: %v", ErrNotConfigured, err)
	}
	return newOpenAIGenerator(llm, cfg, logger), nil
}

func newOpenAIGenerator(llm llms.Model, cfg OpenAIConfig, logger *zap.Logger) *OpenAIGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &OpenAIGenerator{llm: llm, config: cfg, limiter: limiter, logger: logger}
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "OpenAIGenerator.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", g.config.Model),
		attribute.Int("max_tokens", req.MaxTokens),
		attribute.Float64("temperature", req.Temperature),
	)

	if err := g.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("%w: rate limiter: %v", ErrGenerationFailure, err)
	}
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, req.System),
		llms.TextParts(schema.ChatMessageTypeHuman, req.User),
	}
	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	start := time.Now()
	resp, err := g.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("generation failed",
			zap.String("model", g.config.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return Response{}, fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: empty response", ErrGenerationFailure)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}

	choice := resp.Choices[0]
	out := Response{
		Text:        choice.Content,
		Model:       g.config.Model,
		TotalTokens: totalTokens(choice.GenerationInfo),
	}
	if out.TotalTokens != nil {
		span.SetAttributes(attribute.Int("tokens.total", *out.TotalTokens))
	}
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// Model implements Generator.
func (g *OpenAIGenerator) Model() string { return g.config.Model }

// totalTokens reads usage from langchaingo generation info.
func totalTokens(info map[string]any) *int {
	switch v := info["TotalTokens"].(type) {
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	case float64:
		n := int(v)
		return &n
	default:
		return nil
	}
}
