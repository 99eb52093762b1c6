// Package generation turns prompts into answers through a chat model.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrGenerationFailure wraps provider errors.
	ErrGenerationFailure = errors.New("generation failed")

	// ErrNotConfigured is returned when no provider or credentials are set.
	ErrNotConfigured = errors.New("no LLM service configured")
)

// Request is one chat completion call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Response is the generated answer.
type Response struct {
	Text  string
	Model string

	// TotalTokens is nil when the provider did not report usage.
	TotalTokens *int
}

// Generator produces text from a system instruction and user message.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Model identifies the backing model.
	Model() string
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, req Request) (Response, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Model implements Generator.
func (f Func) Model() string { return "func" }

// New creates the generator selected by cfg.Provider. It returns
// ErrNotConfigured for provider "none" or a missing API key.
func New(cfg config.GenerationConfig, logger *zap.Logger) (Generator, error) {
	switch cfg.Provider {
	case "none":
		return nil, ErrNotConfigured
	case "openai", "":
		if !cfg.APIKey.IsSet() && cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: generation api key not set", ErrNotConfigured)
		}
		return NewOpenAIGenerator(OpenAIConfig{
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey.Value(),
			Timeout:   cfg.Timeout.Duration(),
			RateLimit: cfg.RateLimit,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, cfg.Provider)
	}
}
