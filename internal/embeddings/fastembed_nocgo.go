//go:build !cgo

package embeddings

import (
	"context"
	"fmt"
)

// FastEmbedConfig configures the local FastEmbed provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	BatchSize int
}

// FastEmbedProvider is unavailable in builds without cgo.
type FastEmbedProvider struct{}

var errNoCgo = fmt.Errorf("%w: fastembed requires a cgo build, use the openai provider", ErrEmbeddingUnavailable)

// NewFastEmbedProvider always fails without cgo.
func NewFastEmbedProvider(_ FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, errNoCgo
}

func (p *FastEmbedProvider) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errNoCgo
}

func (p *FastEmbedProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errNoCgo
}

func (p *FastEmbedProvider) Dimension() int { return 0 }

func (p *FastEmbedProvider) Model() string { return "" }

func (p *FastEmbedProvider) Close() error { return nil }
