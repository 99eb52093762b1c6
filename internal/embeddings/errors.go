package embeddings

import "errors"

var (
	// ErrEmbeddingUnavailable indicates the provider is not configured or
	// could not be reached.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates the provider returned vectors of an
	// unexpected size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
