package embeddings

import (
	"context"
	"fmt"
)

// Unavailable is a Provider whose every call fails with
// ErrEmbeddingUnavailable. The daemon installs it when the configured
// provider cannot start so health checks can report the cause.
type Unavailable struct {
	model     string
	dimension int
	cause     error
}

var _ Provider = (*Unavailable)(nil)

// NewUnavailable returns a provider that reports cause on every call.
func NewUnavailable(model string, dimension int, cause error) *Unavailable {
	return &Unavailable{model: model, dimension: dimension, cause: cause}
}

func (u *Unavailable) err() error {
	return fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, u.cause)
}

// Cause returns the startup error.
func (u *Unavailable) Cause() error { return u.cause }

func (u *Unavailable) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, u.err()
}

func (u *Unavailable) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, u.err()
}

func (u *Unavailable) Dimension() int { return u.dimension }

func (u *Unavailable) Model() string { return u.model }

func (u *Unavailable) Close() error { return nil }
