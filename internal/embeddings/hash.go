package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// HashProvider is a deterministic offline Provider for tests and local
// development. Each word is hashed into one of Dimension buckets and the
// resulting count vector is L2-normalized, so texts sharing words are close.
type HashProvider struct {
	dimension int

	mu    sync.Mutex
	err   error
	calls int
}

var _ Provider = (*HashProvider)(nil)

// NewHashProvider creates a HashProvider with the given dimension.
func NewHashProvider(dimension int) *HashProvider {
	return &HashProvider{dimension: dimension}
}

// FailWith makes subsequent calls return err (nil restores success).
func (h *HashProvider) FailWith(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// Calls returns the number of embed calls made.
func (h *HashProvider) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *HashProvider) begin() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, h.err)
	}
	return nil
}

// EmbedDocuments implements Provider.
func (h *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := h.begin(); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = h.vector(t)
	}
	return vectors, nil
}

// EmbedQuery implements Provider.
func (h *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := h.begin(); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

func (h *HashProvider) vector(text string) []float32 {
	v := make([]float32, h.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		v[f.Sum32()%uint32(h.dimension)]++
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		// Keep the vector non-zero so cosine similarity stays defined.
		v[0] = 1
		return v
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= norm
	}
	return v
}

// Dimension implements Provider.
func (h *HashProvider) Dimension() int { return h.dimension }

// Model implements Provider.
func (h *HashProvider) Model() string { return "hash" }

// Close implements Provider.
func (h *HashProvider) Close() error { return nil }
