package embeddings

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records batches and returns constant vectors.
type fakeClient struct {
	dim     int
	batches [][]string
	err     error
	short   bool
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		n := f.dim
		if f.short {
			n--
		}
		out[i] = make([]float32, n)
		out[i][0] = float32(len(f.batches))
	}
	return out, nil
}

func TestOpenAIConfig_Validate(t *testing.T) {
	cfg := OpenAIConfig{Model: "text-embedding-3-large", Dimension: 3072}
	assert.ErrorIs(t, cfg.Validate(), ErrEmbeddingUnavailable)

	cfg.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	cfg.Model = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestOpenAIProvider_EmbedDocumentsBatches(t *testing.T) {
	client := &fakeClient{dim: 4}
	p := newOpenAIProvider(client, OpenAIConfig{Model: "m", Dimension: 4, BatchSize: 2}, nil)

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := p.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 5)

	require.Len(t, client.batches, 3)
	assert.Equal(t, []string{"a", "b"}, client.batches[0])
	assert.Equal(t, []string{"e"}, client.batches[2])
	// Order preserved across batches.
	assert.Equal(t, float32(1), vectors[1][0])
	assert.Equal(t, float32(3), vectors[4][0])
}

func TestOpenAIProvider_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("provider error", func(t *testing.T) {
		p := newOpenAIProvider(&fakeClient{dim: 4, err: errors.New("401 unauthorized")}, OpenAIConfig{Model: "m", Dimension: 4}, nil)
		_, err := p.EmbedQuery(ctx, "hello")
		assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	})

	t.Run("wrong dimension", func(t *testing.T) {
		p := newOpenAIProvider(&fakeClient{dim: 4, short: true}, OpenAIConfig{Model: "m", Dimension: 4}, nil)
		_, err := p.EmbedDocuments(ctx, []string{"hello"})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("empty input", func(t *testing.T) {
		p := newOpenAIProvider(&fakeClient{dim: 4}, OpenAIConfig{Model: "m", Dimension: 4}, nil)
		_, err := p.EmbedDocuments(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
		_, err = p.EmbedQuery(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("canceled while rate limited", func(t *testing.T) {
		p := newOpenAIProvider(&fakeClient{dim: 4}, OpenAIConfig{Model: "m", Dimension: 4, RateLimit: 0.001}, nil)
		_, err := p.EmbedQuery(ctx, "first")
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = p.EmbedQuery(cctx, "second")
		assert.Error(t, err)
	})
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(config.EmbeddingsConfig{Provider: "bogus"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewProvider(config.EmbeddingsConfig{Provider: "openai", Model: "text-embedding-3-large", Dimension: 3072}, nil)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	p, err := NewProvider(config.EmbeddingsConfig{
		Provider:  "openai",
		Model:     "text-embedding-3-large",
		Dimension: 3072,
		APIKey:    config.Secret("sk-test"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3072, p.Dimension())
	assert.Equal(t, "text-embedding-3-large", p.Model())
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and collapse", "Hello   WORLD\n\tagain", "hello world again"},
		{"symbols replaced", "price @ $20 #tag", "price 20 tag"},
		{"punctuation kept", "¿Qué es RAG? (breve)", "qué es rag? (breve)"},
		{"single letters dropped", "a b cd e fg", "cd fg"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preprocess(tt.in))
		})
	}
}

func TestPreprocess_Caps(t *testing.T) {
	out := Preprocess(strings.Repeat("word ", maxPreprocessWords+50))
	assert.Len(t, strings.Fields(out), maxPreprocessWords)
}

func TestPreprocess_QueryAndChunkShareVector(t *testing.T) {
	ctx := context.Background()
	h := NewHashProvider(32)
	text := "Q3 revenue @ HQ grew by a wide margin: see Table 4!"

	processed := Preprocess(text)
	require.NotEmpty(t, processed)
	query, err := h.EmbedQuery(ctx, processed)
	require.NoError(t, err)
	docs, err := h.EmbedDocuments(ctx, []string{processed})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, query, docs[0])
}

func TestHashProvider(t *testing.T) {
	ctx := context.Background()
	h := NewHashProvider(32)

	a, err := h.EmbedQuery(ctx, "vector databases store embeddings")
	require.NoError(t, err)
	b, err := h.EmbedQuery(ctx, "Vector databases store embeddings!")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	var norm float32
	for _, x := range a {
		norm += x * x
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	h.FailWith(errors.New("offline"))
	_, err = h.EmbedDocuments(ctx, []string{"x"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Equal(t, 3, h.Calls())
}

func TestUnavailable(t *testing.T) {
	u := NewUnavailable("m", 8, errors.New("no key"))
	_, err := u.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "no key")
	assert.Equal(t, 8, u.Dimension())
}
