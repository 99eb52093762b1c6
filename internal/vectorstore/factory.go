package vectorstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"go.uber.org/zap"
)

// NewIndex creates the Index selected by cfg.VectorStore.Provider:
//   - "chromem" (default): embedded, persisted under ChromemPath
//   - "qdrant": external Qdrant server
//
// The index dimension follows the configured embedding model.
func NewIndex(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Index, error) {
	vs := cfg.VectorStore
	switch vs.Provider {
	case "chromem", "":
		return NewChromemIndex(ChromemConfig{
			Path:       vs.ChromemPath,
			Compress:   vs.ChromemCompress,
			Collection: vs.Collection,
			Dimension:  cfg.Embeddings.Dimension,
		}, logger)
	case "qdrant":
		return NewQdrantIndex(ctx, QdrantConfig{
			Host:       vs.QdrantHost,
			Port:       vs.QdrantPort,
			UseTLS:     vs.QdrantTLS,
			APIKey:     vs.QdrantAPIKey.Value(),
			Collection: vs.Collection,
			Dimension:  cfg.Embeddings.Dimension,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q", ErrInvalidConfig, vs.Provider)
	}
}
