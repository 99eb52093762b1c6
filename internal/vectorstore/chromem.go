package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const backendChromem = "chromem"

// ChromemConfig configures the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps the index in memory.
	Path string

	// Compress enables gzip compression of persisted files.
	Compress bool

	// Collection is the collection holding all chunks.
	Collection string

	// Dimension is the embedding dimension every record must match.
	Dimension int
}

// Validate checks the configuration.
func (c ChromemConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemIndex is an Index backed by an embedded chromem-go database.
//
// chromem has no scan API, so Chunks and Documents enumerate through a
// full-collection similarity query with a basis vector and a metadata filter.
type ChromemIndex struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	mu         sync.RWMutex
	collection *chromem.Collection
	closed     bool
}

var _ Index = (*ChromemIndex)(nil)

// NewChromemIndex opens (or creates) the chromem database and collection.
func NewChromemIndex(config ChromemConfig, logger *zap.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrUnavailable, err)
		}
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, precomputedOnly)
	if err != nil {
		return nil, fmt.Errorf("%w: opening collection %s: %v", ErrUnavailable, config.Collection, err)
	}

	idx := &ChromemIndex{
		db:         db,
		config:     config,
		logger:     logger,
		collection: collection,
	}

	logger.Info("chromem index initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
		zap.String("collection", config.Collection),
		zap.Int("dimension", config.Dimension),
		zap.Int("chunks", collection.Count()),
	)
	ChunksStored.WithLabelValues(backendChromem).Set(float64(collection.Count()))

	return idx, nil
}

// precomputedOnly is installed as the collection embedding function.
// Records always arrive with embeddings, so reaching it is a bug.
func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem index requires precomputed embeddings")
}

func (c *ChromemIndex) current() (*chromem.Collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("%w: index closed", ErrUnavailable)
	}
	return c.collection, nil
}

// Upsert implements Index.
func (c *ChromemIndex) Upsert(ctx context.Context, records []Record) (err error) {
	ctx, span := tracer.Start(ctx, "ChromemIndex.Upsert")
	defer span.End()
	defer func(start time.Time) { observe(span, backendChromem, "upsert", start, err) }(time.Now())

	span.SetAttributes(attribute.Int("records", len(records)))
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records, c.config.Dimension); err != nil {
		return err
	}

	collection, err := c.current()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
		}
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("%w: adding documents: %v", ErrUnavailable, err)
	}

	ChunksStored.WithLabelValues(backendChromem).Set(float64(collection.Count()))
	c.logger.Debug("chunks upserted",
		zap.String("collection", c.config.Collection),
		zap.Int("count", len(records)),
	)
	return nil
}

// Query implements Index.
func (c *ChromemIndex) Query(ctx context.Context, vector []float32, k int, filter *Filter) (results []Result, err error) {
	ctx, span := tracer.Start(ctx, "ChromemIndex.Query")
	defer span.End()
	defer func(start time.Time) { observe(span, backendChromem, "query", start, err) }(time.Now())

	span.SetAttributes(attribute.Int("k", k))
	if len(vector) != c.config.Dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), c.config.Dimension)
	}
	collection, err := c.current()
	if err != nil {
		return nil, err
	}

	count := collection.Count()
	if k <= 0 || count == 0 {
		return []Result{}, nil
	}
	k = min(k, count)

	if filter.empty() {
		results, err = c.query(ctx, collection, vector, k, nil)
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Int("results", len(results)))
		return results, nil
	}

	// chromem where clauses only support equality, so an allow-list is
	// answered with one query per document and merged.
	for _, id := range filter.DocumentIDs {
		part, err := c.query(ctx, collection, vector, k, map[string]string{KeyDocumentID: id})
		if err != nil {
			return nil, err
		}
		results = append(results, part...)
	}
	sortBySimilarity(results)
	if len(results) > k {
		results = results[:k]
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

func (c *ChromemIndex) query(ctx context.Context, collection *chromem.Collection, vector []float32, n int, where map[string]string) ([]Result, error) {
	found, err := collection.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: querying collection: %v", ErrUnavailable, err)
	}
	results := make([]Result, len(found))
	for i, r := range found {
		results[i] = Result{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: float64(r.Similarity),
		}
	}
	return results, nil
}

// scan returns every chunk matching where.
func (c *ChromemIndex) scan(ctx context.Context, collection *chromem.Collection, where map[string]string) ([]Result, error) {
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	probe := make([]float32, c.config.Dimension)
	probe[0] = 1
	return c.query(ctx, collection, probe, count, where)
}

// DeleteDocument implements Index.
func (c *ChromemIndex) DeleteDocument(ctx context.Context, documentID string) (removed int, err error) {
	ctx, span := tracer.Start(ctx, "ChromemIndex.DeleteDocument")
	defer span.End()
	defer func(start time.Time) { observe(span, backendChromem, "delete", start, err) }(time.Now())

	span.SetAttributes(attribute.String("document.id", documentID))
	if documentID == "" {
		return 0, ErrMissingDocumentID
	}
	collection, err := c.current()
	if err != nil {
		return 0, err
	}

	before := collection.Count()
	if before == 0 {
		return 0, nil
	}
	if err := collection.Delete(ctx, map[string]string{KeyDocumentID: documentID}, nil); err != nil {
		return 0, fmt.Errorf("%w: deleting document %s: %v", ErrUnavailable, documentID, err)
	}
	after := collection.Count()
	ChunksStored.WithLabelValues(backendChromem).Set(float64(after))
	return before - after, nil
}

// Count implements Index.
func (c *ChromemIndex) Count(ctx context.Context) (int, error) {
	collection, err := c.current()
	if err != nil {
		return 0, err
	}
	return collection.Count(), nil
}

// Chunks implements Index.
func (c *ChromemIndex) Chunks(ctx context.Context, documentID string) (results []Result, err error) {
	ctx, span := tracer.Start(ctx, "ChromemIndex.Chunks")
	defer span.End()
	defer func(start time.Time) { observe(span, backendChromem, "chunks", start, err) }(time.Now())

	span.SetAttributes(attribute.String("document.id", documentID))
	collection, err := c.current()
	if err != nil {
		return nil, err
	}
	results, err = c.scan(ctx, collection, map[string]string{KeyDocumentID: documentID})
	if err != nil {
		return nil, err
	}
	sortChunks(results)
	return results, nil
}

// Documents implements Index.
func (c *ChromemIndex) Documents(ctx context.Context) (docs []DocumentSummary, err error) {
	ctx, span := tracer.Start(ctx, "ChromemIndex.Documents")
	defer span.End()
	defer func(start time.Time) { observe(span, backendChromem, "documents", start, err) }(time.Now())

	collection, err := c.current()
	if err != nil {
		return nil, err
	}
	all, err := c.scan(ctx, collection, nil)
	if err != nil {
		return nil, err
	}
	return summarize(all), nil
}

// Reset implements Index.
func (c *ChromemIndex) Reset(ctx context.Context) (err error) {
	_, span := tracer.Start(ctx, "ChromemIndex.Reset")
	defer span.End()
	defer func(start time.Time) { observe(span, backendChromem, "reset", start, err) }(time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: index closed", ErrUnavailable)
	}

	if err := c.db.DeleteCollection(c.config.Collection); err != nil {
		return fmt.Errorf("%w: deleting collection: %v", ErrUnavailable, err)
	}
	collection, err := c.db.GetOrCreateCollection(c.config.Collection, nil, precomputedOnly)
	if err != nil {
		return fmt.Errorf("%w: recreating collection: %v", ErrUnavailable, err)
	}
	c.collection = collection
	ChunksStored.WithLabelValues(backendChromem).Set(0)

	c.logger.Warn("vector index reset", zap.String("collection", c.config.Collection))
	return nil
}

// Stats implements Index.
func (c *ChromemIndex) Stats(ctx context.Context) (Stats, error) {
	docs, err := c.Documents(ctx)
	if err != nil {
		return Stats{}, err
	}
	total, err := c.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend:        backendChromem,
		Collection:     c.config.Collection,
		Dimension:      c.config.Dimension,
		TotalChunks:    total,
		TotalDocuments: len(docs),
	}, nil
}

// Health implements Index.
func (c *ChromemIndex) Health(ctx context.Context) error {
	_, err := c.current()
	return err
}

// Close implements Index. chromem persists on every write, so Close only
// marks the index unusable.
func (c *ChromemIndex) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
