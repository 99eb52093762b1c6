package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	backendQdrant = "qdrant"

	// Payload keys reserved by the index next to the record metadata.
	payloadContent = "content"
	payloadChunkID = "chunk_id"

	scrollPageSize = 256
)

// pointNamespace derives stable Qdrant UUIDs from chunk IDs, which are not
// UUIDs themselves.
var pointNamespace = uuid.MustParse("6f1c3a52-8e0d-4b7e-9a43-2d5f0c7b1e94")

// QdrantConfig configures the Qdrant gRPC backend.
type QdrantConfig struct {
	Host       string
	Port       int
	UseTLS     bool
	APIKey     string
	Collection string
	Dimension  int

	// MaxRetries is the number of retries for transient errors.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled on each retry.
	RetryBackoff time.Duration

	// MaxMessageSize caps gRPC messages in bytes.
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of consecutive transient
	// failures that opens the circuit for circuitCooldown.
	CircuitBreakerThreshold int
}

const circuitCooldown = 30 * time.Second

// ApplyDefaults fills zero values.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// Validate checks the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Port)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// IsTransientError reports whether err is worth retrying: unavailability,
// timeouts, aborts and rate limiting.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}

// QdrantIndex is an Index backed by a Qdrant server.
type QdrantIndex struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger

	breaker breaker
}

var _ Index = (*QdrantIndex)(nil)

// NewQdrantIndex connects to Qdrant, verifies health and creates the
// collection when missing.
func NewQdrantIndex(ctx context.Context, config QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext, TLS disabled", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	idx := &QdrantIndex{
		client:  client,
		config:  config,
		logger:  logger,
		breaker: breaker{threshold: config.CircuitBreakerThreshold},
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := idx.Health(hctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := idx.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant index initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
		zap.Int("dimension", config.Dimension),
	)
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	return q.retry(ctx, "ensure_collection", func() error {
		_, err := q.client.GetCollectionInfo(ctx, q.config.Collection)
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		return q.createCollection(ctx)
	})
}

func (q *QdrantIndex) createCollection(ctx context.Context) error {
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.config.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// Upsert implements Index.
func (q *QdrantIndex) Upsert(ctx context.Context, records []Record) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Upsert")
	defer span.End()
	defer func(start time.Time) { observe(span, backendQdrant, "upsert", start, err) }(time.Now())

	span.SetAttributes(attribute.Int("records", len(records)))
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records, q.config.Dimension); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: toPayload(r),
		}
	}

	err = q.retry(ctx, "upsert", func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.config.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: upserting points: %v", ErrUnavailable, err)
	}
	return nil
}

// Query implements Index.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int, filter *Filter) (results []Result, err error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Query")
	defer span.End()
	defer func(start time.Time) { observe(span, backendQdrant, "query", start, err) }(time.Now())

	span.SetAttributes(attribute.Int("k", k))
	if len(vector) != q.config.Dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), q.config.Dimension)
	}
	if k <= 0 {
		return []Result{}, nil
	}

	var scored []*qdrant.ScoredPoint
	err = q.retry(ctx, "query", func() error {
		var err error
		scored, err = q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: q.config.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			Filter:         buildFilter(filter),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: querying points: %v", ErrUnavailable, err)
	}

	results = make([]Result, 0, len(scored))
	for _, p := range scored {
		r := fromPayload(p.GetPayload())
		r.Similarity = float64(p.GetScore())
		results = append(results, r)
	}
	sortBySimilarity(results)
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// DeleteDocument implements Index.
func (q *QdrantIndex) DeleteDocument(ctx context.Context, documentID string) (removed int, err error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.DeleteDocument")
	defer span.End()
	defer func(start time.Time) { observe(span, backendQdrant, "delete", start, err) }(time.Now())

	span.SetAttributes(attribute.String("document.id", documentID))
	if documentID == "" {
		return 0, ErrMissingDocumentID
	}

	existing, err := q.scroll(ctx, buildFilter(&Filter{DocumentIDs: []string{documentID}}))
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return 0, nil
	}

	err = q.retry(ctx, "delete", func() error {
		_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: q.config.Collection,
			Wait:           qdrant.PtrOf(true),
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: buildFilter(&Filter{DocumentIDs: []string{documentID}}),
				},
			},
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: deleting document %s: %v", ErrUnavailable, documentID, err)
	}
	return len(existing), nil
}

// Count implements Index.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := q.retry(ctx, "count", func() error {
		info, err := q.client.GetCollectionInfo(ctx, q.config.Collection)
		if err != nil {
			return err
		}
		count = 0
		if info.PointsCount != nil {
			count = int(*info.PointsCount)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting points: %v", ErrUnavailable, err)
	}
	ChunksStored.WithLabelValues(backendQdrant).Set(float64(count))
	return count, nil
}

// Chunks implements Index.
func (q *QdrantIndex) Chunks(ctx context.Context, documentID string) (results []Result, err error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Chunks")
	defer span.End()
	defer func(start time.Time) { observe(span, backendQdrant, "chunks", start, err) }(time.Now())

	results, err = q.scroll(ctx, buildFilter(&Filter{DocumentIDs: []string{documentID}}))
	if err != nil {
		return nil, err
	}
	sortChunks(results)
	return results, nil
}

// Documents implements Index.
func (q *QdrantIndex) Documents(ctx context.Context) (docs []DocumentSummary, err error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Documents")
	defer span.End()
	defer func(start time.Time) { observe(span, backendQdrant, "documents", start, err) }(time.Now())

	all, err := q.scroll(ctx, nil)
	if err != nil {
		return nil, err
	}
	return summarize(all), nil
}

// scroll pages through every point matching filter.
func (q *QdrantIndex) scroll(ctx context.Context, filter *qdrant.Filter) ([]Result, error) {
	var (
		results []Result
		offset  *qdrant.PointId
	)
	for {
		var (
			points []*qdrant.RetrievedPoint
			next   *qdrant.PointId
		)
		err := q.retry(ctx, "scroll", func() error {
			var err error
			points, next, err = q.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
				CollectionName: q.config.Collection,
				Filter:         filter,
				Offset:         offset,
				Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
				WithPayload:    qdrant.NewWithPayload(true),
				WithVectors:    qdrant.NewWithVectors(false),
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scrolling points: %v", ErrUnavailable, err)
		}
		for _, p := range points {
			results = append(results, fromPayload(p.GetPayload()))
		}
		if next == nil || len(points) == 0 {
			return results, nil
		}
		offset = next
	}
}

// Reset implements Index.
func (q *QdrantIndex) Reset(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Reset")
	defer span.End()
	defer func(start time.Time) { observe(span, backendQdrant, "reset", start, err) }(time.Now())

	err = q.retry(ctx, "reset", func() error {
		if err := q.client.DeleteCollection(ctx, q.config.Collection); err != nil && !isNotFound(err) {
			return err
		}
		return q.createCollection(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: resetting collection: %v", ErrUnavailable, err)
	}
	ChunksStored.WithLabelValues(backendQdrant).Set(0)
	q.logger.Warn("vector index reset", zap.String("collection", q.config.Collection))
	return nil
}

// Stats implements Index.
func (q *QdrantIndex) Stats(ctx context.Context) (Stats, error) {
	total, err := q.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	docs, err := q.Documents(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend:        backendQdrant,
		Collection:     q.config.Collection,
		Dimension:      q.config.Dimension,
		TotalChunks:    total,
		TotalDocuments: len(docs),
	}, nil
}

// Health implements Index.
func (q *QdrantIndex) Health(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Health")
	defer span.End()

	if _, err := q.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: health check: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// retry runs operation with exponential backoff on transient errors.
func (q *QdrantIndex) retry(ctx context.Context, name string, operation func() error) error {
	return retryOperation(ctx, &q.breaker, q.config.MaxRetries, q.config.RetryBackoff, name, operation)
}

// errCircuitOpen is returned while the breaker is open.
var errCircuitOpen = errors.New("circuit breaker open")

func retryOperation(ctx context.Context, b *breaker, maxRetries int, backoff time.Duration, name string, operation func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if b.open() {
			return fmt.Errorf("%s: %w", name, errCircuitOpen)
		}

		err := operation()
		if err == nil {
			b.reset()
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", name, err)
		}
		b.fail()

		if attempt == maxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, maxRetries, err)
		}
		RetriesTotal.WithLabelValues(name).Inc()

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

// breaker counts consecutive transient failures.
type breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	lastFail  time.Time
}

func (b *breaker) fail() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFail = time.Now()
}

func (b *breaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

func (b *breaker) open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.threshold <= 0 || b.failures < b.threshold {
		return false
	}
	if time.Since(b.lastFail) > circuitCooldown {
		b.failures = 0
		return false
	}
	return true
}

func pointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func buildFilter(f *Filter) *qdrant.Filter {
	if f.empty() {
		return nil
	}
	match := &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: f.DocumentIDs[0]}}
	if len(f.DocumentIDs) > 1 {
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keywords{
			Keywords: &qdrant.RepeatedStrings{Strings: f.DocumentIDs},
		}}
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{Key: KeyDocumentID, Match: match},
			},
		}},
	}
}

func toPayload(r Record) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(r.Metadata)+2)
	for k, v := range r.Metadata {
		payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	payload[payloadContent] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: r.Content}}
	payload[payloadChunkID] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: r.ID}}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) Result {
	r := Result{Metadata: make(map[string]string, len(payload))}
	for k, v := range payload {
		s := valueString(v)
		switch k {
		case payloadContent:
			r.Content = s
		case payloadChunkID:
			r.ID = s
		default:
			r.Metadata[k] = s
		}
	}
	return r
}

// valueString renders scalar payload values; points written by other tools
// may carry numbers or booleans.
func valueString(v *qdrant.Value) string {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(kind.IntegerValue, 10)
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(kind.DoubleValue, 'f', -1, 64)
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue)
	default:
		return ""
	}
}
