package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/events"
	"github.com/fyrsmithlabs/ragd/internal/normalize"
	"github.com/fyrsmithlabs/ragd/internal/secrets"
	"github.com/fyrsmithlabs/ragd/internal/segment"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("ragd.ingest")

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("ingestion queue is full")

	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("ingestion service is not running")

	// ErrAlreadyRunning is returned by a second Start.
	ErrAlreadyRunning = errors.New("ingestion service is already running")
)

// Progress messages recorded in ProcessingStatus.
const (
	msgQueued    = "Document uploaded successfully. Processing started."
	msgStarting  = "Starting document processing"
	msgExtracted = "Text extracted, creating chunks"
	msgEmbedding = "Generating embeddings"
	msgStoring   = "Storing chunks"
	msgCompleted = "Document processing completed"
)

// Config sizes the worker pool, batches and chunks.
type Config struct {
	Workers        int
	QueueSize      int
	MaxFileSize    int64 // bytes; 0 disables the check
	EmbedBatchSize int
	AddBatchSize   int
	TempDir        string
	// Chunking falls back to segment.DefaultConfig when ChunkSize is unset.
	Chunking segment.Config
}

// ConfigFromApp derives Config from the loaded configuration.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		Workers:        cfg.Ingest.Workers,
		QueueSize:      cfg.Ingest.QueueSize,
		MaxFileSize:    cfg.Ingest.MaxFileSizeBytes(),
		EmbedBatchSize: cfg.Embeddings.BatchSize,
		AddBatchSize:   cfg.Ingest.AddBatchSize,
		TempDir:        cfg.Ingest.UploadDir,
		Chunking: segment.Config{
			ChunkSize:      cfg.Ingest.ChunkSize,
			ChunkOverlap:   cfg.Ingest.ChunkOverlap,
			MinChunkLength: cfg.Ingest.MinChunkLength,
		},
	}
}

func (c *Config) applyDefaults() {
	if c.Workers < 1 {
		c.Workers = 2
	}
	if c.QueueSize < 1 {
		c.QueueSize = 64
	}
	if c.EmbedBatchSize < 1 {
		c.EmbedBatchSize = 10
	}
	if c.AddBatchSize < 1 {
		c.AddBatchSize = 100
	}
	if c.Chunking.ChunkSize < 1 {
		c.Chunking = segment.DefaultConfig()
	}
}

// Upload is a staged file awaiting ingestion.
type Upload struct {
	// DocumentID is generated when empty.
	DocumentID string
	// Path is the staged file.
	Path string
	// Filename is the user-facing name; defaults to the base of Path.
	Filename string
	// ContentType defaults to the MIME type of the detected format.
	ContentType string
	// UploadedAt defaults to the submit time.
	UploadedAt time.Time
	// RemoveAfter deletes Path once the document is indexed.
	RemoveAfter bool
}

// Handle describes an accepted upload.
type Handle struct {
	DocumentID  string    `json:"document_id"`
	Filename    string    `json:"filename"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	Format      string    `json:"format"`
	UploadedAt  time.Time `json:"upload_timestamp"`
	Status      Status    `json:"status"`
	Message     string    `json:"message"`
}

type job struct {
	upload Upload
	format document.Format
	size   int64
}

// Service ingests documents with a bounded queue and a fixed worker pool.
type Service struct {
	cfg       Config
	index     vectorstore.Index
	embedder  embeddings.Provider
	extractor *document.Extractor
	segmenter *segment.Segmenter
	redactor  secrets.Redactor
	publisher events.Publisher
	statuses  *StatusStore
	logger    *zap.Logger

	queue chan job

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithExtractor replaces the default document extractor.
func WithExtractor(e *document.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithSegmenter replaces the default segmenter.
func WithSegmenter(seg *segment.Segmenter) Option {
	return func(s *Service) { s.segmenter = seg }
}

// WithRedactor redacts secrets from chunk text before embedding.
func WithRedactor(r secrets.Redactor) Option {
	return func(s *Service) { s.redactor = r }
}

// WithPublisher publishes lifecycle events.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithStatusStore shares an existing status store.
func WithStatusStore(st *StatusStore) Option {
	return func(s *Service) { s.statuses = st }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. Call Start before Submit.
func NewService(cfg Config, index vectorstore.Index, embedder embeddings.Provider, opts ...Option) (*Service, error) {
	if index == nil {
		return nil, errors.New("ingest: vector index is required")
	}
	if embedder == nil {
		return nil, errors.New("ingest: embedding provider is required")
	}
	cfg.applyDefaults()

	s := &Service{
		cfg:       cfg,
		index:     index,
		embedder:  embedder,
		redactor:  secrets.Nop{},
		publisher: events.Nop{},
		statuses:  NewStatusStore(),
		logger:    zap.NewNop(),
		queue:     make(chan job, cfg.QueueSize),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		extractorOpts := []document.ExtractorOption{document.WithLogger(s.logger)}
		if cfg.TempDir != "" {
			extractorOpts = append(extractorOpts, document.WithTempDir(cfg.TempDir))
		}
		s.extractor = document.NewExtractor(extractorOpts...)
	}
	if s.segmenter == nil {
		seg, err := segment.New(cfg.Chunking)
		if err != nil {
			return nil, err
		}
		s.segmenter = seg
	}
	return s, nil
}

// Start launches the workers. They run until Stop is called or ctx ends.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.stopCh = make(chan struct{})
	s.running = true

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i, s.stopCh)
	}
	s.logger.Info("ingestion workers started",
		zap.Int("workers", s.cfg.Workers),
		zap.Int("queue_size", s.cfg.QueueSize))
	return nil
}

// Stop signals the workers and waits for in-flight documents to finish or
// ctx to end. Queued documents that were not started stay pending.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("ingestion workers stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for ingestion workers: %w", ctx.Err())
	}
}

// Submit validates u, marks it pending and queues it. It never blocks on a
// full queue.
func (s *Service) Submit(ctx context.Context, u Upload) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	format, size, err := document.ValidateFile(u.Path, s.cfg.MaxFileSize)
	if err != nil {
		return Handle{}, err
	}

	if u.DocumentID == "" {
		u.DocumentID = uuid.NewString()
	}
	if u.Filename == "" {
		u.Filename = filepath.Base(u.Path)
	}
	if u.ContentType == "" {
		u.ContentType = format.MIMEType()
	}
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now().UTC()
	}

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return Handle{}, ErrNotRunning
	}

	s.statuses.Set(ProcessingStatus{
		DocumentID: u.DocumentID,
		Filename:   u.Filename,
		Status:     StatusPending,
		Message:    msgQueued,
	})
	select {
	case s.queue <- job{upload: u, format: format, size: size}:
		QueueDepth.Inc()
	default:
		s.statuses.Delete(u.DocumentID)
		return Handle{}, ErrQueueFull
	}

	s.logger.Info("document queued",
		zap.String("document.id", u.DocumentID),
		zap.String("filename", u.Filename),
		zap.Int64("size", size))
	return Handle{
		DocumentID:  u.DocumentID,
		Filename:    u.Filename,
		FileSize:    size,
		ContentType: u.ContentType,
		Format:      format.String(),
		UploadedAt:  u.UploadedAt,
		Status:      StatusPending,
		Message:     msgQueued,
	}, nil
}

// Status returns the processing status of id.
func (s *Service) Status(id string) (ProcessingStatus, bool) {
	return s.statuses.Get(id)
}

// Statuses returns all tracked statuses.
func (s *Service) Statuses() []ProcessingStatus {
	return s.statuses.List()
}

// Forget drops the status of id.
func (s *Service) Forget(id string) {
	s.statuses.Delete(id)
}

// Reset drops every status.
func (s *Service) Reset() {
	s.statuses.Reset()
}

// QueueLen returns the number of queued documents.
func (s *Service) QueueLen() int {
	return len(s.queue)
}

func (s *Service) worker(ctx context.Context, id int, stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case j := <-s.queue:
			QueueDepth.Dec()
			s.runJob(ctx, id, j)
		}
	}
}

// runJob processes one document. A panic fails that document only.
func (s *Service) runJob(ctx context.Context, worker int, j job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ingestion worker panicked, recovering",
				zap.Int("worker", worker),
				zap.String("document.id", j.upload.DocumentID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			s.fail(ctx, j.upload, fmt.Errorf("panic: %v", r))
		}
	}()
	_ = s.process(ctx, j)
}

// process runs the ingestion steps and records the outcome in the status
// store. The returned error is already recorded.
func (s *Service) process(ctx context.Context, j job) (err error) {
	u := j.upload
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Service.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", u.DocumentID),
		attribute.String("document.format", j.format.String()),
		attribute.Int64("document.size", j.size),
	)
	defer func() {
		ProcessingDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.fail(ctx, u, err)
			return
		}
		span.SetStatus(codes.Ok, "success")
	}()

	s.update(ctx, u, StatusProcessing, 0, msgStarting, 0, 0)

	raw, err := s.extractor.Extract(ctx, u.Path, j.format)
	if err != nil {
		return err
	}
	text := normalize.Normalize(raw)
	s.update(ctx, u, StatusProcessing, 30, msgExtracted, 0, 0)

	chunks, err := s.segmenter.Segment(text, u.DocumentID, segment.Source{
		Filename:    u.Filename,
		FileSize:    j.size,
		ContentType: u.ContentType,
		UploadedAt:  u.UploadedAt,
	})
	if err != nil {
		return err
	}
	if err := s.redact(ctx, chunks); err != nil {
		return err
	}

	total := len(chunks)
	if total > 0 {
		if err := s.embed(ctx, u, chunks); err != nil {
			return err
		}
		if err := s.store(ctx, u, chunks); err != nil {
			return err
		}
	}

	s.update(ctx, u, StatusCompleted, 100, msgCompleted, total, total)
	DocumentsTotal.WithLabelValues("completed").Inc()
	span.SetAttributes(attribute.Int("document.chunks", total))

	if u.RemoveAfter {
		if rmErr := os.Remove(u.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("failed to remove staged file", zap.String("path", u.Path), zap.Error(rmErr))
		}
	}
	s.logger.Info("document processing completed",
		zap.String("document.id", u.DocumentID),
		zap.Int("chunks", total),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *Service) redact(ctx context.Context, chunks []segment.Chunk) error {
	for i := range chunks {
		res, err := s.redactor.Redact(chunks[i].Content)
		if err != nil {
			return fmt.Errorf("redacting chunk %s: %w", chunks[i].ID, err)
		}
		if !res.HasFindings() {
			continue
		}
		SecretsRedacted.Add(float64(len(res.Findings)))
		chunks[i].Content = res.Text
		chunks[i].Metadata[segment.MetaChunkLength] = strconv.Itoa(utf8.RuneCountInString(res.Text))
		s.logger.Info("redacted secrets from chunk",
			zap.String("chunk.id", chunks[i].ID),
			zap.Int("findings", len(res.Findings)))
	}
	return ctx.Err()
}

// embed fills chunk embeddings batch by batch, moving progress from 30 to 90.
// Chunk text is preprocessed the same way queries are.
func (s *Service) embed(ctx context.Context, u Upload, chunks []segment.Chunk) error {
	total := len(chunks)
	for start := 0; start < total; start += s.cfg.EmbedBatchSize {
		end := min(start+s.cfg.EmbedBatchSize, total)
		texts := make([]string, end-start)
		for i := range texts {
			// Stored content stays as extracted; only the embedded text is preprocessed.
			texts[i] = embeddings.Preprocess(chunks[start+i].Content)
			if texts[i] == "" {
				texts[i] = chunks[start+i].Content
			}
		}
		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedding chunks %d-%d: got %d vectors", start, end-1, len(vectors))
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
		progress := 30 + 60*float64(end)/float64(total)
		s.update(ctx, u, StatusProcessing, progress, msgEmbedding, 0, total)
	}
	return nil
}

// store upserts chunks in batches of AddBatchSize.
func (s *Service) store(ctx context.Context, u Upload, chunks []segment.Chunk) error {
	total := len(chunks)
	for start := 0; start < total; start += s.cfg.AddBatchSize {
		end := min(start+s.cfg.AddBatchSize, total)
		records := make([]vectorstore.Record, 0, end-start)
		for _, c := range chunks[start:end] {
			records = append(records, vectorstore.Record{
				ID:        c.ID,
				Content:   c.Content,
				Embedding: c.Embedding,
				Metadata:  c.Metadata,
			})
		}
		if err := s.index.Upsert(ctx, records); err != nil {
			return fmt.Errorf("storing chunks %d-%d: %w", start, end-1, err)
		}
		ChunksIndexed.Add(float64(len(records)))
		s.update(ctx, u, StatusProcessing, 90, msgStoring, end, total)
	}
	return nil
}

func (s *Service) update(ctx context.Context, u Upload, status Status, progress float64, msg string, processed, total int) {
	s.statuses.Set(ProcessingStatus{
		DocumentID:      u.DocumentID,
		Filename:        u.Filename,
		Status:          status,
		Progress:        progress,
		Message:         msg,
		ChunksProcessed: processed,
		TotalChunks:     total,
	})

	kind := events.KindProcessing
	if status == StatusCompleted {
		kind = events.KindCompleted
	}
	s.publish(ctx, events.Event{
		Kind:            kind,
		DocumentID:      u.DocumentID,
		Filename:        u.Filename,
		Progress:        progress,
		Message:         msg,
		ChunksProcessed: processed,
		TotalChunks:     total,
	})
}

func (s *Service) fail(ctx context.Context, u Upload, err error) {
	DocumentsTotal.WithLabelValues("failed").Inc()
	prev, _ := s.statuses.Get(u.DocumentID)
	msg := "Processing failed: " + err.Error()
	s.statuses.Set(ProcessingStatus{
		DocumentID:      u.DocumentID,
		Filename:        u.Filename,
		Status:          StatusFailed,
		Progress:        prev.Progress,
		Message:         msg,
		ChunksProcessed: prev.ChunksProcessed,
		TotalChunks:     prev.TotalChunks,
		ErrorDetails:    err.Error(),
	})
	s.publish(ctx, events.Event{
		Kind:       events.KindFailed,
		DocumentID: u.DocumentID,
		Filename:   u.Filename,
		Progress:   prev.Progress,
		Message:    msg,
		Error:      err.Error(),
	})
	s.logger.Error("document processing failed",
		zap.String("document.id", u.DocumentID),
		zap.String("filename", u.Filename),
		zap.Error(err))
}

// publish never fails ingestion; event delivery is best effort.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("failed to publish ingestion event",
			zap.String("document.id", e.DocumentID),
			zap.String("kind", string(e.Kind)),
			zap.Error(err))
	}
}
