// Package segment splits normalized document text into overlapping chunks.
package segment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// Metadata keys attached to every chunk.
const (
	MetaDocumentID      = "document_id"
	MetaChunkIndex      = "chunk_index"
	MetaFilename        = "filename"
	MetaFileSize        = "file_size"
	MetaContentType     = "content_type"
	MetaChunkLength     = "chunk_length"
	MetaUploadTimestamp = "upload_timestamp"
)

// Separators are tried in order, coarsest first: section breaks, paragraphs,
// sentence ends, clause punctuation, words, then single characters.
var Separators = []string{"\n\n\n", "\n\n", ". ", "! ", "? ", "; ", ", ", " ", ""}

// ErrInvalidConfig is returned by New for unusable size settings.
var ErrInvalidConfig = errors.New("invalid segmenter config")

// Config sizes chunks in characters.
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
}

// DefaultConfig returns the default chunking parameters.
func DefaultConfig() Config {
	return Config{ChunkSize: 512, ChunkOverlap: 100, MinChunkLength: 30}
}

// Source describes the file a text came from.
type Source struct {
	Filename    string
	FileSize    int64
	ContentType string
	UploadedAt  time.Time
}

// Chunk is one indexable unit of a document.
type Chunk struct {
	ID         string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	Index      int               `json:"chunk_index"`
	Metadata   map[string]string `json:"metadata"`
	Embedding  []float32         `json:"embedding,omitempty"`
}

// ChunkID returns the stable id of the chunk at index within documentID.
func ChunkID(documentID string, index int) string {
	return documentID + "_chunk_" + strconv.Itoa(index)
}

// Segmenter turns normalized text into chunks.
type Segmenter struct {
	cfg      Config
	splitter textsplitter.RecursiveCharacter
}

// New creates a Segmenter.
func New(cfg Config) (*Segmenter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ErrInvalidConfig, cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.MinChunkLength < 0 {
		return nil, fmt.Errorf("%w: min chunk length cannot be negative", ErrInvalidConfig)
	}

	return &Segmenter{
		cfg: cfg,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators(Separators),
		),
	}, nil
}

// Config returns the segmenter's settings.
func (s *Segmenter) Config() Config {
	return s.cfg
}

// Segment splits text into chunks for documentID. Pieces shorter than the
// minimum length after trimming are dropped, and surviving chunks are
// numbered densely from zero in document order. Empty text yields no chunks.
func (s *Segmenter) Segment(text, documentID string, src Source) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	pieces, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting document %s: %w", documentID, err)
	}

	uploaded := src.UploadedAt
	if uploaded.IsZero() {
		uploaded = time.Now()
	}
	timestamp := uploaded.UTC().Format(time.RFC3339Nano)

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		content := strings.TrimSpace(piece)
		length := utf8.RuneCountInString(content)
		if content == "" || length < s.cfg.MinChunkLength {
			continue
		}

		idx := len(chunks)
		chunks = append(chunks, Chunk{
			ID:         ChunkID(documentID, idx),
			DocumentID: documentID,
			Content:    content,
			Index:      idx,
			Metadata: map[string]string{
				MetaDocumentID:      documentID,
				MetaChunkIndex:      strconv.Itoa(idx),
				MetaFilename:        src.Filename,
				MetaFileSize:        strconv.FormatInt(src.FileSize, 10),
				MetaContentType:     src.ContentType,
				MetaChunkLength:     strconv.Itoa(length),
				MetaUploadTimestamp: timestamp,
			},
		})
	}
	return chunks, nil
}
