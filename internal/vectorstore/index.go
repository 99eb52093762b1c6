package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Sentinel errors for index operations.
var (
	// ErrInvalidConfig indicates invalid backend configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch is returned when a vector does not match the
	// configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrMissingDocumentID is returned when a record carries no document_id.
	ErrMissingDocumentID = errors.New("record metadata missing document_id")

	// ErrUnavailable wraps backend failures (connection, I/O).
	ErrUnavailable = errors.New("vector index unavailable")
)

// Metadata keys the index relies on. Writers set them through the segment
// package; they are repeated here to keep the package free of that import.
const (
	KeyDocumentID      = "document_id"
	KeyChunkIndex      = "chunk_index"
	KeyFilename        = "filename"
	KeyUploadTimestamp = "upload_timestamp"
)

// Record is a chunk ready to be indexed.
type Record struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// Result is a stored chunk, with its similarity when returned by Query.
type Result struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float64           `json:"similarity"`
}

// DocumentID returns the owning document of the chunk.
func (r Result) DocumentID() string { return r.Metadata[KeyDocumentID] }

// ChunkIndex returns the chunk ordinal, or -1 if missing or malformed.
func (r Result) ChunkIndex() int {
	n, err := strconv.Atoi(r.Metadata[KeyChunkIndex])
	if err != nil {
		return -1
	}
	return n
}

// Filter narrows a query. A nil or zero Filter matches every record.
type Filter struct {
	// DocumentIDs restricts results to chunks of these documents.
	DocumentIDs []string
}

func (f *Filter) empty() bool {
	return f == nil || len(f.DocumentIDs) == 0
}

// DocumentSummary describes one indexed document.
type DocumentSummary struct {
	DocumentID      string `json:"document_id"`
	Filename        string `json:"filename"`
	UploadTimestamp string `json:"upload_timestamp"`
	ChunkCount      int    `json:"chunk_count"`
}

// Stats reports index totals.
type Stats struct {
	Backend        string `json:"backend"`
	Collection     string `json:"collection"`
	Dimension      int    `json:"dimension"`
	TotalChunks    int    `json:"total_chunks"`
	TotalDocuments int    `json:"total_documents"`
}

// Index is the vector index contract shared by all backends.
type Index interface {
	// Upsert stores records, replacing any with the same ID.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to k records nearest to vector, ordered by
	// descending similarity. k is capped at the number of stored records.
	Query(ctx context.Context, vector []float32, k int, filter *Filter) ([]Result, error)

	// DeleteDocument removes every chunk of documentID and reports how many
	// were removed.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Chunks returns the chunks of documentID ordered by chunk index.
	Chunks(ctx context.Context, documentID string) ([]Result, error)

	// Documents lists indexed documents, newest upload first.
	Documents(ctx context.Context) ([]DocumentSummary, error)

	// Reset drops all records and recreates an empty collection.
	Reset(ctx context.Context) error

	// Stats returns index totals.
	Stats(ctx context.Context) (Stats, error)

	// Health verifies the backend is reachable.
	Health(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names that are not lowercase
// alphanumeric/underscore of at most 64 characters.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidCollectionName, name, collectionNamePattern)
	}
	return nil
}

func validateRecords(records []Record, dimension int) error {
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record %d: empty id", i)
		}
		if r.Metadata[KeyDocumentID] == "" {
			return fmt.Errorf("record %s: %w", r.ID, ErrMissingDocumentID)
		}
		if len(r.Embedding) != dimension {
			return fmt.Errorf("record %s: %w: got %d, want %d", r.ID, ErrDimensionMismatch, len(r.Embedding), dimension)
		}
	}
	return nil
}

// sortChunks orders results by chunk index, falling back to ID.
func sortChunks(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].ChunkIndex(), results[j].ChunkIndex()
		if a != b {
			return a < b
		}
		return results[i].ID < results[j].ID
	})
}

// summarize groups chunks by document.
func summarize(results []Result) []DocumentSummary {
	byID := make(map[string]*DocumentSummary)
	for _, r := range results {
		id := r.DocumentID()
		if id == "" {
			continue
		}
		s, ok := byID[id]
		if !ok {
			s = &DocumentSummary{
				DocumentID:      id,
				Filename:        r.Metadata[KeyFilename],
				UploadTimestamp: r.Metadata[KeyUploadTimestamp],
			}
			byID[id] = s
		}
		s.ChunkCount++
	}

	docs := make([]DocumentSummary, 0, len(byID))
	for _, s := range byID {
		docs = append(docs, *s)
	}
	sort.Slice(docs, func(i, j int) bool {
		ti, tj := uploadTime(docs[i]), uploadTime(docs[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return docs[i].DocumentID < docs[j].DocumentID
	})
	return docs
}

// uploadTime parses the upload timestamp; unparseable values sort last.
func uploadTime(d DocumentSummary) time.Time {
	t, err := time.Parse(time.RFC3339Nano, d.UploadTimestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

func sortBySimilarity(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
}
