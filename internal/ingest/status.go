package ingest

import (
	"sort"
	"sync"
	"time"
)

// Status is a document's processing state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further updates will follow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProcessingStatus is the observable progress of one document.
type ProcessingStatus struct {
	DocumentID      string    `json:"document_id"`
	Filename        string    `json:"filename,omitempty"`
	Status          Status    `json:"status"`
	Progress        float64   `json:"progress"`
	Message         string    `json:"message"`
	ChunksProcessed int       `json:"chunks_processed"`
	TotalChunks     int       `json:"total_chunks"`
	ErrorDetails    string    `json:"error_details,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StatusStore holds the latest ProcessingStatus per document. Each document
// has a single writer, its worker; readers may be concurrent.
type StatusStore struct {
	mu       sync.RWMutex
	statuses map[string]ProcessingStatus
}

// NewStatusStore creates an empty store.
func NewStatusStore() *StatusStore {
	return &StatusStore{statuses: make(map[string]ProcessingStatus)}
}

// Set replaces the status of st.DocumentID.
func (s *StatusStore) Set(st ProcessingStatus) {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.statuses[st.DocumentID] = st
	s.mu.Unlock()
}

// Get returns the status of id.
func (s *StatusStore) Get(id string) (ProcessingStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[id]
	return st, ok
}

// Delete forgets id.
func (s *StatusStore) Delete(id string) {
	s.mu.Lock()
	delete(s.statuses, id)
	s.mu.Unlock()
}

// Reset forgets every document.
func (s *StatusStore) Reset() {
	s.mu.Lock()
	s.statuses = make(map[string]ProcessingStatus)
	s.mu.Unlock()
}

// List returns all statuses, most recently updated first.
func (s *StatusStore) List() []ProcessingStatus {
	s.mu.RLock()
	out := make([]ProcessingStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}

// Len returns the number of tracked documents.
func (s *StatusStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.statuses)
}
