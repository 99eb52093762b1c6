// Package history keeps a bounded, in-memory log of answered queries.
package history

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
)

// DefaultCapacity is the number of entries kept when no capacity is given.
const DefaultCapacity = 1000

// Entry is one answered query.
type Entry struct {
	Timestamp          time.Time `json:"timestamp"`
	Query              string    `json:"query"`
	Answer             string    `json:"answer"`
	NumRetrievedChunks int       `json:"num_retrieved_chunks"`
	ProcessingTime     float64   `json:"processing_time"` // seconds
	ModelUsed          string    `json:"model_used"`
	TotalTokens        *int      `json:"total_tokens,omitempty"`
}

// Match is a history entry scored against a lookup query.
type Match struct {
	Entry
	Similarity float64 `json:"similarity"`
}

// Store is a fixed-capacity FIFO of entries. When full, appending evicts
// the oldest entry. It is safe for concurrent use; appends are serialized
// so FIFO order matches call order.
type Store struct {
	mu    sync.RWMutex
	buf   []Entry
	start int // index of the oldest entry
	size  int
	total int64 // entries ever appended
}

// NewStore returns an empty store holding at most capacity entries.
// A capacity below 1 uses DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{buf: make([]Entry, capacity)}
}

// Append adds e as the newest entry, evicting the oldest if full.
func (s *Store) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.TotalTokens != nil {
		v := *e.TotalTokens
		e.TotalTokens = &v
	}

	idx := (s.start + s.size) % len(s.buf)
	s.buf[idx] = e
	if s.size < len(s.buf) {
		s.size++
	} else {
		s.start = (s.start + 1) % len(s.buf)
	}
	s.total++
}

// Recent returns up to n of the newest entries in chronological order.
// n <= 0 returns every entry.
func (s *Store) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > s.size {
		n = s.size
	}
	out := make([]Entry, n)
	first := s.size - n
	for i := 0; i < n; i++ {
		out[i] = copyEntry(s.buf[(s.start+first+i)%len(s.buf)])
	}
	return out
}

// Clear removes every entry. The appended total is kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.buf)
	s.start, s.size = 0, 0
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Cap returns the maximum number of stored entries.
func (s *Store) Cap() int {
	return len(s.buf)
}

// Total returns the number of entries ever appended, including evicted ones.
func (s *Store) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Similar returns up to limit entries whose query shares words with query,
// scored by Jaccard similarity of lower-cased word sets. Results are sorted
// by similarity, newest first on ties. Entries with no shared words are
// excluded.
func (s *Store) Similar(query string, limit int) []Match {
	target := wordSet(query)
	if len(target) == 0 || limit <= 0 {
		return nil
	}

	entries := s.Recent(0)
	matches := make([]Match, 0)
	for i := len(entries) - 1; i >= 0; i-- {
		score := jaccard(target, wordSet(entries[i].Query))
		if score > 0 {
			matches = append(matches, Match{Entry: entries[i], Similarity: score})
		}
	}

	// newest-first input plus a stable sort keeps recency as the tie-break
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func wordSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func copyEntry(e Entry) Entry {
	if e.TotalTokens != nil {
		v := *e.TotalTokens
		e.TotalTokens = &v
	}
	return e
}
