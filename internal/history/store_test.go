package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(q string) Entry {
	return Entry{Timestamp: time.Now(), Query: q, Answer: "answer to " + q}
}

func queries(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Query
	}
	return out
}

func TestStore_RecentChronological(t *testing.T) {
	s := NewStore(10)
	for i := 1; i <= 4; i++ {
		s.Append(entry(fmt.Sprintf("q%d", i)))
	}

	assert.Equal(t, []string{"q3", "q4"}, queries(s.Recent(2)))
	assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, queries(s.Recent(0)))
	assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, queries(s.Recent(50)))
	assert.Equal(t, 4, s.Len())
}

func TestStore_EvictsOldestAtCapacity(t *testing.T) {
	s := NewStore(DefaultCapacity)
	for i := 1; i <= 1001; i++ {
		s.Append(entry(fmt.Sprintf("q%d", i)))
	}

	all := s.Recent(0)
	require.Len(t, all, 1000)
	assert.Equal(t, "q2", all[0].Query)
	assert.Equal(t, "q1001", all[999].Query)
	for i, e := range all {
		assert.Equal(t, fmt.Sprintf("q%d", i+2), e.Query)
	}
	assert.Equal(t, int64(1001), s.Total())
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore(5)
	tokens := 42
	e := entry("q")
	e.TotalTokens = &tokens
	s.Append(e)

	tokens = 7
	got := s.Recent(1)
	require.NotNil(t, got[0].TotalTokens)
	assert.Equal(t, 42, *got[0].TotalTokens)

	*got[0].TotalTokens = 99
	got[0].Query = "mutated"
	again := s.Recent(1)
	assert.Equal(t, 42, *again[0].TotalTokens)
	assert.Equal(t, "q", again[0].Query)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(3)
	s.Append(entry("a"))
	s.Append(entry("b"))
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Recent(0))

	s.Append(entry("c"))
	assert.Equal(t, []string{"c"}, queries(s.Recent(0)))
	assert.Equal(t, int64(3), s.Total())
}

func TestStore_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewStore(0).Cap())
	assert.Equal(t, 7, NewStore(7).Cap())
}

func TestStore_ConcurrentAppends(t *testing.T) {
	s := NewStore(100)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append(entry(fmt.Sprintf("g%d-%d", g, i)))
				_ = s.Recent(5)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 100, s.Len())
	assert.Equal(t, int64(400), s.Total())
}

func TestStore_Similar(t *testing.T) {
	s := NewStore(10)
	s.Append(entry("what was the revenue in 2023"))
	s.Append(entry("explain the cash flow statement"))
	s.Append(entry("revenue in 2023"))
	s.Append(entry("what was the revenue in 2023"))

	matches := s.Similar("Revenue in 2023?", 5)
	require.Len(t, matches, 3)

	assert.Equal(t, "revenue in 2023", matches[0].Query)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)

	// equal scores: the newer entry comes first
	assert.Equal(t, "what was the revenue in 2023", matches[1].Query)
	assert.Equal(t, matches[1].Similarity, matches[2].Similarity)
	assert.True(t, !matches[1].Timestamp.Before(matches[2].Timestamp))

	assert.Len(t, s.Similar("revenue", 1), 1)
	assert.Empty(t, s.Similar("unrelated words", 5))
	assert.Empty(t, s.Similar("   ", 5))
}
