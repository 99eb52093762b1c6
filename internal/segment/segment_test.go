package segment

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/normalize"
)

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func threePageDocument() string {
	var sb strings.Builder
	for page := 1; page <= 3; page++ {
		for i := 0; i < 12; i++ {
			fmt.Fprintf(&sb, "Page %d discusses operating results and sentence %d adds supporting detail. ", page, i)
		}
		if page < 3 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

func newSegmenter(t *testing.T) *Segmenter {
	t.Helper()
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestSegment_EmptyText(t *testing.T) {
	s := newSegmenter(t)

	chunks, err := s.Segment("", "doc", Source{})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = s.Segment("  \n\n ", "doc", Source{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSegment_ShortTextDropped(t *testing.T) {
	chunks, err := newSegmenter(t).Segment("too short to keep", "doc", Source{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSegment_ThreePageDocument(t *testing.T) {
	source := normalize.Normalize(threePageDocument())
	uploaded := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	chunks, err := newSegmenter(t).Segment(source, "doc-1", Source{
		Filename:    "report.txt",
		FileSize:    int64(len(source)),
		ContentType: "txt",
		UploadedAt:  uploaded,
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	flat := collapse(source)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "ordinals are dense and zero-based")
		assert.Equal(t, ChunkID("doc-1", i), c.ID)
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.Equal(t, strings.TrimSpace(c.Content), c.Content)
		assert.GreaterOrEqual(t, utf8.RuneCountInString(c.Content), 30)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 512)
		assert.Contains(t, flat, collapse(c.Content), "chunk %d must be a contiguous span of the source", i)

		assert.Equal(t, "report.txt", c.Metadata[MetaFilename])
		assert.Equal(t, "txt", c.Metadata[MetaContentType])
		assert.Equal(t, fmt.Sprint(len(source)), c.Metadata[MetaFileSize])
		assert.Equal(t, fmt.Sprint(utf8.RuneCountInString(c.Content)), c.Metadata[MetaChunkLength])
		assert.Equal(t, fmt.Sprint(i), c.Metadata[MetaChunkIndex])
		assert.Equal(t, "2024-03-01T12:00:00Z", c.Metadata[MetaUploadTimestamp])
	}
}

func TestSegment_AdjacentChunksOverlap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "Sentence number %02d is here. ", i)
	}

	chunks, err := newSegmenter(t).Segment(sb.String(), "doc", Source{})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		head := chunks[i].Content[:20]
		assert.Contains(t, chunks[i-1].Content, head, "chunk %d should start inside chunk %d", i, i-1)
	}
}

func TestSegment_DropsNoiseButKeepsOrdinalsDense(t *testing.T) {
	s, err := New(Config{ChunkSize: 55, ChunkOverlap: 0, MinChunkLength: 30})
	require.NoError(t, err)

	text := "This first paragraph is certainly long enough to keep.\n\nShort.\n\nThe third paragraph is also long enough to be kept."
	chunks, err := s.Segment(text, "doc", Source{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
	assert.NotContains(t, chunks[0].Content+chunks[1].Content, "Short.")
}

func TestSegment_Deterministic(t *testing.T) {
	s := newSegmenter(t)
	src := Source{Filename: "a.txt", UploadedAt: time.Unix(0, 0)}
	text := normalize.Normalize(threePageDocument())

	first, err := s.Segment(text, "doc", src)
	require.NoError(t, err)
	second, err := s.Segment(text, "doc", src)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNew_InvalidConfig(t *testing.T) {
	for _, cfg := range []Config{
		{ChunkSize: 0, ChunkOverlap: 0},
		{ChunkSize: 100, ChunkOverlap: 100},
		{ChunkSize: 100, ChunkOverlap: -1},
		{ChunkSize: 100, ChunkOverlap: 10, MinChunkLength: -1},
	} {
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, "%+v", cfg)
	}
}
