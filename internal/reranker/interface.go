// Package reranker re-scores retrieved chunks by blending vector similarity
// with lexical signals from the query.
package reranker

import (
	"context"
)

// Document is a retrieval candidate.
type Document struct {
	ID      string  // chunk id
	Content string  // chunk text
	Score   float64 // similarity from the vector index
}

// Signals are the lexical components of a blended score, each in [0, 1].
type Signals struct {
	TermOverlap float64
	ExactMatch  float64
	Position    float64
	Length      float64
}

// ScoredDocument is a candidate after reranking. Document.Score holds the
// blended score and PriorScore the similarity it replaced.
type ScoredDocument struct {
	Document
	PriorScore   float64
	Signals      Signals
	OriginalRank int // position in the input slice
}

// Reranker reorders candidates by relevance to a query.
type Reranker interface {
	// Rerank returns every input document, sorted by descending score.
	// Ties keep their input order. The caller is responsible for ensuring
	// ctx is not nil.
	Rerank(ctx context.Context, query string, docs []Document) ([]ScoredDocument, error)

	// Close releases any resources held by the reranker.
	Close() error
}
