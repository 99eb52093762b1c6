package reranker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

var errScoring = errors.New("scoring failed")

// Blend weights. Prior similarity dominates; lexical signals adjust it.
const (
	WeightSimilarity  = 0.60
	WeightTermOverlap = 0.15
	WeightExactMatch  = 0.15
	WeightPosition    = 0.05
	WeightLength      = 0.05

	// minExactTermLen excludes very short terms from exact-match counting.
	minExactTermLen = 3
	// positionDecay is the character offset at which the position score halves.
	positionDecay = 100.0
	// fullLength is the character length that earns the full length score.
	fullLength = 500.0
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var (
	spanishStopWords = []string{
		"de", "la", "que", "el", "en", "y", "a", "los", "del", "se", "con", "por",
		"su", "para", "como", "un", "una", "al", "lo", "las", "o", "sus", "si",
		"qué", "cual", "cuando", "donde", "quien", "es", "son", "fue", "era",
	}
	englishStopWords = []string{
		"the", "an", "and", "or", "of", "to", "in", "on", "is", "are", "was", "what",
	}
)

// DefaultStopWords are short function words ignored when extracting query
// terms: the Spanish set followed by a small English set.
var DefaultStopWords = append(append([]string{}, spanishStopWords...), englishStopWords...)

// BlendedReranker implements Reranker with a fixed weighted blend of prior
// similarity, term overlap, exact-match frequency, first-match position and
// chunk length.
type BlendedReranker struct {
	stopWords map[string]struct{}
	logger    *zap.Logger
}

// Option configures a BlendedReranker.
type Option func(*BlendedReranker)

// WithStopWords replaces the stop-word list.
func WithStopWords(words []string) Option {
	return func(r *BlendedReranker) {
		r.stopWords = make(map[string]struct{}, len(words))
		for _, w := range words {
			r.stopWords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithLogger sets the logger used to report degraded reranking.
func WithLogger(logger *zap.Logger) Option {
	return func(r *BlendedReranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewBlendedReranker creates a reranker with the default stop words.
func NewBlendedReranker(opts ...Option) *BlendedReranker {
	r := &BlendedReranker{logger: zap.NewNop()}
	WithStopWords(DefaultStopWords)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank scores every document and returns them sorted by blended score.
// Fewer than two documents are returned unchanged. If scoring fails the
// documents are returned in input order with their original scores.
func (r *BlendedReranker) Rerank(ctx context.Context, query string, docs []Document) ([]ScoredDocument, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if len(docs) < 2 {
		return passthrough(docs), nil
	}

	scored, err := r.score(query, docs)
	if err != nil {
		r.logger.Warn("reranking degraded, keeping retrieval order",
			zap.Int("candidates", len(docs)),
			zap.Error(err))
		return passthrough(docs), nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	r.logger.Debug("reranked candidates", zap.Int("candidates", len(scored)))
	return scored, nil
}

// Close is a no-op.
func (r *BlendedReranker) Close() error {
	return nil
}

func (r *BlendedReranker) score(query string, docs []Document) (out []ScoredDocument, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%w: %v", errScoring, p)
		}
	}()

	terms := r.queryTerms(query)
	out = make([]ScoredDocument, len(docs))
	for i, doc := range docs {
		if math.IsNaN(doc.Score) || math.IsInf(doc.Score, 0) {
			return nil, fmt.Errorf("%w: candidate %q has non-finite similarity", errScoring, doc.ID)
		}
		sig := computeSignals(terms, doc.Content)
		final := WeightSimilarity*doc.Score +
			WeightTermOverlap*sig.TermOverlap +
			WeightExactMatch*sig.ExactMatch +
			WeightPosition*sig.Position +
			WeightLength*sig.Length

		out[i] = ScoredDocument{
			Document:     Document{ID: doc.ID, Content: doc.Content, Score: final},
			PriorScore:   doc.Score,
			Signals:      sig,
			OriginalRank: i,
		}
	}
	return out, nil
}

// queryTerms returns the distinct lower-cased words of query without stop
// words, or all of them when every word is a stop word.
func (r *BlendedReranker) queryTerms(query string) []string {
	all := uniqueWords(query)
	filtered := make([]string, 0, len(all))
	for _, t := range all {
		if _, stop := r.stopWords[t]; !stop {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return all
	}
	return filtered
}

func computeSignals(terms []string, content string) Signals {
	var sig Signals
	sig.Length = math.Min(float64(utf8.RuneCountInString(content))/fullLength, 1.0)
	if len(terms) == 0 {
		return sig
	}

	lower := strings.ToLower(content)
	contentTerms := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(lower, -1) {
		contentTerms[w] = struct{}{}
	}

	overlap := 0
	exact := 0
	first := -1
	for _, t := range terms {
		if _, ok := contentTerms[t]; ok {
			overlap++
		}
		if utf8.RuneCountInString(t) >= minExactTermLen {
			exact += strings.Count(lower, t)
		}
		if idx := strings.Index(lower, t); idx >= 0 && (first < 0 || idx < first) {
			first = idx
		}
	}

	n := float64(len(terms))
	sig.TermOverlap = float64(overlap) / n
	sig.ExactMatch = math.Min(float64(exact)/n, 1.0)
	if overlap > 0 && first >= 0 {
		offset := float64(utf8.RuneCountInString(lower[:first]))
		sig.Position = 1.0 / (1.0 + offset/positionDecay)
	}
	return sig
}

func uniqueWords(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func passthrough(docs []Document) []ScoredDocument {
	out := make([]ScoredDocument, len(docs))
	for i, d := range docs {
		out[i] = ScoredDocument{Document: d, PriorScore: d.Score, OriginalRank: i}
	}
	return out
}
