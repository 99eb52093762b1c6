package embeddings

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxPreprocessWords caps preprocessed text length.
const maxPreprocessWords = 8000

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	disallowedChar = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-()\[\]{}"']`)
)

// Preprocess prepares query and chunk text for embedding: lower-case,
// collapse whitespace, replace symbols outside basic punctuation with spaces,
// drop one-character words and cap the result at 8000 words.
func Preprocess(text string) string {
	text = strings.ToLower(text)
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	text = disallowedChar.ReplaceAllString(text, " ")

	fields := strings.Fields(text)
	words := fields[:0]
	for _, w := range fields {
		if utf8.RuneCountInString(w) > 1 {
			words = append(words, w)
		}
	}
	if len(words) > maxPreprocessWords {
		words = words[:maxPreprocessWords]
	}
	return strings.Join(words, " ")
}
