// Package normalize cleans text extracted from documents before it is split
// into chunks.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minLineLength is the visible length below which a line containing a digit
// is treated as header or footer noise.
const minLineLength = 10

var (
	blankLines     = regexp.MustCompile(`\n\s*\n`)
	hyphenBreak    = regexp.MustCompile(`([\p{L}\p{N}_]+)-\n([\p{L}\p{N}_]+)`)
	horizontalWS   = regexp.MustCompile(`[ \t]+`)
	pageNumberLine = regexp.MustCompile(`(?i)^\s*page \d+( of \d+)?\s*$`)
	bracketedLine  = regexp.MustCompile(`^\s*\[\d+\]\s*$`)
	digit          = regexp.MustCompile(`\d`)
	nonPrintable   = regexp.MustCompile(`[^\x20-\x7E\n\t]`)
)

// Normalize returns raw with blank-line runs collapsed, hyphenated line
// breaks rejoined, horizontal whitespace collapsed, page-number and footnote
// artifacts dropped, non-printable characters replaced by spaces, and the
// result trimmed. It is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	// Each pass either shortens the text or swaps single bytes for spaces,
	// which no rule reintroduces, so the loop reaches a fixed point. A chain
	// of n hyphenated breaks takes about log2(n) passes.
	text := raw
	for {
		next := pass(text)
		if next == text {
			return text
		}
		text = next
	}
}

func pass(text string) string {
	if text == "" {
		return ""
	}
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	text = horizontalWS.ReplaceAllString(text, " ")
	text = dropNoiseLines(text)
	text = nonPrintable.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func dropNoiseLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isNoise(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isNoise(line string) bool {
	if pageNumberLine.MatchString(line) || bracketedLine.MatchString(line) {
		return true
	}
	return utf8.RuneCountInString(strings.TrimSpace(line)) < minLineLength && digit.MatchString(line)
}
