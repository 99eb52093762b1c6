package document

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"regexp"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// Extractor reads plain text out of supported documents.
type Extractor struct {
	tempDir  string
	markdown goldmark.Markdown
	logger   *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithTempDir sets the scratch directory used for PDF page extraction.
func WithTempDir(dir string) ExtractorOption {
	return func(e *Extractor) { e.tempDir = dir }
}

// WithLogger sets the extractor's logger.
func WithLogger(logger *zap.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		tempDir:  os.TempDir(),
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of the file at path, read as format. Failures
// wrap ErrExtractionFailure, or ErrUnsupportedFormat for FormatUnknown.
func (e *Extractor) Extract(ctx context.Context, path string, format Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = e.extractPDF(path)
	case FormatTXT:
		text, err = extractTXT(path)
	case FormatMD:
		text, err = e.extractMD(path)
	case FormatDOCX:
		text, err = extractDOCX(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtractionFailure, format, err)
	}

	e.logger.Debug("extracted document text",
		zap.String("format", format.String()),
		zap.Int("chars", utf8.RuneCountInString(text)))
	return text, nil
}

func extractTXT(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8")
	}
	return string(data), nil
}

// extractMD renders Markdown to HTML and strips the tags.
func (e *Extractor) extractMD(path string) (string, error) {
	src, err := extractTXT(path)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := e.markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return html.UnescapeString(htmlTag.ReplaceAllString(buf.String(), "")), nil
}
