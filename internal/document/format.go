// Package document identifies supported file formats, validates uploads and
// extracts their plain text.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for document handling.
var (
	// ErrUnsupportedFormat means the file extension maps to no known format.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	// ErrExtractionFailure means the file could not be read as its format.
	ErrExtractionFailure = errors.New("text extraction failed")

	// ErrFileTooLarge means the file exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrFileNotFound means the staged file does not exist.
	ErrFileNotFound = errors.New("file not found")
)

// Format is a supported document format.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatTXT
	FormatMD
	FormatDOCX
)

var extensions = map[string]Format{
	".pdf":  FormatPDF,
	".txt":  FormatTXT,
	".md":   FormatMD,
	".docx": FormatDOCX,
}

// String returns the short name used in chunk metadata.
func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatTXT:
		return "txt"
	case FormatMD:
		return "md"
	case FormatDOCX:
		return "docx"
	default:
		return "unknown"
	}
}

// MIMEType returns the media type for f.
func (f Format) MIMEType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatTXT:
		return "text/plain"
	case FormatMD:
		return "text/markdown"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// SupportedExtensions lists accepted file extensions.
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".md", ".docx"}
}

// Detect maps filename's extension to a Format.
func Detect(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// ValidateFile checks that path exists, is a regular file no larger than
// maxSize bytes, and has a supported extension. It returns the detected
// format and file size.
func ValidateFile(path string, maxSize int64) (Format, int64, error) {
	format, err := Detect(path)
	if err != nil {
		return FormatUnknown, 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FormatUnknown, 0, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return FormatUnknown, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return FormatUnknown, 0, fmt.Errorf("%s is not a regular file", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return FormatUnknown, 0, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, info.Size(), maxSize)
	}
	return format, info.Size(), nil
}
