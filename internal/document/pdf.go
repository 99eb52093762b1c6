package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

const contentPageMarker = "Content_page_"

// extractPDF dumps each page's content stream with pdfcpu and reads the
// text-showing operators from it. Pages are separated by a newline.
func (e *Extractor) extractPDF(path string) (string, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	outDir, err := os.MkdirTemp(e.tempDir, "ragd-pdf-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}

	pages, err := readContentPages(outDir)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= pdfCtx.PageCount; i++ {
		sb.WriteString(contentStreamText(pages[i]))
		sb.WriteByte('\n')
	}

	if len(pages) == 0 && pdfCtx.PageCount > 0 {
		e.logger.Warn("pdf has no extractable content streams", zap.Int("pages", pdfCtx.PageCount))
	}
	return sb.String(), nil
}

// readContentPages maps page number to the raw content stream written by
// pdfcpu as <name>_Content_page_<n>.txt. Pages with several streams are
// concatenated in file name order.
func readContentPages(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	pages := make(map[int]string)
	for _, name := range names {
		idx := strings.Index(name, contentPageMarker)
		if idx < 0 {
			continue
		}
		rest := name[idx+len(contentPageMarker):]
		end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
		if end == 0 {
			continue
		}
		if end > 0 {
			rest = rest[:end]
		}
		page, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		pages[page] += string(data)
	}
	return pages, nil
}

// contentStreamText pulls literal strings shown by Tj, TJ, ' and " out of a
// PDF content stream. Text positioning operators become spaces or line
// breaks. Hex strings and font encodings are not decoded.
func contentStreamText(stream string) string {
	var (
		out     strings.Builder
		pending []string
	)
	flush := func(sep string) {
		for _, s := range pending {
			out.WriteString(s)
		}
		pending = pending[:0]
		if sep != "" {
			out.WriteString(sep)
		}
	}

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case c == '(':
			s, next := readLiteral(stream, i)
			pending = append(pending, s)
			i = next
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case isOperatorStart(c):
			j := i
			for j < len(stream) && isOperatorChar(stream[j]) {
				j++
			}
			switch stream[i:j] {
			case "Tj", "TJ":
				flush("")
			case "'", "\"", "T*", "ET":
				flush("\n")
			case "Td", "TD", "Tm":
				flush(" ")
			}
			i = j
		default:
			i++
		}
	}
	flush("")
	return out.String()
}

func isOperatorStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '\'' || c == '"' || c == '*'
}

func isOperatorChar(c byte) bool {
	return isOperatorStart(c) || (c >= '0' && c <= '9')
}

// readLiteral decodes the balanced literal string starting at s[start]=='('
// and returns it with the index just past the closing parenthesis.
func readLiteral(s string, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	i := start
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return sb.String(), len(s)
			}
			i++
			switch e := s[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\n', '\r':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					n := 0
					k := 0
					for k < 3 && i < len(s) && s[i] >= '0' && s[i] <= '7' {
						n = n*8 + int(s[i]-'0')
						i++
						k++
					}
					sb.WriteByte(byte(n))
					continue
				}
				sb.WriteByte(e)
			}
		case '(':
			depth++
			if depth > 1 {
				sb.WriteByte(c)
			}
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
		i++
	}
	return sb.String(), len(s)
}
