// Package ignore reads gitignore-style files naming drop-folder files the
// watcher must not ingest.
package ignore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the ignore file looked up in a watched directory.
const FileName = ".ragdignore"

type rule struct {
	pattern string
	negate  bool
}

// Matcher decides whether a file name is ignored. The last matching rule
// wins, so a later "!pattern" re-includes names an earlier rule excluded.
// A nil Matcher ignores nothing.
type Matcher struct {
	rules []rule
}

// Load reads FileName from dir. A missing file yields an empty Matcher.
func Load(dir string) (*Matcher, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Matcher{}, nil
		}
		return nil, err
	}
	defer f.Close()
	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}
	return m, nil
}

// Parse reads one pattern per line. Blank lines and lines starting with #
// are skipped. Patterns use filepath.Match syntax against the base name.
func Parse(r io.Reader) (*Matcher, error) {
	m := &Matcher{}
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		rl, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if _, err := filepath.Match(rl.pattern, ""); err != nil {
			return nil, fmt.Errorf("line %d: invalid pattern %q: %w", n, rl.pattern, err)
		}
		m.rules = append(m.rules, rl)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseLine returns false for comments and blank lines.
func parseLine(line string) (rule, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}
	var rl rule
	if strings.HasPrefix(line, "!") {
		rl.negate = true
		line = line[1:]
	}
	// The drop folder is flat; anchors and directory suffixes carry no meaning.
	line = strings.Trim(line, "/")
	line = strings.TrimPrefix(line, "**/")
	if line == "" {
		return rule{}, false
	}
	rl.pattern = line
	return rl, true
}

// Match reports whether the base name of path is ignored.
func (m *Matcher) Match(path string) bool {
	if m == nil {
		return false
	}
	name := filepath.Base(path)
	ignored := false
	for _, rl := range m.rules {
		if ok, _ := filepath.Match(rl.pattern, name); ok {
			ignored = !rl.negate
		}
	}
	return ignored
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}
