package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
	"go.uber.org/zap"
)

// Finding is a detected secret. The secret value itself is never kept.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Line        int    `json:"line"`
}

// Result is the outcome of redacting one text.
type Result struct {
	Text     string        `json:"-"`
	Findings []Finding     `json:"findings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// HasFindings reports whether any secret was replaced.
func (r Result) HasFindings() bool { return len(r.Findings) > 0 }

// RuleCounts maps rule ids to finding counts.
func (r Result) RuleCounts() map[string]int {
	counts := make(map[string]int, len(r.Findings))
	for _, f := range r.Findings {
		counts[f.RuleID]++
	}
	return counts
}

// Redactor replaces secrets in text with [REDACTED:<rule-id>] markers.
type Redactor interface {
	Redact(text string) (Result, error)
}

// GitleaksRedactor implements Redactor with the default gitleaks rules.
// The detector is built once; scans are serialized because the detector
// keeps per-scan state.
type GitleaksRedactor struct {
	mu       sync.Mutex
	detector *detect.Detector
	logger   *zap.Logger
}

// NewGitleaksRedactor builds a redactor. allow holds regular expressions
// whose matches are never redacted.
func NewGitleaksRedactor(allow []string, logger *zap.Logger) (*GitleaksRedactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}
	if len(allow) > 0 {
		list := &gitleaksConfig.Allowlist{Description: "ragd allow list"}
		for _, pattern := range allow {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("allow pattern %q: %w", pattern, err)
			}
			list.Regexes = append(list.Regexes, (*gitleaksRegexp.Regexp)(re))
		}
		detector.Config.Allowlists = append(detector.Config.Allowlists, list)
	}
	return &GitleaksRedactor{detector: detector, logger: logger}, nil
}

// Redact implements Redactor.
func (r *GitleaksRedactor) Redact(text string) (Result, error) {
	start := time.Now()

	r.mu.Lock()
	found := r.detector.DetectString(text)
	r.mu.Unlock()

	res := Result{Text: text}
	if len(found) == 0 {
		res.Duration = time.Since(start)
		return res, nil
	}

	// Longest secrets first so a secret containing another is replaced whole.
	sort.SliceStable(found, func(i, j int) bool { return len(found[i].Secret) > len(found[j].Secret) })
	for _, f := range found {
		res.Findings = append(res.Findings, Finding{RuleID: f.RuleID, Description: f.Description, Line: f.StartLine})
		if f.Secret == "" {
			continue
		}
		res.Text = strings.ReplaceAll(res.Text, f.Secret, marker(f.RuleID))
	}
	res.Duration = time.Since(start)

	r.logger.Debug("redacted secrets",
		zap.Int("findings", len(res.Findings)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func marker(ruleID string) string {
	return "[REDACTED:" + ruleID + "]"
}

// Nop returns text unchanged.
type Nop struct{}

// Redact implements Redactor.
func (Nop) Redact(text string) (Result, error) { return Result{Text: text}, nil }

var (
	_ Redactor = (*GitleaksRedactor)(nil)
	_ Redactor = Nop{}
)
