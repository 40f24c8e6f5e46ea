// Package secscan scans the textual content of code-bearing archive
// entries against configured categories of regex signatures. Detection is
// lexical: a comment containing the literal text "eval(" still counts as
// a finding. That is the documented heuristic, not a bug.
package secscan

import (
	"fmt"
	"strings"

	regexp "github.com/wasilibs/go-re2"

	"github.com/hivefoundry/agentvet/internal/classify"
	"github.com/hivefoundry/agentvet/internal/config"
)

// Severity buckets for findings, ordered weakest to strongest.
type Severity string

// Severity values. Each pattern category maps to exactly one severity.
const (
	SeverityLow      Severity = config.SeverityLow
	SeverityMedium   Severity = config.SeverityMedium
	SeverityHigh     Severity = config.SeverityHigh
	SeverityCritical Severity = config.SeverityCritical
)

// Finding is a single pattern match flagged during content scanning.
type Finding struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Match    string   `json:"match"`
	Line     int      `json:"line"` // 1-based
	File     string   `json:"file"`
}

// maxMatchLen truncates matched text before it lands in findings and logs.
const maxMatchLen = 120

type compiledCategory struct {
	name     string
	severity Severity
	patterns []*regexp.Regexp
}

// Scanner runs the configured category tables against file content.
// Patterns are compiled once per Scanner; the Go regexp API is backed by
// RE2, so matching stays linear-time on adversarial submissions.
type Scanner struct {
	categories []compiledCategory
}

// New compiles the configured pattern categories. Config must be
// validated first; compilation failure after validation is a bug.
func New(cfg *config.Config) *Scanner {
	s := &Scanner{}
	for _, cat := range cfg.Security.Categories {
		cc := compiledCategory{name: cat.Name, severity: Severity(cat.Severity)}
		for _, p := range cat.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				panic(fmt.Sprintf("BUG: pattern %q in category %q failed to compile after validation: %v", p, cat.Name, err))
			}
			cc.patterns = append(cc.patterns, re)
		}
		s.categories = append(s.categories, cc)
	}
	return s
}

// Scan matches every category pattern globally against content and
// returns all findings plus descriptive per-language metrics. Findings
// are attributed to fileName.
func (s *Scanner) Scan(content, fileName string, lang classify.Language) ([]Finding, Metrics) {
	var findings []Finding
	for _, cat := range s.categories {
		for _, re := range cat.patterns {
			locs := re.FindAllStringIndex(content, -1)
			for _, loc := range locs {
				match := strings.TrimSpace(content[loc[0]:loc[1]])
				if len(match) > maxMatchLen {
					match = match[:maxMatchLen]
				}
				findings = append(findings, Finding{
					Category: cat.name,
					Severity: cat.severity,
					Match:    match,
					Line:     lineAt(content, loc[0]),
					File:     fileName,
				})
			}
		}
	}
	return findings, computeMetrics(content, lang)
}

// lineAt returns the 1-based line number of offset: one plus the newline
// count in the preceding text. Negative offsets map to line 1.
func lineAt(content string, offset int) int {
	if offset < 0 {
		return 1
	}
	if offset > len(content) {
		offset = len(content)
	}
	return 1 + strings.Count(content[:offset], "\n")
}

// CountBySeverity tallies findings per severity bucket.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
