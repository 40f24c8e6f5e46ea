// Package report renders a scan result and score result into a
// human-readable text report. Pure string assembly: deterministic given
// identical input, so report diffs are reproducible in tests.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hivefoundry/agentvet/internal/engine"
	"github.com/hivefoundry/agentvet/internal/score"
	"github.com/hivefoundry/agentvet/internal/secscan"
)

// severityOrder fixes the rendering order of the severity count lines.
var severityOrder = []secscan.Severity{
	secscan.SeverityCritical,
	secscan.SeverityHigh,
	secscan.SeverityMedium,
	secscan.SeverityLow,
}

// Render formats the scan/score pair as a text report.
func Render(scan *engine.ScanResult, scored *score.Result) string {
	var b strings.Builder

	b.WriteString("Agent Submission Scan Report\n")
	b.WriteString("============================\n\n")

	fmt.Fprintf(&b, "Archive:    %s\n", scan.Archive)
	fmt.Fprintf(&b, "Scanned at: %s\n", scan.Timestamp.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Files:      %d (%d bytes)\n\n", scan.FileCount, scan.TotalSize)

	b.WriteString("Security\n")
	b.WriteString("--------\n")
	fmt.Fprintf(&b, "Risk level: %s\n", scan.Summary.RiskLevel)
	fmt.Fprintf(&b, "Risk score: %d\n", scan.Summary.RiskScore)
	fmt.Fprintf(&b, "Safe:       %t\n", scan.Summary.Safe)
	for _, sev := range severityOrder {
		if n := scan.Summary.SeverityCounts[sev]; n > 0 {
			fmt.Fprintf(&b, "  %-8s %d\n", sev, n)
		}
	}
	if len(scan.Findings) > 0 {
		b.WriteString("\nFindings:\n")
		for _, f := range scan.Findings {
			fmt.Fprintf(&b, "  [%s] %s %s:%d  %s\n", f.Severity, f.Category, f.File, f.Line, f.Match)
		}
	}
	for _, w := range scan.Summary.Warnings {
		fmt.Fprintf(&b, "\nWARNING: %s\n", w)
	}
	for _, e := range scan.Summary.Errors {
		fmt.Fprintf(&b, "\nERROR: %s\n", e)
	}

	if suspicious := suspiciousFiles(scan); len(suspicious) > 0 {
		b.WriteString("\nSuspicious files:\n")
		for _, name := range suspicious {
			fmt.Fprintf(&b, "  %s\n", name)
		}
	}

	if scored != nil {
		b.WriteString("\nPlatform Integration\n")
		b.WriteString("--------------------\n")
		fmt.Fprintf(&b, "Score:      %d/100\n", scored.Score)
		fmt.Fprintf(&b, "Category:   %s (%s confidence)\n", scored.Category, scored.Confidence)
		fmt.Fprintf(&b, "Breakdown:  endpoints %.1f, http %.1f, communication %.1f, quality %.1f, compliance %.1f\n",
			scored.Breakdown.PlatformEndpoints, scored.Breakdown.HTTPLibraries,
			scored.Breakdown.Communication, scored.Breakdown.CodeQuality,
			scored.Breakdown.SecurityCompliance)
		fmt.Fprintf(&b, "Bonuses:    +%.0f  Penalties: -%.0f\n", scored.Breakdown.BonusPoints, scored.Breakdown.Penalties)

		if len(scored.Recommendations) > 0 {
			b.WriteString("\nRecommendations:\n")
			for _, r := range scored.Recommendations {
				fmt.Fprintf(&b, "  [%s] %s (+%d)\n", r.Impact, r.Message, r.Points)
			}
		}
	}

	return b.String()
}

// suspiciousFiles returns the names of flagged entries, sorted for
// deterministic output.
func suspiciousFiles(scan *engine.ScanResult) []string {
	var names []string
	for _, f := range scan.Files {
		if f.Suspicious {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return names
}
