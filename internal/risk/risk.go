// Package risk aggregates security findings and suspicious-file counts
// into a numeric risk score and a discrete risk level.
package risk

import (
	"fmt"

	"github.com/hivefoundry/agentvet/internal/secscan"
)

// Level is the discrete severity bucket derived from the risk score.
type Level string

// Risk levels, weakest to strongest. LevelError is reserved for
// unrecoverable extraction failures and cancellation; it is never derived
// from the numeric score.
const (
	LevelSafe     Level = "safe"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
	LevelError    Level = "error"
)

// Per-finding score weights and the suspicious-file weight.
const (
	weightCritical   = 10
	weightHigh       = 5
	weightMedium     = 2
	weightLow        = 1
	weightSuspicious = 3
)

// Summary is the outcome of risk classification.
type Summary struct {
	Safe           bool                     `json:"safe"`
	RiskLevel      Level                    `json:"risk_level"`
	RiskScore      int                      `json:"risk_score"`
	SeverityCounts map[secscan.Severity]int `json:"severity_counts"`
	Warnings       []string                 `json:"warnings,omitempty"`
	Errors         []string                 `json:"errors,omitempty"`
}

// Classify computes the weighted risk score and maps it to a level.
// A critical classification is the reject signal: the upload pipeline
// must refuse the submission. All other levels are advisory.
func Classify(findings []secscan.Finding, suspiciousFileCount int) Summary {
	counts := secscan.CountBySeverity(findings)

	score := weightCritical*counts[secscan.SeverityCritical] +
		weightHigh*counts[secscan.SeverityHigh] +
		weightMedium*counts[secscan.SeverityMedium] +
		weightLow*counts[secscan.SeverityLow] +
		weightSuspicious*suspiciousFileCount

	s := Summary{
		RiskScore:      score,
		SeverityCounts: counts,
	}

	// Thresholds evaluated in order; first match wins.
	switch {
	case score == 0:
		s.RiskLevel = LevelSafe
		s.Safe = true
	case score <= 5:
		s.RiskLevel = LevelLow
		s.Safe = true
	case score <= 15:
		s.RiskLevel = LevelMedium
		s.Warnings = append(s.Warnings, fmt.Sprintf("medium risk score %d: review flagged patterns before approval", score))
	case score <= 30:
		s.RiskLevel = LevelHigh
		s.Warnings = append(s.Warnings, fmt.Sprintf("high risk score %d: submission contains multiple dangerous constructs", score))
	default:
		s.RiskLevel = LevelCritical
		s.Errors = append(s.Errors, fmt.Sprintf("critical risk score %d: submission must be rejected", score))
	}

	return s
}

// Errored builds the summary for an unrecoverable extraction failure.
// It short-circuits classification independent of any numeric score.
func Errored(reason string) Summary {
	return Summary{
		Safe:           false,
		RiskLevel:      LevelError,
		SeverityCounts: map[secscan.Severity]int{},
		Errors:         []string{reason},
	}
}
