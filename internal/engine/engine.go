// Package engine orchestrates a full submission scan: bounded archive
// traversal, per-entry classification, content pattern scanning, risk
// classification, and platform-integration scoring. Each call to Scan is
// independent; no state crosses invocations, so concurrent scans of
// different archives in one process are safe.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hivefoundry/agentvet/internal/archive"
	"github.com/hivefoundry/agentvet/internal/audit"
	"github.com/hivefoundry/agentvet/internal/classify"
	"github.com/hivefoundry/agentvet/internal/config"
	"github.com/hivefoundry/agentvet/internal/risk"
	"github.com/hivefoundry/agentvet/internal/score"
	"github.com/hivefoundry/agentvet/internal/secscan"
)

// FileEntry is one catalogued archive entry: the classifier's metadata
// snapshot plus the content metrics collected during scanning.
type FileEntry struct {
	classify.FileReport
	Metrics *secscan.Metrics `json:"metrics,omitempty"`
}

// ScanResult is the aggregate outcome of scanning one archive. Files keep
// traversal order; Summary is a deterministic function of the findings
// and suspicious-file count.
type ScanResult struct {
	Timestamp time.Time         `json:"timestamp"`
	Archive   string            `json:"archive"`
	FileCount int               `json:"file_count"`
	TotalSize int64             `json:"total_size"`
	Files     []FileEntry       `json:"files"`
	Findings  []secscan.Finding `json:"security_findings"`
	Summary   risk.Summary      `json:"summary"`
}

// Engine wires the scan pipeline together. Construct once per config;
// pattern tables are compiled at construction.
type Engine struct {
	cfg        *config.Config
	classifier *classify.Classifier
	scanner    *secscan.Scanner
	calc       *score.Calculator
	log        *audit.Logger
}

// New builds an Engine from validated config. A nil logger disables
// audit logging.
func New(cfg *config.Config, log *audit.Logger) *Engine {
	if log == nil {
		log = audit.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		classifier: classify.New(cfg.Security),
		scanner:    secscan.New(cfg),
		calc:       score.New(cfg),
		log:        log,
	}
}

// Scan statically inspects the archive at path and returns the security
// scan result and the platform-integration score.
//
// Only archive-open failure is global-fatal (non-nil error). Entry-level
// failures are isolated into FileEntry.Error. Cancellation finalizes a
// partial result with risk level "error" instead of returning the context
// error, so the caller can still persist and log the attempt.
func (e *Engine) Scan(ctx context.Context, path string) (*ScanResult, *score.Result, error) {
	start := time.Now()
	e.log.LogScanStarted(path)

	result := &ScanResult{
		Timestamp: start.UTC(),
		Archive:   path,
		Files:     []FileEntry{},
		Findings:  []secscan.Finding{},
	}

	reader, err := archive.Open(path)
	if err != nil {
		result.Summary = risk.Errored(err.Error())
		e.log.LogScanError(path, err)
		return result, nil, err
	}
	defer func() { _ = reader.Close() }()

	var (
		content    strings.Builder
		warnings   []string
		suspicious int
		cancelled  error
	)

	for {
		entry, nextErr := reader.Next(ctx)
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			// Context cancellation or deadline: finalize what we have.
			cancelled = nextErr
			break
		}
		if entry.IsDirectory {
			continue
		}
		if len(result.Files) >= e.cfg.Limits.MaxEntries {
			warnings = append(warnings,
				fmt.Sprintf("entry limit reached (%d); remaining entries skipped", e.cfg.Limits.MaxEntries))
			break
		}

		report := e.classifier.Classify(entry)
		result.TotalSize += entry.Size
		if report.Suspicious {
			suspicious++
		}

		file := FileEntry{FileReport: report}
		switch {
		case e.classifier.ShouldScanContent(report, e.cfg.Limits.MaxFileBytes()):
			text, readErr := entry.Content(e.cfg.Limits.MaxFileBytes())
			if readErr != nil {
				file.Error = readErr.Error()
				break
			}
			file.Content = text
			lang := classify.LanguageForExtension(report.Extension)
			findings, metrics := e.scanner.Scan(text, entry.Name, lang)
			result.Findings = append(result.Findings, findings...)
			file.Metrics = &metrics
			content.WriteString(text)
			content.WriteString("\n")
		case report.CodeFile && entry.Size > e.cfg.Limits.MaxFileBytes():
			warnings = append(warnings, fmt.Sprintf("file too large to scan: %s", entry.Name))
		}

		result.Files = append(result.Files, file)
	}

	result.FileCount = len(result.Files)

	if cancelled != nil {
		result.Summary = risk.Errored(fmt.Sprintf("scan aborted: %v", cancelled))
		result.Summary.Warnings = append(result.Summary.Warnings, warnings...)
		scored := e.calc.Score(content.String())
		e.log.LogScanError(path, cancelled)
		return result, &scored, nil
	}

	result.Summary = risk.Classify(result.Findings, suspicious)
	result.Summary.Warnings = append(result.Summary.Warnings, warnings...)

	scored := e.calc.Score(content.String())

	e.log.LogScanCompleted(path, result.FileCount, len(result.Findings),
		string(result.Summary.RiskLevel), result.Summary.RiskScore,
		scored.Score, scored.Category, time.Since(start))

	return result, &scored, nil
}
