// Package audit provides structured JSON audit logging for scan and
// intake events.
package audit

import (
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
)

// sanitizeString strips control characters and ANSI escape sequences from
// a string before logging. Entry names come straight out of untrusted
// archives, so crafted names could otherwise inject terminal escapes into
// anyone tailing the audit log.
func sanitizeString(s string) string {
	// Fast path: most strings have no control characters.
	clean := true
	for _, r := range s {
		if r != '\t' && r != '\n' && (unicode.IsControl(r) || r == '\x1b') {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	inEscape := false
	for _, r := range s {
		if inEscape {
			// ANSI escape sequences end with a letter (A-Z, a-z).
			if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
				inEscape = false
			}
			continue
		}
		if r == '\x1b' {
			inEscape = true
			continue
		}
		// Allow tabs and newlines but strip other control chars.
		if r != '\t' && r != '\n' && unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EventType describes the kind of audit event.
type EventType string

// Event type constants for structured audit log entries.
const (
	EventScanStarted        EventType = "scan_started"
	EventScanCompleted      EventType = "scan_completed"
	EventScanError          EventType = "scan_error"
	EventSubmissionStored   EventType = "submission_stored"
	EventSubmissionRejected EventType = "submission_rejected"
	EventUploadRefused      EventType = "upload_refused"
	EventConfigReload       EventType = "config_reload"
)

// Logger handles structured audit logging using zerolog.
type Logger struct {
	zl         zerolog.Logger
	fileHandle *os.File // non-nil if logging to file
}

// New creates a new audit logger. The caller should call Close when done.
func New(format, output, filePath string) (*Logger, error) {
	var writers []io.Writer

	if output == "stdout" || output == "both" {
		if format == "text" {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		} else {
			writers = append(writers, os.Stdout)
		}
	}

	// stderr keeps structured logs off stdout so report output stays clean.
	if output == "stderr" {
		if format == "text" {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		} else {
			writers = append(writers, os.Stderr)
		}
	}

	var fileHandle *os.File
	if output == "file" || output == "both" {
		f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // G304: path validated by config layer
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
		fileHandle = f
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	var w io.Writer
	if len(writers) == 1 {
		w = writers[0]
	} else {
		w = zerolog.MultiLevelWriter(writers...)
	}

	zl := zerolog.New(w).With().
		Timestamp().
		Str("component", "agentvet").
		Logger()

	return &Logger{zl: zl, fileHandle: fileHandle}, nil
}

// NewNop returns a no-op logger that discards all events.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// LogScanStarted logs the beginning of an archive scan.
func (l *Logger) LogScanStarted(archivePath string) {
	l.zl.Info().
		Str("event", string(EventScanStarted)).
		Str("archive", sanitizeString(archivePath)).
		Msg("scan started")
}

// LogScanCompleted logs the final verdict of a completed scan.
func (l *Logger) LogScanCompleted(archivePath string, fileCount, findingCount int, riskLevel string, riskScore, platformScore int, category string, duration time.Duration) {
	l.zl.Info().
		Str("event", string(EventScanCompleted)).
		Str("archive", sanitizeString(archivePath)).
		Int("file_count", fileCount).
		Int("finding_count", findingCount).
		Str("risk_level", riskLevel).
		Int("risk_score", riskScore).
		Int("platform_score", platformScore).
		Str("category", category).
		Dur("duration_ms", duration).
		Msg("scan completed")
}

// LogScanError logs a scan that failed or was aborted.
func (l *Logger) LogScanError(archivePath string, err error) {
	l.zl.Error().
		Str("event", string(EventScanError)).
		Str("archive", sanitizeString(archivePath)).
		Err(err).
		Msg("scan error")
}

// LogSubmissionStored logs a persisted submission verdict.
func (l *Logger) LogSubmissionStored(id, archiveName, riskLevel string, riskScore, platformScore int, category string) {
	l.zl.Info().
		Str("event", string(EventSubmissionStored)).
		Str("submission_id", id).
		Str("archive", sanitizeString(archiveName)).
		Str("risk_level", riskLevel).
		Int("risk_score", riskScore).
		Int("platform_score", platformScore).
		Str("category", category).
		Msg("submission stored")
}

// LogSubmissionRejected logs a submission refused for critical risk.
func (l *Logger) LogSubmissionRejected(id, archiveName string, riskScore, findingCount int) {
	l.zl.Warn().
		Str("event", string(EventSubmissionRejected)).
		Str("submission_id", id).
		Str("archive", sanitizeString(archiveName)).
		Int("risk_score", riskScore).
		Int("finding_count", findingCount).
		Msg("submission rejected")
}

// LogUploadRefused logs an upload that failed intake validation before
// any scan ran (bad extension, oversize, rate limit).
func (l *Logger) LogUploadRefused(archiveName, reason, clientIP string) {
	l.zl.Warn().
		Str("event", string(EventUploadRefused)).
		Str("archive", sanitizeString(archiveName)).
		Str("reason", sanitizeString(reason)).
		Str("client_ip", clientIP).
		Msg("upload refused")
}

// LogConfigReload logs a configuration reload event.
func (l *Logger) LogConfigReload(status, detail string) {
	l.zl.Info().
		Str("event", string(EventConfigReload)).
		Str("status", status).
		Str("detail", detail).
		Msg("configuration reloaded")
}

// LogStartup logs that the intake server has started.
func (l *Logger) LogStartup(listenAddr string) {
	l.zl.Info().
		Str("event", "startup").
		Str("listen", listenAddr).
		Msg("agentvet started")
}

// LogListenExposed warns that the listen address is not loopback.
func (l *Logger) LogListenExposed(listenAddr string) {
	l.zl.Warn().
		Str("event", "listen_exposed").
		Str("listen", listenAddr).
		Msg("listen address is not loopback, intake API is reachable from the network")
}

// LogShutdown logs that the intake server is shutting down.
func (l *Logger) LogShutdown(reason string) {
	l.zl.Info().
		Str("event", "shutdown").
		Str("reason", reason).
		Msg("agentvet stopping")
}

// With returns a sub-logger that includes the given key-value pair in
// every log entry. The sub-logger shares the parent's file handle; only
// the root logger should be Close()'d.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Close cleans up the logger, flushing and closing any open file handles.
// Idempotent.
func (l *Logger) Close() {
	if l.fileHandle != nil {
		_ = l.fileHandle.Sync()
		_ = l.fileHandle.Close()
		l.fileHandle = nil
	}
}
