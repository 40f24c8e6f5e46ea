// Package classify implements per-entry metadata analysis: extension
// allow-listing, code-file detection, suspicious-filename heuristics, and
// compression-ratio bookkeeping.
package classify

import (
	"path"
	"strings"

	"github.com/hivefoundry/agentvet/internal/archive"
	"github.com/hivefoundry/agentvet/internal/config"
)

// Language is the content language selected once by extension and
// dispatched on afterwards instead of repeated string comparisons.
type Language int

// Language variants recognized by the content scanner.
const (
	LangOther Language = iota
	LangPython
	LangJavaScript
	LangJSON
	LangYAML
	LangTOML
)

// String returns the lowercase language name.
func (l Language) String() string {
	switch l {
	case LangPython:
		return "python"
	case LangJavaScript:
		return "javascript"
	case LangJSON:
		return "json"
	case LangYAML:
		return "yaml"
	case LangTOML:
		return "toml"
	default:
		return "other"
	}
}

// FileReport is the immutable metadata snapshot of one archive entry.
// Content and Error are filled in later by the scan pipeline.
type FileReport struct {
	Name             string  `json:"name"`
	Size             int64   `json:"size"`
	CompressedSize   int64   `json:"compressed_size"`
	Extension        string  `json:"extension"`
	Language         string  `json:"language"`
	AllowedExtension bool    `json:"allowed_extension"`
	CodeFile         bool    `json:"code_file"`
	Suspicious       bool    `json:"suspicious"`
	CompressionRatio float64 `json:"compression_ratio"`
	Content          string  `json:"content,omitempty"` // raw decoded text, code files under the ceiling only
	Error            string  `json:"error,omitempty"`
}

// Classifier applies the configured filename heuristics.
type Classifier struct {
	allowed    map[string]bool
	code       map[string]bool
	executable map[string]bool
	transient  map[string]bool
	dirs       []string
}

// New builds a Classifier from the security section of the config.
func New(sec config.Security) *Classifier {
	return &Classifier{
		allowed:    toSet(sec.AllowedExtensions),
		code:       toSet(sec.CodeExtensions),
		executable: toSet(sec.ExecutableExtensions),
		transient:  toSet(sec.TransientExtensions),
		dirs:       sec.SuspiciousDirs,
	}
}

func toSet(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[strings.ToLower(e)] = true
	}
	return m
}

// Classify derives a FileReport from entry metadata. Pure: content
// analysis happens separately.
func (c *Classifier) Classify(entry *archive.Entry) FileReport {
	lower := strings.ToLower(entry.Name)
	ext := strings.ToLower(path.Ext(entry.Name))
	base := path.Base(lower)

	r := FileReport{
		Name:           entry.Name,
		Size:           entry.Size,
		CompressedSize: entry.CompressedSize,
		Extension:      ext,
	}

	// ".env.example" is allowed despite ".example" not being a listed
	// extension; a bare ".env" is flagged suspicious below.
	r.AllowedExtension = c.allowed[ext] || strings.HasSuffix(lower, ".env.example")
	r.CodeFile = c.code[ext]
	r.Language = LanguageForExtension(ext).String()
	r.Suspicious = c.suspicious(lower, base, ext)

	if entry.Size > 0 {
		r.CompressionRatio = float64(entry.CompressedSize) / float64(entry.Size)
	}

	return r
}

// ShouldScanContent reports whether the entry's content is eligible for
// pattern scanning: a code file with non-empty content under the ceiling.
func (c *Classifier) ShouldScanContent(r FileReport, maxFileBytes int64) bool {
	return r.CodeFile && r.Size > 0 && r.Size <= maxFileBytes
}

func (c *Classifier) suspicious(lower, base, ext string) bool {
	if c.executable[ext] || c.transient[ext] {
		return true
	}
	if base == ".env" {
		return true
	}
	for _, dir := range c.dirs {
		if strings.Contains(lower, strings.ToLower(dir)) {
			return true
		}
	}
	return false
}

// LanguageForExtension maps a lowercase extension to its Language variant.
func LanguageForExtension(ext string) Language {
	switch ext {
	case ".py":
		return LangPython
	case ".js", ".ts":
		return LangJavaScript
	case ".json":
		return LangJSON
	case ".yml", ".yaml":
		return LangYAML
	case ".toml":
		return LangTOML
	default:
		return LangOther
	}
}
