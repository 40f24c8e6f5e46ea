// Package config handles loading, validating, and defaulting agentvet
// configuration, including the security pattern tables and scoring model
// the scan engine runs against.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	regexp "github.com/wasilibs/go-re2"
	"gopkg.in/yaml.v3"
)

// Severity constants for security pattern categories.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Pattern category names. Each category carries exactly one severity.
const (
	CategoryDangerousImports = "dangerous_imports"
	CategoryDangerousCalls   = "dangerous_calls"
	CategoryNetworkOps       = "network_operations"
	CategoryFileSystemOps    = "filesystem_operations"
	CategoryObfuscation      = "obfuscation"
)

// Output/format constants for configuration defaults.
const (
	DefaultListen    = "127.0.0.1:8710"
	DefaultLogFormat = "json"
	DefaultLogOutput = "stdout"
	OutputFile       = "file"
	OutputBoth       = "both"
)

// Config is the top-level agentvet configuration.
type Config struct {
	Version  int           `yaml:"version"`
	Limits   Limits        `yaml:"limits"`
	Security Security      `yaml:"security"`
	Scoring  Scoring       `yaml:"scoring"`
	Logging  LoggingConfig `yaml:"logging"`
	Server   Server        `yaml:"server"`
}

// Limits bounds archive traversal. These are the only safety valves
// against archive bombs: the engine skips rather than buffers unboundedly.
type Limits struct {
	MaxEntries int `yaml:"max_entries"` // entries catalogued per archive
	MaxFileMB  int `yaml:"max_file_mb"` // per-entry content ceiling for scanning
}

// MaxFileBytes returns the per-entry content ceiling in bytes.
func (l Limits) MaxFileBytes() int64 {
	return int64(l.MaxFileMB) << 20
}

// Security holds the pattern tables the content scanner runs. Categories
// are an immutable configuration object: scan logic never hard-codes them.
type Security struct {
	Categories []PatternCategory `yaml:"categories"`
	// Suspicious filename heuristics for the entry classifier.
	ExecutableExtensions []string `yaml:"executable_extensions"`
	TransientExtensions  []string `yaml:"transient_extensions"`
	SuspiciousDirs       []string `yaml:"suspicious_dirs"`
	AllowedExtensions    []string `yaml:"allowed_extensions"`
	CodeExtensions       []string `yaml:"code_extensions"`
}

// PatternCategory is one named group of regex signatures sharing a severity.
type PatternCategory struct {
	Name     string   `yaml:"name"`
	Severity string   `yaml:"severity"` // critical, high, medium, low
	Patterns []string `yaml:"patterns"`
}

// Scoring configures the platform-integration score calculator.
type Scoring struct {
	Weights               AxisWeights        `yaml:"weights"`
	Endpoints             []string           `yaml:"endpoints"`              // registration/ping endpoint literals
	HTTPLibraries         []LibrarySignature `yaml:"http_libraries"`         // named client families
	CommunicationPatterns []string           `yaml:"communication_patterns"` // generic endpoint/verb/scheme literals
	DangerousPatterns     []string           `yaml:"dangerous_patterns"`     // 15-point penalty each occurrence
	HygieneMarkers        []string           `yaml:"hygiene_markers"`        // +5 each marker present
}

// AxisWeights are the five axis ceilings. They sum to 100 before bonuses.
type AxisWeights struct {
	PlatformEndpoints  int `yaml:"platform_endpoints"`
	HTTPLibraries      int `yaml:"http_libraries"`
	Communication      int `yaml:"communication"`
	CodeQuality        int `yaml:"code_quality"`
	SecurityCompliance int `yaml:"security_compliance"`
}

// Total returns the combined axis ceiling.
func (w AxisWeights) Total() int {
	return w.PlatformEndpoints + w.HTTPLibraries + w.Communication + w.CodeQuality + w.SecurityCompliance
}

// LibrarySignature names one HTTP client family and its call-site signatures.
type LibrarySignature struct {
	Name       string   `yaml:"name"`
	Signatures []string `yaml:"signatures"`
}

// LoggingConfig configures structured audit logging.
type LoggingConfig struct {
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, file, both
	File   string `yaml:"file"`
}

// Server configures the submission intake HTTP server.
type Server struct {
	Listen        string `yaml:"listen"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	DBPath        string `yaml:"db_path"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	RateBurst     int    `yaml:"rate_burst"`
}

// MaxUploadBytes returns the archive upload ceiling in bytes.
func (s Server) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// Load reads, parses, defaults, and validates an agentvet config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from caller
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Defaults()

	if c.Version == 0 {
		c.Version = 1
	}
	if c.Limits.MaxEntries <= 0 {
		c.Limits.MaxEntries = d.Limits.MaxEntries
	}
	if c.Limits.MaxFileMB <= 0 {
		c.Limits.MaxFileMB = d.Limits.MaxFileMB
	}
	if len(c.Security.Categories) == 0 {
		c.Security.Categories = d.Security.Categories
	}
	if len(c.Security.ExecutableExtensions) == 0 {
		c.Security.ExecutableExtensions = d.Security.ExecutableExtensions
	}
	if len(c.Security.TransientExtensions) == 0 {
		c.Security.TransientExtensions = d.Security.TransientExtensions
	}
	if len(c.Security.SuspiciousDirs) == 0 {
		c.Security.SuspiciousDirs = d.Security.SuspiciousDirs
	}
	if len(c.Security.AllowedExtensions) == 0 {
		c.Security.AllowedExtensions = d.Security.AllowedExtensions
	}
	if len(c.Security.CodeExtensions) == 0 {
		c.Security.CodeExtensions = d.Security.CodeExtensions
	}
	if c.Scoring.Weights == (AxisWeights{}) {
		c.Scoring.Weights = d.Scoring.Weights
	}
	if len(c.Scoring.Endpoints) == 0 {
		c.Scoring.Endpoints = d.Scoring.Endpoints
	}
	if len(c.Scoring.HTTPLibraries) == 0 {
		c.Scoring.HTTPLibraries = d.Scoring.HTTPLibraries
	}
	if len(c.Scoring.CommunicationPatterns) == 0 {
		c.Scoring.CommunicationPatterns = d.Scoring.CommunicationPatterns
	}
	if len(c.Scoring.DangerousPatterns) == 0 {
		c.Scoring.DangerousPatterns = d.Scoring.DangerousPatterns
	}
	if len(c.Scoring.HygieneMarkers) == 0 {
		c.Scoring.HygieneMarkers = d.Scoring.HygieneMarkers
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = DefaultLogOutput
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = d.Server.MaxUploadMB
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = d.Server.DBPath
	}
	if c.Server.RatePerMinute <= 0 {
		c.Server.RatePerMinute = d.Server.RatePerMinute
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
}

// Validate checks the config for errors. Must be called after ApplyDefaults.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case DefaultLogFormat, "text":
		// valid
	default:
		return fmt.Errorf("invalid logging format %q: must be json or text", c.Logging.Format)
	}

	switch c.Logging.Output {
	case DefaultLogOutput, OutputFile, OutputBoth:
		// valid
	default:
		return fmt.Errorf("invalid logging output %q: must be stdout, file, or both", c.Logging.Output)
	}

	if (c.Logging.Output == OutputFile || c.Logging.Output == OutputBoth) && c.Logging.File == "" {
		return fmt.Errorf("logging.file is required when output is %q", c.Logging.Output)
	}

	seen := make(map[string]bool, len(c.Security.Categories))
	for _, cat := range c.Security.Categories {
		if cat.Name == "" {
			return fmt.Errorf("pattern category missing name")
		}
		if seen[cat.Name] {
			return fmt.Errorf("duplicate pattern category %q", cat.Name)
		}
		seen[cat.Name] = true

		switch cat.Severity {
		case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
			// valid
		default:
			return fmt.Errorf("pattern category %q has invalid severity %q", cat.Name, cat.Severity)
		}
		if len(cat.Patterns) == 0 {
			return fmt.Errorf("pattern category %q has no patterns", cat.Name)
		}
		for _, p := range cat.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("pattern category %q has invalid regex %q: %w", cat.Name, p, err)
			}
		}
	}

	for _, ext := range c.Security.AllowedExtensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("allowed extension %q must start with a dot", ext)
		}
	}
	for _, ext := range c.Security.CodeExtensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("code extension %q must start with a dot", ext)
		}
	}

	w := c.Scoring.Weights
	for name, v := range map[string]int{
		"platform_endpoints":  w.PlatformEndpoints,
		"http_libraries":      w.HTTPLibraries,
		"communication":       w.Communication,
		"code_quality":        w.CodeQuality,
		"security_compliance": w.SecurityCompliance,
	} {
		if v < 0 {
			return fmt.Errorf("scoring weight %s must not be negative", name)
		}
	}
	if w.Total() != 100 {
		return fmt.Errorf("scoring weights must sum to 100, got %d", w.Total())
	}

	for _, lib := range c.Scoring.HTTPLibraries {
		if lib.Name == "" {
			return fmt.Errorf("http library family missing name")
		}
		if len(lib.Signatures) == 0 {
			return fmt.Errorf("http library family %q has no signatures", lib.Name)
		}
	}

	if host, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		return fmt.Errorf("invalid server listen address %q: %w", c.Server.Listen, err)
	} else if ip := net.ParseIP(host); ip != nil && !ip.IsLoopback() {
		fmt.Fprintf(os.Stderr, "WARNING: listen address %s is not loopback - intake endpoints will be exposed to the network\n", c.Server.Listen)
	}

	return nil
}

// Defaults returns a Config carrying the full default pattern tables and
// scoring model.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Limits: Limits{
			MaxEntries: 100,
			MaxFileMB:  5,
		},
		Security: Security{
			Categories: []PatternCategory{
				{
					Name:     CategoryDangerousImports,
					Severity: SeverityHigh,
					Patterns: []string{
						`(?m)^\s*import\s+(subprocess|socket)\b`,
						`(?m)^\s*import\s+os\s*$`,
						`(?m)^\s*import\s+sys\s*$`,
						`(?m)^\s*from\s+(subprocess|os|sys|socket)\s+import\b`,
						`require\s*\(\s*['"](child_process|shelljs)['"]`,
						`(?m)^\s*import\s+\w+\s+from\s+['"](child_process|shelljs)['"]`,
						`__import__\s*\(\s*['"](os|subprocess|sys|socket)['"]`,
					},
				},
				{
					Name:     CategoryDangerousCalls,
					Severity: SeverityCritical,
					Patterns: []string{
						`\beval\s*\(`,
						`\bexec\s*\(`,
						`\bsystem\s*\(`,
						`shell_exec\s*\(`,
						`\bpopen\s*\(`,
						`subprocess\.(call|run|Popen|check_output)`,
						`os\.system`,
						`os\.popen`,
					},
				},
				{
					Name:     CategoryNetworkOps,
					Severity: SeverityMedium,
					Patterns: []string{
						`urllib\.request`,
						`requests\.(get|post|put|delete)`,
						`\bfetch\s*\(`,
						`axios\.`,
						`http\.request`,
						`socket\.socket`,
					},
				},
				{
					Name:     CategoryFileSystemOps,
					Severity: SeverityMedium,
					Patterns: []string{
						`\bopen\s*\(`,
						`\.read\s*\(\s*\)`,
						`\.write\s*\(`,
						`fs\.(readFile|writeFile|unlink|rmdir)`,
						`os\.remove`,
						`shutil\.rmtree`,
					},
				},
				{
					Name:     CategoryObfuscation,
					Severity: SeverityHigh,
					Patterns: []string{
						`\\x[0-9a-fA-F]{2}`,
						`\\[0-7]{3}`,
						`(?i)base64`,
						`\batob\s*\(`,
						`\bbtoa\s*\(`,
					},
				},
			},
			ExecutableExtensions: []string{".exe", ".bat", ".cmd", ".sh", ".scr", ".com", ".pif"},
			TransientExtensions:  []string{".log", ".tmp", ".temp", ".bak", ".old"},
			SuspiciousDirs:       []string{"__pycache__", ".git", "node_modules"},
			AllowedExtensions: []string{
				".py", ".js", ".json", ".txt", ".md",
				".yml", ".yaml", ".toml", ".cfg", ".conf", ".ini",
			},
			CodeExtensions: []string{".py", ".js", ".ts", ".json", ".yml", ".yaml", ".toml"},
		},
		Scoring: Scoring{
			Weights: AxisWeights{
				PlatformEndpoints:  30,
				HTTPLibraries:      25,
				Communication:      20,
				CodeQuality:        15,
				SecurityCompliance: 10,
			},
			Endpoints: []string{
				"/api/webhook/register",
				"/api/webhook/ping",
				"webhook/register",
				"webhook/ping",
			},
			HTTPLibraries: []LibrarySignature{
				{Name: "requests", Signatures: []string{
					"requests.get", "requests.post", "requests.put", "requests.delete", "import requests",
				}},
				{Name: "fetch", Signatures: []string{"fetch("}},
				{Name: "axios", Signatures: []string{"axios.", "axios("}},
				{Name: "curl", Signatures: []string{"curl ", "curl.exe"}},
			},
			CommunicationPatterns: []string{
				"/api/", "endpoint", "webhook",
				"post", "get", "put", "delete",
				"http://", "https://", "ws://", "wss://",
			},
			DangerousPatterns: []string{
				"eval(", "exec(", "system(", "shell_exec",
				"subprocess.run", "os.system", "popen",
			},
			HygieneMarkers: []string{
				"https://", "authorization", "token", "api_key", "bearer",
			},
		},
		Logging: LoggingConfig{
			Format: DefaultLogFormat,
			Output: DefaultLogOutput,
		},
		Server: Server{
			Listen:        DefaultListen,
			MaxUploadMB:   50,
			DBPath:        "agentvet.db",
			RatePerMinute: 10,
			RateBurst:     5,
		},
	}
}
