package secscan

import (
	"strings"
	"testing"

	"github.com/hivefoundry/agentvet/internal/classify"
	"github.com/hivefoundry/agentvet/internal/config"
)

func testScanner() *Scanner {
	return New(config.Defaults())
}

func findCategory(findings []Finding, category string) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

func TestScan_DangerousCalls(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"eval", `result = eval(user_input)`},
		{"exec", `exec(payload)`},
		{"os.system", `os.system("rm -rf /")`},
		{"subprocess.run", `subprocess.run(["ls"])`},
		{"subprocess.Popen", `p = subprocess.Popen(cmd)`},
		{"os.popen", `out = os.popen("whoami").read()`},
		{"shell_exec", `shell_exec($cmd);`},
	}

	sc := testScanner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, _ := sc.Scan(tt.content, "main.py", classify.LangPython)
			hits := findCategory(findings, config.CategoryDangerousCalls)
			if len(hits) == 0 {
				t.Errorf("expected dangerous_calls finding in %q", tt.content)
				return
			}
			if hits[0].Severity != SeverityCritical {
				t.Errorf("expected critical severity, got %s", hits[0].Severity)
			}
		})
	}
}

func TestScan_DangerousImports(t *testing.T) {
	tests := []struct {
		name    string
		content string
		hit     bool
	}{
		{"import subprocess", "import subprocess\n", true},
		{"import socket", "import socket\n", true},
		{"bare import os", "import os\n", true},
		{"from os import", "from os import path\n", true},
		{"require child_process", `const cp = require('child_process')`, true},
		{"dunder import", `__import__("os")`, true},
		{"import os.path is fine", "import os.path\n", false},
		{"import json is fine", "import json\n", false},
	}

	sc := testScanner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, _ := sc.Scan(tt.content, "main.py", classify.LangPython)
			hits := findCategory(findings, config.CategoryDangerousImports)
			if got := len(hits) > 0; got != tt.hit {
				t.Errorf("%q: dangerous_imports hit = %v, want %v", tt.content, got, tt.hit)
			}
			for _, h := range hits {
				if h.Severity != SeverityHigh {
					t.Errorf("expected high severity, got %s", h.Severity)
				}
			}
		})
	}
}

func TestScan_NetworkAndFilesystem(t *testing.T) {
	content := `import requests
resp = requests.get(url)
data = open("state.json").read()
`
	sc := testScanner()
	findings, _ := sc.Scan(content, "agent.py", classify.LangPython)

	if hits := findCategory(findings, config.CategoryNetworkOps); len(hits) == 0 {
		t.Error("expected network_operations finding")
	} else if hits[0].Severity != SeverityMedium {
		t.Errorf("expected medium severity, got %s", hits[0].Severity)
	}

	if hits := findCategory(findings, config.CategoryFileSystemOps); len(hits) == 0 {
		t.Error("expected filesystem_operations finding")
	}
}

func TestScan_Obfuscation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"hex escape", `payload = "\x41\x42"`},
		{"octal escape", `s = "\101\102"`},
		{"base64 mention", `import base64`},
		{"atob", `const raw = atob(blob)`},
	}

	sc := testScanner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, _ := sc.Scan(tt.content, "x.js", classify.LangJavaScript)
			if len(findCategory(findings, config.CategoryObfuscation)) == 0 {
				t.Errorf("expected obfuscation finding in %q", tt.content)
			}
		})
	}
}

func TestScan_CleanContent(t *testing.T) {
	content := `import json

def handler(event):
    return json.dumps({"ok": True})
`
	sc := testScanner()
	findings, _ := sc.Scan(content, "clean.py", classify.LangPython)
	if len(findings) != 0 {
		t.Errorf("expected no findings for clean content, got %v", findings)
	}
}

func TestScan_LineNumbers(t *testing.T) {
	content := "x = 1\ny = 2\nresult = eval(x)\n"
	sc := testScanner()
	findings, _ := sc.Scan(content, "m.py", classify.LangPython)

	hits := findCategory(findings, config.CategoryDangerousCalls)
	if len(hits) != 1 {
		t.Fatalf("expected 1 dangerous_calls finding, got %d", len(hits))
	}
	if hits[0].Line != 3 {
		t.Errorf("expected finding on line 3, got %d", hits[0].Line)
	}
	if hits[0].File != "m.py" {
		t.Errorf("expected file m.py, got %s", hits[0].File)
	}
}

func TestScan_CommentStillCounts(t *testing.T) {
	// Detection is lexical: commented-out calls are still flagged.
	content := "# eval(data)\n"
	sc := testScanner()
	findings, _ := sc.Scan(content, "m.py", classify.LangPython)
	if len(findCategory(findings, config.CategoryDangerousCalls)) == 0 {
		t.Error("expected lexical match inside comment")
	}
}

func TestScan_MatchTruncated(t *testing.T) {
	content := "eval(" + strings.Repeat("a", 500) + ")"
	sc := testScanner()
	findings, _ := sc.Scan(content, "m.py", classify.LangPython)
	for _, f := range findings {
		if len(f.Match) > maxMatchLen {
			t.Errorf("match not truncated: %d chars", len(f.Match))
		}
	}
}

func TestScan_EveryOccurrenceCounted(t *testing.T) {
	content := "eval(a)\neval(b)\neval(c)\n"
	sc := testScanner()
	findings, _ := sc.Scan(content, "m.py", classify.LangPython)
	if hits := findCategory(findings, config.CategoryDangerousCalls); len(hits) != 3 {
		t.Errorf("expected 3 findings, got %d", len(hits))
	}
}

func TestLineAt(t *testing.T) {
	content := "a\nb\nc"
	tests := []struct {
		offset int
		want   int
	}{
		{-5, 1},
		{0, 1},
		{2, 2},
		{4, 3},
		{100, 3},
	}
	for _, tt := range tests {
		if got := lineAt(content, tt.offset); got != tt.want {
			t.Errorf("lineAt(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}

func TestCountBySeverity(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityCritical},
		{Severity: SeverityCritical},
		{Severity: SeverityMedium},
	}
	counts := CountBySeverity(findings)
	if counts[SeverityCritical] != 2 {
		t.Errorf("expected 2 critical, got %d", counts[SeverityCritical])
	}
	if counts[SeverityMedium] != 1 {
		t.Errorf("expected 1 medium, got %d", counts[SeverityMedium])
	}
	if counts[SeverityLow] != 0 {
		t.Errorf("expected 0 low, got %d", counts[SeverityLow])
	}
}
