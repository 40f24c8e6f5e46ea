package secscan

import (
	"encoding/json"
	"math"
	"strings"

	regexp "github.com/wasilibs/go-re2"

	"github.com/hivefoundry/agentvet/internal/classify"
)

// Metrics are lightweight per-language content measurements. They are
// purely descriptive and never feed risk scoring.
type Metrics struct {
	Lines      int     `json:"lines"`
	Imports    int     `json:"imports,omitempty"`
	Functions  int     `json:"functions,omitempty"`
	Classes    int     `json:"classes,omitempty"`
	JSONKeys   int     `json:"json_keys,omitempty"`
	JSONDepth  int     `json:"json_depth,omitempty"`
	Complexity float64 `json:"complexity"`
	ParseError string  `json:"parse_error,omitempty"`
}

var (
	pyImportRe   = regexp.MustCompile(`(?m)^\s*(import|from)\s+\w`)
	pyFunctionRe = regexp.MustCompile(`(?m)^\s*def\s+\w+`)
	pyClassRe    = regexp.MustCompile(`(?m)^\s*class\s+\w+`)

	jsImportRe   = regexp.MustCompile(`(?m)^\s*(import\s|const\s+\w+\s*=\s*require\s*\(|require\s*\()`)
	jsFunctionRe = regexp.MustCompile(`(?m)(function\s+\w+|=>\s*[{(]|^\s*\w+\s*\([^)]*\)\s*{)`)
	jsClassRe    = regexp.MustCompile(`(?m)^\s*class\s+\w+`)

	branchRe = regexp.MustCompile(`\b(if|for|while|try|catch|switch|case)\b`)
)

func computeMetrics(content string, lang classify.Language) Metrics {
	m := Metrics{Lines: strings.Count(content, "\n") + 1}

	switch lang {
	case classify.LangPython:
		m.Imports = len(pyImportRe.FindAllString(content, -1))
		m.Functions = len(pyFunctionRe.FindAllString(content, -1))
		m.Classes = len(pyClassRe.FindAllString(content, -1))
	case classify.LangJavaScript:
		m.Imports = len(jsImportRe.FindAllString(content, -1))
		m.Functions = len(jsFunctionRe.FindAllString(content, -1))
		m.Classes = len(jsClassRe.FindAllString(content, -1))
	case classify.LangJSON:
		keys, depth, err := jsonShape(content)
		if err != nil {
			m.ParseError = err.Error()
		} else {
			m.JSONKeys = keys
			m.JSONDepth = depth
		}
	}

	m.Complexity = complexity(content)
	return m
}

// complexity is a crude cyclomatic-like ratio: branch keyword count over
// non-blank line count, rounded to two decimals.
func complexity(content string) float64 {
	branches := len(branchRe.FindAllString(content, -1))

	nonBlank := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			nonBlank++
		}
	}
	if nonBlank < 1 {
		nonBlank = 1
	}
	return math.Round(float64(branches)/float64(nonBlank)*100) / 100
}

// jsonShape counts object keys and the maximum nesting depth of a JSON
// document. Malformed JSON is reported, not fatal.
func jsonShape(content string) (keys, depth int, err error) {
	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return 0, 0, err
	}
	keys, depth = walkJSON(doc, 1)
	return keys, depth, nil
}

func walkJSON(node any, level int) (keys, depth int) {
	depth = level
	switch v := node.(type) {
	case map[string]any:
		keys = len(v)
		for _, child := range v {
			k, d := walkJSON(child, level+1)
			keys += k
			if d > depth {
				depth = d
			}
		}
	case []any:
		for _, child := range v {
			k, d := walkJSON(child, level+1)
			keys += k
			if d > depth {
				depth = d
			}
		}
	}
	return keys, depth
}
