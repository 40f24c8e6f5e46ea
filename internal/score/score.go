// Package score implements the platform-integration confidence model: five
// weighted axes plus bonuses and penalties, clipped to [0,100], mapped to a
// compliance tier with ranked improvement recommendations.
package score

import (
	"math"
	"strings"

	"github.com/hivefoundry/agentvet/internal/config"
)

// Compliance tiers derived from the final score.
const (
	CategoryVerified = "Verified"
	CategoryLikely   = "Likely"
	CategoryUnlikely = "Unlikely"
)

// Confidence labels, a pure function of the tier.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// Result is the outcome of scoring one submission's concatenated code
// content. Stateless: computed once per scan and returned, never persisted
// by the engine itself.
type Result struct {
	Score           int              `json:"score"` // 0-100
	Category        string           `json:"category"`
	Confidence      string           `json:"confidence"`
	Breakdown       Breakdown        `json:"breakdown"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// Breakdown carries the per-axis sub-scores plus bonus and penalty totals.
// Axis values are capped at their configured weights; BonusPoints and
// Penalties are unbounded and can push the pre-clip total outside [0,100].
type Breakdown struct {
	PlatformEndpoints  float64 `json:"platform_endpoints"`
	HTTPLibraries      float64 `json:"http_libraries"`
	Communication      float64 `json:"communication"`
	CodeQuality        float64 `json:"code_quality"`
	SecurityCompliance float64 `json:"security_compliance"`
	BonusPoints        float64 `json:"bonus_points"`
	Penalties          float64 `json:"penalties"`
}

// Calculator scores content against the configured literal tables.
type Calculator struct {
	scoring config.Scoring
}

// New creates a Calculator from validated config.
func New(cfg *config.Config) *Calculator {
	return &Calculator{scoring: cfg.Scoring}
}

// Score evaluates the concatenated textual content of all scanned code
// files. Matching is case-insensitive throughout: content is lowered once
// and all configured literals are lowered before counting.
func (c *Calculator) Score(content string) Result {
	lower := strings.ToLower(content)
	w := c.scoring.Weights

	var b Breakdown
	b.PlatformEndpoints = c.endpointAxis(lower)
	httpScore, families := c.httpLibraryAxis(lower)
	b.HTTPLibraries = httpScore
	b.Communication = c.communicationAxis(lower)
	b.CodeQuality = c.codeQualityAxis(content, lower)
	b.SecurityCompliance, b.Penalties = c.securityAxis(lower)
	b.BonusPoints = c.bonuses(lower, families)

	// Penalties compound: they already floor the compliance axis and are
	// subtracted again from the grand total before clipping.
	total := b.PlatformEndpoints + b.HTTPLibraries + b.Communication +
		b.CodeQuality + b.SecurityCompliance + b.BonusPoints - b.Penalties
	final := int(math.Round(clamp(total, 0, 100)))

	category, confidence := tier(final)

	return Result{
		Score:           final,
		Category:        category,
		Confidence:      confidence,
		Breakdown:       b,
		Recommendations: c.recommend(b, w),
	}
}

// endpointAxis scores declared platform-endpoint usage: two or more
// distinct qualifying literals earn the full weight, exactly one earns
// 60% of it.
func (c *Calculator) endpointAxis(lower string) float64 {
	w := float64(c.scoring.Weights.PlatformEndpoints)
	distinct := 0
	for _, ep := range c.scoring.Endpoints {
		if strings.Contains(lower, strings.ToLower(ep)) {
			distinct++
		}
	}
	switch {
	case distinct >= 2:
		return w
	case distinct == 1:
		return w * 0.6
	default:
		return 0
	}
}

// httpLibraryAxis scores named HTTP client family usage. Returns the axis
// score and the number of distinct families detected.
func (c *Calculator) httpLibraryAxis(lower string) (float64, int) {
	w := float64(c.scoring.Weights.HTTPLibraries)

	families := 0
	occurrences := 0
	for _, lib := range c.scoring.HTTPLibraries {
		libHits := 0
		for _, sig := range lib.Signatures {
			libHits += strings.Count(lower, strings.ToLower(sig))
		}
		if libHits > 0 {
			families++
			occurrences += libHits
		}
	}
	if families == 0 {
		return 0, 0
	}

	points := 10.0
	// Mutually exclusive occurrence tiers, highest applicable.
	switch {
	case occurrences >= 3:
		points += 8
	case occurrences >= 2:
		points += 5
	case occurrences >= 1:
		points += 2
	}
	if families >= 2 {
		points += 5
	}
	if families >= 3 {
		points += 2
	}
	return math.Min(points, w), families
}

// communicationAxis scores general communication patterns: capped match
// count scaled to the axis weight.
func (c *Calculator) communicationAxis(lower string) float64 {
	w := float64(c.scoring.Weights.Communication)
	matches := 0
	for _, p := range c.scoring.CommunicationPatterns {
		matches += strings.Count(lower, strings.ToLower(p))
	}
	return math.Min(float64(matches), 10) / 10 * w
}

// codeQualityAxis is a composite of six structural heuristics summed to a
// 0-100 raw quality score, then scaled to the axis weight.
func (c *Calculator) codeQualityAxis(content, lower string) float64 {
	w := float64(c.scoring.Weights.CodeQuality)

	raw := 0.0
	if strings.Contains(lower, "import ") || strings.Contains(lower, "require(") {
		raw += 20
	}
	if strings.Contains(lower, "def ") || strings.Contains(lower, "function ") || strings.Contains(content, "=>") {
		raw += 25
	}
	if strings.Contains(lower, "class ") {
		raw += 20
	}
	if strings.Contains(content, "#") || strings.Contains(content, "//") || strings.Contains(content, "/*") {
		raw += 15
	}
	if len(content) > 100 {
		raw += 10
	}
	if strings.Count(content, "\n")+1 > 20 {
		raw += 10
	}
	return raw / 100 * w
}

const (
	penaltyPerOccurrence = 15
	hygieneBonus         = 5
)

// securityAxis starts at 100, subtracts 15 per dangerous-pattern
// occurrence (recorded separately as penalties), adds 5 per hygiene
// marker present, clips to [0,100], and scales to the axis weight.
func (c *Calculator) securityAxis(lower string) (axis, penalties float64) {
	w := float64(c.scoring.Weights.SecurityCompliance)

	internal := 100.0
	for _, p := range c.scoring.DangerousPatterns {
		occ := strings.Count(lower, strings.ToLower(p))
		if occ > 0 {
			deduction := float64(occ * penaltyPerOccurrence)
			internal -= deduction
			penalties += deduction
		}
	}
	for _, m := range c.scoring.HygieneMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			internal += hygieneBonus
		}
	}
	return clamp(internal, 0, 100) / 100 * w, penalties
}

var (
	errorHandlingMarkers = []string{"try:", "except:", "catch(", "throw", "error"}
	configMarkers        = []string{"config", "env", "settings", "getenv", "process.env"}
)

// bonuses awards +5 each for error-handling idioms, externalized
// configuration, and multi-family HTTP library usage.
func (c *Calculator) bonuses(lower string, families int) float64 {
	bonus := 0.0
	for _, m := range errorHandlingMarkers {
		if strings.Contains(lower, m) {
			bonus += 5
			break
		}
	}
	for _, m := range configMarkers {
		if strings.Contains(lower, m) {
			bonus += 5
			break
		}
	}
	if families >= 2 {
		bonus += 5
	}
	return bonus
}

// tier maps the final score to its compliance category and confidence.
// Boundaries are closed at the bottom: 80 is Verified, 40 is Likely.
func tier(score int) (string, string) {
	switch {
	case score >= 80:
		return CategoryVerified, ConfidenceHigh
	case score >= 40:
		return CategoryLikely, ConfidenceMedium
	default:
		return CategoryUnlikely, ConfidenceLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
