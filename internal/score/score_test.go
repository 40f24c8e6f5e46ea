package score

import (
	"strings"
	"testing"

	"github.com/hivefoundry/agentvet/internal/config"
)

func testCalculator() *Calculator {
	return New(config.Defaults())
}

const integratedAgent = `import requests

# Agent registration
def register():
    try:
        resp = requests.post("https://platform.local/api/webhook/register", headers={"Authorization": "Bearer token"})
    except:
        pass

def ping():
    resp = requests.get("https://platform.local/api/webhook/ping")

class Agent:
    pass
`

func TestScore_IntegratedAgent(t *testing.T) {
	r := testCalculator().Score(integratedAgent)

	if r.Breakdown.PlatformEndpoints != 30 {
		t.Errorf("endpoints axis = %v, want 30", r.Breakdown.PlatformEndpoints)
	}
	if r.Breakdown.Penalties != 0 {
		t.Errorf("penalties = %v, want 0", r.Breakdown.Penalties)
	}
	if r.Score < 80 {
		t.Errorf("score = %d, want >= 80", r.Score)
	}
	if r.Category != CategoryVerified {
		t.Errorf("category = %s, want %s", r.Category, CategoryVerified)
	}
	if r.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want %s", r.Confidence, ConfidenceHigh)
	}
}

func TestScore_EmptyContent(t *testing.T) {
	r := testCalculator().Score("")

	// Only the security axis contributes: no dangerous patterns means the
	// internal compliance score stays at its 100 baseline.
	if r.Score != 10 {
		t.Errorf("score = %d, want 10", r.Score)
	}
	if r.Category != CategoryUnlikely {
		t.Errorf("category = %s, want %s", r.Category, CategoryUnlikely)
	}
	if r.Confidence != ConfidenceLow {
		t.Errorf("confidence = %s, want %s", r.Confidence, ConfidenceLow)
	}
}

func TestEndpointAxis(t *testing.T) {
	c := testCalculator()

	if got := c.endpointAxis("no endpoints here"); got != 0 {
		t.Errorf("no endpoints: got %v, want 0", got)
	}
	// One distinct literal earns 60% of the weight.
	if got := c.endpointAxis("x webhook/ping x"); got != 18 {
		t.Errorf("one endpoint: got %v, want 18", got)
	}
	// The full path literal also contains the short form, so both count.
	if got := c.endpointAxis("post /api/webhook/register"); got != 30 {
		t.Errorf("full path: got %v, want 30", got)
	}
}

func TestHTTPLibraryAxis(t *testing.T) {
	c := testCalculator()

	tests := []struct {
		name         string
		content      string
		wantScore    float64
		wantFamilies int
	}{
		{"none", "plain text", 0, 0},
		{"one occurrence", "import requests", 12, 1},
		{"two occurrences", "fetch(a); fetch(b)", 15, 1},
		{"three occurrences", "import requests\nrequests.get(u)\nrequests.post(u)", 18, 1},
		{"two families", "import requests\naxios.get(u)", 20, 2},
		{"three families", "import requests\naxios.get(u)\nfetch(u)", 25, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, families := c.httpLibraryAxis(strings.ToLower(tt.content))
			if got != tt.wantScore {
				t.Errorf("score = %v, want %v", got, tt.wantScore)
			}
			if families != tt.wantFamilies {
				t.Errorf("families = %d, want %d", families, tt.wantFamilies)
			}
		})
	}
}

func TestCommunicationAxis(t *testing.T) {
	c := testCalculator()

	if got := c.communicationAxis("nothing"); got != 0 {
		t.Errorf("no matches: got %v, want 0", got)
	}
	// Five matches scale to half the weight.
	if got := c.communicationAxis("webhook webhook webhook webhook webhook"); got != 10 {
		t.Errorf("five matches: got %v, want 10", got)
	}
	// Matches are capped at ten.
	if got := c.communicationAxis(strings.Repeat("webhook ", 30)); got != 20 {
		t.Errorf("capped: got %v, want 20", got)
	}
}

func TestSecurityAxis(t *testing.T) {
	c := testCalculator()

	// Clean content keeps the 100 baseline.
	axis, penalties := c.securityAxis("clean content")
	if axis != 10 || penalties != 0 {
		t.Errorf("clean: axis=%v penalties=%v, want 10, 0", axis, penalties)
	}

	// Each dangerous occurrence costs 15 internally and is recorded.
	axis, penalties = c.securityAxis("eval(x)")
	if penalties != 15 {
		t.Errorf("one eval: penalties=%v, want 15", penalties)
	}
	if axis != 8.5 {
		t.Errorf("one eval: axis=%v, want 8.5", axis)
	}

	// Hygiene markers claw back 5 each; the internal score clips at 100.
	axis, _ = c.securityAxis("https:// authorization token bearer api_key")
	if axis != 10 {
		t.Errorf("hygiene: axis=%v, want 10 (clipped)", axis)
	}

	// Seven occurrences floor the internal score at 0.
	axis, penalties = c.securityAxis(strings.Repeat("eval(x) ", 7))
	if axis != 0 {
		t.Errorf("flooded: axis=%v, want 0", axis)
	}
	if penalties != 105 {
		t.Errorf("flooded: penalties=%v, want 105", penalties)
	}
}

func TestScore_PenaltiesCompound(t *testing.T) {
	// Penalties floor the compliance axis and subtract from the total.
	r := testCalculator().Score("eval(x)")
	if r.Breakdown.Penalties != 15 {
		t.Errorf("penalties = %v, want 15", r.Breakdown.Penalties)
	}
	if r.Score != 0 {
		t.Errorf("score = %d, want 0 (clipped)", r.Score)
	}
}

func TestScore_CaseInsensitive(t *testing.T) {
	c := testCalculator()
	lower := c.Score("import requests")
	upper := c.Score("IMPORT REQUESTS")
	if lower.Score != upper.Score {
		t.Errorf("case sensitivity: %d vs %d", lower.Score, upper.Score)
	}
}

func TestTier(t *testing.T) {
	tests := []struct {
		score          int
		wantCategory   string
		wantConfidence string
	}{
		{100, CategoryVerified, ConfidenceHigh},
		{80, CategoryVerified, ConfidenceHigh},
		{79, CategoryLikely, ConfidenceMedium},
		{40, CategoryLikely, ConfidenceMedium},
		{39, CategoryUnlikely, ConfidenceLow},
		{0, CategoryUnlikely, ConfidenceLow},
	}
	for _, tt := range tests {
		category, confidence := tier(tt.score)
		if category != tt.wantCategory {
			t.Errorf("tier(%d) category = %s, want %s", tt.score, category, tt.wantCategory)
		}
		if confidence != tt.wantConfidence {
			t.Errorf("tier(%d) confidence = %s, want %s", tt.score, confidence, tt.wantConfidence)
		}
	}
}

func TestRecommendations_UnderperformingAxes(t *testing.T) {
	r := testCalculator().Score("")

	// Four axes are below half weight; the compliance axis is at full.
	if len(r.Recommendations) != 4 {
		t.Fatalf("expected 4 recommendations, got %d: %+v", len(r.Recommendations), r.Recommendations)
	}

	// Sorted by impact: High, High, Medium, Low. Stable sort keeps the
	// endpoint axis ahead of the HTTP library axis.
	if r.Recommendations[0].Category != "platform_endpoints" {
		t.Errorf("first rec = %s, want platform_endpoints", r.Recommendations[0].Category)
	}
	if r.Recommendations[1].Category != "http_libraries" {
		t.Errorf("second rec = %s, want http_libraries", r.Recommendations[1].Category)
	}
	if r.Recommendations[3].Impact != ImpactLow {
		t.Errorf("last rec impact = %s, want %s", r.Recommendations[3].Impact, ImpactLow)
	}
	if r.Recommendations[0].Points != 30 {
		t.Errorf("endpoint rec points = %d, want 30", r.Recommendations[0].Points)
	}
}

func TestRecommendations_PenaltiesFirst(t *testing.T) {
	r := testCalculator().Score("eval(x)")

	if len(r.Recommendations) == 0 {
		t.Fatal("expected recommendations")
	}
	if r.Recommendations[0].Category != "security_penalties" {
		t.Errorf("first rec = %s, want security_penalties", r.Recommendations[0].Category)
	}
	if r.Recommendations[0].Impact != ImpactCritical {
		t.Errorf("impact = %s, want %s", r.Recommendations[0].Impact, ImpactCritical)
	}
	if r.Recommendations[0].Points != 15 {
		t.Errorf("points = %d, want 15", r.Recommendations[0].Points)
	}
}

func TestRecommendations_NoneWhenStrong(t *testing.T) {
	r := testCalculator().Score(integratedAgent)
	for _, rec := range r.Recommendations {
		if rec.Category == "security_penalties" {
			t.Errorf("unexpected penalty recommendation: %+v", rec)
		}
	}
}
