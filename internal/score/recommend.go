package score

import (
	"math"
	"sort"

	"github.com/hivefoundry/agentvet/internal/config"
)

// Impact ranks a recommendation's expected effect on the score.
type Impact string

// Impact tiers, strongest first in the sort order.
const (
	ImpactCritical Impact = "Critical"
	ImpactHigh     Impact = "High"
	ImpactMedium   Impact = "Medium"
	ImpactLow      Impact = "Low"
)

var impactRank = map[Impact]int{
	ImpactCritical: 0,
	ImpactHigh:     1,
	ImpactMedium:   2,
	ImpactLow:      3,
}

// Recommendation is one ranked improvement suggestion.
type Recommendation struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Impact   Impact `json:"impact"`
	Points   int    `json:"points"` // potential score gain, or penalty magnitude
}

// recommendThreshold is the fraction of an axis weight below which a
// recommendation is emitted for that axis.
const recommendThreshold = 0.5

// recommend emits one suggestion per underperforming axis plus one for any
// recorded penalties, sorted by impact descending. The sort is stable so
// ties keep insertion order.
func (c *Calculator) recommend(b Breakdown, w config.AxisWeights) []Recommendation {
	var recs []Recommendation

	axis := func(category, message string, impact Impact, got float64, weight int) {
		if got < float64(weight)*recommendThreshold {
			recs = append(recs, Recommendation{
				Category: category,
				Message:  message,
				Impact:   impact,
				Points:   weight - int(math.Round(got)),
			})
		}
	}

	axis("platform_endpoints",
		"Register with the platform webhook endpoints (/api/webhook/register, /api/webhook/ping) during startup",
		ImpactHigh, b.PlatformEndpoints, w.PlatformEndpoints)
	axis("http_libraries",
		"Use a recognized HTTP client library (requests, fetch, axios, or curl) for platform calls",
		ImpactHigh, b.HTTPLibraries, w.HTTPLibraries)
	axis("communication",
		"Add explicit communication with platform endpoints over https",
		ImpactMedium, b.Communication, w.Communication)
	axis("code_quality",
		"Structure the agent with imports, functions, and comments",
		ImpactLow, b.CodeQuality, w.CodeQuality)
	axis("security_compliance",
		"Add security hygiene: https endpoints and token-based authorization",
		ImpactMedium, b.SecurityCompliance, w.SecurityCompliance)

	if b.Penalties > 0 {
		recs = append(recs, Recommendation{
			Category: "security_penalties",
			Message:  "Remove dangerous constructs (eval, exec, system, subprocess) from the submission",
			Impact:   ImpactCritical,
			Points:   int(math.Round(b.Penalties)),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return impactRank[recs[i].Impact] < impactRank[recs[j].Impact]
	})
	return recs
}
