// Package score holds the numeric policies shared by resolution and selection
// and the transparent entity coverage report.
package score

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Clamp01 clamps v into [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Clamp100 clamps v into [0,100]. NaN becomes 0.
func Clamp100(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// Weights combine an asset's match and quality scores
type Weights struct {
	Match   float64
	Quality float64
}

// DefaultWeights favor identity match over image quality
var DefaultWeights = Weights{Match: 0.6, Quality: 0.4}

// Combined returns the weighted score in [0,100]. Inputs are clamped and the
// weights normalized, so the result stays in range for any configuration.
func (w Weights) Combined(match, quality float64) float64 {
	wm, wq := math.Max(0, w.Match), math.Max(0, w.Quality)
	if math.IsNaN(wm) || math.IsNaN(wq) || wm+wq == 0 {
		wm, wq = DefaultWeights.Match, DefaultWeights.Quality
	}
	combined := (wm*Clamp100(match) + wq*Clamp100(quality)) / (wm + wq)
	return Clamp100(combined)
}

// Aggregation selects how agreeing claims combine into a fact confidence
type Aggregation string

const (
	// AggregateRepresentative reports the representative claim's own confidence
	AggregateRepresentative Aggregation = "representative"
	// AggregateMax reports the highest confidence among agreeing claims
	AggregateMax Aggregation = "max"
	// AggregateNoisyOr treats each distinct source domain as independent evidence
	AggregateNoisyOr Aggregation = "noisy_or"
)

// ParseAggregation parses an aggregation name; empty means representative
func ParseAggregation(raw string) (Aggregation, error) {
	switch a := Aggregation(strings.ToLower(strings.TrimSpace(raw))); a {
	case "":
		return AggregateRepresentative, nil
	case AggregateRepresentative, AggregateMax, AggregateNoisyOr:
		return a, nil
	}
	return "", fmt.Errorf("unknown aggregation policy: %q", raw)
}

// Contribution is one agreeing claim's confidence and where it came from
type Contribution struct {
	Confidence float64
	Domain     string
}

// Aggregate combines confidences under the policy. representative is the
// confidence of the chosen representative claim.
func (a Aggregation) Aggregate(representative float64, contributions []Contribution) float64 {
	switch a {
	case AggregateMax:
		best := Clamp01(representative)
		for _, c := range contributions {
			best = math.Max(best, Clamp01(c.Confidence))
		}
		return best

	case AggregateNoisyOr:
		// Strongest claim per domain, so one site repeating itself counts once
		perDomain := make(map[string]float64)
		for _, c := range contributions {
			d := strings.ToLower(c.Domain)
			perDomain[d] = math.Max(perDomain[d], Clamp01(c.Confidence))
		}
		if len(perDomain) == 0 {
			return Clamp01(representative)
		}
		domains := make([]string, 0, len(perDomain))
		for d := range perDomain {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		miss := 1.0
		for _, d := range domains {
			miss *= 1 - perDomain[d]
		}
		return Clamp01(math.Max(1-miss, Clamp01(representative)))

	default:
		return Clamp01(representative)
	}
}
