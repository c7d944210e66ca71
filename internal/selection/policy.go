package selection

import (
	"fmt"

	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/score"
)

// DefaultMinMatchScore is the identity match an asset needs to be eligible
const DefaultMinMatchScore = 60

// Policy decides which media assets may be selected and how they rank
type Policy struct {
	Weights       score.Weights
	MinMatchScore float64
}

// NewPolicy builds a policy from configuration, filling defaults
func NewPolicy(cfg model.SelectionConfig) Policy {
	p := Policy{
		Weights:       score.Weights{Match: cfg.MatchWeight, Quality: cfg.QualityWeight},
		MinMatchScore: cfg.MinMatchScore,
	}
	if p.Weights.Match <= 0 && p.Weights.Quality <= 0 {
		p.Weights = score.DefaultWeights
	}
	if p.MinMatchScore <= 0 {
		p.MinMatchScore = DefaultMinMatchScore
	}
	return p
}

// Combined returns the ranking score of an asset in [0,100]
func (p Policy) Combined(a model.MediaAsset) float64 {
	return p.Weights.Combined(a.MatchScore, a.QualityScore)
}

// Reasons lists why an asset cannot be selected; empty means eligible
func (p Policy) Reasons(a model.MediaAsset) []string {
	var reasons []string
	switch a.Status {
	case model.AssetRejected:
		reasons = append(reasons, "rejected")
	case model.AssetScored:
	default:
		reasons = append(reasons, "not scored")
	}
	if a.Status == model.AssetScored {
		if score.Clamp100(a.MatchScore) < p.MinMatchScore {
			reasons = append(reasons, fmt.Sprintf("match score %.0f below %.0f", score.Clamp100(a.MatchScore), p.MinMatchScore))
		}
		if a.CopyrightRisk == model.CopyrightHigh {
			reasons = append(reasons, "high copyright risk")
		}
		if a.License == model.LicenseRejected {
			reasons = append(reasons, "license rejected")
		}
	}
	return reasons
}

// Eligible reports whether an asset may be selected
func (p Policy) Eligible(a model.MediaAsset) bool {
	return len(p.Reasons(a)) == 0
}

// better orders assets with equal combined scores: higher match, then older,
// then lower id
func better(a, b model.MediaAsset) bool {
	if a.MatchScore != b.MatchScore {
		return a.MatchScore > b.MatchScore
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Best returns the eligible asset with the highest combined score
func (p Policy) Best(assets []model.MediaAsset) (model.MediaAsset, bool) {
	return Winner(assets, p.Combined, p.Eligible, better)
}

// Ineligible explains why one asset was passed over
type Ineligible struct {
	AssetID string   `json:"asset_id"`
	Reasons []string `json:"reasons"`
}

// Explain lists every ineligible asset with its reasons
func (p Policy) Explain(assets []model.MediaAsset) []Ineligible {
	var out []Ineligible
	for _, a := range assets {
		if reasons := p.Reasons(a); len(reasons) > 0 {
			out = append(out, Ineligible{AssetID: a.ID, Reasons: reasons})
		}
	}
	return out
}
