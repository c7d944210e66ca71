package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/provenance/internal/media"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/selection"
	"github.com/ppiankov/provenance/internal/util"
)

// Candidate is a media asset with its selection standing
type Candidate struct {
	model.MediaAsset
	Combined float64  `json:"combined_score"`
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"ineligible_reasons,omitempty"`
}

// ListCandidates returns every asset of an entity, oldest first
func (e *Engine) ListCandidates(ctx context.Context, ref model.EntityRef) ([]Candidate, error) {
	assets, err := e.store.ListAssets(ctx, ref)
	if err != nil {
		return nil, err
	}
	policy := e.selection.Policy()
	out := make([]Candidate, len(assets))
	for i, a := range assets {
		reasons := policy.Reasons(a)
		out[i] = Candidate{
			MediaAsset: a,
			Combined:   policy.Combined(a),
			Eligible:   len(reasons) == 0,
			Reasons:    reasons,
		}
	}
	return out, nil
}

// GetSelectedAsset returns the selected asset of an entity, or nil when none is
func (e *Engine) GetSelectedAsset(ctx context.Context, ref model.EntityRef) (*model.MediaAsset, error) {
	return e.selection.Selected(ctx, ref)
}

// SelectBest promotes the best eligible candidate of an entity
func (e *Engine) SelectBest(ctx context.Context, ref model.EntityRef) (*selection.Outcome, error) {
	return e.selection.Select(ctx, ref)
}

// SelectAsset promotes one asset as a human override
func (e *Engine) SelectAsset(ctx context.Context, assetID string) (*model.MediaAsset, error) {
	return e.selection.ForceSelect(ctx, assetID)
}

// RejectAsset rejects an asset; a selected asset is unselected and not replaced
func (e *Engine) RejectAsset(ctx context.Context, assetID, reason string) error {
	return e.selection.Reject(ctx, assetID, reason)
}

// AddCandidate registers an image URL as a candidate of an entity
func (e *Engine) AddCandidate(ctx context.Context, ref model.EntityRef, sourceURL, altText string) (*model.MediaAsset, error) {
	parsed, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: not an http(s) URL: %q", ErrInvalidInput, sourceURL)
	}

	a := &model.MediaAsset{
		ID:        util.NewID(),
		Entity:    ref,
		SourceURL: parsed.String(),
		AltText:   strings.TrimSpace(altText),
	}
	if err := e.store.AddAsset(ctx, a); err != nil {
		return nil, fmt.Errorf("add asset: %w", err)
	}
	return a, nil
}

// ScoreCandidates verifies the unscored candidates of an entity, or all
// non-rejected ones when rescore is set
func (e *Engine) ScoreCandidates(ctx context.Context, ref model.EntityRef, rescore bool) (*media.ScoreReport, error) {
	if e.scorer == nil {
		return nil, ErrInferenceDisabled
	}
	entity, err := e.store.GetEntity(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	return e.scorer.ScoreCandidates(ctx, *entity, rescore)
}
