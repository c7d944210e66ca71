// Package media verifies candidate images and mirrors selected ones to
// durable storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/provenance/internal/llm"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/score"
)

var (
	// ErrInference is returned when the provider call fails
	ErrInference = errors.New("media: inference failed")
	// ErrUnparseable is returned when the provider reply holds no verdict
	ErrUnparseable = errors.New("media: unparseable verdict")
)

const verifySystemPrompt = `You vet candidate images for a music archive. Given a subject and one image reference, judge:
- "match_score": 0-100, how likely the image depicts this subject (the person, venue, label artwork, device or event named).
- "quality_score": 0-100, how usable the image is as a portrait or representative picture, judged from the URL, alt text and page context.
- "copyright_risk": "low", "medium" or "high".
- "license_status": "safe" when the source clearly licenses reuse (press kits, Creative Commons, the subject's own site), "rejected" when reuse is clearly forbidden, otherwise "unknown".
Reply with JSON only: {"match_score":0,"quality_score":0,"copyright_risk":"medium","license_status":"unknown"}`

// Verifier asks the inference provider for a verdict on one candidate
type Verifier interface {
	Verify(ctx context.Context, entity model.Entity, asset model.MediaAsset) (model.AssetScores, error)
}

// LLMVerifier is a Verifier backed by an inference client
type LLMVerifier struct {
	client *llm.Client
}

// NewLLMVerifier creates a verifier
func NewLLMVerifier(client *llm.Client) *LLMVerifier {
	return &LLMVerifier{client: client}
}

type verdict struct {
	MatchScore    float64 `json:"match_score"`
	QualityScore  float64 `json:"quality_score"`
	CopyrightRisk string  `json:"copyright_risk"`
	LicenseStatus string  `json:"license_status"`
}

// Verify scores one candidate. Scores are clamped to [0,100] and unknown
// labels fall back to medium risk and unknown license.
func (v *LLMVerifier) Verify(ctx context.Context, entity model.Entity, asset model.MediaAsset) (model.AssetScores, error) {
	req := llm.CompletionRequest{
		System: verifySystemPrompt,
		Prompt: buildVerifyPrompt(entity, asset),
		JSON:   true,
	}

	var reply verdict
	if _, err := v.client.CompleteJSON(ctx, req, &reply); err != nil {
		if errors.Is(err, llm.ErrNoJSON) {
			return model.AssetScores{}, fmt.Errorf("%w: %w", ErrUnparseable, err)
		}
		return model.AssetScores{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return reply.scores(), nil
}

func (v verdict) scores() model.AssetScores {
	return model.AssetScores{
		MatchScore:    score.Clamp100(v.MatchScore),
		QualityScore:  score.Clamp100(v.QualityScore),
		CopyrightRisk: model.ParseCopyrightRisk(v.CopyrightRisk),
		License:       model.ParseLicenseStatus(v.LicenseStatus),
	}
}

func buildVerifyPrompt(entity model.Entity, asset model.MediaAsset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s (%s)\n", entity.Name, entity.Kind)
	fmt.Fprintf(&b, "Image URL: %s\n", asset.SourceURL)
	if alt := strings.TrimSpace(asset.AltText); alt != "" {
		fmt.Fprintf(&b, "Alt text: %s\n", alt)
	}
	return b.String()
}
