package validate

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
)

// Quality penalties applied on top of the tier quality
const (
	deadPenalty       = 0.25
	staleFactor       = 0.9
	veryStaleFactor   = 0.75
	unreachableFactor = 0.8
)

// SourceQuality derives a source quality in [0,1] from a link check
func (a *AuthorityClassifier) SourceQuality(check model.LinkCheck) float64 {
	tier := check.Authority
	if tier == model.TierUnknown {
		tier = a.Classify(check.URL)
	}
	q := a.TierQuality(tier)

	switch {
	case check.IsDead:
		q *= deadPenalty
	case !check.IsAccessible:
		q *= unreachableFactor
	}
	switch {
	case check.IsVeryStale:
		q *= veryStaleFactor
	case check.IsStale:
		q *= staleFactor
	}

	return math.Round(math.Max(0, math.Min(1, q))*1000) / 1000
}

// SourceLedger is the part of the ledger a rescoring pass needs
type SourceLedger interface {
	AllSources(ctx context.Context) ([]model.Source, error)
	UpdateQuality(ctx context.Context, sourceID string, quality float64) error
}

// RescoreReport summarizes a rescoring pass
type RescoreReport struct {
	Sources int               `json:"sources"`
	URLs    int               `json:"urls"`
	Updated int               `json:"updated"`
	Dead    int               `json:"dead"`
	Stale   int               `json:"stale"`
	Checks  []model.LinkCheck `json:"checks"`
}

// Rescorer re-checks every stored source URL and updates source quality
type Rescorer struct {
	validator *Validator
	ledger    SourceLedger
	log       *logger.Logger
}

// NewRescorer creates a rescoring pass over a ledger
func NewRescorer(v *Validator, l SourceLedger, log *logger.Logger) *Rescorer {
	return &Rescorer{validator: v, ledger: l, log: logger.OrNop(log)}
}

// Run checks each distinct URL once and writes the derived quality to every
// source citing it. Quote and URL are never modified.
func (r *Rescorer) Run(ctx context.Context) (*RescoreReport, error) {
	sources, err := r.ledger.AllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	byURL := make(map[string][]model.Source)
	for _, s := range sources {
		byURL[s.URL] = append(byURL[s.URL], s)
	}
	urls := make([]string, 0, len(byURL))
	for u := range byURL {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	report := &RescoreReport{Sources: len(sources), URLs: len(urls)}
	report.Checks = r.validator.Check(ctx, urls)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, check := range report.Checks {
		if check.IsDead {
			report.Dead++
		}
		if check.IsStale {
			report.Stale++
		}
		quality := r.validator.authority.SourceQuality(check)
		for _, s := range byURL[check.URL] {
			if s.Quality == quality {
				continue
			}
			if err := r.ledger.UpdateQuality(ctx, s.ID, quality); err != nil {
				return report, fmt.Errorf("update source %s: %w", s.ID, err)
			}
			report.Updated++
		}
	}

	r.log.Info("sources rescored",
		"sources", report.Sources,
		"urls", report.URLs,
		"updated", report.Updated,
		"dead", report.Dead)
	return report, nil
}
