package media

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
)

// AssetStore is the persistence used by candidate scoring
type AssetStore interface {
	ListAssets(ctx context.Context, ref model.EntityRef) ([]model.MediaAsset, error)
	UpdateScores(ctx context.Context, id string, scores model.AssetScores) error
}

// ScoreReport summarizes one scoring pass
type ScoreReport struct {
	Entity  model.EntityRef   `json:"entity"`
	Scored  int               `json:"scored"`
	Skipped int               `json:"skipped"`
	Failed  int               `json:"failed"`
	Errors  map[string]string `json:"errors,omitempty"` // Asset id to error
}

// Scorer verifies the candidates of an entity concurrently
type Scorer struct {
	store    AssetStore
	verifier Verifier
	workers  int
	log      *logger.Logger
}

// NewScorer creates a scorer running at most workers verifications at once
func NewScorer(s AssetStore, v Verifier, workers int, log *logger.Logger) *Scorer {
	if workers <= 0 {
		workers = 4
	}
	return &Scorer{store: s, verifier: v, workers: workers, log: logger.OrNop(log)}
}

// ScoreCandidates verifies every unscored candidate of entity. With rescore
// set, already scored assets are verified again. Rejected assets are never
// sent for verification. A failing candidate is reported and does not stop
// the others.
func (s *Scorer) ScoreCandidates(ctx context.Context, entity model.Entity, rescore bool) (*ScoreReport, error) {
	ref := entity.Ref()
	assets, err := s.store.ListAssets(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	report := &ScoreReport{Entity: ref, Errors: make(map[string]string)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, a := range assets {
		switch {
		case a.Status == model.AssetRejected:
			report.Skipped++
			continue
		case a.Status == model.AssetScored && !rescore:
			report.Skipped++
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores, err := s.verifier.Verify(gctx, entity, a)
			if err == nil {
				err = s.store.UpdateScores(gctx, a.ID, scores)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors[a.ID] = err.Error()
				s.log.Warn("asset verification failed", "asset_id", a.ID, "source_url", a.SourceURL, "error", err)
				return nil
			}
			report.Scored++
			s.log.Debug("asset scored",
				"asset_id", a.ID,
				"match", scores.MatchScore,
				"quality", scores.QualityScore,
				"copyright", scores.CopyrightRisk,
				"license", scores.License,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.log.Info("candidates scored",
		"entity", ref.String(),
		"scored", report.Scored,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}
