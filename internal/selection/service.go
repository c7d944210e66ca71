package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/store"
)

var (
	// ErrAssetRejected is returned when a rejected asset is force-selected
	ErrAssetRejected = errors.New("selection: asset is rejected")
	// ErrInvariantViolation marks more than one selected asset for an entity
	ErrInvariantViolation = errors.New("selection: more than one asset selected")
)

const defaultMirrorTimeout = 2 * time.Minute

// Mirror copies an asset's bytes to durable storage and returns the stored URL
type Mirror interface {
	Mirror(ctx context.Context, asset model.MediaAsset) (string, error)
}

// Outcome reports the result of an automatic selection
type Outcome struct {
	Entity     model.EntityRef   `json:"entity"`
	Selected   *model.MediaAsset `json:"selected,omitempty"`
	Changed    bool              `json:"changed"`
	Score      float64           `json:"combined_score,omitempty"`
	Ineligible []Ineligible      `json:"ineligible,omitempty"`
}

// Service keeps at most one selected asset per entity
type Service struct {
	store         store.AssetStore
	policy        Policy
	mirror        Mirror
	mirrorTimeout time.Duration
	log           *logger.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	mirrored map[string]bool // asset ids mirrored or in flight
}

// NewService creates a selection service. A nil mirror disables mirroring.
func NewService(s store.AssetStore, policy Policy, mirror Mirror, log *logger.Logger) *Service {
	return &Service{
		store:         s,
		policy:        policy,
		mirror:        mirror,
		mirrorTimeout: defaultMirrorTimeout,
		log:           logger.OrNop(log),
		mirrored:      make(map[string]bool),
	}
}

// Policy returns the selection policy in use
func (s *Service) Policy() Policy {
	return s.policy
}

// Select promotes the best eligible asset of an entity. When nothing is
// eligible the current selection is left untouched and the reasons returned.
func (s *Service) Select(ctx context.Context, ref model.EntityRef) (*Outcome, error) {
	out := &Outcome{Entity: ref}

	err := s.store.WithEntityLock(ctx, ref, func(tx store.AssetTx) error {
		assets, err := tx.Assets(ctx)
		if err != nil {
			return err
		}
		out.Ineligible = s.policy.Explain(assets)

		winner, ok := s.policy.Best(assets)
		if !ok {
			return nil
		}
		out.Changed = !selectedOnly(assets, winner.ID)
		if out.Changed {
			if err := tx.SelectOnly(ctx, winner.ID); err != nil {
				return err
			}
		}
		winner.Selected = true
		out.Selected = &winner
		out.Score = s.policy.Combined(winner)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", ref, err)
	}

	if out.Selected == nil {
		s.log.Info("no eligible asset", "entity", ref.String(), "candidates", len(out.Ineligible))
		return out, nil
	}
	if out.Changed {
		s.log.Info("asset selected", "entity", ref.String(), "asset_id", out.Selected.ID, "score", out.Score)
	}
	s.mirrorAsync(ctx, *out.Selected)
	return out, nil
}

// selectedOnly reports whether id is already the sole selected asset
func selectedOnly(assets []model.MediaAsset, id string) bool {
	for _, a := range assets {
		if a.Selected != (a.ID == id) {
			return false
		}
	}
	return true
}

// ForceSelect promotes an asset regardless of its scores. Rejected assets are refused.
func (s *Service) ForceSelect(ctx context.Context, assetID string) (*model.MediaAsset, error) {
	a, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	var selected model.MediaAsset
	err = s.store.WithEntityLock(ctx, a.Entity, func(tx store.AssetTx) error {
		assets, err := tx.Assets(ctx)
		if err != nil {
			return err
		}
		for _, candidate := range assets {
			if candidate.ID != assetID {
				continue
			}
			if candidate.Status == model.AssetRejected {
				return fmt.Errorf("asset %s: %w", assetID, ErrAssetRejected)
			}
			selected = candidate
			selected.Selected = true
			return tx.SelectOnly(ctx, assetID)
		}
		return fmt.Errorf("asset %s: %w", assetID, store.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("asset force-selected", "entity", a.Entity.String(), "asset_id", assetID)
	s.mirrorAsync(ctx, selected)
	return &selected, nil
}

// Reject marks an asset rejected. A rejected selected asset leaves the entity
// without a selection; no replacement is promoted.
func (s *Service) Reject(ctx context.Context, assetID, reason string) error {
	a, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	err = s.store.WithEntityLock(ctx, a.Entity, func(tx store.AssetTx) error {
		return tx.Reject(ctx, assetID, reason)
	})
	if err != nil {
		return fmt.Errorf("reject asset %s: %w", assetID, err)
	}
	s.log.Info("asset rejected", "entity", a.Entity.String(), "asset_id", assetID, "reason", reason, "was_selected", a.Selected)
	return nil
}

// Selected returns the selected asset of an entity, or nil when none is.
// Several selected assets are repaired to the best of them under the entity lock.
func (s *Service) Selected(ctx context.Context, ref model.EntityRef) (*model.MediaAsset, error) {
	assets, err := s.store.ListAssets(ctx, ref)
	if err != nil {
		return nil, err
	}
	selected := selectedAssets(assets)
	switch len(selected) {
	case 0:
		return nil, nil
	case 1:
		return &selected[0], nil
	}

	var kept *model.MediaAsset
	err = s.store.WithEntityLock(ctx, ref, func(tx store.AssetTx) error {
		current, err := tx.Assets(ctx)
		if err != nil {
			return err
		}
		selected := selectedAssets(current)
		switch {
		case len(selected) == 0:
			return nil
		case len(selected) == 1 && selected[0].Status != model.AssetRejected:
			kept = &selected[0]
			return nil
		}

		winner, ok := Winner(selected, s.policy.Combined,
			func(a model.MediaAsset) bool { return a.Status != model.AssetRejected },
			better)
		if !ok {
			s.log.Error("selection invariant violated", "entity", ref.String(), "selected", len(selected), "keeping", "none", "error", ErrInvariantViolation)
			return tx.ClearSelection(ctx)
		}
		s.log.Error("selection invariant violated", "entity", ref.String(), "selected", len(selected), "keeping", winner.ID, "error", ErrInvariantViolation)
		if err := tx.SelectOnly(ctx, winner.ID); err != nil {
			return err
		}
		kept = &winner
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repair selection of %s: %w", ref, err)
	}
	return kept, nil
}

func selectedAssets(assets []model.MediaAsset) []model.MediaAsset {
	var selected []model.MediaAsset
	for _, a := range assets {
		if a.Selected {
			selected = append(selected, a)
		}
	}
	return selected
}

// mirrorAsync copies a newly selected asset to durable storage in the
// background. Failures are logged and never undo the selection.
func (s *Service) mirrorAsync(ctx context.Context, a model.MediaAsset) {
	if s.mirror == nil || a.StorageURL != "" {
		return
	}
	s.mu.Lock()
	if s.mirrored[a.ID] {
		s.mu.Unlock()
		return
	}
	s.mirrored[a.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mirrorTimeout)
		defer cancel()

		url, err := s.mirror.Mirror(ctx, a)
		if err == nil {
			err = s.store.SetStorageURL(ctx, a.ID, url)
		}
		if err != nil {
			s.mu.Lock()
			delete(s.mirrored, a.ID)
			s.mu.Unlock()
			s.log.Warn("asset mirror failed", "asset_id", a.ID, "source_url", a.SourceURL, "error", err)
			return
		}
		s.log.Info("asset mirrored", "asset_id", a.ID, "storage_url", url)
	}()
}

// Wait blocks until background mirrors finish
func (s *Service) Wait() {
	s.wg.Wait()
}
