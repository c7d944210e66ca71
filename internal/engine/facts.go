package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/present"
	"github.com/ppiankov/provenance/internal/score"
	"github.com/ppiankov/provenance/internal/validate"
	"github.com/ppiankov/provenance/internal/worker"
)

// GetFacts resolves every predicate with claims about an entity
func (e *Engine) GetFacts(ctx context.Context, entityRef string) ([]model.FactResult, error) {
	entity, err := e.Entity(ctx, entityRef)
	if err != nil {
		return nil, err
	}
	return e.resolver.Facts(ctx, entity.ID)
}

// GetFact resolves one predicate of an entity
func (e *Engine) GetFact(ctx context.Context, entityRef string, predicate model.ClaimType) (model.FactResult, error) {
	if !predicate.IsValid() {
		return nil, fmt.Errorf("%w: unknown predicate %q", ErrInvalidInput, predicate)
	}
	entity, err := e.Entity(ctx, entityRef)
	if err != nil {
		return nil, err
	}
	return e.resolver.Resolve(ctx, entity.ID, predicate)
}

// DisplayFacts resolves an entity's facts and renders them for display.
// A nil toggle shows evidence.
func (e *Engine) DisplayFacts(ctx context.Context, entityRef string, toggle *present.EvidenceToggle) (*present.EntityView, error) {
	entity, err := e.Entity(ctx, entityRef)
	if err != nil {
		return nil, err
	}
	facts, err := e.resolver.Facts(ctx, entity.ID)
	if err != nil {
		return nil, err
	}
	view := present.PresentEntity(entity.ID, facts, toggle)
	return &view, nil
}

// Reconcile resolves every predicate of an entity and persists claim statuses
func (e *Engine) Reconcile(ctx context.Context, entityRef string) ([]model.FactResult, error) {
	entity, err := e.Entity(ctx, entityRef)
	if err != nil {
		return nil, err
	}
	return e.resolver.ReconcileEntity(ctx, entity.ID)
}

// ReconcileReport summarizes a reconcile pass over all entities
type ReconcileReport struct {
	Entities    int               `json:"entities"`
	Facts       int               `json:"facts"`
	Verified    int               `json:"verified"`
	Conflicting int               `json:"conflicting"`
	Unverified  int               `json:"unverified"`
	Failed      int               `json:"failed"`
	Errors      map[string]string `json:"errors,omitempty"` // Entity id to error
}

type reconcileJob struct {
	engine *Engine
	entity model.Entity
}

type reconcileResult struct {
	entityID string
	facts    []model.FactResult
	err      error
}

func (r *reconcileResult) GetError() error { return r.err }

func (j *reconcileJob) Execute(ctx context.Context) worker.Result {
	facts, err := j.engine.resolver.ReconcileEntity(ctx, j.entity.ID)
	return &reconcileResult{entityID: j.entity.ID, facts: facts, err: err}
}

// ReconcileAll reconciles every entity on the worker pool
func (e *Engine) ReconcileAll(ctx context.Context) (*ReconcileReport, error) {
	entities, err := e.store.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	jobs := make([]worker.Job, len(entities))
	for i, entity := range entities {
		jobs[i] = &reconcileJob{engine: e, entity: entity}
	}

	report := &ReconcileReport{Entities: len(entities), Errors: make(map[string]string)}
	for _, res := range worker.Run(ctx, e.cfg.Concurrency.Workers, jobs) {
		r := res.(*reconcileResult)
		if r.err != nil {
			report.Failed++
			report.Errors[r.entityID] = r.err.Error()
			e.log.Warn("reconcile failed", "entity_id", r.entityID, "error", r.err)
			continue
		}
		for _, f := range r.facts {
			report.Facts++
			switch fact := f.(type) {
			case model.ValidFact:
				if fact.Status == model.FactStatusVerified {
					report.Verified++
				} else {
					report.Unverified++
				}
			case model.ConflictingFact:
				report.Conflicting++
			default:
				report.Unverified++
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	e.log.Info("reconcile complete",
		"entities", report.Entities,
		"facts", report.Facts,
		"verified", report.Verified,
		"conflicting", report.Conflicting,
		"failed", report.Failed,
	)
	return report, nil
}

// RejectClaim excludes a claim from resolution
func (e *Engine) RejectClaim(ctx context.Context, claimID, reason string) error {
	claim, err := e.ledger.Claim(ctx, claimID)
	if err != nil {
		return err
	}
	if err := e.ledger.Reject(ctx, claimID, reason); err != nil {
		return err
	}
	e.resolver.Invalidate(ctx, claim.EntityID)
	return nil
}

// ReinstateClaim returns a rejected claim to resolution
func (e *Engine) ReinstateClaim(ctx context.Context, claimID string) error {
	claim, err := e.ledger.Claim(ctx, claimID)
	if err != nil {
		return err
	}
	if err := e.ledger.Reinstate(ctx, claimID); err != nil {
		return err
	}
	e.resolver.Invalidate(ctx, claim.EntityID)
	return nil
}

// Claims lists an entity's claims with their sources, rejected ones included
func (e *Engine) Claims(ctx context.Context, entityRef string) ([]model.ClaimWithSources, error) {
	entity, err := e.Entity(ctx, entityRef)
	if err != nil {
		return nil, err
	}
	return e.ledger.ClaimsForEntity(ctx, entity.ID)
}

// EntityReport builds the coverage report of an entity. It never changes
// resolution or selection state beyond read-time selection repair.
func (e *Engine) EntityReport(ctx context.Context, entityRef string) (*model.EntityReport, error) {
	entity, err := e.Entity(ctx, entityRef)
	if err != nil {
		return nil, err
	}

	facts, err := e.resolver.Facts(ctx, entity.ID)
	if err != nil {
		return nil, err
	}
	claims, err := e.ledger.ClaimsForEntity(ctx, entity.ID)
	if err != nil {
		return nil, err
	}

	in := score.Input{EntityID: entity.ID, Facts: facts}
	seen := make(map[string]bool)
	for _, c := range claims {
		if c.Claim.Status == model.ClaimRejected {
			continue
		}
		in.Claims++
		for _, s := range c.Sources {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			in.Sources = append(in.Sources, score.SourceInfo{Source: s, Tier: e.authority.Classify(s.URL)})
		}
	}
	sort.Slice(in.Sources, func(i, j int) bool { return in.Sources[i].Source.ID < in.Sources[j].Source.ID })

	ref := entity.Ref()
	in.Assets, err = e.store.ListAssets(ctx, ref)
	if err != nil {
		return nil, err
	}
	policy := e.selection.Policy()
	for _, a := range in.Assets {
		if policy.Eligible(a) {
			in.Eligible++
		}
	}
	in.Selected, err = e.selection.Selected(ctx, ref)
	if err != nil {
		return nil, err
	}

	report := e.reports.Report(in)
	return &report, nil
}

// ValidateSources re-checks every source URL and updates source quality.
// Cached facts are dropped since their evidence ordering may change.
func (e *Engine) ValidateSources(ctx context.Context) (*validate.RescoreReport, error) {
	report, err := validate.NewRescorer(e.validator, e.ledger, e.log).Run(ctx)
	if err != nil {
		return report, err
	}

	entities, err := e.store.ListEntities(ctx)
	if err != nil {
		return report, fmt.Errorf("list entities: %w", err)
	}
	for _, entity := range entities {
		e.resolver.Invalidate(ctx, entity.ID)
	}
	return report, nil
}
