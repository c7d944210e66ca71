// Package resolve turns the claims about an entity into fact results.
//
// Agreeing claims become a ValidFact backed by the evidence of one stored
// source. Disagreeing claims become a ConflictingFact that lists every value
// without picking a winner. Free-text predicates never conflict: the best
// supported statement is reported. Predicates without usable claims are unverified.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/provenance/internal/cache"
	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/score"
	"github.com/ppiankov/provenance/internal/selection"
)

// DefaultVerifyThreshold is the confidence a ValidFact needs to be verified
const DefaultVerifyThreshold = 0.7

// ClaimLedger is the read and status surface the resolver needs
type ClaimLedger interface {
	ClaimsFor(ctx context.Context, entityID string, predicate model.ClaimType) ([]model.ClaimWithSources, error)
	ClaimsForEntity(ctx context.Context, entityID string) ([]model.ClaimWithSources, error)
	SetStatus(ctx context.Context, status model.ClaimStatus, claimIDs ...string) error
}

// Options configures resolution
type Options struct {
	VerifyThreshold float64
	Aggregation     score.Aggregation
}

// Resolver reconciles claims into fact results
type Resolver struct {
	ledger ClaimLedger
	facts  *cache.FactCache
	opts   Options
	log    *logger.Logger
}

// New creates a resolver. A nil fact cache disables caching.
func New(l ClaimLedger, facts *cache.FactCache, opts Options, log *logger.Logger) *Resolver {
	if opts.VerifyThreshold <= 0 || opts.VerifyThreshold > 1 {
		opts.VerifyThreshold = DefaultVerifyThreshold
	}
	if opts.Aggregation == "" {
		opts.Aggregation = score.AggregateRepresentative
	}
	if facts == nil {
		facts = cache.NewFactCache(nil, 0, log)
	}
	return &Resolver{ledger: l, facts: facts, opts: opts, log: logger.OrNop(log)}
}

// candidate is one usable claim with its normalized value and best source
type candidate struct {
	claim   model.ClaimWithSources
	value   value
	best    model.Source
	quality float64
}

// group collects the candidates sharing one normalized value
type group struct {
	key        string
	candidates []candidate
}

// Resolve computes the fact result for one predicate of an entity
func (r *Resolver) Resolve(ctx context.Context, entityID string, predicate model.ClaimType) (model.FactResult, error) {
	claims, err := r.ledger.ClaimsFor(ctx, entityID, predicate)
	if err != nil {
		return nil, fmt.Errorf("resolve %s/%s: %w", entityID, predicate, err)
	}
	result, _ := r.resolveClaims(entityID, predicate, claims)
	return result, nil
}

// resolveClaims resolves one predicate from its claims and returns the ids of
// the claims that took part
func (r *Resolver) resolveClaims(entityID string, predicate model.ClaimType, claims []model.ClaimWithSources) (model.FactResult, []string) {
	var groups []*group
	byKey := make(map[string]*group)
	var ids []string

	for _, c := range claims {
		if c.Claim.Status == model.ClaimRejected {
			continue
		}
		if len(c.Sources) == 0 {
			r.log.Warn("ignoring claim without sources", "claim_id", c.Claim.ID, "entity_id", entityID, "predicate", predicate)
			continue
		}
		cand := candidate{claim: c, value: normalizeClaim(c.Claim), best: bestSource(c.Sources)}
		cand.quality = c.MeanQuality()

		g, ok := byKey[cand.value.key]
		if !ok {
			g = &group{key: cand.value.key}
			byKey[g.key] = g
			groups = append(groups, g)
		}
		g.candidates = append(g.candidates, cand)
		ids = append(ids, c.Claim.ID)
	}

	switch len(groups) {
	case 0:
		return model.UnverifiedFact{Type: predicate, Text: unverifiedText(predicate)}, nil
	case 1:
		return r.validFact(predicate, groups[0]), ids
	}
	if predicate.Cumulative() {
		return r.strongestStatement(predicate, groups)
	}
	return conflictingFact(predicate, groups), ids
}

func (r *Resolver) validFact(predicate model.ClaimType, g *group) model.ValidFact {
	rep, _ := selection.Winner(g.candidates,
		func(c candidate) float64 { return score.Clamp01(c.claim.Claim.Confidence) * c.quality },
		nil,
		func(a, b candidate) bool {
			if !a.best.FetchedAt.Equal(b.best.FetchedAt) {
				return a.best.FetchedAt.After(b.best.FetchedAt)
			}
			return a.claim.Claim.ID < b.claim.Claim.ID
		},
	)

	var contributions []score.Contribution
	for _, c := range g.candidates {
		for _, s := range c.claim.Sources {
			contributions = append(contributions, score.Contribution{Confidence: c.claim.Claim.Confidence, Domain: s.Name()})
		}
	}
	confidence := r.opts.Aggregation.Aggregate(rep.claim.Claim.Confidence, contributions)

	status := model.FactStatusUnverified
	if confidence >= r.opts.VerifyThreshold {
		status = model.FactStatusVerified
	}

	return model.ValidFact{
		Type:       predicate,
		Value:      rep.value.display,
		Confidence: confidence,
		Status:     status,
		Evidence:   rep.best.Quote,
		SourceName: rep.best.Name(),
		SourceURL:  rep.best.URL,
		FetchedAt:  rep.best.FetchedAt,
		ClaimID:    rep.claim.Claim.ID,
		SourceID:   rep.best.ID,
		Supporting: len(g.candidates),
	}
}

// strongestStatement reports the best supported of several free-text
// statements. Only the claims behind that statement take part.
func (r *Resolver) strongestStatement(predicate model.ClaimType, groups []*group) (model.FactResult, []string) {
	facts := make([]model.ValidFact, len(groups))
	order := make([]int, len(groups))
	for i, g := range groups {
		facts[i] = r.validFact(predicate, g)
		order[i] = i
	}
	best, _ := selection.Winner(order,
		func(i int) float64 { return facts[i].Confidence },
		nil,
		func(a, b int) bool {
			if facts[a].Supporting != facts[b].Supporting {
				return facts[a].Supporting > facts[b].Supporting
			}
			return groups[a].key < groups[b].key
		},
	)

	ids := make([]string, 0, len(groups[best].candidates))
	for _, c := range groups[best].candidates {
		ids = append(ids, c.claim.Claim.ID)
	}
	return facts[best], ids
}

func conflictingFact(predicate model.ClaimType, groups []*group) model.ConflictingFact {
	values := make([]model.ConflictValue, 0, len(groups))
	for _, g := range groups {
		// Best source across every claim holding this value
		owner, _ := selection.Winner(g.candidates,
			func(c candidate) float64 { return c.best.Quality },
			nil,
			func(a, b candidate) bool { return sourceBetter(a.best, b.best) },
		)
		values = append(values, model.ConflictValue{
			Value:      owner.value.display,
			SourceName: owner.best.Name(),
			SourceURL:  owner.best.URL,
			Quality:    owner.best.Quality,
			FetchedAt:  owner.best.FetchedAt,
		})
	}

	sort.SliceStable(values, func(i, j int) bool {
		a, b := values[i], values[j]
		if a.Quality != b.Quality {
			return a.Quality > b.Quality
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.After(b.FetchedAt)
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.SourceURL < b.SourceURL
	})

	return model.ConflictingFact{
		Type:   predicate,
		Text:   fmt.Sprintf("Sources disagree on %s.", predicateLabel(predicate)),
		Values: values,
	}
}

// bestSource picks the highest quality source, then the most recent, then the lowest id
func bestSource(sources []model.Source) model.Source {
	best, _ := selection.Winner(sources,
		func(s model.Source) float64 { return s.Quality },
		nil,
		sourceBetter,
	)
	return best
}

func sourceBetter(a, b model.Source) bool {
	if !a.FetchedAt.Equal(b.FetchedAt) {
		return a.FetchedAt.After(b.FetchedAt)
	}
	return a.ID < b.ID
}

func predicateLabel(p model.ClaimType) string {
	return strings.ReplaceAll(string(p), "_", " ")
}

func unverifiedText(p model.ClaimType) string {
	return fmt.Sprintf("No sourced claims about %s.", predicateLabel(p))
}

// Reconcile resolves one predicate and persists the matching claim statuses.
// Running it again without new claims changes nothing.
func (r *Resolver) Reconcile(ctx context.Context, entityID string, predicate model.ClaimType) (model.FactResult, error) {
	claims, err := r.ledger.ClaimsFor(ctx, entityID, predicate)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s/%s: %w", entityID, predicate, err)
	}
	result, err := r.reconcileClaims(ctx, entityID, predicate, claims)
	if err != nil {
		return nil, err
	}
	r.facts.Invalidate(ctx, entityID)
	return result, nil
}

// ReconcileEntity reconciles every predicate of an entity that has claims
func (r *Resolver) ReconcileEntity(ctx context.Context, entityID string) ([]model.FactResult, error) {
	all, err := r.ledger.ClaimsForEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", entityID, err)
	}

	var results []model.FactResult
	for _, p := range model.ClaimTypes {
		claims := claimsOf(all, p)
		if len(claims) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := r.reconcileClaims(ctx, entityID, p, claims)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	r.facts.Set(ctx, entityID, results)
	return results, nil
}

func (r *Resolver) reconcileClaims(ctx context.Context, entityID string, predicate model.ClaimType, claims []model.ClaimWithSources) (model.FactResult, error) {
	result, ids := r.resolveClaims(entityID, predicate, claims)

	target := model.ClaimUnverified
	switch f := result.(type) {
	case model.ValidFact:
		if f.Status == model.FactStatusVerified {
			target = model.ClaimVerified
		}
	case model.ConflictingFact:
		target = model.ClaimConflicting
	}

	current := make(map[string]model.ClaimStatus, len(claims))
	for _, c := range claims {
		current[c.Claim.ID] = c.Claim.Status
	}
	var changed []string
	for _, id := range ids {
		if current[id] != target {
			changed = append(changed, id)
		}
	}
	if len(changed) == 0 {
		return result, nil
	}

	if err := r.ledger.SetStatus(ctx, target, changed...); err != nil {
		return nil, fmt.Errorf("reconcile %s/%s: %w", entityID, predicate, err)
	}
	r.log.Debug("claim statuses updated", "entity_id", entityID, "predicate", predicate, "status", target, "count", len(changed))
	return result, nil
}

// Facts resolves every predicate of an entity that has live claims, in
// enumeration order. Results are served from the fact cache when present.
func (r *Resolver) Facts(ctx context.Context, entityID string) ([]model.FactResult, error) {
	if cached, ok := r.facts.Get(ctx, entityID); ok {
		return cached, nil
	}

	all, err := r.ledger.ClaimsForEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("facts %s: %w", entityID, err)
	}

	results := make([]model.FactResult, 0)
	for _, p := range model.ClaimTypes {
		claims := claimsOf(all, p)
		if len(claims) == 0 {
			continue
		}
		result, _ := r.resolveClaims(entityID, p, claims)
		results = append(results, result)
	}

	r.facts.Set(ctx, entityID, results)
	return results, nil
}

// Invalidate drops cached facts after the claims or sources of an entity change
func (r *Resolver) Invalidate(ctx context.Context, entityID string) {
	r.facts.Invalidate(ctx, entityID)
}

// claimsOf returns the claims of one predicate when at least one is not rejected
func claimsOf(all []model.ClaimWithSources, p model.ClaimType) []model.ClaimWithSources {
	var out []model.ClaimWithSources
	live := false
	for _, c := range all {
		if c.Claim.Type != p {
			continue
		}
		out = append(out, c)
		if c.Claim.Status != model.ClaimRejected {
			live = true
		}
	}
	if !live {
		return nil
	}
	return out
}
