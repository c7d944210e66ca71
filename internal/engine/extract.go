package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/provenance/internal/extract"
	"github.com/ppiankov/provenance/internal/worker"
)

// ExtractOptions scopes a batch extraction
type ExtractOptions struct {
	Entity string // Id or slug; empty extracts for every entity
	Resume bool   // Skip document/entity pairs completed by an earlier run
}

const keySep = "|"

// ExtractDocument extracts claims about one entity from one stored document
func (e *Engine) ExtractDocument(ctx context.Context, documentID, entityRef string) (*extract.Result, error) {
	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	entity, err := e.Entity(ctx, entityRef)
	if err != nil {
		return nil, err
	}

	result, err := e.extractor.Extract(ctx, *doc, *entity)
	if err != nil {
		return result, err
	}
	if len(result.Claims) > 0 {
		e.resolver.Invalidate(ctx, entity.ID)
	}
	return result, nil
}

// Extract runs extraction over every stored document and the entities it
// names, one pair at a time. Each pair commits on its own; a cancelled ctx
// stops between pairs and keeps what was committed.
func (e *Engine) Extract(ctx context.Context, opts ExtractOptions) (*worker.BatchReport, error) {
	var only string
	if opts.Entity != "" {
		entity, err := e.Entity(ctx, opts.Entity)
		if err != nil {
			return nil, err
		}
		only = entity.ID
	}

	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var keys []string
	for _, d := range docs {
		for _, entityID := range d.EntityIDs {
			if only != "" && entityID != only {
				continue
			}
			keys = append(keys, d.ID+keySep+entityID)
		}
	}

	runner := e.batchRunner()
	report, err := runner.Run(ctx, keys, opts.Resume, e.extractStep)
	if err != nil {
		return report, err
	}
	if report.Failed == 0 {
		if err := runner.ClearCheckpoint(); err != nil {
			e.log.Warn("clear checkpoint", "error", err)
		}
	}
	return report, nil
}

func (e *Engine) extractStep(ctx context.Context, key string) (worker.StepOutcome, error) {
	documentID, entityID, ok := strings.Cut(key, keySep)
	if !ok {
		return worker.StepSkipped, fmt.Errorf("%w: batch key %q", ErrInvalidInput, key)
	}

	result, err := e.ExtractDocument(ctx, documentID, entityID)
	switch {
	case errors.Is(err, extract.ErrInsufficientContent):
		e.log.Debug("document too short to extract", "document_id", documentID)
		return worker.StepSkipped, nil
	case err != nil:
		return worker.StepDone, err
	case result.Skipped:
		return worker.StepSkipped, nil
	}
	return worker.StepDone, nil
}
