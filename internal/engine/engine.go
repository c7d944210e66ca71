// Package engine wires the extractor, ledger, resolver and selection service
// into the query surface used by the CLI and the HTTP API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/provenance/internal/cache"
	"github.com/ppiankov/provenance/internal/extract"
	"github.com/ppiankov/provenance/internal/ingest"
	"github.com/ppiankov/provenance/internal/ledger"
	"github.com/ppiankov/provenance/internal/llm"
	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/media"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/resolve"
	"github.com/ppiankov/provenance/internal/score"
	"github.com/ppiankov/provenance/internal/selection"
	"github.com/ppiankov/provenance/internal/storage"
	"github.com/ppiankov/provenance/internal/store"
	"github.com/ppiankov/provenance/internal/util"
	"github.com/ppiankov/provenance/internal/validate"
	"github.com/ppiankov/provenance/internal/worker"
)

var (
	// ErrInferenceDisabled is returned by operations that need an inference provider
	ErrInferenceDisabled = errors.New("engine: inference provider not configured")
	// ErrInvalidInput is returned for malformed requests
	ErrInvalidInput = errors.New("engine: invalid input")
)

// Deps are the collaborators of an Engine. Only Config and Store are required.
type Deps struct {
	Config    *model.Config
	Store     store.Store
	Cache     cache.Cache         // Nil disables fact caching
	LLM       *llm.Client         // Nil or disabled falls back to keyword extraction
	Fetcher   *ingest.Fetcher     // Nil builds one from Config
	Storage   storage.Storage     // Nil disables mirroring
	Validator *validate.Validator // Nil builds one from Config
}

// Engine is the query and command surface of the archive
type Engine struct {
	cfg       *model.Config
	store     store.Store
	cache     cache.Cache
	llm       *llm.Client
	ledger    *ledger.Ledger
	authority *validate.AuthorityClassifier
	validator *validate.Validator
	extractor *extract.Extractor
	inference bool // Extraction calls an inference provider
	resolver  *resolve.Resolver
	selection *selection.Service
	scorer    *media.Scorer
	ingester  *ingest.Ingester
	reports   *score.Scorer
	log       *logger.Logger
}

// New assembles an engine from its collaborators
func New(d Deps, log *logger.Logger) (*Engine, error) {
	if d.Config == nil || d.Store == nil {
		return nil, fmt.Errorf("%w: config and store are required", ErrInvalidInput)
	}
	log = logger.OrNop(log)
	cfg := d.Config

	aggregation, err := score.ParseAggregation(cfg.Resolver.Aggregation)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		store:   d.Store,
		cache:   d.Cache,
		llm:     d.LLM,
		reports: score.NewScorer(),
		log:     log,
	}
	if e.cache == nil {
		e.cache = cache.Nop{}
	}

	e.validator = d.Validator
	if e.validator == nil {
		e.validator = validate.NewValidator(validate.ValidatorOptions{
			Timeout:    cfg.HTTP.Timeout,
			MaxWorkers: cfg.Concurrency.Workers * 4,
			UserAgent:  cfg.HTTP.UserAgent,
			Authority:  &cfg.Authority,
			HTTPProxy:  cfg.HTTP.HTTPProxy,
			HTTPSProxy: cfg.HTTP.HTTPSProxy,
			NoProxy:    cfg.HTTP.NoProxy,
		})
	}
	e.authority = e.validator.Authority()

	e.ledger = ledger.New(d.Store, cfg.Extraction.MaxSnippetChars, log)

	var finder extract.Finder
	switch {
	case strings.EqualFold(cfg.Extraction.Finder, "keyword"):
		finder = extract.NewKeywordFinder()
	case d.LLM.IsEnabled():
		finder = extract.NewLLMFinder(d.LLM)
		e.inference = true
	default:
		log.Warn("no inference provider configured, using keyword extraction")
		finder = extract.NewKeywordFinder()
	}
	e.extractor = extract.NewExtractor(finder, e.ledger, e.authority, extract.Options{
		MinContentChars: cfg.Extraction.MinContentChars,
		MaxSnippetChars: cfg.Extraction.MaxSnippetChars,
	}, log)

	facts := cache.NewFactCache(e.cache, cfg.Cache.TTL, log)
	e.resolver = resolve.New(e.ledger, facts, resolve.Options{
		VerifyThreshold: cfg.Resolver.VerifyThreshold,
		Aggregation:     aggregation,
	}, log)

	fetcher := d.Fetcher
	if fetcher == nil {
		fetcher = ingest.NewFetcher(ingest.OptionsFromConfig(cfg), log)
	}
	e.ingester = ingest.NewIngester(fetcher, d.Store, log)

	var mirror selection.Mirror
	if cfg.Selection.Mirror && d.Storage != nil {
		mirror = media.NewMirror(fetcher, d.Storage, cfg.Storage.Prefix)
	}
	e.selection = selection.NewService(d.Store, selection.NewPolicy(cfg.Selection), mirror, log)

	if d.LLM.IsEnabled() {
		e.scorer = media.NewScorer(d.Store, media.NewLLMVerifier(d.LLM), cfg.Concurrency.Workers, log)
	}
	return e, nil
}

// Open builds every collaborator from cfg
func Open(ctx context.Context, cfg *model.Config, log *logger.Logger) (*Engine, error) {
	log = logger.OrNop(log)

	s, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	c, err := cache.New(ctx, cfg.Cache, log)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	client, err := llm.NewClient(llm.ConfigFromModel(cfg.LLM, cfg.HTTP), log)
	if err != nil {
		log.Warn("inference provider unavailable", "provider", cfg.LLM.Provider, "error", err)
		client = nil
	}

	var objects storage.Storage
	if cfg.Selection.Mirror {
		objects, err = storage.New(ctx, cfg.Storage)
		if err != nil {
			log.Warn("media storage unavailable, mirroring disabled", "driver", cfg.Storage.Driver, "error", err)
			objects = nil
		}
	}

	e, err := New(Deps{Config: cfg, Store: s, Cache: c, LLM: client, Storage: objects}, log)
	if err != nil {
		s.Close()
		return nil, err
	}
	return e, nil
}

// Close waits for background mirrors and releases the store and cache
func (e *Engine) Close() {
	e.selection.Wait()
	if closer, ok := e.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			e.log.Warn("close cache", "error", err)
		}
	}
	e.store.Close()
}

// Wait blocks until background mirrors finish
func (e *Engine) Wait() {
	e.selection.Wait()
}

// Config returns the runtime configuration
func (e *Engine) Config() *model.Config {
	return e.cfg
}

// InferenceEnabled reports whether an inference provider is configured
func (e *Engine) InferenceEnabled() bool {
	return e.llm.IsEnabled()
}

// Entity resolves an entity by id or slug
func (e *Engine) Entity(ctx context.Context, idOrSlug string) (*model.Entity, error) {
	return e.store.FindEntity(ctx, strings.TrimSpace(idOrSlug))
}

// EntityRef resolves a kind and an id or slug to the entity's asset key
func (e *Engine) EntityRef(ctx context.Context, kind, idOrSlug string) (model.EntityRef, error) {
	k, err := model.ParseEntityKind(kind)
	if err != nil {
		return model.EntityRef{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	entity, err := e.Entity(ctx, idOrSlug)
	if err != nil {
		return model.EntityRef{}, err
	}
	if entity.Kind != k {
		return model.EntityRef{}, fmt.Errorf("entity %s is a %s, not a %s: %w", idOrSlug, entity.Kind, k, store.ErrNotFound)
	}
	return entity.Ref(), nil
}

// AddEntity registers an entity. An empty slug is derived from the name.
func (e *Engine) AddEntity(ctx context.Context, kind model.EntityKind, name, slug string) (*model.Entity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: entity name is required", ErrInvalidInput)
	}
	if slug == "" {
		slug = util.Slug(name)
	}
	if existing, err := e.store.FindEntity(ctx, slug); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	entity := &model.Entity{ID: util.NewID(), Slug: slug, Kind: kind, Name: name}
	if err := e.store.PutEntity(ctx, entity); err != nil {
		return nil, fmt.Errorf("store entity: %w", err)
	}
	e.log.Info("entity added", "entity_id", entity.ID, "slug", slug, "kind", kind)
	return entity, nil
}

// ListEntities returns every entity ordered by slug
func (e *Engine) ListEntities(ctx context.Context) ([]model.Entity, error) {
	return e.store.ListEntities(ctx)
}

// Ingest fetches a page and stores it for the given entities
func (e *Engine) Ingest(ctx context.Context, rawURL string, entities []string) (*ingest.Result, error) {
	return e.ingester.Ingest(ctx, rawURL, entities)
}

// IngestText stores already-fetched text for the given entities
func (e *Engine) IngestText(ctx context.Context, sourceURL, content string, entities []string) (*ingest.Result, error) {
	return e.ingester.IngestText(ctx, sourceURL, content, entities)
}

// batchRunner returns the sequential runner used for extraction. Keyword
// extraction makes no inference calls and needs no pause.
func (e *Engine) batchRunner() *worker.BatchRunner {
	delay := e.cfg.Extraction.Delay
	if !e.inference {
		delay = 0
	}
	return worker.NewBatchRunner(delay, e.cfg.Extraction.CheckpointPath, e.log)
}
