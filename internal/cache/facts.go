package cache

import (
	"context"
	"time"

	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
)

// FactCache caches the resolved facts of an entity
type FactCache struct {
	cache Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewFactCache wraps a byte cache; a nil cache disables caching
func NewFactCache(c Cache, ttl time.Duration, log *logger.Logger) *FactCache {
	if c == nil {
		c = Nop{}
	}
	return &FactCache{cache: c, ttl: ttl, log: logger.OrNop(log)}
}

func factsKey(entityID string) string {
	return Key("facts", entityID)
}

// Get returns the cached facts of an entity. Undecodable entries are misses.
func (f *FactCache) Get(ctx context.Context, entityID string) ([]model.FactResult, bool) {
	data, ok := f.cache.Get(ctx, factsKey(entityID))
	if !ok {
		return nil, false
	}
	facts, err := model.UnmarshalFactResults(data)
	if err != nil {
		f.log.Warn("discarding undecodable fact cache entry", "entity_id", entityID, "error", err)
		_ = f.cache.Delete(ctx, factsKey(entityID))
		return nil, false
	}
	return facts, true
}

// Set stores the facts of an entity; failures are logged, never returned
func (f *FactCache) Set(ctx context.Context, entityID string, facts []model.FactResult) {
	data, err := model.MarshalFactResults(facts)
	if err != nil {
		f.log.Warn("encode facts for cache", "entity_id", entityID, "error", err)
		return
	}
	if err := f.cache.Set(ctx, factsKey(entityID), data, f.ttl); err != nil {
		f.log.Warn("write fact cache", "entity_id", entityID, "error", err)
	}
}

// Invalidate drops the cached facts of an entity
func (f *FactCache) Invalidate(ctx context.Context, entityID string) {
	if err := f.cache.Delete(ctx, factsKey(entityID)); err != nil {
		f.log.Warn("invalidate fact cache", "entity_id", entityID, "error", err)
	}
}

// New builds the cache stack described by cfg: memory, then disk when a
// directory is set, then Redis when a URL is set
func New(ctx context.Context, cfg model.CacheConfig, log *logger.Logger) (Cache, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = model.DefaultConfig().Cache.TTL
	}

	layers := []Cache{NewMemoryCache(ttl, 10*time.Minute)}
	if cfg.Dir != "" {
		layers = append(layers, NewDiskCache(cfg.Dir, ttl))
	}
	if cfg.RedisURL != "" {
		rc, err := NewRedisCache(ctx, cfg.RedisURL, ttl)
		if err != nil {
			return nil, err
		}
		layers = append(layers, rc)
		logger.OrNop(log).Info("redis fact cache connected")
	}
	if len(layers) == 1 {
		return layers[0], nil
	}
	return NewLayeredCache(layers...), nil
}
