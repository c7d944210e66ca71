package store

import (
	"context"
	"fmt"

	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
)

// Open builds the configured backend. Postgres schemas are migrated first;
// a memory store with a path is loaded from its snapshot.
func Open(ctx context.Context, cfg model.StoreConfig, log *logger.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		if cfg.Path == "" {
			return NewMemoryStore(), nil
		}
		return OpenMemoryStore(cfg.Path, log)
	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store: postgres driver requires store.dsn")
		}
		if err := MigrateUp(cfg.DSN, log); err != nil {
			return nil, err
		}
		pool, err := NewPool(ctx, cfg.DSN, cfg.MaxConns, log)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
