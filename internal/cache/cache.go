// Package cache stores resolved fact lists between reads.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

const keyPrefix = "provenance:v1:"

// Key generates a cache key from its parts
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// Nop is a cache that stores nothing
type Nop struct{}

func (Nop) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (Nop) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error { return nil }

func (Nop) Delete(ctx context.Context, key string) error { return nil }

func (Nop) Clear(ctx context.Context) error { return nil }
