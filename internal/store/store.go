// Package store persists entities, documents, claims, sources and media assets.
//
// Two backends are provided: an in-process memory store used by tests and
// single-shot CLI runs, and a PostgreSQL store built on pgxpool.
package store

import (
	"context"
	"errors"

	"github.com/ppiankov/provenance/internal/model"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("store: not found")

// EntityStore persists entities
type EntityStore interface {
	PutEntity(ctx context.Context, e *model.Entity) error
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	// FindEntity resolves an entity by id or slug
	FindEntity(ctx context.Context, idOrSlug string) (*model.Entity, error)
	ListEntities(ctx context.Context) ([]model.Entity, error)
}

// DocumentStore persists raw documents. Documents are immutable once stored.
type DocumentStore interface {
	PutDocument(ctx context.Context, d *model.RawDocument) error
	GetDocument(ctx context.Context, id string) (*model.RawDocument, error)
	// ListDocuments returns every document ordered by fetch time, then id
	ListDocuments(ctx context.Context) ([]model.RawDocument, error)
}

// ClaimTx writes claims and sources inside one atomic unit
type ClaimTx interface {
	InsertClaim(ctx context.Context, c *model.Claim) error
	InsertSource(ctx context.Context, s *model.Source) error
}

// ClaimStore persists claims and their sources
type ClaimStore interface {
	// WithClaimTx commits every write made by fn, or none of them when fn fails
	WithClaimTx(ctx context.Context, fn func(tx ClaimTx) error) error
	// HasSources reports whether any source from documentID backs a claim about entityID
	HasSources(ctx context.Context, documentID, entityID string) (bool, error)
	GetClaim(ctx context.Context, id string) (*model.Claim, error)
	// ClaimsFor returns the claims of one predicate, oldest first, with their sources
	ClaimsFor(ctx context.Context, entityID string, predicate model.ClaimType) ([]model.ClaimWithSources, error)
	// ClaimsForEntity returns every claim of an entity, oldest first, with their sources
	ClaimsForEntity(ctx context.Context, entityID string) ([]model.ClaimWithSources, error)
	SourcesFor(ctx context.Context, claimID string) ([]model.Source, error)
	ListSources(ctx context.Context) ([]model.Source, error)
	GetSource(ctx context.Context, id string) (*model.Source, error)
	UpdateSourceQuality(ctx context.Context, sourceID string, quality float64) error
	SetClaimStatus(ctx context.Context, status model.ClaimStatus, claimIDs ...string) error
}

// AssetTx operates on the assets of one locked entity
type AssetTx interface {
	// Assets lists the locked entity's assets, oldest first
	Assets(ctx context.Context) ([]model.MediaAsset, error)
	// SelectOnly marks assetID selected and every other asset of the entity unselected
	SelectOnly(ctx context.Context, assetID string) error
	// ClearSelection unselects every asset of the entity
	ClearSelection(ctx context.Context) error
	// Reject marks an asset rejected and unselected
	Reject(ctx context.Context, assetID, reason string) error
}

// AssetStore persists media assets.
// The selected flag is only written through WithEntityLock.
type AssetStore interface {
	AddAsset(ctx context.Context, a *model.MediaAsset) error
	GetAsset(ctx context.Context, id string) (*model.MediaAsset, error)
	ListAssets(ctx context.Context, ref model.EntityRef) ([]model.MediaAsset, error)
	// UpdateScores records a verification verdict; rejected assets stay rejected
	UpdateScores(ctx context.Context, id string, scores model.AssetScores) error
	SetStorageURL(ctx context.Context, id, storageURL string) error
	// WithEntityLock runs fn in a critical section scoped to one entity.
	// Writes made through tx are committed only when fn returns nil.
	WithEntityLock(ctx context.Context, ref model.EntityRef, fn func(tx AssetTx) error) error
}

// Store is the complete persistence surface
type Store interface {
	EntityStore
	DocumentStore
	ClaimStore
	AssetStore
	Close()
}
