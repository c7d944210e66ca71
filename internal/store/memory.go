package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
)

// MemoryStore is an in-process Store.
// Asset critical sections are serialized with one mutex per entity.
type MemoryStore struct {
	mu        sync.RWMutex
	entities  map[string]model.Entity
	documents map[string]model.RawDocument
	claims    map[string]model.Claim
	sources   map[string]model.Source
	bySource  map[string][]string // claim id -> source ids, insertion order
	assets    map[string]model.MediaAsset

	lockMu      sync.Mutex
	entityLocks map[string]*sync.Mutex

	now func() time.Time

	// Snapshot file written on Close; empty keeps the store in memory only
	path string
	log  *logger.Logger
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:    make(map[string]model.Entity),
		documents:   make(map[string]model.RawDocument),
		claims:      make(map[string]model.Claim),
		sources:     make(map[string]model.Source),
		bySource:    make(map[string][]string),
		assets:      make(map[string]model.MediaAsset),
		entityLocks: make(map[string]*sync.Mutex),
		now:         time.Now,
	}
}

// Close writes the snapshot when the store was opened from a file
func (m *MemoryStore) Close() {
	if m.path == "" {
		return
	}
	if err := m.Save(); err != nil {
		logger.OrNop(m.log).Error("save memory store snapshot", "path", m.path, "error", err)
	}
}

// Entities

func (m *MemoryStore) PutEntity(ctx context.Context, e *model.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	m.entities[e.ID] = *e
	return nil
}

func (m *MemoryStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return &e, nil
}

func (m *MemoryStore) FindEntity(ctx context.Context, idOrSlug string) (*model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entities[idOrSlug]; ok {
		return &e, nil
	}
	for _, e := range m.entities {
		if e.Slug == idOrSlug {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("entity %s: %w", idOrSlug, ErrNotFound)
}

func (m *MemoryStore) ListEntities(ctx context.Context) ([]model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// Documents

func (m *MemoryStore) PutDocument(ctx context.Context, d *model.RawDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.documents[d.ID]; exists {
		return nil
	}
	doc := *d
	doc.EntityIDs = append([]string(nil), d.EntityIDs...)
	m.documents[d.ID] = doc
	return nil
}

func (m *MemoryStore) GetDocument(ctx context.Context, id string) (*model.RawDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return &d, nil
}

func (m *MemoryStore) ListDocuments(ctx context.Context) ([]model.RawDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.RawDocument, 0, len(m.documents))
	for _, d := range m.documents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FetchedAt.Equal(out[j].FetchedAt) {
			return out[i].FetchedAt.Before(out[j].FetchedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Claims and sources

type memClaimTx struct {
	claims  []model.Claim
	sources []model.Source
}

func (t *memClaimTx) InsertClaim(ctx context.Context, c *model.Claim) error {
	t.claims = append(t.claims, *c)
	return nil
}

func (t *memClaimTx) InsertSource(ctx context.Context, s *model.Source) error {
	t.sources = append(t.sources, *s)
	return nil
}

func (m *MemoryStore) WithClaimTx(ctx context.Context, fn func(tx ClaimTx) error) error {
	tx := &memClaimTx{}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string]bool, len(tx.claims))
	for _, c := range tx.claims {
		if _, exists := m.claims[c.ID]; exists {
			return fmt.Errorf("claim %s already exists", c.ID)
		}
		staged[c.ID] = true
	}
	for _, s := range tx.sources {
		if _, exists := m.sources[s.ID]; exists {
			return fmt.Errorf("source %s already exists", s.ID)
		}
		if _, exists := m.claims[s.ClaimID]; !exists && !staged[s.ClaimID] {
			return fmt.Errorf("source %s references claim %s: %w", s.ID, s.ClaimID, ErrNotFound)
		}
	}

	for _, c := range tx.claims {
		m.claims[c.ID] = c
	}
	for _, s := range tx.sources {
		m.sources[s.ID] = s
		m.bySource[s.ClaimID] = append(m.bySource[s.ClaimID], s.ID)
	}
	return nil
}

func (m *MemoryStore) HasSources(ctx context.Context, documentID, entityID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sources {
		if s.DocumentID != documentID {
			continue
		}
		if c, ok := m.claims[s.ClaimID]; ok && c.EntityID == entityID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (m *MemoryStore) ClaimsFor(ctx context.Context, entityID string, predicate model.ClaimType) ([]model.ClaimWithSources, error) {
	return m.collectClaims(func(c model.Claim) bool {
		return c.EntityID == entityID && c.Type == predicate
	}), nil
}

func (m *MemoryStore) ClaimsForEntity(ctx context.Context, entityID string) ([]model.ClaimWithSources, error) {
	return m.collectClaims(func(c model.Claim) bool {
		return c.EntityID == entityID
	}), nil
}

func (m *MemoryStore) collectClaims(match func(model.Claim) bool) []model.ClaimWithSources {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ClaimWithSources
	for _, c := range m.claims {
		if !match(c) {
			continue
		}
		out = append(out, model.ClaimWithSources{Claim: c, Sources: m.sourcesLocked(c.ID)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Claim, out[j].Claim
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (m *MemoryStore) sourcesLocked(claimID string) []model.Source {
	ids := m.bySource[claimID]
	out := make([]model.Source, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.sources[id])
	}
	return out
}

func (m *MemoryStore) SourcesFor(ctx context.Context, claimID string) ([]model.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sourcesLocked(claimID), nil
}

func (m *MemoryStore) ListSources(ctx context.Context) ([]model.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Source, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetSource(ctx context.Context, id string) (*model.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (m *MemoryStore) UpdateSourceQuality(ctx context.Context, sourceID string, quality float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[sourceID]
	if !ok {
		return fmt.Errorf("source %s: %w", sourceID, ErrNotFound)
	}
	s.Quality = quality
	m.sources[sourceID] = s
	return nil
}

func (m *MemoryStore) SetClaimStatus(ctx context.Context, status model.ClaimStatus, claimIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range claimIDs {
		if _, ok := m.claims[id]; !ok {
			return fmt.Errorf("claim %s: %w", id, ErrNotFound)
		}
	}
	for _, id := range claimIDs {
		c := m.claims[id]
		c.Status = status
		m.claims[id] = c
	}
	return nil
}

// Assets

func (m *MemoryStore) AddAsset(ctx context.Context, a *model.MediaAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.assets {
		if existing.Entity == a.Entity && existing.SourceURL == a.SourceURL {
			*a = existing
			return nil
		}
	}
	now := m.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	a.Selected = false
	if a.Status == "" {
		a.Status = model.AssetCandidate
	}
	m.assets[a.ID] = *a
	return nil
}

func (m *MemoryStore) GetAsset(ctx context.Context, id string) (*model.MediaAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (m *MemoryStore) ListAssets(ctx context.Context, ref model.EntityRef) ([]model.MediaAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assetsLocked(ref), nil
}

func (m *MemoryStore) assetsLocked(ref model.EntityRef) []model.MediaAsset {
	var out []model.MediaAsset
	for _, a := range m.assets {
		if a.Entity == ref {
			out = append(out, a)
		}
	}
	sortAssets(out)
	return out
}

func sortAssets(assets []model.MediaAsset) {
	sort.Slice(assets, func(i, j int) bool {
		if !assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].CreatedAt.Before(assets[j].CreatedAt)
		}
		return assets[i].ID < assets[j].ID
	})
}

func (m *MemoryStore) UpdateScores(ctx context.Context, id string, scores model.AssetScores) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	a.MatchScore = scores.MatchScore
	a.QualityScore = scores.QualityScore
	a.CopyrightRisk = scores.CopyrightRisk
	a.License = scores.License
	if a.Status != model.AssetRejected {
		a.Status = model.AssetScored
	}
	a.UpdatedAt = m.now()
	m.assets[id] = a
	return nil
}

func (m *MemoryStore) SetStorageURL(ctx context.Context, id, storageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	a.StorageURL = storageURL
	a.UpdatedAt = m.now()
	m.assets[id] = a
	return nil
}

func (m *MemoryStore) entityLock(ref model.EntityRef) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.entityLocks[ref.String()]
	if !ok {
		l = &sync.Mutex{}
		m.entityLocks[ref.String()] = l
	}
	return l
}

func (m *MemoryStore) WithEntityLock(ctx context.Context, ref model.EntityRef, fn func(tx AssetTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := m.entityLock(ref)
	l.Lock()
	defer l.Unlock()

	m.mu.RLock()
	current := m.assetsLocked(ref)
	m.mu.RUnlock()

	tx := &memAssetTx{ref: ref, staged: current, touched: make(map[string]bool), rejected: make(map[string]bool), now: m.now}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.touched) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range tx.staged {
		if !tx.touched[a.ID] {
			continue
		}
		stored, ok := m.assets[a.ID]
		if !ok {
			continue
		}
		// Scores and status may have changed since the snapshot; only the
		// fields this tx wrote are copied back
		stored.Selected = a.Selected
		if tx.rejected[a.ID] {
			stored.Status = a.Status
			stored.RejectReason = a.RejectReason
		}
		stored.UpdatedAt = a.UpdatedAt
		m.assets[a.ID] = stored
	}
	return nil
}

// memAssetTx stages selection changes and applies them on commit
type memAssetTx struct {
	ref      model.EntityRef
	staged   []model.MediaAsset
	touched  map[string]bool
	rejected map[string]bool
	now      func() time.Time
}

func (t *memAssetTx) Assets(ctx context.Context) ([]model.MediaAsset, error) {
	return append([]model.MediaAsset(nil), t.staged...), nil
}

func (t *memAssetTx) index(id string) int {
	for i := range t.staged {
		if t.staged[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *memAssetTx) SelectOnly(ctx context.Context, assetID string) error {
	if t.index(assetID) < 0 {
		return fmt.Errorf("asset %s of %s: %w", assetID, t.ref, ErrNotFound)
	}
	now := t.now()
	for i := range t.staged {
		want := t.staged[i].ID == assetID
		if t.staged[i].Selected != want {
			t.staged[i].Selected = want
			t.staged[i].UpdatedAt = now
			t.touched[t.staged[i].ID] = true
		}
	}
	return nil
}

func (t *memAssetTx) ClearSelection(ctx context.Context) error {
	now := t.now()
	for i := range t.staged {
		if t.staged[i].Selected {
			t.staged[i].Selected = false
			t.staged[i].UpdatedAt = now
			t.touched[t.staged[i].ID] = true
		}
	}
	return nil
}

func (t *memAssetTx) Reject(ctx context.Context, assetID, reason string) error {
	i := t.index(assetID)
	if i < 0 {
		return fmt.Errorf("asset %s of %s: %w", assetID, t.ref, ErrNotFound)
	}
	t.staged[i].Status = model.AssetRejected
	t.staged[i].RejectReason = reason
	t.staged[i].Selected = false
	t.staged[i].UpdatedAt = t.now()
	t.touched[assetID] = true
	t.rejected[assetID] = true
	return nil
}
