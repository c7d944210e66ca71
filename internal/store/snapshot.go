package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
)

// snapshot is the on-disk form of a MemoryStore
type snapshot struct {
	Entities     []model.Entity      `json:"entities"`
	Documents    []model.RawDocument `json:"documents"`
	Claims       []model.Claim       `json:"claims"`
	Sources      []model.Source      `json:"sources"`
	ClaimSources map[string][]string `json:"claim_sources"` // claim id -> source ids, insertion order
	Assets       []model.MediaAsset  `json:"assets"`
}

// OpenMemoryStore loads a memory store from a snapshot file. A missing file
// starts an empty store. Close writes the snapshot back.
func OpenMemoryStore(path string, log *logger.Logger) (*MemoryStore, error) {
	m := NewMemoryStore()
	m.path = path
	m.log = log

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot %s: %w", path, err)
	}
	for _, e := range snap.Entities {
		m.entities[e.ID] = e
	}
	for _, d := range snap.Documents {
		m.documents[d.ID] = d
	}
	for _, c := range snap.Claims {
		m.claims[c.ID] = c
	}
	for _, s := range snap.Sources {
		m.sources[s.ID] = s
	}
	for claimID, ids := range snap.ClaimSources {
		m.bySource[claimID] = ids
	}
	for _, a := range snap.Assets {
		m.assets[a.ID] = a
	}
	logger.OrNop(log).Debug("memory store loaded", "path", path,
		"entities", len(m.entities), "claims", len(m.claims), "assets", len(m.assets))
	return m, nil
}

// Save writes the store to its snapshot file, replacing it atomically
func (m *MemoryStore) Save() error {
	if m.path == "" {
		return errors.New("store: memory store has no snapshot path")
	}

	m.mu.RLock()
	snap := snapshot{ClaimSources: make(map[string][]string, len(m.bySource))}
	for _, e := range m.entities {
		snap.Entities = append(snap.Entities, e)
	}
	for _, d := range m.documents {
		snap.Documents = append(snap.Documents, d)
	}
	for _, c := range m.claims {
		snap.Claims = append(snap.Claims, c)
	}
	for _, s := range m.sources {
		snap.Sources = append(snap.Sources, s)
	}
	for claimID, ids := range m.bySource {
		snap.ClaimSources[claimID] = append([]string(nil), ids...)
	}
	for _, a := range m.assets {
		snap.Assets = append(snap.Assets, a)
	}
	m.mu.RUnlock()

	sort.Slice(snap.Entities, func(i, j int) bool { return snap.Entities[i].ID < snap.Entities[j].ID })
	sort.Slice(snap.Documents, func(i, j int) bool { return snap.Documents[i].ID < snap.Documents[j].ID })
	sort.Slice(snap.Claims, func(i, j int) bool { return snap.Claims[i].ID < snap.Claims[j].ID })
	sort.Slice(snap.Sources, func(i, j int) bool { return snap.Sources[i].ID < snap.Sources[j].ID })
	sort.Slice(snap.Assets, func(i, j int) bool { return snap.Assets[i].ID < snap.Assets[j].ID })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}
