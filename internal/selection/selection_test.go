package selection

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/score"
	"github.com/ppiankov/provenance/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var ref = model.EntityRef{Kind: model.EntityArtist, ID: "artist-1"}

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func scored(id string, match, quality float64) model.MediaAsset {
	return model.MediaAsset{
		ID:            id,
		Entity:        ref,
		SourceURL:     "https://img.example/" + id + ".jpg",
		MatchScore:    match,
		QualityScore:  quality,
		CopyrightRisk: model.CopyrightLow,
		License:       model.LicenseSafe,
		Status:        model.AssetScored,
	}
}

func seed(t *testing.T, s *store.MemoryStore, assets ...model.MediaAsset) {
	t.Helper()
	for i := range assets {
		a := assets[i]
		a.CreatedAt = t0.Add(time.Duration(i) * time.Second)
		scores := model.AssetScores{MatchScore: a.MatchScore, QualityScore: a.QualityScore, CopyrightRisk: a.CopyrightRisk, License: a.License}
		status := a.Status
		require.NoError(t, s.AddAsset(context.Background(), &a))
		if status == model.AssetScored {
			require.NoError(t, s.UpdateScores(context.Background(), a.ID, scores))
		}
	}
}

func selectedIDs(t *testing.T, s store.AssetStore) []string {
	t.Helper()
	assets, err := s.ListAssets(context.Background(), ref)
	require.NoError(t, err)
	var ids []string
	for _, a := range assets {
		if a.Selected {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func TestWinner(t *testing.T) {
	type item struct {
		id    string
		score float64
		ok    bool
	}
	items := []item{{"a", 5, true}, {"b", 9, false}, {"c", 7, true}, {"d", 7, true}}

	got, ok := Winner(items,
		func(i item) float64 { return i.score },
		func(i item) bool { return i.ok },
		func(a, b item) bool { return a.id > b.id },
	)
	require.True(t, ok)
	assert.Equal(t, "d", got.id, "ties fall to the tiebreak")

	_, ok = Winner(items, func(i item) float64 { return i.score }, func(item) bool { return false }, nil)
	assert.False(t, ok)
}

func TestPolicy_Eligibility(t *testing.T) {
	p := NewPolicy(model.SelectionConfig{})

	tests := []struct {
		name   string
		mutate func(*model.MediaAsset)
		reason string
	}{
		{"eligible", func(*model.MediaAsset) {}, ""},
		{"unscored", func(a *model.MediaAsset) { a.Status = model.AssetCandidate }, "not scored"},
		{"rejected", func(a *model.MediaAsset) { a.Status = model.AssetRejected }, "rejected"},
		{"weak match", func(a *model.MediaAsset) { a.MatchScore = 59 }, "match score 59 below 60"},
		{"high copyright", func(a *model.MediaAsset) { a.CopyrightRisk = model.CopyrightHigh }, "high copyright risk"},
		{"rejected license", func(a *model.MediaAsset) { a.License = model.LicenseRejected }, "license rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := scored("a1", 80, 70)
			tt.mutate(&a)
			reasons := p.Reasons(a)
			if tt.reason == "" {
				assert.Empty(t, reasons)
				assert.True(t, p.Eligible(a))
				return
			}
			assert.Contains(t, reasons, tt.reason)
			assert.False(t, p.Eligible(a))
		})
	}
}

func TestPolicy_CombinedInRange(t *testing.T) {
	p := NewPolicy(model.SelectionConfig{})
	assert.InDelta(t, 0.6*80+0.4*50, p.Combined(scored("a", 80, 50)), 1e-9)
	assert.Equal(t, 100.0, p.Combined(scored("a", 500, 1000)))
	assert.Equal(t, 0.0, p.Combined(scored("a", -5, -1)))

	custom := NewPolicy(model.SelectionConfig{MatchWeight: 1, QualityWeight: 1, MinMatchScore: 70})
	assert.Equal(t, score.Weights{Match: 1, Quality: 1}, custom.Weights)
	assert.InDelta(t, 65.0, custom.Combined(scored("a", 80, 50)), 1e-9)
	assert.False(t, custom.Eligible(scored("a", 65, 100)))
}

func TestSelect_PicksBestEligible(t *testing.T) {
	s := store.NewMemoryStore()
	low := scored("low", 70, 40)
	best := scored("best", 90, 80)
	risky := scored("risky", 99, 99)
	risky.CopyrightRisk = model.CopyrightHigh
	seed(t, s, low, best, risky)

	svc := NewService(s, NewPolicy(model.SelectionConfig{}), nil, nil)
	out, err := svc.Select(context.Background(), ref)
	require.NoError(t, err)

	require.NotNil(t, out.Selected)
	assert.Equal(t, "best", out.Selected.ID)
	assert.True(t, out.Changed)
	assert.InDelta(t, 86.0, out.Score, 1e-9)
	require.Len(t, out.Ineligible, 1)
	assert.Equal(t, "risky", out.Ineligible[0].AssetID)
	assert.Equal(t, []string{"best"}, selectedIDs(t, s))

	again, err := svc.Select(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, again.Changed, "re-selecting the same winner is a no-op")
}

func TestSelect_NothingEligibleKeepsState(t *testing.T) {
	s := store.NewMemoryStore()
	a := scored("a", 90, 90)
	b := scored("b", 20, 90)
	seed(t, s, a, b)
	svc := NewService(s, NewPolicy(model.SelectionConfig{}), nil, nil)
	ctx := context.Background()

	_, err := svc.ForceSelect(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s.UpdateScores(ctx, "a", model.AssetScores{MatchScore: 10, QualityScore: 10, CopyrightRisk: model.CopyrightLow, License: model.LicenseSafe}))

	out, err := svc.Select(ctx, ref)
	require.NoError(t, err)
	assert.Nil(t, out.Selected)
	assert.False(t, out.Changed)
	assert.Len(t, out.Ineligible, 2)
	assert.Equal(t, []string{"a"}, selectedIDs(t, s), "existing selection is untouched")
}

func TestForceSelect(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, scored("a", 90, 90), scored("weak", 10, 10))
	svc := NewService(s, NewPolicy(model.SelectionConfig{}), nil, nil)
	ctx := context.Background()

	_, err := svc.Select(ctx, ref)
	require.NoError(t, err)

	got, err := svc.ForceSelect(ctx, "weak")
	require.NoError(t, err)
	assert.Equal(t, "weak", got.ID)
	assert.Equal(t, []string{"weak"}, selectedIDs(t, s))

	require.NoError(t, svc.Reject(ctx, "a", "wrong person"))
	_, err = svc.ForceSelect(ctx, "a")
	assert.ErrorIs(t, err, ErrAssetRejected)
	assert.Equal(t, []string{"weak"}, selectedIDs(t, s))

	_, err = svc.ForceSelect(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReject_NeverPromotesReplacement(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, scored("a", 90, 90), scored("b", 80, 80))
	svc := NewService(s, NewPolicy(model.SelectionConfig{}), nil, nil)
	ctx := context.Background()

	out, err := svc.Select(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, "a", out.Selected.ID)

	require.NoError(t, svc.Reject(ctx, "a", "blurry"))
	assert.Empty(t, selectedIDs(t, s))

	a, err := s.GetAsset(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.AssetRejected, a.Status)
	assert.Equal(t, "blurry", a.RejectReason)

	out, err = svc.Select(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Selected.ID)
}

// splitBrainStore reports extra assets as selected until a selection write
// reaches them through the entity lock, standing in for rows left behind by
// an out-of-band writer.
type splitBrainStore struct {
	*store.MemoryStore

	mu        sync.Mutex
	extra     map[string]bool
	afterList func()
}

func newSplitBrainStore(s *store.MemoryStore, ids ...string) *splitBrainStore {
	extra := make(map[string]bool)
	for _, id := range ids {
		extra[id] = true
	}
	return &splitBrainStore{MemoryStore: s, extra: extra}
}

func (s *splitBrainStore) mark(assets []model.MediaAsset) []model.MediaAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range assets {
		if s.extra[assets[i].ID] {
			assets[i].Selected = true
		}
	}
	return assets
}

func (s *splitBrainStore) forget(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		s.extra = make(map[string]bool)
	}
	for _, id := range ids {
		delete(s.extra, id)
	}
}

func (s *splitBrainStore) ListAssets(ctx context.Context, ref model.EntityRef) ([]model.MediaAsset, error) {
	assets, err := s.MemoryStore.ListAssets(ctx, ref)
	if err != nil {
		return nil, err
	}
	assets = s.mark(assets)

	s.mu.Lock()
	hook := s.afterList
	s.afterList = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return assets, nil
}

func (s *splitBrainStore) WithEntityLock(ctx context.Context, ref model.EntityRef, fn func(tx store.AssetTx) error) error {
	return s.MemoryStore.WithEntityLock(ctx, ref, func(tx store.AssetTx) error {
		return fn(&splitBrainTx{AssetTx: tx, s: s})
	})
}

type splitBrainTx struct {
	store.AssetTx
	s *splitBrainStore
}

func (t *splitBrainTx) Assets(ctx context.Context) ([]model.MediaAsset, error) {
	assets, err := t.AssetTx.Assets(ctx)
	if err != nil {
		return nil, err
	}
	return t.s.mark(assets), nil
}

func (t *splitBrainTx) SelectOnly(ctx context.Context, assetID string) error {
	if err := t.AssetTx.SelectOnly(ctx, assetID); err != nil {
		return err
	}
	t.s.forget()
	return nil
}

func (t *splitBrainTx) ClearSelection(ctx context.Context) error {
	if err := t.AssetTx.ClearSelection(ctx); err != nil {
		return err
	}
	t.s.forget()
	return nil
}

func (t *splitBrainTx) Reject(ctx context.Context, assetID, reason string) error {
	if err := t.AssetTx.Reject(ctx, assetID, reason); err != nil {
		return err
	}
	t.s.forget(assetID)
	return nil
}

func TestSelected_HealsMultipleSelections(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(t, mem, scored("a", 70, 70), scored("b", 95, 90))
	ctx := context.Background()

	_, err := NewService(mem, NewPolicy(model.SelectionConfig{}), nil, nil).ForceSelect(ctx, "a")
	require.NoError(t, err)
	s := newSplitBrainStore(mem, "b")
	require.ElementsMatch(t, []string{"a", "b"}, selectedIDs(t, s))

	svc := NewService(s, NewPolicy(model.SelectionConfig{}), nil, nil)
	got, err := svc.Selected(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.ID)
	assert.Equal(t, []string{"b"}, selectedIDs(t, s))

	none, err := svc.Selected(ctx, model.EntityRef{Kind: model.EntityVenue, ID: "v"})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSelected_RepairNeverRestoresRejected(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(t, mem, scored("a", 70, 70), scored("b", 95, 90))
	ctx := context.Background()

	_, err := NewService(mem, NewPolicy(model.SelectionConfig{}), nil, nil).ForceSelect(ctx, "b")
	require.NoError(t, err)
	s := newSplitBrainStore(mem, "a")
	svc := NewService(s, NewPolicy(model.SelectionConfig{}), nil, nil)

	// A curator rejects the best duplicate after the unlocked read
	s.afterList = func() {
		require.NoError(t, svc.Reject(ctx, "b", "not the artist"))
	}

	got, err := svc.Selected(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID)

	b, err := mem.GetAsset(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, model.AssetRejected, b.Status)
	assert.False(t, b.Selected)
}

func TestSelected_RejectedDuplicatesAreCleared(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(t, mem, scored("a", 70, 70), scored("b", 95, 90))
	ctx := context.Background()

	plain := NewService(mem, NewPolicy(model.SelectionConfig{}), nil, nil)
	require.NoError(t, plain.Reject(ctx, "a", "blurry"))
	require.NoError(t, plain.Reject(ctx, "b", "wrong person"))
	s := newSplitBrainStore(mem, "a", "b")

	got, err := NewService(s, NewPolicy(model.SelectionConfig{}), nil, nil).Selected(ctx, ref)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, selectedIDs(t, s))
}

type fakeMirror struct {
	calls atomic.Int32
	err   error
}

func (f *fakeMirror) Mirror(ctx context.Context, a model.MediaAsset) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/" + a.ID + ".jpg", nil
}

func TestSelect_MirrorsOnce(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, scored("a", 90, 90))
	m := &fakeMirror{}
	svc := NewService(s, NewPolicy(model.SelectionConfig{}), m, nil)
	ctx := context.Background()

	_, err := svc.Select(ctx, ref)
	require.NoError(t, err)
	svc.Wait()
	_, err = svc.Select(ctx, ref)
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, int32(1), m.calls.Load())
	a, err := s.GetAsset(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/a.jpg", a.StorageURL)
	assert.Equal(t, "https://cdn.example/a.jpg", a.URL())
}

func TestSelect_MirrorFailureKeepsSelection(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s, scored("a", 90, 90))
	svc := NewService(s, NewPolicy(model.SelectionConfig{}), &fakeMirror{err: errors.New("bucket gone")}, nil)

	out, err := svc.Select(context.Background(), ref)
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, "a", out.Selected.ID)
	assert.Equal(t, []string{"a"}, selectedIDs(t, s))
}

// Random interleavings of select, force-select, reject and rescoring never
// leave more than one selected asset.
func TestAtMostOneSelected_RandomInterleavings(t *testing.T) {
	for seedN := int64(1); seedN <= 5; seedN++ {
		t.Run(fmt.Sprintf("seed-%d", seedN), func(t *testing.T) {
			s := store.NewMemoryStore()
			var assets []model.MediaAsset
			for i := 0; i < 8; i++ {
				assets = append(assets, scored(fmt.Sprintf("a%d", i), float64(40+i*8), float64(90-i*5)))
			}
			seed(t, s, assets...)
			svc := NewService(s, NewPolicy(model.SelectionConfig{}), nil, nil)
			ctx := context.Background()

			var wg sync.WaitGroup
			for w := 0; w < 6; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					rng := rand.New(rand.NewSource(seedN*100 + int64(w)))
					for i := 0; i < 50; i++ {
						id := fmt.Sprintf("a%d", rng.Intn(8))
						switch rng.Intn(4) {
						case 0:
							_, _ = svc.Select(ctx, ref)
						case 1:
							_, _ = svc.ForceSelect(ctx, id)
						case 2:
							if rng.Intn(4) == 0 {
								_ = svc.Reject(ctx, id, "random")
							}
						case 3:
							_ = s.UpdateScores(ctx, id, model.AssetScores{
								MatchScore:    rng.Float64() * 100,
								QualityScore:  rng.Float64() * 100,
								CopyrightRisk: model.CopyrightLow,
								License:       model.LicenseSafe,
							})
						}
						if ids := selectedIDs(t, s); len(ids) > 1 {
							t.Errorf("more than one selected: %v", ids)
							return
						}
					}
				}(w)
			}
			wg.Wait()

			ids := selectedIDs(t, s)
			assert.LessOrEqual(t, len(ids), 1)
			for _, id := range ids {
				a, err := s.GetAsset(ctx, id)
				require.NoError(t, err)
				assert.NotEqual(t, model.AssetRejected, a.Status, "a rejected asset is never left selected")
			}
		})
	}
}
