package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/provenance/internal/engine"
	"github.com/ppiankov/provenance/internal/llm"
	"github.com/ppiankov/provenance/internal/llm/llmtest"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/store"
)

const bio = `Jeff Mills is an American DJ and producer from Detroit, Michigan. Jeff Mills was born in Detroit on June 18, 1963.
He co-founded Underground Resistance with Mike Banks and later launched the Axis Records label in 1992.
His Purpose Maker imprint followed, and his live sets on three decks became a reference for techno DJs.`

type testAPI struct {
	server *httptest.Server
	store  *store.MemoryStore
	mills  *model.Entity
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()

	cfg := model.DefaultConfig()
	cfg.Extraction.Delay = 0
	cfg.Extraction.CheckpointPath = ""
	cfg.Selection.Mirror = false

	provider := llmtest.New(`{"claims":[{"type":"birth_date","text":"Born 18 June 1963","value":"1963-06-18","confidence":0.9,"snippet":"born in Detroit on June 18, 1963"}]}`)
	s := store.NewMemoryStore()
	e, err := engine.New(engine.Deps{
		Config: cfg,
		Store:  s,
		LLM:    llm.NewClientWithProvider(provider, time.Second, nil),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	mills, err := e.AddEntity(ctx, model.EntityArtist, "Jeff Mills", "")
	require.NoError(t, err)
	_, err = e.IngestText(ctx, "https://ra.co/dj/jeffmills/biography", bio, []string{mills.ID})
	require.NoError(t, err)
	_, err = e.Extract(ctx, engine.ExtractOptions{})
	require.NoError(t, err)

	ts := httptest.NewServer(NewServer(e, "", nil).Handler())
	t.Cleanup(ts.Close)
	return &testAPI{server: ts, store: s, mills: mills}
}

func (a *testAPI) addAsset(t *testing.T, id string, match, quality float64, status model.AssetStatus) {
	t.Helper()
	require.NoError(t, a.store.AddAsset(context.Background(), &model.MediaAsset{
		ID:            id,
		Entity:        a.mills.Ref(),
		SourceURL:     "https://img.example.org/" + id + ".jpg",
		MatchScore:    match,
		QualityScore:  quality,
		CopyrightRisk: model.CopyrightLow,
		License:       model.LicenseSafe,
		Status:        status,
	}))
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, map[string]json.RawMessage) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	var out map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	status, body := a.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body["data"]))
}

func TestGetFacts(t *testing.T) {
	a := newTestAPI(t)

	status, body := a.do(t, http.MethodGet, "/entities/jeff-mills/facts", "")
	require.Equal(t, http.StatusOK, status)
	facts, err := model.UnmarshalFactResults(body["data"])
	require.NoError(t, err)
	require.Len(t, facts, 1)
	valid, ok := facts[0].(model.ValidFact)
	require.True(t, ok)
	assert.Equal(t, "born in Detroit on June 18, 1963", valid.Evidence)

	status, _ = a.do(t, http.MethodGet, "/entities/nobody/facts", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetFacts_DisplayView(t *testing.T) {
	a := newTestAPI(t)

	status, body := a.do(t, http.MethodGet, "/entities/jeff-mills/facts?view=display&evidence=false", "")
	require.Equal(t, http.StatusOK, status)
	var view struct {
		ShowEvidence bool `json:"show_evidence"`
		Facts        []struct {
			Evidence string `json:"evidence"`
		} `json:"facts"`
		Empty bool `json:"empty"`
	}
	require.NoError(t, json.Unmarshal(body["data"], &view))
	assert.False(t, view.ShowEvidence)
	assert.False(t, view.Empty)
	require.Len(t, view.Facts, 1)
	assert.Empty(t, view.Facts[0].Evidence)

	status, body = a.do(t, http.MethodGet, "/entities/jeff-mills/facts?view=display&evidence=maybe", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `"invalid_input"`, string(body["code"]))
}

func TestAssetSelection(t *testing.T) {
	a := newTestAPI(t)
	a.addAsset(t, "a1", 70, 60, model.AssetScored)
	a.addAsset(t, "a2", 95, 90, model.AssetScored)
	a.addAsset(t, "a3", 99, 99, model.AssetCandidate)

	status, body := a.do(t, http.MethodGet, "/entities/artist/jeff-mills/assets", "")
	require.Equal(t, http.StatusOK, status)
	var candidates []engine.Candidate
	require.NoError(t, json.Unmarshal(body["data"], &candidates))
	assert.Len(t, candidates, 3)

	status, body = a.do(t, http.MethodGet, "/entities/artist/jeff-mills/assets/selected", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", string(body["data"]))

	status, body = a.do(t, http.MethodPost, "/entities/artists/jeff-mills/assets/select", "")
	require.Equal(t, http.StatusOK, status)
	var outcome struct {
		Selected *model.MediaAsset `json:"selected"`
	}
	require.NoError(t, json.Unmarshal(body["data"], &outcome))
	require.NotNil(t, outcome.Selected)
	assert.Equal(t, "a2", outcome.Selected.ID)

	// Human override
	status, _ = a.do(t, http.MethodPost, "/assets/a1/select", "")
	require.Equal(t, http.StatusOK, status)
	status, body = a.do(t, http.MethodGet, "/entities/artist/jeff-mills/assets/selected", "")
	require.Equal(t, http.StatusOK, status)
	var selected model.MediaAsset
	require.NoError(t, json.Unmarshal(body["data"], &selected))
	assert.Equal(t, "a1", selected.ID)

	status, _ = a.do(t, http.MethodPost, "/assets/a1/reject", `{"reason":"wrong person"}`)
	require.Equal(t, http.StatusOK, status)
	status, body = a.do(t, http.MethodGet, "/entities/artist/jeff-mills/assets/selected", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", string(body["data"]))

	status, body = a.do(t, http.MethodPost, "/assets/a1/select", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.JSONEq(t, `"asset_rejected"`, string(body["code"]))
}

func TestAssetErrors(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown kind", http.MethodGet, "/entities/spaceship/jeff-mills/assets", "", http.StatusBadRequest},
		{"kind mismatch", http.MethodGet, "/entities/venue/jeff-mills/assets", "", http.StatusNotFound},
		{"unknown asset", http.MethodPost, "/assets/missing/select", "", http.StatusNotFound},
		{"malformed reject body", http.MethodPost, "/assets/missing/reject", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}
