package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/provenance/internal/engine"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/present"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]string{"status": "ok"})
}

// getFacts returns resolved facts. view=display renders them for display;
// evidence=false hides evidence in that view.
func (s *Server) getFacts(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")
	q := r.URL.Query()

	if q.Get("view") == "display" {
		toggle, err := s.evidenceToggle(r, ref, q.Get("evidence"))
		if err != nil {
			writeError(w, r, s.log, err)
			return
		}
		view, err := s.svc.DisplayFacts(r.Context(), ref, toggle)
		if err != nil {
			writeError(w, r, s.log, err)
			return
		}
		ok(w, view)
		return
	}

	facts, err := s.svc.GetFacts(r.Context(), ref)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	body, err := model.MarshalFactResults(facts)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	ok(w, json.RawMessage(body))
}

func (s *Server) evidenceToggle(r *http.Request, ref, raw string) (*present.EvidenceToggle, error) {
	if raw == "" {
		return nil, nil
	}
	visible, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: evidence must be a boolean", engine.ErrInvalidInput)
	}
	entity, err := s.svc.Entity(r.Context(), ref)
	if err != nil {
		return nil, err
	}
	toggle := present.NewEvidenceToggle()
	toggle.Set(entity.ID, visible)
	return toggle, nil
}

func (s *Server) entityRef(r *http.Request) (model.EntityRef, error) {
	return s.svc.EntityRef(r.Context(), chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	ref, err := s.entityRef(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	candidates, err := s.svc.ListCandidates(r.Context(), ref)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if candidates == nil {
		candidates = []engine.Candidate{}
	}
	ok(w, candidates)
}

// getSelected answers with a null data field when nothing is selected
func (s *Server) getSelected(w http.ResponseWriter, r *http.Request) {
	ref, err := s.entityRef(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	asset, err := s.svc.GetSelectedAsset(r.Context(), ref)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	ok(w, asset)
}

func (s *Server) selectBest(w http.ResponseWriter, r *http.Request) {
	ref, err := s.entityRef(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	outcome, err := s.svc.SelectBest(r.Context(), ref)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	ok(w, outcome)
}

func (s *Server) selectAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.svc.SelectAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	ok(w, asset)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// rejectAsset takes an optional {"reason": "..."} body
func (s *Server) rejectAsset(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, s.log, fmt.Errorf("%w: %w", engine.ErrInvalidInput, err))
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.svc.RejectAsset(r.Context(), id, strings.TrimSpace(req.Reason)); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	ok(w, map[string]string{"id": id, "status": string(model.AssetRejected)})
}
