package api

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/provenance/internal/engine"
	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/selection"
	"github.com/ppiankov/provenance/internal/store"
)

// envelope wraps every successful response body
type envelope struct {
	Data any `json:"data"`
}

// errorEnvelope is the body of every error response
type errorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

// statusOf maps domain errors to HTTP statuses and stable codes
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, selection.ErrAssetRejected):
		return http.StatusConflict, "asset_rejected"
	case errors.Is(err, engine.ErrInferenceDisabled):
		return http.StatusServiceUnavailable, "inference_disabled"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorEnvelope{Error: msg, Code: code})
}
