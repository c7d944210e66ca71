// Package api serves the fact and media query surface over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/provenance/internal/engine"
	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/present"
	"github.com/ppiankov/provenance/internal/selection"
)

const (
	requestTimeout    = 30 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	maxRequestBody    = 1 << 20
)

// Service is the part of the engine the API exposes
type Service interface {
	Entity(ctx context.Context, idOrSlug string) (*model.Entity, error)
	EntityRef(ctx context.Context, kind, idOrSlug string) (model.EntityRef, error)
	GetFacts(ctx context.Context, entityRef string) ([]model.FactResult, error)
	DisplayFacts(ctx context.Context, entityRef string, toggle *present.EvidenceToggle) (*present.EntityView, error)
	ListCandidates(ctx context.Context, ref model.EntityRef) ([]engine.Candidate, error)
	GetSelectedAsset(ctx context.Context, ref model.EntityRef) (*model.MediaAsset, error)
	SelectBest(ctx context.Context, ref model.EntityRef) (*selection.Outcome, error)
	SelectAsset(ctx context.Context, assetID string) (*model.MediaAsset, error)
	RejectAsset(ctx context.Context, assetID, reason string) error
}

// Server is the HTTP front of a Service
type Server struct {
	svc        Service
	router     chi.Router
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds the router and an http.Server listening on addr
func NewServer(svc Service, addr string, log *logger.Logger) *Server {
	s := &Server{svc: svc, log: logger.OrNop(log)}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(chimw.CleanPath)

	r.Get("/healthz", s.healthz)
	r.Route("/entities", func(r chi.Router) {
		r.Get("/{id}/facts", s.getFacts)
		r.Route("/{kind}/{id}/assets", func(r chi.Router) {
			r.Get("/", s.listAssets)
			r.Get("/selected", s.getSelected)
			r.Post("/select", s.selectBest)
		})
	})
	r.Route("/assets/{id}", func(r chi.Router) {
		r.Post("/select", s.selectAsset)
		r.Post("/reject", s.rejectAsset)
	})

	s.router = r
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.log.Info("api shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()))
		})
	}
}
