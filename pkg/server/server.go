// Package server exposes the resolution pipeline over HTTP. The API is
// stateless: each request carries its own feature document, runs through a
// shared Runner, and gets the endpoint mapping back. Result caching inside
// the Runner makes repeated submissions of an unchanged document cheap.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nodeweld/nodeweld/pkg/buildinfo"
	"github.com/nodeweld/nodeweld/pkg/dataset/memory"
	apperrors "github.com/nodeweld/nodeweld/pkg/errors"
	"github.com/nodeweld/nodeweld/pkg/metrics"
	"github.com/nodeweld/nodeweld/pkg/pipeline"
)

// Config configures the API server.
type Config struct {
	Addr   string
	Runner *pipeline.Runner
	Logger *log.Logger

	// MaxBodyBytes bounds request bodies. Zero means the default of 32 MiB.
	MaxBodyBytes int64
}

// Server is the nodeweld HTTP API.
type Server struct {
	cfg    Config
	runner *pipeline.Runner
	logger *log.Logger
	router chi.Router
}

// New builds a server with its routes mounted.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = pipeline.NewRunner(nil, nil, cfg.Logger)
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 32 << 20
	}

	s := &Server{
		cfg:    cfg,
		runner: cfg.Runner,
		logger: cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Post("/resolve", s.handleResolve)
	})

	s.router = r
	return s
}

// Handler returns the server's HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// instrument logs each request and feeds the HTTP metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, fmt.Sprint(status)).Inc()
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	})
}

// resolveRequest is a feature document plus run options.
type resolveRequest struct {
	Fields   map[string]memory.FieldSpec `json:"fields"`
	Features []memory.FeatureJSON        `json:"features"`
	Options  pipeline.Options            `json:"options"`
}

// resolveResponse is the settled endpoint mapping plus run statistics.
type resolveResponse struct {
	Endpoints   map[int64]endpointsJSON `json:"endpoints"`
	NodeCount   int                     `json:"node_count"`
	ContentHash string                  `json:"content_hash"`
	Cached      bool                    `json:"cached"`
	Stats       statsJSON               `json:"stats"`
}

type endpointsJSON struct {
	From any `json:"from"`
	To   any `json:"to"`
}

type statsJSON struct {
	FeatureCount  int   `json:"feature_count"`
	ReadMillis    int64 `json:"read_ms"`
	ResolveMillis int64 `json:"resolve_ms"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req resolveRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	doc, err := json.Marshal(memory.Document{Fields: req.Fields, Features: req.Features})
	if err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.ErrCodeInternal, err, "re-encode document"))
		return
	}
	store, err := memory.ReadDocument(bytes.NewReader(doc))
	if err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "load document"))
		return
	}

	opts := req.Options
	opts.Write = false // the API never mutates the caller's document
	opts.Logger = s.logger

	result, err := s.runner.Execute(r.Context(), store, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := resolveResponse{
		Endpoints:   make(map[int64]endpointsJSON, len(result.Endpoints)),
		NodeCount:   result.Stats.NodeCount,
		ContentHash: result.ContentHash,
		Cached:      result.CacheInfo.ResolveHit,
		Stats: statsJSON{
			FeatureCount:  result.Stats.FeatureCount,
			ReadMillis:    result.Stats.ReadTime.Milliseconds(),
			ResolveMillis: result.Stats.ResolveTime.Milliseconds(),
		},
	}
	for id, ep := range result.Endpoints {
		resp.Endpoints[id] = endpointsJSON{From: ep.From, To: ep.To}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps structured error codes onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidIDKind,
		apperrors.ErrCodeInvalidIDLength, apperrors.ErrCodeMixedIDKinds,
		apperrors.ErrCodeInvalidFilter, apperrors.ErrCodeInvalidConfig:
		status = http.StatusBadRequest
	case apperrors.ErrCodeFieldNotFound, apperrors.ErrCodeDatasetNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodePoolExhausted:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrCodeUnsupported:
		status = http.StatusNotImplemented
	case apperrors.ErrCodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    string(apperrors.GetCode(err)),
			"message": apperrors.UserMessage(err),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
