// Package server exposes stored scoring runs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cognicore/cocoscore/internal/metrics"
	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store"
)

// MaxPartners caps the k of partner queries
const MaxPartners = 1000

// Server answers pair and partner queries against a store
type Server struct {
	store   store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New creates a server. m may be nil, in which case /metrics is not served.
func New(st store.Store, m *metrics.Metrics) *Server {
	s := &Server{
		store:   st,
		metrics: m,
		logger:  slog.Default().With("component", "server"),
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /healthz", s.health)
	s.mux.HandleFunc("GET /runs", s.listRuns)
	s.mux.HandleFunc("GET /runs/{id}", s.getRun)
	s.mux.HandleFunc("GET /runs/{id}/pairs", s.pairScore)
	s.mux.HandleFunc("GET /runs/{id}/partners", s.topPartners)
	if m != nil {
		s.mux.Handle("GET /metrics", m.Handler())
	}
	return s
}

// Handler returns the root handler with request accounting
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(sw, r)
		if s.metrics != nil {
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			s.metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		}
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "up"})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.RunInfo{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) pairScore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		s.writeError(w, http.StatusBadRequest, "query parameters 'a' and 'b' are required")
		return
	}
	res, err := s.store.PairScore(r.Context(), r.PathValue("id"), a, b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) topPartners(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entity := q.Get("entity")
	if entity == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter 'entity' is required")
		return
	}
	k := store.DefaultTopK
	if v := q.Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = min(n, MaxPartners)
	}
	partners, err := s.store.TopPartners(r.Context(), r.PathValue("id"), entity, k)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if partners == nil {
		partners = []store.Partner{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"entity":   entity,
		"partners": partners,
	})
}

// StatusCode maps domain errors to HTTP status codes
func StatusCode(err error) int {
	switch {
	case errors.Is(err, internalerr.ErrNotFound), errors.Is(err, internalerr.ErrMissingEvidence):
		return http.StatusNotFound
	case errors.Is(err, internalerr.ErrInvalidInput), errors.Is(err, internalerr.ErrFormat):
		return http.StatusBadRequest
	case errors.Is(err, internalerr.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		s.writeError(w, code, "internal error")
		return
	}
	s.writeError(w, code, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}
