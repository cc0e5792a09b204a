// Package api exposes the admin HTTP interface for the ingestion
// service: job creation, job inspection, approval, and jurisdiction
// availability.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/config"
	"github.com/civicdata/codecrawler/internal/metrics"
	"github.com/civicdata/codecrawler/internal/municipal"
	"github.com/civicdata/codecrawler/internal/pipeline"
	"github.com/civicdata/codecrawler/internal/sources"
	"github.com/civicdata/codecrawler/internal/store"
)

const (
	defaultItemLimit  = 100
	maxItemLimit      = 1000
	handlerTimeout    = 30 * time.Second
	extractionTimeout = 30 * time.Minute
)

// Coordinator is the pipeline surface the API drives.
type Coordinator interface {
	CreateJob(ctx context.Context, jurisdictionID, jobType string) (*store.ExtractionJob, error)
	Run(ctx context.Context, jobID string, opts sources.ScrapeOptions) error
	Approve(ctx context.Context, jobID, userID string) error
}

// SourceDirectory answers jurisdiction availability questions.
type SourceDirectory interface {
	Availability(jurisdictionID string) municipal.Availability
	SupportedJurisdictions() []municipal.Availability
}

// Server wires HTTP handlers to the coordinator and store.
type Server struct {
	router      chi.Router
	store       store.Store
	coordinator Coordinator
	directory   SourceDirectory
	cfg         config.Config
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	st store.Store,
	coordinator Coordinator,
	directory SourceDirectory,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		store:       st,
		coordinator: coordinator,
		directory:   directory,
		cfg:         cfg,
		logger:      logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(handlerTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/extractions", func(r chi.Router) {
			r.Post("/", s.createExtraction)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getExtraction)
				r.Get("/items", s.listExtractionItems)
				r.Post("/approve", s.approveExtraction)
			})
		})
		r.Route("/jurisdictions", func(r chi.Router) {
			r.Get("/", s.listJurisdictions)
			r.Get("/{jurisdiction_id}/availability", s.getAvailability)
			r.Get("/{jurisdiction_id}/extractions", s.listExtractions)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type createExtractionRequest struct {
	JurisdictionID    string `json:"jurisdiction_id"`
	JobType           string `json:"job_type"`
	PreferredProvider string `json:"preferred_provider"`
	SkipFallbacks     bool   `json:"skip_fallbacks"`
}

func (s *Server) createExtraction(w http.ResponseWriter, r *http.Request) {
	var req createExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.JurisdictionID == "" {
		writeError(w, http.StatusBadRequest, "jurisdiction_id is required")
		return
	}

	job, err := s.coordinator.CreateJob(r.Context(), req.JurisdictionID, req.JobType)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("create job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	opts := sources.ScrapeOptions{
		PreferredProvider: municipal.Provider(req.PreferredProvider),
		SkipFallbacks:     req.SkipFallbacks,
	}
	// The pipeline outlives the request; it reports through the job
	// record and the notifier.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), extractionTimeout)
		defer cancel()
		if err := s.coordinator.Run(ctx, job.ID, opts); err != nil {
			s.logger.Error("extraction run failed",
				zap.String("job_id", job.ID),
				zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

func (s *Server) getExtraction(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) listExtractionItems(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := s.store.GetJob(r.Context(), jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	needsReview := r.URL.Query().Get("needs_review") == "true"
	limit := defaultItemLimit
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if val > maxItemLimit {
			val = maxItemLimit
		}
		limit = val
	}

	items, err := s.store.ListItems(r.Context(), jobID, needsReview, limit)
	if err != nil {
		s.logger.Error("list items failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []store.ExtractionItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type approveRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) approveExtraction(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := s.coordinator.Approve(r.Context(), jobID, req.UserID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, store.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("approve failed", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to approve job")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": string(store.StatusApproved),
	})
}

func (s *Server) listJurisdictions(w http.ResponseWriter, _ *http.Request) {
	supported := s.directory.SupportedJurisdictions()
	writeJSON(w, http.StatusOK, map[string]any{"jurisdictions": supported})
}

func (s *Server) getAvailability(w http.ResponseWriter, r *http.Request) {
	jurisdictionID := chi.URLParam(r, "jurisdiction_id")
	av := s.directory.Availability(jurisdictionID)
	av.JurisdictionID = jurisdictionID
	writeJSON(w, http.StatusOK, av)
}

func (s *Server) listExtractions(w http.ResponseWriter, r *http.Request) {
	jurisdictionID := chi.URLParam(r, "jurisdiction_id")
	jobs, err := s.store.ListJobs(r.Context(), jurisdictionID)
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*store.ExtractionJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
