// Package api exposes the operational HTTP interface for the tracking
// service: health, metrics and read-only views of the persisted state, plus
// a manual check trigger.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/geo/geocode"
	"github.com/maptrack/maptrack/internal/schedule"
	"github.com/maptrack/maptrack/internal/service"
	"github.com/maptrack/maptrack/internal/tracking"
)

// Server wires HTTP handlers to the facade, registry and geocoder.
type Server struct {
	router   chi.Router
	tracker  *service.Tracker
	registry *schedule.Registry
	resolver *geocode.Resolver
	log      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(tracker *service.Tracker, registry *schedule.Registry, resolver *geocode.Resolver, log *zap.Logger) *Server {
	s := &Server{tracker: tracker, registry: registry, resolver: resolver, log: log}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/geocache/stats", s.geocacheStats)
		r.Route("/subscribers/{subscriber_id}", func(r chi.Router) {
			r.Get("/schedule", s.getSchedule)
			r.Get("/contracts", s.getContractLinks)
			r.Post("/checks", s.runCheck)
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
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The stores open at boot and the browser allocator is lazy, so once
	// the server is up the service can take work.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) geocacheStats(w http.ResponseWriter, _ *http.Request) {
	total, valid, expired, err := s.resolver.Stats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read geocache")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"total":   total,
		"valid":   valid,
		"expired": expired,
	})
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	subscriber, ok := s.subscriberParam(w, r)
	if !ok {
		return
	}
	sub, err := s.registry.Subscription(subscriber)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read schedule")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"subscription": sub,
		"timers":       sub.TimerCount(),
	})
}

func (s *Server) getContractLinks(w http.ResponseWriter, r *http.Request) {
	subscriber, ok := s.subscriberParam(w, r)
	if !ok {
		return
	}
	links, err := s.tracker.ContractLinks(subscriber)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read contract links")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"links": links})
}

type checkRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// runCheck triggers a synchronous check, the same path a timer takes. Meant
// for operators verifying the pipeline against a live target.
func (s *Server) runCheck(w http.ResponseWriter, r *http.Request) {
	subscriber, ok := s.subscriberParam(w, r)
	if !ok {
		return
	}
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		s.writeError(w, http.StatusBadRequest, "kind and id required")
		return
	}
	kind := tracking.TargetKind(req.Kind)
	if kind != tracking.KindContainer && kind != tracking.KindContract {
		s.writeError(w, http.StatusBadRequest, "kind must be container or contract")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	result, err := s.tracker.Check(ctx, subscriber, tracking.Target{Kind: kind, ID: req.ID})
	if err != nil {
		s.writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   err.Error(),
			"message": service.UserMessage(err),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) subscriberParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "subscriber_id")
	subscriber, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid subscriber id")
		return 0, false
	}
	return subscriber, true
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
		s.log.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
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

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
