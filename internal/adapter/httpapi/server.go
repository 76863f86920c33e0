// Package httpapi is the HTTP boundary of the hazard intelligence
// service. It validates request payloads before anything reaches the
// engine, maps engine sentinels onto status codes, and exposes the
// operational endpoints (health, readiness, metrics).
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spottr/hazard-intel/internal/domain"
	"github.com/spottr/hazard-intel/internal/engine"
)

// Engine is the crowd-intelligence surface the server exposes.
type Engine interface {
	Report(r domain.Report) (domain.Hazard, bool)
	SubmitFeedback(req engine.FeedbackRequest) (domain.Hazard, error)
	Nearby(loc domain.Geo, radiusMeters float64, includeResolved bool) []domain.Hazard
	Get(hazardID string) (domain.Hazard, error)
	UserContribution(userID string) engine.UserContribution
	Stats() engine.Stats
}

// Publisher forwards hazard snapshots to the realtime layer. Optional;
// a nil publisher disables forwarding.
type Publisher interface {
	Publish(ctx context.Context, h domain.Hazard, event string) error
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the hazard API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	engine     Engine
	publisher  Publisher
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, eng Engine, pub Publisher, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine:    eng,
		publisher: pub,
		logger:    logger,
	}

	mux.HandleFunc("POST /hazards", s.handleReport)
	mux.HandleFunc("GET /hazards/nearby", s.handleNearby)
	mux.HandleFunc("GET /hazards/{id}", s.handleGet)
	mux.HandleFunc("POST /hazards/{id}/feedback", s.handleFeedback)
	mux.HandleFunc("GET /users/{id}/contribution", s.handleContribution)
	mux.HandleFunc("GET /stats", s.handleStats)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type reportRequest struct {
	HazardID   string    `json:"hazard_id"`
	ClassName  string    `json:"class_name"`
	Confidence float64   `json:"confidence"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	BBox       []float64 `json:"bbox"`
	UserID     string    `json:"user_id"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.ClassName == "" {
		writeError(w, http.StatusBadRequest, "class_name is required")
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		writeError(w, http.StatusBadRequest, "confidence must be in [0,1]")
		return
	}
	loc := domain.Geo{Lat: req.Latitude, Lon: req.Longitude}
	if !loc.Valid() {
		writeError(w, http.StatusBadRequest, "latitude/longitude out of range")
		return
	}
	if len(req.BBox) != 4 {
		writeError(w, http.StatusBadRequest, "bbox must have exactly 4 coordinates")
		return
	}

	id := req.HazardID
	if id == "" {
		id = uuid.NewString()
	}

	hazard, created := s.engine.Report(domain.Report{
		ID:         id,
		ClassName:  req.ClassName,
		Confidence: req.Confidence,
		Location:   loc,
		BBox:       [4]float64{req.BBox[0], req.BBox[1], req.BBox[2], req.BBox[3]},
		UserID:     req.UserID,
	})

	status := http.StatusOK
	event := "merged"
	if created {
		status = http.StatusCreated
		event = "created"
	}
	s.forward(r.Context(), hazard, event)
	writeJSON(w, status, hazard)
}

type feedbackRequest struct {
	UserID       string   `json:"user_id"`
	FeedbackType string   `json:"feedback_type"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Confidence   *float64 `json:"confidence"`
	Comment      string   `json:"comment"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	fbType, err := domain.ParseFeedbackType(req.FeedbackType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	confidence := 1.0
	if req.Confidence != nil {
		if *req.Confidence < 0 || *req.Confidence > 1 {
			writeError(w, http.StatusBadRequest, "confidence must be in [0,1]")
			return
		}
		confidence = *req.Confidence
	}

	var loc *domain.Geo
	if req.Latitude != nil || req.Longitude != nil {
		if req.Latitude == nil || req.Longitude == nil {
			writeError(w, http.StatusBadRequest, "latitude and longitude must be supplied together")
			return
		}
		g := domain.Geo{Lat: *req.Latitude, Lon: *req.Longitude}
		if !g.Valid() {
			writeError(w, http.StatusBadRequest, "latitude/longitude out of range")
			return
		}
		loc = &g
	}

	hazard, err := s.engine.SubmitFeedback(engine.FeedbackRequest{
		HazardID:   r.PathValue("id"),
		UserID:     req.UserID,
		Type:       fbType,
		Location:   loc,
		Confidence: confidence,
		Comment:    req.Comment,
	})
	switch {
	case errors.Is(err, engine.ErrHazardNotFound):
		writeError(w, http.StatusNotFound, "hazard not found")
		return
	case errors.Is(err, engine.ErrFeedbackTooFar):
		writeError(w, http.StatusUnprocessableEntity, "feedback location too far from hazard")
		return
	case err != nil:
		s.logger.Error("feedback failed", "error", err, "hazard_id", r.PathValue("id"))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.forward(r.Context(), hazard, "updated")
	writeJSON(w, http.StatusOK, hazard)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	hazard, err := s.engine.Get(r.PathValue("id"))
	if errors.Is(err, engine.ErrHazardNotFound) {
		writeError(w, http.StatusNotFound, "hazard not found")
		return
	}

	if r.URL.Query().Get("include_history") == "true" {
		writeJSON(w, http.StatusOK, struct {
			Hazard  domain.Hazard     `json:"hazard"`
			History []domain.Feedback `json:"feedback_history"`
		}{Hazard: hazard, History: hazard.History})
		return
	}
	writeJSON(w, http.StatusOK, hazard)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, errLat := parseFloatParam(q.Get("lat"))
	lon, errLon := parseFloatParam(q.Get("lon"))
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required numeric parameters")
		return
	}
	loc := domain.Geo{Lat: lat, Lon: lon}
	if !loc.Valid() {
		writeError(w, http.StatusBadRequest, "latitude/longitude out of range")
		return
	}

	radius := 500.0
	if v := q.Get("radius_meters"); v != "" {
		parsed, err := parseFloatParam(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "radius_meters must be a positive number")
			return
		}
		radius = parsed
	}

	hazards := s.engine.Nearby(loc, radius, q.Get("include_resolved") == "true")
	if hazards == nil {
		hazards = []domain.Hazard{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hazards": hazards,
		"count":   len(hazards),
	})
}

func (s *Server) handleContribution(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.UserContribution(r.PathValue("id")))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// forward best-effort publishes a snapshot to the realtime layer. The
// write already succeeded; a publish failure is logged, not surfaced.
func (s *Server) forward(ctx context.Context, h domain.Hazard, event string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, h, event); err != nil {
		s.logger.Warn("hazard update publish failed", "error", err, "hazard_id", h.ID, "event", event)
	}
}

func parseFloatParam(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
