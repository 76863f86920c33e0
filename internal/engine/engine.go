// Package engine implements the crowd-intelligence core: deduplicating
// detection reports into canonical hazards, folding user feedback into a
// trust score and verification status, and expiring stale hazards.
//
// All state lives in memory behind a single mutex. Every logical
// operation (report, feedback, sweep) runs as one indivisible critical
// section, and every hazard handed to a caller is a deep snapshot, so no
// reader can ever observe a half-applied mutation.
package engine

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/spottr/hazard-intel/internal/domain"
	"github.com/spottr/hazard-intel/internal/observability"
)

var (
	// ErrHazardNotFound indicates an unknown hazard id.
	ErrHazardNotFound = errors.New("hazard not found")

	// ErrFeedbackTooFar indicates the submitter's location is outside the
	// proximity radius; feedback from someone who is not near the hazard
	// cannot be trusted.
	ErrFeedbackTooFar = errors.New("feedback location too far from hazard")
)

// Config holds the engine's tunable thresholds.
type Config struct {
	// VerificationThreshold is the confirmation count that marks a hazard verified.
	VerificationThreshold int
	// DenialThreshold is the denial count that marks a hazard resolved or disputed.
	DenialThreshold int
	// Expiry is how long an unconfirmed hazard lives before the sweeper removes it.
	Expiry time.Duration
	// ProximityRadiusMeters bounds both duplicate-report merging and
	// feedback eligibility.
	ProximityRadiusMeters float64
	// SweepInterval is the period of the background expiry sweeper.
	SweepInterval time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		VerificationThreshold: 3,
		DenialThreshold:       2,
		Expiry:                24 * time.Hour,
		ProximityRadiusMeters: 50,
		SweepInterval:         5 * time.Minute,
	}
}

// Stats are the process-wide aggregate counters. The per-status counters
// record "ever reached" semantics: each increments when a hazard first
// transitions into that status and is never decremented when the hazard
// later moves away.
type Stats struct {
	TotalHazards          int `json:"total_hazards"`
	VerifiedHazards       int `json:"verified_hazards"`
	ResolvedHazards       int `json:"resolved_hazards"`
	DisputedHazards       int `json:"disputed_hazards"`
	TotalFeedback         int `json:"total_feedback"`
	UniqueContributors    int `json:"unique_contributors"`
	ActiveHazards         int `json:"active_hazards"`
	VerificationThreshold int `json:"verification_threshold"`
	DenialThreshold       int `json:"denial_threshold"`
}

// Engine owns the canonical hazard set and the feedback aggregation logic.
type Engine struct {
	cfg     Config
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu           sync.Mutex
	hazards      map[string]*domain.Hazard
	userFeedback map[string][]string // user id -> hazard ids, in submission order
	stats        Stats
}

// New creates an Engine with the given configuration and time source.
func New(cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	logger.Info("crowd intelligence engine initialized",
		"verification_threshold", cfg.VerificationThreshold,
		"denial_threshold", cfg.DenialThreshold,
		"expiry", cfg.Expiry,
		"proximity_radius_m", cfg.ProximityRadiusMeters,
	)
	return &Engine{
		cfg:          cfg,
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
		hazards:      make(map[string]*domain.Hazard),
		userFeedback: make(map[string][]string),
	}
}

// Report ingests one detection. If a non-resolved hazard of the same
// class already exists within the proximity radius, the report merges
// into it: the existing hazard is returned with created=false and the
// store is not touched. Otherwise a new hazard is created.
func (e *Engine) Report(r domain.Report) (domain.Hazard, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing := e.findNearbyLocked(r.Location, r.ClassName); existing != nil {
		e.logger.Info("report merged into existing hazard",
			"report_id", r.ID, "hazard_id", existing.ID, "class", r.ClassName)
		e.metrics.ReportsMerged.Inc()
		return existing.Snapshot(), false
	}

	now := e.clock.Now()
	h := &domain.Hazard{
		ID:                r.ID,
		ClassName:         r.ClassName,
		InitialConfidence: r.Confidence,
		Location:          r.Location,
		BBox:              r.BBox,
		DetectedAt:        now,
		Status:            domain.StatusUnverified,
		ConfidenceScore:   r.Confidence,
		LastUpdated:       now,
		VerifiedBy:        make(map[string]struct{}),
		Severity:          domain.SeverityFor(r.ClassName, r.Confidence),
		ExpiresAt:         now.Add(e.cfg.Expiry),
	}

	e.hazards[h.ID] = h
	e.stats.TotalHazards++
	e.metrics.HazardsCreated.Inc()
	e.metrics.ActiveHazards.Set(float64(len(e.hazards)))

	e.logger.Info("hazard created",
		"hazard_id", h.ID,
		"class", h.ClassName,
		"lat", h.Location.Lat,
		"lon", h.Location.Lon,
		"severity", h.Severity.String(),
	)
	return h.Snapshot(), true
}

// FeedbackRequest carries one user's validated feedback submission.
type FeedbackRequest struct {
	HazardID   string
	UserID     string
	Type       domain.FeedbackType
	Location   *domain.Geo // nil when the submitter did not share a location
	Confidence float64
	Comment    string
}

// SubmitFeedback applies one user's feedback to a hazard. Validation,
// counter updates, and the score and status recomputation all happen in
// a single critical section, so concurrent readers see either none of
// it or all of it.
//
// A second submission by the same user is a no-op success returning the
// unchanged hazard, not an error.
func (e *Engine) SubmitFeedback(req FeedbackRequest) (domain.Hazard, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.hazards[req.HazardID]
	if !ok {
		e.metrics.FeedbackReceived.WithLabelValues(req.Type.String(), "not_found").Inc()
		return domain.Hazard{}, ErrHazardNotFound
	}

	if req.Location != nil {
		if dist := h.Location.DistanceMeters(*req.Location); dist > e.cfg.ProximityRadiusMeters {
			e.logger.Warn("feedback rejected, submitter too far",
				"hazard_id", h.ID, "user_id", req.UserID, "distance_m", dist)
			e.metrics.FeedbackReceived.WithLabelValues(req.Type.String(), "too_far").Inc()
			return domain.Hazard{}, ErrFeedbackTooFar
		}
	}

	if _, seen := h.VerifiedBy[req.UserID]; seen {
		e.metrics.FeedbackReceived.WithLabelValues(req.Type.String(), "duplicate").Inc()
		return h.Snapshot(), nil
	}

	now := e.clock.Now()
	h.History = append(h.History, domain.Feedback{
		UserID:     req.UserID,
		Type:       req.Type,
		Timestamp:  now,
		Location:   req.Location,
		Confidence: req.Confidence,
		Comment:    req.Comment,
	})
	h.VerifiedBy[req.UserID] = struct{}{}
	h.TotalFeedback++
	h.LastUpdated = now

	switch req.Type {
	case domain.FeedbackConfirm:
		h.Confirmations++
	case domain.FeedbackDeny:
		h.Denials++
	case domain.FeedbackResolve:
		// A resolve is a denial of continued existence.
		h.Denials++
	case domain.FeedbackUpdate:
		// Detail edit only; no confirm/deny signal.
	}

	if _, known := e.userFeedback[req.UserID]; !known {
		e.stats.UniqueContributors++
	}
	e.userFeedback[req.UserID] = append(e.userFeedback[req.UserID], h.ID)
	e.stats.TotalFeedback++

	e.recomputeLocked(h)

	e.metrics.FeedbackReceived.WithLabelValues(req.Type.String(), "accepted").Inc()
	e.logger.Info("feedback applied",
		"hazard_id", h.ID,
		"user_id", req.UserID,
		"type", req.Type.String(),
		"confirmations", h.Confirmations,
		"denials", h.Denials,
		"score", h.ConfidenceScore,
		"status", h.Status.String(),
	)
	return h.Snapshot(), nil
}

// recomputeLocked rebuilds the confidence score from scratch and re-runs
// the status machine. Callers must hold e.mu.
func (e *Engine) recomputeLocked(h *domain.Hazard) {
	if h.TotalFeedback == 0 {
		h.ConfidenceScore = h.InitialConfidence
	} else {
		confirmWeight := float64(h.Confirmations)
		denyWeight := float64(h.Denials) * 0.8

		// The AI's vote decays linearly over 24h down to a 0.3 floor, so a
		// fresh detection carries near-full weight and an old one still
		// counts for something.
		ageHours := e.clock.Now().Sub(h.DetectedAt).Hours()
		aiWeight := math.Max(0.3, 1.0-ageHours/24)

		totalWeight := confirmWeight + denyWeight + h.InitialConfidence*aiWeight
		if totalWeight == 0 {
			h.ConfidenceScore = 0
		} else {
			// Denials never appear in the numerator; they lower the score
			// purely by diluting the denominator.
			h.ConfidenceScore = (confirmWeight + h.InitialConfidence*aiWeight) / totalWeight
		}
	}

	old := h.Status
	switch {
	case h.Denials >= e.cfg.DenialThreshold:
		if h.Confirmations < h.Denials {
			h.Status = domain.StatusResolved
		} else {
			h.Status = domain.StatusDisputed
		}
	case h.Confirmations >= e.cfg.VerificationThreshold:
		h.Status = domain.StatusVerified
	case h.Denials > 0 && h.Confirmations > 0:
		h.Status = domain.StatusDisputed
	}

	// Advisory expiry: an unconfirmed hazard past its deadline reads as
	// expired immediately; physical removal is the sweeper's job.
	if !h.ExpiresAt.IsZero() && e.clock.Now().After(h.ExpiresAt) && h.Confirmations == 0 {
		h.Status = domain.StatusExpired
	}

	if h.Status != old {
		switch h.Status {
		case domain.StatusVerified:
			e.stats.VerifiedHazards++
		case domain.StatusResolved:
			e.stats.ResolvedHazards++
		case domain.StatusDisputed:
			e.stats.DisputedHazards++
		case domain.StatusUnverified, domain.StatusExpired:
		}
		e.metrics.StatusTransitions.WithLabelValues(h.Status.String()).Inc()
		e.logger.Info("hazard status changed",
			"hazard_id", h.ID,
			"from", old.String(),
			"to", h.Status.String(),
		)
	}
}

// findNearbyLocked returns an existing same-class hazard within the
// proximity radius, skipping resolved ones so a fixed hazard that
// reappears gets a fresh record. Callers must hold e.mu.
func (e *Engine) findNearbyLocked(loc domain.Geo, className string) *domain.Hazard {
	for _, h := range e.hazards {
		if h.ClassName != className || h.Status == domain.StatusResolved {
			continue
		}
		if h.Location.DistanceMeters(loc) <= e.cfg.ProximityRadiusMeters {
			return h
		}
	}
	return nil
}
