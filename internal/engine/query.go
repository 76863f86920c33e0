package engine

import (
	"sort"

	"github.com/spottr/hazard-intel/internal/domain"
)

// Nearby returns hazards within radiusMeters of loc, highest confidence
// score first. Resolved and expired hazards are filtered out unless
// includeResolved is set. Every element is an independent snapshot.
func (e *Engine) Nearby(loc domain.Geo, radiusMeters float64, includeResolved bool) []domain.Hazard {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Hazard
	for _, h := range e.hazards {
		if !includeResolved &&
			(h.Status == domain.StatusResolved || h.Status == domain.StatusExpired) {
			continue
		}
		if h.Location.DistanceMeters(loc) <= radiusMeters {
			out = append(out, h.Snapshot())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	return out
}

// Get returns a snapshot of one hazard, or ErrHazardNotFound.
func (e *Engine) Get(hazardID string) (domain.Hazard, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.hazards[hazardID]
	if !ok {
		return domain.Hazard{}, ErrHazardNotFound
	}
	return h.Snapshot(), nil
}

// UserContribution summarizes one user's feedback activity for
// reputation display. Reputation is 5 points per feedback, capped at 100.
type UserContribution struct {
	UserID          string   `json:"user_id"`
	TotalFeedback   int      `json:"total_feedback"`
	ReputationScore int      `json:"reputation_score"`
	HazardIDs       []string `json:"hazards_contributed"`
}

// UserContribution returns the contribution summary for a user. Unknown
// users get a zero summary rather than an error.
func (e *Engine) UserContribution(userID string) UserContribution {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := e.userFeedback[userID]
	out := UserContribution{
		UserID:        userID,
		TotalFeedback: len(ids),
		HazardIDs:     make([]string, len(ids)),
	}
	copy(out.HazardIDs, ids)

	out.ReputationScore = len(ids) * 5
	if out.ReputationScore > 100 {
		out.ReputationScore = 100
	}
	return out
}

// Stats returns the aggregate counters plus the live hazard count and
// the configured thresholds.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.stats
	s.ActiveHazards = len(e.hazards)
	s.VerificationThreshold = e.cfg.VerificationThreshold
	s.DenialThreshold = e.cfg.DenialThreshold
	return s
}
