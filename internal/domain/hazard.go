package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Feedback is an immutable record of one user's input on one hazard. It
// is owned by its parent hazard's history and never mutated after append.
type Feedback struct {
	UserID     string       `json:"user_id"`
	Type       FeedbackType `json:"feedback_type"`
	Timestamp  time.Time    `json:"timestamp"`
	Location   *Geo         `json:"location,omitempty"`
	Confidence float64      `json:"confidence"`
	Comment    string       `json:"comment,omitempty"`
}

// Hazard is the canonical record of a real-world road hazard,
// deduplicated across reports. The identity and detection fields are
// fixed at creation; the crowd-intelligence fields are owned by the
// engine and mutated only inside its critical sections.
type Hazard struct {
	ID                string
	ClassName         string
	InitialConfidence float64
	Location          Geo
	BBox              [4]float64
	DetectedAt        time.Time

	Status          HazardStatus
	Confirmations   int
	Denials         int
	TotalFeedback   int
	ConfidenceScore float64
	LastUpdated     time.Time
	History         []Feedback
	VerifiedBy      map[string]struct{}

	Severity  Severity
	ExpiresAt time.Time
}

// Snapshot returns a deep copy safe to hand to callers outside the
// engine's lock. The history slice and verified-by set are copied so no
// reader can observe later mutations.
func (h *Hazard) Snapshot() Hazard {
	out := *h
	out.History = make([]Feedback, len(h.History))
	copy(out.History, h.History)
	out.VerifiedBy = make(map[string]struct{}, len(h.VerifiedBy))
	for id := range h.VerifiedBy {
		out.VerifiedBy[id] = struct{}{}
	}
	return out
}

// crowdIntelligence is the nested aggregate block in the wire shape.
type crowdIntelligence struct {
	Confirmations   int     `json:"confirmations"`
	Denials         int     `json:"denials"`
	TotalFeedback   int     `json:"total_feedback"`
	ConfidenceScore float64 `json:"confidence_score"`
	VerifiedByCount int     `json:"verified_by_count"`
}

type hazardJSON struct {
	HazardID           string            `json:"hazard_id"`
	ClassName          string            `json:"class_name"`
	InitialConfidence  float64           `json:"initial_confidence"`
	Location           Geo               `json:"location"`
	BBox               [4]float64        `json:"bbox"`
	DetectionTimestamp time.Time         `json:"detection_timestamp"`
	Status             HazardStatus      `json:"status"`
	CrowdIntelligence  crowdIntelligence `json:"crowd_intelligence"`
	LastUpdated        time.Time         `json:"last_updated"`
	Severity           Severity          `json:"severity"`
	ExpiresAt          *time.Time        `json:"expires_at"`
}

// MarshalJSON serializes the hazard in the wire shape consumed by
// clients: confidences rounded to 3 decimals, bbox coordinates to 2,
// and the crowd aggregates nested under crowd_intelligence. Feedback
// history is deliberately excluded; callers that need it marshal
// History separately.
func (h Hazard) MarshalJSON() ([]byte, error) {
	var expires *time.Time
	if !h.ExpiresAt.IsZero() {
		t := h.ExpiresAt
		expires = &t
	}
	return json.Marshal(hazardJSON{
		HazardID:          h.ID,
		ClassName:         h.ClassName,
		InitialConfidence: roundTo(h.InitialConfidence, 3),
		Location:          h.Location,
		BBox: [4]float64{
			roundTo(h.BBox[0], 2),
			roundTo(h.BBox[1], 2),
			roundTo(h.BBox[2], 2),
			roundTo(h.BBox[3], 2),
		},
		DetectionTimestamp: h.DetectedAt,
		Status:             h.Status,
		CrowdIntelligence: crowdIntelligence{
			Confirmations:   h.Confirmations,
			Denials:         h.Denials,
			TotalFeedback:   h.TotalFeedback,
			ConfidenceScore: roundTo(h.ConfidenceScore, 3),
			VerifiedByCount: len(h.VerifiedBy),
		},
		LastUpdated: h.LastUpdated,
		Severity:    h.Severity,
		ExpiresAt:   expires,
	})
}

func roundTo(v float64, decimals int) float64 {
	pow := math.Pow10(decimals)
	return math.Round(v*pow) / pow
}
