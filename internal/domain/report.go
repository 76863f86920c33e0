package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RawDetection represents the flat JSON structure published by mobile
// clients for each model detection. BBox is image-space [x1,y1,x2,y2].
type RawDetection struct {
	DetectionID string    `json:"detection_id,omitempty"`
	ClassName   string    `json:"class_name"`
	Confidence  float64   `json:"confidence"`
	BBox        []float64 `json:"bbox"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	UserID      string    `json:"user_id,omitempty"`
}

// RawMessage represents an unprocessed message from the source topic.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Report is the validated form of a detection, ready for the engine.
type Report struct {
	ID         string
	ClassName  string
	Confidence float64
	Location   Geo
	BBox       [4]float64
	UserID     string
	ReportedAt time.Time
}

// ParseReport deserializes and validates a raw detection message.
// Malformed detections are rejected here so the engine only ever sees
// well-formed input. A missing detection_id gets a generated UUID; the
// message timestamp (set by the client at capture time) becomes the
// report time.
func ParseReport(raw RawMessage) (Report, error) {
	var rec RawDetection
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Report{}, fmt.Errorf("parse detection: %w", err)
	}

	if rec.ClassName == "" {
		return Report{}, fmt.Errorf("detection missing class_name")
	}
	if rec.Confidence < 0 || rec.Confidence > 1 {
		return Report{}, fmt.Errorf("detection confidence %v out of range [0,1]", rec.Confidence)
	}
	loc := Geo{Lat: rec.Lat, Lon: rec.Lon}
	if !loc.Valid() {
		return Report{}, fmt.Errorf("detection location (%v, %v) out of range", rec.Lat, rec.Lon)
	}
	if len(rec.BBox) != 4 {
		return Report{}, fmt.Errorf("detection bbox has %d coordinates, want 4", len(rec.BBox))
	}

	id := rec.DetectionID
	if id == "" {
		id = uuid.NewString()
	}

	return Report{
		ID:         id,
		ClassName:  rec.ClassName,
		Confidence: rec.Confidence,
		Location:   loc,
		BBox:       [4]float64{rec.BBox[0], rec.BBox[1], rec.BBox[2], rec.BBox[3]},
		UserID:     rec.UserID,
		ReportedAt: raw.Timestamp,
	}, nil
}
