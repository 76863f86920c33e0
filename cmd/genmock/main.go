// Command genmock generates a deterministic JSON fixture of mock
// detection reports for local runs and test suites. It uses the actual
// domain package so the fixture stays valid against the real parser.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/detections.json -count 50
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/spottr/hazard-intel/internal/domain"
)

// Detections cluster around a fixed reference point so that runs against
// the fixture exercise both dedup-merge (same cluster) and distinct
// hazard creation (different clusters).
var center = domain.Geo{Lat: 12.9716, Lon: 77.5946}

var classes = []string{"Pothole", "SpeedBreaker", "Debris", "RoadCrack"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the detection fixture")
	count := flag.Int("count", 50, "number of detections to generate")
	seed := flag.Int64("seed", 42, "random seed, fixed for reproducible fixtures")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	rng := rand.New(rand.NewSource(*seed))

	detections := make([]domain.RawDetection, 0, *count)
	for i := 0; i < *count; i++ {
		// ~10 clusters, each a few hundred meters apart; jitter inside a
		// cluster stays well under the 50m merge radius.
		cluster := i % 10
		lat := center.Lat + float64(cluster)*0.005 + rng.Float64()*0.0002
		lon := center.Lon + float64(cluster)*0.005 + rng.Float64()*0.0002

		x1 := rng.Float64() * 500
		y1 := rng.Float64() * 300

		detections = append(detections, domain.RawDetection{
			DetectionID: fmt.Sprintf("det-%04d", i),
			ClassName:   classes[rng.Intn(len(classes))],
			Confidence:  0.25 + rng.Float64()*0.75,
			BBox:        []float64{x1, y1, x1 + 40 + rng.Float64()*120, y1 + 30 + rng.Float64()*90},
			Lat:         lat,
			Lon:         lon,
			UserID:      fmt.Sprintf("user-%02d", rng.Intn(20)),
		})
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(detections, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(*out, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}

	fmt.Printf("wrote %d detections to %s\n", len(detections), *out)
	return nil
}
