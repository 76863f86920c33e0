package domain

// Severity is the qualitative risk tier of a hazard class. It is derived
// once at creation and independent of the crowd confidence score.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "medium"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// baseSeverity maps detection classes to their base tier. Classes the
// model was not trained on fall back to medium.
var baseSeverity = map[string]Severity{
	"Pothole":      SeverityHigh,
	"SpeedBreaker": SeverityMedium,
	"Debris":       SeverityCritical,
	"RoadCrack":    SeverityLow,
}

// SeverityFor returns the severity tier for a detection. Confidence above
// 0.8 escalates the base tier one level, capped at critical.
func SeverityFor(className string, confidence float64) Severity {
	sev, ok := baseSeverity[className]
	if !ok {
		sev = SeverityMedium
	}
	if confidence > 0.8 && sev < SeverityCritical {
		sev++
	}
	return sev
}
