package domain

import "fmt"

// HazardStatus is the verification state of a hazard.
type HazardStatus int

const (
	// StatusUnverified is the initial state: detected but not yet verified.
	StatusUnverified HazardStatus = iota
	// StatusVerified means enough users confirmed the hazard.
	StatusVerified
	// StatusDisputed means feedback is mixed.
	StatusDisputed
	// StatusResolved means users reported the hazard no longer exists.
	StatusResolved
	// StatusExpired means the hazard aged out without any confirmation.
	StatusExpired
)

func (s HazardStatus) String() string {
	switch s {
	case StatusUnverified:
		return "unverified"
	case StatusVerified:
		return "verified"
	case StatusDisputed:
		return "disputed"
	case StatusResolved:
		return "resolved"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("HazardStatus(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler so statuses serialize as
// their wire names inside JSON payloads.
func (s HazardStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FeedbackType classifies one user's input on a hazard. It is a closed
// set: every consumer switches exhaustively over the four values, so a
// malformed wire string is rejected at parse time and can never reach
// the counter logic.
type FeedbackType int

const (
	// FeedbackConfirm asserts the hazard exists.
	FeedbackConfirm FeedbackType = iota
	// FeedbackDeny asserts the hazard does not exist.
	FeedbackDeny
	// FeedbackUpdate carries a detail edit without a confirm/deny signal.
	FeedbackUpdate
	// FeedbackResolve asserts the hazard existed but has been fixed.
	FeedbackResolve
)

func (t FeedbackType) String() string {
	switch t {
	case FeedbackConfirm:
		return "confirm"
	case FeedbackDeny:
		return "deny"
	case FeedbackUpdate:
		return "update"
	case FeedbackResolve:
		return "resolve"
	default:
		return fmt.Sprintf("FeedbackType(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t FeedbackType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseFeedbackType converts a wire string into a FeedbackType.
func ParseFeedbackType(s string) (FeedbackType, error) {
	switch s {
	case "confirm":
		return FeedbackConfirm, nil
	case "deny":
		return FeedbackDeny, nil
	case "update":
		return FeedbackUpdate, nil
	case "resolve":
		return FeedbackResolve, nil
	default:
		return 0, fmt.Errorf("unknown feedback type %q", s)
	}
}
