package model

import "time"

// Outcome is the arbiter's answer to a claim attempt.
type Outcome int

const (
	// OutcomeWon means the requester now owns the call exclusively.
	OutcomeWon Outcome = iota
	// OutcomeAlreadyTaken means the call was assigned before the attempt was
	// serialized, possibly to the same driver on a retry.
	OutcomeAlreadyTaken
	// OutcomeNotFound means the call id is unknown or was canceled.
	OutcomeNotFound
)

// String returns the wire representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeWon:
		return "won"
	case OutcomeAlreadyTaken:
		return "already_taken"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ParseOutcome converts the wire representation back to an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "won":
		return OutcomeWon, true
	case "already_taken":
		return OutcomeAlreadyTaken, true
	case "not_found":
		return OutcomeNotFound, true
	default:
		return 0, false
	}
}

// ClaimRequest is sent by a driver to claim an open call. RequestID is a
// correlation id generated at claim start; every resolution path carries it so
// late or duplicate deliveries can be told apart from the current attempt.
type ClaimRequest struct {
	RequestID   string    `json:"request_id"`
	RideID      string    `json:"ride_id"`
	DriverID    string    `json:"driver_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// ClaimResult is the direct reply delivered only to the requester.
type ClaimResult struct {
	RequestID string `json:"request_id"`
	RideID    string `json:"ride_id"`
	Outcome   string `json:"outcome"`
}
