package model

import "time"

// CallState describes the lifecycle state of a dispatch call.
type CallState int

const (
	CallOpen CallState = iota
	CallAssigned
	CallCanceled
)

// String returns a human-readable representation of the call state.
func (s CallState) String() string {
	switch s {
	case CallOpen:
		return "open"
	case CallAssigned:
		return "assigned"
	case CallCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// CallAttributes carries the display and business fields of a call. The
// coordination core never interprets them; they travel with the snapshot
// unchanged.
type CallAttributes struct {
	PickupAddress  string    `json:"pickup_address"`
	DropoffAddress string    `json:"dropoff_address"`
	PriceCents     int64     `json:"price_cents"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}

// Call is a claimable unit of work held by the dispatch authority.
type Call struct {
	ID         string         `json:"id"`
	State      CallState      `json:"state"`
	AssignedTo string         `json:"assigned_to,omitempty"` // set only when State == CallAssigned
	Attributes CallAttributes `json:"attributes"`
	CreatedAt  time.Time      `json:"created_at"`
}

// IsOpen reports whether the call is eligible for claiming.
func (c Call) IsOpen() bool { return c.State == CallOpen }
