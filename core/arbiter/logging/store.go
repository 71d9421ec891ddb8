package logging

import (
	"context"
	"time"
)

// Record captures one claim decision made by the arbiter.
type Record struct {
	Timestamp time.Time     `json:"timestamp"`
	RideID    string        `json:"ride_id"`
	DriverID  string        `json:"driver_id"`
	RequestID string        `json:"request_id"`
	Outcome   string        `json:"outcome"`
	Latency   time.Duration `json:"latency_ns"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start    time.Time
	End      time.Time
	RideID   string
	DriverID string
}

// Matches reports whether the record passes the query filters.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RideID != "" && r.RideID != q.RideID {
		return false
	}
	if q.DriverID != "" && r.DriverID != q.DriverID {
		return false
	}
	return true
}

// Store persists claim decisions and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
