package metrics

import (
	"time"

	"github.com/noachFrank/DriverApp-sub001/core/model"
)

// ClaimRecord represents one decided claim attempt to be recorded.
type ClaimRecord struct {
	RideID    string
	DriverID  string
	RequestID string
	Outcome   model.Outcome
	Latency   time.Duration
	DecidedAt time.Time
}

// MetricsSink records claim decisions for observability purposes.
type MetricsSink interface {
	RecordClaims(records []ClaimRecord) error
}

// BroadcastRecord captures one emitted call state broadcast.
type BroadcastRecord struct {
	Type string
	Time time.Time
}

// BroadcastRecorder records broadcast events. Sinks implement it optionally.
type BroadcastRecorder interface {
	RecordBroadcast(rec BroadcastRecord) error
}

// OpenCallsRecorder records the size of the open pool. Optional.
type OpenCallsRecorder interface {
	RecordOpenCalls(n int) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordClaims([]ClaimRecord) error        { return nil }
func (NopSink) RecordBroadcast(BroadcastRecord) error   { return nil }
func (NopSink) RecordOpenCalls(int) error               { return nil }
