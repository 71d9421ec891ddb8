package metrics

import coremetrics "github.com/noachFrank/DriverApp-sub001/core/metrics"

// MultiSink fans claim records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordClaims forwards the records to all sinks, returning the first error encountered.
func (m *MultiSink) RecordClaims(records []coremetrics.ClaimRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordClaims(records); err != nil {
			return err
		}
	}
	return nil
}

// RecordBroadcast forwards broadcast events to sinks that support them.
func (m *MultiSink) RecordBroadcast(rec coremetrics.BroadcastRecord) error {
	for _, s := range m.Sinks {
		if br, ok := s.(coremetrics.BroadcastRecorder); ok {
			if err := br.RecordBroadcast(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOpenCalls forwards the open pool size to sinks that track it.
func (m *MultiSink) RecordOpenCalls(n int) error {
	for _, s := range m.Sinks {
		if or, ok := s.(coremetrics.OpenCallsRecorder); ok {
			if err := or.RecordOpenCalls(n); err != nil {
				return err
			}
		}
	}
	return nil
}
