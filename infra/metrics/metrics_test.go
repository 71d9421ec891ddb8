package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/noachFrank/DriverApp-sub001/core/metrics"
	"github.com/noachFrank/DriverApp-sub001/core/model"
)

func TestInfluxSink_RecordClaims(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	rec := coremetrics.ClaimRecord{
		RideID:    "ride-1",
		DriverID:  "drv-1",
		RequestID: "req-1",
		Outcome:   model.OutcomeWon,
		Latency:   1500 * time.Microsecond,
		DecidedAt: now,
	}
	if err := sink.RecordClaims([]coremetrics.ClaimRecord{rec}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("claim_decision").
		AddTag("ride_id", "ride-1").
		AddTag("driver_id", "drv-1").
		AddTag("outcome", "won").
		AddTag("component", "arbiter").
		AddField("latency_ms", 1.5).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

func TestPromSinkRecordsClaimsAndOpenPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	records := []coremetrics.ClaimRecord{
		{RideID: "ride-1", DriverID: "drv-1", Outcome: model.OutcomeWon, Latency: time.Millisecond},
		{RideID: "ride-1", DriverID: "drv-2", Outcome: model.OutcomeAlreadyTaken, Latency: time.Millisecond},
	}
	if err := sink.RecordClaims(records); err != nil {
		t.Fatalf("record claims: %v", err)
	}
	ps := sink.(*PromSink)
	if got := testutil.ToFloat64(ps.claims.WithLabelValues("drv-1", "won")); got != 1 {
		t.Fatalf("won counter = %v", got)
	}
	if got := testutil.ToFloat64(ps.claims.WithLabelValues("drv-2", "already_taken")); got != 1 {
		t.Fatalf("already_taken counter = %v", got)
	}
	if err := ps.RecordOpenCalls(7); err != nil {
		t.Fatalf("record open: %v", err)
	}
	if got := testutil.ToFloat64(ps.open); got != 7 {
		t.Fatalf("open gauge = %v", got)
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
}

type countSink struct {
	claims     int
	broadcasts int
	open       int
}

func (c *countSink) RecordClaims([]coremetrics.ClaimRecord) error { c.claims++; return nil }
func (c *countSink) RecordBroadcast(coremetrics.BroadcastRecord) error {
	c.broadcasts++
	return nil
}
func (c *countSink) RecordOpenCalls(int) error { c.open++; return nil }

type claimsOnlySink struct {
	claims int
}

func (c *claimsOnlySink) RecordClaims([]coremetrics.ClaimRecord) error { c.claims++; return nil }

func TestMultiSink(t *testing.T) {
	full := &countSink{}
	partial := &claimsOnlySink{}
	m := NewMultiSink(full, partial)

	if err := m.RecordClaims(nil); err != nil {
		t.Fatalf("record claims: %v", err)
	}
	if err := m.RecordBroadcast(coremetrics.BroadcastRecord{Type: "call_assigned"}); err != nil {
		t.Fatalf("record broadcast: %v", err)
	}
	if err := m.RecordOpenCalls(3); err != nil {
		t.Fatalf("record open: %v", err)
	}
	if full.claims != 1 || full.broadcasts != 1 || full.open != 1 {
		t.Fatalf("full sink counts: %+v", full)
	}
	if partial.claims != 1 {
		t.Fatalf("partial sink should only see claims: %+v", partial)
	}
}
