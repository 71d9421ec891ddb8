package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/noachFrank/DriverApp-sub001/core/metrics"
)

// PromSink records claim decisions in Prometheus metrics.
type PromSink struct {
	claims  *prometheus.CounterVec
	latency *prometheus.HistogramVec
	open    prometheus.Gauge
}

// NewPromSink registers claim metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claim_decisions_total",
		Help: "Total number of decided claim attempts",
	}, []string{"driver_id", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "claim_decision_latency_seconds",
		Help:    "Time between claim receipt and decision",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	open := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "open_call_pool_size",
		Help: "Number of calls currently claimable",
	})

	if err := reg.Register(claims); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			claims = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(open); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			open = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{claims: claims, latency: latency, open: open}, nil
}

// RecordClaims increments the counter and observes latency per decision.
func (s *PromSink) RecordClaims(records []coremetrics.ClaimRecord) error {
	for _, r := range records {
		s.claims.WithLabelValues(r.DriverID, r.Outcome.String()).Inc()
		s.latency.WithLabelValues(r.Outcome.String()).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordOpenCalls sets the gauge to the current open pool size.
func (s *PromSink) RecordOpenCalls(n int) error {
	if s.open != nil {
		s.open.Set(float64(n))
	}
	return nil
}

// StartPromServer exposes the default registry on /metrics until the context
// is canceled. A dedicated ServeMux avoids interfering with other handlers.
func StartPromServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
