package arbiter

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	claimsDecided   *prometheus.CounterVec
	broadcastsSent  *prometheus.CounterVec
	openCalls       prometheus.Gauge
	notifySuccess   prometheus.Counter
	notifyFailure   prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Counter, prometheus.Counter) {
	claims := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_decided_total",
			Help: "Number of claim attempts decided by the arbiter",
		},
		[]string{"outcome"},
	)
	broadcasts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "call_broadcasts_total",
			Help: "Number of call state broadcasts emitted",
		},
		[]string{"type"},
	)
	open := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "open_calls",
			Help: "Number of calls currently open for claiming",
		},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_success_total",
			Help: "Number of successful notifier operations",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_failure_total",
			Help: "Number of failed notifier operations",
		},
	)
	return claims, broadcasts, open, suc, fail
}

func init() {
	claimsDecided, broadcastsSent, openCalls, notifySuccess, notifyFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers arbiter metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(claimsDecided, broadcastsSent, openCalls, notifySuccess, notifyFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	claimsDecided, broadcastsSent, openCalls, notifySuccess, notifyFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
