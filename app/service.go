// Package app wires the dispatcher service together from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/noachFrank/DriverApp-sub001/api/calls"
	"github.com/noachFrank/DriverApp-sub001/config"
	"github.com/noachFrank/DriverApp-sub001/core/arbiter"
	"github.com/noachFrank/DriverApp-sub001/core/arbiter/logging"
	coremetrics "github.com/noachFrank/DriverApp-sub001/core/metrics"
	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/core/registry"
	"github.com/noachFrank/DriverApp-sub001/infra/logger"
	"github.com/noachFrank/DriverApp-sub001/infra/metrics"
	"github.com/noachFrank/DriverApp-sub001/infra/mqtt"
	"github.com/noachFrank/DriverApp-sub001/infra/redisreg"
)

// claimRouter lets the MQTT connection come up before the arbiter exists.
// Claims arriving in that window are dropped; the sender times out and retries.
type claimRouter struct {
	mu sync.RWMutex
	h  mqtt.ClaimHandler
}

func (r *claimRouter) set(h mqtt.ClaimHandler) {
	r.mu.Lock()
	r.h = h
	r.mu.Unlock()
}

func (r *claimRouter) HandleClaim(ctx context.Context, req model.ClaimRequest) {
	r.mu.RLock()
	h := r.h
	r.mu.RUnlock()
	if h != nil {
		h.HandleClaim(ctx, req)
	}
}

// Service orchestrates the arbiter, its transports and the REST API.
type Service struct {
	Arbiter *arbiter.Arbiter

	conn        *mqtt.DispatcherConn
	api         *http.Server
	store       registry.Store
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	store, err := newStore(cfg.Registry)
	if err != nil {
		return nil, err
	}

	router := &claimRouter{}
	conn, err := mqtt.NewDispatcherConn(cfg.MQTT, router)
	if err != nil {
		return nil, fmt.Errorf("mqtt dispatcher: %w", err)
	}

	sink, err := newSink(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	arb, err := arbiter.New(store, conn, logg, sink)
	if err != nil {
		return nil, fmt.Errorf("arbiter: %w", err)
	}
	logStore, err := newLogStore(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("log store: %w", err)
	}
	arb.SetLogStore(logStore)
	router.set(arb)

	api := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           calls.NewServer(cfg.API, arb),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Service{
		Arbiter:     arb,
		conn:        conn,
		api:         api,
		store:       store,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

func newStore(cfg config.RegistryConfig) (registry.Store, error) {
	switch cfg.Backend {
	case "redis":
		s, err := redisreg.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis registry: %w", err)
		}
		return s, nil
	default:
		return registry.NewMemoryStore(), nil
	}
}

func newLogStore(cfg config.LoggingConfig) (logging.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return logging.NewSQLiteStore(cfg.Path)
	default:
		return logging.NewJSONLStore(cfg.Path)
	}
}

func newSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return metrics.NewMultiSink(sinks...), nil
	}
}

// Run starts the HTTP servers and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go func() {
		s.log.Infof("api listening on %s", s.api.Addr)
		if err := s.api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("api server: %v", err)
		}
	}()
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.api.Shutdown(shutdownCtx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	_ = s.conn.Close()
	if c, ok := s.store.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	return s.Arbiter.Close()
}
