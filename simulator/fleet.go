package simulator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noachFrank/DriverApp-sub001/client"
	"github.com/noachFrank/DriverApp-sub001/infra/logger"
	"github.com/noachFrank/DriverApp-sub001/infra/mqtt"
)

// FleetConfig holds parameters for bulk driver generation.
type FleetConfig struct {
	Size         int
	MQTT         mqtt.Config
	APIBase      string
	Tokens       client.TokenSource
	Strategy     ClaimStrategy
	ClaimTimeout time.Duration
	Hold         time.Duration
}

// Fleet runs Size simulated drivers with ids drv0001..drvNNNN against a real
// broker and API.
type Fleet struct {
	cfg     FleetConfig
	Drivers []*SimulatedDriver
	log     logger.Logger
}

func NewFleet(cfg FleetConfig) *Fleet {
	if cfg.Strategy == nil {
		cfg.Strategy = RandomClaim{MaxDelay: 500 * time.Millisecond, SkipRate: 0.3}
	}
	return &Fleet{cfg: cfg, log: logger.New("fleet")}
}

// Run connects every driver and blocks until ctx is done or a driver fails.
func (f *Fleet) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < f.cfg.Size; i++ {
		id := fmt.Sprintf("drv%04d", i+1)
		conn, err := mqtt.NewDriverConn(f.cfg.MQTT, id)
		if err != nil {
			return fmt.Errorf("%s: connect: %w", id, err)
		}
		fetcher := client.NewHTTPFetcher(f.cfg.APIBase, f.cfg.Tokens)
		drv, err := client.NewDriver(id, conn, fetcher, f.cfg.ClaimTimeout, logger.New("driver"))
		if err != nil {
			return fmt.Errorf("%s: driver: %w", id, err)
		}
		sim := NewSimulatedDriver(drv, f.cfg.Strategy)
		sim.Hold = f.cfg.Hold
		f.Drivers = append(f.Drivers, sim)

		g.Go(func() error {
			defer func() { _ = drv.Close() }()
			return drv.Run(ctx)
		})
		g.Go(func() error {
			sim.Run(ctx)
			return nil
		})
	}
	f.log.Infof("fleet of %d drivers running", f.cfg.Size)
	return g.Wait()
}

// Report sums the outcome counters across the fleet.
func (f *Fleet) Report() (claimed, won, lost, failed int64) {
	for _, d := range f.Drivers {
		claimed += d.Stats.Claimed.Load()
		won += d.Stats.Won.Load()
		lost += d.Stats.Lost.Load()
		failed += d.Stats.Failed.Load()
	}
	return
}
