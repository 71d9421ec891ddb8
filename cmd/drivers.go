package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/noachFrank/DriverApp-sub001/auth"
	"github.com/noachFrank/DriverApp-sub001/client"
	"github.com/noachFrank/DriverApp-sub001/config"
	"github.com/noachFrank/DriverApp-sub001/simulator"
)

var (
	fleetSize     int
	fleetSkipRate float64
	fleetMaxDelay time.Duration
	fleetHold     time.Duration
	fleetAPI      string
)

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "Run a fleet of simulated drivers",
	RunE:  runDrivers,
}

func init() {
	driversCmd.Flags().IntVar(&fleetSize, "size", 10, "number of simulated drivers")
	driversCmd.Flags().Float64Var(&fleetSkipRate, "skip-rate", 0.3, "probability a driver ignores a call")
	driversCmd.Flags().DurationVar(&fleetMaxDelay, "max-delay", 500*time.Millisecond, "maximum reaction delay before claiming")
	driversCmd.Flags().DurationVar(&fleetHold, "hold", 30*time.Second, "time a driver stays busy after winning")
	driversCmd.Flags().StringVar(&fleetAPI, "api", "http://localhost:8080", "dispatcher API base URL")
	rootCmd.AddCommand(driversCmd)
}

func runDrivers(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var tokens client.TokenSource
	if cfg.Auth.AuthURL != "" {
		tokens = auth.NewClientCred(cfg.Auth)
	}

	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = ""
	fleet := simulator.NewFleet(simulator.FleetConfig{
		Size:         fleetSize,
		MQTT:         mqttCfg,
		APIBase:      fleetAPI,
		Tokens:       tokens,
		Strategy:     simulator.RandomClaim{MaxDelay: fleetMaxDelay, SkipRate: fleetSkipRate},
		ClaimTimeout: time.Duration(cfg.Dispatch.ClaimTimeoutSeconds) * time.Second,
		Hold:         fleetHold,
	})

	err = fleet.Run(ctx)
	claimed, won, lost, failed := fleet.Report()
	cmd.Printf("claimed=%d won=%d lost=%d failed=%d\n", claimed, won, lost, failed)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
