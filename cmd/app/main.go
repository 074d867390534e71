package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"indoornav/internal/ble"
	"indoornav/internal/config"
	"indoornav/internal/mosquitto"
	"indoornav/internal/position"
)

var (
	flagConfig   string
	flagLogLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "indoornav",
		Short: "Indoor positioning and navigation over BLE beacons",
		Long: `indoornav turns beacon RSSI samples into a smoothed position on a floor
plan and draws routes from an external path planning service over it.

Samples come from the MQTT broker, the local Bluetooth adapter or a
built-in walker for running without hardware (--source demo).`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "configs/site.yaml", "site configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(serveCmd(), locateCmd(), trackCmd(), routeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(flagLogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadSite reads the configuration, applies MOSQUITTO_* and ROUTING_URL
// overrides and validates the result.
func loadSite() (*config.Site, error) {
	site, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	site.ApplyEnv(os.Getenv)
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", flagConfig, err)
	}
	return site, nil
}

type pipeline struct {
	site    *config.Site
	assets  *config.Assets
	service *position.PositionService
}

func newPipeline() (*pipeline, error) {
	site, err := loadSite()
	if err != nil {
		return nil, err
	}
	assets, err := site.LoadAssets()
	if err != nil {
		return nil, err
	}
	ps := position.NewPositionService(site.PositionConfig(assets.Minimizer()), site.BeaconCoords())
	return &pipeline{site: site, assets: assets, service: ps}, nil
}

const (
	sourceMQTT = "mqtt"
	sourceBLE  = "ble"
	sourceDemo = "demo"
)

// startSource feeds samples into the pipeline until ctx is cancelled.
func (p *pipeline) startSource(ctx context.Context, source string, log *slog.Logger) error {
	switch strings.ToLower(source) {
	case sourceMQTT:
		handler := mosquitto.NewHandler(p.service, log)
		client, err := mosquitto.NewClient(p.site.MQTTConfig(), handler, log)
		if err != nil {
			return fmt.Errorf("creating broker client: %w", err)
		}
		log.Info("service connected to broker", "broker", p.site.MQTT.Broker)
		go func() {
			<-ctx.Done()
			client.Close()
		}()
		return nil

	case sourceBLE:
		scanner := ble.NewScanner(p.service, p.site.BeaconIDs(), log)
		go func() {
			if err := scanner.Run(ctx); err != nil {
				log.Error("BLE scanner stopped", "err", err)
			}
		}()
		return nil

	case sourceDemo:
		waypoints := p.site.Demo.Waypoints
		if len(waypoints) == 0 {
			b := p.assets.Mapper.Bounds()
			waypoints = defaultWalk(b.Min, b.Max)
		}
		demo := ble.NewDemoSource(p.service, p.site.BeaconCoords(), p.site.PositionConfig(nil).PathLoss, waypoints).
			WithNoise(p.site.Demo.Noise, time.Now().UnixNano())
		log.Info("demo source started", "waypoints", len(waypoints))
		go demo.Run(ctx)
		return nil
	}
	return fmt.Errorf("unknown source %q (want %s, %s or %s)", source, sourceMQTT, sourceBLE, sourceDemo)
}

// defaultWalk is a loop around the middle of the mapped area.
func defaultWalk(lo, hi [2]float64) [][2]float64 {
	w, h := hi[0]-lo[0], hi[1]-lo[1]
	return [][2]float64{
		{lo[0] + w*0.25, lo[1] + h*0.25},
		{lo[0] + w*0.75, lo[1] + h*0.25},
		{lo[0] + w*0.75, lo[1] + h*0.75},
		{lo[0] + w*0.25, lo[1] + h*0.75},
		{lo[0] + w*0.25, lo[1] + h*0.25},
	}
}
