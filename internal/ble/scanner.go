package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tinygo.org/x/bluetooth"
)

// Ingester receives raw beacon samples.
type Ingester interface {
	Ingest(beaconID string, rssi int) float64
}

// Scanner listens to BLE advertisements on the local adapter and forwards
// the RSSI of configured beacons.
type Scanner struct {
	adapter *bluetooth.Adapter
	known   map[string]string // normalised address -> configured beacon id
	sink    Ingester
	log     *slog.Logger
}

func NewScanner(sink Ingester, beaconIDs []string, log *slog.Logger) *Scanner {
	known := make(map[string]string, len(beaconIDs))
	for _, id := range beaconIDs {
		known[normalise(id)] = id
	}
	return &Scanner{
		adapter: bluetooth.DefaultAdapter,
		known:   known,
		sink:    sink,
		log:     log,
	}
}

func normalise(addr string) string {
	return strings.ToUpper(strings.TrimSpace(addr))
}

// Run scans until ctx is cancelled. Advertisements from unknown devices
// are ignored.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable BLE adapter: %w (try running with sudo or setcap cap_net_admin+ep)", err)
	}

	go func() {
		<-ctx.Done()
		_ = s.adapter.StopScan()
	}()

	s.log.Info("BLE scan started", "beacons", len(s.known))
	err := s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		id, ok := s.known[normalise(result.Address.String())]
		if !ok {
			return
		}
		s.sink.Ingest(id, int(result.RSSI))
	})
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("BLE scan: %w", err)
	}
	return nil
}
