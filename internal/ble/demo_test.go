package ble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indoornav/internal/position"
)

type lastSample map[string]int

func (l lastSample) Ingest(id string, rssi int) float64 {
	l[id] = rssi
	return float64(rssi)
}

var demoBeacons = map[string][2]float64{
	"b1": {0, 0},
	"b2": {10, 0},
	"b3": {0, 10},
}

func TestDemoPositionAtWalksBackAndForth(t *testing.T) {
	t.Parallel()

	d := NewDemoSource(lastSample{}, demoBeacons, position.DefaultPathLoss(), [][2]float64{{0, 0}, {4, 0}, {4, 3}})
	d.speed = 1

	tests := []struct {
		t      float64
		wx, wy float64
	}{
		{0, 0, 0},
		{2, 2, 0},
		{5, 4, 1},
		{7, 4, 3},
		{9, 4, 1},  // on the way back
		{14, 0, 0}, // back at the start
	}
	for _, tt := range tests {
		x, y := d.PositionAt(tt.t)
		assert.InDelta(t, tt.wx, x, 1e-9, "t=%v", tt.t)
		assert.InDelta(t, tt.wy, y, 1e-9, "t=%v", tt.t)
	}
}

func TestDemoEmitMatchesPathLoss(t *testing.T) {
	t.Parallel()

	sink := lastSample{}
	model := position.DefaultPathLoss()
	d := NewDemoSource(sink, demoBeacons, model, [][2]float64{{3, 4}}).WithNoise(0, 1)

	d.Emit(d.PositionAt(12))
	require.Len(t, sink, 3)
	assert.Equal(t, int(math.Round(model.RSSI(5))), sink["b1"])
	assert.Equal(t, int(math.Round(model.RSSI(math.Hypot(7, 4)))), sink["b2"])
}

func TestScannerNormalisesAddresses(t *testing.T) {
	t.Parallel()

	s := NewScanner(lastSample{}, []string{"aa:bb:cc:dd:ee:ff", " 4CCAF6FF-3A30-9D14-ADAE-B08A6B7892E7"}, nil)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", s.known["AA:BB:CC:DD:EE:FF"])
	assert.Contains(t, s.known, "4CCAF6FF-3A30-9D14-ADAE-B08A6B7892E7")
}
