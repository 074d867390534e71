package ble

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"indoornav/internal/position"
)

// DemoSource emits synthetic RSSI for a receiver walking back and forth
// along a list of waypoints, for running without hardware.
type DemoSource struct {
	beacons   map[string][2]float64
	ids       []string
	model     position.PathLoss
	waypoints [][2]float64
	speed     float64 // m/s
	noise     float64 // dBm standard deviation
	interval  time.Duration
	sink      Ingester
	rng       *rand.Rand
}

func NewDemoSource(sink Ingester, beacons map[string][2]float64, model position.PathLoss, waypoints [][2]float64) *DemoSource {
	ids := make([]string, 0, len(beacons))
	for id := range beacons {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &DemoSource{
		beacons:   beacons,
		ids:       ids,
		model:     model,
		waypoints: waypoints,
		speed:     0.8,
		noise:     2.0,
		interval:  200 * time.Millisecond,
		sink:      sink,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithNoise sets the RSSI noise and the random seed.
func (d *DemoSource) WithNoise(stddev float64, seed int64) *DemoSource {
	d.noise = stddev
	d.rng = rand.New(rand.NewSource(seed))
	return d
}

// PositionAt is the true receiver position after t seconds.
func (d *DemoSource) PositionAt(t float64) (float64, float64) {
	switch len(d.waypoints) {
	case 0:
		return 0, 0
	case 1:
		return d.waypoints[0][0], d.waypoints[0][1]
	}

	var legs []float64
	total := 0.0
	for i := 1; i < len(d.waypoints); i++ {
		l := math.Hypot(d.waypoints[i][0]-d.waypoints[i-1][0], d.waypoints[i][1]-d.waypoints[i-1][1])
		legs = append(legs, l)
		total += l
	}
	if total == 0 {
		return d.waypoints[0][0], d.waypoints[0][1]
	}

	// walk there and back
	s := math.Mod(t*d.speed, 2*total)
	if s > total {
		s = 2*total - s
	}
	for i, l := range legs {
		if s <= l || i == len(legs)-1 {
			f := 0.0
			if l > 0 {
				f = math.Min(s/l, 1)
			}
			a, b := d.waypoints[i], d.waypoints[i+1]
			return a[0] + f*(b[0]-a[0]), a[1] + f*(b[1]-a[1])
		}
		s -= l
	}
	return d.waypoints[0][0], d.waypoints[0][1]
}

// Emit sends one sample per beacon for the receiver at (x, y).
func (d *DemoSource) Emit(x, y float64) {
	for _, id := range d.ids {
		b := d.beacons[id]
		dist := math.Max(math.Hypot(x-b[0], y-b[1]), 0.1)
		rssi := d.model.RSSI(dist) + d.rng.NormFloat64()*d.noise
		d.sink.Ingest(id, int(math.Round(rssi)))
	}
}

// Run emits samples until ctx is cancelled.
func (d *DemoSource) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			d.Emit(d.PositionAt(now.Sub(start).Seconds()))
		}
	}
}
