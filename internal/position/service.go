package position

import (
	"sort"
	"sync"
	"time"

	"indoornav/internal/storage"
)

// Config holds the calibration and tuning constants of the pipeline.
type Config struct {
	PathLoss          PathLoss
	Window            int
	InitialCovariance float64
	MeasurementNoise  float64
	// MaxAge drops readings not refreshed within this period from a cycle.
	// Zero keeps every reading.
	MaxAge    time.Duration
	Minimizer Minimizer
}

func DefaultConfig() Config {
	return Config{
		PathLoss:          DefaultPathLoss(),
		Window:            storage.DefaultWindow,
		InitialCovariance: DefaultInitialCovariance,
		MeasurementNoise:  DefaultMeasurementNoise,
	}
}

// Fix is one filtered position.
type Fix struct {
	X, Y       float64 // filtered
	RawX, RawY float64 // multilateration output
	Beacons    int
	Seq        uint64 // arrival order of the newest sample used
	At         time.Time
}

// Reading is a beacon's smoothed signal and the distance derived from it.
type Reading struct {
	BeaconID string
	RSSI     float64
	Distance float64
	Samples  int
	Known    bool
}

// PositionService is the positioning pipeline. It owns the smoothing
// windows and the filter state; every mutation happens under mu so scan
// callbacks and estimate requests can arrive from different goroutines.
type PositionService struct {
	mu           sync.Mutex
	storage      *storage.Storage
	model        PathLoss
	trilaterator *Trilateration
	filter       *KalmanFilter
	beaconCoords map[string][2]float64
	maxAge       time.Duration
	now          func() time.Time

	seq     uint64
	last    Fix
	hasLast bool
}

func NewPositionService(cfg Config, beaconCoords map[string][2]float64) *PositionService {
	ids := make([]string, 0, len(beaconCoords))
	for id := range beaconCoords {
		ids = append(ids, id)
	}
	return &PositionService{
		storage:      storage.NewStorage(cfg.Window, ids...),
		model:        cfg.PathLoss,
		trilaterator: NewTrilateration(cfg.Minimizer),
		filter:       NewKalmanFilter(cfg.InitialCovariance, cfg.MeasurementNoise),
		beaconCoords: beaconCoords,
		maxAge:       cfg.MaxAge,
		now:          time.Now,
	}
}

// Ingest feeds one raw sample and returns the beacon's smoothed RSSI.
func (ps *PositionService) Ingest(beaconID string, rssi int) float64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.seq++
	return ps.storage.Update(beaconID, float64(rssi))
}

// Readings lists the current smoothed reading of every reporting beacon,
// sorted by beacon id.
func (ps *PositionService) Readings() []Reading {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	data := ps.storage.GetAll()
	out := make([]Reading, 0, len(data))
	for id, d := range data {
		_, known := ps.beaconCoords[id]
		out = append(out, Reading{
			BeaconID: id,
			RSSI:     d.RSSI,
			Distance: ps.model.Distance(d.RSSI),
			Samples:  d.Samples,
			Known:    known,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BeaconID < out[j].BeaconID })
	return out
}

// GetCurrentPosition runs one cycle over the latest smoothed readings:
// multilateration, then one filter update. When multilateration yields no
// point the filter is left untouched and ErrInsufficientBeacons or
// ErrNoConvergence is returned.
func (ps *PositionService) GetCurrentPosition() (Fix, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := ps.now()
	data := ps.storage.GetAll()

	beacons := make([]Beacon, 0, len(data))
	for id, d := range data {
		coords, ok := ps.beaconCoords[id]
		if !ok {
			continue
		}
		if ps.maxAge > 0 && now.Sub(d.UpdatedAt) > ps.maxAge {
			continue
		}
		beacons = append(beacons, Beacon{
			ID:       id,
			X:        coords[0],
			Y:        coords[1],
			Distance: ps.model.Distance(d.RSSI),
		})
	}
	return ps.solveLocked(beacons, now)
}

// Solve runs one cycle on explicit distance estimates instead of the
// smoothing windows.
func (ps *PositionService) Solve(distances map[string]float64) (Fix, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	beacons := make([]Beacon, 0, len(distances))
	for id, d := range distances {
		coords, ok := ps.beaconCoords[id]
		if !ok {
			continue
		}
		beacons = append(beacons, Beacon{ID: id, X: coords[0], Y: coords[1], Distance: d})
	}
	return ps.solveLocked(beacons, ps.now())
}

func (ps *PositionService) solveLocked(beacons []Beacon, now time.Time) (Fix, error) {
	// map order is random; keep the solve deterministic
	sort.Slice(beacons, func(i, j int) bool { return beacons[i].ID < beacons[j].ID })

	rawX, rawY, err := ps.trilaterator.EstimatePosition(beacons)
	if err != nil {
		return Fix{}, err
	}

	x, y := ps.filter.Update(rawX, rawY)
	ps.last = Fix{
		X: x, Y: y,
		RawX: rawX, RawY: rawY,
		Beacons: len(beacons),
		Seq:     ps.seq,
		At:      now,
	}
	ps.hasLast = true
	return ps.last, nil
}

// LastFix returns the most recent successful fix.
func (ps *PositionService) LastFix() (Fix, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.last, ps.hasLast
}

// Beacons returns the number of configured beacons.
func (ps *PositionService) Beacons() int {
	return len(ps.beaconCoords)
}

// ResetFilter drops the filtered belief. The next fix starts from the prior.
func (ps *PositionService) ResetFilter() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.filter.Reset()
	ps.hasLast = false
	ps.last = Fix{}
}
