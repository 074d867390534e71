package storage

import (
	"sync"
	"time"
)

// DefaultWindow is the number of recent RSSI samples averaged per beacon.
const DefaultWindow = 5

// BeaconData holds the smoothing state of one beacon.
type BeaconData struct {
	RSSI      float64 // mean of the current window
	Samples   int     // number of samples in the window
	UpdatedAt time.Time
}

// window is a fixed-capacity FIFO of raw readings.
type window struct {
	buf       []float64
	pos       int
	count     int
	updatedAt time.Time
}

func (w *window) push(v float64) {
	w.buf[w.pos] = v
	w.pos = (w.pos + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

func (w *window) mean() float64 {
	if w.count == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < w.count; i++ {
		sum += w.buf[i]
	}
	return sum / float64(w.count)
}

// Storage keeps a sliding window of raw RSSI readings per beacon and
// answers with the window mean.
type Storage struct {
	mu   sync.RWMutex
	size int
	data map[string]*window
	now  func() time.Time
}

// NewStorage creates empty windows of the given size for every known
// beacon. A non-positive size falls back to DefaultWindow.
func NewStorage(size int, beaconIDs ...string) *Storage {
	if size <= 0 {
		size = DefaultWindow
	}
	s := &Storage{
		size: size,
		data: make(map[string]*window, len(beaconIDs)),
		now:  time.Now,
	}
	for _, id := range beaconIDs {
		s.data[id] = s.newWindow()
	}
	return s
}

func (s *Storage) newWindow() *window {
	return &window{buf: make([]float64, s.size)}
}

// Update appends a raw reading to the beacon's window, evicting the oldest
// one once the window is full, and returns the new mean. Unknown beacons
// start with a fresh window.
func (s *Storage) Update(beaconID string, rssi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.data[beaconID]
	if !ok {
		w = s.newWindow()
		s.data[beaconID] = w
	}
	w.push(rssi)
	w.updatedAt = s.now()
	return w.mean()
}

// Get returns the smoothed reading of a beacon. ok is false when the
// beacon has not reported yet.
func (s *Storage) Get(beaconID string) (BeaconData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.data[beaconID]
	if !ok || w.count == 0 {
		return BeaconData{}, false
	}
	return BeaconData{RSSI: w.mean(), Samples: w.count, UpdatedAt: w.updatedAt}, true
}

// GetAll returns the smoothed reading of every beacon that has reported.
func (s *Storage) GetAll() map[string]BeaconData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// copy, callers never see the live windows
	result := make(map[string]BeaconData, len(s.data))
	for id, w := range s.data {
		if w.count == 0 {
			continue
		}
		result[id] = BeaconData{RSSI: w.mean(), Samples: w.count, UpdatedAt: w.updatedAt}
	}
	return result
}

// Len returns the number of readings currently held for a beacon.
func (s *Storage) Len(beaconID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.data[beaconID]; ok {
		return w.count
	}
	return 0
}

// SetClock replaces the time source used to stamp updates.
func (s *Storage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Size returns the window capacity.
func (s *Storage) Size() int { return s.size }
