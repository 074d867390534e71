package tracker

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"indoornav/internal/position"
)

// Estimator runs one positioning cycle.
type Estimator interface {
	GetCurrentPosition() (position.Fix, error)
}

// Sink receives every successful fix.
type Sink interface {
	Publish(fix position.Fix)
}

type SinkFunc func(fix position.Fix)

func (f SinkFunc) Publish(fix position.Fix) { f(fix) }

// Tracker asks the estimator for a position on every tick and fans the
// fixes out to its sinks.
type Tracker struct {
	service  Estimator
	interval time.Duration
	sinks    []Sink
	log      *slog.Logger
}

// NewTracker builds a tracker; a non-positive interval falls back to one
// second.
func NewTracker(service Estimator, interval time.Duration, log *slog.Logger, sinks ...Sink) *Tracker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Tracker{
		service:  service,
		interval: interval,
		sinks:    sinks,
		log:      log,
	}
}

// Start ticks until ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Step()
		}
	}
}

// Step runs a single cycle. Cycles without a fix are skipped.
func (t *Tracker) Step() (position.Fix, bool) {
	fix, err := t.service.GetCurrentPosition()
	switch {
	case errors.Is(err, position.ErrInsufficientBeacons), errors.Is(err, position.ErrNoConvergence):
		t.log.Debug("no fix this cycle", "reason", err)
		return position.Fix{}, false
	case err != nil:
		t.log.Error("positioning failed", "err", err)
		return position.Fix{}, false
	}

	for _, s := range t.sinks {
		s.Publish(fix)
	}
	t.log.Debug("fix",
		"x", fix.X,
		"y", fix.Y,
		"beacons", fix.Beacons,
	)
	return fix, true
}

// CSVSink streams fixes as CSV rows.
type CSVSink struct {
	mu     sync.Mutex
	writer *csv.Writer
	log    *slog.Logger
}

func NewCSVSink(w io.Writer, log *slog.Logger) (*CSVSink, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"time", "x", "y", "raw_x", "raw_y", "beacons"}); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	writer.Flush()
	return &CSVSink{writer: writer, log: log}, writer.Error()
}

func (c *CSVSink) Publish(fix position.Fix) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := []string{
		fix.At.Format(time.RFC3339Nano),
		strconv.FormatFloat(fix.X, 'f', 6, 64),
		strconv.FormatFloat(fix.Y, 'f', 6, 64),
		strconv.FormatFloat(fix.RawX, 'f', 6, 64),
		strconv.FormatFloat(fix.RawY, 'f', 6, 64),
		strconv.Itoa(fix.Beacons),
	}
	if err := c.writer.Write(record); err != nil {
		c.log.Error("failed to write record", "err", err)
	}
	c.writer.Flush()
}
