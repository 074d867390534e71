package tui

import (
	"image"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indoornav/internal/mapping"
	"indoornav/internal/position"
)

type stubEstimator struct {
	fixes  []position.Fix
	errs   []error
	resets int
}

func (s *stubEstimator) GetCurrentPosition() (position.Fix, error) {
	fix, err := s.fixes[0], s.errs[0]
	s.fixes, s.errs = s.fixes[1:], s.errs[1:]
	return fix, err
}

func (s *stubEstimator) Readings() []position.Reading {
	return []position.Reading{
		{BeaconID: "A404ABC4-3F21-5B71", RSSI: -65.2, Distance: 1.74, Samples: 5, Known: true},
		{BeaconID: "stray", RSSI: -80, Distance: 6.9, Samples: 1},
	}
}

func (s *stubEstimator) ResetFilter() { s.resets++ }

func newModel(t *testing.T, est *stubEstimator) Model {
	t.Helper()

	m, err := mapping.NewMapper(image.Rect(0, 0, 100, 100), 0, 0, 0.1)
	require.NoError(t, err)
	nodes, err := mapping.NewNodeTable(mapping.StaticNodes{
		{ID: 0, X: 1, Y: 1},
		{ID: 1, X: 5, Y: 5},
	}, mapping.DefaultSnapRadius)
	require.NoError(t, err)
	return New(est, m, nodes, time.Second)
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestTickUpdatesFix(t *testing.T) {
	t.Parallel()

	est := &stubEstimator{
		fixes: []position.Fix{{X: 5.1, Y: 4.9, RawX: 5.3, RawY: 4.8, Beacons: 3}, {}},
		errs:  []error{nil, position.ErrNoConvergence},
	}
	m := newModel(t, est)

	m, cmd := update(t, m, TickMsg(time.Now()))
	assert.NotNil(t, cmd)
	require.True(t, m.hasFix)
	require.NotNil(t, m.node)
	assert.Equal(t, 1, m.node.ID)
	assert.Len(t, m.readings, 2)

	view := m.View()
	assert.Contains(t, view, "(5.10, 4.90) m")
	assert.Contains(t, view, "node 1")
	assert.Contains(t, view, "BEACONS [2]")
	assert.Contains(t, view, "@")

	// a failed cycle keeps the last fix
	m, _ = update(t, m, TickMsg(time.Now()))
	assert.True(t, m.hasFix)
	assert.Equal(t, 5.1, m.fix.X)
	assert.Contains(t, m.View(), position.ErrNoConvergence.Error())
}

func TestPauseAndReset(t *testing.T) {
	t.Parallel()

	est := &stubEstimator{
		fixes: []position.Fix{{X: 1, Y: 1, Beacons: 3}},
		errs:  []error{nil},
	}
	m := newModel(t, est)

	m, _ = update(t, m, key("p"))
	assert.True(t, m.paused)
	m, cmd := update(t, m, TickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Zero(t, m.cycles)
	assert.Contains(t, m.View(), "[PAUSED]")

	m, _ = update(t, m, key("p"))
	m, _ = update(t, m, TickMsg(time.Now()))
	assert.Equal(t, 1, m.cycles)
	assert.Equal(t, 0, m.node.ID)

	m, _ = update(t, m, key("r"))
	assert.Equal(t, 1, est.resets)
	assert.False(t, m.hasFix)
	assert.Contains(t, m.View(), "no fix yet")
}

func TestQuit(t *testing.T) {
	t.Parallel()

	m := newModel(t, &stubEstimator{})
	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
