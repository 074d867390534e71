package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"indoornav/internal/mapping"
	"indoornav/internal/position"
)

// Estimator is the positioning pipeline as seen by the terminal view.
type Estimator interface {
	GetCurrentPosition() (position.Fix, error)
	Readings() []position.Reading
	ResetFilter()
}

// TickMsg triggers one positioning cycle.
type TickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model is the root Bubble Tea model. Bubble Tea copies the model on every
// update, so the pipeline handles live behind pointers.
type Model struct {
	width  int
	height int

	interval time.Duration
	paused   bool

	service Estimator
	mapper  *mapping.Mapper
	nodes   *mapping.NodeTable

	readings []position.Reading
	fix      position.Fix
	hasFix   bool
	node     *mapping.NavNode
	lastErr  error
	cycles   int
}

func New(service Estimator, mapper *mapping.Mapper, nodes *mapping.NodeTable, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{
		interval: interval,
		service:  service,
		mapper:   mapper,
		nodes:    nodes,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.interval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			return m, tea.Quit
		case "p", "P", " ":
			m.paused = !m.paused
		case "r", "R":
			m.service.ResetFilter()
			m.hasFix = false
			m.node = nil
		}
		return m, nil

	case TickMsg:
		if !m.paused {
			m = m.step()
		}
		return m, tickCmd(m.interval)
	}
	return m, nil
}

// step runs one cycle. A failed cycle keeps the previous fix on screen.
func (m Model) step() Model {
	m.cycles++
	m.readings = m.service.Readings()
	fix, err := m.service.GetCurrentPosition()
	m.lastErr = err
	if err != nil {
		return m
	}
	m.fix, m.hasFix = fix, true
	m.node = nil
	if n, ok := m.nodes.NearestNode(fix.X, fix.Y); ok {
		m.node = &n
	}
	return m
}

func (m Model) View() string {
	title := StyleTitle.Render("INDOOR NAV")
	status := m.renderStatus()
	beacons := StylePanel.Render(m.renderReadings())

	mapW, mapH := 48, 16
	if m.width > 0 {
		mapW = max(16, m.width-lipgloss.Width(beacons)-6)
	}
	if m.height > 0 {
		mapH = max(6, m.height-6)
	}
	floor := StylePanel.Render(m.renderMap(mapW, mapH))

	body := lipgloss.JoinHorizontal(lipgloss.Top, beacons, floor)
	help := StyleHelp.Render("q quit  p pause  r reset filter")
	return lipgloss.JoinVertical(lipgloss.Left, title, body, status, help)
}

func (m Model) renderStatus() string {
	var b strings.Builder
	if m.paused {
		b.WriteString(StyleUnknown.Render("[PAUSED] "))
	}
	if m.hasFix {
		b.WriteString(StyleLabel.Render("position "))
		b.WriteString(StyleValue.Render(fmt.Sprintf("(%.2f, %.2f) m", m.fix.X, m.fix.Y)))
		b.WriteString(StyleLabel.Render(fmt.Sprintf("  raw (%.2f, %.2f)  beacons %d", m.fix.RawX, m.fix.RawY, m.fix.Beacons)))
		if m.node != nil {
			b.WriteString(StyleLabel.Render("  node "))
			b.WriteString(StyleValue.Render(fmt.Sprint(m.node.ID)))
		}
	} else {
		b.WriteString(StyleLabel.Render("no fix yet"))
	}
	if m.lastErr != nil {
		b.WriteString("  ")
		b.WriteString(StyleError.Render(m.lastErr.Error()))
	}
	return b.String()
}

func (m Model) renderReadings() string {
	lines := []string{StyleTitle.Render(fmt.Sprintf("BEACONS [%d]", len(m.readings)))}
	if len(m.readings) == 0 {
		lines = append(lines, StyleLabel.Render("waiting for samples"))
	}
	for _, r := range m.readings {
		id := r.BeaconID
		if len(id) > 12 {
			id = id[:12]
		}
		style := StyleValue
		if !r.Known {
			style = StyleUnknown
		}
		lines = append(lines, style.Render(fmt.Sprintf("%-12s %6.1f dBm %5.2f m (%d)", id, r.RSSI, r.Distance, r.Samples)))
	}
	return strings.Join(lines, "\n")
}

// renderMap draws the nodes and the current fix on a w x h character grid
// covering the floor plan.
func (m Model) renderMap(w, h int) string {
	grid := make([][]string, h)
	for i := range grid {
		grid[i] = make([]string, w)
		for j := range grid[i] {
			grid[i][j] = " "
		}
	}

	b := m.mapper.Bounds()
	cell := func(x, y float64) (int, int, bool) {
		col := int(math.Floor((x - b.Min[0]) / (b.Max[0] - b.Min[0]) * float64(w)))
		row := int(math.Floor((b.Max[1] - y) / (b.Max[1] - b.Min[1]) * float64(h)))
		return col, row, col >= 0 && col < w && row >= 0 && row < h
	}

	for id := 0; id < m.nodes.Len(); id++ {
		n, _ := m.nodes.Node(id)
		if c, r, ok := cell(n.X, n.Y); ok {
			grid[r][c] = StyleNode.Render("·")
		}
	}
	if m.hasFix {
		if c, r, ok := cell(m.fix.X, m.fix.Y); ok {
			grid[r][c] = StyleUser.Render("@")
		}
	}

	rows := make([]string, h)
	for i, row := range grid {
		rows[i] = strings.Join(row, "")
	}
	return strings.Join(rows, "\n")
}
