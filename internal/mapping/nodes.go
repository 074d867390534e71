package mapping

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultSnapRadius is the farthest a point may be from a node and still
// snap to it, in metres.
const DefaultSnapRadius = 0.75

var ErrNoNearbyNode = errors.New("mapping: no node within snap radius")

// NavNode is a vertex of the navigation graph. Its id is its row index in
// the node table.
type NavNode struct {
	ID   int
	X, Y float64
}

func (n NavNode) Point() orb.Point { return orb.Point{n.X, n.Y} }

// NodeSource supplies the node table.
type NodeSource interface {
	Nodes() ([]NavNode, error)
}

// NodeTable is the immutable, id-indexed set of navigation nodes.
type NodeTable struct {
	nodes  []NavNode
	radius float64
}

// NewNodeTable loads nodes from src. A non-positive radius falls back to
// DefaultSnapRadius.
func NewNodeTable(src NodeSource, radius float64) (*NodeTable, error) {
	nodes, err := src.Nodes()
	if err != nil {
		return nil, fmt.Errorf("loading nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil, errors.New("mapping: node table is empty")
	}
	for i, n := range nodes {
		if n.ID != i {
			return nil, fmt.Errorf("mapping: node at row %d has id %d", i, n.ID)
		}
	}
	if radius <= 0 {
		radius = DefaultSnapRadius
	}
	return &NodeTable{nodes: nodes, radius: radius}, nil
}

func (t *NodeTable) Len() int { return len(t.nodes) }

func (t *NodeTable) Radius() float64 { return t.radius }

// Node looks a node up by id.
func (t *NodeTable) Node(id int) (NavNode, bool) {
	if id < 0 || id >= len(t.nodes) {
		return NavNode{}, false
	}
	return t.nodes[id], true
}

// NearestNode returns the node closest to (x, y). ok is false when even the
// closest node is farther than the snap radius. On exact ties the node
// listed first wins.
func (t *NodeTable) NearestNode(x, y float64) (NavNode, bool) {
	p := orb.Point{x, y}
	best := -1
	bestDist := math.Inf(1)
	for i, n := range t.nodes {
		d := planar.Distance(p, n.Point())
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > t.radius {
		return NavNode{}, false
	}
	return t.nodes[best], true
}

// CSVNodes reads a node table with x_coordinate and y_coordinate columns.
// Other columns are ignored; ids are row indices.
type CSVNodes struct {
	R io.Reader
}

func (c CSVNodes) Nodes() ([]NavNode, error) {
	r := csv.NewReader(c.R)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	xi, yi := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "x_coordinate", "x":
			xi = i
		case "y_coordinate", "y":
			yi = i
		}
	}
	if xi < 0 || yi < 0 {
		return nil, errors.New("missing x_coordinate/y_coordinate columns")
	}

	var nodes []NavNode
	for row := 1; ; row++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[xi]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: x: %w", row, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[yi]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: y: %w", row, err)
		}
		nodes = append(nodes, NavNode{ID: len(nodes), X: x, Y: y})
	}
	return nodes, nil
}

// StaticNodes is an in-memory NodeSource.
type StaticNodes []NavNode

func (s StaticNodes) Nodes() ([]NavNode, error) { return s, nil }
