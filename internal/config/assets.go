package config

import (
	"fmt"
	"image"
	"os"

	"indoornav/internal/floorplan"
	"indoornav/internal/mapping"
	"indoornav/internal/position"
)

// Assets are the loaded map inputs. Failing to load any of them is fatal.
type Assets struct {
	Plan   image.Image
	Mapper *mapping.Mapper
	Nodes  *mapping.NodeTable
}

func (s *Site) LoadAssets() (*Assets, error) {
	plan, err := floorplan.Load(s.Map.FloorPlan)
	if err != nil {
		return nil, err
	}
	mapper, err := mapping.NewMapper(plan, s.Map.OriginX, s.Map.OriginY, s.Map.MetersPerPixel)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.Map.Nodes)
	if err != nil {
		return nil, fmt.Errorf("opening node table: %w", err)
	}
	defer f.Close()
	nodes, err := mapping.NewNodeTable(mapping.CSVNodes{R: f}, s.Map.SnapRadius)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Map.Nodes, err)
	}

	return &Assets{Plan: plan, Mapper: mapper, Nodes: nodes}, nil
}

// Minimizer is the default solver, bounded to the mapped area.
func (a *Assets) Minimizer() position.Minimizer {
	b := a.Mapper.Bounds()
	return position.NewGonumMinimizer().WithBounds(
		[]float64{b.Min[0], b.Min[1]},
		[]float64{b.Max[0], b.Max[1]},
	)
}
