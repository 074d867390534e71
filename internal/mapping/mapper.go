// Package mapping converts between world coordinates in metres, image
// pixels of the floor plan and navigation node ids.
package mapping

import (
	"errors"
	"image"

	"github.com/paulmach/orb"
)

const (
	DefaultMetersPerPixel = 0.05
	DefaultOriginX        = -9.34
	DefaultOriginY        = -10.5
)

// Raster is the part of a floor plan image the mapper needs.
type Raster interface {
	Bounds() image.Rectangle
}

// Pixel is a position on the floor plan image, row 0 at the top.
type Pixel struct {
	X, Y float64
}

// Mapper is the affine world <-> image transform. World y grows upward,
// image rows grow downward.
type Mapper struct {
	OriginX, OriginY float64 // world position of the image's bottom-left corner
	Scale            float64 // metres per pixel
	Width, Height    int     // image size in pixels
}

func NewMapper(plan Raster, originX, originY, metersPerPixel float64) (*Mapper, error) {
	if metersPerPixel <= 0 {
		return nil, errors.New("mapping: metres per pixel must be positive")
	}
	b := plan.Bounds()
	if b.Empty() {
		return nil, errors.New("mapping: empty floor plan")
	}
	return &Mapper{
		OriginX: originX,
		OriginY: originY,
		Scale:   metersPerPixel,
		Width:   b.Dx(),
		Height:  b.Dy(),
	}, nil
}

func (m *Mapper) WorldToImage(x, y float64) Pixel {
	return Pixel{
		X: (x - m.OriginX) / m.Scale,
		Y: float64(m.Height) - (y-m.OriginY)/m.Scale,
	}
}

// ImageToWorld maps a click on the floor plan to world coordinates.
func (m *Mapper) ImageToWorld(px, py float64) (float64, float64) {
	return px*m.Scale + m.OriginX, (float64(m.Height)-py)*m.Scale + m.OriginY
}

// Bounds is the world rectangle covered by the image.
func (m *Mapper) Bounds() orb.Bound {
	return orb.Bound{
		Min: orb.Point{m.OriginX, m.OriginY},
		Max: orb.Point{
			m.OriginX + float64(m.Width)*m.Scale,
			m.OriginY + float64(m.Height)*m.Scale,
		},
	}
}
