// Package overlay draws routes and selections on the floor plan.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"indoornav/internal/mapping"
)

var (
	ColorPath     = color.RGBA{R: 0x1f, G: 0x4e, B: 0xe8, A: 0xff}
	ColorStart    = color.RGBA{G: 0xb0, A: 0xff}
	ColorGoal     = color.RGBA{R: 0xe0, A: 0xff}
	ColorSelected = color.RGBA{R: 0xf0, G: 0xd0, A: 0xff}
	ColorUser     = color.RGBA{R: 0xff, G: 0x80, A: 0xff}
)

const (
	pathWidth    = 2.0
	markerRadius = 5.0
	pickRadius   = 3.0
)

// Overlay turns node routes into pixel polylines.
type Overlay struct {
	mapper *mapping.Mapper
	nodes  *mapping.NodeTable
}

func New(mapper *mapping.Mapper, nodes *mapping.NodeTable) *Overlay {
	return &Overlay{mapper: mapper, nodes: nodes}
}

// Pixels maps each route node to image coordinates. Unknown ids are
// skipped.
func (o *Overlay) Pixels(route []int) []mapping.Pixel {
	out := make([]mapping.Pixel, 0, len(route))
	for _, id := range route {
		n, ok := o.nodes.Node(id)
		if !ok {
			continue
		}
		out = append(out, o.mapper.WorldToImage(n.X, n.Y))
	}
	return out
}

func (o *Overlay) line(route []int) orb.LineString {
	ls := make(orb.LineString, 0, len(route))
	for _, id := range route {
		if n, ok := o.nodes.Node(id); ok {
			ls = append(ls, n.Point())
		}
	}
	return ls
}

// Length is the route length in metres.
func (o *Overlay) Length(route []int) float64 {
	return planar.Length(o.line(route))
}

// DistanceToPath is the distance from (x, y) to the closest node of the
// route, or +Inf when there is no route.
func (o *Overlay) DistanceToPath(x, y float64, route []int) float64 {
	best := math.Inf(1)
	p := orb.Point{x, y}
	for _, q := range o.line(route) {
		best = math.Min(best, planar.Distance(p, q))
	}
	return best
}

// Scene is everything drawn on top of the floor plan.
type Scene struct {
	Route []int
	Picks []int
	User  *orb.Point // filtered position in world coordinates
}

// Render copies base and draws the scene over it. An empty route draws no
// path; selected nodes are still marked.
func (o *Overlay) Render(base image.Image, s Scene) *image.RGBA {
	b := base.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), base, b.Min, draw.Src)

	r := vector.NewRasterizer(dst.Bounds().Dx(), dst.Bounds().Dy())

	px := o.Pixels(s.Route)
	for i := 1; i < len(px); i++ {
		segment(r, dst, px[i-1], px[i], pathWidth, ColorPath)
	}
	if len(px) > 0 {
		disc(r, dst, px[0], markerRadius, ColorStart)
		disc(r, dst, px[len(px)-1], markerRadius, ColorGoal)
	}

	for i, p := range o.Pixels(s.Picks) {
		c := ColorSelected
		if len(px) == 0 {
			if i == 0 {
				c = ColorStart
			} else {
				c = ColorGoal
			}
		}
		disc(r, dst, p, pickRadius, c)
	}

	if s.User != nil {
		disc(r, dst, o.mapper.WorldToImage(s.User.X(), s.User.Y()), markerRadius, ColorUser)
	}
	return dst
}

// WritePNG encodes a rendered scene.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding overlay: %w", err)
	}
	return nil
}

func segment(r *vector.Rasterizer, dst draw.Image, a, b mapping.Pixel, width float64, c color.Color) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2

	r.Reset(dst.Bounds().Dx(), dst.Bounds().Dy())
	r.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	r.LineTo(float32(b.X+nx), float32(b.Y+ny))
	r.LineTo(float32(b.X-nx), float32(b.Y-ny))
	r.LineTo(float32(a.X-nx), float32(a.Y-ny))
	r.ClosePath()
	r.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}

func disc(r *vector.Rasterizer, dst draw.Image, p mapping.Pixel, radius float64, c color.Color) {
	const steps = 24
	r.Reset(dst.Bounds().Dx(), dst.Bounds().Dy())
	r.MoveTo(float32(p.X+radius), float32(p.Y))
	for i := 1; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / steps
		r.LineTo(float32(p.X+radius*math.Cos(a)), float32(p.Y+radius*math.Sin(a)))
	}
	r.ClosePath()
	r.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}
