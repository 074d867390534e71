package position

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

var (
	ErrInsufficientBeacons = errors.New("position: at least 3 beacons required")
	ErrNoConvergence       = errors.New("position: solver did not converge")
)

// MinBeacons is the smallest number of ranged beacons a 2D fix needs.
const MinBeacons = 3

// Beacon is a ranged beacon: its fixed position and the estimated distance
// to the receiver.
type Beacon struct {
	ID       string
	X, Y     float64
	Distance float64
}

// Objective is a scalar function with its gradient.
type Objective struct {
	Func func(x []float64) float64
	Grad func(grad, x []float64)
}

// Minimizer finds a local minimum of obj starting from x0. converged
// reports whether the optimizer terminated on a convergence criterion.
type Minimizer interface {
	Minimize(obj Objective, x0 []float64) (x []float64, converged bool)
}

type Trilateration struct {
	minimizer Minimizer
}

// NewTrilateration returns a solver using m, or an unbounded L-BFGS
// minimizer when m is nil.
func NewTrilateration(m Minimizer) *Trilateration {
	if m == nil {
		m = NewGonumMinimizer()
	}
	return &Trilateration{minimizer: m}
}

// EstimatePosition returns the point minimising the sum of squared range
// residuals, starting from the centroid of the beacons. The problem is not
// convex; a poor beacon geometry can land on a local minimum.
func (t *Trilateration) EstimatePosition(beacons []Beacon) (float64, float64, error) {
	if len(beacons) < MinBeacons {
		return 0, 0, ErrInsufficientBeacons
	}

	initX, initY := 0.0, 0.0
	for _, b := range beacons {
		initX += b.X
		initY += b.Y
	}
	initX /= float64(len(beacons))
	initY /= float64(len(beacons))

	x, ok := t.minimizer.Minimize(rangeObjective(beacons), []float64{initX, initY})
	if !ok || len(x) < 2 || math.IsNaN(x[0]) || math.IsNaN(x[1]) {
		return 0, 0, ErrNoConvergence
	}
	return x[0], x[1], nil
}

// rangeObjective is sum_i (|p - b_i| - d_i)^2.
func rangeObjective(beacons []Beacon) Objective {
	fn := func(x []float64) float64 {
		estX, estY := x[0], x[1]
		err := 0.0
		for _, b := range beacons {
			dist := math.Hypot(estX-b.X, estY-b.Y)
			err += (dist - b.Distance) * (dist - b.Distance)
		}
		return err
	}
	grad := func(g, x []float64) {
		g[0], g[1] = 0, 0
		for _, b := range beacons {
			dx := x[0] - b.X
			dy := x[1] - b.Y
			dist := math.Hypot(dx, dy)
			if dist == 0 {
				continue
			}
			k := 2 * (dist - b.Distance) / dist
			g[0] += k * dx
			g[1] += k * dy
		}
	}
	return Objective{Func: fn, Grad: grad}
}

// GonumMinimizer runs gonum's L-BFGS. When bounds are set the objective is
// extended with a quadratic penalty outside the box and the result is
// clamped into it.
//
// With inconsistent ranges the minimum of the objective is not zero and the
// line search may give up right at it. Such a run still counts as converged
// when the gradient norm at its final point is below Stationary.
type GonumMinimizer struct {
	Lower, Upper []float64
	Penalty      float64
	Stationary   float64
	Settings     *optimize.Settings
}

func NewGonumMinimizer() *GonumMinimizer {
	return &GonumMinimizer{
		Penalty:    1e3,
		Stationary: 1e-5,
		Settings: &optimize.Settings{
			GradientThreshold: 1e-6,
			MajorIterations:   1000,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-12,
				Relative:   1e-12,
				Iterations: 20,
			},
		},
	}
}

// WithBounds constrains the search to [lower, upper] per dimension.
func (g *GonumMinimizer) WithBounds(lower, upper []float64) *GonumMinimizer {
	g.Lower = lower
	g.Upper = upper
	return g
}

func (g *GonumMinimizer) bounded() bool {
	return len(g.Lower) > 0 && len(g.Lower) == len(g.Upper)
}

func (g *GonumMinimizer) Minimize(obj Objective, x0 []float64) ([]float64, bool) {
	problem := optimize.Problem{Func: obj.Func, Grad: obj.Grad}
	if g.bounded() {
		problem = g.penalised(obj)
	}

	start := append([]float64(nil), x0...)
	g.clamp(start)

	result, err := optimize.Minimize(problem, start, g.Settings, &optimize.LBFGS{})
	if result == nil || !finite(result.X) {
		return nil, false
	}
	if (err != nil || result.Status.Early()) && !g.stationary(problem, result.X) {
		return nil, false
	}

	x := append([]float64(nil), result.X...)
	g.clamp(x)
	return x, true
}

func (g *GonumMinimizer) stationary(p optimize.Problem, x []float64) bool {
	grad := make([]float64, len(x))
	p.Grad(grad, x)
	return finite(grad) && floats.Norm(grad, 2) <= g.Stationary
}

func finite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func (g *GonumMinimizer) penalised(obj Objective) optimize.Problem {
	w := g.Penalty
	return optimize.Problem{
		Func: func(x []float64) float64 {
			f := obj.Func(x)
			for i, v := range x {
				if v < g.Lower[i] {
					f += w * (g.Lower[i] - v) * (g.Lower[i] - v)
				} else if v > g.Upper[i] {
					f += w * (v - g.Upper[i]) * (v - g.Upper[i])
				}
			}
			return f
		},
		Grad: func(grad, x []float64) {
			obj.Grad(grad, x)
			for i, v := range x {
				if v < g.Lower[i] {
					grad[i] -= 2 * w * (g.Lower[i] - v)
				} else if v > g.Upper[i] {
					grad[i] += 2 * w * (v - g.Upper[i])
				}
			}
		},
	}
}

func (g *GonumMinimizer) clamp(x []float64) {
	if !g.bounded() {
		return
	}
	for i := range x {
		x[i] = math.Max(g.Lower[i], math.Min(g.Upper[i], x[i]))
	}
}
