package position

import (
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultInitialCovariance = 500.0
	DefaultMeasurementNoise  = 2.0
)

// KalmanFilter is a 2D constant-position filter: F = I, H = I, Q = 0,
// R = r*I. The measurement is an (x, y) fix in the state space.
type KalmanFilter struct {
	x *mat.VecDense
	p *mat.Dense
	r *mat.Dense

	initialCov float64
}

// NewKalmanFilter starts at the origin with covariance initialCov*I.
func NewKalmanFilter(initialCov, measurementNoise float64) *KalmanFilter {
	k := &KalmanFilter{
		initialCov: initialCov,
		r:          scaledIdentity(measurementNoise),
	}
	k.Reset()
	return k
}

// Reset drops all assimilated fixes.
func (k *KalmanFilter) Reset() {
	k.x = mat.NewVecDense(2, nil)
	k.p = scaledIdentity(k.initialCov)
}

// Predict propagates the belief through the identity model. Without
// process noise the mean and covariance are unchanged.
func (k *KalmanFilter) Predict() {
	var x mat.VecDense
	x.MulVec(eye2(), k.x)
	var p mat.Dense
	p.Product(eye2(), k.p, eye2().T())
	k.x, k.p = &x, &p
}

// Update runs predict + correct with the fix (zx, zy) and returns the
// filtered mean.
func (k *KalmanFilter) Update(zx, zy float64) (float64, float64) {
	k.Predict()

	// S = H P H' + R
	var s mat.Dense
	s.Add(k.p, k.r)
	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return k.x.AtVec(0), k.x.AtVec(1)
	}

	// K = P H' S^-1
	var gain mat.Dense
	gain.Mul(k.p, &sInv)

	var innov mat.VecDense
	innov.SubVec(mat.NewVecDense(2, []float64{zx, zy}), k.x)

	var corr mat.VecDense
	corr.MulVec(&gain, &innov)
	k.x.AddVec(k.x, &corr)

	// P = (I - K H) P, symmetrised against round-off
	var ikh mat.Dense
	ikh.Sub(eye2(), &gain)
	var p mat.Dense
	p.Mul(&ikh, k.p)
	var pt mat.Dense
	pt.CloneFrom(p.T())
	p.Add(&p, &pt)
	p.Scale(0.5, &p)
	k.p = &p

	return k.x.AtVec(0), k.x.AtVec(1)
}

// Mean returns the current state estimate.
func (k *KalmanFilter) Mean() (float64, float64) {
	return k.x.AtVec(0), k.x.AtVec(1)
}

// Covariance returns a copy of the state covariance.
func (k *KalmanFilter) Covariance() *mat.SymDense {
	return mat.NewSymDense(2, []float64{
		k.p.At(0, 0), k.p.At(0, 1),
		k.p.At(1, 0), k.p.At(1, 1),
	})
}

func eye2() *mat.Dense { return scaledIdentity(1) }

func scaledIdentity(v float64) *mat.Dense {
	return mat.NewDense(2, 2, []float64{v, 0, 0, v})
}
