package transport

import (
	"fmt"
	"math"

	"github.com/notargets/DGTransport/element/library/gonudg"
	"github.com/notargets/DGTransport/utils"
)

// ErrQuadrature reports an invalid ordinate set
var ErrQuadrature = fmt.Errorf("%w: invalid quadrature", utils.ErrInput)

// unitTolerance bounds | |Ω| - 1 | for a valid ordinate
const unitTolerance = 1e-10

// Ordinate is a unit direction with its quadrature weight
type Ordinate struct {
	Wx, Wy, Wz float64
	W          float64
}

// Dot returns Ω·Ω'
func (o Ordinate) Dot(p Ordinate) float64 {
	return o.Wx*p.Wx + o.Wy*p.Wy + o.Wz*p.Wz
}

// Quadrature is an angular quadrature set over the upper hemisphere with
// weights normalised to sum to 1. The 2D transport solution is symmetric in
// ωz, so each ordinate also stands for its mirror image below the plane.
type Quadrature struct {
	Ordinates []Ordinate
}

// NewQuadrature validates the ordinates and renormalises the weights
func NewQuadrature(ordinates []Ordinate) (*Quadrature, error) {
	if len(ordinates) == 0 {
		return nil, fmt.Errorf("%w: no ordinates", ErrQuadrature)
	}
	q := &Quadrature{Ordinates: make([]Ordinate, len(ordinates))}
	sum := 0.0
	for m, o := range ordinates {
		norm := math.Sqrt(o.Wx*o.Wx + o.Wy*o.Wy + o.Wz*o.Wz)
		if math.Abs(norm-1) > unitTolerance {
			return nil, fmt.Errorf("%w: ordinate %d has norm %.15g", ErrQuadrature, m, norm)
		}
		if !(o.W > 0) || math.IsInf(o.W, 0) {
			return nil, fmt.Errorf("%w: ordinate %d has weight %g", ErrQuadrature, m, o.W)
		}
		if o.Wz < 0 {
			return nil, fmt.Errorf("%w: ordinate %d is below the plane", ErrQuadrature, m)
		}
		sum += o.W
	}
	for m, o := range ordinates {
		o.W /= sum
		q.Ordinates[m] = o
	}
	return q, nil
}

// ProductQuadrature builds nPolar Gauss-Legendre polar cosines on (0,1]
// times nAzimuthal uniform azimuths (j+½)2π/nAzimuthal. An even azimuthal
// count keeps the set closed under reflection about both coordinate axes.
func ProductQuadrature(nPolar, nAzimuthal int) (*Quadrature, error) {
	if nPolar < 1 || nAzimuthal < 1 {
		return nil, fmt.Errorf("%w: product %dx%d", ErrQuadrature, nPolar, nAzimuthal)
	}
	mu, wmu := gonudg.JacobiGQ(0, 0, 2*nPolar-1)

	ordinates := make([]Ordinate, 0, nPolar*nAzimuthal)
	for p := range mu {
		if mu[p] <= 0 {
			continue
		}
		sinTheta := math.Sqrt(1 - mu[p]*mu[p])
		for j := 0; j < nAzimuthal; j++ {
			phi := (float64(j) + 0.5) * 2 * math.Pi / float64(nAzimuthal)
			ordinates = append(ordinates, Ordinate{
				Wx: sinTheta * math.Cos(phi),
				Wy: sinTheta * math.Sin(phi),
				Wz: mu[p],
				W:  wmu[p] / float64(nAzimuthal),
			})
		}
	}
	return NewQuadrature(ordinates)
}

// Len returns the number of ordinates
func (q *Quadrature) Len() int { return len(q.Ordinates) }

// Find returns the index of the ordinate matching (wx, wy, wz) within tol
func (q *Quadrature) Find(wx, wy, wz, tol float64) (int, bool) {
	for m, o := range q.Ordinates {
		if math.Abs(o.Wx-wx) <= tol && math.Abs(o.Wy-wy) <= tol && math.Abs(o.Wz-wz) <= tol {
			return m, true
		}
	}
	return -1, false
}

// ScatterKernels returns K[l][m][m'] = (2l+1) w_m' ½[P_l(Ω·Ω') + P_l(Ω·Ω̄')]
// for l = 0..L, where Ω̄' is Ω' mirrored through the plane
func (q *Quadrature) ScatterKernels(L int) [][][]float64 {
	M := q.Len()
	K := make([][][]float64, L+1)
	for l := range K {
		K[l] = make([][]float64, M)
		for m := range K[l] {
			K[l][m] = make([]float64, M)
		}
	}
	for m, o := range q.Ordinates {
		for mp, p := range q.Ordinates {
			mirror := p
			mirror.Wz = -p.Wz
			direct := gonudg.LegendreSeries(L, o.Dot(p))
			image := gonudg.LegendreSeries(L, o.Dot(mirror))
			for l := 0; l <= L; l++ {
				K[l][m][mp] = float64(2*l+1) * p.W * 0.5 * (direct[l] + image[l])
			}
		}
	}
	return K
}
