package solver

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/notargets/DGTransport/transport"
	"github.com/notargets/DGTransport/trimesh"
	"gonum.org/v1/gonum/floats"
)

// Solution is an angular and scalar flux pair with an optional eigenvalue
type Solution struct {
	Layout        trimesh.DOFLayout
	Psi           []float64 // Angular layout
	Phi           []float64 // Scalar layout
	Eigenvalue    float64
	HasEigenvalue bool
}

func NewSolution(layout trimesh.DOFLayout) *Solution {
	return &Solution{
		Layout: layout,
		Psi:    make([]float64, layout.Size()),
		Phi:    make([]float64, layout.ScalarSize()),
	}
}

// Clone returns a deep copy
func (s *Solution) Clone() *Solution {
	c := *s
	c.Psi = append([]float64(nil), s.Psi...)
	c.Phi = append([]float64(nil), s.Phi...)
	return &c
}

// Zero clears both fluxes
func (s *Solution) Zero() {
	for i := range s.Psi {
		s.Psi[i] = 0
	}
	for i := range s.Phi {
		s.Phi[i] = 0
	}
}

// Normalize scales both fluxes by factor
func (s *Solution) Normalize(factor float64) {
	floats.Scale(factor, s.Psi)
	floats.Scale(factor, s.Phi)
}

// Fingerprint hashes the exact bits of the solution
func (s *Solution) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	write := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	for _, v := range s.Psi {
		write(v)
	}
	for _, v := range s.Phi {
		write(v)
	}
	write(s.Eigenvalue)
	return d.Sum64()
}

// L2Norm is the Euclidean norm of v
func L2Norm(v []float64) float64 { return floats.Norm(v, 2) }

// LInfNorm is the largest magnitude in v
func LInfNorm(v []float64) float64 { return floats.Norm(v, math.Inf(1)) }

// RInf is the relative L∞ difference of next against prev. Entries where
// next is zero contribute their absolute difference.
func RInf(next, prev []float64) float64 {
	worst := 0.0
	for i, v := range next {
		diff := math.Abs(v - prev[i])
		if v != 0 {
			diff /= math.Abs(v)
		}
		worst = math.Max(worst, diff)
	}
	return worst
}

// ErrorNorms compares a scalar flux against a reference
type ErrorNorms struct {
	L2   float64 // (Σe ∫ (φ - φref)²)^½ over all groups
	RInf float64
}

// ReferenceError measures phi against the reference solution of p. It
// reports false when p has no reference.
func ReferenceError(p *transport.Problem, phi []float64) (ErrorNorms, bool) {
	ref := p.Reference()
	if ref == nil {
		return ErrorNorms{}, false
	}
	l := p.Layout
	sum := 0.0
	for e, td := range p.Mesh.Elements {
		for g := 0; g < l.NumGroups; g++ {
			var d [3]float64
			for i := range d {
				idx := l.ScalarAt(e, g, i)
				d[i] = phi[idx] - ref[idx]
			}
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					sum += d[i] * td.Mass[i][j] * d[j]
				}
			}
		}
	}
	return ErrorNorms{L2: math.Sqrt(math.Max(sum, 0)), RInf: RInf(ref, phi)}, true
}
