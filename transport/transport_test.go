package transport

import (
	"errors"
	"testing"

	"github.com/notargets/DGTransport/material"
	"github.com/notargets/DGTransport/trimesh"
	"github.com/notargets/DGTransport/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func absorber(t *testing.T, name string, sigma float64) *material.Data {
	t.Helper()
	m, err := material.New(name, 1, 0)
	require.NoError(t, err)
	require.NoError(t, m.SetTotal(0, sigma))
	m.SetNoScatter()
	require.NoError(t, m.SetSpeed(0, 1))
	d, err := m.Finalize()
	require.NoError(t, err)
	return d
}

func library(t *testing.T, d *material.Data, regions ...int) *material.Library {
	t.Helper()
	lib := material.NewLibrary(d.NumGroups())
	_, err := lib.Add(d)
	require.NoError(t, err)
	for _, r := range regions {
		require.NoError(t, lib.Assign(r, d.Name()))
	}
	return lib
}

func twoTriangles(t *testing.T) *trimesh.Mesh {
	t.Helper()
	m, err := trimesh.Build(
		[]trimesh.Vertex{{ID: 0, X: 0, Y: 0}, {ID: 1, X: 1, Y: 0}, {ID: 2, X: 1, Y: 1}, {ID: 3, X: 0, Y: 1}},
		[]trimesh.Triangle{{V: [3]int{0, 1, 2}}, {V: [3]int{0, 2, 3}}},
		[]trimesh.BoundaryEdge{{V0: 0, V1: 1, Tag: 1}, {V0: 1, V1: 2, Tag: 1}, {V0: 2, V1: 3, Tag: 1}, {V0: 3, V1: 0, Tag: 1}},
	)
	require.NoError(t, err)
	return m
}

// sweepAll runs one source iteration in place
func sweepAll(t *testing.T, p *Problem, psi, q, bnd []float64) {
	t.Helper()
	ws := NewWorkspace()
	for m := 0; m < p.NumOrdinates(); m++ {
		for _, e := range p.Sweep(m).Order {
			require.NoError(t, p.SweepElement(m, e, psi, q, bnd, ws))
		}
	}
}

func TestProductQuadrature(t *testing.T) {
	q, err := ProductQuadrature(2, 8)
	require.NoError(t, err)
	require.Equal(t, 16, q.Len())

	sum, sx, sxx := 0.0, 0.0, 0.0
	for _, o := range q.Ordinates {
		assert.InDelta(t, 1.0, o.Wx*o.Wx+o.Wy*o.Wy+o.Wz*o.Wz, 1e-14)
		assert.Greater(t, o.Wz, 0.0)
		sum += o.W
		sx += o.W * o.Wx
		sxx += o.W * o.Wx * o.Wx
	}
	assert.InDelta(t, 1.0, sum, 1e-14)
	assert.InDelta(t, 0.0, sx, 1e-14)
	// Second moment of a unit sphere direction component is 1/3
	assert.InDelta(t, 1.0/3, sxx, 1e-14)

	// Closed under reflection about both axes
	for _, o := range q.Ordinates {
		for _, n := range [][2]float64{{1, 0}, {0, 1}} {
			_, ok := reflectedOrdinate(q, o, n[0], n[1])
			assert.True(t, ok)
		}
	}

	_, err = ProductQuadrature(0, 4)
	assert.True(t, errors.Is(err, ErrQuadrature))
}

func TestNewQuadrature(t *testing.T) {
	q, err := NewQuadrature([]Ordinate{{Wx: 1, W: 2}, {Wy: 1, W: 6}})
	require.NoError(t, err)
	assert.Equal(t, 0.25, q.Ordinates[0].W)
	assert.Equal(t, 0.75, q.Ordinates[1].W)

	_, err = NewQuadrature([]Ordinate{{Wx: 1, Wy: 1, W: 1}})
	assert.True(t, errors.Is(err, ErrQuadrature))
	_, err = NewQuadrature([]Ordinate{{Wx: 1, W: 0}})
	assert.True(t, errors.Is(err, ErrQuadrature))
	_, err = NewQuadrature(nil)
	assert.True(t, errors.Is(err, utils.ErrInput))
}

func TestScatterKernels(t *testing.T) {
	q, err := ProductQuadrature(2, 4)
	require.NoError(t, err)
	K := q.ScatterKernels(2)
	for m := range q.Ordinates {
		for mp, p := range q.Ordinates {
			assert.InDelta(t, p.W, K[0][m][mp], 1e-15)
		}
		// Σ_m' K_l[m][m'] = (2l+1) ∫ P_l = 0 for l >= 1 up to quadrature error
		sum := 0.0
		for _, v := range K[1][m] {
			sum += v
		}
		assert.InDelta(t, 0.0, sum, 1e-13)
	}
}

func TestConstantSolutionIsExact(t *testing.T) {
	mesh := twoTriangles(t)
	quad, err := ProductQuadrature(1, 4)
	require.NoError(t, err)
	p, err := NewProblem(mesh, library(t, absorber(t, "a", 1), 0), quad)
	require.NoError(t, err)
	require.NoError(t, p.SetUniformSource(0, []float64{1}))
	require.NoError(t, p.SetBoundary(1, IncidentBoundary([]float64{1})))
	require.NoError(t, p.Finalize())
	assert.False(t, p.HasFluxDependentSource(FullSource))

	l := p.Layout
	psi := make([]float64, l.Size())
	phi := make([]float64, l.ScalarSize())
	q := make([]float64, l.Size())
	bnd := make([]float64, p.BoundarySize())

	p.BoundaryInflow(psi, bnd)
	p.Source(psi, phi, FullSource, 1, q)
	sweepAll(t, p, psi, q, bnd)
	p.ScalarFlux(psi, phi)

	for _, v := range psi {
		assert.InDelta(t, 1.0, v, 1e-12)
	}
	for _, v := range phi {
		assert.InDelta(t, 1.0, v, 1e-12)
	}
	assert.Less(t, p.Residual(psi, q, bnd), 1e-12)
}

func TestVacuumAbsorberIsZero(t *testing.T) {
	mesh, err := trimesh.Rectangle(3, 3, 1, 1, 0)
	require.NoError(t, err)
	quad, err := ProductQuadrature(1, 4)
	require.NoError(t, err)
	p, err := NewProblem(mesh, library(t, absorber(t, "a", 2), 0), quad)
	require.NoError(t, err)
	require.NoError(t, p.Finalize())

	l := p.Layout
	psi := make([]float64, l.Size())
	for i := range psi {
		psi[i] = 5
	}
	phi := make([]float64, l.ScalarSize())
	q := make([]float64, l.Size())
	bnd := make([]float64, p.BoundarySize())
	p.BoundaryInflow(psi, bnd)
	p.Source(psi, phi, FullSource, 1, q)
	sweepAll(t, p, psi, q, bnd)
	for _, v := range psi {
		assert.InDelta(t, 0.0, v, 1e-14)
	}
}

func TestReflectingBoundaryInflow(t *testing.T) {
	mesh, err := trimesh.Rectangle(2, 2, 1, 1, 0)
	require.NoError(t, err)
	quad, err := ProductQuadrature(1, 4)
	require.NoError(t, err)
	p, err := NewProblem(mesh, library(t, absorber(t, "a", 1), 0), quad)
	require.NoError(t, err)
	for tag := 1; tag <= 4; tag++ {
		require.NoError(t, p.SetBoundary(tag, ReflectingBoundary()))
	}
	require.NoError(t, p.SetUniformSource(0, []float64{1}))
	require.NoError(t, p.Finalize())
	assert.True(t, p.HasFluxDependentSource(SourceConfig{}))

	// With ψ = 1/σ everywhere the reflected inflow is 1/σ and the
	// infinite medium solution is a fixed point
	l := p.Layout
	psi := make([]float64, l.Size())
	for i := range psi {
		psi[i] = 1
	}
	phi := make([]float64, l.ScalarSize())
	q := make([]float64, l.Size())
	bnd := make([]float64, p.BoundarySize())
	p.BoundaryInflow(psi, bnd)
	// Half the ordinates enter through each axis aligned edge
	sum := 0.0
	for _, v := range bnd {
		sum += v
	}
	assert.Equal(t, float64(len(bnd)/2), sum)
	p.Source(psi, phi, FullSource, 1, q)
	sweepAll(t, p, psi, q, bnd)
	for _, v := range psi {
		assert.InDelta(t, 1.0, v, 1e-12)
	}
}

func TestFinalizeErrors(t *testing.T) {
	mesh, err := trimesh.Rectangle(2, 2, 1, 1, 3)
	require.NoError(t, err)

	// Region without a material
	quad, err := ProductQuadrature(1, 4)
	require.NoError(t, err)
	p, err := NewProblem(mesh, library(t, absorber(t, "a", 1), 0), quad)
	require.NoError(t, err)
	err = p.Finalize()
	assert.True(t, errors.Is(err, material.ErrNoMaterial))

	// Odd azimuthal count cannot reflect about the x axis normal
	odd, err := ProductQuadrature(1, 3)
	require.NoError(t, err)
	p, err = NewProblem(mesh, library(t, absorber(t, "a", 1), 3), odd)
	require.NoError(t, err)
	require.NoError(t, p.SetBoundary(trimesh.TagRight, ReflectingBoundary()))
	err = p.Finalize()
	assert.True(t, errors.Is(err, ErrReflection))

	// Group count mismatch is fatal
	p, err = NewProblem(mesh, library(t, absorber(t, "a", 1), 3), quad)
	require.NoError(t, err)
	err = p.SetUniformSource(3, []float64{1, 2})
	assert.True(t, errors.Is(err, material.ErrGroupMismatch))
	assert.True(t, errors.Is(err, utils.ErrFatal))

	err = p.SetUniformSource(9, []float64{1})
	assert.True(t, errors.Is(err, utils.ErrInput))
	assert.Error(t, p.SetReferenceSolution([]float64{1}))

	require.NoError(t, p.Finalize())
	assert.True(t, errors.Is(p.SetBoundary(1, VacuumBoundary()), ErrFinalized))
}

func TestEffectiveAndProduction(t *testing.T) {
	mesh, err := trimesh.Rectangle(2, 1, 2, 1, 0)
	require.NoError(t, err)
	quad, err := ProductQuadrature(1, 4)
	require.NoError(t, err)

	m, err := material.New("fuel", 1, 0)
	require.NoError(t, err)
	require.NoError(t, m.SetTotal(0, 1))
	require.NoError(t, m.SetScatterMatrix(0, [][]float64{{0.5}}))
	require.NoError(t, m.SetNuFission(0, 0.4))
	require.NoError(t, m.SetSpectrum([]float64{1}))
	require.NoError(t, m.SetSpeed(0, 4))
	d, err := m.Finalize()
	require.NoError(t, err)

	p, err := NewProblem(mesh, library(t, d, 0), quad)
	require.NoError(t, err)
	_, err = p.Effective(Modifiers{})
	assert.True(t, errors.Is(err, ErrNotFinalized))
	require.NoError(t, p.Finalize())
	assert.True(t, p.Fissile())

	phi := make([]float64, p.Layout.ScalarSize())
	for i := range phi {
		phi[i] = 2
	}
	assert.InDelta(t, 0.4*2*2, p.Production(phi), 1e-13)
	assert.InDelta(t, 0.8, p.NodalProduction(phi, 0, 1), 1e-15)

	eff, err := p.Effective(Modifiers{TimeAbsorption: 10, FissionScale: []float64{0.5}})
	require.NoError(t, err)
	assert.InDelta(t, 1+10.0/4, eff.Sigma(0, 0), 1e-15)
	assert.Equal(t, 1.0, p.Sigma(0, 0))
	inv, err := eff.InverseSpeed(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.25, inv)

	// Source: scatter 0.5φ + fission 0.5·0.4φ/k with k = 2
	psi := make([]float64, p.Layout.Size())
	q := make([]float64, p.Layout.Size())
	eff.Source(psi, phi, SourceConfig{Scatter: true, Fission: true}, 2, q)
	for _, v := range q {
		assert.InDelta(t, 0.5*2+0.5*0.4*2/2, v, 1e-14)
	}

	_, err = p.Effective(Modifiers{FissionScale: []float64{1, 2}})
	assert.True(t, errors.Is(err, utils.ErrInput))
}
