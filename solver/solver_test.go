package solver

import (
	"errors"
	"math"
	"testing"

	"github.com/notargets/DGTransport/material"
	"github.com/notargets/DGTransport/partitions"
	"github.com/notargets/DGTransport/timing"
	"github.com/notargets/DGTransport/transport"
	"github.com/notargets/DGTransport/trimesh"
	"github.com/notargets/DGTransport/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type xs struct {
	total, scatter, nuFission float64
}

func oneGroup(t *testing.T, c xs) *material.Library {
	t.Helper()
	m, err := material.New("m", 1, 0)
	require.NoError(t, err)
	require.NoError(t, m.SetTotal(0, c.total))
	require.NoError(t, m.SetScatterMatrix(0, [][]float64{{c.scatter}}))
	if c.nuFission > 0 {
		require.NoError(t, m.SetNuFission(0, c.nuFission))
		require.NoError(t, m.SetSpectrum([]float64{1}))
	}
	require.NoError(t, m.SetSpeed(0, 1))
	d, err := m.Finalize()
	require.NoError(t, err)
	lib := material.NewLibrary(1)
	_, err = lib.Add(d)
	require.NoError(t, err)
	require.NoError(t, lib.Assign(0, "m"))
	return lib
}

func rectangleProblem(t *testing.T, n int, c xs, bc transport.BoundaryCondition) *transport.Problem {
	t.Helper()
	mesh, err := trimesh.Rectangle(n, n, 1, 1, 0)
	require.NoError(t, err)
	quad, err := transport.ProductQuadrature(2, 4)
	require.NoError(t, err)
	p, err := transport.NewProblem(mesh, oneGroup(t, c), quad)
	require.NoError(t, err)
	for tag := trimesh.TagBottom; tag <= trimesh.TagLeft; tag++ {
		require.NoError(t, p.SetBoundary(tag, bc))
	}
	return p
}

func TestTwoTriangleAbsorber(t *testing.T) {
	mesh, err := trimesh.Build(
		[]trimesh.Vertex{{ID: 0, X: 0, Y: 0}, {ID: 1, X: 1, Y: 0}, {ID: 2, X: 0, Y: 1}, {ID: 3, X: 1, Y: 1}},
		[]trimesh.Triangle{{V: [3]int{0, 1, 3}}, {V: [3]int{0, 3, 2}}},
		[]trimesh.BoundaryEdge{{V0: 0, V1: 1, Tag: 1}, {V0: 1, V1: 3, Tag: 1}, {V0: 3, V1: 2, Tag: 1}, {V0: 2, V1: 0, Tag: 1}},
	)
	require.NoError(t, err)
	quad, err := transport.ProductQuadrature(2, 4)
	require.NoError(t, err)
	p, err := transport.NewProblem(mesh, oneGroup(t, xs{total: 1}), quad)
	require.NoError(t, err)
	require.NoError(t, p.SetUniformSource(0, []float64{1}))
	require.NoError(t, p.SetBoundary(1, transport.IncidentBoundary([]float64{1})))
	require.NoError(t, p.Finalize())

	s, err := New(p, Config{})
	require.NoError(t, err)
	sol, res, err := s.SolveFixedSource()
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, Converged, res.State)
	assert.Equal(t, Converged, s.State())
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, res.Sweeps)
	for _, v := range sol.Phi {
		assert.InDelta(t, 1.0, v, 1e-12)
	}
	assert.False(t, sol.HasEigenvalue)
}

func TestVacuumAbsorberConvergesToZero(t *testing.T) {
	p := rectangleProblem(t, 4, xs{total: 1, scatter: 0.3}, transport.VacuumBoundary())
	require.NoError(t, p.Finalize())

	s, err := New(p, Config{Tolerance: 1e-10})
	require.NoError(t, err)
	sol, res, err := s.SolveFixedSource()
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 0.0, LInfNorm(sol.Psi))
}

func TestSourceIterationResidualIsMonotone(t *testing.T) {
	p := rectangleProblem(t, 4, xs{total: 1, scatter: 0.5}, transport.VacuumBoundary())
	require.NoError(t, p.SetUniformSource(0, []float64{1}))
	require.NoError(t, p.Finalize())

	var seen []Status
	observer := ObserverFunc(func(st Status) error {
		seen = append(seen, st)
		return nil
	})
	s, err := New(p, Config{Tolerance: 1e-8}, WithObserver(observer))
	require.NoError(t, err)
	sol, res, err := s.SolveFixedSource()
	require.NoError(t, err)
	require.True(t, res.Converged)

	require.Greater(t, len(res.Residuals), 5)
	for i := 1; i < len(res.Residuals); i++ {
		assert.LessOrEqual(t, res.Residuals[i], res.Residuals[i-1], "iteration %d", i+1)
	}
	require.Len(t, seen, res.Iterations)
	assert.Equal(t, Converged, seen[len(seen)-1].State)
	assert.Equal(t, CheckConvergence, seen[0].State)

	// Bounded by the infinite medium flux q/σa = 2
	for _, v := range sol.Phi {
		assert.Greater(t, v, 0.0)
		assert.Less(t, v, 2.0)
	}
}

// A linearly anisotropic kernel redistributes angle but keeps the infinite
// medium balance φ = q/σa
func TestAnisotropicScatteringInfiniteMedium(t *testing.T) {
	m, err := material.New("aniso", 1, 1)
	require.NoError(t, err)
	require.NoError(t, m.SetTotal(0, 1))
	require.NoError(t, m.SetScatterMatrix(0, [][]float64{{0.5}}))
	require.NoError(t, m.SetScatterMatrix(1, [][]float64{{0.3}}))
	d, err := m.Finalize()
	require.NoError(t, err)
	lib := material.NewLibrary(1)
	_, err = lib.Add(d)
	require.NoError(t, err)
	require.NoError(t, lib.Assign(0, "aniso"))

	mesh, err := trimesh.Rectangle(3, 3, 1, 1, 0)
	require.NoError(t, err)
	quad, err := transport.ProductQuadrature(2, 4)
	require.NoError(t, err)
	p, err := transport.NewProblem(mesh, lib, quad)
	require.NoError(t, err)
	for tag := trimesh.TagBottom; tag <= trimesh.TagLeft; tag++ {
		require.NoError(t, p.SetBoundary(tag, transport.ReflectingBoundary()))
	}
	require.NoError(t, p.SetUniformSource(0, []float64{1}))
	require.NoError(t, p.Finalize())

	s, err := New(p, Config{Tolerance: 1e-10, Workers: 3})
	require.NoError(t, err)
	sol, res, err := s.SolveFixedSource()
	require.NoError(t, err)
	require.True(t, res.Converged)
	for i, v := range sol.Phi {
		assert.InDelta(t, 2.0, v, 1e-6, "node %d", i)
	}
}

func TestMaxIterationsIsAStatus(t *testing.T) {
	p := rectangleProblem(t, 2, xs{total: 1, scatter: 0.9}, transport.VacuumBoundary())
	require.NoError(t, p.SetUniformSource(0, []float64{1}))
	require.NoError(t, p.Finalize())

	s, err := New(p, Config{Tolerance: 1e-14, MaxIterations: 3})
	require.NoError(t, err)
	sol, res, err := s.SolveFixedSource()
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.False(t, res.Converged)
	assert.Equal(t, MaxIterations, res.State)
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, res.Residuals, 3)
}

func TestConsecutiveConvergence(t *testing.T) {
	p := rectangleProblem(t, 2, xs{total: 1, scatter: 0.5}, transport.VacuumBoundary())
	require.NoError(t, p.SetUniformSource(0, []float64{1}))
	require.NoError(t, p.Finalize())

	single, err := New(p, Config{Tolerance: 1e-6})
	require.NoError(t, err)
	_, r1, err := single.SolveFixedSource()
	require.NoError(t, err)

	triple, err := New(p, Config{Tolerance: 1e-6, Consecutive: 3})
	require.NoError(t, err)
	_, r3, err := triple.SolveFixedSource()
	require.NoError(t, err)
	assert.Equal(t, r1.Iterations+2, r3.Iterations)
}

func TestObserverErrorsDoNotAbort(t *testing.T) {
	p := rectangleProblem(t, 2, xs{total: 1, scatter: 0.5}, transport.VacuumBoundary())
	require.NoError(t, p.SetUniformSource(0, []float64{1}))
	require.NoError(t, p.Finalize())

	failing := ObserverFunc(func(Status) error { return errors.New("sink unavailable") })
	s, err := New(p, Config{}, WithObserver(failing))
	require.NoError(t, err)
	_, res, err := s.SolveFixedSource()
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, res.Iterations, res.ObserverErrors)
}

func eigenProblem(t *testing.T, bc transport.BoundaryCondition) *transport.Problem {
	t.Helper()
	p := rectangleProblem(t, 3, xs{total: 1, scatter: 0.5, nuFission: 0.6}, bc)
	require.NoError(t, p.Finalize())
	return p
}

func TestEigenvalueInfiniteMedium(t *testing.T) {
	p := eigenProblem(t, transport.ReflectingBoundary())
	s, err := New(p, Config{Tolerance: 1e-9})
	require.NoError(t, err)
	sol, res, err := s.SolveEigenvalue()
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.True(t, res.HasEigenvalue)
	assert.True(t, sol.HasEigenvalue)
	// k∞ = νσf / (σt - σs)
	assert.InDelta(t, 1.2, res.Eigenvalue, 1e-6)
	assert.InDelta(t, 1.0, p.Production(sol.Phi), 1e-12)
}

func TestEigenvalueIsDeterministic(t *testing.T) {
	p := eigenProblem(t, transport.VacuumBoundary())
	run := func(workers int, strategy partitions.PartitionStrategy) (*Solution, Result) {
		timers := timing.NewRegistry()
		s, err := New(p, Config{Tolerance: 1e-8, Workers: workers, Strategy: strategy}, WithTimers(timers))
		require.NoError(t, err)
		sol, res, err := s.SolveEigenvalue()
		require.NoError(t, err)
		assert.Equal(t, res.Sweeps, timers.Count(timing.Sweep))
		assert.Equal(t, 1, timers.Count(timing.TotalSolve))
		return sol, res
	}
	solA, resA := run(1, partitions.BlockPartition)
	solB, resB := run(4, partitions.BlockPartition)
	solC, resC := run(3, partitions.RoundRobin)
	solD, _ := run(1, partitions.BlockPartition)

	require.True(t, resA.Converged)
	assert.Less(t, resA.Eigenvalue, 1.2)
	assert.Greater(t, resA.Eigenvalue, 0.0)
	for _, r := range []Result{resB, resC} {
		assert.Equal(t, resA.Eigenvalue, r.Eigenvalue)
		assert.Equal(t, resA.Iterations, r.Iterations)
	}
	assert.Equal(t, solA.Fingerprint(), solB.Fingerprint())
	assert.Equal(t, solA.Fingerprint(), solC.Fingerprint())
	assert.Equal(t, solA.Fingerprint(), solD.Fingerprint())
}

func TestEigenvalueSingleSweepWithoutScattering(t *testing.T) {
	p := rectangleProblem(t, 3, xs{total: 1, nuFission: 0.6}, transport.VacuumBoundary())
	require.NoError(t, p.Finalize())
	s, err := New(p, Config{Tolerance: 1e-8, InnerIterations: 10})
	require.NoError(t, err)
	_, res, err := s.SolveEigenvalue()
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.Equal(t, res.Iterations, res.Sweeps)
	assert.Less(t, res.Eigenvalue, 0.6)
}

func TestEigenvalueWithoutFission(t *testing.T) {
	p := rectangleProblem(t, 2, xs{total: 1, scatter: 0.5}, transport.VacuumBoundary())
	require.NoError(t, p.Finalize())
	s, err := New(p, Config{})
	require.NoError(t, err)
	_, _, err = s.SolveEigenvalue()
	assert.True(t, errors.Is(err, ErrNoFission))
	assert.True(t, errors.Is(err, utils.ErrInput))
}

// TestManufacturedSolution checks second order convergence against
// ψ = φ = 1 + sin(x) cos(y) driven by the matching source and inflow
func TestManufacturedSolution(t *testing.T) {
	const sigma = 1.5
	f := func(x, y float64) float64 { return 1 + math.Sin(x)*math.Cos(y) }
	fx := func(x, y float64) float64 { return math.Cos(x) * math.Cos(y) }
	fy := func(x, y float64) float64 { return -math.Sin(x) * math.Sin(y) }

	l2 := func(n int) float64 {
		mesh, err := trimesh.Rectangle(n, n, 1, 1, 0)
		require.NoError(t, err)
		quad, err := transport.ProductQuadrature(2, 8)
		require.NoError(t, err)
		p, err := transport.NewProblem(mesh, oneGroup(t, xs{total: sigma}), quad)
		require.NoError(t, err)
		require.NoError(t, p.SetSourceFunc(func(x, y float64, _ int, o transport.Ordinate, _ int) float64 {
			return o.Wx*fx(x, y) + o.Wy*fy(x, y) + sigma*f(x, y)
		}))
		inflow := transport.IncidentBoundaryFunc(func(x, y float64, _ int, _ transport.Ordinate, _ int) float64 {
			return f(x, y)
		})
		for tag := trimesh.TagBottom; tag <= trimesh.TagLeft; tag++ {
			require.NoError(t, p.SetBoundary(tag, inflow))
		}
		ref := make([]float64, p.Layout.ScalarSize())
		for e, td := range mesh.Elements {
			for i := 0; i < 3; i++ {
				ref[p.Layout.ScalarAt(e, 0, i)] = f(td.X[i], td.Y[i])
			}
		}
		require.NoError(t, p.SetReferenceSolution(ref))
		require.NoError(t, p.Finalize())

		s, err := New(p, Config{Workers: 2})
		require.NoError(t, err)
		sol, res, err := s.SolveFixedSource()
		require.NoError(t, err)
		require.True(t, res.Converged)
		norms, ok := ReferenceError(p, sol.Phi)
		require.True(t, ok)
		return norms.L2
	}

	coarse, fine := l2(4), l2(8)
	assert.Less(t, fine, 0.01)
	assert.Greater(t, coarse/fine, 2.5, "coarse %g fine %g", coarse, fine)
}

func TestNewValidation(t *testing.T) {
	p := rectangleProblem(t, 1, xs{total: 1}, transport.VacuumBoundary())
	_, err := New(p, Config{})
	assert.True(t, errors.Is(err, transport.ErrNotFinalized))

	require.NoError(t, p.Finalize())
	_, err = New(p, Config{Tolerance: -1})
	assert.True(t, errors.Is(err, utils.ErrInput))
	_, err = New(p, Config{Workers: -2})
	assert.True(t, errors.Is(err, utils.ErrInput))
	_, err = New(p, Config{}, WithInitialGuess([]float64{1}))
	assert.True(t, errors.Is(err, utils.ErrInput))

	s, err := New(p, Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), s.Config())
	assert.Equal(t, Initialize, s.State())
}

func TestInitialGuess(t *testing.T) {
	p := rectangleProblem(t, 2, xs{total: 1, scatter: 0.5}, transport.VacuumBoundary())
	require.NoError(t, p.SetUniformSource(0, []float64{1}))
	require.NoError(t, p.Finalize())

	cold, err := New(p, Config{Tolerance: 1e-10})
	require.NoError(t, err)
	ref, coldRes, err := cold.SolveFixedSource()
	require.NoError(t, err)

	warm, err := New(p, Config{Tolerance: 1e-10}, WithInitialGuess(ref.Psi))
	require.NoError(t, err)
	sol, warmRes, err := warm.SolveFixedSource()
	require.NoError(t, err)
	assert.Less(t, warmRes.Iterations, coldRes.Iterations)
	assert.InDelta(t, 0.0, RInf(sol.Phi, ref.Phi), 1e-9)
}
