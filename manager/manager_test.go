package manager

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/notargets/DGTransport/dataset"
	"github.com/notargets/DGTransport/logging"
	"github.com/notargets/DGTransport/material"
	"github.com/notargets/DGTransport/solver"
	"github.com/notargets/DGTransport/store"
	"github.com/notargets/DGTransport/timing"
	"github.com/notargets/DGTransport/transient"
	"github.com/notargets/DGTransport/transport"
	"github.com/notargets/DGTransport/trimesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

func newProblem(t *testing.T, scatter, nuFission, source float64, bc transport.BoundaryCondition) *transport.Problem {
	t.Helper()
	m, err := material.New("fuel", 1, 0)
	require.NoError(t, err)
	require.NoError(t, m.SetTotal(0, 1))
	require.NoError(t, m.SetScatterMatrix(0, [][]float64{{scatter}}))
	if nuFission > 0 {
		require.NoError(t, m.SetNuFission(0, nuFission))
		require.NoError(t, m.SetSpectrum([]float64{1}))
	}
	require.NoError(t, m.SetSpeed(0, 1))
	d, err := m.Finalize()
	require.NoError(t, err)
	lib := material.NewLibrary(1)
	_, err = lib.Add(d)
	require.NoError(t, err)
	require.NoError(t, lib.Assign(0, "fuel"))

	mesh, err := trimesh.Rectangle(3, 3, 1, 1, 0)
	require.NoError(t, err)
	quad, err := transport.ProductQuadrature(2, 4)
	require.NoError(t, err)
	p, err := transport.NewProblem(mesh, lib, quad)
	require.NoError(t, err)
	for tag := trimesh.TagBottom; tag <= trimesh.TagLeft; tag++ {
		require.NoError(t, p.SetBoundary(tag, bc))
	}
	if source != 0 {
		require.NoError(t, p.SetUniformSource(0, []float64{source}))
	}
	return p
}

func TestParseProblemType(t *testing.T) {
	for _, pt := range []ProblemType{FixedSource, Eigenvalue, Transient} {
		got, err := ParseProblemType(pt.String())
		require.NoError(t, err)
		assert.Equal(t, pt, got)
	}
	got, err := ParseProblemType(" Eigenvalue ")
	require.NoError(t, err)
	assert.Equal(t, Eigenvalue, got)
	_, err = ParseProblemType("adjoint")
	assert.True(t, IsInput(err))
}

func TestRunFixedSource(t *testing.T) {
	core, logs := zapobserver.New(zapcore.DebugLevel)
	timers := timing.NewRegistry()
	m := New(WithLogger(zap.New(core)), WithTimers(timers))
	assert.Same(t, timers, m.Timers())

	p := newProblem(t, 0.5, 0, 1, transport.VacuumBoundary())
	res, err := m.Run(Input{Type: FixedSource, Problem: p, Solver: solver.Config{Tolerance: 1e-8}})
	require.NoError(t, err)

	assert.True(t, p.IsFinalized())
	assert.NotEqual(t, uuid.Nil, res.RunID)
	assert.True(t, res.Solver.Converged)
	assert.False(t, res.HasReference)
	require.NotNil(t, res.Solution)
	assert.Len(t, res.Solution.Phi, p.Layout.ScalarSize())
	assert.Equal(t, 1, timers.Count(timing.TotalSolve))

	names := make([]string, 0, len(res.Timings))
	for _, e := range res.Timings {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, timing.Sweep)

	assert.Equal(t, 1, logs.FilterMessage("run complete").Len())
	assert.Equal(t, res.Solver.Iterations, logs.FilterMessage("iteration").Len())
}

func TestRunTimingsPerRun(t *testing.T) {
	m := New()
	assert.Nil(t, m.Timers())
	in := func() Input {
		return Input{Type: FixedSource, Problem: newProblem(t, 0.5, 0, 1, transport.VacuumBoundary()),
			Solver: solver.Config{Tolerance: 1e-8}}
	}
	count := func(res *Result) int {
		for _, e := range res.Timings {
			if e.Name == timing.TotalSolve {
				return e.Count
			}
		}
		return 0
	}
	for i := 0; i < 2; i++ {
		res, err := m.Run(in())
		require.NoError(t, err)
		assert.Equal(t, 1, count(res), "run %d", i)
	}

	timers := timing.NewRegistry()
	shared := New(WithTimers(timers))
	for i := 1; i <= 2; i++ {
		res, err := shared.Run(in())
		require.NoError(t, err)
		assert.Equal(t, i, count(res))
	}
	assert.Equal(t, 2, timers.Count(timing.TotalSolve))
}

func TestRunEigenvalueDataSet(t *testing.T) {
	p := newProblem(t, 0.5, 0.8, 0, transport.ReflectingBoundary())
	res, err := New().Run(Input{Type: Eigenvalue, Problem: p, Solver: solver.Config{Tolerance: 1e-9, MaxIterations: 500}})
	require.NoError(t, err)
	require.True(t, res.Solution.HasEigenvalue)
	assert.InDelta(t, 1.6, res.Solution.Eigenvalue, 1e-6)
	assert.Contains(t, res.Summary(), "k=1.6")

	ds := res.DataSet()
	phi, ok := dataset.Find(ds, "solution/phi")
	require.True(t, ok)
	assert.Equal(t, res.Solution.Phi, dataset.Value(phi))
	k, ok := dataset.Find(ds, "solution/k")
	require.True(t, ok)
	kv, err := strconv.ParseFloat(dataset.Text(k), 64)
	require.NoError(t, err)
	assert.Equal(t, res.Solution.Eigenvalue, kv)
	etov, ok := dataset.Find(ds, "mesh/EToV")
	require.True(t, ok)
	assert.Len(t, dataset.Value(etov), 3*p.NumElements())
	dr, ok := dataset.Find(ds, "reference-element/Dr_Tri1")
	require.True(t, ok)
	assert.Len(t, dataset.Value(dr), 9)
	id, ok := dataset.Find(ds, "id")
	require.True(t, ok)
	assert.Equal(t, res.RunID.String(), dataset.Text(id))

	// The tree survives the store
	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.SaveResult(ctx, res.RunID.String(), res.Summary(), ds))
	stored, err := st.LoadArray(ctx, res.RunID.String(), "run/solution/phi")
	require.NoError(t, err)
	assert.Equal(t, res.Solution.Phi, stored)
}

func TestRunWithReference(t *testing.T) {
	// Pure absorber with incident flux 1 and source 1: φ = 1 everywhere
	p := newProblem(t, 0, 0, 1, transport.IncidentBoundary([]float64{1}))
	ref := make([]float64, p.Layout.ScalarSize())
	for i := range ref {
		ref[i] = 1
	}
	require.NoError(t, p.SetReferenceSolution(ref))

	res, err := New().Run(Input{Type: FixedSource, Problem: p})
	require.NoError(t, err)
	require.True(t, res.HasReference)
	assert.Less(t, res.ReferenceError.L2, 1e-10)
	assert.Less(t, res.ReferenceError.RInf, 1e-10)
	_, ok := dataset.Find(res.DataSet(), "reference-error/l2")
	assert.True(t, ok)
}

func TestRunTransient(t *testing.T) {
	p := newProblem(t, 0.5, 0, 1, transport.VacuumBoundary())
	sink := logging.Nop()
	res, err := New(WithSink(sink)).Run(Input{
		Type:      Transient,
		Problem:   p,
		Solver:    solver.Config{Tolerance: 1e-8},
		Transient: transient.Config{Dt: 0.1, EndTime: 0.3},
	})
	require.NoError(t, err)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, 1.0, res.KCritical)
	assert.Equal(t, res.Steps[2].Result, res.Solver)
	assert.Equal(t, 3, dataset.CountSets(mustFind(t, res.DataSet(), "transient"), "step"))
	assert.Contains(t, res.Summary(), "3 steps")
}

func mustFind(t *testing.T, n dataset.Node, path string) dataset.Node {
	t.Helper()
	found, ok := dataset.Find(n, path)
	require.True(t, ok, path)
	return found
}

func TestRunErrors(t *testing.T) {
	m := New()
	_, err := m.Run(Input{})
	assert.True(t, IsInput(err))

	p := newProblem(t, 0, 0, 1, transport.VacuumBoundary())
	_, err = m.Run(Input{Type: ProblemType(9), Problem: p})
	assert.True(t, IsInput(err))

	_, err = m.Run(Input{Type: FixedSource, Problem: p, Solver: solver.Config{Workers: -1}})
	assert.True(t, IsInput(err))

	_, err = m.Run(Input{Type: Eigenvalue, Problem: p})
	assert.ErrorIs(t, err, solver.ErrNoFission)

	// A failed transient step is fatal and keeps the partial result
	q := newProblem(t, 0.9, 0, 1, transport.VacuumBoundary())
	res, err := m.Run(Input{
		Type:      Transient,
		Problem:   q,
		Solver:    solver.Config{Tolerance: 1e-14, MaxIterations: 2},
		Transient: transient.Config{Dt: 0.1, EndTime: 1},
	})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, transient.ErrStepFailed))
	require.NotNil(t, res)
	assert.Empty(t, res.Steps)
}

func TestObserverErrorsDoNotAbort(t *testing.T) {
	calls := 0
	obs := solver.ObserverFunc(func(solver.Status) error {
		calls++
		return errors.New("observer down")
	})
	p := newProblem(t, 0.5, 0, 1, transport.VacuumBoundary())
	res, err := New(WithObserver(obs)).Run(Input{Type: FixedSource, Problem: p})
	require.NoError(t, err)
	assert.True(t, res.Solver.Converged)
	assert.Equal(t, res.Solver.Iterations, calls)
	assert.Equal(t, calls, res.Solver.ObserverErrors)
}
