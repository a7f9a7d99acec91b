package solver

import (
	"fmt"
	"math"

	"github.com/notargets/DGTransport/partitions"
	"github.com/notargets/DGTransport/timing"
	"github.com/notargets/DGTransport/transport"
	"github.com/notargets/DGTransport/utils"
	"go.uber.org/zap"
)

// ErrNoFission is returned by SolveEigenvalue for a problem without fissile
// material
var ErrNoFission = fmt.Errorf("%w: eigenvalue problem without fissile material", utils.ErrInput)

// Config controls the iteration
type Config struct {
	Tolerance     float64
	MaxIterations int
	// Iterations in a row with the residual below Tolerance
	Consecutive int
	// Source iterations per power iteration
	InnerIterations int
	Workers         int
	Strategy        partitions.PartitionStrategy
}

// DefaultConfig returns the default iteration settings
func DefaultConfig() Config {
	return Config{
		Tolerance:       1e-6,
		MaxIterations:   1000,
		Consecutive:     1,
		InnerIterations: 10,
		Workers:         1,
		Strategy:        partitions.BlockPartition,
	}
}

// WithDefaults fills zero fields from DefaultConfig
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Tolerance == 0 {
		c.Tolerance = d.Tolerance
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.Consecutive == 0 {
		c.Consecutive = d.Consecutive
	}
	if c.InnerIterations == 0 {
		c.InnerIterations = d.InnerIterations
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	return c
}

// Validate rejects settings no solve can run with
func (c Config) Validate() error {
	switch {
	case !(c.Tolerance > 0):
		return fmt.Errorf("%w: tolerance %g", utils.ErrInput, c.Tolerance)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: max iterations %d", utils.ErrInput, c.MaxIterations)
	case c.Consecutive < 1:
		return fmt.Errorf("%w: consecutive %d", utils.ErrInput, c.Consecutive)
	case c.InnerIterations < 1:
		return fmt.Errorf("%w: inner iterations %d", utils.ErrInput, c.InnerIterations)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers %d", utils.ErrInput, c.Workers)
	}
	return nil
}

// Option configures a Solver
type Option func(*Solver)

// WithObserver reports every iteration to o
func WithObserver(o Observer) Option {
	return func(s *Solver) { s.observer = o }
}

// WithTimers records timings in r instead of a private registry
func WithTimers(r *timing.Registry) Option {
	return func(s *Solver) { s.timers = r }
}

// WithLogger logs through l
func WithLogger(l *zap.Logger) Option {
	return func(s *Solver) { s.logger = l }
}

// WithInitialGuess starts the iteration from psi, in the angular layout
func WithInitialGuess(psi []float64) Option {
	return func(s *Solver) { s.guess = psi }
}

// Solver runs source iteration and power iteration on one problem. A
// Solver is not safe for concurrent use; it owns its state during Solve*.
type Solver struct {
	problem  *transport.Problem
	cfg      Config
	observer Observer
	timers   *timing.Registry
	logger   *zap.Logger
	guess    []float64

	layout     *partitions.PartitionLayout
	workspaces []*transport.Workspace

	sol    *Solution
	phiOld []float64
	q      []float64
	fixed  []float64 // Frozen source of a power iteration
	bnd    []float64

	state  State
	result Result
}

// New creates a solver for a finalized problem
func New(p *transport.Problem, cfg Config, opts ...Option) (*Solver, error) {
	if !p.IsFinalized() {
		return nil, transport.ErrNotFinalized
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Solver{problem: p, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.timers == nil {
		s.timers = timing.NewRegistry()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.guess != nil && len(s.guess) != p.Layout.Size() {
		return nil, fmt.Errorf("%w: initial guess has %d values, expected %d", utils.ErrInput, len(s.guess), p.Layout.Size())
	}

	pb := &partitions.PartitionBuilder{
		NumItems:      p.NumOrdinates(),
		MaxPartitions: cfg.Workers,
		Strategy:      cfg.Strategy,
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return nil, err
	}
	s.layout = layout
	s.workspaces = make([]*transport.Workspace, layout.NumPartitions)
	for i := range s.workspaces {
		s.workspaces[i] = transport.NewWorkspace()
	}

	s.sol = NewSolution(p.Layout)
	s.phiOld = make([]float64, p.Layout.ScalarSize())
	s.q = make([]float64, p.Layout.Size())
	s.bnd = make([]float64, p.BoundarySize())
	return s, nil
}

// State returns the current state machine phase
func (s *Solver) State() State { return s.state }

// Config returns the effective configuration
func (s *Solver) Config() Config { return s.cfg }

// Timers returns the registry the solver records into
func (s *Solver) Timers() *timing.Registry { return s.timers }

func (s *Solver) initialize(fill float64) {
	s.state = Initialize
	s.result = Result{State: Initialize}
	if s.guess != nil {
		copy(s.sol.Psi, s.guess)
	} else {
		for i := range s.sol.Psi {
			s.sol.Psi[i] = fill
		}
	}
	s.sol.Eigenvalue, s.sol.HasEigenvalue = 0, false
	s.problem.ScalarFlux(s.sol.Psi, s.sol.Phi)
}

// iterate performs one source iteration: boundary snapshot, source
// evaluation, parallel sweep and the ordered φ reduction
func (s *Solver) iterate(cfg transport.SourceConfig, k float64) error {
	s.state = Sweep
	p := s.problem
	stop := s.timers.Scope(timing.Assembly)
	p.BoundaryInflow(s.sol.Psi, s.bnd)
	p.Source(s.sol.Psi, s.sol.Phi, cfg, k, s.q)
	if s.fixed != nil {
		for i, v := range s.fixed {
			s.q[i] += v
		}
	}
	stop()

	if err := s.sweep(); err != nil {
		return err
	}
	s.result.Sweeps++
	copy(s.phiOld, s.sol.Phi)
	p.ScalarFlux(s.sol.Psi, s.sol.Phi)
	return nil
}

func (s *Solver) observe(st Status) {
	s.result.Residuals = append(s.result.Residuals, st.Residual)
	if s.observer == nil {
		return
	}
	if err := s.observer.Observe(st); err != nil {
		s.result.ObserverErrors++
		s.logger.Warn("observer failed", zap.Int("iteration", st.Iteration), zap.Error(err))
	}
}

func (s *Solver) finish(state State, it int, residual float64) Result {
	s.state = state
	s.result.State = state
	s.result.Converged = state == Converged
	s.result.Iterations = it
	s.result.Residual = residual
	s.result.Eigenvalue = s.sol.Eigenvalue
	s.result.HasEigenvalue = s.sol.HasEigenvalue
	return s.result
}

// SolveFixedSource runs source iteration to convergence or MaxIterations.
// The returned error covers only failures that leave no usable solution.
func (s *Solver) SolveFixedSource() (*Solution, Result, error) {
	defer s.timers.Scope(timing.TotalSolve)()
	p := s.problem
	s.fixed = nil
	s.initialize(0)

	exact := !p.HasFluxDependentSource(transport.FullSource)
	consecutive := 0
	residual := math.Inf(1)
	for it := 1; it <= s.cfg.MaxIterations; it++ {
		if err := s.iterate(transport.FullSource, 1); err != nil {
			return nil, s.result, err
		}
		s.state = CheckConvergence
		residual = RInf(s.sol.Phi, s.phiOld)
		if exact {
			// Nothing feeds back into the source, another sweep changes nothing
			residual = 0
		}
		s.logger.Debug("source iteration", zap.Int("iteration", it), zap.Float64("residual", residual))

		if residual < s.cfg.Tolerance {
			consecutive++
		} else {
			consecutive = 0
		}
		done := consecutive >= s.cfg.Consecutive || exact
		if done {
			s.state = Converged
		}
		s.observe(Status{Iteration: it, Residual: residual, State: s.state})
		if done {
			res := s.finish(Converged, it, residual)
			s.logger.Info("fixed source converged", zap.Int("iterations", it), zap.Float64("residual", residual))
			return s.sol.Clone(), res, nil
		}
	}
	res := s.finish(MaxIterations, s.cfg.MaxIterations, residual)
	s.logger.Warn("fixed source did not converge", zap.Int("iterations", res.Iterations), zap.Float64("residual", residual))
	return s.sol.Clone(), res, nil
}

// SolveEigenvalue runs power iteration for the fundamental mode. Each outer
// iteration freezes the fission source and runs up to InnerIterations
// source iterations on scattering. The flux is normalised to unit total
// production.
func (s *Solver) SolveEigenvalue() (*Solution, Result, error) {
	defer s.timers.Scope(timing.TotalSolve)()
	p := s.problem
	if !p.Fissile() {
		return nil, s.result, ErrNoFission
	}
	s.initialize(1)
	s.sol.HasEigenvalue = true
	k := 1.0
	s.sol.Eigenvalue = k

	production := p.Production(s.sol.Phi)
	if !(production > 0) {
		return nil, s.result, fmt.Errorf("%w: initial guess has no fission production", utils.ErrInput)
	}

	inner := transport.SourceConfig{Scatter: true}
	// Without scattering or reflection one sweep solves the inner problem
	single := !p.HasFluxDependentSource(inner)
	s.fixed = make([]float64, p.Layout.Size())
	defer func() { s.fixed = nil }()
	outerPhi := make([]float64, p.Layout.ScalarSize())

	consecutive := 0
	residual := math.Inf(1)
	for outer := 1; outer <= s.cfg.MaxIterations; outer++ {
		copy(outerPhi, s.sol.Phi)
		p.Source(s.sol.Psi, s.sol.Phi, transport.SourceConfig{Fission: true}, k, s.fixed)

		for it := 0; it < s.cfg.InnerIterations; it++ {
			if err := s.iterate(inner, k); err != nil {
				return nil, s.result, err
			}
			if single || RInf(s.sol.Phi, s.phiOld) < s.cfg.Tolerance {
				break
			}
		}

		s.state = CheckConvergence
		next := p.Production(s.sol.Phi)
		kNext := k * next / production
		dk := math.Abs(kNext-k) / math.Abs(kNext)
		residual = math.Max(RInf(s.sol.Phi, outerPhi), dk)
		k, production = kNext, next
		s.sol.Eigenvalue = k
		s.logger.Debug("power iteration", zap.Int("iteration", outer), zap.Float64("k", k), zap.Float64("residual", residual))

		if residual < s.cfg.Tolerance {
			consecutive++
		} else {
			consecutive = 0
		}
		done := consecutive >= s.cfg.Consecutive
		if done {
			s.state = Converged
		}
		s.observe(Status{Iteration: outer, Residual: residual, Eigenvalue: k, HasEigenvalue: true, State: s.state})
		if done {
			s.sol.Normalize(1 / production)
			res := s.finish(Converged, outer, residual)
			s.logger.Info("eigenvalue converged", zap.Int("iterations", outer), zap.Float64("k", k))
			return s.sol.Clone(), res, nil
		}
	}
	s.sol.Normalize(1 / production)
	res := s.finish(MaxIterations, s.cfg.MaxIterations, residual)
	s.logger.Warn("eigenvalue did not converge", zap.Int("iterations", res.Iterations), zap.Float64("k", k), zap.Float64("residual", residual))
	return s.sol.Clone(), res, nil
}
