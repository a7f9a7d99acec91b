package transient

import (
	"fmt"
	"math"

	"github.com/notargets/DGTransport/material"
	"github.com/notargets/DGTransport/solver"
	"github.com/notargets/DGTransport/timing"
	"github.com/notargets/DGTransport/transport"
	"github.com/notargets/DGTransport/utils"
	"go.uber.org/zap"
)

// ErrStepFailed is returned when the inner solve of a time step does not
// converge. The run cannot continue.
var ErrStepFailed = fmt.Errorf("%w: transient step did not converge", utils.ErrFatal)

// InitialKind selects how the state at t = 0 is obtained
type InitialKind uint8

const (
	Zero InitialKind = iota
	SteadyState
	Eigenvalue
	Provided
)

func (k InitialKind) String() string {
	switch k {
	case Zero:
		return "zero"
	case SteadyState:
		return "steady-state"
	case Eigenvalue:
		return "eigenvalue"
	case Provided:
		return "provided"
	default:
		return fmt.Sprintf("InitialKind(%d)", uint8(k))
	}
}

// ParseInitial converts an initial condition name
func ParseInitial(s string) (InitialKind, error) {
	for k := Zero; k <= Provided; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	if s == "" {
		return Zero, nil
	}
	return 0, fmt.Errorf("%w: unknown initial condition %q", utils.ErrInput, s)
}

// Config describes a transient run
type Config struct {
	Order      Order
	Dt         float64
	EndTime    float64
	Initial    InitialKind
	InitialPsi []float64 // Angular layout, used with Provided
}

// StepRecord summarises one completed time step
type StepRecord struct {
	Step            int
	Time            float64
	Dt              float64
	Order           Order
	Result          solver.Result
	TotalProduction float64
}

// Option configures a Driver
type Option func(*Driver)

func WithTimers(r *timing.Registry) Option { return func(d *Driver) { d.timers = r } }
func WithLogger(l *zap.Logger) Option      { return func(d *Driver) { d.logger = l } }

// WithObserver passes o to every inner solve
func WithObserver(o solver.Observer) Option { return func(d *Driver) { d.observer = o } }

// Driver advances a problem in time with fixed steps, solving one fixed
// source problem per step
type Driver struct {
	problem   *transport.Problem
	cfg       Config
	solverCfg solver.Config
	timers    *timing.Registry
	logger    *zap.Logger
	observer  solver.Observer

	initialized bool
	kCrit       float64
	time        float64
	step        int
	dtPrev      float64

	current      *solver.Solution
	psi1, psi2   []float64   // ψⁿ⁻¹, ψⁿ⁻²
	prec1, prec2 [][]float64 // [e][family*Np+i] at n-1, n-2

	records []StepRecord
}

// NewDriver validates the run settings against a finalized problem
func NewDriver(p *transport.Problem, cfg Config, solverCfg solver.Config, opts ...Option) (*Driver, error) {
	if !p.IsFinalized() {
		return nil, transport.ErrNotFinalized
	}
	if cfg.Order == 0 {
		cfg.Order = DefaultOrder
	}
	if cfg.Order != BDF1 && cfg.Order != BDF2 {
		return nil, fmt.Errorf("%w: order %v", utils.ErrInput, cfg.Order)
	}
	if !(cfg.Dt > 0) || !(cfg.EndTime > 0) {
		return nil, fmt.Errorf("%w: time step %g and end time %g must be positive", utils.ErrInput, cfg.Dt, cfg.EndTime)
	}
	if cfg.Initial == Provided && len(cfg.InitialPsi) != p.Layout.Size() {
		return nil, fmt.Errorf("%w: initial flux has %d values, expected %d", utils.ErrInput, len(cfg.InitialPsi), p.Layout.Size())
	}
	for i := 0; i < p.Library.Len(); i++ {
		if m := p.Library.Material(i); !m.HasSpeed() {
			return nil, fmt.Errorf("transient needs group speeds: material %q: %w", m.Name(), material.ErrUnpopulated)
		}
	}

	d := &Driver{
		problem:   p,
		cfg:       cfg,
		solverCfg: solverCfg,
		kCrit:     1,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.timers == nil {
		d.timers = timing.NewRegistry()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	d.prec1 = d.newPrecursors()
	d.prec2 = d.newPrecursors()
	return d, nil
}

func (d *Driver) newPrecursors() [][]float64 {
	p := d.problem
	c := make([][]float64, p.NumElements())
	for e := range c {
		c[e] = make([]float64, p.MaterialOf(e).NumFamilies()*p.Layout.Np)
	}
	return c
}

func (d *Driver) solverOptions(extra ...solver.Option) []solver.Option {
	opts := []solver.Option{solver.WithTimers(d.timers), solver.WithLogger(d.logger)}
	if d.observer != nil {
		opts = append(opts, solver.WithObserver(d.observer))
	}
	return append(opts, extra...)
}

// Initialize computes the state at t = 0
func (d *Driver) Initialize() (*solver.Solution, error) {
	p := d.problem
	var sol *solver.Solution
	switch d.cfg.Initial {
	case Zero:
		sol = solver.NewSolution(p.Layout)

	case Provided:
		sol = solver.NewSolution(p.Layout)
		copy(sol.Psi, d.cfg.InitialPsi)
		p.ScalarFlux(sol.Psi, sol.Phi)

	case SteadyState, Eigenvalue:
		s, err := solver.New(p, d.solverCfg, d.solverOptions()...)
		if err != nil {
			return nil, err
		}
		var res solver.Result
		if d.cfg.Initial == SteadyState {
			sol, res, err = s.SolveFixedSource()
		} else {
			sol, res, err = s.SolveEigenvalue()
		}
		if err != nil {
			return nil, err
		}
		if !res.Converged {
			return nil, fmt.Errorf("initial %v solve after %d iterations: %w", d.cfg.Initial, res.Iterations, ErrStepFailed)
		}
		if d.cfg.Initial == Eigenvalue {
			d.kCrit = res.Eigenvalue
			d.equilibriumPrecursors(sol.Phi)
		}

	default:
		return nil, fmt.Errorf("%w: initial condition %v", utils.ErrInput, d.cfg.Initial)
	}

	d.current = sol
	d.psi1 = append([]float64(nil), sol.Psi...)
	d.psi2 = append([]float64(nil), sol.Psi...)
	d.time, d.step, d.dtPrev = 0, 0, 0
	d.records = nil
	d.initialized = true
	d.logger.Info("transient initialized",
		zap.Stringer("initial", d.cfg.Initial), zap.Float64("k", d.kCrit), zap.Stringer("order", d.cfg.Order))
	return sol.Clone(), nil
}

// equilibriumPrecursors sets C = βP/λ with P the fission rate scaled by
// 1/k_crit
func (d *Driver) equilibriumPrecursors(phi []float64) {
	p := d.problem
	Np := p.Layout.Np
	for e := range d.prec1 {
		beta, lambda := p.MaterialOf(e).Delayed()
		for i := 0; i < Np; i++ {
			P := p.NodalProduction(phi, e, i) / d.kCrit
			for j := range beta {
				d.prec1[e][j*Np+i] = beta[j] * P / lambda[j]
				d.prec2[e][j*Np+i] = d.prec1[e][j*Np+i]
			}
		}
	}
}

// Done reports whether the end time has been reached
func (d *Driver) Done() bool {
	return d.initialized && d.remaining() <= 0
}

func (d *Driver) remaining() float64 {
	r := d.cfg.EndTime - d.time
	// Absorb round-off from accumulating step sizes
	if r <= 1e-12*d.cfg.EndTime {
		return 0
	}
	return r
}

// Step advances one time step. The last step is shortened to land on
// EndTime.
func (d *Driver) Step() (StepRecord, error) {
	if !d.initialized {
		if _, err := d.Initialize(); err != nil {
			return StepRecord{}, err
		}
	}
	if d.Done() {
		return StepRecord{}, fmt.Errorf("%w: transient already reached t=%g", utils.ErrInput, d.cfg.EndTime)
	}
	defer d.timers.Scope(timing.TransientStep)()

	p := d.problem
	dt := math.Min(d.cfg.Dt, d.remaining())
	order := d.cfg.Order
	if d.step == 0 {
		order = BDF1
	}
	c := CoefficientsFor(order, dt, d.dtPrev)

	eff, err := p.Effective(d.modifiers(c, dt))
	if err != nil {
		return StepRecord{}, err
	}
	s, err := solver.New(eff, d.solverCfg, d.solverOptions(solver.WithInitialGuess(d.psi1))...)
	if err != nil {
		return StepRecord{}, err
	}
	sol, res, err := s.SolveFixedSource()
	if err != nil {
		return StepRecord{}, err
	}
	if !res.Converged {
		return StepRecord{}, fmt.Errorf("step %d at t=%g: residual %g after %d iterations: %w",
			d.step+1, d.time+dt, res.Residual, res.Iterations, ErrStepFailed)
	}

	next := d.updatePrecursors(c, dt, sol.Phi)

	d.psi2, d.psi1 = d.psi1, append(d.psi2[:0], sol.Psi...)
	d.prec2, d.prec1 = d.prec1, next
	d.current = sol
	d.dtPrev = dt
	d.step++
	d.time += dt

	rec := StepRecord{
		Step:            d.step,
		Time:            d.time,
		Dt:              dt,
		Order:           order,
		Result:          res,
		TotalProduction: p.Production(sol.Phi),
	}
	d.records = append(d.records, rec)
	d.logger.Debug("transient step",
		zap.Int("step", rec.Step), zap.Float64("time", rec.Time), zap.Stringer("order", order),
		zap.Int("iterations", res.Iterations), zap.Float64("production", rec.TotalProduction))
	return rec, nil
}

// modifiers builds the per step time absorption, fission scaling and
// transient source
func (d *Driver) modifiers(c Coefficients, dt float64) transport.Modifiers {
	p := d.problem
	l := p.Layout

	scale := make([]float64, p.Library.Len())
	for idx := range scale {
		m := p.Library.Material(idx)
		beta, lambda := m.Delayed()
		f := 1 - m.BetaEff()
		for j := range beta {
			f += dt * lambda[j] * beta[j] / (c.C0 + dt*lambda[j])
		}
		scale[idx] = f / d.kCrit
	}

	src := make([]float64, l.Size())
	delayed := make([]float64, l.Np)
	for e := 0; e < l.NumElements; e++ {
		m := p.MaterialOf(e)
		_, lambda := m.Delayed()
		for i := range delayed {
			delayed[i] = 0
			for j := range lambda {
				k := j*l.Np + i
				delayed[i] += lambda[j] * (c.C1*d.prec1[e][k] - c.C2*d.prec2[e][k]) / (c.C0 + dt*lambda[j])
			}
		}
		for g := 0; g < l.NumGroups; g++ {
			// Speeds were checked in NewDriver
			invV, _ := p.InverseSpeed(e, g)
			chi := 0.0
			if m.Fissile() {
				chi = m.Spectrum(g)
			}
			for mm := 0; mm < l.NumAngles; mm++ {
				for i := 0; i < l.Np; i++ {
					idx := l.At(mm, e, g, i)
					src[idx] = invV*(c.C1*d.psi1[idx]-c.C2*d.psi2[idx])/dt + chi*delayed[i]
				}
			}
		}
	}

	return transport.Modifiers{
		TimeAbsorption:  c.C0 / dt,
		FissionScale:    scale,
		TransientSource: src,
	}
}

// updatePrecursors returns Cⁿ = (c1 Cⁿ⁻¹ - c2 Cⁿ⁻² + Δt β P)/(c0 + Δt λ)
func (d *Driver) updatePrecursors(c Coefficients, dt float64, phi []float64) [][]float64 {
	p := d.problem
	Np := p.Layout.Np
	next := d.newPrecursors()
	for e := range next {
		beta, lambda := p.MaterialOf(e).Delayed()
		for i := 0; i < Np; i++ {
			P := p.NodalProduction(phi, e, i) / d.kCrit
			for j := range beta {
				k := j*Np + i
				next[e][k] = (c.C1*d.prec1[e][k] - c.C2*d.prec2[e][k] + dt*beta[j]*P) / (c.C0 + dt*lambda[j])
			}
		}
	}
	return next
}

// Run initializes if needed and steps to EndTime. The records of the steps
// completed so far are returned with any error.
func (d *Driver) Run() ([]StepRecord, *solver.Solution, error) {
	if !d.initialized {
		if _, err := d.Initialize(); err != nil {
			return nil, nil, err
		}
	}
	for !d.Done() {
		if _, err := d.Step(); err != nil {
			return d.Records(), d.Solution(), err
		}
	}
	d.logger.Info("transient complete", zap.Int("steps", d.step), zap.Float64("time", d.time))
	return d.Records(), d.Solution(), nil
}

// Records returns a copy of the completed step records
func (d *Driver) Records() []StepRecord {
	return append([]StepRecord(nil), d.records...)
}

// Solution returns a copy of the latest solution
func (d *Driver) Solution() *solver.Solution {
	if d.current == nil {
		return nil
	}
	return d.current.Clone()
}

func (d *Driver) Time() float64      { return d.time }
func (d *Driver) Steps() int         { return d.step }
func (d *Driver) KCritical() float64 { return d.kCrit }
func (d *Driver) Config() Config     { return d.cfg }
func (d *Driver) Initialized() bool  { return d.initialized }

// Precursors returns a copy of the current concentrations of element e,
// indexed family*Np + node
func (d *Driver) Precursors(e int) []float64 {
	return append([]float64(nil), d.prec1[e]...)
}
