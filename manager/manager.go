// Package manager selects and drives the solution pipeline for one run
package manager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/notargets/DGTransport/logging"
	"github.com/notargets/DGTransport/solver"
	"github.com/notargets/DGTransport/timing"
	"github.com/notargets/DGTransport/transient"
	"github.com/notargets/DGTransport/transport"
	"github.com/notargets/DGTransport/utils"
	"go.uber.org/zap"
)

// ProblemType selects the solution path
type ProblemType uint8

const (
	FixedSource ProblemType = iota
	Eigenvalue
	Transient
)

func (t ProblemType) String() string {
	switch t {
	case FixedSource:
		return "fixed-source"
	case Eigenvalue:
		return "eigenvalue"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("ProblemType(%d)", uint8(t))
	}
}

// ParseProblemType accepts the String forms, case insensitive
func ParseProblemType(s string) (ProblemType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t := FixedSource; t <= Transient; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown problem type %q", utils.ErrInput, s)
}

// Input is everything needed for one run
type Input struct {
	Type      ProblemType
	Problem   *transport.Problem
	Solver    solver.Config
	Transient transient.Config
}

// Option configures a Manager
type Option func(*Manager)

// WithTimers shares r with the caller. Every run then accumulates into r
// instead of a fresh per-run registry.
func WithTimers(r *timing.Registry) Option { return func(m *Manager) { m.timers = r } }

// WithLogger logs through l
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithSink logs through the sink's logger. The sink stays owned by the
// caller.
func WithSink(s logging.Sink) Option { return func(m *Manager) { m.logger = s.Logger() } }

// WithObserver receives every iteration of every solve after the logging
// observer
func WithObserver(o solver.Observer) Option { return func(m *Manager) { m.observer = o } }

// Manager holds the logger and observer shared by its runs
type Manager struct {
	timers   *timing.Registry
	logger   *zap.Logger
	observer solver.Observer
}

// New creates a Manager
func New(opts ...Option) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Timers returns the registry shared through WithTimers, or nil
func (m *Manager) Timers() *timing.Registry { return m.timers }

// IsFatal reports whether err is a fatal configuration error
func IsFatal(err error) bool { return errors.Is(err, utils.ErrFatal) }

// IsInput reports whether err is an input error
func IsInput(err error) bool { return errors.Is(err, utils.ErrInput) }

// logObserver logs each iteration and forwards it. Logging failures are
// dropped.
type logObserver struct {
	logger *zap.Logger
	next   solver.Observer
}

func (o logObserver) Observe(st solver.Status) error {
	fields := []zap.Field{
		zap.Int("iteration", st.Iteration),
		zap.Float64("residual", st.Residual),
		zap.Stringer("state", st.State),
	}
	if st.HasEigenvalue {
		fields = append(fields, zap.Float64("k", st.Eigenvalue))
	}
	o.logger.Debug("iteration", fields...)
	if o.next != nil {
		return o.next.Observe(st)
	}
	return nil
}

// Run finalizes the problem if needed and solves it. Setup errors are
// returned before any iteration. A steady solve that does not converge is
// reported through Result.Solver, not as an error. A failed transient step
// returns the partial Result together with the error.
func (m *Manager) Run(in Input) (*Result, error) {
	p := in.Problem
	if p == nil {
		return nil, fmt.Errorf("%w: no problem", utils.ErrInput)
	}
	if !p.IsFinalized() {
		if err := p.Finalize(); err != nil {
			return nil, err
		}
	}
	if err := in.Solver.WithDefaults().Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:   uuid.New(),
		Type:    in.Type,
		problem: p,
	}
	log := m.logger.With(zap.String("run", res.RunID.String()), zap.Stringer("type", in.Type))
	log.Info("run start",
		zap.Int("elements", p.NumElements()),
		zap.Int("groups", p.NumGroups()),
		zap.Int("ordinates", p.NumOrdinates()),
		zap.Int("unknowns", p.Layout.Size()))
	obs := logObserver{logger: log, next: m.observer}
	timers := m.timers
	if timers == nil {
		timers = timing.NewRegistry()
	}

	var err error
	switch in.Type {
	case FixedSource, Eigenvalue:
		err = m.runSteady(in, timers, obs, log, res)
	case Transient:
		err = m.runTransient(in, timers, obs, log, res)
	default:
		return nil, fmt.Errorf("%w: problem type %v", utils.ErrInput, in.Type)
	}
	res.Timings = timers.Entries()
	if err != nil {
		log.Error("run failed", zap.Error(err))
		if res.Solution == nil {
			return nil, err
		}
		return res, err
	}

	if norms, ok := solver.ReferenceError(p, res.Solution.Phi); ok {
		res.ReferenceError, res.HasReference = norms, true
		log.Info("reference error", zap.Float64("l2", norms.L2), zap.Float64("rinf", norms.RInf))
	}
	log.Info("run complete",
		zap.Stringer("state", res.Solver.State),
		zap.Int("iterations", res.Solver.Iterations),
		zap.Uint64("fingerprint", res.Solution.Fingerprint()))
	return res, nil
}

func (m *Manager) runSteady(in Input, timers *timing.Registry, obs solver.Observer, log *zap.Logger, res *Result) error {
	s, err := solver.New(in.Problem, in.Solver,
		solver.WithTimers(timers), solver.WithLogger(log), solver.WithObserver(obs))
	if err != nil {
		return err
	}
	if in.Type == Eigenvalue {
		res.Solution, res.Solver, err = s.SolveEigenvalue()
	} else {
		res.Solution, res.Solver, err = s.SolveFixedSource()
	}
	if err != nil {
		res.Solution = nil
		return err
	}
	if !res.Solver.Converged {
		log.Warn("solve did not converge",
			zap.Int("iterations", res.Solver.Iterations), zap.Float64("residual", res.Solver.Residual))
	}
	return nil
}

func (m *Manager) runTransient(in Input, timers *timing.Registry, obs solver.Observer, log *zap.Logger, res *Result) error {
	d, err := transient.NewDriver(in.Problem, in.Transient, in.Solver,
		transient.WithTimers(timers), transient.WithLogger(log), transient.WithObserver(obs))
	if err != nil {
		return err
	}
	steps, sol, err := d.Run()
	res.Steps = steps
	res.Solution = sol
	res.KCritical = d.KCritical()
	if len(steps) > 0 {
		res.Solver = steps[len(steps)-1].Result
	}
	return err
}
