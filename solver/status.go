package solver

// Status is reported to the observer after every iteration
type Status struct {
	Iteration     int
	Residual      float64
	Eigenvalue    float64
	HasEigenvalue bool
	State         State
}

// Observer receives iteration status. A returned error is counted in
// Result.ObserverErrors and does not stop the solve.
type Observer interface {
	Observe(Status) error
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Status) error

func (f ObserverFunc) Observe(s Status) error { return f(s) }

// Result summarises a solve. Non-convergence is reported here, not as an
// error.
type Result struct {
	State          State
	Converged      bool
	Iterations     int // Source iterations, or outer iterations for eigenvalue solves
	Sweeps         int // Transport sweeps performed
	Residual       float64
	Eigenvalue     float64
	HasEigenvalue  bool
	Residuals      []float64
	ObserverErrors int
}
