package solver

import "fmt"

// State is the phase of the iteration state machine
//
//	Initialize → Sweep → CheckConvergence → {Converged | MaxIterations}
//	                ↑__________________|
type State uint8

const (
	Initialize State = iota
	Sweep
	CheckConvergence
	Converged
	MaxIterations
)

func (s State) String() string {
	switch s {
	case Initialize:
		return "initialize"
	case Sweep:
		return "sweep"
	case CheckConvergence:
		return "check-convergence"
	case Converged:
		return "converged"
	case MaxIterations:
		return "max-iterations"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Terminal reports whether no further iteration follows
func (s State) Terminal() bool {
	return s == Converged || s == MaxIterations
}
