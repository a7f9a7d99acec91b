package solver

import (
	"github.com/notargets/DGTransport/timing"
	"golang.org/x/sync/errgroup"
)

// sweep transports every ordinate through the mesh. Partitions of ordinates
// run concurrently; each ordinate writes only its own block of ψ.
func (s *Solver) sweep() error {
	defer s.timers.Scope(timing.Sweep)()
	p := s.problem
	sol := s.sol

	run := func(part int) error {
		ws := s.workspaces[part]
		for _, m := range s.layout.Partitions[part].Items {
			for _, e := range p.Sweep(m).Order {
				if err := p.SweepElement(m, e, sol.Psi, s.q, s.bnd, ws); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if s.layout.NumPartitions == 1 {
		return run(0)
	}
	var g errgroup.Group
	for part := range s.layout.Partitions {
		g.Go(func() error { return run(part) })
	}
	return g.Wait()
}
