package manager

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/notargets/DGTransport/dataset"
	"github.com/notargets/DGTransport/element"
	"github.com/notargets/DGTransport/solver"
	"github.com/notargets/DGTransport/timing"
	"github.com/notargets/DGTransport/transient"
	"github.com/notargets/DGTransport/transport"
)

// Result is the outcome of one run
type Result struct {
	RunID          uuid.UUID
	Type           ProblemType
	Solution       *solver.Solution
	Solver         solver.Result // Final step for transients
	Steps          []transient.StepRecord
	KCritical      float64 // Transients only
	ReferenceError solver.ErrorNorms
	HasReference   bool
	Timings        []timing.Entry

	problem *transport.Problem
}

// Summary is a one line description used by the store and CLI
func (r *Result) Summary() string {
	s := fmt.Sprintf("%v %v after %d iterations, residual %.3g", r.Type, r.Solver.State, r.Solver.Iterations, r.Solver.Residual)
	if r.Solution != nil && r.Solution.HasEigenvalue {
		s += fmt.Sprintf(", k=%.8f", r.Solution.Eigenvalue)
	}
	if len(r.Steps) > 0 {
		s += fmt.Sprintf(", %d steps to t=%g", len(r.Steps), r.Steps[len(r.Steps)-1].Time)
	}
	return s
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// DataSet converts the result into a tree for persistence and reporting
func (r *Result) DataSet() dataset.Node {
	root := dataset.Set("run",
		dataset.String("id", r.RunID.String()),
		dataset.String("type", r.Type.String()),
		dataset.String("summary", r.Summary()),
	)
	if r.problem != nil {
		root = root.Add(meshNode(r.problem), referenceNode(r.problem))
	}
	root = root.Add(solverNode(r.Solver))
	if r.Solution != nil {
		sol := dataset.Set("solution",
			dataset.String("fingerprint", fmt.Sprintf("%016x", r.Solution.Fingerprint())),
			dataset.Array("phi", r.Solution.Phi),
			dataset.Array("psi", r.Solution.Psi),
		)
		if r.Solution.HasEigenvalue {
			sol = sol.Add(dataset.String("k", ftoa(r.Solution.Eigenvalue)))
		}
		root = root.Add(sol)
	}
	if r.HasReference {
		root = root.Add(dataset.Set("reference-error",
			dataset.String("l2", ftoa(r.ReferenceError.L2)),
			dataset.String("rinf", ftoa(r.ReferenceError.RInf)),
		))
	}
	if len(r.Steps) > 0 {
		tr := dataset.Set("transient", dataset.String("k-critical", ftoa(r.KCritical)))
		for _, st := range r.Steps {
			tr = tr.Add(dataset.Set("step",
				dataset.String("index", strconv.Itoa(st.Step)),
				dataset.String("time", ftoa(st.Time)),
				dataset.String("dt", ftoa(st.Dt)),
				dataset.String("order", st.Order.String()),
				dataset.String("iterations", strconv.Itoa(st.Result.Iterations)),
				dataset.String("production", ftoa(st.TotalProduction)),
			))
		}
		root = root.Add(tr)
	}
	timings := dataset.Set("timings")
	for _, e := range r.Timings {
		timings = timings.Add(dataset.Set(e.Name,
			dataset.String("elapsed", e.Elapsed.String()),
			dataset.String("count", strconv.Itoa(e.Count)),
		))
	}
	return root.Add(timings)
}

func solverNode(res solver.Result) dataset.Node {
	return dataset.Set("solver",
		dataset.String("state", res.State.String()),
		dataset.String("converged", strconv.FormatBool(res.Converged)),
		dataset.String("iterations", strconv.Itoa(res.Iterations)),
		dataset.String("sweeps", strconv.Itoa(res.Sweeps)),
		dataset.String("residual", ftoa(res.Residual)),
		dataset.Array("residuals", res.Residuals),
	)
}

func meshNode(p *transport.Problem) dataset.Node {
	m := p.Mesh
	x := make([]float64, m.NumVertices())
	y := make([]float64, m.NumVertices())
	for i, v := range m.Vertices {
		x[i], y[i] = v.X, v.Y
	}
	etov := make([]float64, 0, 3*m.NumElements())
	regions := make([]float64, 0, m.NumElements())
	for _, td := range m.Elements {
		for _, v := range td.Vertices {
			etov = append(etov, float64(v))
		}
		regions = append(regions, float64(td.Region))
	}
	return dataset.Set("mesh",
		dataset.String("elements", strconv.Itoa(m.NumElements())),
		dataset.String("ordinates", strconv.Itoa(p.NumOrdinates())),
		dataset.String("groups", strconv.Itoa(p.NumGroups())),
		dataset.Array("x", x),
		dataset.Array("y", y),
		dataset.Array("EToV", etov),
		dataset.Array("regions", regions),
	)
}

func referenceNode(p *transport.Problem) dataset.Node {
	mats := element.GetRefMatrices(p.Mesh.Ref)
	names := make([]string, 0, len(mats))
	for name := range mats {
		names = append(names, name)
	}
	sort.Strings(names)
	node := dataset.Set("reference-element", dataset.String("name", p.Mesh.Ref.Name()))
	for _, name := range names {
		node = node.Add(dataset.Array(name, element.FlattenMatrix(mats[name])))
	}
	return node
}
