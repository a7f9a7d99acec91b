package transport

import (
	"fmt"
	"math"
	"slices"

	"github.com/notargets/DGTransport/element"
	"github.com/notargets/DGTransport/material"
	"github.com/notargets/DGTransport/trimesh"
	"github.com/notargets/DGTransport/utils"
	"go.uber.org/multierr"
)

var (
	ErrFinalized    = fmt.Errorf("%w: problem is finalized", utils.ErrInput)
	ErrNotFinalized = fmt.Errorf("%w: problem is not finalized", utils.ErrFatal)
)

// SourceFunc gives the external source at a point for one ordinate and group
type SourceFunc func(x, y float64, m int, o Ordinate, g int) float64

// Modifiers derive the per time step problem of a transient
type Modifiers struct {
	TimeAbsorption  float64   // Added to σt divided by the group speed
	FissionScale    []float64 // Per material multiplier of the fission source, nil for 1
	TransientSource []float64 // Angular layout source added to the external source
}

// Problem binds mesh, materials, quadrature, sources and boundary
// conditions. Setters are valid until Finalize, after which the problem is
// read-only.
type Problem struct {
	Mesh    *trimesh.Mesh
	Library *material.Library
	Quad    *Quadrature
	Layout  trimesh.DOFLayout

	external   []float64 // Angular layout
	boundaries map[int]BoundaryCondition
	reference  []float64 // Scalar layout

	finalized bool
	ops       *operators

	mods         Modifiers
	sigmaAdd     [][]float64 // [material][g]
	fissionScale []float64   // [material]
}

// operators holds the data precomputed at Finalize, shared read-only by
// every problem derived through Effective
type operators struct {
	elemMat []int
	sweeps  []*trimesh.Sweep
	stream  [][3][3]float64 // [m*K+e] streaming plus outflow
	inflow  [][]inflowEdge  // [m*K+e]

	slots    []boundarySlot
	incident []float64 // Boundary buffer layout

	order      int
	kernels    [][][]float64
	reflecting bool
	scatters   bool
	fissile    bool
}

type inflowEdge struct {
	Edge     int
	Coef     float64 // Ω·n, negative
	Neighbor int     // -1 on the boundary
	Slot     int     // Boundary slot, -1 in the interior
}

// NewProblem creates a problem with the group count of the library
func NewProblem(mesh *trimesh.Mesh, lib *material.Library, quad *Quadrature) (*Problem, error) {
	if mesh == nil || lib == nil || quad == nil {
		return nil, fmt.Errorf("%w: problem needs a mesh, materials and a quadrature", utils.ErrInput)
	}
	p := &Problem{
		Mesh:    mesh,
		Library: lib,
		Quad:    quad,
		Layout: trimesh.DOFLayout{
			NumAngles:   quad.Len(),
			NumElements: mesh.NumElements(),
			NumGroups:   lib.NumGroups(),
			Np:          mesh.Np(),
		},
		boundaries: make(map[int]BoundaryCondition),
	}
	if err := p.Layout.Verify(); err != nil {
		return nil, err
	}
	p.external = make([]float64, p.Layout.Size())
	return p, nil
}

func (p *Problem) NumOrdinates() int { return p.Layout.NumAngles }
func (p *Problem) NumElements() int  { return p.Layout.NumElements }
func (p *Problem) NumGroups() int    { return p.Layout.NumGroups }
func (p *Problem) IsFinalized() bool { return p.finalized }

func (p *Problem) checkMutable() error {
	if p.finalized {
		return ErrFinalized
	}
	return nil
}

func (p *Problem) checkGroups(what string, n int) error {
	if n != p.NumGroups() {
		return fmt.Errorf("%s has %d groups, problem has %d: %w", what, n, p.NumGroups(), material.ErrGroupMismatch)
	}
	return nil
}

// SetUniformSource sets an isotropic source per group on every element of
// a region
func (p *Problem) SetUniformSource(region int, perGroup []float64) error {
	if err := p.checkMutable(); err != nil {
		return err
	}
	if err := p.checkGroups(fmt.Sprintf("source of region %d", region), len(perGroup)); err != nil {
		return err
	}
	if !slices.Contains(p.Mesh.Regions, region) {
		return fmt.Errorf("%w: source on region %d which is not in the mesh", utils.ErrInput, region)
	}
	l := p.Layout
	for _, td := range p.Mesh.Elements {
		if td.Region != region {
			continue
		}
		for m := 0; m < l.NumAngles; m++ {
			for g, v := range perGroup {
				for i := 0; i < l.Np; i++ {
					p.external[l.At(m, td.ID, g, i)] = v
				}
			}
		}
	}
	return nil
}

// SetSourceFunc evaluates f at every element node, replacing the external
// source everywhere
func (p *Problem) SetSourceFunc(f SourceFunc) error {
	if err := p.checkMutable(); err != nil {
		return err
	}
	l := p.Layout
	for m, o := range p.Quad.Ordinates {
		for _, td := range p.Mesh.Elements {
			for g := 0; g < l.NumGroups; g++ {
				for i := 0; i < l.Np; i++ {
					p.external[l.At(m, td.ID, g, i)] = f(td.X[i], td.Y[i], m, o, g)
				}
			}
		}
	}
	return nil
}

// SetBoundary assigns the condition of a boundary tag. Tags without a
// condition are vacuum.
func (p *Problem) SetBoundary(tag int, bc BoundaryCondition) error {
	if err := p.checkMutable(); err != nil {
		return err
	}
	if bc.Kind == Incident && bc.Func == nil {
		if err := p.checkGroups(fmt.Sprintf("incident flux of tag %d", tag), len(bc.Values)); err != nil {
			return err
		}
	}
	if err := bc.validate(tag, p.NumGroups()); err != nil {
		return err
	}
	p.boundaries[tag] = bc
	return nil
}

// SetReferenceSolution stores a scalar flux, laid out by DOFLayout.ScalarAt,
// used only to measure the error of a solution
func (p *Problem) SetReferenceSolution(phi []float64) error {
	if err := p.checkMutable(); err != nil {
		return err
	}
	if len(phi) != p.Layout.ScalarSize() {
		return fmt.Errorf("%w: reference solution has %d values, expected %d", utils.ErrInput, len(phi), p.Layout.ScalarSize())
	}
	p.reference = slices.Clone(phi)
	return nil
}

// Reference returns the reference scalar flux, nil when none was set
func (p *Problem) Reference() []float64 { return p.reference }

// ExternalSource returns the angular external source, read-only
func (p *Problem) ExternalSource() []float64 { return p.external }

// Boundary returns the condition of a tag
func (p *Problem) Boundary(tag int) BoundaryCondition {
	if bc, ok := p.boundaries[tag]; ok {
		return bc
	}
	return VacuumBoundary()
}

// Finalize validates the problem and precomputes the sweep operators. All
// problems found are reported together.
func (p *Problem) Finalize() error {
	if p.finalized {
		return nil
	}
	var err error
	for i := 0; i < p.Library.Len(); i++ {
		d := p.Library.Material(i)
		err = multierr.Append(err, p.checkGroups(fmt.Sprintf("material %q", d.Name()), d.NumGroups()))
	}
	ops := &operators{elemMat: make([]int, p.NumElements())}
	for e, td := range p.Mesh.Elements {
		_, idx, rerr := p.Library.ForRegion(td.Region)
		if rerr != nil {
			err = multierr.Append(err, fmt.Errorf("element %d: %w", e, rerr))
			continue
		}
		ops.elemMat[e] = idx
	}
	if err != nil {
		return err
	}

	for i := 0; i < p.Library.Len(); i++ {
		d := p.Library.Material(i)
		ops.scatters = ops.scatters || d.Scatters()
		ops.fissile = ops.fissile || d.Fissile()
	}

	if err = p.buildBoundary(ops); err != nil {
		return err
	}
	p.buildStreaming(ops)

	ops.order = p.Library.MaxOrder()
	if ops.order > 0 {
		ops.kernels = p.Quad.ScatterKernels(ops.order)
	}

	p.ops = ops
	p.sigmaAdd = make([][]float64, p.Library.Len())
	for i := range p.sigmaAdd {
		p.sigmaAdd[i] = make([]float64, p.NumGroups())
	}
	p.fissionScale = make([]float64, p.Library.Len())
	for i := range p.fissionScale {
		p.fissionScale[i] = 1
	}
	p.finalized = true
	return nil
}

func (p *Problem) buildBoundary(ops *operators) error {
	M, G := p.NumOrdinates(), p.NumGroups()
	refs := p.Mesh.BoundaryEdges()
	ops.slots = make([]boundarySlot, len(refs))
	ops.incident = make([]float64, M*len(refs)*G*2)

	var err error
	for b, ref := range refs {
		td := p.Mesh.Elements[ref.Element]
		ed := &td.Edges[ref.Edge]
		bc := p.Boundary(ed.Tag)
		slot := boundarySlot{Element: ref.Element, Edge: ref.Edge, Kind: bc.Kind}

		switch bc.Kind {
		case Reflecting:
			ops.reflecting = true
			slot.Reflect = make([]int, M)
			for m, o := range p.Quad.Ordinates {
				slot.Reflect[m] = -1
				if o.Wx*ed.Nx+o.Wy*ed.Ny >= 0 {
					continue
				}
				mr, ok := reflectedOrdinate(p.Quad, o, ed.Nx, ed.Ny)
				if !ok {
					err = multierr.Append(err, fmt.Errorf("tag %d element %d edge %d ordinate %d: %w",
						ed.Tag, ref.Element, ref.Edge, m, ErrReflection))
					continue
				}
				slot.Reflect[m] = mr
			}

		case Incident:
			for m, o := range p.Quad.Ordinates {
				if o.Wx*ed.Nx+o.Wy*ed.Ny >= 0 {
					continue
				}
				for g := 0; g < G; g++ {
					for k, node := range ed.Nodes {
						v := 0.0
						if bc.Func != nil {
							v = bc.Func(td.X[node], td.Y[node], m, o, g)
						} else {
							v = bc.Values[g]
						}
						ops.incident[p.boundaryIndex(len(refs), m, b, g, k)] = v
					}
				}
			}
		}
		ops.slots[b] = slot
	}
	return err
}

func (p *Problem) buildStreaming(ops *operators) {
	M, K := p.NumOrdinates(), p.NumElements()
	slotOf := make(map[[2]int]int, len(ops.slots))
	for b, s := range ops.slots {
		slotOf[[2]int{s.Element, s.Edge}] = b
	}

	ops.sweeps = make([]*trimesh.Sweep, M)
	ops.stream = make([][3][3]float64, M*K)
	ops.inflow = make([][]inflowEdge, M*K)
	for m, o := range p.Quad.Ordinates {
		ops.sweeps[m] = trimesh.SweepOrder(p.Mesh, o.Wx, o.Wy)
		for e, td := range p.Mesh.Elements {
			S := &ops.stream[m*K+e]
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					S[i][j] = -(o.Wx*td.Stream[0][i][j] + o.Wy*td.Stream[1][i][j])
				}
			}
			for f := range td.Edges {
				ed := &td.Edges[f]
				dot := o.Wx*ed.Nx + o.Wy*ed.Ny
				if dot >= 0 {
					addEdgeMass(S, ed, dot)
					continue
				}
				in := inflowEdge{Edge: f, Coef: dot, Neighbor: ed.Neighbor, Slot: -1}
				if ed.IsBoundary() {
					in.Slot = slotOf[[2]int{e, f}]
				}
				ops.inflow[m*K+e] = append(ops.inflow[m*K+e], in)
			}
		}
	}
}

func addEdgeMass(S *[3][3]float64, ed *element.EdgeDescriptor, coef float64) {
	for k, i := range ed.Nodes {
		for l, j := range ed.Nodes {
			S[i][j] += coef * ed.Mass[k][l]
		}
	}
}

// Effective returns a read-only copy of a finalized problem with the time
// step modifiers applied
func (p *Problem) Effective(mods Modifiers) (*Problem, error) {
	if !p.finalized {
		return nil, ErrNotFinalized
	}
	nmat := p.Library.Len()
	if mods.FissionScale != nil && len(mods.FissionScale) != nmat {
		return nil, fmt.Errorf("%w: %d fission scales for %d materials", utils.ErrInput, len(mods.FissionScale), nmat)
	}
	if mods.TransientSource != nil && len(mods.TransientSource) != p.Layout.Size() {
		return nil, fmt.Errorf("%w: transient source has %d values, expected %d", utils.ErrInput, len(mods.TransientSource), p.Layout.Size())
	}

	q := *p
	q.mods = mods
	q.sigmaAdd = make([][]float64, nmat)
	q.fissionScale = make([]float64, nmat)
	for i := 0; i < nmat; i++ {
		d := p.Library.Material(i)
		q.sigmaAdd[i] = make([]float64, p.NumGroups())
		q.fissionScale[i] = 1
		if mods.FissionScale != nil {
			q.fissionScale[i] = mods.FissionScale[i]
		}
		if mods.TimeAbsorption == 0 {
			continue
		}
		for g := 0; g < p.NumGroups(); g++ {
			v, err := d.Speed(g)
			if err != nil {
				return nil, err
			}
			q.sigmaAdd[i][g] = mods.TimeAbsorption / v
		}
	}
	return &q, nil
}

// Modifiers returns the modifiers applied by Effective
func (p *Problem) Modifiers() Modifiers { return p.mods }

// MaterialOf returns the material of element e
func (p *Problem) MaterialOf(e int) *material.Data {
	return p.Library.Material(p.ops.elemMat[e])
}

// MaterialIndex returns the library index of the material of element e
func (p *Problem) MaterialIndex(e int) int { return p.ops.elemMat[e] }

// Sigma returns the effective total cross section of element e in group g
func (p *Problem) Sigma(e, g int) float64 {
	idx := p.ops.elemMat[e]
	return p.Library.Material(idx).Total(g) + p.sigmaAdd[idx][g]
}

// InverseSpeed returns 1/v of group g in element e, 0 for infinite speed
func (p *Problem) InverseSpeed(e, g int) (float64, error) {
	v, err := p.MaterialOf(e).Speed(g)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 1) {
		return 0, nil
	}
	return 1 / v, nil
}

// Sweep returns the element order of ordinate m
func (p *Problem) Sweep(m int) *trimesh.Sweep { return p.ops.sweeps[m] }

// Fissile reports whether any material produces fission neutrons
func (p *Problem) Fissile() bool { return p.ops.fissile }

// HasFluxDependentSource reports whether the source or the boundary inflow
// depend on the flux, in which case a single sweep is not exact
func (p *Problem) HasFluxDependentSource(cfg SourceConfig) bool {
	return (cfg.Scatter && p.ops.scatters) || (cfg.Fission && p.ops.fissile) || p.ops.reflecting
}

// BoundarySize is the length of the boundary inflow buffer
func (p *Problem) BoundarySize() int { return len(p.ops.incident) }

func (p *Problem) boundaryIndex(nb, m, b, g, k int) int {
	return ((m*nb+b)*p.NumGroups()+g)*2 + k
}
