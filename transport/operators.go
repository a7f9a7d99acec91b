package transport

import (
	"fmt"
	"math"

	"github.com/notargets/DGTransport/utils"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular reports a local element system that could not be solved
var ErrSingular = fmt.Errorf("%w: singular element system", utils.ErrFatal)

// SourceConfig selects the terms of the emission density
type SourceConfig struct {
	External  bool
	Scatter   bool
	Fission   bool
	Transient bool
}

// FullSource enables every source term
var FullSource = SourceConfig{External: true, Scatter: true, Fission: true, Transient: true}

// Workspace is the scratch storage of one sweeping worker
type Workspace struct {
	A *mat.Dense
	b *mat.VecDense
	x *mat.VecDense
}

func NewWorkspace() *Workspace {
	return &Workspace{
		A: mat.NewDense(3, 3, nil),
		b: mat.NewVecDense(3, nil),
		x: mat.NewVecDense(3, nil),
	}
}

// ScalarFlux integrates psi over angle into phi. Ordinates are summed in
// index order so the result does not depend on how psi was computed.
func (p *Problem) ScalarFlux(psi, phi []float64) {
	l := p.Layout
	for i := range phi {
		phi[i] = 0
	}
	for m, o := range p.Quad.Ordinates {
		base := m * l.AngleStride()
		for s := 0; s < l.ScalarSize(); s++ {
			phi[s] += o.W * psi[base+s]
		}
	}
}

// Source computes the emission density of the next iterate into dst, in
// the angular layout. The fission term is divided by k.
func (p *Problem) Source(psi, phi []float64, cfg SourceConfig, k float64, dst []float64) {
	l := p.Layout
	G, Np := l.NumGroups, l.Np
	iso := make([]float64, Np)
	for e := 0; e < l.NumElements; e++ {
		matIdx := p.ops.elemMat[e]
		d := p.Library.Material(matIdx)
		fissionScale := p.fissionScale[matIdx] / k
		for g := 0; g < G; g++ {
			for i := range iso {
				iso[i] = 0
			}
			if cfg.Scatter {
				for gIn := 0; gIn < G; gIn++ {
					s := d.Scatter(0, g, gIn)
					if s == 0 {
						continue
					}
					for i := 0; i < Np; i++ {
						iso[i] += s * phi[l.ScalarAt(e, gIn, i)]
					}
				}
			}
			if cfg.Fission && d.Fissile() && d.Spectrum(g) != 0 {
				chi := d.Spectrum(g) * fissionScale
				for gIn := 0; gIn < G; gIn++ {
					nf := d.NuFission(gIn)
					for i := 0; i < Np; i++ {
						iso[i] += chi * nf * phi[l.ScalarAt(e, gIn, i)]
					}
				}
			}
			for m := 0; m < l.NumAngles; m++ {
				for i := 0; i < Np; i++ {
					idx := l.At(m, e, g, i)
					q := iso[i]
					if cfg.External {
						q += p.external[idx]
					}
					if cfg.Transient && p.mods.TransientSource != nil {
						q += p.mods.TransientSource[idx]
					}
					if cfg.Scatter {
						q += p.anisotropic(psi, m, e, g, i)
					}
					dst[idx] = q
				}
			}
		}
	}
}

// anisotropic is the l >= 1 part of the scattering source
func (p *Problem) anisotropic(psi []float64, m, e, g, i int) float64 {
	d := p.MaterialOf(e)
	l := p.Layout
	sum := 0.0
	for order := 1; order <= d.Order(); order++ {
		K := p.ops.kernels[order][m]
		for gIn := 0; gIn < l.NumGroups; gIn++ {
			s := d.Scatter(order, g, gIn)
			if s == 0 {
				continue
			}
			moment := 0.0
			for mp, w := range K {
				moment += w * psi[l.At(mp, e, gIn, i)]
			}
			sum += s * moment
		}
	}
	return sum
}

// BoundaryInflow fills the boundary buffer with the incoming flux of every
// boundary edge. Reflecting edges read the outgoing flux of psi.
func (p *Problem) BoundaryInflow(psi, dst []float64) {
	copy(dst, p.ops.incident)
	nb := len(p.ops.slots)
	l := p.Layout
	for b, slot := range p.ops.slots {
		if slot.Kind != Reflecting {
			continue
		}
		nodes := p.Mesh.Elements[slot.Element].Edges[slot.Edge].Nodes
		for m, mr := range slot.Reflect {
			if mr < 0 {
				continue
			}
			for g := 0; g < l.NumGroups; g++ {
				for k, node := range nodes {
					dst[p.boundaryIndex(nb, m, b, g, k)] = psi[l.At(mr, slot.Element, g, node)]
				}
			}
		}
	}
}

// LocalSystem assembles the upwind element system A ψe = b of ordinate m,
// element e and group g. Upwind values come from psi or, on the boundary,
// from bnd.
func (p *Problem) LocalSystem(m, e, g int, psi, q, bnd []float64, A *mat.Dense, b *mat.VecDense) {
	l := p.Layout
	td := p.Mesh.Elements[e]
	S := &p.ops.stream[m*l.NumElements+e]
	sigma := p.Sigma(e, g)

	for i := 0; i < 3; i++ {
		bi := 0.0
		for j := 0; j < 3; j++ {
			A.Set(i, j, S[i][j]+sigma*td.Mass[i][j])
			bi += td.Mass[i][j] * q[l.At(m, e, g, j)]
		}
		b.SetVec(i, bi)
	}

	nb := len(p.ops.slots)
	for _, in := range p.ops.inflow[m*l.NumElements+e] {
		ed := &td.Edges[in.Edge]
		var up [2]float64
		for k := 0; k < 2; k++ {
			if in.Neighbor >= 0 {
				up[k] = psi[l.At(m, in.Neighbor, g, ed.NeighborNodes[k])]
			} else {
				up[k] = bnd[p.boundaryIndex(nb, m, in.Slot, g, k)]
			}
		}
		for k, i := range ed.Nodes {
			flux := 0.0
			for kk := 0; kk < 2; kk++ {
				flux += ed.Mass[k][kk] * up[kk]
			}
			b.SetVec(i, b.AtVec(i)-in.Coef*flux)
		}
	}
}

// SweepElement solves every group of element e for ordinate m and writes
// the result into psi
func (p *Problem) SweepElement(m, e int, psi, q, bnd []float64, ws *Workspace) error {
	l := p.Layout
	for g := 0; g < l.NumGroups; g++ {
		p.LocalSystem(m, e, g, psi, q, bnd, ws.A, ws.b)
		if err := ws.x.SolveVec(ws.A, ws.b); err != nil {
			return fmt.Errorf("ordinate %d element %d group %d: %w: %v", m, e, g, ErrSingular, err)
		}
		for i := 0; i < l.Np; i++ {
			psi[l.At(m, e, g, i)] = ws.x.AtVec(i)
		}
	}
	return nil
}

// Residual returns the L∞ norm of A ψ - b over all element systems
func (p *Problem) Residual(psi, q, bnd []float64) float64 {
	l := p.Layout
	ws := NewWorkspace()
	worst := 0.0
	for m := 0; m < l.NumAngles; m++ {
		for e := 0; e < l.NumElements; e++ {
			for g := 0; g < l.NumGroups; g++ {
				p.LocalSystem(m, e, g, psi, q, bnd, ws.A, ws.b)
				for i := 0; i < l.Np; i++ {
					r := -ws.b.AtVec(i)
					for j := 0; j < l.Np; j++ {
						r += ws.A.At(i, j) * psi[l.At(m, e, g, j)]
					}
					worst = math.Max(worst, math.Abs(r))
				}
			}
		}
	}
	return worst
}

// NodalProduction returns Σg νσf φ at node i of element e
func (p *Problem) NodalProduction(phi []float64, e, i int) float64 {
	d := p.MaterialOf(e)
	if !d.Fissile() {
		return 0
	}
	sum := 0.0
	for g := 0; g < p.NumGroups(); g++ {
		sum += d.NuFission(g) * phi[p.Layout.ScalarAt(e, g, i)]
	}
	return sum
}

// ElementProduction returns ∫ Σg νσf φ over element e
func (p *Problem) ElementProduction(phi []float64, e int) float64 {
	var nodal [3]float64
	for i := range nodal {
		nodal[i] = p.NodalProduction(phi, e, i)
	}
	return p.Mesh.Elements[e].Integrate(nodal)
}

// Production returns the total fission neutron production of phi
func (p *Problem) Production(phi []float64) float64 {
	sum := 0.0
	for e := 0; e < p.NumElements(); e++ {
		sum += p.ElementProduction(phi, e)
	}
	return sum
}
