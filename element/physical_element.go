package element

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/DGTransport/utils"
)

var (
	// ErrDegenerate is returned for zero area triangles
	ErrDegenerate = fmt.Errorf("%w: degenerate triangle", utils.ErrInput)
	// ErrOrientation is returned for clockwise vertex ordering
	ErrOrientation = fmt.Errorf("%w: clockwise triangle", utils.ErrInput)
)

// NQ is the number of interior quadrature points per triangle
const NQ = 6

// EdgeDescriptor carries the geometry of one triangle edge and its coupling
// to the element on the other side
type EdgeDescriptor struct {
	Nodes  [2]int        // Local nodes of this edge, counter-clockwise
	Length float64       // Physical edge length
	Nx, Ny float64       // Outward unit normal
	Mass   [2][2]float64 // ∫_e φ_a φ_b ds over the two edge nodes

	// Cross-edge coupling, Neighbor < 0 marks a boundary edge
	Neighbor      int
	NeighborEdge  int
	NeighborNodes [2]int // Neighbor local node matching Nodes[k]
	Tag           int    // Boundary tag, 0 for untagged or interior edges
}

// IsBoundary reports whether the edge lies on the domain boundary
func (ed *EdgeDescriptor) IsBoundary() bool {
	return ed.Neighbor < 0
}

// TriangleDescriptor holds the per-element geometric data and precomputed
// basis tables of the upwind scheme. It is built once and never mutated by
// the solver; if the vertices change a new descriptor must be built.
type TriangleDescriptor struct {
	ID       int
	Region   int
	Vertices [3]int // Global vertex ids, counter-clockwise
	X, Y     [3]float64

	Area float64
	J    float64 // |∂(x,y)/∂(r,s)|, constant on affine elements

	// Inverse Jacobian terms
	Rx, Ry, Sx, Sy float64

	// Physical basis gradients, constant for the linear basis
	GradX, GradY [3]float64

	// Physical quadrature points, weights and basis values at each point
	QX, QY, QW [NQ]float64
	Basis      [NQ][3]float64

	// Mass[i][j] = ∫ φi φj
	Mass [3][3]float64
	// Stream[d][i][j] = ∫ ∂φi/∂x_d φj
	Stream [2][3][3]float64

	Edges [3]EdgeDescriptor
}

// NewTriangleDescriptor computes the descriptor of a counter-clockwise triangle
func NewTriangleDescriptor(ref *ReferenceTriangle, id, region int, verts [3]int, x, y [3]float64) (*TriangleDescriptor, error) {
	td := &TriangleDescriptor{
		ID:       id,
		Region:   region,
		Vertices: verts,
		X:        x,
		Y:        y,
	}

	// Affine map derivatives from node 0 of the reference derivative matrices
	dr, ds := ref.Dr(), ref.Ds()
	var xr, xs, yr, ys float64
	for i := 0; i < 3; i++ {
		xr += dr.At(0, i) * x[i]
		xs += ds.At(0, i) * x[i]
		yr += dr.At(0, i) * y[i]
		ys += ds.At(0, i) * y[i]
	}
	td.J = xr*ys - xs*yr

	scale := 0.0
	for f, edge := range utils.TriEdges {
		a, b := edge[0], edge[1]
		L := math.Hypot(x[b]-x[a], y[b]-y[a])
		td.Edges[f].Length = L
		scale = math.Max(scale, L)
	}
	if scale == 0 || math.Abs(td.J) <= 1e-12*scale*scale {
		return nil, fmt.Errorf("element %d: %w (jacobian %g)", id, ErrDegenerate, td.J)
	}
	if td.J < 0 {
		return nil, fmt.Errorf("element %d: %w", id, ErrOrientation)
	}
	td.Area = 2 * td.J // reference area is 2

	td.Rx, td.Ry = ys/td.J, -xs/td.J
	td.Sx, td.Sy = -yr/td.J, xr/td.J
	for i := 0; i < 3; i++ {
		td.GradX[i] = td.Rx*dr.At(0, i) + td.Sx*ds.At(0, i)
		td.GradY[i] = td.Ry*dr.At(0, i) + td.Sy*ds.At(0, i)
	}

	for q := 0; q < NQ; q++ {
		for i := 0; i < 3; i++ {
			b := ref.B.At(q, i)
			td.Basis[q][i] = b
			td.QX[q] += b * x[i]
			td.QY[q] += b * y[i]
		}
		td.QW[q] = ref.QW[q] * td.J
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var m, sx, sy float64
			for q := 0; q < NQ; q++ {
				m += td.QW[q] * td.Basis[q][i] * td.Basis[q][j]
				sx += td.QW[q] * td.GradX[i] * td.Basis[q][j]
				sy += td.QW[q] * td.GradY[i] * td.Basis[q][j]
			}
			td.Mass[i][j] = m
			td.Stream[0][i][j] = sx
			td.Stream[1][i][j] = sy
		}
	}

	for f, edge := range utils.TriEdges {
		ed := &td.Edges[f]
		a, b := edge[0], edge[1]
		ed.Nodes = [2]int{a, b}
		dx, dy := x[b]-x[a], y[b]-y[a]
		ed.Nx, ed.Ny = dy/ed.Length, -dx/ed.Length
		for k := 0; k < 2; k++ {
			for l := 0; l < 2; l++ {
				sum := 0.0
				for g, w := range ref.EdgeW {
					sum += w * ref.EdgeBasis[g][k] * ref.EdgeBasis[g][l]
				}
				ed.Mass[k][l] = sum * ed.Length / 2
			}
		}
		ed.Neighbor = -1
		ed.NeighborEdge = -1
		ed.NeighborNodes = [2]int{-1, -1}
	}
	return td, nil
}

// SetNeighbor records the coupling of edge f to element nbr
func (td *TriangleDescriptor) SetNeighbor(f, nbr, nbrEdge int, nodes [2]int) {
	ed := &td.Edges[f]
	ed.Neighbor = nbr
	ed.NeighborEdge = nbrEdge
	ed.NeighborNodes = nodes
}

// Centroid returns the element centroid
func (td *TriangleDescriptor) Centroid() (float64, float64) {
	return (td.X[0] + td.X[1] + td.X[2]) / 3, (td.Y[0] + td.Y[1] + td.Y[2]) / 3
}

// Integrate returns ∫ u over the element for nodal values u
func (td *TriangleDescriptor) Integrate(u [3]float64) float64 {
	sum := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum += td.Mass[i][j] * u[j]
		}
	}
	return sum
}

// IsGeometryError reports whether err came from descriptor validation
func IsGeometryError(err error) bool {
	return errors.Is(err, ErrDegenerate) || errors.Is(err, ErrOrientation)
}
