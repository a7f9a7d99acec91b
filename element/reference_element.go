package element

import (
	"fmt"

	"github.com/notargets/DGTransport/element/library/gonudg"
	"github.com/notargets/DGTransport/utils"
	cfdutils "github.com/notargets/gocfd/utils"
	"gonum.org/v1/gonum/mat"
)

// Dimensionality represents the spatial dimension of an element
type Dimensionality uint8

const (
	D0 Dimensionality = iota // 0D elements (points)
	D1                       // 1D elements (lines, edges)
	D2                       // 2D elements (triangles)
)

// ElementProperties contains metadata describing an element type
type ElementProperties struct {
	Name       string          // Full descriptive name (e.g., "Lagrange Triangle Order 1")
	ShortName  string          // Abbreviated name (e.g., "Tri1")
	Type       ElementGeometry // Element shape
	Order      int             // Polynomial order
	Np         int             // Total number of nodes/points in element
	NFp        int             // Number of nodes per edge
	NVp        int             // Number of vertex nodes (equals number of vertices)
	NQp        int             // Number of interior quadrature points
	NEdges     int             // Number of edges in each element
	Dimensions Dimensionality  // Spatial dimension
}

// ReferenceGeometry defines the layout of nodes in reference space [-1,1]^2
type ReferenceGeometry struct {
	R, S []float64 // Length Np each

	// Node classification by topological entity
	VertexPoints []int   // Indices of nodes located at vertices
	EdgePoints   [][]int // [edge_num][point_indices] - nodes on each edge
}

// NodalModalMatrices contains transformation matrices between nodal and modal representations
type NodalModalMatrices struct {
	V    mat.Matrix // Vandermonde matrix: modal to nodal transformation [Np × Np]
	Vinv mat.Matrix // Inverse Vandermonde: nodal to modal transformation [Np × Np]
	M    mat.Matrix // Mass matrix in nodal space [Np × Np]
}

// ReferenceOperators contains differential operators in reference space
type ReferenceOperators struct {
	Dr mat.Matrix // Derivative with respect to r [Np × Np]
	Ds mat.Matrix // Derivative with respect to s [Np × Np]
}

// ReferenceElement defines element properties and operators in reference space
type ReferenceElement interface {
	GetProperties() ElementProperties
	GetReferenceGeometry() ReferenceGeometry
	GetNodalModal() NodalModalMatrices
	GetReferenceOperators() ReferenceOperators
}

// ReferenceTriangle is the linear Lagrange triangle on vertices (-1,-1),
// (1,-1), (-1,1) with its quadrature tables
type ReferenceTriangle struct {
	props ElementProperties
	geom  ReferenceGeometry

	v, vinv, mass *mat.Dense
	dr, ds        *mat.Dense

	// Interior quadrature, six points
	QR, QS, QW []float64
	// Basis values at the quadrature points [NQp × Np]
	B *mat.Dense

	// Edge quadrature on [-1,1] and the two edge basis functions at each point
	EdgeXi, EdgeW []float64
	EdgeBasis     [][2]float64
}

// NewReferenceTriangle builds the order one reference triangle
func NewReferenceTriangle() (*ReferenceTriangle, error) {
	const N = 1
	Np := (N + 1) * (N + 2) / 2

	rt := &ReferenceTriangle{
		props: ElementProperties{
			Name:       "Lagrange Triangle Order 1",
			ShortName:  "Tri1",
			Type:       Tri,
			Order:      N,
			Np:         Np,
			NFp:        2,
			NVp:        3,
			NEdges:     3,
			Dimensions: D2,
		},
		geom: ReferenceGeometry{
			R:            []float64{-1, 1, -1},
			S:            []float64{-1, -1, 1},
			VertexPoints: []int{0, 1, 2},
		},
	}
	for _, edge := range utils.TriEdges {
		rt.geom.EdgePoints = append(rt.geom.EdgePoints, []int{edge[0], edge[1]})
	}

	// Nodal basis through the modal Vandermonde matrix
	V := gonudg.Vandermonde2D(N, rt.geom.R, rt.geom.S)
	Vr, Vs := gonudg.GradVandermonde2D(N, rt.geom.R, rt.geom.S)

	Vc := cfdutils.NewMatrix(Np, Np, V.RawMatrix().Data)
	Vinvc, err := Vc.Inverse()
	if err != nil {
		return nil, fmt.Errorf("reference triangle: singular Vandermonde matrix: %w", err)
	}
	Drc := cfdutils.NewMatrix(Np, Np, Vr.RawMatrix().Data).Mul(Vinvc)
	Dsc := cfdutils.NewMatrix(Np, Np, Vs.RawMatrix().Data).Mul(Vinvc)

	rt.v = V
	rt.vinv = mat.NewDense(Np, Np, nil)
	rt.dr = mat.NewDense(Np, Np, nil)
	rt.ds = mat.NewDense(Np, Np, nil)
	for i := 0; i < Np; i++ {
		for j := 0; j < Np; j++ {
			rt.vinv.Set(i, j, Vinvc.At(i, j))
			rt.dr.Set(i, j, Drc.At(i, j))
			rt.ds.Set(i, j, Dsc.At(i, j))
		}
	}

	// Nodal basis at the quadrature points: B = Vandermonde(rq,sq) * Vinv
	rt.QR, rt.QS, rt.QW = gonudg.TriangleQuadrature6()
	rt.props.NQp = len(rt.QR)
	Vq := gonudg.Vandermonde2D(N, rt.QR, rt.QS)
	rt.B = mat.NewDense(rt.props.NQp, Np, nil)
	rt.B.Mul(Vq, rt.vinv)

	rt.mass = mat.NewDense(Np, Np, nil)
	for i := 0; i < Np; i++ {
		for j := 0; j < Np; j++ {
			sum := 0.0
			for q := range rt.QW {
				sum += rt.QW[q] * rt.B.At(q, i) * rt.B.At(q, j)
			}
			rt.mass.Set(i, j, sum)
		}
	}

	// Edge rule, exact for the quadratic edge mass integrand
	rt.EdgeXi, rt.EdgeW = gonudg.GaussLegendre(2)
	rt.EdgeBasis = make([][2]float64, len(rt.EdgeXi))
	for g, xi := range rt.EdgeXi {
		rt.EdgeBasis[g] = [2]float64{(1 - xi) / 2, (1 + xi) / 2}
	}
	return rt, nil
}

func (rt *ReferenceTriangle) GetProperties() ElementProperties { return rt.props }

func (rt *ReferenceTriangle) GetReferenceGeometry() ReferenceGeometry { return rt.geom }

func (rt *ReferenceTriangle) GetNodalModal() NodalModalMatrices {
	return NodalModalMatrices{V: rt.v, Vinv: rt.vinv, M: rt.mass}
}

func (rt *ReferenceTriangle) GetReferenceOperators() ReferenceOperators {
	return ReferenceOperators{Dr: rt.dr, Ds: rt.ds}
}

func (rt *ReferenceTriangle) Name() string                  { return rt.props.Name }
func (rt *ReferenceTriangle) ShortName() string             { return rt.props.ShortName }
func (rt *ReferenceTriangle) GeometryType() ElementGeometry { return rt.props.Type }
func (rt *ReferenceTriangle) Order() int                    { return rt.props.Order }
func (rt *ReferenceTriangle) Np() int                       { return rt.props.Np }
func (rt *ReferenceTriangle) NFp() int                      { return rt.props.NFp }
func (rt *ReferenceTriangle) Dimensions() Dimensionality    { return rt.props.Dimensions }
func (rt *ReferenceTriangle) R() []float64                  { return rt.geom.R }
func (rt *ReferenceTriangle) S() []float64                  { return rt.geom.S }
func (rt *ReferenceTriangle) VertexPoints() []int           { return rt.geom.VertexPoints }
func (rt *ReferenceTriangle) EdgePoints() [][]int           { return rt.geom.EdgePoints }
func (rt *ReferenceTriangle) V() mat.Matrix                 { return rt.v }
func (rt *ReferenceTriangle) Vinv() mat.Matrix              { return rt.vinv }
func (rt *ReferenceTriangle) M() mat.Matrix                 { return rt.mass }
func (rt *ReferenceTriangle) Dr() mat.Matrix                { return rt.dr }
func (rt *ReferenceTriangle) Ds() mat.Matrix                { return rt.ds }
