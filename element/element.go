package element

import "gonum.org/v1/gonum/mat"

type ElementGeometry uint8

const (
	Tri ElementGeometry = iota
	Line
)

func (g ElementGeometry) String() string {
	switch g {
	case Tri:
		return "Tri"
	case Line:
		return "Line"
	default:
		return "Unknown"
	}
}

type Element interface {
	Name() string
	ShortName() string
	GeometryType() ElementGeometry
	Order() int
	Np() int  // Number of defining geometric points
	NFp() int // Number of points per edge
	Dimensions() Dimensionality

	// Reference Geometry Definition
	R() []float64
	S() []float64

	// Point classification by geometric location
	VertexPoints() []int // Indices into the Np points that are at vertices
	EdgePoints() [][]int // [edge_num][point_indices] - points on each edge

	// Nodal / Modal matrices
	V() mat.Matrix
	Vinv() mat.Matrix
	M() mat.Matrix

	// Basic operators
	Dr() mat.Matrix
	Ds() mat.Matrix
}
