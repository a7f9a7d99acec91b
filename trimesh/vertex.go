package trimesh

import "cmp"

// Vertex is an immutable point in the plane
type Vertex struct {
	ID   int
	X, Y float64
}

// ComparePosition orders vertices by x, then y. Vertices at the same
// position compare equal, which is what deduplication keys on.
func ComparePosition(a, b Vertex) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Y, b.Y)
}

// CompareVertex is the total order on vertices: position, then ID
func CompareVertex(a, b Vertex) int {
	if c := ComparePosition(a, b); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
