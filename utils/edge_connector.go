package utils

import (
	"fmt"
)

// TriEdges lists the local vertex pairs of each triangle edge
var TriEdges = [3][2]int{
	{0, 1}, // Edge 0
	{1, 2}, // Edge 1
	{2, 0}, // Edge 2
}

// EdgeConnector holds triangle edge connectivity and the node matching
// needed to couple neighboring elements across shared edges
type EdgeConnector struct {
	K      int // Total elements
	Nedges int // Edges per element

	// Input connectivity
	EToV [][3]int // Element → vertex ids

	// Element to element connectivity, boundary edges point back to
	// the element itself
	EToE [][3]int // [elem][edge] → neighbor element
	EToF [][3]int // [elem][edge] → neighbor local edge

	// NodeMap[elem][edge][k] is the neighbor local node that coincides with
	// local node TriEdges[edge][k]
	NodeMap [][3][2]int

	// Boundary edges in element, then edge order
	Boundary []EdgeRef
}

// EdgeRef identifies one element edge
type EdgeRef struct {
	Element int
	Edge    int
}

// edgeSignature is the canonical key of an edge, sorted vertex ids
type edgeSignature struct {
	v0, v1 int
}

func newEdgeSignature(a, b int) edgeSignature {
	if a > b {
		a, b = b, a
	}
	return edgeSignature{a, b}
}

// NewEdgeConnector creates an edge connector from triangle to vertex connectivity
func NewEdgeConnector(EToV [][3]int) (*EdgeConnector, error) {
	K := len(EToV)
	if K == 0 {
		return nil, fmt.Errorf("%w: no elements", ErrInput)
	}

	ec := &EdgeConnector{
		K:       K,
		Nedges:  3,
		EToV:    EToV,
		EToE:    make([][3]int, K),
		EToF:    make([][3]int, K),
		NodeMap: make([][3][2]int, K),
	}

	// Self connection by default
	for e := 0; e < K; e++ {
		for f := 0; f < 3; f++ {
			ec.EToE[e][f] = e
			ec.EToF[e][f] = f
			ec.NodeMap[e][f] = [2]int{-1, -1}
		}
	}

	type edgeOwner struct {
		elem, edge int
	}
	owners := make(map[edgeSignature]edgeOwner, 3*K/2+1)

	for e := 0; e < K; e++ {
		for f := 0; f < 3; f++ {
			a := EToV[e][TriEdges[f][0]]
			b := EToV[e][TriEdges[f][1]]
			if a == b {
				return nil, fmt.Errorf("%w: element %d edge %d repeats vertex %d", ErrInput, e, f, a)
			}
			sig := newEdgeSignature(a, b)
			existing, found := owners[sig]
			if !found {
				owners[sig] = edgeOwner{e, f}
				continue
			}
			if existing.elem < 0 {
				return nil, fmt.Errorf("%w: edge (%d,%d) shared by more than two elements", ErrInput, sig.v0, sig.v1)
			}
			ec.EToE[e][f] = existing.elem
			ec.EToF[e][f] = existing.edge
			ec.EToE[existing.elem][existing.edge] = e
			ec.EToF[existing.elem][existing.edge] = f
			owners[sig] = edgeOwner{-1, -1}
		}
	}

	if err := ec.BuildNodeMaps(); err != nil {
		return nil, err
	}
	return ec, nil
}

// BuildNodeMaps matches local edge nodes with neighbor nodes by vertex id
// and collects the boundary edges
func (ec *EdgeConnector) BuildNodeMaps() error {
	ec.Boundary = ec.Boundary[:0]
	for e := 0; e < ec.K; e++ {
		for f := 0; f < 3; f++ {
			nbr := ec.EToE[e][f]
			if nbr == e {
				ec.Boundary = append(ec.Boundary, EdgeRef{Element: e, Edge: f})
				continue
			}
			for k := 0; k < 2; k++ {
				v := ec.EToV[e][TriEdges[f][k]]
				match := -1
				for n := 0; n < 3; n++ {
					if ec.EToV[nbr][n] == v {
						match = n
						break
					}
				}
				if match < 0 {
					return fmt.Errorf("%w: element %d edge %d: vertex %d not found in neighbor %d",
						ErrFatal, e, f, v, nbr)
				}
				ec.NodeMap[e][f][k] = match
			}
		}
	}
	return nil
}

// IsBoundary reports whether edge f of element e lies on the domain boundary
func (ec *EdgeConnector) IsBoundary(e, f int) bool {
	return ec.EToE[e][f] == e
}

// NumInteriorEdges returns the count of unique interior edges
func (ec *EdgeConnector) NumInteriorEdges() int {
	return (3*ec.K - len(ec.Boundary)) / 2
}
