package trimesh

import (
	"fmt"
	"slices"
	"strings"

	"github.com/notargets/DGTransport/element"
	"github.com/notargets/DGTransport/utils"
)

// Triangle is an input element referencing input vertex ids
type Triangle struct {
	V      [3]int
	Region int
}

// BoundaryEdge tags the boundary edge between two input vertex ids
type BoundaryEdge struct {
	V0, V1 int
	Tag    int
}

// Mesh is a deduplicated triangulation with per-element descriptors
type Mesh struct {
	Ref       *element.ReferenceTriangle
	Vertices  []Vertex // Deduplicated, numbered in position order
	Elements  []*element.TriangleDescriptor
	Connector *utils.EdgeConnector
	Regions   []int // Sorted region ids present in the mesh
}

// Build creates a mesh from input vertices, triangles and boundary tags.
// Coincident vertices are merged and the surviving vertices are renumbered
// in ComparePosition order so the numbering does not depend on input order.
func Build(vertices []Vertex, triangles []Triangle, boundary []BoundaryEdge) (*Mesh, error) {
	if len(vertices) < 3 || len(triangles) == 0 {
		return nil, fmt.Errorf("%w: mesh needs at least 3 vertices and one triangle", utils.ErrInput)
	}

	ref, err := element.NewReferenceTriangle()
	if err != nil {
		return nil, err
	}

	// Deduplicate by position
	byPosition := NewOrderedMap[Vertex, []int](ComparePosition)
	ids := make(map[int]Vertex, len(vertices))
	for _, v := range vertices {
		if _, dup := ids[v.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate vertex id %d", utils.ErrInput, v.ID)
		}
		ids[v.ID] = v
		members, _ := byPosition.GetOrPut(v, nil)
		byPosition.Put(v, append(members, v.ID))
	}

	m := &Mesh{Ref: ref}
	canonical := make(map[int]int, len(vertices))
	byPosition.Ascend(func(v Vertex, members []int) bool {
		idx := len(m.Vertices)
		m.Vertices = append(m.Vertices, Vertex{ID: idx, X: v.X, Y: v.Y})
		for _, id := range members {
			canonical[id] = idx
		}
		return true
	})

	EToV := make([][3]int, len(triangles))
	regions := make(map[int]bool)
	for k, tri := range triangles {
		for n := 0; n < 3; n++ {
			idx, ok := canonical[tri.V[n]]
			if !ok {
				return nil, fmt.Errorf("%w: triangle %d references unknown vertex %d", utils.ErrInput, k, tri.V[n])
			}
			EToV[k][n] = idx
		}
		// Counter-clockwise order
		if signedArea(m.Vertices, EToV[k]) < 0 {
			EToV[k][1], EToV[k][2] = EToV[k][2], EToV[k][1]
		}
		regions[tri.Region] = true
	}
	for r := range regions {
		m.Regions = append(m.Regions, r)
	}
	slices.Sort(m.Regions)

	m.Elements = make([]*element.TriangleDescriptor, len(triangles))
	for k, tri := range triangles {
		var x, y [3]float64
		for n := 0; n < 3; n++ {
			v := m.Vertices[EToV[k][n]]
			x[n], y[n] = v.X, v.Y
		}
		td, err := element.NewTriangleDescriptor(ref, k, tri.Region, EToV[k], x, y)
		if err != nil {
			return nil, err
		}
		m.Elements[k] = td
	}

	if m.Connector, err = utils.NewEdgeConnector(EToV); err != nil {
		return nil, err
	}
	for k, td := range m.Elements {
		for f := 0; f < 3; f++ {
			if m.Connector.IsBoundary(k, f) {
				continue
			}
			td.SetNeighbor(f, m.Connector.EToE[k][f], m.Connector.EToF[k][f], m.Connector.NodeMap[k][f])
		}
	}

	if err = m.applyBoundaryTags(canonical, boundary); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mesh) applyBoundaryTags(canonical map[int]int, boundary []BoundaryEdge) error {
	type key struct{ a, b int }
	lookup := make(map[key]utils.EdgeRef, len(m.Connector.Boundary))
	for _, ref := range m.Connector.Boundary {
		nodes := m.Elements[ref.Element].Edges[ref.Edge].Nodes
		a := m.Elements[ref.Element].Vertices[nodes[0]]
		b := m.Elements[ref.Element].Vertices[nodes[1]]
		if a > b {
			a, b = b, a
		}
		lookup[key{a, b}] = ref
	}
	for _, be := range boundary {
		a, okA := canonical[be.V0]
		b, okB := canonical[be.V1]
		if !okA || !okB {
			return fmt.Errorf("%w: boundary edge (%d,%d) references unknown vertex", utils.ErrInput, be.V0, be.V1)
		}
		if a > b {
			a, b = b, a
		}
		ref, ok := lookup[key{a, b}]
		if !ok {
			return fmt.Errorf("%w: (%d,%d) is not a boundary edge", utils.ErrInput, be.V0, be.V1)
		}
		m.Elements[ref.Element].Edges[ref.Edge].Tag = be.Tag
	}
	return nil
}

func signedArea(verts []Vertex, tri [3]int) float64 {
	a, b, c := verts[tri[0]], verts[tri[1]], verts[tri[2]]
	return 0.5 * ((b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y))
}

// NumElements returns K
func (m *Mesh) NumElements() int { return len(m.Elements) }

// NumVertices returns the deduplicated vertex count
func (m *Mesh) NumVertices() int { return len(m.Vertices) }

// Np returns the nodes per element
func (m *Mesh) Np() int { return m.Ref.Np() }

// BoundaryEdges returns the boundary edges in element, then edge order
func (m *Mesh) BoundaryEdges() []utils.EdgeRef {
	return m.Connector.Boundary
}

// TotalArea sums the element areas
func (m *Mesh) TotalArea() float64 {
	sum := 0.0
	for _, td := range m.Elements {
		sum += td.Area
	}
	return sum
}

// String returns a summary of the mesh
func (m *Mesh) String() string {
	var sb strings.Builder

	sb.WriteString("=== TriMesh Summary ===\n")
	sb.WriteString(fmt.Sprintf("  Element: %s\n", m.Ref.Name()))
	sb.WriteString(fmt.Sprintf("  Vertices: %d\n", m.NumVertices()))
	sb.WriteString(fmt.Sprintf("  Elements: %d\n", m.NumElements()))
	sb.WriteString(fmt.Sprintf("  Interior edges: %d\n", m.Connector.NumInteriorEdges()))
	sb.WriteString(fmt.Sprintf("  Boundary edges: %d\n", len(m.Connector.Boundary)))
	sb.WriteString(fmt.Sprintf("  Regions: %v\n", m.Regions))
	sb.WriteString(fmt.Sprintf("  Total area: %.6g\n", m.TotalArea()))

	tags := make(map[int]int)
	for _, ref := range m.Connector.Boundary {
		tags[m.Elements[ref.Element].Edges[ref.Edge].Tag]++
	}
	keys := make([]int, 0, len(tags))
	for tag := range tags {
		keys = append(keys, tag)
	}
	slices.Sort(keys)
	for _, tag := range keys {
		sb.WriteString(fmt.Sprintf("  Boundary tag %d: %d edges\n", tag, tags[tag]))
	}
	return sb.String()
}
