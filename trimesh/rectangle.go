package trimesh

import (
	"fmt"

	"github.com/notargets/DGTransport/utils"
)

// Boundary tags of Rectangle
const (
	TagBottom = 1
	TagRight  = 2
	TagTop    = 3
	TagLeft   = 4
)

// Rectangle triangulates [0,w]x[0,h] with nx by ny cells, each split along
// its lower-left to upper-right diagonal
func Rectangle(nx, ny int, w, h float64, region int) (*Mesh, error) {
	if nx < 1 || ny < 1 || w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: rectangle %dx%d of size %gx%g", utils.ErrInput, nx, ny, w, h)
	}
	vid := func(i, j int) int { return j*(nx+1) + i }

	vertices := make([]Vertex, 0, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			vertices = append(vertices, Vertex{
				ID: vid(i, j),
				X:  w * float64(i) / float64(nx),
				Y:  h * float64(j) / float64(ny),
			})
		}
	}

	triangles := make([]Triangle, 0, 2*nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00, v10, v11, v01 := vid(i, j), vid(i+1, j), vid(i+1, j+1), vid(i, j+1)
			triangles = append(triangles,
				Triangle{V: [3]int{v00, v10, v11}, Region: region},
				Triangle{V: [3]int{v00, v11, v01}, Region: region},
			)
		}
	}

	boundary := make([]BoundaryEdge, 0, 2*(nx+ny))
	for i := 0; i < nx; i++ {
		boundary = append(boundary,
			BoundaryEdge{V0: vid(i, 0), V1: vid(i+1, 0), Tag: TagBottom},
			BoundaryEdge{V0: vid(i, ny), V1: vid(i+1, ny), Tag: TagTop},
		)
	}
	for j := 0; j < ny; j++ {
		boundary = append(boundary,
			BoundaryEdge{V0: vid(nx, j), V1: vid(nx, j+1), Tag: TagRight},
			BoundaryEdge{V0: vid(0, j), V1: vid(0, j+1), Tag: TagLeft},
		)
	}
	return Build(vertices, triangles, boundary)
}
