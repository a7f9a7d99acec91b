package element

import (
	"errors"
	"strings"
	"testing"

	"github.com/notargets/DGTransport/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceTriangleOperators(t *testing.T) {
	rt, err := NewReferenceTriangle()
	require.NoError(t, err)

	props := rt.GetProperties()
	assert.Equal(t, 3, props.Np)
	assert.Equal(t, 6, props.NQp)
	assert.Equal(t, Tri, rt.GeometryType())
	assert.Equal(t, D2, rt.Dimensions())

	// Linear basis derivatives are constant: φ0=-(r+s)/2, φ1=(1+r)/2, φ2=(1+s)/2
	expectedDr := []float64{-0.5, 0.5, 0}
	expectedDs := []float64{-0.5, 0, 0.5}
	for n := 0; n < 3; n++ {
		for i := 0; i < 3; i++ {
			assert.InDelta(t, expectedDr[i], rt.Dr().At(n, i), 1e-13)
			assert.InDelta(t, expectedDs[i], rt.Ds().At(n, i), 1e-13)
		}
	}

	// Reference mass matrix, area 2: M = (2/12) (1 + δij)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := 1.0 / 6
			if i == j {
				expected = 1.0 / 3
			}
			assert.InDelta(t, expected, rt.M().At(i, j), 1e-13)
		}
	}

	// Partition of unity at the quadrature points
	for q := 0; q < props.NQp; q++ {
		sum := 0.0
		for i := 0; i < 3; i++ {
			sum += rt.B.At(q, i)
		}
		assert.InDelta(t, 1.0, sum, 1e-13)
	}

	summary := rt.String()
	assert.True(t, strings.Contains(summary, "Tri1"))
	assert.Len(t, GetRefMatrices(rt), 5)
}

func TestTriangleDescriptorRightTriangle(t *testing.T) {
	rt, err := NewReferenceTriangle()
	require.NoError(t, err)

	td, err := NewTriangleDescriptor(rt, 7, 2, [3]int{0, 1, 2},
		[3]float64{0, 1, 0}, [3]float64{0, 0, 1})
	require.NoError(t, err)

	assert.Equal(t, 7, td.ID)
	assert.Equal(t, 2, td.Region)
	assert.InDelta(t, 0.5, td.Area, 1e-14)
	assert.Equal(t, [3]float64{-1, 1, 0}, roundAll(td.GradX))
	assert.Equal(t, [3]float64{-1, 0, 1}, roundAll(td.GradY))

	// Mass matrix of a linear triangle: A/12 (1 + δij)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := td.Area / 12
			if i == j {
				expected = td.Area / 6
			}
			assert.InDelta(t, expected, td.Mass[i][j], 1e-14)
		}
	}

	// Outward normals
	assert.InDelta(t, 0.0, td.Edges[0].Nx, 1e-14)
	assert.InDelta(t, -1.0, td.Edges[0].Ny, 1e-14)
	assert.InDelta(t, 1/1.4142135623730951, td.Edges[1].Nx, 1e-14)
	assert.InDelta(t, -1.0, td.Edges[2].Nx, 1e-14)

	// Edge mass L/6 (1 + δ)
	L := td.Edges[1].Length
	assert.InDelta(t, L/3, td.Edges[1].Mass[0][0], 1e-14)
	assert.InDelta(t, L/6, td.Edges[1].Mass[0][1], 1e-14)

	// Nodal integration of a constant gives the area
	assert.InDelta(t, td.Area, td.Integrate([3]float64{1, 1, 1}), 1e-14)
	for _, ed := range td.Edges {
		assert.True(t, ed.IsBoundary())
	}
}

// TestTriangleDescriptorDivergence checks the discrete divergence theorem
// that makes constant solutions exact: Σj Stream[d][i][j] = ∮ n_d φi
func TestTriangleDescriptorDivergence(t *testing.T) {
	rt, err := NewReferenceTriangle()
	require.NoError(t, err)

	td, err := NewTriangleDescriptor(rt, 0, 0, [3]int{0, 1, 2},
		[3]float64{0.1, 1.3, 0.4}, [3]float64{-0.2, 0.25, 0.9})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		var volX, volY, surfX, surfY float64
		for j := 0; j < 3; j++ {
			volX += td.Stream[0][i][j]
			volY += td.Stream[1][i][j]
		}
		for f, edge := range utils.TriEdges {
			ed := td.Edges[f]
			for k := 0; k < 2; k++ {
				if edge[k] != i {
					continue
				}
				row := ed.Mass[k][0] + ed.Mass[k][1]
				surfX += ed.Nx * row
				surfY += ed.Ny * row
			}
		}
		assert.InDelta(t, surfX, volX, 1e-13, "node %d x", i)
		assert.InDelta(t, surfY, volY, 1e-13, "node %d y", i)
	}
}

func TestTriangleDescriptorRejectsDegenerate(t *testing.T) {
	rt, err := NewReferenceTriangle()
	require.NoError(t, err)

	_, err = NewTriangleDescriptor(rt, 3, 0, [3]int{0, 1, 2},
		[3]float64{0, 1, 2}, [3]float64{0, 1, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerate))
	assert.True(t, errors.Is(err, utils.ErrInput))
	assert.True(t, IsGeometryError(err))

	_, err = NewTriangleDescriptor(rt, 4, 0, [3]int{0, 2, 1},
		[3]float64{0, 0, 1}, [3]float64{0, 1, 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOrientation))
}

func roundAll(v [3]float64) [3]float64 {
	var out [3]float64
	for i, x := range v {
		out[i] = float64(int64(x*1e9+sign(x)*0.5)) / 1e9
	}
	return out
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
