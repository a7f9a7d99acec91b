package element

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// GetRefMatrices collects the reference operators of an element keyed by
// operator name and element short name
func GetRefMatrices(el ReferenceElement) (refMats map[string]mat.Matrix) {
	var (
		props = el.GetProperties()
	)

	nm := el.GetNodalModal()
	ro := el.GetReferenceOperators()
	sn := props.ShortName
	refMats = map[string]mat.Matrix{
		"V_" + sn:    nm.V,
		"Vinv_" + sn: nm.Vinv,
		"M_" + sn:    nm.M,
		"Dr_" + sn:   ro.Dr,
		"Ds_" + sn:   ro.Ds,
	}
	return
}

// FlattenMatrix returns the row-major entries of m
func FlattenMatrix(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

// FormatMatrix formats a single matrix as a named block of rows
func FormatMatrix(name string, m mat.Matrix) string {
	rows, cols := m.Dims()
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s [%d x %d]\n", name, rows, cols))
	for i := 0; i < rows; i++ {
		sb.WriteString("    ")
		for j := 0; j < cols; j++ {
			if j > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(fmt.Sprintf("% .15e", m.At(i, j)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// String returns a summary of the reference triangle and its operators
func (rt *ReferenceTriangle) String() string {
	var sb strings.Builder

	sb.WriteString("=== Reference Element ===\n")
	sb.WriteString(fmt.Sprintf("  Name: %s (%s)\n", rt.props.Name, rt.props.ShortName))
	sb.WriteString(fmt.Sprintf("  Type: %v\n", rt.props.Type))
	sb.WriteString(fmt.Sprintf("  Order: %d\n", rt.props.Order))
	sb.WriteString(fmt.Sprintf("  Nodes per element (Np): %d\n", rt.props.Np))
	sb.WriteString(fmt.Sprintf("  Nodes per edge (NFp): %d\n", rt.props.NFp))
	sb.WriteString(fmt.Sprintf("  Quadrature points (NQp): %d\n", rt.props.NQp))

	refMats := GetRefMatrices(rt)
	names := make([]string, 0, len(refMats))
	for name := range refMats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(FormatMatrix(name, refMats[name]))
	}
	return sb.String()
}
