package transport

import (
	"fmt"
	"math"

	"github.com/notargets/DGTransport/utils"
)

// ErrReflection reports a reflecting boundary whose mirror directions are
// not in the quadrature set
var ErrReflection = fmt.Errorf("%w: reflected ordinate not in quadrature", utils.ErrInput)

// reflectTolerance matches a mirrored direction to an ordinate
const reflectTolerance = 1e-8

// BoundaryKind selects the inflow closure on a tagged boundary
type BoundaryKind uint8

const (
	Vacuum BoundaryKind = iota
	Reflecting
	Incident
)

func (k BoundaryKind) String() string {
	switch k {
	case Vacuum:
		return "vacuum"
	case Reflecting:
		return "reflecting"
	case Incident:
		return "incident"
	default:
		return fmt.Sprintf("BoundaryKind(%d)", uint8(k))
	}
}

// IncidentFunc gives the incoming angular flux at a boundary point
type IncidentFunc func(x, y float64, m int, o Ordinate, g int) float64

// BoundaryCondition closes the inflow of one boundary tag
type BoundaryCondition struct {
	Kind   BoundaryKind
	Values []float64 // Isotropic incident flux per group
	Func   IncidentFunc
}

func VacuumBoundary() BoundaryCondition     { return BoundaryCondition{Kind: Vacuum} }
func ReflectingBoundary() BoundaryCondition { return BoundaryCondition{Kind: Reflecting} }

// IncidentBoundary is an isotropic incoming flux per group
func IncidentBoundary(perGroup []float64) BoundaryCondition {
	return BoundaryCondition{Kind: Incident, Values: append([]float64(nil), perGroup...)}
}

// IncidentBoundaryFunc is a position and direction dependent incoming flux
func IncidentBoundaryFunc(f IncidentFunc) BoundaryCondition {
	return BoundaryCondition{Kind: Incident, Func: f}
}

func (bc BoundaryCondition) validate(tag, G int) error {
	switch bc.Kind {
	case Vacuum, Reflecting:
		return nil
	case Incident:
		if bc.Func != nil {
			return nil
		}
		if len(bc.Values) != G {
			return fmt.Errorf("%w: boundary tag %d has %d incident values for %d groups", utils.ErrInput, tag, len(bc.Values), G)
		}
		for g, v := range bc.Values {
			if v < 0 || math.IsNaN(v) {
				return fmt.Errorf("%w: boundary tag %d group %d incident flux %g", utils.ErrInput, tag, g, v)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: boundary tag %d has unknown kind %v", utils.ErrInput, tag, bc.Kind)
}

// boundarySlot is one boundary edge of the mesh
type boundarySlot struct {
	Element, Edge int
	Kind          BoundaryKind
	// Reflect[m] is the ordinate whose outflow feeds inflow ordinate m on a
	// reflecting edge, -1 when m leaves through this edge
	Reflect []int
}

// reflectedOrdinate finds the ordinate Ω - 2(Ω·n)n with the same ωz
func reflectedOrdinate(q *Quadrature, o Ordinate, nx, ny float64) (int, bool) {
	dot := o.Wx*nx + o.Wy*ny
	return q.Find(o.Wx-2*dot*nx, o.Wy-2*dot*ny, o.Wz, reflectTolerance)
}
