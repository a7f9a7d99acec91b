package trimesh

import (
	"cmp"
	"fmt"

	"github.com/notargets/DGTransport/utils"
)

// ErrDOFLayout reports inconsistent degree of freedom numbering
var ErrDOFLayout = fmt.Errorf("%w: inconsistent DOF numbering", utils.ErrFatal)

// DOF identifies one unknown of the discrete system
type DOF struct {
	Angle   int // Ordinate index
	Element int
	Group   int
	Basis   int // Local node
}

func (d DOF) String() string {
	return fmt.Sprintf("(m=%d, e=%d, g=%d, i=%d)", d.Angle, d.Element, d.Group, d.Basis)
}

// CompareDOF orders DOFs by angle, element, group, basis. This matches the
// flat storage index of DOFLayout.
func CompareDOF(a, b DOF) int {
	if c := cmp.Compare(a.Angle, b.Angle); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Element, b.Element); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Group, b.Group); c != 0 {
		return c
	}
	return cmp.Compare(a.Basis, b.Basis)
}

// DOFLayout maps DOFs to flat indices. Angular storage is ordinate major so
// each ordinate owns a contiguous block during a sweep.
type DOFLayout struct {
	NumAngles   int
	NumElements int
	NumGroups   int
	Np          int
}

// Size is the number of angular unknowns
func (l DOFLayout) Size() int {
	return l.NumAngles * l.NumElements * l.NumGroups * l.Np
}

// AngleStride is the number of unknowns owned by one ordinate
func (l DOFLayout) AngleStride() int {
	return l.NumElements * l.NumGroups * l.Np
}

// Index returns the flat index of a DOF
func (l DOFLayout) Index(d DOF) int {
	return ((d.Angle*l.NumElements+d.Element)*l.NumGroups+d.Group)*l.Np + d.Basis
}

// At is Index without constructing a DOF
func (l DOFLayout) At(m, e, g, i int) int {
	return ((m*l.NumElements+e)*l.NumGroups+g)*l.Np + i
}

// DOFAt inverts Index
func (l DOFLayout) DOFAt(idx int) DOF {
	i := idx % l.Np
	idx /= l.Np
	g := idx % l.NumGroups
	idx /= l.NumGroups
	e := idx % l.NumElements
	return DOF{Angle: idx / l.NumElements, Element: e, Group: g, Basis: i}
}

// ScalarSize is the number of scalar flux unknowns (element, group, basis)
func (l DOFLayout) ScalarSize() int {
	return l.NumElements * l.NumGroups * l.Np
}

// ScalarAt is the flat index of a scalar flux unknown
func (l DOFLayout) ScalarAt(e, g, i int) int {
	return (e*l.NumGroups+g)*l.Np + i
}

// Verify enumerates every DOF through an ordered container and checks that
// the container order and the flat numbering agree
func (l DOFLayout) Verify() error {
	if l.NumAngles <= 0 || l.NumElements <= 0 || l.NumGroups <= 0 || l.Np <= 0 {
		return fmt.Errorf("%w: empty layout %+v", ErrDOFLayout, l)
	}
	dofs := NewOrderedMap[DOF, int](CompareDOF)
	for idx := 0; idx < l.Size(); idx++ {
		d := l.DOFAt(idx)
		if l.Index(d) != idx {
			return fmt.Errorf("%w: index %d maps to %v which maps to %d", ErrDOFLayout, idx, d, l.Index(d))
		}
		if !dofs.Put(d, idx) {
			return fmt.Errorf("%w: duplicate DOF %v", ErrDOFLayout, d)
		}
	}
	expected := 0
	var err error
	dofs.Ascend(func(d DOF, idx int) bool {
		if idx != expected {
			err = fmt.Errorf("%w: DOF %v has index %d, expected %d", ErrDOFLayout, d, idx, expected)
			return false
		}
		expected++
		return true
	})
	return err
}
