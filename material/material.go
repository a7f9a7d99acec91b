package material

import (
	"fmt"
	"math"

	"github.com/notargets/DGTransport/utils"
	"go.uber.org/multierr"
)

var (
	ErrRange         = fmt.Errorf("%w: index out of range", utils.ErrInput)
	ErrUnpopulated   = fmt.Errorf("%w: cross section not set", utils.ErrInput)
	ErrNegative      = fmt.Errorf("%w: negative cross section", utils.ErrInput)
	ErrSpectrum      = fmt.Errorf("%w: invalid fission spectrum", utils.ErrInput)
	ErrDelayed       = fmt.Errorf("%w: invalid delayed neutron data", utils.ErrInput)
	ErrNameCollision = fmt.Errorf("%w: material name already registered", utils.ErrInput)
	ErrNoMaterial    = fmt.Errorf("%w: no material", utils.ErrInput)
	ErrGroupMismatch = fmt.Errorf("%w: energy group count mismatch", utils.ErrFatal)
)

// SpectrumTolerance is the allowed deviation of Σχ from 1
const SpectrumTolerance = 1e-10

// table is a group indexed value list that tracks which entries are set
type table struct {
	v   []float64
	set []bool
}

func newTable(n int) table {
	return table{v: make([]float64, n), set: make([]bool, n)}
}

func (t *table) put(i int, v float64) {
	t.v[i] = v
	t.set[i] = true
}

func (t *table) any() bool {
	for _, s := range t.set {
		if s {
			return true
		}
	}
	return false
}

func (t *table) all() bool {
	for _, s := range t.set {
		if !s {
			return false
		}
	}
	return true
}

// Material accumulates the cross sections of one material. It is mutable
// until Finalize, which validates it and returns the read-only Data.
type Material struct {
	name   string
	groups int
	order  int // Highest Legendre scattering order

	total     table
	scatter   []table // [order], flattened gOut*groups+gIn
	nuFission table
	spectrum  table
	speed     table

	beta, lambda []float64
}

// New creates an empty material with G groups and scattering order L
func New(name string, G, L int) (*Material, error) {
	if G < 1 || L < 0 {
		return nil, fmt.Errorf("%w: material %q needs G >= 1 and L >= 0, got G=%d L=%d", utils.ErrInput, name, G, L)
	}
	m := &Material{
		name:      name,
		groups:    G,
		order:     L,
		total:     newTable(G),
		nuFission: newTable(G),
		spectrum:  newTable(G),
		speed:     newTable(G),
		scatter:   make([]table, L+1),
	}
	for l := range m.scatter {
		m.scatter[l] = newTable(G * G)
	}
	return m, nil
}

func (m *Material) Name() string   { return m.name }
func (m *Material) NumGroups() int { return m.groups }
func (m *Material) Order() int     { return m.order }

func (m *Material) checkGroup(g int) error {
	if g < 0 || g >= m.groups {
		return fmt.Errorf("material %q: group %d of %d: %w", m.name, g, m.groups, ErrRange)
	}
	return nil
}

func (m *Material) checkLen(what string, v []float64) error {
	if len(v) != m.groups {
		return fmt.Errorf("material %q: %s has %d values for %d groups: %w", m.name, what, len(v), m.groups, ErrRange)
	}
	return nil
}

// SetTotal sets σt of group g
func (m *Material) SetTotal(g int, v float64) error {
	if err := m.checkGroup(g); err != nil {
		return err
	}
	m.total.put(g, v)
	return nil
}

// SetTotals sets σt for every group
func (m *Material) SetTotals(v []float64) error {
	if err := m.checkLen("total", v); err != nil {
		return err
	}
	for g, x := range v {
		m.total.put(g, x)
	}
	return nil
}

// SetScatter sets the order l moment of scattering from gIn to gOut
func (m *Material) SetScatter(gIn, gOut, l int, v float64) error {
	if err := m.checkGroup(gIn); err != nil {
		return err
	}
	if err := m.checkGroup(gOut); err != nil {
		return err
	}
	if l < 0 || l > m.order {
		return fmt.Errorf("material %q: scattering order %d of %d: %w", m.name, l, m.order, ErrRange)
	}
	m.scatter[l].put(gOut*m.groups+gIn, v)
	return nil
}

// SetScatterMatrix sets the full order l matrix, indexed [gOut][gIn]
func (m *Material) SetScatterMatrix(l int, s [][]float64) error {
	if len(s) != m.groups {
		return fmt.Errorf("material %q: scatter matrix has %d rows for %d groups: %w", m.name, len(s), m.groups, ErrRange)
	}
	for gOut, row := range s {
		if err := m.checkLen("scatter row", row); err != nil {
			return err
		}
		for gIn, v := range row {
			if err := m.SetScatter(gIn, gOut, l, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetNoScatter zeroes every scattering moment
func (m *Material) SetNoScatter() {
	for l := range m.scatter {
		for i := range m.scatter[l].v {
			m.scatter[l].put(i, 0)
		}
	}
}

// SetNuFission sets νσf of group g
func (m *Material) SetNuFission(g int, v float64) error {
	if err := m.checkGroup(g); err != nil {
		return err
	}
	m.nuFission.put(g, v)
	return nil
}

// SetNuFissions sets νσf for every group
func (m *Material) SetNuFissions(v []float64) error {
	if err := m.checkLen("nu-fission", v); err != nil {
		return err
	}
	for g, x := range v {
		m.nuFission.put(g, x)
	}
	return nil
}

// SetSpectrum sets the fission spectrum χ
func (m *Material) SetSpectrum(chi []float64) error {
	if err := m.checkLen("spectrum", chi); err != nil {
		return err
	}
	for g, x := range chi {
		m.spectrum.put(g, x)
	}
	return nil
}

// SetSpeed sets the particle speed of group g. +Inf is allowed and removes
// the time derivative of that group.
func (m *Material) SetSpeed(g int, v float64) error {
	if err := m.checkGroup(g); err != nil {
		return err
	}
	m.speed.put(g, v)
	return nil
}

// SetSpeeds sets the speed of every group
func (m *Material) SetSpeeds(v []float64) error {
	if err := m.checkLen("speed", v); err != nil {
		return err
	}
	for g, x := range v {
		m.speed.put(g, x)
	}
	return nil
}

// SetDelayed sets the delayed neutron fractions and decay constants, one
// entry per precursor family
func (m *Material) SetDelayed(beta, lambda []float64) error {
	if len(beta) != len(lambda) {
		return fmt.Errorf("material %q: %d beta values and %d lambda values: %w", m.name, len(beta), len(lambda), ErrDelayed)
	}
	m.beta = append([]float64(nil), beta...)
	m.lambda = append([]float64(nil), lambda...)
	return nil
}

func (m *Material) get(t *table, what string, g int) (float64, error) {
	if err := m.checkGroup(g); err != nil {
		return 0, err
	}
	if !t.set[g] {
		return 0, fmt.Errorf("material %q: %s group %d: %w", m.name, what, g, ErrUnpopulated)
	}
	return t.v[g], nil
}

// Total returns σt of group g
func (m *Material) Total(g int) (float64, error) { return m.get(&m.total, "total", g) }

// NuFission returns νσf of group g
func (m *Material) NuFission(g int) (float64, error) { return m.get(&m.nuFission, "nu-fission", g) }

// Spectrum returns χ of group g
func (m *Material) Spectrum(g int) (float64, error) { return m.get(&m.spectrum, "spectrum", g) }

// Scatter returns the order l moment from gIn to gOut
func (m *Material) Scatter(gIn, gOut, l int) (float64, error) {
	if err := m.checkGroup(gIn); err != nil {
		return 0, err
	}
	if err := m.checkGroup(gOut); err != nil {
		return 0, err
	}
	if l < 0 || l > m.order {
		return 0, fmt.Errorf("material %q: scattering order %d of %d: %w", m.name, l, m.order, ErrRange)
	}
	i := gOut*m.groups + gIn
	if !m.scatter[l].set[i] {
		return 0, fmt.Errorf("material %q: scatter %d->%d order %d: %w", m.name, gIn, gOut, l, ErrUnpopulated)
	}
	return m.scatter[l].v[i], nil
}

// Finalize validates the material and returns its read-only view. Every
// problem found is reported, combined with multierr.
func (m *Material) Finalize() (*Data, error) {
	var err error
	fail := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("material %q: "+format, append([]any{m.name}, args...)...))
	}

	for g := 0; g < m.groups; g++ {
		switch {
		case !m.total.set[g]:
			fail("total group %d: %w", g, ErrUnpopulated)
		case m.total.v[g] < 0 || math.IsNaN(m.total.v[g]):
			fail("total group %d = %g: %w", g, m.total.v[g], ErrNegative)
		}
	}

	for l, t := range m.scatter {
		for i, set := range t.set {
			gOut, gIn := i/m.groups, i%m.groups
			if !set {
				fail("scatter %d->%d order %d: %w", gIn, gOut, l, ErrUnpopulated)
			} else if l == 0 && t.v[i] < 0 {
				fail("scatter %d->%d = %g: %w", gIn, gOut, t.v[i], ErrNegative)
			}
		}
	}

	fissile := m.nuFission.any()
	if fissile {
		for g := 0; g < m.groups; g++ {
			if !m.nuFission.set[g] {
				fail("nu-fission group %d: %w", g, ErrUnpopulated)
			} else if m.nuFission.v[g] < 0 {
				fail("nu-fission group %d = %g: %w", g, m.nuFission.v[g], ErrNegative)
			}
		}
		if !m.spectrum.any() {
			fail("fissile material without spectrum: %w", ErrSpectrum)
		}
	}
	if m.spectrum.any() {
		sum := 0.0
		for g := 0; g < m.groups; g++ {
			if !m.spectrum.set[g] {
				fail("spectrum group %d: %w", g, ErrUnpopulated)
				continue
			}
			if m.spectrum.v[g] < 0 {
				fail("spectrum group %d = %g: %w", g, m.spectrum.v[g], ErrNegative)
			}
			sum += m.spectrum.v[g]
		}
		if math.Abs(sum-1) > SpectrumTolerance {
			fail("spectrum sums to %.12g: %w", sum, ErrSpectrum)
		}
	}

	for g := 0; g < m.groups; g++ {
		if m.speed.set[g] && !(m.speed.v[g] > 0) {
			fail("speed group %d = %g: %w", g, m.speed.v[g], ErrNegative)
		}
	}

	for i := range m.beta {
		if m.beta[i] < 0 || !(m.lambda[i] > 0) {
			fail("family %d beta=%g lambda=%g: %w", i, m.beta[i], m.lambda[i], ErrDelayed)
		}
	}

	if err != nil {
		return nil, err
	}
	return newData(m, fissile), nil
}
