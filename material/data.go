package material

import (
	"fmt"
	"math"
)

// Data is the finalized, read-only view of a material
type Data struct {
	name   string
	groups int
	order  int

	total      []float64
	scatter    [][]float64 // [order][gOut*groups+gIn]
	scatterOut []float64
	nuFission  []float64
	spectrum   []float64
	speed      []float64
	speedSet   bool

	beta, lambda []float64
	betaEff      float64
	fissile      bool
}

func newData(m *Material, fissile bool) *Data {
	d := &Data{
		name:       m.name,
		groups:     m.groups,
		order:      m.order,
		total:      append([]float64(nil), m.total.v...),
		scatter:    make([][]float64, len(m.scatter)),
		scatterOut: make([]float64, m.groups),
		nuFission:  append([]float64(nil), m.nuFission.v...),
		spectrum:   append([]float64(nil), m.spectrum.v...),
		speed:      append([]float64(nil), m.speed.v...),
		speedSet:   m.speed.all(),
		beta:       append([]float64(nil), m.beta...),
		lambda:     append([]float64(nil), m.lambda...),
		fissile:    fissile,
	}
	for l, t := range m.scatter {
		d.scatter[l] = append([]float64(nil), t.v...)
	}
	for gIn := 0; gIn < d.groups; gIn++ {
		for gOut := 0; gOut < d.groups; gOut++ {
			d.scatterOut[gIn] += d.scatter[0][gOut*d.groups+gIn]
		}
	}
	for _, b := range d.beta {
		d.betaEff += b
	}
	return d
}

func (d *Data) Name() string   { return d.name }
func (d *Data) NumGroups() int { return d.groups }
func (d *Data) Order() int     { return d.order }

// Total returns σt of group g
func (d *Data) Total(g int) float64 { return d.total[g] }

// Scatter returns the order l moment of scattering from gIn to gOut
func (d *Data) Scatter(l, gOut, gIn int) float64 {
	return d.scatter[l][gOut*d.groups+gIn]
}

// ScatterOut returns the order 0 scattering out of group g into all groups
func (d *Data) ScatterOut(g int) float64 { return d.scatterOut[g] }

// NuFission returns νσf of group g
func (d *Data) NuFission(g int) float64 { return d.nuFission[g] }

// Spectrum returns χ of group g
func (d *Data) Spectrum(g int) float64 { return d.spectrum[g] }

// Speed returns the speed of group g
func (d *Data) Speed(g int) (float64, error) {
	if !d.speedSet {
		return 0, fmt.Errorf("material %q: speed group %d: %w", d.name, g, ErrUnpopulated)
	}
	return d.speed[g], nil
}

// HasSpeed reports whether every group speed is set
func (d *Data) HasSpeed() bool { return d.speedSet }

// Scatters reports whether any scattering moment is nonzero
func (d *Data) Scatters() bool {
	for _, t := range d.scatter {
		for _, v := range t {
			if v != 0 {
				return true
			}
		}
	}
	return false
}

// Fissile reports whether νσf was supplied and is nonzero somewhere
func (d *Data) Fissile() bool {
	if !d.fissile {
		return false
	}
	for _, v := range d.nuFission {
		if v > 0 {
			return true
		}
	}
	return false
}

// Delayed returns copies of the precursor family fractions and decay constants
func (d *Data) Delayed() (beta, lambda []float64) {
	return append([]float64(nil), d.beta...), append([]float64(nil), d.lambda...)
}

// NumFamilies is the number of delayed neutron precursor families
func (d *Data) NumFamilies() int { return len(d.beta) }

// BetaEff is the total delayed neutron fraction
func (d *Data) BetaEff() float64 { return d.betaEff }

func (d *Data) String() string {
	speed := "unset"
	if d.speedSet {
		speed = fmt.Sprintf("%v", d.speed)
		if math.IsInf(d.speed[0], 1) {
			speed = "infinite"
		}
	}
	return fmt.Sprintf("Material %q: G=%d L=%d fissile=%t families=%d speed=%s",
		d.name, d.groups, d.order, d.Fissile(), len(d.beta), speed)
}
