package transient

import (
	"fmt"
	"strings"

	"github.com/notargets/DGTransport/utils"
)

// Order is the backward differentiation formula used for dX/dt
type Order uint8

const (
	BDF1 Order = iota + 1
	BDF2
)

// DefaultOrder is used when no order is configured
const DefaultOrder = BDF2

func (o Order) String() string {
	switch o {
	case BDF1:
		return "BDF1"
	case BDF2:
		return "BDF2"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

// ParseOrder converts "bdf1", "bdf2", "1" or "2"
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultOrder, nil
	case "bdf1", "1":
		return BDF1, nil
	case "bdf2", "2":
		return BDF2, nil
	}
	return 0, fmt.Errorf("%w: unknown time integration order %q", utils.ErrInput, s)
}

// Coefficients holds dX/dt ≈ (C0 Xⁿ - C1 Xⁿ⁻¹ + C2 Xⁿ⁻²)/Δt
type Coefficients struct {
	C0, C1, C2 float64
}

// CoefficientsFor returns the coefficients of a step of size dt following a
// step of size dtPrev. BDF2 uses the variable step form with ω = dt/dtPrev.
func CoefficientsFor(order Order, dt, dtPrev float64) Coefficients {
	if order != BDF2 || dtPrev <= 0 {
		return Coefficients{C0: 1, C1: 1, C2: 0}
	}
	w := dt / dtPrev
	return Coefficients{
		C0: (1 + 2*w) / (1 + w),
		C1: 1 + w,
		C2: w * w / (1 + w),
	}
}
