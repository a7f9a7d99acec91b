package gonudg

// Legendre evaluates the classical (unnormalized) Legendre polynomial P_n at x
// using Bonnet's recurrence
func Legendre(n int, x float64) float64 {
	if n == 0 {
		return 1
	}
	p0, p1 := 1.0, x
	for k := 1; k < n; k++ {
		fk := float64(k)
		p0, p1 = p1, ((2*fk+1)*x*p1-fk*p0)/(fk+1)
	}
	return p1
}

// LegendreSeries returns P_0(x) ... P_n(x)
func LegendreSeries(n int, x float64) []float64 {
	P := make([]float64, n+1)
	P[0] = 1
	if n == 0 {
		return P
	}
	P[1] = x
	for k := 1; k < n; k++ {
		fk := float64(k)
		P[k+1] = ((2*fk+1)*x*P[k] - fk*P[k-1]) / (fk + 1)
	}
	return P
}
