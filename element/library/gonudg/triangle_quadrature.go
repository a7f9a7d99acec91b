package gonudg

// Dunavant degree 4 rule, barycentric orbits (a, a, 1-2a) with weight w.
// Weights are normalized to unit area.
var dunavant4 = [2][2]float64{
	{0.445948490915965, 0.223381589678011},
	{0.091576213509771, 0.109951743655322},
}

// TriangleQuadrature6 returns the six point, degree 4 quadrature rule on the
// reference triangle (-1,-1), (1,-1), (-1,1). Weights sum to the reference
// area of 2.
func TriangleQuadrature6() (R, S, W []float64) {
	R = make([]float64, 0, 6)
	S = make([]float64, 0, 6)
	W = make([]float64, 0, 6)
	for _, orbit := range dunavant4 {
		a, w := orbit[0], orbit[1]
		b := 1 - 2*a
		for _, L := range [3][3]float64{{a, a, b}, {b, a, a}, {a, b, a}} {
			r, s := BarycentricToRS(L[0], L[1], L[2])
			R = append(R, r)
			S = append(S, s)
			W = append(W, 2*w)
		}
	}
	return
}

// BarycentricToRS maps barycentric coordinates on vertices v0=(-1,-1),
// v1=(1,-1), v2=(-1,1) to reference coordinates
func BarycentricToRS(L0, L1, L2 float64) (r, s float64) {
	r = -L0 + L1 - L2
	s = -L0 - L1 + L2
	return
}
