package gonudg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vandermonde2D initializes the 2D Vandermonde Matrix using mat.Dense
func Vandermonde2D(N int, R, S []float64) *mat.Dense {
	Np := (N + 1) * (N + 2) / 2
	Nr := len(R)

	V2D := mat.NewDense(Nr, Np, nil)

	sk := 0
	for i := 0; i <= N; i++ {
		for j := 0; j <= (N - i); j++ {
			P := Simplex2DP(R, S, i, j)
			for row := 0; row < Nr; row++ {
				V2D.Set(row, sk, P[row])
			}
			sk++
		}
	}
	return V2D
}

// GradVandermonde2D returns the gradients of the modal basis at (R, S),
// V2Dr = dV/dr and V2Ds = dV/ds
func GradVandermonde2D(N int, R, S []float64) (V2Dr, V2Ds *mat.Dense) {
	Np := (N + 1) * (N + 2) / 2
	Nr := len(R)

	V2Dr = mat.NewDense(Nr, Np, nil)
	V2Ds = mat.NewDense(Nr, Np, nil)

	sk := 0
	for i := 0; i <= N; i++ {
		for j := 0; j <= (N - i); j++ {
			dr, ds := GradSimplex2DP(R, S, i, j)
			for row := 0; row < Nr; row++ {
				V2Dr.Set(row, sk, dr[row])
				V2Ds.Set(row, sk, ds[row])
			}
			sk++
		}
	}
	return
}

// Simplex2DP evaluates 2D orthonormal polynomial on simplex at (R,
// S) of order (i,j)
func Simplex2DP(R, S []float64, i, j int) []float64 {
	a, b := RStoAB(R, S)

	Np := len(R)
	h1 := JacobiP(a, 0, 0, i)
	h2 := JacobiP(b, float64(2*i+1), 0, j)

	P := make([]float64, Np)
	for ii := range h1 {
		tv1 := math.Sqrt2 * h1[ii] * h2[ii]
		tv2 := 1.0
		if i > 0 {
			tv2 = pow(1-b[ii], i)
		}
		P[ii] = tv1 * tv2
	}
	return P
}

// GradSimplex2DP evaluates the (r,s) derivatives of the orthonormal simplex
// polynomial of order (id,jd) at (R, S)
func GradSimplex2DP(R, S []float64, id, jd int) (dmodedr, dmodeds []float64) {
	a, b := RStoAB(R, S)

	fa := JacobiP(a, 0, 0, id)
	dfa := GradJacobiP(a, 0, 0, id)
	gb := JacobiP(b, float64(2*id+1), 0, jd)
	dgb := GradJacobiP(b, float64(2*id+1), 0, jd)

	Np := len(R)
	dmodedr = make([]float64, Np)
	dmodeds = make([]float64, Np)
	scale := math.Pow(2, float64(id)+0.5)
	for n := 0; n < Np; n++ {
		hb := 0.5 * (1 - b[n])
		// r derivative
		dr := dfa[n] * gb[n]
		if id > 0 {
			dr *= pow(hb, id-1)
		}
		// s derivative
		ds := dfa[n] * (gb[n] * (0.5 * (1 + a[n])))
		if id > 0 {
			ds *= pow(hb, id-1)
		}
		tmp := dgb[n] * pow(hb, id)
		if id > 0 {
			tmp -= 0.5 * float64(id) * gb[n] * pow(hb, id-1)
		}
		ds += fa[n] * tmp

		dmodedr[n] = dr * scale
		dmodeds[n] = ds * scale
	}
	return
}

// RStoAB converts from (r,s) to (a,b) coordinates
func RStoAB(R, S []float64) (a, b []float64) {
	Np := len(R)
	a = make([]float64, Np)
	b = make([]float64, Np)

	for n := 0; n < Np; n++ {
		if S[n] != 1 {
			a[n] = 2*(1+R[n])/(1-S[n]) - 1
		} else {
			a[n] = -1
		}
		b[n] = S[n]
	}
	return
}

// pow computes x^n for integer n
func pow(x float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= x
	}
	return result
}
