package sim

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// choleskyJitter is added to the diagonal when the factorization of a
// numerically non-PSD correlation matrix fails; one retry only.
const choleskyJitter = 1e-6

// GaussianCopulaUniforms draws n rows of d correlated uniform variates with
// the dependence prescribed by the d×d correlation matrix corr (NORTA
// construction: correlated standard normals pushed through Φ).
//
// Row i holds the d coupled uniforms of trial i.
func GaussianCopulaUniforms(corr [][]float64, n int, src rand.Source) (*mat.Dense, error) {
	d := len(corr)
	if d == 0 {
		return nil, fmt.Errorf("correlation matrix is empty")
	}
	sym := mat.NewSymDense(d, nil)
	for i, row := range corr {
		if len(row) != d {
			return nil, fmt.Errorf("correlation matrix row %d has length %d, want %d", i, len(row), d)
		}
		for j := i; j < d; j++ {
			sym.SetSym(i, j, row[j])
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		for i := 0; i < d; i++ {
			sym.SetSym(i, i, sym.At(i, i)+choleskyJitter)
		}
		if !chol.Factorize(sym) {
			return nil, fmt.Errorf("correlation matrix is not positive definite (cholesky failed after diagonal jitter)")
		}
	}
	var lower mat.TriDense
	chol.LTo(&lower)

	rnd := rand.New(src)
	z := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			z.Set(i, j, rnd.NormFloat64())
		}
	}

	// Z' = Z·Lᵗ gives rows with covariance LLᵗ = Σ.
	var correlated mat.Dense
	correlated.Mul(z, lower.T())

	u := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			u.Set(i, j, distuv.UnitNormal.CDF(correlated.At(i, j)))
		}
	}
	return u, nil
}

// Column copies column j of a copula draw into a fresh slice.
func Column(u *mat.Dense, j int) []float64 {
	n, _ := u.Dims()
	out := make([]float64, n)
	mat.Col(out, j, u)
	return out
}
