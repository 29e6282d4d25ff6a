package sim

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// poissonNormalApproxMean is the mean above which the Poisson quantile falls
// back to a normal approximation instead of CDF summation. The summation
// starts from exp(-mean), which underflows to zero near mean 745, so the
// cutover must sit safely below that.
const poissonNormalApproxMean = 700.0

// poissonQuantile returns the smallest k with P(X<=k) >= u for X~Poisson(mean).
func poissonQuantile(u, mean float64) float64 {
	if mean <= 0 || u <= 0 {
		return 0
	}
	if u >= 1 {
		u = 1 - 1e-16
	}
	if mean > poissonNormalApproxMean {
		// Normal approximation with continuity correction. Relative error is
		// negligible at these means and avoids summing millions of pmf terms.
		z := distuv.UnitNormal.Quantile(u)
		k := math.Floor(mean + z*math.Sqrt(mean) + 0.5)
		if k < 0 {
			k = 0
		}
		return k
	}

	p := math.Exp(-mean)
	cdf := p
	k := 0.0
	limit := mean + 100*math.Sqrt(mean) + 100
	for cdf < u && k < limit {
		k++
		p *= mean / k
		cdf += p
	}
	return k
}

// gammaQuantile inverts the Gamma(shape, scale) CDF by bracketed bisection.
// gonum's Gamma distribution exposes CDF but no closed-form quantile.
func gammaQuantile(u, shape, scale float64) float64 {
	if u <= 0 {
		return 0
	}
	if u >= 1 {
		u = 1 - 1e-16
	}
	dist := distuv.Gamma{Alpha: shape, Beta: 1.0 / scale}

	lo := 0.0
	hi := shape * scale
	if hi <= 0 {
		hi = 1.0
	}
	for i := 0; dist.CDF(hi) < u && i < 200; i++ {
		hi *= 2
	}
	for i := 0; i < 200 && hi-lo > 1e-12*(1+hi); i++ {
		mid := 0.5 * (lo + hi)
		if dist.CDF(mid) < u {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}
