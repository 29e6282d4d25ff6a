package sim

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Frequency model names accepted by SampleCounts.
const (
	FreqPoisson      = "poisson"
	FreqGamma        = "gamma"
	FreqHierarchical = "hierarchical_gamma_poisson"
)

// FrequencyParams carries the parameters of a frequency model. Only the
// fields of the selected model are read.
type FrequencyParams struct {
	Lambda float64 // poisson
	Shape  float64 // gamma
	Scale  float64 // gamma
	Alpha  float64 // hierarchical_gamma_poisson (gamma shape)
	Beta   float64 // hierarchical_gamma_poisson (gamma scale)
}

// SampleCounts draws per-trial event counts for one scenario.
//
// cardinality scales the base rate by the exposure unit count. rateMult, when
// non-nil, is a multiplicative rate adjustment of length 1 (scalar) or
// trials; it is applied before sampling/rounding. uniforms, when non-nil,
// must have length trials and routes sampling through the model's quantile
// function so counts follow copula-coupled variates.
func SampleCounts(model string, p FrequencyParams, trials, cardinality int, rateMult, uniforms []float64, src rand.Source) ([]int, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", trials)
	}
	mult, err := expandMultiplier(rateMult, trials)
	if err != nil {
		return nil, err
	}
	if uniforms != nil && len(uniforms) != trials {
		return nil, fmt.Errorf("uniforms has length %d, want %d", len(uniforms), trials)
	}

	counts := make([]int, trials)

	switch model {
	case FreqPoisson:
		if p.Lambda <= 0 {
			return counts, nil
		}
		base := p.Lambda * float64(cardinality)
		for i := 0; i < trials; i++ {
			rate := base * mult(i)
			if rate <= 0 {
				continue
			}
			if uniforms != nil {
				counts[i] = int(poissonQuantile(uniforms[i], rate))
			} else {
				counts[i] = int(distuv.Poisson{Lambda: rate, Src: src}.Rand())
			}
		}
		return counts, nil

	case FreqGamma:
		if p.Shape <= 0 || p.Scale <= 0 {
			return nil, fmt.Errorf("gamma frequency requires positive shape and scale (got shape=%v scale=%v)", p.Shape, p.Scale)
		}
		dist := distuv.Gamma{Alpha: p.Shape, Beta: 1.0 / p.Scale, Src: src}
		for i := 0; i < trials; i++ {
			var rate float64
			if uniforms != nil {
				rate = gammaQuantile(uniforms[i], p.Shape, p.Scale)
			} else {
				rate = dist.Rand()
			}
			rate *= float64(cardinality) * mult(i)
			counts[i] = roundCount(rate)
		}
		return counts, nil

	case FreqHierarchical:
		alpha, beta := p.Alpha, p.Beta
		if alpha == 0 {
			alpha = 1.5
		}
		if beta == 0 {
			beta = 1.5
		}
		if alpha <= 0 || beta <= 0 {
			return nil, fmt.Errorf("hierarchical frequency requires positive alpha and beta (got alpha=%v beta=%v)", alpha, beta)
		}
		latent := distuv.Gamma{Alpha: alpha, Beta: 1.0 / beta, Src: src}
		for i := 0; i < trials; i++ {
			// The copula couples the latent rate, not the final count; the
			// Poisson realization stays conditionally independent.
			var lam float64
			if uniforms != nil {
				lam = gammaQuantile(uniforms[i], alpha, beta)
			} else {
				lam = latent.Rand()
			}
			lam *= float64(cardinality) * mult(i)
			if lam <= 0 {
				continue
			}
			counts[i] = int(distuv.Poisson{Lambda: lam, Src: src}.Rand())
		}
		return counts, nil

	default:
		return nil, fmt.Errorf("unsupported frequency model %q", model)
	}
}

// expandMultiplier validates a scalar-or-vector multiplier and returns an
// index accessor over it.
func expandMultiplier(m []float64, trials int) (func(int) float64, error) {
	switch {
	case m == nil:
		return func(int) float64 { return 1.0 }, nil
	case len(m) == 1:
		v := m[0]
		return func(int) float64 { return v }, nil
	case len(m) == trials:
		return func(i int) float64 { return m[i] }, nil
	default:
		return nil, fmt.Errorf("rate multiplier has length %d, want 1 or %d", len(m), trials)
	}
}

func roundCount(rate float64) int {
	k := math.Round(rate)
	if k < 0 || math.IsNaN(k) {
		return 0
	}
	return int(k)
}
