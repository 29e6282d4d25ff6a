package engine

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/riskrun/riskrun/internal/document"
)

// aggregate folds the (scenarios × trials) loss matrix into one per-trial
// vector under the portfolio semantics. src feeds the categorical pick for
// mixture/choose_one and is untouched otherwise.
func aggregate(method string, lossesByScenario [][]float64, weights []*float64, src rand.Source) ([]float64, error) {
	if len(lossesByScenario) == 0 {
		return nil, fmt.Errorf("no scenario losses to aggregate")
	}
	trials := len(lossesByScenario[0])
	for i, v := range lossesByScenario {
		if len(v) != trials {
			return nil, fmt.Errorf("scenario %d produced %d trials, want %d", i, len(v), trials)
		}
	}

	switch method {
	case document.MethodSum:
		out := make([]float64, trials)
		for _, v := range lossesByScenario {
			for i, loss := range v {
				out[i] += loss
			}
		}
		return out, nil

	case document.MethodMax:
		out := make([]float64, trials)
		copy(out, lossesByScenario[0])
		for _, v := range lossesByScenario[1:] {
			for i, loss := range v {
				if loss > out[i] {
					out[i] = loss
				}
			}
		}
		return out, nil

	case document.MethodMixture, document.MethodChooseOne:
		probs := normalizedWeights(weights, len(lossesByScenario))
		rnd := rand.New(src)
		out := make([]float64, trials)
		for i := range out {
			out[i] = lossesByScenario[pickCategory(probs, rnd.Float64())][i]
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported aggregation method %q", method)
	}
}

// normalizedWeights converts optional scenario weights into a probability
// vector. Missing or non-positive weight sets fall back to uniform.
func normalizedWeights(weights []*float64, n int) []float64 {
	probs := make([]float64, n)
	sum := 0.0
	valid := true
	for i, w := range weights {
		if w == nil || *w < 0 {
			valid = false
			break
		}
		probs[i] = *w
		sum += *w
	}
	if !valid || sum <= 0 {
		for i := range probs {
			probs[i] = 1.0 / float64(n)
		}
		return probs
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// pickCategory maps a uniform variate onto a category index by cumulative
// probability.
func pickCategory(probs []float64, u float64) int {
	cum := 0.0
	for i, p := range probs {
		cum += p
		if u < cum {
			return i
		}
	}
	return len(probs) - 1
}
