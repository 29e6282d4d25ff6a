package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meanOfCounts(counts []int) float64 {
	sum := 0
	for _, c := range counts {
		sum += c
	}
	return float64(sum) / float64(len(counts))
}

func varianceOfCounts(counts []int) float64 {
	m := meanOfCounts(counts)
	var ss float64
	for _, c := range counts {
		d := float64(c) - m
		ss += d * d
	}
	return ss / float64(len(counts))
}

func TestPoissonCountsRecoverMean(t *testing.T) {
	counts, err := SampleCounts(FreqPoisson, FrequencyParams{Lambda: 2.0}, 20000, 1, nil, nil, NewSource(42))
	require.NoError(t, err)
	require.Len(t, counts, 20000)

	assert.InDelta(t, 2.0, meanOfCounts(counts), 0.1)
}

func TestPoissonCardinalityScaling(t *testing.T) {
	counts, err := SampleCounts(FreqPoisson, FrequencyParams{Lambda: 0.2}, 20000, 15, nil, nil, NewSource(42))
	require.NoError(t, err)

	// 0.2 events per unit across 15 units.
	assert.InDelta(t, 3.0, meanOfCounts(counts), 0.15)
}

func TestPoissonZeroLambda(t *testing.T) {
	counts, err := SampleCounts(FreqPoisson, FrequencyParams{Lambda: 0}, 100, 1, nil, nil, NewSource(1))
	require.NoError(t, err)
	for _, c := range counts {
		assert.Zero(t, c)
	}
}

func TestPoissonRateMultiplier(t *testing.T) {
	counts, err := SampleCounts(FreqPoisson, FrequencyParams{Lambda: 4.0}, 20000, 1, []float64{0.5}, nil, NewSource(9))
	require.NoError(t, err)

	assert.InDelta(t, 2.0, meanOfCounts(counts), 0.1)
}

func TestPoissonMultiplierLengthMismatch(t *testing.T) {
	_, err := SampleCounts(FreqPoisson, FrequencyParams{Lambda: 1.0}, 100, 1, []float64{0.5, 0.5, 0.5}, nil, NewSource(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate multiplier")
}

func TestPoissonCoupledByUniforms(t *testing.T) {
	// Median uniforms land on the distribution median every trial.
	uniforms := make([]float64, 1000)
	for i := range uniforms {
		uniforms[i] = 0.5
	}
	counts, err := SampleCounts(FreqPoisson, FrequencyParams{Lambda: 2.0}, 1000, 1, nil, uniforms, NewSource(1))
	require.NoError(t, err)
	for _, c := range counts {
		assert.Equal(t, counts[0], c)
	}
	assert.Equal(t, 2, counts[0])
}

func TestGammaCountsRecoverMean(t *testing.T) {
	// Gamma(shape=4, scale=0.5) has mean 2.
	counts, err := SampleCounts(FreqGamma, FrequencyParams{Shape: 4.0, Scale: 0.5}, 20000, 1, nil, nil, NewSource(42))
	require.NoError(t, err)

	assert.InDelta(t, 2.0, meanOfCounts(counts), 0.1)
}

func TestGammaRejectsDegenerateParams(t *testing.T) {
	_, err := SampleCounts(FreqGamma, FrequencyParams{Shape: 0, Scale: 0.5}, 100, 1, nil, nil, NewSource(1))
	require.Error(t, err)

	_, err = SampleCounts(FreqGamma, FrequencyParams{Shape: 2.0, Scale: -1}, 100, 1, nil, nil, NewSource(1))
	require.Error(t, err)
}

func TestHierarchicalOverdispersion(t *testing.T) {
	// Gamma(2, 1.5) latent rate: E[Λ]=3, Var(Λ)=4.5, so the marginal count
	// variance E[Λ]+Var(Λ)=7.5 exceeds the Poisson variance at the same mean.
	p := FrequencyParams{Alpha: 2.0, Beta: 1.5}
	counts, err := SampleCounts(FreqHierarchical, p, 40000, 1, nil, nil, NewSource(42))
	require.NoError(t, err)

	assert.InDelta(t, 3.0, meanOfCounts(counts), 0.15)
	assert.InDelta(t, 7.5, varianceOfCounts(counts), 0.8)
}

func TestHierarchicalDefaultsApply(t *testing.T) {
	// Unset alpha/beta fall back to (1.5, 1.5): mean 2.25.
	counts, err := SampleCounts(FreqHierarchical, FrequencyParams{}, 40000, 1, nil, nil, NewSource(7))
	require.NoError(t, err)

	assert.InDelta(t, 2.25, meanOfCounts(counts), 0.15)
}

func TestHierarchicalDefaultsApplyIndependently(t *testing.T) {
	// Each parameter defaults on its own: alpha=3 with beta unset means
	// Gamma(3, 1.5), mean 4.5 — not an error.
	counts, err := SampleCounts(FreqHierarchical, FrequencyParams{Alpha: 3.0}, 40000, 1, nil, nil, NewSource(11))
	require.NoError(t, err)
	assert.InDelta(t, 4.5, meanOfCounts(counts), 0.2)

	// And the mirror case, beta=3 with alpha unset: Gamma(1.5, 3), mean 4.5.
	counts, err = SampleCounts(FreqHierarchical, FrequencyParams{Beta: 3.0}, 40000, 1, nil, nil, NewSource(12))
	require.NoError(t, err)
	assert.InDelta(t, 4.5, meanOfCounts(counts), 0.2)
}

func TestUnsupportedFrequencyModel(t *testing.T) {
	_, err := SampleCounts("negative_binomial", FrequencyParams{}, 100, 1, nil, nil, NewSource(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported frequency model")
}

func TestFrequencyDeterministic(t *testing.T) {
	a, err := SampleCounts(FreqPoisson, FrequencyParams{Lambda: 1.5}, 500, 1, nil, nil, NewSource(99))
	require.NoError(t, err)
	b, err := SampleCounts(FreqPoisson, FrequencyParams{Lambda: 1.5}, 500, 1, nil, nil, NewSource(99))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
