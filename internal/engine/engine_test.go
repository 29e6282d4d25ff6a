package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/riskrun/riskrun/internal/document"
	"github.com/riskrun/riskrun/internal/numparse"
	"github.com/riskrun/riskrun/internal/plan"
	"github.com/riskrun/riskrun/internal/sim"
)

func npFloat(v float64) *numparse.Float {
	f := numparse.Float(v)
	return &f
}

func lognormalScenario(lambda, median, sigma float64) *document.ScenarioDoc {
	return &document.ScenarioDoc{
		Version: "0.1",
		Meta:    document.Meta{Name: "test scenario"},
		Scenario: document.Scenario{
			Frequency: document.Frequency{
				Basis:      document.BasisPerOrganization,
				Model:      sim.FreqPoisson,
				Parameters: &document.FrequencyParams{Lambda: npFloat(lambda)},
			},
			Severity: document.Severity{
				Model: sim.SevLognormal,
				Parameters: &document.SeverityParams{
					Median: npFloat(median),
					Sigma:  npFloat(sigma),
				},
			},
		},
	}
}

func singleScenarioPlan(doc *document.ScenarioDoc, cardinality int, controls []plan.ResolvedScenarioControl) *plan.ExecutionPlan {
	return &plan.ExecutionPlan{
		PortfolioName:   "test portfolio",
		SemanticsMethod: document.MethodSum,
		Scenarios: []plan.ResolvedScenario{{
			ID:          "s1",
			Cardinality: cardinality,
			Weight:      nil,
			Controls:    controls,
			Scenario:    doc,
		}},
	}
}

func TestRunScenarioExpectedAnnualLoss(t *testing.T) {
	// Poisson(2.0) × Lognormal(median=1000, σ=0.5): EAL = 2·1000·e^0.125.
	doc := lognormalScenario(2.0, 1000, 0.5)
	result := RunScenario(doc, Options{Trials: 10000, Seed: 42})

	require.True(t, result.Success, result.Errors)
	want := 2.0 * 1000.0 * 1.1331484530668263 // e^0.125
	assert.InEpsilon(t, want, result.Metrics.EAL, 0.05)
	assert.Equal(t, 10000, result.Metadata.Runs)
	assert.Equal(t, uint64(42), result.Metadata.Seed)
	assert.Equal(t, "USD", result.Metadata.Currency)
	assert.NotEmpty(t, result.Metadata.RunID)
}

func TestRunPortfolioCardinalityScalesLoss(t *testing.T) {
	// Same scenario over 15 exposure units: EAL ≈ 15 × 2266.
	doc := lognormalScenario(2.0, 1000, 0.5)
	p := singleScenarioPlan(doc, 15, nil)
	result := RunPortfolio(p, Options{Trials: 10000, Seed: 42})

	require.True(t, result.Success, result.Errors)
	assert.InEpsilon(t, 15*2266.3, result.Metrics.EAL, 0.05)
}

func TestRunPortfolioDeterministic(t *testing.T) {
	doc := lognormalScenario(1.5, 500, 0.4)
	p := singleScenarioPlan(doc, 3, nil)

	a := RunPortfolio(p, Options{Trials: 2000, Seed: 7})
	b := RunPortfolio(p, Options{Trials: 2000, Seed: 7})
	require.True(t, a.Success)
	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, a.Distribution.RawData, b.Distribution.RawData)
}

func TestRunPortfolioControlReducesFrequency(t *testing.T) {
	doc := lognormalScenario(2.0, 1000, 0.5)
	controls := []plan.ResolvedScenarioControl{{
		ID:                    "ctl.edr",
		CombinedEffectiveness: 0.5,
		CombinedCoverage:      1.0,
		CombinedReliability:   1.0,
		Affects:               "frequency",
	}}
	with := RunPortfolio(singleScenarioPlan(doc, 1, controls), Options{Trials: 10000, Seed: 42})
	without := RunPortfolio(singleScenarioPlan(doc, 1, nil), Options{Trials: 10000, Seed: 42})

	require.True(t, with.Success, with.Errors)
	require.True(t, without.Success)
	// A fully reliable 50%-effective control halves the event rate.
	assert.InEpsilon(t, without.Metrics.EAL/2, with.Metrics.EAL, 0.1)
}

func TestRunPortfolioZeroEffectControl(t *testing.T) {
	doc := lognormalScenario(2.0, 1000, 0.5)
	controls := []plan.ResolvedScenarioControl{{
		ID:                    "ctl.noop",
		CombinedEffectiveness: 0.0,
		CombinedCoverage:      1.0,
		CombinedReliability:   1.0,
		Affects:               "both",
	}}
	with := RunPortfolio(singleScenarioPlan(doc, 1, controls), Options{Trials: 5000, Seed: 42})
	without := RunPortfolio(singleScenarioPlan(doc, 1, nil), Options{Trials: 5000, Seed: 42})

	require.True(t, with.Success, with.Errors)
	assert.Equal(t, without.Metrics, with.Metrics)
}

func TestRunPortfolioUnreliableControl(t *testing.T) {
	// reliability=0 means the control is always down: no reduction at all.
	doc := lognormalScenario(2.0, 1000, 0.5)
	controls := []plan.ResolvedScenarioControl{{
		ID:                    "ctl.down",
		CombinedEffectiveness: 1.0,
		CombinedCoverage:      1.0,
		CombinedReliability:   0.0,
		Affects:               "both",
	}}
	with := RunPortfolio(singleScenarioPlan(doc, 1, controls), Options{Trials: 5000, Seed: 42})
	without := RunPortfolio(singleScenarioPlan(doc, 1, nil), Options{Trials: 5000, Seed: 42})

	require.True(t, with.Success, with.Errors)
	assert.Equal(t, without.Metrics, with.Metrics)
}

func TestControlStateStreamSeparateFromScenarioStreams(t *testing.T) {
	doc := lognormalScenario(2.0, 1000, 0.5)
	controls := []plan.ResolvedScenarioControl{{
		ID:                    "ctl.edr",
		CombinedEffectiveness: 0.5,
		CombinedCoverage:      1.0,
		CombinedReliability:   0.5,
		Affects:               "frequency",
	}}
	p := singleScenarioPlan(doc, 1, controls)
	opts := Options{Trials: 256, Seed: 42}.withDefaults()

	states, err := sampleControlStates(p, opts)
	require.NoError(t, err)
	require.Len(t, states["ctl.edr"], opts.Trials)

	// Threshold the scenario-0 uniform stream the way state sampling would.
	// If control states shared that stream, the vectors would be identical,
	// coupling availability to the scenario's own frequency/severity draws.
	rnd := rand.New(sim.NewSource(sim.ScenarioSeed(opts.Seed, 0)))
	aliased := make([]float64, opts.Trials)
	for i := range aliased {
		if rnd.Float64() <= 0.5 {
			aliased[i] = 1.0
		}
	}
	assert.NotEqual(t, aliased, states["ctl.edr"])
}

func TestRunPortfolioFailsWholesaleOnBadScenario(t *testing.T) {
	good := lognormalScenario(2.0, 1000, 0.5)
	bad := lognormalScenario(2.0, 1000, 0.5)
	bad.Scenario.Severity.Model = "pareto"

	p := &plan.ExecutionPlan{
		PortfolioName:   "mixed",
		SemanticsMethod: document.MethodSum,
		Scenarios: []plan.ResolvedScenario{
			{ID: "good", Cardinality: 1, Scenario: good},
			{ID: "bad", Cardinality: 1, Scenario: bad},
		},
	}
	result := RunPortfolio(p, Options{Trials: 1000, Seed: 1})

	require.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], `scenario "bad"`)
	assert.Empty(t, result.Distribution.RawData)
}

func TestRunPortfolioCopulaCorrelatesControlStates(t *testing.T) {
	doc := lognormalScenario(2.0, 1000, 0.5)
	controls := []plan.ResolvedScenarioControl{{
		ID:                    "ctl.edr",
		CombinedEffectiveness: 0.5,
		CombinedCoverage:      1.0,
		CombinedReliability:   0.9,
		Affects:               "frequency",
	}}
	p := singleScenarioPlan(doc, 1, controls)
	p.Copula = &plan.ResolvedCopula{
		Type:       "gaussian",
		ControlIDs: []string{"ctl.edr"},
		Matrix:     [][]float64{{1.0}},
	}
	result := RunPortfolio(p, Options{Trials: 5000, Seed: 42})
	require.True(t, result.Success, result.Errors)

	// 90% of trials see the halved rate: EAL ≈ 2266 × (1 − 0.9·0.5).
	assert.InEpsilon(t, 2266.3*0.55, result.Metrics.EAL, 0.1)
}

func TestAggregateSum(t *testing.T) {
	losses := [][]float64{
		{1, 2, 3},
		{10, 20, 30},
	}
	out, err := aggregate(document.MethodSum, losses, make([]*float64, 2), sim.NewSource(1))
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33}, out)
}

func TestAggregateMax(t *testing.T) {
	losses := [][]float64{
		{1, 25, 3},
		{10, 20, 30},
	}
	out, err := aggregate(document.MethodMax, losses, make([]*float64, 2), sim.NewSource(1))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 25, 30}, out)
}

func TestAggregateMixturePicksExactlyOne(t *testing.T) {
	losses := [][]float64{
		{1, 2, 3, 4},
		{10, 20, 30, 40},
	}
	w1, w2 := 0.5, 0.5
	out, err := aggregate(document.MethodMixture, losses, []*float64{&w1, &w2}, sim.NewSource(9))
	require.NoError(t, err)

	for i, v := range out {
		assert.True(t, v == losses[0][i] || v == losses[1][i],
			"trial %d: %v is neither scenario's loss", i, v)
	}
}

func TestAggregateMixtureWeightBias(t *testing.T) {
	trials := 10000
	a := make([]float64, trials)
	b := make([]float64, trials)
	for i := range b {
		b[i] = 1
	}
	w1, w2 := 0.9, 0.1
	out, err := aggregate(document.MethodChooseOne, [][]float64{a, b}, []*float64{&w1, &w2}, sim.NewSource(3))
	require.NoError(t, err)

	picksOfB := 0.0
	for _, v := range out {
		picksOfB += v
	}
	assert.InDelta(t, 0.1, picksOfB/float64(trials), 0.02)
}

func TestAggregateMissingWeightsFallBackToUniform(t *testing.T) {
	trials := 10000
	a := make([]float64, trials)
	b := make([]float64, trials)
	for i := range b {
		b[i] = 1
	}
	out, err := aggregate(document.MethodMixture, [][]float64{a, b}, make([]*float64, 2), sim.NewSource(3))
	require.NoError(t, err)

	picksOfB := 0.0
	for _, v := range out {
		picksOfB += v
	}
	assert.InDelta(t, 0.5, picksOfB/float64(trials), 0.02)
}

func TestAggregateUnknownMethod(t *testing.T) {
	_, err := aggregate("median", [][]float64{{1}}, make([]*float64, 1), sim.NewSource(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported aggregation method")
}

func TestComputeMetricsKnownVector(t *testing.T) {
	losses := []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}
	m := computeMetrics(losses)

	assert.InDelta(t, 45.0, m.EAL, 1e-9)
	assert.InDelta(t, 0.0, m.Min, 1e-9)
	assert.InDelta(t, 90.0, m.Max, 1e-9)
	assert.InDelta(t, 45.0, m.Median, 1e-9)
	assert.Greater(t, m.VaR99, m.VaR95)
	assert.GreaterOrEqual(t, m.VaR999, m.VaR99)
}

func TestHistogramShape(t *testing.T) {
	losses := make([]float64, 1000)
	for i := range losses {
		losses[i] = float64(i)
	}
	edges, counts := histogram(losses, histogramBins)

	require.Len(t, edges, histogramBins+1)
	require.Len(t, counts, histogramBins)
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 1000, total)
	assert.InDelta(t, 0.0, edges[0], 1e-9)
	assert.InDelta(t, 999.0, edges[histogramBins], 1e-9)
}

func TestHistogramDegenerateSample(t *testing.T) {
	edges, counts := histogram([]float64{5, 5, 5}, histogramBins)
	require.Len(t, edges, histogramBins+1)
	assert.InDelta(t, 4.5, edges[0], 1e-9)
	assert.InDelta(t, 5.5, edges[histogramBins], 1e-9)
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 3, total)
}

func TestRawDataTruncation(t *testing.T) {
	doc := lognormalScenario(2.0, 1000, 0.5)
	result := RunScenario(doc, Options{Trials: 5000, Seed: 42})

	require.True(t, result.Success)
	assert.Len(t, result.Distribution.RawData, DefaultRawLimit)
}

func TestEnvelopeMeasures(t *testing.T) {
	doc := lognormalScenario(2.0, 1000, 0.5)
	result := RunScenario(doc, Options{Trials: 2000, Seed: 42})
	require.True(t, result.Success)

	env := result.Envelope()
	assert.Equal(t, EngineName, env.Engine)
	assert.Equal(t, result.Metadata.RunID, env.RunID)
	assert.Equal(t, "test scenario", env.Subject)

	names := map[string]int{}
	for _, m := range env.Measures {
		names[m.Name]++
	}
	assert.Equal(t, 1, names["loss.eal"])
	assert.Equal(t, 3, names["loss.var"])
	require.Len(t, env.Artifacts, 2)
	assert.Equal(t, "histogram", env.Artifacts[0].Kind)
	assert.Equal(t, "samples", env.Artifacts[1].Kind)
}
