package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"github.com/riskrun/riskrun/internal/fx"
	"github.com/riskrun/riskrun/internal/plan"
	"github.com/riskrun/riskrun/internal/sim"
)

// controlStates maps a control id to its per-trial availability (1.0 up,
// 0.0 down). States are sampled once per run and shared by every scenario
// that references the control.
type controlStates map[string][]float64

// RunPortfolio simulates an execution plan. Any scenario failure fails the
// whole run; there is no partial-result mode.
func RunPortfolio(p *plan.ExecutionPlan, opts Options) *SimulationResult {
	opts = opts.withDefaults()
	started := time.Now()

	result := &SimulationResult{
		Metadata: Metadata{
			RunID:     uuid.NewString(),
			Runs:      opts.Trials,
			Seed:      opts.Seed,
			Currency:  fx.CurrencyCode(opts.FX.OutputCurrency),
			Portfolio: p.PortfolioName,
			Scenarios: len(p.Scenarios),
			Method:    p.SemanticsMethod,
			StartedAt: started,
		},
	}
	fail := func(err error) *SimulationResult {
		result.Metadata.DurationMS = time.Since(started).Milliseconds()
		result.Errors = append(result.Errors, err.Error())
		log.Error().Err(err).Str("portfolio", p.PortfolioName).Msg("portfolio simulation failed")
		return result
	}

	states, err := sampleControlStates(p, opts)
	if err != nil {
		return fail(err)
	}

	lossesByScenario := make([][]float64, len(p.Scenarios))
	weights := make([]*float64, len(p.Scenarios))
	for idx, rs := range p.Scenarios {
		if rs.Scenario == nil {
			return fail(fmt.Errorf("scenario %q has no embedded document; re-plan before running", rs.ID))
		}
		freqMult, sevMult := controlMultipliers(rs, states, opts.Trials)
		losses, err := simulateScenario(&rs.Scenario.Scenario, trialConfig{
			trials:      opts.Trials,
			seed:        sim.ScenarioSeed(opts.Seed, idx),
			cardinality: rs.Cardinality,
			freqMult:    freqMult,
			sevMult:     sevMult,
			fx:          opts.FX,
		})
		if err != nil {
			return fail(fmt.Errorf("scenario %q: %w", rs.ID, err))
		}
		lossesByScenario[idx] = losses
		weights[idx] = rs.Weight
	}

	aggregated, err := aggregate(p.SemanticsMethod, lossesByScenario, weights,
		sim.NewSource(sim.ScenarioSeed(opts.Seed, len(p.Scenarios))))
	if err != nil {
		return fail(err)
	}

	result.Success = true
	result.Metrics = computeMetrics(aggregated)
	result.Distribution = buildDistribution(aggregated, opts.RawLimit)
	result.Metadata.DurationMS = time.Since(started).Milliseconds()
	log.Info().
		Str("portfolio", p.PortfolioName).
		Str("method", p.SemanticsMethod).
		Int("scenarios", len(p.Scenarios)).
		Int("trials", opts.Trials).
		Uint64("seed", opts.Seed).
		Float64("eal", result.Metrics.EAL).
		Int64("duration_ms", result.Metadata.DurationMS).
		Msg("portfolio simulation complete")
	return result
}

// sampleControlStates draws per-trial availability for every control id in
// the plan. Controls named by the copula draw jointly correlated uniforms;
// the rest draw independently. The first resolved occurrence of a control id
// fixes its reliability for the whole run.
func sampleControlStates(p *plan.ExecutionPlan, opts Options) (controlStates, error) {
	reliability := map[string]float64{}
	order := []string{}
	for _, rs := range p.Scenarios {
		for _, rc := range rs.Controls {
			if _, seen := reliability[rc.ID]; !seen {
				reliability[rc.ID] = rc.CombinedReliability
				order = append(order, rc.ID)
			}
		}
	}
	if len(order) == 0 {
		return controlStates{}, nil
	}

	states := make(controlStates, len(order))
	// Control states draw from their own stream, offset past every scenario
	// stream and the aggregation stream, so consuming state uniforms can
	// never shift a scenario's frequency or severity draws.
	src := sim.NewSource(sim.ScenarioSeed(opts.Seed, len(p.Scenarios)+1))
	inCopula := map[string]bool{}

	if p.Copula != nil {
		u, err := sim.GaussianCopulaUniforms(p.Copula.Matrix, opts.Trials, src)
		if err != nil {
			return nil, fmt.Errorf("dependency copula: %w", err)
		}
		for j, id := range p.Copula.ControlIDs {
			inCopula[id] = true
			rel, known := reliability[id]
			if !known {
				// Copula names a control no scenario uses; its column is
				// drawn but discarded.
				continue
			}
			col := sim.Column(u, j)
			state := make([]float64, opts.Trials)
			for i, v := range col {
				if v <= rel {
					state[i] = 1.0
				}
			}
			states[id] = state
		}
	}

	rnd := rand.New(src)
	for _, id := range order {
		if inCopula[id] {
			continue
		}
		rel := reliability[id]
		state := make([]float64, opts.Trials)
		for i := range state {
			if rel >= 1.0 || rnd.Float64() <= rel {
				state[i] = 1.0
			}
		}
		states[id] = state
	}
	return states, nil
}

// controlMultipliers turns a scenario's resolved controls into per-trial
// frequency and severity multipliers. Each control contributes a factor
// (1 - effectiveness×coverage×state); a control affecting both dimensions
// applies the factor to each independently.
func controlMultipliers(rs plan.ResolvedScenario, states controlStates, trials int) (freqMult, sevMult []float64) {
	for _, rc := range rs.Controls {
		reduction := rc.CombinedEffectiveness * rc.CombinedCoverage
		if reduction <= 0 {
			continue
		}
		state, ok := states[rc.ID]
		if !ok {
			continue
		}
		affectsFreq := rc.Affects == "frequency" || rc.Affects == "both"
		affectsSev := rc.Affects == "severity" || rc.Affects == "both"
		if affectsFreq && freqMult == nil {
			freqMult = onesVector(trials)
		}
		if affectsSev && sevMult == nil {
			sevMult = onesVector(trials)
		}
		for i := 0; i < trials; i++ {
			factor := 1.0 - reduction*state[i]
			if affectsFreq {
				freqMult[i] *= factor
			}
			if affectsSev {
				sevMult[i] *= factor
			}
		}
	}
	return freqMult, sevMult
}

func onesVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1.0
	}
	return v
}
