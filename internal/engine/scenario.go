package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/riskrun/riskrun/internal/document"
	"github.com/riskrun/riskrun/internal/fx"
	"github.com/riskrun/riskrun/internal/numparse"
	"github.com/riskrun/riskrun/internal/sim"
)

// trialConfig parameterizes one scenario's sampling pass inside a run.
type trialConfig struct {
	trials      int
	seed        uint64
	cardinality int
	freqMult    []float64 // nil, length 1, or length trials
	sevMult     []float64 // nil, length 1, or length trials
	uniforms    []float64 // optional copula-coupled frequency variates
	fx          *fx.Config
}

// simulateScenario produces per-trial annual losses, in the output currency,
// for one scenario. Trial i's loss is the sum of its sampled event
// magnitudes times its severity multiplier.
func simulateScenario(sc *document.Scenario, cfg trialConfig) ([]float64, error) {
	src := sim.NewSource(cfg.seed)

	freqModel, freqParams, err := frequencyParams(&sc.Frequency)
	if err != nil {
		return nil, err
	}
	counts, err := sim.SampleCounts(freqModel, freqParams, cfg.trials, cfg.cardinality, cfg.freqMult, cfg.uniforms, src)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	sevModel, sevParams, components, err := severityParams(&sc.Severity)
	if err != nil {
		return nil, err
	}
	magnitudes, err := sim.SampleLosses(sevModel, sevParams, components, total, cfg.fx, src)
	if err != nil {
		return nil, err
	}

	sevAt, err := multiplierAccessor(cfg.sevMult, cfg.trials)
	if err != nil {
		return nil, err
	}

	outFactor := cfg.fx.OutputFactor()
	out := make([]float64, cfg.trials)
	next := 0
	for i, c := range counts {
		var sum float64
		for k := 0; k < c; k++ {
			sum += magnitudes[next]
			next++
		}
		out[i] = sum * sevAt(i) * outFactor
	}
	return out, nil
}

func multiplierAccessor(m []float64, trials int) (func(int) float64, error) {
	switch {
	case m == nil:
		return func(int) float64 { return 1.0 }, nil
	case len(m) == 1:
		v := m[0]
		return func(int) float64 { return v }, nil
	case len(m) == trials:
		return func(i int) float64 { return m[i] }, nil
	default:
		return nil, fmt.Errorf("severity multiplier has length %d, want 1 or %d", len(m), trials)
	}
}

// frequencyParams maps a scenario's frequency block onto the sampler's
// parameter struct.
func frequencyParams(f *document.Frequency) (string, sim.FrequencyParams, error) {
	var p sim.FrequencyParams
	if f.Parameters != nil {
		p.Lambda = floatOf(f.Parameters.Lambda)
		p.Shape = floatOf(f.Parameters.Shape)
		p.Scale = floatOf(f.Parameters.Scale)
		p.Alpha = floatOf(f.Parameters.AlphaBase)
		p.Beta = floatOf(f.Parameters.BetaBase)
	}
	switch f.Model {
	case sim.FreqPoisson, sim.FreqGamma, sim.FreqHierarchical:
		return f.Model, p, nil
	default:
		return "", p, fmt.Errorf("unsupported frequency model %q", f.Model)
	}
}

// severityParams maps a scenario's severity block onto the sampler's
// parameter structs.
func severityParams(s *document.Severity) (string, sim.SeverityParams, []sim.MixtureComponent, error) {
	p := convertSeverityParams(s.Parameters)
	switch s.Model {
	case sim.SevLognormal, sim.SevGamma:
		return s.Model, p, nil, nil
	case sim.SevMixture:
		components := make([]sim.MixtureComponent, 0, len(s.Components))
		for _, c := range s.Components {
			sc := sim.MixtureComponent{}
			if c.Lognormal != nil {
				ln := convertSeverityParams(c.Lognormal)
				sc.Lognormal = &ln
			}
			if c.Gamma != nil {
				g := convertSeverityParams(c.Gamma)
				sc.Gamma = &g
			}
			components = append(components, sc)
		}
		return s.Model, p, components, nil
	default:
		return "", p, nil, fmt.Errorf("unsupported severity model %q", s.Model)
	}
}

func convertSeverityParams(sp *document.SeverityParams) sim.SeverityParams {
	if sp == nil {
		return sim.SeverityParams{}
	}
	out := sim.SeverityParams{
		Median:   floatPtrOf(sp.Median),
		Mu:       floatPtrOf(sp.Mu),
		Sigma:    floatPtrOf(sp.Sigma),
		Shape:    floatPtrOf(sp.Shape),
		Scale:    floatPtrOf(sp.Scale),
		Currency: sp.Currency,
	}
	if sp.SingleLosses != nil {
		losses := make([]float64, len(sp.SingleLosses))
		for i, v := range sp.SingleLosses {
			losses[i] = float64(v)
		}
		out.SingleLosses = losses
	}
	return out
}

func floatOf(f *numparse.Float) float64 {
	if f == nil {
		return 0
	}
	return float64(*f)
}

func floatPtrOf(f *numparse.Float) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// RunScenario simulates a standalone scenario document with cardinality 1
// and no control effects. It backs the single-document CLI path and the
// HTTP simulate endpoint.
func RunScenario(doc *document.ScenarioDoc, opts Options) *SimulationResult {
	opts = opts.withDefaults()
	started := time.Now()

	result := &SimulationResult{
		Metadata: Metadata{
			RunID:     uuid.NewString(),
			Runs:      opts.Trials,
			Seed:      opts.Seed,
			Currency:  fx.CurrencyCode(opts.FX.OutputCurrency),
			Scenario:  doc.Meta.Name,
			StartedAt: started,
		},
	}

	losses, err := simulateScenario(&doc.Scenario, trialConfig{
		trials:      opts.Trials,
		seed:        opts.Seed,
		cardinality: 1,
		fx:          opts.FX,
	})
	result.Metadata.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		log.Error().Err(err).Str("scenario", doc.Meta.Name).Msg("scenario simulation failed")
		return result
	}

	result.Success = true
	result.Metrics = computeMetrics(losses)
	result.Distribution = buildDistribution(losses, opts.RawLimit)
	log.Info().
		Str("scenario", doc.Meta.Name).
		Int("trials", opts.Trials).
		Uint64("seed", opts.Seed).
		Float64("eal", result.Metrics.EAL).
		Int64("duration_ms", result.Metadata.DurationMS).
		Msg("scenario simulation complete")
	return result
}
