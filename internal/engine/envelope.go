package engine

import "time"

// EngineName identifies this engine in exported envelopes.
const EngineName = "riskrun"

// Measure is one named statistic in the engine-agnostic result envelope.
// Level carries the confidence level for quantile measures.
type Measure struct {
	Name  string   `json:"name"`
	Value float64  `json:"value"`
	Unit  string   `json:"unit"`
	Level *float64 `json:"level,omitempty"`
}

// Artifact is a named bulk payload attached to an envelope.
type Artifact struct {
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Bins        []float64 `json:"bins,omitempty"`
	Frequencies []int     `json:"frequencies,omitempty"`
	Samples     []float64 `json:"samples,omitempty"`
}

// Envelope re-expresses a SimulationResult as named measures and artifacts,
// decoupled from this engine's metric struct for downstream consumers.
type Envelope struct {
	Engine      string     `json:"engine"`
	RunID       string     `json:"run_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	Subject     string     `json:"subject,omitempty"`
	Currency    string     `json:"currency"`
	Runs        int        `json:"runs"`
	Seed        uint64     `json:"seed"`
	Measures    []Measure  `json:"measures"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
}

func level(v float64) *float64 { return &v }

// Envelope converts the result. Failed results yield an envelope with no
// measures; callers should check Success first.
func (r *SimulationResult) Envelope() *Envelope {
	env := &Envelope{
		Engine:      EngineName,
		RunID:       r.Metadata.RunID,
		GeneratedAt: time.Now().UTC(),
		Currency:    r.Metadata.Currency,
		Runs:        r.Metadata.Runs,
		Seed:        r.Metadata.Seed,
	}
	env.Subject = r.Metadata.Portfolio
	if env.Subject == "" {
		env.Subject = r.Metadata.Scenario
	}
	if !r.Success {
		return env
	}

	cur := r.Metadata.Currency
	env.Measures = []Measure{
		{Name: "loss.eal", Value: r.Metrics.EAL, Unit: cur},
		{Name: "loss.var", Value: r.Metrics.VaR95, Unit: cur, Level: level(0.95)},
		{Name: "loss.var", Value: r.Metrics.VaR99, Unit: cur, Level: level(0.99)},
		{Name: "loss.var", Value: r.Metrics.VaR999, Unit: cur, Level: level(0.999)},
		{Name: "loss.min", Value: r.Metrics.Min, Unit: cur},
		{Name: "loss.max", Value: r.Metrics.Max, Unit: cur},
		{Name: "loss.median", Value: r.Metrics.Median, Unit: cur},
		{Name: "loss.std_dev", Value: r.Metrics.StdDev, Unit: cur},
	}
	env.Artifacts = []Artifact{
		{
			Name:        "annual_loss_histogram",
			Kind:        "histogram",
			Bins:        r.Distribution.Bins,
			Frequencies: r.Distribution.Frequencies,
		},
		{
			Name:    "annual_loss_samples",
			Kind:    "samples",
			Samples: r.Distribution.RawData,
		},
	}
	return env
}
