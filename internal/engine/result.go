// Package engine orchestrates Monte Carlo risk runs: it drives the samplers
// over an execution plan (or a single scenario document), aggregates
// per-scenario losses under the portfolio semantics, and summarizes the
// resulting annual loss distribution.
package engine

import (
	"time"

	"github.com/riskrun/riskrun/internal/fx"
)

// Defaults applied when Options fields are zero.
const (
	DefaultTrials   = 10000
	DefaultSeed     = 42
	DefaultRawLimit = 1000
	histogramBins   = 50
)

// Options configure one simulation run.
type Options struct {
	Trials   int
	Seed     uint64
	FX       *fx.Config
	RawLimit int // max raw samples exported; 0 means DefaultRawLimit
}

func (o Options) withDefaults() Options {
	if o.Trials <= 0 {
		o.Trials = DefaultTrials
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	o.FX = fx.Normalize(o.FX)
	if o.RawLimit <= 0 {
		o.RawLimit = DefaultRawLimit
	}
	return o
}

// Metrics summarize the simulated annual loss distribution in the output
// currency.
type Metrics struct {
	EAL    float64 `json:"eal"`
	VaR95  float64 `json:"var_95"`
	VaR99  float64 `json:"var_99"`
	VaR999 float64 `json:"var_999"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// Distribution carries the histogram (51 bin edges for 50 bins) and a
// possibly truncated raw-sample export.
type Distribution struct {
	Bins        []float64 `json:"bins"`
	Frequencies []int     `json:"frequencies"`
	RawData     []float64 `json:"raw_data"`
}

// Metadata records run provenance.
type Metadata struct {
	RunID      string    `json:"run_id"`
	Runs       int       `json:"runs"`
	Seed       uint64    `json:"seed"`
	Currency   string    `json:"currency"`
	Portfolio  string    `json:"portfolio,omitempty"`
	Scenario   string    `json:"scenario,omitempty"`
	Scenarios  int       `json:"scenarios,omitempty"`
	Method     string    `json:"method,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// SimulationResult is the engine's structured output. Failed runs carry
// Success=false and a non-empty error list; the engine never panics on bad
// model input.
type SimulationResult struct {
	Success      bool         `json:"success"`
	Metrics      Metrics      `json:"metrics"`
	Distribution Distribution `json:"distribution"`
	Metadata     Metadata     `json:"metadata"`
	Errors       []string     `json:"errors,omitempty"`
}
