package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskrun/riskrun/internal/document"
	"github.com/riskrun/riskrun/internal/engine"
	"github.com/riskrun/riskrun/internal/plan"
)

func sampleResult() *engine.SimulationResult {
	return &engine.SimulationResult{
		Success: true,
		Metrics: engine.Metrics{
			EAL: 2266.5, VaR95: 5200, VaR99: 8100, VaR999: 12500,
			Min: 0, Max: 15000, Median: 1900, StdDev: 1800,
		},
		Distribution: engine.Distribution{
			Bins:        []float64{0, 5000, 10000, 15000},
			Frequencies: []int{70, 25, 5},
		},
		Metadata: engine.Metadata{
			RunID: "run-1", Runs: 10000, Seed: 42, Currency: "USD", Scenario: "Ransomware",
		},
	}
}

func TestWriteResultPlainText(t *testing.T) {
	var buf bytes.Buffer
	WriteResult(&buf, sampleResult())
	out := buf.String()

	assert.Contains(t, out, "Simulation: Ransomware")
	assert.Contains(t, out, "Expected Annual Loss")
	assert.Contains(t, out, "$2,267") // rounded, thousands separator, symbol
	assert.Contains(t, out, "VaR 99.9%")
	assert.NotContains(t, out, "\033[", "no ANSI codes for non-terminal writers")
}

func TestWriteResultFailure(t *testing.T) {
	r := sampleResult()
	r.Success = false
	r.Errors = []string{"scenario \"bad\": unsupported severity model \"pareto\""}

	var buf bytes.Buffer
	WriteResult(&buf, r)
	assert.Contains(t, buf.String(), "FAILED")
	assert.Contains(t, buf.String(), "pareto")
}

func TestWritePlanWithFindings(t *testing.T) {
	rep := &plan.Report{
		OK: true,
		Warnings: []document.Issue{
			{Level: document.LevelWarning, Path: "portfolio.scenarios[0]", Message: "large cardinality"},
		},
		Plan: &plan.ExecutionPlan{
			PortfolioName:   "Acme",
			SemanticsMethod: "sum",
			Scenarios: []plan.ResolvedScenario{{
				ID:              "ransomware",
				Cardinality:     15,
				AppliesToAssets: []string{"Laptops", "Servers"},
				Controls: []plan.ResolvedScenarioControl{{
					ID: "ctl.edr", CombinedEffectiveness: 0.3, CombinedCoverage: 0.5,
					CombinedReliability: 0.9, Affects: "frequency",
				}},
			}},
		},
	}

	var buf bytes.Buffer
	WritePlan(&buf, rep)
	out := buf.String()

	assert.Contains(t, out, "WARNING")
	assert.Contains(t, out, "Plan: Acme")
	assert.Contains(t, out, "cardinality=15")
	assert.Contains(t, out, "ctl.edr")
}

func TestWritePlanFailure(t *testing.T) {
	rep := &plan.Report{
		Errors: []document.Issue{
			{Level: document.LevelError, Path: "portfolio.controls", Message: "unknown control"},
		},
	}
	var buf bytes.Buffer
	WritePlan(&buf, rep)
	assert.Contains(t, buf.String(), "planning failed")
}

func TestWriteJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult()))

	var decoded engine.SimulationResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2266.5, decoded.Metrics.EAL)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.50", formatAmount(12.5))
	assert.Equal(t, "1,234", formatAmount(1234.4))
	assert.Equal(t, "12,345,678", formatAmount(12345678))
	assert.Equal(t, "-1,234", formatAmount(-1234))
}
