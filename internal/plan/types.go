// Package plan resolves a portfolio document and its referenced scenario and
// control documents into an executable plan. Planning is randomness-free and
// collects every error and warning instead of stopping at the first.
package plan

import (
	"github.com/riskrun/riskrun/internal/document"
)

// ResolvedScenarioControl is the fully-resolved posture of one control as it
// applies to one scenario: the raw inventory values, the scenario-scoped
// factors, and the combined values the engine applies at run time.
type ResolvedScenarioControl struct {
	ID string `json:"id"`

	InventoryEffectiveness *float64 `json:"inventory_effectiveness,omitempty"`
	InventoryCoverage      *float64 `json:"inventory_coverage,omitempty"`
	InventoryCoverageBasis string   `json:"inventory_coverage_basis,omitempty"`
	InventoryReliability   *float64 `json:"inventory_reliability,omitempty"`

	EffectivenessFactor *float64 `json:"effectiveness_factor,omitempty"`
	CoverageFactor      *float64 `json:"coverage_factor,omitempty"`
	CoverageBasis       string   `json:"coverage_basis,omitempty"`
	PotencyFactor       *float64 `json:"potency_factor,omitempty"`

	// Combined values, each clamped to [0,1].
	CombinedEffectiveness float64 `json:"combined_effectiveness"`
	CombinedCoverage      float64 `json:"combined_coverage"`
	CombinedReliability   float64 `json:"combined_reliability"`

	// Affects routes the reduction: "frequency", "severity", or "both".
	Affects string `json:"affects"`
}

// ResolvedScenario binds one scenario reference to concrete assets, an
// exposure cardinality, and resolved controls. The parsed scenario document
// is embedded so the engine never touches the filesystem.
type ResolvedScenario struct {
	ID              string                    `json:"id"`
	Path            string                    `json:"path"`
	ResolvedPath    string                    `json:"resolved_path"`
	ScenarioName    string                    `json:"scenario_name,omitempty"`
	Weight          *float64                  `json:"weight,omitempty"`
	AppliesToAssets []string                  `json:"applies_to_assets"`
	Cardinality     int                       `json:"cardinality"`
	Controls        []ResolvedScenarioControl `json:"controls,omitempty"`

	Scenario *document.ScenarioDoc `json:"-"`
}

// ResolvedCopula is the dependency specification after target parsing and
// matrix construction. ControlIDs preserve target order; Matrix is the
// validated correlation matrix of matching dimension.
type ResolvedCopula struct {
	Type       string      `json:"type"`
	ControlIDs []string    `json:"control_ids"`
	Matrix     [][]float64 `json:"matrix"`
}

// ExecutionPlan is the sole artifact the simulation engine consumes. It is
// produced only when planning finished with zero errors.
type ExecutionPlan struct {
	PortfolioName   string             `json:"portfolio_name"`
	SemanticsMethod string             `json:"semantics_method"`
	Assets          []document.Asset   `json:"assets"`
	Scenarios       []ResolvedScenario `json:"scenarios"`
	Copula          *ResolvedCopula    `json:"copula,omitempty"`
}

// Report is the planner's output: every error and warning encountered, plus
// the plan when no errors occurred.
type Report struct {
	OK       bool             `json:"ok"`
	Errors   []document.Issue `json:"errors"`
	Warnings []document.Issue `json:"warnings"`
	Plan     *ExecutionPlan   `json:"plan,omitempty"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
