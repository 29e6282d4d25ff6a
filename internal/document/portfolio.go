package document

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/riskrun/riskrun/internal/numparse"
)

// Aggregation methods supported by portfolio semantics.
const (
	MethodSum       = "sum"
	MethodMax       = "max"
	MethodMixture   = "mixture"
	MethodChooseOne = "choose_one"
)

// CriticalityIndex is free-form asset criticality metadata. Only the type is
// inspected (for heterogeneity warnings); the rest is carried through.
type CriticalityIndex struct {
	Type    string             `yaml:"type,omitempty"`
	Inputs  map[string]string  `yaml:"inputs,omitempty"`
	Weights map[string]float64 `yaml:"weights,omitempty"`
}

// Asset is a unit-of-exposure group inside a portfolio.
type Asset struct {
	Name             string            `yaml:"name" validate:"required"`
	Cardinality      numparse.Int      `yaml:"cardinality" validate:"gte=1"`
	Tags             []string          `yaml:"tags,omitempty"`
	CriticalityIndex *CriticalityIndex `yaml:"criticality_index,omitempty"`
}

// PortfolioControl is an inventory entry: the organization's posture for one
// control, keyed by canonical id.
type PortfolioControl struct {
	ID                          string            `yaml:"id" validate:"required"`
	ImplementationEffectiveness *numparse.Percent `yaml:"implementation_effectiveness,omitempty" validate:"omitempty,gte=0,lte=1"`
	Coverage                    *Coverage         `yaml:"coverage,omitempty"`
	Reliability                 *numparse.Percent `yaml:"reliability,omitempty" validate:"omitempty,gte=0,lte=1"`
	Affects                     string            `yaml:"affects,omitempty" validate:"omitempty,oneof=frequency severity both"`
	Notes                       string            `yaml:"notes,omitempty"`
}

// ScenarioBinding restricts a scenario to a subset of portfolio assets. A nil
// AppliesToAssets means "all assets"; an empty list is an explicit empty
// binding.
type ScenarioBinding struct {
	AppliesToAssets *[]string `yaml:"applies_to_assets,omitempty"`
}

// ScenarioRef points a portfolio at a scenario document.
type ScenarioRef struct {
	ID      string          `yaml:"id" validate:"required"`
	Path    string          `yaml:"path" validate:"required"`
	Weight  *float64        `yaml:"weight,omitempty"`
	Binding ScenarioBinding `yaml:"binding,omitempty"`
	Tags    []string        `yaml:"tags,omitempty"`
}

// SemanticsConstraints tune optional validation behavior.
type SemanticsConstraints struct {
	RequirePathsExist bool `yaml:"require_paths_exist,omitempty"`
	ValidateScenarios bool `yaml:"validate_scenarios,omitempty"`
}

// Semantics selects the portfolio aggregation method.
type Semantics struct {
	Method      string               `yaml:"method" validate:"required,oneof=sum mixture choose_one max"`
	Constraints SemanticsConstraints `yaml:"constraints,omitempty"`
}

// DependencyCopula specifies a Gaussian copula over ordered target
// references. Targets take the form "control:<id>:state"; the copula
// dimension equals len(Targets).
type DependencyCopula struct {
	Type      string      `yaml:"type" validate:"required,oneof=gaussian"`
	Targets   []string    `yaml:"targets" validate:"required,min=1"`
	Structure string      `yaml:"structure,omitempty"`
	Rho       *float64    `yaml:"rho,omitempty"`
	Matrix    [][]float64 `yaml:"matrix,omitempty"`
}

// Dependency wraps optional dependency structure for the portfolio.
type Dependency struct {
	Copula *DependencyCopula `yaml:"copula,omitempty"`
}

// Relationship is carried through unmodified; the planner does not interpret
// relationship entries beyond schema validation.
type Relationship struct {
	Type        string   `yaml:"type"`
	Between     []string `yaml:"between,omitempty"`
	Value       *float64 `yaml:"value,omitempty"`
	Given       string   `yaml:"given,omitempty"`
	Then        string   `yaml:"then,omitempty"`
	Probability *float64 `yaml:"probability,omitempty"`
}

// Portfolio is the payload of a portfolio document.
type Portfolio struct {
	Assets             []Asset            `yaml:"assets,omitempty" validate:"dive"`
	Controls           []PortfolioControl `yaml:"controls,omitempty" validate:"dive"`
	ControlCatalogs    []string           `yaml:"control_catalogs,omitempty"`
	ControlAssessments []string           `yaml:"control_assessments,omitempty"`
	Scenarios          []ScenarioRef      `yaml:"scenarios" validate:"required,min=1,dive"`
	Semantics          Semantics          `yaml:"semantics" validate:"required"`
	Dependency         *Dependency        `yaml:"dependency,omitempty"`
	Relationships      []Relationship     `yaml:"relationships,omitempty"`
}

// PortfolioDoc is a full portfolio document.
type PortfolioDoc struct {
	Version   string    `yaml:"crml_portfolio" validate:"required"`
	Meta      Meta      `yaml:"meta" validate:"required"`
	Portfolio Portfolio `yaml:"portfolio" validate:"required"`
}

// ParsePortfolio decodes and validates a portfolio document, including the
// semantic rules a schema cannot express (unique ids, weight sums).
func ParsePortfolio(data []byte) (*PortfolioDoc, []Issue, error) {
	var doc PortfolioDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse portfolio document: %w", err)
	}
	if doc.Version == "" {
		return nil, nil, fmt.Errorf("not a portfolio document: missing 'crml_portfolio' key")
	}
	if err := validateStruct(&doc); err != nil {
		return nil, nil, fmt.Errorf("invalid portfolio document: %w", err)
	}
	return &doc, validatePortfolioSemantics(&doc.Portfolio), nil
}

// IsPortfolio reports whether raw YAML looks like a portfolio document. Used
// by the CLI to auto-select the run path.
func IsPortfolio(data []byte) bool {
	var probe struct {
		Portfolio *yaml.Node `yaml:"crml_portfolio"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Portfolio != nil
}
