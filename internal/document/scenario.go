// Package document defines the YAML document types consumed by the planner
// and the simulation engine: scenarios, portfolios, control catalogs, and
// control assessment packs. Loading is split into parse (yaml.v3) and
// validate (struct tags + semantic checks) steps.
package document

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/riskrun/riskrun/internal/numparse"
)

// Frequency bases supported by scenario documents.
const (
	BasisPerOrganization = "per_organization_per_year"
	BasisPerAssetUnit    = "per_asset_unit_per_year"
)

// Meta carries document metadata shared by all document types.
type Meta struct {
	Name         string   `yaml:"name" validate:"required"`
	Version      string   `yaml:"version,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Author       string   `yaml:"author,omitempty"`
	Organization string   `yaml:"organization,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
}

// FrequencyParams parameterizes the supported frequency models. Fields are
// model-specific; unused ones stay nil.
type FrequencyParams struct {
	Lambda    *numparse.Float `yaml:"lambda,omitempty"`
	Shape     *numparse.Float `yaml:"shape,omitempty"`
	Scale     *numparse.Float `yaml:"scale,omitempty"`
	AlphaBase *numparse.Float `yaml:"alpha_base,omitempty"`
	BetaBase  *numparse.Float `yaml:"beta_base,omitempty"`
}

// Frequency declares how often loss events occur and against which exposure
// denominator.
type Frequency struct {
	Basis      string           `yaml:"basis" validate:"required,oneof=per_organization_per_year per_asset_unit_per_year"`
	Model      string           `yaml:"model" validate:"required"`
	Parameters *FrequencyParams `yaml:"parameters,omitempty"`
}

// SeverityParams parameterizes the supported severity models.
type SeverityParams struct {
	Median       *numparse.Float  `yaml:"median,omitempty"`
	Mu           *numparse.Float  `yaml:"mu,omitempty"`
	Sigma        *numparse.Float  `yaml:"sigma,omitempty"`
	Shape        *numparse.Float  `yaml:"shape,omitempty"`
	Scale        *numparse.Float  `yaml:"scale,omitempty"`
	Currency     string           `yaml:"currency,omitempty"`
	SingleLosses []numparse.Float `yaml:"single_losses,omitempty"`
	Weight       *numparse.Float  `yaml:"weight,omitempty"`
}

// MixtureComponent is one entry of a mixture severity model, keyed by the
// component distribution.
type MixtureComponent struct {
	Lognormal *SeverityParams `yaml:"lognormal,omitempty"`
	Gamma     *SeverityParams `yaml:"gamma,omitempty"`
}

// Severity declares the per-event loss magnitude model.
type Severity struct {
	Model      string             `yaml:"model" validate:"required"`
	Parameters *SeverityParams    `yaml:"parameters,omitempty"`
	Components []MixtureComponent `yaml:"components,omitempty"`
}

// Coverage describes how broadly a control is deployed and over what
// denominator (endpoints, employees, applications, ...).
type Coverage struct {
	Value numparse.Percent `yaml:"value" validate:"gte=0,lte=1"`
	Basis string           `yaml:"basis" validate:"required"`
}

// ControlRef is a scenario's reference to a control. Documents may use the
// short form (a bare id string) or the detailed form carrying scenario-scoped
// applicability factors. Both normalize to this one record.
type ControlRef struct {
	ID                  string
	EffectivenessFactor *numparse.Percent
	Coverage            *Coverage
	PotencyFactor       *numparse.Percent
}

func (c *ControlRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.ID = node.Value
		if c.ID == "" {
			return fmt.Errorf("control reference must not be empty")
		}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("control reference must be a string id or a mapping")
	}
	var detailed struct {
		ID                  string            `yaml:"id"`
		EffectivenessFactor *numparse.Percent `yaml:"implementation_effectiveness"`
		Coverage            *Coverage         `yaml:"coverage"`
		PotencyFactor       *numparse.Percent `yaml:"potency"`
	}
	if err := node.Decode(&detailed); err != nil {
		return err
	}
	if detailed.ID == "" {
		return fmt.Errorf("control reference mapping requires an 'id'")
	}
	c.ID = detailed.ID
	c.EffectivenessFactor = detailed.EffectivenessFactor
	c.Coverage = detailed.Coverage
	c.PotencyFactor = detailed.PotencyFactor
	return nil
}

// Scenario is the payload of a scenario document: threat frequency, loss
// severity, and the controls relevant to this threat. Scenarios carry no
// asset or exposure data; that binding happens in the portfolio.
type Scenario struct {
	Frequency Frequency    `yaml:"frequency" validate:"required"`
	Severity  Severity     `yaml:"severity" validate:"required"`
	Controls  []ControlRef `yaml:"controls,omitempty"`
}

// ScenarioDoc is a full scenario document.
type ScenarioDoc struct {
	Version  string   `yaml:"crml_scenario" validate:"required"`
	Meta     Meta     `yaml:"meta" validate:"required"`
	Scenario Scenario `yaml:"scenario" validate:"required"`
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*ScenarioDoc, error) {
	var doc ScenarioDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario document: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("not a scenario document: missing 'crml_scenario' key")
	}
	if err := validateStruct(&doc); err != nil {
		return nil, fmt.Errorf("invalid scenario document: %w", err)
	}
	return &doc, nil
}
