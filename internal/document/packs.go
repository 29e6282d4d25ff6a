package document

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/riskrun/riskrun/internal/numparse"
)

// CatalogEntry is portable metadata about a known control id. Catalogs never
// carry posture data; they only establish which ids exist in a framework.
type CatalogEntry struct {
	ID    string   `yaml:"id" validate:"required"`
	Title string   `yaml:"title,omitempty"`
	URL   string   `yaml:"url,omitempty"`
	Tags  []string `yaml:"tags,omitempty"`
}

// CatalogPack groups the controls of one framework.
type CatalogPack struct {
	ID        string         `yaml:"id,omitempty"`
	Framework string         `yaml:"framework" validate:"required"`
	Controls  []CatalogEntry `yaml:"controls" validate:"required,dive"`
}

// CatalogDoc is a control catalog document.
type CatalogDoc struct {
	Version string      `yaml:"crml_control_catalog" validate:"required"`
	Meta    Meta        `yaml:"meta" validate:"required"`
	Catalog CatalogPack `yaml:"catalog" validate:"required"`
}

// AssessmentEntry is an organization's measured posture for one control.
type AssessmentEntry struct {
	ID                          string            `yaml:"id" validate:"required"`
	ImplementationEffectiveness *numparse.Percent `yaml:"implementation_effectiveness,omitempty" validate:"omitempty,gte=0,lte=1"`
	Coverage                    *Coverage         `yaml:"coverage,omitempty"`
	Reliability                 *numparse.Percent `yaml:"reliability,omitempty" validate:"omitempty,gte=0,lte=1"`
	Affects                     string            `yaml:"affects,omitempty" validate:"omitempty,oneof=frequency severity both"`
	Question                    string            `yaml:"question,omitempty"`
	Description                 string            `yaml:"description,omitempty"`
	Notes                       string            `yaml:"notes,omitempty"`
}

// AssessmentPack groups assessment entries recorded against one framework.
type AssessmentPack struct {
	ID          string            `yaml:"id,omitempty"`
	Framework   string            `yaml:"framework" validate:"required"`
	AssessedAt  string            `yaml:"assessed_at,omitempty"`
	Assessments []AssessmentEntry `yaml:"assessments" validate:"required,dive"`
}

// AssessmentDoc is a control assessment document. Both the current
// `crml_assessment` key and the older `crml_control_assessment` spelling are
// accepted.
type AssessmentDoc struct {
	Version    string         `yaml:"crml_assessment"`
	OldVersion string         `yaml:"crml_control_assessment"`
	Meta       Meta           `yaml:"meta" validate:"required"`
	Assessment AssessmentPack `yaml:"assessment" validate:"required"`
}

// ParseCatalog decodes and validates a control catalog document.
func ParseCatalog(data []byte) (*CatalogDoc, error) {
	var doc CatalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse control catalog: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("not a control catalog document: missing 'crml_control_catalog' key")
	}
	if err := validateStruct(&doc); err != nil {
		return nil, fmt.Errorf("invalid control catalog: %w", err)
	}
	return &doc, nil
}

// ParseAssessment decodes and validates a control assessment document.
func ParseAssessment(data []byte) (*AssessmentDoc, error) {
	var doc AssessmentDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse control assessment: %w", err)
	}
	if doc.Version == "" && doc.OldVersion == "" {
		return nil, fmt.Errorf("not a control assessment document: missing 'crml_assessment' key")
	}
	if err := validateStruct(&doc); err != nil {
		return nil, fmt.Errorf("invalid control assessment: %w", err)
	}
	return &doc, nil
}
