package document

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// Issue is a structured validation finding tied to a logical document path.
type Issue struct {
	Level   string `json:"level"` // "error" or "warning"
	Path    string `json:"path"`
	Message string `json:"message"`
}

const (
	LevelError   = "error"
	LevelWarning = "warning"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(doc any) error {
	return structValidator.Struct(doc)
}

// weightTolerance bounds the accepted deviation of mixture/choose_one weight
// sums from 1.0.
const weightTolerance = 1e-9

// ValidatePortfolio re-runs the semantic checks on an already-parsed
// portfolio document. Callers that hold a document without having gone
// through ParsePortfolio use this before planning.
func ValidatePortfolio(doc *PortfolioDoc) []Issue {
	return validatePortfolioSemantics(&doc.Portfolio)
}

// validatePortfolioSemantics applies the rules a structural schema cannot
// express: id uniqueness and weight semantics. All findings are collected;
// nothing short-circuits.
func validatePortfolioSemantics(p *Portfolio) []Issue {
	var issues []Issue

	controlIDs := map[string]bool{}
	for i, c := range p.Controls {
		if controlIDs[c.ID] {
			issues = append(issues, Issue{
				Level:   LevelError,
				Path:    fmt.Sprintf("portfolio.controls[%d].id", i),
				Message: fmt.Sprintf("control id %q is not unique within the portfolio", c.ID),
			})
		}
		controlIDs[c.ID] = true
	}

	scenarioIDs := map[string]bool{}
	scenarioPaths := map[string]bool{}
	for i, s := range p.Scenarios {
		if scenarioIDs[s.ID] {
			issues = append(issues, Issue{
				Level:   LevelError,
				Path:    fmt.Sprintf("portfolio.scenarios[%d].id", i),
				Message: fmt.Sprintf("scenario id %q is not unique within the portfolio", s.ID),
			})
		}
		scenarioIDs[s.ID] = true
		if scenarioPaths[s.Path] {
			issues = append(issues, Issue{
				Level:   LevelError,
				Path:    fmt.Sprintf("portfolio.scenarios[%d].path", i),
				Message: fmt.Sprintf("scenario path %q is not unique within the portfolio", s.Path),
			})
		}
		scenarioPaths[s.Path] = true
	}

	if p.Semantics.Method == MethodMixture || p.Semantics.Method == MethodChooseOne {
		issues = append(issues, validateWeights(p)...)
	}

	return issues
}

func validateWeights(p *Portfolio) []Issue {
	var issues []Issue
	var missing []int
	sum := 0.0
	for i, s := range p.Scenarios {
		if s.Weight == nil {
			missing = append(missing, i)
			continue
		}
		sum += *s.Weight
	}
	if len(missing) > 0 {
		issues = append(issues, Issue{
			Level: LevelError,
			Path:  "portfolio.scenarios",
			Message: fmt.Sprintf("all scenarios must define 'weight' when semantics.method is %q; missing at indices %v",
				p.Semantics.Method, missing),
		})
		return issues
	}
	if math.Abs(sum-1.0) > weightTolerance {
		issues = append(issues, Issue{
			Level: LevelError,
			Path:  "portfolio.scenarios.weight",
			Message: fmt.Sprintf("scenario weights must sum to 1.0 for method %q (got %v)",
				p.Semantics.Method, sum),
		})
	}
	return issues
}
