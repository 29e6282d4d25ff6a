package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScenario = `
crml_scenario: "1.0"
meta:
  name: "Ransomware on endpoints"
scenario:
  controls:
    - "cap:edr"
    - id: "cap:backup"
      implementation_effectiveness: "80%"
      coverage: {value: 0.9, basis: endpoints}
      potency: 0.7
  frequency:
    basis: per_asset_unit_per_year
    model: poisson
    parameters: {lambda: "0.5"}
  severity:
    model: lognormal
    parameters: {median: "250 000", sigma: 0.8, currency: EUR}
`

func TestParseScenario(t *testing.T) {
	doc, err := ParseScenario([]byte(sampleScenario))
	require.NoError(t, err)

	assert.Equal(t, "Ransomware on endpoints", doc.Meta.Name)
	assert.Equal(t, BasisPerAssetUnit, doc.Scenario.Frequency.Basis)
	require.NotNil(t, doc.Scenario.Frequency.Parameters.Lambda)
	assert.InDelta(t, 0.5, float64(*doc.Scenario.Frequency.Parameters.Lambda), 1e-12)
	require.NotNil(t, doc.Scenario.Severity.Parameters.Median)
	assert.InDelta(t, 250000, float64(*doc.Scenario.Severity.Parameters.Median), 1e-9)
	assert.Equal(t, "EUR", doc.Scenario.Severity.Parameters.Currency)
}

func TestParseScenario_ControlRefUnion(t *testing.T) {
	doc, err := ParseScenario([]byte(sampleScenario))
	require.NoError(t, err)
	require.Len(t, doc.Scenario.Controls, 2)

	plain := doc.Scenario.Controls[0]
	assert.Equal(t, "cap:edr", plain.ID)
	assert.Nil(t, plain.EffectivenessFactor)
	assert.Nil(t, plain.Coverage)

	detailed := doc.Scenario.Controls[1]
	assert.Equal(t, "cap:backup", detailed.ID)
	require.NotNil(t, detailed.EffectivenessFactor)
	assert.InDelta(t, 0.8, float64(*detailed.EffectivenessFactor), 1e-12)
	require.NotNil(t, detailed.Coverage)
	assert.InDelta(t, 0.9, float64(detailed.Coverage.Value), 1e-12)
	assert.Equal(t, "endpoints", detailed.Coverage.Basis)
	require.NotNil(t, detailed.PotencyFactor)
	assert.InDelta(t, 0.7, float64(*detailed.PotencyFactor), 1e-12)
}

func TestParseScenario_RejectsNonScenario(t *testing.T) {
	_, err := ParseScenario([]byte("crml_portfolio: \"1.0\"\nmeta: {name: x}\n"))
	assert.Error(t, err)
}

func TestParsePortfolio_SemanticIssues(t *testing.T) {
	data := []byte(`
crml_portfolio: "1.0"
meta:
  name: "Org"
portfolio:
  assets:
    - {name: a1, cardinality: 10}
  controls:
    - {id: "cap:edr", implementation_effectiveness: 0.5}
    - {id: "cap:edr", implementation_effectiveness: 0.6}
  semantics:
    method: mixture
  scenarios:
    - {id: s1, path: s1.yaml, weight: 0.5}
    - {id: s1, path: s2.yaml}
`)
	_, issues, err := ParsePortfolio(data)
	require.NoError(t, err)

	for _, is := range issues {
		assert.Equal(t, LevelError, is.Level)
	}
	assert.Len(t, issues, 3) // duplicate control id, duplicate scenario id, missing weight
}

func TestParsePortfolio_WeightSum(t *testing.T) {
	data := []byte(`
crml_portfolio: "1.0"
meta: {name: "Org"}
portfolio:
  assets:
    - {name: a1, cardinality: 1}
  semantics: {method: choose_one}
  scenarios:
    - {id: s1, path: s1.yaml, weight: 0.6}
    - {id: s2, path: s2.yaml, weight: 0.3}
`)
	_, issues, err := ParsePortfolio(data)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "sum to 1.0")
}

func TestParsePortfolio_WeightSumWithinTolerance(t *testing.T) {
	data := []byte(`
crml_portfolio: "1.0"
meta: {name: "Org"}
portfolio:
  assets:
    - {name: a1, cardinality: 1}
  semantics: {method: mixture}
  scenarios:
    - {id: s1, path: s1.yaml, weight: 0.3333333333}
    - {id: s2, path: s2.yaml, weight: 0.3333333333}
    - {id: s3, path: s3.yaml, weight: 0.3333333334}
`)
	_, issues, err := ParsePortfolio(data)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestParsePortfolio_RejectsUnknownMethod(t *testing.T) {
	data := []byte(`
crml_portfolio: "1.0"
meta: {name: "Org"}
portfolio:
  semantics: {method: average}
  scenarios:
    - {id: s1, path: s1.yaml}
`)
	_, _, err := ParsePortfolio(data)
	assert.Error(t, err)
}

func TestParseAssessment_AcceptsBothVersionKeys(t *testing.T) {
	current := []byte(`
crml_assessment: "1.0"
meta: {name: "Org assessment"}
assessment:
  framework: "CISv8"
  assessments:
    - {id: "cap:edr", implementation_effectiveness: 0.7}
`)
	doc, err := ParseAssessment(current)
	require.NoError(t, err)
	assert.Equal(t, "CISv8", doc.Assessment.Framework)

	legacy := []byte(`
crml_control_assessment: "1.0"
meta: {name: "Org assessment"}
assessment:
  framework: "CISv8"
  assessments:
    - {id: "cap:edr", coverage: {value: 0.8, basis: endpoints}}
`)
	doc, err = ParseAssessment(legacy)
	require.NoError(t, err)
	require.Len(t, doc.Assessment.Assessments, 1)
}

func TestIsPortfolio(t *testing.T) {
	assert.True(t, IsPortfolio([]byte("crml_portfolio: \"1.0\"\n")))
	assert.False(t, IsPortfolio([]byte(sampleScenario)))
	assert.False(t, IsPortfolio([]byte(":: not yaml")))
}

func TestMapFileReader(t *testing.T) {
	r := MapFileReader{"a.yaml": []byte("x: 1")}
	data, err := r.ReadFile("a.yaml")
	require.NoError(t, err)
	assert.Equal(t, []byte("x: 1"), data)

	_, err = r.ReadFile("missing.yaml")
	assert.Error(t, err)
}
