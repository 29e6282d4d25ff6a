package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/riskrun/riskrun/internal/document"
	"github.com/riskrun/riskrun/internal/report"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <document.yaml>...",
		Short: "Validate documents without planning or simulating",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		if err := validateOne(cmd, path); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed validation", failed, len(args))
	}
	return nil
}

// validateOne dispatches on the document's version key.
func validateOne(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var probe struct {
		Scenario   *yaml.Node `yaml:"crml_scenario"`
		Portfolio  *yaml.Node `yaml:"crml_portfolio"`
		Catalog    *yaml.Node `yaml:"crml_control_catalog"`
		Assessment *yaml.Node `yaml:"crml_assessment"`
		OldAssess  *yaml.Node `yaml:"crml_control_assessment"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch {
	case probe.Portfolio != nil:
		_, issues, err := document.ParsePortfolio(data)
		if err != nil {
			return err
		}
		report.WriteIssues(cmd.OutOrStdout(), issues)
		for _, is := range issues {
			if is.Level == document.LevelError {
				return fmt.Errorf("portfolio has semantic errors")
			}
		}
		return nil
	case probe.Scenario != nil:
		_, err := document.ParseScenario(data)
		return err
	case probe.Catalog != nil:
		_, err := document.ParseCatalog(data)
		return err
	case probe.Assessment != nil || probe.OldAssess != nil:
		_, err := document.ParseAssessment(data)
		return err
	default:
		return fmt.Errorf("unrecognized document: no crml version key found")
	}
}
