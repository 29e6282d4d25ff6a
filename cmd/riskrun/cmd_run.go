package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/riskrun/riskrun/internal/document"
	"github.com/riskrun/riskrun/internal/engine"
	"github.com/riskrun/riskrun/internal/fx"
	"github.com/riskrun/riskrun/internal/plan"
	"github.com/riskrun/riskrun/internal/report"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <document.yaml>",
		Short: "Simulate a scenario or portfolio document",
		Long: `Run a Monte Carlo simulation over a document. Portfolio documents are
planned first (referenced scenarios and control packs resolve relative to
the portfolio file); scenario documents run standalone with cardinality 1.`,
		Args: cobra.ExactArgs(1),
		RunE: runSimulation,
	}
	cmd.Flags().Int("trials", engine.DefaultTrials, "Number of Monte Carlo trials")
	cmd.Flags().Uint64("seed", engine.DefaultSeed, "Random seed")
	cmd.Flags().String("fx", "", "Path to an fx_config currency document")
	cmd.Flags().String("format", "text", "Output format (text|json|envelope)")
	cmd.Flags().String("out", "", "Write output to a file instead of stdout")
	cmd.Flags().Int("raw-limit", engine.DefaultRawLimit, "Max raw samples exported in the distribution")
	return cmd
}

func runSimulation(cmd *cobra.Command, args []string) error {
	path := args[0]
	trials, _ := cmd.Flags().GetInt("trials")
	seed, _ := cmd.Flags().GetUint64("seed")
	fxPath, _ := cmd.Flags().GetString("fx")
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")
	rawLimit, _ := cmd.Flags().GetInt("raw-limit")

	fxCfg, err := fx.Load(fxPath)
	if err != nil {
		return err
	}
	opts := engine.Options{Trials: trials, Seed: seed, FX: fxCfg, RawLimit: rawLimit}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	var result *engine.SimulationResult
	if document.IsPortfolio(data) {
		doc, issues, err := document.ParsePortfolio(data)
		if err != nil {
			return err
		}
		_ = issues // re-reported by the planner
		rep := plan.NewPlanner(document.OSFileReader{}).PlanDoc(doc, filepath.Dir(path))
		if !rep.OK {
			report.WritePlan(cmd.ErrOrStderr(), rep)
			return fmt.Errorf("planning failed with %d error(s)", len(rep.Errors))
		}
		report.WriteIssues(cmd.ErrOrStderr(), rep.Warnings)
		result = engine.RunPortfolio(rep.Plan, opts)
	} else {
		doc, err := document.ParseScenario(data)
		if err != nil {
			return err
		}
		result = engine.RunScenario(doc, opts)
	}

	switch format {
	case "json":
		if err := report.WriteJSON(out, result); err != nil {
			return err
		}
	case "envelope":
		if err := report.WriteJSON(out, result.Envelope()); err != nil {
			return err
		}
	case "text":
		report.WriteResult(out, result)
	default:
		return fmt.Errorf("unknown format %q (want text, json, or envelope)", format)
	}

	if !result.Success {
		return fmt.Errorf("simulation failed: %s", result.Errors[0])
	}
	return nil
}
