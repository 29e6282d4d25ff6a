package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riskrun/riskrun/internal/document"
	"github.com/riskrun/riskrun/internal/plan"
	"github.com/riskrun/riskrun/internal/report"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <portfolio.yaml>",
		Short: "Resolve a portfolio into an execution plan without simulating",
		Long: `Plan resolves scenario references, asset bindings, control postures, and
the dependency copula, reporting every error and warning. The resolved plan
is printed when planning succeeds.`,
		Args: cobra.ExactArgs(1),
		RunE: runPlan,
	}
	cmd.Flags().String("format", "text", "Output format (text|json)")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	rep := plan.NewPlanner(document.OSFileReader{}).PlanFile(args[0])

	switch format {
	case "json":
		if err := report.WriteJSON(cmd.OutOrStdout(), rep); err != nil {
			return err
		}
	case "text":
		report.WritePlan(cmd.OutOrStdout(), rep)
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}

	if !rep.OK {
		return fmt.Errorf("planning failed with %d error(s)", len(rep.Errors))
	}
	return nil
}
