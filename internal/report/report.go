// Package report renders simulation results and plan reports for terminal
// and machine consumption.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/riskrun/riskrun/internal/document"
	"github.com/riskrun/riskrun/internal/engine"
	"github.com/riskrun/riskrun/internal/fx"
	"github.com/riskrun/riskrun/internal/plan"
)

const histogramWidth = 44

// ANSI styles, blanked when the writer is not a terminal.
type palette struct {
	bold, dim, red, yellow, green, reset string
}

func styleFor(w io.Writer) palette {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return palette{
			bold:   "\033[1m",
			dim:    "\033[2m",
			red:    "\033[31m",
			yellow: "\033[33m",
			green:  "\033[32m",
			reset:  "\033[0m",
		}
	}
	return palette{}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteResult renders a simulation result as a readable text report.
func WriteResult(w io.Writer, r *engine.SimulationResult) {
	p := styleFor(w)
	sym := fx.Symbol(r.Metadata.Currency)

	subject := r.Metadata.Portfolio
	if subject == "" {
		subject = r.Metadata.Scenario
	}
	fmt.Fprintf(w, "%sSimulation: %s%s\n", p.bold, subject, p.reset)
	fmt.Fprintf(w, "%srun %s | %d trials | seed %d | %d ms%s\n\n",
		p.dim, r.Metadata.RunID, r.Metadata.Runs, r.Metadata.Seed, r.Metadata.DurationMS, p.reset)

	if !r.Success {
		fmt.Fprintf(w, "%sFAILED%s\n", p.red, p.reset)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		return
	}

	m := r.Metrics
	rows := []struct {
		label string
		value float64
	}{
		{"Expected Annual Loss", m.EAL},
		{"VaR 95%", m.VaR95},
		{"VaR 99%", m.VaR99},
		{"VaR 99.9%", m.VaR999},
		{"Minimum", m.Min},
		{"Median", m.Median},
		{"Maximum", m.Max},
		{"Std Deviation", m.StdDev},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %-22s %s%s%s%s\n", row.label, p.bold, sym, formatAmount(row.value), p.reset)
	}

	if len(r.Distribution.Frequencies) > 0 {
		fmt.Fprintf(w, "\n%sAnnual loss distribution%s\n", p.bold, p.reset)
		writeHistogram(w, p, sym, r.Distribution)
	}
}

// writeHistogram renders a compressed ASCII histogram: every pair of bins is
// merged so the chart stays readable in an 80-column terminal.
func writeHistogram(w io.Writer, p palette, sym string, d engine.Distribution) {
	step := 2
	maxCount := 0
	merged := make([]int, 0, len(d.Frequencies)/step+1)
	for i := 0; i < len(d.Frequencies); i += step {
		count := d.Frequencies[i]
		if i+1 < len(d.Frequencies) {
			count += d.Frequencies[i+1]
		}
		merged = append(merged, count)
		if count > maxCount {
			maxCount = count
		}
	}
	if maxCount == 0 {
		return
	}
	for i, count := range merged {
		lo := d.Bins[i*step]
		bar := strings.Repeat("█", count*histogramWidth/maxCount)
		fmt.Fprintf(w, "  %s%12s%s |%s%s\n", p.dim, sym+formatAmount(lo), p.reset, bar, renderCount(count))
	}
}

func renderCount(count int) string {
	if count == 0 {
		return ""
	}
	return fmt.Sprintf(" %d", count)
}

// WritePlan renders a planning report: findings first, then the resolved
// scenario table when a plan exists.
func WritePlan(w io.Writer, rep *plan.Report) {
	p := styleFor(w)

	for _, e := range rep.Errors {
		fmt.Fprintf(w, "%sERROR%s   %s: %s\n", p.red, p.reset, e.Path, e.Message)
	}
	for _, warn := range rep.Warnings {
		fmt.Fprintf(w, "%sWARNING%s %s: %s\n", p.yellow, p.reset, warn.Path, warn.Message)
	}
	if len(rep.Errors)+len(rep.Warnings) > 0 {
		fmt.Fprintln(w)
	}

	if !rep.OK || rep.Plan == nil {
		fmt.Fprintf(w, "%splanning failed: %d error(s)%s\n", p.red, len(rep.Errors), p.reset)
		return
	}

	fmt.Fprintf(w, "%sPlan: %s%s (%s)\n", p.bold, rep.Plan.PortfolioName, p.reset, rep.Plan.SemanticsMethod)
	for _, rs := range rep.Plan.Scenarios {
		fmt.Fprintf(w, "  %s%-24s%s cardinality=%-6d assets=%s\n",
			p.green, rs.ID, p.reset, rs.Cardinality, strings.Join(rs.AppliesToAssets, ","))
		for _, rc := range rs.Controls {
			fmt.Fprintf(w, "    %s- %s eff=%.2f cov=%.2f rel=%.2f affects=%s%s\n",
				p.dim, rc.ID, rc.CombinedEffectiveness, rc.CombinedCoverage,
				rc.CombinedReliability, rc.Affects, p.reset)
		}
	}
	if rep.Plan.Copula != nil {
		fmt.Fprintf(w, "  copula: %s over %s\n",
			rep.Plan.Copula.Type, strings.Join(rep.Plan.Copula.ControlIDs, ", "))
	}
}

// WriteIssues renders standalone validation findings.
func WriteIssues(w io.Writer, issues []document.Issue) {
	p := styleFor(w)
	for _, is := range issues {
		color := p.yellow
		label := "WARNING"
		if is.Level == document.LevelError {
			color = p.red
			label = "ERROR"
		}
		fmt.Fprintf(w, "%s%s%s %s: %s\n", color, label, p.reset, is.Path, is.Message)
	}
}

// formatAmount renders a monetary value with thousands separators and no
// decimals above 100, two decimals below.
func formatAmount(v float64) string {
	if v < 0 {
		return "-" + formatAmount(-v)
	}
	if v < 100 {
		return fmt.Sprintf("%.2f", v)
	}
	s := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
