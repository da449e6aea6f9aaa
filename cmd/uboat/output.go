package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/simulator"
	"github.com/lox/uboat/internal/theory"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FA7D6"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#96CEB4")).Bold(true)
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers(headers...)
}

// printReport writes the summary block and the per-value distribution table
func printReport(w io.Writer, report simulator.Report, alpha float64) {
	s := report.Statistics
	c := report.Comparison

	fmt.Fprintln(w, titleStyle.Render("SIMULATION RESULTS"))
	fmt.Fprintf(w, "%s %s, %d draws\n", labelStyle.Render("Policy:       "), report.Policy, report.Draws)
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Simulations:  "), s.Trials)
	fmt.Fprintf(w, "%s %.4f (95%% CI %.4f to %.4f)\n", labelStyle.Render("Mean hits:    "), s.Mean, s.CI95Low, s.CI95High)
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Median hits:  "), s.Median)
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Mode hits:    "), s.Mode)
	fmt.Fprintf(w, "%s %.4f\n", labelStyle.Render("Std deviation:"), s.StdDev)

	t := newTable("Hits", "Count", "Probability", "Theoretical", "Difference")
	for _, k := range sampler.CellDomain() {
		t.Row(
			strconv.Itoa(k),
			strconv.Itoa(s.Frequency[k]),
			fmt.Sprintf("%.4f", c.Empirical[k]),
			fmt.Sprintf("%.4f", c.Theoretical[k]),
			fmt.Sprintf("%+.4f", c.Difference[k]),
		)
	}
	fmt.Fprintln(w, t.String())

	verdict := goodStyle.Render("consistent")
	if !c.Consistent(alpha) {
		verdict = badStyle.Render("inconsistent")
	}
	fmt.Fprintf(w, "%s %.3f (df %d, p=%.4g): %s at α=%.2f\n",
		labelStyle.Render("Chi-square:   "), c.ChiSquare, c.DegreesOfFreedom, c.PValue, verdict, alpha)
	if c.ImpossibleHits > 0 {
		fmt.Fprintf(w, "%s %d searches landed on values the table rules out\n", badStyle.Render("Impossible:   "), c.ImpossibleHits)
	}
}

// printTable writes a theoretical distribution
func printTable(w io.Writer, policy sampler.Policy, draws int, dist theory.Distribution, exact bool) {
	source := "reference"
	if exact {
		source = "exact"
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("THEORETICAL DISTRIBUTION (%s, %d draws, %s)", policy, draws, source)))

	t := newTable("Hits", "Probability")
	for _, k := range sampler.CellDomain() {
		t.Row(strconv.Itoa(k), fmt.Sprintf("%.4f", dist[k]))
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintf(w, "%s %.4f\n", labelStyle.Render("Mean:"), dist.Mean())
	fmt.Fprintf(w, "%s %.4f\n", labelStyle.Render("Sum: "), dist.Sum())
}
