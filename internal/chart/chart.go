// Package chart draws batch reports as go-echarts bar charts.
package chart

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/simulator"
	"github.com/lox/uboat/internal/statistics"
	"github.com/lox/uboat/internal/theory"
)

func globalOptions(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Theme:     types.ThemeChalk,
			PageTitle: title,
		}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: true,
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{
					Show:  true,
					Title: "Save",
				},
			},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true}),
		charts.WithLegendOpts(opts.Legend{Show: true}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
	}
}

func labels(domain sampler.Domain) []string {
	out := make([]string, len(domain))
	for i, k := range domain {
		out[i] = strconv.Itoa(k)
	}
	return out
}

func countData(freq map[int]int, domain sampler.Domain) []opts.BarData {
	items := make([]opts.BarData, 0, len(domain))
	for _, k := range domain {
		items = append(items, opts.BarData{Value: freq[k]})
	}
	return items
}

func probabilityData(probs map[int]float64, domain sampler.Domain) []opts.BarData {
	items := make([]opts.BarData, 0, len(domain))
	for _, k := range domain {
		items = append(items, opts.BarData{Value: probs[k]})
	}
	return items
}

// Distribution charts the hit counts of a batch.
func Distribution(summary statistics.Summary, domain sampler.Domain) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions(
		"Hit Distribution",
		fmt.Sprintf("%d searches, mean %.3f, median %d, mode %d", summary.Trials, summary.Mean, summary.Median, summary.Mode),
	)...)
	bar.SetXAxis(labels(domain)).AddSeries("Searches", countData(summary.Frequency, domain))
	return bar
}

// Comparison charts empirical against theoretical probabilities side by side.
func Comparison(report simulator.Report, domain sampler.Domain) *charts.Bar {
	c := report.Comparison
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions(
		"Empirical vs Theoretical",
		fmt.Sprintf("%s, %d draws, %d searches, max diff %.4f, p=%.4g", report.Policy, report.Draws, c.Trials, c.MaxAbsDiff, c.PValue),
	)...)
	bar.SetXAxis(labels(domain)).
		AddSeries("Empirical", probabilityData(c.Empirical, domain)).
		AddSeries("Theoretical", probabilityData(c.Theoretical, domain))
	return bar
}

// Table charts a theoretical distribution on its own.
func Table(policy sampler.Policy, draws int, table theory.Distribution, domain sampler.Domain) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions(
		"Theoretical Distribution",
		fmt.Sprintf("%s, %d draws, mean %.4f", policy, draws, table.Mean()),
	)...)
	bar.SetXAxis(labels(domain)).AddSeries("P(hits)", probabilityData(table, domain))
	return bar
}

// Render writes both report charts as a single HTML page.
func Render(w io.Writer, report simulator.Report) error {
	domain := sampler.CellDomain()
	page := components.NewPage()
	page.PageTitle = "U-boat Sonar Search"
	page.AddCharts(
		Distribution(report.Statistics, domain),
		Comparison(report, domain),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
