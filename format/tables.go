// Package format renders engine results as text tables for the CLI host.
package format

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/insightlab/insightengine/chartopt"
	"github.com/insightlab/insightengine/domain/models"
)

// ScenarioTable renders the per-dimension delta points plus the summary.
func ScenarioTable(resp *models.ScenarioResponse) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Dimension", "Baseline", "Simulated", "Delta", "Delta %"})
	for _, p := range resp.Points {
		pct := "n/a"
		if p.DeltaPercent != nil {
			pct = fmt.Sprintf("%.2f%%", *p.DeltaPercent)
		}
		t.AppendRow(table.Row{
			p.Dimension,
			fmt.Sprintf("%.2f", p.Baseline),
			fmt.Sprintf("%.2f", p.Simulated),
			fmt.Sprintf("%.2f", p.Delta),
			pct,
		})
	}
	t.AppendFooter(table.Row{
		"changed", resp.Summary.ChangedPoints,
		fmt.Sprintf("avg %.2f%%", resp.Summary.AverageDeltaPercent),
		fmt.Sprintf("min %.2f%%", resp.Summary.MinDeltaPercent),
		fmt.Sprintf("max %.2f%%", resp.Summary.MaxDeltaPercent),
	})
	t.SetStyle(table.StyleDefault)
	return t.Render()
}

// OptionTable renders a cartesian chart option as rows of axis label plus
// one column per series. Scatter options render as x/y pairs.
func OptionTable(option *chartopt.Option) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleDefault)

	if len(option.Series) > 0 && option.Series[0].Pairs != nil {
		t.AppendHeader(table.Row{"X", "Y"})
		for _, p := range option.Series[0].Pairs {
			t.AppendRow(table.Row{fmt.Sprintf("%.4g", p[0]), fmt.Sprintf("%.4g", p[1])})
		}
		return t.Render()
	}

	header := table.Row{axisName(option)}
	for _, s := range option.Series {
		header = append(header, s.Name)
	}
	t.AppendHeader(header)

	var labels []string
	if option.XAxis != nil {
		labels = option.XAxis.Data
	}
	for i, label := range labels {
		row := table.Row{label}
		for _, s := range option.Series {
			if i < len(s.Data) && s.Data[i] != nil {
				row = append(row, fmt.Sprintf("%.4g", *s.Data[i]))
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func axisName(option *chartopt.Option) string {
	if option.XAxis != nil && option.XAxis.Name != "" {
		return option.XAxis.Name
	}
	return "X"
}
