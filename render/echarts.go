// Package render converts the typed chart option tree into a go-echarts
// page for the hosting layer. The engine itself never depends on the
// renderer.
package render

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/insightlab/insightengine/chartopt"
)

// WriteHTML renders the option as a standalone HTML chart.
func WriteHTML(option *chartopt.Option, w io.Writer) error {
	if hasScatter(option) {
		return renderScatter(option, w)
	}
	return renderCartesian(option, w)
}

func hasScatter(option *chartopt.Option) bool {
	for _, s := range option.Series {
		if s.Type == "scatter" {
			return true
		}
	}
	return false
}

func globalOptions(option *chartopt.Option) []charts.GlobalOpts {
	var out []charts.GlobalOpts
	if option.Title != nil {
		out = append(out, charts.WithTitleOpts(opts.Title{
			Title:    option.Title.Text,
			Subtitle: option.Title.Subtext,
		}))
	}
	if option.Legend != nil && option.Legend.Show {
		out = append(out, charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}))
	}
	if option.XAxis != nil {
		out = append(out, charts.WithXAxisOpts(opts.XAxis{Name: option.XAxis.Name}))
	}
	if option.YAxis != nil {
		out = append(out, charts.WithYAxisOpts(opts.YAxis{Name: option.YAxis.Name}))
	}
	return out
}

func seriesOptions(s chartopt.Series) []charts.SeriesOpts {
	var out []charts.SeriesOpts
	if s.Dashed {
		out = append(out, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	}
	if s.MarkLine != nil {
		for _, it := range s.MarkLine.Items {
			out = append(out, charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
				Name:  it.Name,
				YAxis: it.YAxis,
			}))
		}
	}
	return out
}

func renderCartesian(option *chartopt.Option, w io.Writer) error {
	var labels []string
	if option.XAxis != nil {
		labels = option.XAxis.Data
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions(option)...)
	bar.SetXAxis(labels)
	line := charts.NewLine()
	line.SetXAxis(labels)

	hasBar, hasLine := false, false
	for _, s := range option.Series {
		switch s.Type {
		case "bar":
			data := make([]opts.BarData, len(s.Data))
			for i, v := range s.Data {
				data[i] = opts.BarData{Value: pointValue(v)}
			}
			bar.AddSeries(s.Name, data, seriesOptions(s)...)
			hasBar = true
		default:
			data := make([]opts.LineData, len(s.Data))
			for i, v := range s.Data {
				data[i] = opts.LineData{Value: pointValue(v)}
			}
			line.AddSeries(s.Name, data, seriesOptions(s)...)
			hasLine = true
		}
	}

	if hasBar {
		if hasLine {
			bar.Overlap(line)
		}
		return bar.Render(w)
	}
	line.SetGlobalOptions(globalOptions(option)...)
	return line.Render(w)
}

func renderScatter(option *chartopt.Option, w io.Writer) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(globalOptions(option)...)
	for _, s := range option.Series {
		data := make([]opts.ScatterData, len(s.Pairs))
		for i, p := range s.Pairs {
			data[i] = opts.ScatterData{Value: []interface{}{p[0], p[1]}}
		}
		scatter.AddSeries(s.Name, data, seriesOptions(s)...)
	}
	return scatter.Render(w)
}

// pointValue renders missing buckets the way ECharts expects them: "-".
func pointValue(v *float64) interface{} {
	if v == nil {
		return "-"
	}
	return *v
}
