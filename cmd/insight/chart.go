package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightlab/insightengine/chartopt"
	"github.com/insightlab/insightengine/config"
	"github.com/insightlab/insightengine/domain/models"
	"github.com/insightlab/insightengine/engine"
	"github.com/insightlab/insightengine/format"
	"github.com/insightlab/insightengine/render"
	"github.com/insightlab/insightengine/source"
)

var chartFlags struct {
	file       string
	chartType  string
	xColumn    string
	xBin       string
	yColumn    string
	yAgg       string
	series     string
	topN       int
	filters    []string
	percentile string
	out        string
}

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Execute a chart query against a CSV dataset",
	RunE:  runChart,
}

func init() {
	f := chartCmd.Flags()
	f.StringVar(&chartFlags.file, "file", "", "dataset CSV (or .gz/.lz4/.zip)")
	f.StringVar(&chartFlags.chartType, "type", "line", "chart type: line, bar, scatter, histogram")
	f.StringVar(&chartFlags.xColumn, "x", "", "X column")
	f.StringVar(&chartFlags.xBin, "bin", "day", "time bin for line charts")
	f.StringVar(&chartFlags.yColumn, "y", "", "Y column")
	f.StringVar(&chartFlags.yAgg, "agg", "sum", "Y aggregation")
	f.StringVar(&chartFlags.series, "series", "", "series breakdown column")
	f.IntVar(&chartFlags.topN, "top-n", 0, "bar chart category limit")
	f.StringArrayVar(&chartFlags.filters, "filter", nil, "filter as column:op:v1,v2 (repeatable)")
	f.StringVar(&chartFlags.percentile, "percentile", "", "overlay percentile: p05, p10, p90, p95")
	f.StringVar(&chartFlags.out, "out", "", "HTML output path")
	chartCmd.MarkFlagRequired("file")
	chartCmd.MarkFlagRequired("x")
	rootCmd.AddCommand(chartCmd)
}

func buildQuery() (models.ChartQuery, error) {
	q := models.ChartQuery{
		Chart:  models.ChartType(chartFlags.chartType),
		Series: chartFlags.series,
		TopN:   chartFlags.topN,
	}
	switch q.Chart {
	case models.ChartLine:
		q.X = models.FieldSpec{Column: chartFlags.xColumn, Role: models.RoleTime, Bin: models.TimeBin(chartFlags.xBin)}
		q.Y = &models.FieldSpec{Column: chartFlags.yColumn, Role: models.RoleMeasure, Aggregation: models.Aggregation(chartFlags.yAgg)}
	case models.ChartBar:
		q.X = models.FieldSpec{Column: chartFlags.xColumn, Role: models.RoleCategory}
		q.Y = &models.FieldSpec{Column: chartFlags.yColumn, Role: models.RoleMeasure, Aggregation: models.Aggregation(chartFlags.yAgg)}
	case models.ChartScatter:
		q.X = models.FieldSpec{Column: chartFlags.xColumn, Role: models.RoleMeasure}
		q.Y = &models.FieldSpec{Column: chartFlags.yColumn, Role: models.RoleMeasure}
	case models.ChartHistogram:
		q.X = models.FieldSpec{Column: chartFlags.xColumn, Role: models.RoleMeasure}
	default:
		return q, fmt.Errorf("unknown chart type %q", chartFlags.chartType)
	}
	for _, raw := range chartFlags.filters {
		filter, err := parseFilterFlag(raw)
		if err != nil {
			return q, err
		}
		q.Filters = append(q.Filters, filter)
	}
	return q, nil
}

// parseFilterFlag reads column:op:v1,v2 with an optional or| prefix.
func parseFilterFlag(raw string) (models.ChartFilter, error) {
	logical := models.LogicalAnd
	if strings.HasPrefix(raw, "or|") {
		logical = models.LogicalOr
		raw = strings.TrimPrefix(raw, "or|")
	}
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return models.ChartFilter{}, fmt.Errorf("bad filter %q, want column:op:values", raw)
	}
	return models.ChartFilter{
		Column:   parts[0],
		Operator: models.FilterOperator(parts[1]),
		Values:   strings.Split(parts[2], ","),
		Logical:  logical,
	}, nil
}

func runChart(cmd *cobra.Command, args []string) error {
	src, err := source.Resolve(chartFlags.file)
	if err != nil {
		return err
	}
	q, err := buildQuery()
	if err != nil {
		return err
	}

	eng := engine.New(config.Default())
	ctx := context.Background()
	result, err := eng.ExecuteChart(ctx, src, q)
	if err != nil {
		return err
	}
	log.Printf("query took %dms over %d rows: %s", result.ExecutionTimeMs, result.RowCount, result.GeneratedQueryText)

	option := result.Option
	if chartFlags.percentile != "" {
		pv, err := eng.ComputePercentileView(ctx, src, q, result, models.ModeNone, models.PercentileKind(chartFlags.percentile))
		if err != nil {
			return err
		}
		if !pv.Supported {
			log.Printf("percentile view unavailable: %s", pv.Reason)
		} else {
			option = pv.Option
		}
	}

	fmt.Println(format.OptionTable(option))
	return writeChart(option)
}

func writeChart(option *chartopt.Option) error {
	out := chartFlags.out
	if out == "" {
		out = filepath.Join(config.GetConfig().OutputDir, "chart.html")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	log.Printf("writing chart to %s", out)
	return render.WriteHTML(option, f)
}
