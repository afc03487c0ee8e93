package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightlab/insightengine/config"
	"github.com/insightlab/insightengine/domain/models"
	"github.com/insightlab/insightengine/engine"
	"github.com/insightlab/insightengine/format"
	"github.com/insightlab/insightengine/schema"
	"github.com/insightlab/insightengine/source"
)

var scenarioFlags struct {
	file      string
	metric    string
	dimension string
	agg       string
	filters   []string
	multiply  float64
	add       float64
	clampMin  string
	clampMax  string
	exclude   []string
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run a what-if simulation against a CSV dataset",
	RunE:  runScenario,
}

func init() {
	f := scenarioCmd.Flags()
	f.StringVar(&scenarioFlags.file, "file", "", "dataset CSV (or .gz/.lz4/.zip)")
	f.StringVar(&scenarioFlags.metric, "metric", "", "numeric target metric column")
	f.StringVar(&scenarioFlags.dimension, "dimension", "", "target dimension column")
	f.StringVar(&scenarioFlags.agg, "agg", "sum", "aggregation")
	f.StringArrayVar(&scenarioFlags.filters, "filter", nil, "filter as column:op:v1,v2 (repeatable)")
	f.Float64Var(&scenarioFlags.multiply, "multiply", 0, "multiply the metric by this factor")
	f.Float64Var(&scenarioFlags.add, "add", 0, "add this constant to the metric")
	f.StringVar(&scenarioFlags.clampMin, "clamp-min", "", "clamp the metric at this lower bound")
	f.StringVar(&scenarioFlags.clampMax, "clamp-max", "", "clamp the metric at this upper bound")
	f.StringArrayVar(&scenarioFlags.exclude, "exclude", nil, "exclude rows as column=v1,v2 (repeatable)")
	scenarioCmd.MarkFlagRequired("file")
	scenarioCmd.MarkFlagRequired("metric")
	scenarioCmd.MarkFlagRequired("dimension")
	rootCmd.AddCommand(scenarioCmd)
}

func buildScenarioRequest(cmd *cobra.Command) (models.ScenarioRequest, error) {
	req := models.ScenarioRequest{
		TargetMetric:    scenarioFlags.metric,
		TargetDimension: scenarioFlags.dimension,
		Aggregation:     models.Aggregation(scenarioFlags.agg),
	}
	for _, raw := range scenarioFlags.filters {
		filter, err := parseFilterFlag(raw)
		if err != nil {
			return req, err
		}
		req.Filters = append(req.Filters, filter)
	}
	if cmd.Flags().Changed("multiply") {
		req.Operations = append(req.Operations, models.ScenarioOperation{
			Kind: models.OpMultiplyMetric, Factor: scenarioFlags.multiply,
		})
	}
	if cmd.Flags().Changed("add") {
		req.Operations = append(req.Operations, models.ScenarioOperation{
			Kind: models.OpAddConstant, Constant: scenarioFlags.add,
		})
	}
	if scenarioFlags.clampMin != "" || scenarioFlags.clampMax != "" {
		op := models.ScenarioOperation{Kind: models.OpClamp}
		var err error
		if op.Min, err = parseBound(scenarioFlags.clampMin); err != nil {
			return req, err
		}
		if op.Max, err = parseBound(scenarioFlags.clampMax); err != nil {
			return req, err
		}
		req.Operations = append(req.Operations, op)
	}
	for _, raw := range scenarioFlags.exclude {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return req, fmt.Errorf("bad exclude %q, want column=v1,v2", raw)
		}
		req.Operations = append(req.Operations, models.ScenarioOperation{
			Kind:   models.OpFilterOut,
			Column: parts[0],
			Values: strings.Split(parts[1], ","),
		})
	}
	return req, nil
}

func parseBound(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("bad clamp bound %q", raw)
	}
	return &v, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	src, err := source.Resolve(scenarioFlags.file)
	if err != nil {
		return err
	}
	datasetSchema, err := schema.InferSchema(src.Path, 0)
	if err != nil {
		return err
	}
	req, err := buildScenarioRequest(cmd)
	if err != nil {
		return err
	}

	eng := engine.New(config.Default())
	resp, err := eng.SimulateScenario(context.Background(), src, datasetSchema, req)
	if err != nil {
		return err
	}
	log.Printf("simulation took %dms: %s", resp.ExecutionTimeMs, resp.GeneratedQueryText)
	fmt.Println(format.ScenarioTable(resp))
	return nil
}
