package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/insightengine/config"
	"github.com/insightlab/insightengine/domain/models"
)

func fp(v float64) *float64 { return &v }

var salesSchema = models.DatasetSchema{Columns: []models.ColumnSchema{
	{Name: "amount", Type: models.TypeNumber},
	{Name: "region", Type: models.TypeCategory},
	{Name: "channel", Type: models.TypeCategory},
}}

func validScenario() models.ScenarioRequest {
	return models.ScenarioRequest{
		TargetMetric:    "amount",
		TargetDimension: "region",
		Aggregation:     models.AggSum,
		Operations: []models.ScenarioOperation{
			{Kind: models.OpMultiplyMetric, Factor: 1.1},
		},
	}
}

func TestValidateScenarioOK(t *testing.T) {
	e := New(config.Default())
	assert.NoError(t, e.ValidateScenario(salesSchema, validScenario()))
}

func TestValidateScenarioAccumulates(t *testing.T) {
	e := New(config.Default())
	req := models.ScenarioRequest{
		TargetMetric:    "region", // not numeric
		TargetDimension: "missing",
		Aggregation:     "median",
		Operations: []models.ScenarioOperation{
			{Kind: models.OpClamp, Min: fp(10), Max: fp(5)},
			{Kind: "bogus"},
		},
	}
	err := e.ValidateScenario(salesSchema, req)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Problems), 5)
	assert.Contains(t, err.Error(), "min 10 exceeds max 5")
}

func TestValidateScenarioOperationCap(t *testing.T) {
	e := New(config.Default())
	req := validScenario()
	for i := 0; i < 4; i++ {
		req.Operations = append(req.Operations, models.ScenarioOperation{Kind: models.OpAddConstant, Constant: 1})
	}
	err := e.ValidateScenario(salesSchema, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 3 operations")
}

func TestValidateScenarioRemoveCategoryNeedsValues(t *testing.T) {
	e := New(config.Default())
	req := validScenario()
	req.Operations = []models.ScenarioOperation{{Kind: models.OpRemoveCategory, Column: "channel"}}
	err := e.ValidateScenario(salesSchema, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one value")
}

func TestSimulatedMetricExprWrapsInOrder(t *testing.T) {
	ops := []models.ScenarioOperation{
		{Kind: models.OpMultiplyMetric, Factor: 2},
		{Kind: models.OpAddConstant, Constant: 5},
		{Kind: models.OpClamp, Min: fp(0), Max: fp(100)},
	}
	expr := simulatedMetricExpr("m", ops)
	assert.Equal(t, "LEAST(GREATEST(((m) * 2) + 5, 0), 100)", expr)
}

func TestSimulatedMetricExprIdentity(t *testing.T) {
	assert.Equal(t, "m", simulatedMetricExpr("m", nil))
}

func TestExclusionPredicatesKeepNulls(t *testing.T) {
	ops := []models.ScenarioOperation{
		{Kind: models.OpMultiplyMetric, Factor: 2},
		{Kind: models.OpRemoveCategory, Column: "region", Values: []string{"North", "O'East"}},
	}
	preds := exclusionPredicates(ops)
	require.Len(t, preds, 1)
	assert.Contains(t, preds[0], `NOT IN ('North', 'O''East')`)
	assert.Contains(t, preds[0], `OR "region" IS NULL`)
}

func TestBuildScenarioSQLShape(t *testing.T) {
	req := validScenario()
	req.Operations = append(req.Operations, models.ScenarioOperation{
		Kind: models.OpRemoveCategory, Column: "channel", Values: []string{"web"},
	})
	req.Filters = []models.ChartFilter{{Column: "amount", Operator: models.OpGt, Values: []string{"0"}}}

	sql, err := BuildScenarioSQL(req, testSource)
	require.NoError(t, err)
	assert.Contains(t, sql, "WITH filtered AS")
	assert.Contains(t, sql, "FULL OUTER JOIN simulated")
	assert.Contains(t, sql, "COALESCE(b.value, 0)")
	// request filters apply to both branches, exclusions only to simulated
	assert.Equal(t, 1, strings.Count(sql, "NOT IN"))
	simulatedPart := sql[strings.Index(sql, "simulated AS"):]
	assert.Contains(t, simulatedPart, "NOT IN ('web')")
}

func TestBuildScenarioSQLDefaultsToSum(t *testing.T) {
	req := validScenario()
	req.Aggregation = models.AggNone
	sql, err := BuildScenarioSQL(req, testSource)
	require.NoError(t, err)
	assert.Contains(t, sql, "sum(")
}

func TestDeltaPoint(t *testing.T) {
	p := deltaPoint("North", 100, 110)
	assert.Equal(t, 10.0, p.Delta)
	require.NotNil(t, p.DeltaPercent)
	assert.InDelta(t, 10.0, *p.DeltaPercent, 1e-9)
}

func TestDeltaPointZeroBaseline(t *testing.T) {
	p := deltaPoint("North", 0, 50)
	assert.Equal(t, 50.0, p.Delta)
	assert.Nil(t, p.DeltaPercent)
}

func TestDeltaPointNegativeBaseline(t *testing.T) {
	// percent is relative to the baseline magnitude
	p := deltaPoint("North", -100, -110)
	require.NotNil(t, p.DeltaPercent)
	assert.InDelta(t, -10.0, *p.DeltaPercent, 1e-9)
}

func TestSummarize(t *testing.T) {
	points := []models.ScenarioDeltaPoint{
		{Delta: 10, DeltaPercent: fp(10)},
		{Delta: -5, DeltaPercent: fp(-5)},
		{Delta: 0},
		{Delta: 50, DeltaPercent: nil}, // zero baseline, excluded from percents
	}
	s := summarize(points)
	assert.Equal(t, 3, s.ChangedPoints)
	assert.InDelta(t, 10.0, s.MaxDeltaPercent, 1e-9)
	assert.InDelta(t, -5.0, s.MinDeltaPercent, 1e-9)
	assert.InDelta(t, 2.5, s.AverageDeltaPercent, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	s := summarize(nil)
	assert.Zero(t, s.ChangedPoints)
	assert.Zero(t, s.AverageDeltaPercent)
}
