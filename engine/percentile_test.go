package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/insightengine/config"
	"github.com/insightlab/insightengine/domain/models"
)

func TestMetricColumn(t *testing.T) {
	line := models.ChartQuery{
		Chart: models.ChartLine,
		X:     models.FieldSpec{Column: "created", Role: models.RoleTime, Bin: models.BinDay},
		Y:     measure("amount", models.AggSum),
	}
	assert.Equal(t, "amount", metricColumn(line))

	hist := models.ChartQuery{
		Chart: models.ChartHistogram,
		X:     *measure("amount", models.AggNone),
	}
	assert.Equal(t, "amount", metricColumn(hist))
}

func TestPercentileKindLevels(t *testing.T) {
	assert.Equal(t, 0.05, models.P05.Level())
	assert.Equal(t, 0.95, models.P95.Level())
	assert.Equal(t, -1.0, models.PercentileKind("p50").Level())
	assert.Len(t, models.Kinds(), 4)
}

func TestQuantileSelectCoversAllLevels(t *testing.T) {
	sel := quantileSelect("v")
	assert.Contains(t, sel, "quantile_cont(v, 0.05) AS p05")
	assert.Contains(t, sel, "quantile_cont(v, 0.1) AS p10")
	assert.Contains(t, sel, "quantile_cont(v, 0.9) AS p90")
	assert.Contains(t, sel, "quantile_cont(v, 0.95) AS p95")
}

func TestComputePercentileViewRejectsNilBase(t *testing.T) {
	e := New(config.Default())
	q := models.ChartQuery{
		Chart: models.ChartLine,
		X:     models.FieldSpec{Column: "created", Role: models.RoleTime, Bin: models.BinDay},
		Y:     measure("amount", models.AggSum),
	}
	_, err := e.ComputePercentileView(context.Background(), testSource, q, nil, models.ModeNone, models.P95)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestComputePercentileViewRejectsUnknownKind(t *testing.T) {
	e := New(config.Default())
	q := models.ChartQuery{Chart: models.ChartLine}
	_, err := e.ComputePercentileView(context.Background(), testSource, q, nil, models.ModeNone, "p42")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	// both problems accumulate in one pass
	assert.Len(t, verr.Problems, 2)
}

func TestResolveModeDefaults(t *testing.T) {
	e := New(config.Default())
	ctx := context.Background()

	line := models.ChartQuery{Chart: models.ChartLine}
	mode, _, err := e.resolveMode(ctx, nil, testSource, line, models.ModeNone)
	require.NoError(t, err)
	assert.Equal(t, models.ModeBucket, mode)

	mode, _, err = e.resolveMode(ctx, nil, testSource, line, models.ModeOverall)
	require.NoError(t, err)
	assert.Equal(t, models.ModeOverall, mode)

	scatter := models.ChartQuery{Chart: models.ChartScatter}
	mode, _, err = e.resolveMode(ctx, nil, testSource, scatter, models.ModeNone)
	require.NoError(t, err)
	assert.Equal(t, models.ModeOverall, mode)

	hist := models.ChartQuery{Chart: models.ChartHistogram}
	mode, _, err = e.resolveMode(ctx, nil, testSource, hist, models.ModeBucket)
	require.NoError(t, err)
	assert.Equal(t, models.ModeOverall, mode)
}

func TestResolveModeUnsupportedChart(t *testing.T) {
	e := New(config.Default())
	mode, reason, err := e.resolveMode(context.Background(), nil, testSource, models.ChartQuery{Chart: "pie"}, models.ModeNone)
	require.NoError(t, err)
	assert.Equal(t, models.ModeNone, mode)
	assert.Contains(t, reason, "not supported")
}
