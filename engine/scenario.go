package engine

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/insightlab/insightengine/domain/models"
)

const deltaEpsilon = 1e-7

// ValidateScenario checks the whole request against the dataset schema and
// the configured limits, accumulating every problem before returning.
func (e *Engine) ValidateScenario(schema models.DatasetSchema, req models.ScenarioRequest) error {
	var problems []string

	metric, ok := schema.Lookup(req.TargetMetric)
	if !ok {
		problems = append(problems, fmt.Sprintf("target metric %q is not a known column", req.TargetMetric))
	} else if metric.Type != models.TypeNumber {
		problems = append(problems, fmt.Sprintf("target metric %q must be numeric, is %s", req.TargetMetric, metric.Type))
	}
	if _, ok := schema.Lookup(req.TargetDimension); !ok {
		problems = append(problems, fmt.Sprintf("target dimension %q is not a known column", req.TargetDimension))
	}
	if req.Aggregation != models.AggNone && !isValidAgg(req.Aggregation) {
		problems = append(problems, fmt.Sprintf("unknown aggregation %q", req.Aggregation))
	}
	if len(req.Operations) > e.cfg.MaxScenarioOperations {
		problems = append(problems, fmt.Sprintf("at most %d operations allowed, got %d", e.cfg.MaxScenarioOperations, len(req.Operations)))
	}
	if len(req.Filters) > e.cfg.MaxScenarioFilters {
		problems = append(problems, fmt.Sprintf("at most %d filters allowed, got %d", e.cfg.MaxScenarioFilters, len(req.Filters)))
	}
	for _, f := range req.Filters {
		if _, err := CompileFilter(f); err != nil {
			problems = append(problems, err.Error())
		}
	}
	for i, op := range req.Operations {
		problems = append(problems, validateOperation(schema, i, op)...)
	}
	return ErrIfAny(problems)
}

func isValidAgg(a models.Aggregation) bool {
	switch a {
	case models.AggSum, models.AggAvg, models.AggCount, models.AggMin, models.AggMax:
		return true
	}
	return false
}

func validateOperation(schema models.DatasetSchema, idx int, op models.ScenarioOperation) []string {
	var problems []string
	at := fmt.Sprintf("operation %d (%s)", idx+1, op.Kind)
	switch op.Kind {
	case models.OpMultiplyMetric:
		if !isFinite(op.Factor) {
			problems = append(problems, at+": factor must be finite")
		}
	case models.OpAddConstant:
		if !isFinite(op.Constant) {
			problems = append(problems, at+": constant must be finite")
		}
	case models.OpClamp:
		if op.Min == nil && op.Max == nil {
			problems = append(problems, at+": at least one bound is required")
		}
		if op.Min != nil && !isFinite(*op.Min) {
			problems = append(problems, at+": min must be finite")
		}
		if op.Max != nil && !isFinite(*op.Max) {
			problems = append(problems, at+": max must be finite")
		}
		if op.Min != nil && op.Max != nil && *op.Min > *op.Max {
			problems = append(problems, fmt.Sprintf("%s: min %g exceeds max %g", at, *op.Min, *op.Max))
		}
	case models.OpRemoveCategory, models.OpFilterOut:
		if op.Column == "" {
			problems = append(problems, at+": a column is required")
		} else if _, ok := schema.Lookup(op.Column); !ok {
			problems = append(problems, fmt.Sprintf("%s: column %q is not a known column", at, op.Column))
		}
		if len(op.Values) == 0 {
			problems = append(problems, at+": at least one value is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("operation %d: unknown kind %q", idx+1, op.Kind))
	}
	return problems
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// simulatedMetricExpr wraps the base metric expression with each arithmetic
// transform in request order.
func simulatedMetricExpr(base string, ops []models.ScenarioOperation) string {
	expr := base
	for _, op := range ops {
		switch op.Kind {
		case models.OpMultiplyMetric:
			expr = fmt.Sprintf("(%s) * %s", expr, formatNumber(op.Factor))
		case models.OpAddConstant:
			expr = fmt.Sprintf("(%s) + %s", expr, formatNumber(op.Constant))
		case models.OpClamp:
			if op.Min != nil {
				expr = fmt.Sprintf("GREATEST(%s, %s)", expr, formatNumber(*op.Min))
			}
			if op.Max != nil {
				expr = fmt.Sprintf("LEAST(%s, %s)", expr, formatNumber(*op.Max))
			}
		}
	}
	return expr
}

// exclusionPredicates turns RemoveCategory/FilterOut operations into the
// predicates applied only to the simulated branch. NULL dimension rows are
// kept: exclusion names concrete values.
func exclusionPredicates(ops []models.ScenarioOperation) []string {
	var preds []string
	for _, op := range ops {
		if op.Kind != models.OpRemoveCategory && op.Kind != models.OpFilterOut {
			continue
		}
		lits := make([]string, len(op.Values))
		for i, v := range op.Values {
			lits[i] = QuoteString(v)
		}
		col := QuoteIdent(op.Column)
		preds = append(preds, fmt.Sprintf("(CAST(%s AS VARCHAR) NOT IN (%s) OR %s IS NULL)",
			col, strings.Join(lits, ", "), col))
	}
	return preds
}

// BuildScenarioSQL compiles baseline and simulated aggregates into one
// combined query. Both branches read the same filtered source; the simulated
// branch adds the exclusion predicates, and a full outer join keeps
// dimension values that appear on only one side.
func BuildScenarioSQL(req models.ScenarioRequest, source models.DatasetSource) (string, error) {
	agg := req.Aggregation
	if agg == models.AggNone {
		agg = models.AggSum
	}
	baseWhere, err := whereClause(req.Filters)
	if err != nil {
		return "", err
	}

	metric := NumericExpr(req.TargetMetric)
	simMetric := simulatedMetricExpr(metric, req.Operations)
	dim := fmt.Sprintf("CAST(%s AS VARCHAR)", QuoteIdent(req.TargetDimension))

	simWhere := ""
	if preds := exclusionPredicates(req.Operations); len(preds) > 0 {
		simWhere = " WHERE " + strings.Join(preds, " AND ")
	}

	return fmt.Sprintf(`WITH filtered AS (
    SELECT * FROM %s%s
),
baseline AS (
    SELECT %s AS dimension, %s AS value FROM filtered GROUP BY 1
),
simulated AS (
    SELECT %s AS dimension, %s AS value FROM filtered%s GROUP BY 1
)
SELECT
    COALESCE(b.dimension, s.dimension) AS dimension,
    COALESCE(b.value, 0) AS baseline,
    COALESCE(s.value, 0) AS simulated
FROM baseline b
FULL OUTER JOIN simulated s ON b.dimension = s.dimension
ORDER BY 1`,
		SourceExpr(source.Path), baseWhere,
		dim, aggExpr(agg, metric),
		dim, aggExpr(agg, simMetric), simWhere), nil
}

// SimulateScenario validates the request, runs the combined query and
// computes per-dimension deltas plus summary statistics.
func (e *Engine) SimulateScenario(ctx context.Context, source models.DatasetSource, schema models.DatasetSchema, req models.ScenarioRequest) (*models.ScenarioResponse, error) {
	if err := e.ValidateScenario(schema, req); err != nil {
		return nil, err
	}

	query, err := BuildScenarioSQL(req, source)
	if err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}

	db, err := openDB()
	if err != nil {
		return nil, execErr("scenario", req.TargetMetric, "cannot open analytic engine", err)
	}
	defer db.Close()

	start := time.Now()
	var points []models.ScenarioDeltaPoint
	if _, err := streamRows(ctx, db, query, func(rows *sql.Rows) error {
		var dimension sql.NullString
		var baseline, simulated float64
		if err := rows.Scan(&dimension, &baseline, &simulated); err != nil {
			return err
		}
		points = append(points, deltaPoint(dimension.String, baseline, simulated))
		return nil
	}); err != nil {
		return nil, execErr("scenario", req.TargetMetric, "simulation query failed", err)
	}

	return &models.ScenarioResponse{
		Points:             points,
		Summary:            summarize(points),
		GeneratedQueryText: query,
		ExecutionTimeMs:    time.Since(start).Milliseconds(),
	}, nil
}

func deltaPoint(dimension string, baseline, simulated float64) models.ScenarioDeltaPoint {
	p := models.ScenarioDeltaPoint{
		Dimension: dimension,
		Baseline:  baseline,
		Simulated: simulated,
		Delta:     simulated - baseline,
	}
	if math.Abs(baseline) >= deltaEpsilon {
		pct := p.Delta / math.Abs(baseline) * 100
		p.DeltaPercent = &pct
	}
	return p
}

func summarize(points []models.ScenarioDeltaPoint) models.ScenarioSummary {
	var s models.ScenarioSummary
	var sum float64
	n := 0
	for _, p := range points {
		if math.Abs(p.Delta) > deltaEpsilon {
			s.ChangedPoints++
		}
		if p.DeltaPercent == nil {
			continue
		}
		pct := *p.DeltaPercent
		if n == 0 || pct > s.MaxDeltaPercent {
			s.MaxDeltaPercent = pct
		}
		if n == 0 || pct < s.MinDeltaPercent {
			s.MinDeltaPercent = pct
		}
		sum += pct
		n++
	}
	if n > 0 {
		s.AverageDeltaPercent = sum / float64(n)
	}
	return s
}
