package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/insightlab/insightengine/chartopt"
	"github.com/insightlab/insightengine/domain/models"
)

// PercentileResult describes the outcome of a percentile view request. When
// the chart family cannot carry a percentile overlay, Supported is false and
// Reason says why, with the base chart left untouched.
type PercentileResult struct {
	Supported          bool
	Mode               models.PercentileMode
	Reason             string
	Option             *chartopt.Option
	Levels             map[models.PercentileKind]float64
	GeneratedQueryText string
}

// metricColumn is the column quantiles are computed over: the binned metric
// for histograms, the Y measure otherwise.
func metricColumn(q models.ChartQuery) string {
	if q.Chart == models.ChartHistogram {
		return q.X.Column
	}
	if q.Y != nil {
		return q.Y.Column
	}
	return q.X.Column
}

// resolveMode decides bucket vs overall per chart family. Bar charts without
// an explicit request are probed: bucket mode needs at least one category
// with more than one row behind it.
func (e *Engine) resolveMode(ctx context.Context, db *sql.DB, source models.DatasetSource, q models.ChartQuery, requested models.PercentileMode) (models.PercentileMode, string, error) {
	switch q.Chart {
	case models.ChartLine:
		if requested == models.ModeOverall {
			return models.ModeOverall, "", nil
		}
		return models.ModeBucket, "", nil
	case models.ChartBar:
		if requested == models.ModeBucket || requested == models.ModeOverall {
			return requested, "", nil
		}
		multi, err := e.probeMultiRowBuckets(ctx, db, source, q)
		if err != nil {
			return models.ModeNone, "", err
		}
		if multi {
			return models.ModeBucket, "", nil
		}
		return models.ModeOverall, "every category holds a single row, falling back to the overall percentile", nil
	case models.ChartScatter, models.ChartHistogram:
		return models.ModeOverall, "", nil
	}
	return models.ModeNone, fmt.Sprintf("percentile views are not supported on %q charts", q.Chart), nil
}

func (e *Engine) probeMultiRowBuckets(ctx context.Context, db *sql.DB, source models.DatasetSource, q models.ChartQuery) (bool, error) {
	where, err := whereClause(q.Filters)
	if err != nil {
		return false, err
	}
	probe := fmt.Sprintf(
		"SELECT count(*) FROM (SELECT CAST(%s AS VARCHAR) AS c FROM %s%s GROUP BY 1 HAVING count(*) > 1)",
		QuoteIdent(q.X.Column), SourceExpr(source.Path), where)
	var multi int64
	if _, err := streamRows(ctx, db, probe, func(rows *sql.Rows) error {
		return rows.Scan(&multi)
	}); err != nil {
		return false, execErr(string(q.Chart), q.X.Column, "bucket probe failed", err)
	}
	return multi > 0, nil
}

// ComputePercentileView resolves the percentile mode for the chart, runs the
// quantile queries and overlays the result onto a deep copy of the base
// chart option. The cached base result is never mutated.
func (e *Engine) ComputePercentileView(ctx context.Context, source models.DatasetSource, q models.ChartQuery, base *ExecutionResult, requested models.PercentileMode, kind models.PercentileKind) (*PercentileResult, error) {
	var problems []string
	if base == nil || base.Option == nil {
		problems = append(problems, "a base chart result is required")
	}
	if kind.Level() < 0 {
		problems = append(problems, fmt.Sprintf("unknown percentile kind %q", kind))
	}
	if err := ErrIfAny(problems); err != nil {
		return nil, err
	}

	db, err := openDB()
	if err != nil {
		return nil, execErr(string(q.Chart), metricColumn(q), "cannot open analytic engine", err)
	}
	defer db.Close()

	mode, reason, err := e.resolveMode(ctx, db, source, q, requested)
	if err != nil {
		return nil, err
	}
	if mode == models.ModeNone {
		return &PercentileResult{Supported: false, Reason: reason}, nil
	}

	if mode == models.ModeOverall {
		return e.overallPercentile(ctx, db, source, q, base, kind, reason)
	}
	return e.bucketPercentile(ctx, db, source, q, base, kind)
}

func quantileSelect(v string) string {
	parts := make([]string, 0, 4)
	for _, k := range models.Kinds() {
		parts = append(parts, fmt.Sprintf("quantile_cont(%s, %s) AS %s", v, formatNumber(k.Level()), k))
	}
	return strings.Join(parts, ", ")
}

func (e *Engine) overallPercentile(ctx context.Context, db *sql.DB, source models.DatasetSource, q models.ChartQuery, base *ExecutionResult, kind models.PercentileKind, reason string) (*PercentileResult, error) {
	where, err := whereClause(q.Filters)
	if err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	// all four levels come back in one pass so the UI can switch between
	// them without re-querying
	query := fmt.Sprintf(
		"SELECT %s FROM (SELECT %s AS v FROM %s%s) WHERE v IS NOT NULL",
		quantileSelect("v"), NumericExpr(metricColumn(q)), SourceExpr(source.Path), where)

	var p05, p10, p90, p95 sql.NullFloat64
	n, err := streamRows(ctx, db, query, func(rows *sql.Rows) error {
		return rows.Scan(&p05, &p10, &p90, &p95)
	})
	if err != nil {
		return nil, execErr(string(q.Chart), metricColumn(q), "quantile query failed", err)
	}
	if n == 0 || !p05.Valid {
		return &PercentileResult{Supported: false, Reason: "no numeric values to rank", GeneratedQueryText: query}, nil
	}

	levels := map[models.PercentileKind]float64{
		models.P05: p05.Float64,
		models.P10: p10.Float64,
		models.P90: p90.Float64,
		models.P95: p95.Float64,
	}
	value := levels[kind]

	option := base.Option.Clone()
	label := strings.ToUpper(string(kind))
	if q.Chart == models.ChartHistogram {
		if option.Title == nil {
			option.Title = &chartopt.Title{}
		}
		option.Title.Subtext = fmt.Sprintf("%s(%s) = %.4g", label, metricColumn(q), value)
	} else if len(option.Series) > 0 {
		option.Series[0].MarkLine = &chartopt.MarkLine{
			Items: []chartopt.MarkLineItem{{Name: label, YAxis: value}},
		}
	}

	return &PercentileResult{
		Supported:          true,
		Mode:               models.ModeOverall,
		Reason:             reason,
		Option:             option,
		Levels:             levels,
		GeneratedQueryText: query,
	}, nil
}

func (e *Engine) bucketPercentile(ctx context.Context, db *sql.DB, source models.DatasetSource, q models.ChartQuery, base *ExecutionResult, kind models.PercentileKind) (*PercentileResult, error) {
	where, err := whereClause(q.Filters)
	if err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}

	var bucketExpr string
	if q.Chart == models.ChartLine {
		bucketExpr = fmt.Sprintf("CAST(date_trunc('%s', %s) AS VARCHAR)", q.X.Bin, DateExpr(q.X.Column))
	} else {
		bucketExpr = fmt.Sprintf("CAST(%s AS VARCHAR)", QuoteIdent(q.X.Column))
	}

	query := fmt.Sprintf(
		"SELECT bucket, %s FROM (SELECT %s AS bucket, %s AS v FROM %s%s) WHERE v IS NOT NULL GROUP BY bucket",
		quantileSelect("v"), bucketExpr, NumericExpr(metricColumn(q)), SourceExpr(source.Path), where)

	values := map[string]float64{}
	if _, err := streamRows(ctx, db, query, func(rows *sql.Rows) error {
		var bucket sql.NullString
		var p05, p10, p90, p95 sql.NullFloat64
		if err := rows.Scan(&bucket, &p05, &p10, &p90, &p95); err != nil {
			return err
		}
		picked := map[models.PercentileKind]sql.NullFloat64{
			models.P05: p05, models.P10: p10, models.P90: p90, models.P95: p95,
		}[kind]
		if !picked.Valid {
			return nil
		}
		key := bucket.String
		if q.Chart == models.ChartLine {
			t, err := parseBucket(bucket.String)
			if err != nil {
				return err
			}
			key = BucketLabel(t, q.X.Bin)
		}
		values[key] = picked.Float64
		return nil
	}); err != nil {
		return nil, execErr(string(q.Chart), metricColumn(q), "bucket quantile query failed", err)
	}

	option := base.Option.Clone()
	label := strings.ToUpper(string(kind))

	// align to the base chart's existing axis: buckets the percentile query
	// did not return become explicit nulls
	var axis []string
	if option.XAxis != nil {
		axis = option.XAxis.Data
	}
	overlay := chartopt.Series{
		Name:   label,
		Type:   "line",
		Dashed: true,
		Data:   AlignToAxis(axis, values, false),
	}
	option.Series = append(option.Series, overlay)
	if option.Legend != nil {
		option.Legend.Data = append(option.Legend.Data, label)
	}

	return &PercentileResult{
		Supported:          true,
		Mode:               models.ModeBucket,
		Option:             option,
		GeneratedQueryText: query,
	}, nil
}
