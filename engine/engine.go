// Package engine turns declarative chart and scenario specifications into
// parameterized analytic SQL over per-dataset CSV sources, executes them
// against embedded DuckDB, and shapes the raw rows into renderable chart
// structures.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/insightlab/insightengine/chartopt"
	"github.com/insightlab/insightengine/config"
	"github.com/insightlab/insightengine/domain/models"
)

// Engine compiles and executes chart, percentile and scenario requests. It
// holds no per-request state and is safe for concurrent use.
type Engine struct {
	cfg config.Settings
}

// New builds an engine with normalized settings.
func New(cfg config.Settings) *Engine {
	return &Engine{cfg: cfg.Normalize()}
}

// ExecutionResult is created fresh per execution and never mutated after
// return; external caching keys it by Fingerprint.
type ExecutionResult struct {
	RequestID          string
	Option             *chartopt.Option
	ExecutionTimeMs    int64
	GeneratedQueryText string
	RowCount           int
}

// ExecuteChart validates, compiles and runs one chart query end to end.
// Validation failures return *ValidationError before anything executes.
func (e *Engine) ExecuteChart(ctx context.Context, source models.DatasetSource, q models.ChartQuery) (*ExecutionResult, error) {
	if err := ValidateChartQuery(q); err != nil {
		return nil, err
	}

	db, err := openDB()
	if err != nil {
		return nil, execErr(string(q.Chart), q.X.Column, "cannot open analytic engine", err)
	}
	defer db.Close()

	start := time.Now()
	var (
		option    *chartopt.Option
		queryText string
		rowCount  int
	)
	switch q.Chart {
	case models.ChartLine:
		option, queryText, rowCount, err = e.runTimeSeries(ctx, db, source, q)
	case models.ChartBar:
		option, queryText, rowCount, err = e.runBar(ctx, db, source, q)
	case models.ChartScatter:
		option, queryText, rowCount, err = e.runScatter(ctx, db, source, q)
	case models.ChartHistogram:
		option, queryText, rowCount, err = e.runHistogram(ctx, db, source, q)
	}
	if err != nil {
		return nil, err
	}

	return &ExecutionResult{
		RequestID:          uuid.NewV4().String(),
		Option:             option,
		ExecutionTimeMs:    time.Since(start).Milliseconds(),
		GeneratedQueryText: queryText,
		RowCount:           rowCount,
	}, nil
}

func (e *Engine) runTimeSeries(ctx context.Context, db *sql.DB, source models.DatasetSource, q models.ChartQuery) (*chartopt.Option, string, int, error) {
	query, err := CompileTimeSeries(q, source)
	if err != nil {
		return nil, "", 0, &ValidationError{Problems: []string{err.Error()}}
	}

	var points []TimePoint
	n, err := streamRows(ctx, db, query, func(rows *sql.Rows) error {
		var (
			bucket string
			series sql.NullString
			value  sql.NullFloat64
		)
		if q.Series != "" {
			if err := rows.Scan(&bucket, &series, &value); err != nil {
				return err
			}
		} else if err := rows.Scan(&bucket, &value); err != nil {
			return err
		}
		if !value.Valid {
			return nil
		}
		t, err := parseBucket(bucket)
		if err != nil {
			return err
		}
		points = append(points, TimePoint{Bucket: t, Series: series.String, Value: value.Float64})
		return nil
	})
	if err != nil {
		return nil, "", 0, execErr(string(q.Chart), q.X.Column, "time series query failed", err)
	}

	option := e.buildTimeSeriesOption(q, points)
	return option, query, n, nil
}

func (e *Engine) buildTimeSeriesOption(q models.ChartQuery, points []TimePoint) *chartopt.Option {
	seen := map[time.Time]bool{}
	var buckets []time.Time
	for _, p := range points {
		if !seen[p.Bucket] {
			seen[p.Bucket] = true
			buckets = append(buckets, p.Bucket)
		}
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })
	buckets = CompleteTimeline(buckets, q.X.Bin, e.cfg.GapFill)

	labels := make([]string, len(buckets))
	for i, b := range buckets {
		labels[i] = BucketLabel(b, q.X.Bin)
	}

	perSeries := map[string]map[string]float64{}
	var seriesNames []string
	for _, p := range points {
		m, ok := perSeries[p.Series]
		if !ok {
			m = map[string]float64{}
			perSeries[p.Series] = m
			seriesNames = append(seriesNames, p.Series)
		}
		m[BucketLabel(p.Bucket, q.X.Bin)] = p.Value
	}
	sort.Strings(seriesNames)

	axis := Downsample(labels, e.cfg.MaxChartPoints)
	option := &chartopt.Option{
		Title: &chartopt.Title{Text: chartTitle(q)},
		XAxis: &chartopt.Axis{Type: "category", Name: q.X.Column, Data: axis},
		YAxis: &chartopt.Axis{Type: "value", Name: yAxisName(q)},
	}
	for _, name := range seriesNames {
		data := AlignToAxis(labels, perSeries[name], e.cfg.GapFill == config.GapFillZero)
		data = Downsample(data, e.cfg.MaxChartPoints)
		label := name
		if label == "" {
			label = yAxisName(q)
		}
		option.Series = append(option.Series, chartopt.Series{Name: label, Type: "line", Data: data})
	}
	if len(seriesNames) > 1 {
		option.Legend = legendFor(option.Series)
	}
	return option
}

func (e *Engine) runBar(ctx context.Context, db *sql.DB, source models.DatasetSource, q models.ChartQuery) (*chartopt.Option, string, int, error) {
	query, err := CompileBar(q, source, e.cfg.DefaultTopN, e.cfg.GroupedTopNFactor)
	if err != nil {
		return nil, "", 0, &ValidationError{Problems: []string{err.Error()}}
	}

	var points []CategoryPoint
	n, err := streamRows(ctx, db, query, func(rows *sql.Rows) error {
		var (
			category sql.NullString
			series   sql.NullString
			value    sql.NullFloat64
		)
		if q.Series != "" {
			if err := rows.Scan(&category, &series, &value); err != nil {
				return err
			}
		} else if err := rows.Scan(&category, &value); err != nil {
			return err
		}
		if !value.Valid {
			return nil
		}
		points = append(points, CategoryPoint{Category: category.String, Series: series.String, Value: value.Float64})
		return nil
	})
	if err != nil {
		return nil, "", 0, execErr(string(q.Chart), q.X.Column, "categorical query failed", err)
	}

	option := e.buildBarOption(q, points)
	return option, query, n, nil
}

func (e *Engine) buildBarOption(q models.ChartQuery, points []CategoryPoint) *chartopt.Option {
	topN := q.TopN
	if topN <= 0 {
		topN = e.cfg.DefaultTopN
	}

	option := &chartopt.Option{
		Title: &chartopt.Title{Text: chartTitle(q)},
		YAxis: &chartopt.Axis{Type: "value", Name: yAxisName(q)},
	}

	if q.Series == "" {
		var categories []string
		var data []*float64
		for _, p := range points {
			v := p.Value
			categories = append(categories, p.Category)
			data = append(data, &v)
		}
		option.XAxis = &chartopt.Axis{Type: "category", Name: q.X.Column, Data: categories}
		option.Series = []chartopt.Series{{Name: yAxisName(q), Type: "bar", Data: data}}
		return option
	}

	kept := TopSeriesByTotal(points, e.cfg.MaxSeriesCount)
	keptSet := map[string]bool{}
	for _, name := range kept {
		keptSet[name] = true
	}

	// category order by total over the kept series, strongest first
	totals := map[string]float64{}
	var categories []string
	perSeries := map[string]map[string]float64{}
	for _, p := range points {
		if !keptSet[p.Series] {
			continue
		}
		if _, ok := totals[p.Category]; !ok {
			categories = append(categories, p.Category)
		}
		totals[p.Category] += p.Value
		m, ok := perSeries[p.Series]
		if !ok {
			m = map[string]float64{}
			perSeries[p.Series] = m
		}
		m[p.Category] = p.Value
	}
	sort.Slice(categories, func(i, j int) bool {
		if totals[categories[i]] != totals[categories[j]] {
			return totals[categories[i]] > totals[categories[j]]
		}
		return categories[i] < categories[j]
	})
	if len(categories) > topN {
		categories = categories[:topN]
	}

	option.XAxis = &chartopt.Axis{Type: "category", Name: q.X.Column, Data: categories}
	for _, name := range kept {
		option.Series = append(option.Series, chartopt.Series{
			Name: name,
			Type: "bar",
			Data: AlignToAxis(categories, perSeries[name], true),
		})
	}
	option.Legend = legendFor(option.Series)
	return option
}

func (e *Engine) runScatter(ctx context.Context, db *sql.DB, source models.DatasetSource, q models.ChartQuery) (*chartopt.Option, string, int, error) {
	query, err := CompileScatter(q, source, e.cfg.MaxScatterPoints)
	if err != nil {
		return nil, "", 0, &ValidationError{Problems: []string{err.Error()}}
	}

	var pairs [][2]float64
	n, err := streamRows(ctx, db, query, func(rows *sql.Rows) error {
		var x, y float64
		if err := rows.Scan(&x, &y); err != nil {
			return err
		}
		pairs = append(pairs, [2]float64{x, y})
		return nil
	})
	if err != nil {
		return nil, "", 0, execErr(string(q.Chart), q.X.Column, "scatter query failed", err)
	}

	option := &chartopt.Option{
		Title: &chartopt.Title{Text: chartTitle(q)},
		XAxis: &chartopt.Axis{Type: "value", Name: q.X.Column},
		YAxis: &chartopt.Axis{Type: "value", Name: q.Y.Column},
		Series: []chartopt.Series{{
			Name:  fmt.Sprintf("%s vs %s", q.Y.Column, q.X.Column),
			Type:  "scatter",
			Pairs: pairs,
		}},
	}
	return option, query, n, nil
}

func (e *Engine) runHistogram(ctx context.Context, db *sql.DB, source models.DatasetSource, q models.ChartQuery) (*chartopt.Option, string, int, error) {
	rangeQuery, err := CompileHistogramRange(q, source)
	if err != nil {
		return nil, "", 0, &ValidationError{Problems: []string{err.Error()}}
	}

	var (
		minVal, maxVal sql.NullFloat64
		total          int64
	)
	if _, err := streamRows(ctx, db, rangeQuery, func(rows *sql.Rows) error {
		return rows.Scan(&minVal, &maxVal, &total)
	}); err != nil {
		return nil, "", 0, execErr(string(q.Chart), q.X.Column, "histogram range query failed", err)
	}

	bins := e.cfg.HistogramBins
	queryText := rangeQuery

	// degenerate inputs fall back explicitly instead of failing
	if total == 0 || !minVal.Valid {
		option := e.buildHistogramOption(q, nil)
		option.Title.Subtext = "no numeric values"
		return option, queryText, 0, nil
	}
	if maxVal.Float64-minVal.Float64 < 1e-4 {
		single := []HistogramBin{{From: minVal.Float64, To: minVal.Float64, Count: 1}}
		return e.buildHistogramOption(q, single), queryText, 1, nil
	}

	width := (maxVal.Float64 - minVal.Float64) / float64(bins)
	bucketQuery, err := CompileHistogramBuckets(q, source, minVal.Float64, width, bins)
	if err != nil {
		return nil, "", 0, &ValidationError{Problems: []string{err.Error()}}
	}
	queryText = rangeQuery + ";\n" + bucketQuery

	counts := make([]int64, bins)
	n, err := streamRows(ctx, db, bucketQuery, func(rows *sql.Rows) error {
		var bucket int
		var cnt int64
		if err := rows.Scan(&bucket, &cnt); err != nil {
			return err
		}
		if bucket >= 0 && bucket < bins {
			counts[bucket] = cnt
		}
		return nil
	})
	if err != nil {
		return nil, "", 0, execErr(string(q.Chart), q.X.Column, "histogram bucket query failed", err)
	}

	// every bin in [min,max] is present, zero counts included
	binsOut := make([]HistogramBin, bins)
	for i := range binsOut {
		binsOut[i] = HistogramBin{
			From:  minVal.Float64 + float64(i)*width,
			To:    minVal.Float64 + float64(i+1)*width,
			Count: counts[i],
		}
	}
	return e.buildHistogramOption(q, binsOut), queryText, n, nil
}

func (e *Engine) buildHistogramOption(q models.ChartQuery, bins []HistogramBin) *chartopt.Option {
	labels := make([]string, 0, len(bins))
	data := make([]*float64, 0, len(bins))
	for _, b := range bins {
		if b.From == b.To {
			labels = append(labels, fmt.Sprintf("%.4g", b.From))
		} else {
			labels = append(labels, fmt.Sprintf("%.4g-%.4g", b.From, b.To))
		}
		v := float64(b.Count)
		data = append(data, &v)
	}
	return &chartopt.Option{
		Title: &chartopt.Title{Text: fmt.Sprintf("Distribution of %s", q.X.Column)},
		XAxis: &chartopt.Axis{Type: "category", Name: q.X.Column, Data: labels},
		YAxis: &chartopt.Axis{Type: "value", Name: "count"},
		Series: []chartopt.Series{{
			Name: "count",
			Type: "bar",
			Data: data,
		}},
	}
}

func chartTitle(q models.ChartQuery) string {
	if q.Y != nil && q.Y.Column != "" {
		return fmt.Sprintf("%s by %s", yAxisName(q), q.X.Column)
	}
	return q.X.Column
}

func yAxisName(q models.ChartQuery) string {
	if q.Y == nil {
		return ""
	}
	if q.Y.Aggregation == models.AggNone {
		return q.Y.Column
	}
	return fmt.Sprintf("%s(%s)", q.Y.Aggregation, q.Y.Column)
}

func legendFor(series []chartopt.Series) *chartopt.Legend {
	names := make([]string, 0, len(series))
	for _, s := range series {
		names = append(names, s.Name)
	}
	return &chartopt.Legend{Show: true, Data: names}
}
