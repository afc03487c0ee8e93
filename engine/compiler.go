package engine

import (
	"fmt"
	"strings"

	"github.com/pivolan/go_utils"

	"github.com/insightlab/insightengine/domain/models"
)

// SourceExpr addresses the dataset's CSV file directly. Every column comes
// back as VARCHAR so the tolerant cast expressions stay in control of typing.
func SourceExpr(path string) string {
	return fmt.Sprintf("read_csv_auto(%s, all_varchar=TRUE)", QuoteString(path))
}

func aggExpr(agg models.Aggregation, inner string) string {
	switch agg {
	case models.AggSum:
		return fmt.Sprintf("sum(%s)", inner)
	case models.AggAvg:
		return fmt.Sprintf("avg(%s)", inner)
	case models.AggMin:
		return fmt.Sprintf("min(%s)", inner)
	case models.AggMax:
		return fmt.Sprintf("max(%s)", inner)
	case models.AggCount:
		return fmt.Sprintf("count(%s)", inner)
	}
	return inner
}

var validBins = []string{"day", "week", "month", "quarter", "year"}
var validAggs = []string{"sum", "avg", "count", "min", "max"}

// ValidateChartQuery checks the query against its chart family's required
// shape. All problems are accumulated; a mismatch is terminal and nothing is
// ever silently coerced to a default role.
func ValidateChartQuery(q models.ChartQuery) error {
	var problems []string
	switch q.Chart {
	case models.ChartLine:
		if q.X.Role != models.RoleTime {
			problems = append(problems, fmt.Sprintf("time series requires X role %q, got %q", models.RoleTime, q.X.Role))
		}
		if q.X.Bin == models.BinNone {
			problems = append(problems, "time series requires a time bin on X")
		} else if !go_utils.InArray(string(q.X.Bin), validBins) {
			problems = append(problems, fmt.Sprintf("unknown time bin %q", q.X.Bin))
		}
		problems = append(problems, requireMeasureY(q)...)
	case models.ChartBar:
		if q.X.Role != models.RoleCategory {
			problems = append(problems, fmt.Sprintf("bar chart requires X role %q, got %q", models.RoleCategory, q.X.Role))
		}
		problems = append(problems, requireMeasureY(q)...)
	case models.ChartScatter:
		if q.X.Role != models.RoleMeasure {
			problems = append(problems, fmt.Sprintf("scatter requires X role %q, got %q", models.RoleMeasure, q.X.Role))
		}
		if q.Y == nil || q.Y.Role != models.RoleMeasure {
			problems = append(problems, fmt.Sprintf("scatter requires Y role %q", models.RoleMeasure))
		}
		if q.X.Aggregation != models.AggNone || (q.Y != nil && q.Y.Aggregation != models.AggNone) {
			problems = append(problems, "scatter axes must not be aggregated")
		}
	case models.ChartHistogram:
		if q.X.Role != models.RoleMeasure {
			problems = append(problems, fmt.Sprintf("histogram requires X role %q, got %q", models.RoleMeasure, q.X.Role))
		}
		if q.Y != nil {
			problems = append(problems, "histogram takes no Y field")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported chart type %q", q.Chart))
	}
	if q.X.Column == "" {
		problems = append(problems, "X column is required")
	}
	for _, f := range q.Filters {
		if _, err := CompileFilter(f); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return ErrIfAny(problems)
}

func requireMeasureY(q models.ChartQuery) []string {
	var problems []string
	if q.Y == nil {
		return []string{"a measure Y field with an aggregation is required"}
	}
	if q.Y.Role != models.RoleMeasure {
		problems = append(problems, fmt.Sprintf("Y role must be %q, got %q", models.RoleMeasure, q.Y.Role))
	}
	if q.Y.Aggregation == models.AggNone {
		problems = append(problems, "Y aggregation is required")
	} else if !go_utils.InArray(string(q.Y.Aggregation), validAggs) {
		problems = append(problems, fmt.Sprintf("unknown aggregation %q", q.Y.Aggregation))
	}
	if q.Y.Column == "" {
		problems = append(problems, "Y column is required")
	}
	return problems
}

func whereClause(filters []models.ChartFilter, extra ...string) (string, error) {
	parts := append([]string{}, extra...)
	combined, err := CombineFilters(filters)
	if err != nil {
		return "", err
	}
	if combined != "" {
		parts = append(parts, combined)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// CompileTimeSeries emits the bin-truncated aggregate query for a line chart.
func CompileTimeSeries(q models.ChartQuery, source models.DatasetSource) (string, error) {
	dateX := DateExpr(q.X.Column)
	bucket := fmt.Sprintf("CAST(date_trunc('%s', %s) AS VARCHAR)", q.X.Bin, dateX)
	metric := aggExpr(q.Y.Aggregation, NumericExpr(q.Y.Column))

	where, err := whereClause(q.Filters, dateX+" IS NOT NULL")
	if err != nil {
		return "", err
	}

	if q.Series != "" {
		return fmt.Sprintf(
			"SELECT %s AS bucket, CAST(%s AS VARCHAR) AS series, %s AS value FROM %s%s GROUP BY 1, 2 ORDER BY 1, 2",
			bucket, QuoteIdent(q.Series), metric, SourceExpr(source.Path), where), nil
	}
	return fmt.Sprintf(
		"SELECT %s AS bucket, %s AS value FROM %s%s GROUP BY 1 ORDER BY 1",
		bucket, metric, SourceExpr(source.Path), where), nil
}

// CompileBar emits the top-N categorical aggregate. Grouped charts fetch a
// widened row cap so the shaper can pick the top series afterwards; that
// two-stage truncation is a known approximation under heavily skewed data.
func CompileBar(q models.ChartQuery, source models.DatasetSource, topN, groupedFactor int) (string, error) {
	if q.TopN > 0 {
		topN = q.TopN
	}
	metric := aggExpr(q.Y.Aggregation, NumericExpr(q.Y.Column))

	where, err := whereClause(q.Filters)
	if err != nil {
		return "", err
	}

	if q.Series != "" {
		return fmt.Sprintf(
			"SELECT CAST(%s AS VARCHAR) AS category, CAST(%s AS VARCHAR) AS series, %s AS value FROM %s%s GROUP BY 1, 2 ORDER BY value DESC LIMIT %d",
			QuoteIdent(q.X.Column), QuoteIdent(q.Series), metric, SourceExpr(source.Path), where, topN*groupedFactor), nil
	}
	return fmt.Sprintf(
		"SELECT CAST(%s AS VARCHAR) AS category, %s AS value FROM %s%s GROUP BY 1 ORDER BY value DESC LIMIT %d",
		QuoteIdent(q.X.Column), metric, SourceExpr(source.Path), where, topN), nil
}

// CompileScatter emits the capped random projection of two measures. The
// sample is uniform random, not first-N, so file ordering cannot bias it.
func CompileScatter(q models.ChartQuery, source models.DatasetSource, maxPoints int) (string, error) {
	where, err := whereClause(q.Filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"SELECT x, y FROM (SELECT %s AS x, %s AS y FROM %s%s) WHERE x IS NOT NULL AND y IS NOT NULL ORDER BY random() LIMIT %d",
		NumericExpr(q.X.Column), NumericExpr(q.Y.Column), SourceExpr(source.Path), where, maxPoints), nil
}

// CompileHistogramRange is pass one of the histogram: min/max/count of the
// numeric-cast column.
func CompileHistogramRange(q models.ChartQuery, source models.DatasetSource) (string, error) {
	where, err := whereClause(q.Filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"SELECT min(v) AS min_val, max(v) AS max_val, count(v) AS cnt FROM (SELECT %s AS v FROM %s%s) WHERE v IS NOT NULL",
		NumericExpr(q.X.Column), SourceExpr(source.Path), where), nil
}

// CompileHistogramBuckets is pass two: equal-width bucket counts over the
// range pass one reported. Values at the exact max clamp into the last bin.
func CompileHistogramBuckets(q models.ChartQuery, source models.DatasetSource, min, width float64, bins int) (string, error) {
	where, err := whereClause(q.Filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"SELECT LEAST(CAST(floor((v - %s) / %s) AS INTEGER), %d) AS bucket, count(*) AS cnt FROM (SELECT %s AS v FROM %s%s) WHERE v IS NOT NULL GROUP BY 1 ORDER BY 1",
		formatNumber(min), formatNumber(width), bins-1, NumericExpr(q.X.Column), SourceExpr(source.Path), where), nil
}
