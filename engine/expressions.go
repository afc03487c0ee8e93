package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/insightlab/insightengine/domain/models"
)

// The expression builder is the only place user-supplied strings may enter
// query text. Identifiers and literals are always escaped by quote doubling;
// no other component interpolates raw input.

// QuoteIdent escapes a column name for embedding as a double-quoted
// identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString escapes a value for embedding as a single-quoted literal.
func QuoteString(v string) string {
	return `'` + strings.ReplaceAll(v, `'`, `''`) + `'`
}

// NumericExpr is the tolerant numeric cast of a raw varchar column: thousands
// separators and padding are stripped before the cast, unparseable values
// become NULL.
func NumericExpr(column string) string {
	return fmt.Sprintf("TRY_CAST(replace(trim(%s), ',', '') AS DOUBLE)", QuoteIdent(column))
}

// Date formats tried in fixed priority order. Ambiguous inputs such as
// 01/02/2024 resolve by this order, not by locale detection.
var dateFormats = []string{"%d/%m/%Y", "%m/%d/%Y", "%Y%m%d"}

// DateExpr coalesces the multi-format date parse of a raw varchar column.
// ISO forms are handled by the direct timestamp cast, the remaining formats
// by try_strptime in priority order.
func DateExpr(column string) string {
	col := QuoteIdent(column)
	parts := []string{fmt.Sprintf("TRY_CAST(%s AS TIMESTAMP)", col)}
	for _, f := range dateFormats {
		parts = append(parts, fmt.Sprintf("try_strptime(%s, '%s')", col, f))
	}
	return "COALESCE(" + strings.Join(parts, ", ") + ")"
}

// value-domain classification: numeric first, then date, then string literal

// parseNumericValues parses every value as a number, tolerating either '.'
// or ',' as a decimal separator, applied consistently over the whole list.
func parseNumericValues(values []string) ([]float64, bool) {
	out, ok := parseNumericPass(values, false)
	if ok {
		return out, true
	}
	return parseNumericPass(values, true)
}

func parseNumericPass(values []string, commaDecimal bool) ([]float64, bool) {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		s := strings.TrimSpace(v)
		if commaDecimal {
			s = strings.ReplaceAll(s, ",", ".")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// Go-side layouts matching DateExpr, in the same priority order. Day-first
// layouts form the first culture pass, month-first the second.
var dateLayoutPasses = [][]string{
	{"2006-01-02 15:04:05", "2006-01-02", "02/01/2006"},
	{"01/02/2006", "20060102"},
}

func parseDateValue(v string) (time.Time, bool) {
	s := strings.TrimSpace(v)
	for _, pass := range dateLayoutPasses {
		for _, layout := range pass {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func parseDateValues(values []string) ([]time.Time, bool) {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		t, ok := parseDateValue(v)
		if !ok {
			return nil, false
		}
		out = append(out, t)
	}
	return out, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatTimestamp(t time.Time) string {
	return "TIMESTAMP " + QuoteString(t.Format("2006-01-02 15:04:05"))
}

var comparisonSQL = map[models.FilterOperator]string{
	models.OpEq:    "=",
	models.OpNotEq: "<>",
	models.OpGt:    ">",
	models.OpGte:   ">=",
	models.OpLt:    "<",
	models.OpLte:   "<=",
}

// CompileFilter turns one ChartFilter into a parenthesized predicate
// fragment. All values must classify into the same domain; classification
// tries numeric, then date, then falls back to escaped string literals.
func CompileFilter(f models.ChartFilter) (string, error) {
	if f.Column == "" {
		return "", fmt.Errorf("filter has no column")
	}
	if len(f.Values) == 0 {
		return "", fmt.Errorf("filter on %q has no values", f.Column)
	}
	if f.Operator == models.OpBetween && len(f.Values)%2 != 0 {
		return "", fmt.Errorf("between filter on %q needs an even value count, got %d", f.Column, len(f.Values))
	}

	if nums, ok := parseNumericValues(f.Values); ok {
		return numericPredicate(f, nums)
	}
	if dates, ok := parseDateValues(f.Values); ok {
		return datePredicate(f, dates)
	}
	return stringPredicate(f)
}

func numericPredicate(f models.ChartFilter, nums []float64) (string, error) {
	lhs := NumericExpr(f.Column)
	switch f.Operator {
	case models.OpIn:
		lits := make([]string, len(nums))
		for i, n := range nums {
			lits[i] = formatNumber(n)
		}
		return fmt.Sprintf("(%s IN (%s))", lhs, strings.Join(lits, ", ")), nil
	case models.OpBetween:
		return betweenPairs(lhs, nums, formatNumber), nil
	case models.OpContains:
		// substring match always works on the string form of the column
		return containsPredicate(f)
	default:
		op, ok := comparisonSQL[f.Operator]
		if !ok {
			return "", fmt.Errorf("unsupported operator %q on %q", f.Operator, f.Column)
		}
		return fmt.Sprintf("(%s %s %s)", lhs, op, formatNumber(nums[0])), nil
	}
}

func datePredicate(f models.ChartFilter, dates []time.Time) (string, error) {
	lhs := DateExpr(f.Column)
	switch f.Operator {
	case models.OpIn:
		lits := make([]string, len(dates))
		for i, d := range dates {
			lits[i] = formatTimestamp(d)
		}
		return fmt.Sprintf("(%s IN (%s))", lhs, strings.Join(lits, ", ")), nil
	case models.OpBetween:
		return betweenPairs(lhs, dates, formatTimestamp), nil
	case models.OpContains:
		return containsPredicate(f)
	default:
		op, ok := comparisonSQL[f.Operator]
		if !ok {
			return "", fmt.Errorf("unsupported operator %q on %q", f.Operator, f.Column)
		}
		return fmt.Sprintf("(%s %s %s)", lhs, op, formatTimestamp(dates[0])), nil
	}
}

func stringPredicate(f models.ChartFilter) (string, error) {
	lhs := QuoteIdent(f.Column)
	switch f.Operator {
	case models.OpIn:
		lits := make([]string, len(f.Values))
		for i, v := range f.Values {
			lits[i] = QuoteString(v)
		}
		return fmt.Sprintf("(%s IN (%s))", lhs, strings.Join(lits, ", ")), nil
	case models.OpBetween:
		return betweenPairs(lhs, f.Values, QuoteString), nil
	case models.OpContains:
		return containsPredicate(f)
	default:
		op, ok := comparisonSQL[f.Operator]
		if !ok {
			return "", fmt.Errorf("unsupported operator %q on %q", f.Operator, f.Column)
		}
		return fmt.Sprintf("(%s %s %s)", lhs, op, QuoteString(f.Values[0])), nil
	}
}

func containsPredicate(f models.ChartFilter) (string, error) {
	lhs := fmt.Sprintf("lower(CAST(%s AS VARCHAR))", QuoteIdent(f.Column))
	lit := QuoteString(strings.ToLower(f.Values[0]))
	return fmt.Sprintf("(contains(%s, %s))", lhs, lit), nil
}

// betweenPairs consumes the flat value list two at a time, OR-combining each
// (min,max) range. Four values deliberately produce two independent ranges,
// never one collapsed range: the range-selection UI depends on it.
func betweenPairs[T any](lhs string, vals []T, lit func(T) string) string {
	ranges := make([]string, 0, len(vals)/2)
	for i := 0; i+1 < len(vals); i += 2 {
		ranges = append(ranges, fmt.Sprintf("(%s BETWEEN %s AND %s)", lhs, lit(vals[i]), lit(vals[i+1])))
	}
	return "(" + strings.Join(ranges, " OR ") + ")"
}

// CombineFilters folds filters left to right into one predicate. Each
// filter's own logical operator joins it to the accumulated expression; the
// first filter's operator has nothing to combine with and is ignored.
func CombineFilters(filters []models.ChartFilter) (string, error) {
	acc := ""
	for _, f := range filters {
		frag, err := CompileFilter(f)
		if err != nil {
			return "", err
		}
		if frag == "" {
			continue
		}
		if acc == "" {
			acc = frag
			continue
		}
		op := "AND"
		if f.Logical == models.LogicalOr {
			op = "OR"
		}
		acc = fmt.Sprintf("(%s %s %s)", acc, op, frag)
	}
	return acc, nil
}
