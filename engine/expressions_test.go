package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/insightengine/domain/models"
)

func TestCompileFilterNumericDomain(t *testing.T) {
	f := models.ChartFilter{Column: "price", Operator: models.OpGt, Values: []string{"10.5"}}
	frag, err := CompileFilter(f)
	require.NoError(t, err)
	assert.Contains(t, frag, "TRY_CAST")
	assert.Contains(t, frag, `"price"`)
	assert.Contains(t, frag, "> 10.5")
	assert.NotContains(t, frag, "'10.5'")
}

func TestCompileFilterCommaDecimal(t *testing.T) {
	f := models.ChartFilter{Column: "price", Operator: models.OpIn, Values: []string{"10,5", "12,25"}}
	frag, err := CompileFilter(f)
	require.NoError(t, err)
	assert.Contains(t, frag, "10.5")
	assert.Contains(t, frag, "12.25")
	assert.Contains(t, frag, "TRY_CAST")
}

func TestCompileFilterDateDomain(t *testing.T) {
	f := models.ChartFilter{Column: "created", Operator: models.OpGte, Values: []string{"2024-01-15"}}
	frag, err := CompileFilter(f)
	require.NoError(t, err)
	assert.Contains(t, frag, "COALESCE")
	assert.Contains(t, frag, "try_strptime")
	assert.Contains(t, frag, "TIMESTAMP '2024-01-15 00:00:00'")
}

func TestCompileFilterStringFallback(t *testing.T) {
	f := models.ChartFilter{Column: "region", Operator: models.OpEq, Values: []string{"North"}}
	frag, err := CompileFilter(f)
	require.NoError(t, err)
	assert.Equal(t, `("region" = 'North')`, frag)
}

func TestCompileFilterMixedValuesFallToString(t *testing.T) {
	// one non-numeric value forces the whole list into the string domain
	f := models.ChartFilter{Column: "code", Operator: models.OpIn, Values: []string{"10", "abc"}}
	frag, err := CompileFilter(f)
	require.NoError(t, err)
	assert.Contains(t, frag, "'10'")
	assert.Contains(t, frag, "'abc'")
	assert.NotContains(t, frag, "TRY_CAST")
}

func TestBetweenPairing(t *testing.T) {
	f := models.ChartFilter{Column: "v", Operator: models.OpBetween, Values: []string{"1", "5", "10", "20"}}
	frag, err := CompileFilter(f)
	require.NoError(t, err)
	// two independent OR-ed ranges, never one collapsed [1,20] range
	assert.Equal(t, 2, strings.Count(frag, "BETWEEN"))
	assert.Contains(t, frag, "BETWEEN 1 AND 5")
	assert.Contains(t, frag, "BETWEEN 10 AND 20")
	assert.Contains(t, frag, " OR ")
}

func TestBetweenOddValueCount(t *testing.T) {
	f := models.ChartFilter{Column: "v", Operator: models.OpBetween, Values: []string{"1", "5", "10"}}
	_, err := CompileFilter(f)
	assert.Error(t, err)
}

func TestContainsIsCaseInsensitive(t *testing.T) {
	f := models.ChartFilter{Column: "name", Operator: models.OpContains, Values: []string{"Smith"}}
	frag, err := CompileFilter(f)
	require.NoError(t, err)
	assert.Contains(t, frag, "lower")
	assert.Contains(t, frag, "'smith'")
}

func TestEscapingAdversarialValues(t *testing.T) {
	cases := []string{
		"O'Brien",
		"'; DROP TABLE users; --",
		`back\slash`,
		"ünïcodé 'quoted'",
	}
	for _, v := range cases {
		f := models.ChartFilter{Column: "name", Operator: models.OpEq, Values: []string{v}}
		frag, err := CompileFilter(f)
		require.NoError(t, err)
		// every single quote in the value must come out doubled
		inner := strings.TrimSuffix(strings.TrimPrefix(frag, `("name" = '`), `')`)
		assert.Equal(t, strings.ReplaceAll(v, "'", "''"), inner, "value %q", v)
	}
}

func TestQuoteIdentDoublesQuotes(t *testing.T) {
	assert.Equal(t, `"col""name"`, QuoteIdent(`col"name`))
}

func TestCombineFiltersFoldsLeftToRight(t *testing.T) {
	filters := []models.ChartFilter{
		// the first filter's operator has nothing to combine with
		{Column: "a", Operator: models.OpEq, Values: []string{"x"}, Logical: models.LogicalOr},
		{Column: "b", Operator: models.OpEq, Values: []string{"y"}, Logical: models.LogicalOr},
		{Column: "c", Operator: models.OpEq, Values: []string{"z"}, Logical: models.LogicalAnd},
	}
	combined, err := CombineFilters(filters)
	require.NoError(t, err)
	assert.Equal(t, `((("a" = 'x') OR ("b" = 'y')) AND ("c" = 'z'))`, combined)
}

func TestCombineFiltersEmpty(t *testing.T) {
	combined, err := CombineFilters(nil)
	require.NoError(t, err)
	assert.Empty(t, combined)
}

func TestParseDateValueFormatPriority(t *testing.T) {
	// ambiguous day/month input resolves by format order, day-first wins
	d, ok := parseDateValue("01/02/2024")
	require.True(t, ok)
	assert.Equal(t, "2024-02-01", d.Format("2006-01-02"))

	d, ok = parseDateValue("20240215")
	require.True(t, ok)
	assert.Equal(t, "2024-02-15", d.Format("2006-01-02"))
}
