package schema

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/insightlab/insightengine/domain/models"
)

// column types ordered by weight: a column escalates to the heavier type the
// moment a value stops parsing as the lighter one
var typeWeights = []string{"", string(models.TypeBoolean), string(models.TypeDate), string(models.TypeNumber), string(models.TypeString)}

const distinctTrackLimit = 10000

// categoryDistinctMax mirrors the grouping cutoff: a string column with few
// repeated values is a category, a near-unique one stays a plain string
const categoryDistinctMax = 1000

var sampleDateLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"20060102",
}

func weightOf(t string) int {
	for i, w := range typeWeights {
		if w == t {
			return i
		}
	}
	return -1
}

func classifyValue(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}
	switch strings.ToLower(v) {
	case "true", "false", "yes", "no":
		return string(models.TypeBoolean)
	}
	for _, layout := range sampleDateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return string(models.TypeDate)
		}
	}
	if _, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err == nil {
		return string(models.TypeNumber)
	}
	return string(models.TypeString)
}

// InferSchema samples up to sampleLimit rows of the CSV and reports each
// column's inferred type, null rate and distinct count.
func InferSchema(path string, sampleLimit int) (models.DatasetSchema, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.DatasetSchema{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.LazyQuotes = true

	firstRow, err := r.Read()
	if err != nil {
		return models.DatasetSchema{}, fmt.Errorf("read first row: %w", err)
	}
	analysis := AnalyzeHeaders(firstRow)
	if analysis == nil {
		return models.DatasetSchema{}, fmt.Errorf("empty dataset %s", path)
	}

	n := len(analysis.Headers)
	types := make([]string, n)
	nulls := make([]int64, n)
	distinct := make([]map[string]bool, n)
	for i := range distinct {
		distinct[i] = map[string]bool{}
	}
	var rowCount int64

	scan := func(values []string) {
		rowCount++
		for i := 0; i < n && i < len(values); i++ {
			t := classifyValue(values[i])
			if t == "" {
				nulls[i]++
				continue
			}
			if len(distinct[i]) < distinctTrackLimit {
				distinct[i][strings.TrimSpace(values[i])] = true
			}
			if weightOf(t) > weightOf(types[i]) {
				types[i] = t
			}
		}
	}

	if analysis.FirstRowIsData {
		scan(analysis.FirstDataRow)
	}
	if sampleLimit <= 0 {
		sampleLimit = 50000
	}
	for int(rowCount) < sampleLimit {
		values, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.DatasetSchema{}, fmt.Errorf("read dataset row: %w", err)
		}
		scan(values)
	}

	out := models.DatasetSchema{Columns: make([]models.ColumnSchema, n)}
	for i, name := range analysis.Headers {
		colType := models.ColumnType(types[i])
		if types[i] == "" {
			colType = models.TypeString
		}
		d := int64(len(distinct[i]))
		if colType == models.TypeString && d > 1 && d < categoryDistinctMax {
			colType = models.TypeCategory
		}
		nullRate := 0.0
		if rowCount > 0 {
			nullRate = float64(nulls[i]) / float64(rowCount)
		}
		out.Columns[i] = models.ColumnSchema{
			Name:          name,
			Type:          colType,
			NullRate:      nullRate,
			DistinctCount: d,
		}
	}
	return out, nil
}
