package engine

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/insightlab/insightengine/domain/models"
)

func getMD5String(input string) string {
	hasher := md5.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Fingerprint derives a stable cache-key hash from the dataset identity and
// the normalized chart query. Filter order and extras order do not affect
// the result; the cache itself lives outside this core.
func Fingerprint(datasetID string, q models.ChartQuery, extras ...string) string {
	lines := []string{
		"dataset=" + datasetID,
		"chart=" + string(q.Chart),
		"x=" + fieldKey(q.X),
		"series=" + q.Series,
		fmt.Sprintf("topn=%d", q.TopN),
	}
	if q.Y != nil {
		lines = append(lines, "y="+fieldKey(*q.Y))
	}

	filterKeys := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		filterKeys = append(filterKeys, fmt.Sprintf("filter=%s|%s|%s|%s",
			f.Column, f.Operator, strings.Join(f.Values, "\x1f"), f.Logical))
	}
	sort.Strings(filterKeys)
	lines = append(lines, filterKeys...)

	sorted := append([]string(nil), extras...)
	sort.Strings(sorted)
	lines = append(lines, sorted...)

	return getMD5String(strings.Join(lines, "\n"))
}

func fieldKey(f models.FieldSpec) string {
	return fmt.Sprintf("%s|%s|%s|%s", f.Column, f.Role, f.Aggregation, f.Bin)
}
