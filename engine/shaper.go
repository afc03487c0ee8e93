package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/insightlab/insightengine/config"
	"github.com/insightlab/insightengine/domain/models"
)

// TimePoint is one raw row of a time-series query.
type TimePoint struct {
	Bucket time.Time
	Series string
	Value  float64
}

// CategoryPoint is one raw row of a categorical aggregate.
type CategoryPoint struct {
	Category string
	Series   string
	Value    float64
}

// HistogramBin is one equal-width bucket, zero-count bins included.
type HistogramBin struct {
	From  float64
	To    float64
	Count int64
}

const (
	fullDateTimeFormat = "2006-01-02 15:04:05"
	dateOnlyFormat     = "2006-01-02"
)

// parseBucket reads the varchar form of a truncated timestamp.
func parseBucket(s string) (time.Time, error) {
	if t, err := time.Parse(fullDateTimeFormat, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateOnlyFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable time bucket %q", s)
	}
	return t, nil
}

func binStep(t time.Time, bin models.TimeBin) time.Time {
	switch bin {
	case models.BinDay:
		return t.AddDate(0, 0, 1)
	case models.BinWeek:
		return t.AddDate(0, 0, 7)
	case models.BinMonth:
		return t.AddDate(0, 1, 0)
	case models.BinQuarter:
		return t.AddDate(0, 3, 0)
	case models.BinYear:
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 0, 1)
}

// BucketLabel renders a bucket timestamp at the bin's natural precision.
func BucketLabel(t time.Time, bin models.TimeBin) string {
	switch bin {
	case models.BinMonth, models.BinQuarter:
		return t.Format("2006-01")
	case models.BinYear:
		return t.Format("2006")
	default:
		return t.Format(dateOnlyFormat)
	}
}

// CompleteTimeline inserts the missing periods between the first and last
// observed bucket so line rendering can show gaps explicitly. Input must be
// sorted ascending; GapFillNone passes it through unchanged.
func CompleteTimeline(buckets []time.Time, bin models.TimeBin, mode config.GapFillMode) []time.Time {
	if mode == config.GapFillNone || len(buckets) < 2 {
		return buckets
	}
	out := make([]time.Time, 0, len(buckets))
	out = append(out, buckets[0])
	idx := 1
	cur := buckets[0]
	last := buckets[len(buckets)-1]
	for cur.Before(last) {
		cur = binStep(cur, bin)
		// step past irregular observed buckets rather than looping forever
		if idx < len(buckets) && !buckets[idx].After(cur) {
			cur = buckets[idx]
			idx++
		}
		out = append(out, cur)
	}
	return out
}

// Downsample keeps every Nth element where N = ceil(len/max). The stride is
// deterministic and preserves input order; repeated calls with identical
// inputs return identical subsequences.
func Downsample[T any](points []T, max int) []T {
	if max <= 0 || len(points) <= max {
		return points
	}
	stride := (len(points) + max - 1) / max
	out := make([]T, 0, max)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	return out
}

// AlignToAxis reorders a secondary series to the primary axis order. Axis
// entries missing from the secondary result become nil (or zero when
// fillZero is set); secondary keys absent from the axis are dropped. The two
// queries behind an overlay never guarantee matching order or row counts.
func AlignToAxis(axis []string, values map[string]float64, fillZero bool) []*float64 {
	out := make([]*float64, len(axis))
	for i, key := range axis {
		if v, ok := values[key]; ok {
			c := v
			out[i] = &c
		} else if fillZero {
			z := 0.0
			out[i] = &z
		}
	}
	return out
}

// TopSeriesByTotal picks the strongest series of a grouped result by summed
// value, preserving a deterministic order (total desc, then name).
func TopSeriesByTotal(points []CategoryPoint, max int) []string {
	totals := map[string]float64{}
	for _, p := range points {
		totals[p.Series] += p.Value
	}
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if totals[names[i]] != totals[names[j]] {
			return totals[names[i]] > totals[names[j]]
		}
		return names[i] < names[j]
	})
	if max > 0 && len(names) > max {
		names = names[:max]
	}
	return names
}
