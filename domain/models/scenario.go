package models

// ScenarioOpKind identifies a what-if transform.
type ScenarioOpKind string

const (
	OpMultiplyMetric ScenarioOpKind = "multiply_metric"
	OpAddConstant    ScenarioOpKind = "add_constant"
	OpClamp          ScenarioOpKind = "clamp"
	OpRemoveCategory ScenarioOpKind = "remove_category"
	OpFilterOut      ScenarioOpKind = "filter_out"
)

// ScenarioOperation is one declarative transform of the simulated branch.
// Multiply/AddConstant/Clamp wrap the metric expression in request order;
// RemoveCategory/FilterOut contribute an exclusion predicate instead.
type ScenarioOperation struct {
	Kind     ScenarioOpKind
	Factor   float64  // multiply_metric
	Constant float64  // add_constant
	Min      *float64 // clamp, optional
	Max      *float64 // clamp, optional
	Column   string   // remove_category / filter_out
	Values   []string // remove_category / filter_out
}

// ScenarioRequest asks for a baseline-vs-simulated comparison of one metric
// broken down by one dimension.
type ScenarioRequest struct {
	TargetMetric    string
	TargetDimension string
	Aggregation     Aggregation
	Filters         []ChartFilter
	Operations      []ScenarioOperation
}

// ScenarioDeltaPoint is one dimension value's baseline/simulated comparison.
// DeltaPercent is nil when the baseline is too close to zero to divide by.
type ScenarioDeltaPoint struct {
	Dimension    string
	Baseline     float64
	Simulated    float64
	Delta        float64
	DeltaPercent *float64
}

// ScenarioSummary aggregates the delta points. Percent statistics only cover
// points with a non-nil DeltaPercent.
type ScenarioSummary struct {
	AverageDeltaPercent float64
	MaxDeltaPercent     float64
	MinDeltaPercent     float64
	ChangedPoints       int
}

// ScenarioResponse is the full result of one simulation call.
type ScenarioResponse struct {
	Points             []ScenarioDeltaPoint
	Summary            ScenarioSummary
	GeneratedQueryText string
	ExecutionTimeMs    int64
}

// PercentileMode selects how a percentile view is computed.
type PercentileMode string

const (
	ModeNone    PercentileMode = ""
	ModeBucket  PercentileMode = "bucket"
	ModeOverall PercentileMode = "overall"
)

// PercentileKind is one of the fixed quantile levels the engine computes.
type PercentileKind string

const (
	P05 PercentileKind = "p05"
	P10 PercentileKind = "p10"
	P90 PercentileKind = "p90"
	P95 PercentileKind = "p95"
)

// Level returns the quantile level for the kind, or -1 for unknown kinds.
func (k PercentileKind) Level() float64 {
	switch k {
	case P05:
		return 0.05
	case P10:
		return 0.10
	case P90:
		return 0.90
	case P95:
		return 0.95
	}
	return -1
}

// Kinds lists the fixed levels computed on every percentile request, so the
// UI can offer all of them without re-querying.
func Kinds() []PercentileKind {
	return []PercentileKind{P05, P10, P90, P95}
}
