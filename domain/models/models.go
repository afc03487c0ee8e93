package models

// AxisRole is the semantic purpose of a field inside a chart query.
type AxisRole string

const (
	RoleTime     AxisRole = "time"
	RoleCategory AxisRole = "category"
	RoleMeasure  AxisRole = "measure"
)

// Aggregation applied to a measure field.
type Aggregation string

const (
	AggNone  Aggregation = ""
	AggSum   Aggregation = "sum"
	AggAvg   Aggregation = "avg"
	AggCount Aggregation = "count"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
)

// TimeBin is the truncation granularity for time axes.
type TimeBin string

const (
	BinNone    TimeBin = ""
	BinDay     TimeBin = "day"
	BinWeek    TimeBin = "week"
	BinMonth   TimeBin = "month"
	BinQuarter TimeBin = "quarter"
	BinYear    TimeBin = "year"
)

// ChartType selects the chart family a query compiles for.
type ChartType string

const (
	ChartLine      ChartType = "line"
	ChartBar       ChartType = "bar"
	ChartScatter   ChartType = "scatter"
	ChartHistogram ChartType = "histogram"
)

// FilterOperator for ChartFilter.
type FilterOperator string

const (
	OpEq       FilterOperator = "eq"
	OpNotEq    FilterOperator = "neq"
	OpGt       FilterOperator = "gt"
	OpGte      FilterOperator = "gte"
	OpLt       FilterOperator = "lt"
	OpLte      FilterOperator = "lte"
	OpIn       FilterOperator = "in"
	OpBetween  FilterOperator = "between"
	OpContains FilterOperator = "contains"
)

// LogicalOperator joins a filter with everything accumulated before it.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// FieldSpec describes one axis of a chart query.
type FieldSpec struct {
	Column      string
	Role        AxisRole
	Aggregation Aggregation
	Bin         TimeBin
}

// ChartFilter is a single declarative predicate. Values stay opaque strings
// until the expression builder classifies them as numeric, date or literal.
// The Logical operator belongs to this filter and joins it to the filters
// already combined before it; it is ignored on the first filter.
type ChartFilter struct {
	Column   string
	Operator FilterOperator
	Values   []string
	Logical  LogicalOperator
}

// ChartQuery is the declarative specification of what to plot.
type ChartQuery struct {
	Chart   ChartType
	X       FieldSpec
	Y       *FieldSpec
	Series  string // optional breakdown column
	TopN    int    // 0 = use configured default
	Filters []ChartFilter
}

// ColumnType is the inferred type of a dataset column.
type ColumnType string

const (
	TypeNumber   ColumnType = "number"
	TypeDate     ColumnType = "date"
	TypeCategory ColumnType = "category"
	TypeString   ColumnType = "string"
	TypeBoolean  ColumnType = "boolean"
)

// ColumnSchema carries the inferred type plus the profiling facts the
// scenario engine validates against.
type ColumnSchema struct {
	Name          string
	Type          ColumnType
	NullRate      float64
	DistinctCount int64
}

// DatasetSchema is the inferred schema of one dataset.
type DatasetSchema struct {
	Columns []ColumnSchema
}

// Lookup returns the column schema by exact name.
func (s DatasetSchema) Lookup(name string) (ColumnSchema, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// DatasetSource addresses one readable tabular file. Existence checks are the
// caller's responsibility.
type DatasetSource struct {
	ID   string
	Path string
}
