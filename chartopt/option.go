// Package chartopt models the renderable chart structure as a typed tree.
// The hosting layer can serialize it to the loosely-typed map an ECharts
// style renderer consumes via ToMap.
package chartopt

// Option is the root of a renderable chart.
type Option struct {
	Title  *Title
	Legend *Legend
	XAxis  *Axis
	YAxis  *Axis
	Series []Series
}

type Title struct {
	Text    string
	Subtext string
}

type Legend struct {
	Show bool
	Data []string
}

// Axis holds category labels for cartesian charts; value axes leave Data nil.
type Axis struct {
	Type string // "category", "value", "time"
	Name string
	Data []string
}

// Series is one plotted series. Cartesian charts use Data aligned to the
// category axis, with nil entries for missing buckets; scatter charts use
// Pairs instead.
type Series struct {
	Name     string
	Type     string // "line", "bar", "scatter"
	Data     []*float64
	Pairs    [][2]float64
	Dashed   bool
	MarkLine *MarkLine
}

// MarkLine is a horizontal reference overlay on a series.
type MarkLine struct {
	Items []MarkLineItem
}

type MarkLineItem struct {
	Name  string
	YAxis float64
}

// Clone returns a deep copy. Overlay construction always works on a clone so
// a cached base option is never mutated.
func (o *Option) Clone() *Option {
	if o == nil {
		return nil
	}
	out := &Option{}
	if o.Title != nil {
		t := *o.Title
		out.Title = &t
	}
	if o.Legend != nil {
		l := Legend{Show: o.Legend.Show, Data: append([]string(nil), o.Legend.Data...)}
		out.Legend = &l
	}
	out.XAxis = cloneAxis(o.XAxis)
	out.YAxis = cloneAxis(o.YAxis)
	for _, s := range o.Series {
		out.Series = append(out.Series, s.clone())
	}
	return out
}

func cloneAxis(a *Axis) *Axis {
	if a == nil {
		return nil
	}
	return &Axis{Type: a.Type, Name: a.Name, Data: append([]string(nil), a.Data...)}
}

func (s Series) clone() Series {
	out := Series{Name: s.Name, Type: s.Type, Dashed: s.Dashed}
	for _, v := range s.Data {
		if v == nil {
			out.Data = append(out.Data, nil)
			continue
		}
		c := *v
		out.Data = append(out.Data, &c)
	}
	out.Pairs = append([][2]float64(nil), s.Pairs...)
	if s.MarkLine != nil {
		out.MarkLine = &MarkLine{Items: append([]MarkLineItem(nil), s.MarkLine.Items...)}
	}
	return out
}

// ToMap flattens the option into the nested map shape ECharts renderers
// expect. Missing series points come out as nil values.
func (o *Option) ToMap() map[string]interface{} {
	if o == nil {
		return nil
	}
	m := map[string]interface{}{}
	if o.Title != nil {
		m["title"] = map[string]interface{}{"text": o.Title.Text, "subtext": o.Title.Subtext}
	}
	if o.Legend != nil {
		m["legend"] = map[string]interface{}{"show": o.Legend.Show, "data": o.Legend.Data}
	}
	if o.XAxis != nil {
		m["xAxis"] = axisMap(o.XAxis)
	}
	if o.YAxis != nil {
		m["yAxis"] = axisMap(o.YAxis)
	}
	series := make([]interface{}, 0, len(o.Series))
	for _, s := range o.Series {
		series = append(series, s.toMap())
	}
	m["series"] = series
	return m
}

func axisMap(a *Axis) map[string]interface{} {
	m := map[string]interface{}{"type": a.Type}
	if a.Name != "" {
		m["name"] = a.Name
	}
	if a.Data != nil {
		m["data"] = a.Data
	}
	return m
}

func (s Series) toMap() map[string]interface{} {
	m := map[string]interface{}{"name": s.Name, "type": s.Type}
	if s.Pairs != nil {
		data := make([]interface{}, 0, len(s.Pairs))
		for _, p := range s.Pairs {
			data = append(data, []float64{p[0], p[1]})
		}
		m["data"] = data
	} else {
		data := make([]interface{}, 0, len(s.Data))
		for _, v := range s.Data {
			if v == nil {
				data = append(data, nil)
			} else {
				data = append(data, *v)
			}
		}
		m["data"] = data
	}
	if s.Dashed {
		m["lineStyle"] = map[string]interface{}{"type": "dashed"}
	}
	if s.MarkLine != nil {
		items := make([]interface{}, 0, len(s.MarkLine.Items))
		for _, it := range s.MarkLine.Items {
			items = append(items, map[string]interface{}{"name": it.Name, "yAxis": it.YAxis})
		}
		m["markLine"] = map[string]interface{}{"data": items}
	}
	return m
}

// SeriesByName returns a pointer to the named series, or nil.
func (o *Option) SeriesByName(name string) *Series {
	for i := range o.Series {
		if o.Series[i].Name == name {
			return &o.Series[i]
		}
	}
	return nil
}
