package chartopt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func sampleOption() *Option {
	return &Option{
		Title:  &Title{Text: "sum(amount) by region"},
		Legend: &Legend{Show: true, Data: []string{"s1"}},
		XAxis:  &Axis{Type: "category", Data: []string{"a", "b", "c"}},
		YAxis:  &Axis{Type: "value", Name: "sum(amount)"},
		Series: []Series{{
			Name: "s1",
			Type: "bar",
			Data: []*float64{f(1), nil, f(3)},
		}},
	}
}

func TestCloneIsDeep(t *testing.T) {
	base := sampleOption()
	c := base.Clone()

	c.Title.Subtext = "changed"
	c.XAxis.Data[0] = "changed"
	c.Legend.Data = append(c.Legend.Data, "extra")
	*c.Series[0].Data[0] = 99
	c.Series = append(c.Series, Series{Name: "overlay"})

	assert.Empty(t, base.Title.Subtext)
	assert.Equal(t, "a", base.XAxis.Data[0])
	assert.Len(t, base.Legend.Data, 1)
	assert.Equal(t, 1.0, *base.Series[0].Data[0])
	assert.Len(t, base.Series, 1)
}

func TestClonePreservesNilHoles(t *testing.T) {
	c := sampleOption().Clone()
	require.Len(t, c.Series[0].Data, 3)
	assert.Nil(t, c.Series[0].Data[1])
}

func TestCloneNil(t *testing.T) {
	var o *Option
	assert.Nil(t, o.Clone())
}

func TestCloneMarkLine(t *testing.T) {
	base := sampleOption()
	base.Series[0].MarkLine = &MarkLine{Items: []MarkLineItem{{Name: "P95", YAxis: 42}}}
	c := base.Clone()
	c.Series[0].MarkLine.Items[0].YAxis = 7
	assert.Equal(t, 42.0, base.Series[0].MarkLine.Items[0].YAxis)
}

func TestToMapShape(t *testing.T) {
	m := sampleOption().ToMap()

	title := m["title"].(map[string]interface{})
	assert.Equal(t, "sum(amount) by region", title["text"])

	xaxis := m["xAxis"].(map[string]interface{})
	assert.Equal(t, []string{"a", "b", "c"}, xaxis["data"])

	series := m["series"].([]interface{})
	require.Len(t, series, 1)
	data := series[0].(map[string]interface{})["data"].([]interface{})
	assert.Equal(t, 1.0, data[0])
	assert.Nil(t, data[1])
}

func TestToMapScatterPairs(t *testing.T) {
	o := &Option{Series: []Series{{Name: "points", Type: "scatter", Pairs: [][2]float64{{1, 2}, {3, 4}}}}}
	m := o.ToMap()
	data := m["series"].([]interface{})[0].(map[string]interface{})["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, []float64{1, 2}, data[0])
}

func TestToMapDashedAndMarkLine(t *testing.T) {
	o := sampleOption()
	o.Series[0].Dashed = true
	o.Series[0].MarkLine = &MarkLine{Items: []MarkLineItem{{Name: "P90", YAxis: 10}}}
	sm := o.ToMap()["series"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"type": "dashed"}, sm["lineStyle"])
	ml := sm["markLine"].(map[string]interface{})["data"].([]interface{})
	assert.Equal(t, "P90", ml[0].(map[string]interface{})["name"])
}

func TestSeriesByName(t *testing.T) {
	o := sampleOption()
	s := o.SeriesByName("s1")
	require.NotNil(t, s)
	// the pointer addresses the live series, not a copy
	s.Dashed = true
	assert.True(t, o.Series[0].Dashed)
	assert.Nil(t, o.SeriesByName("missing"))
}
