package tools

import (
	"context"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// DualAxisTool 双指标同轴对比，时间轴取左指标的时间列
type DualAxisTool struct {
	named
	dc *dataaccess.DataContext
}

// NewDualAxisTool 创建双轴工具
func NewDualAxisTool(dc *dataaccess.DataContext) *DualAxisTool {
	return &DualAxisTool{named: named{names: []string{"dual_axis"}}, dc: dc}
}

// Execute 实现 Tool
func (t *DualAxisTool) Execute(ctx context.Context, step dsl.Step) (Result, error) {
	p := step.Parameters
	left := p.String("left_metric")
	if left == "" {
		left = metricName(p)
	}
	right := p.String("right_metric")
	dateRange := p.String("date_range")
	grain := dataaccess.ParseGrain(p.String("time_grain"), dataaccess.GrainWeek)

	filters, err := step.Parameters.Filters()
	if err != nil {
		return nil, err
	}
	leftSel, err := t.dc.Select(ctx, dataaccess.Query{Metric: left, DateRange: dateRange, Filters: filters})
	if err != nil {
		return nil, err
	}
	res := &DualAxisResult{
		Base:        newBase(KindDualAxis, left, dateRange),
		LeftMetric:  left,
		RightMetric: right,
		TimeGrain:   string(grain),
		Series:      []DualPoint{},
	}
	res.absorb(leftSel)

	rightQuery := dataaccess.Query{Metric: right, DateRange: dateRange, Filters: filters}
	if dataaccess.ResolveMetric(right).Source == leftSel.Metric.Source {
		rightQuery.TimeColumn = leftSel.TimeColumn
	} else {
		res.Diagnostics = append(res.Diagnostics, "right metric "+right+" uses its own time axis")
	}
	rightSel, err := t.dc.Select(ctx, rightQuery)
	if err != nil {
		return nil, err
	}
	res.Diagnostics = append(res.Diagnostics, rightSel.Diagnostics...)

	leftSeries := bucketValues(leftSel, grain)
	rightSeries := bucketValues(rightSel, grain)
	first, last := "", ""
	for _, m := range []map[string]float64{leftSeries, rightSeries} {
		for l := range m {
			if first == "" || l < first {
				first = l
			}
			if l > last {
				last = l
			}
		}
	}
	if first == "" {
		return res, nil
	}
	loc := t.dc.Location()
	firstT, _ := dataaccess.ParseTime(first, loc)
	lastT, _ := dataaccess.ParseTime(last, loc)
	for _, l := range dataaccess.PeriodLabels(firstT, lastT, grain) {
		key := l.Format(dataaccess.DateLayout)
		res.Series = append(res.Series, DualPoint{Time: key, LeftValue: leftSeries[key], RightValue: rightSeries[key]})
	}
	return res, nil
}

func bucketValues(sel *dataaccess.Selection, grain dataaccess.Grain) map[string]float64 {
	out := make(map[string]float64)
	if sel.View.Len() == 0 {
		return out
	}
	for _, g := range groupBy(sel, []dimReader{timeReader(sel, grain)}) {
		if g.keys[0] != "" {
			out[g.keys[0]] = g.value
		}
	}
	return out
}
