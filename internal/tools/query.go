package tools

import (
	"context"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// QueryTool 标量查询；指定 interval 时按周期分桶
type QueryTool struct {
	named
	dc *dataaccess.DataContext
}

// NewQueryTool 创建查询工具
func NewQueryTool(dc *dataaccess.DataContext) *QueryTool {
	return &QueryTool{named: named{names: []string{"query"}}, dc: dc}
}

// Execute 实现 Tool
func (t *QueryTool) Execute(ctx context.Context, step dsl.Step) (Result, error) {
	p := step.Parameters
	metric := metricName(p)
	dateRange := p.String("date_range")

	sel, err := selectFor(ctx, t.dc, step, metric, dateRange)
	if err != nil {
		return nil, err
	}

	res := &QueryResult{
		Base:       newBase(KindQuery, metric, dateRange),
		Value:      sel.Metric.Aggregate(sel.View),
		SampleSize: sel.View.Len(),
		Filters:    sel.Filters,
	}
	res.absorb(sel)

	if interval := p.String("interval"); interval != "" {
		grain := dataaccess.ParseGrain(interval, dataaccess.GrainDay)
		res.Interval = string(grain)
		res.Series = make(map[string]float64)
		readers := []dimReader{{name: "interval", grain: grain, time: true, read: func(i int) string {
			ts, ok := sel.View.Time(i, sel.TimeColumn)
			if !ok {
				return ""
			}
			return dataaccess.BucketLabel(ts, grain)
		}}}
		for _, g := range groupBy(sel, readers) {
			if g.keys[0] == "" || g.view.Len() == 0 {
				continue
			}
			res.Series[g.keys[0]] = g.value
		}
	}
	return res, nil
}
