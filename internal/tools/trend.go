package tools

import (
	"context"
	"strings"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/signals"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/stats"
)

// 同比环比类型
const (
	CompareMoM = "mom"
	CompareWoW = "wow"
	CompareYoY = "yoy"
)

// TrendTool 周期趋势；异常检测步骤返回日级统计
type TrendTool struct {
	named
	dc   *dataaccess.DataContext
	opts Options
}

// NewTrendTool 创建趋势工具
func NewTrendTool(dc *dataaccess.DataContext, opts Options) *TrendTool {
	return &TrendTool{named: named{names: []string{"trend"}}, dc: dc, opts: opts.withDefaults()}
}

// Execute 实现 Tool
func (t *TrendTool) Execute(ctx context.Context, step dsl.Step) (Result, error) {
	p := step.Parameters
	metric := metricName(p)
	dateRange := p.String("date_range")

	sel, err := selectFor(ctx, t.dc, step, metric, dateRange)
	if err != nil {
		return nil, err
	}
	if t.opts.IsAnomalyStep(step.ID) || p.Bool("stats_mode") {
		return anomalyStats(sel, metric, dateRange, p.String("time_grain")), nil
	}

	grain := dataaccess.ParseGrain(p.String("time_grain"), dataaccess.GrainDay)
	compareType := strings.ToLower(p.String("compare_type"))
	res := &TrendResult{
		Base:        newBase(KindTrend, metric, dateRange),
		TimeGrain:   string(grain),
		CompareType: compareType,
		Series:      resample(sel, grain),
	}
	res.absorb(sel)

	if sel.Window.SingleDay() {
		offset := 1
		switch compareType {
		case CompareWoW:
			offset = 7
		case CompareYoY:
			offset = 365
		}
		compareDay := sel.Window.Start.AddDate(0, 0, -offset).Format(dataaccess.DateLayout)
		prevSel, err := selectFor(ctx, t.dc, step, metric, compareDay)
		if err != nil {
			return nil, err
		}
		curr := sel.Metric.Aggregate(sel.View)
		prev := prevSel.Metric.Aggregate(prevSel.View)
		res.Compare = &Point{Date: compareDay, Value: prev}
		res.Change = curr - prev
		res.ChangePct = stats.SafeDiv(res.Change, prev)
		return res, nil
	}

	if n := len(res.Series); n >= 2 {
		prev, curr := res.Series[n-2].Value, res.Series[n-1].Value
		res.Change = curr - prev
		res.ChangePct = stats.SafeDiv(res.Change, prev)
	}
	return res, nil
}

// resample 按粒度重采样，首尾之间的空桶补 0
func resample(sel *dataaccess.Selection, grain dataaccess.Grain) []Point {
	v := sel.View
	if v.Len() == 0 {
		return []Point{}
	}
	readers := []dimReader{timeReader(sel, grain)}
	groups := groupBy(sel, readers)

	byLabel := make(map[string]float64, len(groups))
	first, last := "", ""
	for _, g := range groups {
		l := g.keys[0]
		if l == "" {
			continue
		}
		byLabel[l] = g.value
		if first == "" || l < first {
			first = l
		}
		if l > last {
			last = l
		}
	}
	if first == "" {
		return []Point{}
	}
	loc := sel.View.Table().Location()
	firstT, _ := dataaccess.ParseTime(first, loc)
	lastT, _ := dataaccess.ParseTime(last, loc)

	labels := dataaccess.PeriodLabels(firstT, lastT, grain)
	out := make([]Point, 0, len(labels))
	for _, l := range labels {
		key := l.Format(dataaccess.DateLayout)
		out = append(out, Point{Date: key, Value: byLabel[key]})
	}
	return out
}

func timeReader(sel *dataaccess.Selection, grain dataaccess.Grain) dimReader {
	v := sel.View
	col := sel.TimeColumn
	return dimReader{name: "date", grain: grain, time: true, read: func(i int) string {
		ts, ok := v.Time(i, col)
		if !ok {
			return ""
		}
		return dataaccess.BucketLabel(ts, grain)
	}}
}

// anomalyStats 按天统计（只含有数据的日期）：value 为最后一天，mean / std 为窗口内日值
func anomalyStats(sel *dataaccess.Selection, metric, dateRange, timeGrain string) *AnomalyStatsResult {
	res := &AnomalyStatsResult{
		Base:      newBase(KindAnomalyStats, metric, dateRange),
		TimeGrain: timeGrain,
	}
	res.absorb(sel)
	if sel.View.Len() == 0 {
		res.emit(signals.DataQualityWarning(metric, "no data for %s in %s", metric, dateRange))
		return res
	}

	groups := groupBy(sel, []dimReader{timeReader(sel, dataaccess.GrainDay)})
	sortChronological(groups, 0)

	values := make([]float64, 0, len(groups))
	nums := make([]float64, 0, len(groups))
	dens := make([]float64, 0, len(groups))
	for _, g := range groups {
		if g.keys[0] == "" {
			continue
		}
		values = append(values, g.value)
		res.Daily = append(res.Daily, Point{Date: g.keys[0], Value: g.value})
		if sel.Metric.IsRatio() {
			n, d := sel.Metric.Components(g.view)
			nums = append(nums, n)
			dens = append(dens, d)
		}
	}
	if len(values) == 0 {
		return res
	}

	last := len(values) - 1
	res.Value = values[last]
	res.Mean = stats.Mean(values)
	res.Std = stats.SampleStdDev(values)
	res.Points = len(values)
	res.LastDate = res.Daily[last].Date
	if last > 0 {
		res.Percentile = stats.PercentRank(values[:last], res.Value)
	}

	if sel.Metric.IsRatio() {
		res.MetricType = signals.MetricTypeRatio
		res.Denominator = dens[last]
		res.DeltaGroup = stats.LogDiff(nums[last], stats.Mean(nums))
		res.DeltaTotal = stats.LogDiff(dens[last], stats.Mean(dens))
		res.DeltaRatio = stats.LogDiff(values[last], res.Mean)
	}
	return res
}
