package agent

import (
	"fmt"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// 预置策略
const (
	PresetBreadthScan = "breadth_scan"
	PresetRateScan    = "rate_scan"
)

// PresetInput 预置策略参数
type PresetInput struct {
	Metric    string
	Dimension string
	DateRange string
	Filters   []interface{}
}

// Preset 按名称生成步骤序列
func Preset(name string, in PresetInput) ([]dsl.Step, error) {
	switch name {
	case PresetBreadthScan:
		return BreadthScan(in), nil
	case PresetRateScan:
		return RateScan(in), nil
	}
	return nil, fmt.Errorf("unknown preset: %s", name)
}

// BreadthScan 基线 -> 环比 -> 周同比 -> 异常检测 -> 结构拆分 -> 构成 -> 帕累托
func BreadthScan(in PresetInput) []dsl.Step {
	metric := orDefault(in.Metric, dataaccess.MetricLockVolume)
	dim := orDefault(in.Dimension, dataaccess.ColSeriesGroup)
	date := orDefault(in.DateRange, "yesterday")

	steps := []dsl.Step{
		{ID: "baseline_query", Tool: "query", Parameters: dsl.Params{"metric": metric, "date_range": date}},
		{ID: "short_term_trend", Tool: "trend", Parameters: dsl.Params{
			"metric": metric, "time_grain": "day", "compare_type": "mom", "date_range": date,
		}},
		{ID: "cycle_comparison", Tool: "trend", Parameters: dsl.Params{
			"metric": metric, "time_grain": "day", "compare_type": "wow", "date_range": date,
		}},
		{ID: "anomaly_check", Tool: "trend", Parameters: dsl.Params{
			"metric": metric, "time_grain": "day", "compare_type": "vs_avg", "date_range": "last_30_days",
		}},
		{ID: "structural_rollup", Tool: "rollup", Parameters: dsl.Params{"metric": metric, "dimension": dim, "date_range": date}},
		{ID: "composition_share", Tool: "composition", Parameters: dsl.Params{"metric": metric, "dimension": dim, "date_range": date}},
		{ID: "pareto_scan", Tool: "pareto", Parameters: dsl.Params{"metric": metric, "dimension": dim, "date_range": date}},
	}
	return withFilters(steps, in.Filters)
}

// RateScan 线索转化率：基线 -> 异常检测 -> 量率双轴 -> 比率分析
func RateScan(in PresetInput) []dsl.Step {
	metric := orDefault(in.Metric, dataaccess.MetricAssignLock7d)
	date := orDefault(in.DateRange, "yesterday")

	steps := []dsl.Step{
		{ID: "baseline_query", Tool: "query", Parameters: dsl.Params{"metric": metric, "date_range": date}},
		{ID: "anomaly_check", Tool: "trend", Parameters: dsl.Params{
			"metric": metric, "time_grain": "day", "date_range": "last_30_days",
			"core_metrics": []interface{}{dataaccess.MetricAssignLock7d, dataaccess.MetricAssignTest7d},
			"dimensions":   []interface{}{dataaccess.ColParentRegion},
		}},
		{ID: "volume_vs_rate", Tool: "dual_axis", Parameters: dsl.Params{
			"left_metric": dataaccess.MetricAssignLeads, "right_metric": metric,
			"time_grain": "day", "date_range": "last_30_days",
		}},
		{ID: "rate_breakdown", Tool: "ratio", Parameters: dsl.Params{
			"metrics":    []interface{}{dataaccess.MetricAssignLock7d, dataaccess.MetricAssignTest7d},
			"date_range": date,
		}},
	}
	return withFilters(steps, in.Filters)
}

func withFilters(steps []dsl.Step, filters []interface{}) []dsl.Step {
	if len(filters) == 0 {
		return steps
	}
	for i := range steps {
		steps[i].Parameters["filters"] = filters
	}
	return steps
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
