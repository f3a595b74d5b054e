package signals

import (
	"github.com/zhangzihaoDT/BI-reasoning/internal/dataaccess"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// 注入步骤 id
const (
	StepTotalVolumeCheck      = "total_volume_check"
	StepAdditiveDecomposition = "additive_decomposition"
	StepRatioAnalysis         = "ratio_analysis"
	StepDrilldownLocate       = "drilldown_locate"
)

// PlanInput 规划所需上下文
type PlanInput struct {
	Metric      string
	DateRange   string
	Dimensions  []string
	CoreMetrics []string
	Filters     []dataaccess.Filter
}

// Plan 根据决策生成后续步骤：比例假异常只核对总量，异常则按 加法拆解 -> 比率分析 -> 维度定位 展开
func Plan(d Decision, in PlanInput) []dsl.Step {
	if d.Pseudo() {
		return []dsl.Step{{
			ID:   StepTotalVolumeCheck,
			Tool: "trend",
			Parameters: dsl.Params{
				"metric":     dataaccess.MetricTotalVolume,
				"date_range": in.DateRange,
			},
			Reasoning: "比例异常疑似由整体规模变化导致，优先确认分母变化。",
		}}
	}
	if !d.AnomalyDetected {
		return nil
	}

	additive := dsl.Params{
		"metric":     in.Metric,
		"dimensions": stringsToAny(in.Dimensions),
		"date_range": in.DateRange,
	}
	ratio := dsl.Params{
		"metrics":    stringsToAny(in.CoreMetrics),
		"date_range": in.DateRange,
	}
	drilldown := dsl.Params{
		"metric":     in.Metric,
		"date_range": in.DateRange,
	}
	if len(in.Dimensions) > 0 {
		drilldown["dimension"] = in.Dimensions[0]
	}
	if len(in.Filters) > 0 {
		filters := filtersToAny(in.Filters)
		additive["filters"] = filters
		ratio["filters"] = filters
		drilldown["filters"] = filters
	}

	return []dsl.Step{
		{
			ID:         StepAdditiveDecomposition,
			Tool:       "additive",
			Parameters: additive,
			Reasoning:  "锁定责任来源，按门店、品牌、城市或渠道拆分指标。",
		},
		{
			ID:         StepRatioAnalysis,
			Tool:       "ratio",
			Parameters: ratio,
			Reasoning:  "从机制层解释异常，通过核心比率指标进行分析。",
		},
		{
			ID:         StepDrilldownLocate,
			Tool:       "rollup",
			Parameters: drilldown,
			Reasoning:  "定位异常具体发生在哪个维度切片。",
		},
	}
}

func stringsToAny(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func filtersToAny(in []dataaccess.Filter) []interface{} {
	out := make([]interface{}, len(in))
	for i, f := range in {
		m := map[string]interface{}{"field": f.Field, "op": f.Op}
		if f.Value != nil {
			m["value"] = f.Value
		}
		out[i] = m
	}
	return out
}
