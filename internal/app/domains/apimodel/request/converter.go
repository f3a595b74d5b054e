package request

import (
	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// ToRunData 请求 -> 任务业务数据
func (r *CreateRunRequest) ToRunData() model.AnalysisRunData {
	data := model.AnalysisRunData{Preset: r.Preset}
	if len(r.Steps) > 0 {
		data.Steps = make([]dsl.Step, 0, len(r.Steps))
		for _, s := range r.Steps {
			data.Steps = append(data.Steps, dsl.Step{ID: s.ID, Tool: s.Tool, Parameters: s.Parameters})
		}
	}
	if in := r.PresetInput; in != nil {
		data.PresetInput = &model.PresetParams{
			Metric:    in.Metric,
			Dimension: in.Dimension,
			DateRange: in.DateRange,
			Filters:   in.Filters,
		}
	}
	return data
}
