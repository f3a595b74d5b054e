package request

import (
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// CreateRunRequest 创建分析任务请求：steps 与 preset 二选一
type CreateRunRequest struct {
	Steps       []Step       `json:"steps" binding:"required_without=Preset,excluded_with=Preset,max=64,dive"`
	Preset      string       `json:"preset" binding:"omitempty,oneof=breadth_scan rate_scan" example:"breadth_scan"`
	PresetInput *PresetInput `json:"preset_input"`
}

// Step 单个 DSL 步骤
type Step struct {
	ID         string     `json:"id" binding:"required,max=64" example:"anomaly_check"`
	Tool       string     `json:"tool" binding:"required" example:"trend"`
	Parameters dsl.Params `json:"parameters"`
}

// PresetInput 预置策略参数
type PresetInput struct {
	Metric    string        `json:"metric" example:"锁单量"`
	Dimension string        `json:"dimension" example:"series_group"`
	DateRange string        `json:"date_range" example:"yesterday"`
	Filters   []interface{} `json:"filters"`
}

// AskRequest 问句请求
type AskRequest struct {
	Question string `json:"question" binding:"required,max=500" example:"昨天 LS9 的锁单量是多少"`
}
