package model

import (
	"encoding/json"
	"fmt"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
)

// 动作类型（HandlerMap 路由键）
const (
	ActionAnalysisRun = "bi_analysis"
	ActionAsk         = "bi_ask"
)

// Job 分析任务消息（标准化）
// 用于 apiserver / CLI → worker 的消息传递
type Job struct {
	Payload *JobPayload `json:"payload"`
}

// JobPayload Job 负载
type JobPayload struct {
	Data *JobPayloadData `json:"data"`
}

// JobPayloadData Job 数据层
type JobPayloadData struct {
	// 元信息
	RequestID  string `json:"request_id"`  // 请求 ID（全链路追踪）
	OrgID      string `json:"org_id"`      // 组织 ID（固定为 "0"）
	ActionType string `json:"action_type"` // bi_analysis / bi_ask
	ID         string `json:"id"`          // run_id

	// 业务数据，按 action_type 解析为 AnalysisRunData / AskData
	Data json.RawMessage `json:"data"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AnalysisRunData bi_analysis 业务数据：显式步骤与预置策略二选一
type AnalysisRunData struct {
	Steps       []dsl.Step    `json:"steps,omitempty"`
	Preset      string        `json:"preset,omitempty"`
	PresetInput *PresetParams `json:"preset_input,omitempty"`
}

// PresetParams 预置策略参数
type PresetParams struct {
	Metric    string        `json:"metric,omitempty"`
	Dimension string        `json:"dimension,omitempty"`
	DateRange string        `json:"date_range,omitempty"`
	Filters   []interface{} `json:"filters,omitempty"`
}

// AskData bi_ask 业务数据
type AskData struct {
	Question string `json:"question"`
}

// NewJob 构造标准 Job
func NewJob(requestID, actionType, runID string, data interface{}) (*Job, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal job data failed: %w", err)
	}
	return &Job{
		Payload: &JobPayload{
			Data: &JobPayloadData{
				RequestID:  requestID,
				OrgID:      "0",
				ActionType: actionType,
				ID:         runID,
				Data:       raw,
			},
		},
	}, nil
}
