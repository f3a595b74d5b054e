package model

import "encoding/json"

// AnalysisCallback 分析任务回调消息（标准化）
// 用于 worker → callback consumer 的消息传递
type AnalysisCallback struct {
	RequestID   string          `json:"request_id"`       // 对应请求的 request_id（链路追踪）
	RunID       string          `json:"run_id"`           // 分析任务 ID
	ActionType  string          `json:"action_type"`      // bi_analysis / bi_ask
	Status      string          `json:"status"`           // SUCCESS / FAILED
	Anomalous   bool            `json:"anomalous"`        // 最终决策是否为异常
	Source      string          `json:"source,omitempty"` // bi_ask 的抽取来源：llm / heuristic
	Report      json.RawMessage `json:"report,omitempty"` // 运行报告（失败时可能只含部分步骤）
	Error       string          `json:"error,omitempty"`
	ProcessedAt int64           `json:"processed_at"` // Unix timestamp
}

// 回调状态常量
const (
	CallbackStatusSuccess = "SUCCESS"
	CallbackStatusFailed  = "FAILED"
)
