package response

import (
	"encoding/json"
	"time"
)

// RunResponse 分析任务响应（DTO）
type RunResponse struct {
	ID         string          `json:"id"`
	ActionType string          `json:"action_type"`
	Status     string          `json:"status"`
	Anomalous  bool            `json:"anomalous"`
	Source     string          `json:"source,omitempty"`
	Report     json.RawMessage `json:"report,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ExecuteResponse 同步执行响应
type ExecuteResponse struct {
	Status    string      `json:"status"` // SUCCESS / FAILED
	Anomalous bool        `json:"anomalous"`
	Error     string      `json:"error,omitempty"`
	Report    interface{} `json:"report"`
}
