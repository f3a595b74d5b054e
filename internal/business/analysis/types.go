package analysis

import (
	"context"
	"encoding/json"

	"github.com/zhangzihaoDT/BI-reasoning/internal/agent"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/engine"
)

// Runtime 分析运行时（bootstrap.Runtime 实现）
type Runtime interface {
	EnsureLoaded(ctx context.Context) error
	QueryAgent(ctx context.Context) (*agent.QueryAgent, error)
	Run(ctx context.Context, steps []dsl.Step) (*engine.Report, error)
}

// RunResultData 业务处理结果
type RunResultData struct {
	RunID  string
	Steps  []dsl.Step
	Report *engine.Report
	RunErr error
	Source string
}

// RunOutput 最终输出结构
type RunOutput struct {
	RunID     string          `json:"run_id"`
	Status    string          `json:"status"`
	Anomalous bool            `json:"anomalous"`
	Source    string          `json:"source,omitempty"`
	StepCount int             `json:"step_count"`
	Injected  []string        `json:"injected,omitempty"`
	Report    json.RawMessage `json:"report,omitempty"`
	Error     string          `json:"error,omitempty"`
}
