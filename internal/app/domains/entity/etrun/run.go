package etrun

import (
	"encoding/json"
	"errors"
	"time"
)

// 错误定义
var (
	ErrInvalidRunID      = errors.New("run ID cannot be empty")
	ErrInvalidActionType = errors.New("invalid action type")
	ErrEmptyRequest      = errors.New("run request cannot be empty")
	ErrNilResult         = errors.New("run result cannot be nil")
	ErrRunFinished       = errors.New("run already finished")
)

// Run 分析任务聚合根（领域对象）
type Run struct {
	ID         string          // 任务 ID（run_id）
	RequestID  string          // 请求 ID（链路追踪）
	ActionType string          // bi_analysis / bi_ask
	Request    json.RawMessage // 步骤序列 / 预置策略 / 问句
	Status     RunStatus
	Result     *Result
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RunStatus 任务状态
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusDone    RunStatus = "DONE"
	RunStatusFailed  RunStatus = "FAILED"
)

// Result 运行结果（值对象）
type Result struct {
	Succeeded bool
	Anomalous bool
	Source    string          // bi_ask 抽取来源
	Report    json.RawMessage // engine.Report JSON
	Error     string
}

// NewRun 创建任务（工厂方法）
func NewRun(id, requestID, actionType string, request json.RawMessage) (*Run, error) {
	if id == "" {
		return nil, ErrInvalidRunID
	}
	if actionType == "" {
		return nil, ErrInvalidActionType
	}
	if len(request) == 0 {
		return nil, ErrEmptyRequest
	}

	now := time.Now()
	return &Run{
		ID:         id,
		RequestID:  requestID,
		ActionType: actionType,
		Request:    request,
		Status:     RunStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Complete 写入运行结果并结束任务；重复完成返回 ErrRunFinished
func (r *Run) Complete(result *Result) error {
	if result == nil {
		return ErrNilResult
	}
	if r.Finished() {
		return ErrRunFinished
	}
	r.Result = result
	r.Status = RunStatusDone
	if !result.Succeeded {
		r.Status = RunStatusFailed
	}
	r.UpdatedAt = time.Now()
	return nil
}

// Finished 是否已结束
func (r *Run) Finished() bool {
	return r.Status == RunStatusDone || r.Status == RunStatusFailed
}
