package engine

import (
	"github.com/zhangzihaoDT/BI-reasoning/internal/signals"
	"github.com/zhangzihaoDT/BI-reasoning/internal/tools"
)

// StepReport 单步结果
type StepReport struct {
	ID        string       `json:"id"`
	Tool      string       `json:"tool"`
	Reasoning string       `json:"reasoning,omitempty"`
	Injected  bool         `json:"injected,omitempty"`
	Result    tools.Result `json:"result,omitempty"`
}

// Report 运行报告：按执行顺序的结果、全部信号、注入步骤与最终决策
type Report struct {
	Steps    []StepReport      `json:"steps"`
	Signals  []signals.Signal  `json:"signals"`
	Injected []string          `json:"injected,omitempty"`
	Decision *signals.Decision `json:"decision,omitempty"`
	Pending  int               `json:"pending,omitempty"`
}

// NewReport 由状态生成报告
func NewReport(state *State) *Report {
	injected := make(map[string]bool, len(state.injected))
	for _, id := range state.injected {
		injected[id] = true
	}
	r := &Report{
		Steps:    make([]StepReport, 0, len(state.executed)),
		Signals:  state.Signals(),
		Injected: state.Injected(),
		Pending:  state.Pending(),
	}
	if r.Signals == nil {
		r.Signals = []signals.Signal{}
	}
	for _, step := range state.executed {
		sr := StepReport{ID: step.ID, Tool: step.Tool, Reasoning: step.Reasoning, Injected: injected[step.ID]}
		if res, ok := state.results[step.ID]; ok {
			sr.Result = res
		}
		r.Steps = append(r.Steps, sr)
	}
	if d, ok := state.Decision(); ok {
		r.Decision = &d
	}
	return r
}

// Anomalous 最终决策是否为异常
func (r *Report) Anomalous() bool {
	return r.Decision != nil && r.Decision.AnomalyDetected
}
