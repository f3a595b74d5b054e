// Package engine DSL 步骤状态机：逐步执行、收集结果与信号、按异常决策注入下钻步骤
package engine

import (
	"fmt"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/signals"
	"github.com/zhangzihaoDT/BI-reasoning/internal/tools"
)

// State 单次运行的执行状态，只由 Engine 修改，不可跨运行共享
type State struct {
	executed []dsl.Step
	queue    []dsl.Step
	ids      map[string]struct{}

	results  map[string]tools.Result
	signals  []signals.Signal
	injected []string
	decision *signals.Decision
}

// NewState 校验步骤并构建工作队列，id 必须唯一
func NewState(steps []dsl.Step) (*State, error) {
	s := &State{
		ids:     make(map[string]struct{}, len(steps)),
		results: make(map[string]tools.Result, len(steps)),
	}
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if _, dup := s.ids[step.ID]; dup {
			return nil, fmt.Errorf("duplicate step id: %s", step.ID)
		}
		s.ids[step.ID] = struct{}{}
		s.queue = append(s.queue, step)
	}
	return s, nil
}

// Done 队列是否已清空
func (s *State) Done() bool { return len(s.queue) == 0 }

// Cursor 已执行步骤数
func (s *State) Cursor() int { return len(s.executed) }

// Pending 待执行步骤数
func (s *State) Pending() int { return len(s.queue) }

// Sequence 完整步骤序列（已执行 + 待执行）
func (s *State) Sequence() []dsl.Step {
	out := make([]dsl.Step, 0, len(s.executed)+len(s.queue))
	out = append(out, s.executed...)
	return append(out, s.queue...)
}

// Has 序列中是否已有该 id
func (s *State) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Result 步骤结果
func (s *State) Result(id string) (tools.Result, bool) {
	r, ok := s.results[id]
	return r, ok
}

// Signals 累积的信号
func (s *State) Signals() []signals.Signal {
	return append([]signals.Signal(nil), s.signals...)
}

// Injected 注入过的步骤 id
func (s *State) Injected() []string {
	return append([]string(nil), s.injected...)
}

// Decision 最近一次异常决策
func (s *State) Decision() (signals.Decision, bool) {
	if s.decision == nil {
		return signals.Decision{}, false
	}
	return *s.decision, true
}

// Inject 追加步骤到队尾，已存在的 id 忽略；返回实际追加的 id
func (s *State) Inject(steps ...dsl.Step) []string {
	var added []string
	for _, step := range steps {
		if step.ID == "" || s.Has(step.ID) {
			continue
		}
		s.ids[step.ID] = struct{}{}
		s.queue = append(s.queue, step)
		s.injected = append(s.injected, step.ID)
		added = append(added, step.ID)
	}
	return added
}

// next 弹出队首
func (s *State) next() (dsl.Step, bool) {
	if len(s.queue) == 0 {
		return dsl.Step{}, false
	}
	step := s.queue[0]
	s.queue = s.queue[1:]
	s.executed = append(s.executed, step)
	return step, true
}

func (s *State) record(id string, res tools.Result) {
	s.results[id] = res
	for _, sig := range res.Meta().Signals {
		if sig.StepID == "" {
			sig.StepID = id
		}
		s.signals = append(s.signals, sig)
	}
}

func (s *State) emit(sig signals.Signal) {
	s.signals = append(s.signals, sig)
}
