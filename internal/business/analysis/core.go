package analysis

import (
	"context"
	"strings"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/agent"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/framework"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/errorutil"
)

// RunHandler bi_analysis：执行显式步骤序列或预置策略
type RunHandler struct {
	runner
	payload model.AnalysisRunData
}

// NewRunHandler 创建 bi_analysis 处理器
func NewRunHandler(ctx context.Context, base *framework.BaseHandler, deps *Deps) (framework.BusinessHandler, error) {
	return &RunHandler{runner: newRunner(base, deps)}, nil
}

// Handle 处理入口
func (h *RunHandler) Handle(ctx context.Context) ([]byte, error) {
	return h.handle(ctx, h.PreProcess)
}

// PreProcess 步骤与预置策略二选一
func (h *RunHandler) PreProcess(ctx context.Context) error {
	if err := h.BindPayload(&h.payload); err != nil {
		return err
	}
	steps, err := ResolveSteps(h.payload)
	if err != nil {
		return err
	}
	h.steps = steps
	return nil
}

// ResolveSteps 显式步骤与预置策略二选一，预置策略展开为步骤序列
func ResolveSteps(p model.AnalysisRunData) ([]dsl.Step, error) {
	switch {
	case len(p.Steps) > 0 && p.Preset != "":
		return nil, errorutil.NonRetriable("steps and preset are mutually exclusive")
	case len(p.Steps) > 0:
		return p.Steps, nil
	case p.Preset != "":
		in := agent.PresetInput{}
		if p.PresetInput != nil {
			in = agent.PresetInput{
				Metric:    p.PresetInput.Metric,
				Dimension: p.PresetInput.Dimension,
				DateRange: p.PresetInput.DateRange,
				Filters:   p.PresetInput.Filters,
			}
		}
		steps, err := agent.Preset(p.Preset, in)
		if err != nil {
			return nil, errorutil.NonRetriableWrap(err, "build preset failed")
		}
		return steps, nil
	}
	return nil, errorutil.NonRetriable("steps or preset is required")
}

// AskHandler bi_ask：问句 -> 单步 query / rollup
type AskHandler struct {
	runner
	payload model.AskData
}

// NewAskHandler 创建 bi_ask 处理器
func NewAskHandler(ctx context.Context, base *framework.BaseHandler, deps *Deps) (framework.BusinessHandler, error) {
	return &AskHandler{runner: newRunner(base, deps)}, nil
}

// Handle 处理入口
func (h *AskHandler) Handle(ctx context.Context) ([]byte, error) {
	return h.handle(ctx, h.PreProcess)
}

// PreProcess 抽取问句（大模型失败自动降级为规则抽取）
func (h *AskHandler) PreProcess(ctx context.Context) error {
	if err := h.BindPayload(&h.payload); err != nil {
		return err
	}
	question := strings.TrimSpace(h.payload.Question)
	if question == "" {
		return errorutil.NonRetriable("question is required")
	}
	qa, err := h.deps.Runtime.QueryAgent(ctx)
	if err != nil {
		return errorutil.RetriableWrap(err, "load dataset failed")
	}
	step, source := qa.Step(ctx, question)
	h.steps = append(h.steps[:0], step)
	h.source = source
	return nil
}
