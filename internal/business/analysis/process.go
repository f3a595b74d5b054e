package analysis

import (
	"context"
	"errors"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/business"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/engine"
	"github.com/zhangzihaoDT/BI-reasoning/internal/framework"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/errorutil"
)

// Deps 处理器依赖
type Deps struct {
	Runtime  Runtime
	Callback *business.CallbackService
}

// runner bi_analysis / bi_ask 共用的执行与回调流程
type runner struct {
	framework.BaseHandler

	deps   *Deps
	steps  []dsl.Step
	source string
	report *engine.Report
	runErr error
}

func newRunner(base *framework.BaseHandler, deps *Deps) runner {
	r := runner{BaseHandler: *base, deps: deps}
	r.SetResulter(NewReportResulter())
	return r
}

// Process 执行引擎
// 数据加载失败、运行被中断为可重试错误；工具失败或超出步数上限作为运行结果（FAILED）回调
func (h *runner) Process(ctx context.Context) error {
	if err := h.deps.Runtime.EnsureLoaded(ctx); err != nil {
		return errorutil.RetriableWrap(err, "load dataset failed")
	}

	report, err := h.deps.Runtime.Run(ctx, h.steps)
	if report == nil && err != nil {
		return errorutil.NonRetriableWrap(err, "invalid plan")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errorutil.RetriableWrap(err, "analysis interrupted")
	}
	h.report, h.runErr = report, err
	return nil
}

// PostProcess 生成输出并发送回调
func (h *runner) PostProcess(ctx context.Context) error {
	meta := h.GetMeta()
	err := h.GetResulter().Set(ctx, &RunResultData{
		RunID:  meta.RunID,
		Steps:  h.steps,
		Report: h.report,
		RunErr: h.runErr,
		Source: h.source,
	})
	if err != nil {
		return errorutil.NonRetriableWrap(err, "build output failed")
	}

	out := h.GetResulter().Get(ctx).(*RunOutput)
	h.SetOutput(out)

	return h.deps.Callback.Send(ctx, &model.AnalysisCallback{
		RequestID:  meta.RequestID,
		RunID:      meta.RunID,
		ActionType: meta.ActionType,
		Status:     out.Status,
		Anomalous:  out.Anomalous,
		Source:     out.Source,
		Report:     out.Report,
		Error:      out.Error,
	})
}

// handle 运行处理链；不可重试且尚未回调的失败补发 FAILED 回调
func (h *runner) handle(ctx context.Context, pre framework.ProcessorFunc) ([]byte, error) {
	err := framework.NewChain().
		Then("prepare", pre).
		Then("process", h.Process).
		Then("post", h.PostProcess).
		Run(ctx)
	if err == nil {
		return h.WrapResponse(ctx, h.GetOutput())
	}
	if ctx.Err() != nil && !errorutil.IsRetryable(err) {
		err = errorutil.RetriableWrap(err, "analysis interrupted")
	}

	if !errorutil.IsRetryable(err) && h.GetOutput() == nil {
		meta := h.GetMeta()
		cbErr := h.deps.Callback.Send(ctx, &model.AnalysisCallback{
			RequestID:  meta.RequestID,
			RunID:      meta.RunID,
			ActionType: meta.ActionType,
			Status:     model.CallbackStatusFailed,
			Error:      err.Error(),
		})
		if cbErr != nil {
			err = cbErr
		}
	}

	data, _ := h.WrapErrorResponse(ctx, err)
	return data, err
}
