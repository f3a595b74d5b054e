package domains

import (
	"context"
	"time"

	"github.com/bitleak/lmstfy/client"

	"github.com/zhangzihaoDT/BI-reasoning/internal/business/analysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/framework"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/errorutil"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/lmstfyx"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// GetProcess 返回核心处理函数（注入到 Processor）
func GetProcess(log logger.Logger, deps *analysis.Deps) lmstfyx.Proc {
	return func(ctx context.Context, lmstfyJob *client.Job) (resp *lmstfyx.JobResp) {
		startTime := time.Now()

		// 1. 解析 Job
		base := &framework.BaseHandler{}
		if err := base.ParseJob(ctx, lmstfyJob.Data); err != nil {
			log.Errorf(ctx, "[GetProcess] parseJob failed: %v", err)
			return &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusBury}
		}
		meta := base.GetMeta()

		// 2. 注入 TraceID
		ctx = logger.WithTraceID(ctx, meta.RequestID)
		ctx = logger.WithActionType(ctx, meta.ActionType)
		ctx = logger.WithRunID(ctx, meta.RunID)

		log.Infof(ctx, "[GetProcess] Processing job: action_type=%s, request_id=%s, run_id=%s",
			meta.ActionType, meta.RequestID, meta.RunID)

		// 3. 从 HandlerMap 获取 Handler
		factory, ok := HandlerMap[meta.ActionType]
		if !ok {
			log.Errorf(ctx, "[GetProcess] handler not found for action_type: %s", meta.ActionType)
			return &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusBury}
		}

		// 4. 调用 Handler（捕获 panic）
		defer func() {
			if r := recover(); r != nil {
				log.Errorf(ctx, "[GetProcess] handler panic: %v", r)
				resp = &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusBury}
			}
			log.Infof(ctx, "[GetProcess] Processing complete: action=%s, duration=%v",
				resp.Action, time.Since(startTime))
		}()

		handler, err := factory(ctx, base, deps)
		if err != nil {
			log.Errorf(ctx, "[GetProcess] handler creation failed: %v", err)
			return &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusBury}
		}

		data, err := handler.Handle(ctx)
		return doJobReport(ctx, data, err, log)
	}
}

// doJobReport 根据错误的可重试标记决定 ACK / Release / Bury
func doJobReport(ctx context.Context, data []byte, err error, log logger.Logger) *lmstfyx.JobResp {
	switch {
	case err == nil:
		return &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusSuccess, Data: data}
	case errorutil.IsRetryable(err):
		log.Warnf(ctx, "[GetProcess] retryable failure: %v", err)
		return &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusRelease, Data: data}
	default:
		log.Errorf(ctx, "[GetProcess] non-retryable failure: %v", err)
		return &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusBury, Data: data}
	}
}
