package svrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/entity/etrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/modules/mdanalysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/modules/mdrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/pkg/errorx"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/pkg/idgen"
	"github.com/zhangzihaoDT/BI-reasoning/internal/business/analysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/internal/engine"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// Executor 进程内执行器（bootstrap.Runtime 实现）
type Executor interface {
	EnsureLoaded(ctx context.Context) error
	Run(ctx context.Context, steps []dsl.Step) (*engine.Report, error)
}

// RunService 分析任务服务，负责任务编排
type RunService struct {
	runModule      *mdrun.RunModule
	analysisModule *mdanalysis.AnalysisModule
	executor       Executor
	logger         logger.Logger
}

// NewRunService 创建服务实例；executor 为 nil 时同步执行接口不可用
func NewRunService(runModule *mdrun.RunModule, analysisModule *mdanalysis.AnalysisModule, executor Executor, log logger.Logger) *RunService {
	if log == nil {
		log = logger.NewNop()
	}
	return &RunService{
		runModule:      runModule,
		analysisModule: analysisModule,
		executor:       executor,
		logger:         log,
	}
}

// CreateRun 创建分析任务（完整业务流程）
// 1. 校验步骤 / 预置策略
// 2. 落库（RUNNING）
// 3. 发布到分析队列
// 4. Smart Wait（等待回调通知）
func (s *RunService) CreateRun(ctx context.Context, data model.AnalysisRunData, wait time.Duration) (*etrun.Run, error) {
	steps, err := analysis.ResolveSteps(data)
	if err != nil {
		return nil, errorx.Invalid(errorx.ErrInvalidPlan, err.Error())
	}
	if _, err := engine.NewState(steps); err != nil {
		return nil, errorx.Invalid(errorx.ErrInvalidPlan, err.Error())
	}
	return s.submit(ctx, model.ActionAnalysisRun, data, wait)
}

// Ask 提交问句任务
func (s *RunService) Ask(ctx context.Context, question string, wait time.Duration) (*etrun.Run, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errorx.Invalid(errorx.ErrInvalidPlan, "question is required")
	}
	return s.submit(ctx, model.ActionAsk, model.AskData{Question: question}, wait)
}

func (s *RunService) submit(ctx context.Context, actionType string, data interface{}, wait time.Duration) (*etrun.Run, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal run request failed: %w", err)
	}

	requestID := logger.TraceID(ctx)
	if requestID == "" {
		requestID = idgen.NewRequestID()
	}
	run, err := etrun.NewRun(idgen.NewRunID(), requestID, actionType, raw)
	if err != nil {
		return nil, fmt.Errorf("create run entity failed: %w", err)
	}

	if err := s.runModule.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save run failed: %w", err)
	}

	jobID, err := s.analysisModule.PublishRunJob(ctx, run)
	if err != nil {
		s.logger.Errorf(ctx, "[RunService] publish job failed: run_id=%s, error=%v", run.ID, err)
		failed := &etrun.Result{Error: err.Error()}
		if _, uerr := s.runModule.CompleteRun(ctx, run.ID, failed); uerr != nil {
			s.logger.Errorf(ctx, "[RunService] mark run failed: run_id=%s, error=%v", run.ID, uerr)
		}
		return nil, fmt.Errorf("%w: %v", errorx.ErrPublishFailed, err)
	}
	s.logger.Infof(ctx, "[RunService] job published: run_id=%s, action_type=%s, job_id=%s", run.ID, actionType, jobID)

	if wait <= 0 {
		return run, nil
	}

	result, err := s.analysisModule.WaitForRunResult(ctx, run.ID, wait)
	if err != nil {
		// 超时或订阅失败，返回 RUNNING，由调用方轮询
		if !errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warnf(ctx, "[RunService] wait for result failed: run_id=%s, error=%v", run.ID, err)
		}
		return run, nil
	}
	// 结果已由 callback consumer 落库，这里只更新内存中的实体
	if err := run.Complete(result); err != nil {
		return nil, fmt.Errorf("update run entity failed: %w", err)
	}
	return run, nil
}

// GetRun 查询任务
func (s *RunService) GetRun(ctx context.Context, runID string) (*etrun.Run, error) {
	if !idgen.ValidRunID(runID) {
		return nil, errorx.ErrRunNotFound
	}
	return s.runModule.GetRun(ctx, runID)
}

// Execute 进程内同步执行，不经过队列与落库
// 返回的 error 为执行失败（工具错误、超出步数上限），此时 report 仍包含已完成的步骤
func (s *RunService) Execute(ctx context.Context, data model.AnalysisRunData) (*engine.Report, error) {
	if s.executor == nil {
		return nil, errorx.NewBusinessError(501, "synchronous execution is disabled")
	}
	steps, err := analysis.ResolveSteps(data)
	if err != nil {
		return nil, errorx.Invalid(errorx.ErrInvalidPlan, err.Error())
	}
	if err := s.executor.EnsureLoaded(ctx); err != nil {
		return nil, fmt.Errorf("load dataset failed: %w", err)
	}

	report, err := s.executor.Run(ctx, steps)
	if report == nil && err != nil {
		return nil, errorx.Invalid(errorx.ErrInvalidPlan, err.Error())
	}
	return report, err
}
