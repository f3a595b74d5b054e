package svcallback

import (
	"context"
	"fmt"
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/entity/etrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/modules/mdrun"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/infra/redis"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// Notifier 结果通知（pkg/infra/redis.PubSub 实现）
type Notifier interface {
	PublishRunComplete(ctx context.Context, notification *redis.RunNotification) error
}

// CallbackService 回调处理服务
// 职责：
// 1. 处理 worker 发送的运行回调
// 2. 更新 DB 任务状态与报告
// 3. 发送 Redis PubSub 通知（Smart Wait）
type CallbackService struct {
	runModule *mdrun.RunModule
	notifier  Notifier
	logger    logger.Logger
}

// NewCallbackService 创建回调服务实例
func NewCallbackService(runModule *mdrun.RunModule, notifier Notifier, log logger.Logger) *CallbackService {
	if log == nil {
		log = logger.NewNop()
	}
	return &CallbackService{
		runModule: runModule,
		notifier:  notifier,
		logger:    log,
	}
}

// HandleCallback 处理运行回调；返回 error 表示需要重试
func (s *CallbackService) HandleCallback(ctx context.Context, callback *model.AnalysisCallback) error {
	s.logger.Infof(ctx, "[Callback] processing: run_id=%s, status=%s, anomalous=%v",
		callback.RunID, callback.Status, callback.Anomalous)

	result := &etrun.Result{
		Succeeded: callback.Status == model.CallbackStatusSuccess,
		Anomalous: callback.Anomalous,
		Source:    callback.Source,
		Report:    callback.Report,
		Error:     callback.Error,
	}
	updated, err := s.runModule.CompleteRun(ctx, callback.RunID, result)
	if err != nil {
		return fmt.Errorf("update run result failed: %w", err)
	}
	if !updated {
		// 重复投递或由 CLI 直接发布的任务（无 RUNNING 记录）
		s.logger.Warnf(ctx, "[Callback] no running record updated: run_id=%s", callback.RunID)
	}

	// 通知失败不影响整体流程（DB 已更新），调用方轮询兜底
	if err := s.notifier.PublishRunComplete(ctx, &redis.RunNotification{
		RunID:     callback.RunID,
		Status:    callback.Status,
		Anomalous: callback.Anomalous,
		Source:    callback.Source,
		Report:    callback.Report,
		Error:     callback.Error,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		s.logger.Warnf(ctx, "[Callback] publish notification failed: run_id=%s, error=%v", callback.RunID, err)
	}

	s.logger.Infof(ctx, "[Callback] processed: run_id=%s", callback.RunID)
	return nil
}
