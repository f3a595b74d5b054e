package mdanalysis

import (
	"context"
	"fmt"
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/entity/etrun"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/infra/redis"
)

// JobPublisher 任务发布（pkg/lmstfy.Client 实现）
type JobPublisher interface {
	PublishJSON(queue string, v interface{}) (string, error)
}

// ResultWaiter 结果等待（pkg/infra/redis.PubSub 实现）
type ResultWaiter interface {
	WaitRunComplete(ctx context.Context, runID string, timeout time.Duration) (*redis.RunNotification, error)
}

// AnalysisModule 分析任务投递模块
// 职责：
// 1. 构造标准化 Job 消息并按 action_type 选择队列
// 2. 订阅 analysis:result:{run_id} 等待结果（Smart Wait）
type AnalysisModule struct {
	publisher JobPublisher
	waiter    ResultWaiter
	queues    map[string]string
}

// NewAnalysisModule 创建模块实例；askQueue 为空时问句任务与分析任务共用队列
func NewAnalysisModule(publisher JobPublisher, waiter ResultWaiter, runQueue, askQueue string) *AnalysisModule {
	if askQueue == "" {
		askQueue = runQueue
	}
	return &AnalysisModule{
		publisher: publisher,
		waiter:    waiter,
		queues: map[string]string{
			model.ActionAnalysisRun: runQueue,
			model.ActionAsk:         askQueue,
		},
	}
}

// PublishRunJob 发布任务到队列，返回 lmstfy job id
func (m *AnalysisModule) PublishRunJob(ctx context.Context, run *etrun.Run) (string, error) {
	queue, ok := m.queues[run.ActionType]
	if !ok {
		return "", fmt.Errorf("no queue for action_type: %s", run.ActionType)
	}
	job, err := model.NewJob(run.RequestID, run.ActionType, run.ID, run.Request)
	if err != nil {
		return "", err
	}
	return m.publisher.PublishJSON(queue, job)
}

// WaitForRunResult 等待运行结果；超时返回 context.DeadlineExceeded
func (m *AnalysisModule) WaitForRunResult(ctx context.Context, runID string, timeout time.Duration) (*etrun.Result, error) {
	n, err := m.waiter.WaitRunComplete(ctx, runID, timeout)
	if err != nil {
		return nil, err
	}
	return &etrun.Result{
		Succeeded: n.Status == model.CallbackStatusSuccess,
		Anomalous: n.Anomalous,
		Source:    n.Source,
		Report:    n.Report,
		Error:     n.Error,
	}, nil
}
