package business

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/errorutil"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/lmstfyx"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// CallbackService 回调服务（不涉及 DB 操作）
// 职责：将运行结果发送到 callback 队列，由 callback consumer 落库并通知
type CallbackService struct {
	publisher     lmstfyx.Publisher
	callbackQueue string
	logger        logger.Logger
}

// NewCallbackService 创建回调服务实例
func NewCallbackService(publisher lmstfyx.Publisher, callbackQueue string, log logger.Logger) *CallbackService {
	if log == nil {
		log = logger.NewNop()
	}
	return &CallbackService{
		publisher:     publisher,
		callbackQueue: callbackQueue,
		logger:        log,
	}
}

// Send 发送回调；发送失败为可重试错误
func (s *CallbackService) Send(ctx context.Context, callback *model.AnalysisCallback) error {
	if callback.ProcessedAt == 0 {
		callback.ProcessedAt = time.Now().Unix()
	}

	callbackJSON, err := json.Marshal(callback)
	if err != nil {
		return errorutil.NonRetriableWrap(err, "failed to marshal callback")
	}

	// ttl=0 表示永不过期, delay=0 表示立即可用
	jobID, err := s.publisher.Publish(s.callbackQueue, callbackJSON, 0, 0)
	if err != nil {
		return errorutil.RetriableWrap(err, "failed to publish callback")
	}

	s.logger.Infof(ctx, "[Callback] sent: run_id=%s, status=%s, job_id=%s",
		callback.RunID, callback.Status, jobID)
	return nil
}
