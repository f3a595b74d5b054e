package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/framework"
	"github.com/zhangzihaoDT/BI-reasoning/internal/metrics"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// CallbackHandler 回调处理（svcallback.CallbackService 实现）
type CallbackHandler interface {
	HandleCallback(ctx context.Context, callback *model.AnalysisCallback) error
}

// CallbackConsumer 回调消费者
// 职责：
// 1. 从 lmstfy 队列消费回调消息
// 2. 解析消息并调用 CallbackService 处理
// 3. 确认消息（ACK）
type CallbackConsumer struct {
	source  framework.MessageSource
	handler CallbackHandler
	cfg     Config
	logger  logger.Logger
}

// Config 消费者配置
type Config struct {
	QueueName    string        // 队列名称
	Timeout      time.Duration // 拉取消息超时
	TTR          time.Duration // Time-To-Run，未 ACK 的消息到期重投
	PollInterval time.Duration // 出错后的等待间隔
}

// NewCallbackConsumer 创建回调消费者实例
func NewCallbackConsumer(source framework.MessageSource, handler CallbackHandler, cfg Config, log logger.Logger) *CallbackConsumer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.TTR <= 0 {
		cfg.TTR = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CallbackConsumer{
		source:  source,
		handler: handler,
		cfg:     cfg,
		logger:  log,
	}
}

// Start 启动消费循环，ctx 取消后返回 ctx.Err()
func (c *CallbackConsumer) Start(ctx context.Context) error {
	c.logger.Infof(ctx, "[CallbackConsumer] started, queue=%s, timeout=%v, ttr=%v",
		c.cfg.QueueName, c.cfg.Timeout, c.cfg.TTR)

	for {
		select {
		case <-ctx.Done():
			c.logger.Infof(context.Background(), "[CallbackConsumer] stopped")
			return ctx.Err()
		default:
		}

		if err := c.ConsumeOne(ctx); err != nil {
			c.logger.Errorf(ctx, "[CallbackConsumer] consume failed: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.PollInterval):
			}
		}
	}
}

// ConsumeOne 消费一条消息；队列为空返回 nil
func (c *CallbackConsumer) ConsumeOne(ctx context.Context) error {
	msg, err := c.source.Consume(c.cfg.QueueName, c.cfg.Timeout, c.cfg.TTR)
	if err != nil {
		return fmt.Errorf("consume message failed: %w", err)
	}
	if msg == nil {
		return nil
	}

	callback, err := parseMessage(msg.Data)
	if err != nil {
		metrics.Callbacks.WithLabelValues("", "invalid").Inc()
		// 解析失败直接 ACK，避免无限重投
		_ = c.source.Ack(c.cfg.QueueName, msg.ID)
		return fmt.Errorf("parse callback %s failed: %w", msg.ID, err)
	}

	ctx = logger.WithTraceID(ctx, callback.RequestID)
	ctx = logger.WithRunID(ctx, callback.RunID)
	c.logger.Infof(ctx, "[CallbackConsumer] received: job_id=%s", msg.ID)

	if err := c.handler.HandleCallback(ctx, callback); err != nil {
		metrics.Callbacks.WithLabelValues(callback.Status, "error").Inc()
		// 处理失败不 ACK，TTR 到期后重投
		return fmt.Errorf("handle callback %s failed: %w", msg.ID, err)
	}

	if err := c.source.Ack(c.cfg.QueueName, msg.ID); err != nil {
		return fmt.Errorf("ack callback %s failed: %w", msg.ID, err)
	}
	metrics.Callbacks.WithLabelValues(callback.Status, "ok").Inc()
	return nil
}

// parseMessage 解析并校验回调消息
func parseMessage(data []byte) (*model.AnalysisCallback, error) {
	var callback model.AnalysisCallback
	if err := json.Unmarshal(data, &callback); err != nil {
		return nil, fmt.Errorf("unmarshal callback failed: %w", err)
	}
	if callback.RunID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	switch callback.Status {
	case model.CallbackStatusSuccess, model.CallbackStatusFailed:
	default:
		return nil, fmt.Errorf("invalid status: %q", callback.Status)
	}
	return &callback, nil
}
