package framework

import (
	"context"
	"sync"
	"time"

	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// Subscriber 订阅者：从消息队列拉取消息，转发给 Processor
type Subscriber struct {
	cfg        SubscriberConfig
	source     MessageSource
	logger     logger.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewSubscriber 创建订阅者
func NewSubscriber(cfg SubscriberConfig, source MessageSource, log logger.Logger) *Subscriber {
	cfg.withDefaults()
	return &Subscriber{
		cfg:    cfg,
		source: source,
		logger: log,
	}
}

// Start 启动拉取协程，父 Context 取消或 Stop 后退出
func (s *Subscriber) Start(parentCtx context.Context, inputChan chan<- *Message) {
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel

	s.logger.Infof(ctx, "[Subscriber] Starting with %d workers for queue: %s",
		s.cfg.Concurrency, s.cfg.QueueName)

	for i := 0; i < s.cfg.Concurrency; i++ {
		s.wg.Add(1)
		go s.loop(logger.WithWorkerID(ctx, i), i, inputChan)
	}
}

// Stop 停止拉取新消息
func (s *Subscriber) Stop() {
	s.logger.Infof(context.Background(), "[Subscriber] Stopping...")
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
}

// Wait 等待所有拉取协程退出
func (s *Subscriber) Wait() {
	s.wg.Wait()
	s.logger.Infof(context.Background(), "[Subscriber] All workers exited")
}

func (s *Subscriber) loop(ctx context.Context, workerID int, inputChan chan<- *Message) {
	defer s.wg.Done()
	s.logger.Infof(ctx, "[Subscriber-%d] Started", workerID)

	for {
		if ctx.Err() != nil {
			s.logger.Infof(ctx, "[Subscriber-%d] Context cancelled, exiting", workerID)
			return
		}

		msg, err := s.source.Consume(s.cfg.QueueName, s.cfg.Timeout, s.cfg.TTR)
		if err != nil {
			// 网络抖动不退出
			s.logger.Warnf(ctx, "[Subscriber-%d] Consume error: %v, retrying...", workerID, err)
			if !sleepCtx(ctx, s.cfg.ErrorBackoff) {
				return
			}
			continue
		}
		if msg == nil {
			continue
		}

		select {
		case inputChan <- msg:
			s.logger.Debugf(ctx, "[Subscriber-%d] Message sent: %s", workerID, msg.ID)
		case <-ctx.Done():
			// 未 ACK，TTR 到期后由 lmstfy 重新投递
			s.logger.Warnf(ctx, "[Subscriber-%d] Dropping message due to shutdown: %s", workerID, msg.ID)
			return
		}

		if !sleepCtx(ctx, s.cfg.Rate) {
			return
		}
	}
}

// sleepCtx 可中断的等待，ctx 取消返回 false
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
