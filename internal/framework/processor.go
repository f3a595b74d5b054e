package framework

import (
	"context"
	"sync"
	"time"

	"github.com/bitleak/lmstfy/client"

	"github.com/zhangzihaoDT/BI-reasoning/internal/metrics"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/lmstfyx"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// Processor 处理器：接收消息，调用业务处理函数，按结果 ACK 或留给 lmstfy 重投
type Processor struct {
	cfg        ProcessorConfig
	proc       lmstfyx.Proc
	source     MessageSource
	logger     logger.Logger
	shutdownCh chan struct{}
	once       sync.Once
	wg         sync.WaitGroup
}

// NewProcessor 创建处理器
func NewProcessor(cfg ProcessorConfig, proc lmstfyx.Proc, source MessageSource, log logger.Logger) *Processor {
	cfg.withDefaults()
	return &Processor{
		cfg:        cfg,
		proc:       proc,
		source:     source,
		logger:     log,
		shutdownCh: make(chan struct{}),
	}
}

// Start 启动处理协程
func (p *Processor) Start(ctx context.Context, inputChan <-chan *Message) {
	p.logger.Infof(ctx, "[Processor] Starting with %d workers", p.cfg.Concurrency)

	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(logger.WithWorkerID(ctx, i), i, inputChan)
	}
}

// SignalShutdown 通知 Processor 进入 Drain 模式
func (p *Processor) SignalShutdown() {
	p.once.Do(func() {
		p.logger.Infof(context.Background(), "[Processor] Shutdown signal received")
		close(p.shutdownCh)
	})
}

// Wait 等待所有处理协程退出
func (p *Processor) Wait() {
	p.wg.Wait()
	p.logger.Infof(context.Background(), "[Processor] All workers exited")
}

func (p *Processor) loop(ctx context.Context, workerID int, inputChan <-chan *Message) {
	defer p.wg.Done()
	p.logger.Infof(ctx, "[Processor-%d] Started", workerID)

	for {
		select {
		case msg := <-inputChan:
			p.process(ctx, msg, workerID)

		case <-p.shutdownCh:
			p.logger.Infof(ctx, "[Processor-%d] Entering DRAIN mode", workerID)
			count := 0
			for {
				select {
				case msg := <-inputChan:
					p.process(ctx, msg, workerID)
					count++
				default:
					p.logger.Infof(ctx, "[Processor-%d] Drained %d messages, exiting", workerID, count)
					return
				}
			}
		}
	}
}

// process 处理单个消息
func (p *Processor) process(ctx context.Context, msg *Message, workerID int) {
	if msg == nil {
		return
	}
	startTime := time.Now()

	procCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	p.logger.Infof(procCtx, "[Processor-%d] Processing message: %s", workerID, msg.ID)

	resp := p.proc(procCtx, &client.Job{
		ID:    msg.ID,
		Queue: msg.Queue,
		Data:  msg.Data,
	})
	if resp == nil {
		resp = &lmstfyx.JobResp{Action: lmstfyx.JobRespStatusBury}
	}

	p.settle(ctx, msg, resp.Action, workerID)
	metrics.Jobs.WithLabelValues(p.queue(msg), resp.Action.String()).Inc()
	p.logger.Infof(procCtx, "[Processor-%d] Message processed: %s, action: %s, duration: %v",
		workerID, msg.ID, resp.Action, time.Since(startTime))
}

// settle Success / Bury 立即 ACK；Release 不 ACK，TTR 到期后重新投递，重试次数用尽进入死信
func (p *Processor) settle(ctx context.Context, msg *Message, action lmstfyx.JobRespStatus, workerID int) {
	if action == lmstfyx.JobRespStatusRelease {
		p.logger.Warnf(ctx, "[Processor-%d] Message released for retry: %s", workerID, msg.ID)
		return
	}
	if err := p.source.Ack(p.queue(msg), msg.ID); err != nil {
		p.logger.Errorf(ctx, "[Processor-%d] Ack failed: %s, %v", workerID, msg.ID, err)
	}
}

func (p *Processor) queue(msg *Message) string {
	if msg.Queue != "" {
		return msg.Queue
	}
	return p.cfg.QueueName
}
