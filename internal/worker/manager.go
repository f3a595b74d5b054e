package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/zhangzihaoDT/BI-reasoning/internal/bootstrap"
	"github.com/zhangzihaoDT/BI-reasoning/internal/business"
	"github.com/zhangzihaoDT/BI-reasoning/internal/business/analysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/domains"
	"github.com/zhangzihaoDT/BI-reasoning/internal/framework"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/config"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/lmstfy"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// Manager 接口
type Manager interface {
	Start() error
	Shutdown()
}

// ManagerInstance Manager 实例
type ManagerInstance struct {
	ctx        context.Context
	cfg        *config.Config
	source     framework.MessageSource
	deps       *analysis.Deps
	cleanup    func()
	workers    []Worker
	closing    *atomic.Bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	logger     logger.Logger
}

// NewManagerInstance 创建 Manager：lmstfy 客户端 + 分析运行时 + 回调服务
func NewManagerInstance(cfg *config.Config, log logger.Logger) (Manager, error) {
	ctx := context.Background()

	lmstfyClient, err := lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create lmstfy client: %w", err)
	}

	var callbackQueue string
	if len(cfg.Workers) > 0 {
		callbackQueue = cfg.Workers[0].CallbackQueue
	}
	if callbackQueue == "" {
		callbackQueue = cfg.Server.Callback
	}
	if callbackQueue == "" {
		return nil, fmt.Errorf("callback_queue is required in worker config")
	}

	runtime, cleanup, err := bootstrap.New(cfg, log)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to build runtime: %w", err)
	}

	log.Infof(ctx, "[Manager] Initialized with callback_queue: %s, data.source: %s", callbackQueue, cfg.Data.Source)

	deps := &analysis.Deps{
		Runtime:  runtime,
		Callback: business.NewCallbackService(lmstfyClient, callbackQueue, log),
	}
	return newManager(ctx, cfg, lmstfyClient, deps, cleanup, log), nil
}

func newManager(ctx context.Context, cfg *config.Config, source framework.MessageSource, deps *analysis.Deps, cleanup func(), log logger.Logger) *ManagerInstance {
	if cleanup == nil {
		cleanup = func() {}
	}
	return &ManagerInstance{
		ctx:        ctx,
		cfg:        cfg,
		source:     source,
		deps:       deps,
		cleanup:    cleanup,
		closing:    atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
		workers:    make([]Worker, 0),
		logger:     log,
	}
}

// Start 启动 Manager，阻塞直到 Shutdown 完成
func (m *ManagerInstance) Start() error {
	m.logger.Infof(m.ctx, "[Manager] Starting...")

	if err := m.loadWorkers(); err != nil {
		return fmt.Errorf("failed to load workers: %w", err)
	}
	m.logger.Infof(m.ctx, "[Manager] All workers loaded, count: %d", len(m.workers))

	for _, worker := range m.workers {
		w := worker
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.Start()
		}()
		m.logger.Infof(m.ctx, "[Manager] Worker started: %s", w.GetName())
	}

	m.logger.Infof(m.ctx, "[Manager] Start success")

	<-m.shutdownCh
	return nil
}

// Shutdown 优雅退出，可重复调用
func (m *ManagerInstance) Shutdown() {
	m.logger.Infof(m.ctx, "[Manager] Began to close")

	if m.closing.CAS(false, true) {
		for _, worker := range m.workers {
			m.logger.Infof(m.ctx, "[Manager] Shutting down worker: %s", worker.GetName())
			worker.Shutdown()
		}
		m.wg.Wait()
		m.cleanup()
		close(m.shutdownCh)

		m.logger.Infof(m.ctx, "[Manager] Shutdown complete")
	}
}

// loadWorkers 每个 worker 配置对应一个队列（bi_analysis / bi_ask）
func (m *ManagerInstance) loadWorkers() error {
	proc := domains.GetProcess(m.logger, m.deps)

	for _, workerCfg := range m.cfg.Workers {
		if workerCfg.QueueName == "" {
			return fmt.Errorf("worker %s: queue_name is required", workerCfg.Name)
		}
		subCfg := framework.SubscriberConfig{
			QueueName:    workerCfg.QueueName,
			Concurrency:  workerCfg.Subscriber.Threads,
			Rate:         workerCfg.Subscriber.Rate,
			Timeout:      workerCfg.Subscriber.Timeout,
			TTR:          workerCfg.Subscriber.TTR,
			ErrorBackoff: workerCfg.Subscriber.ErrorBackoff,
		}
		procCfg := framework.ProcessorConfig{
			QueueName:   workerCfg.QueueName,
			Concurrency: workerCfg.Processor.Threads,
			BufferSize:  workerCfg.Processor.BufferSize,
			Timeout:     workerCfg.Processor.Timeout,
		}

		m.workers = append(m.workers, NewWorkerInstance(
			m.ctx,
			workerCfg.Name,
			subCfg,
			procCfg,
			m.source,
			proc,
			m.logger,
		))
	}
	return nil
}
