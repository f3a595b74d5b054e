package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/zhangzihaoDT/BI-reasoning/internal/app/config"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/consumer"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/modules/mdrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/repo/rprun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/services/svcallback"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/infra/mysql"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/infra/redis"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/lmstfy"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

var (
	configPath = flag.String("config", appconfig.DefaultPath, "配置文件路径")
)

// 独立部署的回调消费者：与 apiserver 内置的消费者逻辑相同，用于单独扩容
func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Callback == "" {
		log.Fatalf("server.callback_queue is required")
	}

	// 2. 初始化 Logger
	appLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()
	ctx := context.Background()

	// 3. 初始化基础设施
	db, err := mysql.Open(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	defer mysql.Close(db)
	if err := rprun.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate analysis_runs: %v", err)
	}
	appLogger.Infof(ctx, "[CallbackConsumer] database connected")

	pubsub, err := redis.NewPubSub(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Notify.ChannelPrefix)
	if err != nil {
		log.Fatalf("Failed to init redis: %v", err)
	}
	defer pubsub.Close()
	appLogger.Infof(ctx, "[CallbackConsumer] redis connected")

	lmstfyClient, err := lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
	if err != nil {
		log.Fatalf("Failed to init lmstfy: %v", err)
	}

	// 4. 初始化 Service 层
	callbackService := svcallback.NewCallbackService(
		mdrun.NewRunModule(rprun.NewRunRepository(db)),
		pubsub,
		appLogger,
	)

	// 5. 初始化 Consumer
	callbackConsumer := consumer.NewCallbackConsumer(
		lmstfyClient,
		callbackService,
		consumer.Config{
			QueueName:    cfg.Server.Callback,
			Timeout:      3 * time.Second,
			TTR:          30 * time.Second,
			PollInterval: 100 * time.Millisecond,
		},
		appLogger,
	)

	// 6. 启动消费循环（优雅退出）
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- callbackConsumer.Start(runCtx)
	}()

	select {
	case <-sigChan:
		appLogger.Infof(ctx, "[CallbackConsumer] received shutdown signal, stopping...")
		cancel()
		select {
		case <-errChan:
		case <-time.After(5 * time.Second):
		}
		appLogger.Infof(ctx, "[CallbackConsumer] stopped gracefully")
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Errorf(ctx, "[CallbackConsumer] stopped with error: %v", err)
			os.Exit(1)
		}
	}
}
