package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	appconfig "github.com/zhangzihaoDT/BI-reasoning/internal/app/config"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/consumer"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/modules/mdanalysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/modules/mdrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/repo/rprun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/services/svcallback"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/services/svrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/server/handlers/analysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/server/routers"
	"github.com/zhangzihaoDT/BI-reasoning/internal/bootstrap"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/config"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/infra/mysql"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/infra/redis"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/lmstfy"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// App 应用容器
type App struct {
	Engine           *gin.Engine
	CallbackConsumer *consumer.CallbackConsumer
}

// InitializeApp 组装 HTTP Server 与回调消费者
// 依赖顺序：MySQL -> Redis -> Lmstfy -> Repo -> Module -> Service -> Handler -> Router
func InitializeApp(cfg *config.Config, log logger.Logger) (*App, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	db, err := mysql.Open(cfg.MySQL.DSN)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, func() {
		if err := mysql.Close(db); err != nil {
			log.Warnf(context.Background(), "[App] close mysql failed: %v", err)
		}
	})
	if err := rprun.AutoMigrate(db); err != nil {
		return fail(fmt.Errorf("migrate analysis_runs failed: %w", err))
	}

	pubsub, err := redis.NewPubSub(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Notify.ChannelPrefix)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, func() { _ = pubsub.Close() })

	lmstfyClient, err := lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
	if err != nil {
		return fail(err)
	}

	// 同步执行接口使用的进程内运行时；数据在首次调用时加载
	runtime, rtCleanup, err := bootstrap.New(cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, rtCleanup)

	runModule := mdrun.NewRunModule(rprun.NewRunRepository(db))
	analysisModule := mdanalysis.NewAnalysisModule(lmstfyClient, pubsub, cfg.Server.Queue, cfg.Server.AskQueue)

	runService := svrun.NewRunService(runModule, analysisModule, runtime, log)
	callbackService := svcallback.NewCallbackService(runModule, pubsub, log)

	engine := routers.SetupRoutes(analysis.NewAnalysisHandler(runService, cfg.Server.WaitTimeout), log)
	callbackConsumer := consumer.NewCallbackConsumer(lmstfyClient, callbackService, consumer.Config{
		QueueName: cfg.Server.Callback,
	}, log)

	log.Infof(context.Background(), "[App] initialized: addr=%s, queue=%s, ask_queue=%s, callback_queue=%s",
		appconfig.ServerAddr(cfg), cfg.Server.Queue, cfg.Server.AskQueue, cfg.Server.Callback)

	return &App{
		Engine:           engine,
		CallbackConsumer: callbackConsumer,
	}, cleanup, nil
}
