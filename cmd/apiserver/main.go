package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	appconfig "github.com/zhangzihaoDT/BI-reasoning/internal/app/config"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

var (
	configPath = flag.String("config", appconfig.DefaultPath, "配置文件路径")
)

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := appconfig.Validate(cfg); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	// 2. 初始化 Logger
	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 3. 初始化应用（包含 HTTP Server 和 Consumer）
	app, cleanup, err := InitializeApp(cfg, zapLogger)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer cleanup()

	// 4. 创建 HTTP Server
	addr := appconfig.ServerAddr(cfg)
	server := &http.Server{
		Addr:              addr,
		Handler:           app.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. 启动 Consumer（后台 goroutine）
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	consumerErrChan := make(chan error, 1)

	go func() {
		log.Printf("Starting callback consumer...")
		consumerErrChan <- app.CallbackConsumer.Start(consumerCtx)
	}()

	// 6. 启动 HTTP Server（后台 goroutine）
	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// 7. 优雅停机处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Received shutdown signal, gracefully shutting down...")
		gracefulShutdown(server, cancelConsumer, consumerErrChan)
	case err := <-serverErrChan:
		cancelConsumer()
		log.Printf("HTTP server error: %v", err)
	case err := <-consumerErrChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Consumer error: %v", err)
		}
		gracefulShutdown(server, cancelConsumer, nil)
	}

	log.Println("Application stopped")
}

// gracefulShutdown 先停消费者（当前消息处理完），再停 HTTP Server
func gracefulShutdown(server *http.Server, cancelConsumer context.CancelFunc, consumerDone <-chan error) {
	log.Println("Stopping consumer...")
	cancelConsumer()
	if consumerDone != nil {
		select {
		case <-consumerDone:
		case <-time.After(5 * time.Second):
			log.Println("Consumer stop timed out")
		}
	}

	log.Println("Stopping HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}
}
