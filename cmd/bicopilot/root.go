package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhangzihaoDT/BI-reasoning/internal/bootstrap"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/config"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

var (
	configPath   string
	outputFormat string
	logLevel     string
)

// rootCmd 本地分析命令行：不经过队列，直接在进程内执行
var rootCmd = &cobra.Command{
	Use:   "bicopilot",
	Short: "BI reasoning engine command line",
	Long: `bicopilot runs analysis plans against the configured dataset in-process.

Examples:
  bicopilot run plans/breadth_scan.yaml
  bicopilot scan breadth_scan --metric 锁单量 --dimension series_group
  bicopilot ask "昨天 LS9 的锁单量是多少"
  bicopilot publish plans/breadth_scan.yaml --queue bi_analysis`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径，为空时使用默认配置")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "summary", "输出格式：summary / json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别，覆盖配置文件")

	rootCmd.AddCommand(runCmd, scanCmd, askCmd, publishCmd)
}

// loadConfig 读取配置；未指定文件时使用默认值
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	return cfg, nil
}

// newRuntime 按配置构造运行时并加载数据
func newRuntime(ctx context.Context) (*bootstrap.Runtime, logger.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, func() {}, err
	}
	if err := cfg.ValidateAnalysis(); err != nil {
		return nil, nil, func() {}, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		return nil, nil, func() {}, err
	}

	rt, cleanup, err := bootstrap.New(cfg, log)
	if err != nil {
		return nil, nil, cleanup, err
	}
	if err := rt.EnsureLoaded(ctx); err != nil {
		return nil, nil, cleanup, fmt.Errorf("load dataset failed: %w", err)
	}
	return rt, log, cleanup, nil
}
