package config

import (
	"fmt"

	"github.com/zhangzihaoDT/BI-reasoning/pkg/config"
)

// DefaultPath 默认配置文件路径
const DefaultPath = "config/config.yaml"

// Load 加载 apiserver / callback consumer 配置（与 worker 共用 pkg/config 结构）
func Load(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Notify.ChannelPrefix == "" {
		cfg.Notify.ChannelPrefix = "analysis:result:"
	}
	return cfg, nil
}

// LoadDefault 加载默认配置文件路径
func LoadDefault() (*config.Config, error) {
	return Load(DefaultPath)
}

// Validate 验证 apiserver 配置完整性：运行记录落库、通知、队列
func Validate(c *config.Config) error {
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql dsn is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.Lmstfy.Host == "" {
		return fmt.Errorf("lmstfy host is required")
	}
	if c.Server.Queue == "" || c.Server.Callback == "" {
		return fmt.Errorf("server.queue and server.callback_queue are required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	return c.ValidateAnalysis()
}

// ServerAddr 监听地址
func ServerAddr(c *config.Config) string {
	if c.Server.Port > 0 {
		return fmt.Sprintf(":%d", c.Server.Port)
	}
	return ":8080"
}
