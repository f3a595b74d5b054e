package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lmstfy   LmstfyConfig   `mapstructure:"lmstfy"`
	Workers  []WorkerConfig `mapstructure:"workers"`
	Data     DataConfig     `mapstructure:"data"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Server   ServerConfig   `mapstructure:"server"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// MySQLConfig MySQL 配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LmstfyConfig Lmstfy 配置
type LmstfyConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Token     string `mapstructure:"token"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	Name          string           `mapstructure:"name"`
	QueueName     string           `mapstructure:"queue_name"`
	CallbackQueue string           `mapstructure:"callback_queue"` // 回调队列名称
	Subscriber    SubscriberConfig `mapstructure:"subscriber"`
	Processor     ProcessorConfig  `mapstructure:"processor"`
}

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	Threads      int           `mapstructure:"threads"`       // 并发拉取数
	Rate         time.Duration `mapstructure:"rate"`          // 拉取速率
	Timeout      time.Duration `mapstructure:"timeout"`       // 拉取超时
	TTR          time.Duration `mapstructure:"ttr"`           // Time-To-Run
	ErrorBackoff time.Duration `mapstructure:"error_backoff"` // 错误退避时间
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	Threads    int           `mapstructure:"threads"`     // 并发处理数
	BufferSize int           `mapstructure:"buffer_size"` // Channel 缓冲大小
	Timeout    time.Duration `mapstructure:"timeout"`     // 单个任务超时
}

// DataConfig 数据源配置
type DataConfig struct {
	Source             string `mapstructure:"source"`              // csv / mysql / memory
	OrdersCSV          string `mapstructure:"orders_csv"`          // 订单明细 CSV
	AssignCSV          string `mapstructure:"assign_csv"`          // 线索下发 CSV
	OrdersTable        string `mapstructure:"orders_table"`        // MySQL 订单事实表
	AssignTable        string `mapstructure:"assign_table"`        // MySQL 线索下发表
	BusinessDefinition string `mapstructure:"business_definition"` // business_definition.json 路径
	Timezone           string `mapstructure:"timezone"`
	Today              string `mapstructure:"today"` // 固定“今天”（回放/测试），为空使用系统时间
}

// AnalysisConfig 分析引擎参数
type AnalysisConfig struct {
	MaxSteps              int      `mapstructure:"max_steps"`
	AnomalyStepIDs        []string `mapstructure:"anomaly_step_ids"`
	CVThreshold           float64  `mapstructure:"cv_threshold"`
	RatioThreshold        float64  `mapstructure:"ratio_threshold"`
	ScaleThreshold        float64  `mapstructure:"scale_threshold"`
	DistributionThreshold float64  `mapstructure:"distribution_threshold"`
	HistogramThreshold    float64  `mapstructure:"histogram_threshold"`
	HistogramBins         int      `mapstructure:"histogram_bins"`
	DrilldownDimensions   []string `mapstructure:"drilldown_dimensions"`
	CoreMetrics           []string `mapstructure:"core_metrics"`
	StrictLaunchWindow    bool     `mapstructure:"strict_launch_window"`
	TopLimit              int      `mapstructure:"top_limit"`
	// ZMid > 0 时启用趋势性偏离判定
	ZMid float64 `mapstructure:"z_mid"`
	// MinDenominator > 0 时比率分母不足判为样本不足
	MinDenominator float64 `mapstructure:"min_denominator"`
}

// LLMConfig 大模型配置（OpenAI 兼容接口）
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	// 熔断：连续失败次数达到阈值后打开，OpenTimeout 后半开
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
}

// NotifyConfig 结果通知配置
type NotifyConfig struct {
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port        int           `mapstructure:"port"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"` // 同步接口等待结果的最长时间
	Queue       string        `mapstructure:"queue"`        // 分析任务队列
	AskQueue    string        `mapstructure:"ask_queue"`    // 问句任务队列
	Callback    string        `mapstructure:"callback_queue"`
}

// SetDefaults 注册默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("data.source", "csv")
	v.SetDefault("data.orders_table", "order_full_data")
	v.SetDefault("data.assign_table", "assign_data")
	v.SetDefault("data.timezone", "Asia/Shanghai")
	v.SetDefault("analysis.max_steps", 64)
	v.SetDefault("analysis.anomaly_step_ids", []string{"anomaly_check"})
	v.SetDefault("analysis.cv_threshold", 0.1)
	v.SetDefault("analysis.ratio_threshold", 0.2)
	v.SetDefault("analysis.scale_threshold", 0.2)
	v.SetDefault("analysis.distribution_threshold", 0.2)
	v.SetDefault("analysis.histogram_threshold", 0.3)
	v.SetDefault("analysis.histogram_bins", 30)
	v.SetDefault("analysis.top_limit", 10)
	v.SetDefault("analysis.drilldown_dimensions", []string{"series_group", "parent_region_name", "store_city", "first_middle_channel_name"})
	v.SetDefault("analysis.core_metrics", []string{"lock_rate", "delivery_rate"})
	v.SetDefault("llm.base_url", "https://api.deepseek.com")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.breaker_failures", 3)
	v.SetDefault("llm.breaker_open_timeout", 60*time.Second)
	v.SetDefault("notify.channel_prefix", "analysis:result:")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.wait_timeout", 5*time.Second)
	v.SetDefault("server.queue", "bi_analysis")
	v.SetDefault("server.ask_queue", "bi_ask")
	v.SetDefault("server.callback_queue", "bi_analysis_callback")
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	return &cfg, nil
}

// Default 不读取文件，仅使用默认值（CLI 本地运行）
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate 验证 Worker 配置
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Lmstfy.Host == "" {
		return fmt.Errorf("lmstfy.host is required")
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("at least one worker is required")
	}
	return c.ValidateAnalysis()
}

// ValidateAnalysis 验证数据源与分析参数
func (c *Config) ValidateAnalysis() error {
	switch c.Data.Source {
	case "csv":
		if c.Data.OrdersCSV == "" {
			return fmt.Errorf("data.orders_csv is required when data.source=csv")
		}
	case "mysql":
		if c.MySQL.DSN == "" {
			return fmt.Errorf("mysql.dsn is required when data.source=mysql")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported data.source: %s", c.Data.Source)
	}
	if c.Analysis.MaxSteps <= 0 {
		return fmt.Errorf("analysis.max_steps must be positive")
	}
	if c.Data.Today != "" {
		if _, err := time.Parse("2006-01-02", c.Data.Today); err != nil {
			return fmt.Errorf("data.today must be YYYY-MM-DD: %w", err)
		}
	}
	return nil
}
