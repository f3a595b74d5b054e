package framework

import "time"

// Message 消息结构（框架内部流转）
type Message struct {
	ID       string                 // 消息 ID
	Queue    string                 // 队列名称
	Data     []byte                 // 原始 Job 数据
	Attempts int                    // 重试次数
	Extra    map[string]interface{} // 扩展字段
}

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	QueueName    string        // 队列名称
	Concurrency  int           // 并发拉取数
	Timeout      time.Duration // 拉取超时
	TTR          time.Duration // Time-To-Run，Release 的消息在 TTR 后重新投递
	Rate         time.Duration // 拉取间隔
	ErrorBackoff time.Duration // 错误退避时间
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	QueueName   string        // ACK 使用的队列名称
	Concurrency int           // 并发处理数
	BufferSize  int           // inputChan 缓冲区大小
	Timeout     time.Duration // 单个消息处理超时
}

func (c *SubscriberConfig) withDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.TTR <= 0 {
		c.TTR = 60 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = time.Second
	}
}

func (c *ProcessorConfig) withDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}
