package framework

import (
	"context"
	"time"
)

// MessageSource 消息源接口（适配不同 MQ）
type MessageSource interface {
	// Consume 阻塞拉取，超时未拉到返回 nil, nil
	Consume(queue string, timeout time.Duration, ttr time.Duration) (*Message, error)

	// Ack 确认消息（删除消息）
	Ack(queue string, jobID string) error
}

// ProcessorFunc 处理链中的一个阶段
type ProcessorFunc func(ctx context.Context) error

// BusinessHandler 业务处理器接口
// 返回的 error 决定消息去向：nil ACK，可重试 Release，其余 Bury
type BusinessHandler interface {
	Handle(ctx context.Context) ([]byte, error)
}

// Resulter 结果处理器接口：业务原始结果 -> 对外输出
type Resulter interface {
	Set(ctx context.Context, data interface{}) error
	Get(ctx context.Context) interface{}
}
