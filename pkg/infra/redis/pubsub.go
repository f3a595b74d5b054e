package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix 结果通知频道前缀，完整频道为 analysis:result:{run_id}
const DefaultChannelPrefix = "analysis:result:"

// PubSub Redis 发布/订阅客户端
type PubSub struct {
	client *redis.Client
	prefix string
}

// NewPubSub 创建 PubSub 实例
func NewPubSub(addr, password string, db int, prefix string) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &PubSub{
		client: client,
		prefix: prefix,
	}, nil
}

// RunNotification 分析完成通知消息
type RunNotification struct {
	RunID     string          `json:"run_id"`
	Status    string          `json:"status"` // SUCCESS / FAILED
	Anomalous bool            `json:"anomalous"`
	Source    string          `json:"source,omitempty"`
	Report    json.RawMessage `json:"report,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Channel 任务对应的独立频道
func (p *PubSub) Channel(runID string) string {
	return p.prefix + runID
}

// PublishRunComplete 发布分析完成通知
func (p *PubSub) PublishRunComplete(ctx context.Context, notification *RunNotification) error {
	msgJSON, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := p.client.Publish(ctx, p.Channel(notification.RunID), msgJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// WaitRunComplete 订阅任务频道并等待通知（Smart Wait），超时返回 context.DeadlineExceeded
func (p *PubSub) WaitRunComplete(ctx context.Context, runID string, timeout time.Duration) (*RunNotification, error) {
	sub := p.client.Subscribe(ctx, p.Channel(runID))
	defer sub.Close()

	// 等待订阅确认
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case msg, ok := <-sub.Channel():
		if !ok {
			return nil, fmt.Errorf("subscription closed")
		}
		var n RunNotification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			return nil, fmt.Errorf("unmarshal notification failed: %w", err)
		}
		return &n, nil
	case <-timeoutCtx.Done():
		return nil, timeoutCtx.Err()
	}
}

// Close 关闭 Redis 连接
func (p *PubSub) Close() error {
	return p.client.Close()
}
