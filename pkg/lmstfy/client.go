package lmstfy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitleak/lmstfy/client"

	"github.com/zhangzihaoDT/BI-reasoning/internal/framework"
)

// defaultTries 发布时的最大投递次数（含首次），用尽后进入死信
const defaultTries = 3

// Client Lmstfy 客户端封装
type Client struct {
	cli       *client.LmstfyClient
	namespace string
	tries     uint16
}

// NewClient 创建 Lmstfy 客户端
func NewClient(host string, port int, namespace string, token string) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("lmstfy host is required")
	}
	cli := client.NewLmstfyClient(host, port, namespace, token)
	return &Client{
		cli:       cli,
		namespace: namespace,
		tries:     defaultTries,
	}, nil
}

// Consume 消费消息（实现 MessageSource 接口），超时未拉到消息返回 nil, nil
func (c *Client) Consume(queue string, timeout time.Duration, ttr time.Duration) (*framework.Message, error) {
	timeoutSec := uint32(timeout.Seconds())
	ttrSec := uint32(ttr.Seconds())

	job, err := c.cli.Consume(queue, ttrSec, timeoutSec)
	if err != nil {
		return nil, fmt.Errorf("lmstfy consume failed: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	return &framework.Message{
		ID:    job.ID,
		Queue: job.Queue,
		Data:  job.Data,
		Extra: make(map[string]interface{}),
	}, nil
}

// Ack 确认消息（实现 MessageSource 接口）
func (c *Client) Ack(queue string, jobID string) error {
	if err := c.cli.Ack(queue, jobID); err != nil {
		return fmt.Errorf("lmstfy ack failed: %w", err)
	}
	return nil
}

// Publish 发布消息，返回 job id；ttl=0 永不过期，delay=0 立即可用
func (c *Client) Publish(queue string, data []byte, ttl, delay uint32) (string, error) {
	jobID, err := c.cli.Publish(queue, data, ttl, c.tries, delay)
	if err != nil {
		return "", fmt.Errorf("lmstfy publish failed: %w", err)
	}
	return jobID, nil
}

// PublishJSON 序列化后发布
func (c *Client) PublishJSON(queue string, v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal message failed: %w", err)
	}
	return c.Publish(queue, data, 0, 0)
}
