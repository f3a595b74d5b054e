package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/zhangzihaoDT/BI-reasoning/pkg/config"
)

// ErrNoAPIKey 未配置大模型密钥
var ErrNoAPIKey = errors.New("llm api key not configured")

// Completer 对话补全
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAICompleter OpenAI 兼容接口（DeepSeek），调用经过熔断器
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker
}

// NewOpenAICompleter 按配置创建补全客户端
func NewOpenAICompleter(cfg config.LLMConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}
	st := gobreaker.Settings{
		Name:    "llm",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	}
	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		breaker:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

// Complete 实现 Completer
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	return out.(string), nil
}
