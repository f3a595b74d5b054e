package framework

import (
	"context"
	"fmt"
)

// Stage 处理链中的一个命名阶段
type Stage struct {
	Name string
	Fn   ProcessorFunc
}

// Chain 阶段化处理链：parse -> process -> post ...
type Chain struct {
	stages []Stage
}

// NewChain 创建处理链
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Then 追加阶段，fn 为 nil 时跳过
func (c *Chain) Then(name string, fn ProcessorFunc) *Chain {
	if fn != nil {
		c.stages = append(c.stages, Stage{Name: name, Fn: fn})
	}
	return c
}

// Run 按顺序执行阶段；ctx 结束或任一阶段失败即停止，错误链保留原始错误（含可重试标记）
func (c *Chain) Run(ctx context.Context) error {
	for _, s := range c.stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stage %s canceled: %w", s.Name, err)
		}
		if err := s.Fn(ctx); err != nil {
			return fmt.Errorf("stage %s failed: %w", s.Name, err)
		}
	}
	return nil
}
