// Package tools 聚合工具族与工具路由
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhangzihaoDT/BI-reasoning/internal/dsl"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// ErrNoTool 没有工具能处理该步骤
var ErrNoTool = errors.New("no tool found")

// Tool 分析工具
type Tool interface {
	Name() string
	CanHandle(step dsl.Step) bool
	Execute(ctx context.Context, step dsl.Step) (Result, error)
}

// Router 按注册顺序首个匹配分发
type Router struct {
	tools []Tool
	log   logger.Logger
}

// NewRouter 创建路由
func NewRouter(log logger.Logger, tools ...Tool) *Router {
	if log == nil {
		log = logger.NewNop()
	}
	return &Router{tools: tools, log: log}
}

// Register 追加工具
func (r *Router) Register(t Tool) {
	r.tools = append(r.tools, t)
}

// Tools 已注册工具名
func (r *Router) Tools() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name()
	}
	return names
}

// Resolve 查找首个能处理步骤的工具
func (r *Router) Resolve(step dsl.Step) (Tool, error) {
	for _, t := range r.tools {
		if t.CanHandle(step) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w for step %s (tool=%s)", ErrNoTool, step.ID, step.Tool)
}

// Dispatch 分发并执行步骤
func (r *Router) Dispatch(ctx context.Context, step dsl.Step) (Result, error) {
	t, err := r.Resolve(step)
	if err != nil {
		r.log.Errorf(ctx, "[Router] %v", err)
		return nil, err
	}
	r.log.Debugf(ctx, "[Router] step %s -> %s", step.ID, t.Name())
	return t.Execute(ctx, step)
}

// named 基于工具名匹配的公共实现
type named struct {
	names []string
}

func (n named) Name() string { return n.names[0] }

func (n named) CanHandle(step dsl.Step) bool {
	for _, name := range n.names {
		if step.Tool == name {
			return true
		}
	}
	return false
}
