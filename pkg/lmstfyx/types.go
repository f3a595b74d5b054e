package lmstfyx

import (
	"context"

	"github.com/bitleak/lmstfy/client"
)

// Proc 业务处理函数类型（GetProcess 的函数签名）
type Proc func(ctx context.Context, job *client.Job) *JobResp

// JobRespStatus 消息处理结果状态
type JobRespStatus int

const (
	// JobRespStatusSuccess 处理成功，ACK 消息
	JobRespStatusSuccess JobRespStatus = iota
	// JobRespStatusRelease 可重试失败，不 ACK，TTR 到期后 lmstfy 重新投递
	JobRespStatusRelease
	// JobRespStatusBury 不可重试失败，ACK 丢弃（失败回调已发出）
	JobRespStatusBury
)

// String 用于日志与指标标签
func (s JobRespStatus) String() string {
	switch s {
	case JobRespStatusSuccess:
		return "success"
	case JobRespStatusRelease:
		return "release"
	case JobRespStatusBury:
		return "bury"
	}
	return "unknown"
}

// JobResp 消息处理结果
type JobResp struct {
	Action JobRespStatus
	Data   []byte // 响应数据（日志用）
}

// Publisher 队列发布接口（pkg/lmstfy.Client 实现，测试可替换）
type Publisher interface {
	Publish(queue string, data []byte, ttl, delay uint32) (string, error)
}
