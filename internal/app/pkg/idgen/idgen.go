package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// RunIDPrefix 分析任务 ID 前缀
const RunIDPrefix = "run_"

// NewRunID 生成分析任务 ID：run_ + 32 位十六进制
func NewRunID() string {
	return RunIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewRequestID 生成请求 ID（全链路追踪）
func NewRequestID() string {
	return uuid.NewString()
}

// ValidRunID 校验任务 ID 格式
func ValidRunID(id string) bool {
	if !strings.HasPrefix(id, RunIDPrefix) {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(id, RunIDPrefix))
	return err == nil
}
