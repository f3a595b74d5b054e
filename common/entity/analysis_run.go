package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisRun 分析任务实体（包含运行报告）
type AnalysisRun struct {
	// 基础字段
	ID         string `gorm:"column:id;primaryKey;type:varchar(64)"`
	RequestID  string `gorm:"column:request_id;type:varchar(64);not null;index:idx_request_id"`
	ActionType string `gorm:"column:action_type;type:varchar(32);not null"`

	// 请求内容：步骤序列 / 预置策略 / 问句
	Request datatypes.JSON `gorm:"column:request;type:json;not null"`

	// 执行状态与结果
	Status       string         `gorm:"column:status;type:varchar(16);not null;default:'RUNNING';index:idx_status_created"`
	Anomalous    bool           `gorm:"column:anomalous;not null;default:false"`
	Source       string         `gorm:"column:source;type:varchar(16)"` // bi_ask 抽取来源
	Report       datatypes.JSON `gorm:"column:report;type:json"`
	ErrorMessage string         `gorm:"column:error_message;type:varchar(1024)"`

	// 时间戳
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_status_created"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (AnalysisRun) TableName() string {
	return "analysis_runs"
}

// 任务状态常量
const (
	RunStatusRunning = "RUNNING"
	RunStatusDone    = "DONE"
	RunStatusFailed  = "FAILED"
)
