package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 日志接口
type Logger interface {
	Debugf(ctx context.Context, format string, args ...interface{})
	Infof(ctx context.Context, format string, args ...interface{})
	Warnf(ctx context.Context, format string, args ...interface{})
	Errorf(ctx context.Context, format string, args ...interface{})
	Sync() error
}

type ctxKey string

const (
	keyTraceID    ctxKey = "trace_id"
	keyWorkerID   ctxKey = "worker_id"
	keyActionType ctxKey = "action_type"
	keyRunID      ctxKey = "run_id"
	keyStepID     ctxKey = "step_id"
)

// WithTraceID 注入 trace_id
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// WithWorkerID 注入 worker_id
func WithWorkerID(ctx context.Context, workerID int) context.Context {
	return context.WithValue(ctx, keyWorkerID, workerID)
}

// WithActionType 注入 action_type
func WithActionType(ctx context.Context, actionType string) context.Context {
	return context.WithValue(ctx, keyActionType, actionType)
}

// WithRunID 注入分析任务 ID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// WithStepID 注入当前执行的 DSL step ID
func WithStepID(ctx context.Context, stepID string) context.Context {
	return context.WithValue(ctx, keyStepID, stepID)
}

// TraceID 读取 trace_id
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(keyTraceID).(string)
	return v
}

// ZapLogger Zap 日志实现
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger 创建 Zap 日志实例
func NewZapLogger(level string) (Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{logger: logger}, nil
}

// NewNop 不输出任何内容的 Logger（测试、库调用方使用）
func NewNop() Logger {
	return &ZapLogger{logger: zap.NewNop()}
}

// extractFields 从 Context 提取日志字段
func (l *ZapLogger) extractFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)
	if ctx == nil {
		return fields
	}

	if traceID, ok := ctx.Value(keyTraceID).(string); ok && traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if workerID, ok := ctx.Value(keyWorkerID).(int); ok {
		fields = append(fields, zap.Int("worker_id", workerID))
	}
	if actionType, ok := ctx.Value(keyActionType).(string); ok && actionType != "" {
		fields = append(fields, zap.String("action_type", actionType))
	}
	if runID, ok := ctx.Value(keyRunID).(string); ok && runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	if stepID, ok := ctx.Value(keyStepID).(string); ok && stepID != "" {
		fields = append(fields, zap.String("step_id", stepID))
	}

	return fields
}

// Debugf 输出 Debug 日志
func (l *ZapLogger) Debugf(ctx context.Context, format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Infof 输出 Info 日志
func (l *ZapLogger) Infof(ctx context.Context, format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Warnf 输出 Warn 日志
func (l *ZapLogger) Warnf(ctx context.Context, format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Errorf 输出 Error 日志
func (l *ZapLogger) Errorf(ctx context.Context, format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), l.extractFields(ctx)...)
}

// Sync 同步日志缓冲区
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
