package errorutil

import (
	"errors"
	"fmt"
)

// Error 错误结构（包含可重试标记）
type Error struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	DevDetails string `json:"dev_details,omitempty"`
	cause      error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return e.Message
}

// Unwrap 支持 errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.cause
}

// Retriable 创建可重试错误（网络错误、数据源暂不可用等）
func Retriable(message string) *Error {
	return &Error{
		Code:      500,
		Message:   message,
		Retryable: true,
	}
}

// RetriableWrap 包装底层错误为可重试错误
func RetriableWrap(err error, message string) *Error {
	return &Error{
		Code:       500,
		Message:    fmt.Sprintf("%s: %v", message, err),
		Retryable:  true,
		DevDetails: fmt.Sprintf("%+v", err),
		cause:      err,
	}
}

// NonRetriable 创建不可重试错误（参数错误、未知工具等）
func NonRetriable(message string) *Error {
	return &Error{
		Code:      400,
		Message:   message,
		Retryable: false,
	}
}

// NonRetriableWrap 包装底层错误为不可重试错误
func NonRetriableWrap(err error, message string) *Error {
	return &Error{
		Code:       400,
		Message:    fmt.Sprintf("%s: %v", message, err),
		Retryable:  false,
		DevDetails: fmt.Sprintf("%+v", err),
		cause:      err,
	}
}

// Wrap 包装错误（已经是 *Error 则原样返回，否则视为不可重试）
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return &Error{
		Code:       500,
		Message:    err.Error(),
		Retryable:  false,
		DevDetails: fmt.Sprintf("%+v", err),
		cause:      err,
	}
}

// IsRetryable 判断错误链中是否存在可重试错误
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// UnWrapResponse 解包错误（用于 Response）
func UnWrapResponse(err error) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err)
}
