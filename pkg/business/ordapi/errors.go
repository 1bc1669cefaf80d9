package ordapi

import (
	"errors"

	"github.com/omeyang/ordkit/internal/restcore"
)

// APIError 归一化的访问层错误，携带稳定错误码与可选的上游错误详情。
type APIError = restcore.APIError

// 哨兵错误，与 APIError 的错误码一一对应。
var (
	ErrBadRequest         = restcore.ErrBadRequest
	ErrUnauthorized       = restcore.ErrUnauthorized
	ErrForbidden          = restcore.ErrForbidden
	ErrNotFound           = restcore.ErrNotFound
	ErrRateLimited        = restcore.ErrRateLimited
	ErrServerError        = restcore.ErrServerError
	ErrNetworkError       = restcore.ErrNetworkError
	ErrTimeout            = restcore.ErrTimeout
	ErrReconnectExhausted = restcore.ErrReconnectExhausted
)

// 本包自身的错误。
var (
	// ErrEmptyName 表示资源标识为空。
	ErrEmptyName = errors.New("ordapi: empty resource identifier")

	// ErrUnknownEvent 表示推送信封携带封闭集合之外的类别。
	ErrUnknownEvent = errors.New("ordapi: unknown event kind")

	// ErrClosed 表示客户端已关闭。
	ErrClosed = errors.New("ordapi: client is closed")
)

// IsRetryable 报告错误是否属于可重试类别（429/5xx/网络/超时）。
func IsRetryable(err error) bool {
	return restcore.IsRetryable(err)
}

// CodeOf 返回错误的稳定错误码，非 APIError 返回空字符串。
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return string(apiErr.Code)
	}
	return ""
}
