package restcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Code 稳定错误码，供调用方做程序化分支判断。
type Code string

// 全部错误码。闭集，新增状态类别时必须同步更新 codeOf 与 Retryable。
const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeServerError        Code = "SERVER_ERROR"
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeTimeout            Code = "TIMEOUT"
	CodeReconnectExhausted Code = "RECONNECT_EXHAUSTED"
)

// 哨兵错误。APIError.Is 将状态类别映射到这些哨兵，
// 调用方可以用 errors.Is(err, restcore.ErrNotFound) 判断。
var (
	// ErrBadRequest 表示请求参数错误（400）。
	ErrBadRequest = errors.New("ordkit: bad request")

	// ErrUnauthorized 表示凭证缺失或无效（401）。
	ErrUnauthorized = errors.New("ordkit: unauthorized")

	// ErrForbidden 表示权限不足（403）。
	ErrForbidden = errors.New("ordkit: forbidden")

	// ErrNotFound 表示资源不存在（404）。
	ErrNotFound = errors.New("ordkit: not found")

	// ErrRateLimited 表示上游限流（429）。
	ErrRateLimited = errors.New("ordkit: rate limited")

	// ErrServerError 表示上游服务端错误（5xx）。
	ErrServerError = errors.New("ordkit: server error")

	// ErrNetworkError 表示请求未收到任何响应（连接失败、DNS 失败等）。
	ErrNetworkError = errors.New("ordkit: network error")

	// ErrTimeout 表示请求超时。
	ErrTimeout = errors.New("ordkit: timeout")

	// ErrReconnectExhausted 表示推送通道重连次数耗尽。
	ErrReconnectExhausted = errors.New("ordkit: reconnect attempts exhausted")
)

// defaultMessages 每个错误码的缺省人类可读描述。
// 上游错误体携带 message 字段时覆盖此缺省值。
var defaultMessages = map[Code]string{
	CodeBadRequest:         "invalid request parameters",
	CodeUnauthorized:       "missing or invalid API credential",
	CodeForbidden:          "access to this resource is forbidden",
	CodeNotFound:           "requested resource not found",
	CodeRateLimited:        "provider rate limit exceeded",
	CodeServerError:        "provider returned a server error",
	CodeNetworkError:       "no response received from provider",
	CodeTimeout:            "request to provider timed out",
	CodeReconnectExhausted: "push channel reconnect attempts exhausted",
}

// APIError 是归一化后的访问层错误。
// StatusCode 为 0 表示没有收到任何 HTTP 响应（网络/超时类错误）。
type APIError struct {
	StatusCode int
	Code       Code
	Message    string
	Details    map[string]any
	Err        error
}

// errorBody 上游错误响应体的统一形状。
type errorBody struct {
	Error      string         `json:"error"`
	Message    string         `json:"message"`
	StatusCode int            `json:"statusCode"`
	Details    map[string]any `json:"details,omitempty"`
}

// codeOf 把 HTTP 状态码映射为稳定错误码。
func codeOf(statusCode int) Code {
	switch {
	case statusCode == http.StatusBadRequest:
		return CodeBadRequest
	case statusCode == http.StatusUnauthorized:
		return CodeUnauthorized
	case statusCode == http.StatusForbidden:
		return CodeForbidden
	case statusCode == http.StatusNotFound:
		return CodeNotFound
	case statusCode == http.StatusTooManyRequests:
		return CodeRateLimited
	case statusCode >= 500:
		return CodeServerError
	default:
		// 其余 4xx 没有专属码，归入 BAD_REQUEST 类别（同样不可重试）。
		return CodeBadRequest
	}
}

// NewAPIError 从 HTTP 状态码创建归一化错误，使用错误码的缺省描述。
func NewAPIError(statusCode int) *APIError {
	code := codeOf(statusCode)
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    defaultMessages[code],
	}
}

// FromResponse 从 HTTP 错误响应构造归一化错误。
// 响应体形如 {error, message, statusCode, details?}；解析失败时使用缺省描述。
func FromResponse(statusCode int, body []byte) *APIError {
	e := NewAPIError(statusCode)
	if len(body) == 0 {
		return e
	}
	var parsed errorBody
	// 解析失败不影响错误构造，保留缺省描述即可
	if err := json.Unmarshal(body, &parsed); err != nil {
		return e
	}
	if parsed.Message != "" {
		e.Message = parsed.Message
	}
	e.Details = parsed.Details
	return e
}

// NetworkError 把传输层错误包装为归一化错误。
// 超时（context.DeadlineExceeded 或 net.Error 超时）归入 TIMEOUT，
// 其余归入 NETWORK_ERROR。
func NetworkError(err error) *APIError {
	code := CodeNetworkError
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		code = CodeTimeout
	}
	return &APIError{
		Code:    code,
		Message: defaultMessages[code],
		Err:     err,
	}
}

// Normalize 确保任意错误都以 *APIError 形式呈现。
// 已经是 APIError 的原样返回；context 取消原样返回（不属于访问层错误）；
// 其余视为传输层错误包装。
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return NetworkError(err)
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ordkit: api error: status=%d, code=%s, message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("ordkit: api error: code=%s, message=%s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable 判断错误是否可重试。
// 429、5xx 和网络/超时类错误可重试；其余 4xx 不可重试。
func (e *APIError) Retryable() bool {
	switch e.Code {
	case CodeRateLimited, CodeServerError, CodeNetworkError, CodeTimeout:
		return true
	default:
		return false
	}
}

// Is 实现 errors.Is 接口，把错误码映射到哨兵错误。
// 设计决策: 使用直接 == 比较而非 errors.Is，因为 target 是调用方传入的哨兵，
// 均为 errors.New 创建的简单值，无需递归 Unwrap。
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case CodeBadRequest:
		return target == ErrBadRequest
	case CodeUnauthorized:
		return target == ErrUnauthorized
	case CodeForbidden:
		return target == ErrForbidden
	case CodeNotFound:
		return target == ErrNotFound
	case CodeRateLimited:
		return target == ErrRateLimited
	case CodeServerError:
		return target == ErrServerError
	case CodeNetworkError:
		return target == ErrNetworkError
	case CodeTimeout:
		return target == ErrTimeout
	case CodeReconnectExhausted:
		return target == ErrReconnectExhausted
	}
	return false
}

// IsRetryable 检查错误是否可重试。
// 规则：
//   - nil 错误：不需要重试（视为成功）
//   - *APIError：根据 Retryable() 判断
//   - context 取消/超时：不可重试（调用方已放弃）
//   - 其余未归一化的错误：视为网络类错误，可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
