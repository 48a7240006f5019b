package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Kind 错误分类
type Kind string

const (
	KindNotFound    Kind = "NotFound"    // 404：接口或资源不存在（通常是地址配置错误）
	KindUnreachable Kind = "Unreachable" // 网络不可达
	KindServerError Kind = "ServerError" // 其它非 2xx 响应
	KindUnknown     Kind = "Unknown"
)

// Error 错误结构（包含分类与可重试标记）
type Error struct {
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"` // 0 表示没有 HTTP 响应
	Op         string `json:"op,omitempty"`          // 发生错误的操作，如 list_orders
	URL        string `json:"url,omitempty"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	Err        error  `json:"-"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap 支持 errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// OperatorMessage 面向操作员的提示文案
func (e *Error) OperatorMessage() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("Order service endpoint not found (%s). Check backend.base_url and the orders paths in the board config.", e.URL)
	case KindUnreachable:
		return fmt.Sprintf("Cannot reach the order service at %s. Make sure it is running and reachable from this board.", hostOf(e.URL))
	case KindServerError:
		return fmt.Sprintf("Order service returned an error (HTTP %d). The board will keep retrying.", e.StatusCode)
	default:
		return fmt.Sprintf("Unexpected error: %s", e.Message)
	}
}

// NotFound 创建 404 错误
func NotFound(op, rawURL string) *Error {
	return &Error{
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
		Op:         op,
		URL:        rawURL,
		Message:    fmt.Sprintf("endpoint not found: %s", rawURL),
		Retryable:  false,
	}
}

// Unreachable 创建网络不可达错误
func Unreachable(op, rawURL string, err error) *Error {
	return &Error{
		Kind:      KindUnreachable,
		Op:        op,
		URL:       rawURL,
		Message:   fmt.Sprintf("service unreachable: %v", err),
		Retryable: true,
		Err:       err,
	}
}

// ServerError 创建非 2xx 错误
func ServerError(op, rawURL string, statusCode int, body string) *Error {
	msg := fmt.Sprintf("unexpected status %d", statusCode)
	if body != "" {
		msg = fmt.Sprintf("%s: %s", msg, body)
	}
	return &Error{
		Kind:       KindServerError,
		StatusCode: statusCode,
		Op:         op,
		URL:        rawURL,
		Message:    msg,
		Retryable:  statusCode >= http.StatusInternalServerError,
	}
}

// Unknown 创建无法分类的错误
func Unknown(op string, err error) *Error {
	return &Error{
		Kind:      KindUnknown,
		Op:        op,
		Message:   err.Error(),
		Retryable: false,
		Err:       err,
	}
}

// Classify 将任意错误归类（已是 *Error 时直接返回）
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if IsTransport(err) {
		return Unreachable("", "", err)
	}
	return Unknown("", err)
}

// IsTransport 判断是否为传输层错误（连接失败、超时等）
func IsTransport(err error) bool {
	// 主动取消不算网络故障（*url.Error 也实现了 net.Error，需先排除）
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// KindOf 返回错误分类，nil 返回空串
func KindOf(err error) Kind {
	if e := Classify(err); e != nil {
		return e.Kind
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
