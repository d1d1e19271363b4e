package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCircuitOpen 表示熔断器处于打开状态，请求未发往上游。
	ErrCircuitOpen = errors.New("upstream circuit open")

	// ErrResponseTooLarge 表示上游响应体超过了读取上限。
	ErrResponseTooLarge = errors.New("upstream response too large")
)

// callerDoneError 标记因调用方 context 结束（取消或超时）而中断的请求。
type callerDoneError struct {
	err error
}

func (e *callerDoneError) Error() string { return e.err.Error() }

func (e *callerDoneError) Unwrap() error { return e.err }

// StatusError 表示上游返回了非 2xx 状态码。
type StatusError struct {
	Status int
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream %s returned %d %s: %s", e.Path, e.Status, http.StatusText(e.Status), e.Body)
	}
	return fmt.Sprintf("upstream %s returned %d %s", e.Path, e.Status, http.StatusText(e.Status))
}

// IsStatus reports whether err carries an upstream StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// countsAsFailure 只把 5xx 与传输错误计入熔断统计；4xx 属于调用方输入问题，
// 调用方自己取消或超时的请求也不代表上游故障。
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	var done *callerDoneError
	if errors.As(err, &done) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError
	}
	return true
}
