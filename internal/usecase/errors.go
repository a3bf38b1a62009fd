package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrorUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrorMalformedUpstream   ErrorCode = "MALFORMED_UPSTREAM_RESPONSE"
	ErrorInternal            ErrorCode = "INTERNAL_ERROR"
)

const (
	msgEmptyMessage  = "消息不能为空"
	msgUnavailable   = "智能体服务暂时不可用，请稍后重试"
	msgMalformed     = "响应格式异常"
	msgInternalError = "服务器内部错误"
)

type Error struct {
	Code   ErrorCode
	Reason string
	// Status is the upstream HTTP status for ErrorUpstreamUnavailable.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatus is the status code returned to the caller.
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case ErrorInvalidInput:
		return http.StatusBadRequest
	case ErrorUpstreamUnavailable:
		if e.Status >= 400 && e.Status <= 599 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage is the text shown to the end user.
func (e *Error) UserMessage() string {
	if e == nil {
		return msgInternalError
	}
	switch e.Code {
	case ErrorInvalidInput:
		return msgEmptyMessage
	case ErrorUpstreamUnavailable:
		return msgUnavailable
	case ErrorMalformedUpstream:
		return msgMalformed
	default:
		return msgInternalError
	}
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// Classify turns any error into a *Error, treating unknown errors as internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var target *Error
	if errors.As(err, &target) {
		return target
	}
	return newError(ErrorInternal, "unexpected_error", err)
}
