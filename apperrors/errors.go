// Package apperrors carries typed application errors that the HTTP layer maps to status codes.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

type ErrorCode string

const (
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeBadRequest        ErrorCode = "BAD_REQUEST"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeInternal          ErrorCode = "INTERNAL"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeRefundInProgress  ErrorCode = "REFUND_IN_PROGRESS"
	CodeGatewayFailure    ErrorCode = "GATEWAY_FAILURE"
	CodeInvalidSignature  ErrorCode = "INVALID_SIGNATURE"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Status  int       `json:"-"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on code so callers can compare against the sentinel values below.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code ErrorCode, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

func Wrap(err error, code ErrorCode, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message, Err: err}
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, http.StatusBadRequest, message)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, http.StatusConflict, message)
}

func Internal(err error, message string) *AppError {
	return Wrap(err, CodeInternal, http.StatusInternalServerError, message)
}

var (
	ErrInvalidTransition = New(CodeInvalidTransition, http.StatusBadRequest, "invalid payment status transition")
	ErrRefundInProgress  = New(CodeRefundInProgress, http.StatusConflict, "a refund is already in progress for this payment")
	ErrInvalidSignature  = New(CodeInvalidSignature, http.StatusBadRequest, "Invalid payment signature")
)

// NotFoundOr turns a missing gorm record into a NotFound with msg and passes other errors through.
func NotFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(msg)
	}
	return err
}

// StatusOf returns the HTTP status for err, or 0 when err is not an AppError.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}
