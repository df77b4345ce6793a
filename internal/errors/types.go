package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"syscall"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeCapability ErrorType = "capability"
	ErrorTypeChannel    ErrorType = "channel"
	ErrorTypeTransport  ErrorType = "transport"
	ErrorTypeProtocol   ErrorType = "protocol"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeMCP        ErrorType = "mcp"
	ErrorTypeOpenAPI    ErrorType = "openapi"
)

// HreqError represents a structured error with context
type HreqError struct {
	Type    ErrorType
	Message string
	Context map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *HreqError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

// Unwrap returns the underlying error for error unwrapping
func (e *HreqError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a specific type
func (e *HreqError) Is(target error) bool {
	if targetErr, ok := target.(*HreqError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// WithContext adds context information to the error
func (e *HreqError) WithContext(key string, value interface{}) *HreqError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new HreqError
func New(errType ErrorType, message string) *HreqError {
	return &HreqError{
		Type:    errType,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *HreqError {
	return &HreqError{
		Type:    errType,
		Message: message,
		Context: make(map[string]interface{}),
		Cause:   err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *HreqError {
	return Wrap(err, errType, fmt.Sprintf(format, args...))
}

// Newf creates a new HreqError with formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *HreqError {
	return New(errType, fmt.Sprintf(format, args...))
}

// WrapIO wraps a low-level network failure, recording the errno and
// whether the failure was a deadline expiry.
func WrapIO(err error, errType ErrorType, op, message string) *HreqError {
	wrapped := Wrap(err, errType, message).WithContext("op", op)
	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		wrapped.WithContext("code", int(errno))
	}
	if isTimeoutCause(err) {
		wrapped.WithContext("timeout", true)
	}
	return wrapped
}

// IsType checks if an error, or any error it wraps, is of a specific type
func IsType(err error, errType ErrorType) bool {
	var hErr *HreqError
	if stderrors.As(err, &hErr) {
		return hErr.Type == errType
	}
	return false
}

// GetType returns the error type, or ErrorTypeInternal if not a HreqError
func GetType(err error) ErrorType {
	var hErr *HreqError
	if stderrors.As(err, &hErr) {
		return hErr.Type
	}
	return ErrorTypeInternal
}

// GetContext returns context information from the error
func GetContext(err error) map[string]interface{} {
	var hErr *HreqError
	if stderrors.As(err, &hErr) {
		return hErr.Context
	}
	return nil
}

// IsTimeout reports whether err was caused by a deadline expiring, either on
// the network connection or on the request context.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if ctx := GetContext(err); ctx != nil {
		if timeout, ok := ctx["timeout"].(bool); ok && timeout {
			return true
		}
	}
	return isTimeoutCause(err)
}

func isTimeoutCause(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
