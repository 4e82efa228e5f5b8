package custerror

import "fmt"

const (
	CodeInvalidArgument    uint32 = 3
	CodeNotFound           uint32 = 5
	CodeAlreadyExists      uint32 = 6
	CodePermissionDenied   uint32 = 7
	CodeFailedPrecondition uint32 = 9
	CodeInternal           uint32 = 13
	CodeUnauthenticated    uint32 = 16
)

type CustomError struct {
	Code    uint32
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

func newCustomError(code uint32, format string, args ...interface{}) *CustomError {
	return &CustomError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func FormatInvalidArgument(format string, args ...interface{}) *CustomError {
	return newCustomError(CodeInvalidArgument, format, args...)
}

func FormatNotFound(format string, args ...interface{}) *CustomError {
	return newCustomError(CodeNotFound, format, args...)
}

func FormatAlreadyExists(format string, args ...interface{}) *CustomError {
	return newCustomError(CodeAlreadyExists, format, args...)
}

func FormatPermissionDenied(format string, args ...interface{}) *CustomError {
	return newCustomError(CodePermissionDenied, format, args...)
}

func FormatFailedPrecondition(format string, args ...interface{}) *CustomError {
	return newCustomError(CodeFailedPrecondition, format, args...)
}

func FormatInternalError(format string, args ...interface{}) *CustomError {
	return newCustomError(CodeInternal, format, args...)
}

func FormatUnauthenticated(format string, args ...interface{}) *CustomError {
	return newCustomError(CodeUnauthenticated, format, args...)
}

var (
	ErrorInvalidArgument  = newCustomError(CodeInvalidArgument, "invalid argument")
	ErrorNotFound         = newCustomError(CodeNotFound, "not found")
	ErrorAlreadyExists    = newCustomError(CodeAlreadyExists, "already exists")
	ErrorPermissionDenied = newCustomError(CodePermissionDenied, "permission denied")
	ErrorInternal         = newCustomError(CodeInternal, "internal error")
	ErrorUnauthenticated  = newCustomError(CodeUnauthenticated, "unauthenticated")
)
