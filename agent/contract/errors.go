package contract

import "errors"

var (
	ErrReasoningUnavailable = errors.New("reasoning service unavailable")
	ErrMalformedToolCall    = errors.New("malformed tool call")
	ErrToolExecution        = errors.New("tool execution failed")
	ErrMaxIterations        = errors.New("max iterations exceeded")
	ErrDeadlineExceeded     = errors.New("deadline exceeded")
	ErrCancelled            = errors.New("run cancelled")
	ErrSchemaViolation      = errors.New("tool call violates schema")
	ErrValidation           = errors.New("validation failed")
)
