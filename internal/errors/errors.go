package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"

	"github.com/23skdu/proximity/internal/core"
)

// Error types for different categories of failures
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeComputation   ErrorType = "computation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeTransport     ErrorType = "transport"
)

// StructuredError carries the stage that failed alongside the typed cause.
// errors.As reaches the cause through Unwrap.
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// captureStack captures the current stack trace
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // Skip runtime.Callers, this function and the constructor
	return pcs[:n]
}

// Classify maps the typed data-integrity errors onto an ErrorType.
func Classify(err error) ErrorType {
	var (
		parse    *core.ErrParse
		missing  *core.ErrMissingField
		empty    *core.ErrEmptyInput
		dim      *core.ErrDimensionMismatch
		unknown  *core.ErrUnknownColumn
		invalid  *core.ErrInvalidArgument
		degen    *core.ErrDegenerateColumn
		existing *StructuredError
	)
	switch {
	case stderrors.As(err, &existing):
		return existing.Type
	case stderrors.As(err, &degen):
		return ErrorTypeComputation
	case stderrors.As(err, &parse), stderrors.As(err, &missing), stderrors.As(err, &empty),
		stderrors.As(err, &dim), stderrors.As(err, &unknown), stderrors.As(err, &invalid):
		return ErrorTypeValidation
	default:
		return ErrorTypeComputation
	}
}

// WrapStage wraps the failure of a pipeline stage, typing it with Classify
// and attaching the record and column that triggered it when known.
func WrapStage(err error, stage string) *StructuredError {
	if err == nil {
		return nil
	}
	se := Wrap(err, Classify(err), stage, "stage failed")

	var (
		parse   *core.ErrParse
		missing *core.ErrMissingField
		dim     *core.ErrDimensionMismatch
		degen   *core.ErrDegenerateColumn
	)
	switch {
	case stderrors.As(err, &parse):
		se.WithContext("record", parse.Record).WithContext("column", parse.Column)
	case stderrors.As(err, &missing):
		se.WithContext("record", missing.Record).WithContext("column", missing.Field)
	case stderrors.As(err, &dim):
		se.WithContext("record", dim.Record)
	case stderrors.As(err, &degen):
		se.WithContext("column", degen.Column)
	}
	return se
}

// NewValidationError creates a validation error
func NewValidationError(operation, message string) *StructuredError {
	return New(ErrorTypeValidation, operation, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string) *StructuredError {
	return New(ErrorTypeConfiguration, operation, message)
}

// WrapStorageError wraps an error as a storage error
func WrapStorageError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeStorage, operation, message)
}

// WrapConfigurationError wraps an error as a configuration error
func WrapConfigurationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeConfiguration, operation, message)
}

// WrapTransportError wraps an error as a transport error
func WrapTransportError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeTransport, operation, message)
}
