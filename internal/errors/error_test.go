package errors

import (
	"errors"
	"testing"

	"github.com/23skdu/proximity/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredError_Error(t *testing.T) {
	// Test error without cause
	err := New(ErrorTypeValidation, "test_op", "test message")
	assert.Equal(t, "[validation] test_op: test message", err.Error())

	// Test error with cause
	cause := errors.New("underlying error")
	err = Wrap(cause, ErrorTypeStorage, "load", "failed to read")
	assert.Contains(t, err.Error(), "[storage] load: failed to read")
	assert.Contains(t, err.Error(), "underlying error")
	assert.Equal(t, cause, err.Unwrap())
}

func TestStructuredError_WithContext(t *testing.T) {
	err := New(ErrorTypeValidation, "coerce", "bad field")
	err = err.WithContext("record", 3).WithContext("column", "Percent Male")

	assert.Equal(t, 3, err.Context["record"])
	assert.Equal(t, "Percent Male", err.Context["column"])
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeStorage, "op", "msg"))
	assert.Nil(t, WrapStage(nil, "coerce"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"Parse", core.NewParseError(0, "a", "c", "x", nil), ErrorTypeValidation},
		{"Missing", core.NewMissingFieldError(1, "c"), ErrorTypeValidation},
		{"Empty", core.NewEmptyInputError("matrix"), ErrorTypeValidation},
		{"Dimension", core.NewDimensionMismatchError(2, "b", 3, 2), ErrorTypeValidation},
		{"Degenerate", core.NewDegenerateColumnError("c", 5), ErrorTypeComputation},
		{"Structured", WrapStorageError(errors.New("disk"), "load", "read"), ErrorTypeStorage},
		{"Other", errors.New("boom"), ErrorTypeComputation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWrapStage_PreservesTypedCause(t *testing.T) {
	err := WrapStage(core.NewParseError(4, "Seg", "Income ($000)", "$abc", errors.New("syntax")), "coerce")
	require.NotNil(t, err)

	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "coerce", err.Operation)
	assert.Equal(t, 4, err.Context["record"])
	assert.Equal(t, "Income ($000)", err.Context["column"])

	var pe *core.ErrParse
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "$abc", pe.Value)
}

func TestWrapStage_Degenerate(t *testing.T) {
	err := WrapStage(core.NewDegenerateColumnError("Risk Score", 5), "normalize")
	assert.Equal(t, ErrorTypeComputation, err.Type)
	assert.Equal(t, "Risk Score", err.Context["column"])
}

func TestStackTraceCapture(t *testing.T) {
	err := New(ErrorTypeValidation, "test", "message")
	assert.Greater(t, len(err.Stack), 0)
}
