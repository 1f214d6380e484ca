package core

import "fmt"

// ErrParse indicates a raw field that does not reduce to a number once its
// decoration is stripped.
type ErrParse struct {
	Record int
	Label  string
	Column string
	Value  string
	Cause  error
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("record %d (%q): column %q: cannot parse %q as a number", e.Record, e.Label, e.Column, e.Value)
}

func (e *ErrParse) Unwrap() error { return e.Cause }

// NewParseError creates a parse error for one field of one record.
func NewParseError(record int, label, column, value string, cause error) error {
	return &ErrParse{Record: record, Label: label, Column: column, Value: value, Cause: cause}
}

// ErrMissingField indicates a record that does not supply a declared field.
type ErrMissingField struct {
	Record int
	Field  string
}

func (e *ErrMissingField) Error() string {
	return fmt.Sprintf("record %d: missing field %q", e.Record, e.Field)
}

func NewMissingFieldError(record int, field string) error {
	return &ErrMissingField{Record: record, Field: field}
}

// ErrDegenerateColumn indicates a feature column whose minimum equals its
// maximum, leaving min-max normalization undefined.
type ErrDegenerateColumn struct {
	Column string
	Value  float64
}

func (e *ErrDegenerateColumn) Error() string {
	return fmt.Sprintf("degenerate column %q: every record holds %g", e.Column, e.Value)
}

func NewDegenerateColumnError(column string, value float64) error {
	return &ErrDegenerateColumn{Column: column, Value: value}
}

// ErrDimensionMismatch indicates records disagreeing on feature vector length.
type ErrDimensionMismatch struct {
	Record   int
	Label    string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("record %d (%q): dimension mismatch: expected %d, got %d", e.Record, e.Label, e.Expected, e.Actual)
}

func NewDimensionMismatchError(record int, label string, expected, actual int) error {
	return &ErrDimensionMismatch{Record: record, Label: label, Expected: expected, Actual: actual}
}

// ErrEmptyInput indicates an operation that was handed zero records.
type ErrEmptyInput struct {
	Operation string
}

func (e *ErrEmptyInput) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: empty input: no records", e.Operation)
	}
	return "empty input: no records"
}

func NewEmptyInputError(operation string) error {
	return &ErrEmptyInput{Operation: operation}
}

// ErrUnknownColumn indicates a column name absent from a record set.
type ErrUnknownColumn struct {
	Column string
}

func (e *ErrUnknownColumn) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}

func NewUnknownColumnError(column string) error {
	return &ErrUnknownColumn{Column: column}
}

// ErrInvalidArgument indicates invalid input.
type ErrInvalidArgument struct {
	Field   string
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid argument for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

func NewInvalidArgumentError(field, message string) error {
	return &ErrInvalidArgument{Field: field, Message: message}
}
