package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrUnsupportedFormat indicates a config file extension with no decoder.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrValidationFailed matches every ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidEnv indicates an environment variable that cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment value")
)

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Line is the line number where the error occurred (if available).
	Line int
	// Column is the column number where the error occurred (if available).
	Column int
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError describes a validation failure for a setting.
type ValidationError struct {
	// Path is the setting path that failed validation.
	Path string
	// Message describes the validation error.
	Message string
	// Value is the invalid value.
	Value any
	// Code categorizes the validation error.
	Code ValidationErrorCode
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %v)", e.Path, e.Message, e.Value)
}

// Is implements error matching for ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// ValidationErrorCode categorizes validation errors.
type ValidationErrorCode uint8

const (
	// ErrCodeInvalidEnum indicates the value is not in the allowed enum.
	ErrCodeInvalidEnum ValidationErrorCode = iota
	// ErrCodeOutOfRange indicates a numeric value is out of range.
	ErrCodeOutOfRange
	// ErrCodeRequiredMissing indicates a required setting is missing.
	ErrCodeRequiredMissing
	// ErrCodeDuplicate indicates a name used more than once.
	ErrCodeDuplicate
	// ErrCodeUnknownReference indicates a reference to an undeclared name.
	ErrCodeUnknownReference
	// ErrCodeCycle indicates engines that are their own ancestors.
	ErrCodeCycle
)

// String returns a human-readable name for the error code.
func (c ValidationErrorCode) String() string {
	switch c {
	case ErrCodeInvalidEnum:
		return "invalid_enum"
	case ErrCodeOutOfRange:
		return "out_of_range"
	case ErrCodeRequiredMissing:
		return "required_missing"
	case ErrCodeDuplicate:
		return "duplicate"
	case ErrCodeUnknownReference:
		return "unknown_reference"
	case ErrCodeCycle:
		return "cycle"
	default:
		return "unknown"
	}
}
