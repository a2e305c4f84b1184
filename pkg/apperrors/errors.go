package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ConfigurationError reports a missing or invalid data source configuration.
// It is surfaced immediately and never retried.
type ConfigurationError struct {
	Source  string // data source type, e.g. "csv"
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%s configuration error: %s", e.Source, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// NewConfigurationError creates a ConfigurationError for the given source type.
func NewConfigurationError(source, message string, cause error) *ConfigurationError {
	return &ConfigurationError{Source: source, Message: message, Cause: cause}
}

// ConnectionError reports that an adapter could not reach its backend.
// The backend's own message is preserved in Cause.
type ConnectionError struct {
	Source  string
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("%s connection error: %s", e.Source, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// NewConnectionError creates a ConnectionError for the given source type.
func NewConnectionError(source, message string, cause error) *ConnectionError {
	return &ConnectionError{Source: source, Message: message, Cause: cause}
}

// ValidationError is returned when generated SQL fails a safety rule.
// Rule names the check that failed; Keyword is set for banned-keyword violations.
type ValidationError struct {
	Rule    string
	Keyword string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Keyword != "" {
		return fmt.Sprintf("sql validation failed (%s): %s: %q", e.Rule, e.Message, e.Keyword)
	}
	return fmt.Sprintf("sql validation failed (%s): %s", e.Rule, e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(rule, keyword, message string) *ValidationError {
	return &ValidationError{Rule: rule, Keyword: keyword, Message: message}
}

// NoDataSourceError is returned when the orchestrator cannot resolve a usable source.
type NoDataSourceError struct {
	Reason string
}

func (e *NoDataSourceError) Error() string {
	if e.Reason == "" {
		return "no data source available"
	}
	return e.Reason
}

// NewNoDataSourceError creates a NoDataSourceError.
func NewNoDataSourceError(reason string) *NoDataSourceError {
	return &NoDataSourceError{Reason: reason}
}

// TransformationError is returned when records cannot be shaped into chart data.
type TransformationError struct {
	Message string
}

func (e *TransformationError) Error() string {
	return "chart transformation failed: " + e.Message
}

// NewTransformationError creates a TransformationError.
func NewTransformationError(message string) *TransformationError {
	return &TransformationError{Message: message}
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsConnection reports whether err wraps a ConnectionError.
func IsConnection(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNoDataSource reports whether err wraps a NoDataSourceError.
func IsNoDataSource(err error) bool {
	var target *NoDataSourceError
	return errors.As(err, &target)
}

// IsTransformation reports whether err wraps a TransformationError.
func IsTransformation(err error) bool {
	var target *TransformationError
	return errors.As(err, &target)
}
