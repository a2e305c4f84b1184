package tools

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
)

// ErrorResponse is a structured error returned as a tool result, so the
// calling model sees it and can correct the call.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use it for errors the caller can act on (bad arguments, unknown source).
// System failures should still be returned as Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// resultForError turns a service error into an actionable tool result.
// ok is false for errors the caller cannot fix; those go back as protocol
// errors.
func resultForError(err error) (result *mcp.CallToolResult, ok bool) {
	var (
		cfgErr  *apperrors.ConfigurationError
		valErr  *apperrors.ValidationError
		noDS    *apperrors.NoDataSourceError
		connErr *apperrors.ConnectionError
	)
	switch {
	case IsSQLUserError(err):
		return NewErrorResult(SQLUserErrorCode(err), logging.SanitizeError(err)), true
	case errors.As(err, &noDS):
		return NewErrorResult("no_data_source", noDS.Error()+"; connect one with list_data_sources to check"), true
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", "data source not found"), true
	case errors.As(err, &cfgErr):
		return NewErrorResult("configuration_error", cfgErr.Message), true
	case errors.As(err, &valErr):
		return NewErrorResult("validation_error", valErr.Message), true
	case errors.As(err, &connErr):
		return NewErrorResult("connection_error", logging.SanitizeError(connErr)), true
	}
	return nil, false
}

// sqlStateRegex matches PostgreSQL SQLSTATE codes in error messages like "(SQLSTATE 42601)"
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// IsSQLUserError reports whether err is a SQL error the query author caused
// (bad syntax, unknown table, bad input) rather than a server failure.
func IsSQLUserError(err error) bool {
	code := sqlState(err)
	if len(code) < 2 {
		return false
	}
	switch code[:2] {
	case "22", // Data Exception
		"42": // Syntax Error or Access Rule Violation
		return true
	}
	return false
}

// SQLUserErrorCode returns a readable code for a SQL user error.
func SQLUserErrorCode(err error) string {
	switch sqlState(err) {
	case "42601":
		return "syntax_error"
	case "42703":
		return "undefined_column"
	case "42P01":
		return "undefined_table"
	case "22012":
		return "division_by_zero"
	case "22P02":
		return "invalid_input"
	}
	return "sql_error"
}

func sqlState(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	if matches := sqlStateRegex.FindStringSubmatch(err.Error()); len(matches) >= 2 {
		return matches[1]
	}
	return ""
}
