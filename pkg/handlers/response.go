package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
)

// ApiResponse wraps data in the envelope the frontend expects.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// statusFor maps a service error to an HTTP status, an error code and a
// message that is safe to show. fallback is the message for unexpected
// errors.
func statusFor(err error, fallback string) (int, string, string) {
	var (
		cfgErr  *apperrors.ConfigurationError
		valErr  *apperrors.ValidationError
		noDS    *apperrors.NoDataSourceError
		connErr *apperrors.ConnectionError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, "configuration_error", cfgErr.Message
	case errors.As(err, &valErr):
		return http.StatusBadRequest, "validation_error", valErr.Message
	case errors.As(err, &noDS):
		return http.StatusNotFound, "no_data_source", noDS.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found", "Resource not found"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict", "A resource with this name already exists"
	case errors.As(err, &connErr):
		return http.StatusBadGateway, "connection_error", logging.SanitizeError(connErr)
	}
	return http.StatusInternalServerError, "internal_error", fallback
}

// writeServiceError writes the response for err. Only unexpected errors are
// logged at ERROR; the rest are the caller's fault or the backend's.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	status, code, message := statusFor(err, fallback)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.Error(fallback, zap.String("error", logging.SanitizeError(err)))
	} else {
		logger.Debug(fallback, zap.Int("status", status), zap.String("error", logging.SanitizeError(err)))
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
