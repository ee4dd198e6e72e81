package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Error types for structured error handling
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeNotFound   ErrorType = "not_found"
)

// ServerError is the JSON error body of the side routes.
type ServerError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewError creates a new ServerError
func NewError(errType ErrorType, message string, details string) *ServerError {
	return &ServerError{
		Type:      errType,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().Unix(),
	}
}

// Wrap wraps a standard error as a ServerError
func Wrap(err error, errType ErrorType, message string) *ServerError {
	if err == nil {
		return nil
	}
	return NewError(errType, message, err.Error())
}

// StatusCode maps the error type to an HTTP status.
func (e *ServerError) StatusCode() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeDatabase:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError logs e and writes it as a JSON response.
func WriteError(w http.ResponseWriter, e *ServerError, logger *zap.Logger) {
	level := zap.WarnLevel
	if e.StatusCode() >= http.StatusInternalServerError {
		level = zap.ErrorLevel
	}
	if ce := logger.Check(level, "request failed"); ce != nil {
		ce.Write(zap.String("type", string(e.Type)), zap.String("message", e.Message), zap.String("details", e.Details))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode())
	if err := json.NewEncoder(w).Encode(e); err != nil {
		logger.Error("failed to encode error response", zap.Error(err))
	}
}

// IsType checks if the error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if serverErr, ok := err.(*ServerError); ok {
		return serverErr.Type == errType
	}
	return false
}
