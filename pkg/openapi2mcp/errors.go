package openapi2mcp

import (
	"errors"
	"fmt"
)

// ErrorType classifies load-time failures. All of them abort startup.
type ErrorType string

const (
	// ErrorTypeSource: the document could not be read from its file, URL or store.
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeParse: the document is not valid YAML/JSON or failed to dereference.
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeVersion: the version marker is missing or outside 3.0.x / 3.1.x.
	ErrorTypeVersion ErrorType = "version"
	// ErrorTypeStructure: the document has no paths.
	ErrorTypeStructure ErrorType = "structure"
	// ErrorTypeReference: an operation still holds an unresolved reference.
	ErrorTypeReference ErrorType = "reference"
)

// LoadError is a structured load-time error.
type LoadError struct {
	Type    ErrorType
	Message string
	Details string
	Err     error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func newLoadError(errType ErrorType, message, details string) *LoadError {
	return &LoadError{Type: errType, Message: message, Details: details}
}

func wrapLoadError(err error, errType ErrorType, message string) *LoadError {
	if err == nil {
		return nil
	}
	return &LoadError{Type: errType, Message: message, Err: err}
}

// IsLoadErrorType reports whether err is, or wraps, a LoadError of the given type.
func IsLoadErrorType(err error, errType ErrorType) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Type == errType
	}
	return false
}
