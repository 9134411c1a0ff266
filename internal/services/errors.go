// Package services provides the business logic layer between the entry points
// (CLI tools, admin handlers) and the rollup engine, registry and stores.
package services

import "errors"

// Service error codes
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeBoxNotFound    = "BOX_NOT_FOUND"
	CodeQueryFailed    = "QUERY_FAILED"
	CodeRollupFailed   = "ROLLUP_FAILED"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	cause   error
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying error to errors.Is and errors.As
func (e *ServiceError) Unwrap() error {
	return e.cause
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// wrapServiceError builds a ServiceError carrying cause
func wrapServiceError(code, message string, cause error) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: map[string]interface{}{"error": cause.Error()},
		cause:   cause,
	}
}

// CodeOf returns the code of the first ServiceError in err's chain, or ""
func CodeOf(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
