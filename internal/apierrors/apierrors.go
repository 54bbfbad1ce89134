// Package apierrors contains the error types returned across the API boundary.
package apierrors

import "net/http"

// APIError represents an error that should be translated into an HTTP response.
type APIError struct {
	Detail string `json:"detail"`
	status int
}

// APIErrorOption determines the Functional Options used to create a new APIError.
type APIErrorOption func(err *APIError)

// WithDetail sets the user-displayable detail message.
func WithDetail(detail string) APIErrorOption {
	return func(err *APIError) {
		err.Detail = detail
	}
}

// WithHTTPStatusCode sets the HTTP status code associated to the error.
func WithHTTPStatusCode(status int) APIErrorOption {
	return func(err *APIError) {
		err.status = status
	}
}

// NewAPIError creates a new APIError using the given options.
func NewAPIError(opts ...APIErrorOption) *APIError {
	err := &APIError{status: http.StatusInternalServerError}
	for _, opt := range opts {
		opt(err)
	}
	return err
}

// HTTPStatusCode gets the HTTP status code associated to the error.
func (e APIError) HTTPStatusCode() int {
	return e.status
}

func (e APIError) Error() string {
	return e.Detail
}

// ValidationError represents a malformed field in a given payload.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// NewValidationError creates a new ValidationError for the given field.
func NewValidationError(field string, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e ValidationError) Error() string {
	return e.Field + " " + e.Reason
}
