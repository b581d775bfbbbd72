package api

type APIErrorCode string

const (
	InvalidRequest  APIErrorCode = "invalid_request"
	EnqueueingError APIErrorCode = "enqueueing_error"
)

// APIError represents a custom error with a code and description
type APIError struct {
	Code        APIErrorCode
	Description string
}

// Implement the error interface for APIError
func (e *APIError) Error() string {
	if e.Description != "" {
		return string(e.Code) + ": " + e.Description
	}
	return string(e.Code)
}
