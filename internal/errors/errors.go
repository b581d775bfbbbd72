package errors

import "fmt"

type ErrorCode string

const (
	CodeMissingField      ErrorCode = "missing_field"
	CodeInvalidNodeType   ErrorCode = "invalid_node_type"
	CodeMalformedResponse ErrorCode = "malformed_response"
	CodeTransport         ErrorCode = "transport_error"
)

// Sentinels for errors.Is matching, only the Code is compared.
var (
	ErrMissingField      = ServiceError{Code: CodeMissingField}
	ErrInvalidNodeType   = ServiceError{Code: CodeInvalidNodeType}
	ErrMalformedResponse = ServiceError{Code: CodeMalformedResponse}
	ErrTransport         = ServiceError{Code: CodeTransport}
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	// Field is set for CodeMissingField and names the absent request field.
	Field string
	Err   error
}

func (se ServiceError) Error() string {
	msg := se.Message
	if msg == "" {
		msg = string(se.Code)
	}

	if se.Err != nil {
		return msg + ": " + se.Err.Error()
	}

	return msg
}

func (se ServiceError) Unwrap() error {
	return se.Err
}

// Is reports whether target is a ServiceError carrying the same code.
func (se ServiceError) Is(target error) bool {
	t, ok := target.(ServiceError)
	if !ok {
		return false
	}

	return t.Code == se.Code
}

func MissingField(field string) ServiceError {
	return ServiceError{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("missing required field %q", field),
		Field:   field,
	}
}

func InvalidNodeType(reason string) ServiceError {
	return ServiceError{
		Code:    CodeInvalidNodeType,
		Message: "invalid node type: " + reason,
	}
}

func MalformedResponse(reason string, err error) ServiceError {
	return ServiceError{
		Code:    CodeMalformedResponse,
		Message: "malformed response: " + reason,
		Err:     err,
	}
}

func Transport(message string, err error) ServiceError {
	return ServiceError{
		Code:    CodeTransport,
		Message: message,
		Err:     err,
	}
}
