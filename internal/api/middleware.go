package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openbuilders/synapse-batch/internal/errors"
)

// WithMethod is a middleware that checks if the endpoint was called using a
// specific HTTP method and rejects it otherwise.
func WithMethod(next http.HandlerFunc, method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, fmt.Sprintf("Only %s method is allowed", method), http.StatusMethodNotAllowed)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// WithJSONResponse wraps an APIHandler and handles JSON response formatting
func WithJSONResponse(handler APIHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		data, err := handler(w, r)

		if err != nil {
			status, errorResponse := toErrorResponse(err)

			slog.Debug("API error", "error", err)

			w.WriteHeader(status)
			if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
				slog.Error("Failed to encode error response", "error", err)
			}
			return
		}

		successResponse := SuccessResponse{
			Ok:   true,
			Data: data,
		}

		if err := json.NewEncoder(w).Encode(successResponse); err != nil {
			http.Error(w, `{"ok": false, "errorCode": "internal_error", "errorDescription": "Failed to encode success response"}`, http.StatusInternalServerError)
			return
		}
	}
}

func toErrorResponse(err error) (int, ErrorResponse) {
	var (
		serviceErr errors.ServiceError
		apiErr     *APIError
	)

	switch {
	case stderrors.As(err, &serviceErr):
		status := http.StatusBadRequest
		if serviceErr.Code == errors.CodeTransport {
			status = http.StatusBadGateway
		}

		return status, ErrorResponse{
			ErrorCode:        string(serviceErr.Code),
			ErrorDescription: err.Error(),
			Field:            serviceErr.Field,
		}

	case stderrors.As(err, &apiErr):
		status := http.StatusInternalServerError
		if apiErr.Code == InvalidRequest {
			status = http.StatusBadRequest
		}

		return status, ErrorResponse{
			ErrorCode:        string(apiErr.Code),
			ErrorDescription: apiErr.Description,
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		ErrorCode:        "internal_error",
		ErrorDescription: err.Error(),
	}
}
