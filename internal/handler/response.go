package handler

// RESPONSE HELPERS:
// Every handler answers through WriteJSON / WriteError so that all endpoints
// share one error shape:
//
//	{"error": "Email already registered", "code": "conflict"}
//
// "error" is the human-readable message. The client shows it verbatim, so it
// must never contain internals. "code" is a stable machine-readable category.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/clint-crypto/internal/apperror"
)

// maxBodyBytes caps request bodies. Every request in this API is a handful of
// short strings.
const maxBodyBytes = 1 << 16

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON sends data as JSON with the given status. Headers and status
// must be written before the body.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// WriteError maps err onto a status and an ErrorResponse.
//
// Mapping happens here, not in the service layer, so services stay free of
// HTTP. Anything that is not an *apperror.AppError is an internal error and
// its text is never sent.
func WriteError(w http.ResponseWriter, err error) {
	status, code := Classify(err)

	message := "An internal error occurred"
	var appErr *apperror.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		message = appErr.Message
	}

	WriteJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// Classify returns the HTTP status and machine code for err.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized), errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrResolving):
		return http.StatusServiceUnavailable, "resolving"
	case errors.Is(err, apperror.ErrAPI):
		// Relay the upstream's client errors (bad credentials, duplicate
		// email); its server errors are ours to report as a bad gateway.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Status >= 400 && appErr.Status < 500 {
			return appErr.Status, "api_error"
		}
		return http.StatusBadGateway, "api_error"
	case errors.Is(err, apperror.ErrProtocol):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// DecodeJSON reads a JSON request body into dst. A malformed or oversized
// body is a validation error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "Request body is required")
		}
		return apperror.ValidationFailed("body", "Invalid JSON request body")
	}
	return nil
}
