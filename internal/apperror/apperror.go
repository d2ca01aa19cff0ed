// Package apperror defines the error taxonomy shared by the client core and
// the development backend.
//
// ERROR CATEGORIES:
//   - ErrValidation      → bad input caught before any network call (inline message)
//   - ErrAPI             → the backend answered with a non-2xx status and a message
//   - ErrProtocol        → the backend could not be reached or did not speak JSON
//   - ErrUnauthenticated → the operation needs a signed-in session
//   - ErrResolving       → the session has not finished its startup check yet
//
// The remaining sentinels (not found, conflict, unauthorized) are used by the
// backend service layer and mapped to HTTP statuses by the handlers.
//
// Callers match categories with errors.Is and pull the human-readable text out
// with Message (or errors.As into *AppError).
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// GenericMessage is shown whenever the backend gives us nothing better.
const GenericMessage = "Request failed"

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("Validation Error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrAPI             = errors.New("api error")
	ErrProtocol        = errors.New("protocol error")
	ErrUnauthenticated = errors.New("not signed in")
	ErrResolving       = errors.New("session still resolving")
)

type AppError struct {
	Err     error  // category sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Status  int    // Optional: HTTP status reported by the backend
	Cause   error  // Optional: underlying transport/decoding error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the category sentinel and the underlying cause so that
// errors.Is works against either (e.g. ErrProtocol and context.DeadlineExceeded).
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation with a caller-supplied message,
// e.g. "Email already registered".
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is used by the backend for bad credentials and missing tokens.
// HTTP handlers map this to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// APIFailure is an application-level failure reported by the backend.
// An empty message falls back to GenericMessage.
func APIFailure(status int, message string) *AppError {
	if message == "" {
		message = GenericMessage
	}
	return &AppError{
		Err:     ErrAPI,
		Message: message,
		Status:  status,
	}
}

// ProtocolFailure wraps a transport or decoding failure. The user only ever
// sees GenericMessage; the cause is kept for logs.
func ProtocolFailure(status int, cause error) *AppError {
	return &AppError{
		Err:     ErrProtocol,
		Message: GenericMessage,
		Status:  status,
		Cause:   cause,
	}
}

func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "You need to sign in first",
	}
}

func Resolving() *AppError {
	return &AppError{
		Err:     ErrResolving,
		Message: "Session is still loading",
	}
}

// Message returns the text to show a user for err.
//
// Anything that isn't an *AppError is treated as a protocol problem: we never
// leak raw Go error strings (file paths, SQL, dial errors) into the UI.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return GenericMessage
}

// IsUnauthorizedStatus reports whether err is a backend rejection of our
// credential (HTTP 401).
func IsUnauthorizedStatus(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return errors.Is(appErr.Err, ErrAPI) && appErr.Status == http.StatusUnauthorized
	}
	return false
}
