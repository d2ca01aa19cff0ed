package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/clint-crypto/internal/apperror"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation",
			err:        apperror.ValidationFailed("email", "Please enter a valid email address"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Please enter a valid email address","code":"validation_error"}`,
		},
		{
			name:       "conflict through a wrap",
			err:        fmt.Errorf("service/auth: creating user: %w", apperror.Conflict("Email already registered")),
			wantStatus: http.StatusConflict,
			wantBody:   `{"error":"Email already registered","code":"conflict"}`,
		},
		{
			name:       "bad credentials",
			err:        apperror.Unauthorized("Invalid email or password"),
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"Invalid email or password","code":"unauthorized"}`,
		},
		{
			name:       "not found",
			err:        apperror.NotFound("user", "abc"),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"user not found with id abc","code":"not_found"}`,
		},
		{
			name:       "upstream client error is relayed",
			err:        apperror.APIFailure(http.StatusUnauthorized, "Invalid email or password"),
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"Invalid email or password","code":"api_error"}`,
		},
		{
			name:       "upstream server error is a bad gateway",
			err:        apperror.APIFailure(http.StatusInternalServerError, ""),
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"Request failed","code":"api_error"}`,
		},
		{
			name:       "protocol failure",
			err:        apperror.ProtocolFailure(0, errors.New("dial tcp: connection refused")),
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"Request failed","code":"upstream_error"}`,
		},
		{
			name:       "not signed in",
			err:        apperror.Unauthenticated(),
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"You need to sign in first","code":"unauthorized"}`,
		},
		{
			name:       "raw error never leaks",
			err:        errors.New("open /var/lib/backend.db: permission denied"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"An internal error occurred","code":"internal_error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			WriteError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"email":"a@b.com"}`, ""},
		{"empty", ``, "Request body is required"},
		{"malformed", `{"email":`, "Invalid JSON request body"},
		{"too large", `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`, "Invalid JSON request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.wantErr, apperror.Message(err))
		})
	}
}
