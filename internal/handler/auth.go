package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/clint-crypto/internal/service"
)

// AuthHandler serves signup, login and the profile endpoints.
//
//   - POST /auth/signup  → HandleSignup
//   - POST /auth/login   → HandleLogin
//   - GET  /users/me     → HandleMe            (RequireAuth)
//   - PUT  /users/me     → HandleUpdateMe      (RequireAuth)
//
// There is no logout endpoint: tokens are stateless, so signing out is the
// client dropping its copy.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	FullName string `json:"fullName"`
}

// HandleSignup creates an account.
//
// HTTP: POST /auth/signup
// Response: 201 {"token": "...", "user": {"userId", "email", "fullName"}}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	resp, err := h.auth.Signup(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.logFailure("signup", err)
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, resp)
}

// HandleLogin exchanges credentials for a token.
//
// HTTP: POST /auth/login
// Response: 200, same shape as signup.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logFailure("login", err)
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// HandleMe returns the caller's profile.
//
// HTTP: GET /users/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.auth.Profile(r.Context(), userID)
	if err != nil {
		// A valid token for a user that no longer exists is still a
		// credential the client should drop.
		h.logger.Warn("token for unknown user", slog.String("userID", userID))
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized", Code: "unauthorized"})
		return
	}

	WriteJSON(w, http.StatusOK, profile)
}

// HandleUpdateMe changes the caller's display name.
//
// HTTP: PUT /users/me
// Body: {"fullName": "Ann Lee"}
func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	profile, err := h.auth.UpdateProfile(r.Context(), userID, req.FullName)
	if err != nil {
		h.logFailure("update profile", err)
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, profile)
}

// logFailure logs server-side failures at ERROR and client mistakes at DEBUG.
func (h *AuthHandler) logFailure(op string, err error) {
	if status, _ := Classify(err); status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
		return
	}
	h.logger.Debug(op+" rejected", slog.String("reason", err.Error()))
}
