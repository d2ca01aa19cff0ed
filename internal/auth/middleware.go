package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// contextKey is unexported so only this package can set or read the user ID.
type contextKey string

const userIDKey contextKey = "userID"

var errNoBearer = errors.New("auth: missing bearer token")

// RequireAuth enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <jwt>", validates the token, and stores the
// user ID in the request context. A missing, malformed, expired or forged
// token gets 401 with the backend's usual error body and the chain stops.
//
// The client treats that 401 as "credential rejected": at startup it discards
// the stored token and starts signed out.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="clint-crypto"`)
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "Unauthorized",
					"code":  "unauthorized",
				})
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user's ID, or ("", false) if
// RequireAuth did not run for this request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithUserID returns a context carrying userID, as RequireAuth would.
// Handler tests use it to skip token minting.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errNoBearer
	}
	return tokens.Validate(strings.TrimSpace(token))
}
