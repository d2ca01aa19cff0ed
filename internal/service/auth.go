// Package service contains the dev backend's business logic.
//
//	Handler (HTTP)  → Service (rules)  → Repository (SQLite)
//	                         ↘ TokenService / PasswordService
//
// Services take repository interfaces, never *sqlite.DB, so the tests below
// run against in-memory fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/auth"
	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/repository"
	"github.com/sakif/clint-crypto/internal/session"
)

// invalidLogin is deliberately the same for "no such user" and "wrong
// password" so the endpoint doesn't reveal which emails are registered.
const invalidLogin = "Invalid email or password"

// AuthService handles signup, login and the signed-in user's profile.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// Signup creates an account and signs it in.
//
// The input rules are the same ones the client checks before sending, so a
// well-behaved client never sees these errors; other callers still do.
func (s *AuthService) Signup(ctx context.Context, email, password, fullName string) (*model.AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)

	if err := session.ValidateSignup(email, password, fullName); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{Email: email, FullName: fullName, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidLogin)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login rejected", slog.String("userID", user.ID))
			return nil, apperror.Unauthorized(invalidLogin)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// Profile returns the identity for a user ID taken from a validated token.
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.Identity, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	id := user.Identity()
	return &id, nil
}

// UpdateProfile changes the display name and returns the stored identity.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, fullName string) (*model.Identity, error) {
	fullName = strings.TrimSpace(fullName)
	if err := session.ValidateFullName(fullName); err != nil {
		return nil, err
	}

	user, err := s.users.UpdateFullName(ctx, userID, fullName)
	if err != nil {
		return nil, fmt.Errorf("service/auth: updating user %s: %w", userID, err)
	}
	id := user.Identity()
	return &id, nil
}

func (s *AuthService) issue(user *model.User) (*model.AuthResponse, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &model.AuthResponse{Token: token, User: user.Identity()}, nil
}
