// Package repository declares the storage interfaces.
//
// The client side needs exactly one thing persisted: the bearer token
// (CredentialStore). The development backend needs users and wallets.
// Implementations live in the sub-packages (sqlite, memory).
package repository

//go:generate mockgen -source=repository.go -destination=mocks/repository_mock.go -package=mocks CredentialStore

import (
	"context"

	"github.com/sakif/clint-crypto/internal/model"
)

// TokenKey is the single reserved key the credential lives under.
const TokenKey = "clint_crypto_token"

// CredentialStore persists one opaque bearer token.
//
// Get returns "" (and a nil error) when no token is stored: absence is the only
// signal anybody checks. There is no expiry and no validation here; a stored
// token still has to be checked against the backend before it is trusted.
type CredentialStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateFullName(ctx context.Context, id, fullName string) (*model.User, error)
}

type WalletRepository interface {
	Create(ctx context.Context, wallet *model.Wallet) error
	ListByUser(ctx context.Context, userID string) ([]model.Wallet, error)
}
