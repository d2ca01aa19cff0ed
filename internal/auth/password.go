package auth

// PASSWORD HASHING:
// The dev backend stores bcrypt hashes, never passwords. bcrypt salts each
// hash itself and embeds the salt and cost in the output:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version
//
// so the users table needs a single password_hash column.

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/clint-crypto/internal/apperror"
)

const (
	defaultCost = 12

	// MaxPasswordBytes is bcrypt's input limit. Longer input would be
	// silently truncated, so it is rejected instead.
	MaxPasswordBytes = 72
)

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: password does not match")

// PasswordService provides bcrypt hashing and verification. The cost is a
// field so tests can use the bcrypt minimum.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with cost 12.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom cost
// (use bcrypt.MinCost). Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. Input over MaxPasswordBytes is a
// validation error the handler can show as-is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at most %d characters", MaxPasswordBytes))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash, ErrPasswordMismatch when it
// does not, and a wrapped error for a malformed hash.
// The comparison is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
