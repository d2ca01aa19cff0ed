package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the backend's account table.
type UserDB struct {
	conn *sql.DB
}

// Create inserts a new user, generating its ID (xid) and timestamps.
//
// Emails are normalised to lower case before insert so that "Ann@B.com" and
// "ann@b.com" collide on the UNIQUE constraint. A collision is reported as
// apperror.ErrConflict so the handler can answer 409.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// modernc reports constraint failures in the error text; there is no
		// exported error code type to match on.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("Email already registered")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := u.scanOne(ctx,
		`SELECT id, email, full_name, password_hash, created_at, updated_at
		 FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetByEmail looks a user up by (case-insensitive) email.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := u.scanOne(ctx,
		`SELECT id, email, full_name, password_hash, created_at, updated_at
		 FROM users WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return user, nil
}

// UpdateFullName changes the display name and returns the updated record.
func (u *UserDB) UpdateFullName(ctx context.Context, id, fullName string) (*model.User, error) {
	res, err := u.conn.ExecContext(ctx,
		`UPDATE users SET full_name = ?, updated_at = ? WHERE id = ?`,
		fullName, time.Now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}

	// RowsAffected == 0 means the WHERE matched nothing.
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking update result: %w", err)
	}
	if n == 0 {
		return nil, apperror.NotFound("user", id)
	}

	return u.GetByID(ctx, id)
}

func (u *UserDB) scanOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var user model.User
	err := u.conn.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
