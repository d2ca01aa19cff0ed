package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/clint-crypto/internal/repository"
)

var _ repository.CredentialStore = (*CredentialDB)(nil)

// CredentialDB stores the bearer token as one row of the kv table under
// repository.TokenKey. The value is the raw token string.
type CredentialDB struct {
	conn *sql.DB
}

// Get returns the stored token, or "" when there is none.
//
// sql.ErrNoRows is the normal "signed out" case, so it is translated to an
// empty string rather than an error. Any other error means storage itself is
// unreadable and is returned as-is for the caller to treat as fatal.
func (c *CredentialDB) Get(ctx context.Context) (string, error) {
	var token string
	err := c.conn.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ?`, repository.TokenKey,
	).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("sqlite: reading credential: %w", err)
	}
	return token, nil
}

// Set writes the token, replacing any previous value.
func (c *CredentialDB) Set(ctx context.Context, token string) error {
	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		repository.TokenKey, token, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing credential: %w", err)
	}
	return nil
}

// Clear removes the token. Clearing an empty store is not an error.
func (c *CredentialDB) Clear(ctx context.Context) error {
	_, err := c.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, repository.TokenKey)
	if err != nil {
		return fmt.Errorf("sqlite: clearing credential: %w", err)
	}
	return nil
}
