package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/repository"
)

var _ repository.WalletRepository = (*WalletDB)(nil)

// WalletDB is the backend's wallet table.
type WalletDB struct {
	conn *sql.DB
}

// Create inserts a wallet. Currency codes are stored upper-case ("btc" → "BTC").
func (w *WalletDB) Create(ctx context.Context, wallet *model.Wallet) error {
	now := time.Now()
	wallet.ID = xid.New().String()
	wallet.Currency = strings.ToUpper(strings.TrimSpace(wallet.Currency))
	wallet.CreatedAt = now
	wallet.UpdatedAt = now

	_, err := w.conn.ExecContext(ctx,
		`INSERT INTO wallets (id, user_id, currency, balance, address, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		wallet.ID,
		wallet.UserID,
		wallet.Currency,
		wallet.Balance,
		wallet.Address,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating wallet for user %s: %w", wallet.UserID, err)
	}
	return nil
}

// ListByUser returns a user's wallets, oldest first.
//
// ALWAYS CLOSE ROWS:
// rows holds a connection from the pool until it is closed. With the pool
// capped at one connection, a leaked rows would block every later query.
func (w *WalletDB) ListByUser(ctx context.Context, userID string) ([]model.Wallet, error) {
	rows, err := w.conn.QueryContext(ctx,
		`SELECT id, user_id, currency, balance, address, created_at, updated_at
		 FROM wallets
		 WHERE user_id = ?
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing wallets for user %s: %w", userID, err)
	}
	defer rows.Close()

	// Start with an empty (non-nil) slice so JSON encodes [] instead of null.
	wallets := []model.Wallet{}
	for rows.Next() {
		var wallet model.Wallet
		if err := rows.Scan(
			&wallet.ID,
			&wallet.UserID,
			&wallet.Currency,
			&wallet.Balance,
			&wallet.Address,
			&wallet.CreatedAt,
			&wallet.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning wallet row: %w", err)
		}
		wallets = append(wallets, wallet)
	}

	// rows.Err reports errors that ended iteration early.
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating wallet rows: %w", err)
	}

	return wallets, nil
}
