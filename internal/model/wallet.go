package model

import "time"

// Wallet is one currency balance held for a user.
//
// The JSON field names follow the backend contract (note the leading
// underscore on "_id" and the owner stored under "user").
type Wallet struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"user"`
	Currency  string    `json:"currency"`
	Balance   float64   `json:"balance"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateWalletRequest is the body of POST /api/wallets.
type CreateWalletRequest struct {
	Currency string `json:"currency"`
	Address  string `json:"address"`
}
