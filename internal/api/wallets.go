package api

import (
	"context"
	"net/http"

	"github.com/sakif/clint-crypto/internal/model"
)

// ListWallets returns the signed-in user's wallets.
//
// HTTP: GET /api/wallets
func (c *Client) ListWallets(ctx context.Context) ([]model.Wallet, error) {
	var wallets []model.Wallet
	if err := c.Request(ctx, http.MethodGet, "/api/wallets", nil, &wallets); err != nil {
		return nil, err
	}
	return wallets, nil
}

// CreateWallet registers a new wallet address for a currency.
//
// HTTP: POST /api/wallets
func (c *Client) CreateWallet(ctx context.Context, currency, address string) (*model.Wallet, error) {
	var wallet model.Wallet
	if err := c.Request(ctx, http.MethodPost, "/api/wallets",
		model.CreateWalletRequest{Currency: currency, Address: address}, &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}
