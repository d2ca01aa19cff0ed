package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/repository"
)

// MaxCurrencyLength bounds a currency code ("BTC", "USDT", "TON").
const MaxCurrencyLength = 10

// WalletService manages a user's wallet addresses.
//
// Balances are not writable through the API: deposits and withdrawals are
// handled elsewhere, so a new wallet always starts at zero.
type WalletService struct {
	repo   repository.WalletRepository
	logger *slog.Logger
}

func NewWalletService(repo repository.WalletRepository, logger *slog.Logger) *WalletService {
	return &WalletService{repo: repo, logger: logger}
}

// Create validates and stores a wallet owned by userID.
func (s *WalletService) Create(ctx context.Context, userID, currency, address string) (*model.Wallet, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	address = strings.TrimSpace(address)

	if currency == "" {
		return nil, apperror.ValidationFailed("currency", "Please choose a currency")
	}
	if len(currency) > MaxCurrencyLength {
		return nil, apperror.ValidationFailed("currency",
			fmt.Sprintf("Currency code must be %d characters or less", MaxCurrencyLength))
	}
	if address == "" {
		return nil, apperror.ValidationFailed("address", "Please enter a wallet address")
	}

	wallet := &model.Wallet{UserID: userID, Currency: currency, Address: address}
	if err := s.repo.Create(ctx, wallet); err != nil {
		s.logger.Error("failed to create wallet",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/wallet: creating wallet: %w", err)
	}

	s.logger.Info("wallet created",
		slog.String("id", wallet.ID),
		slog.String("currency", wallet.Currency),
	)
	return wallet, nil
}

// List returns userID's wallets, oldest first; never nil.
func (s *WalletService) List(ctx context.Context, userID string) ([]model.Wallet, error) {
	wallets, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/wallet: listing wallets: %w", err)
	}
	if wallets == nil {
		wallets = []model.Wallet{}
	}
	return wallets, nil
}
