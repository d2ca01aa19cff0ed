// Package portfolio values the signed-in user's wallets at market prices.
package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/model"
)

// WalletSource is satisfied by *api.Client.
type WalletSource interface {
	ListWallets(ctx context.Context) ([]model.Wallet, error)
	CreateWallet(ctx context.Context, currency, address string) (*model.Wallet, error)
}

// PriceSource is satisfied by *prices.Client.
type PriceSource interface {
	Markets(ctx context.Context, ids []string) ([]model.CryptoPrice, error)
}

type Service struct {
	wallets WalletSource
	prices  PriceSource
	logger  *slog.Logger
}

func NewService(wallets WalletSource, prices PriceSource, logger *slog.Logger) *Service {
	return &Service{wallets: wallets, prices: prices, logger: logger}
}

// Summary fetches wallets and prices in parallel and joins them by symbol
// (case-insensitive: wallets say "BTC", the feed says "btc").
//
// A wallet failure fails the summary. A price failure does not: holdings come
// back unpriced and PriceError carries the feed's message.
func (s *Service) Summary(ctx context.Context) (*model.Portfolio, error) {
	var (
		wallets  []model.Wallet
		quotes   []model.CryptoPrice
		priceErr error
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w, err := s.wallets.ListWallets(gctx)
		if err != nil {
			return fmt.Errorf("portfolio: listing wallets: %w", err)
		}
		wallets = w
		return nil
	})

	g.Go(func() error {
		q, err := s.prices.Markets(gctx, nil)
		if err != nil {
			// Not returned: it would cancel the wallet fetch.
			s.logger.Warn("pricing unavailable for portfolio", slog.String("error", err.Error()))
			priceErr = err
			return nil
		}
		quotes = q
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p := Value(wallets, quotes)
	if priceErr != nil {
		p.PriceError = priceErr.Error()
	}
	return p, nil
}

// Value joins wallets with quotes. Wallets without a quote are listed with
// Priced=false and contribute nothing to the total.
func Value(wallets []model.Wallet, quotes []model.CryptoPrice) *model.Portfolio {
	p := &model.Portfolio{Holdings: make([]model.Holding, 0, len(wallets))}

	for _, w := range wallets {
		h := model.Holding{Wallet: w}
		for _, q := range quotes {
			if strings.EqualFold(w.Currency, q.Symbol) {
				h.PriceUSD = q.CurrentPrice
				h.ValueUSD = w.Balance * q.CurrentPrice
				h.Priced = true
				break
			}
		}
		p.TotalUSD += h.ValueUSD
		p.Holdings = append(p.Holdings, h)
	}
	return p
}

// AddWallet validates and registers a wallet address.
func (s *Service) AddWallet(ctx context.Context, currency, address string) (*model.Wallet, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	address = strings.TrimSpace(address)

	if currency == "" {
		return nil, apperror.ValidationFailed("currency", "Please choose a currency")
	}
	if address == "" {
		return nil, apperror.ValidationFailed("address", "Please enter a wallet address")
	}

	w, err := s.wallets.CreateWallet(ctx, currency, address)
	if err != nil {
		return nil, fmt.Errorf("portfolio: adding wallet: %w", err)
	}
	s.logger.Info("wallet added", slog.String("currency", w.Currency))
	return w, nil
}
