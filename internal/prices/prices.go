// Package prices reads market prices from a CoinGecko-compatible feed.
//
// Prices are public and change slowly relative to how often screens ask for
// them, so Markets is a read-through cache: a result is kept for TTL per set
// of coin ids, and concurrent misses for the same set share one upstream call.
// Available reads the catalogue of coins a user may start tracking through
// the same cache, with its own longer TTL.
package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/clint-crypto/internal/metrics"
	"github.com/sakif/clint-crypto/internal/model"
)

const (
	DefaultBaseURL    = "https://api.coingecko.com/api/v3"
	DefaultTTL        = 30 * time.Second
	DefaultCatalogTTL = 5 * time.Minute

	// FetchFailedMessage is what callers show when the feed is unavailable.
	FetchFailedMessage = "Failed to fetch crypto prices"
	// CatalogFailedMessage is the same for the coin catalogue.
	CatalogFailedMessage = "Failed to fetch available cryptos"
)

// DefaultCoins are the coins the dashboard lists.
var DefaultCoins = []string{"bitcoin", "ethereum", "tether", "the-open-network", "litecoin"}

// AvailableCoins is the catalogue a user picks new coins from.
var AvailableCoins = []string{
	"bitcoin", "ethereum", "tether", "binancecoin", "ripple",
	"cardano", "solana", "polkadot", "dogecoin", "the-open-network",
	"litecoin", "chainlink", "polygon-matic", "avalanche-2", "stellar",
}

// FetchError is returned for any upstream failure. Its Error() is the
// user-facing message; the cause is kept for logs.
type FetchError struct {
	Status  int
	Cause   error
	Message string // empty means FetchFailedMessage
}

func (e *FetchError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return FetchFailedMessage
}
func (e *FetchError) Unwrap() error { return e.Cause }

type Config struct {
	BaseURL    string
	TTL        time.Duration
	CatalogTTL time.Duration
	HTTPClient *http.Client
}

type cacheEntry struct {
	prices    []model.CryptoPrice
	expiresAt time.Time
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	ttl        time.Duration
	catalogTTL time.Duration
	http       *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	now     func() time.Time
}

func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CatalogTTL <= 0 {
		cfg.CatalogTTL = DefaultCatalogTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		ttl:        cfg.TTL,
		catalogTTL: cfg.CatalogTTL,
		http:       cfg.HTTPClient,
		logger:     logger,
		metrics:    m,
		entries:    make(map[string]*cacheEntry),
		now:        time.Now,
	}
}

// Markets returns market data for ids (DefaultCoins when empty), ordered by
// market cap as the feed returns it.
func (c *Client) Markets(ctx context.Context, ids []string) ([]model.CryptoPrice, error) {
	if len(ids) == 0 {
		ids = DefaultCoins
	}
	key := cacheKey(ids)
	return c.read(ctx, key, key, c.ttl)
}

// Available returns market data for the AvailableCoins catalogue. It is cached
// apart from Markets, for the catalogue TTL.
func (c *Client) Available(ctx context.Context) ([]model.CryptoPrice, error) {
	ids := cacheKey(AvailableCoins)
	prices, err := c.read(ctx, "catalog:"+ids, ids, c.catalogTTL)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, &FetchError{Status: fe.Status, Cause: fe.Cause, Message: CatalogFailedMessage}
		}
		return nil, err
	}
	return prices, nil
}

// read serves key from the cache or fetches ids for it.
func (c *Client) read(ctx context.Context, key, ids string, ttl time.Duration) ([]model.CryptoPrice, error) {
	if prices, ok := c.get(key); ok {
		c.metrics.PriceCacheHits.Inc()
		return prices, nil
	}
	c.metrics.PriceCacheMisses.Inc()

	// Detach from the first caller's cancellation: the shared fetch serves
	// everybody waiting on key.
	v, err, _ := c.group.Do(key, func() (any, error) {
		if prices, ok := c.get(key); ok {
			return prices, nil
		}
		prices, err := c.fetch(context.WithoutCancel(ctx), ids)
		if err != nil {
			return nil, err
		}
		c.set(key, prices, ttl)
		return prices, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]model.CryptoPrice)), nil
}

// Search narrows a catalogue to coins whose name or symbol contains query
// (case-insensitive; blank matches everything), leaving out ids the user
// already tracks. Catalogue order is kept.
func Search(list []model.CryptoPrice, query string, tracked []string) []model.CryptoPrice {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.CryptoPrice, 0, len(list))
	for _, p := range list {
		if slices.ContainsFunc(tracked, func(id string) bool { return strings.EqualFold(strings.TrimSpace(id), p.ID) }) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Symbol), q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Client) fetch(ctx context.Context, ids string) ([]model.CryptoPrice, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", ids)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", "100")
	q.Set("page", "1")
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "24h")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/coins/markets?"+q.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Cause: fmt.Errorf("prices: building request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("price feed unreachable", slog.String("error", err.Error()))
		return nil, &FetchError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("price feed returned an error", slog.Int("status", resp.StatusCode))
		return nil, &FetchError{Status: resp.StatusCode, Cause: fmt.Errorf("prices: upstream status %d", resp.StatusCode)}
	}

	var prices []model.CryptoPrice
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Cause: fmt.Errorf("prices: decoding response: %w", err)}
	}
	return prices, nil
}

func (c *Client) get(key string) ([]model.CryptoPrice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return slices.Clone(entry.prices), true
}

func (c *Client) set(key string, prices []model.CryptoPrice, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &cacheEntry{prices: prices, expiresAt: now.Add(ttl)}

	// Lazy cleanup so abandoned id-sets don't accumulate.
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// cacheKey is the sorted, de-duplicated, lower-cased id list, which is also
// what goes on the wire.
func cacheKey(ids []string) string {
	norm := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			norm = append(norm, id)
		}
	}
	slices.Sort(norm)
	return strings.Join(slices.Compact(norm), ",")
}
