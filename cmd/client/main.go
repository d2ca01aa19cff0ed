// Package main is the Clint Crypto command-line client.
//
// Every command first resolves the stored credential (so "whoami" right after
// "login" in a new process shows the same user), then does its one thing:
//
//	clint signup -email a@b.com -name "Ann Lee"
//	clint login -email a@b.com
//	clint whoami
//	clint profile -name "Ann B. Lee"
//	clint wallets
//	clint add-wallet -currency BTC -address bc1q...
//	clint prices -ids bitcoin,ethereum
//	clint coins -q sol -exclude bitcoin
//	clint portfolio
//	clint logout
//	clint serve
//
// Passwords are read from stdin when -password is not given.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/clint-crypto/internal/api"
	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/config"
	"github.com/sakif/clint-crypto/internal/metrics"
	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/portfolio"
	"github.com/sakif/clint-crypto/internal/prices"
	"github.com/sakif/clint-crypto/internal/repository/sqlite"
	"github.com/sakif/clint-crypto/internal/session"
	"github.com/sakif/clint-crypto/internal/shell"
	"github.com/sakif/clint-crypto/internal/welcome"
)

const usage = `usage: clint <command> [flags]

commands:
  signup      create an account and sign in
  login       sign in
  logout      forget the stored credential
  whoami      show the signed-in user
  profile     change your display name
  wallets     list your wallets
  add-wallet  add a wallet
  prices      show market prices
  coins       search the coins you can add
  portfolio   value your wallets at market prices
  serve       run the local HTTP shell
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is the whole program minus the exit, so every deferred cleanup has
// happened by the time main sees the status code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	defer a.close()
	a.stdout = stdout
	a.stderr = stderr

	if err := a.run(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintln(stderr, "Error:", userMessage(err))
		a.logger.Debug("command failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

// app holds one process's worth of client core.
type app struct {
	cfg       *config.Client
	logger    *slog.Logger
	registry  *prometheus.Registry
	db        *sqlite.DB
	client    *api.Client
	manager   *session.Manager
	prices    *prices.Client
	portfolio *portfolio.Service

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp(cfg *config.Client) (*app, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	store := db.Credentials()

	client := api.New(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.HTTPTimeout}, store, logger, m)
	feed := prices.New(prices.Config{BaseURL: cfg.PricesURL, TTL: cfg.PricesTTL}, logger, m)

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		db:        db,
		client:    client,
		manager:   session.NewManager(client, store, logger, m),
		prices:    feed,
		portfolio: portfolio.NewService(client, feed, logger),
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	// Market data never needs the session.
	if command != "prices" && command != "coins" {
		if err := a.manager.Bootstrap(ctx); err != nil {
			return err
		}
	}

	switch command {
	case "signup":
		return a.signup(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "profile":
		return a.profile(ctx, args)
	case "wallets":
		return a.wallets(ctx)
	case "add-wallet":
		return a.addWallet(ctx, args)
	case "prices":
		return a.showPrices(ctx, args)
	case "coins":
		return a.searchCoins(ctx, args)
	case "portfolio":
		return a.showPortfolio(ctx)
	case "serve":
		return a.serve(ctx)
	default:
		fmt.Fprint(a.stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// =========================================================================
// SESSION COMMANDS
// =========================================================================

func (a *app) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	name := fs.String("name", "", "full name")
	password := fs.String("password", "", "password (read from stdin if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := a.readPassword(*password)
	if err != nil {
		return err
	}
	if _, err := a.manager.Signup(ctx, *email, pw, *name); err != nil {
		return err
	}
	a.greet()
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (read from stdin if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := a.readPassword(*password)
	if err != nil {
		return err
	}
	if _, err := a.manager.Login(ctx, *email, pw); err != nil {
		return err
	}
	a.greet()
	return nil
}

// greet is the command-line rendition of the welcome notification.
func (a *app) greet() {
	st := a.manager.State()
	if !st.JustAuthenticated || st.Identity == nil {
		return
	}
	fmt.Fprintf(a.stdout, "Welcome, %s!\n", displayName(*st.Identity))
}

func (a *app) logout(ctx context.Context) error {
	if err := a.manager.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Signed out.")
	return nil
}

func (a *app) whoami(context.Context) error {
	id, err := a.requireSignedIn()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Email:\t%s\n", id.Email)
	fmt.Fprintf(w, "Name:\t%s\n", id.FullName)
	fmt.Fprintf(w, "User ID:\t%s\n", id.UserID)
	return w.Flush()
}

func (a *app) profile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	name := fs.String("name", "", "new full name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.requireSignedIn(); err != nil {
		return err
	}

	id, err := a.manager.UpdateProfile(ctx, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Profile updated: %s\n", displayName(*id))
	return nil
}

// =========================================================================
// WALLET / MARKET COMMANDS
// =========================================================================

func (a *app) wallets(ctx context.Context) error {
	if _, err := a.requireSignedIn(); err != nil {
		return err
	}
	list, err := a.client.ListWallets(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, "No wallets yet. Add one with: clint add-wallet -currency BTC -address <address>")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CURRENCY\tBALANCE\tADDRESS")
	for _, wl := range list {
		fmt.Fprintf(w, "%s\t%g\t%s\n", wl.Currency, wl.Balance, wl.Address)
	}
	return w.Flush()
}

func (a *app) addWallet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-wallet", flag.ContinueOnError)
	currency := fs.String("currency", "", "currency symbol, e.g. BTC")
	address := fs.String("address", "", "wallet address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.requireSignedIn(); err != nil {
		return err
	}

	wl, err := a.portfolio.AddWallet(ctx, *currency, *address)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Added %s wallet %s\n", wl.Currency, wl.Address)
	return nil
}

func (a *app) showPrices(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prices", flag.ContinueOnError)
	ids := fs.String("ids", "", "comma-separated coin ids (default: "+strings.Join(prices.DefaultCoins, ",")+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	quotes, err := a.prices.Markets(ctx, splitList(*ids))
	if err != nil {
		return err
	}
	return a.printQuotes(quotes)
}

func (a *app) searchCoins(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("coins", flag.ContinueOnError)
	query := fs.String("q", "", "match name or symbol")
	exclude := fs.String("exclude", "", "comma-separated coin ids you already track")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := a.prices.Available(ctx)
	if err != nil {
		return err
	}
	found := prices.Search(list, *query, splitList(*exclude))
	if len(found) == 0 {
		fmt.Fprintln(a.stdout, "No matching coins.")
		return nil
	}
	return a.printQuotes(found)
}

func (a *app) printQuotes(quotes []model.CryptoPrice) error {
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "COIN\tSYMBOL\tPRICE (USD)\t24H\t")
	for _, q := range quotes {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%+.2f%%\t\n", q.Name, strings.ToUpper(q.Symbol), q.CurrentPrice, q.PriceChangePercentage24h)
	}
	return w.Flush()
}

func (a *app) showPortfolio(ctx context.Context) error {
	if _, err := a.requireSignedIn(); err != nil {
		return err
	}
	p, err := a.portfolio.Summary(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CURRENCY\tBALANCE\tPRICE (USD)\tVALUE (USD)")
	for _, h := range p.Holdings {
		price, value := "-", "-"
		if h.Priced {
			price = fmt.Sprintf("%.2f", h.PriceUSD)
			value = fmt.Sprintf("%.2f", h.ValueUSD)
		}
		fmt.Fprintf(w, "%s\t%g\t%s\t%s\n", h.Wallet.Currency, h.Wallet.Balance, price, value)
	}
	fmt.Fprintf(w, "TOTAL\t\t\t%.2f\n", p.TotalUSD)
	if err := w.Flush(); err != nil {
		return err
	}
	if p.PriceError != "" {
		fmt.Fprintf(a.stdout, "Note: %s; values may be incomplete.\n", p.PriceError)
	}
	return nil
}

// =========================================================================
// SERVE
// =========================================================================

func (a *app) serve(ctx context.Context) error {
	notifier := welcome.New(a.manager, a.cfg.WelcomeDelay, welcome.Hooks{
		OnShow: func(id model.Identity) {
			a.logger.Info("welcome shown", slog.String("user", displayName(id)))
		},
		OnHide: func() {
			a.logger.Debug("welcome hidden")
		},
	}, a.logger)
	stopWelcome := notifier.Start()
	defer stopWelcome()

	sh := shell.New(shell.Deps{
		Session:   a.manager,
		Portfolio: a.portfolio,
		Prices:    a.prices,
		Welcome:   notifier,
		Gatherer:  a.registry,
	}, a.logger)
	return sh.Start(ctx, a.cfg.ShellPort)
}

// =========================================================================
// HELPERS
// =========================================================================

func (a *app) requireSignedIn() (*model.Identity, error) {
	st := a.manager.State()
	if !st.Authenticated() {
		return nil, apperror.Unauthenticated()
	}
	return st.Identity, nil
}

// readPassword returns flagValue, or one line read from stdin.
func (a *app) readPassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(a.stderr, "Password: ")
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// userMessage prefers the message written for users; local failures (bad
// flags, unreadable data directory) are printed as they are.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func displayName(id model.Identity) string {
	if id.FullName != "" {
		return id.FullName
	}
	return id.Email
}
