// Package shell is the local HTTP binding between the client core and a
// front end.
//
// ROUTES:
//
//	GET  /api/session                  session state + welcome visibility
//	POST /api/session/signup           {email, password, fullName}
//	POST /api/session/login            {email, password}
//	POST /api/session/logout
//	PUT  /api/session/profile          {fullName}
//	POST /api/session/welcome/dismiss
//	GET  /api/portfolio                signed in only
//	POST /api/wallets                  signed in only
//	GET  /api/prices                   ?ids=bitcoin,ethereum
//	GET  /api/prices/available         ?q=sol&exclude=bitcoin,ethereum
//	GET  /metrics                      Prometheus
//	GET  /*                            navigation, through guard.Middleware
//
// The shell owns no state of its own. Everything it reports comes from the
// session Manager's snapshot at the time of the request.
package shell

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/clint-crypto/internal/apperror"
	"github.com/sakif/clint-crypto/internal/guard"
	"github.com/sakif/clint-crypto/internal/handler"
	"github.com/sakif/clint-crypto/internal/middleware"
	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/prices"
	"github.com/sakif/clint-crypto/internal/server"
	"github.com/sakif/clint-crypto/internal/session"
)

// Session is the part of the session Manager the shell drives.
type Session interface {
	State() session.State
	Login(ctx context.Context, email, password string) (*model.Identity, error)
	Signup(ctx context.Context, email, password, fullName string) (*model.Identity, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, fullName string) (*model.Identity, error)
	Refresh(ctx context.Context) (*model.Identity, error)
	DismissWelcome()
}

// Portfolio values the signed-in user's wallets.
type Portfolio interface {
	Summary(ctx context.Context) (*model.Portfolio, error)
	AddWallet(ctx context.Context, currency, address string) (*model.Wallet, error)
}

// Prices serves public market data.
type Prices interface {
	Markets(ctx context.Context, ids []string) ([]model.CryptoPrice, error)
	Available(ctx context.Context) ([]model.CryptoPrice, error)
}

// Welcome reports whether the post-login notification is showing.
type Welcome interface {
	Visible() bool
}

// Deps are the shell's collaborators. Routes defaults to
// guard.DefaultRoutes; Gatherer defaults to the global Prometheus registry.
type Deps struct {
	Session   Session
	Portfolio Portfolio
	Prices    Prices
	Welcome   Welcome
	Routes    *guard.Routes
	Gatherer  prometheus.Gatherer
}

// Shell serves the routes above.
type Shell struct {
	router *chi.Mux
	deps   Deps
	logger *slog.Logger
}

// New builds the router.
func New(deps Deps, logger *slog.Logger) *Shell {
	if deps.Routes == nil {
		deps.Routes = guard.DefaultRoutes()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Shell{
		router: chi.NewRouter(),
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, for httptest servers.
func (s *Shell) Handler() http.Handler {
	return s.router
}

func (s *Shell) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Post("/session/signup", s.handleSignup)
		r.Post("/session/login", s.handleLogin)
		r.Post("/session/logout", s.handleLogout)
		r.Put("/session/profile", s.handleProfile)
		r.Post("/session/welcome/dismiss", s.handleDismissWelcome)

		r.Get("/portfolio", s.handlePortfolio)
		r.Post("/wallets", s.handleAddWallet)
		r.Get("/prices", s.handlePrices)
		r.Get("/prices/available", s.handleAvailablePrices)
	})

	s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	s.router.With(guard.Middleware(s.deps.Routes, s.deps.Session.State)).Get("/*", s.handleView)
}

// Start serves on port until ctx is cancelled.
func (s *Shell) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("shell listening", slog.String("url", fmt.Sprintf("http://127.0.0.1:%d", port)))
	return server.Serve(ctx, srv, s.logger)
}

// =========================================================================
// SESSION
// =========================================================================

type sessionResponse struct {
	session.State
	WelcomeVisible bool `json:"welcomeVisible"`
}

func (s *Shell) snapshot() sessionResponse {
	return s.describe(s.deps.Session.State())
}

func (s *Shell) describe(st session.State) sessionResponse {
	resp := sessionResponse{State: st}
	if s.deps.Welcome != nil {
		resp.WelcomeVisible = s.deps.Welcome.Visible()
	}
	return resp
}

func (s *Shell) handleSession(w http.ResponseWriter, r *http.Request) {
	handler.WriteJSON(w, http.StatusOK, s.snapshot())
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

func (s *Shell) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.WriteError(w, err)
		return
	}
	if _, err := s.deps.Session.Signup(r.Context(), req.Email, req.Password, req.FullName); err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, s.snapshot())
}

func (s *Shell) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.WriteError(w, err)
		return
	}
	if _, err := s.deps.Session.Login(r.Context(), req.Email, req.Password); err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, s.snapshot())
}

// handleLogout always answers with the signed-out state. A storage failure
// is logged; the in-memory session is already gone.
func (s *Shell) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Logout(r.Context()); err != nil {
		s.logger.Error("clearing stored credential failed", slog.String("error", err.Error()))
	}
	handler.WriteJSON(w, http.StatusOK, s.snapshot())
}

func (s *Shell) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"fullName"`
	}
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.WriteError(w, err)
		return
	}
	if _, err := s.deps.Session.UpdateProfile(r.Context(), req.FullName); err != nil {
		s.checkCredential(r.Context(), err)
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, s.snapshot())
}

func (s *Shell) handleDismissWelcome(w http.ResponseWriter, r *http.Request) {
	s.deps.Session.DismissWelcome()
	handler.WriteJSON(w, http.StatusOK, s.snapshot())
}

// checkCredential re-validates the session when the backend rejected our
// token mid-session, so the next navigation sees the signed-out state.
func (s *Shell) checkCredential(ctx context.Context, err error) {
	if !apperror.IsUnauthorizedStatus(err) {
		return
	}
	if _, rerr := s.deps.Session.Refresh(ctx); rerr != nil {
		s.logger.Info("session no longer valid", slog.String("reason", apperror.Message(rerr)))
	}
}

// =========================================================================
// PORTFOLIO / PRICES
// =========================================================================

func (s *Shell) requireSignedIn(w http.ResponseWriter) bool {
	st := s.deps.Session.State()
	switch {
	case st.Resolving():
		handler.WriteError(w, apperror.Resolving())
		return false
	case !st.Authenticated():
		handler.WriteError(w, apperror.Unauthenticated())
		return false
	}
	return true
}

func (s *Shell) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !s.requireSignedIn(w) {
		return
	}
	p, err := s.deps.Portfolio.Summary(r.Context())
	if err != nil {
		s.checkCredential(r.Context(), err)
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, p)
}

func (s *Shell) handleAddWallet(w http.ResponseWriter, r *http.Request) {
	if !s.requireSignedIn(w) {
		return
	}
	var req model.CreateWalletRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.WriteError(w, err)
		return
	}
	wallet, err := s.deps.Portfolio.AddWallet(r.Context(), req.Currency, req.Address)
	if err != nil {
		s.checkCredential(r.Context(), err)
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, wallet)
}

// handlePrices is public: the market table is shown on every screen.
func (s *Shell) handlePrices(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.deps.Prices.Markets(r.Context(), splitIDs(r.URL.Query().Get("ids")))
	if err != nil {
		s.logger.Warn("price feed unavailable", slog.String("error", err.Error()))
		handler.WriteJSON(w, http.StatusBadGateway, handler.ErrorResponse{Error: prices.FetchFailedMessage, Code: "upstream_error"})
		return
	}
	handler.WriteJSON(w, http.StatusOK, quotes)
}

// handleAvailablePrices backs the "add a coin" picker: the catalogue, narrowed
// by q and without the coins listed in exclude.
func (s *Shell) handleAvailablePrices(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Prices.Available(r.Context())
	if err != nil {
		s.logger.Warn("coin catalogue unavailable", slog.String("error", err.Error()))
		handler.WriteJSON(w, http.StatusBadGateway, handler.ErrorResponse{Error: prices.CatalogFailedMessage, Code: "upstream_error"})
		return
	}
	q := r.URL.Query()
	handler.WriteJSON(w, http.StatusOK, prices.Search(list, q.Get("q"), splitIDs(q.Get("exclude"))))
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// =========================================================================
// NAVIGATION
// =========================================================================

type viewResponse struct {
	guard.Decision
	Session sessionResponse `json:"session"`
}

// handleView draws whatever guard.Middleware allowed through. Redirects
// never reach here. The session reported is the one the decision was made
// from, so the two always agree.
func (s *Shell) handleView(w http.ResponseWriter, r *http.Request) {
	d, ok := guard.DecisionFromContext(r.Context())
	st, stOK := guard.StateFromContext(r.Context())
	if !ok || !stOK {
		handler.WriteError(w, fmt.Errorf("shell: no navigation decision for %s", r.URL.Path))
		return
	}

	status := http.StatusOK
	switch {
	case d.Outcome == guard.RenderLoading:
		status = http.StatusAccepted
	case d.View.Name == s.deps.Routes.NotFound.Name:
		status = http.StatusNotFound
	}

	handler.WriteJSON(w, status, viewResponse{Decision: d, Session: s.describe(st)})
}
