// Package server wires the development backend: database, services,
// handlers and routes.
//
// This is the composition root. Everything is created in New:
//
//	sqlite.DB → UserDB / WalletDB → AuthService / WalletService → handlers → chi routes
//
// Nothing below this package knows how its dependencies were built.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/clint-crypto/internal/auth"
	"github.com/sakif/clint-crypto/internal/handler"
	"github.com/sakif/clint-crypto/internal/middleware"
	sqliteRepo "github.com/sakif/clint-crypto/internal/repository/sqlite"
	"github.com/sakif/clint-crypto/internal/service"
)

// Config holds the dev backend's settings.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string

	// Passwords overrides the bcrypt cost (tests use bcrypt.MinCost). nil
	// means the production default.
	Passwords *auth.PasswordService
}

// Server owns the router and the database connection.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and builds the router.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.setupRoutes(tokens)

	return s, nil
}

// Handler exposes the router, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes registers every endpoint of the backend contract.
//
// ROUTES:
//
//	POST /auth/signup   public
//	POST /auth/login    public
//	GET  /users/me      bearer
//	PUT  /users/me      bearer
//	GET  /api/wallets   bearer
//	POST /api/wallets   bearer
//	GET  /healthz       public
//
// Middleware order: request ID, real IP, panic recovery, then request logging.
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	passwords := s.config.Passwords
	if passwords == nil {
		passwords = auth.NewPasswordService()
	}

	authService := service.NewAuthService(s.db.Users(), tokens, passwords, s.logger)
	walletService := service.NewWalletService(s.db.Wallets(), s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	walletHandler := handler.NewWalletHandler(walletService, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Post("/auth/signup", authHandler.HandleSignup)
	s.router.Post("/auth/login", authHandler.HandleLogin)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/users/me", authHandler.HandleMe)
		r.Put("/users/me", authHandler.HandleUpdateMe)

		r.Get("/api/wallets", walletHandler.HandleList)
		r.Post("/api/wallets", walletHandler.HandleCreate)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteJSON(w, http.StatusNotFound, handler.ErrorResponse{Error: "Not found", Code: "not_found"})
	})
}

// Start serves on the configured port until ctx is cancelled, then shuts
// down gracefully and closes the database.
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("dev backend starting",
		slog.Int("port", s.config.Port),
		slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		slog.String("database", s.config.DBPath),
	)
	return Serve(ctx, srv, s.logger)
}

// Serve runs srv until ctx is done or the listener fails.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Give in-flight requests up to ShutdownTimeout to finish
//
// Both the dev backend and the client shell use this.
func Serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	}
}

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 30 * time.Second
