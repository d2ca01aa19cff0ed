package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/clint-crypto/internal/auth"
	"github.com/sakif/clint-crypto/internal/model"
	"github.com/sakif/clint-crypto/internal/service"
)

// WalletHandler serves /api/wallets. Both routes sit behind RequireAuth and
// only ever touch the caller's own wallets.
type WalletHandler struct {
	wallets *service.WalletService
	logger  *slog.Logger
}

func NewWalletHandler(wallets *service.WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, logger: logger}
}

// HandleList returns the caller's wallets as a JSON array ([] when none).
//
// HTTP: GET /api/wallets
func (h *WalletHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	wallets, err := h.wallets.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list wallets", slog.String("error", err.Error()))
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, wallets)
}

// HandleCreate registers a wallet address.
//
// HTTP: POST /api/wallets
// Body: {"currency": "BTC", "address": "bc1q..."}
func (h *WalletHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CreateWalletRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	wallet, err := h.wallets.Create(r.Context(), userID, req.Currency, req.Address)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, wallet)
}

// requireUser reads the user ID RequireAuth put in the context. It should
// always be there on these routes; if it isn't, answer 401 rather than panic.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized", Code: "unauthorized"})
		return "", false
	}
	return userID, true
}
