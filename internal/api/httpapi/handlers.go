// Package httpapi exposes the ledger over HTTP for admin tooling and the host
// server's integration layer. Handlers perform the domain validation the
// ledger itself does not: unknown currencies, non-positive amounts,
// payability, and the receiver's payments opt-out.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Sismei/CreamCurrency/internal/audit"
	"github.com/Sismei/CreamCurrency/internal/currency"
	"github.com/Sismei/CreamCurrency/internal/domain"
	"github.com/Sismei/CreamCurrency/internal/economy"
	"github.com/Sismei/CreamCurrency/internal/ledger"
	"github.com/Sismei/CreamCurrency/internal/logger"
	"github.com/Sismei/CreamCurrency/internal/placeholder"
)

// Handler serves the balance API
type Handler struct {
	ledger      *ledger.Ledger
	currencies  *currency.Manager
	economy     *economy.Service
	placeholder *placeholder.Resolver
	sink        audit.Sink
}

// NewHandler creates the API handler
func NewHandler(l *ledger.Ledger, currencies *currency.Manager, eco *economy.Service, resolver *placeholder.Resolver, sink audit.Sink) *Handler {
	return &Handler{
		ledger:      l,
		currencies:  currencies,
		economy:     eco,
		placeholder: resolver,
		sink:        sink,
	}
}

// RegisterRoutes attaches all API routes to the router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/players/{player}/balances/{currency}", h.getBalance).Methods(http.MethodGet)
	v1.HandleFunc("/players/{player}/balances/{currency}", h.setBalance).Methods(http.MethodPut)
	v1.HandleFunc("/players/{player}/balances/{currency}/deposit", h.deposit).Methods(http.MethodPost)
	v1.HandleFunc("/players/{player}/balances/{currency}/withdraw", h.withdraw).Methods(http.MethodPost)
	v1.HandleFunc("/players/{player}/payments", h.getPayments).Methods(http.MethodGet)
	v1.HandleFunc("/players/{player}/payments/toggle", h.togglePayments).Methods(http.MethodPost)
	v1.HandleFunc("/players/{player}/placeholders/{token}", h.resolvePlaceholder).Methods(http.MethodGet)
	v1.HandleFunc("/players/{player}/cache", h.invalidatePlayer).Methods(http.MethodDelete)

	v1.HandleFunc("/pay", h.pay).Methods(http.MethodPost)

	v1.HandleFunc("/currencies", h.listCurrencies).Methods(http.MethodGet)
	v1.HandleFunc("/currencies/reload", h.reloadCurrencies).Methods(http.MethodPost)
	v1.HandleFunc("/currencies/{currency}/top", h.topBalances).Methods(http.MethodGet)
	v1.HandleFunc("/currencies/{currency}/total", h.totalBalance).Methods(http.MethodGet)
}

type amountRequest struct {
	Amount     float64 `json:"amount"`
	PlayerName string  `json:"player_name"`
	Admin      string  `json:"admin"`
}

type balanceResponse struct {
	PlayerID   string  `json:"player_id"`
	CurrencyID string  `json:"currency_id"`
	Balance    float64 `json:"balance"`
	Formatted  string  `json:"formatted,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// parseTarget extracts the player id and currency from the route, rejecting
// unknown currencies. The resolved currency is returned so handlers keep a
// consistent view across a concurrent reload.
func (h *Handler) parseTarget(w http.ResponseWriter, r *http.Request) (uuid.UUID, *domain.Currency, bool) {
	vars := mux.Vars(r)
	playerID, err := uuid.Parse(vars["player"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return uuid.Nil, nil, false
	}
	cur := h.currencies.Resolve(vars["currency"])
	if cur == nil {
		writeError(w, http.StatusNotFound, "unknown currency")
		return uuid.Nil, nil, false
	}
	return playerID, cur, true
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	playerID, cur, ok := h.parseTarget(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), playerID, cur.ID).Wait(r.Context())
	if err != nil {
		// Reads degrade rather than hard-fail; render the starting balance.
		logger.Warn("Balance read degraded", "player", playerID, "currency", cur.ID, "error", err)
		balance = cur.StartBalance
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		PlayerID:   playerID.String(),
		CurrencyID: cur.ID,
		Balance:    balance,
		Formatted:  cur.Format(balance),
	})
}

func (h *Handler) setBalance(w http.ResponseWriter, r *http.Request) {
	playerID, cur, ok := h.parseTarget(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount < 0 {
		writeError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}

	oldBalance, _ := h.ledger.GetBalance(r.Context(), playerID, cur.ID).Wait(r.Context())

	balance, err := h.ledger.SetBalance(r.Context(), playerID, req.PlayerName, cur.ID, req.Amount).Wait(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store write failed")
		return
	}
	if req.Admin != "" {
		h.sink.AdminSet(req.Admin, playerID, req.PlayerName, cur.ID, oldBalance, balance)
	}
	writeJSON(w, http.StatusOK, balanceResponse{PlayerID: playerID.String(), CurrencyID: cur.ID, Balance: balance})
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	playerID, cur, ok := h.parseTarget(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	balance, err := h.ledger.AddBalance(r.Context(), playerID, req.PlayerName, cur.ID, req.Amount).Wait(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store write failed")
		return
	}
	if req.Admin != "" {
		h.sink.AdminGive(req.Admin, playerID, req.PlayerName, cur.ID, req.Amount, balance)
	} else {
		h.sink.Transaction("DEPOSIT", playerID, req.PlayerName, req.Amount, balance)
	}
	writeJSON(w, http.StatusOK, balanceResponse{PlayerID: playerID.String(), CurrencyID: cur.ID, Balance: balance})
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	playerID, cur, ok := h.parseTarget(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	balance, err := h.ledger.Withdraw(r.Context(), playerID, req.PlayerName, cur.ID, req.Amount).Wait(r.Context())
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			writeError(w, http.StatusConflict, "insufficient funds")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "store write failed")
		return
	}
	if req.Admin != "" {
		h.sink.AdminRemove(req.Admin, playerID, req.PlayerName, cur.ID, req.Amount, balance)
	} else {
		h.sink.Transaction("WITHDRAW", playerID, req.PlayerName, req.Amount, balance)
	}
	writeJSON(w, http.StatusOK, balanceResponse{PlayerID: playerID.String(), CurrencyID: cur.ID, Balance: balance})
}

type payRequest struct {
	Sender       string  `json:"sender"`
	SenderName   string  `json:"sender_name"`
	Receiver     string  `json:"receiver"`
	ReceiverName string  `json:"receiver_name"`
	CurrencyID   string  `json:"currency_id"`
	Amount       float64 `json:"amount"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sender, err := uuid.Parse(req.Sender)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sender id")
		return
	}
	receiver, err := uuid.Parse(req.Receiver)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receiver id")
		return
	}

	err = h.economy.Pay(r.Context(), sender, req.SenderName, receiver, req.ReceiverName, req.CurrencyID, req.Amount)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, economy.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrNotPayable), errors.Is(err, economy.ErrPaymentsDisabled):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient funds")
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func (h *Handler) getPayments(w http.ResponseWriter, r *http.Request) {
	playerID, err := uuid.Parse(mux.Vars(r)["player"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	disabled, err := h.ledger.PaymentsDisabled(r.Context(), playerID).Wait(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"payments_disabled": disabled})
}

func (h *Handler) togglePayments(w http.ResponseWriter, r *http.Request) {
	playerID, err := uuid.Parse(mux.Vars(r)["player"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	disabled, err := h.ledger.TogglePayments(r.Context(), playerID).Wait(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"payments_disabled": disabled})
}

func (h *Handler) resolvePlaceholder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	playerID, err := uuid.Parse(vars["player"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": h.placeholder.Resolve(playerID, vars["token"])})
}

func (h *Handler) invalidatePlayer(w http.ResponseWriter, r *http.Request) {
	playerID, err := uuid.Parse(mux.Vars(r)["player"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	h.ledger.InvalidatePlayer(playerID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.currencies.All())
}

func (h *Handler) reloadCurrencies(w http.ResponseWriter, r *http.Request) {
	if err := h.currencies.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) topBalances(w http.ResponseWriter, r *http.Request) {
	cur := h.currencies.Resolve(mux.Vars(r)["currency"])
	if cur == nil {
		writeError(w, http.StatusNotFound, "unknown currency")
		return
	}

	limit := 10
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	query := h.ledger.TopBalances
	if r.URL.Query().Get("fresh") == "true" {
		query = h.ledger.TopBalancesFresh
	}
	entries, err := query(r.Context(), cur.ID, limit, offset).Wait(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store read failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) totalBalance(w http.ResponseWriter, r *http.Request) {
	cur := h.currencies.Resolve(mux.Vars(r)["currency"])
	if cur == nil {
		writeError(w, http.StatusNotFound, "unknown currency")
		return
	}
	total, err := h.ledger.TotalBalance(r.Context(), cur.ID).Wait(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"total": total})
}
