/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the balance engine, and writing the HTTP response.
 * They act as the bridge between the web layer and the business logic layer.
 *
 * Note that a declined transaction is a successful outcome: the handler
 * returns 2xx with "status": "declined", never an error status.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For route parameters.
 * - internal/app, internal/domain, internal/store: For engine logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/app"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/store"
)

// LedgerHandlers holds the balance engine that handlers will use.
type LedgerHandlers struct {
	engine *app.Engine
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(engine *app.Engine) *LedgerHandlers {
	return &LedgerHandlers{engine: engine}
}

type createAccountRequest struct {
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type createAccountResponse struct {
	Account     *domain.Account     `json:"account"`
	Transaction *domain.Transaction `json:"transaction"`
}

type createTransactionRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
	Status   string          `json:"status,omitempty"`
	Type     string          `json:"type,omitempty"`
}

type createTransferRequest struct {
	SenderID   uuid.UUID       `json:"sender_id"`
	ReceiverID uuid.UUID       `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type createTransferResponse struct {
	Outcoming *domain.Transaction `json:"outcoming"`
	Incoming  *domain.Transaction `json:"incoming"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// CreateAccountHandler handles requests to create a new account with its
// initial credit.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, tx, err := h.engine.CreateAccount(r.Context(), req.Name, req.Currency, req.InitialBalance)
	if err != nil {
		h.writeEngineError(w, "create_account", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createAccountResponse{Account: account, Transaction: tx})
}

// GetAccountHandler returns a single account.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.parseUUIDParam(w, r, "accountID")
	if !ok {
		return
	}
	account, err := h.engine.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeEngineError(w, "get_account", err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// CreateIncomingTransactionHandler records an income transaction for an account.
func (h *LedgerHandlers) CreateIncomingTransactionHandler(w http.ResponseWriter, r *http.Request) {
	h.createTransaction(w, r, domain.DirectionIncome)
}

// CreateOutcomingTransactionHandler records an outcome transaction for an account.
func (h *LedgerHandlers) CreateOutcomingTransactionHandler(w http.ResponseWriter, r *http.Request) {
	h.createTransaction(w, r, domain.DirectionOutcome)
}

func (h *LedgerHandlers) createTransaction(w http.ResponseWriter, r *http.Request, direction domain.TransactionDirection) {
	accountID, ok := h.parseUUIDParam(w, r, "accountID")
	if !ok {
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	opts := app.TransactionOptions{Currency: req.Currency, Type: req.Type}
	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Status = status
	}

	var (
		tx  *domain.Transaction
		err error
	)
	if direction == domain.DirectionIncome {
		tx, err = h.engine.CreateIncomingTransaction(r.Context(), accountID, req.Amount, opts)
	} else {
		tx, err = h.engine.CreateOutcomingTransaction(r.Context(), accountID, req.Amount, opts)
	}
	if err != nil {
		h.writeEngineError(w, "create_transaction", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, tx)
}

// GetTransactionHandler returns a single transaction.
func (h *LedgerHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := h.parseUUIDParam(w, r, "transactionID")
	if !ok {
		return
	}
	tx, err := h.engine.GetTransaction(r.Context(), transactionID)
	if err != nil {
		h.writeEngineError(w, "get_transaction", err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// CreateTransferHandler moves an amount between two accounts as one atomic
// pair of transactions.
func (h *LedgerHandlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	outcome, income, err := h.engine.CreateTransferTransactions(r.Context(), req.SenderID, req.ReceiverID, req.Amount)
	if err != nil {
		h.writeEngineError(w, "create_transfer", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createTransferResponse{Outcoming: outcome, Incoming: income})
}

// UpdateTransactionStatusHandler transitions a transaction through the status
// state machine.
func (h *LedgerHandlers) UpdateTransactionStatusHandler(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := h.parseUUIDParam(w, r, "transactionID")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.engine.UpdateTransactionStatus(r.Context(), transactionID, status)
	if err != nil {
		h.writeEngineError(w, "update_transaction_status", err)
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

func (h *LedgerHandlers) parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// writeEngineError maps the engine's error taxonomy to HTTP status codes.
func (h *LedgerHandlers) writeEngineError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrAccountNotFound), errors.Is(err, store.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrCurrencyMismatch):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, app.ErrCommitRetriesExhausted):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"unexpected engine error\" err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
