/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, timeouts and idempotency.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LedgerRoutes creates and returns a new router for the ledger service.
// idempotency may be nil; the mutating endpoints then run without replay
// protection.
func LedgerRoutes(h *LedgerHandlers, idempotency *IdempotencyStore) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Get("/accounts/{accountID}", h.GetAccountHandler)
	r.Get("/transactions/{transactionID}", h.GetTransactionHandler)

	// Mutating endpoints honor Idempotency-Key headers.
	r.Group(func(r chi.Router) {
		r.Use(Idempotency(idempotency))

		r.Post("/accounts", h.CreateAccountHandler)
		r.Post("/accounts/{accountID}/transactions/incoming", h.CreateIncomingTransactionHandler)
		r.Post("/accounts/{accountID}/transactions/outgoing", h.CreateOutcomingTransactionHandler)
		r.Post("/transfers", h.CreateTransferHandler)
		r.Put("/transactions/{transactionID}/status", h.UpdateTransactionStatusHandler)
	})

	return r
}
