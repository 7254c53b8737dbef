/**
 * @description
 * This file defines the Account domain model for the ledger-service. An account
 * owns a monetary balance that is only ever mutated through transactions, and a
 * version token used by the store for optimistic concurrency control.
 *
 * @notes
 * - Balances are decimal.Decimal values to avoid floating-point inaccuracies
 *   with financial data. A committed account balance is never negative.
 * - Version is opaque to the engine: it is assigned by the store, compared at
 *   commit time, and rebound by the concurrency resolver on conflict.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account represents a ledger account. This struct maps directly to the
// `accounts` table in the database.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Clone returns a private copy of the account. Stores hand out clones so that
// no two engine operations ever share a mutable account value.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}
