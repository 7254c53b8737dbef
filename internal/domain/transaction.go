/**
 * @description
 * This file defines the Transaction domain model and its Direction and Status
 * enumerations. A transaction records a single signed balance mutation against
 * one account; its amount is immutable after creation and only the status may
 * change afterwards.
 *
 * @dependencies
 * - github.com/google/uuid: Transaction and account identifiers.
 * - github.com/shopspring/decimal: Monetary amounts.
 */

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionDirection indicates whether a transaction increases or decreases
// the owning account's balance.
type TransactionDirection string

const (
	DirectionIncome  TransactionDirection = "income"
	DirectionOutcome TransactionDirection = "outcome"
)

// TransactionStatus is the lifecycle state of a transaction. Only completed
// transactions affect the account balance.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusDeclined  TransactionStatus = "declined"
)

// TypeTransfer is the default free-form classification for transactions.
const TypeTransfer = "transfer"

// ParseStatus validates a caller-supplied status string.
func ParseStatus(s string) (TransactionStatus, error) {
	switch TransactionStatus(s) {
	case StatusPending, StatusCompleted, StatusDeclined:
		return TransactionStatus(s), nil
	}
	return "", fmt.Errorf("unknown transaction status %q", s)
}

// ParseDirection validates a caller-supplied direction string.
func ParseDirection(s string) (TransactionDirection, error) {
	switch TransactionDirection(s) {
	case DirectionIncome, DirectionOutcome:
		return TransactionDirection(s), nil
	}
	return "", fmt.Errorf("unknown transaction direction %q", s)
}

// Transaction represents a single ledger record for one account. This struct
// maps directly to the `transactions` table in the database.
type Transaction struct {
	ID        uuid.UUID            `json:"id"`
	AccountID uuid.UUID            `json:"account_id"`
	Currency  string               `json:"currency"`
	Amount    decimal.Decimal      `json:"amount"` // always >= 0, never signed
	Direction TransactionDirection `json:"direction"`
	Status    TransactionStatus    `json:"status"`
	Type      string               `json:"type"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// SignedAmount returns the balance delta this transaction applies when it is
// completed: +Amount for income, -Amount for outcome.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionOutcome {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Clone returns a private copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	c := *t
	return &c
}
