/**
 * @description
 * This file defines the abstract transactional store contract consumed by the
 * balance engine. The engine reads entities by id, stages changed entities in
 * a unit of work, and commits the whole unit atomically. A commit either
 * succeeds, fails with a version conflict carrying the authoritative account
 * values, or fails outright; staged changes are never partially visible.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/google/uuid: Entity identifiers.
 * - internal/domain: Account and Transaction models.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrNegativeBalance is the store-level backstop for the balance >= 0
	// invariant; the engine never stages a negative balance on its own.
	ErrNegativeBalance = errors.New("account balance cannot be negative")
)

// VersionConflictError reports that a staged account's version token was
// stale at commit time. Authoritative carries the store's current values so
// the caller can rebase its intended delta and retry.
type VersionConflictError struct {
	Authoritative *domain.Account
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on account %s (authoritative version %d)", e.Authoritative.ID, e.Authoritative.Version)
}

// UnitOfWork collects entity changes that must be committed together.
type UnitOfWork interface {
	// StageAccount marks an account for write. A zero version stages an
	// insert; any other version stages an optimistic update.
	StageAccount(account *domain.Account)
	// StageTransaction marks a transaction for write (insert or status update).
	StageTransaction(tx *domain.Transaction)
	// Commit atomically persists every staged entity. On success the staged
	// accounts' version tokens are rebound to their newly assigned values.
	// A stale account version fails the whole unit with *VersionConflictError.
	Commit(ctx context.Context) error
}

// Store is the abstract transactional store holding accounts and transactions.
// Reads are copy-on-read: returned entities are private to the caller.
type Store interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	Begin() UnitOfWork
}
