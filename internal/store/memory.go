/**
 * @description
 * This file provides an in-memory implementation of the Store contract. It is
 * used by the test suites, which need a store that genuinely detects version
 * conflicts under concurrent commits, and by broker-less development runs
 * when no DATABASE_URL is configured.
 *
 * @notes
 * - All reads return clones; callers never observe each other's mutations.
 * - Commit applies every staged entity under one mutex acquisition, so a unit
 *   of work is never partially visible.
 */

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
)

// MemoryStore is a mutex-guarded, version-checked implementation of Store.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]*domain.Account
	transactions map[uuid.UUID]*domain.Transaction

	// BeforeCommit, when set, runs at the start of every Commit before the
	// store lock is taken. Tests use it to interleave outside writers.
	BeforeCommit func()
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[uuid.UUID]*domain.Account),
		transactions: make(map[uuid.UUID]*domain.Transaction),
	}
}

// GetAccount returns a private copy of the account with the given id.
func (s *MemoryStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account.Clone(), nil
}

// GetTransaction returns a private copy of the transaction with the given id.
func (s *MemoryStore) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

// TouchAccount applies a balance delta directly, bumping the version token.
// It stands in for a writer outside this process sharing the same store.
func (s *MemoryStore) TouchAccount(id uuid.UUID, delta decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return
	}
	account.Balance = account.Balance.Add(delta)
	account.Version++
}

// Begin starts a new unit of work against this store.
func (s *MemoryStore) Begin() UnitOfWork {
	return &memoryUnitOfWork{store: s}
}

type memoryUnitOfWork struct {
	store        *MemoryStore
	accounts     []*domain.Account
	transactions []*domain.Transaction
}

func (u *memoryUnitOfWork) StageAccount(account *domain.Account) {
	u.accounts = append(u.accounts, account)
}

func (u *memoryUnitOfWork) StageTransaction(tx *domain.Transaction) {
	u.transactions = append(u.transactions, tx)
}

func (u *memoryUnitOfWork) Commit(ctx context.Context) error {
	if hook := u.store.BeforeCommit; hook != nil {
		hook()
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	// Validate every staged entity before touching the maps so a failed
	// commit leaves nothing behind.
	for _, staged := range u.accounts {
		existing, ok := u.store.accounts[staged.ID]
		if ok && existing.Version != staged.Version {
			return &VersionConflictError{Authoritative: existing.Clone()}
		}
		if !ok && staged.Version != 0 {
			return &VersionConflictError{Authoritative: &domain.Account{ID: staged.ID}}
		}
		if staged.Balance.IsNegative() {
			return fmt.Errorf("account %s: %w", staged.ID, ErrNegativeBalance)
		}
	}

	for _, staged := range u.accounts {
		applied := staged.Clone()
		applied.Version++
		u.store.accounts[applied.ID] = applied
		staged.Version = applied.Version
	}
	for _, staged := range u.transactions {
		u.store.transactions[staged.ID] = staged.Clone()
	}
	return nil
}
