/**
 * @description
 * This file implements the concurrency resolver: a bounded retry protocol
 * around store commits. Each engine operation tracks, per staged account, the
 * balance it originally read. On a version conflict the resolver recomputes
 * the in-memory balance as authoritative balance plus this operation's own
 * delta and rebinds the version token, so the next attempt's precondition
 * matches the store. Two writers applying +5 and +3 therefore converge to +8
 * regardless of interleaving, without a lock around the whole operation.
 *
 * @dependencies
 * - context, errors, log: Standard Go libraries.
 * - github.com/shopspring/decimal: Balance arithmetic.
 * - internal/domain, internal/store: Account model and store contract.
 */

package app

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/store"
)

// DefaultMaxCommitAttempts bounds the retry protocol when no explicit budget
// is configured.
const DefaultMaxCommitAttempts = 10

// stagedAccount pairs a mutated account copy with the balance value the
// operation originally read, so the intended delta can be recomputed against
// authoritative state on conflict.
type stagedAccount struct {
	account  *domain.Account
	original decimal.Decimal
}

// Resolver wraps commits in the bounded conflict-resolution retry protocol.
type Resolver struct {
	maxAttempts int
}

// NewResolver creates a resolver with the given attempt budget; non-positive
// budgets fall back to DefaultMaxCommitAttempts.
func NewResolver(maxAttempts int) *Resolver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCommitAttempts
	}
	return &Resolver{maxAttempts: maxAttempts}
}

// CommitWithRetry stages the given entities in a fresh unit of work and
// commits, retrying on account version conflicts up to the attempt budget.
// Exhausting the budget returns ErrCommitRetriesExhausted; any non-conflict
// commit error is returned as-is.
func (r *Resolver) CommitWithRetry(ctx context.Context, st store.Store, accounts []*stagedAccount, transactions []*domain.Transaction) error {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		uow := st.Begin()
		for _, sa := range accounts {
			uow.StageAccount(sa.account)
		}
		for _, tx := range transactions {
			uow.StageTransaction(tx)
		}

		err := uow.Commit(ctx)
		if err == nil {
			return nil
		}

		var conflict *store.VersionConflictError
		if !errors.As(err, &conflict) {
			return err
		}

		rebased := false
		for _, sa := range accounts {
			if sa.account.ID != conflict.Authoritative.ID {
				continue
			}
			delta := sa.account.Balance.Sub(sa.original)
			sa.account.Balance = conflict.Authoritative.Balance.Add(delta)
			sa.account.Version = conflict.Authoritative.Version
			sa.original = conflict.Authoritative.Balance
			rebased = true
		}
		if !rebased {
			// Conflict on an account this operation never staged; retrying
			// cannot help.
			return err
		}
		log.Printf("level=warn component=resolver msg=\"commit conflict; rebased delta\" account_id=%s attempt=%d", conflict.Authoritative.ID, attempt)
	}
	return ErrCommitRetriesExhausted
}
