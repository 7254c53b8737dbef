package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/store"
)

func seedStoreAccount(t *testing.T, st *store.MemoryStore, balance string) *domain.Account {
	t.Helper()
	account := &domain.Account{
		ID:       uuid.New(),
		Name:     "seed",
		Currency: "USD",
		Balance:  decimal.RequireFromString(balance),
	}
	uow := st.Begin()
	uow.StageAccount(account)
	require.NoError(t, uow.Commit(context.Background()))
	return account
}

func readBack(t *testing.T, st *store.MemoryStore, id uuid.UUID) *domain.Account {
	t.Helper()
	account, err := st.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return account
}

func TestCommitWithRetry_RebasesDeltaOnConflict(t *testing.T) {
	st := store.NewMemoryStore()
	seeded := seedStoreAccount(t, st, "100")

	// This operation read 100 and intends a +5 delta.
	mine := readBack(t, st, seeded.ID)
	staged := &stagedAccount{account: mine, original: mine.Balance}
	mine.Balance = decimal.RequireFromString("105")

	// An outside writer lands +3 before our first commit attempt.
	landed := false
	st.BeforeCommit = func() {
		if !landed {
			landed = true
			st.TouchAccount(seeded.ID, decimal.RequireFromString("3"))
		}
	}

	resolver := NewResolver(0)
	err := resolver.CommitWithRetry(context.Background(), st, []*stagedAccount{staged}, nil)
	require.NoError(t, err)

	// +5 and +3 must converge to +8 regardless of interleaving.
	assert.True(t, readBack(t, st, seeded.ID).Balance.Equal(decimal.RequireFromString("108")))
}

func TestCommitWithRetry_ExhaustionIsSurfaced(t *testing.T) {
	st := store.NewMemoryStore()
	seeded := seedStoreAccount(t, st, "100")

	mine := readBack(t, st, seeded.ID)
	staged := &stagedAccount{account: mine, original: mine.Balance}
	mine.Balance = decimal.RequireFromString("101")

	// A conflicting writer beats every single attempt.
	attempts := 0
	st.BeforeCommit = func() {
		attempts++
		st.TouchAccount(seeded.ID, decimal.RequireFromString("1"))
	}

	resolver := NewResolver(0)
	err := resolver.CommitWithRetry(context.Background(), st, []*stagedAccount{staged}, nil)

	assert.ErrorIs(t, err, ErrCommitRetriesExhausted, "giving up must be distinguishable from committing")
	assert.Equal(t, DefaultMaxCommitAttempts, attempts)
}

func TestCommitWithRetry_SucceedsWithinAttemptBudget(t *testing.T) {
	st := store.NewMemoryStore()
	seeded := seedStoreAccount(t, st, "0")

	mine := readBack(t, st, seeded.ID)
	staged := &stagedAccount{account: mine, original: mine.Balance}
	mine.Balance = decimal.RequireFromString("10")

	// Nine conflicting writers, then a clear run: the tenth attempt commits.
	attempts := 0
	st.BeforeCommit = func() {
		attempts++
		if attempts < DefaultMaxCommitAttempts {
			st.TouchAccount(seeded.ID, decimal.RequireFromString("2"))
		}
	}

	resolver := NewResolver(0)
	require.NoError(t, resolver.CommitWithRetry(context.Background(), st, []*stagedAccount{staged}, nil))
	assert.Equal(t, DefaultMaxCommitAttempts, attempts)

	// 10 from this operation plus 9 x 2 from the outside writers.
	assert.True(t, readBack(t, st, seeded.ID).Balance.Equal(decimal.RequireFromString("28")))
}

func TestCommitWithRetry_NonConflictErrorReturnsImmediately(t *testing.T) {
	st := store.NewMemoryStore()
	seeded := seedStoreAccount(t, st, "5")

	mine := readBack(t, st, seeded.ID)
	staged := &stagedAccount{account: mine, original: mine.Balance}
	mine.Balance = decimal.RequireFromString("-1")

	attempts := 0
	st.BeforeCommit = func() { attempts++ }

	resolver := NewResolver(0)
	err := resolver.CommitWithRetry(context.Background(), st, []*stagedAccount{staged}, nil)

	assert.ErrorIs(t, err, store.ErrNegativeBalance)
	assert.Equal(t, 1, attempts, "non-conflict errors must not be retried")
}
