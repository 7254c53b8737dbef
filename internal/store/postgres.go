/**
 * @description
 * This file provides the PostgreSQL implementation of the Store contract.
 * Accounts carry a `version` column for optimistic concurrency: updates are
 * guarded by `WHERE id = $n AND version = $m`, and a zero-row update is
 * reported as a VersionConflictError carrying the authoritative row. The
 * database schema is in schema.sql; its CHECK constraint backstops the
 * non-negative balance invariant.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Monetary amounts (transported as text).
 * - internal/domain: Account and Transaction models.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
)

// PostgresStore is a concrete implementation of the Store interface for PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new instance of PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetAccount retrieves an account by id.
func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	var balance string
	query := `SELECT id, name, currency, balance::text, version, created_at, updated_at FROM accounts WHERE id = $1`
	err := s.db.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.Name,
		&account.Currency,
		&balance,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance for account %s: %w", id, err)
	}
	return &account, nil
}

// GetTransaction retrieves a transaction by id.
func (s *PostgresStore) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount, direction, status string
	query := `SELECT id, account_id, currency, amount::text, direction, status, type, created_at, updated_at FROM transactions WHERE id = $1`
	err := s.db.QueryRow(ctx, query, id).Scan(
		&tx.ID,
		&tx.AccountID,
		&tx.Currency,
		&amount,
		&direction,
		&status,
		&tx.Type,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount for transaction %s: %w", id, err)
	}
	tx.Direction = domain.TransactionDirection(direction)
	tx.Status = domain.TransactionStatus(status)
	return &tx, nil
}

// Begin starts a new unit of work against this store.
func (s *PostgresStore) Begin() UnitOfWork {
	return &pgUnitOfWork{store: s}
}

type pgUnitOfWork struct {
	store        *PostgresStore
	accounts     []*domain.Account
	transactions []*domain.Transaction
}

func (u *pgUnitOfWork) StageAccount(account *domain.Account) {
	u.accounts = append(u.accounts, account)
}

func (u *pgUnitOfWork) StageTransaction(tx *domain.Transaction) {
	u.transactions = append(u.transactions, tx)
}

const (
	insertAccountSQL = `
		INSERT INTO accounts (id, name, currency, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6)
		RETURNING version
	`
	updateAccountSQL = `
		UPDATE accounts
		SET balance = $3, updated_at = NOW(), version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version
	`
	upsertTransactionSQL = `
		INSERT INTO transactions (id, account_id, currency, amount, direction, status, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`
)

func (u *pgUnitOfWork) Commit(ctx context.Context) error {
	dbtx, err := u.store.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx)

	newVersions := make([]int64, len(u.accounts))
	for i, staged := range u.accounts {
		if staged.Version == 0 {
			err = dbtx.QueryRow(ctx, insertAccountSQL,
				staged.ID, staged.Name, staged.Currency, staged.Balance.String(), staged.CreatedAt, staged.UpdatedAt,
			).Scan(&newVersions[i])
			if err != nil {
				return translatePgError(err)
			}
			continue
		}
		err = dbtx.QueryRow(ctx, updateAccountSQL, staged.ID, staged.Version, staged.Balance.String()).Scan(&newVersions[i])
		if err == pgx.ErrNoRows {
			// Stale version. Abort the unit and hand back the authoritative row.
			_ = dbtx.Rollback(ctx)
			authoritative, readErr := u.store.GetAccount(ctx, staged.ID)
			if readErr != nil {
				return readErr
			}
			return &VersionConflictError{Authoritative: authoritative}
		}
		if err != nil {
			return translatePgError(err)
		}
	}

	for _, staged := range u.transactions {
		_, err = dbtx.Exec(ctx, upsertTransactionSQL,
			staged.ID, staged.AccountID, staged.Currency, staged.Amount.String(),
			string(staged.Direction), string(staged.Status), staged.Type,
			staged.CreatedAt, staged.UpdatedAt,
		)
		if err != nil {
			return translatePgError(err)
		}
	}

	if err = dbtx.Commit(ctx); err != nil {
		return translatePgError(err)
	}
	for i, staged := range u.accounts {
		staged.Version = newVersions[i]
	}
	return nil
}

// translatePgError maps the balance CHECK constraint violation to the
// store-level sentinel; everything else passes through unchanged.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return fmt.Errorf("%w: %s", ErrNegativeBalance, pgErr.ConstraintName)
	}
	return err
}
