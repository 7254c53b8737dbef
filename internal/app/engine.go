/**
 * @description
 * This file contains the balance engine, the core business logic of the
 * ledger-service. The Engine validates inputs, computes new balances from
 * transaction direction and amount, enforces the non-negativity invariant,
 * drives the transaction status state machine, and commits all changes
 * through the concurrency resolver.
 *
 * Key behaviors:
 * - A completed transaction that would drive the balance negative is recorded
 *   with status declined and the balance is left unchanged. This is a valid
 *   business outcome returned successfully to the caller, not an error.
 * - Every operation works on private copies read from the store and commits
 *   them as one atomic unit of work; no partial state is ever persisted.
 *
 * @dependencies
 * - context, fmt, log, strings, time: Standard Go libraries.
 * - github.com/google/uuid, github.com/shopspring/decimal: Identifiers and amounts.
 * - internal/domain, internal/store: Domain models and store contract.
 * - pkg/rabbitmq: Event publishing.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/store"
	"github.com/transfa/ledger-service/pkg/rabbitmq"
)

// Engine provides the balance-mutation operations of the ledger.
type Engine struct {
	store    store.Store
	resolver *Resolver
	events   rabbitmq.Publisher
}

// NewEngine creates a new balance engine. The events publisher may be nil;
// event publishing then degrades to a no-op.
func NewEngine(st store.Store, resolver *Resolver, events rabbitmq.Publisher) *Engine {
	return &Engine{store: st, resolver: resolver, events: events}
}

// TransactionOptions carries the optional parameters of transaction creation.
type TransactionOptions struct {
	// Currency of the transaction; resolved against the account's currency
	// when empty, rejected with ErrCurrencyMismatch when different.
	Currency string
	// Status the transaction is created with; defaults to completed.
	Status domain.TransactionStatus
	// Type is a free-form classification; defaults to "transfer".
	Type string
}

// GetAccount returns the account with the given id.
func (e *Engine) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return e.store.GetAccount(ctx, accountID)
}

// GetTransaction returns the transaction with the given id.
func (e *Engine) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return e.store.GetTransaction(ctx, transactionID)
}

// CreateAccount creates an account with balance 0 and immediately credits it
// with an initial income transaction, as one logical operation.
func (e *Engine) CreateAccount(ctx context.Context, name, currency string, initialBalance decimal.Decimal) (*domain.Account, *domain.Transaction, error) {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return nil, nil, fmt.Errorf("%w: cannot create account without specifying currency", ErrInvalidInput)
	}
	if initialBalance.IsNegative() {
		return nil, nil, fmt.Errorf("%w: initial balance cannot be less than 0", ErrInvalidInput)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        uuid.New(),
		Name:      name,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	uow := e.store.Begin()
	uow.StageAccount(account)
	if err := uow.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("create account: %w", err)
	}
	log.Printf("level=info component=engine op=create_account account_id=%s currency=%s", account.ID, account.Currency)

	tx, err := e.CreateIncomingTransaction(ctx, account.ID, initialBalance, TransactionOptions{})
	if err != nil {
		return nil, nil, err
	}

	account, err = e.store.GetAccount(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}
	return account, tx, nil
}

// CreateIncomingTransaction records a transaction that increases the
// account's balance when completed.
func (e *Engine) CreateIncomingTransaction(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, opts TransactionOptions) (*domain.Transaction, error) {
	return e.createTransaction(ctx, accountID, amount, domain.DirectionIncome, opts)
}

// CreateOutcomingTransaction records a transaction that decreases the
// account's balance when completed.
func (e *Engine) CreateOutcomingTransaction(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, opts TransactionOptions) (*domain.Transaction, error) {
	return e.createTransaction(ctx, accountID, amount, domain.DirectionOutcome, opts)
}

func (e *Engine) createTransaction(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, direction domain.TransactionDirection, opts TransactionOptions) (*domain.Transaction, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("%w: transaction must be given an account id", ErrInvalidInput)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: transaction amount cannot be less than 0", ErrInvalidInput)
	}

	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	tx, err := e.buildTransaction(account, amount, direction, opts)
	if err != nil {
		return nil, err
	}

	staged := newAccountStages()
	e.applyCompleted(staged, account, tx)

	if err := e.resolver.CommitWithRetry(ctx, e.store, staged.list, []*domain.Transaction{tx}); err != nil {
		return nil, err
	}

	e.publish(ctx, rabbitmq.RoutingKeyTransactionCreated, tx)
	return tx, nil
}

// CreateTransferTransactions moves an amount between two accounts of the
// same currency as an outcome leg on the sender and an income leg on the
// receiver, committed as a single atomic unit of work.
func (e *Engine) CreateTransferTransactions(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, *domain.Transaction, error) {
	if senderID == uuid.Nil || receiverID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: transfer must be given sender and receiver account ids", ErrInvalidInput)
	}
	if amount.IsNegative() {
		return nil, nil, fmt.Errorf("%w: transfer amount cannot be less than 0", ErrInvalidInput)
	}

	sender, err := e.store.GetAccount(ctx, senderID)
	if err != nil {
		return nil, nil, err
	}
	receiver := sender
	if receiverID != senderID {
		receiver, err = e.store.GetAccount(ctx, receiverID)
		if err != nil {
			return nil, nil, err
		}
	}
	if sender.Currency != receiver.Currency {
		return nil, nil, fmt.Errorf("%w: accounts id=%s(%s) id=%s(%s) are using different currencies",
			ErrCurrencyMismatch, senderID, sender.Currency, receiverID, receiver.Currency)
	}

	outcome, err := e.buildTransaction(sender, amount, domain.DirectionOutcome, TransactionOptions{})
	if err != nil {
		return nil, nil, err
	}

	staged := newAccountStages()
	e.applyCompleted(staged, sender, outcome)

	// The income leg inherits the outcome leg's status: a declined debit
	// declines the whole transfer and no balance moves.
	income, err := e.buildTransaction(receiver, amount, domain.DirectionIncome, TransactionOptions{Status: outcome.Status})
	if err != nil {
		return nil, nil, err
	}
	e.applyCompleted(staged, receiver, income)

	if err := e.resolver.CommitWithRetry(ctx, e.store, staged.list, []*domain.Transaction{outcome, income}); err != nil {
		return nil, nil, err
	}

	e.publish(ctx, rabbitmq.RoutingKeyTransactionCreated, outcome)
	e.publish(ctx, rabbitmq.RoutingKeyTransactionCreated, income)
	return outcome, income, nil
}

// UpdateTransactionStatus transitions a transaction through the status state
// machine, applying or reversing its signed amount on the account balance
// where the transition table says so. A transition whose delta would drive
// the balance negative does not occur; the unmodified transaction is
// returned without error.
func (e *Engine) UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, newStatus domain.TransactionStatus) (*domain.Transaction, error) {
	if transactionID == uuid.Nil {
		return nil, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	if _, err := domain.ParseStatus(string(newStatus)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	tx, err := e.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status == newStatus {
		return tx, nil
	}

	var staged []*stagedAccount
	if effect := domain.TransitionEffect(tx.Status, newStatus); effect != domain.EffectNone {
		account, err := e.store.GetAccount(ctx, tx.AccountID)
		if err != nil {
			return nil, err
		}
		delta := tx.SignedAmount()
		if effect == domain.EffectReverse {
			delta = delta.Neg()
		}
		candidate := account.Balance.Add(delta)
		if candidate.IsNegative() {
			log.Printf("level=info component=engine op=update_status decision=rejected transaction_id=%s from=%s to=%s reason=insufficient_funds", tx.ID, tx.Status, newStatus)
			return tx, nil
		}
		if !candidate.Equal(account.Balance) {
			staged = append(staged, &stagedAccount{account: account, original: account.Balance})
			account.Balance = candidate
		}
	}

	oldStatus := tx.Status
	tx.Status = newStatus
	tx.UpdatedAt = time.Now().UTC()

	if err := e.resolver.CommitWithRetry(ctx, e.store, staged, []*domain.Transaction{tx}); err != nil {
		return nil, err
	}

	log.Printf("level=info component=engine op=update_status transaction_id=%s from=%s to=%s", tx.ID, oldStatus, newStatus)
	e.publish(ctx, rabbitmq.RoutingKeyTransactionStatusChanged, tx)
	return tx, nil
}

// buildTransaction resolves the optional currency, status and type against
// the owning account and constructs the transaction record.
func (e *Engine) buildTransaction(account *domain.Account, amount decimal.Decimal, direction domain.TransactionDirection, opts TransactionOptions) (*domain.Transaction, error) {
	currency := strings.TrimSpace(opts.Currency)
	if currency == "" {
		currency = account.Currency
	}
	if currency != account.Currency {
		return nil, fmt.Errorf("%w: transactions for account id=%s should be conducted in %s", ErrCurrencyMismatch, account.ID, account.Currency)
	}

	status := opts.Status
	if status == "" {
		status = domain.StatusCompleted
	}
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	txType := strings.TrimSpace(opts.Type)
	if txType == "" {
		txType = domain.TypeTransfer
	}

	now := time.Now().UTC()
	return &domain.Transaction{
		ID:        uuid.New(),
		AccountID: account.ID,
		Currency:  currency,
		Amount:    amount,
		Direction: direction,
		Status:    status,
		Type:      txType,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// accountStages collects at most one stagedAccount per account so an
// operation touching the same account twice (a self-transfer) composes its
// deltas against a single original balance.
type accountStages struct {
	byID map[uuid.UUID]*stagedAccount
	list []*stagedAccount
}

func newAccountStages() *accountStages {
	return &accountStages{byID: make(map[uuid.UUID]*stagedAccount)}
}

func (s *accountStages) stage(account *domain.Account) {
	if _, ok := s.byID[account.ID]; ok {
		return
	}
	sa := &stagedAccount{account: account, original: account.Balance}
	s.byID[account.ID] = sa
	s.list = append(s.list, sa)
}

// applyCompleted applies a completed transaction's signed amount to the
// account copy, downgrading the transaction to declined when the candidate
// balance would be negative. Pending and declined transactions leave the
// balance untouched.
func (e *Engine) applyCompleted(stages *accountStages, account *domain.Account, tx *domain.Transaction) {
	if tx.Status != domain.StatusCompleted {
		return
	}
	candidate := account.Balance.Add(tx.SignedAmount())
	if candidate.IsNegative() {
		tx.Status = domain.StatusDeclined
		log.Printf("level=info component=engine op=create_transaction decision=declined transaction_id=%s account_id=%s amount=%s reason=insufficient_funds", tx.ID, account.ID, tx.Amount)
		return
	}
	if candidate.Equal(account.Balance) {
		return
	}
	stages.stage(account)
	account.Balance = candidate
	account.UpdatedAt = tx.UpdatedAt
}

// publish emits a transaction lifecycle event; failures are logged, never
// surfaced, and a nil publisher is a no-op.
func (e *Engine) publish(ctx context.Context, routingKey string, tx *domain.Transaction) {
	if e.events == nil {
		return
	}
	event := rabbitmq.TransactionEvent{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Currency:      tx.Currency,
		Amount:        tx.Amount,
		Direction:     string(tx.Direction),
		Status:        string(tx.Status),
		Timestamp:     time.Now().UTC(),
	}
	if err := e.events.Publish(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=engine msg=\"event publish failed\" routing_key=%s transaction_id=%s err=%v", routingKey, tx.ID, err)
	}
}
