/**
 * @description
 * This file defines the error taxonomy of the balance engine. Handlers match
 * these with errors.Is and map them to HTTP status codes. Note that an
 * insufficient-funds outcome is deliberately absent: the engine reports it as
 * a successfully recorded declined transaction, not as an error.
 */

package app

import "errors"

var (
	// ErrInvalidInput covers missing account references, negative amounts and
	// missing currency on account creation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCurrencyMismatch is returned when a transaction or transfer currency
	// differs from the owning account's currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrCommitRetriesExhausted is returned when the concurrency resolver ran
	// out of commit attempts without a clean commit. Callers must be able to
	// distinguish this from a committed operation.
	ErrCommitRetriesExhausted = errors.New("commit retries exhausted")
)
