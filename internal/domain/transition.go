/**
 * @description
 * This file defines the transaction status state machine as an explicit
 * transition table. The table maps each modeled (from, to) status pair to its
 * balance effect; every pair not present in the table is a no-op by
 * construction rather than by switch fallthrough.
 */

package domain

// BalanceEffect describes how a status transition acts on the owning
// account's balance.
type BalanceEffect int

const (
	// EffectNone leaves the balance untouched.
	EffectNone BalanceEffect = iota
	// EffectApply applies the transaction's signed amount.
	EffectApply
	// EffectReverse applies the negation of the transaction's signed amount.
	EffectReverse
)

type statusTransition struct {
	From TransactionStatus
	To   TransactionStatus
}

var transitionEffects = map[statusTransition]BalanceEffect{
	{StatusPending, StatusCompleted}:  EffectApply,
	{StatusDeclined, StatusCompleted}: EffectApply,
	{StatusCompleted, StatusPending}:  EffectReverse,
	{StatusCompleted, StatusDeclined}: EffectReverse,
	{StatusPending, StatusDeclined}:   EffectNone,
	{StatusDeclined, StatusPending}:   EffectNone,
}

// TransitionEffect returns the balance effect of moving a transaction from
// one status to another. Unmodeled pairs, including same-status pairs, map to
// EffectNone.
func TransitionEffect(from, to TransactionStatus) BalanceEffect {
	return transitionEffects[statusTransition{From: from, To: to}]
}
