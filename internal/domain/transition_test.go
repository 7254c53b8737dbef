package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionEffect_CoversEveryStatusPair(t *testing.T) {
	statuses := []TransactionStatus{StatusPending, StatusCompleted, StatusDeclined}

	expected := map[[2]TransactionStatus]BalanceEffect{
		{StatusPending, StatusCompleted}:  EffectApply,
		{StatusDeclined, StatusCompleted}: EffectApply,
		{StatusCompleted, StatusPending}:  EffectReverse,
		{StatusCompleted, StatusDeclined}: EffectReverse,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want, modeled := expected[[2]TransactionStatus{from, to}]
			if !modeled {
				want = EffectNone
			}
			assert.Equal(t, want, TransitionEffect(from, to), "transition %s -> %s", from, to)
		}
	}
}

func TestTransitionEffect_UnknownStatusIsNoOp(t *testing.T) {
	assert.Equal(t, EffectNone, TransitionEffect("garbage", StatusCompleted))
	assert.Equal(t, EffectNone, TransitionEffect(StatusPending, "garbage"))
}

func TestSignedAmount(t *testing.T) {
	amount := decimal.RequireFromString("12.50")

	income := &Transaction{Amount: amount, Direction: DirectionIncome}
	outcome := &Transaction{Amount: amount, Direction: DirectionOutcome}

	assert.True(t, income.SignedAmount().Equal(amount))
	assert.True(t, outcome.SignedAmount().Equal(amount.Neg()))
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"pending", "completed", "declined"} {
		status, err := ParseStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, TransactionStatus(valid), status)
	}

	_, err := ParseStatus("cancelled")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	for _, valid := range []string{"income", "outcome"} {
		direction, err := ParseDirection(valid)
		require.NoError(t, err)
		assert.Equal(t, TransactionDirection(valid), direction)
	}

	_, err := ParseDirection("sideways")
	assert.Error(t, err)
}
