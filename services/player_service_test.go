package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/cardroom/persistence"
)

func TestPlayerService_Deduct(t *testing.T) {
	ctx := context.Background()
	svc := NewPlayerService(persistence.NewMemoryStore())

	require.NoError(t, svc.SetBalance(ctx, "p1", decimal.NewFromInt(100)))

	prev, curr, err := svc.Deduct(ctx, "p1", decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.True(t, prev.Equal(decimal.NewFromInt(100)))
	assert.True(t, curr.Equal(decimal.NewFromInt(60)))
}

func TestPlayerService_DeductNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	svc := NewPlayerService(persistence.NewMemoryStore())

	require.NoError(t, svc.SetBalance(ctx, "p1", decimal.NewFromInt(30)))

	prev, curr, err := svc.Deduct(ctx, "p1", decimal.NewFromInt(50))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, prev.Equal(decimal.NewFromInt(30)))
	assert.True(t, curr.Equal(decimal.NewFromInt(30)), "a rejected deduction mutates nothing")

	balance, err := svc.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(30)))
}

func TestPlayerService_DeductExactBalance(t *testing.T) {
	ctx := context.Background()
	svc := NewPlayerService(persistence.NewMemoryStore())

	require.NoError(t, svc.SetBalance(ctx, "p1", decimal.NewFromInt(50)))

	_, curr, err := svc.Deduct(ctx, "p1", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, curr.IsZero(), "deducting the full balance leaves exactly zero")
}

func TestPlayerService_DeductUnknownPlayer(t *testing.T) {
	svc := NewPlayerService(persistence.NewMemoryStore())

	_, _, err := svc.Deduct(context.Background(), "ghost", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, persistence.ErrPlayerNotFound)
}
