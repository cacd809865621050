// services/player_service.go
package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/wfunc/cardroom/persistence"
)

// ErrInsufficientFunds is returned when a deduction would go negative.
var ErrInsufficientFunds = errors.New("insufficient funds")

// PlayerService 玩家余额操作。所有金额都是定点数，绝不使用浮点。
type PlayerService struct {
	store persistence.Store
}

func NewPlayerService(store persistence.Store) *PlayerService {
	return &PlayerService{store: store}
}

func (s *PlayerService) GetBalance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	return s.store.GetPlayerBalance(ctx, playerID)
}

func (s *PlayerService) SetBalance(ctx context.Context, playerID string, balance decimal.Decimal) error {
	return s.store.SetPlayerBalance(ctx, playerID, balance)
}

// Deduct subtracts amount from the player's balance. The balance never
// goes negative: a short balance fails with ErrInsufficientFunds and
// mutates nothing.
func (s *PlayerService) Deduct(ctx context.Context, playerID string, amount decimal.Decimal) (prev, curr decimal.Decimal, err error) {
	prev, err = s.store.GetPlayerBalance(ctx, playerID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if prev.LessThan(amount) {
		return prev, prev, ErrInsufficientFunds
	}

	curr = prev.Sub(amount)
	if err := s.store.SetPlayerBalance(ctx, playerID, curr); err != nil {
		return prev, prev, err
	}
	return prev, curr, nil
}
