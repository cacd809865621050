// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/models"
)

// Store 房间与玩家余额的持久化网关。
//
// Save is optimistic-concurrency aware: a write against a stale
// Room.Version fails with ErrVersionConflict and mutates nothing.
type Store interface {
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	Save(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, room *models.Room) error
	ListActive(ctx context.Context, statuses ...models.RoomStatus) ([]*models.Room, error)
	GetPlayerBalance(ctx context.Context, playerID string) (decimal.Decimal, error)
	SetPlayerBalance(ctx context.Context, playerID string, balance decimal.Decimal) error
	Close() error
}

// 错误定义
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrVersionConflict = errors.New("optimistic concurrency conflict")
)
