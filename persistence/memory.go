// persistence/memory.go
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wfunc/cardroom/models"
)

// MemoryStore 内存存储实现，用于本地开发与测试。
// 与PostgreSQL实现一样遵守乐观并发语义。
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]*models.Room
	balances map[string]decimal.Decimal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]*models.Room),
		balances: make(map[string]decimal.Decimal),
	}
}

func (m *MemoryStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (m *MemoryStore) Save(ctx context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.rooms[room.Code]
	if room.Version == 0 {
		if exists {
			return ErrVersionConflict
		}
		room.Version = 1
		room.CreatedAt = time.Now()
		room.UpdatedAt = room.CreatedAt
		m.rooms[room.Code] = cloneRoom(room)
		return nil
	}

	if !exists || stored.Version != room.Version {
		return ErrVersionConflict
	}
	room.Version++
	room.UpdatedAt = time.Now()
	m.rooms[room.Code] = cloneRoom(room)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, room.Code)
	return nil
}

func (m *MemoryStore) ListActive(ctx context.Context, statuses ...models.RoomStatus) ([]*models.Room, error) {
	if len(statuses) == 0 {
		statuses = []models.RoomStatus{
			models.StatusWaitingForPlayers,
			models.StatusInProgress,
			models.StatusPaused,
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var rooms []*models.Room
	for _, room := range m.rooms {
		for _, s := range statuses {
			if room.Status == s {
				rooms = append(rooms, cloneRoom(room))
				break
			}
		}
	}
	return rooms, nil
}

func (m *MemoryStore) GetPlayerBalance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	balance, ok := m.balances[playerID]
	if !ok {
		return decimal.Zero, ErrPlayerNotFound
	}
	return balance, nil
}

func (m *MemoryStore) SetPlayerBalance(ctx context.Context, playerID string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[playerID] = balance
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneRoom(room *models.Room) *models.Room {
	clone := *room
	clone.Members = append([]models.RoomMember(nil), room.Members...)
	clone.Spectators = append([]models.Spectator(nil), room.Spectators...)
	return &clone
}
