package persistence

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/cardroom/models"
)

func newRoom(code string) *models.Room {
	return &models.Room{
		Code:         code,
		Status:       models.StatusWaitingForPlayers,
		HostPlayerID: "p1",
		MaxPlayers:   6,
		Members: []models.RoomMember{
			{PlayerID: "p1", Name: "P1", IsHost: true},
		},
	}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	room := newRoom("ROOM01")
	require.NoError(t, store.Save(ctx, room))
	assert.EqualValues(t, 1, room.Version)

	got, err := store.GetRoomByCode(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Equal(t, "ROOM01", got.Code)
	assert.Len(t, got.Members, 1)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetRoomByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMemoryStore_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	room := newRoom("ROOM01")
	require.NoError(t, store.Save(ctx, room))

	// 两个调用方各自读取同一版本
	a, err := store.GetRoomByCode(ctx, "ROOM01")
	require.NoError(t, err)
	b, err := store.GetRoomByCode(ctx, "ROOM01")
	require.NoError(t, err)

	a.AddMember(models.RoomMember{PlayerID: "p2", Name: "P2"})
	require.NoError(t, store.Save(ctx, a))

	b.AddMember(models.RoomMember{PlayerID: "p3", Name: "P3"})
	assert.ErrorIs(t, store.Save(ctx, b), ErrVersionConflict)

	// the losing write must not be visible
	got, err := store.GetRoomByCode(ctx, "ROOM01")
	require.NoError(t, err)
	assert.False(t, got.IsMember("p3"))
	assert.True(t, got.IsMember("p2"))
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	room := newRoom("ROOM01")
	require.NoError(t, store.Save(ctx, room))
	require.NoError(t, store.Delete(ctx, room))

	_, err := store.GetRoomByCode(ctx, "ROOM01")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMemoryStore_ListActive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	waiting := newRoom("WAIT01")
	require.NoError(t, store.Save(ctx, waiting))

	done := newRoom("DONE01")
	done.Status = models.StatusCompleted
	require.NoError(t, store.Save(ctx, done))

	rooms, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "WAIT01", rooms[0].Code)

	all, err := store.ListActive(ctx, models.StatusCompleted)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "DONE01", all[0].Code)
}

func TestMemoryStore_Balances(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetPlayerBalance(ctx, "p1")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	require.NoError(t, store.SetPlayerBalance(ctx, "p1", decimal.NewFromInt(100)))
	balance, err := store.GetPlayerBalance(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)))
}
