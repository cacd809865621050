package seats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AssignAndOccupant(t *testing.T) {
	s := NewStore(6)
	s.InitRoom("ROOM01")

	require.NoError(t, s.Assign("ROOM01", "p2", 3))

	occupant, ok := s.Occupant("ROOM01", 3)
	require.True(t, ok)
	assert.Equal(t, "p2", occupant)
}

func TestStore_InvalidPosition(t *testing.T) {
	s := NewStore(6)
	s.InitRoom("ROOM01")

	assert.ErrorIs(t, s.Assign("ROOM01", "p2", 7), ErrInvalidPosition)
	assert.ErrorIs(t, s.Assign("ROOM01", "p2", -1), ErrInvalidPosition)
}

func TestStore_PositionTaken(t *testing.T) {
	s := NewStore(6)
	s.InitRoom("ROOM01")

	require.NoError(t, s.Assign("ROOM01", "p2", 3))
	assert.ErrorIs(t, s.Assign("ROOM01", "p1", 3), ErrPositionTaken)
}

func TestStore_PlayerHoldsAtMostOneSeat(t *testing.T) {
	s := NewStore(6)
	s.InitRoom("ROOM01")

	require.NoError(t, s.Assign("ROOM01", "p1", 0))
	// moving seats silently vacates the old one
	require.NoError(t, s.Assign("ROOM01", "p1", 4))

	_, ok := s.Occupant("ROOM01", 0)
	assert.False(t, ok)
	occupant, ok := s.Occupant("ROOM01", 4)
	require.True(t, ok)
	assert.Equal(t, "p1", occupant)

	// re-assigning the player's own seat is fine
	require.NoError(t, s.Assign("ROOM01", "p1", 4))
}

func TestStore_Vacate(t *testing.T) {
	s := NewStore(6)
	s.InitRoom("ROOM01")

	require.NoError(t, s.Assign("ROOM01", "p1", 2))
	pos, err := s.Vacate("ROOM01", "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	_, err = s.Vacate("ROOM01", "p1")
	assert.ErrorIs(t, err, ErrNoSeat)
}

func TestStore_AvailablePositionsIdempotent(t *testing.T) {
	s := NewStore(6)
	s.InitRoom("ROOM01")
	require.NoError(t, s.Assign("ROOM01", "p1", 1))
	require.NoError(t, s.Assign("ROOM01", "p2", 4))

	first := s.AvailablePositions("ROOM01")
	second := s.AvailablePositions("ROOM01")

	assert.Equal(t, []int{0, 2, 3, 5}, first)
	assert.Equal(t, first, second, "query without mutation must return the same set")
}

func TestStore_SeatedPlayersOrderedByPosition(t *testing.T) {
	s := NewStore(6)
	s.InitRoom("ROOM01")
	require.NoError(t, s.Assign("ROOM01", "p3", 5))
	require.NoError(t, s.Assign("ROOM01", "p1", 0))
	require.NoError(t, s.Assign("ROOM01", "p2", 2))

	assert.Equal(t, []string{"p1", "p2", "p3"}, s.SeatedPlayers("ROOM01"))
}

func TestStore_ResetRoomKeepsTracking(t *testing.T) {
	s := NewStore(6)
	s.InitRoom("ROOM01")
	require.NoError(t, s.Assign("ROOM01", "p1", 0))

	s.ResetRoom("ROOM01")

	assert.Empty(t, s.Snapshot("ROOM01"))
	assert.Len(t, s.AvailablePositions("ROOM01"), 6)
}

func TestStore_DropRoom(t *testing.T) {
	s := NewStore(6)
	s.InitRoom("ROOM01")
	require.NoError(t, s.Assign("ROOM01", "p1", 0))

	s.DropRoom("ROOM01")

	_, ok := s.Position("ROOM01", "p1")
	assert.False(t, ok)
}

func TestStore_LazyInitAfterColdStart(t *testing.T) {
	s := NewStore(6)

	// no InitRoom: a room reloaded from the store starts with an empty table
	require.NoError(t, s.Assign("LOADED", "p1", 1))
	pos, ok := s.Position("LOADED", "p1")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
}
