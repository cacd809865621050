package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/cardroom/broadcast"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/persistence"
	"github.com/wfunc/cardroom/room"
	"github.com/wfunc/cardroom/seats"
	"github.com/wfunc/cardroom/session"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	os.Exit(m.Run())
}

type autobetFixture struct {
	store   persistence.Store
	seats   *seats.Store
	service *AutoBetService
}

func newAutobetFixture(t *testing.T, store persistence.Store, minBet int64) *autobetFixture {
	t.Helper()
	seatStore := seats.NewStore(6)
	sessions := session.NewManager(2 * time.Hour)
	dispatcher := broadcast.NewDispatcher(sessions)
	registry := room.NewRegistry()

	rm := &models.Room{
		Code:           "ROOM01",
		Status:         models.StatusInProgress,
		HostPlayerID:   "p1",
		MaxPlayers:     6,
		MinBetPerRound: decimal.NewFromInt(minBet),
		Members: []models.RoomMember{
			{PlayerID: "p1", Name: "Ana", IsHost: true},
			{PlayerID: "p2", Name: "Beto"},
			{PlayerID: "p3", Name: "Caro"},
		},
	}
	require.NoError(t, store.Save(context.Background(), rm))

	return &autobetFixture{
		store:   store,
		seats:   seatStore,
		service: NewAutoBetService(store, seatStore, NewPlayerService(store), dispatcher, registry),
	}
}

func (f *autobetFixture) seat(t *testing.T, playerID string, position int) {
	t.Helper()
	require.NoError(t, f.seats.Assign("ROOM01", playerID, position))
}

func (f *autobetFixture) fund(t *testing.T, playerID string, amount int64) {
	t.Helper()
	require.NoError(t, f.store.SetPlayerBalance(context.Background(), playerID, decimal.NewFromInt(amount)))
}

func (f *autobetFixture) balance(t *testing.T, playerID string) decimal.Decimal {
	t.Helper()
	b, err := f.store.GetPlayerBalance(context.Background(), playerID)
	require.NoError(t, err)
	return b
}

func TestAutoBet_DeductsSeatedPlayers(t *testing.T) {
	f := newAutobetFixture(t, persistence.NewMemoryStore(), 50)
	f.fund(t, "p1", 100)
	f.fund(t, "p2", 200)
	f.seat(t, "p1", 0)
	f.seat(t, "p2", 1)
	// p3 es espectador sin asiento, no se le cobra
	f.fund(t, "p3", 500)

	summary, err := f.service.ProcessRoundAutoBets(context.Background(), "ROOM01", "p1", true)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalPlayersProcessed)
	assert.Equal(t, 2, summary.SuccessfulBets)
	assert.Equal(t, 0, summary.FailedBets)
	assert.False(t, summary.HasErrors)
	assert.Equal(t, 1.0, summary.SuccessRate)
	assert.True(t, summary.TotalAmountProcessed.Equal(decimal.NewFromInt(100)))

	assert.True(t, f.balance(t, "p1").Equal(decimal.NewFromInt(50)))
	assert.True(t, f.balance(t, "p2").Equal(decimal.NewFromInt(150)))
	assert.True(t, f.balance(t, "p3").Equal(decimal.NewFromInt(500)), "unseated players are never charged")
}

func TestAutoBet_UnderfundedPlayerIsRemoved(t *testing.T) {
	f := newAutobetFixture(t, persistence.NewMemoryStore(), 50)
	f.fund(t, "p1", 100)
	f.fund(t, "p2", 30)
	f.seat(t, "p1", 0)
	f.seat(t, "p2", 1)

	summary, err := f.service.ProcessRoundAutoBets(context.Background(), "ROOM01", "p1", true)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SuccessfulBets)
	assert.Equal(t, 1, summary.PlayersRemovedFromSeats)
	assert.Equal(t, 0, summary.FailedBets)

	_, seated := f.seats.Position("ROOM01", "p2")
	assert.False(t, seated, "an underfunded player loses the seat")
	assert.True(t, f.balance(t, "p2").Equal(decimal.NewFromInt(30)), "a failed bet deducts nothing")

	var p2 models.AutoBetPlayerResult
	for _, r := range summary.Results {
		if r.PlayerID == "p2" {
			p2 = r
		}
	}
	assert.Equal(t, models.OutcomeRemovedFromSeat, p2.Outcome)
	assert.Equal(t, 1, p2.SeatPosition)
}

func TestAutoBet_UnderfundedPlayerKeepsSeatWithoutRemoval(t *testing.T) {
	f := newAutobetFixture(t, persistence.NewMemoryStore(), 50)
	f.fund(t, "p2", 30)
	f.seat(t, "p2", 1)

	summary, err := f.service.ProcessRoundAutoBets(context.Background(), "ROOM01", "p1", false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.InsufficientFunds)
	assert.Equal(t, 0, summary.PlayersRemovedFromSeats)

	_, seated := f.seats.Position("ROOM01", "p2")
	assert.True(t, seated, "without removal the player only gets a warning")
}

func TestAutoBet_DuplicateRoundIsNoOp(t *testing.T) {
	f := newAutobetFixture(t, persistence.NewMemoryStore(), 50)
	f.fund(t, "p1", 100)
	f.seat(t, "p1", 0)
	ctx := context.Background()

	_, err := f.service.ProcessRoundAutoBets(ctx, "ROOM01", "p1", true)
	require.NoError(t, err)

	summary, err := f.service.ProcessRoundAutoBets(ctx, "ROOM01", "p1", true)
	assert.ErrorIs(t, err, ErrRoundAlreadySettled)
	assert.Nil(t, summary)

	assert.True(t, f.balance(t, "p1").Equal(decimal.NewFromInt(50)), "a duplicate trigger must not deduct twice")
}

// flakyStore fails balance reads for one player, so a backend outage can
// be simulated for exactly one seat.
type flakyStore struct {
	*persistence.MemoryStore
	failFor string
}

func (s *flakyStore) GetPlayerBalance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	if playerID == s.failFor {
		return decimal.Zero, errors.New("balance backend unavailable")
	}
	return s.MemoryStore.GetPlayerBalance(ctx, playerID)
}

func TestAutoBet_PlayerFailureDoesNotStopTheBatch(t *testing.T) {
	store := &flakyStore{MemoryStore: persistence.NewMemoryStore(), failFor: "p2"}
	f := newAutobetFixture(t, store, 50)
	f.fund(t, "p1", 100)
	f.fund(t, "p3", 100)
	f.seat(t, "p1", 0)
	f.seat(t, "p2", 1)
	f.seat(t, "p3", 2)

	summary, err := f.service.ProcessRoundAutoBets(context.Background(), "ROOM01", "p1", true)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalPlayersProcessed)
	assert.Equal(t, 2, summary.SuccessfulBets)
	assert.Equal(t, 1, summary.FailedBets)
	assert.True(t, summary.HasErrors)

	assert.True(t, f.balance(t, "p1").Equal(decimal.NewFromInt(50)))
	assert.True(t, f.balance(t, "p3").Equal(decimal.NewFromInt(50)))

	_, seated := f.seats.Position("ROOM01", "p2")
	assert.True(t, seated, "a backend failure is not an insufficient balance, the seat stays")
}

func TestAutoBet_SummaryTotalsAddUp(t *testing.T) {
	store := &flakyStore{MemoryStore: persistence.NewMemoryStore(), failFor: "p3"}
	f := newAutobetFixture(t, store, 50)
	f.fund(t, "p1", 100)
	f.fund(t, "p2", 10)
	f.seat(t, "p1", 0)
	f.seat(t, "p2", 1)
	f.seat(t, "p3", 2)

	summary, err := f.service.ProcessRoundAutoBets(context.Background(), "ROOM01", "p1", true)
	require.NoError(t, err)

	accounted := summary.SuccessfulBets + summary.FailedBets +
		summary.PlayersRemovedFromSeats + summary.InsufficientFunds
	assert.Equal(t, summary.TotalPlayersProcessed, accounted, "every seated player lands in exactly one bucket")

	expected := summary.Results[0].BetAmount.Mul(decimal.NewFromInt(int64(summary.SuccessfulBets)))
	assert.True(t, summary.TotalAmountProcessed.Equal(expected),
		"processed total covers only the deducted bets")
}

func TestAutoBet_OnlyHostMayTrigger(t *testing.T) {
	f := newAutobetFixture(t, persistence.NewMemoryStore(), 50)
	f.seat(t, "p1", 0)

	_, err := f.service.ProcessRoundAutoBets(context.Background(), "ROOM01", "p2", true)
	msg, ok := models.UserMessage(err)
	require.True(t, ok)
	assert.Contains(t, msg, "anfitrión")
}

func TestAutoBet_RequiresMinimumBet(t *testing.T) {
	f := newAutobetFixture(t, persistence.NewMemoryStore(), 0)
	f.seat(t, "p1", 0)

	_, err := f.service.ProcessRoundAutoBets(context.Background(), "ROOM01", "p1", true)
	msg, ok := models.UserMessage(err)
	require.True(t, ok)
	assert.Contains(t, msg, "apuesta mínima")
}

func TestAutoBet_UnknownRoom(t *testing.T) {
	f := newAutobetFixture(t, persistence.NewMemoryStore(), 50)

	_, err := f.service.ProcessRoundAutoBets(context.Background(), "NOPE01", "p1", true)
	msg, ok := models.UserMessage(err)
	require.True(t, ok)
	assert.Contains(t, msg, "no encontrada")
}

func TestAutoBet_EmptyTable(t *testing.T) {
	f := newAutobetFixture(t, persistence.NewMemoryStore(), 50)

	summary, err := f.service.ProcessRoundAutoBets(context.Background(), "ROOM01", "p1", true)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalPlayersProcessed)
	assert.True(t, summary.TotalAmountProcessed.IsZero())
	assert.Equal(t, 0.0, summary.SuccessRate)
}
