// services/autobet_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/wfunc/cardroom/broadcast"
	"github.com/wfunc/cardroom/events"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/persistence"
	"github.com/wfunc/cardroom/room"
	"github.com/wfunc/cardroom/seats"
)

var (
	// ErrRoundAlreadySettled marks a duplicate settlement trigger for a
	// round; the duplicate is a no-op, nothing is deducted twice.
	ErrRoundAlreadySettled = errors.New("round already settled")
)

// AutoBetService 自动下注结算引擎：开局时对每个入座玩家扣除
// 最低下注额。每个玩家独立处理，单个失败不会中断整批。
type AutoBetService struct {
	store      persistence.Store
	seats      *seats.Store
	players    *PlayerService
	dispatcher broadcast.Broadcaster
	registry   *room.Registry
}

func NewAutoBetService(store persistence.Store, seatStore *seats.Store, players *PlayerService,
	dispatcher broadcast.Broadcaster, registry *room.Registry) *AutoBetService {
	return &AutoBetService{
		store:      store,
		seats:      seatStore,
		players:    players,
		dispatcher: dispatcher,
		registry:   registry,
	}
}

// ProcessRoundAutoBets settles the current round for the room. Only the
// host may trigger it. removeUnderfunded controls whether players who
// cannot cover the minimum bet lose their seat or just get a warning.
func (s *AutoBetService) ProcessRoundAutoBets(ctx context.Context, code, callerID string, removeUnderfunded bool) (*models.AutoBetSummary, error) {
	rm, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, persistence.ErrRoomNotFound) {
			return nil, models.Userf("Sala no encontrada")
		}
		logger.Log.Errorf("autobet %s: load room: %v", code, err)
		return nil, models.Userf("Algo salió mal, inténtalo de nuevo")
	}
	if rm.HostPlayerID != callerID {
		return nil, models.Userf("Solo el anfitrión puede procesar las apuestas")
	}
	minBet := rm.MinBetPerRound
	if !minBet.IsPositive() {
		return nil, models.Userf("La sala no tiene apuesta mínima configurada")
	}

	rctx := s.registry.GetOrCreate(code, rm.Status)
	round := rctx.CurrentRound()
	if round == 0 {
		// settlement triggered before any explicit round start
		round = rctx.NextRound()
	}
	if !rctx.MarkSettled(round) {
		logger.Log.Warnf("autobet %s: round %d already settled, ignoring duplicate trigger", code, round)
		return nil, ErrRoundAlreadySettled
	}

	// 先对当前入座玩家拍快照，结算过程中座位表可能被本引擎修改
	seated := s.seats.SeatedPlayers(code)
	seatMap := s.seats.Snapshot(code)

	s.dispatcher.BroadcastToRoom(code, events.AutoBetProcessingStarted{
		RoomCode:         code,
		Round:            round,
		PlayersToProcess: len(seated),
		ExpectedTotal:    minBet.Mul(decimal.NewFromInt(int64(len(seated)))),
	})
	s.dispatcher.Flush(code)

	results := make([]models.AutoBetPlayerResult, 0, len(seated))
	for _, playerID := range seated {
		results = append(results, s.settlePlayer(ctx, code, playerID, seatMap[playerID], minBet, removeUnderfunded))
	}

	summary := s.aggregate(code, round, minBet, results)
	s.emit(code, summary)

	logger.Log.Infof("autobet %s round %d: %d processed, %d deducted, %d removed, %d failed, total %s",
		code, round, summary.TotalPlayersProcessed, summary.SuccessfulBets,
		summary.PlayersRemovedFromSeats, summary.FailedBets, summary.TotalAmountProcessed)
	return summary, nil
}

// settlePlayer handles exactly one seated player. Failures stay local to
// the player: the batch always continues.
func (s *AutoBetService) settlePlayer(ctx context.Context, code, playerID string, position int,
	minBet decimal.Decimal, removeUnderfunded bool) models.AutoBetPlayerResult {

	result := models.AutoBetPlayerResult{
		PlayerID:     playerID,
		SeatPosition: position,
		BetAmount:    minBet,
	}

	prev, curr, err := s.players.Deduct(ctx, playerID, minBet)
	result.OriginalBalance = prev
	result.NewBalance = curr

	switch {
	case err == nil:
		result.Outcome = models.OutcomeBetDeducted

	case errors.Is(err, ErrInsufficientFunds):
		if removeUnderfunded {
			if _, verr := s.seats.Vacate(code, playerID); verr != nil {
				result.Outcome = models.OutcomeFailed
				result.Error = verr.Error()
				break
			}
			result.Outcome = models.OutcomeRemovedFromSeat
		} else {
			result.Outcome = models.OutcomeInsufficientFunds
		}

	default:
		logger.Log.Errorf("autobet %s: settle player %s: %v", code, playerID, err)
		result.Outcome = models.OutcomeFailed
		result.Error = err.Error()
	}
	return result
}

func (s *AutoBetService) aggregate(code string, round int64, minBet decimal.Decimal,
	results []models.AutoBetPlayerResult) *models.AutoBetSummary {

	byOutcome := lo.CountValuesBy(results, func(r models.AutoBetPlayerResult) models.AutoBetOutcome {
		return r.Outcome
	})
	total := lo.Reduce(results, func(acc decimal.Decimal, r models.AutoBetPlayerResult, _ int) decimal.Decimal {
		if r.Outcome == models.OutcomeBetDeducted {
			return acc.Add(r.BetAmount)
		}
		return acc
	}, decimal.Zero)

	summary := &models.AutoBetSummary{
		RoomCode:                code,
		Round:                   round,
		TotalPlayersProcessed:   len(results),
		SuccessfulBets:          byOutcome[models.OutcomeBetDeducted],
		FailedBets:              byOutcome[models.OutcomeFailed],
		PlayersRemovedFromSeats: byOutcome[models.OutcomeRemovedFromSeat],
		InsufficientFunds:       byOutcome[models.OutcomeInsufficientFunds],
		TotalAmountProcessed:    total,
		HasErrors:               byOutcome[models.OutcomeFailed] > 0,
		Results:                 results,
	}
	if summary.TotalPlayersProcessed > 0 {
		summary.SuccessRate = float64(summary.SuccessfulBets) / float64(summary.TotalPlayersProcessed)
	}
	return summary
}

// emit publishes the settlement events in their contract order: the
// aggregate result, each affected player's personal event, and finally
// the round summary.
func (s *AutoBetService) emit(code string, summary *models.AutoBetSummary) {
	s.dispatcher.BroadcastToRoom(code, events.AutoBetProcessed{
		RoomCode:                code,
		Round:                   summary.Round,
		TotalPlayersProcessed:   summary.TotalPlayersProcessed,
		SuccessfulBets:          summary.SuccessfulBets,
		FailedBets:              summary.FailedBets,
		PlayersRemovedFromSeats: summary.PlayersRemovedFromSeats,
		TotalAmountProcessed:    summary.TotalAmountProcessed,
		SuccessRate:             summary.SuccessRate,
		HasErrors:               summary.HasErrors,
	})
	s.dispatcher.Flush(code)

	notifications := make([]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		switch r.Outcome {
		case models.OutcomeBetDeducted:
			s.dispatcher.SendToPlayer(r.PlayerID, events.PlayerBalanceUpdated{
				PlayerID:   r.PlayerID,
				OldBalance: r.OriginalBalance,
				NewBalance: r.NewBalance,
				Deducted:   r.BetAmount,
			})
			notifications = append(notifications,
				fmt.Sprintf("Apuesta de %s descontada a %s", r.BetAmount, r.PlayerID))

		case models.OutcomeRemovedFromSeat:
			// 座位变化对全房间可见
			s.dispatcher.BroadcastToRoom(code, events.PlayerRemovedFromSeat{
				RoomCode:     code,
				PlayerID:     r.PlayerID,
				SeatPosition: r.SeatPosition,
				Reason:       "fondos insuficientes",
			})
			notifications = append(notifications,
				fmt.Sprintf("%s fue retirado de su asiento por fondos insuficientes", r.PlayerID))

		case models.OutcomeInsufficientFunds:
			s.dispatcher.SendToPlayer(r.PlayerID, events.InsufficientFundsWarning{
				PlayerID: r.PlayerID,
				Balance:  r.OriginalBalance,
				Required: r.BetAmount,
			})
			notifications = append(notifications,
				fmt.Sprintf("%s no tiene fondos suficientes para la apuesta mínima", r.PlayerID))

		case models.OutcomeFailed:
			notifications = append(notifications,
				fmt.Sprintf("No se pudo procesar la apuesta de %s", r.PlayerID))
		}
	}

	s.dispatcher.BroadcastToRoom(code, events.AutoBetRoundSummary{
		Summary:       *summary,
		Notifications: notifications,
	})
	s.dispatcher.Flush(code)
}
