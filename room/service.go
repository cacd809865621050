// room/service.go
package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/wfunc/cardroom/broadcast"
	"github.com/wfunc/cardroom/config"
	"github.com/wfunc/cardroom/events"
	"github.com/wfunc/cardroom/locks"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/persistence"
	"github.com/wfunc/cardroom/seats"
	"github.com/wfunc/cardroom/session"
	"github.com/wfunc/cardroom/state"
)

// 房间号字母表，去掉易混字符
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxNameLength = 32

// Service 房间生命周期管理：创建/加入/离开/开局/结束，
// 协调持久化、按键互斥锁与座位表，并通过分发器广播房间快照。
// locker 按 "table:<id>" 串行化同桌的查找加创建，按 "room:<code>"
// 串行化座位变更与开局/结束，杜绝开局瞬间溜进来的换座。
type Service struct {
	store      persistence.Store
	seats      *seats.Store
	locker     *locks.KeyedMutex
	sessions   *session.Manager
	dispatcher broadcast.Broadcaster
	registry   *Registry
	cfg        config.RoomConfig
}

func NewService(store persistence.Store, seatStore *seats.Store, locker *locks.KeyedMutex,
	sessions *session.Manager, dispatcher broadcast.Broadcaster, cfg config.RoomConfig) *Service {
	return &Service{
		store:      store,
		seats:      seatStore,
		locker:     locker,
		sessions:   sessions,
		dispatcher: dispatcher,
		registry:   NewRegistry(),
		cfg:        cfg,
	}
}

// Registry exposes the per-room contexts (round sequence, settlement guard).
func (s *Service) Registry() *Registry {
	return s.registry
}

// CreateRoom 创建房间。一名玩家同一时间只能属于一个房间。
func (s *Service) CreateRoom(ctx context.Context, connID, playerID, playerName, roomName string,
	maxPlayers int, minBet decimal.Decimal) (*models.Room, error) {

	if len(roomName) > maxNameLength || len(playerName) > maxNameLength {
		return nil, models.Userf("El nombre es demasiado largo")
	}
	if maxPlayers < 1 || maxPlayers > s.cfg.MaxPlayers {
		maxPlayers = s.cfg.MaxPlayers
	}
	if minBet.IsNegative() {
		return nil, models.Userf("La apuesta mínima no puede ser negativa")
	}

	existing, err := s.roomOfPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.Userf("Ya perteneces a otra sala (%s)", existing.Code)
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.playerBalance(ctx, playerID)
	if err != nil {
		// 余额网关故障不阻断建房，成员先以零余额登记
		logger.Log.Warnf("create room: balance lookup for %s: %v", playerID, err)
	}
	room := &models.Room{
		Code:           code,
		Status:         models.StatusWaitingForPlayers,
		HostPlayerID:   playerID,
		MaxPlayers:     maxPlayers,
		MinBetPerRound: minBet,
		Members: []models.RoomMember{{
			PlayerID: playerID,
			Name:     playerName,
			IsHost:   true,
			Balance:  balance,
		}},
	}
	if err := s.store.Save(ctx, room); err != nil {
		logger.Log.Errorf("create room %s: save failed: %v", code, err)
		return nil, models.Userf("Algo salió mal, inténtalo de nuevo")
	}

	s.seats.InitRoom(code)
	s.registry.GetOrCreate(code, room.Status)
	s.dispatcher.JoinGroup(code, connID)

	snapshot := s.snapshot(room)
	s.dispatcher.SendToConnection(connID, events.RoomCreated{Room: snapshot})

	logger.Log.Infof("player %s created room %s", playerID, code)
	return room, nil
}

// JoinRoom 加入房间。重复加入同一房间视为成功（幂等）。
func (s *Service) JoinRoom(ctx context.Context, connID, code, playerID, playerName string, asSpectator bool) error {
	if len(playerName) > maxNameLength {
		return models.Userf("El nombre es demasiado largo")
	}

	room, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, persistence.ErrRoomNotFound) {
			return models.Userf("Sala no encontrada")
		}
		return s.infraError("join room", code, err)
	}

	if room.IsMember(playerID) {
		// Already in: just rejoin the group and replay the snapshot.
		s.dispatcher.JoinGroup(code, connID)
		s.dispatcher.SendToConnection(connID, events.RoomJoined{Room: s.snapshot(room)})
		return nil
	}

	other, err := s.roomOfPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	if other != nil && other.Code != code {
		return models.Userf("Ya perteneces a otra sala (%s)", other.Code)
	}

	balance, err := s.playerBalance(ctx, playerID)
	if err != nil {
		logger.Log.Warnf("join room %s: balance lookup for %s: %v", code, playerID, err)
	}
	updated, err := s.applyWithRetry(ctx, code, func(r *models.Room) error {
		if r.IsMember(playerID) {
			return nil
		}
		if r.MemberCount() >= r.MaxPlayers {
			return models.Userf("La sala está llena")
		}
		r.AddMember(models.RoomMember{
			PlayerID: playerID,
			Name:     playerName,
			Balance:  balance,
		})
		if asSpectator {
			r.Spectators = append(r.Spectators, models.Spectator{
				PlayerID: playerID,
				Name:     playerName,
			})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			return models.Userf("Algo salió mal, inténtalo de nuevo")
		}
		return err
	}

	s.dispatcher.JoinGroup(code, connID)
	s.dispatcher.BroadcastToRoomExcept(code, events.PlayerJoined{
		RoomCode:    code,
		PlayerID:    playerID,
		Name:        playerName,
		AsSpectator: asSpectator,
	}, "", playerID)
	s.dispatcher.SendToConnection(connID, events.RoomJoined{Room: s.snapshot(updated)})

	logger.Log.Infof("player %s joined room %s", playerID, code)
	return nil
}

// JoinOrCreateForTable joins the room already linked to the external
// table or creates it. The whole check-then-create runs under the table
// key's mutex so two simultaneous first-joiners cannot both create.
func (s *Service) JoinOrCreateForTable(ctx context.Context, connID, tableID, playerID, playerName string) (*models.Room, error) {
	unlock := s.locker.Lock("table:" + tableID)
	defer unlock()

	rooms, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, s.infraError("join table", tableID, err)
	}
	existing, found := lo.Find(rooms, func(r *models.Room) bool {
		return r.TableID == tableID
	})
	if found {
		if err := s.JoinRoom(ctx, connID, existing.Code, playerID, playerName, false); err != nil {
			return nil, err
		}
		return existing, nil
	}

	room, err := s.CreateRoom(ctx, connID, playerID, playerName, "", s.cfg.MaxPlayers, decimal.Zero)
	if err != nil {
		return nil, err
	}
	room.TableID = tableID
	if err := s.store.Save(ctx, room); err != nil {
		logger.Log.Errorf("link room %s to table %s failed: %v", room.Code, tableID, err)
	}
	return room, nil
}

// LeaveRoom 离开房间。成员归零时整个房间被删除。
// 这里的并发冲突只记录日志：离开的意图在逻辑上已经达成。
func (s *Service) LeaveRoom(ctx context.Context, connID, code, playerID string) error {
	room, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, persistence.ErrRoomNotFound) {
			return nil // already gone
		}
		return s.infraError("leave room", code, err)
	}
	if !room.IsMember(playerID) {
		return nil
	}

	if _, err := s.seats.Vacate(code, playerID); err != nil && !errors.Is(err, seats.ErrNoSeat) {
		logger.Log.Warnf("leave room %s: vacate seat for %s: %v", code, playerID, err)
	}

	updated, err := s.applyWithRetry(ctx, code, func(r *models.Room) error {
		r.RemoveMember(playerID)
		// 保持"恰好一名房主"不变式
		if r.HostPlayerID == playerID && r.MemberCount() > 0 {
			r.Members[0].IsHost = true
			r.HostPlayerID = r.Members[0].PlayerID
			logger.Log.Infof("room %s host migrated to %s", code, r.HostPlayerID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			logger.Log.Warnf("leave room %s by %s: conflict after retries, treating as resolved", code, playerID)
			return nil
		}
		return err
	}

	for _, conn := range s.sessions.GetByPlayer(playerID) {
		s.dispatcher.LeaveGroup(code, conn.ID)
	}

	if updated.MemberCount() == 0 {
		if err := s.store.Delete(ctx, updated); err != nil {
			logger.Log.Errorf("delete empty room %s: %v", code, err)
		}
		s.seats.DropRoom(code)
		s.registry.Evict(code)
		s.dispatcher.DropGroup(code)
		logger.Log.Infof("room %s deleted (empty)", code)
		return nil
	}

	s.dispatcher.BroadcastToRoom(code, events.PlayerLeft{RoomCode: code, PlayerID: playerID})
	s.dispatcher.BroadcastToRoom(code, events.RoomInfoUpdated{Room: s.snapshot(updated)})
	return nil
}

// JoinSeat 入座。开局后不允许换座：状态检查与落座在房间锁内完成，
// 与 StartGame 串行，转入 InProgress 的瞬间也不会有换座溜进来。
func (s *Service) JoinSeat(ctx context.Context, code, playerID string, position int) error {
	unlock := s.locker.Lock("room:" + code)
	defer unlock()

	room, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, persistence.ErrRoomNotFound) {
			return models.Userf("Sala no encontrada")
		}
		return s.infraError("join seat", code, err)
	}
	if room.Status == models.StatusInProgress {
		return models.Userf("No puedes cambiar de asiento durante la partida")
	}
	if !room.IsMember(playerID) {
		return models.Userf("No eres miembro de esta sala")
	}

	if err := s.seats.Assign(code, playerID, position); err != nil {
		switch {
		case errors.Is(err, seats.ErrInvalidPosition):
			return models.Userf("Posición inválida")
		case errors.Is(err, seats.ErrPositionTaken):
			return models.Userf("La posición %d ya está ocupada", position)
		default:
			return s.infraError("join seat", code, err)
		}
	}

	s.dispatcher.BroadcastToRoom(code, events.RoomInfoUpdated{Room: s.snapshot(room)})
	return nil
}

// LeaveSeat 离座
func (s *Service) LeaveSeat(ctx context.Context, code, playerID string) error {
	unlock := s.locker.Lock("room:" + code)
	defer unlock()

	room, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, persistence.ErrRoomNotFound) {
			return models.Userf("Sala no encontrada")
		}
		return s.infraError("leave seat", code, err)
	}
	if room.Status == models.StatusInProgress {
		return models.Userf("No puedes cambiar de asiento durante la partida")
	}

	if _, err := s.seats.Vacate(code, playerID); err != nil {
		if errors.Is(err, seats.ErrNoSeat) {
			return models.Userf("No tienes asiento asignado")
		}
		return s.infraError("leave seat", code, err)
	}

	s.dispatcher.BroadcastToRoom(code, events.RoomInfoUpdated{Room: s.snapshot(room)})
	return nil
}

// StartGame 开局：仅房主可触发，分配关联牌桌并推进回合序号。
func (s *Service) StartGame(ctx context.Context, code, callerID string) error {
	unlock := s.locker.Lock("room:" + code)
	defer unlock()

	room, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, persistence.ErrRoomNotFound) {
			return models.Userf("Sala no encontrada")
		}
		return s.infraError("start game", code, err)
	}
	if room.HostPlayerID != callerID {
		return models.Userf("Solo el anfitrión puede iniciar la partida")
	}
	if room.MemberCount() < 1 {
		return models.Userf("La sala necesita al menos un jugador")
	}
	if !state.Allowed(room.Status, models.StatusInProgress) {
		return models.Userf("La partida ya está en curso")
	}

	updated, err := s.applyWithRetry(ctx, code, func(r *models.Room) error {
		if !state.Allowed(r.Status, models.StatusInProgress) {
			return models.Userf("La partida ya está en curso")
		}
		if r.TableID == "" {
			r.TableID = uuid.NewString()
		}
		r.Status = models.StatusInProgress
		return nil
	})
	if err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			return models.Userf("Algo salió mal, inténtalo de nuevo")
		}
		return err
	}

	rctx := s.registry.GetOrCreate(code, models.StatusInProgress)
	rctx.Machine().Force(models.StatusInProgress)
	round := rctx.NextRound()

	s.dispatcher.BroadcastToRoom(code, events.RoomInfoUpdated{Room: s.snapshot(updated)})
	logger.Log.Infof("room %s started round %d on table %s", code, round, updated.TableID)
	return nil
}

// EndGame 结束本局并清空全部座位：一局的座次不会延续到下一局。
func (s *Service) EndGame(ctx context.Context, code string) error {
	unlock := s.locker.Lock("room:" + code)
	defer unlock()

	room, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, persistence.ErrRoomNotFound) {
			return models.Userf("Sala no encontrada")
		}
		return s.infraError("end game", code, err)
	}
	if !state.Allowed(room.Status, models.StatusCompleted) {
		return models.Userf("La partida no está en curso")
	}

	updated, err := s.applyWithRetry(ctx, code, func(r *models.Room) error {
		if !state.Allowed(r.Status, models.StatusCompleted) {
			return models.Userf("La partida no está en curso")
		}
		r.Status = models.StatusCompleted
		return nil
	})
	if err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			return models.Userf("Algo salió mal, inténtalo de nuevo")
		}
		return err
	}

	s.seats.ResetRoom(code)
	if rctx, ok := s.registry.Get(code); ok {
		rctx.Machine().Force(models.StatusCompleted)
	}

	s.dispatcher.BroadcastToRoom(code, events.RoomInfoUpdated{Room: s.snapshot(updated)})
	logger.Log.Infof("room %s game ended", code)
	return nil
}

// Snapshot builds the client-visible view of the room.
func (s *Service) Snapshot(ctx context.Context, code string) (*models.RoomSnapshot, error) {
	room, err := s.store.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	snap := s.snapshot(room)
	return &snap, nil
}

// --- helpers ---

// applyWithRetry is the single read-mutate-write path for persisted room
// updates: refetch, reapply the logical mutation, save, with bounded
// retry on optimistic conflicts.
func (s *Service) applyWithRetry(ctx context.Context, code string, mutate func(*models.Room) error) (*models.Room, error) {
	var room *models.Room
	err := persistence.WithOptimisticRetry(ctx, s.cfg.RetryAttempts, s.cfg.Backoff(), func(ctx context.Context) error {
		fresh, err := s.store.GetRoomByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := mutate(fresh); err != nil {
			return err
		}
		if err := s.store.Save(ctx, fresh); err != nil {
			return err
		}
		room = fresh
		return nil
	})
	return room, err
}

func (s *Service) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		code, err := gonanoid.Generate(codeAlphabet, s.cfg.CodeLength)
		if err != nil {
			return "", err
		}
		_, err = s.store.GetRoomByCode(ctx, code)
		if errors.Is(err, persistence.ErrRoomNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
		// collision, retry
	}
	return "", fmt.Errorf("room code space exhausted after retries")
}

// roomOfPlayer scans active rooms for the player's current membership.
func (s *Service) roomOfPlayer(ctx context.Context, playerID string) (*models.Room, error) {
	rooms, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, s.infraError("lookup player room", playerID, err)
	}
	room, found := lo.Find(rooms, func(r *models.Room) bool {
		return r.IsMember(playerID)
	})
	if !found {
		return nil, nil
	}
	return room, nil
}

func (s *Service) playerBalance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	balance, err := s.store.GetPlayerBalance(ctx, playerID)
	if err != nil {
		if errors.Is(err, persistence.ErrPlayerNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *Service) snapshot(room *models.Room) models.RoomSnapshot {
	seatMap := s.seats.Snapshot(room.Code)
	members := lo.Map(room.Members, func(m models.RoomMember, _ int) models.SnapshotMember {
		sm := models.SnapshotMember{
			PlayerID: m.PlayerID,
			Name:     m.Name,
			IsHost:   m.IsHost,
			IsReady:  m.IsReady,
			Balance:  m.Balance,
			Online:   s.sessions.IsOnline(m.PlayerID),
		}
		if pos, ok := seatMap[m.PlayerID]; ok {
			p := pos
			sm.SeatPosition = &p
		}
		return sm
	})

	return models.RoomSnapshot{
		Code:               room.Code,
		Status:             room.Status.String(),
		HostPlayerID:       room.HostPlayerID,
		MaxPlayers:         room.MaxPlayers,
		MinBetPerRound:     room.MinBetPerRound,
		TableID:            room.TableID,
		Members:            members,
		Spectators:         room.Spectators,
		AvailablePositions: s.seats.AvailablePositions(room.Code),
	}
}

func (s *Service) infraError(op, key string, err error) error {
	logger.Log.Errorf("%s %s: %v", op, key, err)
	return models.Userf("Algo salió mal, inténtalo de nuevo")
}
