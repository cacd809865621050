// room/reconnect.go
package room

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/cardroom/broadcast"
	"github.com/wfunc/cardroom/events"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/persistence"
	"github.com/wfunc/cardroom/session"
)

// Coordinator 重连协调器。断线是正常生命周期而不是错误：最后一条
// 连接断开时写入提示，重连时尽力恢复原房间。恢复不了就静默丢弃。
type Coordinator struct {
	store      persistence.Store
	sessions   *session.Manager
	dispatcher broadcast.Broadcaster
	service    *Service
}

func NewCoordinator(store persistence.Store, sessions *session.Manager,
	dispatcher broadcast.Broadcaster, service *Service) *Coordinator {
	return &Coordinator{
		store:      store,
		sessions:   sessions,
		dispatcher: dispatcher,
		service:    service,
	}
}

// OnDisconnect runs the normal disconnect path for one connection. When
// it was the player's last connection a reconnection hint is recorded
// with the player's current room, if any.
func (c *Coordinator) OnDisconnect(ctx context.Context, connID string) {
	playerID, wasLast := c.sessions.Remove(connID)
	if playerID == "" {
		return
	}
	c.dispatcher.LeaveAllGroups(connID)

	if !wasLast {
		return
	}

	hint := &models.ReconnectionHint{
		PlayerID:   playerID,
		LastSeenAt: time.Now(),
	}
	if room, err := c.service.roomOfPlayer(ctx, playerID); err == nil && room != nil {
		hint.LastRoomCode = room.Code
		_, seated := c.service.seats.Position(room.Code, playerID)
		hint.WasInGame = seated || room.Status == models.StatusInProgress
	}
	c.sessions.RecordHint(hint)
	logger.Log.Infof("player %s offline, hint recorded (room=%q inGame=%v)",
		playerID, hint.LastRoomCode, hint.WasInGame)
}

// HandleReconnect restores a returning player, best-effort: rejoin the
// old room's broadcast group on the new connection and replay the full
// snapshot. A hint pointing at a vanished room or a lapsed membership is
// discarded without telling the client anything. Reports whether a room
// was actually restored.
func (c *Coordinator) HandleReconnect(ctx context.Context, connID, playerID string) bool {
	hint, ok := c.sessions.PeekHint(playerID)
	if !ok || hint.LastRoomCode == "" {
		return false
	}

	room, err := c.store.GetRoomByCode(ctx, hint.LastRoomCode)
	if err != nil {
		if !errors.Is(err, persistence.ErrRoomNotFound) {
			logger.Log.Warnf("reconnect %s: load room %s: %v", playerID, hint.LastRoomCode, err)
		}
		c.sessions.ClearHint(playerID)
		return false
	}
	if !room.IsMember(playerID) {
		c.sessions.ClearHint(playerID)
		return false
	}

	c.dispatcher.JoinGroup(room.Code, connID)
	c.dispatcher.SendToConnection(connID, events.RoomSnapshot{Room: c.service.snapshot(room)})
	c.sessions.ClearHint(playerID)

	logger.Log.Infof("player %s reconnected into room %s", playerID, room.Code)
	return true
}
