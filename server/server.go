// server/server.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/wfunc/cardroom/broadcast"
	"github.com/wfunc/cardroom/config"
	"github.com/wfunc/cardroom/events"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/monitor"
	"github.com/wfunc/cardroom/network"
	"github.com/wfunc/cardroom/room"
	"github.com/wfunc/cardroom/services"
	"github.com/wfunc/cardroom/session"
)

// GameServer 接入层：连接升级、会话登记、请求分发。
// playerID/name 由外部认证方解析后经查询参数带入，这里视为已验证。
type GameServer struct {
	addr        string
	upgrader    websocket.Upgrader
	sessions    *session.Manager
	rooms       *room.Service
	coordinator *room.Coordinator
	autobet     *services.AutoBetService
	dispatcher  broadcast.Broadcaster
	monitor     *monitor.Monitor
	cfg         config.Config

	shutdownChan chan struct{}
}

func NewGameServer(cfg config.Config, sessions *session.Manager, rooms *room.Service,
	coordinator *room.Coordinator, autobet *services.AutoBetService,
	dispatcher broadcast.Broadcaster, mon *monitor.Monitor) *GameServer {
	return &GameServer{
		addr:         cfg.Server.HTTPAddress,
		sessions:     sessions,
		rooms:        rooms,
		coordinator:  coordinator,
		autobet:      autobet,
		dispatcher:   dispatcher,
		monitor:      mon,
		cfg:          cfg,
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
}

func (s *GameServer) Start() error {
	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	name := r.URL.Query().Get("name")
	if playerID == "" {
		http.Error(w, "missing player_id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, playerID, name)
}

func (s *GameServer) handleConnection(wsConn *websocket.Conn, playerID, name string) {
	netConn := network.NewWSConnection(wsConn)
	// 整个心跳窗口内毫无动静的连接在下一次读取时出错并走断开路径
	netConn.SetHeartbeat(s.cfg.Cleanup.HeartbeatWindowDuration())

	conn := session.NewConnection(uuid.NewString(), playerID, name, netConn)
	s.sessions.Add(conn)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection %s for player %s (%s)", conn.ID, playerID, wsConn.RemoteAddr())

	ctx := context.Background()
	// 新连接建立即尝试恢复断线前的房间
	if s.coordinator.HandleReconnect(ctx, conn.ID, playerID) {
		s.monitor.IncReconnections()
	}

	defer func() {
		logger.Log.Infof("Connection %s closed for player %s", conn.ID, playerID)
		s.coordinator.OnDisconnect(ctx, conn.ID)
		s.monitor.DecOnlinePlayers()
		conn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := conn.Conn.ReadPacket()
			if err != nil {
				return
			}
			start := time.Now()
			s.handlePacket(ctx, conn, packet)
			s.monitor.IncMessagesReceived()
			s.monitor.ObserveMessageLatency(time.Since(start))
		}
	}
}

// --- 请求负载 ---

type createRoomRequest struct {
	RoomName   string          `json:"room_name"`
	MaxPlayers int             `json:"max_players"`
	MinBet     decimal.Decimal `json:"min_bet"`
}

type joinRoomRequest struct {
	Code        string `json:"code"`
	AsSpectator bool   `json:"as_spectator"`
}

type roomCodeRequest struct {
	Code string `json:"code"`
}

type joinSeatRequest struct {
	Code     string `json:"code"`
	Position int    `json:"position"`
}

type joinTableRequest struct {
	TableID string `json:"table_id"`
}

type processAutoBetsRequest struct {
	Code              string `json:"code"`
	RemoveUnderfunded bool   `json:"remove_underfunded"`
}

func (s *GameServer) handlePacket(ctx context.Context, conn *session.Connection, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		conn.Touch()

	case network.MsgTypeCreateRoom:
		var req createRoomRequest
		if !s.decode(conn, packet.Data, &req) {
			return
		}
		_, err := s.rooms.CreateRoom(ctx, conn.ID, conn.PlayerID, conn.Name, req.RoomName, req.MaxPlayers, req.MinBet)
		s.reply(conn, err, "Sala creada")

	case network.MsgTypeJoinRoom:
		var req joinRoomRequest
		if !s.decode(conn, packet.Data, &req) {
			return
		}
		err := s.rooms.JoinRoom(ctx, conn.ID, req.Code, conn.PlayerID, conn.Name, req.AsSpectator)
		s.reply(conn, err, "Te has unido a la sala")

	case network.MsgTypeJoinTable:
		var req joinTableRequest
		if !s.decode(conn, packet.Data, &req) {
			return
		}
		_, err := s.rooms.JoinOrCreateForTable(ctx, conn.ID, req.TableID, conn.PlayerID, conn.Name)
		s.reply(conn, err, "Te has unido a la mesa")

	case network.MsgTypeLeaveRoom:
		var req roomCodeRequest
		if !s.decode(conn, packet.Data, &req) {
			return
		}
		err := s.rooms.LeaveRoom(ctx, conn.ID, req.Code, conn.PlayerID)
		s.reply(conn, err, "Has salido de la sala")

	case network.MsgTypeJoinSeat:
		var req joinSeatRequest
		if !s.decode(conn, packet.Data, &req) {
			return
		}
		err := s.rooms.JoinSeat(ctx, req.Code, conn.PlayerID, req.Position)
		s.reply(conn, err, "Asiento asignado")

	case network.MsgTypeLeaveSeat:
		var req roomCodeRequest
		if !s.decode(conn, packet.Data, &req) {
			return
		}
		err := s.rooms.LeaveSeat(ctx, req.Code, conn.PlayerID)
		s.reply(conn, err, "Has dejado el asiento")

	case network.MsgTypeStartGame:
		var req roomCodeRequest
		if !s.decode(conn, packet.Data, &req) {
			return
		}
		err := s.rooms.StartGame(ctx, req.Code, conn.PlayerID)
		s.reply(conn, err, "Partida iniciada")

	case network.MsgTypeEndGame:
		var req roomCodeRequest
		if !s.decode(conn, packet.Data, &req) {
			return
		}
		err := s.rooms.EndGame(ctx, req.Code)
		s.reply(conn, err, "Partida finalizada")

	case network.MsgTypeProcessAutoBets:
		var req processAutoBetsRequest
		if !s.decode(conn, packet.Data, &req) {
			return
		}
		_, err := s.autobet.ProcessRoundAutoBets(ctx, req.Code, conn.PlayerID, req.RemoveUnderfunded)
		if err == services.ErrRoundAlreadySettled {
			// duplicate trigger is a silent no-op for the caller
			err = nil
		} else if err == nil {
			s.monitor.IncSettlements()
		}
		s.reply(conn, err, "Apuestas procesadas")

	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) decode(conn *session.Connection, data []byte, v interface{}) bool {
	if err := json.Unmarshal(data, v); err != nil {
		s.sendError(conn, "Solicitud inválida")
		return false
	}
	return true
}

// reply sends the op outcome to the acting connection only; room-wide
// effects were already broadcast by the services.
func (s *GameServer) reply(conn *session.Connection, err error, successMsg string) {
	if err == nil {
		s.dispatcher.SendToConnection(conn.ID, events.Success{Message: successMsg})
		return
	}
	if msg, ok := models.UserMessage(err); ok {
		s.sendError(conn, msg)
		return
	}
	logger.Log.Errorf("operation for player %s failed: %v", conn.PlayerID, err)
	s.sendError(conn, "Algo salió mal, inténtalo de nuevo")
}

func (s *GameServer) sendError(conn *session.Connection, msg string) {
	s.dispatcher.SendToConnection(conn.ID, events.Error{Message: msg})
}
