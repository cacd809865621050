package main

import (
	"context"
	"net/rpc"

	"github.com/wfunc/cardroom/broadcast"
	"github.com/wfunc/cardroom/config"
	"github.com/wfunc/cardroom/locks"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/monitor"
	"github.com/wfunc/cardroom/persistence"
	"github.com/wfunc/cardroom/room"
	cardroom_rpc "github.com/wfunc/cardroom/rpc"
	"github.com/wfunc/cardroom/seats"
	"github.com/wfunc/cardroom/server"
	"github.com/wfunc/cardroom/services"
	"github.com/wfunc/cardroom/session"
	"github.com/wfunc/cardroom/timer"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.Init(cfg.Log.Development)

	// Initialize Database
	store, err := newStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Core wiring
	sessions := session.NewManager(cfg.Cleanup.HintTTLDuration())
	seatStore := seats.NewStore(cfg.Room.MaxSeats)
	locker := locks.NewKeyedMutex()
	dispatcher := broadcast.NewDispatcher(sessions)
	roomService := room.NewService(store, seatStore, locker, sessions, dispatcher, cfg.Room)
	coordinator := room.NewCoordinator(store, sessions, dispatcher, roomService)
	playerService := services.NewPlayerService(store)
	autobetService := services.NewAutoBetService(store, seatStore, playerService, dispatcher, roomService.Registry())

	mon := monitor.NewMonitor("cardroom")
	mon.StartServer(cfg.Server.MetricsAddress)

	// 定期清理：僵尸连接与过期重连提示都不走交互路径
	timers := timer.NewManager()
	defer timers.Stop()
	sweep := cfg.Cleanup.SweepIntervalDuration()
	timers.Schedule(sweep, sweep, func() {
		stale := sessions.SweepStaleConnections(cfg.Cleanup.HeartbeatWindowDuration())
		if len(stale) > 0 {
			logger.Log.Infof("swept %d stale connections", len(stale))
		}
	})
	timers.Schedule(sweep, sweep, func() {
		if n := sessions.SweepExpiredHints(); n > 0 {
			logger.Log.Infof("swept %d expired reconnection hints", n)
		}
	})
	timers.Schedule(sweep, sweep, func() {
		rooms, err := store.ListActive(context.Background())
		if err != nil {
			logger.Log.Warnf("active room count refresh failed: %v", err)
			return
		}
		mon.SetActiveRooms(len(rooms))
	})

	// RPC ops surface
	rpcServer, err := cardroom_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	rpc.Register(cardroom_rpc.NewAdminService(store))
	go rpcServer.Start()
	defer rpcServer.Stop()

	// Start Server
	gameServer := server.NewGameServer(*cfg, sessions, roomService, coordinator, autobetService, dispatcher, mon)
	logger.Log.Infof("Starting card-room server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func newStore(cfg *config.Config) (persistence.Store, error) {
	pg := cfg.Database.Postgres
	switch cfg.Database.Driver {
	case "pq":
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "memory":
		return persistence.NewMemoryStore(), nil
	default:
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
}
