// rpc/rpc.go
package rpc

import (
	"context"
	"net"
	"net/rpc"

	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/persistence"
)

// Server manages the RPC listener for the ops surface.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes read-only room and balance queries over net/rpc.
type AdminService struct {
	store persistence.Store
}

func NewAdminService(store persistence.Store) *AdminService {
	return &AdminService{store: store}
}

type RoomInfo struct {
	Code    string
	Status  string
	Members int
	TableID string
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []RoomInfo
}

func (a *AdminService) ListActiveRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	rooms, err := a.store.ListActive(context.Background())
	if err != nil {
		return err
	}
	for _, r := range rooms {
		reply.Rooms = append(reply.Rooms, RoomInfo{
			Code:    r.Code,
			Status:  r.Status.String(),
			Members: r.MemberCount(),
			TableID: r.TableID,
		})
	}
	return nil
}

type GetBalanceArgs struct {
	PlayerID string
}

type GetBalanceReply struct {
	Balance string
}

func (a *AdminService) GetPlayerBalance(args *GetBalanceArgs, reply *GetBalanceReply) error {
	balance, err := a.store.GetPlayerBalance(context.Background(), args.PlayerID)
	if err != nil {
		return err
	}
	reply.Balance = balance.String()
	return nil
}
