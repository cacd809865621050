// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"sync"

	"github.com/wfunc/cardroom/events"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/session"
)

var ErrGroupNotFound = errors.New("broadcast group not found")

// groupQueueSize bounds the per-room queue. Delivery is at-most-once:
// a full queue drops the event, clients recover via snapshot replay.
const groupQueueSize = 256

// Broadcaster 通知分发接口
type Broadcaster interface {
	BroadcastToRoom(roomCode string, ev events.Event) error
	// BroadcastToRoomExcept skips one connection and/or one player's
	// connections, so the acting client can keep its optimistic update.
	BroadcastToRoomExcept(roomCode string, ev events.Event, exceptConnID, exceptPlayerID string) error
	SendToPlayer(playerID string, ev events.Event) error
	SendToConnection(connID string, ev events.Event) error
	BroadcastToAll(ev events.Event) error

	JoinGroup(roomCode, connID string)
	LeaveGroup(roomCode, connID string)
	LeaveAllGroups(connID string)
	DropGroup(roomCode string)
	// Flush blocks until every event enqueued for the room so far has
	// been handed to the connections.
	Flush(roomCode string)
}

type job struct {
	msgID          uint16
	data           []byte
	exceptConnID   string
	exceptPlayerID string
	done           chan struct{} // non-nil for flush markers
	stop           bool          // teardown marker, always the group's last job
}

// group 单个房间的广播组。所有事件经由唯一的发送协程投递，
// 保证接收方观察到的顺序与服务器发出的顺序一致。
// closed 与每次入队都在 g.mu 下判定，通道本身从不关闭：
// 发送协程收到 stop 标记后自行退出，晚到的广播变成空操作。
type group struct {
	mu      sync.RWMutex
	closed  bool
	members map[string]struct{} // connIDs
	ch      chan job
}

// enqueue hands the job to the sender goroutine. Returns false once the
// group is torn down. At-most-once: a full queue drops the job.
func (g *group) enqueue(j job) (queued, alive bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return false, false
	}
	select {
	case g.ch <- j:
		return true, true
	default:
		return false, true
	}
}

// Dispatcher fans events out to room groups, single players, or everyone.
type Dispatcher struct {
	sessions *session.Manager

	mu      sync.RWMutex
	groups  map[string]*group
	byConn  map[string]map[string]struct{} // connID -> roomCodes
}

func NewDispatcher(sessions *session.Manager) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		groups:   make(map[string]*group),
		byConn:   make(map[string]map[string]struct{}),
	}
}

func (d *Dispatcher) JoinGroup(roomCode, connID string) {
	d.mu.Lock()
	g, ok := d.groups[roomCode]
	if !ok {
		g = &group{
			members: make(map[string]struct{}),
			ch:      make(chan job, groupQueueSize),
		}
		d.groups[roomCode] = g
		go d.run(roomCode, g)
	}
	if d.byConn[connID] == nil {
		d.byConn[connID] = make(map[string]struct{})
	}
	d.byConn[connID][roomCode] = struct{}{}
	d.mu.Unlock()

	g.mu.Lock()
	g.members[connID] = struct{}{}
	g.mu.Unlock()
}

func (d *Dispatcher) LeaveGroup(roomCode, connID string) {
	d.mu.Lock()
	g, ok := d.groups[roomCode]
	if rooms := d.byConn[connID]; rooms != nil {
		delete(rooms, roomCode)
		if len(rooms) == 0 {
			delete(d.byConn, connID)
		}
	}
	d.mu.Unlock()

	if ok {
		g.mu.Lock()
		delete(g.members, connID)
		g.mu.Unlock()
	}
}

func (d *Dispatcher) LeaveAllGroups(connID string) {
	d.mu.RLock()
	var codes []string
	for code := range d.byConn[connID] {
		codes = append(codes, code)
	}
	d.mu.RUnlock()

	for _, code := range codes {
		d.LeaveGroup(code, connID)
	}
}

// DropGroup tears down the room's group and its sender goroutine.
func (d *Dispatcher) DropGroup(roomCode string) {
	d.mu.Lock()
	g, ok := d.groups[roomCode]
	if ok {
		delete(d.groups, roomCode)
		g.mu.RLock()
		for connID := range g.members {
			if rooms := d.byConn[connID]; rooms != nil {
				delete(rooms, roomCode)
				if len(rooms) == 0 {
					delete(d.byConn, connID)
				}
			}
		}
		g.mu.RUnlock()
	}
	d.mu.Unlock()

	if !ok {
		return
	}

	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	// 此后不会再有新任务入队；发送协程仍在消费，stop 标记必达。
	g.ch <- job{stop: true}
}

func (d *Dispatcher) BroadcastToRoom(roomCode string, ev events.Event) error {
	return d.BroadcastToRoomExcept(roomCode, ev, "", "")
}

func (d *Dispatcher) BroadcastToRoomExcept(roomCode string, ev events.Event, exceptConnID, exceptPlayerID string) error {
	msgID, data, err := events.Marshal(ev)
	if err != nil {
		return err
	}

	d.mu.RLock()
	g, ok := d.groups[roomCode]
	d.mu.RUnlock()
	if !ok {
		return ErrGroupNotFound
	}

	queued, alive := g.enqueue(job{msgID: msgID, data: data, exceptConnID: exceptConnID, exceptPlayerID: exceptPlayerID})
	if !alive {
		return ErrGroupNotFound
	}
	if !queued {
		// at-most-once: drop rather than block the caller
		logger.Log.Warnf("broadcast queue full for room %s, dropping msg %d", roomCode, msgID)
	}
	return nil
}

func (d *Dispatcher) Flush(roomCode string) {
	d.mu.RLock()
	g, ok := d.groups[roomCode]
	d.mu.RUnlock()
	if !ok {
		return
	}

	done := make(chan struct{})
	if queued, _ := g.enqueue(job{done: done}); queued {
		<-done
	}
}

// SendToPlayer delivers across all of the player's live connections.
func (d *Dispatcher) SendToPlayer(playerID string, ev events.Event) error {
	msgID, data, err := events.Marshal(ev)
	if err != nil {
		return err
	}

	for _, conn := range d.sessions.GetByPlayer(playerID) {
		if err := conn.Send(msgID, data); err != nil {
			logger.Log.Warnf("send to player %s conn %s failed: %v", playerID, conn.ID, err)
		}
	}
	return nil
}

func (d *Dispatcher) SendToConnection(connID string, ev events.Event) error {
	msgID, data, err := events.Marshal(ev)
	if err != nil {
		return err
	}

	conn, ok := d.sessions.Get(connID)
	if !ok {
		return nil // already disconnected, at-most-once
	}
	return conn.Send(msgID, data)
}

func (d *Dispatcher) BroadcastToAll(ev events.Event) error {
	d.mu.RLock()
	codes := make([]string, 0, len(d.groups))
	for code := range d.groups {
		codes = append(codes, code)
	}
	d.mu.RUnlock()

	for _, code := range codes {
		if err := d.BroadcastToRoom(code, ev); err != nil && !errors.Is(err, ErrGroupNotFound) {
			return err
		}
	}
	return nil
}

// run is the room's single sender goroutine; it exits on the stop marker
// enqueued by DropGroup.
func (d *Dispatcher) run(roomCode string, g *group) {
	for j := range g.ch {
		if j.stop {
			return
		}
		if j.done != nil {
			close(j.done)
			continue
		}

		g.mu.RLock()
		members := make([]string, 0, len(g.members))
		for connID := range g.members {
			members = append(members, connID)
		}
		g.mu.RUnlock()

		for _, connID := range members {
			if connID == j.exceptConnID {
				continue
			}
			conn, ok := d.sessions.Get(connID)
			if !ok {
				continue
			}
			if j.exceptPlayerID != "" && conn.PlayerID == j.exceptPlayerID {
				continue
			}
			if err := conn.Send(j.msgID, j.data); err != nil {
				logger.Log.Debugf("room %s broadcast to conn %s failed: %v", roomCode, connID, err)
			}
		}
	}
}
