// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/network"
)

// Connection 一条活动连接。同一玩家可以持有多条（多标签页/多设备）。
type Connection struct {
	ID          string
	PlayerID    string
	Name        string
	Conn        network.Connection
	ConnectedAt time.Time

	mu         sync.Mutex
	lastActive time.Time
}

func NewConnection(id, playerID, name string, conn network.Connection) *Connection {
	now := time.Now()
	return &Connection{
		ID:          id,
		PlayerID:    playerID,
		Name:        name,
		Conn:        conn,
		ConnectedAt: now,
		lastActive:  now,
	}
}

func (c *Connection) Send(msgID uint16, data []byte) error {
	c.Touch()
	return c.Conn.Send(msgID, data)
}

// Touch marks the connection alive (heartbeat or any inbound packet).
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

func (c *Connection) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Connection) Close() error {
	return c.Conn.Close()
}

// Manager 连接注册表。连接/断开事件天然并发无序，所有结构都做了保护。
type Manager struct {
	mu       sync.RWMutex
	conns    map[string]*Connection   // connID -> connection
	byPlayer map[string][]*Connection // playerID -> connections
	hints    map[string]*models.ReconnectionHint
	hintTTL  time.Duration
}

func NewManager(hintTTL time.Duration) *Manager {
	return &Manager{
		conns:    make(map[string]*Connection),
		byPlayer: make(map[string][]*Connection),
		hints:    make(map[string]*models.ReconnectionHint),
		hintTTL:  hintTTL,
	}
}

func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ID] = conn
	m.byPlayer[conn.PlayerID] = append(m.byPlayer[conn.PlayerID], conn)
}

// Remove drops the connection. Reports the owning player and whether it
// was the player's last connection (the player is now offline).
func (m *Manager) Remove(connID string) (playerID string, wasLast bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return "", false
	}
	delete(m.conns, connID)

	playerID = conn.PlayerID
	remaining := m.byPlayer[playerID][:0]
	for _, c := range m.byPlayer[playerID] {
		if c.ID != connID {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 {
		delete(m.byPlayer, playerID)
		return playerID, true
	}
	m.byPlayer[playerID] = remaining
	return playerID, false
}

func (m *Manager) Get(connID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

func (m *Manager) GetByPlayer(playerID string) []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Connection(nil), m.byPlayer[playerID]...)
}

// IsOnline: a player is online iff their connection list is non-empty.
func (m *Manager) IsOnline(playerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byPlayer[playerID]) > 0
}

func (m *Manager) ConnectionCount(playerID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byPlayer[playerID])
}

func (m *Manager) OnlineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byPlayer)
}

// --- 重连提示 ---

func (m *Manager) RecordHint(hint *models.ReconnectionHint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hints[hint.PlayerID] = hint
}

// PeekHint returns the player's hint if present and not expired. An
// expired hint is dropped on the spot.
func (m *Manager) PeekHint(playerID string) (*models.ReconnectionHint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hint, ok := m.hints[playerID]
	if !ok {
		return nil, false
	}
	if time.Since(hint.LastSeenAt) > m.hintTTL {
		delete(m.hints, playerID)
		return nil, false
	}
	return hint, true
}

func (m *Manager) ClearHint(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hints, playerID)
}

// --- 定期清理 ---

// SweepStaleConnections closes and removes connections without a
// heartbeat inside the window. Returns the closed connections so the
// caller can run its normal disconnect path for each.
func (m *Manager) SweepStaleConnections(window time.Duration) []*Connection {
	m.mu.RLock()
	var stale []*Connection
	cutoff := time.Now().Add(-window)
	for _, conn := range m.conns {
		if conn.LastActive().Before(cutoff) {
			stale = append(stale, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range stale {
		conn.Close()
	}
	return stale
}

// SweepExpiredHints purges hints older than the TTL.
func (m *Manager) SweepExpiredHints() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-m.hintTTL)
	for playerID, hint := range m.hints {
		if hint.LastSeenAt.Before(cutoff) {
			delete(m.hints, playerID)
			removed++
		}
	}
	return removed
}
