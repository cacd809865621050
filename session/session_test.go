package session

import (
	"net"
	"testing"
	"time"

	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(msgID uint16, data []byte) error { return nil }
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func newTestConnection(id, playerID string) *Connection {
	return NewConnection(id, playerID, "Player "+playerID, &MockConnection{})
}

func TestManager_AddAndGet(t *testing.T) {
	m := NewManager(2 * time.Hour)

	conn := newTestConnection("c1", "p1")
	m.Add(conn)

	got, ok := m.Get("c1")
	if !ok {
		t.Fatal("Get should find the registered connection")
	}
	if got != conn {
		t.Error("Get should return the same connection instance")
	}
	if !m.IsOnline("p1") {
		t.Error("player with a connection must be online")
	}
}

func TestManager_MultipleConnectionsPerPlayer(t *testing.T) {
	m := NewManager(2 * time.Hour)

	m.Add(newTestConnection("c1", "p1"))
	m.Add(newTestConnection("c2", "p1"))

	if count := m.ConnectionCount("p1"); count != 2 {
		t.Fatalf("expected 2 connections for p1, got %d", count)
	}

	playerID, wasLast := m.Remove("c1")
	if playerID != "p1" || wasLast {
		t.Errorf("removing one of two connections: got player %q wasLast %v", playerID, wasLast)
	}
	if !m.IsOnline("p1") {
		t.Error("player should remain online while a connection is left")
	}

	playerID, wasLast = m.Remove("c2")
	if playerID != "p1" || !wasLast {
		t.Errorf("removing the last connection: got player %q wasLast %v", playerID, wasLast)
	}
	if m.IsOnline("p1") {
		t.Error("player without connections must be offline")
	}
}

func TestManager_RemoveUnknownConnection(t *testing.T) {
	m := NewManager(2 * time.Hour)

	playerID, wasLast := m.Remove("missing")
	if playerID != "" || wasLast {
		t.Errorf("unknown connection: got player %q wasLast %v", playerID, wasLast)
	}
}

func TestManager_Hints(t *testing.T) {
	m := NewManager(2 * time.Hour)

	m.RecordHint(&models.ReconnectionHint{
		PlayerID:     "p1",
		LastRoomCode: "ROOM01",
		LastSeenAt:   time.Now(),
		WasInGame:    true,
	})

	hint, ok := m.PeekHint("p1")
	if !ok {
		t.Fatal("PeekHint should return the recorded hint")
	}
	if hint.LastRoomCode != "ROOM01" || !hint.WasInGame {
		t.Errorf("unexpected hint contents: %+v", hint)
	}

	m.ClearHint("p1")
	if _, ok := m.PeekHint("p1"); ok {
		t.Error("cleared hint should not be returned")
	}
}

func TestManager_ExpiredHintIsDropped(t *testing.T) {
	m := NewManager(time.Minute)

	m.RecordHint(&models.ReconnectionHint{
		PlayerID:   "p1",
		LastSeenAt: time.Now().Add(-2 * time.Minute),
	})

	if _, ok := m.PeekHint("p1"); ok {
		t.Error("expired hint must not be returned")
	}
}

func TestManager_SweepExpiredHints(t *testing.T) {
	m := NewManager(time.Minute)

	m.RecordHint(&models.ReconnectionHint{PlayerID: "old", LastSeenAt: time.Now().Add(-time.Hour)})
	m.RecordHint(&models.ReconnectionHint{PlayerID: "fresh", LastSeenAt: time.Now()})

	if removed := m.SweepExpiredHints(); removed != 1 {
		t.Fatalf("expected 1 hint swept, got %d", removed)
	}
	if _, ok := m.PeekHint("fresh"); !ok {
		t.Error("fresh hint should survive the sweep")
	}
}

func TestManager_SweepStaleConnections(t *testing.T) {
	m := NewManager(2 * time.Hour)
	m.Add(newTestConnection("c1", "p1"))

	time.Sleep(5 * time.Millisecond)

	stale := m.SweepStaleConnections(time.Millisecond)
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale connection, got %d", len(stale))
	}
	if stale[0].ID != "c1" {
		t.Errorf("expected c1 swept, got %s", stale[0].ID)
	}
}
