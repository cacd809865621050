// seats/seats.go
package seats

import (
	"errors"
	"sort"
	"sync"
)

// 座位操作错误，由上层映射成对用户可见的消息
var (
	ErrInvalidPosition = errors.New("seats: position out of range")
	ErrPositionTaken   = errors.New("seats: position already taken")
	ErrNoSeat          = errors.New("seats: player holds no seat")
)

// Store 座位分配表，纯内存。每个房间一个条目，座位状态不落盘：
// 进程重启后座位表重建为空，这是显式的一致性取舍（高频UI操作不
// 走持久化网关）。
type Store struct {
	mu           sync.RWMutex
	maxPositions int
	rooms        map[string]*roomSeats
}

// roomSeats 单个房间的座位表。不同房间互不竞争。
type roomSeats struct {
	mu       sync.Mutex
	byPlayer map[string]int
}

func NewStore(maxPositions int) *Store {
	return &Store{
		maxPositions: maxPositions,
		rooms:        make(map[string]*roomSeats),
	}
}

// InitRoom seeds an empty seat map for a freshly created room.
func (s *Store) InitRoom(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		s.rooms[code] = &roomSeats{byPlayer: make(map[string]int)}
	}
}

// DropRoom removes the room's seat map entirely (room deleted).
func (s *Store) DropRoom(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}

// ResetRoom clears all assignments but keeps the room tracked (round end).
func (s *Store) ResetRoom(code string) {
	rs, ok := s.room(code)
	if !ok {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.byPlayer = make(map[string]int)
}

// Assign seats the player at position, silently vacating any seat the
// player already held. A player holds at most one seat.
func (s *Store) Assign(code, playerID string, position int) error {
	if position < 0 || position >= s.maxPositions {
		return ErrInvalidPosition
	}
	rs := s.roomOrCreate(code)

	rs.mu.Lock()
	defer rs.mu.Unlock()

	for p, pos := range rs.byPlayer {
		if pos == position && p != playerID {
			return ErrPositionTaken
		}
	}
	rs.byPlayer[playerID] = position
	return nil
}

// Vacate removes the player's seat. Returns the freed position.
func (s *Store) Vacate(code, playerID string) (int, error) {
	rs, ok := s.room(code)
	if !ok {
		return 0, ErrNoSeat
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	pos, ok := rs.byPlayer[playerID]
	if !ok {
		return 0, ErrNoSeat
	}
	delete(rs.byPlayer, playerID)
	return pos, nil
}

// Position returns the player's seat, if seated.
func (s *Store) Position(code, playerID string) (int, bool) {
	rs, ok := s.room(code)
	if !ok {
		return 0, false
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	pos, ok := rs.byPlayer[playerID]
	return pos, ok
}

// Occupant returns the player seated at position, if any.
func (s *Store) Occupant(code string, position int) (string, bool) {
	rs, ok := s.room(code)
	if !ok {
		return "", false
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for p, pos := range rs.byPlayer {
		if pos == position {
			return p, true
		}
	}
	return "", false
}

// AvailablePositions lists the free positions in ascending order.
func (s *Store) AvailablePositions(code string) []int {
	taken := make(map[int]bool)
	if rs, ok := s.room(code); ok {
		rs.mu.Lock()
		for _, pos := range rs.byPlayer {
			taken[pos] = true
		}
		rs.mu.Unlock()
	}

	free := make([]int, 0, s.maxPositions)
	for i := 0; i < s.maxPositions; i++ {
		if !taken[i] {
			free = append(free, i)
		}
	}
	return free
}

// Snapshot returns a copy of the room's player→seat map.
func (s *Store) Snapshot(code string) map[string]int {
	out := make(map[string]int)
	rs, ok := s.room(code)
	if !ok {
		return out
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for p, pos := range rs.byPlayer {
		out[p] = pos
	}
	return out
}

// SeatedPlayers lists seated player ids ordered by position, so callers
// iterating the table walk it deterministically.
func (s *Store) SeatedPlayers(code string) []string {
	snap := s.Snapshot(code)
	players := make([]string, 0, len(snap))
	for p := range snap {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return snap[players[i]] < snap[players[j]]
	})
	return players
}

func (s *Store) room(code string) (*roomSeats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.rooms[code]
	return rs, ok
}

// roomOrCreate lazily creates the seat map. Rooms reloaded after a cold
// start reconstruct to an empty table here, there is no seat durability.
func (s *Store) roomOrCreate(code string) *roomSeats {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[code]
	if !ok {
		rs = &roomSeats{byPlayer: make(map[string]int)}
		s.rooms[code] = rs
	}
	return rs
}
