// models/models.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoomStatus 表示房间的生命周期状态
type RoomStatus int

const (
	StatusWaitingForPlayers RoomStatus = iota
	StatusInProgress
	StatusCompleted
	StatusPaused
	StatusCancelled
	StatusClosed
)

func (s RoomStatus) String() string {
	switch s {
	case StatusWaitingForPlayers:
		return "waiting_for_players"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusPaused:
		return "paused"
	case StatusCancelled:
		return "cancelled"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// Room 房间聚合。Version 是乐观并发令牌，由存储层在每次写入时递增。
type Room struct {
	Code           string          `json:"code"`
	Status         RoomStatus      `json:"status"`
	HostPlayerID   string          `json:"host_player_id"`
	MaxPlayers     int             `json:"max_players"`
	MinBetPerRound decimal.Decimal `json:"min_bet_per_round"`
	Members        []RoomMember    `json:"members"`
	Spectators     []Spectator     `json:"spectators"`
	TableID        string          `json:"table_id,omitempty"`
	Version        int64           `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Member returns the member with the given player id, if present.
func (r *Room) Member(playerID string) (*RoomMember, bool) {
	for i := range r.Members {
		if r.Members[i].PlayerID == playerID {
			return &r.Members[i], true
		}
	}
	return nil, false
}

func (r *Room) IsMember(playerID string) bool {
	_, ok := r.Member(playerID)
	return ok
}

func (r *Room) AddMember(m RoomMember) {
	r.Members = append(r.Members, m)
}

// RemoveMember drops the member and any spectator record for the player.
// Returns true when something was removed.
func (r *Room) RemoveMember(playerID string) bool {
	removed := false
	for i := range r.Members {
		if r.Members[i].PlayerID == playerID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			removed = true
			break
		}
	}
	for i := range r.Spectators {
		if r.Spectators[i].PlayerID == playerID {
			r.Spectators = append(r.Spectators[:i], r.Spectators[i+1:]...)
			removed = true
			break
		}
	}
	return removed
}

func (r *Room) MemberCount() int {
	return len(r.Members)
}

// RoomMember 房间成员。没有座位的成员只是观战，不参与结算。
type RoomMember struct {
	PlayerID      string          `json:"player_id"`
	Name          string          `json:"name"`
	SeatPosition  *int            `json:"seat_position,omitempty"`
	IsHost        bool            `json:"is_host"`
	IsReady       bool            `json:"is_ready"`
	HasPlayedTurn bool            `json:"has_played_turn"`
	Balance       decimal.Decimal `json:"balance"`
}

type Spectator struct {
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// ReconnectionHint 断线提示，玩家最后一条连接断开时写入。
type ReconnectionHint struct {
	PlayerID     string    `json:"player_id"`
	LastRoomCode string    `json:"last_room_code,omitempty"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	WasInGame    bool      `json:"was_in_game"`
}

// AutoBetOutcome classifies a single player's settlement result.
type AutoBetOutcome string

const (
	OutcomeBetDeducted       AutoBetOutcome = "bet_deducted"
	OutcomeInsufficientFunds AutoBetOutcome = "insufficient_funds"
	OutcomeRemovedFromSeat   AutoBetOutcome = "removed_from_seat"
	OutcomeFailed            AutoBetOutcome = "failed"
)

// AutoBetPlayerResult 单个玩家的结算结果，结算调用内一次性产生。
type AutoBetPlayerResult struct {
	PlayerID        string          `json:"player_id"`
	SeatPosition    int             `json:"seat_position"`
	Outcome         AutoBetOutcome  `json:"outcome"`
	OriginalBalance decimal.Decimal `json:"original_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	BetAmount       decimal.Decimal `json:"bet_amount"`
	Error           string          `json:"error,omitempty"`
}

// AutoBetSummary aggregates one settlement invocation.
type AutoBetSummary struct {
	RoomCode                string                `json:"room_code"`
	Round                   int64                 `json:"round"`
	TotalPlayersProcessed   int                   `json:"total_players_processed"`
	SuccessfulBets          int                   `json:"successful_bets"`
	FailedBets              int                   `json:"failed_bets"`
	PlayersRemovedFromSeats int                   `json:"players_removed_from_seats"`
	InsufficientFunds       int                   `json:"insufficient_funds"`
	TotalAmountProcessed    decimal.Decimal       `json:"total_amount_processed"`
	SuccessRate             float64               `json:"success_rate"`
	HasErrors               bool                  `json:"has_errors"`
	Results                 []AutoBetPlayerResult `json:"results"`
}

// SnapshotMember is a member as seen by clients, with the live seat filled in.
type SnapshotMember struct {
	PlayerID     string          `json:"player_id"`
	Name         string          `json:"name"`
	SeatPosition *int            `json:"seat_position,omitempty"`
	IsHost       bool            `json:"is_host"`
	IsReady      bool            `json:"is_ready"`
	Balance      decimal.Decimal `json:"balance"`
	Online       bool            `json:"online"`
}

// RoomSnapshot 客户端可见的完整房间视图，广播与重连回放都使用它。
type RoomSnapshot struct {
	Code               string           `json:"code"`
	Status             string           `json:"status"`
	HostPlayerID       string           `json:"host_player_id"`
	MaxPlayers         int              `json:"max_players"`
	MinBetPerRound     decimal.Decimal  `json:"min_bet_per_round"`
	TableID            string           `json:"table_id,omitempty"`
	Members            []SnapshotMember `json:"members"`
	Spectators         []Spectator      `json:"spectators"`
	AvailablePositions []int            `json:"available_positions"`
}
