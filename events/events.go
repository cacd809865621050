// events/events.go
//
// Every server-to-client broadcast is one of the closed set of variants
// below, each with a fixed schema and wire id. Payloads are marshalled
// once at the dispatch boundary; handlers never ship open maps.
package events

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/network"
)

// Event is a named broadcast variant.
type Event interface {
	Type() uint16
}

// Marshal encodes the event for the wire.
func Marshal(ev Event) (uint16, []byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return 0, nil, err
	}
	return ev.Type(), data, nil
}

type RoomCreated struct {
	Room models.RoomSnapshot `json:"room"`
}

func (RoomCreated) Type() uint16 { return network.MsgTypeRoomCreated }

type RoomJoined struct {
	Room models.RoomSnapshot `json:"room"`
}

func (RoomJoined) Type() uint16 { return network.MsgTypeRoomJoined }

type RoomInfoUpdated struct {
	Room models.RoomSnapshot `json:"room"`
}

func (RoomInfoUpdated) Type() uint16 { return network.MsgTypeRoomInfoUpdated }

type PlayerJoined struct {
	RoomCode    string `json:"room_code"`
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	AsSpectator bool   `json:"as_spectator"`
}

func (PlayerJoined) Type() uint16 { return network.MsgTypePlayerJoined }

type PlayerLeft struct {
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
}

func (PlayerLeft) Type() uint16 { return network.MsgTypePlayerLeft }

// RoomSnapshot replays the full current room view, used on reconnection.
type RoomSnapshot struct {
	Room models.RoomSnapshot `json:"room"`
}

func (RoomSnapshot) Type() uint16 { return network.MsgTypeRoomSnapshot }

type AutoBetProcessingStarted struct {
	RoomCode         string          `json:"room_code"`
	Round            int64           `json:"round"`
	PlayersToProcess int             `json:"players_to_process"`
	ExpectedTotal    decimal.Decimal `json:"expected_total"`
}

func (AutoBetProcessingStarted) Type() uint16 { return network.MsgTypeAutoBetProcessingStarted }

type AutoBetProcessed struct {
	RoomCode                string          `json:"room_code"`
	Round                   int64           `json:"round"`
	TotalPlayersProcessed   int             `json:"total_players_processed"`
	SuccessfulBets          int             `json:"successful_bets"`
	FailedBets              int             `json:"failed_bets"`
	PlayersRemovedFromSeats int             `json:"players_removed_from_seats"`
	TotalAmountProcessed    decimal.Decimal `json:"total_amount_processed"`
	SuccessRate             float64         `json:"success_rate"`
	HasErrors               bool            `json:"has_errors"`
}

func (AutoBetProcessed) Type() uint16 { return network.MsgTypeAutoBetProcessed }

type PlayerRemovedFromSeat struct {
	RoomCode     string `json:"room_code"`
	PlayerID     string `json:"player_id"`
	SeatPosition int    `json:"seat_position"`
	Reason       string `json:"reason"`
}

func (PlayerRemovedFromSeat) Type() uint16 { return network.MsgTypePlayerRemovedFromSeat }

type PlayerBalanceUpdated struct {
	PlayerID   string          `json:"player_id"`
	OldBalance decimal.Decimal `json:"old_balance"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Deducted   decimal.Decimal `json:"deducted"`
}

func (PlayerBalanceUpdated) Type() uint16 { return network.MsgTypePlayerBalanceUpdated }

type InsufficientFundsWarning struct {
	PlayerID string          `json:"player_id"`
	Balance  decimal.Decimal `json:"balance"`
	Required decimal.Decimal `json:"required"`
}

func (InsufficientFundsWarning) Type() uint16 { return network.MsgTypeInsufficientFundsWarning }

type AutoBetRoundSummary struct {
	Summary       models.AutoBetSummary `json:"summary"`
	Notifications []string              `json:"notifications"`
}

func (AutoBetRoundSummary) Type() uint16 { return network.MsgTypeAutoBetRoundSummary }

type Error struct {
	Message string `json:"message"`
}

func (Error) Type() uint16 { return network.MsgTypeError }

type Success struct {
	Message string `json:"message"`
}

func (Success) Type() uint16 { return network.MsgTypeSuccess }
