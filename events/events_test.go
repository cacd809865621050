package events

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/network"
)

func TestMarshal_WireID(t *testing.T) {
	cases := []struct {
		ev   Event
		want uint16
	}{
		{RoomCreated{}, network.MsgTypeRoomCreated},
		{RoomSnapshot{}, network.MsgTypeRoomSnapshot},
		{PlayerJoined{}, network.MsgTypePlayerJoined},
		{AutoBetProcessed{}, network.MsgTypeAutoBetProcessed},
		{PlayerRemovedFromSeat{}, network.MsgTypePlayerRemovedFromSeat},
		{Error{}, network.MsgTypeError},
	}

	for _, c := range cases {
		msgID, _, err := Marshal(c.ev)
		require.NoError(t, err)
		assert.Equal(t, c.want, msgID)
	}
}

func TestMarshal_Payload(t *testing.T) {
	msgID, data, err := Marshal(PlayerBalanceUpdated{
		PlayerID:   "p1",
		OldBalance: decimal.NewFromInt(100),
		NewBalance: decimal.NewFromInt(50),
		Deducted:   decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	assert.Equal(t, uint16(network.MsgTypePlayerBalanceUpdated), msgID)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "p1", decoded["player_id"])
	assert.Equal(t, "50", decoded["deducted"], "money travels as a decimal string, never a float")
}

func TestMarshal_SnapshotSeats(t *testing.T) {
	pos := 2
	_, data, err := Marshal(RoomSnapshot{Room: models.RoomSnapshot{
		Code: "ROOM01",
		Members: []models.SnapshotMember{
			{PlayerID: "p1", SeatPosition: &pos},
			{PlayerID: "p2"},
		},
	}})
	require.NoError(t, err)

	var decoded struct {
		Room struct {
			Members []struct {
				PlayerID     string `json:"player_id"`
				SeatPosition *int   `json:"seat_position"`
			} `json:"members"`
		} `json:"room"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Room.Members, 2)
	require.NotNil(t, decoded.Room.Members[0].SeatPosition)
	assert.Equal(t, 2, *decoded.Room.Members[0].SeatPosition)
	assert.Nil(t, decoded.Room.Members[1].SeatPosition, "an unseated member omits the position")
}
