package network

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"code":"ROOM01"}`)

	frame, err := EncodeFrame(MsgTypeJoinRoom, payload)
	require.NoError(t, err)
	require.Len(t, frame, headerSize+len(payload))

	packet, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, uint16(MsgTypeJoinRoom), packet.MsgID)
	assert.Equal(t, uint16(len(payload)), packet.Length)
	assert.Equal(t, payload, packet.Data)
}

func TestEncodeFrame_EmptyPayload(t *testing.T) {
	frame, err := EncodeFrame(MsgTypeHeartbeat, nil)
	require.NoError(t, err)
	require.Len(t, frame, headerSize)

	packet, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, uint16(MsgTypeHeartbeat), packet.MsgID)
	assert.Empty(t, packet.Data)
}

func TestEncodeFrame_PayloadTooLarge(t *testing.T) {
	_, err := EncodeFrame(MsgTypeJoinRoom, bytes.Repeat([]byte{'a'}, maxPayloadSize+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecodeFrame_ShortFrame(t *testing.T) {
	_, err := DecodeFrame([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestDecodeFrame_TruncatedFrame(t *testing.T) {
	frame, err := EncodeFrame(MsgTypeJoinRoom, []byte("abcdef"))
	require.NoError(t, err)

	_, err = DecodeFrame(frame[:len(frame)-2])
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestDecodeFrame_DeclaredLengthTooLarge(t *testing.T) {
	// header claiming a payload beyond the limit, regardless of actual size
	frame := []byte{0x00, 0x65, 0xff, 0xff}
	_, err := DecodeFrame(frame)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecodeFrame_TrailingBytesIgnored(t *testing.T) {
	frame, err := EncodeFrame(MsgTypeJoinRoom, []byte("abc"))
	require.NoError(t, err)
	frame = append(frame, 0xde, 0xad)

	packet, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), packet.Data)
}
