// network/connection.go
package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 帧格式: 2字节消息ID + 2字节负载长度 + 负载
const (
	headerSize     = 4
	maxPayloadSize = 16 * 1024 // 最大的房间快照也远小于此值，超出按损坏帧处理
)

var (
	ErrShortFrame      = errors.New("network: frame shorter than header")
	ErrTruncatedFrame  = errors.New("network: frame shorter than declared length")
	ErrPayloadTooLarge = errors.New("network: payload exceeds limit")
)

type Packet struct {
	MsgID  uint16
	Data   []byte
	Length uint16
}

type Connection interface {
	Send(msgID uint16, data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadPacket() (*Packet, error)
}

// EncodeFrame 封包
func EncodeFrame(msgID uint16, data []byte) ([]byte, error) {
	if len(data) > maxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}
	frame := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint16(frame[0:2], msgID)
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(data)))
	copy(frame[headerSize:], data)
	return frame, nil
}

// DecodeFrame 拆包。声明长度之外的尾部字节被丢弃。
func DecodeFrame(frame []byte) (*Packet, error) {
	if len(frame) < headerSize {
		return nil, ErrShortFrame
	}
	msgID := binary.BigEndian.Uint16(frame[0:2])
	length := binary.BigEndian.Uint16(frame[2:4])

	if int(length) > maxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, length)
	}
	if len(frame) < headerSize+int(length) {
		return nil, ErrTruncatedFrame
	}
	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   frame[headerSize : headerSize+int(length)],
	}, nil
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	conn.SetReadLimit(headerSize + maxPayloadSize)
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(msgID uint16, data []byte) error {
	frame, err := EncodeFrame(msgID, data)
	if err != nil {
		return err
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *WSConnection) ReadPacket() (*Packet, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	// 心跳窗口内收到任何帧都顺延读超时
	if c.heartbeat > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.heartbeat))
	}
	return DecodeFrame(data)
}

// SetHeartbeat arms the read deadline: a connection silent for the whole
// window fails its next read and runs the normal disconnect path.
func (c *WSConnection) SetHeartbeat(window time.Duration) {
	c.heartbeat = window
	c.conn.SetReadDeadline(time.Now().Add(window))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
