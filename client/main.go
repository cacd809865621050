package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/wfunc/cardroom/network"
)

const (
	msgTypeCreateRoom      = 101
	msgTypeJoinRoom        = 102
	msgTypeLeaveRoom       = 103
	msgTypeJoinSeat        = 104
	msgTypeLeaveSeat       = 105
	msgTypeStartGame       = 106
	msgTypeEndGame         = 107
	msgTypeProcessAutoBets = 108
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	frame, err := network.EncodeFrame(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, frame)
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	playerID := flag.String("player", "p1", "player id")
	name := flag.String("name", "Player One", "display name")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{
		Scheme:   "ws",
		Host:     *addr,
		Path:     "/ws",
		RawQuery: "player_id=" + url.QueryEscape(*playerID) + "&name=" + url.QueryEscape(*name),
	}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.DecodeFrame(message)
			if err != nil {
				log.Printf("Received invalid packet: %v", err)
				continue
			}
			log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		}
	}()

	fmt.Println("Commands: create | join CODE | leave CODE | seat CODE N | unseat CODE | start CODE | end CODE | bets CODE")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "create":
			err = send(c, msgTypeCreateRoom, map[string]interface{}{
				"room_name": "Mesa de " + *name, "max_players": 6, "min_bet": "50",
			})
		case "join":
			if len(fields) < 2 {
				continue
			}
			err = send(c, msgTypeJoinRoom, map[string]interface{}{"code": fields[1]})
		case "leave":
			if len(fields) < 2 {
				continue
			}
			err = send(c, msgTypeLeaveRoom, map[string]interface{}{"code": fields[1]})
		case "seat":
			if len(fields) < 3 {
				continue
			}
			pos, _ := strconv.Atoi(fields[2])
			err = send(c, msgTypeJoinSeat, map[string]interface{}{"code": fields[1], "position": pos})
		case "unseat":
			if len(fields) < 2 {
				continue
			}
			err = send(c, msgTypeLeaveSeat, map[string]interface{}{"code": fields[1]})
		case "start":
			if len(fields) < 2 {
				continue
			}
			err = send(c, msgTypeStartGame, map[string]interface{}{"code": fields[1]})
		case "end":
			if len(fields) < 2 {
				continue
			}
			err = send(c, msgTypeEndGame, map[string]interface{}{"code": fields[1]})
		case "bets":
			if len(fields) < 2 {
				continue
			}
			err = send(c, msgTypeProcessAutoBets, map[string]interface{}{"code": fields[1], "remove_underfunded": true})
		default:
			fmt.Println("unknown command")
			continue
		}
		if err != nil {
			log.Println("Write error:", err)
			return
		}
	}
}
