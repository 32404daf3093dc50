package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ding-server/auth"
	"ding-server/game"
	"ding-server/room"
	"ding-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	UID  string
	Name string

	Room *room.Room
	Sub  *room.Subscriber
}

// ReadPump pumps messages from the websocket connection to the hub.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("Invalid message format.")
		return
	}

	switch envelope.Type {
	case "auth":
		c.handleAuth(envelope.Raw)
	case "create_room":
		c.handleCreateRoom(envelope.Raw)
	case "join_room":
		c.handleJoinRoom(envelope.Raw)
	case "leave_room":
		c.roomAction(room.Action{Type: room.ActionLeaveRoom, Seat: -1})
		c.Room = nil
		c.Sub = nil
	case "add_seat":
		c.handleAddSeat(envelope.Raw)
	case "vote_start":
		c.roomAction(room.Action{Type: room.ActionVoteStart, Seat: -1})
	case "start_game":
		c.roomAction(room.Action{Type: room.ActionStartGame, Seat: -1})
	case "deal":
		c.handleSeatAction(envelope.Raw, room.ActionDealNext)
	case "fold":
		c.handleSeatAction(envelope.Raw, room.ActionFold)
	case "swap":
		c.handleSwap(envelope.Raw)
	case "play_card":
		c.handlePlayCard(envelope.Raw)
	case "new_game":
		c.roomAction(room.Action{Type: room.ActionNewGame, Seat: -1})
	case "update_settings":
		c.handleUpdateSettings(envelope.Raw)
	case "kick":
		c.handleTargetSeat(envelope.Raw, room.ActionKick)
	case "make_host":
		c.handleTargetSeat(envelope.Raw, room.ActionMakeHost)
	case "chat":
		c.handleChat(envelope.Raw)
	case "like":
		c.handleLike(envelope.Raw)
	case "ack_turn":
		c.handleAckTurn(envelope.Raw)
	case "resync":
		c.roomAction(room.Action{Type: room.ActionResync, Seat: -1})
	default:
		c.sendError("Unknown message type: " + envelope.Type)
	}
}

func (c *Client) handleAuth(raw json.RawMessage) {
	var msg AuthMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid auth message.")
		return
	}
	if c.Hub.Config.AuthBaseURL == "" {
		c.sendError("Server auth not configured.")
		return
	}
	claims, err := auth.ValidateToken(c.Hub.Config.AuthBaseURL, msg.Token)
	if err != nil {
		c.sendError("Authentication failed.")
		return
	}
	c.UID = auth.UserIDFromClaims(claims)
	if c.UID == "" {
		c.sendError("Authentication failed.")
		return
	}
	c.Name = auth.DisplayNameFromClaims(claims)

	ok := AuthOKMsg{Type: "auth_ok", UserID: c.UID, Name: c.Name}
	data, _ := json.Marshal(ok)
	wsutil.SafeSend(c.Send, data)
}

func (c *Client) handleCreateRoom(raw json.RawMessage) {
	var msg CreateRoomMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid create_room message.")
		return
	}
	if c.Room != nil {
		c.sendError("Already in a room.")
		return
	}
	if !msg.Hotseat && c.UID == "" {
		c.sendError("Sign in to create a multiplayer room.")
		return
	}
	name := c.playerName(msg.Name)
	if name == "" {
		c.sendError(fmt.Sprintf("Name must be between 1 and %d characters.", c.Hub.Config.MaxNameLength))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r, err := c.Hub.Manager.CreateRoom(ctx, msg.RoomName, name, msg.Hotseat)
	if err != nil {
		log.Printf("CreateRoom: %v", err)
		c.sendError("Could not create the room.")
		return
	}
	c.enterRoom(r, name)
}

func (c *Client) handleJoinRoom(raw json.RawMessage) {
	var msg JoinRoomMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid join_room message.")
		return
	}
	if c.Room != nil {
		c.sendError("Already in a room.")
		return
	}
	if c.UID == "" {
		c.sendError("Sign in to join a multiplayer room.")
		return
	}
	name := c.playerName(msg.Name)
	if name == "" {
		c.sendError(fmt.Sprintf("Name must be between 1 and %d characters.", c.Hub.Config.MaxNameLength))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r, err := c.Hub.Manager.GetRoom(ctx, msg.RoomCode)
	if err != nil {
		c.sendError("Room not found.")
		return
	}
	c.enterRoom(r, name)
}

// enterRoom registers the client as a room subscriber and joins a seat.
func (c *Client) enterRoom(r *room.Room, name string) {
	sub := &room.Subscriber{UID: c.UID, Name: name, Send: c.Send}
	c.Room = r
	c.Sub = sub
	c.Name = name

	joined := RoomJoinedMsg{
		Type:     "room_joined",
		RoomCode: r.Code,
		RoomName: r.Name,
		Hotseat:  r.Hotseat,
	}
	data, _ := json.Marshal(joined)
	wsutil.SafeSend(c.Send, data)

	r.Actions <- room.Action{Type: room.ActionJoin, Sub: sub, Seat: -1}
}

// playerName validates and trims a display name, preferring the
// authenticated profile name when the message carries none.
func (c *Client) playerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.Name
	}
	if name == "" || len(name) > c.Hub.Config.MaxNameLength {
		return ""
	}
	return name
}

func (c *Client) handleAddSeat(raw json.RawMessage) {
	var msg AddSeatMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid add_seat message.")
		return
	}
	name := strings.TrimSpace(msg.Name)
	if name == "" || len(name) > c.Hub.Config.MaxNameLength {
		c.sendError(fmt.Sprintf("Name must be between 1 and %d characters.", c.Hub.Config.MaxNameLength))
		return
	}
	c.roomAction(room.Action{Type: room.ActionAddSeat, Name: name, Seat: -1})
}

func (c *Client) handleSeatAction(raw json.RawMessage, t room.ActionType) {
	var msg SeatMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid message.")
		return
	}
	c.roomAction(room.Action{Type: t, Seat: seatOrOwn(msg.Seat)})
}

func (c *Client) handleSwap(raw json.RawMessage) {
	var msg SwapMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid swap message.")
		return
	}
	c.roomAction(room.Action{
		Type:     room.ActionSwap,
		Seat:     seatOrOwn(msg.Seat),
		Discards: msg.CardIDs,
	})
}

func (c *Client) handlePlayCard(raw json.RawMessage) {
	var msg PlayCardMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid play_card message.")
		return
	}
	if msg.CardID == "" {
		c.sendError("play_card needs a cardId.")
		return
	}
	c.roomAction(room.Action{
		Type:   room.ActionPlayCard,
		Seat:   seatOrOwn(msg.Seat),
		CardID: msg.CardID,
	})
}

func (c *Client) handleUpdateSettings(raw json.RawMessage) {
	var msg SettingsMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid update_settings message.")
		return
	}
	settings := game.DefaultSettings()
	if err := json.Unmarshal(msg.Settings, &settings); err != nil {
		c.sendError("Invalid settings payload.")
		return
	}
	c.roomAction(room.Action{Type: room.ActionUpdateSettings, Settings: &settings, Seat: -1})
}

func (c *Client) handleTargetSeat(raw json.RawMessage, t room.ActionType) {
	var msg TargetSeatMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid message.")
		return
	}
	c.roomAction(room.Action{Type: t, Seat: msg.Seat})
}

func (c *Client) handleChat(raw json.RawMessage) {
	var msg ChatMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid chat message.")
		return
	}
	c.roomAction(room.Action{Type: room.ActionChat, Text: msg.Text, Seat: -1})
}

func (c *Client) handleLike(raw json.RawMessage) {
	var msg LikeMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid like message.")
		return
	}
	c.roomAction(room.Action{Type: room.ActionLike, EntryID: msg.EntryID, Seat: -1})
}

func (c *Client) handleAckTurn(raw json.RawMessage) {
	var msg AckTurnMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid ack_turn message.")
		return
	}
	c.roomAction(room.Action{Type: room.ActionAckTurn, TurnKey: msg.TurnKey, Seat: -1})
}

// roomAction forwards an action to the client's room, stamping the
// subscriber in.
func (c *Client) roomAction(a room.Action) {
	if c.Room == nil || c.Sub == nil {
		c.sendError("You are not in a room.")
		return
	}
	a.Sub = c.Sub
	select {
	case c.Room.Actions <- a:
	case <-c.Room.Done:
		c.sendError("The room has closed.")
		c.Room = nil
		c.Sub = nil
	}
}

func (c *Client) sendError(message string) {
	msg := ErrorMsg{Type: "error", Message: message}
	data, _ := json.Marshal(msg)
	wsutil.SafeSend(c.Send, data)
}

// seatOrOwn converts an optional wire seat into the internal convention:
// -1 means "the sender's own seat".
func seatOrOwn(seat *int) int {
	if seat == nil {
		return -1
	}
	return *seat
}
