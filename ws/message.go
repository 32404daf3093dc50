package ws

import "encoding/json"

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	// Unmarshal just the type field
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// --- Client-to-Server message payloads ---

// AuthMsg is sent by the client as the first message with a JWT.
// Required before any multiplayer room action; hotseat play works without it.
type AuthMsg struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// CreateRoomMsg creates a room. RoomName is optional and defaults to
// "<Name>'s Lobby".
type CreateRoomMsg struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	RoomName string `json:"roomName"`
	Hotseat  bool   `json:"hotseat"`
}

// JoinRoomMsg joins an existing room by code.
type JoinRoomMsg struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

// AddSeatMsg seats an extra local player in a hotseat room.
type AddSeatMsg struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// SeatMsg addresses a seat directly. Seat is only honored in hotseat
// rooms; multiplayer clients always act as their own seat.
type SeatMsg struct {
	Type string `json:"type"`
	Seat *int   `json:"seat,omitempty"`
}

// SwapMsg exchanges up to three cards during the swap round.
type SwapMsg struct {
	Type    string   `json:"type"`
	Seat    *int     `json:"seat,omitempty"`
	CardIDs []string `json:"cardIds"`
}

// PlayCardMsg plays one card into the current trick.
type PlayCardMsg struct {
	Type   string `json:"type"`
	Seat   *int   `json:"seat,omitempty"`
	CardID string `json:"cardId"`
}

// TargetSeatMsg addresses another seat (kick, make_host).
type TargetSeatMsg struct {
	Type string `json:"type"`
	Seat int    `json:"seat"`
}

// SettingsMsg replaces the room settings (host only, lobby only).
type SettingsMsg struct {
	Type     string          `json:"type"`
	Settings json.RawMessage `json:"settings"`
}

// ChatMsg posts a chat line to the room log.
type ChatMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// LikeMsg toggles a like on a room log entry.
type LikeMsg struct {
	Type    string `json:"type"`
	EntryID string `json:"entryId"`
}

// AckTurnMsg acknowledges that the player has seen their turn, which
// suppresses the delayed notification recheck.
type AckTurnMsg struct {
	Type    string `json:"type"`
	TurnKey string `json:"turnKey"`
}

// --- Server-to-Client messages ---

// ErrorMsg is sent when a client action is invalid.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AuthOKMsg confirms authentication.
type AuthOKMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// RoomJoinedMsg confirms entry into a room; the first room_state message
// follows immediately.
type RoomJoinedMsg struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	RoomName string `json:"roomName"`
	Hotseat  bool   `json:"hotseat"`
}
