package websocket

import (
	"encoding/json"

	"github.com/roomgrid/tictactoe-rooms/internal/entity"
)

const (
	actionRoomJoin      = "room:join"
	actionRoomMove      = "room:move"
	actionRoomRestart   = "room:restart"
	actionRoomLeave     = "room:leave"
	actionRoomHeartbeat = "room:heartbeat"

	// pushed by the server, never sent by clients
	actionRoomState  = "room:state"
	actionRoomClosed = "room:closed"
)

// Message is one websocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Payload struct {
	RoomID string         `json:"room_id,omitempty"`
	Name   string         `json:"name,omitempty"`
	Cell   *int           `json:"cell,omitempty"`
	Room   *entity.Room   `json:"room,omitempty"`
	Player *entity.Player `json:"player,omitempty"`
	Error  string         `json:"error,omitempty"`
}
