package entity

import "time"

// Player is one named identity occupying a symbol slot in a room.
// The name is chosen by the player and is unique within the room.
type Player struct {
	Name         string    `json:"name"`
	Mark         string    `json:"mark"`
	LastActivity time.Time `json:"last_activity"`
}
