package entity

import (
	"fmt"
	"time"

	"github.com/roomgrid/tictactoe-rooms/internal/apperror"
	"github.com/roomgrid/tictactoe-rooms/internal/board"
)

const maxPlayers = 2

// Room is the authoritative shared record for one game session.
// Version increases by one on every committed change, giving
// subscribers a per-room total order of snapshots.
type Room struct {
	ID           string             `json:"id"`
	Board        board.Board        `json:"board"`
	Turn         string             `json:"turn"`
	Winner       string             `json:"winner,omitempty"`
	Players      map[string]*Player `json:"players"`
	LastActivity time.Time          `json:"last_activity"`
	Version      int64              `json:"version"`
}

func NewRoom(id string, now time.Time) *Room {
	return &Room{
		ID:           id,
		Board:        board.New(),
		Turn:         board.MarkX,
		Players:      make(map[string]*Player),
		LastActivity: now,
	}
}

// Join adds the named player to the room, assigning X to the first
// joiner and O to the second. Joining again under the same name only
// refreshes that player's activity, so reconnects are idempotent.
func (that *Room) Join(name string, now time.Time) (*Player, error) {
	if player, ok := that.Players[name]; ok {
		player.LastActivity = now
		that.LastActivity = now
		return player, nil
	}

	if len(that.Players) >= maxPlayers {
		return nil, fmt.Errorf("%w: room %s", apperror.ErrRoomFull, that.ID)
	}

	mark := board.MarkX
	if that.hasMark(board.MarkX) {
		mark = board.MarkO
	}

	player := &Player{
		Name:         name,
		Mark:         mark,
		LastActivity: now,
	}

	that.Players[name] = player
	that.LastActivity = now

	return player, nil
}

// MakeMove validates and applies one move for the named player.
// Rejected moves leave the room untouched.
func (that *Room) MakeMove(name string, cell int, now time.Time) error {
	player, ok := that.Players[name]
	if !ok {
		return fmt.Errorf("%w: player %s", apperror.ErrNotInRoom, name)
	}

	if that.IsFinished() {
		return apperror.ErrGameFinished
	}

	if that.Turn != player.Mark {
		return apperror.ErrNotYourTurn
	}

	updated, err := that.Board.Apply(cell, player.Mark)
	if err != nil {
		return err
	}

	that.Board = updated
	that.Winner = that.Board.Evaluate()
	that.Turn = board.OtherMark(that.Turn)

	player.LastActivity = now
	that.LastActivity = now

	return nil
}

// Restart clears the board for a new game. Marks are not reassigned.
func (that *Room) Restart(now time.Time) {
	that.Board = board.New()
	that.Turn = board.MarkX
	that.Winner = ""
	that.LastActivity = now
}

// RemovePlayer drops the named player from the roster and reports
// whether they were present.
func (that *Room) RemovePlayer(name string, now time.Time) bool {
	if _, ok := that.Players[name]; !ok {
		return false
	}

	delete(that.Players, name)
	that.LastActivity = now

	return true
}

func (that *Room) IsEmpty() bool {
	return len(that.Players) == 0
}

func (that *Room) IsFinished() bool {
	return that.Winner != ""
}

// StalePlayers returns the names of players whose last activity is
// older than threshold.
func (that *Room) StalePlayers(now time.Time, threshold time.Duration) []string {
	var stale []string
	for name, player := range that.Players {
		if now.Sub(player.LastActivity) > threshold {
			stale = append(stale, name)
		}
	}

	return stale
}

func (that *Room) hasMark(mark string) bool {
	for _, player := range that.Players {
		if player.Mark == mark {
			return true
		}
	}

	return false
}
