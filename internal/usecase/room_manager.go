package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roomgrid/tictactoe-rooms/internal/apperror"
	"github.com/roomgrid/tictactoe-rooms/internal/entity"
)

// maxConflictRetries bounds how often an operation is retried after a
// concurrent writer wins the commit race before ErrConflict surfaces.
const maxConflictRetries = 3

var ErrEmptyName = errors.New("display name must not be empty")

// errNoChange aborts a mutation without committing or publishing.
var errNoChange = errors.New("no change")

type roomRepo interface {
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Mutate(ctx context.Context, id string, fn func(current *entity.Room) (*entity.Room, error)) (*entity.Room, error)
}

type roomBroker interface {
	PublishRoom(ctx context.Context, room *entity.Room) error
	PublishRoomClosed(ctx context.Context, roomID string) error
}

// RoomManager coordinates all commands against room state. Every
// mutation is a read-then-conditionally-write commit; conflicting
// concurrent writes are retried a bounded number of times and every
// committed change is published to the room's event channel.
type RoomManager struct {
	logger *slog.Logger
	rooms  roomRepo
	broker roomBroker
	now    func() time.Time
}

func NewRoomManager(logger *slog.Logger, rooms roomRepo, broker roomBroker) *RoomManager {
	return &RoomManager{
		logger: logger,
		rooms:  rooms,
		broker: broker,
		now:    time.Now,
	}
}

// CreateOrJoin puts the named player into the room, creating it when
// it does not exist yet. The first joiner plays X, the second O.
// Rejoining under a known name only refreshes that player's activity.
func (that *RoomManager) CreateOrJoin(ctx context.Context, roomID, name string) (*entity.Room, *entity.Player, error) {
	if name == "" {
		return nil, nil, ErrEmptyName
	}

	var joined *entity.Player

	room, err := that.commit(ctx, roomID, func(current *entity.Room) (*entity.Room, error) {
		if current == nil {
			current = entity.NewRoom(roomID, that.now())
		}

		player, err := current.Join(name, that.now())
		if err != nil {
			return nil, err
		}

		joined = player

		return current, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to join room: %w", err)
	}

	return room, joined, nil
}

// MakeMove applies one move for the named player and flips the turn.
// This is the only path that resolves a game's result.
func (that *RoomManager) MakeMove(ctx context.Context, roomID, name string, cell int) (*entity.Room, error) {
	room, err := that.commit(ctx, roomID, func(current *entity.Room) (*entity.Room, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
		}

		if err := current.MakeMove(name, cell, that.now()); err != nil {
			return nil, err
		}

		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to make move: %w", err)
	}

	return room, nil
}

// Restart clears the board for a new game. Any current participant may
// restart at any time, forfeiting a game still in progress.
func (that *RoomManager) Restart(ctx context.Context, roomID, name string) (*entity.Room, error) {
	room, err := that.commit(ctx, roomID, func(current *entity.Room) (*entity.Room, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
		}

		if _, ok := current.Players[name]; !ok {
			return nil, fmt.Errorf("%w: player %s", apperror.ErrNotInRoom, name)
		}

		current.Restart(that.now())

		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to restart room: %w", err)
	}

	return room, nil
}

// Leave removes the named player; the last player leaving deletes the
// room. Leaving a room you are not in, or one that no longer exists,
// is a no-op so the graceful disconnect path and the reaper can both
// fire for the same player.
func (that *RoomManager) Leave(ctx context.Context, roomID, name string) error {
	_, err := that.commit(ctx, roomID, func(current *entity.Room) (*entity.Room, error) {
		if current == nil {
			return nil, errNoChange
		}

		if !current.RemovePlayer(name, that.now()) {
			return nil, errNoChange
		}

		if current.IsEmpty() {
			return nil, nil
		}

		return current, nil
	})
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

// Heartbeat refreshes the named player's activity timestamp. A room
// deleted while the heartbeat was in flight is a silent no-op.
func (that *RoomManager) Heartbeat(ctx context.Context, roomID, name string) error {
	_, err := that.commit(ctx, roomID, func(current *entity.Room) (*entity.Room, error) {
		if current == nil {
			return nil, errNoChange
		}

		player, ok := current.Players[name]
		if !ok {
			return nil, errNoChange
		}

		player.LastActivity = that.now()

		return current, nil
	})
	if err != nil {
		return fmt.Errorf("failed to heartbeat: %w", err)
	}

	return nil
}

// EvictStale removes every player whose activity is older than
// threshold and reports the evicted names. A roster emptied by
// eviction deletes the room.
func (that *RoomManager) EvictStale(ctx context.Context, roomID string, threshold time.Duration) ([]string, error) {
	var evicted []string

	_, err := that.commit(ctx, roomID, func(current *entity.Room) (*entity.Room, error) {
		evicted = nil

		if current == nil {
			return nil, errNoChange
		}

		stale := current.StalePlayers(that.now(), threshold)
		if len(stale) == 0 {
			return nil, errNoChange
		}

		for _, name := range stale {
			current.RemovePlayer(name, that.now())
		}

		evicted = stale

		if current.IsEmpty() {
			return nil, nil
		}

		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evict stale players: %w", err)
	}

	return evicted, nil
}

// Snapshot returns the current committed state of the room.
func (that *RoomManager) Snapshot(ctx context.Context, roomID string) (*entity.Room, error) {
	room, err := that.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

// commit runs fn through the repository's optimistic transaction,
// retrying on commit races, and publishes the committed state. A nil
// room with a nil error means the mutation was a no-op or deleted the
// room.
func (that *RoomManager) commit(ctx context.Context, roomID string, fn func(current *entity.Room) (*entity.Room, error)) (*entity.Room, error) {
	log := that.logger.With("method", "commit", "roomID", roomID)

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		room, err := that.rooms.Mutate(ctx, roomID, fn)

		if errors.Is(err, apperror.ErrConflict) {
			log.Debug("commit raced against another writer, retrying", "attempt", attempt+1)
			continue
		}

		if errors.Is(err, errNoChange) {
			return nil, nil
		}

		if err != nil {
			return nil, err
		}

		if room == nil {
			if err = that.broker.PublishRoomClosed(ctx, roomID); err != nil {
				log.Error("failed to publish room closed", "error", err)
			}

			return nil, nil
		}

		if err = that.broker.PublishRoom(ctx, room); err != nil {
			log.Error("failed to publish room snapshot", "error", err)
		}

		return room, nil
	}

	return nil, apperror.ErrConflict
}
