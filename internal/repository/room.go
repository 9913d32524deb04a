package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/roomgrid/tictactoe-rooms/internal/apperror"
	"github.com/roomgrid/tictactoe-rooms/internal/entity"
)

const roomKeyPrefix = "room:"

type RoomRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Mutate(ctx context.Context, id string, fn func(current *entity.Room) (*entity.Room, error)) (*entity.Room, error)
	ActiveRoomIDs(ctx context.Context) ([]string, error)
}

type dbRoom struct {
	client *redis.Client
}

func NewRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

func (that *dbRoom) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	response, err := that.client.Get(ctx, roomKeyPrefix+id).Result()

	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrStorageUnavailable, err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(response), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

// Mutate runs fn against the current room state inside an optimistic
// WATCH transaction. fn receives nil when the room does not exist and
// returns the state to commit, or nil to delete the room. If another
// writer commits the key first the transaction fails with ErrConflict
// and nothing is written.
func (that *dbRoom) Mutate(ctx context.Context, id string, fn func(current *entity.Room) (*entity.Room, error)) (*entity.Room, error) {
	key := roomKeyPrefix + id

	var committed *entity.Room

	err := that.client.Watch(ctx, func(tx *redis.Tx) error {
		var current *entity.Room

		response, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			current = nil
		case err != nil:
			return fmt.Errorf("%w: %w", apperror.ErrStorageUnavailable, err)
		default:
			current = &entity.Room{}
			if err = json.Unmarshal([]byte(response), current); err != nil {
				return fmt.Errorf("failed to unmarshal room: %w", err)
			}
		}

		updated, err := fn(current)
		if err != nil {
			return err
		}

		if updated == nil {
			if _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			}); err != nil {
				return fmt.Errorf("failed to delete room: %w", err)
			}

			committed = nil

			return nil
		}

		updated.Version++

		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		if _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to set room: %w", err)
		}

		committed = updated

		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return nil, apperror.ErrConflict
	}

	if err != nil {
		return nil, err
	}

	return committed, nil
}

func (that *dbRoom) ActiveRoomIDs(ctx context.Context) ([]string, error) {
	var ids []string

	iter := that.client.Scan(ctx, 0, roomKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(roomKeyPrefix):])
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrStorageUnavailable, err)
	}

	return ids, nil
}
