package apperror

import "errors"

var (
	ErrRoomFull           = errors.New("room is full")
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotInRoom          = errors.New("player is not in the room")
	ErrNotYourTurn        = errors.New("it's not your turn")
	ErrGameFinished       = errors.New("game is already finished")
	ErrCellOccupied       = errors.New("cell is already occupied")
	ErrInvalidCell        = errors.New("invalid cell index")
	ErrConflict           = errors.New("room was changed by another writer")
	ErrStorageUnavailable = errors.New("storage is unavailable")
)
