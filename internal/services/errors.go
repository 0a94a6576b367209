package services

import "errors"

var (
	ErrDuplicateRoomCode  = errors.New("room code already exists, choose another one")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomNotJoinable    = errors.New("game has already started")
	ErrRoomFull           = errors.New("room is full")
	ErrNotInRoom          = errors.New("not in a room")
	ErrCatalogUnavailable = errors.New("no questions available")
	ErrGameInProgress     = errors.New("game is already in progress")
	ErrAlreadyInRoom      = errors.New("already in a room")
	ErrInvalidRoomCode    = errors.New("room code is required")
	ErrInvalidAnswer      = errors.New("answer does not belong to the current question")
)
