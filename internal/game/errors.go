package game

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrAlreadyRunning = errors.New("round already running")
)

// Messages sent back to the caller with room_create_error and
// start_round_error.
const (
	msgRoomIdRequired = "Room id is required."
	msgOnlyOwner      = "Only room owner can start round."
	msgAlreadyRunning = "Round already running."
)
