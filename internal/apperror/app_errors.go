package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound            = errors.New("room not found")
	ErrOutOfTurn               = errors.New("it's not your turn")
	ErrInvalidAction           = errors.New("invalid action")
	ErrMatchmakingTimeout      = errors.New("no opponent found in time")
	ErrParticipantDisconnected = errors.New("participant disconnected")

	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrGameFinished     = errors.New("game is already finished")
	ErrNotParticipant   = errors.New("player is not a participant of this room")
	ErrRoomFull         = errors.New("room is full")
	ErrTicketNotFound   = errors.New("queue ticket not found")
	ErrUnknownGameType  = errors.New("unknown game type")
	ErrAlreadyInRoom    = errors.New("player is already in a room")
)

// BusyPlayerError names the player that is already seated in another room.
type BusyPlayerError struct {
	PlayerID string
	RoomID   string
}

func (that *BusyPlayerError) Error() string {
	return fmt.Sprintf("%s: %s in %s", ErrAlreadyInRoom, that.PlayerID, that.RoomID)
}

func (that *BusyPlayerError) Unwrap() error {
	return ErrAlreadyInRoom
}

// Code maps an error onto the stable code sent to clients with action-error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrOutOfTurn):
		return "out_of_turn"
	case errors.Is(err, ErrCellOccupied), errors.Is(err, ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, ErrMatchmakingTimeout):
		return "matchmaking_timeout"
	case errors.Is(err, ErrParticipantDisconnected):
		return "participant_disconnected"
	case errors.Is(err, ErrGameIsNotStarted):
		return "game_not_started"
	case errors.Is(err, ErrGameFinished):
		return "game_finished"
	case errors.Is(err, ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrTicketNotFound):
		return "ticket_not_found"
	case errors.Is(err, ErrUnknownGameType):
		return "unknown_game_type"
	case errors.Is(err, ErrAlreadyInRoom):
		return "already_in_room"
	default:
		return "internal"
	}
}
