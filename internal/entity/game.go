package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
)

type GameType string

const (
	TicTacToe         GameType = "tictactoe"
	RockPaperScissors GameType = "rps"
	LudoRace          GameType = "ludo-race"
)

var ErrUnknownGameStatus = errors.New("unknown game status")

func (that GameType) Valid() bool {
	switch that {
	case TicTacToe, RockPaperScissors, LudoRace:
		return true
	default:
		return false
	}
}

type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusStarting RoomStatus = "starting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// NoTurn marks the absence of a single current actor (simultaneous rounds, or not playing).
const NoTurn = -1

type OutcomeKind string

const (
	OutcomeWin     OutcomeKind = "win"
	OutcomeDraw    OutcomeKind = "draw"
	OutcomeForfeit OutcomeKind = "forfeit"
	OutcomeAborted OutcomeKind = "aborted"
)

type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	Winner    string      `json:"winner,omitempty"`
	Forfeited string      `json:"forfeited,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

func (that Outcome) IsDraw() bool {
	return that.Kind == OutcomeDraw
}

type HistoryEntry struct {
	Seq      int       `json:"seq"`
	At       time.Time `json:"at"`
	PlayerID string    `json:"player_id"`
	Action   any       `json:"action"`
	Detail   any       `json:"detail,omitempty"`
}

// RoomView is the full, client-safe snapshot of a room.
type RoomView struct {
	ID           string        `json:"id"`
	GameType     GameType      `json:"game_type"`
	Status       RoomStatus    `json:"status"`
	Participants []Participant `json:"participants"`
	Turn         int           `json:"turn"`
	TurnPlayer   string        `json:"turn_player,omitempty"`
	StartsAt     *time.Time    `json:"starts_at,omitempty"`
	State        any           `json:"state,omitempty"`
	Moves        int           `json:"moves"`
	Outcome      *Outcome      `json:"outcome,omitempty"`
}

// Summary is what crosses the boundary to the results collaborator when a game ends.
type Summary struct {
	RoomID         string         `json:"room_id"`
	GameType       GameType       `json:"game_type"`
	ParticipantIDs []string       `json:"participant_ids"`
	Outcome        Outcome        `json:"outcome"`
	PointsAwarded  map[string]int `json:"points_awarded"`
	FinishedAt     time.Time      `json:"finished_at"`
}

func (that RoomStatus) ConfirmPlaying() error {
	switch that {
	case StatusWaiting, StatusStarting:
		return apperror.ErrGameIsNotStarted
	case StatusFinished:
		return apperror.ErrGameFinished
	case StatusPlaying:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownGameStatus, that)
	}
}
