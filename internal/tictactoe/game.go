package tictactoe

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
)

const (
	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""

	BoardSize = 9
)

var (
	ErrInvalidCell   = errors.New("invalid cell index")
	ErrBrokenBoard   = errors.New("board does not match move count")
	ErrUnbalanced    = errors.New("symbol counts are unbalanced")
	ErrWrongTurnMark = errors.New("current symbol does not match move count")

	WinCombos = [][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

type Game struct {
	Board         [BoardSize]string `json:"board"`
	CurrentSymbol string            `json:"current_symbol"`
	MoveCount     int               `json:"move_count"`
	Winner        string            `json:"winner,omitempty"`
}

func NewGame() *Game {
	return &Game{CurrentSymbol: PlayerX}
}

func (that *Game) Clone() game.State {
	clone := *that
	return &clone
}

func (that *Game) View() any {
	return that
}

func (that *Game) IsFinished() bool {
	return that.Winner != ""
}

// Validate - the board must be reachable by alternating moves starting with X.
func (that *Game) Validate() error {
	var xs, os int
	for _, cell := range that.Board {
		switch cell {
		case PlayerX:
			xs++
		case PlayerO:
			os++
		case EmptyCell:
		default:
			return fmt.Errorf("%w: unexpected mark %q", ErrBrokenBoard, cell)
		}
	}

	if xs+os != that.MoveCount {
		return fmt.Errorf("%w: %d marks, %d moves", ErrBrokenBoard, xs+os, that.MoveCount)
	}

	if xs-os != 0 && xs-os != 1 {
		return fmt.Errorf("%w: X=%d O=%d", ErrUnbalanced, xs, os)
	}

	if !that.IsFinished() && that.CurrentSymbol != markForMove(that.MoveCount) {
		return fmt.Errorf("%w: %s after %d moves", ErrWrongTurnMark, that.CurrentSymbol, that.MoveCount)
	}

	return nil
}

func markForMove(moveCount int) string {
	if moveCount%2 == 0 {
		return PlayerX
	}
	return PlayerO
}

// MarkOf - seat 0 plays X, seat 1 plays O.
func MarkOf(seat int) string {
	if seat == 0 {
		return PlayerX
	}
	return PlayerO
}

func SeatOf(mark string) int {
	switch mark {
	case PlayerX:
		return 0
	case PlayerO:
		return 1
	default:
		return entity.NoTurn
	}
}

func toggleMark(currentMark string) string {
	if currentMark == PlayerX {
		return PlayerO
	}
	return PlayerX
}

func checkGameStatus(board [BoardSize]string) string {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	// the game will continue until all the squares are full
	for _, cell := range board {
		if cell == EmptyCell {
			return ""
		}
	}

	return PlayerTie
}
