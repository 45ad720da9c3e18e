package ludo

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
)

const (
	Seats         = 4
	PiecesPerSeat = 4

	TrackLength = 52
	LaneLength  = 5
	SeatOffset  = TrackLength / Seats

	// Piece progress: Home, then 0..LastPathStep on the shared track,
	// then the seat's own finish lane, then Finished.
	Home         = -1
	LastPathStep = TrackLength - 2
	Finished     = LastPathStep + LaneLength + 1

	PhaseRoll = "roll"
	PhaseMove = "move"
	PhaseDone = "done"

	DefaultBonusCap = 3
)

var (
	ErrBadProgress     = errors.New("piece progress out of range")
	ErrBadTurn         = errors.New("turn points at an inactive seat")
	ErrBadPhase        = errors.New("unknown phase")
	ErrNoEligible      = errors.New("move phase without eligible pieces")
	ErrBadSixes        = errors.New("consecutive sixes exceed the bonus cap")
	ErrInactivePieces  = errors.New("inactive seat has pieces on the board")
	ErrUndeclaredWin   = errors.New("seat finished every piece but no winner declared")
	ErrPieceNotMovable = errors.New("piece cannot move with the last roll")
	ErrRollFirst       = errors.New("roll the dice first")
	ErrMoveFirst       = errors.New("move a piece before rolling again")

	Colors = [Seats]string{"red", "green", "yellow", "blue"}

	safeCells = map[int]bool{0: true, 8: true, 13: true, 21: true, 26: true, 34: true, 39: true, 47: true}
)

type Game struct {
	Pieces   [Seats][PiecesPerSeat]int `json:"pieces"`
	Active   [Seats]bool               `json:"active"`
	Bots     [Seats]bool               `json:"bots"`
	Turn     int                       `json:"turn"`
	Phase    string                    `json:"phase"`
	LastRoll int                       `json:"last_roll"`
	Sixes    int                       `json:"consecutive_sixes"`
	Eligible []int                     `json:"eligible,omitempty"`
	BonusCap int                       `json:"bonus_cap"`
	Winner   int                       `json:"winner"`
}

func NewGame(seats []entity.Participant, bonusCap int) *Game {
	board := &Game{Phase: PhaseRoll, BonusCap: bonusCap, Winner: entity.NoTurn}

	for seat := range Seats {
		for piece := range PiecesPerSeat {
			board.Pieces[seat][piece] = Home
		}

		if seat < len(seats) {
			board.Active[seat] = true
			board.Bots[seat] = seats[seat].Bot
		}
	}

	return board
}

func (that *Game) Clone() game.State {
	clone := *that
	clone.Eligible = slices.Clone(that.Eligible)

	return &clone
}

func (that *Game) View() any {
	return that
}

func (that *Game) IsFinished() bool {
	return that.Phase == PhaseDone
}

func (that *Game) Validate() error {
	for seat := range Seats {
		finished := 0

		for piece, progress := range that.Pieces[seat] {
			if progress < Home || progress > Finished {
				return fmt.Errorf("%w: seat %d piece %d at %d", ErrBadProgress, seat, piece, progress)
			}

			if !that.Active[seat] && progress != Home {
				return fmt.Errorf("%w: seat %d", ErrInactivePieces, seat)
			}

			if progress == Finished {
				finished++
			}
		}

		if finished == PiecesPerSeat && !that.IsFinished() {
			return fmt.Errorf("%w: seat %d", ErrUndeclaredWin, seat)
		}
	}

	if that.Sixes > that.BonusCap {
		return fmt.Errorf("%w: %d/%d", ErrBadSixes, that.Sixes, that.BonusCap)
	}

	switch that.Phase {
	case PhaseDone:
		return nil
	case PhaseRoll:
	case PhaseMove:
		if len(that.Eligible) == 0 {
			return ErrNoEligible
		}
	default:
		return fmt.Errorf("%w: %q", ErrBadPhase, that.Phase)
	}

	if that.Turn < 0 || that.Turn >= Seats || !that.Active[that.Turn] {
		return fmt.Errorf("%w: %d", ErrBadTurn, that.Turn)
	}

	return nil
}

// Cell maps a seat's piece progress onto the shared track. ok is false off the track.
func Cell(seat, progress int) (int, bool) {
	if progress < 0 || progress > LastPathStep {
		return 0, false
	}

	return (seat*SeatOffset + progress) % TrackLength, true
}

func IsSafe(cell int) bool {
	return safeCells[cell]
}

// target returns where a piece lands with the given roll, or false when it cannot move.
func target(progress, roll int) (int, bool) {
	switch {
	case progress == Home:
		return 0, roll == Faces
	case progress == Finished:
		return 0, false
	case progress+roll > Finished:
		return 0, false
	default:
		return progress + roll, true
	}
}

func eligiblePieces(board *Game, seat, roll int) []int {
	var eligible []int
	for piece, progress := range board.Pieces[seat] {
		if _, ok := target(progress, roll); ok {
			eligible = append(eligible, piece)
		}
	}

	return eligible
}

// capture sends every opposing piece on the destination cell home, unless the cell is safe.
func capture(board *Game, seat, progress int) []Captured {
	cell, onTrack := Cell(seat, progress)
	if !onTrack || IsSafe(cell) {
		return nil
	}

	var captured []Captured
	for other := range Seats {
		if other == seat {
			continue
		}

		for piece, otherProgress := range board.Pieces[other] {
			if otherCell, ok := Cell(other, otherProgress); ok && otherCell == cell {
				board.Pieces[other][piece] = Home
				captured = append(captured, Captured{Seat: other, Piece: piece})
			}
		}
	}

	return captured
}

func allFinished(board *Game, seat int) bool {
	for _, progress := range board.Pieces[seat] {
		if progress != Finished {
			return false
		}
	}

	return true
}

func nextActiveSeat(board *Game, from int) int {
	for step := 1; step <= Seats; step++ {
		seat := (from + step) % Seats
		if board.Active[seat] {
			return seat
		}
	}

	return entity.NoTurn
}

// endTurn either grants the bonus roll for a six under the cap or hands the dice to the next active seat.
func endTurn(board *Game) bool {
	board.Eligible = nil
	board.Phase = PhaseRoll

	if board.LastRoll == Faces && board.Sixes < board.BonusCap {
		return true
	}

	board.Sixes = 0
	board.Turn = nextActiveSeat(board, board.Turn)

	return false
}

func finish(board *Game, winner int) {
	board.Phase = PhaseDone
	board.Eligible = nil
	board.Winner = winner
}

// leader is the remaining seat with the most total progress; ties go to the lowest seat.
func leader(board *Game) int {
	best, bestScore := entity.NoTurn, 0
	for seat := range Seats {
		if !board.Active[seat] {
			continue
		}

		score := 0
		for _, progress := range board.Pieces[seat] {
			score += progress - Home
		}

		if best == entity.NoTurn || score > bestScore {
			best, bestScore = seat, score
		}
	}

	return best
}
