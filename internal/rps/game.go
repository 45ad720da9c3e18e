package rps

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
)

const (
	Rock     = "rock"
	Paper    = "paper"
	Scissors = "scissors"

	Seats = 2

	DefaultMaxRounds = 3
)

var (
	ErrUnknownChoice  = errors.New("unknown choice")
	ErrAlreadyChosen  = errors.New("choice already submitted this round")
	ErrRoundOverflow  = errors.New("round counter past the configured maximum")
	ErrScoreOverflow  = errors.New("scores exceed resolved rounds")
	ErrStaleChoice    = errors.New("both choices pending after resolution")
	ErrBadRoundConfig = errors.New("max rounds must be positive")

	// beats[a] is the choice a defeats.
	beats = map[string]string{
		Rock:     Scissors,
		Scissors: Paper,
		Paper:    Rock,
	}

	Choices = []string{Rock, Paper, Scissors}
)

type RoundResult struct {
	Number  int           `json:"number"`
	Choices [Seats]string `json:"choices"`
	Winner  int           `json:"winner"`
}

type Game struct {
	Pending   [Seats]string `json:"-"`
	Scores    [Seats]int    `json:"scores"`
	Round     int           `json:"round"`
	MaxRounds int           `json:"max_rounds"`
	LastRound *RoundResult  `json:"last_round,omitempty"`
}

type view struct {
	Submitted [Seats]bool  `json:"submitted"`
	Scores    [Seats]int   `json:"scores"`
	Round     int          `json:"round"`
	MaxRounds int          `json:"max_rounds"`
	LastRound *RoundResult `json:"last_round,omitempty"`
}

func NewGame(maxRounds int) *Game {
	return &Game{MaxRounds: maxRounds}
}

func (that *Game) Clone() game.State {
	clone := *that
	if that.LastRound != nil {
		last := *that.LastRound
		clone.LastRound = &last
	}

	return &clone
}

// View hides the pending choices: opponents only learn that a choice was submitted.
func (that *Game) View() any {
	return view{
		Submitted: [Seats]bool{that.Pending[0] != "", that.Pending[1] != ""},
		Scores:    that.Scores,
		Round:     that.Round,
		MaxRounds: that.MaxRounds,
		LastRound: that.LastRound,
	}
}

func (that *Game) Validate() error {
	if that.MaxRounds <= 0 {
		return ErrBadRoundConfig
	}

	if that.Round > that.MaxRounds {
		return fmt.Errorf("%w: %d/%d", ErrRoundOverflow, that.Round, that.MaxRounds)
	}

	if that.Scores[0]+that.Scores[1] > that.Round {
		return fmt.Errorf("%w: %v after %d rounds", ErrScoreOverflow, that.Scores, that.Round)
	}

	for _, choice := range that.Pending {
		if choice != "" && !IsChoice(choice) {
			return fmt.Errorf("%w: %q", ErrUnknownChoice, choice)
		}
	}

	if that.Pending[0] != "" && that.Pending[1] != "" {
		return ErrStaleChoice
	}

	return nil
}

func (that *Game) IsFinished() bool {
	return that.Round >= that.MaxRounds
}

func IsChoice(choice string) bool {
	_, ok := beats[choice]
	return ok
}

// resolveRound settles the round once both choices are present. It reports whether
// a resolution happened; calling it again afterwards is a no-op.
func resolveRound(board *Game) bool {
	if board.Pending[0] == "" || board.Pending[1] == "" {
		return false
	}

	result := &RoundResult{
		Number:  board.Round + 1,
		Choices: board.Pending,
		Winner:  roundWinner(board.Pending[0], board.Pending[1]),
	}

	if result.Winner != entity.NoTurn {
		board.Scores[result.Winner]++
	}

	board.Pending = [Seats]string{}
	board.Round++
	board.LastRound = result

	return true
}

func roundWinner(first, second string) int {
	switch {
	case first == second:
		return entity.NoTurn
	case beats[first] == second:
		return 0
	default:
		return 1
	}
}
