package tictactoe

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
)

func move(position int) Move {
	return Move{Type: ActionMove, Position: position}
}

func TestRules_InitialState(t *testing.T) {
	// Given: the tic-tac-toe rules
	rules := NewRules()

	// When: a game is initialized
	state, firstTurn := rules.InitialState(nil)

	// Then: the board is empty and X (seat 0) moves first
	expectedGame := &Game{
		Board:         [BoardSize]string{EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell},
		CurrentSymbol: PlayerX,
	}

	require.Equal(t, expectedGame, state)
	assert.Equal(t, 0, firstTurn)
	assert.Equal(t, 0, rules.CurrentTurn(state))
}

func TestRules_Apply(t *testing.T) {
	rules := NewRules()

	t.Run("MakeTurn", func(t *testing.T) {
		// Given: a new game
		state, _ := rules.InitialState(nil)

		// When: player X makes a turn
		next, _, err := rules.Apply(state, 0, move(0))
		require.NoError(t, err)

		// Then: the game state should reflect the turn and queue change
		expectedGame := &Game{
			Board:         [BoardSize]string{PlayerX, "", "", "", "", "", "", "", ""},
			CurrentSymbol: PlayerO,
			MoveCount:     1,
		}

		require.Equal(t, expectedGame, next)
		assert.Equal(t, 1, rules.CurrentTurn(next))
	})

	t.Run("Previous state is never mutated", func(t *testing.T) {
		// Given: a new game
		state, _ := rules.InitialState(nil)

		// When: a move is applied
		_, _, err := rules.Apply(state, 0, move(4))
		require.NoError(t, err)

		// Then: the original state is still empty
		assert.Equal(t, NewGame(), state)
	})

	t.Run("Error on cell already occupied", func(t *testing.T) {
		// Given: player X has taken cell 0
		state, _ := rules.InitialState(nil)
		state, _, err := rules.Apply(state, 0, move(0))
		require.NoError(t, err)

		// When: player O tries to make a move to the same square
		next, _, err := rules.Apply(state, 1, move(0))

		// Then: an occupied-cell invalid action is returned and the state is unchanged
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		require.ErrorIs(t, err, apperror.ErrInvalidAction)
		assert.Same(t, state, next)
	})

	t.Run("Error on playing out of turn", func(t *testing.T) {
		// Given: a new game where it's X's turn
		state, _ := rules.InitialState(nil)

		// When: player O tries to move
		next, _, err := rules.Apply(state, 1, move(1))

		// Then: ErrOutOfTurn is returned
		require.ErrorIs(t, err, apperror.ErrOutOfTurn)
		assert.Same(t, state, next)
	})

	t.Run("Invalid cells", func(t *testing.T) {
		state, _ := rules.InitialState(nil)

		for _, cell := range []int{-1, 9, 20} {
			// When: an out-of-range cell is used
			_, _, err := rules.Apply(state, 0, move(cell))

			// Then: ErrInvalidCell is returned
			require.ErrorIs(t, err, ErrInvalidCell)
			require.ErrorIs(t, err, apperror.ErrInvalidAction)
		}
	})

	t.Run("Move after game finished", func(t *testing.T) {
		// Given: a game X has already won
		state := &Game{
			Board:     [BoardSize]string{PlayerX, PlayerX, PlayerX, PlayerO, PlayerO, "", "", "", ""},
			MoveCount: 5,
			Winner:    PlayerX,
		}

		// When: player O tries to move
		_, _, err := rules.Apply(state, 1, move(5))

		// Then: ErrGameFinished is returned
		assert.ErrorIs(t, err, apperror.ErrGameFinished)
	})

	t.Run("Foreign action variant is rejected", func(t *testing.T) {
		state, _ := rules.InitialState(nil)

		_, _, err := rules.Apply(state, 0, foreignAction{})

		assert.ErrorIs(t, err, apperror.ErrInvalidAction)
	})
}

type foreignAction struct{}

func (foreignAction) GameType() entity.GameType { return entity.RockPaperScissors }

func TestRules_DiagonalWinScenario(t *testing.T) {
	// Given: P1 plays X from seat 0, P2 plays O from seat 1
	rules := NewRules()
	state, _ := rules.InitialState(nil)

	moves := []struct {
		seat     int
		row, col int
	}{
		{0, 0, 0},
		{1, 0, 1},
		{0, 1, 1},
		{1, 0, 2},
		{0, 2, 2},
	}

	// When: the moves are applied in order
	var err error
	for _, m := range moves {
		state, _, err = rules.Apply(state, m.seat, move(m.row*3+m.col))
		require.NoError(t, err)
	}

	// Then: X wins on the (0,0)(1,1)(2,2) diagonal
	finished, outcome := rules.Terminal(state)
	require.True(t, finished)
	assert.Equal(t, game.Win(0), outcome)
	assert.Equal(t, entity.NoTurn, rules.CurrentTurn(state))
}

func TestRules_Draw(t *testing.T) {
	// Given: a sequence filling the board with no line
	rules := NewRules()
	state, _ := rules.InitialState(nil)

	var err error
	for i, cell := range []int{0, 1, 2, 4, 3, 5, 7, 6, 8} {
		state, _, err = rules.Apply(state, i%2, move(cell))
		require.NoError(t, err)
	}

	// Then: the game is a draw
	finished, outcome := rules.Terminal(state)
	require.True(t, finished)
	assert.Equal(t, entity.OutcomeDraw, outcome.Kind)
}

func TestRules_CellCountMatchesMoves(t *testing.T) {
	rules := NewRules()
	rnd := rand.New(rand.NewPCG(7, 11)) //nolint: gosec // it's ok

	for range 50 {
		state, _ := rules.InitialState(nil)
		lastSeat := entity.NoTurn

		for {
			seat := rules.CurrentTurn(state)
			if seat == entity.NoTurn {
				break
			}

			action, ok := rules.BotAction(state, seat, rnd)
			require.True(t, ok)

			next, _, err := rules.Apply(state, seat, action)
			require.NoError(t, err)
			require.NoError(t, next.Validate())

			// no two consecutive accepted moves from the same seat
			require.NotEqual(t, lastSeat, seat)
			lastSeat = seat

			board, _ := next.(*Game)
			filled := 0
			for _, cell := range board.Board {
				if cell != EmptyCell {
					filled++
				}
			}
			require.Equal(t, board.MoveCount, filled)

			state = next
		}
	}
}

func TestRules_Forfeit(t *testing.T) {
	// Given: an ongoing game
	rules := NewRules()
	state, _ := rules.InitialState(nil)

	// When: seat 0 forfeits
	next, outcome, finished := rules.Forfeit(state, 0)

	// Then: seat 1 wins by forfeit
	require.True(t, finished)
	assert.Equal(t, game.ForfeitBy(0, 1), outcome)
	assert.NoError(t, next.Validate())
	assert.Equal(t, entity.NoTurn, rules.CurrentTurn(next))
}

func TestRules_DecodeAction(t *testing.T) {
	rules := NewRules()

	t.Run("Position", func(t *testing.T) {
		action, err := rules.DecodeAction(json.RawMessage(`{"type":"move","position":4}`))
		require.NoError(t, err)
		assert.Equal(t, move(4), action)
	})

	t.Run("Row and column", func(t *testing.T) {
		action, err := rules.DecodeAction(json.RawMessage(`{"type":"move","row":2,"col":1}`))
		require.NoError(t, err)
		assert.Equal(t, move(7), action)
	})

	t.Run("Unknown type", func(t *testing.T) {
		_, err := rules.DecodeAction(json.RawMessage(`{"type":"roll"}`))
		assert.ErrorIs(t, err, apperror.ErrInvalidAction)
	})

	t.Run("Missing position", func(t *testing.T) {
		_, err := rules.DecodeAction(json.RawMessage(`{"type":"move"}`))
		assert.ErrorIs(t, err, apperror.ErrInvalidAction)
	})
}

func TestGame_Validate(t *testing.T) {
	t.Run("Detects marks without moves", func(t *testing.T) {
		board := &Game{Board: [BoardSize]string{PlayerX}, CurrentSymbol: PlayerO}
		assert.ErrorIs(t, board.Validate(), ErrBrokenBoard)
	})

	t.Run("Detects two X moves in a row", func(t *testing.T) {
		board := &Game{Board: [BoardSize]string{PlayerX, PlayerX}, MoveCount: 2, CurrentSymbol: PlayerX}
		assert.ErrorIs(t, board.Validate(), ErrUnbalanced)
	})
}
