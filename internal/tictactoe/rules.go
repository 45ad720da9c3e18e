package tictactoe

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
)

const ActionMove = "move"

type Move struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
}

func (that Move) GameType() entity.GameType {
	return entity.TicTacToe
}

type Rules struct{}

func NewRules() *Rules {
	return &Rules{}
}

func (that *Rules) Type() entity.GameType {
	return entity.TicTacToe
}

func (that *Rules) Players() int {
	return 2
}

func (that *Rules) Simultaneous() bool {
	return false
}

func (that *Rules) Role(seat int) string {
	return MarkOf(seat)
}

func (that *Rules) InitialState(_ []entity.Participant) (game.State, int) {
	return NewGame(), 0
}

func (that *Rules) CurrentTurn(state game.State) int {
	board, ok := state.(*Game)
	if !ok || board.IsFinished() {
		return entity.NoTurn
	}

	return SeatOf(board.CurrentSymbol)
}

// DecodeAction accepts {type:"move", position} or {type:"move", row, col}.
func (that *Rules) DecodeAction(raw json.RawMessage) (game.Action, error) {
	actionType, err := game.ActionType(raw)
	if err != nil {
		return nil, err
	}

	if actionType != ActionMove {
		return nil, game.Unsupported(actionType)
	}

	var req struct {
		Position *int `json:"position"`
		Row      *int `json:"row"`
		Col      *int `json:"col"`
	}
	if err = json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidAction, err)
	}

	switch {
	case req.Position != nil:
		return Move{Type: ActionMove, Position: *req.Position}, nil
	case req.Row != nil && req.Col != nil:
		if *req.Row < 0 || *req.Row > 2 || *req.Col < 0 || *req.Col > 2 {
			return nil, fmt.Errorf("%w: %w: row %d col %d", apperror.ErrInvalidAction, ErrInvalidCell, *req.Row, *req.Col)
		}
		return Move{Type: ActionMove, Position: *req.Row*3 + *req.Col}, nil
	default:
		return nil, fmt.Errorf("%w: move needs a position", apperror.ErrInvalidAction)
	}
}

func (that *Rules) Apply(state game.State, actor int, action game.Action) (game.State, game.Result, error) {
	board, ok := state.(*Game)
	if !ok {
		return state, game.Result{}, fmt.Errorf("%w: foreign state %T", apperror.ErrInvalidAction, state)
	}

	move, ok := action.(Move)
	if !ok {
		return state, game.Result{}, fmt.Errorf("%w: foreign action %T", apperror.ErrInvalidAction, action)
	}

	if board.IsFinished() {
		return state, game.Result{}, apperror.ErrGameFinished
	}

	if err := validateMove(board, MarkOf(actor), move.Position); err != nil {
		return state, game.Result{}, fmt.Errorf("invalid turn: %w", err)
	}

	next, _ := board.Clone().(*Game)
	next.Board[move.Position] = next.CurrentSymbol
	next.MoveCount++
	updateGameStatus(next)

	return next, game.Result{}, nil
}

// validateMove - checks if the move is valid.
func validateMove(board *Game, playerMark string, cell int) error {
	if cell < 0 || cell >= len(board.Board) {
		return fmt.Errorf("%w: %w: cell %d", apperror.ErrInvalidAction, ErrInvalidCell, cell)
	}

	if board.CurrentSymbol != playerMark {
		return apperror.ErrOutOfTurn
	}

	if board.Board[cell] != EmptyCell {
		return fmt.Errorf("%w: %w", apperror.ErrInvalidAction, apperror.ErrCellOccupied)
	}

	return nil
}

// updateGameStatus - checks the game status after a move.
func updateGameStatus(board *Game) {
	switch winner := checkGameStatus(board.Board); winner {
	case PlayerX, PlayerO, PlayerTie:
		board.Winner = winner
		board.CurrentSymbol = ""
	default:
		board.CurrentSymbol = toggleMark(board.CurrentSymbol)
	}
}

func (that *Rules) Terminal(state game.State) (bool, game.Outcome) {
	board, ok := state.(*Game)
	if !ok {
		return false, game.Outcome{}
	}

	switch board.Winner {
	case PlayerX, PlayerO:
		return true, game.Win(SeatOf(board.Winner))
	case PlayerTie:
		return true, game.Draw()
	default:
		return false, game.Outcome{}
	}
}

func (that *Rules) Forfeit(state game.State, actor int) (game.State, game.Outcome, bool) {
	board, ok := state.(*Game)
	if !ok {
		return state, game.Outcome{}, false
	}

	winner := 1 - actor
	next, _ := board.Clone().(*Game)
	next.Winner = MarkOf(winner)
	next.CurrentSymbol = ""

	return next, game.ForfeitBy(actor, winner), true
}

func (that *Rules) BotAction(state game.State, actor int, rnd *rand.Rand) (game.Action, bool) {
	board, ok := state.(*Game)
	if !ok || that.CurrentTurn(board) != actor {
		return nil, false
	}

	availableCells := make([]int, 0, len(board.Board))
	for i, cell := range board.Board {
		if cell == EmptyCell {
			availableCells = append(availableCells, i)
		}
	}

	if len(availableCells) == 0 {
		return nil, false
	}

	return Move{Type: ActionMove, Position: availableCells[rnd.IntN(len(availableCells))]}, true
}
