package ludo

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
)

const (
	ActionRoll = "roll"
	ActionMove = "move"

	// ActionMovePiece is the long form {type:"movePiece", pieceId} of ActionMove.
	ActionMovePiece = "movePiece"
)

type Roll struct {
	Type string `json:"type"`
}

func (that Roll) GameType() entity.GameType {
	return entity.LudoRace
}

type MovePiece struct {
	Type  string `json:"type"`
	Piece int    `json:"piece"`
}

func (that MovePiece) GameType() entity.GameType {
	return entity.LudoRace
}

type RollResult struct {
	Value    int   `json:"value"`
	Eligible []int `json:"eligible,omitempty"`
	Bonus    bool  `json:"bonus,omitempty"`
	Passed   bool  `json:"passed,omitempty"`
}

type Captured struct {
	Seat  int `json:"seat"`
	Piece int `json:"piece"`
}

type MoveResult struct {
	Piece    int        `json:"piece"`
	From     int        `json:"from"`
	To       int        `json:"to"`
	Captured []Captured `json:"captured,omitempty"`
	Bonus    bool       `json:"bonus,omitempty"`
}

type Rules struct {
	dice     Dice
	bonusCap int
}

func NewRules(dice Dice, bonusCap int) *Rules {
	if bonusCap <= 0 {
		bonusCap = DefaultBonusCap
	}

	return &Rules{dice: dice, bonusCap: bonusCap}
}

func (that *Rules) Type() entity.GameType {
	return entity.LudoRace
}

func (that *Rules) Players() int {
	return Seats
}

func (that *Rules) Simultaneous() bool {
	return false
}

func (that *Rules) Role(seat int) string {
	if seat < 0 || seat >= Seats {
		return ""
	}

	return Colors[seat]
}

func (that *Rules) InitialState(participants []entity.Participant) (game.State, int) {
	return NewGame(participants, that.bonusCap), 0
}

func (that *Rules) CurrentTurn(state game.State) int {
	board, ok := state.(*Game)
	if !ok || board.IsFinished() {
		return entity.NoTurn
	}

	return board.Turn
}

func (that *Rules) DecodeAction(raw json.RawMessage) (game.Action, error) {
	actionType, err := game.ActionType(raw)
	if err != nil {
		return nil, err
	}

	switch actionType {
	case ActionRoll:
		return Roll{Type: ActionRoll}, nil
	case ActionMove, ActionMovePiece:
		var req struct {
			Piece   *int `json:"piece"`
			PieceID *int `json:"pieceId"`
		}
		if err = json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidAction, err)
		}

		piece := req.Piece
		if piece == nil {
			piece = req.PieceID
		}

		if piece == nil {
			return nil, fmt.Errorf("%w: piece is required", apperror.ErrInvalidAction)
		}

		return MovePiece{Type: ActionMove, Piece: *piece}, nil
	default:
		return nil, game.Unsupported(actionType)
	}
}

func (that *Rules) Apply(state game.State, actor int, action game.Action) (game.State, game.Result, error) {
	board, ok := state.(*Game)
	if !ok {
		return state, game.Result{}, fmt.Errorf("%w: foreign state %T", apperror.ErrInvalidAction, state)
	}

	if board.IsFinished() {
		return state, game.Result{}, apperror.ErrGameFinished
	}

	if actor != board.Turn {
		return state, game.Result{}, apperror.ErrOutOfTurn
	}

	switch act := action.(type) {
	case Roll:
		if board.Phase != PhaseRoll {
			return state, game.Result{}, fmt.Errorf("%w: %w", apperror.ErrInvalidAction, ErrMoveFirst)
		}

		next, result := ApplyRoll(board, that.dice.Roll())

		return next, game.Result{Detail: result}, nil
	case MovePiece:
		if board.Phase != PhaseMove {
			return state, game.Result{}, fmt.Errorf("%w: %w", apperror.ErrInvalidAction, ErrRollFirst)
		}

		if !slices.Contains(board.Eligible, act.Piece) {
			return state, game.Result{}, fmt.Errorf("%w: %w: piece %d", apperror.ErrInvalidAction, ErrPieceNotMovable, act.Piece)
		}

		next, result := applyMove(board, act.Piece)

		return next, game.Result{Detail: result}, nil
	default:
		return state, game.Result{}, fmt.Errorf("%w: foreign action %T", apperror.ErrInvalidAction, action)
	}
}

// ApplyRoll records a dice value for the current seat. It is a pure function of the
// board and the value, so a recorded roll sequence replays to the same board.
func ApplyRoll(board *Game, value int) (*Game, RollResult) {
	next, _ := board.Clone().(*Game)
	next.LastRoll = value

	if value == Faces {
		next.Sixes++
	} else {
		next.Sixes = 0
	}

	result := RollResult{Value: value}

	eligible := eligiblePieces(next, next.Turn, value)
	if len(eligible) == 0 {
		result.Bonus = endTurn(next)
		result.Passed = !result.Bonus

		return next, result
	}

	next.Phase = PhaseMove
	next.Eligible = eligible
	result.Eligible = slices.Clone(eligible)

	return next, result
}

func applyMove(board *Game, piece int) (*Game, MoveResult) {
	next, _ := board.Clone().(*Game)
	seat := next.Turn

	from := next.Pieces[seat][piece]
	to, _ := target(from, next.LastRoll)
	next.Pieces[seat][piece] = to

	result := MoveResult{Piece: piece, From: from, To: to}
	result.Captured = capture(next, seat, to)

	if allFinished(next, seat) {
		finish(next, seat)
		return next, result
	}

	result.Bonus = endTurn(next)

	return next, result
}

func (that *Rules) Terminal(state game.State) (bool, game.Outcome) {
	board, ok := state.(*Game)
	if !ok || !board.IsFinished() {
		return false, game.Outcome{}
	}

	return true, game.Win(board.Winner)
}

// Forfeit takes the seat out of the rotation and sends its pieces home. The race ends
// when one seat is left or when only bots remain.
func (that *Rules) Forfeit(state game.State, actor int) (game.State, game.Outcome, bool) {
	board, ok := state.(*Game)
	if !ok || actor < 0 || actor >= Seats || board.IsFinished() {
		return state, game.Outcome{}, false
	}

	next, _ := board.Clone().(*Game)
	next.Active[actor] = false
	for piece := range PiecesPerSeat {
		next.Pieces[actor][piece] = Home
	}

	remaining, humans := 0, 0
	for seat := range Seats {
		if next.Active[seat] {
			remaining++
			if !next.Bots[seat] {
				humans++
			}
		}
	}

	if remaining <= 1 || humans == 0 {
		winner := leader(next)
		finish(next, winner)

		return next, game.ForfeitBy(actor, winner), true
	}

	if next.Turn == actor {
		next.Phase = PhaseRoll
		next.Eligible = nil
		next.Sixes = 0
		next.Turn = nextActiveSeat(next, actor)
	}

	return next, game.Outcome{}, false
}

func (that *Rules) BotAction(state game.State, actor int, rnd *rand.Rand) (game.Action, bool) {
	board, ok := state.(*Game)
	if !ok || board.IsFinished() || board.Turn != actor {
		return nil, false
	}

	if board.Phase == PhaseRoll {
		return Roll{Type: ActionRoll}, true
	}

	return MovePiece{Type: ActionMove, Piece: board.Eligible[rnd.IntN(len(board.Eligible))]}, true
}
