package rps

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
)

const ActionChoice = "choice"

type Choice struct {
	Type   string `json:"type"`
	Choice string `json:"choice,omitempty"`
}

func (that Choice) GameType() entity.GameType {
	return entity.RockPaperScissors
}

// Masked drops the choice itself so the opponent only learns a submission happened.
func (that Choice) Masked() game.Action {
	return Choice{Type: that.Type}
}

type Rules struct {
	maxRounds int
}

func NewRules(maxRounds int) *Rules {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	return &Rules{maxRounds: maxRounds}
}

func (that *Rules) Type() entity.GameType {
	return entity.RockPaperScissors
}

func (that *Rules) Players() int {
	return Seats
}

func (that *Rules) Simultaneous() bool {
	return true
}

func (that *Rules) Role(seat int) string {
	return fmt.Sprintf("p%d", seat+1)
}

func (that *Rules) InitialState(_ []entity.Participant) (game.State, int) {
	return NewGame(that.maxRounds), entity.NoTurn
}

func (that *Rules) CurrentTurn(_ game.State) int {
	return entity.NoTurn
}

func (that *Rules) DecodeAction(raw json.RawMessage) (game.Action, error) {
	actionType, err := game.ActionType(raw)
	if err != nil {
		return nil, err
	}

	if actionType != ActionChoice {
		return nil, game.Unsupported(actionType)
	}

	var choice Choice
	if err = json.Unmarshal(raw, &choice); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidAction, err)
	}

	return choice, nil
}

func (that *Rules) Apply(state game.State, actor int, action game.Action) (game.State, game.Result, error) {
	board, ok := state.(*Game)
	if !ok {
		return state, game.Result{}, fmt.Errorf("%w: foreign state %T", apperror.ErrInvalidAction, state)
	}

	choice, ok := action.(Choice)
	if !ok {
		return state, game.Result{}, fmt.Errorf("%w: foreign action %T", apperror.ErrInvalidAction, action)
	}

	if board.IsFinished() {
		return state, game.Result{}, apperror.ErrGameFinished
	}

	if actor < 0 || actor >= Seats {
		return state, game.Result{}, fmt.Errorf("%w: seat %d", apperror.ErrNotParticipant, actor)
	}

	if !IsChoice(choice.Choice) {
		return state, game.Result{}, fmt.Errorf("%w: %w: %q", apperror.ErrInvalidAction, ErrUnknownChoice, choice.Choice)
	}

	if board.Pending[actor] != "" {
		return state, game.Result{}, fmt.Errorf("%w: %w", apperror.ErrInvalidAction, ErrAlreadyChosen)
	}

	next, _ := board.Clone().(*Game)
	next.Pending[actor] = choice.Choice

	if resolveRound(next) {
		return next, game.Result{Detail: next.LastRound}, nil
	}

	return next, game.Result{}, nil
}

func (that *Rules) Terminal(state game.State) (bool, game.Outcome) {
	board, ok := state.(*Game)
	if !ok || !board.IsFinished() {
		return false, game.Outcome{}
	}

	switch {
	case board.Scores[0] > board.Scores[1]:
		return true, game.Win(0)
	case board.Scores[1] > board.Scores[0]:
		return true, game.Win(1)
	default:
		return true, game.Draw()
	}
}

func (that *Rules) Forfeit(state game.State, actor int) (game.State, game.Outcome, bool) {
	board, ok := state.(*Game)
	if !ok {
		return state, game.Outcome{}, false
	}

	next, _ := board.Clone().(*Game)
	next.Pending = [Seats]string{}

	return next, game.ForfeitBy(actor, 1-actor), true
}

func (that *Rules) BotAction(state game.State, actor int, rnd *rand.Rand) (game.Action, bool) {
	board, ok := state.(*Game)
	if !ok || board.IsFinished() || actor < 0 || actor >= Seats || board.Pending[actor] != "" {
		return nil, false
	}

	return Choice{Type: ActionChoice, Choice: Choices[rnd.IntN(len(Choices))]}, true
}
