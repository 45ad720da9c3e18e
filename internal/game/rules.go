package game

import (
	"encoding/json"
	"math/rand/v2"

	"github.com/rocketscienceinc/campus-arena/internal/entity"
)

// Action is one game's well-typed client intent. Each rule module only accepts its own variants.
type Action interface {
	GameType() entity.GameType
}

// Masker is implemented by actions that carry hidden information (e.g. an RPS choice)
// and must not be echoed to other participants as-is.
type Masker interface {
	Masked() Action
}

// State is the authoritative, game-specific board. Rule modules never mutate a
// State they were given: they clone it and return the new value.
type State interface {
	Clone() State
	// View returns the representation that is safe to send to every participant.
	View() any
	// Validate checks the module's structural invariants.
	Validate() error
}

// Result carries per-action details worth recording in the room history (dice value, captures, round resolution).
type Result struct {
	Detail any
}

// Outcome is a terminal result expressed in seat indexes; the room maps seats to players.
type Outcome struct {
	Kind      entity.OutcomeKind
	Winner    int
	Forfeited int
}

func Draw() Outcome {
	return Outcome{Kind: entity.OutcomeDraw, Winner: entity.NoTurn, Forfeited: entity.NoTurn}
}

func Win(seat int) Outcome {
	return Outcome{Kind: entity.OutcomeWin, Winner: seat, Forfeited: entity.NoTurn}
}

func ForfeitBy(seat, winner int) Outcome {
	return Outcome{Kind: entity.OutcomeForfeit, Winner: winner, Forfeited: seat}
}

type Rules interface {
	Type() entity.GameType
	// Players is the number of seats a room of this game needs before it can start.
	Players() int
	// Simultaneous games accept actions from any seat; there is no single current turn.
	Simultaneous() bool

	// Role names the seat for clients: a symbol, a player slot or a color.
	Role(seat int) string
	InitialState(participants []entity.Participant) (State, int)
	CurrentTurn(state State) int
	DecodeAction(raw json.RawMessage) (Action, error)
	Apply(state State, actor int, action Action) (State, Result, error)
	Terminal(state State) (bool, Outcome)
	// Forfeit removes the seat from play. The bool reports whether the game is over.
	Forfeit(state State, actor int) (State, Outcome, bool)
	// BotAction picks a legal pseudo-random action for the seat, or false when the seat has nothing to do.
	BotAction(state State, actor int, rnd *rand.Rand) (Action, bool)
}
