package entity

import (
	"strings"
	"time"
)

const botPrefix = "bot:"

type Participant struct {
	ConnectionID string     `json:"-"`
	PlayerID     string     `json:"player_id"`
	Role         string     `json:"role,omitempty"`
	TurnIndex    int        `json:"turn_index"`
	Bot          bool       `json:"bot,omitempty"`
	Connected    bool       `json:"connected"`
	Forfeited    bool       `json:"forfeited,omitempty"`
	ReconnectBy  *time.Time `json:"reconnect_by,omitempty"`
}

// PlayerDescriptor identifies an already-authenticated player entering matchmaking.
type PlayerDescriptor struct {
	PlayerID     string `json:"player_id"`
	ConnectionID string `json:"-"`
	Bot          bool   `json:"bot,omitempty"`
}

func NewBotPlayer(id string) PlayerDescriptor {
	return PlayerDescriptor{PlayerID: botPrefix + id, Bot: true}
}

func (that PlayerDescriptor) IsBot() bool {
	return that.Bot
}

// IsBotID reports whether the id lies in the namespace reserved for generated bots.
// Client-supplied ids in it are refused at connect time.
func IsBotID(id string) bool {
	return strings.HasPrefix(id, botPrefix)
}

func (that PlayerDescriptor) Participant() Participant {
	return Participant{
		ConnectionID: that.ConnectionID,
		PlayerID:     that.PlayerID,
		Bot:          that.IsBot(),
		Connected:    true,
	}
}

func (that *Participant) IsBot() bool {
	return that.Bot
}
