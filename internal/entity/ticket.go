package entity

import "time"

// Ticket is a player's place in a matchmaking queue.
type Ticket struct {
	ID         string           `json:"ticket"`
	GameType   GameType         `json:"game_type"`
	Player     PlayerDescriptor `json:"player"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}

type QueuedPayload struct {
	Ticket   string   `json:"ticket"`
	GameType GameType `json:"gameType"`
	Position int      `json:"position"`
}

type QueueTimeoutPayload struct {
	Ticket string `json:"ticket"`
	Reason string `json:"reason"`
}
