package entity

import "encoding/json"

// client -> server
const (
	EventFindRoom   = "find-room"
	EventLeaveQueue = "leave-queue"
	EventGameAction = "game-action"
	EventLeaveRoom  = "leave-room"
)

// server -> client
const (
	EventConnected         = "connected"
	EventQueued            = "queued"
	EventQueueTimeout      = "queue-timeout"
	EventRoomCreated       = "room-created"
	EventGameStart         = "game-start"
	EventStateUpdate       = "state-update"
	EventActionError       = "action-error"
	EventGameEnd           = "game-end"
	EventParticipantStatus = "participant-status"
	EventRoomClosed        = "room-closed"
)

const (
	ModePublic  = "public"
	ModePrivate = "private"
	ModeWithBot = "bot"
)

type RoomPayload struct {
	Room *RoomView `json:"room"`
}

type StateUpdatePayload struct {
	Room       *RoomView     `json:"room"`
	LastAction *HistoryEntry `json:"lastAction,omitempty"`
	Resync     bool          `json:"resync,omitempty"`
}

type GameEndPayload struct {
	Room    *RoomView `json:"room"`
	Outcome Outcome   `json:"outcome"`
}

type ActionErrorPayload struct {
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

type ParticipantStatusPayload struct {
	RoomID    string `json:"roomId"`
	PlayerID  string `json:"playerId"`
	Connected bool   `json:"connected"`
}

type RoomClosedPayload struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

type FindRoomPayload struct {
	GameType GameType `json:"gameType"`
	Mode     string   `json:"mode,omitempty"`
	RoomID   string   `json:"roomId,omitempty"`
}

type LeaveQueuePayload struct {
	Ticket string `json:"ticket"`
}

type GameActionPayload struct {
	RoomID string          `json:"roomId"`
	Action json.RawMessage `json:"action"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type ConnectedPayload struct {
	PlayerID string `json:"playerId"`
}
