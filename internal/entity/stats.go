package entity

type Stats struct {
	Rooms       map[GameType]map[RoomStatus]int `json:"rooms"`
	Queues      map[GameType]int                `json:"queues"`
	Connections int                             `json:"connections"`
}
