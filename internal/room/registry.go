package room

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
	"github.com/rocketscienceinc/campus-arena/internal/pkg"
)

// Registry owns the active rooms. A room is fully built before it becomes visible.
type Registry struct {
	logger    *slog.Logger
	catalog   *game.Catalog
	settings  Settings
	publisher publisher
	sink      summarySink

	mu      sync.RWMutex
	rooms   map[string]*Room
	players map[string]string
}

func NewRegistry(logger *slog.Logger, catalog *game.Catalog, settings Settings, publisher publisher, sink summarySink) *Registry {
	return &Registry{
		logger:    logger.With("component", "registry"),
		catalog:   catalog,
		settings:  settings,
		publisher: publisher,
		sink:      sink,

		rooms:   make(map[string]*Room),
		players: make(map[string]string),
	}
}

// CreateRoom starts a room for a matched roster. The countdown begins immediately.
func (that *Registry) CreateRoom(gameType entity.GameType, players []entity.PlayerDescriptor) (string, error) {
	room, err := that.build(gameType, players)
	if err != nil {
		return "", err
	}

	if err = that.insert(room, players); err != nil {
		return "", err
	}

	room.open(true)

	return room.ID(), nil
}

// CreateWaitingRoom opens a private room that starts once JoinRoom fills it.
func (that *Registry) CreateWaitingRoom(gameType entity.GameType, creator entity.PlayerDescriptor) (string, error) {
	players := []entity.PlayerDescriptor{creator}

	room, err := that.build(gameType, players)
	if err != nil {
		return "", err
	}

	if err = that.insert(room, players); err != nil {
		return "", err
	}

	room.open(false)

	return room.ID(), nil
}

func (that *Registry) JoinRoom(roomID string, player entity.PlayerDescriptor) error {
	room, err := that.GetRoom(roomID)
	if err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if err = that.checkFree(player.PlayerID, roomID); err != nil {
		return err
	}

	if err = room.Join(player); err != nil {
		return fmt.Errorf("failed to join room %s: %w", roomID, err)
	}

	that.players[player.PlayerID] = roomID

	return nil
}

func (that *Registry) GetRoom(roomID string) (*Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	return room, nil
}

// RoomOfPlayer returns the unfinished room the player is seated in.
func (that *Registry) RoomOfPlayer(playerID string) (*Room, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.rooms[that.players[playerID]]
	if !ok || room.Status() == entity.StatusFinished {
		return nil, false
	}

	return room, true
}

// RemoveRoom unlinks the room and stops its timers. Actions still in flight fail with ErrRoomNotFound.
func (that *Registry) RemoveRoom(roomID string) {
	that.mu.Lock()
	room, ok := that.rooms[roomID]
	if ok {
		delete(that.rooms, roomID)
		for playerID, id := range that.players {
			if id == roomID {
				delete(that.players, playerID)
			}
		}
	}
	that.mu.Unlock()

	if !ok {
		return
	}

	room.Close()
	that.logger.Debug("room removed", "room_id", roomID)
}

func (that *Registry) Count() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms)
}

// Stats counts active rooms per game type and status.
func (that *Registry) Stats() map[entity.GameType]map[entity.RoomStatus]int {
	that.mu.RLock()
	rooms := make([]*Room, 0, len(that.rooms))
	for _, room := range that.rooms {
		rooms = append(rooms, room)
	}
	that.mu.RUnlock()

	stats := make(map[entity.GameType]map[entity.RoomStatus]int)
	for _, room := range rooms {
		if stats[room.GameType()] == nil {
			stats[room.GameType()] = make(map[entity.RoomStatus]int)
		}
		stats[room.GameType()][room.Status()]++
	}

	return stats
}

func (that *Registry) build(gameType entity.GameType, players []entity.PlayerDescriptor) (*Room, error) {
	rules, err := that.catalog.Get(gameType)
	if err != nil {
		return nil, err
	}

	if len(players) == 0 {
		return nil, fmt.Errorf("%w: no players", apperror.ErrInvalidAction)
	}

	if len(players) > rules.Players() {
		return nil, fmt.Errorf("%w: %d players for %d seats", apperror.ErrRoomFull, len(players), rules.Players())
	}

	room := newRoom(that.logger, pkg.GenerateRoomID(), rules, that.settings, that.publisher, that.sink, that.RemoveRoom)
	for _, player := range players {
		room.seat(player)
	}

	return room, nil
}

func (that *Registry) insert(room *Room, players []entity.PlayerDescriptor) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, player := range players {
		if err := that.checkFree(player.PlayerID, room.ID()); err != nil {
			return err
		}
	}

	that.rooms[room.ID()] = room
	for _, player := range players {
		if !player.IsBot() {
			that.players[player.PlayerID] = room.ID()
		}
	}

	that.logger.Info("room created", "room_id", room.ID(), "game_type", room.GameType(), "players", len(players))

	return nil
}

// checkFree must be called with mu held.
func (that *Registry) checkFree(playerID, roomID string) error {
	current, ok := that.rooms[that.players[playerID]]
	if !ok || current.ID() == roomID || current.Status() == entity.StatusFinished {
		return nil
	}

	return &apperror.BusyPlayerError{PlayerID: playerID, RoomID: current.ID()}
}
