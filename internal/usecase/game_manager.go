package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
	"github.com/rocketscienceinc/campus-arena/internal/pkg"
	"github.com/rocketscienceinc/campus-arena/internal/room"
)

const defaultLeaderboardSize = 10

var ErrUnknownMode = errors.New("unknown find-room mode")

type roomRegistry interface {
	CreateRoom(gameType entity.GameType, players []entity.PlayerDescriptor) (string, error)
	CreateWaitingRoom(gameType entity.GameType, creator entity.PlayerDescriptor) (string, error)
	JoinRoom(roomID string, player entity.PlayerDescriptor) error
	GetRoom(roomID string) (*room.Room, error)
	RoomOfPlayer(playerID string) (*room.Room, bool)
	Stats() map[entity.GameType]map[entity.RoomStatus]int
}

type matchmaker interface {
	Enqueue(gameType entity.GameType, player entity.PlayerDescriptor) (entity.Ticket, error)
	Dequeue(ticketID string) error
	DequeuePlayer(playerID string) bool
	TicketOf(playerID string) (entity.Ticket, bool)
	Rebind(playerID, connectionID string) bool
	Position(ticket entity.Ticket) int
	QueueLengths() map[entity.GameType]int
}

type connections interface {
	Connections() int
	IsConnected(playerID string) bool
}

type resultRepo interface {
	GetByRoomID(ctx context.Context, roomID string) (*entity.Summary, error)
	Recent(ctx context.Context, limit int64) ([]entity.Summary, error)
	Leaderboard(ctx context.Context, gameType entity.GameType, limit int64) ([]entity.Standing, error)
}

// FindRoomResult is either a queue ticket (Position > 0) or the room the player was seated in.
type FindRoomResult struct {
	Ticket   *entity.Ticket
	Position int
	RoomID   string
}

type playerRepo interface {
	GetByID(ctx context.Context, id string) (*entity.PlayerRecord, error)
}

type GameManager struct {
	logger *slog.Logger

	catalog     *game.Catalog
	registry    roomRegistry
	matchmaker  matchmaker
	connections connections
	resultRepo  resultRepo
	playerRepo  playerRepo
}

func NewGameManager(
	logger *slog.Logger,
	catalog *game.Catalog,
	registry roomRegistry,
	matchmaker matchmaker,
	connections connections,
	resultRepo resultRepo,
	playerRepo playerRepo,
) *GameManager {
	return &GameManager{
		logger: logger.With("component", "game_manager"),

		catalog:     catalog,
		registry:    registry,
		matchmaker:  matchmaker,
		connections: connections,
		resultRepo:  resultRepo,
		playerRepo:  playerRepo,
	}
}

// Connect re-attaches a player to their unfinished room, if any. A queued ticket follows
// the new connection. The ticket is rebound first so that a match formed meanwhile is
// already registered when the room is looked up.
func (that *GameManager) Connect(playerID, connectionID string) (*entity.RoomView, error) {
	that.matchmaker.Rebind(playerID, connectionID)

	current, ok := that.registry.RoomOfPlayer(playerID)
	if !ok {
		return nil, nil //nolint: nilnil // no active room is not an error
	}

	view, err := current.Reconnect(playerID, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reconnect to room %s: %w", current.ID(), err)
	}

	that.logger.Info("player reconnected", "player_id", playerID, "room_id", current.ID())

	return view, nil
}

func (that *GameManager) FindRoom(player entity.PlayerDescriptor, req entity.FindRoomPayload) (*FindRoomResult, error) {
	log := that.logger.With("method", "FindRoom", "player_id", player.PlayerID, "game_type", req.GameType, "mode", req.Mode)

	rules, err := that.catalog.Get(req.GameType)
	if err != nil {
		return nil, err
	}

	if current, ok := that.registry.RoomOfPlayer(player.PlayerID); ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrAlreadyInRoom, current.ID())
	}

	switch req.Mode {
	case entity.ModePublic, "":
		return that.enqueue(player, req.GameType)
	case entity.ModeWithBot:
		that.leaveQueues(player.PlayerID)

		roomID, err := that.registry.CreateRoom(req.GameType, withBots(player, rules.Players()))
		if err != nil {
			return nil, fmt.Errorf("failed to create bot room: %w", err)
		}

		log.Info("bot room created", "room_id", roomID)

		return &FindRoomResult{RoomID: roomID}, nil
	case entity.ModePrivate:
		that.leaveQueues(player.PlayerID)

		return that.private(player, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
}

// leaveQueues drops any queued ticket before the player is seated directly.
func (that *GameManager) leaveQueues(playerID string) {
	if that.matchmaker.DequeuePlayer(playerID) {
		that.logger.Info("player left queue for a direct room", "player_id", playerID)
	}
}

func (that *GameManager) LeaveQueue(playerID, ticketID string) error {
	ticket, ok := that.matchmaker.TicketOf(playerID)
	if !ok || ticket.ID != ticketID {
		return fmt.Errorf("%w: %s", apperror.ErrTicketNotFound, ticketID)
	}

	if err := that.matchmaker.Dequeue(ticketID); err != nil {
		return fmt.Errorf("failed to leave queue: %w", err)
	}

	return nil
}

// GameAction decodes the raw action for the room's game type and applies it.
func (that *GameManager) GameAction(playerID, roomID string, raw json.RawMessage) error {
	current, err := that.registry.GetRoom(roomID)
	if err != nil {
		return err
	}

	action, err := that.catalog.DecodeAction(current.GameType(), raw)
	if err != nil {
		return err
	}

	if err = current.Act(playerID, action); err != nil {
		return fmt.Errorf("failed to apply action: %w", err)
	}

	return nil
}

func (that *GameManager) LeaveRoom(playerID, roomID string) error {
	current, err := that.registry.GetRoom(roomID)
	if err != nil {
		return err
	}

	if err = current.Leave(playerID); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

// PlayerDisconnected drops the player's tickets and starts the grace window of their room.
// Nothing happens when the player is already back on another connection.
func (that *GameManager) PlayerDisconnected(playerID, connectionID string) {
	log := that.logger.With("method", "PlayerDisconnected", "player_id", playerID, "connection_id", connectionID)

	if that.connections.IsConnected(playerID) {
		log.Debug("player already reconnected")
		return
	}

	if that.matchmaker.DequeuePlayer(playerID) {
		log.Info("player removed from queue")
	}

	if current, ok := that.registry.RoomOfPlayer(playerID); ok {
		current.Disconnect(playerID, connectionID)
	}
}

func (that *GameManager) Resync(playerID string) {
	if current, ok := that.registry.RoomOfPlayer(playerID); ok {
		current.Resync(playerID)
	}
}

func (that *GameManager) GetRoom(roomID string) (*entity.RoomView, error) {
	current, err := that.registry.GetRoom(roomID)
	if err != nil {
		return nil, err
	}

	return current.View(), nil
}

func (that *GameManager) Stats() entity.Stats {
	return entity.Stats{
		Rooms:       that.registry.Stats(),
		Queues:      that.matchmaker.QueueLengths(),
		Connections: that.connections.Connections(),
	}
}

func (that *GameManager) Leaderboard(ctx context.Context, gameType entity.GameType, limit int64) ([]entity.Standing, error) {
	if gameType != "" && !gameType.Valid() {
		return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownGameType, gameType)
	}

	if limit <= 0 {
		limit = defaultLeaderboardSize
	}

	standings, err := that.resultRepo.Leaderboard(ctx, gameType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	return standings, nil
}

func (that *GameManager) RecentResults(ctx context.Context, limit int64) ([]entity.Summary, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}

	summaries, err := that.resultRepo.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent results: %w", err)
	}

	return summaries, nil
}

func (that *GameManager) GetResult(ctx context.Context, roomID string) (*entity.Summary, error) {
	summary, err := that.resultRepo.GetByRoomID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get result of room %s: %w", roomID, err)
	}

	return summary, nil
}

func (that *GameManager) GetPlayer(ctx context.Context, playerID string) (*entity.PlayerRecord, error) {
	record, err := that.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", playerID, err)
	}

	return record, nil
}

func (that *GameManager) enqueue(player entity.PlayerDescriptor, gameType entity.GameType) (*FindRoomResult, error) {
	if queued, ok := that.matchmaker.TicketOf(player.PlayerID); ok && queued.GameType != gameType {
		if err := that.matchmaker.Dequeue(queued.ID); err != nil {
			return nil, fmt.Errorf("failed to leave previous queue: %w", err)
		}
	}

	ticket, err := that.matchmaker.Enqueue(gameType, player)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}

	result := &FindRoomResult{Ticket: &ticket, Position: that.matchmaker.Position(ticket)}
	if result.Position == 0 {
		if current, ok := that.registry.RoomOfPlayer(player.PlayerID); ok {
			result.RoomID = current.ID()
		}
	}

	return result, nil
}

func (that *GameManager) private(player entity.PlayerDescriptor, req entity.FindRoomPayload) (*FindRoomResult, error) {
	if req.RoomID == "" {
		roomID, err := that.registry.CreateWaitingRoom(req.GameType, player)
		if err != nil {
			return nil, fmt.Errorf("failed to create private room: %w", err)
		}

		return &FindRoomResult{RoomID: roomID}, nil
	}

	target, err := that.registry.GetRoom(req.RoomID)
	if err != nil {
		return nil, err
	}

	if target.GameType() != req.GameType {
		return nil, fmt.Errorf("%w: room %s plays %s", apperror.ErrInvalidAction, req.RoomID, target.GameType())
	}

	if err = that.registry.JoinRoom(req.RoomID, player); err != nil {
		return nil, err
	}

	return &FindRoomResult{RoomID: req.RoomID}, nil
}

// withBots fills the remaining seats with bots in random seat order.
func withBots(player entity.PlayerDescriptor, seats int) []entity.PlayerDescriptor {
	players := []entity.PlayerDescriptor{player}
	for range seats - 1 {
		players = append(players, entity.NewBotPlayer(pkg.GenerateBotID()))
	}

	rand.Shuffle(len(players), func(i, j int) { //nolint: gosec // it's ok
		players[i], players[j] = players[j], players[i]
	})

	return players
}
