package matchmaking

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/config"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
	"github.com/rocketscienceinc/campus-arena/internal/pkg"
)

// minPlayers is the smallest roster a backfill-window game may start with.
const minPlayers = 2

type roomCreator interface {
	CreateRoom(gameType entity.GameType, players []entity.PlayerDescriptor) (string, error)
}

// notifier is told about tickets that could not be matched. It must not call back into the Coordinator.
type notifier interface {
	Notify(ticket entity.Ticket, err error)
}

type Settings struct {
	BackfillWait time.Duration
	BotBackfill  bool
}

func NewSettings(conf config.Game) Settings {
	return Settings{BackfillWait: conf.BackfillWait, BotBackfill: conf.BotBackfill}
}

type queue struct {
	mu sync.Mutex

	gameType entity.GameType
	seats    int
	// windowed queues start short rosters after the backfill wait instead of waiting forever.
	windowed bool
	tickets  []entity.Ticket
	timer    *time.Timer
}

// Coordinator keeps one FIFO queue per game type. Each queue is serialized by its own
// lock, so a ticket can never be matched into two rooms.
type Coordinator struct {
	logger   *slog.Logger
	settings Settings
	creator  roomCreator
	notifier notifier

	queues map[entity.GameType]*queue
}

func NewCoordinator(logger *slog.Logger, catalog *game.Catalog, settings Settings, creator roomCreator, notifier notifier) *Coordinator {
	coordinator := &Coordinator{
		logger:   logger.With("component", "matchmaking"),
		settings: settings,
		creator:  creator,
		notifier: notifier,
		queues:   make(map[entity.GameType]*queue),
	}

	for _, gameType := range catalog.Types() {
		rules, _ := catalog.Get(gameType)
		coordinator.queues[gameType] = &queue{
			gameType: gameType,
			seats:    rules.Players(),
			windowed: rules.Players() > minPlayers,
		}
	}

	return coordinator
}

// Enqueue places the player in the game type's queue and forms a room as soon as enough
// players wait. A player already queued gets the existing ticket back.
func (that *Coordinator) Enqueue(gameType entity.GameType, player entity.PlayerDescriptor) (entity.Ticket, error) {
	log := that.logger.With("method", "Enqueue", "game_type", gameType, "player_id", player.PlayerID)

	q, ok := that.queues[gameType]
	if !ok {
		return entity.Ticket{}, fmt.Errorf("%w: %s", apperror.ErrUnknownGameType, gameType)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, ticket := range q.tickets {
		if ticket.Player.PlayerID == player.PlayerID {
			return ticket, nil
		}
	}

	ticket := entity.Ticket{
		ID:         pkg.GenerateTicketID(),
		GameType:   gameType,
		Player:     player,
		EnqueuedAt: time.Now(),
	}
	q.tickets = append(q.tickets, ticket)

	log.Debug("player queued", "ticket", ticket.ID, "queued", len(q.tickets))

	that.match(q)

	return ticket, nil
}

// Dequeue removes exactly that ticket.
func (that *Coordinator) Dequeue(ticketID string) error {
	for _, q := range that.queues {
		if that.remove(q, func(ticket entity.Ticket) bool { return ticket.ID == ticketID }) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", apperror.ErrTicketNotFound, ticketID)
}

// DequeuePlayer drops every ticket of the player, e.g. after a disconnect.
func (that *Coordinator) DequeuePlayer(playerID string) bool {
	removed := false
	for _, q := range that.queues {
		if that.remove(q, func(ticket entity.Ticket) bool { return ticket.Player.PlayerID == playerID }) {
			removed = true
		}
	}

	return removed
}

// TicketOf finds the player's queued ticket in any queue.
func (that *Coordinator) TicketOf(playerID string) (entity.Ticket, bool) {
	for _, q := range that.queues {
		q.mu.Lock()
		index := slices.IndexFunc(q.tickets, func(t entity.Ticket) bool { return t.Player.PlayerID == playerID })
		if index >= 0 {
			ticket := q.tickets[index]
			q.mu.Unlock()

			return ticket, true
		}
		q.mu.Unlock()
	}

	return entity.Ticket{}, false
}

// Rebind moves the player's queued ticket onto a new connection.
func (that *Coordinator) Rebind(playerID, connectionID string) bool {
	for _, q := range that.queues {
		q.mu.Lock()
		index := slices.IndexFunc(q.tickets, func(t entity.Ticket) bool { return t.Player.PlayerID == playerID })
		if index >= 0 {
			q.tickets[index].Player.ConnectionID = connectionID
			q.mu.Unlock()

			return true
		}
		q.mu.Unlock()
	}

	return false
}

// Position is the 1-based place of the ticket in its queue, or 0 when it is no longer queued.
func (that *Coordinator) Position(ticket entity.Ticket) int {
	q, ok := that.queues[ticket.GameType]
	if !ok {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.IndexFunc(q.tickets, func(t entity.Ticket) bool { return t.ID == ticket.ID }) + 1
}

func (that *Coordinator) QueueLengths() map[entity.GameType]int {
	lengths := make(map[entity.GameType]int, len(that.queues))
	for gameType, q := range that.queues {
		q.mu.Lock()
		lengths[gameType] = len(q.tickets)
		q.mu.Unlock()
	}

	return lengths
}

// Stop cancels pending backfill timers.
func (that *Coordinator) Stop() {
	for _, q := range that.queues {
		q.mu.Lock()
		if q.timer != nil {
			q.timer.Stop()
			q.timer = nil
		}
		q.mu.Unlock()
	}
}

func (that *Coordinator) remove(q *queue, match func(entity.Ticket) bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	before := len(q.tickets)
	q.tickets = slices.DeleteFunc(q.tickets, match)

	if len(q.tickets) == 0 && q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}

	return len(q.tickets) != before
}

// match must be called with q.mu held.
func (that *Coordinator) match(q *queue) {
	for len(q.tickets) >= q.seats {
		batch := slices.Clone(q.tickets[:q.seats])
		q.tickets = slices.Delete(q.tickets, 0, q.seats)

		that.createRoom(q, batch, nil)
	}

	that.armTimer(q)
}

func (that *Coordinator) armTimer(q *queue) {
	if len(q.tickets) == 0 {
		if q.timer != nil {
			q.timer.Stop()
			q.timer = nil
		}

		return
	}

	if !q.windowed || q.timer != nil {
		return
	}

	q.timer = time.AfterFunc(that.settings.BackfillWait, func() {
		that.backfill(q)
	})
}

// backfill runs when a windowed queue waited too long for a full roster.
func (that *Coordinator) backfill(q *queue) {
	q.mu.Lock()
	defer q.mu.Unlock()

	log := that.logger.With("method", "backfill", "game_type", q.gameType)

	q.timer = nil
	if len(q.tickets) == 0 {
		return
	}

	switch {
	case that.settings.BotBackfill:
		batch := slices.Clone(q.tickets)
		q.tickets = nil

		bots := make([]entity.PlayerDescriptor, 0, q.seats-len(batch))
		for range q.seats - len(batch) {
			bots = append(bots, entity.NewBotPlayer(pkg.GenerateBotID()))
		}

		log.Info("backfilling with bots", "humans", len(batch), "bots", len(bots))
		that.createRoom(q, batch, bots)
	case len(q.tickets) >= minPlayers:
		batch := slices.Clone(q.tickets)
		q.tickets = nil

		log.Info("starting short roster", "humans", len(batch))
		that.createRoom(q, batch, nil)
	default:
		for _, ticket := range q.tickets {
			that.notifier.Notify(ticket, apperror.ErrMatchmakingTimeout)
		}
	}

	that.armTimer(q)
}

func (that *Coordinator) createRoom(q *queue, batch []entity.Ticket, bots []entity.PlayerDescriptor) {
	players := make([]entity.PlayerDescriptor, 0, len(batch)+len(bots))
	for _, ticket := range batch {
		players = append(players, ticket.Player)
	}
	players = append(players, bots...)

	roomID, err := that.creator.CreateRoom(q.gameType, players)
	if err == nil {
		that.logger.Info("match formed", "game_type", q.gameType, "room_id", roomID, "players", len(players))
		return
	}

	that.logger.Error("failed to create room", "game_type", q.gameType, "error", err)

	var busy *apperror.BusyPlayerError
	if errors.As(err, &busy) && that.requeue(q, batch, busy) {
		return
	}

	for _, ticket := range batch {
		that.notifier.Notify(ticket, err)
	}
}

// requeue puts the batch back at the head of the queue in its original order, without
// the ticket of the busy player. It must be called with q.mu held.
func (that *Coordinator) requeue(q *queue, batch []entity.Ticket, busy *apperror.BusyPlayerError) bool {
	index := slices.IndexFunc(batch, func(t entity.Ticket) bool { return t.Player.PlayerID == busy.PlayerID })
	if index < 0 {
		return false
	}

	dropped := batch[index]
	kept := slices.Delete(slices.Clone(batch), index, index+1)
	q.tickets = append(kept, q.tickets...)

	that.logger.Info("ticket of busy player dropped", "game_type", q.gameType, "player_id", busy.PlayerID, "requeued", len(kept))
	that.notifier.Notify(dropped, busy)

	return true
}
