package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/broadcast"
	"github.com/rocketscienceinc/campus-arena/internal/config"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
	"github.com/rocketscienceinc/campus-arena/internal/ludo"
	"github.com/rocketscienceinc/campus-arena/internal/matchmaking"
	"github.com/rocketscienceinc/campus-arena/internal/repository"
	"github.com/rocketscienceinc/campus-arena/internal/room"
	"github.com/rocketscienceinc/campus-arena/internal/rps"
	"github.com/rocketscienceinc/campus-arena/internal/tictactoe"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type discardSink struct {
	mu        sync.Mutex
	summaries []entity.Summary
}

func (that *discardSink) Record(summary entity.Summary) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.summaries = append(that.summaries, summary)
}

type fakeResults struct {
	gameType entity.GameType
	limit    int64
}

func (that *fakeResults) GetByRoomID(_ context.Context, roomID string) (*entity.Summary, error) {
	if roomID != "r1" {
		return nil, repository.ErrSummaryNotFound
	}

	return &entity.Summary{RoomID: "r1", GameType: entity.TicTacToe}, nil
}

func (that *fakeResults) Recent(_ context.Context, limit int64) ([]entity.Summary, error) {
	that.limit = limit

	return []entity.Summary{{RoomID: "r1"}}, nil
}

func (that *fakeResults) Leaderboard(_ context.Context, gameType entity.GameType, limit int64) ([]entity.Standing, error) {
	that.gameType = gameType
	that.limit = limit

	return []entity.Standing{{Rank: 1, PlayerID: "p1", Points: 10}}, nil
}

type fakePlayers struct{}

func (fakePlayers) GetByID(_ context.Context, id string) (*entity.PlayerRecord, error) {
	if id != "p1" {
		return nil, repository.ErrPlayerNotFound
	}

	return &entity.PlayerRecord{PlayerID: "p1", Games: 3, Wins: 2, Points: 20}, nil
}

type harness struct {
	manager    *GameManager
	registry   *room.Registry
	dispatcher *broadcast.Dispatcher
	results    *fakeResults
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	catalog := game.NewCatalog(
		tictactoe.NewRules(),
		rps.NewRules(1),
		ludo.NewRules(ludo.NewRandomDice(3, 4), ludo.DefaultBonusCap),
	)

	dispatcher := broadcast.NewDispatcher(logger, 256)
	registry := room.NewRegistry(logger, catalog, room.Settings{
		StartCountdown: 20 * time.Millisecond,
		ReconnectGrace: 50 * time.Millisecond,
		FinishedGrace:  time.Minute,
		BotDelay:       time.Millisecond,
		Points:         config.Points{Win: 10, Draw: 5},
	}, dispatcher, &discardSink{})
	coordinator := matchmaking.NewCoordinator(logger, catalog, matchmaking.Settings{
		BackfillWait: time.Minute,
		BotBackfill:  true,
	}, registry, NewQueueNotifier(dispatcher))
	t.Cleanup(coordinator.Stop)

	results := &fakeResults{}
	manager := NewGameManager(logger, catalog, registry, coordinator, dispatcher, results, fakePlayers{})
	dispatcher.SetListener(manager)

	return &harness{manager: manager, registry: registry, dispatcher: dispatcher, results: results}
}

func player(id string) entity.PlayerDescriptor {
	return entity.PlayerDescriptor{PlayerID: id, ConnectionID: "conn-" + id}
}

func events(client *broadcast.Client) []string {
	var names []string
	for {
		select {
		case data, ok := <-client.Outbound():
			if !ok {
				return names
			}

			var message struct {
				Event string `json:"event"`
			}
			if json.Unmarshal(data, &message) == nil {
				names = append(names, message.Event)
			}
		default:
			return names
		}
	}
}

func TestGameManager_FindRoomPublic(t *testing.T) {
	h := newHarness(t)

	// Given: p1 is queued for tic-tac-toe
	first, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.TicTacToe, Mode: entity.ModePublic})
	require.NoError(t, err)
	require.NotNil(t, first.Ticket)
	assert.Equal(t, 1, first.Position)
	assert.Empty(t, first.RoomID)

	// When: p2 asks for the same game type
	second, err := h.manager.FindRoom(player("p2"), entity.FindRoomPayload{GameType: entity.TicTacToe, Mode: entity.ModePublic})
	require.NoError(t, err)

	// Then: both are seated in the same room right away
	require.NotEmpty(t, second.RoomID)
	assert.Equal(t, 0, second.Position)

	current, ok := h.registry.RoomOfPlayer("p1")
	require.True(t, ok)
	assert.Equal(t, second.RoomID, current.ID())
	assert.Equal(t, 0, h.manager.Stats().Queues[entity.TicTacToe])
}

func TestGameManager_FindRoomSwitchesQueue(t *testing.T) {
	h := newHarness(t)

	// Given: p1 waits in the ludo queue
	_, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.LudoRace})
	require.NoError(t, err)

	// When: p1 asks for rock-paper-scissors instead
	result, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.RockPaperScissors})
	require.NoError(t, err)

	// Then: only the new ticket remains
	require.NotNil(t, result.Ticket)
	assert.Equal(t, entity.RockPaperScissors, result.Ticket.GameType)

	lengths := h.manager.Stats().Queues
	assert.Equal(t, 0, lengths[entity.LudoRace])
	assert.Equal(t, 1, lengths[entity.RockPaperScissors])
}

func TestGameManager_DirectRoomDropsQueuedTicket(t *testing.T) {
	h := newHarness(t)
	partner := h.dispatcher.Register("conn-p2", "p2")

	// Given: p1 waits for tic-tac-toe
	_, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.TicTacToe})
	require.NoError(t, err)

	// When: p1 starts a bot game instead and p2 looks for tic-tac-toe
	_, err = h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.RockPaperScissors, Mode: entity.ModeWithBot})
	require.NoError(t, err)

	result, err := h.manager.FindRoom(player("p2"), entity.FindRoomPayload{GameType: entity.TicTacToe})
	require.NoError(t, err)

	// Then: p2 is queued alone instead of being matched with the seated p1
	require.NotNil(t, result.Ticket)
	assert.Equal(t, 1, result.Position)
	assert.Empty(t, result.RoomID)
	assert.Equal(t, 1, h.manager.Stats().Queues[entity.TicTacToe])
	assert.NotContains(t, events(partner), entity.EventActionError)
}

func TestGameManager_PrivateRoomDropsQueuedTicket(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.LudoRace})
	require.NoError(t, err)

	_, err = h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.TicTacToe, Mode: entity.ModePrivate})
	require.NoError(t, err)

	assert.Equal(t, 0, h.manager.Stats().Queues[entity.LudoRace])
}

func TestGameManager_FindRoomRejections(t *testing.T) {
	h := newHarness(t)

	t.Run("Unknown game type", func(t *testing.T) {
		_, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: "chess"})
		assert.ErrorIs(t, err, apperror.ErrUnknownGameType)
	})

	t.Run("Unknown mode", func(t *testing.T) {
		_, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.TicTacToe, Mode: "ranked"})
		assert.ErrorIs(t, err, ErrUnknownMode)
	})

	t.Run("Already seated", func(t *testing.T) {
		_, err := h.manager.FindRoom(player("p9"), entity.FindRoomPayload{GameType: entity.TicTacToe, Mode: entity.ModeWithBot})
		require.NoError(t, err)

		_, err = h.manager.FindRoom(player("p9"), entity.FindRoomPayload{GameType: entity.RockPaperScissors})
		assert.ErrorIs(t, err, apperror.ErrAlreadyInRoom)
	})
}

func TestGameManager_BotGame(t *testing.T) {
	h := newHarness(t)
	client := h.dispatcher.Register("conn-p1", "p1")

	// When: p1 starts a rock-paper-scissors game against a bot
	result, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.RockPaperScissors, Mode: entity.ModeWithBot})
	require.NoError(t, err)

	view, err := h.manager.GetRoom(result.RoomID)
	require.NoError(t, err)
	require.Len(t, view.Participants, 2)

	require.Eventually(t, func() bool {
		current, _ := h.manager.GetRoom(result.RoomID)
		return current.Status == entity.StatusPlaying
	}, waitFor, tick)

	// Then: p1's choice completes the single round
	err = h.manager.GameAction("p1", result.RoomID, json.RawMessage(`{"type":"choice","choice":"rock"}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, _ := h.manager.GetRoom(result.RoomID)
		return current.Status == entity.StatusFinished
	}, waitFor, tick)

	assert.Contains(t, events(client), entity.EventGameEnd)
}

func TestGameManager_PrivateRoom(t *testing.T) {
	h := newHarness(t)

	// Given: p1 opens a private tic-tac-toe room
	created, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.TicTacToe, Mode: entity.ModePrivate})
	require.NoError(t, err)

	t.Run("Game type must match", func(t *testing.T) {
		_, err := h.manager.FindRoom(player("p2"), entity.FindRoomPayload{
			GameType: entity.RockPaperScissors,
			Mode:     entity.ModePrivate,
			RoomID:   created.RoomID,
		})
		assert.ErrorIs(t, err, apperror.ErrInvalidAction)
	})

	t.Run("Second player joins", func(t *testing.T) {
		joined, err := h.manager.FindRoom(player("p2"), entity.FindRoomPayload{
			GameType: entity.TicTacToe,
			Mode:     entity.ModePrivate,
			RoomID:   created.RoomID,
		})
		require.NoError(t, err)
		assert.Equal(t, created.RoomID, joined.RoomID)

		view, err := h.manager.GetRoom(created.RoomID)
		require.NoError(t, err)
		assert.Len(t, view.Participants, 2)
	})
}

func TestGameManager_LeaveQueue(t *testing.T) {
	h := newHarness(t)

	result, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.TicTacToe})
	require.NoError(t, err)

	t.Run("Foreign ticket", func(t *testing.T) {
		err := h.manager.LeaveQueue("p2", result.Ticket.ID)
		assert.ErrorIs(t, err, apperror.ErrTicketNotFound)
	})

	t.Run("Own ticket", func(t *testing.T) {
		require.NoError(t, h.manager.LeaveQueue("p1", result.Ticket.ID))
		assert.Equal(t, 0, h.manager.Stats().Queues[entity.TicTacToe])
	})
}

func TestGameManager_DisconnectAndReconnect(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.Register("conn-p1", "p1")
	h.dispatcher.Register("conn-p2", "p2")

	// Given: p1 and p2 are playing tic-tac-toe
	roomID, err := h.registry.CreateRoom(entity.TicTacToe, []entity.PlayerDescriptor{player("p1"), player("p2")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		view, _ := h.manager.GetRoom(roomID)
		return view.Status == entity.StatusPlaying
	}, waitFor, tick)

	// When: p1's connection drops and a new one comes back within the grace window
	h.dispatcher.OnDisconnect("conn-p1")

	view, _ := h.manager.GetRoom(roomID)
	assert.False(t, view.Participants[0].Connected)

	client := h.dispatcher.Register("conn-p1b", "p1")
	resumed, err := h.manager.Connect("p1", "conn-p1b")

	// Then: the room is resumed with a full-state resync
	require.NoError(t, err)
	require.NotNil(t, resumed)
	assert.Equal(t, roomID, resumed.ID)
	assert.Contains(t, events(client), entity.EventStateUpdate)

	time.Sleep(80 * time.Millisecond)
	view, _ = h.manager.GetRoom(roomID)
	assert.Equal(t, entity.StatusPlaying, view.Status)
}

func TestGameManager_LateDisconnectAfterReconnect(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.Register("conn-p1", "p1")
	h.dispatcher.Register("conn-p2", "p2")

	// Given: p1 and p2 are playing tic-tac-toe
	roomID, err := h.registry.CreateRoom(entity.TicTacToe, []entity.PlayerDescriptor{player("p1"), player("p2")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		view, _ := h.manager.GetRoom(roomID)
		return view.Status == entity.StatusPlaying
	}, waitFor, tick)

	// When: p1 is already back on a new connection when the old one is reported closed
	h.dispatcher.Register("conn-p1b", "p1")
	_, err = h.manager.Connect("p1", "conn-p1b")
	require.NoError(t, err)

	h.manager.PlayerDisconnected("p1", "conn-p1")

	// Then: p1 stays connected and the game survives the grace window
	view, err := h.manager.GetRoom(roomID)
	require.NoError(t, err)
	assert.True(t, view.Participants[0].Connected)

	time.Sleep(80 * time.Millisecond)
	view, _ = h.manager.GetRoom(roomID)
	assert.Equal(t, entity.StatusPlaying, view.Status)
}

func TestGameManager_QueuedTicketFollowsReconnect(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.Register("conn-p1", "p1")

	// Given: p1 queued and then reconnected on a new connection
	_, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.TicTacToe})
	require.NoError(t, err)

	h.dispatcher.Register("conn-p1b", "p1")
	view, err := h.manager.Connect("p1", "conn-p1b")
	require.NoError(t, err)
	require.Nil(t, view)

	// When: p1 is matched and the new connection drops
	result, err := h.manager.FindRoom(player("p2"), entity.FindRoomPayload{GameType: entity.TicTacToe})
	require.NoError(t, err)
	require.NotEmpty(t, result.RoomID)

	h.dispatcher.OnDisconnect("conn-p1b")

	// Then: the room sees p1 as disconnected
	current, err := h.manager.GetRoom(result.RoomID)
	require.NoError(t, err)
	assert.False(t, current.Participants[0].Connected)
}

func TestGameManager_DisconnectDropsTicket(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.Register("conn-p1", "p1")

	_, err := h.manager.FindRoom(player("p1"), entity.FindRoomPayload{GameType: entity.TicTacToe})
	require.NoError(t, err)

	h.dispatcher.OnDisconnect("conn-p1")

	assert.Equal(t, 0, h.manager.Stats().Queues[entity.TicTacToe])
}

func TestGameManager_ConnectWithoutRoom(t *testing.T) {
	h := newHarness(t)

	view, err := h.manager.Connect("nobody", "conn")

	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestGameManager_Leaderboard(t *testing.T) {
	h := newHarness(t)

	t.Run("Default limit", func(t *testing.T) {
		standings, err := h.manager.Leaderboard(context.Background(), entity.LudoRace, 0)
		require.NoError(t, err)
		require.Len(t, standings, 1)
		assert.Equal(t, int64(defaultLeaderboardSize), h.results.limit)
		assert.Equal(t, entity.LudoRace, h.results.gameType)
	})

	t.Run("Unknown game type", func(t *testing.T) {
		_, err := h.manager.Leaderboard(context.Background(), "chess", 5)
		assert.ErrorIs(t, err, apperror.ErrUnknownGameType)
	})
}

func TestGameManager_Results(t *testing.T) {
	h := newHarness(t)

	t.Run("Recent with default limit", func(t *testing.T) {
		summaries, err := h.manager.RecentResults(context.Background(), -5)
		require.NoError(t, err)
		assert.Len(t, summaries, 1)
		assert.Equal(t, int64(defaultLeaderboardSize), h.results.limit)
	})

	t.Run("Missing summary", func(t *testing.T) {
		_, err := h.manager.GetResult(context.Background(), "nope")
		assert.ErrorIs(t, err, repository.ErrSummaryNotFound)
	})

	t.Run("Player record", func(t *testing.T) {
		record, err := h.manager.GetPlayer(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, 2, record.Wins)

		_, err = h.manager.GetPlayer(context.Background(), "p2")
		assert.ErrorIs(t, err, repository.ErrPlayerNotFound)
	})
}

func TestQueueNotifier(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dispatcher := broadcast.NewDispatcher(logger, 4)
	client := dispatcher.Register("c1", "p1")
	notifier := NewQueueNotifier(dispatcher)
	ticket := entity.Ticket{ID: "t1", GameType: entity.LudoRace, Player: player("p1")}

	notifier.Notify(ticket, apperror.ErrMatchmakingTimeout)
	notifier.Notify(ticket, apperror.ErrRoomFull)

	assert.Equal(t, []string{entity.EventQueueTimeout, entity.EventActionError}, events(client))
}
