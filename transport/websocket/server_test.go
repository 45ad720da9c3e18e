package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/campus-arena/internal/broadcast"
	"github.com/rocketscienceinc/campus-arena/internal/config"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
	"github.com/rocketscienceinc/campus-arena/internal/matchmaking"
	"github.com/rocketscienceinc/campus-arena/internal/room"
	"github.com/rocketscienceinc/campus-arena/internal/rps"
	"github.com/rocketscienceinc/campus-arena/internal/tictactoe"
	"github.com/rocketscienceinc/campus-arena/internal/usecase"
)

type noSink struct{}

func (noSink) Record(entity.Summary) {}

type received struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	catalog := game.NewCatalog(tictactoe.NewRules(), rps.NewRules(1))
	dispatcher := broadcast.NewDispatcher(logger, 64)

	registry := room.NewRegistry(logger, catalog, room.Settings{
		StartCountdown: 10 * time.Millisecond,
		ReconnectGrace: time.Second,
		FinishedGrace:  time.Minute,
		BotDelay:       time.Millisecond,
		Points:         config.Points{Win: 10, Draw: 5},
	}, dispatcher, noSink{})
	coordinator := matchmaking.NewCoordinator(logger, catalog, matchmaking.Settings{BackfillWait: time.Minute}, registry, usecase.NewQueueNotifier(dispatcher))
	manager := usecase.NewGameManager(logger, catalog, registry, coordinator, dispatcher, nil, nil)
	dispatcher.SetListener(manager)

	server := httptest.NewServer(New(logger, manager, dispatcher).Handler())
	t.Cleanup(func() {
		server.Close()
		coordinator.Stop()
		dispatcher.Close()
	})

	return server
}

func dial(t *testing.T, server *httptest.Server, query string) (*websocket.Conn, *http.Response) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn, resp
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Event: event, Payload: data}))
}

// next reads frames until one with the wanted event arrives.
func next(t *testing.T, conn *websocket.Conn, event string) received {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for {
		var message received
		require.NoError(t, conn.ReadJSON(&message))

		if message.Event == event {
			return message
		}
	}
}

func TestServer_Connect(t *testing.T) {
	server := newTestServer(t)

	t.Run("Player id from query", func(t *testing.T) {
		conn, _ := dial(t, server, "?player_id=p1")

		message := next(t, conn, entity.EventConnected)

		var payload entity.ConnectedPayload
		require.NoError(t, json.Unmarshal(message.Payload, &payload))
		assert.Equal(t, "p1", payload.PlayerID)
	})

	t.Run("Session cookie is created", func(t *testing.T) {
		_, resp := dial(t, server, "")

		cookies := resp.Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, sessionCookie, cookies[0].Name)
		assert.NotEmpty(t, cookies[0].Value)
	})
}

func TestServer_ReservedBotID(t *testing.T) {
	server := newTestServer(t)

	// When: a client claims an id from the bot namespace
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?player_id=bot:x"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		conn.Close()
	}

	// Then: the upgrade is refused
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_QueueAndMatch(t *testing.T) {
	server := newTestServer(t)
	p1, _ := dial(t, server, "?player_id=p1")
	p2, _ := dial(t, server, "?player_id=p2")

	// Given: p1 is queued for tic-tac-toe
	send(t, p1, entity.EventFindRoom, entity.FindRoomPayload{GameType: entity.TicTacToe, Mode: entity.ModePublic})

	queued := next(t, p1, entity.EventQueued)
	var ticket entity.QueuedPayload
	require.NoError(t, json.Unmarshal(queued.Payload, &ticket))
	assert.Equal(t, 1, ticket.Position)

	// When: p2 asks for the same game
	send(t, p2, entity.EventFindRoom, entity.FindRoomPayload{GameType: entity.TicTacToe, Mode: entity.ModePublic})

	// Then: both receive the start of the same room
	first := next(t, p1, entity.EventGameStart)
	second := next(t, p2, entity.EventGameStart)

	var r1, r2 entity.RoomPayload
	require.NoError(t, json.Unmarshal(first.Payload, &r1))
	require.NoError(t, json.Unmarshal(second.Payload, &r2))
	assert.Equal(t, r1.Room.ID, r2.Room.ID)
	assert.Equal(t, entity.StatusPlaying, r1.Room.Status)

	// And: X moves, both see the update
	send(t, p1, entity.EventGameAction, entity.GameActionPayload{
		RoomID: r1.Room.ID,
		Action: json.RawMessage(`{"type":"move","position":4}`),
	})

	update := next(t, p2, entity.EventStateUpdate)
	var state entity.StateUpdatePayload
	require.NoError(t, json.Unmarshal(update.Payload, &state))
	assert.Equal(t, 1, state.Room.Moves)
}

func TestServer_ActionErrors(t *testing.T) {
	server := newTestServer(t)
	conn, _ := dial(t, server, "?player_id=p1")

	t.Run("Unknown event", func(t *testing.T) {
		send(t, conn, "dance", map[string]string{})

		message := next(t, conn, entity.EventActionError)

		var payload entity.ActionErrorPayload
		require.NoError(t, json.Unmarshal(message.Payload, &payload))
		assert.Equal(t, "invalid_action", payload.Code)
	})

	t.Run("Unknown room", func(t *testing.T) {
		send(t, conn, entity.EventGameAction, entity.GameActionPayload{
			RoomID: "missing",
			Action: json.RawMessage(`{"type":"move","position":0}`),
		})

		message := next(t, conn, entity.EventActionError)

		var payload entity.ActionErrorPayload
		require.NoError(t, json.Unmarshal(message.Payload, &payload))
		assert.Equal(t, "room_not_found", payload.Code)
	})
}
