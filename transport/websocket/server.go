package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/campus-arena/internal/broadcast"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/pkg"
	"github.com/rocketscienceinc/campus-arena/internal/usecase"
)

const (
	sessionCookie = "user_session"
	sessionTTL    = 24 * time.Hour
)

type gameManager interface {
	Connect(playerID, connectionID string) (*entity.RoomView, error)
	FindRoom(player entity.PlayerDescriptor, req entity.FindRoomPayload) (*usecase.FindRoomResult, error)
	LeaveQueue(playerID, ticketID string) error
	GameAction(playerID, roomID string, raw json.RawMessage) error
	LeaveRoom(playerID, roomID string) error
	Resync(playerID string)
}

type dispatcher interface {
	Register(connectionID, playerID string) *broadcast.Client
	SendTo(playerID, event string, payload any)
	OnDisconnect(connectionID string)
}

type handler func(conn *connection, payload json.RawMessage) error

type Server struct {
	logger     *slog.Logger
	manager    gameManager
	dispatcher dispatcher
	upgrader   websocket.Upgrader

	handlers map[string]handler
}

func New(logger *slog.Logger, manager gameManager, dispatcher dispatcher) *Server {
	server := &Server{
		logger:     logger.With("component", "websocket"),
		manager:    manager,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},

		handlers: make(map[string]handler),
	}

	server.handlers[entity.EventFindRoom] = server.handleFindRoom
	server.handlers[entity.EventLeaveQueue] = server.handleLeaveQueue
	server.handlers[entity.EventGameAction] = server.handleGameAction
	server.handlers[entity.EventLeaveRoom] = server.handleLeaveRoom

	return server
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.serveWS)

	return mux
}

// Start - starts WebSocket server. It returns after ctx is canceled and the listener is shut down.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveWS - upgrades the connection to WebSocket and binds it to the player.
func (that *Server) serveWS(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "serveWS")

	header := http.Header{}
	playerID := req.URL.Query().Get("player_id")
	if playerID == "" {
		playerID = that.sessionID(req, header)
	}

	if entity.IsBotID(playerID) {
		log.Warn("reserved player id refused", "player_id", playerID)
		http.Error(writer, "reserved player id", http.StatusBadRequest)

		return
	}

	conn, err := that.upgrader.Upgrade(writer, req, header)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	connectionID := pkg.GenerateConnectionID()
	client := that.dispatcher.Register(connectionID, playerID)

	c := &connection{
		server:   that,
		conn:     conn,
		client:   client,
		playerID: playerID,
		id:       connectionID,
	}

	log.Info("WebSocket connection established", "player_id", playerID, "connection_id", connectionID)

	that.dispatcher.SendTo(playerID, entity.EventConnected, entity.ConnectedPayload{PlayerID: playerID})

	if _, err = that.manager.Connect(playerID, connectionID); err != nil {
		log.Error("failed to resume room", "player_id", playerID, "error", err)
	}

	go c.writePump()
	go c.readPump()
}

// sessionID - returns the user session, creating the cookie when it is missing.
func (that *Server) sessionID(req *http.Request, header http.Header) string {
	log := that.logger.With("method", "sessionID")

	cookie, err := req.Cookie(sessionCookie)
	if err == nil && cookie.Value != "" {
		log.Debug("session cookie found", "cookie", cookie.Value)
		return cookie.Value
	}

	cookie = &http.Cookie{
		Name:     sessionCookie,
		Value:    pkg.GenerateNewSessionID(),
		Expires:  time.Now().Add(sessionTTL),
		Path:     "/ws",
		HttpOnly: true,
	}
	header.Add("Set-Cookie", cookie.String())

	log.Info("session cookie not found, new one created", "cookie", cookie.Value)

	return cookie.Value
}
