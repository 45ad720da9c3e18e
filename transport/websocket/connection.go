package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/broadcast"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8 << 10
)

// Message is the envelope of every client -> server frame.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type connection struct {
	server   *Server
	conn     *websocket.Conn
	client   *broadcast.Client
	playerID string
	id       string
}

func (that *connection) readPump() {
	log := that.server.logger.With("method", "readPump", "player_id", that.playerID, "connection_id", that.id)

	defer func() {
		that.server.dispatcher.OnDisconnect(that.id)
		that.conn.Close()
	}()

	that.conn.SetReadLimit(maxMessageSize)
	if err := that.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Error("failed to set read deadline", "error", err)
	}

	that.conn.SetPongHandler(func(string) error {
		return that.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := that.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("error reading message", "error", err)
			}

			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		that.handle(data)
	}
}

func (that *connection) handle(data []byte) {
	log := that.server.logger.With("method", "handle", "player_id", that.playerID)

	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		that.sendError(fmt.Errorf("%w: malformed message", apperror.ErrInvalidAction))
		return
	}

	handler, ok := that.server.handlers[message.Event]
	if !ok {
		that.sendError(fmt.Errorf("%w: unknown event %q", apperror.ErrInvalidAction, message.Event))
		return
	}

	if err := handler(that, message.Payload); err != nil {
		log.Info("request rejected", "event", message.Event, "error", err)
		that.sendError(err)
	}
}

func (that *connection) sendError(err error) {
	that.server.dispatcher.SendTo(that.playerID, entity.EventActionError, entity.ActionErrorPayload{
		Reason: err.Error(),
		Code:   apperror.Code(err),
	})
}

// writePump is the only writer of the socket. Once the queue drains after a drop, the
// player gets a full-state resync.
func (that *connection) writePump() {
	log := that.server.logger.With("method", "writePump", "player_id", that.playerID, "connection_id", that.id)

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		that.conn.Close()
	}()

	outbound := that.client.Outbound()
	for {
		select {
		case data, ok := <-outbound:
			if err := that.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error("failed to set write deadline", "error", err)
			}

			if !ok {
				_ = that.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := that.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error("failed to write message", "error", err)
				return
			}

			if len(outbound) == 0 && that.client.TakeResync() {
				log.Warn("resyncing after dropped messages", "dropped", that.client.Dropped())
				that.server.manager.Resync(that.playerID)
			}
		case <-ticker.C:
			if err := that.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error("failed to set write deadline", "error", err)
			}

			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
