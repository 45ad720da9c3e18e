package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

const DefaultBufferSize = 64

// Message is the envelope of every server -> client frame.
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// DisconnectListener learns about players whose current connection went away.
type DisconnectListener interface {
	PlayerDisconnected(playerID, connectionID string)
}

// Client is one live connection. The transport drains Outbound; the dispatcher never blocks on it.
type Client struct {
	ConnectionID string
	PlayerID     string

	send      chan []byte
	closeOnce sync.Once
	resync    atomic.Bool
	dropped   atomic.Int64
}

func (that *Client) Outbound() <-chan []byte {
	return that.send
}

// TakeResync reports whether messages were dropped since the last call.
func (that *Client) TakeResync() bool {
	return that.resync.Swap(false)
}

func (that *Client) Dropped() int64 {
	return that.dropped.Load()
}

func (that *Client) close() {
	that.closeOnce.Do(func() {
		close(that.send)
	})
}

type Dispatcher struct {
	logger     *slog.Logger
	bufferSize int

	mu       sync.RWMutex
	clients  map[string]*Client
	players  map[string]*Client
	listener DisconnectListener
}

func NewDispatcher(logger *slog.Logger, bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Dispatcher{
		logger:     logger.With("component", "dispatcher"),
		bufferSize: bufferSize,
		clients:    make(map[string]*Client),
		players:    make(map[string]*Client),
	}
}

func (that *Dispatcher) SetListener(listener DisconnectListener) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.listener = listener
}

// Register binds a connection to a player. An older connection of the same player is
// closed and will not be reported as a disconnect.
func (that *Dispatcher) Register(connectionID, playerID string) *Client {
	client := &Client{
		ConnectionID: connectionID,
		PlayerID:     playerID,
		send:         make(chan []byte, that.bufferSize),
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if old, ok := that.players[playerID]; ok {
		delete(that.clients, old.ConnectionID)
		old.close()
		that.logger.Info("connection replaced", "player_id", playerID, "old_connection", old.ConnectionID)
	}

	that.clients[connectionID] = client
	that.players[playerID] = client

	return client
}

// Publish encodes the event once and queues it for every connected recipient.
func (that *Dispatcher) Publish(roomID string, recipients []string, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		that.logger.Error("failed to encode event", "room_id", roomID, "event", event, "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for _, playerID := range recipients {
		if client, ok := that.players[playerID]; ok {
			that.deliver(client, event, data)
		}
	}
}

func (that *Dispatcher) SendTo(playerID, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		that.logger.Error("failed to encode event", "player_id", playerID, "event", event, "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	if client, ok := that.players[playerID]; ok {
		that.deliver(client, event, data)
	}
}

// OnDisconnect unbinds the connection and tells the listener, unless the player has already reconnected elsewhere.
func (that *Dispatcher) OnDisconnect(connectionID string) {
	that.mu.Lock()
	client, ok := that.clients[connectionID]
	if ok {
		delete(that.clients, connectionID)
		if that.players[client.PlayerID] == client {
			delete(that.players, client.PlayerID)
		}
		client.close()
	}
	listener := that.listener
	that.mu.Unlock()

	if !ok {
		return
	}

	that.logger.Info("connection closed", "player_id", client.PlayerID, "connection_id", connectionID)

	if listener != nil {
		listener.PlayerDisconnected(client.PlayerID, connectionID)
	}
}

func (that *Dispatcher) IsConnected(playerID string) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	_, ok := that.players[playerID]
	return ok
}

func (that *Dispatcher) Connections() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.clients)
}

// Close drops every connection without notifying the listener.
func (that *Dispatcher) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for connectionID, client := range that.clients {
		client.close()
		delete(that.clients, connectionID)
	}
	clear(that.players)
}

// deliver must be called with mu held. A full queue drops the message and flags the client for resync.
func (that *Dispatcher) deliver(client *Client, event string, data []byte) {
	select {
	case client.send <- data:
	default:
		client.dropped.Add(1)
		client.resync.Store(true)
		that.logger.Warn("outbound queue full, message dropped",
			"player_id", client.PlayerID,
			"event", event)
	}
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(Message{Event: event, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", event, err)
	}

	return data, nil
}
