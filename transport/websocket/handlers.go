package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
)

func (that *Server) handleFindRoom(conn *connection, payload json.RawMessage) error {
	var req entity.FindRoomPayload
	if err := decode(payload, &req); err != nil {
		return err
	}

	player := entity.PlayerDescriptor{PlayerID: conn.playerID, ConnectionID: conn.id}

	result, err := that.manager.FindRoom(player, req)
	if err != nil {
		return fmt.Errorf("failed to find room: %w", err)
	}

	if result.Ticket != nil && result.Position > 0 {
		that.dispatcher.SendTo(conn.playerID, entity.EventQueued, entity.QueuedPayload{
			Ticket:   result.Ticket.ID,
			GameType: result.Ticket.GameType,
			Position: result.Position,
		})
	}

	return nil
}

func (that *Server) handleLeaveQueue(conn *connection, payload json.RawMessage) error {
	var req entity.LeaveQueuePayload
	if err := decode(payload, &req); err != nil {
		return err
	}

	return that.manager.LeaveQueue(conn.playerID, req.Ticket)
}

func (that *Server) handleGameAction(conn *connection, payload json.RawMessage) error {
	var req entity.GameActionPayload
	if err := decode(payload, &req); err != nil {
		return err
	}

	if req.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", apperror.ErrInvalidAction)
	}

	return that.manager.GameAction(conn.playerID, req.RoomID, req.Action)
}

func (that *Server) handleLeaveRoom(conn *connection, payload json.RawMessage) error {
	var req entity.LeaveRoomPayload
	if err := decode(payload, &req); err != nil {
		return err
	}

	return that.manager.LeaveRoom(conn.playerID, req.RoomID)
}

func decode(payload json.RawMessage, target any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload is required", apperror.ErrInvalidAction)
	}

	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("%w: failed to unmarshal payload: %w", apperror.ErrInvalidAction, err)
	}

	return nil
}
