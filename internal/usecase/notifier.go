package usecase

import (
	"errors"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
)

type sender interface {
	SendTo(playerID, event string, payload any)
}

// QueueNotifier tells queued players that matchmaking could not seat them.
type QueueNotifier struct {
	sender sender
}

func NewQueueNotifier(sender sender) *QueueNotifier {
	return &QueueNotifier{sender: sender}
}

func (that *QueueNotifier) Notify(ticket entity.Ticket, err error) {
	if errors.Is(err, apperror.ErrMatchmakingTimeout) {
		that.sender.SendTo(ticket.Player.PlayerID, entity.EventQueueTimeout, entity.QueueTimeoutPayload{
			Ticket: ticket.ID,
			Reason: err.Error(),
		})

		return
	}

	that.sender.SendTo(ticket.Player.PlayerID, entity.EventActionError, entity.ActionErrorPayload{
		Reason: err.Error(),
		Code:   apperror.Code(err),
	})
}
