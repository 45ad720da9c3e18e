package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rocketscienceinc/campus-arena/internal/entity"
)

// Publisher announces finished games on a NATS subject for downstream collaborators.
type Publisher struct {
	logger  *slog.Logger
	conn    *nats.Conn
	subject string
}

func Connect(logger *slog.Logger, url, subject string) (*Publisher, error) {
	log := logger.With("component", "nats")

	conn, err := nats.Connect(
		url,
		nats.Name("campus-arena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			log.Info("nats reconnected", "url", conn.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{logger: log, conn: conn, subject: subject}, nil
}

func (that *Publisher) Save(ctx context.Context, summary entity.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("could not marshal summary: %w", err)
	}

	msg := &nats.Msg{
		Subject: that.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Game-Type", string(summary.GameType))
	msg.Header.Set("Room-Id", summary.RoomID)

	if err = that.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish summary: %w", err)
	}

	if err = that.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush summary: %w", err)
	}

	return nil
}

func (that *Publisher) Close() {
	if err := that.conn.Drain(); err != nil {
		that.logger.Error("failed to drain nats connection", "error", err)
	}
}
