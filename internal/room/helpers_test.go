package room

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/campus-arena/internal/config"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/game"
	"github.com/rocketscienceinc/campus-arena/internal/ludo"
	"github.com/rocketscienceinc/campus-arena/internal/rps"
	"github.com/rocketscienceinc/campus-arena/internal/tictactoe"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type published struct {
	RoomID     string
	Recipients []string
	To         string
	Event      string
	Payload    any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (that *recordingPublisher) Publish(roomID string, recipients []string, event string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, published{RoomID: roomID, Recipients: recipients, Event: event, Payload: payload})
}

func (that *recordingPublisher) SendTo(playerID, event string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, published{To: playerID, Event: event, Payload: payload})
}

func (that *recordingPublisher) named(event string) []published {
	that.mu.Lock()
	defer that.mu.Unlock()

	var found []published
	for _, e := range that.events {
		if e.Event == event {
			found = append(found, e)
		}
	}

	return found
}

type recordingSink struct {
	mu        sync.Mutex
	summaries []entity.Summary
}

func (that *recordingSink) Record(summary entity.Summary) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.summaries = append(that.summaries, summary)
}

func (that *recordingSink) all() []entity.Summary {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]entity.Summary(nil), that.summaries...)
}

func testSettings() Settings {
	return Settings{
		StartCountdown: 40 * time.Millisecond,
		ReconnectGrace: 60 * time.Millisecond,
		FinishedGrace:  60 * time.Millisecond,
		BotDelay:       time.Millisecond,
		Points:         config.Points{Win: 10, Draw: 5, Loss: 0},
	}
}

func newTestRegistry(rules ...game.Rules) (*Registry, *recordingPublisher, *recordingSink) {
	if len(rules) == 0 {
		rules = []game.Rules{
			tictactoe.NewRules(),
			rps.NewRules(1),
			ludo.NewRules(ludo.NewRandomDice(1, 2), ludo.DefaultBonusCap),
		}
	}

	publisher := &recordingPublisher{}
	sink := &recordingSink{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	return NewRegistry(logger, game.NewCatalog(rules...), testSettings(), publisher, sink), publisher, sink
}

func players(ids ...string) []entity.PlayerDescriptor {
	descriptors := make([]entity.PlayerDescriptor, len(ids))
	for i, id := range ids {
		descriptors[i] = entity.PlayerDescriptor{PlayerID: id, ConnectionID: "conn-" + id, Bot: entity.IsBotID(id)}
	}

	return descriptors
}
