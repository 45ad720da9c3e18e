package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/campus-arena/internal/broadcast"
	"github.com/rocketscienceinc/campus-arena/internal/config"
	"github.com/rocketscienceinc/campus-arena/internal/game"
	"github.com/rocketscienceinc/campus-arena/internal/ludo"
	"github.com/rocketscienceinc/campus-arena/internal/matchmaking"
	"github.com/rocketscienceinc/campus-arena/internal/repository"
	"github.com/rocketscienceinc/campus-arena/internal/repository/storage"
	"github.com/rocketscienceinc/campus-arena/internal/results"
	"github.com/rocketscienceinc/campus-arena/internal/room"
	"github.com/rocketscienceinc/campus-arena/internal/rps"
	"github.com/rocketscienceinc/campus-arena/internal/tictactoe"
	natsbus "github.com/rocketscienceinc/campus-arena/internal/transport/nats"
	"github.com/rocketscienceinc/campus-arena/internal/usecase"
	"github.com/rocketscienceinc/campus-arena/transport/rest"
	"github.com/rocketscienceinc/campus-arena/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	resultRepo := repository.NewResultRepository(redisStorage)
	playerRepo := repository.NewPlayerRepository(redisStorage)
	sinks := []results.Sink{resultRepo, playerRepo}

	if conf.NATS.URL != "" {
		publisher, natsErr := natsbus.Connect(logger, conf.NATS.URL, conf.NATS.Subject)
		if natsErr != nil {
			return fmt.Errorf("could not connect to nats: %w", natsErr)
		}
		defer publisher.Close()

		sinks = append(sinks, publisher)
	}

	recorder := results.NewRecorder(logger, 0, sinks...)

	dice := ludo.NewRandomDice(rand.Uint64(), rand.Uint64()) //nolint: gosec // it's ok
	catalog := game.NewCatalog(
		tictactoe.NewRules(),
		rps.NewRules(conf.Game.RPSMaxRounds),
		ludo.NewRules(dice, conf.Game.LudoBonusCap),
	)

	dispatcher := broadcast.NewDispatcher(logger, conf.Game.SendBuffer)
	registry := room.NewRegistry(logger, catalog, room.NewSettings(conf.Game), dispatcher, recorder)
	coordinator := matchmaking.NewCoordinator(logger, catalog, matchmaking.NewSettings(conf.Game), registry, usecase.NewQueueNotifier(dispatcher))
	gameManager := usecase.NewGameManager(logger, catalog, registry, coordinator, dispatcher, resultRepo, playerRepo)
	dispatcher.SetListener(gameManager)

	defer func() {
		coordinator.Stop()
		dispatcher.Close()
	}()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return recorder.Run(groupCtx)
	})

	// run HTTP server
	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		restServer := rest.New(logger, rest.NewHandlers(logger, gameManager))
		if httpErr := restServer.Start(groupCtx, conf.HTTPPort); httpErr != nil {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}

		return nil
	})

	// run Websocket server
	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, gameManager, dispatcher)
		if wsErr := wsServer.Start(groupCtx, conf.SocketPort); wsErr != nil {
			return fmt.Errorf("WebSocket server error: %w", wsErr)
		}

		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")

	return nil
}
