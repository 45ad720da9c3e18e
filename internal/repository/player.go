package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/campus-arena/internal/entity"
)

const (
	fieldGames  = "games"
	fieldWins   = "wins"
	fieldDraws  = "draws"
	fieldLosses = "losses"
	fieldPoints = "points"
)

var ErrPlayerNotFound = errors.New("player not found")

type PlayerRepository interface {
	Save(ctx context.Context, summary entity.Summary) error
	GetByID(ctx context.Context, id string) (*entity.PlayerRecord, error)
}

type dbPlayer struct {
	client *redis.Client
}

func NewPlayerRepository(client *redis.Client) PlayerRepository {
	return &dbPlayer{
		client: client,
	}
}

// Save adds one finished game to the record of every human participant. Aborted games are not counted.
func (that *dbPlayer) Save(ctx context.Context, summary entity.Summary) error {
	if summary.Outcome.Kind == entity.OutcomeAborted {
		return nil
	}

	_, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, playerID := range summary.ParticipantIDs {
			if entity.IsBotID(playerID) {
				continue
			}

			key := playerKey(playerID)
			pipe.HIncrBy(ctx, key, fieldGames, 1)
			pipe.HIncrBy(ctx, key, resultField(summary.Outcome, playerID), 1)
			pipe.HIncrBy(ctx, key, fieldPoints, int64(summary.PointsAwarded[playerID]))
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update player records: %w", err)
	}

	return nil
}

func (that *dbPlayer) GetByID(ctx context.Context, id string) (*entity.PlayerRecord, error) {
	response, err := that.client.HGetAll(ctx, playerKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w by id", err)
	}

	if len(response) == 0 {
		return nil, ErrPlayerNotFound
	}

	return &entity.PlayerRecord{
		PlayerID: id,
		Games:    atoi(response[fieldGames]),
		Wins:     atoi(response[fieldWins]),
		Draws:    atoi(response[fieldDraws]),
		Losses:   atoi(response[fieldLosses]),
		Points:   atoi(response[fieldPoints]),
	}, nil
}

func resultField(outcome entity.Outcome, playerID string) string {
	switch {
	case outcome.IsDraw():
		return fieldDraws
	case outcome.Winner == playerID:
		return fieldWins
	default:
		return fieldLosses
	}
}

func atoi(value string) int {
	n, _ := strconv.Atoi(value)
	return n
}

func playerKey(id string) string {
	return "player:" + id
}
