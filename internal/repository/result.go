package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/campus-arena/internal/entity"
)

const (
	recentKey     = "results:recent"
	recentLimit   = 100
	leaderboardID = "all"
)

var ErrSummaryNotFound = errors.New("summary not found")

type ResultRepository interface {
	Save(ctx context.Context, summary entity.Summary) error
	GetByRoomID(ctx context.Context, roomID string) (*entity.Summary, error)
	Recent(ctx context.Context, limit int64) ([]entity.Summary, error)
	Leaderboard(ctx context.Context, gameType entity.GameType, limit int64) ([]entity.Standing, error)
}

type dbResult struct {
	client *redis.Client
}

func NewResultRepository(client *redis.Client) ResultRepository {
	return &dbResult{
		client: client,
	}
}

// Save stores the summary, keeps the recent list bounded and adds the awarded points to
// the per-game and overall leaderboards in one transaction.
func (that *dbResult) Save(ctx context.Context, summary entity.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("could not marshal summary: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, summaryKey(summary.RoomID), summaryJSON, 0)
		pipe.LPush(ctx, recentKey, summaryJSON)
		pipe.LTrim(ctx, recentKey, 0, recentLimit-1)

		for playerID, points := range summary.PointsAwarded {
			pipe.ZIncrBy(ctx, leaderboardKey(summary.GameType), float64(points), playerID)
			pipe.ZIncrBy(ctx, leaderboardKey(leaderboardID), float64(points), playerID)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	return nil
}

func (that *dbResult) GetByRoomID(ctx context.Context, roomID string) (*entity.Summary, error) {
	response, err := that.client.Get(ctx, summaryKey(roomID)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrSummaryNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w by room id", err)
	}

	var summary entity.Summary
	if err = json.Unmarshal([]byte(response), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return &summary, nil
}

// Recent returns the latest summaries, newest first.
func (that *dbResult) Recent(ctx context.Context, limit int64) ([]entity.Summary, error) {
	response, err := that.client.LRange(ctx, recentKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent summaries: %w", err)
	}

	summaries := make([]entity.Summary, 0, len(response))
	for _, raw := range response {
		var summary entity.Summary
		if err = json.Unmarshal([]byte(raw), &summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Leaderboard returns the top players of a game type; an empty type means every game.
func (that *dbResult) Leaderboard(ctx context.Context, gameType entity.GameType, limit int64) ([]entity.Standing, error) {
	if gameType == "" {
		gameType = leaderboardID
	}

	response, err := that.client.ZRevRangeWithScores(ctx, leaderboardKey(gameType), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	standings := make([]entity.Standing, 0, len(response))
	for i, member := range response {
		playerID, _ := member.Member.(string)
		standings = append(standings, entity.Standing{
			Rank:     i + 1,
			PlayerID: playerID,
			Points:   int(member.Score),
		})
	}

	return standings, nil
}

func summaryKey(roomID string) string {
	return "summary:" + roomID
}

func leaderboardKey(gameType entity.GameType) string {
	return "leaderboard:" + string(gameType)
}
