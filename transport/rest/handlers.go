package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
	"github.com/rocketscienceinc/campus-arena/internal/repository"
)

const maxLeaderboardSize = 100

type Handlers interface {
	Ping(ctx echo.Context) error
	GetRoom(ctx echo.Context) error
	Stats(ctx echo.Context) error
	Leaderboard(ctx echo.Context) error
	RecentResults(ctx echo.Context) error
	GetResult(ctx echo.Context) error
	GetPlayer(ctx echo.Context) error
}

type gameManager interface {
	GetRoom(roomID string) (*entity.RoomView, error)
	Stats() entity.Stats
	Leaderboard(ctx context.Context, gameType entity.GameType, limit int64) ([]entity.Standing, error)
	RecentResults(ctx context.Context, limit int64) ([]entity.Summary, error)
	GetResult(ctx context.Context, roomID string) (*entity.Summary, error)
	GetPlayer(ctx context.Context, playerID string) (*entity.PlayerRecord, error)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type handlers struct {
	logger  *slog.Logger
	manager gameManager
}

func NewHandlers(logger *slog.Logger, manager gameManager) Handlers {
	return &handlers{
		logger:  logger.With("component", "rest"),
		manager: manager,
	}
}

func (that *handlers) Ping(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "pong")
}

func (that *handlers) GetRoom(ctx echo.Context) error {
	room, err := that.manager.GetRoom(ctx.Param("id"))
	if err != nil {
		return that.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, room)
}

func (that *handlers) Stats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, that.manager.Stats())
}

func (that *handlers) Leaderboard(ctx echo.Context) error {
	limit, ok := parseLimit(ctx.QueryParam("limit"))
	if !ok {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit", Code: "invalid_request"})
	}

	standings, err := that.manager.Leaderboard(ctx.Request().Context(), entity.GameType(ctx.QueryParam("gameType")), limit)
	if err != nil {
		return that.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, standings)
}

func (that *handlers) RecentResults(ctx echo.Context) error {
	limit, ok := parseLimit(ctx.QueryParam("limit"))
	if !ok {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit", Code: "invalid_request"})
	}

	summaries, err := that.manager.RecentResults(ctx.Request().Context(), limit)
	if err != nil {
		return that.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, summaries)
}

func (that *handlers) GetResult(ctx echo.Context) error {
	summary, err := that.manager.GetResult(ctx.Request().Context(), ctx.Param("roomId"))
	if err != nil {
		return that.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, summary)
}

func (that *handlers) GetPlayer(ctx echo.Context) error {
	record, err := that.manager.GetPlayer(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return that.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, record)
}

func (that *handlers) fail(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError
	code := apperror.Code(err)

	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrSummaryNotFound), errors.Is(err, repository.ErrPlayerNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, apperror.ErrUnknownGameType):
		status = http.StatusBadRequest
	default:
		that.logger.Error("request failed", "path", ctx.Path(), "error", err)
	}

	return ctx.JSON(status, errorResponse{Error: err.Error(), Code: code})
}

// parseLimit accepts an empty value (use the default) or 1..maxLeaderboardSize.
func parseLimit(raw string) (int64, bool) {
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 || limit > maxLeaderboardSize {
		return 0, false
	}

	return limit, true
}
