package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/middleware"
	"github.com/wfunc/turngame/internal/models"
	"github.com/wfunc/turngame/internal/service"
	"go.uber.org/zap"
)

// GameHandler serves the game and move routes.
type GameHandler struct {
	games service.GameService
	log   *zap.Logger
}

// NewGameHandler creates the game handler.
func NewGameHandler(games service.GameService, log *zap.Logger) *GameHandler {
	return &GameHandler{
		games: games,
		log:   log,
	}
}

// CreateGame creates the game named by the route from {type, players, gameConfig}.
func (h *GameHandler) CreateGame(c *gin.Context) {
	var req service.CreateGameRequest
	if !h.bind(c, &req) {
		return
	}

	state, err := h.games.CreateGame(c.Request.Context(), h.requester(c), c.Param("gameId"), &req)
	if err != nil {
		h.fail(c, "create game failed", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetGame returns the stored state to a participant.
func (h *GameHandler) GetGame(c *gin.Context) {
	state, err := h.games.Game(c.Request.Context(), h.requester(c), c.Param("gameId"))
	if err != nil {
		h.fail(c, "retrieve game failed", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetMoves returns the move log in insertion order.
func (h *GameHandler) GetMoves(c *gin.Context) {
	moves, err := h.games.Moves(c.Request.Context(), h.requester(c), c.Param("gameId"))
	if err != nil {
		h.fail(c, "retrieve moves failed", err)
		return
	}
	if moves == nil {
		moves = []*models.Move{}
	}
	c.JSON(http.StatusOK, moves)
}

// SubmitMove runs {moveData, chatEvent} through the move pipeline and returns the new state.
func (h *GameHandler) SubmitMove(c *gin.Context) {
	var req service.MoveRequest
	if !h.bind(c, &req) {
		return
	}

	state, err := h.games.SubmitMove(c.Request.Context(), h.requester(c), c.Param("gameId"), &req)
	if err != nil {
		h.fail(c, "submit move failed", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// bind decodes a JSON body. An empty body leaves dst zero so the service reports
// which field is missing.
func (h *GameHandler) bind(c *gin.Context, dst interface{}) bool {
	body, err := c.GetRawData()
	if err != nil {
		middleware.RespondError(c, errors.Wrap(err, errors.ErrInvalidParam, errors.ReasonInvalidContent))
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		middleware.RespondError(c, errors.Wrap(err, errors.ErrInvalidParam, errors.ReasonInvalidContent))
		return false
	}
	return true
}

func (h *GameHandler) requester(c *gin.Context) *models.User {
	user, _ := middleware.GetUser(c)
	return user
}

func (h *GameHandler) fail(c *gin.Context, msg string, err error) {
	l := middleware.GetLogger(c, h.log)
	if errors.IsClientError(err) {
		l.Info(msg, zap.String("game", c.Param("gameId")), zap.Error(err))
	} else {
		l.Error(msg, zap.String("game", c.Param("gameId")), zap.Error(err))
	}
	middleware.RespondError(c, err)
}
