package service

import (
	"context"
	"time"

	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/models"
	"github.com/wfunc/turngame/internal/monitor"
	"github.com/wfunc/turngame/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Game config and data fields used by the local kick-out.
const (
	fieldMaxMoveTime  = "maxMoveTime"
	fieldLastMoveTime = "lastMoveTime"
	fieldEndTime      = "endTime"
)

type gameService struct {
	games    repository.GameRepository
	rules    RulesRegistry
	notifier MoveNotifier
	chat     ChatRelay
	log      *zap.Logger
	metrics  *monitor.Metrics
	now      func() time.Time
}

// NewGameService wires the move pipeline. There is no locking across requests: two
// concurrent moves on one game race and the last write wins.
func NewGameService(
	games repository.GameRepository,
	rules RulesRegistry,
	notifier MoveNotifier,
	chat ChatRelay,
	log *zap.Logger,
	metrics *monitor.Metrics,
) GameService {
	return &gameService{
		games:    games,
		rules:    rules,
		notifier: notifier,
		chat:     chat,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *gameService) CreateGame(ctx context.Context, requester *models.User, gameID string, req *CreateGameRequest) (*models.GameState, error) {
	if gameID == "" {
		return nil, errors.New(errors.ErrInvalidParam, errors.ReasonMissingGameID)
	}
	if req == nil || req.Type == "" {
		return nil, errors.New(errors.ErrInvalidParam, errors.ReasonMissingType)
	}
	if len(req.Players) == 0 {
		return nil, errors.New(errors.ErrInvalidParam, errors.ReasonMissingPlayers)
	}
	if hasDuplicates(req.Players) {
		return nil, errors.New(errors.ErrInvalidParam, errors.ReasonDuplicatePlayers)
	}
	creation := &models.GameCreation{
		ID:         gameID,
		Type:       req.Type,
		Players:    req.Players,
		GameConfig: req.GameConfig,
	}
	if !contains(creation.Players, requester.Username) {
		return nil, errors.New(errors.ErrPermissionDenied, errors.ReasonNotAParticipant)
	}

	state, err := s.rules.Get(req.Type).CreateGame(ctx, creation)
	if err != nil {
		s.log.Error("rules failed to create game", zap.String("game", gameID), zap.String("type", req.Type), zap.Error(err))
		return nil, err
	}

	if err := s.games.SetState(ctx, gameID, state); err != nil {
		s.log.Error("failed to store new game", zap.String("game", gameID), zap.Error(err))
		return nil, err
	}

	s.metrics.IncGamesCreated()
	s.log.Info("game created",
		zap.String("game", gameID),
		zap.String("type", state.Type),
		zap.Strings("players", state.Players),
		zap.String("by", requester.Username),
	)
	return state, nil
}

// load returns the game if requester takes part in it.
func (s *gameService) load(ctx context.Context, requester *models.User, gameID string) (*models.GameState, error) {
	if gameID == "" {
		return nil, errors.New(errors.ErrInvalidParam, errors.ReasonInvalidContent)
	}
	state, err := s.games.State(ctx, gameID)
	if err != nil {
		s.log.Error("failed to load game", zap.String("game", gameID), zap.Error(err))
		return nil, err
	}
	if state == nil {
		s.log.Warn("game not found", zap.String("game", gameID))
		return nil, errors.Newf(errors.ErrNotFound, "game %s", gameID)
	}
	if !state.HasPlayer(requester.Username) {
		return nil, errors.New(errors.ErrPermissionDenied, errors.ReasonNotAParticipant)
	}
	return state, nil
}

func (s *gameService) Game(ctx context.Context, requester *models.User, gameID string) (*models.GameState, error) {
	return s.load(ctx, requester, gameID)
}

func (s *gameService) Moves(ctx context.Context, requester *models.User, gameID string) ([]*models.Move, error) {
	if _, err := s.load(ctx, requester, gameID); err != nil {
		return nil, err
	}
	moves, err := s.games.Moves(ctx, gameID)
	if err != nil {
		s.log.Error("failed to load moves", zap.String("game", gameID), zap.Error(err))
		return nil, err
	}
	return moves, nil
}

func (s *gameService) SubmitMove(ctx context.Context, requester *models.User, gameID string, req *MoveRequest) (*models.GameState, error) {
	state, err := s.load(ctx, requester, gameID)
	if err != nil {
		return nil, err
	}

	if req == nil || models.IsEmptyMoveData(req.MoveData) {
		return nil, errors.New(errors.ErrInvalidParam, errors.ReasonMissingMoveData)
	}
	if state.IsOver() {
		return nil, errors.New(errors.ErrGameLocked, errors.ReasonGameOver)
	}

	action := models.MoveAction(req.MoveData)
	if !models.IsEndgameAction(action) && state.Turn != requester.Username {
		return nil, errors.New(errors.ErrInvalidParam, errors.ReasonWaitForYourTurn)
	}

	now := s.now()
	var newState *models.GameState

	switch {
	case action == models.ActionResign:
		return nil, errors.New(errors.ErrNotImplemented, "resign")
	case action == models.ActionKickOut && s.supportsKickOut(state):
		newState, err = s.kickOut(state, now)
		if err != nil {
			return nil, err
		}
		s.log.Info("player kicked out",
			zap.String("game", gameID),
			zap.String("by", requester.Username),
			zap.String("status", string(newState.Status)),
		)
	default:
		next, rejection, err := s.rules.Get(state.Type).ApplyMove(ctx, &models.GameStateWithMove{
			GameState: *state.Clone(),
			MoveDate:  now,
			MoveData:  req.MoveData,
		})
		if err != nil {
			s.log.Error("rules failed to apply move", zap.String("game", gameID), zap.Error(err))
			return nil, err
		}
		if rejection != nil {
			return nil, rejection.AsError()
		}
		newState = next
	}

	move := &models.Move{
		Player:   requester.Username,
		Date:     now,
		MoveData: req.MoveData,
	}
	if err := s.games.AddMove(ctx, gameID, newState, move); err != nil {
		s.log.Error("failed to store move", zap.String("game", gameID), zap.Error(err))
		return nil, err
	}
	s.metrics.IncMovesAccepted(newState.Type)

	s.fanOut(ctx, requester.Username, req.ChatEvent, newState)
	return newState, nil
}

func (s *gameService) supportsKickOut(state *models.GameState) bool {
	_, hasWindow := state.ConfigInt64(fieldMaxMoveTime)
	_, hasLastMove := state.DataInt64(fieldLastMoveTime)
	return hasWindow && hasLastMove
}

// kickOut removes the turn holder once the move window elapsed. The game ends when
// two or fewer players remain.
func (s *gameService) kickOut(state *models.GameState, now time.Time) (*models.GameState, error) {
	window, _ := state.ConfigInt64(fieldMaxMoveTime)
	lastMove, _ := state.DataInt64(fieldLastMoveTime)
	nowMs := now.UnixMilli()
	if nowMs-lastMove <= window {
		return nil, errors.New(errors.ErrInvalidParam, errors.ReasonKickOutTooEarly)
	}

	next := state.Clone()
	kicked := next.Turn
	i := next.RemovePlayer(kicked)
	if i < 0 {
		return nil, errors.Newf(errors.ErrDataIntegrity, "turn holder %q is not a player", kicked)
	}

	data := map[string]interface{}{fieldLastMoveTime: nowMs}
	if len(next.Players) <= 2 {
		next.Status = models.StatusGameOver
		next.Turn = ""
		data[fieldEndTime] = nowMs
	} else {
		next.Turn = next.Players[i%len(next.Players)]
	}
	if err := next.SetData(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "update gameData")
	}
	return next, nil
}

// fanOut notifies players and relays the chat event. Failures are logged only.
func (s *gameService) fanOut(ctx context.Context, mover, chatEvent string, state *models.GameState) {
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	g.Go(func() error {
		if err := s.notifier.MoveMade(ctx, mover, state); err != nil {
			s.log.Warn("move notifications failed", zap.String("game", state.ID), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		if err := s.chat.MoveMade(ctx, chatEvent, state); err != nil {
			s.log.Warn("chat relay failed", zap.String("game", state.ID), zap.Error(err))
		}
		return nil
	})
	g.Wait()
}

func hasDuplicates(list []string) bool {
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
