package repository

import (
	"context"
	"encoding/json"

	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/kvstore"
	"github.com/wfunc/turngame/internal/models"
	"go.uber.org/zap"
)

// GameRepository persists game states and their move logs.
type GameRepository interface {
	// SetState overwrites the state and refreshes the retention of the state and its log.
	SetState(ctx context.Context, id string, state *models.GameState) error
	// State returns nil, nil when the game does not exist.
	State(ctx context.Context, id string) (*models.GameState, error)
	// AddMove appends move to the log, then writes newState.
	AddMove(ctx context.Context, id string, newState *models.GameState, move *models.Move) error
	Moves(ctx context.Context, id string) ([]*models.Move, error)
}

type gameRepo struct {
	store kvstore.Store
	keys  Keys
	log   *zap.Logger
}

// NewGameRepository stores games under prefix.
func NewGameRepository(store kvstore.Store, prefix string, log *zap.Logger) GameRepository {
	return &gameRepo{
		store: store,
		keys:  Keys{Prefix: prefix},
		log:   log,
	}
}

func (r *gameRepo) SetState(ctx context.Context, id string, state *models.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, errors.ErrDataIntegrity, "encode game state")
	}

	key := r.keys.Game(id)
	if err := r.store.Set(ctx, key, string(data)); err != nil {
		return errors.Wrapf(err, errors.ErrStorageUnavailable, "set %s", key)
	}
	if _, err := r.store.Expire(ctx, key, GameTTL); err != nil {
		return errors.Wrapf(err, errors.ErrStorageUnavailable, "expire %s", key)
	}

	// The log does not exist before the first move; a false reply is expected then.
	movesKey := r.keys.Moves(id)
	found, err := r.store.Expire(ctx, movesKey, GameTTL)
	if err != nil {
		return errors.Wrapf(err, errors.ErrStorageUnavailable, "expire %s", movesKey)
	}
	if !found {
		r.log.Debug("no move log to refresh", zap.String("game", id))
	}
	return nil
}

func (r *gameRepo) State(ctx context.Context, id string) (*models.GameState, error) {
	key := r.keys.Game(id)
	data, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrStorageUnavailable, "get %s", key)
	}
	if !ok {
		return nil, nil
	}

	var state models.GameState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDataIntegrity, "decode %s", key)
	}
	return &state, nil
}

func (r *gameRepo) AddMove(ctx context.Context, id string, newState *models.GameState, move *models.Move) error {
	data, err := json.Marshal(move)
	if err != nil {
		return errors.Wrap(err, errors.ErrDataIntegrity, "encode move")
	}

	key := r.keys.Moves(id)
	if err := r.store.RPush(ctx, key, string(data)); err != nil {
		return errors.Wrapf(err, errors.ErrStorageUnavailable, "rpush %s", key)
	}
	return r.SetState(ctx, id, newState)
}

func (r *gameRepo) Moves(ctx context.Context, id string) ([]*models.Move, error) {
	key := r.keys.Moves(id)
	values, err := r.store.LRange(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrStorageUnavailable, "lrange %s", key)
	}

	moves := make([]*models.Move, 0, len(values))
	for i, v := range values {
		var move models.Move
		if err := json.Unmarshal([]byte(v), &move); err != nil {
			return nil, errors.Wrapf(err, errors.ErrDataIntegrity, "decode %s[%d]", key, i)
		}
		moves = append(moves, &move)
	}
	return moves, nil
}
