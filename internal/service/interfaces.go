package service

import (
	"context"
	"encoding/json"

	"github.com/wfunc/turngame/internal/models"
	"github.com/wfunc/turngame/internal/rules"
)

// GameService runs the game and move workflows for an authenticated requester.
type GameService interface {
	CreateGame(ctx context.Context, requester *models.User, gameID string, req *CreateGameRequest) (*models.GameState, error)
	Game(ctx context.Context, requester *models.User, gameID string) (*models.GameState, error)
	Moves(ctx context.Context, requester *models.User, gameID string) ([]*models.Move, error)
	SubmitMove(ctx context.Context, requester *models.User, gameID string, req *MoveRequest) (*models.GameState, error)
}

// AuthService resolves an auth token to a user.
type AuthService interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// CreateGameRequest is the body of a game creation.
type CreateGameRequest struct {
	Type       string          `json:"type"`
	Players    []string        `json:"players"`
	GameConfig json.RawMessage `json:"gameConfig,omitempty"`
}

// MoveRequest is the body of a move submission.
type MoveRequest struct {
	MoveData  json.RawMessage `json:"moveData"`
	ChatEvent string          `json:"chatEvent,omitempty"`
}

// RulesRegistry hands out the rules client of a game type.
type RulesRegistry interface {
	Get(gameType string) rules.Rules
}

// MoveNotifier tells the other participants about a move.
type MoveNotifier interface {
	MoveMade(ctx context.Context, mover string, state *models.GameState) error
}

// ChatRelay forwards the chat event of a move.
type ChatRelay interface {
	MoveMade(ctx context.Context, event string, state *models.GameState) error
}
