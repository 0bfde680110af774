// Package rules talks to the per-type rules services that evaluate games.
package rules

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/models"
	"github.com/wfunc/turngame/internal/monitor"
	"go.uber.org/zap"
)

// Rejection is a move refused by the rules service. Status, Body and ContentType
// are the peer's reply.
type Rejection struct {
	Status      int
	Body        json.RawMessage
	ContentType string
}

// AsError converts the rejection into the error rendered to API callers.
func (r *Rejection) AsError() *errors.AppError {
	return errors.Rejection(r.Status, r.Body).WithContentType(r.ContentType)
}

// Rules is the contract of one game type's rules service.
type Rules interface {
	CreateGame(ctx context.Context, req *models.GameCreation) (*models.GameState, error)
	// ApplyMove returns either the new state or the peer's rejection; err is set only
	// when the peer could not be reached or answered garbage.
	ApplyMove(ctx context.Context, state *models.GameStateWithMove) (*models.GameState, *Rejection, error)
	Replay(ctx context.Context, initial *models.GameState, moves []*models.Move) (*models.GameState, error)
	GameData(ctx context.Context) (json.RawMessage, error)
}

// Client is the HTTP client of one rules service.
type Client struct {
	gameType string
	baseURL  string
	http     *http.Client
	log      *zap.Logger
	metrics  *monitor.Metrics
}

// NewClient creates the client for gameType under baseURL.
func NewClient(baseURL, gameType string, httpClient *http.Client, log *zap.Logger, metrics *monitor.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		gameType: gameType,
		baseURL:  strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(gameType, "/"),
		http:     httpClient,
		log:      log.With(zap.String("rules", gameType)),
		metrics:  metrics,
	}
	c.log.Info("rules client created", zap.String("base_url", c.baseURL))
	return c
}

// BaseURL returns the root of the service's endpoints.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// reply is a peer response read in full.
type reply struct {
	status      int
	contentType string
	data        []byte
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &reply{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), data: data}, nil
}

// CreateGame posts req to /games. The identity fields of req override the reply.
func (c *Client) CreateGame(ctx context.Context, req *models.GameCreation) (*models.GameState, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidParam, "encode game creation")
	}

	start := time.Now()
	rep, err := c.post(ctx, "/games", body)
	if err != nil {
		c.metrics.ObserveRulesCall(c.gameType, "games", "error", time.Since(start))
		c.log.Error("failed to generate game", zap.String("game", req.ID), zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrRemoteUnavailable, "POST /games")
	}
	if rep.status < 200 || rep.status >= 300 {
		c.metrics.ObserveRulesCall(c.gameType, "games", "error", time.Since(start))
		c.log.Error("game generated with code", zap.String("game", req.ID), zap.Int("code", rep.status))
		return nil, errors.Newf(errors.ErrRemoteResponse, "HTTP%d", rep.status)
	}

	var state models.GameState
	if err := json.Unmarshal(rep.data, &state); err != nil {
		c.metrics.ObserveRulesCall(c.gameType, "games", "error", time.Since(start))
		return nil, errors.Wrap(err, errors.ErrRemoteResponse, "decode /games reply")
	}
	c.metrics.ObserveRulesCall(c.gameType, "games", "ok", time.Since(start))

	req.Overlay(&state)
	return &state, nil
}

// ApplyMove posts state to /moves. A connection reset is retried once, immediately.
func (c *Client) ApplyMove(ctx context.Context, state *models.GameStateWithMove) (*models.GameState, *Rejection, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrInvalidParam, "encode move")
	}

	var (
		rep   *reply
		start time.Time
	)
	for attempt := 0; ; attempt++ {
		start = time.Now()
		rep, err = c.post(ctx, "/moves", body)
		if err == nil {
			break
		}
		c.log.Warn("move submission failed",
			zap.String("game", state.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if attempt == 0 && isConnReset(err) {
			c.metrics.IncRulesRetry(c.gameType)
			c.log.Warn("retrying move submission", zap.String("game", state.ID))
			continue
		}
		c.metrics.ObserveRulesCall(c.gameType, "moves", "error", time.Since(start))
		return nil, nil, errors.Wrap(err, errors.ErrRemoteUnavailable, "POST /moves")
	}

	switch status := rep.status; {
	case status >= 400 && status < 500:
		c.metrics.ObserveRulesCall(c.gameType, "moves", "rejected", time.Since(start))
		c.log.Warn("move rejected by rules",
			zap.String("game", state.ID),
			zap.Int("status", status),
			zap.ByteString("rules_error", rep.data),
		)
		return nil, &Rejection{Status: status, Body: rep.data, ContentType: rep.contentType}, nil
	case status < 200 || status >= 300:
		c.metrics.ObserveRulesCall(c.gameType, "moves", "error", time.Since(start))
		return nil, nil, errors.Newf(errors.ErrRemoteResponse, "HTTP%d", status)
	}

	var next models.GameState
	if err := json.Unmarshal(rep.data, &next); err != nil {
		c.metrics.ObserveRulesCall(c.gameType, "moves", "error", time.Since(start))
		return nil, nil, errors.Wrap(err, errors.ErrRemoteResponse, "decode /moves reply")
	}
	c.metrics.ObserveRulesCall(c.gameType, "moves", "ok", time.Since(start))

	models.CreationOf(&state.GameState).Overlay(&next)
	return &next, nil, nil
}

// Replay applies moves one by one from initial and returns the final state.
func (c *Client) Replay(ctx context.Context, initial *models.GameState, moves []*models.Move) (*models.GameState, error) {
	state := initial.Clone()
	for i, move := range moves {
		next, rejection, err := c.ApplyMove(ctx, &models.GameStateWithMove{
			GameState: *state,
			MoveDate:  move.Date,
			MoveData:  move.MoveData,
		})
		if err != nil {
			return nil, err
		}
		if rejection != nil {
			return nil, rejection.AsError().WithDetails(fmt.Sprintf("move %d: %s", i, rejection.Body))
		}
		state = next
	}
	return state, nil
}

// GameData returns the blank gameData of a throwaway game.
func (c *Client) GameData(ctx context.Context) (json.RawMessage, error) {
	state, err := c.CreateGame(ctx, &models.GameCreation{ID: "whatever", Players: []string{"whoever"}})
	if err != nil {
		return nil, err
	}
	return state.GameData, nil
}

func isConnReset(err error) bool {
	return stderrors.Is(err, syscall.ECONNRESET)
}
