package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/kvstore"
	"github.com/wfunc/turngame/internal/models"
	"github.com/wfunc/turngame/internal/repository"
	"github.com/wfunc/turngame/internal/rules"
	"go.uber.org/zap"
)

// stubRules plays a two-call game: creation hands the turn to the last player,
// every move passes it on; a move {"end":true} finishes the game.
type stubRules struct {
	mu        sync.Mutex
	createErr error
	moveErr   error
	rejection *rules.Rejection
	creates   int
	moves     int
}

func (r *stubRules) CreateGame(_ context.Context, req *models.GameCreation) (*models.GameState, error) {
	r.mu.Lock()
	r.creates++
	r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	state := &models.GameState{
		ID:       "echoed-wrong-id",
		Type:     "echoed-wrong-type",
		Players:  []string{"someone"},
		Turn:     req.Players[len(req.Players)-1],
		Status:   models.StatusActive,
		GameData: json.RawMessage(`{"total":100}`),
	}
	req.Overlay(state)
	return state, nil
}

func (r *stubRules) ApplyMove(_ context.Context, s *models.GameStateWithMove) (*models.GameState, *rules.Rejection, error) {
	r.mu.Lock()
	r.moves++
	r.mu.Unlock()
	if r.moveErr != nil {
		return nil, nil, r.moveErr
	}
	if r.rejection != nil {
		return nil, r.rejection, nil
	}
	next := s.GameState.Clone()
	i := 0
	for j, p := range next.Players {
		if p == next.Turn {
			i = j
		}
	}
	next.Turn = next.Players[(i+1)%len(next.Players)]
	var end struct {
		End bool `json:"end"`
	}
	json.Unmarshal(s.MoveData, &end)
	if end.End {
		next.Status = models.StatusGameOver
		next.Turn = ""
		next.Scores = []float64{30, 0}
	}
	return next, nil, nil
}

func (r *stubRules) Replay(context.Context, *models.GameState, []*models.Move) (*models.GameState, error) {
	return nil, errors.New(errors.ErrNotImplemented)
}

func (r *stubRules) GameData(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (r *stubRules) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moves
}

type stubRegistry struct{ rules *stubRules }

func (s stubRegistry) Get(string) rules.Rules { return s.rules }

type notified struct {
	mover string
	state *models.GameState
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notified
	err  error
}

func (n *recordingNotifier) MoveMade(_ context.Context, mover string, state *models.GameState) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notified{mover, state})
	return n.err
}

type chatted struct {
	event string
	state *models.GameState
}

type recordingChat struct {
	mu   sync.Mutex
	sent []chatted
	err  error
}

func (c *recordingChat) MoveMade(_ context.Context, event string, state *models.GameState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if event == "" {
		return nil
	}
	c.sent = append(c.sent, chatted{event, state})
	return c.err
}

type GameServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	mr       *miniredis.Miniredis
	games    repository.GameRepository
	rules    *stubRules
	notifier *recordingNotifier
	chat     *recordingChat
	service  *gameService
	clock    time.Time

	alice *models.User
	bob   *models.User
	carol *models.User
}

func (suite *GameServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.mr = miniredis.RunT(suite.T())
	store := kvstore.NewRedisStore(redis.NewClient(&redis.Options{Addr: suite.mr.Addr()}))
	suite.games = repository.NewGameRepository(store, "turngame/v1", zap.NewNop())
	suite.rules = &stubRules{}
	suite.notifier = &recordingNotifier{}
	suite.chat = &recordingChat{}
	suite.service = NewGameService(suite.games, stubRegistry{suite.rules}, suite.notifier, suite.chat, zap.NewNop(), nil).(*gameService)
	suite.clock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	suite.service.now = func() time.Time { return suite.clock }

	suite.alice = &models.User{Username: "alice"}
	suite.bob = &models.User{Username: "bob"}
	suite.carol = &models.User{Username: "carol"}
}

func (suite *GameServiceTestSuite) createGame(players ...string) *models.GameState {
	state, err := suite.service.CreateGame(suite.ctx, &models.User{Username: players[0]}, "g1", &CreateGameRequest{
		Type:       "substract-game/v1",
		Players:    players,
		GameConfig: json.RawMessage(`{"level":1}`),
	})
	suite.Require().NoError(err)
	return state
}

func (suite *GameServiceTestSuite) stored() *models.GameState {
	state, err := suite.games.State(suite.ctx, "g1")
	suite.Require().NoError(err)
	return state
}

func (suite *GameServiceTestSuite) storedMoves() []*models.Move {
	moves, err := suite.games.Moves(suite.ctx, "g1")
	suite.Require().NoError(err)
	return moves
}

func move(data string) *MoveRequest {
	return &MoveRequest{MoveData: json.RawMessage(data)}
}

func (suite *GameServiceTestSuite) assertRejected(err error, code errors.ErrorCode, reason string) {
	suite.Require().Error(err)
	suite.True(errors.Is(err, code), "got %v", err)
	if reason != "" {
		suite.Equal(reason, errors.Reason(err))
	}
}

func (suite *GameServiceTestSuite) TestCreateGameKeepsIdentity() {
	state := suite.createGame("alice", "bob")

	suite.Equal("g1", state.ID)
	suite.Equal("substract-game/v1", state.Type)
	suite.Equal([]string{"alice", "bob"}, state.Players)
	suite.JSONEq(`{"level":1}`, string(state.GameConfig))
	suite.Equal("bob", state.Turn)
	suite.Equal(state, suite.stored())
}

func (suite *GameServiceTestSuite) TestCreateGameValidation() {
	cases := []struct {
		id     string
		req    *CreateGameRequest
		code   errors.ErrorCode
		reason string
	}{
		{"", &CreateGameRequest{Type: "t", Players: []string{"alice"}}, errors.ErrInvalidParam, errors.ReasonMissingGameID},
		{"g1", &CreateGameRequest{Players: []string{"alice"}}, errors.ErrInvalidParam, errors.ReasonMissingType},
		{"g1", &CreateGameRequest{Type: "t"}, errors.ErrInvalidParam, errors.ReasonMissingPlayers},
		{"g1", &CreateGameRequest{Type: "t", Players: []string{"alice", "alice", "bob"}}, errors.ErrInvalidParam, errors.ReasonDuplicatePlayers},
		{"g1", &CreateGameRequest{Type: "t", Players: []string{"bob"}}, errors.ErrPermissionDenied, errors.ReasonNotAParticipant},
	}
	for _, c := range cases {
		_, err := suite.service.CreateGame(suite.ctx, suite.alice, c.id, c.req)
		suite.assertRejected(err, c.code, c.reason)
	}
	suite.Zero(suite.rules.creates)
	suite.Nil(suite.stored())
}

func (suite *GameServiceTestSuite) TestCreateGameRulesFailure() {
	suite.rules.createErr = errors.New(errors.ErrRemoteResponse, "HTTP500")
	_, err := suite.service.CreateGame(suite.ctx, suite.alice, "g1", &CreateGameRequest{Type: "t", Players: []string{"alice"}})
	suite.assertRejected(err, errors.ErrRemoteResponse, "")
	suite.Nil(suite.stored())
}

func (suite *GameServiceTestSuite) TestCreateGameOverwritesExisting() {
	suite.createGame("alice", "bob")
	_, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", move(`{"number":1}`))
	suite.Require().NoError(err)

	suite.createGame("alice", "bob")
	suite.Equal("bob", suite.stored().Turn)
}

func (suite *GameServiceTestSuite) TestGameAccess() {
	suite.createGame("alice", "bob")

	state, err := suite.service.Game(suite.ctx, suite.alice, "g1")
	suite.Require().NoError(err)
	suite.Equal("g1", state.ID)

	_, err = suite.service.Game(suite.ctx, suite.carol, "g1")
	suite.assertRejected(err, errors.ErrPermissionDenied, "")

	_, err = suite.service.Game(suite.ctx, suite.alice, "nope")
	suite.assertRejected(err, errors.ErrNotFound, "")

	_, err = suite.service.Moves(suite.ctx, suite.carol, "g1")
	suite.assertRejected(err, errors.ErrPermissionDenied, "")

	moves, err := suite.service.Moves(suite.ctx, suite.bob, "g1")
	suite.Require().NoError(err)
	suite.Empty(moves)
}

func (suite *GameServiceTestSuite) TestMoveAccepted() {
	suite.createGame("alice", "bob")

	state, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", move(`{"number":10}`))
	suite.Require().NoError(err)
	suite.Equal("alice", state.Turn)
	suite.Equal(state, suite.stored())

	moves := suite.storedMoves()
	suite.Require().Len(moves, 1)
	suite.Equal("bob", moves[0].Player)
	suite.True(suite.clock.Equal(moves[0].Date))
	suite.JSONEq(`{"number":10}`, string(moves[0].MoveData))

	suite.Require().Len(suite.notifier.sent, 1)
	suite.Equal("bob", suite.notifier.sent[0].mover)
	suite.Equal("alice", suite.notifier.sent[0].state.Turn)
	suite.Empty(suite.chat.sent)
}

func (suite *GameServiceTestSuite) TestMovesInSubmissionOrder() {
	suite.createGame("alice", "bob")
	players := []*models.User{suite.bob, suite.alice, suite.bob, suite.alice}
	for i, p := range players {
		suite.clock = suite.clock.Add(time.Minute)
		_, err := suite.service.SubmitMove(suite.ctx, p, "g1", move(`{"n":`+string(rune('0'+i))+`}`))
		suite.Require().NoError(err)
	}

	moves := suite.storedMoves()
	suite.Require().Len(moves, 4)
	for i, m := range moves {
		suite.Equal(players[i].Username, m.Player)
		suite.JSONEq(`{"n":`+string(rune('0'+i))+`}`, string(m.MoveData))
	}
}

func (suite *GameServiceTestSuite) TestWaitForYourTurn() {
	suite.createGame("alice", "bob")
	before := suite.stored()

	_, err := suite.service.SubmitMove(suite.ctx, suite.alice, "g1", move(`{"number":1}`))
	suite.assertRejected(err, errors.ErrInvalidParam, errors.ReasonWaitForYourTurn)
	suite.Equal(before, suite.stored())
	suite.Empty(suite.storedMoves())
	suite.Empty(suite.notifier.sent)
	suite.Zero(suite.rules.calls())
}

func (suite *GameServiceTestSuite) TestMissingMoveData() {
	suite.createGame("alice", "bob")
	for _, req := range []*MoveRequest{nil, {}, move(`null`), move(`false`), move(`0`), move(`""`)} {
		_, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", req)
		suite.assertRejected(err, errors.ErrInvalidParam, errors.ReasonMissingMoveData)
	}
	suite.Zero(suite.rules.calls())
	suite.Empty(suite.storedMoves())
}

func (suite *GameServiceTestSuite) TestNonParticipantMove() {
	suite.createGame("alice", "bob")
	_, err := suite.service.SubmitMove(suite.ctx, suite.carol, "g1", move(`{"number":1}`))
	suite.assertRejected(err, errors.ErrPermissionDenied, "")
}

func (suite *GameServiceTestSuite) TestGameOverIsLocked() {
	suite.createGame("alice", "bob")
	_, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", move(`{"end":true}`))
	suite.Require().NoError(err)
	before := suite.stored()
	suite.Equal(models.StatusGameOver, before.Status)

	for _, u := range []*models.User{suite.alice, suite.bob} {
		for _, data := range []string{`{"number":1}`, `{"action":"kickOut"}`} {
			_, err := suite.service.SubmitMove(suite.ctx, u, "g1", move(data))
			suite.assertRejected(err, errors.ErrGameLocked, errors.ReasonGameOver)
		}
	}
	suite.Equal(before, suite.stored())
	suite.Len(suite.storedMoves(), 1)
}

func (suite *GameServiceTestSuite) TestChatEvent() {
	suite.createGame("alice", "bob")

	_, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", &MoveRequest{MoveData: json.RawMessage(`{"number":1}`), ChatEvent: "hello"})
	suite.Require().NoError(err)
	suite.Require().Len(suite.chat.sent, 1)
	suite.Equal("hello", suite.chat.sent[0].event)
	suite.Equal(models.StatusActive, suite.chat.sent[0].state.Status)

	_, err = suite.service.SubmitMove(suite.ctx, suite.alice, "g1", &MoveRequest{MoveData: json.RawMessage(`{"end":true}`), ChatEvent: "bye"})
	suite.Require().NoError(err)
	suite.Require().Len(suite.chat.sent, 2)
	suite.Equal(models.StatusGameOver, suite.chat.sent[1].state.Status)
}

func (suite *GameServiceTestSuite) TestRuleRejectionIsReturnedVerbatim() {
	suite.createGame("alice", "bob")
	body := json.RawMessage(`{"code":"InvalidMove","message":"number too large"}`)
	suite.rules.rejection = &rules.Rejection{Status: http.StatusBadRequest, Body: body}

	_, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", move(`{"number":99}`))
	suite.Require().Error(err)
	appErr, ok := errors.As(err)
	suite.Require().True(ok)
	suite.Equal(errors.ErrRuleRejection, appErr.Code)
	suite.Equal(http.StatusBadRequest, appErr.HTTPStatus())
	suite.JSONEq(string(body), string(appErr.Body))

	suite.Empty(suite.storedMoves())
	suite.Equal("bob", suite.stored().Turn)
	suite.Empty(suite.notifier.sent)
}

func (suite *GameServiceTestSuite) TestTransportFailureLeavesStorage() {
	suite.createGame("alice", "bob")
	suite.rules.moveErr = errors.New(errors.ErrRemoteUnavailable, "connection reset")

	_, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", move(`{"number":1}`))
	suite.assertRejected(err, errors.ErrRemoteUnavailable, "")
	suite.False(errors.IsClientError(err))
	suite.Empty(suite.storedMoves())
	suite.Empty(suite.notifier.sent)
}

func (suite *GameServiceTestSuite) TestFanoutFailureDoesNotFailMove() {
	suite.createGame("alice", "bob")
	suite.notifier.err = errors.New(errors.ErrRemoteUnavailable)
	suite.chat.err = errors.New(errors.ErrRemoteUnavailable)

	state, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", &MoveRequest{MoveData: json.RawMessage(`{"number":1}`), ChatEvent: "hi"})
	suite.Require().NoError(err)
	suite.Equal("alice", state.Turn)
	suite.Len(suite.storedMoves(), 1)
}

func (suite *GameServiceTestSuite) TestResignIsNotImplemented() {
	suite.createGame("alice", "bob")
	_, err := suite.service.SubmitMove(suite.ctx, suite.alice, "g1", move(`{"action":"resign"}`))
	suite.assertRejected(err, errors.ErrNotImplemented, "")
	suite.Empty(suite.storedMoves())
}

// timedGame stores a game with a move window whose last move was at lastMove.
func (suite *GameServiceTestSuite) timedGame(lastMove time.Time, players ...string) {
	data, _ := json.Marshal(map[string]interface{}{"total": 100, "lastMoveTime": lastMove.UnixMilli()})
	state := &models.GameState{
		ID:         "g1",
		Type:       "substract-game/v1",
		Players:    players,
		Turn:       players[0],
		Status:     models.StatusActive,
		Scores:     make([]float64, len(players)),
		GameConfig: json.RawMessage(`{"maxMoveTime":60000}`),
		GameData:   data,
	}
	for i := range state.Scores {
		state.Scores[i] = float64(i + 1)
	}
	suite.Require().NoError(suite.games.SetState(suite.ctx, "g1", state))
}

func (suite *GameServiceTestSuite) TestKickOutTooEarly() {
	suite.timedGame(suite.clock.Add(-30*time.Second), "alice", "bob", "carol")

	_, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", move(`{"action":"kickOut"}`))
	suite.assertRejected(err, errors.ErrInvalidParam, errors.ReasonKickOutTooEarly)
	suite.Len(suite.stored().Players, 3)
}

func (suite *GameServiceTestSuite) TestKickOutContinuesWithFourPlayers() {
	suite.timedGame(suite.clock.Add(-2*time.Minute), "alice", "bob", "carol", "dave")

	state, err := suite.service.SubmitMove(suite.ctx, suite.carol, "g1", move(`{"action":"kickOut"}`))
	suite.Require().NoError(err)
	suite.Zero(suite.rules.calls())
	suite.Equal([]string{"bob", "carol", "dave"}, state.Players)
	suite.Equal([]float64{2, 3, 4}, state.Scores)
	suite.Equal("bob", state.Turn)
	suite.Equal(models.StatusActive, state.Status)
	last, _ := state.DataInt64("lastMoveTime")
	suite.Equal(suite.clock.UnixMilli(), last)

	moves := suite.storedMoves()
	suite.Require().Len(moves, 1)
	suite.Equal("carol", moves[0].Player)
	suite.Require().Len(suite.notifier.sent, 1)
	suite.Equal("carol", suite.notifier.sent[0].mover)
}

func (suite *GameServiceTestSuite) TestKickOutEndsGameWithTwoLeft() {
	suite.timedGame(suite.clock.Add(-2*time.Minute), "alice", "bob", "carol")

	state, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", move(`{"action":"kickOut"}`))
	suite.Require().NoError(err)
	suite.Equal([]string{"bob", "carol"}, state.Players)
	suite.Equal(models.StatusGameOver, state.Status)
	suite.Equal("", state.Turn)
	end, ok := state.DataInt64("endTime")
	suite.True(ok)
	suite.Equal(suite.clock.UnixMilli(), end)
	suite.Equal(state, suite.stored())
}

func (suite *GameServiceTestSuite) TestKickOutOfTwoPlayerGame() {
	suite.timedGame(suite.clock.Add(-2*time.Minute), "alice", "bob")

	state, err := suite.service.SubmitMove(suite.ctx, suite.bob, "g1", move(`{"action":"kickOut"}`))
	suite.Require().NoError(err)
	suite.Zero(suite.rules.calls())
	suite.Equal([]string{"bob"}, state.Players)
	suite.Equal([]float64{2}, state.Scores)
	suite.Equal(models.StatusGameOver, state.Status)
	suite.Equal("", state.Turn)
	_, ok := state.DataInt64("endTime")
	suite.True(ok)
	suite.Equal(state, suite.stored())
	suite.Len(suite.storedMoves(), 1)
}

func (suite *GameServiceTestSuite) TestKickOutWithoutWindowGoesToRules() {
	suite.createGame("alice", "bob")

	_, err := suite.service.SubmitMove(suite.ctx, suite.alice, "g1", move(`{"action":"kickOut"}`))
	suite.Require().NoError(err)
	suite.Equal(1, suite.rules.calls())
}

func TestGameServiceSuite(t *testing.T) {
	suite.Run(t, new(GameServiceTestSuite))
}
