package chat

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/turngame/internal/models"
	"go.uber.org/zap"
)

type recordingSender struct {
	sent []*Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, m *Message) error {
	s.sent = append(s.sent, m)
	return s.err
}

func newRelay(sender Sender) *Relay {
	r := NewRelay(sender, zap.NewNop(), nil)
	r.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return r
}

func state(status models.GameStatus) *models.GameState {
	return &models.GameState{
		ID:      "g1",
		Type:    "substract-game/v1",
		Players: []string{"alice", "bob"},
		Status:  status,
		Scores:  []float64{30, 0},
	}
}

func TestEmptyEventIsNoop(t *testing.T) {
	sender := &recordingSender{}
	require.NoError(t, newRelay(sender).MoveMade(context.Background(), "", state(models.StatusGameOver)))
	assert.Empty(t, sender.sent)
}

func TestMoveEvent(t *testing.T) {
	sender := &recordingSender{}
	require.NoError(t, newRelay(sender).MoveMade(context.Background(), "hello", state(models.StatusActive)))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, &Message{
		Type:      "substract-game/v1",
		Users:     []string{"alice", "bob"},
		Timestamp: 1700000000000,
		Message:   "hello",
	}, sender.sent[0])
}

func TestGameOverSendsSecondMessage(t *testing.T) {
	sender := &recordingSender{}
	require.NoError(t, newRelay(sender).MoveMade(context.Background(), "hello", state(models.StatusGameOver)))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "hello", sender.sent[0].Message)
	assert.Equal(t, "gameover:alice,bob:30,0", sender.sent[1].Message)
	assert.Equal(t, []string{"alice", "bob"}, sender.sent[1].Users)
}

func TestGameOverMessageFormatsScores(t *testing.T) {
	s := state(models.StatusGameOver)
	s.Scores = []float64{1.5, -2}
	assert.Equal(t, "gameover:alice,bob:1.5,-2", GameOverMessage(s))

	s.Scores = nil
	assert.Equal(t, "gameover:alice,bob:", GameOverMessage(s))
}

func TestFailuresAreJoined(t *testing.T) {
	boom := stderrors.New("boom")
	sender := &recordingSender{err: boom}
	err := newRelay(sender).MoveMade(context.Background(), "hello", state(models.StatusGameOver))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, sender.sent, 2)
}

func TestHTTPSender(t *testing.T) {
	var path string
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL, "s3cret", srv.Client(), zap.NewNop())
	require.NoError(t, sender.Send(context.Background(), &Message{Type: "t", Users: []string{"a"}, Message: "m", Timestamp: 1}))
	assert.Equal(t, "/chat/v1/auth/s3cret/system-messages", path)
	assert.Equal(t, "m", got.Message)
}
