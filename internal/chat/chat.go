// Package chat relays game events to the chat service as system messages.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/models"
	"github.com/wfunc/turngame/internal/monitor"
	"go.uber.org/zap"
)

// Message is a chat system message.
type Message struct {
	Type      string   `json:"type"`
	Users     []string `json:"users"`
	Timestamp int64    `json:"timestamp"`
	Message   string   `json:"message"`
}

// Sender delivers one system message.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}

// NoopSender drops everything. It is used when no chat service is configured.
type NoopSender struct{}

// Send discards m.
func (NoopSender) Send(context.Context, *Message) error { return nil }

// HTTPSender posts to {base}/chat/v1/auth/{secret}/system-messages.
type HTTPSender struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

// NewHTTPSender builds a sender for the chat service at baseURL. A nil client means http.DefaultClient.
func NewHTTPSender(baseURL, secret string, client *http.Client, log *zap.Logger) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{
		url:    strings.TrimSuffix(baseURL, "/") + "/chat/v1/auth/" + url.PathEscape(secret) + "/system-messages",
		client: client,
		log:    log,
	}
}

// Send posts m. Any non-2xx reply is an ErrRemoteResponse.
func (s *HTTPSender) Send(ctx context.Context, m *Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, errors.ErrMessageFormat, "encode chat message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrRemoteUnavailable, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrRemoteUnavailable, "POST system-messages")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.log.Error("chat send failed", zap.Int("status", resp.StatusCode), zap.ByteString("response", reply))
		return errors.Newf(errors.ErrRemoteResponse, "HTTP%d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Relay turns the chat event of a move into system messages.
type Relay struct {
	sender  Sender
	log     *zap.Logger
	metrics *monitor.Metrics
	now     func() time.Time
}

// NewRelay builds a relay over sender. metrics may be nil.
func NewRelay(sender Sender, log *zap.Logger, metrics *monitor.Metrics) *Relay {
	return &Relay{sender: sender, log: log, metrics: metrics, now: time.Now}
}

// MoveMade sends event to all players, then a gameover summary when the game ended.
// Both messages are attempted; their errors are joined.
func (r *Relay) MoveMade(ctx context.Context, event string, state *models.GameState) error {
	if event == "" {
		return nil
	}

	err := r.send(ctx, &Message{
		Type:      state.Type,
		Users:     state.Players,
		Timestamp: r.now().UnixMilli(),
		Message:   event,
	})

	if state.IsOver() {
		gerr := r.send(ctx, &Message{
			Type:      state.Type,
			Users:     state.Players,
			Timestamp: r.now().UnixMilli(),
			Message:   GameOverMessage(state),
		})
		err = stderrors.Join(err, gerr)
	}
	return err
}

func (r *Relay) send(ctx context.Context, m *Message) error {
	if err := r.sender.Send(ctx, m); err != nil {
		r.metrics.IncFanoutFailure("chat")
		r.log.Error("chat message failed", zap.String("message", m.Message), zap.Strings("users", m.Users), zap.Error(err))
		return err
	}
	return nil
}

// GameOverMessage renders "gameover:{players}:{scores}", both comma separated.
func GameOverMessage(state *models.GameState) string {
	scores := make([]string, len(state.Scores))
	for i, s := range state.Scores {
		scores[i] = strconv.FormatFloat(s, 'f', -1, 64)
	}
	return "gameover:" + strings.Join(state.Players, ",") + ":" + strings.Join(scores, ",")
}
