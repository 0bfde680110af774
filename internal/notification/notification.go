package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/models"
	"go.uber.org/zap"
)

// TypeMove is the type of notifications sent after a move.
const TypeMove = "move"

// Notification is the payload accepted by the notification service.
type Notification struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Type   string      `json:"type"`
	Data   interface{} `json:"data,omitempty"`
	Push   *Push       `json:"push,omitempty"`
	Secret string      `json:"secret,omitempty"`
}

// MoveData is the data of a move notification.
type MoveData struct {
	Game *models.GameState `json:"game"`
}

// Push is a localized push-notification hint.
type Push struct {
	App              string   `json:"app"`
	Title            []string `json:"title"`
	Message          []string `json:"message"`
	MessageArgsTypes []string `json:"messageArgsTypes"`
}

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// NoopSender drops everything. It is used when no notification service is configured.
type NoopSender struct{}

func (NoopSender) Send(context.Context, *Notification) error { return nil }

// HTTPSender posts notifications to {base}/notifications/v1/messages.
type HTTPSender struct {
	url    string
	secret string
	client *http.Client
	log    *zap.Logger
}

// NewHTTPSender fills a missing Secret with secret on every send.
func NewHTTPSender(baseURL, secret string, client *http.Client, log *zap.Logger) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{
		url:    strings.TrimSuffix(baseURL, "/") + "/notifications/v1/messages",
		secret: secret,
		client: client,
		log:    log,
	}
}

// URL returns the endpoint notifications are posted to.
func (s *HTTPSender) URL() string {
	return s.url
}

func (s *HTTPSender) Send(ctx context.Context, n *Notification) error {
	if n.Secret == "" {
		n.Secret = s.secret
	}

	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, errors.ErrMessageFormat, "encode notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrRemoteUnavailable, "build notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("notification send failed", zap.String("uri", s.url), zap.String("to", n.To), zap.Error(err))
		return errors.Wrap(err, errors.ErrRemoteUnavailable, "POST notification")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.log.Warn("notification send failed",
			zap.String("uri", s.url),
			zap.String("to", n.To),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", reply),
		)
		return errors.Newf(errors.ErrRemoteResponse, "HTTP%d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
