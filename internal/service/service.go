package service

import (
	"net/http"

	"github.com/wfunc/turngame/internal/chat"
	"github.com/wfunc/turngame/internal/config"
	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/monitor"
	"github.com/wfunc/turngame/internal/notification"
	"github.com/wfunc/turngame/internal/repository"
	"github.com/wfunc/turngame/internal/rules"
	"go.uber.org/zap"
)

// Services is the set of services exposed to the API.
type Services struct {
	Auth  AuthService
	Games GameService
	Rules *rules.Registry
}

// NewServices builds the services from configuration. Missing notification or chat
// URLs select the no-op senders.
func NewServices(cfg *config.Config, repos *repository.Manager, log *zap.Logger, metrics *monitor.Metrics) (*Services, error) {
	var secret *SecretAuthenticator
	if cfg.APISecret != "" {
		var err error
		if secret, err = NewSecretAuthenticator(cfg.APISecret); err != nil {
			return nil, err
		}
		log.Info("secret token authentication enabled")
	}
	auth := NewAuthService(secret, NewDirectoryAuthenticator(repos.Account(), log.Named("auth")))

	if cfg.Rules.BaseURL == "" {
		return nil, errors.New(errors.ErrConfigMissing, "rules.base_url")
	}
	registry := rules.NewRegistry(cfg.Rules.BaseURL, &http.Client{Timeout: cfg.Rules.Timeout}, log.Named("rules"), metrics)

	var notificationSender notification.Sender = notification.NoopSender{}
	if cfg.Notifications.URL != "" {
		sender := notification.NewHTTPSender(cfg.Notifications.URL, cfg.APISecret,
			&http.Client{Timeout: cfg.Notifications.Timeout}, log.Named("notification"))
		log.Info("notifications enabled", zap.String("url", sender.URL()))
		notificationSender = sender
	}
	notifier := notification.NewNotifier(notificationSender, cfg.Notifications.From, cfg.Notifications.FullState,
		log.Named("notifier"), metrics)

	var chatSender chat.Sender = chat.NoopSender{}
	if cfg.Chat.URL != "" {
		chatSender = chat.NewHTTPSender(cfg.Chat.URL, cfg.APISecret, &http.Client{Timeout: cfg.Chat.Timeout}, log.Named("chat"))
		log.Info("chat relay enabled")
	}
	relay := chat.NewRelay(chatSender, log.Named("chat"), metrics)

	return &Services{
		Auth:  auth,
		Games: NewGameService(repos.Game(), registry, notifier, relay, log.Named("games"), metrics),
		Rules: registry,
	}, nil
}
