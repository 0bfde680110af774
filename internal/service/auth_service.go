package service

import (
	"context"
	"strings"

	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/models"
	"github.com/wfunc/turngame/internal/repository"
	"go.uber.org/zap"
)

// SecretSeparator joins the shared secret and the impersonated username in a token.
const SecretSeparator = "."

// SecretAuthenticator accepts tokens of the form secret + "." + username.
type SecretAuthenticator struct {
	prefix string
}

// NewSecretAuthenticator fails on an empty secret.
func NewSecretAuthenticator(secret string) (*SecretAuthenticator, error) {
	if secret == "" {
		return nil, errors.New(errors.ErrConfigValidate, "api secret must be non-empty")
	}
	return &SecretAuthenticator{prefix: secret + SecretSeparator}, nil
}

// Match returns the impersonated username of token, if token is a secret token.
func (a *SecretAuthenticator) Match(token string) (string, bool) {
	if !strings.HasPrefix(token, a.prefix) || len(token) <= len(a.prefix) {
		return "", false
	}
	return token[len(a.prefix):], true
}

// DirectoryAuthenticator resolves tokens through the account directory.
type DirectoryAuthenticator struct {
	accounts repository.AccountRepository
	log      *zap.Logger
}

func NewDirectoryAuthenticator(accounts repository.AccountRepository, log *zap.Logger) *DirectoryAuthenticator {
	return &DirectoryAuthenticator{accounts: accounts, log: log}
}

func (a *DirectoryAuthenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	account, err := a.accounts.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.New(errors.ErrAuthentication, "not authorized")
		}
		a.log.Error("account lookup failed", zap.Error(err))
		return nil, err
	}

	username := account.Username()
	if username == "" {
		return nil, errors.New(errors.ErrAuthentication, "account has no username")
	}
	return &models.User{Username: username, Account: account}, nil
}

type authService struct {
	secret    *SecretAuthenticator
	directory *DirectoryAuthenticator
}

// NewAuthService checks tokens against the directory. secret may be nil, which
// disables impersonation entirely.
func NewAuthService(secret *SecretAuthenticator, directory *DirectoryAuthenticator) AuthService {
	return &authService{secret: secret, directory: directory}
}

func (s *authService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, errors.New(errors.ErrInvalidParam, errors.ReasonInvalidContent)
	}

	if s.secret != nil {
		if username, ok := s.secret.Match(token); ok {
			return &models.User{Username: username, Impersonated: true}, nil
		}
	}

	return s.directory.Authenticate(ctx, token)
}
