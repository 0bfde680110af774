package repository

import (
	"context"
	"sync"

	"github.com/wfunc/turngame/internal/config"
	"github.com/wfunc/turngame/internal/kvstore"
	"go.uber.org/zap"
)

// Manager owns the stores behind the repositories and builds them lazily.
type Manager struct {
	gameStore    kvstore.Store
	accountStore kvstore.Store
	gamePrefix   string
	authPrefix   string
	log          *zap.Logger

	gameOnce sync.Once
	game     GameRepository

	accountOnce sync.Once
	account     AccountRepository
}

// NewManager wraps already opened stores. Both may be the same store.
func NewManager(gameStore, accountStore kvstore.Store, gamePrefix, authPrefix string, log *zap.Logger) *Manager {
	return &Manager{
		gameStore:    gameStore,
		accountStore: accountStore,
		gamePrefix:   gamePrefix,
		authPrefix:   authPrefix,
		log:          log,
	}
}

// Open connects both backends described by cfg.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Manager, error) {
	games, err := kvstore.New(ctx, &cfg.Store, log.Named("store"))
	if err != nil {
		return nil, err
	}
	accounts, err := kvstore.New(ctx, &cfg.AuthDB, log.Named("authdb"))
	if err != nil {
		games.Close()
		return nil, err
	}
	return NewManager(games, accounts, cfg.Store.Prefix, cfg.AuthDB.Prefix, log), nil
}

func (m *Manager) Game() GameRepository {
	m.gameOnce.Do(func() {
		m.game = NewGameRepository(m.gameStore, m.gamePrefix, m.log.Named("games"))
	})
	return m.game
}

func (m *Manager) Account() AccountRepository {
	m.accountOnce.Do(func() {
		m.account = NewAccountRepository(m.accountStore, m.authPrefix)
	})
	return m.account
}

// Ping checks both backends.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.gameStore.Ping(ctx); err != nil {
		return err
	}
	return m.accountStore.Ping(ctx)
}

// Close closes both backends.
func (m *Manager) Close() error {
	err := m.gameStore.Close()
	if m.accountStore != m.gameStore {
		if aerr := m.accountStore.Close(); err == nil {
			err = aerr
		}
	}
	return err
}
