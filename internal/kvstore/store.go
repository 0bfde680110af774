// Package kvstore is the key-value layer under the game and account repositories.
//
// Two backends exist: Redis for deployments sharing state between processes, and a gorm
// SQL backend (sqlite, postgres, mysql) for standalone installs.
package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/turngame/internal/config"
	"github.com/wfunc/turngame/internal/database"
	"go.uber.org/zap"
)

// Store is the subset of key-value commands the repositories need.
type Store interface {
	// Get returns the string at key; ok is false when the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set overwrites key and clears its TTL.
	Set(ctx context.Context, key, value string) error
	// Expire sets a TTL on key. It reports false when the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// RPush appends value to the list at key, creating it when needed.
	RPush(ctx context.Context, key, value string) error
	// LRange returns the whole list at key, empty when the key does not exist.
	LRange(ctx context.Context, key string) ([]string, error)
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// New opens the backend selected by cfg.Driver.
func New(ctx context.Context, cfg *config.StoreConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "redis":
		client, err := NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		store := NewRedisStore(client)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info("redis store connected", zap.String("addr", client.Options().Addr), zap.Int("db", client.Options().DB))
		return store, nil
	case "sqlite", "sqlite3", "postgres", "postgresql", "mysql":
		db, err := database.Open(cfg, log)
		if err != nil {
			return nil, err
		}
		if err := database.AutoMigrate(db, cfg.DSN, log); err != nil {
			database.Close(db)
			return nil, err
		}
		return NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
