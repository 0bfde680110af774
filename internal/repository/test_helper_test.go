package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/wfunc/turngame/internal/kvstore"
	"go.uber.org/zap"
)

// SetupTestStore returns a Redis-backed store on an in-process server.
func SetupTestStore(t *testing.T) (kvstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := kvstore.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })
	return store, mr
}

var errBackendDown = errors.New("connection refused")

// brokenStore fails every command.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errBackendDown
}
func (brokenStore) Set(context.Context, string, string) error { return errBackendDown }
func (brokenStore) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, errBackendDown
}
func (brokenStore) RPush(context.Context, string, string) error     { return errBackendDown }
func (brokenStore) LRange(context.Context, string) ([]string, error) { return nil, errBackendDown }
func (brokenStore) Del(context.Context, string) error                { return errBackendDown }
func (brokenStore) Ping(context.Context) error                       { return errBackendDown }
func (brokenStore) Close() error                                     { return nil }

func nopLogger() *zap.Logger { return zap.NewNop() }
