package repository

import (
	"context"
	"encoding/json"

	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/kvstore"
	"github.com/wfunc/turngame/internal/models"
)

// AccountRepository maps opaque auth tokens to accounts.
type AccountRepository interface {
	// Resolve fails with ErrNotFound for unknown tokens and ErrStorageUnavailable
	// when the backend cannot be read.
	Resolve(ctx context.Context, token string) (models.Account, error)
	// Store writes the account and refreshes the token's validity window.
	Store(ctx context.Context, token string, account models.Account) error
	Revoke(ctx context.Context, token string) error
}

type accountRepo struct {
	store kvstore.Store
	keys  Keys
}

// NewAccountRepository stores accounts under prefix; an empty prefix uses the raw token as key.
func NewAccountRepository(store kvstore.Store, prefix string) AccountRepository {
	return &accountRepo{store: store, keys: Keys{Prefix: prefix}}
}

func (r *accountRepo) Resolve(ctx context.Context, token string) (models.Account, error) {
	data, ok, err := r.store.Get(ctx, r.keys.Account(token))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStorageUnavailable, "resolve token")
	}
	if !ok {
		return nil, errors.New(errors.ErrNotFound, "unknown token")
	}

	var account models.Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "decode account")
	}
	if account == nil {
		return nil, errors.New(errors.ErrNotFound, "unknown token")
	}
	return account, nil
}

func (r *accountRepo) Store(ctx context.Context, token string, account models.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return errors.Wrap(err, errors.ErrInvalidParam, "encode account")
	}

	key := r.keys.Account(token)
	if err := r.store.Set(ctx, key, string(data)); err != nil {
		return errors.Wrap(err, errors.ErrStorageUnavailable, "store account")
	}
	if _, err := r.store.Expire(ctx, key, AccountTTL); err != nil {
		return errors.Wrap(err, errors.ErrStorageUnavailable, "expire account")
	}
	return nil
}

func (r *accountRepo) Revoke(ctx context.Context, token string) error {
	if err := r.store.Del(ctx, r.keys.Account(token)); err != nil {
		return errors.Wrap(err, errors.ErrStorageUnavailable, "revoke token")
	}
	return nil
}
