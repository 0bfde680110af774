package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/turngame/internal/database"
	"github.com/wfunc/turngame/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore implements Store on gorm. Expired keys are removed lazily when touched.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLStore wraps a migrated database.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// errWrongType mirrors the redis WRONGTYPE reply.
var errWrongType = errors.New("WRONGTYPE operation against a key holding the wrong kind of value")

// live loads the entry at key, purging it when its TTL elapsed.
func (s *SQLStore) live(tx *gorm.DB, key string) (*models.KVEntry, error) {
	var entry models.KVEntry
	err := tx.Where(keyIs(key)).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry.Expired(s.now()) {
		if err := purge(tx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &entry, nil
}

func keyIs(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func purge(tx *gorm.DB, key string) error {
	if err := tx.Where(keyIs(key)).Delete(&models.KVListItem{}).Error; err != nil {
		return err
	}
	return tx.Where(keyIs(key)).Delete(&models.KVEntry{}).Error
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var ok bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.live(tx, key)
		if err != nil || entry == nil {
			return err
		}
		if entry.Kind != models.KVKindString {
			return errWrongType
		}
		value, ok = entry.Value, true
		return nil
	})
	return value, ok, err
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(keyIs(key)).Delete(&models.KVListItem{}).Error; err != nil {
			return err
		}
		entry := models.KVEntry{Key: key, Kind: models.KVKindString, Value: value, UpdatedAt: s.now()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "value", "expires_at", "updated_at"}),
		}).Create(&entry).Error
	})
}

func (s *SQLStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var found bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.live(tx, key)
		if err != nil || entry == nil {
			return err
		}
		if ttl <= 0 {
			found = true
			return purge(tx, key)
		}
		at := s.now().Add(ttl)
		res := tx.Model(&models.KVEntry{}).Where(keyIs(key)).Update("expires_at", &at)
		found = res.RowsAffected > 0
		return res.Error
	})
	return found, err
}

func (s *SQLStore) RPush(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.live(tx, key)
		if err != nil {
			return err
		}
		if entry == nil {
			entry = &models.KVEntry{Key: key, Kind: models.KVKindList, UpdatedAt: s.now()}
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		} else if entry.Kind != models.KVKindList {
			return errWrongType
		}
		return tx.Create(&models.KVListItem{Key: key, Value: value}).Error
	})
}

func (s *SQLStore) LRange(ctx context.Context, key string) ([]string, error) {
	var values []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.live(tx, key)
		if err != nil || entry == nil {
			return err
		}
		if entry.Kind != models.KVKindList {
			return errWrongType
		}
		return tx.Model(&models.KVListItem{}).Where(keyIs(key)).Order("id").Pluck("value", &values).Error
	})
	if values == nil && err == nil {
		values = []string{}
	}
	return values, err
}

func (s *SQLStore) Del(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return purge(tx, key)
	})
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := database.Ping(ctx, s.db); err != nil {
		return fmt.Errorf("sql ping: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return database.Close(s.db)
}
