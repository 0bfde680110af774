package models

import (
	"time"
)

// Kinds of KVEntry.
const (
	KVKindString = "string"
	KVKindList   = "list"
)

// KVEntry is one key of the SQL-backed key-value store.
type KVEntry struct {
	Key       string     `gorm:"primaryKey;size:255"`
	Kind      string     `gorm:"size:10;not null"`
	Value     string     `gorm:"type:text"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName overrides the gorm table name.
func (KVEntry) TableName() string {
	return "kv_entries"
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e *KVEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// KVListItem is one element of a list key; elements are ordered by ID.
type KVListItem struct {
	ID    uint   `gorm:"primaryKey"`
	Key   string `gorm:"index;size:255;not null"`
	Value string `gorm:"type:text"`
}

// TableName overrides the gorm table name.
func (KVListItem) TableName() string {
	return "kv_list_items"
}
