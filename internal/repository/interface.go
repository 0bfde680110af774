package repository

import (
	"time"
)

// Retention windows, refreshed on every write.
const (
	GameTTL    = 30 * 24 * time.Hour
	AccountTTL = 365 * 24 * time.Hour
)

// Keys builds store keys under an installation prefix.
type Keys struct {
	Prefix string
}

// Game is the key of a game's state.
func (k Keys) Game(id string) string {
	return k.join("games", id)
}

// Moves is the key of a game's move log.
func (k Keys) Moves(id string) string {
	return k.Game(id) + ":moves"
}

// Account is the key of a token's account.
func (k Keys) Account(token string) string {
	if k.Prefix == "" {
		return token
	}
	return k.Prefix + ":" + token
}

func (k Keys) join(kind, id string) string {
	if k.Prefix == "" {
		return kind + ":" + id
	}
	return k.Prefix + ":" + kind + ":" + id
}
