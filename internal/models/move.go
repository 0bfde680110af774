package models

import (
	"encoding/json"
	"time"
)

// Endgame actions bypass the turn-ownership check.
const (
	ActionKickOut = "kickOut"
	ActionResign  = "resign"
)

// Move is one entry of a game's append-only move log.
type Move struct {
	Player   string          `json:"player,omitempty"`
	Date     time.Time       `json:"date"`
	MoveData json.RawMessage `json:"moveData"`
}

// MoveAction returns the "action" tag of a move payload, or "" when there is none.
func MoveAction(moveData json.RawMessage) string {
	var tagged struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(moveData, &tagged); err != nil {
		return ""
	}
	return tagged.Action
}

// IsEmptyMoveData reports whether a move payload is absent or a JSON falsy
// value: null, false, 0 or "".
func IsEmptyMoveData(moveData json.RawMessage) bool {
	if len(moveData) == 0 {
		return true
	}
	var v interface{}
	if err := json.Unmarshal(moveData, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	}
	return false
}

// IsEndgameAction reports whether action skips the turn check.
func IsEndgameAction(action string) bool {
	return action == ActionKickOut || action == ActionResign
}
