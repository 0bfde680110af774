package models

import (
	"encoding/json"
	"time"
)

// GameStatus is the lifecycle state of a game. The only transition is active -> gameover.
type GameStatus string

const (
	StatusActive   GameStatus = "active"
	StatusGameOver GameStatus = "gameover"
)

// GameState is the authoritative record of a game.
//
// GameConfig and GameData are owned by the rules peer of the game's type and are kept
// as uninterpreted JSON.
type GameState struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Players    []string        `json:"players"`
	Turn       string          `json:"turn"`
	Status     GameStatus      `json:"status,omitempty"`
	Scores     []float64       `json:"scores,omitempty"`
	GameConfig json.RawMessage `json:"gameConfig,omitempty"`
	GameData   json.RawMessage `json:"gameData,omitempty"`
}

// MarshalJSON renders an empty turn as null.
func (s GameState) MarshalJSON() ([]byte, error) {
	type plain GameState
	var turn *string
	if s.Turn != "" {
		turn = &s.Turn
	}
	return json.Marshal(struct {
		plain
		Turn *string `json:"turn"`
	}{plain(s), turn})
}

// Clone returns a deep copy.
func (s *GameState) Clone() *GameState {
	c := *s
	c.Players = append([]string(nil), s.Players...)
	if s.Scores != nil {
		c.Scores = append([]float64(nil), s.Scores...)
	}
	c.GameConfig = cloneRaw(s.GameConfig)
	c.GameData = cloneRaw(s.GameData)
	return &c
}

// HasPlayer reports whether username is a participant.
func (s *GameState) HasPlayer(username string) bool {
	return indexOf(s.Players, username) >= 0
}

// IsOver reports whether the game reached its terminal state.
func (s *GameState) IsOver() bool {
	return s.Status == StatusGameOver
}

// Summary is the reduced form sent in notifications.
func (s *GameState) Summary() *GameState {
	return &GameState{
		ID:      s.ID,
		Players: s.Players,
		Status:  s.Status,
		Turn:    s.Turn,
		Type:    s.Type,
	}
}

// RemovePlayer drops username from players and its aligned score. It returns the
// index the player had, or -1.
func (s *GameState) RemovePlayer(username string) int {
	i := indexOf(s.Players, username)
	if i < 0 {
		return -1
	}
	s.Players = append(s.Players[:i:i], s.Players[i+1:]...)
	if i < len(s.Scores) {
		s.Scores = append(s.Scores[:i:i], s.Scores[i+1:]...)
	}
	return i
}

// ConfigInt64 reads a numeric top-level field of GameConfig.
func (s *GameState) ConfigInt64(key string) (int64, bool) {
	return rawInt64(s.GameConfig, key)
}

// DataInt64 reads a numeric top-level field of GameData.
func (s *GameState) DataInt64(key string) (int64, bool) {
	return rawInt64(s.GameData, key)
}

// SetData writes top-level fields of GameData, keeping the others.
func (s *GameState) SetData(values map[string]interface{}) error {
	data := map[string]json.RawMessage{}
	if len(s.GameData) > 0 && string(s.GameData) != "null" {
		if err := json.Unmarshal(s.GameData, &data); err != nil {
			return err
		}
	}
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		data[k] = b
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.GameData = b
	return nil
}

// GameCreation is the body sent to the rules peer to create a game.
type GameCreation struct {
	ID         string          `json:"id"`
	Players    []string        `json:"players"`
	Type       string          `json:"type,omitempty"`
	GameConfig json.RawMessage `json:"gameConfig,omitempty"`
}

// GameStateWithMove is a state carrying the move the rules peer should apply.
type GameStateWithMove struct {
	GameState
	MoveDate time.Time       `json:"moveDate"`
	MoveData json.RawMessage `json:"moveData,omitempty"`
}

// MarshalJSON keeps the null turn of the embedded state and appends the move fields.
func (s GameStateWithMove) MarshalJSON() ([]byte, error) {
	state, err := json.Marshal(s.GameState)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(state, &fields); err != nil {
		return nil, err
	}
	if fields["moveDate"], err = json.Marshal(s.MoveDate); err != nil {
		return nil, err
	}
	if len(s.MoveData) > 0 {
		fields["moveData"] = s.MoveData
	}
	return json.Marshal(fields)
}

// Overlay copies the identity fields of the local request onto a state returned by a peer.
func (c *GameCreation) Overlay(dst *GameState) {
	dst.ID = c.ID
	dst.Players = append([]string(nil), c.Players...)
	if c.Type != "" {
		dst.Type = c.Type
	}
	if len(c.GameConfig) > 0 {
		dst.GameConfig = cloneRaw(c.GameConfig)
	}
}

// CreationOf builds the identity fields of an existing state.
func CreationOf(s *GameState) *GameCreation {
	return &GameCreation{
		ID:         s.ID,
		Players:    s.Players,
		Type:       s.Type,
		GameConfig: s.GameConfig,
	}
}

func rawInt64(raw json.RawMessage, key string) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, false
	}
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, false
	}
	return int64(f), true
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
