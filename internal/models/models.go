// Package models holds the shared data types for the Match Store: Match and
// Round aggregates, card stats, and the small enumerations the round
// resolver operates on.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Category is one of the fixed stat attributes a round is compared on.
type Category string

const (
	CategoryEconomy     Category = "economy"
	CategoryFood        Category = "food"
	CategoryEnvironment Category = "environment"
	CategorySpecial     Category = "special"
	CategoryTotal       Category = "total"
)

// DefaultCategories is the category set used when config does not override it.
var DefaultCategories = []Category{
	CategoryEconomy, CategoryFood, CategoryEnvironment, CategorySpecial, CategoryTotal,
}

// CardStats is the opaque per-category score mapping returned by the
// catalogue service for a single card.
type CardStats map[Category]float64

// Deck maps a card id to its stats, snapshotted at submission time.
// Stored as JSON in the Match row; never re-read from the catalogue.
type Deck map[int64]CardStats

// Value implements driver.Valuer so sqlx/lib-pq can persist a Deck as JSONB.
func (d Deck) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner for reading a JSONB deck column back out.
func (d *Deck) Scan(src interface{}) error {
	if src == nil {
		*d = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models: unsupported Deck scan type %T", src)
	}
	if len(raw) == 0 {
		*d = nil
		return nil
	}
	return json.Unmarshal(raw, d)
}

// CardIDs returns the deck's card ids in no particular order.
func (d Deck) CardIDs() []int64 {
	ids := make([]int64, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	return ids
}

// MatchStatus is the Match state-machine position.
type MatchStatus string

const (
	MatchSetup      MatchStatus = "SETUP"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchFinished   MatchStatus = "FINISHED"
)

// Match is a two-player duel: players, decks (once submitted), running
// score, and terminal winner or draw.
type Match struct {
	ID           int64       `db:"id" json:"id"`
	Player1ID    int64       `db:"player1_id" json:"player1_id"`
	Player2ID    int64       `db:"player2_id" json:"player2_id"`
	Status       MatchStatus `db:"status" json:"status"`
	Player1Score int         `db:"player1_score" json:"player1_score"`
	Player2Score int         `db:"player2_score" json:"player2_score"`
	WinnerID     *int64      `db:"winner_id" json:"winner_id,omitempty"`
	Player1Deck  Deck        `db:"player1_deck" json:"-"`
	Player2Deck  Deck        `db:"player2_deck" json:"-"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// DeckFor returns the deck belonging to the given player, or nil if that
// player hasn't submitted one (or isn't a participant).
func (m *Match) DeckFor(playerID int64) Deck {
	switch playerID {
	case m.Player1ID:
		return m.Player1Deck
	case m.Player2ID:
		return m.Player2Deck
	default:
		return nil
	}
}

// IsParticipant reports whether playerID is one of the two match players.
func (m *Match) IsParticipant(playerID int64) bool {
	return playerID == m.Player1ID || playerID == m.Player2ID
}

// Opponent returns the id of the player opposite playerID, or 0 if playerID
// is not a participant.
func (m *Match) Opponent(playerID int64) int64 {
	switch playerID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	default:
		return 0
	}
}

// Snapshot is how a Match is serialized to clients: decks are never
// included, matching the original service's to_dict() behavior.
type Snapshot struct {
	ID           int64       `json:"id"`
	Player1ID    int64       `json:"player1_id"`
	Player2ID    int64       `json:"player2_id"`
	Status       MatchStatus `json:"status"`
	Player1Score int         `json:"player1_score"`
	Player2Score int         `json:"player2_score"`
	WinnerID     *int64      `json:"winner_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Rounds       []Round     `json:"rounds,omitempty"`
}

// ToSnapshot renders the client-facing view of the match, optionally
// including its rounds.
func (m *Match) ToSnapshot(rounds []Round) Snapshot {
	s := Snapshot{
		ID:           m.ID,
		Player1ID:    m.Player1ID,
		Player2ID:    m.Player2ID,
		Status:       m.Status,
		Player1Score: m.Player1Score,
		Player2Score: m.Player2Score,
		WinnerID:     m.WinnerID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if len(rounds) > 0 {
		s.Rounds = rounds
	}
	return s
}

// Round is a single turn: one card per player, compared on Category.
type Round struct {
	ID            int64     `db:"id" json:"id"`
	MatchID       int64     `db:"match_id" json:"match_id"`
	RoundNumber   int       `db:"round_number" json:"round_number"`
	Category      Category  `db:"category" json:"category"`
	Player1CardID *int64    `db:"player1_card_id" json:"player1_card_id,omitempty"`
	Player2CardID *int64    `db:"player2_card_id" json:"player2_card_id,omitempty"`
	WinnerID      *int64    `db:"winner_id" json:"winner_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// IsComplete reports whether both players have recorded a card for this round.
func (r *Round) IsComplete() bool {
	return r.Player1CardID != nil && r.Player2CardID != nil
}

// PlayerCardID returns the recorded card id for playerID in this round, or
// nil if that player hasn't moved yet (or isn't one of the match's players).
func (r *Round) PlayerCardID(match *Match, playerID int64) *int64 {
	if playerID == match.Player1ID {
		return r.Player1CardID
	}
	if playerID == match.Player2ID {
		return r.Player2CardID
	}
	return nil
}

// RoundStatus describes how far a round has progressed.
type RoundStatus string

const (
	RoundWaitingForBoth RoundStatus = "WAITING_FOR_BOTH_PLAYERS"
	RoundWaitingForOne  RoundStatus = "WAITING_FOR_ONE_PLAYER"
	RoundComplete       RoundStatus = "ROUND_COMPLETE"
)
