// Package matchrepo is the Match Store: Postgres-backed persistence for
// Match and Round, grounded on the teacher's internal/accounts.Transfer
// row-locking pattern (SELECT ... FOR UPDATE inside an explicit sqlx.Tx).
package matchrepo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/playmatatu/duelcore/internal/apierr"
	"github.com/playmatatu/duelcore/internal/models"
)

// Querier is satisfied by *sqlx.DB and *sqlx.Tx, so read/write methods can
// run either standalone or inside a caller-managed transaction.
type Querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var _ Querier = (*sqlx.DB)(nil)
var _ Querier = (*sqlx.Tx)(nil)

const matchColumns = `id, player1_id, player2_id, status, player1_score, player2_score, winner_id, player1_deck, player2_deck, created_at, updated_at`

// MatchRepository is the Match entity's data access layer.
type MatchRepository struct {
	db *sqlx.DB
}

// NewMatchRepository wraps an already-connected Postgres pool.
func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Create inserts a new SETUP match for the two given players.
func (r *MatchRepository) Create(ctx context.Context, q Querier, player1ID, player2ID int64) (*models.Match, error) {
	var match models.Match
	err := q.GetContext(ctx, &match, `
		INSERT INTO matches (player1_id, player2_id, status, player1_score, player2_score, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, NOW(), NOW())
		RETURNING `+matchColumns,
		player1ID, player2ID, models.MatchSetup,
	)
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	return &match, nil
}

// FindByID loads a match without locking.
func (r *MatchRepository) FindByID(ctx context.Context, id int64) (*models.Match, error) {
	return r.findOne(ctx, r.db, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
}

// FindByIDForUpdate loads a match with a row-level lock, the serialization
// point SubmitMove and SubmitDeck run under. Must run inside tx.
func (r *MatchRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Match, error) {
	return r.findOne(ctx, tx, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id)
}

func (r *MatchRepository) findOne(ctx context.Context, q Querier, query string, id int64) (*models.Match, error) {
	var match models.Match
	err := q.GetContext(ctx, &match, query, id)
	if err == sql.ErrNoRows {
		return nil, apierr.NewNotFound("MATCH_NOT_FOUND", "match not found")
	}
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	return &match, nil
}

// Update persists a match's mutable fields (score, status, winner, decks).
func (r *MatchRepository) Update(ctx context.Context, q Querier, match *models.Match) error {
	_, err := q.ExecContext(ctx, `
		UPDATE matches SET
			status = $1, player1_score = $2, player2_score = $3, winner_id = $4,
			player1_deck = $5, player2_deck = $6, updated_at = NOW()
		WHERE id = $7`,
		match.Status, match.Player1Score, match.Player2Score, match.WinnerID,
		match.Player1Deck, match.Player2Deck, match.ID,
	)
	if err != nil {
		return apierr.NewInternal(err)
	}
	return nil
}

// FindForPlayer returns a player's matches, most recent first, optionally
// filtered by status.
func (r *MatchRepository) FindForPlayer(ctx context.Context, playerID int64, status *models.MatchStatus, limit, offset int) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE (player1_id = $1 OR player2_id = $1)`
	args := []interface{}{playerID}
	if status != nil {
		query += ` AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, *status, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}
	var matches []models.Match
	if err := r.db.SelectContext(ctx, &matches, query, args...); err != nil {
		return nil, apierr.NewInternal(err)
	}
	return matches, nil
}

// CountForPlayer counts a player's matches, optionally filtered by status.
func (r *MatchRepository) CountForPlayer(ctx context.Context, playerID int64, status *models.MatchStatus) (int, error) {
	query := `SELECT COUNT(*) FROM matches WHERE (player1_id = $1 OR player2_id = $1)`
	args := []interface{}{playerID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, apierr.NewInternal(err)
	}
	return count, nil
}

// CountWinsForPlayer counts a player's finished, won matches.
func (r *MatchRepository) CountWinsForPlayer(ctx context.Context, playerID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM matches WHERE winner_id = $1 AND status = $2`,
		playerID, models.MatchFinished,
	)
	if err != nil {
		return 0, apierr.NewInternal(err)
	}
	return count, nil
}

// CountFinishedForPlayer counts a player's finished matches, win/loss/draw
// combined.
func (r *MatchRepository) CountFinishedForPlayer(ctx context.Context, playerID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM matches WHERE (player1_id = $1 OR player2_id = $1) AND status = $2`,
		playerID, models.MatchFinished,
	)
	if err != nil {
		return 0, apierr.NewInternal(err)
	}
	return count, nil
}

// CountDrawsForPlayer counts a player's finished matches with no winner.
func (r *MatchRepository) CountDrawsForPlayer(ctx context.Context, playerID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM matches
		WHERE (player1_id = $1 OR player2_id = $1) AND status = $2 AND winner_id IS NULL`,
		playerID, models.MatchFinished,
	)
	if err != nil {
		return 0, apierr.NewInternal(err)
	}
	return count, nil
}

// PlayerWins is one row of leaderboard aggregation: a player id and their
// win/draw/total counts across both player1 and player2 slots of their
// finished matches.
type PlayerWins struct {
	PlayerID     int64 `db:"player_id"`
	Wins         int   `db:"wins"`
	Draws        int   `db:"draws"`
	TotalMatches int   `db:"total_matches"`
}

// LeaderboardData aggregates wins/draws/totals per player across both match
// slots, ordered by wins descending then player id ascending, the Go
// equivalent of the original's union-of-two-subqueries leaderboard SQL.
func (r *MatchRepository) LeaderboardData(ctx context.Context, limit, offset int) ([]PlayerWins, error) {
	var rows []PlayerWins
	err := r.db.SelectContext(ctx, &rows, `
		SELECT player_id,
			SUM(CASE WHEN winner_id = player_id THEN 1 ELSE 0 END) AS wins,
			SUM(CASE WHEN winner_id IS NULL THEN 1 ELSE 0 END) AS draws,
			COUNT(*) AS total_matches
		FROM (
			SELECT player1_id AS player_id, winner_id FROM matches WHERE status = $1
			UNION ALL
			SELECT player2_id AS player_id, winner_id FROM matches WHERE status = $1
		) per_slot
		GROUP BY player_id
		ORDER BY wins DESC, player_id ASC
		LIMIT $2 OFFSET $3`,
		models.MatchFinished, limit, offset,
	)
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	return rows, nil
}
