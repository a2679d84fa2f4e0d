package matchrepo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/playmatatu/duelcore/internal/apierr"
	"github.com/playmatatu/duelcore/internal/models"
)

const roundColumns = `id, match_id, round_number, category, player1_card_id, player2_card_id, winner_id, created_at, updated_at`

// RoundRepository is the Round entity's data access layer.
type RoundRepository struct {
	db *sqlx.DB
}

// NewRoundRepository wraps an already-connected Postgres pool.
func NewRoundRepository(db *sqlx.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

// Create inserts a new round for a match at round_number with category.
func (r *RoundRepository) Create(ctx context.Context, q Querier, matchID int64, roundNumber int, category models.Category) (*models.Round, error) {
	var round models.Round
	err := q.GetContext(ctx, &round, `
		INSERT INTO rounds (match_id, round_number, category, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING `+roundColumns,
		matchID, roundNumber, category,
	)
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	return &round, nil
}

// FindByMatchAndNumber loads a specific round within a match.
func (r *RoundRepository) FindByMatchAndNumber(ctx context.Context, q Querier, matchID int64, roundNumber int) (*models.Round, error) {
	var round models.Round
	err := q.GetContext(ctx, &round, `
		SELECT `+roundColumns+` FROM rounds WHERE match_id = $1 AND round_number = $2`,
		matchID, roundNumber,
	)
	if err == sql.ErrNoRows {
		return nil, apierr.NewNotFound("ROUND_NOT_FOUND", "round not found")
	}
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	return &round, nil
}

// FindCurrentIncomplete finds the unique round in the match still missing
// a card from at least one player, ordered first by round_number so the
// earliest open round wins if more than one somehow qualifies.
func (r *RoundRepository) FindCurrentIncomplete(ctx context.Context, q Querier, matchID int64) (*models.Round, error) {
	var round models.Round
	err := q.GetContext(ctx, &round, `
		SELECT `+roundColumns+` FROM rounds
		WHERE match_id = $1 AND (player1_card_id IS NULL OR player2_card_id IS NULL)
		ORDER BY round_number
		LIMIT 1`,
		matchID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	return &round, nil
}

// FindAllForMatch returns every round in round_number order.
func (r *RoundRepository) FindAllForMatch(ctx context.Context, matchID int64) ([]models.Round, error) {
	var rounds []models.Round
	err := r.db.SelectContext(ctx, &rounds, `
		SELECT `+roundColumns+` FROM rounds WHERE match_id = $1 ORDER BY round_number`,
		matchID,
	)
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	return rounds, nil
}

// FindCompleted returns the rounds where both players have recorded a
// card, used for the card-reuse check during move validation.
func (r *RoundRepository) FindCompleted(ctx context.Context, q Querier, matchID int64) ([]models.Round, error) {
	var rounds []models.Round
	err := q.SelectContext(ctx, &rounds, `
		SELECT `+roundColumns+` FROM rounds
		WHERE match_id = $1 AND player1_card_id IS NOT NULL AND player2_card_id IS NOT NULL
		ORDER BY round_number`,
		matchID,
	)
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	return rounds, nil
}

// Update persists a round's recorded cards and winner.
func (r *RoundRepository) Update(ctx context.Context, q Querier, round *models.Round) error {
	_, err := q.ExecContext(ctx, `
		UPDATE rounds SET player1_card_id = $1, player2_card_id = $2, winner_id = $3, updated_at = NOW()
		WHERE id = $4`,
		round.Player1CardID, round.Player2CardID, round.WinnerID, round.ID,
	)
	if err != nil {
		return apierr.NewInternal(err)
	}
	return nil
}
