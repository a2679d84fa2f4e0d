package gameengine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/playmatatu/duelcore/internal/apierr"
	"github.com/playmatatu/duelcore/internal/matchrepo"
	"github.com/playmatatu/duelcore/internal/models"
)

// A single category keeps PickCategory's outcome deterministic regardless
// of the seeded rng's internal sequence.
var testCategories = []models.Category{models.CategoryEconomy}

type fakeCatalogueClient struct {
	stats models.CardStats
}

func (f *fakeCatalogueClient) ValidateDeck(ctx context.Context, cardIDs []int64) (models.Deck, error) {
	deck := make(models.Deck, len(cardIDs))
	for _, id := range cardIDs {
		deck[id] = f.stats
	}
	return deck, nil
}

// fakePlayersClient stubs out the Players service; friends reports whether
// ValidateFriendship should pass, mirroring the client's fail-closed false
// default.
type fakePlayersClient struct {
	friends bool
}

func (f *fakePlayersClient) ValidateProfile(ctx context.Context, userID int64) bool { return true }

func (f *fakePlayersClient) ValidateFriendship(ctx context.Context, userID, otherID int64) bool {
	return f.friends
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	matches := matchrepo.NewMatchRepository(sqlxDB)
	rounds := matchrepo.NewRoundRepository(sqlxDB)
	catalogue := &fakeCatalogueClient{stats: models.CardStats{models.CategoryEconomy: 5, models.CategoryFood: 1}}
	players := &fakePlayersClient{friends: true}
	rng := rand.New(rand.NewSource(1))

	svc := NewService(sqlxDB, matches, rounds, catalogue, players, testCategories, 1, 1, rng, zap.NewNop())
	return svc, mock
}

func matchRow(id, p1, p2 int64, status models.MatchStatus, p1Score, p2Score int, p1Deck, p2Deck []byte) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "player1_id", "player2_id", "status", "player1_score", "player2_score",
		"winner_id", "player1_deck", "player2_deck", "created_at", "updated_at",
	}).AddRow(id, p1, p2, status, p1Score, p2Score, nil, p1Deck, p2Deck, now, now)
}

func roundRow(id, matchID int64, roundNumber int, category models.Category, p1Card, p2Card *int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "match_id", "round_number", "category", "player1_card_id", "player2_card_id",
		"winner_id", "created_at", "updated_at",
	}).AddRow(id, matchID, roundNumber, category, p1Card, p2Card, nil, now, now)
}

func TestCreateMatchRejectsSamePlayer(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.CreateMatch(context.Background(), 1, 1)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.Validation, apiErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMatchInsertsSetupRow(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`INSERT INTO matches`).
		WithArgs(int64(1), int64(2), models.MatchSetup).
		WillReturnRows(matchRow(10, 1, 2, models.MatchSetup, 0, 0, nil, nil))

	match, err := svc.CreateMatch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(10), match.ID)
	assert.Equal(t, models.MatchSetup, match.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitDeckStartsMatchOnSecondDeck(t *testing.T) {
	svc, mock := newTestService(t)
	cardIDs := []int64{101}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM matches WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(10)).
		WillReturnRows(matchRow(10, 1, 2, models.MatchSetup, 0, 0, []byte(`{"1":{}}`), nil))
	mock.ExpectQuery(`INSERT INTO rounds`).
		WithArgs(int64(10), 1, models.CategoryEconomy).
		WillReturnRows(roundRow(1, 10, 1, models.CategoryEconomy, nil, nil))
	mock.ExpectExec(`UPDATE matches SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	match, err := svc.SubmitDeck(context.Background(), 10, 2, cardIDs)
	require.NoError(t, err)
	assert.Equal(t, models.MatchInProgress, match.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitDeckRejectsWrongDeckSize(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM matches WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(10)).
		WillReturnRows(matchRow(10, 1, 2, models.MatchSetup, 0, 0, nil, nil))
	mock.ExpectRollback()

	_, err := svc.SubmitDeck(context.Background(), 10, 1, []int64{101, 102})
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.Validation, apiErr.Kind)
	assert.Equal(t, "WRONG_DECK_SIZE", apiErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitMoveCompletesRoundAndFinalizesMatch(t *testing.T) {
	svc, mock := newTestService(t)
	existingCard := int64(101)
	newCard := int64(201)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM matches WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(10)).
		WillReturnRows(matchRow(10, 1, 2, models.MatchInProgress, 0, 0,
			[]byte(`{"101":{"economy":5}}`), []byte(`{"201":{"economy":1}}`)))
	mock.ExpectQuery(`SELECT .* FROM rounds\s+WHERE match_id = \$1 AND \(player1_card_id IS NULL OR player2_card_id IS NULL\)`).
		WithArgs(int64(10)).
		WillReturnRows(roundRow(1, 10, 1, models.CategoryEconomy, &existingCard, nil))
	mock.ExpectQuery(`SELECT .* FROM rounds\s+WHERE match_id = \$1 AND player1_card_id IS NOT NULL AND player2_card_id IS NOT NULL`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "match_id", "round_number", "category", "player1_card_id", "player2_card_id",
			"winner_id", "created_at", "updated_at",
		}))
	mock.ExpectExec(`UPDATE rounds SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE matches SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	match, err := svc.SubmitMove(context.Background(), 10, 2, 1, newCard)
	require.NoError(t, err)
	assert.Equal(t, models.MatchFinished, match.Status)
	require.NotNil(t, match.WinnerID)
	assert.Equal(t, int64(1), *match.WinnerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitMoveRejectsWrongRoundNumber(t *testing.T) {
	svc, mock := newTestService(t)
	existingCard := int64(101)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM matches WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(10)).
		WillReturnRows(matchRow(10, 1, 2, models.MatchInProgress, 0, 0,
			[]byte(`{"101":{"economy":5}}`), []byte(`{"201":{"economy":1}}`)))
	mock.ExpectQuery(`SELECT .* FROM rounds\s+WHERE match_id = \$1 AND \(player1_card_id IS NULL OR player2_card_id IS NULL\)`).
		WithArgs(int64(10)).
		WillReturnRows(roundRow(1, 10, 1, models.CategoryEconomy, &existingCard, nil))
	mock.ExpectRollback()

	_, err := svc.SubmitMove(context.Background(), 10, 2, 2, int64(201))
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.Validation, apiErr.Kind)
	assert.Equal(t, "WRONG_ROUND", apiErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPlayerHistoryComputesWinRate(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT .* FROM matches WHERE \(player1_id = \$1 OR player2_id = \$1\) ORDER BY created_at DESC`).
		WithArgs(int64(7), 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "player1_id", "player2_id", "status", "player1_score", "player2_score",
			"winner_id", "player1_deck", "player2_deck", "created_at", "updated_at",
		}))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM matches WHERE \(player1_id = \$1 OR player2_id = \$1\)$`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM matches WHERE \(player1_id = \$1 OR player2_id = \$1\) AND status = \$2$`).
		WithArgs(int64(7), models.MatchFinished).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM matches WHERE winner_id = \$1 AND status = \$2`).
		WithArgs(int64(7), models.MatchFinished).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM matches\s+WHERE \(player1_id = \$1 OR player2_id = \$1\) AND status = \$2 AND winner_id IS NULL`).
		WithArgs(int64(7), models.MatchFinished).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	page, err := svc.GetPlayerHistory(context.Background(), 7, 7, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Summary.TotalMatches)
	assert.Equal(t, 1, page.Summary.Wins)
	assert.Equal(t, 1, page.Summary.Draws)
	assert.Equal(t, 1, page.Summary.Losses)
	assert.InDelta(t, 33.33, page.Summary.WinRate, 0.01)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPlayerHistoryAnnotatesEachMatch(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT .* FROM matches WHERE \(player1_id = \$1 OR player2_id = \$1\) ORDER BY created_at DESC`).
		WithArgs(int64(7), 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "player1_id", "player2_id", "status", "player1_score", "player2_score",
			"winner_id", "player1_deck", "player2_deck", "created_at", "updated_at",
		}).AddRow(int64(99), int64(7), int64(8), models.MatchFinished, 3, 1, int64(7), nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM matches WHERE \(player1_id = \$1 OR player2_id = \$1\)$`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM matches WHERE \(player1_id = \$1 OR player2_id = \$1\) AND status = \$2$`).
		WithArgs(int64(7), models.MatchFinished).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM matches WHERE winner_id = \$1 AND status = \$2`).
		WithArgs(int64(7), models.MatchFinished).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM matches\s+WHERE \(player1_id = \$1 OR player2_id = \$1\) AND status = \$2 AND winner_id IS NULL`).
		WithArgs(int64(7), models.MatchFinished).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	page, err := svc.GetPlayerHistory(context.Background(), 7, 7, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Matches, 1)
	entry := page.Matches[0]
	assert.True(t, entry.PlayerWon)
	assert.True(t, entry.PlayerWasPlayer1)
	assert.Equal(t, int64(8), entry.OpponentID)
	assert.Equal(t, 3, entry.PlayerScore)
	assert.Equal(t, 1, entry.OpponentScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPlayerHistoryDeniesNonFriendRequester(t *testing.T) {
	svc, mock := newTestService(t)
	svc.players = &fakePlayersClient{friends: false}

	_, err := svc.GetPlayerHistory(context.Background(), 8, 7, nil, 10, 0)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.Permission, apiErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMatchRejectsNonParticipant(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT .* FROM matches WHERE id = \$1`).
		WithArgs(int64(10)).
		WillReturnRows(matchRow(10, 1, 2, models.MatchInProgress, 0, 0, nil, nil))

	_, err := svc.GetMatch(context.Background(), 10, 99)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.Permission, apiErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLeaderboardComputesRankLossesAndWinRate(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery(`SELECT player_id,`).
		WithArgs(models.MatchFinished, 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"player_id", "wins", "draws", "total_matches"}).
			AddRow(int64(1), 3, 0, 4).
			AddRow(int64(2), 1, 1, 4))

	entries, err := svc.GetLeaderboard(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, int64(1), entries[0].PlayerID)
	assert.Equal(t, 1, entries[0].Losses)
	assert.Equal(t, 4, entries[0].TotalMatches)
	assert.InDelta(t, 75.0, entries[0].WinRate, 0.01)

	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, int64(2), entries[1].PlayerID)
	assert.Equal(t, 2, entries[1].Losses)
	require.NoError(t, mock.ExpectationsWereMet())
}
