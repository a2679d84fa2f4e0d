package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playmatatu/duelcore/internal/apierr"
	"github.com/playmatatu/duelcore/internal/models"
)

func newSetupMatch() *models.Match {
	return &models.Match{
		ID:        1,
		Player1ID: 10,
		Player2ID: 20,
		Status:    models.MatchSetup,
	}
}

func TestValidateMatchCreationRejectsSamePlayer(t *testing.T) {
	err := ValidateMatchCreation(5, 5)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeSamePlayer, apiErr.Code)
}

func TestValidateDeckSubmission(t *testing.T) {
	match := newSetupMatch()

	t.Run("empty deck", func(t *testing.T) {
		err := ValidateDeckSubmission(nil, 10, match, 5)
		require.Error(t, err)
	})

	t.Run("wrong status", func(t *testing.T) {
		m := newSetupMatch()
		m.Status = models.MatchInProgress
		err := ValidateDeckSubmission([]int64{1, 2, 3, 4, 5}, 10, m, 5)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, CodeWrongStatus, apiErr.Code)
	})

	t.Run("not a participant", func(t *testing.T) {
		err := ValidateDeckSubmission([]int64{1, 2, 3, 4, 5}, 999, match, 5)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, CodeNotParticipant, apiErr.Code)
	})

	t.Run("wrong size", func(t *testing.T) {
		err := ValidateDeckSubmission([]int64{1, 2, 3}, 10, match, 5)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, CodeWrongDeckSize, apiErr.Code)
	})

	t.Run("duplicate cards", func(t *testing.T) {
		err := ValidateDeckSubmission([]int64{1, 2, 3, 4, 4}, 10, match, 5)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, CodeDuplicateCards, apiErr.Code)
	})

	t.Run("valid deck", func(t *testing.T) {
		err := ValidateDeckSubmission([]int64{1, 2, 3, 4, 5}, 10, match, 5)
		assert.NoError(t, err)
	})
}

func TestValidateMoveSubmission(t *testing.T) {
	match := newSetupMatch()
	match.Status = models.MatchInProgress
	match.Player1Deck = models.Deck{1: {models.CategoryTotal: 5}}
	match.Player2Deck = models.Deck{2: {models.CategoryTotal: 3}}

	t.Run("wrong status", func(t *testing.T) {
		m := newSetupMatch()
		err := ValidateMoveSubmission(10, 1, m, nil, nil)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, CodeWrongStatus, apiErr.Code)
	})

	t.Run("not participant", func(t *testing.T) {
		err := ValidateMoveSubmission(999, 1, match, nil, nil)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, CodeNotParticipant, apiErr.Code)
	})

	t.Run("no deck", func(t *testing.T) {
		m := newSetupMatch()
		m.Status = models.MatchInProgress
		err := ValidateMoveSubmission(10, 1, m, nil, nil)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, CodeNoDeck, apiErr.Code)
	})

	t.Run("card not in deck", func(t *testing.T) {
		err := ValidateMoveSubmission(10, 99, match, nil, nil)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, CodeCardNotInDeck, apiErr.Code)
	})

	t.Run("already moved this round", func(t *testing.T) {
		cardID := int64(1)
		round := &models.Round{Player1CardID: &cardID}
		err := ValidateMoveSubmission(10, 1, match, round, nil)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, CodeAlreadyMovedThisRound, apiErr.Code)
	})

	t.Run("card already played", func(t *testing.T) {
		cardID := int64(1)
		completed := []models.Round{{Player1CardID: &cardID}}
		err := ValidateMoveSubmission(10, 1, match, nil, completed)
		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, CodeCardAlreadyPlayed, apiErr.Code)
	})

	t.Run("valid move", func(t *testing.T) {
		err := ValidateMoveSubmission(10, 1, match, nil, nil)
		assert.NoError(t, err)
	})
}

func TestCalculateRoundWinner(t *testing.T) {
	winner, draw := CalculateRoundWinner(5, 3, 10, 20)
	require.NotNil(t, winner)
	assert.Equal(t, int64(10), *winner)
	assert.False(t, draw)

	winner, draw = CalculateRoundWinner(3, 5, 10, 20)
	require.NotNil(t, winner)
	assert.Equal(t, int64(20), *winner)
	assert.False(t, draw)

	winner, draw = CalculateRoundWinner(4, 4, 10, 20)
	assert.Nil(t, winner)
	assert.True(t, draw)
}

func TestUpdateMatchScores(t *testing.T) {
	match := newSetupMatch()
	p1 := match.Player1ID
	UpdateMatchScores(match, &p1)
	assert.Equal(t, 1, match.Player1Score)
	assert.Equal(t, 0, match.Player2Score)

	UpdateMatchScores(match, nil)
	assert.Equal(t, 1, match.Player1Score)
}

func TestFinalizeMatchPicksWinner(t *testing.T) {
	match := newSetupMatch()
	match.Player1Score = 3
	match.Player2Score = 2
	FinalizeMatch(match)
	assert.Equal(t, models.MatchFinished, match.Status)
	require.NotNil(t, match.WinnerID)
	assert.Equal(t, match.Player1ID, *match.WinnerID)
}

func TestFinalizeMatchDraw(t *testing.T) {
	match := newSetupMatch()
	match.Player1Score = 2
	match.Player2Score = 2
	FinalizeMatch(match)
	assert.Nil(t, match.WinnerID)
}

func TestPickCategoryIsDeterministicWithSeededRand(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	got := PickCategory(rng, models.DefaultCategories)
	assert.Contains(t, models.DefaultCategories, got)
	again := PickCategory(rand.New(rand.NewSource(42)), models.DefaultCategories)
	assert.Equal(t, got, again)
}

func TestRoundStatusOf(t *testing.T) {
	assert.Equal(t, models.RoundWaitingForBoth, RoundStatusOf(nil))

	cardID := int64(1)
	assert.Equal(t, models.RoundWaitingForOne, RoundStatusOf(&models.Round{Player1CardID: &cardID}))
	assert.Equal(t, models.RoundComplete, RoundStatusOf(&models.Round{Player1CardID: &cardID, Player2CardID: &cardID}))
}
