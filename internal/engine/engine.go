// Package engine is the Round Resolver: pure functions over
// internal/models types with no I/O, ported from the original game
// engine's validation and scoring rules. Every function is deterministic
// given its inputs; the one source of non-determinism (category choice
// for a new round) takes an injected *rand.Rand so tests can seed it.
package engine

import (
	"math/rand"

	"github.com/playmatatu/duelcore/internal/apierr"
	"github.com/playmatatu/duelcore/internal/models"
)

// Validation error codes, matching the fixed set a Validation apierr.Error
// carries in its Code field.
const (
	CodeSamePlayer            = "SAME_PLAYER"
	CodeEmptyDeck             = "EMPTY_DECK"
	CodeWrongStatus           = "WRONG_STATUS"
	CodeNotParticipant        = "NOT_PARTICIPANT"
	CodeWrongDeckSize         = "WRONG_DECK_SIZE"
	CodeDuplicateCards        = "DUPLICATE_CARDS"
	CodeCardNotInDeck         = "CARD_NOT_IN_DECK"
	CodeAlreadyMovedThisRound = "ALREADY_MOVED_THIS_ROUND"
	CodeCardAlreadyPlayed     = "CARD_ALREADY_PLAYED"
	CodeNoDeck                = "NO_DECK"
	CodeNoOpenRound           = "NO_OPEN_ROUND"
	CodeWrongRound            = "WRONG_ROUND"
)

// ValidateMatchCreation checks the two player ids proposed for a new match.
func ValidateMatchCreation(player1ID, player2ID int64) error {
	if player1ID == player2ID {
		return apierr.NewValidation(CodeSamePlayer, "player ids must be different")
	}
	return nil
}

// ValidateDeckSubmission enforces SubmitDeck's business rules: match must
// be in SETUP, the caller must be a participant, and the deck must have
// exactly deckSize distinct cards.
func ValidateDeckSubmission(cardIDs []int64, playerID int64, match *models.Match, deckSize int) error {
	if len(cardIDs) == 0 {
		return apierr.NewValidation(CodeEmptyDeck, "deck cannot be empty")
	}
	if match.Status != models.MatchSetup {
		return apierr.NewValidation(CodeWrongStatus, "decks can only be chosen during SETUP")
	}
	if !match.IsParticipant(playerID) {
		return apierr.NewValidation(CodeNotParticipant, "player is not part of this match")
	}
	if len(cardIDs) != deckSize {
		return apierr.NewValidation(CodeWrongDeckSize, "deck must contain the configured number of cards")
	}
	seen := make(map[int64]struct{}, len(cardIDs))
	for _, id := range cardIDs {
		if _, dup := seen[id]; dup {
			return apierr.NewValidation(CodeDuplicateCards, "deck cannot contain duplicate cards")
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ShouldStartMatch reports whether both players have submitted decks.
func ShouldStartMatch(match *models.Match) bool {
	return match.Player1Deck != nil && match.Player2Deck != nil
}

// ValidateCurrentRound requires that the match have an open round to move
// in; a match IN_PROGRESS with no incomplete round is itself a Validation
// failure, not an internal one.
func ValidateCurrentRound(currentRound *models.Round) error {
	if currentRound == nil {
		return apierr.NewValidation(CodeNoOpenRound, "match has no open round")
	}
	return nil
}

// ValidateRoundNumber enforces that the round_number a move targets matches
// the match's current open round.
func ValidateRoundNumber(currentRound *models.Round, roundNumber int) error {
	if currentRound.RoundNumber != roundNumber {
		return apierr.NewValidation(CodeWrongRound, "round number does not match the current open round")
	}
	return nil
}

// ValidateMoveSubmission enforces SubmitMove's ordered check list:
// status, participant, deck presence, card membership, already-moved,
// and card reuse across completed rounds.
func ValidateMoveSubmission(playerID, cardID int64, match *models.Match, currentRound *models.Round, completedRounds []models.Round) error {
	if match.Status != models.MatchInProgress {
		return apierr.NewValidation(CodeWrongStatus, "match is not in progress")
	}
	if !match.IsParticipant(playerID) {
		return apierr.NewValidation(CodeNotParticipant, "player is not part of this match")
	}
	deck := match.DeckFor(playerID)
	if deck == nil {
		return apierr.NewValidation(CodeNoDeck, "player deck not found or not set")
	}
	if _, ok := deck[cardID]; !ok {
		return apierr.NewValidation(CodeCardNotInDeck, "card is not in the player's deck")
	}
	if currentRound != nil {
		already := currentRound.PlayerCardID(match, playerID)
		if already != nil {
			return apierr.NewValidation(CodeAlreadyMovedThisRound, "player has already submitted a move for this round")
		}
	}
	for _, r := range completedRounds {
		if r.Player1CardID != nil && *r.Player1CardID == cardID {
			return apierr.NewValidation(CodeCardAlreadyPlayed, "card has already been played")
		}
		if r.Player2CardID != nil && *r.Player2CardID == cardID {
			return apierr.NewValidation(CodeCardAlreadyPlayed, "card has already been played")
		}
	}
	return nil
}

// ShouldProcessRound reports whether both players have recorded a card.
func ShouldProcessRound(current *models.Round) bool {
	return current.IsComplete()
}

// CardStats retrieves the snapshotted stats for a card from the owning
// player's deck.
func CardStats(match *models.Match, playerID, cardID int64) models.CardStats {
	return match.DeckFor(playerID)[cardID]
}

// CalculateRoundScores reads both players' card stats for the round's
// category.
func CalculateRoundScores(match *models.Match, round *models.Round) (float64, float64) {
	p1Stats := CardStats(match, match.Player1ID, *round.Player1CardID)
	p2Stats := CardStats(match, match.Player2ID, *round.Player2CardID)
	return p1Stats[round.Category], p2Stats[round.Category]
}

// CalculateRoundWinner applies the strict-greater-wins rule; equal scores
// are a draw (nil winner).
func CalculateRoundWinner(scoreP1, scoreP2 float64, player1ID, player2ID int64) (winnerID *int64, isDraw bool) {
	switch {
	case scoreP1 > scoreP2:
		return &player1ID, false
	case scoreP2 > scoreP1:
		return &player2ID, false
	default:
		return nil, true
	}
}

// UpdateMatchScores increments the winning player's running score; a draw
// leaves both scores unchanged.
func UpdateMatchScores(match *models.Match, roundWinnerID *int64) {
	if roundWinnerID == nil {
		return
	}
	switch *roundWinnerID {
	case match.Player1ID:
		match.Player1Score++
	case match.Player2ID:
		match.Player2Score++
	}
}

// ShouldEndMatch reports whether the match has played out its configured
// number of rounds.
func ShouldEndMatch(completedRounds int, maxRounds int) bool {
	return completedRounds >= maxRounds
}

// DetermineMatchWinner applies the same strict-greater-wins rule at match
// scope.
func DetermineMatchWinner(player1Score, player2Score int, player1ID, player2ID int64) *int64 {
	switch {
	case player1Score > player2Score:
		return &player1ID
	case player2Score > player1Score:
		return &player2ID
	default:
		return nil
	}
}

// FinalizeMatch marks the match FINISHED and records its winner.
func FinalizeMatch(match *models.Match) {
	match.Status = models.MatchFinished
	match.WinnerID = DetermineMatchWinner(match.Player1Score, match.Player2Score, match.Player1ID, match.Player2ID)
}

// NextRoundNumber is one past the count of completed rounds.
func NextRoundNumber(completedRounds int) int {
	return completedRounds + 1
}

// RoundStatusOf classifies a possibly-nil current round.
func RoundStatusOf(current *models.Round) models.RoundStatus {
	if current == nil {
		return models.RoundWaitingForBoth
	}
	if current.Player1CardID == nil && current.Player2CardID == nil {
		return models.RoundWaitingForBoth
	}
	if !current.IsComplete() {
		return models.RoundWaitingForOne
	}
	return models.RoundComplete
}

// PickCategory chooses the category for a newly created round. rng is
// injected so tests can pin the outcome, mirroring the teacher's
// locally-constructed *rand.Rand in game.Deck.Shuffle rather than a
// package-global source.
func PickCategory(rng *rand.Rand, categories []models.Category) models.Category {
	return categories[rng.Intn(len(categories))]
}
