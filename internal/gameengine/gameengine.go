// Package gameengine is the Game Engine service layer: it orchestrates
// internal/matchrepo (the Match Store) and internal/engine (the pure
// Round Resolver) behind the operations the original MatchService
// exposed -- CreateMatch, SubmitDeck, SubmitMove, and the read-only
// match/round/history/leaderboard queries.
package gameengine

import (
	"context"
	"math"
	"math/rand"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/playmatatu/duelcore/internal/apierr"
	"github.com/playmatatu/duelcore/internal/clients"
	"github.com/playmatatu/duelcore/internal/engine"
	"github.com/playmatatu/duelcore/internal/matchrepo"
	"github.com/playmatatu/duelcore/internal/models"
)

// Service wires the Match Store repositories, the Round Resolver, and the
// Catalogue client into the Game Engine's public operations.
type Service struct {
	db        *sqlx.DB
	matches   *matchrepo.MatchRepository
	rounds    *matchrepo.RoundRepository
	catalogue clients.CatalogueClient
	players   clients.PlayersClient
	rng       *rand.Rand
	logger    *zap.Logger

	categories []models.Category
	deckSize   int
	maxRounds  int
}

// NewService assembles the Game Engine. rng is the single source of
// category randomness for every round this service creates; callers pass
// a seeded one in tests and rand.New(rand.NewSource(time.Now().UnixNano()))
// in production.
func NewService(db *sqlx.DB, matches *matchrepo.MatchRepository, rounds *matchrepo.RoundRepository, catalogue clients.CatalogueClient, players clients.PlayersClient, categories []models.Category, deckSize, maxRounds int, rng *rand.Rand, logger *zap.Logger) *Service {
	return &Service{
		db:         db,
		matches:    matches,
		rounds:     rounds,
		catalogue:  catalogue,
		players:    players,
		rng:        rng,
		logger:     logger,
		categories: categories,
		deckSize:   deckSize,
		maxRounds:  maxRounds,
	}
}

// RoundStatusResult is the current-round-status read model.
type RoundStatusResult struct {
	MatchID     int64              `json:"match_id"`
	RoundNumber int                `json:"round_number,omitempty"`
	Status      models.RoundStatus `json:"status"`
}

// HistoryEntry is one match in a player's history, annotated from that
// player's point of view.
type HistoryEntry struct {
	models.Snapshot
	PlayerWon        bool  `json:"player_won"`
	PlayerWasPlayer1 bool  `json:"player_was_player1"`
	OpponentID       int64 `json:"opponent_id"`
	PlayerScore      int   `json:"player_score"`
	OpponentScore    int   `json:"opponent_score"`
}

// HistoryPage is a page of a player's match history plus their
// aggregate win/loss record.
type HistoryPage struct {
	Matches []HistoryEntry `json:"matches"`
	Total   int            `json:"total"`
	Summary HistorySummary `json:"summary"`
}

// HistorySummary is a player's aggregate record across finished matches.
type HistorySummary struct {
	TotalMatches int     `json:"total_matches"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Draws        int     `json:"draws"`
	WinRate      float64 `json:"win_rate"`
}

// LeaderboardEntry is one ranked row of the wins leaderboard.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	PlayerID     int64   `json:"player_id"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	TotalMatches int     `json:"total_matches"`
	WinRate      float64 `json:"win_rate"`
}

// CreateMatch is the internal RPC the Matchmaking Coordinator calls once
// it has paired two players. It performs no locking of its own: a brand
// new match row has no concurrent writers yet.
func (s *Service) CreateMatch(ctx context.Context, player1ID, player2ID int64) (*models.Match, error) {
	if err := engine.ValidateMatchCreation(player1ID, player2ID); err != nil {
		return nil, err
	}
	return s.matches.Create(ctx, s.db, player1ID, player2ID)
}

// SubmitDeck records one player's chosen deck. It locks the match row for
// the duration of the check-validate-write sequence so two concurrent
// submissions for the same match never race past ShouldStartMatch.
func (s *Service) SubmitDeck(ctx context.Context, matchID, playerID int64, cardIDs []int64) (*models.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	defer tx.Rollback()

	match, err := s.matches.FindByIDForUpdate(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if err := engine.ValidateDeckSubmission(cardIDs, playerID, match, s.deckSize); err != nil {
		return nil, err
	}

	deck, err := s.catalogue.ValidateDeck(ctx, cardIDs)
	if err != nil {
		return nil, err
	}
	switch playerID {
	case match.Player1ID:
		match.Player1Deck = deck
	case match.Player2ID:
		match.Player2Deck = deck
	}

	if engine.ShouldStartMatch(match) {
		match.Status = models.MatchInProgress
		category := engine.PickCategory(s.rng, s.categories)
		if _, err := s.rounds.Create(ctx, tx, match.ID, engine.NextRoundNumber(0), category); err != nil {
			return nil, err
		}
	}

	if err := s.matches.Update(ctx, tx, match); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apierr.NewInternal(err)
	}
	return match, nil
}

// SubmitMove records one player's card for the open round. roundNumber must
// match the match's current open round. When the move completes the round
// it scores it, advances the match, and either opens the next round or
// finalizes the match. The whole sequence runs under the match row's lock,
// the duel's single serialization point.
func (s *Service) SubmitMove(ctx context.Context, matchID, playerID int64, roundNumber int, cardID int64) (*models.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	defer tx.Rollback()

	match, err := s.matches.FindByIDForUpdate(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	currentRound, err := s.rounds.FindCurrentIncomplete(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if err := engine.ValidateCurrentRound(currentRound); err != nil {
		return nil, err
	}
	if err := engine.ValidateRoundNumber(currentRound, roundNumber); err != nil {
		return nil, err
	}
	completedRounds, err := s.rounds.FindCompleted(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}

	if err := engine.ValidateMoveSubmission(playerID, cardID, match, currentRound, completedRounds); err != nil {
		return nil, err
	}

	switch playerID {
	case match.Player1ID:
		currentRound.Player1CardID = &cardID
	case match.Player2ID:
		currentRound.Player2CardID = &cardID
	}

	if !engine.ShouldProcessRound(currentRound) {
		if err := s.rounds.Update(ctx, tx, currentRound); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, apierr.NewInternal(err)
		}
		return match, nil
	}

	p1Score, p2Score := engine.CalculateRoundScores(match, currentRound)
	winnerID, _ := engine.CalculateRoundWinner(p1Score, p2Score, match.Player1ID, match.Player2ID)
	currentRound.WinnerID = winnerID
	engine.UpdateMatchScores(match, winnerID)
	if err := s.rounds.Update(ctx, tx, currentRound); err != nil {
		return nil, err
	}

	completedCount := len(completedRounds) + 1
	if engine.ShouldEndMatch(completedCount, s.maxRounds) {
		engine.FinalizeMatch(match)
	} else {
		category := engine.PickCategory(s.rng, s.categories)
		if _, err := s.rounds.Create(ctx, tx, match.ID, engine.NextRoundNumber(completedCount), category); err != nil {
			return nil, err
		}
	}

	if err := s.matches.Update(ctx, tx, match); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apierr.NewInternal(err)
	}
	return match, nil
}

// GetMatch returns the client-facing snapshot of a match, decks excluded,
// rounds included. Only the two match participants may view it.
func (s *Service) GetMatch(ctx context.Context, matchID, requesterID int64) (*models.Snapshot, error) {
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.IsParticipant(requesterID) {
		return nil, apierr.NewPermission("NOT_PARTICIPANT", "requester is not part of this match")
	}
	rounds, err := s.rounds.FindAllForMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	snapshot := match.ToSnapshot(rounds)
	return &snapshot, nil
}

// GetCurrentRoundStatus reports how far the match's open round has
// progressed, for clients polling between moves. Only the two match
// participants may view it.
func (s *Service) GetCurrentRoundStatus(ctx context.Context, matchID, requesterID int64) (*RoundStatusResult, error) {
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.IsParticipant(requesterID) {
		return nil, apierr.NewPermission("NOT_PARTICIPANT", "requester is not part of this match")
	}
	current, err := s.rounds.FindCurrentIncomplete(ctx, s.db, matchID)
	if err != nil {
		return nil, err
	}
	result := &RoundStatusResult{MatchID: matchID, Status: engine.RoundStatusOf(current)}
	if current != nil {
		result.RoundNumber = current.RoundNumber
	}
	return result, nil
}

// GetPlayerHistory returns a page of a player's past and current matches,
// most recent first, each annotated from that player's point of view. A
// requester asking about someone else's history must be that player's
// friend; the friendship check fails closed, so any Players-service error
// denies the request rather than letting it through.
func (s *Service) GetPlayerHistory(ctx context.Context, playerID, requesterID int64, status *models.MatchStatus, limit, offset int) (*HistoryPage, error) {
	if requesterID != playerID {
		if !s.players.ValidateFriendship(ctx, requesterID, playerID) {
			return nil, apierr.NewPermission("NOT_FRIENDS", "requester is not friends with this player")
		}
	}

	matches, err := s.matches.FindForPlayer(ctx, playerID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.matches.CountForPlayer(ctx, playerID, status)
	if err != nil {
		return nil, err
	}

	finished, err := s.matches.CountFinishedForPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	wins, err := s.matches.CountWinsForPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	draws, err := s.matches.CountDrawsForPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	losses := finished - wins - draws

	winRate := 0.0
	if finished > 0 {
		winRate = math.Round(float64(wins)/float64(finished)*10000) / 100
	}

	entries := make([]HistoryEntry, len(matches))
	for i := range matches {
		m := &matches[i]
		entries[i] = HistoryEntry{
			Snapshot:         m.ToSnapshot(nil),
			PlayerWon:        m.WinnerID != nil && *m.WinnerID == playerID,
			PlayerWasPlayer1: m.Player1ID == playerID,
			OpponentID:       m.Opponent(playerID),
			PlayerScore:      playerScore(m, playerID),
			OpponentScore:    playerScore(m, m.Opponent(playerID)),
		}
	}
	return &HistoryPage{
		Matches: entries,
		Total:   total,
		Summary: HistorySummary{
			TotalMatches: finished,
			Wins:         wins,
			Losses:       losses,
			Draws:        draws,
			WinRate:      winRate,
		},
	}, nil
}

// playerScore returns the running score belonging to playerID in match m.
func playerScore(m *models.Match, playerID int64) int {
	if playerID == m.Player1ID {
		return m.Player1Score
	}
	return m.Player2Score
}

// GetLeaderboard ranks players by total wins across both match slots,
// breaking ties by player id ascending.
func (s *Service) GetLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	rows, err := s.matches.LeaderboardData(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, len(rows))
	for i, row := range rows {
		losses := row.TotalMatches - row.Wins - row.Draws
		winRate := 0.0
		if row.TotalMatches > 0 {
			winRate = math.Round(float64(row.Wins)/float64(row.TotalMatches)*10000) / 100
		}
		entries[i] = LeaderboardEntry{
			Rank:         offset + i + 1,
			PlayerID:     row.PlayerID,
			Wins:         row.Wins,
			Losses:       losses,
			TotalMatches: row.TotalMatches,
			WinRate:      winRate,
		}
	}
	return entries, nil
}
