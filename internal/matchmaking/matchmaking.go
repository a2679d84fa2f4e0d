// Package matchmaking is the Matchmaking Coordinator: the atomic
// enqueue/dequeue/pair-match protocol ported line-by-line from the
// original service's Flask blueprint, built over internal/tokenstore's
// WATCH/MULTI/EXEC primitive instead of redis-py pipelines.
package matchmaking

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/playmatatu/duelcore/internal/apierr"
	"github.com/playmatatu/duelcore/internal/clients"
	"github.com/playmatatu/duelcore/internal/tokenstore"
)

const (
	waitingTTL = 3600 * time.Second
	matchedTTL = 600 * time.Second

	statusFull = "full"
)

// TooLateError is returned by Dequeue when the token was already matched
// before the dequeue request landed; it carries the match details the
// caller missed.
type TooLateError struct {
	MatchID    int64
	OpponentID int64
	QueueToken string
}

func (e *TooLateError) Error() string { return "match already found" }

// EnqueueResult is the response to a successful (or idempotent) Enqueue.
type EnqueueResult struct {
	Status     tokenstore.Status
	QueueToken string
	MatchID    int64
	OpponentID int64
}

// Coordinator implements the Token Store protocols: Enqueue, Status,
// Dequeue, and the Pair-Match / Safely-Requeue machinery they share.
type Coordinator struct {
	store      tokenstore.Store
	gameEngine clients.GameEngineClient
	players    clients.PlayersClient
	logger     *zap.Logger

	maxQueueSize int
	queueKey     string
	activeKey    string
}

// NewCoordinator wires the Token Store and the two external collaborators
// the coordinator calls out to.
func NewCoordinator(store tokenstore.Store, gameEngine clients.GameEngineClient, players clients.PlayersClient, maxQueueSize int, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:        store,
		gameEngine:   gameEngine,
		players:      players,
		logger:       logger,
		maxQueueSize: maxQueueSize,
		queueKey:     "matchmaking:queue",
		activeKey:    "matchmaking:active_pointers",
	}
}

func (c *Coordinator) tokenKey(token string) string {
	return "matchmaking:token:" + token
}

// Enqueue validates the caller's profile, then atomically joins the
// queue or returns their existing Waiting token (idempotent), or pairs
// them immediately if someone was already waiting.
func (c *Coordinator) Enqueue(ctx context.Context, userID int64) (*EnqueueResult, error) {
	if !c.players.ValidateProfile(ctx, userID) {
		return nil, apierr.NewPermission("PROFILE_REQUIRED", "profile required")
	}

	status, matchedPlayers, token, playerTokens, err := c.enqueueAtomic(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status == statusFull {
		return nil, apierr.NewConflict("QUEUE_FULL", "queue is full")
	}

	if status != tokenstore.StatusMatched {
		return &EnqueueResult{Status: tokenstore.StatusWaiting, QueueToken: token}, nil
	}

	matchID, createErr := c.gameEngine.CreateMatch(ctx, matchedPlayers[0], matchedPlayers[1])
	if createErr != nil {
		c.logger.Warn("game engine unavailable during pair-match, requeuing both players",
			zap.Error(createErr), zap.Int64("player1_id", matchedPlayers[0]), zap.Int64("player2_id", matchedPlayers[1]))
		c.revertMatchFailure(ctx, matchedPlayers, playerTokens)
		return &EnqueueResult{Status: tokenstore.StatusWaiting, QueueToken: token}, nil
	}

	opponentOf := map[int64]int64{
		matchedPlayers[0]: matchedPlayers[1],
		matchedPlayers[1]: matchedPlayers[0],
	}
	_, callerPaired := opponentOf[userID]
	for _, pid := range matchedPlayers {
		matchedPayload := tokenstore.Payload{
			Status:     tokenstore.StatusMatched,
			QueueToken: playerTokens[pid],
			MatchID:    matchID,
			OpponentID: opponentOf[pid],
		}
		raw, _ := json.Marshal(matchedPayload)
		if err := c.store.Set(ctx, c.tokenKey(playerTokens[pid]), string(raw), matchedTTL); err != nil {
			c.logger.Error("failed to persist matched token payload", zap.Error(err), zap.Int64("player_id", pid))
		}
		if err := c.store.HDel(ctx, c.activeKey, strconv.FormatInt(pid, 10)); err != nil {
			c.logger.Error("failed to clear active pointer after match", zap.Error(err), zap.Int64("player_id", pid))
		}
	}

	if !callerPaired {
		// The pop took two earlier entries; the caller is still waiting.
		return &EnqueueResult{Status: tokenstore.StatusWaiting, QueueToken: token}, nil
	}
	return &EnqueueResult{
		Status:     tokenstore.StatusMatched,
		QueueToken: token,
		MatchID:    matchID,
		OpponentID: opponentOf[userID],
	}, nil
}

// Status returns the caller's token payload verbatim, matching what
// /status has always returned: the stored Waiting or Matched document.
func (c *Coordinator) Status(ctx context.Context, token string) (*tokenstore.Payload, error) {
	raw, ok, err := c.store.Get(ctx, c.tokenKey(token))
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	if !ok {
		return nil, apierr.NewNotFound("INVALID_TOKEN", "invalid token")
	}
	var payload tokenstore.Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, apierr.NewNotFound("INVALID_TOKEN", "invalid token")
	}
	return &payload, nil
}

// Dequeue removes the caller's Waiting entry, or reports TooLate if they
// were matched before the request landed.
func (c *Coordinator) Dequeue(ctx context.Context, userID int64, token string) error {
	result, err := c.dequeueAtomic(ctx, userID, token)
	if err != nil {
		return err
	}

	switch result {
	case "invalid_token":
		return apierr.NewNotFound("INVALID_TOKEN", "invalid token")
	case "too_late":
		raw, ok, _ := c.store.Get(ctx, c.tokenKey(token))
		tooLate := &TooLateError{QueueToken: token}
		if ok {
			var payload tokenstore.Payload
			if json.Unmarshal([]byte(raw), &payload) == nil {
				tooLate.MatchID = payload.MatchID
				tooLate.OpponentID = payload.OpponentID
			}
		}
		return tooLate
	default:
		return nil
	}
}

// enqueueAtomic is _enqueue_atomic: a single WATCH'd transaction over the
// queue and active-pointer keys that either returns an existing Waiting
// token, rejects on a full queue, or joins the queue and, if that join
// completes a pair, pops both members out in the same commit.
func (c *Coordinator) enqueueAtomic(ctx context.Context, userID int64) (status tokenstore.Status, matchedPlayers []int64, newToken string, playerTokens map[int64]string, err error) {
	userKey := strconv.FormatInt(userID, 10)

	err = c.store.RunTx(ctx, []string{c.queueKey, c.activeKey}, func(tx tokenstore.Tx) error {
		existingToken, hasExisting, herr := tx.HGet(ctx, c.activeKey, userKey)
		if herr != nil {
			return herr
		}
		if hasExisting {
			raw, ok, gerr := tx.Get(ctx, c.tokenKey(existingToken))
			if gerr != nil {
				return gerr
			}
			if ok {
				var payload tokenstore.Payload
				if json.Unmarshal([]byte(raw), &payload) == nil && payload.Status == tokenstore.StatusWaiting {
					status, newToken = tokenstore.StatusWaiting, existingToken
					return nil
				}
			}
		}

		queueLen, zerr := tx.ZCard(ctx, c.queueKey)
		if zerr != nil {
			return zerr
		}
		if c.maxQueueSize > 0 && queueLen >= int64(c.maxQueueSize) {
			status = statusFull
			return nil
		}

		token := newQueueToken()
		now := nowScore()
		member := userKey + ":" + token
		shouldMatch := queueLen >= 1

		perr := tx.Pipe(func(p tokenstore.Pipe) {
			p.HSet(c.activeKey, userKey, token)
			p.ZAdd(c.queueKey, now, member)
			setTokenPayload(p, c.tokenKey(token), waitingPayload(token, now))
			if shouldMatch {
				p.ZPopMin(c.queueKey, 2)
			}
		})
		if perr != nil {
			return perr
		}
		newToken = token

		if !shouldMatch {
			status = tokenstore.StatusWaiting
			return nil
		}

		popped := tx.Popped()
		if len(popped) == 2 {
			p1ID, p1Token := parseMember(popped[0].Value)
			p2ID, p2Token := parseMember(popped[1].Value)
			matchedPlayers = []int64{p1ID, p2ID}
			playerTokens = map[int64]string{p1ID: p1Token, p2ID: p2Token}
			status = tokenstore.StatusMatched
			return nil
		}

		if len(popped) > 0 {
			c.requeuePoppedAtomic(ctx, popped)
			for _, m := range popped {
				if m.Value == member {
					status = tokenstore.StatusWaiting
					return nil
				}
			}
		}
		status = tokenstore.StatusWaiting
		return nil
	})
	return
}

// dequeueAtomic is _dequeue_atomic: remove the caller's queue entry and
// token iff the token is still Waiting, and only clear the active
// pointer if it still points at this token.
func (c *Coordinator) dequeueAtomic(ctx context.Context, userID int64, token string) (string, error) {
	userKey := strconv.FormatInt(userID, 10)
	tokenKey := c.tokenKey(token)

	var result string
	err := c.store.RunTx(ctx, []string{c.activeKey, tokenKey}, func(tx tokenstore.Tx) error {
		raw, ok, gerr := tx.Get(ctx, tokenKey)
		if gerr != nil {
			return gerr
		}
		if !ok {
			result = "invalid_token"
			return nil
		}
		var payload tokenstore.Payload
		if json.Unmarshal([]byte(raw), &payload) != nil {
			result = "invalid_token"
			return nil
		}
		if payload.Status == tokenstore.StatusMatched {
			result = "too_late"
			return nil
		}

		activeToken, hasActive, aerr := tx.HGet(ctx, c.activeKey, userKey)
		if aerr != nil {
			return aerr
		}

		member := userKey + ":" + token
		perr := tx.Pipe(func(p tokenstore.Pipe) {
			p.ZRem(c.queueKey, member)
			p.Del(tokenKey)
			if hasActive && activeToken == token {
				p.HDel(c.activeKey, userKey)
			}
		})
		if perr != nil {
			return perr
		}
		result = "removed"
		return nil
	})
	return result, err
}

// safelyRequeueUser is _safely_requeue_user: re-insert a popped or
// failed-match member at its original score, but only if their active
// pointer still names this token -- otherwise they cancelled or
// re-queued in the meantime and this entry is a zombie, dropped silently.
func (c *Coordinator) safelyRequeueUser(ctx context.Context, userID int64, token string, score float64) error {
	userKey := strconv.FormatInt(userID, 10)
	member := userKey + ":" + token

	return c.store.RunTx(ctx, []string{c.activeKey}, func(tx tokenstore.Tx) error {
		currentActive, ok, herr := tx.HGet(ctx, c.activeKey, userKey)
		if herr != nil {
			return herr
		}
		if !ok || currentActive != token {
			return nil
		}
		return tx.Pipe(func(p tokenstore.Pipe) {
			p.ZAdd(c.queueKey, score, member)
			setTokenPayload(p, c.tokenKey(token), waitingPayload(token, score))
		})
	})
}

// requeuePoppedAtomic is _requeue_popped_atomic: recover from a pop that
// yielded fewer than two distinct entries by putting each one back.
func (c *Coordinator) requeuePoppedAtomic(ctx context.Context, popped []tokenstore.Member) {
	for _, m := range popped {
		userID, token := parseMember(m.Value)
		if err := c.safelyRequeueUser(ctx, userID, token, m.Score); err != nil {
			c.logger.Warn("failed to requeue popped member", zap.Error(err), zap.String("member", m.Value))
		}
	}
}

// revertMatchFailure is _revert_match_failure: on a Game Engine failure,
// restore both players to the queue, recovering each one's original
// queued_at from their token payload so the failure doesn't cost them
// their place in line.
func (c *Coordinator) revertMatchFailure(ctx context.Context, playerIDs []int64, playerTokens map[int64]string) {
	for _, pid := range playerIDs {
		token := playerTokens[pid]
		score := nowScore()
		if raw, ok, err := c.store.Get(ctx, c.tokenKey(token)); err == nil && ok {
			var payload tokenstore.Payload
			if json.Unmarshal([]byte(raw), &payload) == nil && payload.QueuedAt > 0 {
				score = payload.QueuedAt
			}
		}
		if err := c.safelyRequeueUser(ctx, pid, token, score); err != nil {
			c.logger.Warn("failed to revert match failure", zap.Error(err), zap.Int64("player_id", pid))
		}
	}
}

func waitingPayload(token string, queuedAt float64) tokenstore.Payload {
	return tokenstore.Payload{
		Status:     tokenstore.StatusWaiting,
		QueueToken: token,
		QueuedAt:   queuedAt,
	}
}

func setTokenPayload(p tokenstore.Pipe, key string, payload tokenstore.Payload) {
	raw, _ := json.Marshal(payload)
	ttl := waitingTTL
	if payload.Status == tokenstore.StatusMatched {
		ttl = matchedTTL
	}
	p.Set(key, string(raw), ttl)
}

func newQueueToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func nowScore() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

func parseMember(member string) (userID int64, token string) {
	parts := strings.SplitN(member, ":", 2)
	if len(parts) != 2 {
		return 0, ""
	}
	id, _ := strconv.ParseInt(parts[0], 10, 64)
	return id, parts[1]
}
