// Package tokenstore is the Token Store: the Matchmaking Coordinator's
// Redis-backed bookkeeping for queue membership, active pointers, and
// per-token status payloads, plus the optimistic-concurrency primitive
// (WATCH/MULTI/EXEC) every atomic protocol in internal/matchmaking is
// built on.
package tokenstore

import (
	"context"
	"errors"
	"time"
)

// Status is a token's position in the matchmaking lifecycle.
type Status string

const (
	StatusWaiting Status = "Waiting"
	StatusMatched Status = "Matched"
)

// Payload is the JSON document stored at a token's key. Waiting tokens
// carry QueuedAt; Matched tokens carry MatchID/OpponentID. Both shapes
// share one struct, the way the original service stored either dict at
// the same key.
type Payload struct {
	Status     Status  `json:"status"`
	QueueToken string  `json:"queue_token"`
	QueuedAt   float64 `json:"queued_at,omitempty"`
	MatchID    int64   `json:"match_id,omitempty"`
	OpponentID int64   `json:"opponent_id,omitempty"`
}

// Member is one entry of a sorted-set read (ZPopMin, ZRange-with-scores).
type Member struct {
	Value string
	Score float64
}

// ErrConflict is returned from a RunTx callback's Pipe call when a
// watched key changed between the watch and the commit attempt. RunTx
// retries automatically on this error; callers should just propagate it.
var ErrConflict = errors.New("tokenstore: watched key changed, retry")

// Store is the full set of primitives the Matchmaking Coordinator needs
// against Redis. RedisStore and FakeStore both implement it.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error

	HGet(ctx context.Context, key, field string) (string, bool, error)
	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key, field string) error

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
	ZPopMin(ctx context.Context, key string, count int64) ([]Member, error)
	ZRem(ctx context.Context, key, member string) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// RunTx watches keys, then runs fn. fn must read through tx (so reads
	// are part of the watched transaction) and queue its writes via a
	// single tx.Pipe call; RunTx retries fn with a fresh watch whenever a
	// watched key changed before the pipe committed.
	RunTx(ctx context.Context, keys []string, fn func(tx Tx) error) error
}

// Tx is the read/write surface available inside a RunTx callback.
type Tx interface {
	Get(ctx context.Context, key string) (string, bool, error)
	HGet(ctx context.Context, key, field string) (string, bool, error)
	ZCard(ctx context.Context, key string) (int64, error)

	// Pipe queues writes via fn and commits them atomically. Returns
	// ErrConflict (or redis.TxFailedErr, on the Redis backend) if a
	// watched key changed first; call at most once per RunTx invocation.
	Pipe(fn func(p Pipe)) error
	// Popped returns the members removed by a ZPopMin queued in the last
	// successful Pipe call, if any.
	Popped() []Member
}

// Pipe queues one batch of writes to commit atomically.
type Pipe interface {
	Set(key, value string, ttl time.Duration)
	Del(key string)
	HSet(key, field, value string)
	HDel(key, field string)
	ZAdd(key string, score float64, member string)
	ZRem(key, member string)
	ZPopMin(key string, count int64)
}
