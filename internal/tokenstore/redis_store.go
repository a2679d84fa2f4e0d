package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against a real Redis server, grounded on
// the teacher's internal/redis.Connect client and go-redis's native
// Watch/TxPipelined optimistic-locking support.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	return getResult(s.client.Get(ctx, key))
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	return getResult(s.client.HGet(ctx, key, field))
}

func (s *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	return s.client.HSet(ctx, key, field, value).Err()
}

func (s *RedisStore) HDel(ctx context.Context, key, field string) error {
	return s.client.HDel(ctx, key, field).Err()
}

func (s *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

func (s *RedisStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	v, err := s.client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *RedisStore) ZPopMin(ctx context.Context, key string, count int64) ([]Member, error) {
	zs, err := s.client.ZPopMin(ctx, key, count).Result()
	if err != nil {
		return nil, err
	}
	return toMembers(zs), nil
}

func (s *RedisStore) ZRem(ctx context.Context, key, member string) error {
	return s.client.ZRem(ctx, key, member).Err()
}

func (s *RedisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.ZRange(ctx, key, start, stop).Result()
}

func (s *RedisStore) RunTx(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	for {
		rtx := &redisTx{ctx: ctx}
		txFn := func(t *redis.Tx) error {
			rtx.tx = t
			return fn(rtx)
		}
		err := s.client.Watch(ctx, txFn, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
}

func getResult(cmd *redis.StringCmd) (string, bool, error) {
	v, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func toMembers(zs []redis.Z) []Member {
	out := make([]Member, len(zs))
	for i, z := range zs {
		out[i] = Member{Value: z.Member.(string), Score: z.Score}
	}
	return out
}

// redisTx implements Tx over a single WATCH'd *redis.Tx.
type redisTx struct {
	ctx    context.Context
	tx     *redis.Tx
	popped []Member
}

func (t *redisTx) Get(ctx context.Context, key string) (string, bool, error) {
	return getResult(t.tx.Get(ctx, key))
}

func (t *redisTx) HGet(ctx context.Context, key, field string) (string, bool, error) {
	return getResult(t.tx.HGet(ctx, key, field))
}

func (t *redisTx) ZCard(ctx context.Context, key string) (int64, error) {
	return t.tx.ZCard(ctx, key).Result()
}

func (t *redisTx) Pipe(fn func(p Pipe)) error {
	var popCmd *redis.ZSliceCmd
	_, err := t.tx.TxPipelined(t.ctx, func(pipe redis.Pipeliner) error {
		p := &redisPipe{pipe: pipe, ctx: t.ctx}
		fn(p)
		popCmd = p.popCmd
		return nil
	})
	if err != nil {
		return err
	}
	if popCmd != nil {
		zs, zerr := popCmd.Result()
		if zerr != nil && !errors.Is(zerr, redis.Nil) {
			return zerr
		}
		t.popped = toMembers(zs)
	}
	return nil
}

func (t *redisTx) Popped() []Member { return t.popped }

// redisPipe queues writes for a single TxPipelined batch.
type redisPipe struct {
	pipe   redis.Pipeliner
	ctx    context.Context
	popCmd *redis.ZSliceCmd
}

func (p *redisPipe) Set(key, value string, ttl time.Duration) {
	p.pipe.Set(p.ctx, key, value, ttl)
}

func (p *redisPipe) Del(key string) {
	p.pipe.Del(p.ctx, key)
}

func (p *redisPipe) HSet(key, field, value string) {
	p.pipe.HSet(p.ctx, key, field, value)
}

func (p *redisPipe) HDel(key, field string) {
	p.pipe.HDel(p.ctx, key, field)
}

func (p *redisPipe) ZAdd(key string, score float64, member string) {
	p.pipe.ZAdd(p.ctx, key, redis.Z{Score: score, Member: member})
}

func (p *redisPipe) ZRem(key, member string) {
	p.pipe.ZRem(p.ctx, key, member)
}

func (p *redisPipe) ZPopMin(key string, count int64) {
	p.popCmd = p.pipe.ZPopMin(p.ctx, key, count)
}
