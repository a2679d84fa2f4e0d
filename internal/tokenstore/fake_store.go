package tokenstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// FakeStore is an in-memory Store for unit tests: no TTL expiry, a
// version counter per key standing in for Redis's WATCH generation so
// RunTx's conflict-retry contract holds the same way it does against
// RedisStore.
type FakeStore struct {
	mu       sync.Mutex
	strings  map[string]string
	hashes   map[string]map[string]string
	zsets    map[string]map[string]float64
	versions map[string]uint64
}

// NewFakeStore returns an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		strings:  make(map[string]string),
		hashes:   make(map[string]map[string]string),
		zsets:    make(map[string]map[string]float64),
		versions: make(map[string]uint64),
	}
}

func (s *FakeStore) bumpLocked(key string) { s.versions[key]++ }

func (s *FakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.strings[key]
	return v, ok, nil
}

func (s *FakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
	return nil
}

func (s *FakeStore) setLocked(key, value string) {
	s.strings[key] = value
	s.bumpLocked(key)
}

func (s *FakeStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delLocked(key)
	return nil
}

func (s *FakeStore) delLocked(key string) {
	delete(s.strings, key)
	s.bumpLocked(key)
}

func (s *FakeStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (s *FakeStore) HSet(ctx context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hsetLocked(key, field, value)
	return nil
}

func (s *FakeStore) hsetLocked(key, field, value string) {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	h[field] = value
	s.bumpLocked(key)
}

func (s *FakeStore) HDel(ctx context.Context, key, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hdelLocked(key, field)
	return nil
}

func (s *FakeStore) hdelLocked(key, field string) {
	if h, ok := s.hashes[key]; ok {
		delete(h, field)
	}
	s.bumpLocked(key)
}

func (s *FakeStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zaddLocked(key, score, member)
	return nil
}

func (s *FakeStore) zaddLocked(key string, score float64, member string) {
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64)
		s.zsets[key] = z
	}
	z[member] = score
	s.bumpLocked(key)
}

func (s *FakeStore) ZCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.zsets[key])), nil
}

func (s *FakeStore) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zsets[key]
	if !ok {
		return 0, false, nil
	}
	v, ok := z[member]
	return v, ok, nil
}

func (s *FakeStore) ZPopMin(ctx context.Context, key string, count int64) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zPopMinLocked(key, count), nil
}

func (s *FakeStore) zPopMinLocked(key string, count int64) []Member {
	z := s.zsets[key]
	members := sortedMembers(z)
	if int64(len(members)) > count {
		members = members[:count]
	}
	for _, m := range members {
		delete(z, m.Value)
	}
	s.bumpLocked(key)
	return members
}

func sortedMembers(z map[string]float64) []Member {
	out := make([]Member, 0, len(z))
	for member, score := range z {
		out = append(out, Member{Value: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Value < out[j].Value
		}
		return out[i].Score < out[j].Score
	})
	return out
}

func (s *FakeStore) ZRem(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zremLocked(key, member)
	return nil
}

func (s *FakeStore) zremLocked(key, member string) {
	if z, ok := s.zsets[key]; ok {
		delete(z, member)
	}
	s.bumpLocked(key)
}

func (s *FakeStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := sortedMembers(s.zsets[key])
	n := int64(len(members))
	if n == 0 {
		return nil, nil
	}
	start, stop = normalizeRange(start, stop, n)
	if start > stop {
		return nil, nil
	}
	out := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, members[i].Value)
	}
	return out, nil
}

func normalizeRange(start, stop, n int64) (int64, int64) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}

// RunTx snapshots the version of every watched key, runs fn, and commits
// fn's queued pipe only if none of those versions moved in the meantime.
// fn is expected to surface ErrConflict from a failed Pipe call as its own
// return value; RunTx retries in that case exactly like RedisStore does
// on redis.TxFailedErr.
func (s *FakeStore) RunTx(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	for {
		t := &fakeTx{store: s, watched: keys, snapshot: s.snapshot(keys)}
		err := fn(t)
		if err == ErrConflict {
			continue
		}
		return err
	}
}

func (s *FakeStore) snapshot(keys []string) map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string]uint64, len(keys))
	for _, k := range keys {
		snap[k] = s.versions[k]
	}
	return snap
}

// fakeTx implements Tx over a FakeStore; its reads go straight to the
// store (always current), and Pipe checks the watched snapshot before
// applying its queued writes.
type fakeTx struct {
	store    *FakeStore
	watched  []string
	snapshot map[string]uint64
	popped   []Member
}

func (t *fakeTx) Get(ctx context.Context, key string) (string, bool, error) {
	return t.store.Get(ctx, key)
}

func (t *fakeTx) HGet(ctx context.Context, key, field string) (string, bool, error) {
	return t.store.HGet(ctx, key, field)
}

func (t *fakeTx) ZCard(ctx context.Context, key string) (int64, error) {
	return t.store.ZCard(ctx, key)
}

func (t *fakeTx) Pipe(fn func(p Pipe)) error {
	p := &fakePipe{}
	fn(p)

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, k := range t.watched {
		if t.store.versions[k] != t.snapshot[k] {
			return ErrConflict
		}
	}
	for _, op := range p.ops {
		op(t.store)
	}
	t.popped = p.popped
	return nil
}

func (t *fakeTx) Popped() []Member { return t.popped }

// fakePipe records queued writes as closures over *FakeStore's Locked
// helpers, applied only once fakeTx.Pipe confirms no watched key moved.
type fakePipe struct {
	ops    []func(*FakeStore)
	popped []Member
}

func (p *fakePipe) Set(key, value string, ttl time.Duration) {
	p.ops = append(p.ops, func(s *FakeStore) { s.setLocked(key, value) })
}

func (p *fakePipe) Del(key string) {
	p.ops = append(p.ops, func(s *FakeStore) { s.delLocked(key) })
}

func (p *fakePipe) HSet(key, field, value string) {
	p.ops = append(p.ops, func(s *FakeStore) { s.hsetLocked(key, field, value) })
}

func (p *fakePipe) HDel(key, field string) {
	p.ops = append(p.ops, func(s *FakeStore) { s.hdelLocked(key, field) })
}

func (p *fakePipe) ZAdd(key string, score float64, member string) {
	p.ops = append(p.ops, func(s *FakeStore) { s.zaddLocked(key, score, member) })
}

func (p *fakePipe) ZRem(key, member string) {
	p.ops = append(p.ops, func(s *FakeStore) { s.zremLocked(key, member) })
}

func (p *fakePipe) ZPopMin(key string, count int64) {
	p.ops = append(p.ops, func(s *FakeStore) { p.popped = s.zPopMinLocked(key, count) })
}
