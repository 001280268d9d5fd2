package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore shares the cache between gateway replicas. Redis TTLs play the
// role of the GC timeout. Namespace epochs live in Redis as well, so a write
// on one replica discards fetches in flight on every other.
type RedisStore struct {
	rdb       *redis.Client
	keyPrefix string
	gcTime    time.Duration
}

func NewRedisStore(rdb *redis.Client, keyPrefix string, gcTime time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, keyPrefix: keyPrefix, gcTime: gcTime}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	b, err := s.rdb.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return e, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, s.keyPrefix+key, b, s.gcTime).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) epochKey(ns string) string {
	return s.keyPrefix + "~epoch:" + ns
}

func (s *RedisStore) Epoch(ctx context.Context, ns string) (uint64, error) {
	v, err := s.rdb.Get(ctx, s.epochKey(ns)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis epoch %s: %w", ns, err)
	}
	return v, nil
}

func (s *RedisStore) BumpEpoch(ctx context.Context, ns string) error {
	key := s.epochKey(ns)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, key)
		p.Expire(ctx, key, epochRetention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis bump epoch %s: %w", ns, err)
	}
	return nil
}

// KEYS[1] epoch, KEYS[2] entry; ARGV epoch, payload, ttl in ms (0 = none).
var setIfEpochScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1]) or '0'
if cur ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

func (s *RedisStore) SetIfEpoch(ctx context.Context, key, ns string, epoch uint64, e Entry) (bool, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	ttl := s.gcTime.Milliseconds()
	if s.gcTime > 0 && ttl == 0 {
		ttl = 1
	}
	n, err := setIfEpochScript.Run(ctx, s.rdb,
		[]string{s.epochKey(ns), s.keyPrefix + key},
		strconv.FormatUint(epoch, 10), b, ttl,
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.keyPrefix + k
	}
	if err := s.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.keyPrefix+prefix) + "*"

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, s.keyPrefix))
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
