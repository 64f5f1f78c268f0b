package storage

import (
	"context"
	"matchchat/backend/internal/apperr"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNil is returned when a key or hash field does not exist.
var ErrNil = errors.New("storage: key not found")

// NoExpiry is the TTL reported for a key that exists without an expiry.
const NoExpiry = time.Duration(-1)

// KeyValueStore is the subset of key-value primitives the chat pipeline is
// built on. Every method is a single atomic command at the store level,
// except Atomic which wraps several writes in MULTI/EXEC.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, ttl time.Duration, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)

	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HMGet(ctx context.Context, key string, fields ...string) ([]*string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	ZScore(ctx context.Context, key, member string) (float64, error)
	ZCard(ctx context.Context, key string) (int64, error)

	Scan(ctx context.Context, pattern string, fn func(key string) error) error
	RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error)
	Publish(ctx context.Context, channel string, payload []byte) error
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx queues writes inside Atomic. Errors surface from Atomic.
type Tx interface {
	Set(key, value string, ttl time.Duration)
	HSet(key, field, value string)
	HDel(key string, fields ...string)
	ZAdd(key string, score float64, member string)
	Expire(ttl time.Duration, keys ...string)
	Del(keys ...string)
}

// RedisStore implements KeyValueStore on go-redis.
type RedisStore struct {
	Client    *redis.Client
	ScanCount int64
}

// NewRedisStore Constructor
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{Client: rdb, ScanCount: 100}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNil
	}
	return apperr.Transient(op, err)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.Client.Get(ctx, key).Result()
	return v, wrap("redis.Get", err)
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return wrap("redis.Set", s.Client.Set(ctx, key, value, ttl).Err())
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.Client.SetNX(ctx, key, value, ttl).Result()
	return ok, wrap("redis.SetNX", err)
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.Client.Del(ctx, keys...).Result()
	return n, wrap("redis.Del", err)
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.Client.Exists(ctx, key).Result()
	return n > 0, wrap("redis.Exists", err)
}

// TTL returns ErrNil for a missing key and NoExpiry for a persistent one.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.Client.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrap("redis.TTL", err)
	}
	switch d {
	case -2:
		return 0, ErrNil
	case -1:
		return NoExpiry, nil
	}
	return d, nil
}

func (s *RedisStore) Expire(ctx context.Context, ttl time.Duration, keys ...string) error {
	_, err := s.Client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Expire(ctx, k, ttl)
		}
		return nil
	})
	return wrap("redis.Expire", err)
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.Client.Incr(ctx, key).Result()
	return n, wrap("redis.Incr", err)
}

func (s *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	return wrap("redis.HSet", s.Client.HSet(ctx, key, field, value).Err())
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := s.Client.HGet(ctx, key, field).Result()
	return v, wrap("redis.HGet", err)
}

// HMGet returns one entry per field, nil where the field is absent.
func (s *RedisStore) HMGet(ctx context.Context, key string, fields ...string) ([]*string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	vals, err := s.Client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, wrap("redis.HMGet", err)
	}
	out := make([]*string, len(vals))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[i] = &str
		}
	}
	return out, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.Client.HGetAll(ctx, key).Result()
	return m, wrap("redis.HGetAll", err)
}

func (s *RedisStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return wrap("redis.HDel", s.Client.HDel(ctx, key, fields...).Err())
}

func (s *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return wrap("redis.ZAdd", s.Client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err())
}

func (s *RedisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	v, err := s.Client.ZRange(ctx, key, start, stop).Result()
	return v, wrap("redis.ZRange", err)
}

func (s *RedisStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	v, err := s.Client.ZRevRange(ctx, key, start, stop).Result()
	return v, wrap("redis.ZRevRange", err)
}

func (s *RedisStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	v, err := s.Client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	return v, wrap("redis.ZRangeByScore", err)
}

func (s *RedisStore) ZScore(ctx context.Context, key, member string) (float64, error) {
	v, err := s.Client.ZScore(ctx, key, member).Result()
	return v, wrap("redis.ZScore", err)
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := s.Client.ZCard(ctx, key).Result()
	return n, wrap("redis.ZCard", err)
}

// Scan walks every key matching pattern. fn errors stop the walk.
func (s *RedisStore) Scan(ctx context.Context, pattern string, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.Client.Scan(ctx, cursor, pattern, s.ScanCount).Result()
		if err != nil {
			return wrap("redis.Scan", err)
		}
		for _, k := range keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RedisStore) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	v, err := script.Run(ctx, s.Client, keys, args...).Result()
	return v, wrap("redis.Eval", err)
}

func (s *RedisStore) Publish(ctx context.Context, channel string, payload []byte) error {
	return wrap("redis.Publish", s.Client.Publish(ctx, channel, payload).Err())
}

// Atomic runs the queued writes in a single MULTI/EXEC.
func (s *RedisStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	_, err := s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		return fn(&pipeTx{ctx: ctx, p: p})
	})
	return wrap("redis.Multi", err)
}

type pipeTx struct {
	ctx context.Context
	p   redis.Pipeliner
}

func (t *pipeTx) Set(key, value string, ttl time.Duration) { t.p.Set(t.ctx, key, value, ttl) }
func (t *pipeTx) HSet(key, field, value string)            { t.p.HSet(t.ctx, key, field, value) }

func (t *pipeTx) HDel(key string, fields ...string) {
	if len(fields) > 0 {
		t.p.HDel(t.ctx, key, fields...)
	}
}

func (t *pipeTx) Del(keys ...string) {
	if len(keys) > 0 {
		t.p.Del(t.ctx, keys...)
	}
}

func (t *pipeTx) ZAdd(key string, score float64, member string) {
	t.p.ZAdd(t.ctx, key, redis.Z{Score: score, Member: member})
}

func (t *pipeTx) Expire(ttl time.Duration, keys ...string) {
	for _, k := range keys {
		t.p.Expire(t.ctx, k, ttl)
	}
}
