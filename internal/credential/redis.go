package credential

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisKey is the well-known key holding the credential record.
const DefaultRedisKey = "admin_console:credential"

const redisOpTimeout = 2 * time.Second

// RedisStore keeps the credential in Redis so several console processes on a
// shared host see the same session. The Redis TTL mirrors the expiry but Get
// still compares against the wall clock.
type RedisStore struct {
	client   *redis.Client
	key      string
	now      func() time.Time
	logger   *zap.Logger
	fallback *fallback
}

// NewRedisStore returns a Redis-backed store. A nil client starts degraded.
func NewRedisStore(client *redis.Client, key string, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	if key == "" {
		key = DefaultRedisKey
	}
	s := &RedisStore{
		client:   client,
		key:      key,
		now:      o.now,
		logger:   o.logger,
		fallback: newFallback("redis", o),
	}
	if client == nil {
		s.fallback.degrade("open", errors.New("redis client not configured"))
	}
	return s
}

// Set implements Store.
func (s *RedisStore) Set(token string, lifetime float64) {
	now := s.now()
	rec, ok := newRecord(token, lifetime, now)
	if !ok {
		s.Clear()
		return
	}
	s.fallback.memory.put(rec)
	if s.fallback.active() {
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		s.fallback.degrade("marshal", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := s.client.Set(ctx, s.key, data, rec.ExpiresAt.Sub(now)).Err(); err != nil {
		s.fallback.degrade("write", err)
	}
}

// Get implements Store.
func (s *RedisStore) Get() (string, bool) {
	if s.fallback.active() {
		return s.fallback.memory.Get()
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false
		}
		s.fallback.degrade("read", err)
		return s.fallback.memory.Get()
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Debug("ignoring malformed credential record", zap.String("key", s.key), zap.Error(err))
		return "", false
	}
	if !rec.Live(s.now()) {
		return "", false
	}
	return rec.Token, true
}

// Clear implements Store.
func (s *RedisStore) Clear() {
	s.fallback.memory.Clear()
	if s.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		s.fallback.degrade("clear", err)
	}
}
