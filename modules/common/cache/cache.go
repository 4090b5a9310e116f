package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "promo-studio:"

// Cache - 문자열 key/value 캐시, 실패는 miss 로 취급
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// New - rdb 가 nil 이면 Noop 캐시
func New(rdb *redis.Client) Cache {
	if rdb == nil {
		return Noop{}
	}
	return &RedisCache{rdb: rdb}
}

type RedisCache struct {
	rdb *redis.Client
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.rdb.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("⚠️  [Cache] Redis GET failed")
		return "", false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("⚠️  [Cache] Redis SET failed")
	}
}

// Noop - 캐시 비활성화 시 사용
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) (string, bool)             { return "", false }
func (Noop) Set(ctx context.Context, key, value string, ttl time.Duration) {}
