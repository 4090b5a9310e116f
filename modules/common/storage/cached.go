package storage

import (
	"context"
	"fmt"
	"time"
)

// URLCache - 서명 URL 캐시 (cache.Cache 가 구현)
type URLCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// CachedStore - SignedURL 결과를 캐시하는 Store 데코레이터
type CachedStore struct {
	Store
	cache  URLCache
	maxTTL time.Duration
}

// WithSignedURLCache - cache 가 nil 이면 원본 Store 그대로 반환
func WithSignedURLCache(store Store, cache URLCache, maxTTL time.Duration) Store {
	if cache == nil || maxTTL <= 0 {
		return store
	}
	return &CachedStore{Store: store, cache: cache, maxTTL: maxTTL}
}

func (c *CachedStore) SignedURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	key := fmt.Sprintf("signed:%s:%s:%d", bucket, objectPath, int64(ttl.Seconds()))
	if cached, ok := c.cache.Get(ctx, key); ok {
		return cached, nil
	}

	signed, err := c.Store.SignedURL(ctx, bucket, objectPath, ttl)
	if err != nil {
		return "", err
	}

	// 만료 직전의 URL 을 돌려주지 않도록 서명 TTL 의 90% 까지만 보관
	cacheTTL := ttl - ttl/10
	if cacheTTL > c.maxTTL {
		cacheTTL = c.maxTTL
	}
	if cacheTTL > 0 {
		c.cache.Set(ctx, key, signed, cacheTTL)
	}
	return signed, nil
}
