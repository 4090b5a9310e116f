package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy - 429 (rate limit) 시 같은 요청 재시도 설정
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// withRetry - rate limit 에러면 Delay 후 재시도, 그 외 에러는 즉시 반환
func withRetry[T any](ctx context.Context, policy RetryPolicy, op string, fn func() (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().Msgf("✅ [Gateway] %s succeeded on attempt %d/%d", op, attempt, attempts)
			}
			return result, nil
		}
		lastErr = err

		if !isRateLimited(err) {
			return zero, err
		}

		log.Warn().Msgf("⚠️  [Gateway] %s hit rate limit (429) on attempt %d/%d", op, attempt, attempts)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(policy.Delay):
		}
	}
	return zero, lastErr
}

// isRateLimited - 429 Rate Limit 에러인지 확인
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if StatusOf(err) == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource_exhausted")
}
