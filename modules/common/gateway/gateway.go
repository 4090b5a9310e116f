package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"promo-studio-server/modules/common/config"
)

var (
	ErrNoImage       = errors.New("no image in AI response")
	ErrEmptyResponse = errors.New("empty AI response")
)

// Backend - 멀티모달 AI 백엔드 (OpenAI 호환 게이트웨이 / Gemini 직접 호출)
type Backend interface {
	// GenerateImage - 프롬프트 + 입력 이미지로 새 이미지를 만들고 data URI 로 반환
	GenerateImage(ctx context.Context, prompt, imageURL string) (string, error)
	// DescribeImage - 이미지에 대한 텍스트 응답 반환
	DescribeImage(ctx context.Context, prompt, imageURL string) (string, error)
}

// StatusError - AI 백엔드가 2xx 가 아닌 상태를 반환
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("AI gateway returned status %d: %s", e.StatusCode, e.Body)
}

// StatusOf - 에러에서 HTTP 상태 추출, 알 수 없으면 502
func StatusOf(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode > 0 {
		return statusErr.StatusCode
	}
	return http.StatusBadGateway
}

// New - AI_PROVIDER 에 맞는 Backend 생성
func New(ctx context.Context, cfg *config.Config) (Backend, error) {
	retry := RetryPolicy{Attempts: cfg.AIRetryAttempts, Delay: 2 * time.Second}
	httpClient := &http.Client{Timeout: cfg.AITimeout}

	switch cfg.AIProvider {
	case config.ProviderGemini:
		log.Info().Msgf("🤖 [Gateway] Using Gemini API directly (image: %s, text: %s)", cfg.GeminiImageModel, cfg.GeminiTextModel)
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiImageModel, cfg.GeminiTextModel, httpClient, retry)
	default:
		log.Info().Msgf("🤖 [Gateway] Using AI gateway %s (image: %s, caption: %s)", cfg.AIGatewayURL, cfg.ImageModel, cfg.CaptionModel)
		return NewClient(cfg.AIGatewayURL, cfg.AIGatewayAPIKey, cfg.ImageModel, cfg.CaptionModel, httpClient, retry), nil
	}
}
