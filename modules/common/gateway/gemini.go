package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"promo-studio-server/modules/common/utils"
)

// maxSourceImageBytes - 원격 입력 이미지 다운로드 상한 (20MB)
const maxSourceImageBytes = 20 << 20

// GeminiClient - Gemini API 직접 호출 Backend
type GeminiClient struct {
	client     *genai.Client
	httpClient *http.Client
	imageModel string
	textModel  string
	retry      RetryPolicy
}

var _ Backend = (*GeminiClient)(nil)

// NewGeminiClient - API 키로 Gemini 클라이언트 생성
func NewGeminiClient(ctx context.Context, apiKey, imageModel, textModel string, httpClient *http.Client, retry RetryPolicy) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiClient{
		client:     client,
		httpClient: httpClient,
		imageModel: imageModel,
		textModel:  textModel,
		retry:      retry,
	}, nil
}

// Close - 내부 genai 클라이언트 정리
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// GenerateImage - Gemini 이미지 모델 호출 후 첫 이미지 Blob 을 data URI 로 반환
func (g *GeminiClient) GenerateImage(ctx context.Context, prompt, imageURL string) (string, error) {
	source, err := g.loadImage(ctx, imageURL)
	if err != nil {
		return "", err
	}

	model := g.client.GenerativeModel(g.imageModel)

	return withRetry(ctx, g.retry, "image generation", func() (string, error) {
		log.Info().Str("model", g.imageModel).Msg("🎨 [Gemini] Requesting image generation")
		resp, err := model.GenerateContent(ctx, genai.Text(prompt), source)
		if err != nil {
			return "", toGeminiStatusError(err)
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
					return utils.EncodeDataURI(blob.MIMEType, blob.Data), nil
				}
			}
		}
		return "", ErrNoImage
	})
}

// DescribeImage - Gemini 텍스트 모델로 이미지 설명 (JSON 응답 강제)
func (g *GeminiClient) DescribeImage(ctx context.Context, prompt, imageURL string) (string, error) {
	source, err := g.loadImage(ctx, imageURL)
	if err != nil {
		return "", err
	}

	model := g.client.GenerativeModel(g.textModel)
	model.ResponseMIMEType = "application/json"

	return withRetry(ctx, g.retry, "caption generation", func() (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt), source)
		if err != nil {
			return "", toGeminiStatusError(err)
		}

		var sb strings.Builder
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					sb.WriteString(string(text))
				}
			}
			if sb.Len() > 0 {
				break
			}
		}
		if sb.Len() == 0 {
			return "", ErrEmptyResponse
		}
		return sb.String(), nil
	})
}

// loadImage - data URI 는 디코딩, http(s) URL 은 다운로드해서 Blob 으로 변환
func (g *GeminiClient) loadImage(ctx context.Context, imageURL string) (genai.Blob, error) {
	if strings.HasPrefix(imageURL, "data:") {
		mime, data, err := utils.DecodeDataURI(imageURL)
		if err != nil {
			return genai.Blob{}, fmt.Errorf("failed to decode source image: %w", err)
		}
		return genai.Blob{MIMEType: mime, Data: data}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return genai.Blob{}, fmt.Errorf("invalid source image URL: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return genai.Blob{}, fmt.Errorf("failed to download source image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return genai.Blob{}, fmt.Errorf("failed to download source image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceImageBytes))
	if err != nil {
		return genai.Blob{}, fmt.Errorf("failed to read source image: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = utils.DetectMimeType(data)
	}
	return genai.Blob{MIMEType: mime, Data: data}, nil
}

// toGeminiStatusError - googleapi 에러를 StatusError 로 정규화
func toGeminiStatusError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code > 0 {
		return &StatusError{StatusCode: gErr.Code, Body: gErr.Message}
	}
	return err
}
